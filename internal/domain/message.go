package domain

// InboundMessage is the transport-agnostic inbound chat event consumed by the
// dispatcher and the conversation service. HasLink reports whether the
// transport flagged a URL-bearing span in the text; Command carries a bot
// command ("start", ...) stripped of its leading slash, empty otherwise.
type InboundMessage struct {
	ChatID    int64
	MessageID int
	Text      string
	HasLink   bool
	Command   string
}

// SendOptions carries the presentation options a reply may need. A Keyboard
// is a one-time reply keyboard (one label per button row); RemoveKeyboard
// clears any keyboard shown by a previous prompt.
type SendOptions struct {
	Keyboard        [][]string
	OneTimeKeyboard bool
	RemoveKeyboard  bool
}
