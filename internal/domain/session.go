package domain

import "time"

// State enumerates the positions of the per-chat conversation state machine.
type State string

const (
	StateAwaitingLink   State = "AWAITING_LINK"
	StateAwaitingChoice State = "AWAITING_CHOICE"
	StateTerminal       State = "TERMINAL"
)

// Session holds all conversation state for one chat identity. It lives only
// in memory and is rebuilt from scratch each process lifetime.
type Session struct {
	ChatID       int64
	State        State
	PendingURL   string
	Resolved     *RenderedPage
	LastActivity time.Time
}

// RenderedPage is the result of a successful instant-view export.
// Domain is the registrable domain of the originally submitted URL, before
// any bypass-mirror rewrite; it is what audio attribution is derived from.
type RenderedPage struct {
	Domain      string
	RenderedURL string
}

// ArticleContent is the extracted title and plain text of an article. It is
// consumed within the same conversation turn and never persisted.
type ArticleContent struct {
	Title string
	Text  string
}

// AudioArtifact is a synthesized audio file on local disk. Whoever delivers
// it is responsible for removing the file on every exit path of the turn.
type AudioArtifact struct {
	FilePath string
	Title    string
	Artist   string
}
