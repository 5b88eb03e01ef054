package usecase

import (
	"strings"
	"unicode"

	"article-valet/internal/domain"
)

// Option labels shown on the reply keyboard. Matching is case-insensitive so
// a typed "read article" works as well as the button.
const (
	choiceRead   = "Read Article"
	choiceListen = "Listen to Article"
	choiceExit   = "Exit"
)

const (
	replyLinkPrompt    = "Send me any article url:"
	replyOptionsPrompt = "Choose an option:"
	replyFetching      = "Fetching the article..."
	replyConverting    = "Converting the article to speech..."
)

type choice int

const (
	choiceUnknown choice = iota
	choiceReadArticle
	choiceListenArticle
	choiceExitConversation
)

func parseChoice(text string) choice {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case strings.ToLower(choiceRead):
		return choiceReadArticle
	case strings.ToLower(choiceListen):
		return choiceListenArticle
	case strings.ToLower(choiceExit):
		return choiceExitConversation
	default:
		return choiceUnknown
	}
}

func optionsKeyboard() domain.SendOptions {
	return domain.SendOptions{
		Keyboard:        [][]string{{choiceRead}, {choiceListen}, {choiceExit}},
		OneTimeKeyboard: true,
	}
}

func removeKeyboard() domain.SendOptions {
	return domain.SendOptions{RemoveKeyboard: true}
}

// failureReply maps an error kind to the single user-visible failure message
// for the turn. Wording is presentation, not contract.
func failureReply(code ErrorCode) string {
	switch code {
	case ErrorNormalization:
		return "I couldn't resolve that link. Please send the article url again."
	case ErrorPublish:
		return "I couldn't fetch that article. Please send the url again."
	case ErrorExtraction:
		return "I couldn't read the article body. Please try again."
	case ErrorSynthesis:
		return "I couldn't convert the article to speech. Please try again."
	case ErrorDelivery:
		return "I couldn't deliver the result. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}

// artistFromDomain derives the audio artist tag from the registrable domain
// of the originally submitted URL: the leading label, capitalized
// ("medium.com" -> "Medium").
func artistFromDomain(registrable string) string {
	label, _, _ := strings.Cut(registrable, ".")
	if label == "" {
		return registrable
	}
	runes := []rune(label)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
