// Package usecase drives the per-chat conversation: link intake, option
// selection, article retrieval and delivery. One handler invocation runs at a
// time for a given chat (the dispatcher serializes them), so session fields
// are mutated without further locking here.
package usecase

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"article-valet/internal/domain"
)

const resetCommand = "start"

// Normalizer rewrites a submitted URL (unshorten + paywall bypass).
type Normalizer interface {
	Normalize(ctx context.Context, rawURL string) (string, error)
}

// Publisher exports an article as an instant-view page. originalURL is the
// user's submission, fetchURL the normalized URL to fetch from.
type Publisher interface {
	Publish(ctx context.Context, originalURL, fetchURL string) (domain.RenderedPage, error)
}

// Extractor pulls title and plain text out of a rendered page.
type Extractor interface {
	Extract(ctx context.Context, pageURL string) (domain.ArticleContent, error)
}

// Synthesizer renders text to an audio file on local disk.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, title string) (domain.AudioArtifact, error)
}

// Tagger applies metadata to a synthesized audio file.
type Tagger interface {
	Apply(path, title, artist string) error
}

// Transport is the outbound chat surface for permanent replies. Transient
// prompts go through Prompter instead.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts domain.SendOptions) (int, error)
	SendAudio(ctx context.Context, chatID int64, filePath, caption string) error
}

// Prompter manages the single transient status/prompt message per chat.
// Implemented by lifecycle.Manager.
type Prompter interface {
	ShowTransient(ctx context.Context, chatID int64, text string, opts domain.SendOptions) (int, error)
	ClearTransient(ctx context.Context, chatID int64)
}

// SessionStore is the owned, synchronized session map.
type SessionStore interface {
	GetOrCreate(chatID int64) *domain.Session
	Remove(chatID int64)
}

// ConversationService is the conversation state machine.
type ConversationService struct {
	sessions    SessionStore
	normalizer  Normalizer
	publisher   Publisher
	extractor   Extractor
	synthesizer Synthesizer
	tagger      Tagger
	transport   Transport
	prompter    Prompter
}

// NewConversationService validates and wires the collaborators.
func NewConversationService(
	sessions SessionStore,
	normalizer Normalizer,
	publisher Publisher,
	extractor Extractor,
	synthesizer Synthesizer,
	tagger Tagger,
	transport Transport,
	prompter Prompter,
) (*ConversationService, error) {
	switch {
	case sessions == nil:
		return nil, errors.New("usecase: session store must not be nil")
	case normalizer == nil:
		return nil, errors.New("usecase: normalizer must not be nil")
	case publisher == nil:
		return nil, errors.New("usecase: publisher must not be nil")
	case extractor == nil:
		return nil, errors.New("usecase: extractor must not be nil")
	case synthesizer == nil:
		return nil, errors.New("usecase: synthesizer must not be nil")
	case tagger == nil:
		return nil, errors.New("usecase: tagger must not be nil")
	case transport == nil:
		return nil, errors.New("usecase: transport must not be nil")
	case prompter == nil:
		return nil, errors.New("usecase: prompter must not be nil")
	}
	return &ConversationService{
		sessions:    sessions,
		normalizer:  normalizer,
		publisher:   publisher,
		extractor:   extractor,
		synthesizer: synthesizer,
		tagger:      tagger,
		transport:   transport,
		prompter:    prompter,
	}, nil
}

// HandleMessage routes one inbound message through the session's current
// state. The returned error is for operator logs; any user-visible failure
// message has already been sent when it is non-nil.
func (s *ConversationService) HandleMessage(ctx context.Context, msg domain.InboundMessage) error {
	sess := s.sessions.GetOrCreate(msg.ChatID)

	if msg.Command == resetCommand {
		return s.reset(ctx, sess)
	}

	switch sess.State {
	case domain.StateAwaitingChoice:
		return s.handleChoice(ctx, sess, msg)
	default:
		// AwaitingLink, or a terminal leftover that behaves like first contact.
		sess.State = domain.StateAwaitingLink
		return s.handleLink(ctx, sess, msg)
	}
}

// reset re-enters AwaitingLink and shows the link prompt, discarding any
// pending article.
func (s *ConversationService) reset(ctx context.Context, sess *domain.Session) error {
	sess.State = domain.StateAwaitingLink
	sess.PendingURL = ""
	sess.Resolved = nil

	if _, err := s.prompter.ShowTransient(ctx, sess.ChatID, replyLinkPrompt, removeKeyboard()); err != nil {
		return newError(ErrorDelivery, "link_prompt_send_failed", err)
	}
	return nil
}

func (s *ConversationService) handleLink(ctx context.Context, sess *domain.Session, msg domain.InboundMessage) error {
	if !msg.HasLink {
		// Not a link: re-prompt, state unchanged.
		if _, err := s.prompter.ShowTransient(ctx, sess.ChatID, replyLinkPrompt, removeKeyboard()); err != nil {
			return newError(ErrorDelivery, "link_prompt_send_failed", err)
		}
		return nil
	}

	// A new submission invalidates whatever the previous one resolved to.
	sess.PendingURL = strings.TrimSpace(msg.Text)
	sess.Resolved = nil

	if _, err := s.prompter.ShowTransient(ctx, sess.ChatID, replyFetching, removeKeyboard()); err != nil {
		return newError(ErrorDelivery, "status_send_failed", err)
	}

	fetchURL, err := s.normalizer.Normalize(ctx, sess.PendingURL)
	if err != nil {
		return s.fail(ctx, sess, ErrorNormalization, "unshorten_failed", err)
	}

	page, err := s.publisher.Publish(ctx, sess.PendingURL, fetchURL)
	if err != nil {
		return s.fail(ctx, sess, ErrorPublish, "instant_view_export_failed", err)
	}
	sess.Resolved = &page

	// The option prompt is shown only after Resolved is stored, so a
	// "read"/"listen" choice always has a page to act on.
	if _, err := s.transport.SendMessage(ctx, sess.ChatID, page.RenderedURL, domain.SendOptions{}); err != nil {
		return s.fail(ctx, sess, ErrorDelivery, "rendered_url_send_failed", err)
	}
	if _, err := s.prompter.ShowTransient(ctx, sess.ChatID, replyOptionsPrompt, optionsKeyboard()); err != nil {
		return s.fail(ctx, sess, ErrorDelivery, "options_prompt_send_failed", err)
	}

	sess.State = domain.StateAwaitingChoice
	return nil
}

func (s *ConversationService) handleChoice(ctx context.Context, sess *domain.Session, msg domain.InboundMessage) error {
	if msg.HasLink {
		// A fresh URL mid-choice starts the intake over.
		sess.State = domain.StateAwaitingLink
		return s.handleLink(ctx, sess, msg)
	}
	if sess.Resolved == nil {
		sess.State = domain.StateAwaitingLink
		return s.fail(ctx, sess, ErrorInternal, "missing_resolved_article", nil)
	}

	switch parseChoice(msg.Text) {
	case choiceReadArticle:
		if _, err := s.transport.SendMessage(ctx, sess.ChatID, sess.Resolved.RenderedURL, removeKeyboard()); err != nil {
			return s.fail(ctx, sess, ErrorDelivery, "rendered_url_send_failed", err)
		}
		s.finish(ctx, sess)
		return nil
	case choiceListenArticle:
		return s.listen(ctx, sess)
	case choiceExitConversation:
		s.finish(ctx, sess)
		return nil
	default:
		if _, err := s.prompter.ShowTransient(ctx, sess.ChatID, replyOptionsPrompt, optionsKeyboard()); err != nil {
			return newError(ErrorDelivery, "options_prompt_send_failed", err)
		}
		return nil
	}
}

// listen narrates the resolved article: extract, synthesize, tag, deliver.
// The audio file never outlives this turn, whichever path exits it.
func (s *ConversationService) listen(ctx context.Context, sess *domain.Session) error {
	if _, err := s.prompter.ShowTransient(ctx, sess.ChatID, replyConverting, removeKeyboard()); err != nil {
		return newError(ErrorDelivery, "status_send_failed", err)
	}

	content, err := s.extractor.Extract(ctx, sess.Resolved.RenderedURL)
	if err != nil {
		return s.fail(ctx, sess, ErrorExtraction, "article_extraction_failed", err)
	}

	artifact, err := s.synthesizer.Synthesize(ctx, content.Text, content.Title)
	if err != nil {
		return s.fail(ctx, sess, ErrorSynthesis, "speech_synthesis_failed", err)
	}
	defer func() {
		if rmErr := os.Remove(artifact.FilePath); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("failed to remove audio artifact", "path", artifact.FilePath, "err", rmErr)
		}
	}()

	artifact.Artist = artistFromDomain(sess.Resolved.Domain)
	if tagErr := s.tagger.Apply(artifact.FilePath, artifact.Title, artifact.Artist); tagErr != nil {
		// Recoverable: deliver the untagged file rather than failing the turn.
		slog.Warn("failed to tag audio artifact, delivering untagged",
			"path", artifact.FilePath, "err", tagErr)
	}

	if err := s.transport.SendAudio(ctx, sess.ChatID, artifact.FilePath, artifact.Title); err != nil {
		return s.fail(ctx, sess, ErrorDelivery, "audio_send_failed", err)
	}

	s.finish(ctx, sess)
	return nil
}

// fail surfaces one user-visible failure message and leaves the session in
// its current state so the user can retry by resubmitting input.
func (s *ConversationService) fail(ctx context.Context, sess *domain.Session, code ErrorCode, reason string, err error) error {
	uerr := newError(code, reason, err)
	if _, sendErr := s.prompter.ShowTransient(ctx, sess.ChatID, failureReply(code), removeKeyboard()); sendErr != nil {
		slog.Warn("failed to send failure message", "chat_id", sess.ChatID, "err", sendErr)
	}
	return uerr
}

// finish clears the transient prompt and retires the session.
func (s *ConversationService) finish(ctx context.Context, sess *domain.Session) {
	s.prompter.ClearTransient(ctx, sess.ChatID)
	sess.State = domain.StateTerminal
	s.sessions.Remove(sess.ChatID)
}
