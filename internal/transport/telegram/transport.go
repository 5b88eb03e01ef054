// Package telegram adapts the Telegram Bot API to the transport operations
// the conversation engine consumes: send/edit/delete message, send audio, and
// an inbound stream of transport-agnostic messages.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"article-valet/internal/domain"
)

// Getter fetches the bot token, implemented by paramstore.Client.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Transport wraps a Telegram bot connection.
type Transport struct {
	bot *tgbotapi.BotAPI
}

// New connects to Telegram with the token stored under
// <paramPrefix>/telegram-token.
func New(ctx context.Context, ps Getter, paramPrefix string) (*Transport, error) {
	if ps == nil {
		return nil, errors.New("telegram: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("telegram: parameter prefix must not be empty")
	}

	token, err := ps.GetParameter(ctx, paramPrefix+"/telegram-token")
	if err != nil {
		return nil, fmt.Errorf("telegram: fetch bot token: %w", err)
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	return &Transport{bot: bot}, nil
}

// SendMessage sends text with the requested keyboard presentation and
// returns the new message id.
func (t *Transport) SendMessage(_ context.Context, chatID int64, text string, opts domain.SendOptions) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	switch {
	case len(opts.Keyboard) > 0:
		msg.ReplyMarkup = replyKeyboard(opts)
	case opts.RemoveKeyboard:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	}

	sent, err := t.bot.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("telegram: send message: %w", err)
	}
	return sent.MessageID, nil
}

// EditMessage replaces the text of an existing bot message.
func (t *Transport) EditMessage(_ context.Context, chatID int64, messageID int, text string) error {
	if _, err := t.bot.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		return fmt.Errorf("telegram: edit message %d: %w", messageID, err)
	}
	return nil
}

// DeleteMessage removes a bot message from the chat.
func (t *Transport) DeleteMessage(_ context.Context, chatID int64, messageID int) error {
	if _, err := t.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("telegram: delete message %d: %w", messageID, err)
	}
	return nil
}

// SendAudio uploads the file as an audio attachment with the given caption.
// An upload chat action is emitted first so the client shows progress while
// the file transfers.
func (t *Transport) SendAudio(_ context.Context, chatID int64, filePath, caption string) error {
	// The chat action is purely cosmetic; ignore failures.
	_, _ = t.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatUploadVoice))

	audio := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(filePath))
	audio.Caption = caption
	audio.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	if _, err := t.bot.Send(audio); err != nil {
		return fmt.Errorf("telegram: send audio: %w", err)
	}
	return nil
}

// Updates starts long polling and returns a stream of inbound messages. The
// stream closes when ctx is cancelled.
func (t *Transport) Updates(ctx context.Context) <-chan domain.InboundMessage {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	raw := t.bot.GetUpdatesChan(cfg)

	out := make(chan domain.InboundMessage)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				t.bot.StopReceivingUpdates()
				return
			case update, ok := <-raw:
				if !ok {
					return
				}
				if update.Message == nil {
					continue
				}
				out <- toInbound(update.Message)
			}
		}
	}()
	return out
}

func toInbound(m *tgbotapi.Message) domain.InboundMessage {
	msg := domain.InboundMessage{
		ChatID:    m.Chat.ID,
		MessageID: m.MessageID,
		Text:      m.Text,
		HasLink:   hasLinkEntity(m),
	}
	if m.IsCommand() {
		msg.Command = m.Command()
	}
	return msg
}

// hasLinkEntity reports whether Telegram flagged a URL-bearing span, either
// a literal url entity or a text_link wrapping anchor text.
func hasLinkEntity(m *tgbotapi.Message) bool {
	for _, e := range m.Entities {
		if e.Type == "url" || e.Type == "text_link" {
			return true
		}
	}
	return false
}

func replyKeyboard(opts domain.SendOptions) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(opts.Keyboard))
	for _, labels := range opts.Keyboard {
		row := make([]tgbotapi.KeyboardButton, 0, len(labels))
		for _, label := range labels {
			row = append(row, tgbotapi.NewKeyboardButton(label))
		}
		rows = append(rows, row)
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.OneTimeKeyboard = opts.OneTimeKeyboard
	kb.ResizeKeyboard = true
	return kb
}
