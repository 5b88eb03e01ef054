// Package lifecycle keeps chat transcripts clean: each chat has at most one
// outstanding bot-authored status/prompt message, and a stale one is deleted
// before or at the moment its replacement appears.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"article-valet/internal/domain"
)

// Transport is the minimal send/delete surface the manager needs. Implemented
// by transport/telegram.Transport.
type Transport interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts domain.SendOptions) (int, error)
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// Manager tracks the most recent transient message per chat.
type Manager struct {
	transport Transport

	mu      sync.Mutex
	tracked map[int64]int
}

// New creates a Manager.
func New(transport Transport) (*Manager, error) {
	if transport == nil {
		return nil, errors.New("lifecycle: transport must not be nil")
	}
	return &Manager{transport: transport, tracked: make(map[int64]int)}, nil
}

// ShowTransient replaces any tracked transient message for the chat with a
// new one and returns its id. The previous message is deleted first; a failed
// delete (already gone, chat history cleared) is logged and swallowed, never
// surfaced to the user.
func (m *Manager) ShowTransient(ctx context.Context, chatID int64, text string, opts domain.SendOptions) (int, error) {
	m.deleteTracked(ctx, chatID)

	id, err := m.transport.SendMessage(ctx, chatID, text, opts)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	m.tracked[chatID] = id
	m.mu.Unlock()
	return id, nil
}

// ClearTransient deletes the tracked transient message for the chat if one
// exists, and is a no-op otherwise.
func (m *Manager) ClearTransient(ctx context.Context, chatID int64) {
	m.deleteTracked(ctx, chatID)
}

func (m *Manager) deleteTracked(ctx context.Context, chatID int64) {
	m.mu.Lock()
	id, ok := m.tracked[chatID]
	if ok {
		delete(m.tracked, chatID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	if err := m.transport.DeleteMessage(ctx, chatID, id); err != nil {
		slog.Warn("failed to delete transient message", "chat_id", chatID, "message_id", id, "err", err)
	}
}
