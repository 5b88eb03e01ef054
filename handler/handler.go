// Package handler routes inbound chat messages to the conversation service.
// Messages for the same chat are strictly serialized on a per-chat queue;
// different chats run concurrently. A stale choice can therefore never
// interleave with a newer submission for the same chat.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"article-valet/internal/domain"
)

const (
	defaultQueueSize   = 16
	defaultIdleTimeout = 5 * time.Minute
)

// ConversationHandler is the surface of usecase.ConversationService consumed
// here.
type ConversationHandler interface {
	HandleMessage(ctx context.Context, msg domain.InboundMessage) error
}

type chatQueue struct {
	ch chan domain.InboundMessage
}

// Dispatcher owns one queue and worker goroutine per active chat. Workers
// exit after an idle timeout so abandoned chats do not pin goroutines.
type Dispatcher struct {
	service     ConversationHandler
	queueSize   int
	idleTimeout time.Duration

	mu     sync.Mutex
	queues map[int64]*chatQueue
	wg     sync.WaitGroup

	closed    chan struct{}
	closeOnce sync.Once
}

type Option func(*Dispatcher)

// WithQueueSize sets the per-chat buffer; a full queue drops the message
// rather than blocking other chats.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithIdleTimeout sets how long a chat worker lingers without traffic.
func WithIdleTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.idleTimeout = timeout
		}
	}
}

// NewDispatcher creates a Dispatcher for the given conversation service.
func NewDispatcher(service ConversationHandler, opts ...Option) (*Dispatcher, error) {
	if service == nil {
		return nil, errors.New("handler: conversation service must not be nil")
	}
	d := &Dispatcher{
		service:     service,
		queueSize:   defaultQueueSize,
		idleTimeout: defaultIdleTimeout,
		queues:      make(map[int64]*chatQueue),
		closed:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run consumes the inbound stream until ctx is cancelled or the stream
// closes, then waits for all chat workers to drain their queues and exit.
func (d *Dispatcher) Run(ctx context.Context, updates <-chan domain.InboundMessage) error {
	defer d.wg.Wait()
	defer d.closeOnce.Do(func() { close(d.closed) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-updates:
			if !ok {
				return nil
			}
			d.dispatch(ctx, msg)
		}
	}
}

// dispatch enqueues the message on its chat's queue, spawning the worker on
// first contact. A new message while a previous turn is in flight queues
// behind it rather than preempting it.
func (d *Dispatcher) dispatch(ctx context.Context, msg domain.InboundMessage) {
	d.mu.Lock()
	q, ok := d.queues[msg.ChatID]
	if !ok {
		q = &chatQueue{ch: make(chan domain.InboundMessage, d.queueSize)}
		d.queues[msg.ChatID] = q
		d.wg.Add(1)
		go d.runChat(ctx, msg.ChatID, q)
	}
	d.mu.Unlock()

	select {
	case q.ch <- msg:
	default:
		slog.Warn("chat queue full, dropping message", "chat_id", msg.ChatID)
	}
}

func (d *Dispatcher) runChat(ctx context.Context, chatID int64, q *chatQueue) {
	defer d.wg.Done()
	idle := time.NewTimer(d.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			d.removeQueue(chatID)
			return
		case <-d.closed:
			// Inbound stream is gone; finish what is already queued.
			d.removeQueue(chatID)
			for {
				select {
				case msg := <-q.ch:
					d.handle(ctx, msg)
				default:
					return
				}
			}
		case <-idle.C:
			// Between the timer firing and the queue being removed a
			// message may still land in the buffer; drain it into a
			// fresh worker by re-dispatching.
			d.removeQueue(chatID)
			for {
				select {
				case msg := <-q.ch:
					d.dispatch(ctx, msg)
				default:
					return
				}
			}
		case msg := <-q.ch:
			d.handle(ctx, msg)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(d.idleTimeout)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, msg domain.InboundMessage) {
	// One chat's failure must never take down the dispatcher or touch
	// other chats.
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in conversation handler", "chat_id", msg.ChatID, "panic", r)
		}
	}()

	if err := d.service.HandleMessage(ctx, msg); err != nil {
		slog.Error("conversation turn failed", "chat_id", msg.ChatID, "err", err)
	}
}

func (d *Dispatcher) removeQueue(chatID int64) {
	d.mu.Lock()
	delete(d.queues, chatID)
	d.mu.Unlock()
}
