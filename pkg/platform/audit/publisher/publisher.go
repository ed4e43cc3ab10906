// Package publisher emits audit events to a Store, optionally buffering them
// on a background goroutine so the request path never waits on the stream.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "landledger/pkg/platform/audit"
)

// Publisher writes events to an audit store, synchronously by default or via
// a bounded async buffer. When the buffer is full the event is dropped and
// counted; audit here is observability, not the system of record.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	ch     chan audit.Event
	wg     sync.WaitGroup
	closed sync.Once

	mu      sync.Mutex
	dropped int
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables async emission with the given buffer size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.ch = make(chan audit.Event, size)
	}
}

// WithLogger sets a logger for drop/append failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.ch != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an audit event. Missing ID/timestamp are filled in here so
// call sites stay terse.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if p.ch == nil {
		return p.append(ctx, event)
	}

	select {
	case p.ch <- event:
		return nil
	default:
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit buffer full, event dropped", "action", event.Action)
		}
		return nil
	}
}

// Dropped reports how many events were discarded due to a full buffer.
func (p *Publisher) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Close drains the async buffer and stops the worker. Safe to call twice.
func (p *Publisher) Close() {
	if p.ch == nil {
		return
	}
	p.closed.Do(func() {
		close(p.ch)
	})
	p.wg.Wait()
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.ch {
		_ = p.append(context.Background(), event)
	}
}

func (p *Publisher) append(ctx context.Context, event audit.Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "audit append failed", "action", event.Action, "error", err)
		}
		return err
	}
	return nil
}
