package chain

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultMaxAttempts caps submission retries. Transient conditions that
	// survive four attempts are surfaced as terminal failures instead of
	// hanging the request.
	DefaultMaxAttempts = 4

	// DefaultBaseDelay seeds the exponential backoff between attempts.
	DefaultBaseDelay = 500 * time.Millisecond
)

// Retrier runs an operation, retrying only transient failure classes with
// exponentially increasing delay. One policy object serves every gateway
// write so retry behavior is never duplicated per call site.
type Retrier struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *slog.Logger

	// OnRetry is invoked before each re-attempt; used for metrics.
	OnRetry func(op string)
}

// NewRetrier builds a Retrier with defaults filled in.
func NewRetrier(maxAttempts int, baseDelay time.Duration) *Retrier {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return &Retrier{MaxAttempts: maxAttempts, BaseDelay: baseDelay}
}

// Do runs fn up to MaxAttempts times. Non-retryable failures return
// immediately; the last transient failure is returned once the ceiling is
// reached.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	delay := r.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		cerr := classify(op, err)
		if !cerr.Retryable() {
			return cerr
		}
		lastErr = cerr

		if attempt == r.MaxAttempts {
			break
		}
		if r.Logger != nil {
			r.Logger.Warn("retrying chain operation",
				"op", op,
				"attempt", attempt,
				"delay", delay.String(),
				"error", err,
			)
		}
		if r.OnRetry != nil {
			r.OnRetry(op)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return classify(op, ctx.Err())
		case <-timer.C:
		}
		delay *= 2
	}
	return lastErr
}
