package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/OnlyOnCloud/TallySyncService/internal/core"
	"github.com/OnlyOnCloud/TallySyncService/internal/logging"
)

const (
	DefaultMaxRetries     = 3
	DefaultRetryInitial   = 500 * time.Millisecond
	DefaultRetryMax       = 10 * time.Second
	DefaultAttemptTimeout = 30 * time.Second
)

// ResilientOption configures a Resilient remote.
type ResilientOption func(*Resilient)

// WithRetries sets how many times a failed chunk is re-sent. Zero disables retries.
func WithRetries(n int) ResilientOption {
	if n < 0 {
		panic("remote: retries cannot be negative")
	}
	return func(r *Resilient) { r.maxRetries = uint64(n) }
}

// WithBackoff sets the initial and maximum delay between attempts.
func WithBackoff(initial, maxDelay time.Duration) ResilientOption {
	if initial <= 0 || maxDelay < initial {
		panic("remote: backoff needs 0 < initial <= max")
	}
	return func(r *Resilient) {
		r.retryInitial = initial
		r.retryMax = maxDelay
	}
}

// WithAttemptTimeout bounds each individual attempt.
func WithAttemptTimeout(d time.Duration) ResilientOption {
	if d <= 0 {
		panic("remote: attempt timeout must be positive")
	}
	return func(r *Resilient) { r.attemptTimeout = d }
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *CircuitBreaker) ResilientOption {
	if cb == nil {
		panic("remote: breaker cannot be nil")
	}
	return func(r *Resilient) { r.breaker = cb }
}

// WithLogger sets the logger used for retry notices.
func WithLogger(l *slog.Logger) ResilientOption {
	return func(r *Resilient) { r.logger = l }
}

// Resilient wraps a core.Remote with a circuit breaker, bounded exponential
// retries of transient failures and a timeout on every attempt.
//
// A chunk the remote answered with success=false is returned as is: the
// remote made a decision and repeating the same payload will not change it.
type Resilient struct {
	next    core.Remote
	breaker *CircuitBreaker
	logger  *slog.Logger

	maxRetries     uint64
	retryInitial   time.Duration
	retryMax       time.Duration
	attemptTimeout time.Duration
}

var _ core.Remote = (*Resilient)(nil)

// NewResilient decorates next. Panics if next is nil.
func NewResilient(next core.Remote, opts ...ResilientOption) *Resilient {
	if next == nil {
		panic("remote: next cannot be nil")
	}
	r := &Resilient{
		next:           next,
		maxRetries:     DefaultMaxRetries,
		retryInitial:   DefaultRetryInitial,
		retryMax:       DefaultRetryMax,
		attemptTimeout: DefaultAttemptTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.breaker == nil {
		r.breaker = NewCircuitBreaker(DefaultBreakerConfig())
	}
	return r
}

// Send delivers one chunk, retrying transient failures.
func (r *Resilient) Send(ctx context.Context, payload *core.SyncPayload) (*core.SendResult, error) {
	if !r.breaker.Allow() {
		return nil, core.ErrCircuitOpen
	}

	var result *core.SendResult
	attempt := 0
	op := func() error {
		attempt++
		actx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
		defer cancel()

		res, err := r.next.Send(actx, payload)
		if err != nil {
			if ctx.Err() != nil || !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = res
		return nil
	}

	notify := func(err error, wait time.Duration) {
		logging.Enrich(r.logger, ctx).Warn("chunk send failed, retrying",
			"chunk", payload.ChunkNumber,
			"attempt", attempt,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
	}

	if err := backoff.RetryNotify(op, r.policy(ctx), notify); err != nil {
		r.record(ctx, err)
		if attempt > 1 {
			return nil, fmt.Errorf("after %d attempts: %w", attempt, err)
		}
		return nil, err
	}

	r.breaker.RecordSuccess()
	return result, nil
}

// Health probes the remote once. While the circuit is open the probe is
// skipped; after the cooldown it doubles as the half-open trial call.
func (r *Resilient) Health(ctx context.Context) error {
	if !r.breaker.Allow() {
		return core.ErrCircuitOpen
	}

	actx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()

	if err := r.next.Health(actx); err != nil {
		r.record(ctx, err)
		return err
	}
	r.breaker.RecordSuccess()
	return nil
}

// CircuitState reports the breaker state for status output.
func (r *Resilient) CircuitState() string {
	return r.breaker.State().String()
}

func (r *Resilient) policy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.retryInitial
	eb.MaxInterval = r.retryMax
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, r.maxRetries), ctx)
}

// record counts a failure against the breaker unless the caller gave up.
func (r *Resilient) record(ctx context.Context, err error) {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return
	}
	r.breaker.RecordFailure()
}

// retryable reports whether err is worth another attempt.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return !errors.Is(err, ErrMalformedResponse)
}
