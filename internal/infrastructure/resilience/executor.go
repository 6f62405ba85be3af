// Package resilience guards calls to the inference backend and the broker
// with optional retries and a circuit breaker per operation.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
	// RetryAfter is a backend hint for the next attempt, capped by MaxBackoff.
	RetryAfter time.Duration
}

type ErrorClassifier func(err error) ErrorClassification

// Executor is shared by every adapter of one process. Breakers are keyed by
// operation name ("hf.embed", "hf.generate", "nats.publish").
type Executor struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	if fn == nil {
		return errors.New("resilience: operation callback is nil")
	}
	op := operationName(operation)
	if classifier == nil {
		classifier = failClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if !e.cfg.Breaker.Enabled {
		return e.attempt(ctx, op, fn, classifier)
	}
	_, err := e.breaker(op, classifier).Execute(func() (struct{}, error) {
		return struct{}{}, e.attempt(ctx, op, fn, classifier)
	})
	return err
}

// attempt runs fn until it succeeds, fails permanently or attempts run out.
// The last error is returned as is.
func (e *Executor) attempt(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	policy := e.cfg.Retry
	for n := 1; ; n++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		class := classifier(err)
		if !class.Retryable || n >= policy.MaxAttempts {
			return err
		}

		wait := policy.delay(n, class.RetryAfter)
		slog.Warn("backend_retry_scheduled",
			"operation", operation,
			"attempt", n,
			"max_attempts", policy.MaxAttempts,
			"wait_ms", wait.Milliseconds(),
			"error", err.Error(),
		)
		if !sleep(ctx, wait) {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (e *Executor) breaker(operation string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[operation]; ok {
		return cb
	}
	policy := e.cfg.Breaker
	observe := e.cfg.OnStateChange
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        operation,
		MaxRequests: policy.HalfOpenMaxCalls,
		Timeout:     policy.OpenTimeout,
		ReadyToTrip: policy.shouldTrip,
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
			if observe != nil {
				observe(name, from.String(), to.String())
			}
		},
	})
	e.breakers[operation] = cb
	return cb
}

// State reports the breaker state of an operation. Operations never executed are closed.
func (e *Executor) State(operation string) gobreaker.State {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cb, ok := e.breakers[operationName(operation)]; ok {
		return cb.State()
	}
	return gobreaker.StateClosed
}

// IsCircuitOpen reports whether err was produced by a breaker refusing the call.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func operationName(raw string) string {
	if op := strings.TrimSpace(raw); op != "" {
		return op
	}
	return "unknown"
}

func failClosed(error) ErrorClassification {
	return ErrorClassification{RecordFailure: true}
}
