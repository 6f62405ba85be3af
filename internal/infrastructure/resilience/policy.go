package resilience

import (
	"math"
	"time"

	"github.com/sony/gobreaker/v2"
)

// RetryPolicy bounds the attempts of one backend call. MaxAttempts 1 means a
// failure surfaces to the caller unchanged.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// delay is the wait after the given failed attempt. A backend hint such as
// Retry-After overrides a shorter schedule; MaxBackoff caps both.
func (p RetryPolicy) delay(attempt int, hint time.Duration) time.Duration {
	scheduled := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(attempt-1))
	wait := time.Duration(math.Min(scheduled, float64(p.MaxBackoff)))
	if hint > wait {
		wait = hint
	}
	return min(wait, p.MaxBackoff)
}

// BreakerPolicy trips a per-operation breaker once enough calls failed.
type BreakerPolicy struct {
	Enabled          bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

func (p BreakerPolicy) shouldTrip(counts gobreaker.Counts) bool {
	if counts.Requests < p.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= p.FailureRatio
}

// StateObserver receives breaker transitions, e.g. to export them as metrics.
type StateObserver func(operation, from, to string)

type Config struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy

	OnStateChange StateObserver
}

// DefaultConfig makes a single attempt per call and opens the breaker when
// the inference backend keeps failing.
func DefaultConfig() Config {
	return Config{
		Retry: RetryPolicy{
			MaxAttempts:    1,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
		},
		Breaker: BreakerPolicy{
			Enabled:          true,
			MinRequests:      5,
			FailureRatio:     0.6,
			OpenTimeout:      30 * time.Second,
			HalfOpenMaxCalls: 2,
		},
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	r := &out.Retry
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = def.Retry.MaxAttempts
	}
	if r.InitialBackoff <= 0 {
		r.InitialBackoff = def.Retry.InitialBackoff
	}
	if r.MaxBackoff <= 0 {
		r.MaxBackoff = def.Retry.MaxBackoff
	}
	r.MaxBackoff = max(r.MaxBackoff, r.InitialBackoff)
	if r.Multiplier < 1.0 {
		r.Multiplier = def.Retry.Multiplier
	}

	b := &out.Breaker
	if b.MinRequests == 0 {
		b.MinRequests = def.Breaker.MinRequests
	}
	if b.FailureRatio <= 0 || b.FailureRatio > 1 {
		b.FailureRatio = def.Breaker.FailureRatio
	}
	if b.OpenTimeout <= 0 {
		b.OpenTimeout = def.Breaker.OpenTimeout
	}
	if b.HalfOpenMaxCalls == 0 {
		b.HalfOpenMaxCalls = def.Breaker.HalfOpenMaxCalls
	}
	return out
}
