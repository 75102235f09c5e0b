package sync

import (
	"math"
	"math/rand"
	"time"
)

// Retryer decides the delay before each feed reconnection attempt.
type Retryer interface {
	// NextDelay returns the delay before the next attempt. attempt is
	// 0-based. The second return is false when no further attempt should
	// be made.
	NextDelay(attempt int, lastErr error) (time.Duration, bool)

	// Reset clears retry state; called after a successful connection.
	Reset()
}

// FixedDelayRetryer waits a fixed delay between attempts. It is the default
// reconnection policy: feed loss is routine (phone locked, network blip) and
// a short fixed delay recovers quickly without backoff bookkeeping.
type FixedDelayRetryer struct {
	// Delay is the fixed delay between attempts.
	Delay time.Duration

	// MaxRetries caps the number of attempts (0 for unlimited).
	MaxRetries int
}

// NewFixedDelayRetryer creates a fixed delay retryer.
func NewFixedDelayRetryer(delay time.Duration, maxRetries int) *FixedDelayRetryer {
	return &FixedDelayRetryer{Delay: delay, MaxRetries: maxRetries}
}

// NextDelay implements Retryer.
func (r *FixedDelayRetryer) NextDelay(attempt int, lastErr error) (time.Duration, bool) {
	if r.MaxRetries > 0 && attempt >= r.MaxRetries {
		return 0, false
	}
	return r.Delay, true
}

// Reset implements Retryer.
func (r *FixedDelayRetryer) Reset() {}

// ExponentialBackoffRetryer implements exponential backoff with jitter, for
// deployments where many clients reconnecting in lockstep would matter.
type ExponentialBackoffRetryer struct {
	// InitialDelay is the first retry delay.
	InitialDelay time.Duration

	// MaxDelay caps the delay growth.
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier.
	Multiplier float64

	// MaxRetries caps the number of attempts (0 for unlimited).
	MaxRetries int

	// Jitter randomizes the delay to avoid thundering herds.
	Jitter bool

	// JitterFactor is the maximum jitter as a fraction of the delay.
	JitterFactor float64
}

// NewExponentialBackoffRetryer creates an exponential backoff retryer with
// defaults.
func NewExponentialBackoffRetryer() *ExponentialBackoffRetryer {
	return &ExponentialBackoffRetryer{
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
		JitterFactor: 0.3,
	}
}

// NextDelay implements Retryer.
func (r *ExponentialBackoffRetryer) NextDelay(attempt int, lastErr error) (time.Duration, bool) {
	if r.MaxRetries > 0 && attempt >= r.MaxRetries {
		return 0, false
	}

	delay := float64(r.InitialDelay) * math.Pow(r.Multiplier, float64(attempt))
	if delay > float64(r.MaxDelay) {
		delay = float64(r.MaxDelay)
	}

	if r.Jitter && r.JitterFactor > 0 {
		// math/rand is fine for jitter, not security-critical.
		jitter := delay * r.JitterFactor * (2*rand.Float64() - 1)
		delay += jitter
		if delay < 0 {
			delay = float64(r.InitialDelay)
		}
	}

	return time.Duration(delay), true
}

// Reset implements Retryer.
func (r *ExponentialBackoffRetryer) Reset() {}
