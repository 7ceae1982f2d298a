// Package backoff implements the capped exponential delay used between
// reconnection attempts.
package backoff

import "time"

// Default policy values.
const (
	DefaultInitial = 2 * time.Second
	DefaultFactor  = 1.5
	DefaultMax     = 30 * time.Second
)

// Backoff produces an increasing sequence of delays, capped at Max.
// It is not safe for concurrent use; callers guard it with their own lock.
type Backoff struct {
	Initial time.Duration
	Factor  float64
	Max     time.Duration

	current time.Duration
}

// New creates a Backoff. Zero or invalid values fall back to the defaults.
func New(initial time.Duration, factor float64, max time.Duration) *Backoff {
	if initial <= 0 {
		initial = DefaultInitial
	}
	if factor < 1 {
		factor = DefaultFactor
	}
	if max <= 0 {
		max = DefaultMax
	}
	if max < initial {
		max = initial
	}
	return &Backoff{
		Initial: initial,
		Factor:  factor,
		Max:     max,
		current: initial,
	}
}

// Default returns the 2s / x1.5 / 30s policy.
func Default() *Backoff {
	return New(DefaultInitial, DefaultFactor, DefaultMax)
}

// Next returns the delay for the upcoming attempt and advances the sequence.
func (b *Backoff) Next() time.Duration {
	if b.current <= 0 {
		b.current = b.Initial
	}
	d := b.current

	next := time.Duration(float64(b.current) * b.Factor)
	if next > b.Max || next <= 0 {
		next = b.Max
	}
	b.current = next

	return d
}

// Peek returns the delay Next would return without advancing.
func (b *Backoff) Peek() time.Duration {
	if b.current <= 0 {
		return b.Initial
	}
	return b.current
}

// Reset restarts the sequence at Initial.
func (b *Backoff) Reset() {
	b.current = b.Initial
}
