package socketmode

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	defaultBackoffBase = time.Second
	defaultBackoffMax  = 60 * time.Second
)

// backoff calculates exponential reconnection delays, with jitter.
// It is owned by a single [Client.Run] call, and is not thread-safe.
type backoff struct {
	base, maxDelay time.Duration
	attempt        int
	jitter         func() float64 // Returns a value in [0.0, 1.0).
}

func newBackoff(base, maxDelay time.Duration) *backoff {
	return &backoff{base: base, maxDelay: maxDelay, jitter: rand.Float64}
}

// next returns the delay before the next attempt: a random value
// between 50% and 100% of min(base * 2^attempt, max).
func (b *backoff) next() time.Duration {
	d := b.base
	for i := 0; i < b.attempt && d < b.maxDelay; i++ {
		d *= 2
	}
	d = min(d, b.maxDelay)
	b.attempt++

	half := d / 2
	return half + time.Duration(b.jitter()*float64(d-half))
}

// reset is called after a successful connection.
func (b *backoff) reset() {
	b.attempt = 0
}

// sleep waits for the given duration, or until the context is
// cancelled. It returns false if the context was cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
