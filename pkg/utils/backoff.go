package utils

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// MaxBackoff caps every retry delay.
const MaxBackoff = 30 * time.Second

// BackoffDelay computes the exponential backoff delay for a retry attempt
// (0-based): min(2^attempt + jitter, 30s) where jitter is U(0,1) seconds.
func BackoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := math.Pow(2, float64(attempt)) + rand.Float64()
	d := time.Duration(base * float64(time.Second))
	if d > MaxBackoff {
		return MaxBackoff
	}
	return d
}

// SleepWithContext sleeps for d unless the context is cancelled first.
// Returns false if the sleep was interrupted.
func SleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
