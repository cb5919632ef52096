package dispatch

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/fieldops/netdiscover/internal/pipeline"
)

// RetryConfig controls the backoff policy applied between collector
// attempts, adapted from the LLM-proxy teacher's upstream retry shape but
// keyed on the discovery error taxonomy instead of HTTP status codes.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig matches §4.5: base 500ms, up to 3 retries.
var DefaultRetryConfig = RetryConfig{
	MaxRetries: 3,
	BaseDelay:  500 * time.Millisecond,
	MaxDelay:   8 * time.Second,
}

// isRecoverable reports whether err should trigger a retry of the same
// collector attempt, per §4.5/§7.
func isRecoverable(err error) bool {
	ce, ok := err.(*pipeline.CollectorError)
	if !ok {
		return false
	}
	return ce.Retryable()
}

// backoffDelay computes base*2^attempt clamped to maxDelay, jittered by
// ±20% (§4.5), rather than the LLM-proxy teacher's full-jitter formula.
func backoffDelay(attempt int, cfg RetryConfig) time.Duration {
	if cfg.BaseDelay <= 0 {
		return 0
	}
	exp := math.Pow(2, float64(attempt))
	delay := time.Duration(float64(cfg.BaseDelay) * exp)
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}

	jitterFrac := (rand.Float64()*0.4 - 0.2) // uniform in [-0.2, 0.2]
	jittered := float64(delay) * (1 + jitterFrac)
	if jittered < 0 {
		jittered = 0
	}
	return time.Duration(jittered)
}

// sleepWithContext sleeps d, returning early with ctx.Err() on cancellation.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
