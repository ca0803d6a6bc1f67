package tasks

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/desertthunder/crx/internal/services"
)

// RetryPolicy controls how failed writes are retried.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint
	// InitialBackoff is the delay before the first retry of a transient
	// failure. Each subsequent transient retry doubles it up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// BlockCooldown is the fixed wait after the service refuses the client.
	// It does not advance the exponential delay.
	BlockCooldown time.Duration
}

// DefaultRetryPolicy returns the production policy: five retries starting at
// 2s capped at 32s, with a 60s cooldown on blocks.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     32 * time.Second,
		BlockCooldown:  60 * time.Second,
	}
}

// backoff holds the exponential delay state across one write's retries.
type backoff struct {
	policy RetryPolicy
	next   time.Duration
}

func newBackoff(policy RetryPolicy) *backoff {
	return &backoff{policy: policy, next: policy.InitialBackoff}
}

// delay returns how long to wait before retrying err. Block cooldowns leave
// the exponential sequence where it was.
func (b *backoff) delay(err error) time.Duration {
	if services.KindOf(err) == services.KindBlock {
		return b.policy.BlockCooldown
	}
	d := b.next
	if doubled := b.next * 2; doubled < b.policy.MaxBackoff {
		b.next = doubled
	} else {
		b.next = b.policy.MaxBackoff
	}
	return d
}

// retryable reports whether a failed write should be attempted again.
// Conflicts and other permanent failures are final.
func retryable(err error) bool {
	switch services.KindOf(err) {
	case services.KindTransient, services.KindBlock:
		return true
	default:
		return false
	}
}

// retryWrite runs op under the policy, honoring ctx between attempts.
func retryWrite(ctx context.Context, policy RetryPolicy, op func() error) error {
	b := newBackoff(policy)
	return retry.Do(
		op,
		retry.Context(ctx),
		retry.Attempts(policy.MaxRetries+1),
		retry.RetryIf(retryable),
		retry.DelayType(func(_ uint, err error, _ *retry.Config) time.Duration {
			return b.delay(err)
		}),
		retry.LastErrorOnly(true),
	)
}

// sleepCtx waits for d or until ctx is canceled.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
