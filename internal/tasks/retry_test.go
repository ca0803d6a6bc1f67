package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/crx/internal/services"
)

func blockErr(op string) error {
	return &services.APIError{Op: op, Status: 403, Kind: services.KindBlock, Message: "blocked"}
}

func TestBackoffSequence(t *testing.T) {
	policy := RetryPolicy{
		MaxRetries:     5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     32 * time.Second,
		BlockCooldown:  60 * time.Second,
	}
	b := newBackoff(policy)

	transient := transientErr("POST /watchlist")
	want := []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		32 * time.Second,
	}
	for i, w := range want {
		if got := b.delay(transient); got != w {
			t.Errorf("delay %d = %v, want %v", i, got, w)
		}
	}
}

func TestBackoffBlockCooldownDoesNotAdvance(t *testing.T) {
	policy := DefaultRetryPolicy()
	b := newBackoff(policy)

	transient := transientErr("POST /watchlist")

	if got := b.delay(transient); got != 2*time.Second {
		t.Fatalf("first transient delay = %v, want 2s", got)
	}

	if got := b.delay(blockErr("POST /watchlist")); got != 60*time.Second {
		t.Errorf("block delay = %v, want 60s", got)
	}

	// The exponential sequence resumes where it left off
	if got := b.delay(transient); got != 4*time.Second {
		t.Errorf("delay after block = %v, want 4s", got)
	}
}

func TestRetryWrite(t *testing.T) {
	ctx := context.Background()
	policy := testRetryPolicy()

	t.Run("Succeeds Immediately", func(t *testing.T) {
		calls := 0
		err := retryWrite(ctx, policy, func() error {
			calls++
			return nil
		})
		if err != nil || calls != 1 {
			t.Errorf("expected 1 call and no error, got calls=%d err=%v", calls, err)
		}
	})

	t.Run("Retries Transient Failures", func(t *testing.T) {
		calls := 0
		err := retryWrite(ctx, policy, func() error {
			calls++
			if calls < 3 {
				return transientErr("POST /watchlist")
			}
			return nil
		})
		if err != nil {
			t.Errorf("expected success after retries, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("Gives Up After Max Retries", func(t *testing.T) {
		calls := 0
		err := retryWrite(ctx, policy, func() error {
			calls++
			return transientErr("POST /watchlist")
		})
		if err == nil {
			t.Error("expected error after exhausting retries")
		}
		if want := int(policy.MaxRetries) + 1; calls != want {
			t.Errorf("expected %d calls, got %d", want, calls)
		}
	})

	t.Run("Conflicts Are Not Retried", func(t *testing.T) {
		calls := 0
		err := retryWrite(ctx, policy, func() error {
			calls++
			return conflictErr("POST /watchlist")
		})
		if calls != 1 {
			t.Errorf("expected 1 call for a conflict, got %d", calls)
		}
		if services.KindOf(err) != services.KindConflict {
			t.Errorf("conflict should surface unchanged, got %v", err)
		}
	})

	t.Run("Permanent Errors Are Not Retried", func(t *testing.T) {
		permanent := errors.New("invalid content id")
		calls := 0
		err := retryWrite(ctx, policy, func() error {
			calls++
			return permanent
		})
		if !errors.Is(err, permanent) {
			t.Errorf("expected original error back, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("Cancellation Stops Retrying", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		calls := 0
		slow := RetryPolicy{
			MaxRetries:     5,
			InitialBackoff: time.Hour,
			MaxBackoff:     time.Hour,
			BlockCooldown:  time.Hour,
		}
		done := make(chan error, 1)
		go func() {
			done <- retryWrite(cancelCtx, slow, func() error {
				calls++
				return transientErr("POST /watchlist")
			})
		}()
		time.Sleep(10 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if err == nil {
				t.Error("expected an error after cancellation")
			}
			if calls != 1 {
				t.Errorf("expected 1 call before cancellation, got %d", calls)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("retryWrite did not return after cancellation")
		}
	})
}
