package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/invoiceworks/invoice-agent/internal/invoice"
)

func TestRetryPolicy_SucceedsAfterTransientFailures(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("%w: connection refused", invoice.ErrModelUnavailable)
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryPolicy_ExhaustsAttempts(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, Factor: 2}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return fmt.Errorf("%w: still down", invoice.ErrModelUnavailable)
	})

	if !errors.Is(err, invoice.ErrModelUnavailable) {
		t.Fatalf("Do() error = %v, want ErrModelUnavailable", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetryPolicy_TimeoutNotRetried(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, Factor: 2}

	calls := 0
	err := policy.Do(context.Background(), func() error {
		calls++
		return fmt.Errorf("%w: model call exceeded deadline", invoice.ErrProcessingTimeout)
	})

	if !errors.Is(err, invoice.ErrProcessingTimeout) {
		t.Fatalf("Do() error = %v, want ErrProcessingTimeout", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (timeouts are terminal)", calls)
	}
}

func TestRetryPolicy_CancelledContextStopsBackoff(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 10, BaseDelay: time.Hour, Factor: 2}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := policy.Do(ctx, func() error {
		calls++
		return fmt.Errorf("%w: down", invoice.ErrModelUnavailable)
	})

	if !errors.Is(err, invoice.ErrModelUnavailable) {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (cancelled context skips backoff sleep)", calls)
	}
}
