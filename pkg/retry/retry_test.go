package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient failure")

func fastConfig() Config {
	return Config{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetry_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastConfig(), func() error {
		calls++
		return nil
	})

	if err != nil {
		t.Errorf("Retry() error = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("fn ran %d times, want 1", calls)
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	if err != nil {
		t.Errorf("Retry() error = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("fn ran %d times, want 3", calls)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastConfig(), func() error {
		calls++
		return errTransient
	})

	if !errors.Is(err, errTransient) {
		t.Errorf("Retry() should wrap the last error, got %v", err)
	}
	// Initial attempt plus MaxAttempts retries
	if calls != 4 {
		t.Errorf("fn ran %d times, want 4", calls)
	}
}

func TestRetry_Disabled(t *testing.T) {
	cfg := fastConfig()
	cfg.Enabled = false

	calls := 0
	err := Retry(context.Background(), cfg, func() error {
		calls++
		return errTransient
	})

	if !errors.Is(err, errTransient) {
		t.Errorf("Retry() error = %v, want %v", err, errTransient)
	}
	if calls != 1 {
		t.Errorf("fn ran %d times with retry disabled, want 1", calls)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, fastConfig(), func() error {
		return errTransient
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry() error = %v, want context.Canceled", err)
	}
}

func TestCalculateDelay_CapsAtMax(t *testing.T) {
	cfg := fastConfig()
	if d := calculateDelay(cfg, 10); d != cfg.MaxDelay {
		t.Errorf("calculateDelay() = %v, want cap %v", d, cfg.MaxDelay)
	}
}
