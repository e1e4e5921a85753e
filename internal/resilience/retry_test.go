package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sells-group/orgmetrics/internal/model"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDo_SuccessAfterTransientFailures(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(3), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("bad gateway"), 502)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(3), func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("unavailable"), 503)
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_TerminalErrorsAreNotRetried(t *testing.T) {
	terminal := []error{
		&model.UpstreamThrottledError{StatusCode: 429},
		&model.UpstreamBlockedError{StatusCode: 403},
		&model.AuthRequiredError{URL: "https://www.linkedin.com/login"},
		errors.New("permanent: bad request"),
	}
	for _, want := range terminal {
		var calls int
		err := Do(context.Background(), fastRetry(3), func(_ context.Context) error {
			calls++
			return want
		})
		if !errors.Is(err, want) {
			t.Errorf("expected %v, got %v", want, err)
		}
		if calls != 1 {
			t.Errorf("%v: expected 1 call, got %d", want, calls)
		}
	}
}

func TestDo_ContextCancelledStopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastRetry(5)
	cfg.InitialBackoff = 50 * time.Millisecond

	var calls int
	err := Do(ctx, cfg, func(_ context.Context) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return NewTransientError(errors.New("fail"), 500)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestDo_OnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, _ error) {
		attempts = append(attempts, attempt)
	}

	_ = Do(context.Background(), cfg, func(_ context.Context) error {
		return NewTransientError(errors.New("fail"), 500)
	})
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("expected OnRetry attempts [1 2], got %v", attempts)
	}
}

func TestNavigationRetryConfig_RetriesPlainErrors(t *testing.T) {
	cfg := NavigationRetryConfig()
	cfg.InitialBackoff = time.Millisecond

	var calls int
	val, err := DoVal(context.Background(), cfg, func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("net::ERR_ABORTED")
		}
		return "https://www.linkedin.com/company/acme/people/", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 || val == "" {
		t.Errorf("expected success on third attempt, got calls=%d val=%q", calls, val)
	}

	calls = 0
	_, err = DoVal(context.Background(), cfg, func(_ context.Context) (string, error) {
		calls++
		return "", &model.AuthRequiredError{URL: "https://www.linkedin.com/authwall"}
	})
	if !model.IsAuthRequired(err) || calls != 1 {
		t.Errorf("auth redirect must not be retried: calls=%d err=%v", calls, err)
	}
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	cfg := applyDefaults(RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond, Multiplier: 2})
	if got := backoff(0, cfg); got != 100*time.Millisecond {
		t.Errorf("attempt 0: got %v", got)
	}
	if got := backoff(1, cfg); got != 200*time.Millisecond {
		t.Errorf("attempt 1: got %v", got)
	}
	if got := backoff(5, cfg); got != 300*time.Millisecond {
		t.Errorf("attempt 5: got %v", got)
	}
}

func TestFromRetryConfig(t *testing.T) {
	cfg := FromRetryConfig(5, 200, 0, 0, 0.1)
	if cfg.MaxAttempts != 5 || cfg.InitialBackoff != 200*time.Millisecond {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.MaxBackoff != DefaultRetryConfig().MaxBackoff {
		t.Errorf("expected default max backoff, got %v", cfg.MaxBackoff)
	}
	if cfg.JitterFraction != 0.1 {
		t.Errorf("expected jitter 0.1, got %v", cfg.JitterFraction)
	}
}
