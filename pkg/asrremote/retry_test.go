package asrremote

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestDoWithRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	result, err := doWithRetry(context.Background(), RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond}, func(ctx context.Context) (string, *http.Response, error) {
		calls++
		return "ok", nil, nil
	})
	if err != nil || result != "ok" {
		t.Fatalf("unexpected result=%q err=%v", result, err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one call, got %d", calls)
	}
}

func TestDoWithRetryGivesUpOnNonRetryable(t *testing.T) {
	calls := 0
	_, err := doWithRetry(context.Background(), RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond}, func(ctx context.Context) (string, *http.Response, error) {
		calls++
		return "", nil, nonRetryable(errors.New("bad request"))
	})
	if err == nil {
		t.Fatalf("expected an error")
	}
	if calls != 1 {
		t.Fatalf("expected no retries after a non-retryable error, got %d calls", calls)
	}
}

func TestDoWithRetryHonorsRetryAfterHeader(t *testing.T) {
	calls := 0
	start := time.Now()
	resp := &http.Response{StatusCode: http.StatusTooManyRequests, Header: http.Header{"Retry-After": []string{"0"}}}
	_, err := doWithRetry(context.Background(), RetryConfig{MaxRetries: 1, InitialBackoff: time.Hour}, func(ctx context.Context) (string, *http.Response, error) {
		calls++
		if calls == 1 {
			return "", resp, errors.New("rate limited")
		}
		return "ok", nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("expected Retry-After: 0 to override the long default backoff")
	}
}

func TestDoWithRetryExhaustsAndReturnsLastError(t *testing.T) {
	calls := 0
	_, err := doWithRetry(context.Background(), RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond}, func(ctx context.Context) (string, *http.Response, error) {
		calls++
		return "", nil, errors.New("still failing")
	})
	if err == nil {
		t.Fatalf("expected an error after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("expected 1 initial attempt + 2 retries = 3 calls, got %d", calls)
	}
}
