package exchange

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestClassifyMessageMapsCommonUpstreamPhrasings(t *testing.T) {
	cases := map[string]FailureKind{
		"invalid signature":          FailureAuth,
		"API key not found":          FailureAuth,
		"rate limit exceeded":        FailureRateLimit,
		"429 too many requests":      FailureRateLimit,
		"market is closed":           FailureMarketClosed,
		"insufficient balance":       FailureInsufficientFunds,
		"connection reset by peer":   FailureNetwork,
		"totally unrecognized thing": FailureUnknown,
	}
	for msg, want := range cases {
		got := classifyMessage(errors.New(msg))
		if got != want {
			t.Errorf("classifyMessage(%q) = %s, want %s", msg, got, want)
		}
	}
}

func TestAdapterErrorRetryable(t *testing.T) {
	if !(&AdapterError{Kind: FailureRateLimit}).Retryable() {
		t.Error("rate limit should be retryable")
	}
	if (&AdapterError{Kind: FailureAuth}).Retryable() {
		t.Error("auth failure should not be retryable")
	}
}

func TestWithBackoffStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	_, err := withBackoff(context.Background(), 5, time.Millisecond, func() (int, error) {
		calls++
		return 0, &AdapterError{Kind: FailureAuth, Message: "bad creds"}
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls != 1 {
		t.Fatalf("expected exactly one attempt for a non-retryable error, got %d", calls)
	}
}

func TestWithBackoffRetriesTransientErrorsUntilSuccess(t *testing.T) {
	calls := 0
	result, err := withBackoff(context.Background(), 5, time.Millisecond, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, &AdapterError{Kind: FailureNetwork, Message: "timeout"}
		}
		return 42, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if result != 42 {
		t.Fatalf("expected eventual success value 42, got %d", result)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestWithBackoffExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := withBackoff(context.Background(), 3, time.Millisecond, func() (int, error) {
		calls++
		return 0, &AdapterError{Kind: FailureRateLimit, Message: "still limited"}
	})
	if err == nil {
		t.Fatal("expected an error after exhausting attempts")
	}
	if calls != 3 {
		t.Fatalf("expected exactly maxAttempts calls, got %d", calls)
	}
}
