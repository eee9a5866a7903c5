package ai

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeProvider struct {
	text string
	err  error
	delay time.Duration
}

func (f *fakeProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func TestServiceCompleteReturnsProviderTextOnSuccess(t *testing.T) {
	s := NewServiceWithProvider(&fakeProvider{text: "bullish on BTC"}, time.Second)
	result := s.Complete(context.Background(), "analyze BTCUSDT")
	if result.Degraded {
		t.Fatal("expected a successful completion not to be marked degraded")
	}
	if result.Text != "bullish on BTC" {
		t.Fatalf("expected provider text passed through, got %q", result.Text)
	}
}

func TestServiceCompleteFallsBackOnProviderError(t *testing.T) {
	s := NewServiceWithProvider(&fakeProvider{err: errors.New("upstream exploded")}, time.Second)
	result := s.Complete(context.Background(), "analyze BTCUSDT")
	if !result.Degraded {
		t.Fatal("expected a provider error to degrade the response")
	}
	if result.Text != fallbackText {
		t.Fatalf("expected the deterministic fallback text, got %q", result.Text)
	}
}

func TestServiceCompleteFallsBackOnTimeout(t *testing.T) {
	s := NewServiceWithProvider(&fakeProvider{text: "too slow", delay: 50 * time.Millisecond}, 5*time.Millisecond)
	result := s.Complete(context.Background(), "analyze BTCUSDT")
	if !result.Degraded {
		t.Fatal("expected a timeout to degrade the response")
	}
}

func TestDisabledServiceAlwaysDegrades(t *testing.T) {
	s := &Service{enabled: false}
	result := s.Complete(context.Background(), "analyze BTCUSDT")
	if !result.Degraded || result.Text != fallbackText {
		t.Fatalf("expected a disabled service to return the fallback, got %+v", result)
	}
}
