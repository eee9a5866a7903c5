// Package exchange implements the Exchange Adapter (§4.3): a uniform
// wire interface over binance, bybit, okx and an in-memory paper
// variant. Every adapter translates upstream failures into the shared
// FailureKind taxonomy, serializes calls per connection where the
// upstream requires it, and never logs credentials.
package exchange

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradecore/backend/pkg/errs"
	"github.com/tradecore/backend/pkg/models"
)

// FailureKind is the adapter-level failure taxonomy (§4.3a). Every
// concrete adapter translates its upstream's error shape into one of
// these before returning.
type FailureKind string

const (
	FailureAuth             FailureKind = "auth_error"
	FailureRateLimit        FailureKind = "rate_limit_error"
	FailureMarketClosed     FailureKind = "market_closed_error"
	FailureInsufficientFunds FailureKind = "insufficient_funds_error"
	FailureNetwork          FailureKind = "network_error"
	FailureUnknown          FailureKind = "unknown_error"
)

// AdapterError wraps an upstream failure with its classified kind. The
// Trade Router and Circuit Breaker consult Kind to decide whether a
// failure is retryable.
type AdapterError struct {
	Kind    FailureKind
	Message string
	Cause   error
}

func (e *AdapterError) Error() string { return string(e.Kind) + ": " + e.Message }
func (e *AdapterError) Unwrap() error { return e.Cause }

// Retryable reports whether the Trade Router may retry the same request
// against the same adapter without changing anything (§4.3c).
func (e *AdapterError) Retryable() bool {
	switch e.Kind {
	case FailureRateLimit, FailureNetwork:
		return true
	default:
		return false
	}
}

// ToErrsKind maps an AdapterError onto the process-wide error taxonomy
// (§7) for the HTTP boundary.
func (e *AdapterError) ToErrsKind() errs.Kind {
	switch e.Kind {
	case FailureAuth:
		return errs.KindAuth
	case FailureInsufficientFunds, FailureMarketClosed:
		return errs.KindValidation
	default:
		return errs.KindUpstream
	}
}

// classifyMessage does best-effort string classification of an upstream
// error, the common denominator every ccxt exchange binding exposes
// (structured error types differ per exchange; the message text is the
// one thing that's always available).
func classifyMessage(err error) FailureKind {
	if err == nil {
		return FailureUnknown
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "signature") || strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "permission"):
		return FailureAuth
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "429"):
		return FailureRateLimit
	case strings.Contains(msg, "market is closed") || strings.Contains(msg, "trading is disabled") || strings.Contains(msg, "market closed"):
		return FailureMarketClosed
	case strings.Contains(msg, "insufficient") || strings.Contains(msg, "balance"):
		return FailureInsufficientFunds
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "connection") || strings.Contains(msg, "eof") || strings.Contains(msg, "network"):
		return FailureNetwork
	default:
		return FailureUnknown
	}
}

func classify(err error, msg string) *AdapterError {
	return &AdapterError{Kind: classifyMessage(err), Message: msg, Cause: err}
}

// TestResult is the outcome of Adapter.Test (§4.3 "lightweight
// authenticated ping").
type TestResult struct {
	OK              bool
	Latency         time.Duration
	BalanceSnapshot map[string]Balance
	Error           string
}

// Balance is one asset's free/locked split (§4.3 balances()).
type Balance struct {
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// PlacedOrder is the canonical structure every adapter emits from
// PlaceOrder regardless of wire format (§4.3 place_order()).
type PlacedOrder struct {
	ExchangeOrderID string
	FillPrice       decimal.Decimal
	Status          string
}

// Adapter is the uniform interface every exchange variant implements.
type Adapter interface {
	Kind() models.PlatformKind
	Test(ctx context.Context) (TestResult, error)
	Balances(ctx context.Context) (map[string]Balance, error)
	Ticker(ctx context.Context, symbol string) (models.Quote, error)
	PlaceOrder(ctx context.Context, order models.TradeOrder) (PlacedOrder, error)
	Cancel(ctx context.Context, exchangeOrderID, symbol string) error
	OrderStatus(ctx context.Context, exchangeOrderID, symbol string) (PlacedOrder, error)
}

// Credentials mirrors vault.Credentials so adapter constructors don't
// force every caller to import internal/vault directly.
type Credentials struct {
	APIKey     string
	APISecret  string
	Passphrase string
}

// retryAttempts and retryBaseDelay govern every concrete adapter's use
// of withBackoff around its ccxt calls (§4.3c).
const (
	retryAttempts  = 4
	retryBaseDelay = 200 * time.Millisecond
)

// withBackoff retries fn up to maxAttempts times on a retryable
// AdapterError, backing off exponentially with full jitter (§4.3c
// "prefer exponential backoff with jitter on transient errors"). A
// non-retryable failure (or the last attempt) returns immediately.
func withBackoff[T any](ctx context.Context, maxAttempts int, base time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		var adapterErr *AdapterError
		if ae, ok := err.(*AdapterError); ok {
			adapterErr = ae
		}
		if adapterErr == nil || !adapterErr.Retryable() || attempt == maxAttempts-1 {
			return zero, err
		}

		delay := base * time.Duration(1<<uint(attempt))
		jittered := time.Duration(rand.Int63n(int64(delay) + 1))
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(jittered):
		}
	}
	return zero, lastErr
}
