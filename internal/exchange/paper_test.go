package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradecore/backend/internal/breaker"
	"github.com/tradecore/backend/internal/config"
	"github.com/tradecore/backend/internal/market"
	"github.com/tradecore/backend/pkg/models"
)

func newTestPaperAdapter(t *testing.T) *PaperAdapter {
	t.Helper()
	agg := market.New(config.MarketConfig{
		FreshnessWindow: time.Minute,
		SourceTimeout:   time.Second,
	}, breaker.NewRegistry(config.BreakerConfig{
		FailureThreshold: 5, FailureWindow: time.Minute, Cooldown: 30 * time.Second, ProbeLimit: 1,
	}))
	return NewPaperAdapter(agg, decimal.NewFromInt(10000))
}

func TestPaperAdapterFillsMarketOrderImmediately(t *testing.T) {
	p := newTestPaperAdapter(t)

	placed, err := p.PlaceOrder(context.Background(), models.TradeOrder{
		Symbol:    "BTCUSDT",
		Side:      models.OrderBuy,
		OrderType: models.OrderMarket,
		Quantity:  decimal.NewFromInt(1),
	})
	if err != nil {
		t.Fatal(err)
	}
	if placed.Status != "filled" {
		t.Fatalf("expected market order to fill immediately, got status %q", placed.Status)
	}
	if !placed.FillPrice.IsPositive() {
		t.Fatal("expected a positive fill price")
	}
}

func TestPaperAdapterQueuesLimitOrderThatDoesNotCross(t *testing.T) {
	p := newTestPaperAdapter(t)

	quote, err := p.Ticker(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatal(err)
	}
	// A buy limit far below market never crosses immediately.
	farBelow := quote.Price.Div(decimal.NewFromInt(2))

	placed, err := p.PlaceOrder(context.Background(), models.TradeOrder{
		Symbol:     "BTCUSDT",
		Side:       models.OrderBuy,
		OrderType:  models.OrderLimit,
		Quantity:   decimal.NewFromInt(1),
		LimitPrice: farBelow,
	})
	if err != nil {
		t.Fatal(err)
	}
	if placed.Status != "open" {
		t.Fatalf("expected limit order to queue, got status %q", placed.Status)
	}

	status, err := p.OrderStatus(context.Background(), placed.ExchangeOrderID, "BTCUSDT")
	if err != nil {
		t.Fatal(err)
	}
	if status.Status != "open" {
		t.Fatalf("expected order to remain open while price hasn't crossed, got %q", status.Status)
	}
}

func TestPaperAdapterFillsLimitOrderThatAlreadyCrosses(t *testing.T) {
	p := newTestPaperAdapter(t)

	quote, err := p.Ticker(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatal(err)
	}
	// A buy limit above market crosses immediately.
	aboveMarket := quote.Price.Mul(decimal.NewFromInt(2))

	placed, err := p.PlaceOrder(context.Background(), models.TradeOrder{
		Symbol:     "BTCUSDT",
		Side:       models.OrderBuy,
		OrderType:  models.OrderLimit,
		Quantity:   decimal.NewFromInt(1),
		LimitPrice: aboveMarket,
	})
	if err != nil {
		t.Fatal(err)
	}
	if placed.Status != "filled" {
		t.Fatalf("expected crossing limit order to fill immediately, got %q", placed.Status)
	}
}

func TestPaperAdapterCancelMarksOrderCancelled(t *testing.T) {
	p := newTestPaperAdapter(t)

	quote, _ := p.Ticker(context.Background(), "BTCUSDT")
	placed, err := p.PlaceOrder(context.Background(), models.TradeOrder{
		Symbol:     "BTCUSDT",
		Side:       models.OrderBuy,
		OrderType:  models.OrderLimit,
		Quantity:   decimal.NewFromInt(1),
		LimitPrice: quote.Price.Div(decimal.NewFromInt(2)),
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := p.Cancel(context.Background(), placed.ExchangeOrderID, "BTCUSDT"); err != nil {
		t.Fatal(err)
	}
	status, err := p.OrderStatus(context.Background(), placed.ExchangeOrderID, "BTCUSDT")
	if err != nil {
		t.Fatal(err)
	}
	if status.Status != "cancelled" {
		t.Fatalf("expected cancelled status, got %q", status.Status)
	}
}

func TestPaperAdapterCancelUnknownOrderErrors(t *testing.T) {
	p := newTestPaperAdapter(t)
	if err := p.Cancel(context.Background(), "does-not-exist", "BTCUSDT"); err == nil {
		t.Fatal("expected an error cancelling an unknown order")
	}
}
