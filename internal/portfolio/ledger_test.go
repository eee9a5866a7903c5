package portfolio

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tradecore/backend/pkg/models"
)

func TestApplyPositionDeltaOpensNewPosition(t *testing.T) {
	p := &models.Portfolio{Positions: map[string]models.PositionEntry{}}
	applyPositionDelta(p, models.Trade{
		Symbol: "BTCUSDT", Side: models.OrderBuy,
		Quantity: decimal.NewFromInt(1), EntryPrice: decimal.NewFromInt(60000),
	})

	pos, ok := p.Positions["BTCUSDT"]
	if !ok {
		t.Fatal("expected a new position to be opened")
	}
	if pos.Side != models.PositionLong {
		t.Fatalf("expected long side, got %s", pos.Side)
	}
	if !pos.Quantity.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("expected quantity 1, got %s", pos.Quantity)
	}
}

func TestApplyPositionDeltaAveragesSameSideAdds(t *testing.T) {
	p := &models.Portfolio{Positions: map[string]models.PositionEntry{
		"BTCUSDT": {Symbol: "BTCUSDT", Quantity: decimal.NewFromInt(1), AveragePrice: decimal.NewFromInt(60000), Side: models.PositionLong},
	}}
	applyPositionDelta(p, models.Trade{
		Symbol: "BTCUSDT", Side: models.OrderBuy,
		Quantity: decimal.NewFromInt(1), EntryPrice: decimal.NewFromInt(62000),
	})

	pos := p.Positions["BTCUSDT"]
	if !pos.Quantity.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected combined quantity 2, got %s", pos.Quantity)
	}
	if !pos.AveragePrice.Equal(decimal.NewFromInt(61000)) {
		t.Fatalf("expected averaged price 61000, got %s", pos.AveragePrice)
	}
}

func TestApplyPositionDeltaClosesOnFullOppositeFill(t *testing.T) {
	p := &models.Portfolio{Positions: map[string]models.PositionEntry{
		"BTCUSDT": {Symbol: "BTCUSDT", Quantity: decimal.NewFromInt(1), AveragePrice: decimal.NewFromInt(60000), Side: models.PositionLong},
	}}
	applyPositionDelta(p, models.Trade{
		Symbol: "BTCUSDT", Side: models.OrderSell,
		Quantity: decimal.NewFromInt(1), EntryPrice: decimal.NewFromInt(63000),
	})

	if _, ok := p.Positions["BTCUSDT"]; ok {
		t.Fatal("expected the position to be fully closed and removed")
	}
}

func TestApplyPositionDeltaFlipsOnOversizedOppositeFill(t *testing.T) {
	p := &models.Portfolio{Positions: map[string]models.PositionEntry{
		"BTCUSDT": {Symbol: "BTCUSDT", Quantity: decimal.NewFromInt(1), AveragePrice: decimal.NewFromInt(60000), Side: models.PositionLong},
	}}
	applyPositionDelta(p, models.Trade{
		Symbol: "BTCUSDT", Side: models.OrderSell,
		Quantity: decimal.NewFromInt(3), EntryPrice: decimal.NewFromInt(63000),
	})

	pos, ok := p.Positions["BTCUSDT"]
	if !ok {
		t.Fatal("expected a flipped position to remain open")
	}
	if pos.Side != models.PositionShort {
		t.Fatalf("expected the position to flip to short, got %s", pos.Side)
	}
	if !pos.Quantity.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("expected remaining quantity 2, got %s", pos.Quantity)
	}
}

func TestApplyCashDeltaDebitsAvailableOnBuy(t *testing.T) {
	p := &models.Portfolio{
		AvailableBalance: decimal.NewFromInt(10000),
		InvestedBalance:  decimal.Zero,
	}
	applyCashDelta(p, models.Trade{
		Side: models.OrderBuy, Quantity: decimal.NewFromInt(1), EntryPrice: decimal.NewFromInt(1000),
	})
	if !p.AvailableBalance.Equal(decimal.NewFromInt(9000)) {
		t.Fatalf("expected available balance 9000, got %s", p.AvailableBalance)
	}
	if !p.InvestedBalance.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected invested balance 1000, got %s", p.InvestedBalance)
	}
}

func TestApplyCashDeltaCreditsPnLOnSell(t *testing.T) {
	p := &models.Portfolio{
		AvailableBalance: decimal.NewFromInt(9000),
		InvestedBalance:  decimal.NewFromInt(1000),
	}
	applyCashDelta(p, models.Trade{
		Side: models.OrderSell, Quantity: decimal.NewFromInt(1), EntryPrice: decimal.NewFromInt(1200),
		PnL: decimal.NewFromInt(200),
	})
	if !p.DailyPnL.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected daily pnl 200, got %s", p.DailyPnL)
	}
	if !p.TotalBalance.Equal(p.AvailableBalance.Add(p.InvestedBalance)) {
		t.Fatal("expected total balance to equal available+invested")
	}
}

func TestToRiskSnapshotSumsPositionNotionalAsExposure(t *testing.T) {
	p := &models.Portfolio{
		TotalBalance: decimal.NewFromInt(10000),
		PeakEquity:   decimal.NewFromInt(10000),
		Positions: map[string]models.PositionEntry{
			"BTCUSDT": {Quantity: decimal.NewFromInt(1), AveragePrice: decimal.NewFromInt(60000)},
			"ETHUSDT": {Quantity: decimal.NewFromInt(2), AveragePrice: decimal.NewFromInt(3000)},
		},
	}
	snap := ToRiskSnapshot(p)
	if !snap.OpenExposure.Equal(decimal.NewFromInt(66000)) {
		t.Fatalf("expected open exposure 66000, got %s", snap.OpenExposure)
	}
}
