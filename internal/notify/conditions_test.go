package notify

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tradecore/backend/pkg/models"
)

func TestEvaluateConditionPriceAbove(t *testing.T) {
	quote := models.Quote{Symbol: "BTCUSDT", Price: decimal.NewFromInt(65100)}
	fired, _ := evaluateCondition(models.ConditionPriceAbove, decimal.NewFromInt(65000), quote, NewPriceHistory(), 14)
	if !fired {
		t.Fatal("expected price above threshold to fire")
	}

	fired, _ = evaluateCondition(models.ConditionPriceAbove, decimal.NewFromInt(65000), models.Quote{Symbol: "BTCUSDT", Price: decimal.NewFromInt(64900)}, NewPriceHistory(), 14)
	if fired {
		t.Fatal("expected price below threshold not to fire price_above")
	}
}

func TestEvaluateConditionPriceBelow(t *testing.T) {
	quote := models.Quote{Symbol: "BTCUSDT", Price: decimal.NewFromInt(900)}
	fired, _ := evaluateCondition(models.ConditionPriceBelow, decimal.NewFromInt(1000), quote, NewPriceHistory(), 14)
	if !fired {
		t.Fatal("expected price below threshold to fire")
	}
}

func TestEvaluateConditionRSIAboveFiresOnSustainedUptrend(t *testing.T) {
	h := NewPriceHistory()
	price := 100.0
	for i := 0; i < 30; i++ {
		price += 1
		h.Record("BTCUSDT", price, 10)
	}
	quote := models.Quote{Symbol: "BTCUSDT", Price: decimal.NewFromFloat(price)}
	fired, detail := evaluateCondition(models.ConditionRSIAbove, decimal.NewFromInt(70), quote, h, 14)
	if !fired {
		t.Fatalf("expected a sustained uptrend to push RSI above 70, detail=%q", detail)
	}
}

func TestEvaluateConditionRSIBelowFiresOnSustainedDowntrend(t *testing.T) {
	h := NewPriceHistory()
	price := 1000.0
	for i := 0; i < 30; i++ {
		price -= 1
		h.Record("BTCUSDT", price, 10)
	}
	quote := models.Quote{Symbol: "BTCUSDT", Price: decimal.NewFromFloat(price)}
	fired, detail := evaluateCondition(models.ConditionRSIBelow, decimal.NewFromInt(30), quote, h, 14)
	if !fired {
		t.Fatalf("expected a sustained downtrend to push RSI below 30, detail=%q", detail)
	}
}

func TestEvaluateConditionRSIDoesNotFireWithoutEnoughHistory(t *testing.T) {
	h := NewPriceHistory()
	h.Record("BTCUSDT", 100, 10)
	quote := models.Quote{Symbol: "BTCUSDT", Price: decimal.NewFromInt(101)}
	fired, _ := evaluateCondition(models.ConditionRSIAbove, decimal.NewFromInt(70), quote, h, 14)
	if fired {
		t.Fatal("expected no RSI condition to fire without a full warmup period")
	}
}

func TestEvaluateConditionVolumeSpikeFiresOnLargeJump(t *testing.T) {
	h := NewPriceHistory()
	for i := 0; i < 10; i++ {
		h.Record("BTCUSDT", 100, 1000)
	}
	h.Record("BTCUSDT", 100, 10000)
	quote := models.Quote{Symbol: "BTCUSDT", Price: decimal.NewFromInt(100), Volume24h: decimal.NewFromInt(10000)}
	fired, detail := evaluateCondition(models.ConditionVolumeSpike, decimal.NewFromInt(5000), quote, h, 14)
	if !fired {
		t.Fatalf("expected a 10x volume jump above threshold to fire, detail=%q", detail)
	}
}

func TestEvaluateConditionVolumeSpikeRequiresMinimumThreshold(t *testing.T) {
	h := NewPriceHistory()
	for i := 0; i < 10; i++ {
		h.Record("BTCUSDT", 100, 10)
	}
	h.Record("BTCUSDT", 100, 100)
	quote := models.Quote{Symbol: "BTCUSDT", Price: decimal.NewFromInt(100), Volume24h: decimal.NewFromInt(100)}
	fired, _ := evaluateCondition(models.ConditionVolumeSpike, decimal.NewFromInt(5000), quote, h, 14)
	if fired {
		t.Fatal("expected a spike below the configured minimum volume not to fire")
	}
}
