package notify

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tradecore/backend/pkg/models"
)

func TestFingerprintIsStableForTheSameInputs(t *testing.T) {
	a := Fingerprint("owner-1", "BTCUSDT", models.ConditionPriceAbove, decimal.NewFromFloat(65000))
	b := Fingerprint("owner-1", "BTCUSDT", models.ConditionPriceAbove, decimal.NewFromFloat(65000))
	if a != b {
		t.Fatal("expected identical inputs to produce the same fingerprint")
	}
}

func TestFingerprintDiffersByOwnerSymbolConditionOrThreshold(t *testing.T) {
	base := Fingerprint("owner-1", "BTCUSDT", models.ConditionPriceAbove, decimal.NewFromFloat(65000))

	variants := []string{
		Fingerprint("owner-2", "BTCUSDT", models.ConditionPriceAbove, decimal.NewFromFloat(65000)),
		Fingerprint("owner-1", "ETHUSDT", models.ConditionPriceAbove, decimal.NewFromFloat(65000)),
		Fingerprint("owner-1", "BTCUSDT", models.ConditionPriceBelow, decimal.NewFromFloat(65000)),
		Fingerprint("owner-1", "BTCUSDT", models.ConditionPriceAbove, decimal.NewFromFloat(70000)),
	}
	for _, v := range variants {
		if v == base {
			t.Fatalf("expected a distinct fingerprint, got a collision with base %s", base)
		}
	}
}

func TestFingerprintCollapsesThresholdsWithinTheSameBucket(t *testing.T) {
	a := Fingerprint("owner-1", "BTCUSDT", models.ConditionPriceAbove, decimal.NewFromFloat(65000.0001))
	b := Fingerprint("owner-1", "BTCUSDT", models.ConditionPriceAbove, decimal.NewFromFloat(65000.0002))
	if a != b {
		t.Fatal("expected thresholds within the same bucket to collapse to one fingerprint")
	}
}

func TestOpportunityFingerprintIsDistinctFromAlertFingerprint(t *testing.T) {
	alert := Fingerprint("owner-1", "BTCUSDT", models.ConditionRSIAbove, decimal.NewFromInt(70))
	opportunity := OpportunityFingerprint("owner-1", "BTCUSDT", "rsi_overbought")
	if alert == opportunity {
		t.Fatal("expected alert and opportunity fingerprint spaces not to collide")
	}
}
