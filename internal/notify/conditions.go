package notify

import (
	"fmt"

	"github.com/cinar/indicator"
	"github.com/shopspring/decimal"

	"github.com/tradecore/backend/pkg/models"
)

// volumeSpikeMultiple is the factor by which the latest volume sample
// must exceed the trailing average before a volume_spike condition
// fires, independent of the alert's own threshold (which instead acts
// as the minimum volume the symbol must clear for the spike to be
// notable at all).
const volumeSpikeMultiple = 2.0

// evaluateCondition checks whether alert's condition is currently
// satisfied against the latest quote and the symbol's trailing
// history, returning a human-readable detail for the notification body
// when it fires.
func evaluateCondition(condition models.AlertCondition, threshold decimal.Decimal, quote models.Quote, history *PriceHistory, rsiPeriod int) (bool, string) {
	price := models.ToFloat64(quote.Price)
	volume := models.ToFloat64(quote.Volume24h)
	switch condition {
	case models.ConditionPriceAbove:
		t, _ := threshold.Float64()
		if price > t {
			return true, fmt.Sprintf("price %.4f crossed above %.4f", price, t)
		}
		return false, ""

	case models.ConditionPriceBelow:
		t, _ := threshold.Float64()
		if price < t {
			return true, fmt.Sprintf("price %.4f crossed below %.4f", price, t)
		}
		return false, ""

	case models.ConditionRSIAbove, models.ConditionRSIBelow:
		rsi, ok := latestRSI(history.Prices(quote.Symbol), rsiPeriod)
		if !ok {
			return false, ""
		}
		t, _ := threshold.Float64()
		if condition == models.ConditionRSIAbove && rsi > t {
			return true, fmt.Sprintf("RSI(%d) %.2f crossed above %.2f", rsiPeriod, rsi, t)
		}
		if condition == models.ConditionRSIBelow && rsi < t {
			return true, fmt.Sprintf("RSI(%d) %.2f crossed below %.2f", rsiPeriod, rsi, t)
		}
		return false, ""

	case models.ConditionVolumeSpike:
		avg, ok := history.AverageVolume(quote.Symbol)
		if !ok || avg <= 0 {
			return false, ""
		}
		t, _ := threshold.Float64()
		if volume < t {
			return false, ""
		}
		if volume >= avg*volumeSpikeMultiple {
			return true, fmt.Sprintf("volume %.2f is %.1fx the trailing average %.2f", volume, volume/avg, avg)
		}
		return false, ""

	default:
		return false, ""
	}
}

// latestRSI runs cinar/indicator's flat-function Rsi over the trailing
// closing prices and returns the most recent value; it reports false
// when there isn't yet a full period of history to seed the
// calculation.
func latestRSI(closing []float64, period int) (float64, bool) {
	if len(closing) <= period {
		return 0, false
	}
	_, rsi := indicator.Rsi(closing)
	if len(rsi) == 0 {
		return 0, false
	}
	return rsi[len(rsi)-1], true
}
