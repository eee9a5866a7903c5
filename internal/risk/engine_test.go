package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tradecore/backend/internal/config"
)

func testConfig() config.RiskConfig {
	return config.RiskConfig{
		PerTradeMax:    0.005,
		LeverageMax:    3.0,
		DailyDDSoft:    0.03,
		DailyDDHard:    0.05,
		TotalDDMax:     0.05,
		DefaultRiskPct: 0.01,
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestEvaluateAllowsOrderWithinLimits(t *testing.T) {
	e := New(testConfig())
	order := OrderInput{Symbol: "BTCUSDT", Side: "buy", Quantity: dec("0.001")}
	snap := PortfolioSnapshot{TotalBalance: dec("100000"), SeedBalance: dec("100000")}
	quote := QuoteInput{Price: dec("40000")}

	v := e.Evaluate(order, snap, quote)

	require.Equal(t, VerdictAllow, v.Kind)
}

func TestEvaluateReducesOversizedOrder(t *testing.T) {
	e := New(testConfig())
	// notional = 1 * 40000 = 40000, against a 100000 balance that's 40%
	// exposure, far past the 0.5% per-trade cap.
	order := OrderInput{Symbol: "BTCUSDT", Side: "buy", Quantity: dec("1")}
	snap := PortfolioSnapshot{TotalBalance: dec("100000"), SeedBalance: dec("100000")}
	quote := QuoteInput{Price: dec("40000")}

	v := e.Evaluate(order, snap, quote)

	require.Equal(t, VerdictReduce, v.Kind)
	// max notional = 100000 * 0.005 = 500, at price 40000 -> 0.0125 qty
	require.True(t, v.ReducedQty.Equal(dec("0.0125")), "expected reduced qty 0.0125, got %s", v.ReducedQty)
}

func TestEvaluateDeniesZeroBalancePortfolio(t *testing.T) {
	e := New(testConfig())
	order := OrderInput{Symbol: "BTCUSDT", Side: "buy", Quantity: dec("0.001")}
	snap := PortfolioSnapshot{TotalBalance: decimal.Zero}
	quote := QuoteInput{Price: dec("40000")}

	v := e.Evaluate(order, snap, quote)

	require.Equal(t, VerdictDeny, v.Kind)
	require.Equal(t, ReasonPerTradeExposureExceeded, v.Reason)
}

func TestEvaluateDeniesLeverageExceeded(t *testing.T) {
	e := New(testConfig())
	order := OrderInput{Symbol: "BTCUSDT", Side: "buy", Quantity: dec("0.001")}
	snap := PortfolioSnapshot{
		TotalBalance: dec("100000"),
		SeedBalance:  dec("100000"),
		OpenExposure: dec("299980"), // already near the 3x cap of 300000
	}
	quote := QuoteInput{Price: dec("40000")}

	v := e.Evaluate(order, snap, quote)

	require.Equal(t, VerdictDeny, v.Kind)
	require.Equal(t, ReasonLeverageExceeded, v.Reason)
}

func TestEvaluateDeniesDailyDrawdownHard(t *testing.T) {
	e := New(testConfig())
	order := OrderInput{Symbol: "BTCUSDT", Side: "buy", Quantity: dec("0.0001")}
	snap := PortfolioSnapshot{
		TotalBalance: dec("100000"),
		SeedBalance:  dec("100000"),
		DailyPnL:     dec("-5010"), // 5.01% of equity, past daily_dd_hard
	}
	quote := QuoteInput{Price: dec("40000")}

	v := e.Evaluate(order, snap, quote)

	require.Equal(t, VerdictDeny, v.Kind)
	require.Equal(t, ReasonDailyDrawdownExceeded, v.Reason)
}

func TestEvaluateDeniesDailyDrawdownSoftBeforeHard(t *testing.T) {
	e := New(testConfig())
	order := OrderInput{Symbol: "BTCUSDT", Side: "buy", Quantity: dec("0.0001")}
	snap := PortfolioSnapshot{
		TotalBalance: dec("100000"),
		SeedBalance:  dec("100000"),
		DailyPnL:     dec("-3500"), // past the 3% soft limit, short of the 5% hard one
	}
	quote := QuoteInput{Price: dec("40000")}

	v := e.Evaluate(order, snap, quote)

	require.Equal(t, VerdictDeny, v.Kind)
	require.Equal(t, ReasonDailyDrawdownExceeded, v.Reason)
}

func TestEvaluateDeniesTotalDrawdownFromPeakEquity(t *testing.T) {
	e := New(testConfig())
	order := OrderInput{Symbol: "BTCUSDT", Side: "buy", Quantity: dec("0.0001")}
	snap := PortfolioSnapshot{
		TotalBalance: dec("100000"),
		SeedBalance:  dec("50000"),
		TotalPnL:     dec("0"),
		PeakEquity:   dec("52700"), // current equity 50000 is 5.12% below peak
	}
	quote := QuoteInput{Price: dec("40000")}

	v := e.Evaluate(order, snap, quote)

	require.Equal(t, VerdictDeny, v.Kind)
	require.Equal(t, ReasonTotalDrawdownExceeded, v.Reason)
}

func TestEvaluateAdvisoryCapsByStopDistanceAndExposure(t *testing.T) {
	e := New(testConfig())
	order := OrderInput{
		Symbol: "BTCUSDT", Side: "buy", Quantity: dec("0.0001"),
		StopDistance: dec("500"), RiskFraction: dec("0.01"),
	}
	snap := PortfolioSnapshot{TotalBalance: dec("100000"), SeedBalance: dec("100000")}
	quote := QuoteInput{Price: dec("40000")}

	v := e.Evaluate(order, snap, quote)

	require.Equal(t, VerdictAllow, v.Kind)
	// cap by exposure: 100000 * 0.005 / 40000 = 0.0125
	// cap by stop: 100000 * 0.01 / 500 = 2
	// the tighter of the two wins.
	require.True(t, v.Advisory.MaxQuantity.Equal(dec("0.0125")), "expected advisory 0.0125, got %s", v.Advisory.MaxQuantity)
}

func TestAssessFlagsFreezeNewTradesOnDailyHard(t *testing.T) {
	e := New(testConfig())
	snap := PortfolioSnapshot{
		TotalBalance: dec("100000"),
		SeedBalance:  dec("100000"),
		DailyPnL:     dec("-5001"),
	}

	s := e.Assess(snap)

	require.True(t, s.FreezeNewTrades)
	require.False(t, s.CloseAllPositions)
}

func TestAssessFlagsCloseAllPositionsOnTotalDrawdown(t *testing.T) {
	e := New(testConfig())
	snap := PortfolioSnapshot{
		TotalBalance: dec("100000"),
		SeedBalance:  dec("50000"),
		PeakEquity:   dec("52700"),
	}

	s := e.Assess(snap)

	require.True(t, s.CloseAllPositions)
}

func TestAssessWarnsApproachingLeverageLimit(t *testing.T) {
	e := New(testConfig())
	snap := PortfolioSnapshot{
		TotalBalance: dec("100000"),
		SeedBalance:  dec("100000"),
		OpenExposure: dec("250000"), // 2.5x, above 80% of the 3x cap
	}

	s := e.Assess(snap)

	require.Contains(t, s.Warnings, "leverage approaching limit")
	require.False(t, s.FreezeNewTrades)
}

func TestNextPeakEquityIsMonotonic(t *testing.T) {
	snap := PortfolioSnapshot{SeedBalance: dec("1000"), TotalPnL: dec("-50"), PeakEquity: dec("1200")}

	require.True(t, NextPeakEquity(snap).Equal(dec("1200")))

	snap.TotalPnL = dec("500")
	require.True(t, NextPeakEquity(snap).Equal(dec("1500")))
}
