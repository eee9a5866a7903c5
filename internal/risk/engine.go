// Package risk implements the Risk Engine (§4.5): a pure function from a
// proposed order, a portfolio snapshot, and a quote to a verdict. It
// never mutates state and never suspends — no network or lock
// acquisition may happen inside Evaluate (§5).
package risk

import (
	"github.com/shopspring/decimal"

	"github.com/tradecore/backend/internal/config"
	"github.com/tradecore/backend/pkg/money"
)

// Engine holds the configured limits (§4.5) and nothing else — it has
// no storage handle, no clock dependency beyond what callers pass in.
type Engine struct {
	cfg config.RiskConfig
}

// New constructs an Engine from the configured limits.
func New(cfg config.RiskConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Evaluate computes the verdict for a proposed order against the
// owner's current portfolio and the current quote, in the order defined
// by §4.5: per-trade exposure, aggregate leverage, daily drawdown, total
// drawdown against peak equity, then position-sizing advice.
func (e *Engine) Evaluate(order OrderInput, portfolio PortfolioSnapshot, quote QuoteInput) Verdict {
	advisory := e.advise(order, portfolio, quote)

	if portfolio.TotalBalance.IsZero() || portfolio.TotalBalance.IsNegative() {
		return Verdict{Kind: VerdictDeny, Reason: ReasonPerTradeExposureExceeded,
			Message: "portfolio has no balance to evaluate exposure against", Advisory: advisory}
	}

	notional := money.Notional(order.Quantity, quote.Price)
	perTradeExposure := notional.Div(portfolio.TotalBalance)
	perTradeMax := decimal.NewFromFloat(e.cfg.PerTradeMax)

	if perTradeExposure.GreaterThan(perTradeMax) {
		if reduced := e.reduceToLimit(order, portfolio, quote, perTradeMax); reduced.IsPositive() {
			return Verdict{Kind: VerdictReduce, ReducedQty: reduced, Advisory: advisory,
				Message: "quantity reduced to stay within per-trade exposure limit"}
		}
		return Verdict{Kind: VerdictDeny, Reason: ReasonPerTradeExposureExceeded, Advisory: advisory,
			Message: "order notional exceeds the per-trade exposure limit"}
	}

	leverageMax := decimal.NewFromFloat(e.cfg.LeverageMax)
	newExposure := portfolio.OpenExposure.Add(notional)
	newLeverage := newExposure.Div(portfolio.TotalBalance)
	if newLeverage.GreaterThan(leverageMax) {
		return Verdict{Kind: VerdictDeny, Reason: ReasonLeverageExceeded, Advisory: advisory,
			Message: "aggregate open exposure would exceed the leverage limit"}
	}

	if e.dailyDrawdownExceedsHard(portfolio) {
		return Verdict{Kind: VerdictDeny, Reason: ReasonDailyDrawdownExceeded, Advisory: advisory,
			Message: "daily drawdown has reached the kill-switch threshold"}
	}
	if e.dailyDrawdownExceedsSoft(portfolio) {
		return Verdict{Kind: VerdictDeny, Reason: ReasonDailyDrawdownExceeded, Advisory: advisory,
			Message: "daily drawdown has reached the soft limit; no new trades accepted today"}
	}

	if e.totalDrawdownExceeded(portfolio) {
		return Verdict{Kind: VerdictDeny, Reason: ReasonTotalDrawdownExceeded, Advisory: advisory,
			Message: "total drawdown from peak equity has reached the kill-switch threshold"}
	}

	return Verdict{Kind: VerdictAllow, Advisory: advisory}
}

// reduceToLimit computes the largest quantity that satisfies the
// per-trade exposure cap, used when a Reduce verdict is viable.
func (e *Engine) reduceToLimit(order OrderInput, portfolio PortfolioSnapshot, quote QuoteInput, perTradeMax decimal.Decimal) decimal.Decimal {
	if quote.Price.IsZero() {
		return decimal.Zero
	}
	maxNotional := portfolio.TotalBalance.Mul(perTradeMax)
	maxQty := maxNotional.Div(quote.Price)
	if maxQty.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return money.Quantity(maxQty)
}

// dailyDrawdownPercent returns abs(daily P&L)/total_balance as a positive
// fraction when P&L is negative, zero otherwise.
func (e *Engine) dailyDrawdownPercent(p PortfolioSnapshot) decimal.Decimal {
	if !p.DailyPnL.IsNegative() || p.TotalBalance.IsZero() {
		return decimal.Zero
	}
	return p.DailyPnL.Abs().Div(p.TotalBalance)
}

func (e *Engine) dailyDrawdownExceedsSoft(p PortfolioSnapshot) bool {
	return e.dailyDrawdownPercent(p).GreaterThanOrEqual(decimal.NewFromFloat(e.cfg.DailyDDSoft))
}

func (e *Engine) dailyDrawdownExceedsHard(p PortfolioSnapshot) bool {
	return e.dailyDrawdownPercent(p).GreaterThanOrEqual(decimal.NewFromFloat(e.cfg.DailyDDHard))
}

// totalDrawdownExceeded checks drawdown against the peak-equity
// high-water mark, per the supplemented behavior in SPEC_FULL.md §3.
func (e *Engine) totalDrawdownExceeded(p PortfolioSnapshot) bool {
	currentEquity := p.SeedBalance.Add(p.TotalPnL)
	peak := p.PeakEquity
	if peak.LessThan(currentEquity) {
		peak = currentEquity
	}
	if peak.IsZero() || peak.IsNegative() {
		return false
	}
	drawdown := peak.Sub(currentEquity).Div(peak)
	return drawdown.GreaterThanOrEqual(decimal.NewFromFloat(e.cfg.TotalDDMax))
}

// NextPeakEquity returns the portfolio's peak equity updated
// monotonically upward — callers persist this after every mutation so
// the next Evaluate call sees an up-to-date high-water mark. The Engine
// itself never writes state; this is a pure helper exposed for the
// Portfolio Accounting writer to call under its single-writer lock.
func NextPeakEquity(p PortfolioSnapshot) decimal.Decimal {
	currentEquity := p.SeedBalance.Add(p.TotalPnL)
	if currentEquity.GreaterThan(p.PeakEquity) {
		return currentEquity
	}
	return p.PeakEquity
}

// advise computes the position-sizing assistance of §4.5.4:
// min(equity * risk_fraction / stop_distance, per_trade_max * equity / reference_price).
func (e *Engine) advise(order OrderInput, portfolio PortfolioSnapshot, quote QuoteInput) PositionSizeAdvice {
	equity := portfolio.SeedBalance.Add(portfolio.TotalPnL)
	perTradeMax := decimal.NewFromFloat(e.cfg.PerTradeMax)

	capByExposure := decimal.Zero
	if !quote.Price.IsZero() {
		capByExposure = equity.Mul(perTradeMax).Div(quote.Price)
	}

	riskFraction := order.RiskFraction
	if riskFraction.IsZero() {
		riskFraction = decimal.NewFromFloat(e.cfg.DefaultRiskPct)
	}

	capByStop := decimal.Zero
	if order.StopDistance.IsPositive() {
		capByStop = equity.Mul(riskFraction).Div(order.StopDistance)
	}

	max := capByExposure
	if capByStop.IsPositive() && capByStop.LessThan(max) || max.IsZero() {
		max = capByStop
	}
	if max.IsNegative() {
		max = decimal.Zero
	}

	return PositionSizeAdvice{MaxQuantity: money.Quantity(max)}
}

// Snapshot is the read-only risk assessment supplemented from the
// original implementation (SPEC_FULL.md §3): leverage/drawdown usage
// versus limits, plus early warnings at 80% of each limit.
type Snapshot struct {
	CurrentLeverage    decimal.Decimal
	LeverageLimit      decimal.Decimal
	DailyDrawdownPct   decimal.Decimal
	DailyDrawdownLimit decimal.Decimal
	TotalDrawdownPct   decimal.Decimal
	TotalDrawdownLimit decimal.Decimal
	Warnings           []string
	FreezeNewTrades    bool
	CloseAllPositions  bool
}

// Assess produces a Snapshot without evaluating any particular order —
// used by the risk status endpoint and by the kill-switch checker.
func (e *Engine) Assess(p PortfolioSnapshot) Snapshot {
	leverage := decimal.Zero
	if !p.TotalBalance.IsZero() {
		leverage = p.OpenExposure.Div(p.TotalBalance)
	}
	leverageMax := decimal.NewFromFloat(e.cfg.LeverageMax)

	dailyPct := e.dailyDrawdownPercent(p)
	dailyHard := decimal.NewFromFloat(e.cfg.DailyDDHard)

	currentEquity := p.SeedBalance.Add(p.TotalPnL)
	peak := p.PeakEquity
	if peak.LessThan(currentEquity) {
		peak = currentEquity
	}
	totalPct := decimal.Zero
	if peak.IsPositive() {
		totalPct = peak.Sub(currentEquity).Div(peak)
	}
	totalMax := decimal.NewFromFloat(e.cfg.TotalDDMax)

	var warnings []string
	if leverage.GreaterThan(leverageMax.Mul(decimal.NewFromFloat(0.8))) {
		warnings = append(warnings, "leverage approaching limit")
	}
	if dailyPct.GreaterThan(dailyHard.Mul(decimal.NewFromFloat(0.8))) {
		warnings = append(warnings, "daily drawdown approaching limit")
	}
	if totalPct.GreaterThan(totalMax.Mul(decimal.NewFromFloat(0.8))) {
		warnings = append(warnings, "total drawdown approaching limit")
	}

	return Snapshot{
		CurrentLeverage:    leverage,
		LeverageLimit:      leverageMax,
		DailyDrawdownPct:   dailyPct,
		DailyDrawdownLimit: dailyHard,
		TotalDrawdownPct:   totalPct,
		TotalDrawdownLimit: totalMax,
		Warnings:           warnings,
		FreezeNewTrades:    dailyPct.GreaterThanOrEqual(dailyHard),
		CloseAllPositions:  totalPct.GreaterThanOrEqual(totalMax),
	}
}
