package risk

import "github.com/shopspring/decimal"

// Verdict is the Risk Engine's pure decision (§4.5). The engine never
// mutates state; the Trade Router applies the verdict and emits audit
// records.
type VerdictKind string

const (
	VerdictAllow  VerdictKind = "allow"
	VerdictReduce VerdictKind = "reduce"
	VerdictDeny   VerdictKind = "deny"
)

// DenyReason enumerates the stable machine-readable reasons the HTTP
// boundary surfaces verbatim in a 422 RiskDenied body.
type DenyReason string

const (
	ReasonPerTradeExposureExceeded DenyReason = "per_trade_exposure_exceeded"
	ReasonLeverageExceeded         DenyReason = "leverage_exceeded"
	ReasonDailyDrawdownExceeded   DenyReason = "daily_drawdown_exceeded"
	ReasonTotalDrawdownExceeded   DenyReason = "total_drawdown_exceeded"
)

// Verdict carries the decision plus enough detail for an audit record
// and a human-facing message.
type Verdict struct {
	Kind       VerdictKind
	ReducedQty decimal.Decimal
	Reason     DenyReason
	Message    string
	Advisory   PositionSizeAdvice
}

// PositionSizeAdvice is the position-sizing assistance of §4.5.4,
// returned alongside every verdict regardless of outcome.
type PositionSizeAdvice struct {
	MaxQuantity decimal.Decimal
}

// OrderInput is the subset of a proposed TradeOrder the engine needs.
type OrderInput struct {
	Symbol       string
	Side         string // "buy" | "sell"
	Quantity     decimal.Decimal
	StopDistance decimal.Decimal // absolute price distance to stop-loss, zero if not provided
	RiskFraction decimal.Decimal // fraction of equity to risk on this trade, from user/risk settings
}

// PortfolioSnapshot is the subset of Portfolio state the engine reads.
type PortfolioSnapshot struct {
	TotalBalance     decimal.Decimal
	AvailableBalance decimal.Decimal
	OpenExposure     decimal.Decimal // sum of notional value across open trades
	DailyPnL         decimal.Decimal // realized+unrealized since start of user's trading day
	TotalPnL         decimal.Decimal // realized+unrealized since account inception
	PeakEquity       decimal.Decimal // high-water mark of seed_balance+total_pnl, monotonic upward
	SeedBalance      decimal.Decimal
}

// QuoteInput is the subset of a Quote the engine needs.
type QuoteInput struct {
	Price decimal.Decimal
}
