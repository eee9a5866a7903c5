// Package models holds the wire/storage-neutral entity types shared
// across every subsystem (§3): users, portfolios, platforms, orders,
// trades, quotes, alerts and notifications. Every monetary or quantity
// field uses shopspring/decimal per the spec's precision requirement.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role distinguishes privileged (admin) users from ordinary users.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// TradingMode governs whether and how an automated order reaches an
// adapter (§4.6.1).
type TradingMode string

const (
	ModeLearningOnly TradingMode = "learning_only"
	ModeAssisted     TradingMode = "assisted"
	ModeAutopilot    TradingMode = "autopilot"
)

// User is a registered end user (§3). Created on registration, never
// mutated except password/2FA toggles.
type User struct {
	ID             string    `json:"id" db:"id"`
	Email          string    `json:"email" db:"email"`
	Username       string    `json:"username" db:"username"`
	PasswordHash   string    `json:"-" db:"password_hash"`
	TOTPSecret     string    `json:"-" db:"totp_secret"`
	TOTPEnabled    bool      `json:"totp_enabled" db:"totp_enabled"`
	Role           Role      `json:"role" db:"role"`
	Mode           TradingMode `json:"mode" db:"mode"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// PositionSide distinguishes a long from a short holding.
type PositionSide string

const (
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
)

// PositionEntry is one open holding inside a Portfolio (§3).
type PositionEntry struct {
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"quantity"`
	AveragePrice decimal.Decimal `json:"average_price"`
	Side         PositionSide    `json:"side"`
}

// Notional returns the current notional value of the entry at the
// supplied mark price.
func (p PositionEntry) Notional(markPrice decimal.Decimal) decimal.Decimal {
	return p.Quantity.Mul(markPrice)
}

// Portfolio is the per-user authoritative ledger (§3, §4.7). Mutated
// only by the Trade Router under the single-writer lock in
// internal/portfolio.
type Portfolio struct {
	OwnerID          string                   `json:"owner_id" db:"owner_id"`
	TotalBalance     decimal.Decimal          `json:"total_balance" db:"total_balance"`
	AvailableBalance decimal.Decimal          `json:"available_balance" db:"available_balance"`
	InvestedBalance  decimal.Decimal          `json:"invested_balance" db:"invested_balance"`
	DailyPnL         decimal.Decimal          `json:"daily_pnl" db:"daily_pnl"`
	TotalPnL         decimal.Decimal          `json:"total_pnl" db:"total_pnl"`
	PeakEquity       decimal.Decimal          `json:"peak_equity" db:"peak_equity"`
	SeedBalance      decimal.Decimal          `json:"seed_balance" db:"seed_balance"`
	TradingDayStart  time.Time                `json:"trading_day_start" db:"trading_day_start"`
	Positions        map[string]PositionEntry `json:"positions"`
	Sequence         int64                    `json:"sequence" db:"sequence"`
	UpdatedAt        time.Time                `json:"updated_at" db:"updated_at"`
}

// PlatformKind enumerates the adapter variants (§4.3).
type PlatformKind string

const (
	PlatformBinance PlatformKind = "binance"
	PlatformBybit   PlatformKind = "bybit"
	PlatformOKX     PlatformKind = "okx"
	PlatformPaper   PlatformKind = "paper"
)

// PlatformStatus tracks connection health (§3).
type PlatformStatus string

const (
	PlatformDisconnected PlatformStatus = "disconnected"
	PlatformConnecting   PlatformStatus = "connecting"
	PlatformConnected    PlatformStatus = "connected"
	PlatformError        PlatformStatus = "error"
)

// Platform is a user's exchange connection (§3). Credentials are stored
// as an opaque ciphertext blob; they decrypt only inside an Adapter
// constructor (invariant 3).
type Platform struct {
	ID                  string         `json:"id" db:"id"`
	OwnerID             string         `json:"owner_id" db:"owner_id"`
	Name                string         `json:"name" db:"name"`
	Kind                PlatformKind   `json:"kind" db:"kind"`
	IsSandbox           bool           `json:"is_sandbox" db:"is_sandbox"`
	IsDefault           bool           `json:"is_default" db:"is_default"`
	EncryptedAPIKey     string         `json:"-" db:"encrypted_api_key"`
	EncryptedAPISecret  string         `json:"-" db:"encrypted_api_secret"`
	EncryptedPassphrase string         `json:"-" db:"encrypted_passphrase"`
	Status              PlatformStatus `json:"status" db:"status"`
	LastTestedAt        *time.Time     `json:"last_tested_at,omitempty" db:"last_tested_at"`
	CreatedAt           time.Time      `json:"created_at" db:"created_at"`
}

// OrderSide and OrderType mirror the wire vocabulary of §3/§6.
type OrderSide string

const (
	OrderBuy  OrderSide = "buy"
	OrderSell OrderSide = "sell"
)

type OrderType string

const (
	OrderMarket      OrderType = "market"
	OrderLimit       OrderType = "limit"
	OrderStopLoss    OrderType = "stop_loss"
	OrderTakeProfit  OrderType = "take_profit"
)

// TradeOrder is a proposed, ephemeral order (§3) submitted to the Trade
// Router. It never outlives a single submission attempt.
type TradeOrder struct {
	OwnerID       string          `json:"owner_id"`
	Symbol        string          `json:"symbol"`
	Side          OrderSide       `json:"side"`
	OrderType     OrderType       `json:"order_type"`
	Quantity      decimal.Decimal `json:"quantity"`
	LimitPrice    decimal.Decimal `json:"limit_price,omitempty"`
	StopPrice     decimal.Decimal `json:"stop_price,omitempty"`
	PlatformID    string          `json:"platform_id,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	AutomatedSource bool          `json:"-"` // true when generated by AI/strategy, triggers Assisted-mode approval
}

// ExecutionKind records whether a Trade actually hit a live exchange or
// was simulated (§3 invariant 4, glossary).
type ExecutionKind string

const (
	ExecutionPaper ExecutionKind = "paper"
	ExecutionLive  ExecutionKind = "live"
)

// TradeStatus tracks a Trade's lifecycle.
type TradeStatus string

const (
	TradeOpen      TradeStatus = "open"
	TradeClosed    TradeStatus = "closed"
	TradeCancelled TradeStatus = "cancelled"
)

// Trade is the executed, persisted record (§3).
type Trade struct {
	ID                     string          `json:"id" db:"id"`
	OwnerID                string          `json:"owner_id" db:"owner_id"`
	PlatformID             string          `json:"platform_id" db:"platform_id"`
	Symbol                 string          `json:"symbol" db:"symbol"`
	Side                   OrderSide       `json:"side" db:"side"`
	OrderType              OrderType       `json:"order_type" db:"order_type"`
	Quantity               decimal.Decimal `json:"quantity" db:"quantity"`
	EntryPrice             decimal.Decimal `json:"entry_price" db:"entry_price"`
	ExitPrice              decimal.Decimal `json:"exit_price,omitempty" db:"exit_price"`
	StopLoss               decimal.Decimal `json:"stop_loss,omitempty" db:"stop_loss"`
	TakeProfit             decimal.Decimal `json:"take_profit,omitempty" db:"take_profit"`
	Status                 TradeStatus     `json:"status" db:"status"`
	PnL                    decimal.Decimal `json:"pnl" db:"pnl"`
	ExecutionKind          ExecutionKind   `json:"execution_kind" db:"execution_kind"`
	MarketPriceAtExecution decimal.Decimal `json:"market_price_at_execution" db:"market_price_at_execution"`
	IdempotencyKey         string          `json:"idempotency_key,omitempty" db:"idempotency_key"`
	ExchangeOrderID        string          `json:"exchange_order_id,omitempty" db:"exchange_order_id"`
	CreatedAt              time.Time       `json:"created_at" db:"created_at"`
	ClosedAt               *time.Time      `json:"closed_at,omitempty" db:"closed_at"`
}

// AssetClass classifies a symbol for Aggregator source ranking (§4.2).
type AssetClass string

const (
	AssetCrypto    AssetClass = "crypto"
	AssetStock     AssetClass = "stock"
	AssetForex     AssetClass = "forex"
	AssetCommodity AssetClass = "commodity"
	AssetIndex     AssetClass = "index"
)

// Quote is the latest priced view of a symbol (§3, glossary).
type Quote struct {
	Symbol      string          `json:"symbol"`
	Price       decimal.Decimal `json:"price"`
	Change24hPct decimal.Decimal `json:"change_24h_pct"`
	Volume24h   decimal.Decimal `json:"volume_24h"`
	High24h     decimal.Decimal `json:"high_24h"`
	Low24h      decimal.Decimal `json:"low_24h"`
	AssetClass  AssetClass      `json:"asset_class"`
	SourceTag   string          `json:"source_tag"`
	FetchedAt   time.Time       `json:"fetched_at"`
}

// AlertCondition enumerates the conditions a SmartAlert can evaluate.
type AlertCondition string

const (
	ConditionPriceAbove  AlertCondition = "price_above"
	ConditionPriceBelow  AlertCondition = "price_below"
	ConditionRSIAbove    AlertCondition = "rsi_above"
	ConditionRSIBelow    AlertCondition = "rsi_below"
	ConditionVolumeSpike AlertCondition = "volume_spike"
)

// AlertState tracks a SmartAlert's lifecycle (§3 invariant 6).
type AlertState string

const (
	AlertArmed     AlertState = "armed"
	AlertTriggered AlertState = "triggered"
	AlertDismissed AlertState = "dismissed"
)

// SmartAlert is a fingerprinted user-defined watch condition (§3, §4.8).
type SmartAlert struct {
	ID          string          `json:"id" db:"id"`
	OwnerID     string          `json:"owner_id" db:"owner_id"`
	Symbol      string          `json:"symbol" db:"symbol"`
	Condition   AlertCondition  `json:"condition" db:"condition"`
	Threshold   decimal.Decimal `json:"threshold" db:"threshold"`
	Fingerprint string          `json:"fingerprint" db:"fingerprint"`
	State       AlertState      `json:"state" db:"state"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	TriggeredAt *time.Time      `json:"triggered_at,omitempty" db:"triggered_at"`
}

// NotificationKind and Priority classify a Notification (§3).
type NotificationKind string

const (
	NotifyTradeExecuted   NotificationKind = "trade_executed"
	NotifyAlertTriggered  NotificationKind = "alert_triggered"
	NotifySystem          NotificationKind = "system"
	NotifyRecommendation  NotificationKind = "recommendation"
)

type NotificationPriority string

const (
	PriorityLow      NotificationPriority = "low"
	PriorityMedium   NotificationPriority = "medium"
	PriorityHigh     NotificationPriority = "high"
	PriorityCritical NotificationPriority = "critical"
)

// Notification is a bounded, persisted user-facing message (§3).
type Notification struct {
	ID       string               `json:"id" db:"id"`
	OwnerID  string               `json:"owner_id" db:"owner_id"`
	Kind     NotificationKind     `json:"kind" db:"kind"`
	Body     string               `json:"body" db:"body"`
	Priority NotificationPriority `json:"priority" db:"priority"`
	ReadAt   *time.Time           `json:"read_at,omitempty" db:"read_at"`
	CreatedAt time.Time           `json:"created_at" db:"created_at"`
}

// MaxNotificationBodyRunes bounds Notification.Body (§3 "bounded text").
const MaxNotificationBodyRunes = 1000

// TruncateBody enforces the bound, used by every notification producer.
func TruncateBody(body string) string {
	runes := []rune(body)
	if len(runes) <= MaxNotificationBodyRunes {
		return body
	}
	return string(runes[:MaxNotificationBodyRunes])
}
