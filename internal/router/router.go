// Package router implements the Trade Router (§4.6): the single path
// from a proposed order to a recorded Trade. Every submission walks the
// same state sequence — Idle, Proposing, RiskChecking, BreakerChecking,
// Submitting, Recording, back to Idle — under a per-user distributed
// lock so two submissions for the same owner can never interleave, even
// across horizontally-scaled instances.
package router

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/tradecore/backend/internal/breaker"
	"github.com/tradecore/backend/internal/config"
	"github.com/tradecore/backend/internal/exchange"
	"github.com/tradecore/backend/internal/market"
	"github.com/tradecore/backend/internal/portfolio"
	"github.com/tradecore/backend/internal/risk"
	"github.com/tradecore/backend/pkg/errs"
	"github.com/tradecore/backend/pkg/logger"
	"github.com/tradecore/backend/pkg/models"
)

// PlatformStore is the subset of internal/storage.PlatformRepository the
// Trade Router reads from when resolving which platform an order
// executes against (§4.6.2).
type PlatformStore interface {
	Get(ctx context.Context, id string) (*models.Platform, error)
	ListForOwner(ctx context.Context, ownerID string) ([]models.Platform, error)
}

// TradeStore is the subset of internal/storage.TradeRepository the
// Trade Router needs to dedup, record, and later close trades.
type TradeStore interface {
	FindByIdempotencyKey(ctx context.Context, ownerID, key string) (*models.Trade, error)
	Create(ctx context.Context, t *models.Trade) (*models.Trade, error)
	ListOpenForOwner(ctx context.Context, ownerID string) ([]models.Trade, error)
	Close(ctx context.Context, tradeID string, exitPrice, pnl sql.NullString) error
}

// LedgerStore is the subset of internal/portfolio.Ledger the Trade
// Router needs to read a snapshot for risk evaluation and apply a fill
// once a trade has executed.
type LedgerStore interface {
	Snapshot(ctx context.Context, ownerID string) (*models.Portfolio, error)
	ApplyFill(ctx context.Context, ownerID string, trade models.Trade) (*models.Portfolio, error)
}

// LockManager acquires the per-owner submission lock (§4.6.3a) and
// returns a release function. internal/redisx.Client implements this
// against RedLock; tests supply an in-process fake instead of standing
// up real Redis.
type LockManager interface {
	Lock(ctx context.Context, name string, ttl time.Duration) (func(), error)
}

// State names the Trade Router's position in its submission state
// machine (§4.6.3), surfaced on SubmitResult for observability.
type State string

const (
	StateIdle            State = "idle"
	StateProposing       State = "proposing"
	StateRiskChecking    State = "risk_checking"
	StateBreakerChecking State = "breaker_checking"
	StateSubmitting      State = "submitting"
	StateRecording       State = "recording"
)

// submissionLockName derives the Redlock key for an owner's submission
// serialization, kept distinct from any other per-owner lock key.
func submissionLockName(ownerID string) string { return "router:submit:" + ownerID }

const submissionLockTTL = 10 * time.Second

// SubmitResult reports the outcome of one submission attempt, including
// the last state reached on failure so callers can tell a deny from a
// downstream fault.
type SubmitResult struct {
	Trade        *models.Trade
	Verdict      risk.Verdict
	ReachedState State
}

// Router wires the Risk Engine, Circuit Breaker registry, Market Data
// Aggregator, exchange adapter factory, and the Portfolio Ledger into
// one gated submission path (§4.6). Grounded on the teacher's bot
// Manager orchestration shape (a mutex-guarded map driving per-user
// work), generalized here into an explicit state machine instead of a
// long-lived goroutine per user.
type Router struct {
	cfg         config.RouterConfig
	riskEngine  *risk.Engine
	breakers    *breaker.Registry
	aggregator  *market.Aggregator
	factory     *exchange.Factory
	ledger      LedgerStore
	platforms   PlatformStore
	trades      TradeStore
	locks       LockManager
	killSwitch  *KillSwitchRegistry
	approvals   *ApprovalQueue
}

func New(
	cfg config.RouterConfig,
	riskEngine *risk.Engine,
	breakers *breaker.Registry,
	aggregator *market.Aggregator,
	factory *exchange.Factory,
	ledger LedgerStore,
	platforms PlatformStore,
	trades TradeStore,
	locks LockManager,
) *Router {
	return &Router{
		cfg: cfg, riskEngine: riskEngine, breakers: breakers, aggregator: aggregator,
		factory: factory, ledger: ledger, platforms: platforms, trades: trades, locks: locks,
		killSwitch: NewKillSwitchRegistry(),
		approvals:  NewApprovalQueue(cfg.AssistedApprovalTTL),
	}
}

// KillSwitch exposes the registry for HTTP handlers and the risk-status
// poller that auto-activates it (§4.6.5).
func (r *Router) KillSwitch() *KillSwitchRegistry { return r.killSwitch }

// Approvals exposes the Assisted-mode queue for HTTP handlers.
func (r *Router) Approvals() *ApprovalQueue { return r.approvals }

// Submit drives one order through the full state machine. mode governs
// whether the order reaches an adapter directly (Autopilot), is queued
// for approval (Assisted), or is rejected outright (LearningOnly,
// unless the caller is a human approving a queued order — see
// ApproveQueued).
func (r *Router) Submit(ctx context.Context, order models.TradeOrder, mode models.TradingMode) (SubmitResult, error) {
	if r.killSwitch.IsActive(order.OwnerID) {
		return SubmitResult{ReachedState: StateIdle}, errs.New(errs.KindForbidden, "kill switch is active for this account")
	}

	state := StateProposing
	if mode == models.ModeLearningOnly {
		return SubmitResult{ReachedState: state}, errs.New(errs.KindForbidden, "learning_only mode does not accept order submissions")
	}

	if mode == models.ModeAssisted && order.AutomatedSource {
		r.approvals.Enqueue(order)
		return SubmitResult{ReachedState: state}, nil
	}

	release, err := r.acquireLock(ctx, order.OwnerID)
	if err != nil {
		return SubmitResult{ReachedState: state}, err
	}
	defer release()

	return r.submitLocked(ctx, order)
}

// ApproveQueued promotes a previously queued Assisted-mode proposal into
// a live submission (§4.6.1 "assisted: proposals queue for approval").
func (r *Router) ApproveQueued(ctx context.Context, ownerID, proposalID string) (SubmitResult, error) {
	order, ok := r.approvals.Approve(ownerID, proposalID)
	if !ok {
		return SubmitResult{}, errs.New(errs.KindNotFound, "proposal not found or expired")
	}

	release, err := r.acquireLock(ctx, ownerID)
	if err != nil {
		return SubmitResult{}, err
	}
	defer release()

	return r.submitLocked(ctx, order)
}

func (r *Router) acquireLock(ctx context.Context, ownerID string) (func(), error) {
	release, err := r.locks.Lock(ctx, submissionLockName(ownerID), submissionLockTTL)
	if err != nil {
		return nil, errs.Wrap(errs.KindConflict, "another submission is already in flight for this account", err)
	}
	return release, nil
}

// submitLocked assumes the caller already holds the per-owner
// submission lock and runs RiskChecking -> BreakerChecking ->
// Submitting -> Recording.
func (r *Router) submitLocked(ctx context.Context, order models.TradeOrder) (SubmitResult, error) {
	if order.IdempotencyKey != "" {
		if existing, _ := r.trades.FindByIdempotencyKey(ctx, order.OwnerID, order.IdempotencyKey); existing != nil {
			return SubmitResult{Trade: existing, ReachedState: StateRecording}, nil
		}
	}

	snapshot, err := r.ledger.Snapshot(ctx, order.OwnerID)
	if err != nil {
		return SubmitResult{ReachedState: StateRiskChecking}, err
	}

	quote, err := r.aggregator.Quote(ctx, order.Symbol)
	if err != nil {
		return SubmitResult{ReachedState: StateRiskChecking}, errs.Wrap(errs.KindUpstream, "could not obtain a quote to evaluate the order", err)
	}
	if age, ok := r.aggregator.Age(order.Symbol); ok && age > r.cfg.QuoteFreshnessMax {
		r.aggregator.InvalidateSource(quote.SourceTag)
		return SubmitResult{ReachedState: StateRiskChecking}, errs.New(errs.KindUpstream, "quote is stale; submission aborted")
	}

	verdict := r.riskEngine.Evaluate(risk.OrderInput{
		Symbol: order.Symbol, Side: string(order.Side), Quantity: order.Quantity,
	}, portfolio.ToRiskSnapshot(snapshot), risk.QuoteInput{Price: quote.Price})

	if verdict.Kind == risk.VerdictDeny {
		return SubmitResult{Verdict: verdict, ReachedState: StateRiskChecking}, errs.New(errs.KindRiskDenied, verdict.Message)
	}
	if verdict.Kind == risk.VerdictReduce {
		order.Quantity = verdict.ReducedQty
	}

	platformID := order.PlatformID
	platform, err := r.resolvePlatform(ctx, order.OwnerID, platformID)
	if err != nil {
		return SubmitResult{Verdict: verdict, ReachedState: StateSubmitting}, err
	}

	tradeBreaker := r.breakers.Get(breaker.ResourceTradeExecution)
	exchangeBreaker := r.breakers.Get(exchangeBreakerKey(platform.Kind))
	if err := tradeBreaker.Allow(); err != nil {
		return SubmitResult{Verdict: verdict, ReachedState: StateBreakerChecking}, errs.Wrap(errs.KindBreaker, "trade execution is currently circuit-broken", err)
	}
	if err := exchangeBreaker.Allow(); err != nil {
		return SubmitResult{Verdict: verdict, ReachedState: StateBreakerChecking}, errs.Wrap(errs.KindBreaker, "the chosen platform's exchange API is currently circuit-broken", err)
	}

	adapter, err := r.factory.Build(*platform)
	if err != nil {
		tradeBreaker.RecordFailure()
		exchangeBreaker.RecordFailure()
		return SubmitResult{Verdict: verdict, ReachedState: StateSubmitting}, err
	}

	placed, err := adapter.PlaceOrder(ctx, order)
	if err != nil {
		tradeBreaker.RecordFailure()
		exchangeBreaker.RecordFailure()
		return SubmitResult{Verdict: verdict, ReachedState: StateSubmitting}, err
	}
	tradeBreaker.RecordSuccess()
	exchangeBreaker.RecordSuccess()

	execKind := models.ExecutionLive
	if platform.Kind == models.PlatformPaper {
		execKind = models.ExecutionPaper
	}

	trade := &models.Trade{
		OwnerID: order.OwnerID, PlatformID: platform.ID, Symbol: order.Symbol, Side: order.Side,
		OrderType: order.OrderType, Quantity: order.Quantity, EntryPrice: placed.FillPrice,
		Status: models.TradeOpen, ExecutionKind: execKind, MarketPriceAtExecution: quote.Price,
		IdempotencyKey: order.IdempotencyKey, ExchangeOrderID: placed.ExchangeOrderID,
	}

	recorded, err := r.trades.Create(ctx, trade)
	if err != nil {
		return SubmitResult{Verdict: verdict, ReachedState: StateRecording}, err
	}

	if _, err := r.ledger.ApplyFill(ctx, order.OwnerID, *recorded); err != nil {
		logger.Error("trade recorded but ledger update failed", zap.String("trade_id", recorded.ID), zap.Error(err))
	}

	return SubmitResult{Trade: recorded, Verdict: verdict, ReachedState: StateRecording}, nil
}

// exchangeBreakerKey scopes the exchange_api breaker per platform kind
// so a binance outage doesn't spuriously trip bybit/okx submissions too.
func exchangeBreakerKey(kind models.PlatformKind) string {
	return breaker.ResourceExchangeAPI + ":" + string(kind)
}

// resolvePlatform implements §4.6.2's platform-choice rule: prefer a
// connected, non-paper platform (the default-marked one, else the most
// recently successfully tested — ListForOwner already orders by that),
// otherwise fall back to paper. Paper is never a stored row
// (platform.Service.Create refuses to create one), so the fallback is
// constructed in memory rather than searched for.
func (r *Router) resolvePlatform(ctx context.Context, ownerID, explicitID string) (*models.Platform, error) {
	if explicitID != "" {
		return r.platforms.Get(ctx, explicitID)
	}

	platforms, err := r.platforms.ListForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	for _, p := range platforms {
		if p.Status == models.PlatformConnected && p.Kind != models.PlatformPaper {
			return &p, nil
		}
	}
	return &models.Platform{OwnerID: ownerID, Kind: models.PlatformPaper}, nil
}

// ActivateKillSwitchAndClose halts ownerID's trading and iterates their
// open trades oldest-first issuing adapter close orders; a failure
// closing one trade is logged but does not abort the sweep (§4.6.5
// "failures during mass-close are recorded but do not abort the sweep").
func (r *Router) ActivateKillSwitchAndClose(ctx context.Context, ownerID string, reason KillSwitchReason, triggeredBy string) error {
	r.killSwitch.Activate(ownerID, reason, triggeredBy)

	open, err := r.trades.ListOpenForOwner(ctx, ownerID)
	if err != nil {
		return err
	}
	for _, trade := range open {
		if err := r.closeTrade(ctx, trade); err != nil {
			logger.Error("kill switch mass-close failed for one trade",
				zap.String("owner_id", ownerID), zap.String("trade_id", trade.ID), zap.Error(err))
		}
	}
	return nil
}

// closeTrade submits an opposite-side market order for trade's full
// quantity against its original platform and realizes P&L (§4.6.4).
func (r *Router) closeTrade(ctx context.Context, trade models.Trade) error {
	platform := &models.Platform{OwnerID: trade.OwnerID, Kind: models.PlatformPaper}
	if trade.ExecutionKind != models.ExecutionPaper {
		var err error
		platform, err = r.platforms.Get(ctx, trade.PlatformID)
		if err != nil {
			return err
		}
	}
	adapter, err := r.factory.Build(*platform)
	if err != nil {
		return err
	}

	closeSide := models.OrderSell
	if trade.Side == models.OrderSell {
		closeSide = models.OrderBuy
	}
	placed, err := adapter.PlaceOrder(ctx, models.TradeOrder{
		OwnerID: trade.OwnerID, Symbol: trade.Symbol, Side: closeSide,
		OrderType: models.OrderMarket, Quantity: trade.Quantity, PlatformID: trade.PlatformID,
	})
	if err != nil {
		return err
	}

	pnl := trade.Quantity.Mul(placed.FillPrice.Sub(trade.EntryPrice))
	if trade.Side == models.OrderSell {
		pnl = pnl.Neg()
	}
	exitPrice := sqlNullString(placed.FillPrice.String())
	pnlStr := sqlNullString(pnl.String())
	if err := r.trades.Close(ctx, trade.ID, exitPrice, pnlStr); err != nil {
		return err
	}

	closedTrade := trade
	closedTrade.ExitPrice = placed.FillPrice
	closedTrade.PnL = pnl
	closedTrade.Side = closeSide
	_, err = r.ledger.ApplyFill(ctx, trade.OwnerID, closedTrade)
	return err
}

func sqlNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
