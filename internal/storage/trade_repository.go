package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tradecore/backend/pkg/errs"
	"github.com/tradecore/backend/pkg/models"
)

// TradeRepository persists executed Trade records (§3). Rows are
// written once by the Trade Router's Recording state and mutated only
// on close.
type TradeRepository struct {
	db *DB
}

func NewTradeRepository(db *DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create writes a new Trade, honoring the idempotency-key uniqueness
// constraint (§8 property 6): a duplicate POST /trades with the same
// key returns the already-recorded Trade instead of inserting twice.
func (r *TradeRepository) Create(ctx context.Context, t *models.Trade) (*models.Trade, error) {
	var out models.Trade
	err := r.db.GetContext(ctx, &out, `
		INSERT INTO trades (owner_id, platform_id, symbol, side, order_type, quantity, entry_price,
			stop_loss, take_profit, status, pnl, execution_kind, market_price_at_execution,
			idempotency_key, exchange_order_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id, owner_id, platform_id, symbol, side, order_type, quantity, entry_price,
			exit_price, stop_loss, take_profit, status, pnl, execution_kind,
			market_price_at_execution, idempotency_key, exchange_order_id, created_at, closed_at
	`, t.OwnerID, nullableString(t.PlatformID), t.Symbol, t.Side, t.OrderType, t.Quantity.String(),
		t.EntryPrice.String(), nullableDecimal(t.StopLoss), nullableDecimal(t.TakeProfit), t.Status,
		t.PnL.String(), t.ExecutionKind, t.MarketPriceAtExecution.String(), nullableString(t.IdempotencyKey),
		nullableString(t.ExchangeOrderID))
	if err != nil {
		if isUniqueViolation(err) && t.IdempotencyKey != "" {
			if existing, ferr := r.FindByIdempotencyKey(ctx, t.OwnerID, t.IdempotencyKey); ferr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, errs.Wrap(errs.KindInternal, "failed to record trade", err)
	}
	return &out, nil
}

// FindByIdempotencyKey implements §8 property 6's dedup lookup.
func (r *TradeRepository) FindByIdempotencyKey(ctx context.Context, ownerID, key string) (*models.Trade, error) {
	var out models.Trade
	err := r.db.GetContext(ctx, &out, `
		SELECT id, owner_id, platform_id, symbol, side, order_type, quantity, entry_price,
			exit_price, stop_loss, take_profit, status, pnl, execution_kind,
			market_price_at_execution, idempotency_key, exchange_order_id, created_at, closed_at
		FROM trades WHERE owner_id = $1 AND idempotency_key = $2
	`, ownerID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to look up idempotency key", err)
	}
	return &out, nil
}

func (r *TradeRepository) ListOpenForOwner(ctx context.Context, ownerID string) ([]models.Trade, error) {
	var out []models.Trade
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, owner_id, platform_id, symbol, side, order_type, quantity, entry_price,
			exit_price, stop_loss, take_profit, status, pnl, execution_kind,
			market_price_at_execution, idempotency_key, exchange_order_id, created_at, closed_at
		FROM trades WHERE owner_id = $1 AND status = 'open'
		ORDER BY created_at ASC
	`, ownerID)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to list open trades", err)
	}
	return out, nil
}

func (r *TradeRepository) ListForOwner(ctx context.Context, ownerID string) ([]models.Trade, error) {
	var out []models.Trade
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, owner_id, platform_id, symbol, side, order_type, quantity, entry_price,
			exit_price, stop_loss, take_profit, status, pnl, execution_kind,
			market_price_at_execution, idempotency_key, exchange_order_id, created_at, closed_at
		FROM trades WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to list trades", err)
	}
	return out, nil
}

// Close records a realized exit (§4.6.4).
func (r *TradeRepository) Close(ctx context.Context, tradeID string, exitPrice, pnl sql.NullString) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE trades SET exit_price = $2, pnl = $3, status = 'closed', closed_at = now() WHERE id = $1
	`, tradeID, exitPrice, pnl)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "failed to close trade", err)
	}
	return nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableDecimal(d interface{ IsZero() bool }) interface{} {
	if d == nil || d.IsZero() {
		return nil
	}
	if stringer, ok := d.(interface{ String() string }); ok {
		return stringer.String()
	}
	return nil
}
