package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradecore/backend/pkg/errs"
	"github.com/tradecore/backend/pkg/models"
)

// PortfolioRepository persists the single-row-per-user Portfolio
// ledger (§3, §4.7). internal/portfolio.Ledger is the single writer;
// this repository only ever sees one in-flight write per owner because
// the caller already holds that owner's lock.
type PortfolioRepository struct {
	db *DB
}

func NewPortfolioRepository(db *DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// Seed creates the initial portfolio row at registration time (§9 open
// question: seed balance is a product decision, internal/config.UsersConfig.SeedBalance).
func (r *PortfolioRepository) Seed(ctx context.Context, ownerID string, seedBalance decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO portfolios (owner_id, total_balance, available_balance, invested_balance, peak_equity, seed_balance, positions)
		VALUES ($1, $2, $2, 0, $2, $2, '{}')
		ON CONFLICT (owner_id) DO NOTHING
	`, ownerID, seedBalance.String())
	if err != nil {
		return errs.Wrap(errs.KindInternal, "failed to seed portfolio", err)
	}
	return nil
}

// Get loads a portfolio snapshot for reading (§4.7 "many readers").
func (r *PortfolioRepository) Get(ctx context.Context, ownerID string) (*models.Portfolio, error) {
	var row portfolioRow
	err := r.db.GetContext(ctx, &row, `
		SELECT owner_id, total_balance, available_balance, invested_balance, daily_pnl,
		       total_pnl, peak_equity, seed_balance, trading_day_start, positions, sequence, updated_at
		FROM portfolios WHERE owner_id = $1
	`, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.KindNotFound, "portfolio not found")
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to load portfolio", err)
	}
	return row.toDomain()
}

// Save writes back a mutated portfolio under the caller's per-owner
// lock, bumping Sequence monotonically for audit reconstruction (§4.7).
func (r *PortfolioRepository) Save(ctx context.Context, p *models.Portfolio) error {
	positions, err := json.Marshal(p.Positions)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "failed to marshal positions", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE portfolios SET
			total_balance = $2, available_balance = $3, invested_balance = $4,
			daily_pnl = $5, total_pnl = $6, peak_equity = $7, trading_day_start = $8,
			positions = $9, sequence = $10, updated_at = now()
		WHERE owner_id = $1
	`, p.OwnerID, p.TotalBalance.String(), p.AvailableBalance.String(), p.InvestedBalance.String(),
		p.DailyPnL.String(), p.TotalPnL.String(), p.PeakEquity.String(), p.TradingDayStart,
		positions, p.Sequence)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "failed to save portfolio", err)
	}
	return nil
}

// portfolioRow mirrors the table's text-encoded decimal columns; sqlx
// scans NUMERIC as string so we control rounding/precision explicitly
// at the money.FromFloat64-free boundary (money.Cash/Quantity applied
// by the writer, not here).
type portfolioRow struct {
	OwnerID          string `db:"owner_id"`
	TotalBalance     string `db:"total_balance"`
	AvailableBalance string `db:"available_balance"`
	InvestedBalance  string `db:"invested_balance"`
	DailyPnL         string `db:"daily_pnl"`
	TotalPnL         string `db:"total_pnl"`
	PeakEquity       string `db:"peak_equity"`
	SeedBalance      string `db:"seed_balance"`
	TradingDayStart  time.Time `db:"trading_day_start"`
	Positions        []byte `db:"positions"`
	Sequence         int64  `db:"sequence"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (row portfolioRow) toDomain() (*models.Portfolio, error) {
	p := &models.Portfolio{
		OwnerID:         row.OwnerID,
		Sequence:        row.Sequence,
		TradingDayStart: row.TradingDayStart,
		UpdatedAt:       row.UpdatedAt,
	}
	var err error
	if p.TotalBalance, err = parseDecimal(row.TotalBalance); err != nil {
		return nil, err
	}
	if p.AvailableBalance, err = parseDecimal(row.AvailableBalance); err != nil {
		return nil, err
	}
	if p.InvestedBalance, err = parseDecimal(row.InvestedBalance); err != nil {
		return nil, err
	}
	if p.DailyPnL, err = parseDecimal(row.DailyPnL); err != nil {
		return nil, err
	}
	if p.TotalPnL, err = parseDecimal(row.TotalPnL); err != nil {
		return nil, err
	}
	if p.PeakEquity, err = parseDecimal(row.PeakEquity); err != nil {
		return nil, err
	}
	if p.SeedBalance, err = parseDecimal(row.SeedBalance); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(row.Positions, &p.Positions); err != nil {
		return nil, errs.Wrap(errs.KindInternal, "failed to unmarshal positions", err)
	}
	if p.Positions == nil {
		p.Positions = map[string]models.PositionEntry{}
	}
	return p, nil
}
