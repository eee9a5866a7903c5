// Package portfolio implements the single-writer-per-user ledger
// (§4.7): every mutation to a user's Portfolio goes through exactly one
// in-process writer for that owner, serialized by a per-owner mutex, and
// persisted with a monotonically increasing journal sequence so a crash
// mid-write leaves the audit trail reconstructible.
package portfolio

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradecore/backend/internal/risk"
	"github.com/tradecore/backend/internal/storage"
	"github.com/tradecore/backend/pkg/errs"
	"github.com/tradecore/backend/pkg/models"
)

// Ledger owns every Portfolio mutation. Grounded on the teacher's
// tracker/user_tracker split, collapsed into one type since this domain
// has no separate "global tracker" concept — every position belongs to
// exactly one user.
type Ledger struct {
	repo *storage.PortfolioRepository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLedger(repo *storage.PortfolioRepository) *Ledger {
	return &Ledger{repo: repo, locks: make(map[string]*sync.Mutex)}
}

// lockFor returns the per-owner mutex, creating it on first use. Holding
// l.mu only long enough to fetch/create the entry keeps different
// owners' writes from blocking each other.
func (l *Ledger) lockFor(ownerID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[ownerID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[ownerID] = m
	}
	return m
}

// Snapshot returns a read-only copy of ownerID's portfolio for readers
// that don't need to mutate it (§4.7 "many readers").
func (l *Ledger) Snapshot(ctx context.Context, ownerID string) (*models.Portfolio, error) {
	return l.repo.Get(ctx, ownerID)
}

// ApplyFill is the ledger's single mutation entrypoint: it loads the
// current portfolio under the owner's lock, applies a filled trade's
// effect on balances and positions, bumps the monotonic sequence, and
// persists the result — all inside the same critical section so no two
// fills for the same owner can interleave (§4.7 invariant).
func (l *Ledger) ApplyFill(ctx context.Context, ownerID string, trade models.Trade) (*models.Portfolio, error) {
	lock := l.lockFor(ownerID)
	lock.Lock()
	defer lock.Unlock()

	p, err := l.repo.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	applyPositionDelta(p, trade)
	applyCashDelta(p, trade)

	p.PeakEquity = risk.NextPeakEquity(ToRiskSnapshot(p))

	p.Sequence++
	p.UpdatedAt = time.Now()

	if err := l.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// applyPositionDelta updates the symbol's position entry for a filled
// trade, opening, adding to, reducing, or closing it as appropriate.
func applyPositionDelta(p *models.Portfolio, trade models.Trade) {
	side := models.PositionLong
	if trade.Side == models.OrderSell {
		side = models.PositionShort
	}

	existing, ok := p.Positions[trade.Symbol]
	if !ok {
		p.Positions[trade.Symbol] = models.PositionEntry{
			Symbol:       trade.Symbol,
			Quantity:     trade.Quantity,
			AveragePrice: trade.EntryPrice,
			Side:         side,
		}
		return
	}

	if existing.Side == side {
		totalQty := existing.Quantity.Add(trade.Quantity)
		weighted := existing.Quantity.Mul(existing.AveragePrice).Add(trade.Quantity.Mul(trade.EntryPrice))
		newAvg := decimal.Zero
		if totalQty.IsPositive() {
			newAvg = weighted.Div(totalQty)
		}
		p.Positions[trade.Symbol] = models.PositionEntry{
			Symbol: trade.Symbol, Quantity: totalQty, AveragePrice: newAvg, Side: side,
		}
		return
	}

	// Opposite side: reduces or flips the position.
	remaining := existing.Quantity.Sub(trade.Quantity)
	switch {
	case remaining.IsZero():
		delete(p.Positions, trade.Symbol)
	case remaining.IsPositive():
		p.Positions[trade.Symbol] = models.PositionEntry{
			Symbol: trade.Symbol, Quantity: remaining, AveragePrice: existing.AveragePrice, Side: existing.Side,
		}
	default:
		p.Positions[trade.Symbol] = models.PositionEntry{
			Symbol: trade.Symbol, Quantity: remaining.Abs(), AveragePrice: trade.EntryPrice, Side: side,
		}
	}
}

// applyCashDelta debits/credits available and invested balance for a
// filled trade's notional (§4.7).
func applyCashDelta(p *models.Portfolio, trade models.Trade) {
	notional := trade.Quantity.Mul(trade.EntryPrice)
	if trade.Side == models.OrderBuy {
		p.AvailableBalance = p.AvailableBalance.Sub(notional)
		p.InvestedBalance = p.InvestedBalance.Add(notional)
	} else {
		p.AvailableBalance = p.AvailableBalance.Add(notional)
		p.InvestedBalance = p.InvestedBalance.Sub(notional)
		if !trade.PnL.IsZero() {
			p.DailyPnL = p.DailyPnL.Add(trade.PnL)
			p.TotalPnL = p.TotalPnL.Add(trade.PnL)
		}
	}
	p.TotalBalance = p.AvailableBalance.Add(p.InvestedBalance)
}

// ResetDaily zeroes DailyPnL and rolls TradingDayStart forward, run by a
// scheduled job at the exchange's trading-day boundary (§4.7).
func (l *Ledger) ResetDaily(ctx context.Context, ownerID string) error {
	lock := l.lockFor(ownerID)
	lock.Lock()
	defer lock.Unlock()

	p, err := l.repo.Get(ctx, ownerID)
	if err != nil {
		return err
	}
	p.DailyPnL = decimal.Zero
	p.TradingDayStart = time.Now()
	p.Sequence++
	return l.repo.Save(ctx, p)
}

// ToRiskSnapshot projects a Portfolio into the shape internal/risk needs
// to evaluate an order, keeping internal/risk's package free of any
// storage/portfolio dependency.
func ToRiskSnapshot(p *models.Portfolio) risk.PortfolioSnapshot {
	exposure := decimal.Zero
	for _, pos := range p.Positions {
		exposure = exposure.Add(pos.Notional(pos.AveragePrice))
	}
	return risk.PortfolioSnapshot{
		TotalBalance:     p.TotalBalance,
		AvailableBalance: p.AvailableBalance,
		OpenExposure:     exposure,
		DailyPnL:         p.DailyPnL,
		TotalPnL:         p.TotalPnL,
		PeakEquity:       p.PeakEquity,
		SeedBalance:      p.SeedBalance,
	}
}

// ErrNoOpenPosition is returned by callers that expect an existing
// position to close against and find none.
var ErrNoOpenPosition = errs.New(errs.KindValidation, "no open position for symbol")
