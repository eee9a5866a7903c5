package exchange

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradecore/backend/internal/market"
	"github.com/tradecore/backend/pkg/errs"
	"github.com/tradecore/backend/pkg/models"
)

// pendingLimitOrder is a queued limit order awaiting a marked price that
// crosses its limit (§4.4 "limit orders queue and evaluate against
// subsequent quotes").
type pendingLimitOrder struct {
	order  models.TradeOrder
	status string
}

// PaperAdapter simulates order execution against the live Market Data
// Aggregator without ever reaching a real exchange (§4.4 "paper trading
// execution engine"). Market orders fill immediately at the marked
// price with zero slippage; limit orders queue until a fetched quote
// crosses the limit.
type PaperAdapter struct {
	aggregator *market.Aggregator
	balance    decimal.Decimal

	mu      sync.Mutex
	pending map[string]*pendingLimitOrder
}

// NewPaperAdapter builds a paper adapter seeded with startingBalance
// units of quote currency (§4.4 "seed balance").
func NewPaperAdapter(aggregator *market.Aggregator, startingBalance decimal.Decimal) *PaperAdapter {
	return &PaperAdapter{
		aggregator: aggregator,
		balance:    startingBalance,
		pending:    make(map[string]*pendingLimitOrder),
	}
}

func (p *PaperAdapter) Kind() models.PlatformKind { return models.PlatformPaper }

func (p *PaperAdapter) Test(_ context.Context) (TestResult, error) {
	return TestResult{OK: true, Latency: 0, BalanceSnapshot: map[string]Balance{
		"USDT": {Free: p.currentBalance(), Locked: decimal.Zero},
	}}, nil
}

func (p *PaperAdapter) currentBalance() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance
}

func (p *PaperAdapter) Balances(_ context.Context) (map[string]Balance, error) {
	return map[string]Balance{"USDT": {Free: p.currentBalance(), Locked: decimal.Zero}}, nil
}

func (p *PaperAdapter) Ticker(ctx context.Context, symbol string) (models.Quote, error) {
	return p.aggregator.Quote(ctx, symbol)
}

// PlaceOrder fills a market order immediately at the aggregator's
// current marked price. A limit order fills immediately if it already
// crosses the market, otherwise it's queued in pending for a later
// EvaluatePending call (§4.4).
func (p *PaperAdapter) PlaceOrder(ctx context.Context, order models.TradeOrder) (PlacedOrder, error) {
	quote, err := p.aggregator.Quote(ctx, order.Symbol)
	if err != nil {
		return PlacedOrder{}, errs.Wrap(errs.KindUpstream, "paper adapter could not obtain a marked price", err)
	}

	id := uuid.NewString()

	if order.OrderType == models.OrderMarket {
		return PlacedOrder{ExchangeOrderID: id, FillPrice: quote.Price, Status: "filled"}, nil
	}

	if crossesLimit(order, quote.Price) {
		return PlacedOrder{ExchangeOrderID: id, FillPrice: quote.Price, Status: "filled"}, nil
	}

	p.mu.Lock()
	p.pending[id] = &pendingLimitOrder{order: order, status: "open"}
	p.mu.Unlock()
	return PlacedOrder{ExchangeOrderID: id, FillPrice: decimal.Zero, Status: "open"}, nil
}

// crossesLimit reports whether the current marked price already
// satisfies a limit order's fill condition.
func crossesLimit(order models.TradeOrder, marked decimal.Decimal) bool {
	if order.LimitPrice.IsZero() {
		return true
	}
	if order.Side == models.OrderBuy {
		return marked.LessThanOrEqual(order.LimitPrice)
	}
	return marked.GreaterThanOrEqual(order.LimitPrice)
}

func (p *PaperAdapter) Cancel(_ context.Context, exchangeOrderID, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pending, ok := p.pending[exchangeOrderID]
	if !ok {
		return errs.New(errs.KindNotFound, "paper order not found")
	}
	pending.status = "cancelled"
	return nil
}

func (p *PaperAdapter) OrderStatus(ctx context.Context, exchangeOrderID, symbol string) (PlacedOrder, error) {
	p.mu.Lock()
	pending, ok := p.pending[exchangeOrderID]
	p.mu.Unlock()
	if !ok {
		return PlacedOrder{ExchangeOrderID: exchangeOrderID, Status: "filled"}, nil
	}

	if pending.status != "open" {
		return PlacedOrder{ExchangeOrderID: exchangeOrderID, Status: pending.status}, nil
	}

	quote, err := p.aggregator.Quote(ctx, symbol)
	if err != nil {
		return PlacedOrder{ExchangeOrderID: exchangeOrderID, Status: "open"}, nil
	}
	if crossesLimit(pending.order, quote.Price) {
		p.mu.Lock()
		pending.status = "filled"
		p.mu.Unlock()
		return PlacedOrder{ExchangeOrderID: exchangeOrderID, FillPrice: quote.Price, Status: "filled"}, nil
	}
	return PlacedOrder{ExchangeOrderID: exchangeOrderID, Status: "open"}, nil
}

// EvaluatePending sweeps every open limit order and fills those the
// latest quote now crosses. Intended to run on a periodic tick alongside
// the aggregator's own refresh cadence (§4.4).
func (p *PaperAdapter) EvaluatePending(ctx context.Context) {
	p.mu.Lock()
	ids := make([]string, 0, len(p.pending))
	for id, po := range p.pending {
		if po.status == "open" {
			ids = append(ids, id)
		}
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.mu.Lock()
		pending := p.pending[id]
		p.mu.Unlock()
		if pending == nil {
			continue
		}
		_, _ = p.OrderStatus(ctx, id, pending.order.Symbol)
	}
}
