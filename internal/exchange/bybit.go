package exchange

import (
	"context"
	"sync"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradecore/backend/pkg/logger"
	"github.com/tradecore/backend/pkg/models"
)

// BybitAdapter wraps ccxt's Bybit binding, defaulting to linear
// perpetuals like the binance adapter defaults to futures.
type BybitAdapter struct {
	mu       sync.Mutex
	exchange *ccxt.Bybit
	sandbox  bool
}

func NewBybitAdapter(creds Credentials, sandbox bool) (*BybitAdapter, error) {
	options := map[string]interface{}{
		"apiKey": creds.APIKey,
		"secret": creds.APISecret,
	}
	if sandbox {
		options["testnet"] = true
	}
	ex := ccxt.NewBybit(options)
	ex.SetOption("defaultType", "linear")
	ex.SetOption("adjustForTimeDifference", true)

	if err := ex.LoadMarkets(); err != nil {
		return nil, classify(err, "failed to load bybit markets")
	}

	logger.Info("bybit adapter initialized", zap.Bool("sandbox", sandbox), zap.Int("markets", len(ex.Markets)))
	return &BybitAdapter{exchange: ex, sandbox: sandbox}, nil
}

func (b *BybitAdapter) Kind() models.PlatformKind { return models.PlatformBybit }

func (b *BybitAdapter) Test(ctx context.Context) (TestResult, error) {
	start := time.Now()
	balances, err := b.Balances(ctx)
	if err != nil {
		return TestResult{OK: false, Error: err.Error()}, err
	}
	return TestResult{OK: true, Latency: time.Since(start), BalanceSnapshot: balances}, nil
}

func (b *BybitAdapter) Balances(ctx context.Context) (map[string]Balance, error) {
	raw, err := withBackoff(ctx, retryAttempts, retryBaseDelay, func() (map[string]interface{}, error) {
		b.mu.Lock()
		defer b.mu.Unlock()
		raw, err := b.exchange.FetchBalance()
		if err != nil {
			return nil, classify(err, "failed to fetch bybit balance")
		}
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]Balance)
	for currency, entry := range raw {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		out[currency] = Balance{
			Free:   decimal.NewFromFloat(floatField(m, "free")),
			Locked: decimal.NewFromFloat(floatField(m, "used")),
		}
	}
	return out, nil
}

func (b *BybitAdapter) Ticker(ctx context.Context, symbol string) (models.Quote, error) {
	ticker, err := withBackoff(ctx, retryAttempts, retryBaseDelay, func() (*ccxt.Ticker, error) {
		b.mu.Lock()
		defer b.mu.Unlock()
		ticker, err := b.exchange.FetchTicker(symbol)
		if err != nil {
			return nil, classify(err, "failed to fetch bybit ticker")
		}
		return ticker, nil
	})
	if err != nil {
		return models.Quote{}, err
	}
	return quoteFromCCXTTicker(symbol, ticker), nil
}

// PlaceOrder is not retried: a retryable failure after the exchange has
// already accepted the order would risk a duplicate submission.
func (b *BybitAdapter) PlaceOrder(_ context.Context, order models.TradeOrder) (PlacedOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	side := string(order.Side)
	qty, _ := order.Quantity.Float64()

	var placed *ccxt.Order
	var err error
	if order.OrderType == models.OrderMarket {
		placed, err = b.exchange.CreateOrder(order.Symbol, "market", side, qty)
	} else {
		price, _ := order.LimitPrice.Float64()
		placed, err = b.exchange.CreateOrder(order.Symbol, "limit", side, qty, ccxt.WithCreateOrderPrice(price))
	}
	if err != nil {
		return PlacedOrder{}, classify(err, "failed to place bybit order")
	}
	return placedOrderFromCCXT(placed), nil
}

func (b *BybitAdapter) Cancel(ctx context.Context, exchangeOrderID, symbol string) error {
	_, err := withBackoff(ctx, retryAttempts, retryBaseDelay, func() (struct{}, error) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, err := b.exchange.CancelOrder(exchangeOrderID, symbol); err != nil {
			return struct{}{}, classify(err, "failed to cancel bybit order")
		}
		return struct{}{}, nil
	})
	return err
}

func (b *BybitAdapter) OrderStatus(ctx context.Context, exchangeOrderID, symbol string) (PlacedOrder, error) {
	order, err := withBackoff(ctx, retryAttempts, retryBaseDelay, func() (*ccxt.Order, error) {
		b.mu.Lock()
		defer b.mu.Unlock()
		order, err := b.exchange.FetchOrder(exchangeOrderID, symbol)
		if err != nil {
			return nil, classify(err, "failed to fetch bybit order status")
		}
		return order, nil
	})
	if err != nil {
		return PlacedOrder{}, err
	}
	return placedOrderFromCCXT(order), nil
}
