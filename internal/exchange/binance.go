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

// BinanceAdapter wraps ccxt's Binance binding. Calls are serialized
// through mu because ccxt's generated client is not safe for concurrent
// use from multiple goroutines against the same connection (grounded on
// the raw HTTP binance client's mutex/rate-limit pattern elsewhere in
// the pack).
type BinanceAdapter struct {
	mu       sync.Mutex
	exchange *ccxt.Binance
	sandbox  bool
}

// NewBinanceAdapter constructs a live Binance adapter from decrypted
// credentials. Credentials are only ever held in this constructor's
// call stack, never logged.
func NewBinanceAdapter(creds Credentials, sandbox bool) (*BinanceAdapter, error) {
	options := map[string]interface{}{
		"apiKey": creds.APIKey,
		"secret": creds.APISecret,
	}
	if sandbox {
		options["testnet"] = true
	}
	ex := ccxt.NewBinance(options)
	ex.SetOption("defaultType", "future")
	ex.SetOption("adjustForTimeDifference", true)

	if err := ex.LoadMarkets(); err != nil {
		return nil, classify(err, "failed to load binance markets")
	}

	logger.Info("binance adapter initialized", zap.Bool("sandbox", sandbox), zap.Int("markets", len(ex.Markets)))
	return &BinanceAdapter{exchange: ex, sandbox: sandbox}, nil
}

func (b *BinanceAdapter) Kind() models.PlatformKind { return models.PlatformBinance }

func (b *BinanceAdapter) Test(ctx context.Context) (TestResult, error) {
	start := time.Now()
	balances, err := b.Balances(ctx)
	if err != nil {
		return TestResult{OK: false, Error: err.Error()}, err
	}
	return TestResult{OK: true, Latency: time.Since(start), BalanceSnapshot: balances}, nil
}

func (b *BinanceAdapter) Balances(ctx context.Context) (map[string]Balance, error) {
	raw, err := withBackoff(ctx, retryAttempts, retryBaseDelay, func() (map[string]interface{}, error) {
		b.mu.Lock()
		defer b.mu.Unlock()
		raw, err := b.exchange.FetchBalance()
		if err != nil {
			return nil, classify(err, "failed to fetch binance balance")
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

func (b *BinanceAdapter) Ticker(ctx context.Context, symbol string) (models.Quote, error) {
	ticker, err := withBackoff(ctx, retryAttempts, retryBaseDelay, func() (*ccxt.Ticker, error) {
		b.mu.Lock()
		defer b.mu.Unlock()
		ticker, err := b.exchange.FetchTicker(symbol)
		if err != nil {
			return nil, classify(err, "failed to fetch binance ticker")
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
func (b *BinanceAdapter) PlaceOrder(_ context.Context, order models.TradeOrder) (PlacedOrder, error) {
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
		return PlacedOrder{}, classify(err, "failed to place binance order")
	}
	return placedOrderFromCCXT(placed), nil
}

func (b *BinanceAdapter) Cancel(ctx context.Context, exchangeOrderID, symbol string) error {
	_, err := withBackoff(ctx, retryAttempts, retryBaseDelay, func() (struct{}, error) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, err := b.exchange.CancelOrder(exchangeOrderID, symbol); err != nil {
			return struct{}{}, classify(err, "failed to cancel binance order")
		}
		return struct{}{}, nil
	})
	return err
}

func (b *BinanceAdapter) OrderStatus(ctx context.Context, exchangeOrderID, symbol string) (PlacedOrder, error) {
	order, err := withBackoff(ctx, retryAttempts, retryBaseDelay, func() (*ccxt.Order, error) {
		b.mu.Lock()
		defer b.mu.Unlock()
		order, err := b.exchange.FetchOrder(exchangeOrderID, symbol)
		if err != nil {
			return nil, classify(err, "failed to fetch binance order status")
		}
		return order, nil
	})
	if err != nil {
		return PlacedOrder{}, err
	}
	return placedOrderFromCCXT(order), nil
}

func floatField(m map[string]interface{}, key string) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return 0
}

// quoteFromCCXTTicker converts a ccxt.Ticker into the shared Quote type.
// ccxt tickers carry most numeric fields as pointers; a nil pointer maps
// to zero rather than panicking.
func quoteFromCCXTTicker(symbol string, t *ccxt.Ticker) models.Quote {
	deref := func(p *float64) decimal.Decimal {
		if p == nil {
			return decimal.Zero
		}
		return decimal.NewFromFloat(*p)
	}
	q := models.Quote{
		Symbol:       symbol,
		Price:        deref(t.Last),
		High24h:      deref(t.High),
		Low24h:       deref(t.Low),
		Volume24h:    deref(t.BaseVolume),
		Change24hPct: deref(t.Percentage),
		FetchedAt:    time.Now(),
	}
	if t.Timestamp != nil {
		q.FetchedAt = time.UnixMilli(int64(*t.Timestamp))
	}
	return q
}

// placedOrderFromCCXT converts a ccxt.Order into PlacedOrder, tolerating
// nil pointer fields the same way quoteFromCCXTTicker does.
func placedOrderFromCCXT(o *ccxt.Order) PlacedOrder {
	po := PlacedOrder{}
	if o.Id != nil {
		po.ExchangeOrderID = *o.Id
	}
	if o.Price != nil {
		po.FillPrice = decimal.NewFromFloat(*o.Price)
	}
	if o.Status != nil {
		po.Status = *o.Status
	}
	return po
}
