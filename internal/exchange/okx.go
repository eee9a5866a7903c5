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

// OKXAdapter wraps ccxt's OKX binding. OKX is the one supported
// exchange that requires a passphrase in addition to key/secret.
type OKXAdapter struct {
	mu       sync.Mutex
	exchange *ccxt.Okx
	sandbox  bool
}

func NewOKXAdapter(creds Credentials, sandbox bool) (*OKXAdapter, error) {
	options := map[string]interface{}{
		"apiKey":   creds.APIKey,
		"secret":   creds.APISecret,
		"password": creds.Passphrase,
	}
	if sandbox {
		options["testnet"] = true
	}
	ex := ccxt.NewOkx(options)
	ex.SetOption("defaultType", "swap")
	ex.SetOption("adjustForTimeDifference", true)

	if err := ex.LoadMarkets(); err != nil {
		return nil, classify(err, "failed to load okx markets")
	}

	logger.Info("okx adapter initialized", zap.Bool("sandbox", sandbox), zap.Int("markets", len(ex.Markets)))
	return &OKXAdapter{exchange: ex, sandbox: sandbox}, nil
}

func (o *OKXAdapter) Kind() models.PlatformKind { return models.PlatformOKX }

func (o *OKXAdapter) Test(ctx context.Context) (TestResult, error) {
	start := time.Now()
	balances, err := o.Balances(ctx)
	if err != nil {
		return TestResult{OK: false, Error: err.Error()}, err
	}
	return TestResult{OK: true, Latency: time.Since(start), BalanceSnapshot: balances}, nil
}

func (o *OKXAdapter) Balances(ctx context.Context) (map[string]Balance, error) {
	raw, err := withBackoff(ctx, retryAttempts, retryBaseDelay, func() (map[string]interface{}, error) {
		o.mu.Lock()
		defer o.mu.Unlock()
		raw, err := o.exchange.FetchBalance()
		if err != nil {
			return nil, classify(err, "failed to fetch okx balance")
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

func (o *OKXAdapter) Ticker(ctx context.Context, symbol string) (models.Quote, error) {
	ticker, err := withBackoff(ctx, retryAttempts, retryBaseDelay, func() (*ccxt.Ticker, error) {
		o.mu.Lock()
		defer o.mu.Unlock()
		ticker, err := o.exchange.FetchTicker(symbol)
		if err != nil {
			return nil, classify(err, "failed to fetch okx ticker")
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
func (o *OKXAdapter) PlaceOrder(_ context.Context, order models.TradeOrder) (PlacedOrder, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	side := string(order.Side)
	qty, _ := order.Quantity.Float64()

	var placed *ccxt.Order
	var err error
	if order.OrderType == models.OrderMarket {
		placed, err = o.exchange.CreateOrder(order.Symbol, "market", side, qty)
	} else {
		price, _ := order.LimitPrice.Float64()
		placed, err = o.exchange.CreateOrder(order.Symbol, "limit", side, qty, ccxt.WithCreateOrderPrice(price))
	}
	if err != nil {
		return PlacedOrder{}, classify(err, "failed to place okx order")
	}
	return placedOrderFromCCXT(placed), nil
}

func (o *OKXAdapter) Cancel(ctx context.Context, exchangeOrderID, symbol string) error {
	_, err := withBackoff(ctx, retryAttempts, retryBaseDelay, func() (struct{}, error) {
		o.mu.Lock()
		defer o.mu.Unlock()
		if _, err := o.exchange.CancelOrder(exchangeOrderID, symbol); err != nil {
			return struct{}{}, classify(err, "failed to cancel okx order")
		}
		return struct{}{}, nil
	})
	return err
}

func (o *OKXAdapter) OrderStatus(ctx context.Context, exchangeOrderID, symbol string) (PlacedOrder, error) {
	order, err := withBackoff(ctx, retryAttempts, retryBaseDelay, func() (*ccxt.Order, error) {
		o.mu.Lock()
		defer o.mu.Unlock()
		order, err := o.exchange.FetchOrder(exchangeOrderID, symbol)
		if err != nil {
			return nil, classify(err, "failed to fetch okx order status")
		}
		return order, nil
	})
	if err != nil {
		return PlacedOrder{}, err
	}
	return placedOrderFromCCXT(order), nil
}
