package market

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradecore/backend/internal/breaker"
	"github.com/tradecore/backend/internal/config"
	"github.com/tradecore/backend/pkg/models"
)

type countingSource struct {
	name  string
	calls int64
	price float64
	fail  bool
	delay time.Duration
}

func (s *countingSource) Name() string { return s.name }

func (s *countingSource) Fetch(ctx context.Context, symbol string) (models.Quote, error) {
	atomic.AddInt64(&s.calls, 1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return models.Quote{}, ctx.Err()
		}
	}
	if s.fail {
		return models.Quote{}, errFake
	}
	return models.Quote{Symbol: symbol, Price: decimal.NewFromFloat(s.price)}, nil
}

var errFake = &fakeErr{}

type fakeErr struct{}

func (e *fakeErr) Error() string { return "fake source failure" }

func testMarketConfig() config.MarketConfig {
	return config.MarketConfig{
		FreshnessWindow: 50 * time.Millisecond,
		SourceTimeout:   time.Second,
	}
}

func newTestAggregator(t *testing.T, class models.AssetClass, sources ...Source) *Aggregator {
	t.Helper()
	a := New(testMarketConfig(), breaker.NewRegistry(config.BreakerConfig{
		FailureThreshold: 5, FailureWindow: time.Minute, Cooldown: 30 * time.Second, ProbeLimit: 1,
	}))
	a.sources[class] = sources
	return a
}

func TestQuoteCoalescesConcurrentRefreshes(t *testing.T) {
	src := &countingSource{name: "slow", price: 100, delay: 20 * time.Millisecond}
	a := newTestAggregator(t, models.AssetCrypto, src)

	var wg sync.WaitGroup
	results := make([]models.Quote, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			q, err := a.Quote(context.Background(), "BTCUSDT")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results[idx] = q
		}(i)
	}
	wg.Wait()

	if calls := atomic.LoadInt64(&src.calls); calls != 1 {
		t.Fatalf("expected exactly one upstream call, got %d", calls)
	}
	for _, q := range results {
		if !q.Price.Equal(decimal.NewFromFloat(100)) {
			t.Fatalf("expected all callers to see the same quote, got %s", q.Price)
		}
	}
}

func TestQuoteServesFromCacheWithinFreshnessWindow(t *testing.T) {
	src := &countingSource{name: "fast", price: 50}
	a := newTestAggregator(t, models.AssetCrypto, src)

	if _, err := a.Quote(context.Background(), "ETHUSDT"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Quote(context.Background(), "ETHUSDT"); err != nil {
		t.Fatal(err)
	}
	if calls := atomic.LoadInt64(&src.calls); calls != 1 {
		t.Fatalf("expected cache hit to avoid a second call, got %d calls", calls)
	}
}

func TestQuoteFallsThroughToNextSourceOnFailure(t *testing.T) {
	bad := &countingSource{name: "bad", fail: true}
	good := &countingSource{name: "good", price: 42}
	a := newTestAggregator(t, models.AssetCrypto, bad, good)

	q, err := a.Quote(context.Background(), "SOLUSDT")
	if err != nil {
		t.Fatal(err)
	}
	if !q.Price.Equal(decimal.NewFromFloat(42)) {
		t.Fatalf("expected fallback source's price, got %s", q.Price)
	}
	if q.SourceTag != "good" {
		t.Fatalf("expected source_tag to reflect the source that answered, got %s", q.SourceTag)
	}
}

func TestSyntheticFallbackIsUnambiguouslyTagged(t *testing.T) {
	a := newTestAggregator(t, models.AssetCrypto, &countingSource{name: "bad", fail: true}, NewSyntheticSource())

	q, err := a.Quote(context.Background(), "UNKNOWNCOIN")
	if err != nil {
		t.Fatal(err)
	}
	if q.SourceTag != SyntheticSourceTag {
		t.Fatalf("expected synthetic source_tag, got %s", q.SourceTag)
	}
	if !q.Price.IsPositive() {
		t.Fatal("expected synthetic source to always produce a positive price")
	}
}

func TestSkipsSourceWithOpenBreaker(t *testing.T) {
	bad := &countingSource{name: "flaky", fail: true}
	good := &countingSource{name: "backup", price: 7}
	a := New(testMarketConfig(), breaker.NewRegistry(config.BreakerConfig{
		FailureThreshold: 1, FailureWindow: time.Minute, Cooldown: time.Hour, ProbeLimit: 1,
	}))
	a.sources[models.AssetCrypto] = []Source{bad, good}

	// First call trips "flaky"'s breaker.
	if _, err := a.Quote(context.Background(), "AAAUSDT"); err != nil {
		t.Fatal(err)
	}
	// Force a fresh fetch for a different symbol so cache doesn't short-circuit.
	if _, err := a.Quote(context.Background(), "BBBUSDT"); err != nil {
		t.Fatal(err)
	}
	if calls := atomic.LoadInt64(&bad.calls); calls != 1 {
		t.Fatalf("expected open breaker to skip the second attempt, bad was called %d times", calls)
	}
}
