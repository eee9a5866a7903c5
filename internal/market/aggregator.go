// Package market implements the Market Data Aggregator (§4.2):
// ranked, per-asset-class source fallback behind a per-symbol freshness
// cache with in-flight refresh coalescing.
package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tradecore/backend/internal/breaker"
	"github.com/tradecore/backend/internal/config"
	"github.com/tradecore/backend/pkg/errs"
	"github.com/tradecore/backend/pkg/logger"
	"github.com/tradecore/backend/pkg/models"
)

// MissingQuote is returned for a symbol that every source (including
// the synthetic fallback) could not resolve — practically unreachable
// since SyntheticSource never errors, but kept so quotes() has an
// explicit not-found representation per §4.2's contract.
type MissingQuote struct {
	Symbol string
	Reason string
}

// cacheEntry holds the most recently fetched Quote plus a monotonic
// clock reading so freshness checks aren't affected by wall-clock
// adjustments.
type cacheEntry struct {
	quote     models.Quote
	fetchedAt time.Time
	monotonic time.Time
}

// Aggregator serves Quotes from a per-symbol cache, refreshing through
// ranked sources per asset class when the cached value is stale.
type Aggregator struct {
	cfg      config.MarketConfig
	breakers *breaker.Registry
	sources  map[models.AssetClass][]Source

	mu    sync.RWMutex
	cache map[string]cacheEntry

	inflightMu sync.Mutex
	inflight   map[string]*coalescedFetch
}

// coalescedFetch is the per-symbol sentinel: the first caller to see a
// stale symbol starts the refresh and every concurrent caller for the
// same symbol awaits its result instead of issuing a second upstream
// call (§4.2, §5 "in-flight refresh deduplication via a per-symbol
// sentinel").
type coalescedFetch struct {
	done  chan struct{}
	quote models.Quote
	err   error
}

// New builds an Aggregator wired to the default source ranking per
// asset class (§4.2): a live source, then the synthetic fallback.
func New(cfg config.MarketConfig, breakers *breaker.Registry) *Aggregator {
	crypto := NewCryptoSource(cfg.CryptoSourceURL, cfg.SourceTimeout)
	equity := NewEquitySource(cfg.EquitySourceURL, cfg.SourceTimeout)
	forex := NewForexSource(cfg.ForexSourceURL, cfg.SourceTimeout)
	synthetic := NewSyntheticSource()

	return &Aggregator{
		cfg:      cfg,
		breakers: breakers,
		sources: map[models.AssetClass][]Source{
			models.AssetCrypto:    {crypto, synthetic},
			models.AssetStock:     {equity, synthetic},
			models.AssetForex:     {forex, synthetic},
			models.AssetCommodity: {synthetic},
			models.AssetIndex:     {synthetic},
		},
		cache:    make(map[string]cacheEntry),
		inflight: make(map[string]*coalescedFetch),
	}
}

// breakerKey identifies a source's circuit breaker; kept distinct from
// the source's display Name so a future rename doesn't silently reset
// trip history.
func breakerKey(sourceName string) string { return "market_source:" + sourceName }

// Quote returns the current Quote for symbol, serving from cache when
// fresh and refreshing (with coalescing) otherwise.
func (a *Aggregator) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	if cached, ok := a.freshFromCache(symbol); ok {
		return cached, nil
	}
	return a.refresh(ctx, symbol)
}

// Quotes resolves a batch of symbols concurrently, each independently
// cached/refreshed/coalesced; a symbol that cannot be resolved at all
// (practically unreachable given the synthetic fallback) is reported
// via missing instead of failing the whole batch.
func (a *Aggregator) Quotes(ctx context.Context, symbols []string) (map[string]models.Quote, []MissingQuote) {
	type result struct {
		symbol string
		quote  models.Quote
		err    error
	}
	results := make(chan result, len(symbols))

	var wg sync.WaitGroup
	for _, symbol := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			q, err := a.Quote(ctx, sym)
			results <- result{symbol: sym, quote: q, err: err}
		}(symbol)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	quotes := make(map[string]models.Quote, len(symbols))
	var missing []MissingQuote
	for r := range results {
		if r.err != nil {
			missing = append(missing, MissingQuote{Symbol: r.symbol, Reason: r.err.Error()})
			continue
		}
		quotes[r.symbol] = r.quote
	}
	return quotes, missing
}

// freshFromCache returns the cached quote when its age is within the
// freshness window.
func (a *Aggregator) freshFromCache(symbol string) (models.Quote, bool) {
	a.mu.RLock()
	entry, ok := a.cache[symbol]
	a.mu.RUnlock()
	if !ok {
		return models.Quote{}, false
	}
	if time.Since(entry.monotonic) >= a.cfg.FreshnessWindow {
		return models.Quote{}, false
	}
	return entry.quote, true
}

// refresh performs (or joins) the coalesced upstream fetch for symbol.
func (a *Aggregator) refresh(ctx context.Context, symbol string) (models.Quote, error) {
	a.inflightMu.Lock()
	if existing, ok := a.inflight[symbol]; ok {
		a.inflightMu.Unlock()
		<-existing.done
		return existing.quote, existing.err
	}

	cf := &coalescedFetch{done: make(chan struct{})}
	a.inflight[symbol] = cf
	a.inflightMu.Unlock()

	quote, err := a.fetchFromRankedSources(ctx, symbol)
	if err == nil {
		a.mu.Lock()
		a.cache[symbol] = cacheEntry{quote: quote, fetchedAt: time.Now(), monotonic: time.Now()}
		a.mu.Unlock()
	}

	cf.quote, cf.err = quote, err
	close(cf.done)

	a.inflightMu.Lock()
	delete(a.inflight, symbol)
	a.inflightMu.Unlock()

	return quote, err
}

// fetchFromRankedSources walks the ranked source list for symbol's
// asset class, skipping any source whose breaker is open and applying
// the per-source timeout to every attempt (§4.2).
func (a *Aggregator) fetchFromRankedSources(ctx context.Context, symbol string) (models.Quote, error) {
	class := Classify(symbol)
	sources := a.sources[class]
	if len(sources) == 0 {
		sources = []Source{NewSyntheticSource()}
	}

	var lastErr error
	for _, src := range sources {
		b := a.breakers.Get(breakerKey(src.Name()))
		if err := b.Allow(); err != nil {
			logger.Debug("skipping source with open breaker", zap.String("source", src.Name()), zap.String("symbol", symbol))
			continue
		}

		fetchCtx, cancel := context.WithTimeout(ctx, a.cfg.SourceTimeout)
		quote, err := src.Fetch(fetchCtx, symbol)
		cancel()

		if err != nil || !quote.Price.IsPositive() {
			if err == nil {
				err = errs.New(errs.KindUpstream, "source returned non-positive price")
			}
			b.RecordFailure()
			lastErr = err
			logger.Warn("market source failed", zap.String("source", src.Name()), zap.String("symbol", symbol), zap.Error(err))
			continue
		}

		b.RecordSuccess()
		quote.Symbol = symbol
		quote.AssetClass = class
		quote.FetchedAt = time.Now()
		return quote, nil
	}

	if lastErr == nil {
		lastErr = errs.New(errs.KindUpstream, fmt.Sprintf("no source available for %s", symbol))
	}
	return models.Quote{}, lastErr
}

// InvalidateSource is called when the Trade Router detects stale data
// mid-order (§4.6.3d "stale-data-while-ordering triggers an automatic
// breaker trip on the data source"). It force-trips the breaker for the
// source that produced the cached quote, so subsequent refreshes skip
// it until cooldown.
func (a *Aggregator) InvalidateSource(sourceTag string) {
	b := a.breakers.Get(breakerKey(sourceTag))
	for b.Status().State != breaker.StateOpen {
		b.RecordFailure()
	}
}

// Age reports how old the cached quote for symbol is, used by the
// Trade Router's freshness check before submission (§4.6.3d).
func (a *Aggregator) Age(symbol string) (time.Duration, bool) {
	a.mu.RLock()
	entry, ok := a.cache[symbol]
	a.mu.RUnlock()
	if !ok {
		return 0, false
	}
	return time.Since(entry.monotonic), true
}
