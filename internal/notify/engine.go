package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradecore/backend/internal/config"
	"github.com/tradecore/backend/internal/market"
	"github.com/tradecore/backend/internal/storage"
	"github.com/tradecore/backend/pkg/logger"
	"github.com/tradecore/backend/pkg/models"
)

// Engine is the SmartAlert evaluation loop (§4.8): armed alerts are
// re-checked against the latest quote on a bounded cadence, and a
// slower opportunity scan looks for RSI conditions across every watched
// symbol, independent of the conditions the armed alerts name.
//
// Grounded on internal/workers/news_worker.go's ticker-driven Start
// loop, generalized to two independent cadences; neither scan runs
// before its first tick.
type Engine struct {
	cfg        config.NotifyConfig
	repo       *storage.NotifyRepository
	aggregator *market.Aggregator
	history    *PriceHistory
	ops        *OpsNotifier

	mu             sync.Mutex
	watchedSymbols map[string]struct{}
	seenOpportunities map[string]time.Time
}

// opportunityDedupWindow bounds how long a fired opportunity
// fingerprint is remembered before the same condition is allowed to
// notify again (§4.8 "deduplicated by fingerprint").
const opportunityDedupWindow = 30 * time.Minute

// NewEngine wires the alert engine. ops may be nil when the Telegram
// ops channel is not configured (§1 "absence ... disables gracefully").
func NewEngine(cfg config.NotifyConfig, repo *storage.NotifyRepository, aggregator *market.Aggregator, ops *OpsNotifier) *Engine {
	return &Engine{
		cfg:               cfg,
		repo:              repo,
		aggregator:        aggregator,
		history:           NewPriceHistory(),
		ops:               ops,
		watchedSymbols:    make(map[string]struct{}),
		seenOpportunities: make(map[string]time.Time),
	}
}

// Watch registers symbol for both the alert and opportunity scans.
// Called by ArmAlert whenever an alert is armed, so only symbols that
// someone has armed an alert on are scanned.
func (e *Engine) Watch(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.watchedSymbols[symbol] = struct{}{}
}

// ArmAlert creates a new armed SmartAlert and begins watching its
// symbol. A conflict from the repository (an armed alert with the same
// fingerprint already exists) is returned unchanged to the caller.
func (e *Engine) ArmAlert(ctx context.Context, ownerID, symbol string, condition models.AlertCondition, threshold decimal.Decimal) (*models.SmartAlert, error) {
	fp := Fingerprint(ownerID, symbol, condition, threshold)
	alert := &models.SmartAlert{
		OwnerID:     ownerID,
		Symbol:      symbol,
		Condition:   condition,
		Threshold:   threshold,
		Fingerprint: fp,
	}
	created, err := e.repo.CreateAlert(ctx, alert)
	if err != nil {
		return nil, err
	}
	e.Watch(symbol)
	return created, nil
}

func (e *Engine) watchedSymbolList() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.watchedSymbols))
	for s := range e.watchedSymbols {
		out = append(out, s)
	}
	return out
}

// Start runs both scan loops until ctx is cancelled.
func (e *Engine) Start(ctx context.Context) error {
	logger.Info("smart alert engine starting",
		zap.Duration("alert_scan_interval", e.cfg.AlertScanInterval),
		zap.Duration("opportunity_scan_interval", e.cfg.OpportunityScanInterval),
	)

	alertTicker := time.NewTicker(e.cfg.AlertScanInterval)
	defer alertTicker.Stop()

	opportunityTicker := time.NewTicker(e.cfg.OpportunityScanInterval)
	defer opportunityTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("smart alert engine stopped")
			return ctx.Err()

		case <-alertTicker.C:
			e.scanAlerts(ctx)

		case <-opportunityTicker.C:
			e.scanOpportunities(ctx)
		}
	}
}

// scanAlerts re-evaluates every armed alert on every watched symbol
// against the latest quote, recording the sample into history first so
// RSI/volume-spike conditions have data to work with.
func (e *Engine) scanAlerts(ctx context.Context) {
	for _, symbol := range e.watchedSymbolList() {
		quote, err := e.aggregator.Quote(ctx, symbol)
		if err != nil {
			logger.Warn("alert scan could not fetch quote", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		e.history.Record(symbol, models.ToFloat64(quote.Price), models.ToFloat64(quote.Volume24h))

		alerts, err := e.repo.ListArmedForSymbol(ctx, symbol)
		if err != nil {
			logger.Error("alert scan could not list armed alerts", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		for _, alert := range alerts {
			e.evaluateAndTrigger(ctx, alert, quote)
		}
	}
}

func (e *Engine) evaluateAndTrigger(ctx context.Context, alert models.SmartAlert, quote models.Quote) {
	fired, detail := evaluateCondition(alert.Condition, alert.Threshold, quote, e.history, e.cfg.RSIPeriod)
	if !fired {
		return
	}

	transitioned, err := e.repo.Trigger(ctx, alert.ID)
	if err != nil {
		logger.Error("failed to trigger alert", zap.String("alert_id", alert.ID), zap.Error(err))
		return
	}
	if !transitioned {
		// Lost the race to another scan pass; already triggered once.
		return
	}

	body := fmt.Sprintf("%s %s triggered: %s", alert.Symbol, alert.Condition, detail)
	_, err = e.repo.CreateNotification(ctx, &models.Notification{
		OwnerID:  alert.OwnerID,
		Kind:     models.NotifyAlertTriggered,
		Body:     body,
		Priority: models.PriorityMedium,
	})
	if err != nil {
		logger.Error("failed to persist alert notification", zap.String("alert_id", alert.ID), zap.Error(err))
	}
}

// scanOpportunities looks for overbought/oversold RSI readings on every
// watched symbol, whatever the conditions of the alerts armed on it.
// A finding is deduplicated by fingerprint within
// opportunityDedupWindow, then logged and sent to the ops channel when
// one is configured; no per-user Notification row is created for it.
func (e *Engine) scanOpportunities(ctx context.Context) {
	e.pruneExpiredOpportunities()

	for _, symbol := range e.watchedSymbolList() {
		quote, err := e.aggregator.Quote(ctx, symbol)
		if err != nil {
			continue
		}

		rsi, ok := latestRSI(e.history.Prices(symbol), e.cfg.RSIPeriod)
		if !ok {
			continue
		}

		var kind, note string
		switch {
		case rsi >= 70:
			kind, note = "rsi_overbought", fmt.Sprintf("RSI(%d) at %.2f suggests overbought conditions", e.cfg.RSIPeriod, rsi)
		case rsi <= 30:
			kind, note = "rsi_oversold", fmt.Sprintf("RSI(%d) at %.2f suggests oversold conditions", e.cfg.RSIPeriod, rsi)
		default:
			continue
		}

		e.emitOpportunity(ctx, quote.Symbol, kind, note)
	}
}

func (e *Engine) emitOpportunity(ctx context.Context, symbol, kind, note string) {
	fp := OpportunityFingerprint("system", symbol, kind)

	e.mu.Lock()
	if last, ok := e.seenOpportunities[fp]; ok && time.Since(last) < opportunityDedupWindow {
		e.mu.Unlock()
		return
	}
	e.seenOpportunities[fp] = time.Now()
	e.mu.Unlock()

	logger.Info("opportunity detected", zap.String("symbol", symbol), zap.String("kind", kind))
	if e.ops != nil {
		e.ops.NotifyCritical(ctx, fmt.Sprintf("[opportunity] %s: %s", symbol, note))
	}
}

func (e *Engine) pruneExpiredOpportunities() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for fp, seenAt := range e.seenOpportunities {
		if time.Since(seenAt) >= opportunityDedupWindow {
			delete(e.seenOpportunities, fp)
		}
	}
}
