package router

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tradecore/backend/internal/portfolio"
	"github.com/tradecore/backend/internal/storage"
	"github.com/tradecore/backend/pkg/logger"
)

// tradingDayInterval is the cadence for rolling every user's daily P&L
// counter and lifting any daily-drawdown kill-switch — §4.5.3's "freeze
// new orders until next trading day" resolves exactly once a day.
const tradingDayInterval = 24 * time.Hour

// RiskMonitor is the background half of §4.5.3: the Risk Engine itself
// is a pure function only ever consulted when an order is submitted, so
// unrealized P&L accumulating on open positions between submissions
// would otherwise never trip the daily/total drawdown kill-switch on
// its own. RiskMonitor re-assesses every user's current snapshot on a
// timer and drives the same kill-switch/close path a submission would.
//
// Grounded on notify.Engine's ticker-driven Start loop
// (internal/notify/engine.go), generalized from a per-symbol quote scan
// to a per-user portfolio scan.
type RiskMonitor struct {
	router *Router
	ledger *portfolio.Ledger
	users  *storage.UsersRepository

	scanInterval time.Duration
}

func NewRiskMonitor(router *Router, ledger *portfolio.Ledger, users *storage.UsersRepository, scanInterval time.Duration) *RiskMonitor {
	return &RiskMonitor{router: router, ledger: ledger, users: users, scanInterval: scanInterval}
}

// Start runs the drawdown sweep and the daily trading-day rollover
// until ctx is cancelled.
func (m *RiskMonitor) Start(ctx context.Context) error {
	logger.Info("risk monitor starting", zap.Duration("scan_interval", m.scanInterval))

	scanTicker := time.NewTicker(m.scanInterval)
	defer scanTicker.Stop()

	dailyTicker := time.NewTicker(tradingDayInterval)
	defer dailyTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("risk monitor stopped")
			return ctx.Err()

		case <-scanTicker.C:
			m.scanDrawdowns(ctx)

		case <-dailyTicker.C:
			m.rollTradingDay(ctx)
		}
	}
}

// scanDrawdowns assesses every user not already halted and activates
// the kill-switch the moment either threshold is crossed, independent
// of whether anyone happens to submit an order.
func (m *RiskMonitor) scanDrawdowns(ctx context.Context) {
	ids, err := m.users.ListActiveIDs(ctx)
	if err != nil {
		logger.Error("risk monitor could not list users", zap.Error(err))
		return
	}
	for _, ownerID := range ids {
		if m.router.killSwitch.IsActive(ownerID) {
			continue
		}

		snapshot, err := m.ledger.Snapshot(ctx, ownerID)
		if err != nil {
			logger.Warn("risk monitor could not load portfolio", zap.String("owner_id", ownerID), zap.Error(err))
			continue
		}

		assessment := m.router.riskEngine.Assess(portfolio.ToRiskSnapshot(snapshot))

		var reason KillSwitchReason
		switch {
		case assessment.CloseAllPositions:
			reason = KillSwitchTotalDrawdown
		case assessment.FreezeNewTrades:
			reason = KillSwitchDailyDrawdown
		default:
			continue
		}

		logger.Warn("drawdown limit breached, activating kill switch",
			zap.String("owner_id", ownerID), zap.String("reason", string(reason)))
		if err := m.router.ActivateKillSwitchAndClose(ctx, ownerID, reason, "risk_monitor"); err != nil {
			logger.Error("risk monitor kill switch activation failed",
				zap.String("owner_id", ownerID), zap.Error(err))
		}
	}
}

// rollTradingDay resets every user's daily P&L counter and lifts any
// kill-switch the daily drawdown check raised — a kill-switch raised for
// the total-drawdown breach is more severe (a run against peak equity,
// not just the trading day) and is left for an admin to clear through
// `DELETE /kill-switch` rather than auto-lifted here.
func (m *RiskMonitor) rollTradingDay(ctx context.Context) {
	ids, err := m.users.ListActiveIDs(ctx)
	if err != nil {
		logger.Error("risk monitor could not list users for daily reset", zap.Error(err))
		return
	}
	for _, ownerID := range ids {
		if err := m.ledger.ResetDaily(ctx, ownerID); err != nil {
			logger.Error("daily reset failed", zap.String("owner_id", ownerID), zap.Error(err))
			continue
		}
		if _, reason, _ := m.router.killSwitch.Status(ownerID); reason == KillSwitchDailyDrawdown {
			m.router.killSwitch.Deactivate(ownerID, "risk_monitor_daily_reset")
		}
	}
}
