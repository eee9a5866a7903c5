// Package appctx is the explicit dependency container §9's redesign
// flag calls for: every subsystem is constructed once in New and handed
// down through AppContext, so no package reaches for a global singleton
// except pkg/logger's process-wide zap instance (kept exactly as the
// teacher keeps it — a logger is the one dependency every package
// legitimately needs without threading it through every call).
//
// Grounded on the wiring order in the teacher's cmd/bot/main.go's run():
// config, then logger, then storage, then the domain services, then
// background loops, in that order.
package appctx

import (
	"context"
	"errors"
	"fmt"

	"github.com/tradecore/backend/internal/ai"
	"github.com/tradecore/backend/internal/breaker"
	"github.com/tradecore/backend/internal/config"
	"github.com/tradecore/backend/internal/exchange"
	"github.com/tradecore/backend/internal/httpapi"
	"github.com/tradecore/backend/internal/market"
	"github.com/tradecore/backend/internal/notify"
	"github.com/tradecore/backend/internal/platform"
	"github.com/tradecore/backend/internal/portfolio"
	"github.com/tradecore/backend/internal/redisx"
	"github.com/tradecore/backend/internal/risk"
	"github.com/tradecore/backend/internal/router"
	"github.com/tradecore/backend/internal/storage"
	"github.com/tradecore/backend/internal/stream"
	"github.com/tradecore/backend/internal/users"
	"github.com/tradecore/backend/internal/vault"
)

// AppContext owns every long-lived dependency the process needs. Close
// releases every external connection; New's caller is responsible for
// calling it exactly once during shutdown.
type AppContext struct {
	Config *config.Config

	DB    *storage.DB
	Redis *redisx.Client

	Vault      *vault.Vault
	Breakers   *breaker.Registry
	Aggregator *market.Aggregator
	Factory    *exchange.Factory
	RiskEngine *risk.Engine
	Ledger     *portfolio.Ledger
	Router     *router.Router
	RiskMonitor *router.RiskMonitor
	Users      *users.Service
	Platforms  *platform.Service
	AI         *ai.Service
	NotifyEngine *notify.Engine
	Hub        *stream.Hub

	clickhouse *storage.ClickHouseSink
	auditWriter *storage.AuditBatchWriter
	opsNotifier *notify.OpsNotifier

	HTTP *httpapi.Server
}

// New constructs every dependency in the teacher's run() order:
// connect to storage first (a broken connection is a fatal startup
// error, §6 exit code 1), then build the pure/in-process domain
// services, then the services that depend on those, finally the HTTP
// boundary that ties them all together.
func New(cfg *config.Config) (*AppContext, error) {
	db, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	redisClient, err := redisx.New(cfg.Redis)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	key, err := cfg.Vault.Key()
	if err != nil {
		return nil, fmt.Errorf("invalid vault key: %w", err)
	}
	v, err := vault.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vault: %w", err)
	}

	breakers := breaker.NewRegistry(cfg.Breaker)
	aggregator := market.New(cfg.Market, breakers)
	factory := exchange.NewFactory(v, aggregator)
	riskEngine := risk.New(cfg.Risk)

	usersRepo := storage.NewUsersRepository(db)
	portfolioRepo := storage.NewPortfolioRepository(db)
	platformRepo := storage.NewPlatformRepository(db)
	tradeRepo := storage.NewTradeRepository(db)
	notifyRepo := storage.NewNotifyRepository(db)

	ledger := portfolio.NewLedger(portfolioRepo)
	tradeRouter := router.New(cfg.Router, riskEngine, breakers, aggregator, factory, ledger, platformRepo, tradeRepo, redisClient)
	riskMonitor := router.NewRiskMonitor(tradeRouter, ledger, usersRepo, cfg.Risk.MonitorInterval)

	usersSvc := users.NewService(usersRepo, portfolioRepo, cfg)
	platformSvc := platform.NewService(platformRepo, v, factory)
	aiSvc := ai.NewService(cfg.AI)

	var opsNotifier *notify.OpsNotifier
	if cfg.Telegram.Enabled() {
		opsNotifier, err = notify.NewOpsNotifier(cfg.Telegram)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ops notifier: %w", err)
		}
	}
	notifyEngine := notify.NewEngine(cfg.Notify, notifyRepo, aggregator, opsNotifier)

	hub := stream.NewHub()

	var chSink *storage.ClickHouseSink
	var auditWriter *storage.AuditBatchWriter
	if cfg.ClickHouse.Enabled {
		chSink, err = storage.OpenClickHouse(clickhouseDSN(cfg.ClickHouse))
		if err != nil {
			return nil, fmt.Errorf("failed to open clickhouse sink: %w", err)
		}
		auditWriter = storage.NewAuditBatchWriter(chSink, 100, cfg.Notify.AlertScanInterval)
	}

	httpServer := httpapi.NewServer(httpapi.Deps{
		Users: usersSvc, UsersRepo: usersRepo, Ledger: ledger, Trades: tradeRepo,
		Platforms: platformSvc, Aggregator: aggregator, Notify: notifyEngine, NotifyRepo: notifyRepo,
		Router: tradeRouter, RiskEngine: riskEngine, AI: aiSvc, Hub: hub,
		DB: db, Redis: redisClient, Breakers: breakers,
	})

	return &AppContext{
		Config: cfg, DB: db, Redis: redisClient, Vault: v, Breakers: breakers,
		Aggregator: aggregator, Factory: factory, RiskEngine: riskEngine, Ledger: ledger,
		Router: tradeRouter, RiskMonitor: riskMonitor, Users: usersSvc, Platforms: platformSvc, AI: aiSvc,
		NotifyEngine: notifyEngine, Hub: hub, clickhouse: chSink, auditWriter: auditWriter,
		opsNotifier: opsNotifier, HTTP: httpServer,
	}, nil
}

// Run starts every background loop — the SmartAlert scan loop and the
// risk monitor's drawdown/daily-reset sweep — and blocks until ctx is
// cancelled. The Aggregator and Router themselves need no loop of their
// own, since HTTP handlers pull both synchronously.
func (a *AppContext) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() { errCh <- a.NotifyEngine.Start(ctx) }()
	go func() { errCh <- a.RiskMonitor.Start(ctx) }()

	var first error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) && first == nil {
			first = err
		}
	}
	return first
}

// Close releases every external connection in reverse acquisition
// order.
func (a *AppContext) Close() {
	if a.auditWriter != nil {
		_ = a.auditWriter.Close()
	}
	if a.clickhouse != nil {
		_ = a.clickhouse.Close()
	}
	_ = a.Redis.Close()
	_ = a.DB.Close()
}

func clickhouseDSN(cfg config.ClickHouseConfig) string {
	return fmt.Sprintf("clickhouse://%s:%s@%s/%s", cfg.Username, cfg.Password, cfg.Addr, cfg.Database)
}
