package router

import (
	"context"
	"database/sql"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tradecore/backend/internal/breaker"
	"github.com/tradecore/backend/internal/config"
	"github.com/tradecore/backend/internal/exchange"
	"github.com/tradecore/backend/internal/market"
	"github.com/tradecore/backend/internal/risk"
	"github.com/tradecore/backend/pkg/models"
)

// fakePlatformStore is an in-memory stand-in for
// internal/storage.PlatformRepository: no live platform rows means
// every submission falls through to the implicit paper platform.
type fakePlatformStore struct {
	byID      map[string]*models.Platform
	forOwner  map[string][]models.Platform
}

func newFakePlatformStore() *fakePlatformStore {
	return &fakePlatformStore{byID: map[string]*models.Platform{}, forOwner: map[string][]models.Platform{}}
}

func (s *fakePlatformStore) Get(_ context.Context, id string) (*models.Platform, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, errNotFound
	}
	return p, nil
}

func (s *fakePlatformStore) ListForOwner(_ context.Context, ownerID string) ([]models.Platform, error) {
	return s.forOwner[ownerID], nil
}

// fakeTradeStore is an in-memory stand-in for
// internal/storage.TradeRepository.
type fakeTradeStore struct {
	mu          sync.Mutex
	seq         int
	byKey       map[string]*models.Trade
	all         map[string]*models.Trade
}

func newFakeTradeStore() *fakeTradeStore {
	return &fakeTradeStore{byKey: map[string]*models.Trade{}, all: map[string]*models.Trade{}}
}

func (s *fakeTradeStore) FindByIdempotencyKey(_ context.Context, ownerID, key string) (*models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byKey[ownerID+"|"+key]
	if !ok {
		return nil, nil
	}
	return t, nil
}

func (s *fakeTradeStore) Create(_ context.Context, t *models.Trade) (*models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	out := *t
	out.ID = "trade-" + strconv.Itoa(s.seq)
	s.all[out.ID] = &out
	if t.IdempotencyKey != "" {
		s.byKey[t.OwnerID+"|"+t.IdempotencyKey] = &out
	}
	return &out, nil
}

func (s *fakeTradeStore) ListOpenForOwner(_ context.Context, ownerID string) ([]models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var open []models.Trade
	for _, t := range s.all {
		if t.OwnerID == ownerID && t.Status == models.TradeOpen {
			open = append(open, *t)
		}
	}
	return open, nil
}

func (s *fakeTradeStore) Close(_ context.Context, tradeID string, exitPrice, pnl sql.NullString) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.all[tradeID]
	if !ok {
		return errNotFound
	}
	t.Status = models.TradeClosed
	return nil
}

// fakeLedger is an in-memory stand-in for internal/portfolio.Ledger: no
// real Postgres-backed portfolio repository is needed to exercise the
// Trade Router's gating logic.
type fakeLedger struct {
	mu         sync.Mutex
	portfolios map[string]*models.Portfolio
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{portfolios: map[string]*models.Portfolio{}}
}

// defaultSeedBalance backs every owner that hasn't been given an
// explicit portfolio, so the Risk Engine's zero-balance guard doesn't
// deny every test order by default.
var defaultSeedBalance = decimal.NewFromInt(100000)

func (l *fakeLedger) Snapshot(_ context.Context, ownerID string) (*models.Portfolio, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.portfolios[ownerID]
	if !ok {
		return &models.Portfolio{
			OwnerID: ownerID, TotalBalance: defaultSeedBalance,
			AvailableBalance: defaultSeedBalance, SeedBalance: defaultSeedBalance,
		}, nil
	}
	cp := *p
	return &cp, nil
}

func (l *fakeLedger) ApplyFill(_ context.Context, ownerID string, _ models.Trade) (*models.Portfolio, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.portfolios[ownerID]
	if !ok {
		p = &models.Portfolio{OwnerID: ownerID}
		l.portfolios[ownerID] = p
	}
	return p, nil
}

// fakeLockManager grants every lock immediately; the tests exercise
// Router's gating logic sequentially, not cross-instance contention,
// which internal/redisx.Client's RedLock-backed implementation already
// covers on its own.
type fakeLockManager struct{}

func (fakeLockManager) Lock(_ context.Context, _ string, _ time.Duration) (func(), error) {
	return func() {}, nil
}

var errNotFound = &notFoundErr{}

type notFoundErr struct{}

func (*notFoundErr) Error() string { return "not found" }

// testRouter wires a Router against fakes for storage/locking and real,
// in-process collaborators for the pieces that need no external
// service: a Circuit Breaker registry (pure in-memory state machine), a
// Market Data Aggregator restricted to the deterministic synthetic
// source (symbol "SPX", an index with no live source configured), and
// an exchange Factory building only paper adapters.
func testRouter(t *testing.T) (*Router, *fakeTradeStore, *fakePlatformStore, *fakeLedger) {
	t.Helper()

	riskCfg := config.RiskConfig{
		PerTradeMax: 0.5, LeverageMax: 3.0, DailyDDSoft: 0.03, DailyDDHard: 0.05,
		TotalDDMax: 0.05, DefaultRiskPct: 0.01,
	}
	breakerCfg := config.BreakerConfig{FailureThreshold: 5, FailureWindow: time.Minute, Cooldown: 30 * time.Second, ProbeLimit: 1}
	marketCfg := config.MarketConfig{FreshnessWindow: 30 * time.Second, SourceTimeout: time.Second}
	routerCfg := config.RouterConfig{AssistedApprovalTTL: 5 * time.Minute, QuoteFreshnessMax: 5 * time.Second}

	breakers := breaker.NewRegistry(breakerCfg)
	aggregator := market.New(marketCfg, breakers)
	factory := exchange.NewFactory(nil, aggregator)
	riskEngine := risk.New(riskCfg)

	platforms := newFakePlatformStore()
	trades := newFakeTradeStore()
	ledger := newFakeLedger()

	r := New(routerCfg, riskEngine, breakers, aggregator, factory, ledger, platforms, trades, fakeLockManager{})
	return r, trades, platforms, ledger
}

func testOrder(ownerID string) models.TradeOrder {
	return models.TradeOrder{
		OwnerID: ownerID, Symbol: "SPX", Side: models.OrderBuy, OrderType: models.OrderMarket,
		Quantity: decimal.NewFromFloat(0.001),
	}
}

func TestSubmitFallsBackToImplicitPaperPlatform(t *testing.T) {
	r, _, _, _ := testRouter(t)

	result, err := r.Submit(context.Background(), testOrder("u1"), models.ModeAutopilot)

	require.NoError(t, err)
	require.NotNil(t, result.Trade)
	require.Equal(t, models.ExecutionPaper, result.Trade.ExecutionKind)
	require.Equal(t, StateRecording, result.ReachedState)
}

func TestSubmitLearningOnlyNeverReachesAnAdapter(t *testing.T) {
	r, trades, _, _ := testRouter(t)

	order := testOrder("u2")
	order.AutomatedSource = true // must not bypass the LearningOnly guard

	result, err := r.Submit(context.Background(), order, models.ModeLearningOnly)

	require.Error(t, err)
	require.Nil(t, result.Trade)
	open, _ := trades.ListOpenForOwner(context.Background(), "u2")
	require.Empty(t, open)
}

func TestSubmitDeniesOrderAgainstEmptyBalance(t *testing.T) {
	r, _, _, ledger := testRouter(t)
	ledger.portfolios["u3"] = &models.Portfolio{OwnerID: "u3"} // zero balance

	result, err := r.Submit(context.Background(), testOrder("u3"), models.ModeAutopilot)

	require.Error(t, err)
	require.Equal(t, risk.VerdictDeny, result.Verdict.Kind)
	require.Equal(t, risk.ReasonPerTradeExposureExceeded, result.Verdict.Reason)
	require.Equal(t, StateRiskChecking, result.ReachedState)
}

func TestSubmitReducesOversizedOrderInsteadOfDenying(t *testing.T) {
	r, _, _, _ := testRouter(t)

	order := testOrder("u3b")
	order.Quantity = decimal.NewFromInt(1000) // notional far beyond the per-trade cap, but balance supports a reduced size

	result, err := r.Submit(context.Background(), order, models.ModeAutopilot)

	require.NoError(t, err)
	require.Equal(t, risk.VerdictReduce, result.Verdict.Kind)
	require.NotNil(t, result.Trade)
	require.True(t, result.Trade.Quantity.Equal(result.Verdict.ReducedQty))
}

func TestSubmitTripsOnOpenCircuitBreaker(t *testing.T) {
	r, _, _, _ := testRouter(t)

	tradeBreaker := r.breakers.Get(breaker.ResourceTradeExecution)
	for i := 0; i < 5; i++ {
		tradeBreaker.RecordFailure()
	}

	result, err := r.Submit(context.Background(), testOrder("u4"), models.ModeAutopilot)

	require.Error(t, err)
	require.Equal(t, StateBreakerChecking, result.ReachedState)
}

func TestSubmitRejectsWhenKillSwitchActive(t *testing.T) {
	r, _, _, _ := testRouter(t)

	r.killSwitch.Activate("u5", KillSwitchDailyDrawdown, "risk_monitor")

	result, err := r.Submit(context.Background(), testOrder("u5"), models.ModeAutopilot)

	require.Error(t, err)
	require.Equal(t, StateIdle, result.ReachedState)
}

func TestSubmitAbortsOnStaleQuote(t *testing.T) {
	r, _, _, _ := testRouter(t)
	r.cfg.QuoteFreshnessMax = time.Nanosecond

	result, err := r.Submit(context.Background(), testOrder("u6"), models.ModeAutopilot)

	require.Error(t, err)
	require.Nil(t, result.Trade)
	require.Equal(t, StateRiskChecking, result.ReachedState)
}

func TestSubmitDedupsOnIdempotencyKeyWithoutResubmitting(t *testing.T) {
	r, trades, _, _ := testRouter(t)

	order := testOrder("u7")
	order.IdempotencyKey = "order-once"

	first, err := r.Submit(context.Background(), order, models.ModeAutopilot)
	require.NoError(t, err)
	require.NotNil(t, first.Trade)

	second, err := r.Submit(context.Background(), order, models.ModeAutopilot)
	require.NoError(t, err)
	require.Equal(t, first.Trade.ID, second.Trade.ID)

	open, _ := trades.ListOpenForOwner(context.Background(), "u7")
	require.Len(t, open, 1, "a duplicate idempotency key must not create a second trade")
}

func TestSubmitAssistedQueuesAutomatedOrdersForApproval(t *testing.T) {
	r, trades, _, _ := testRouter(t)

	order := testOrder("u8")
	order.AutomatedSource = true

	result, err := r.Submit(context.Background(), order, models.ModeAssisted)

	require.NoError(t, err)
	require.Nil(t, result.Trade)
	pending := r.Approvals().Pending("u8")
	require.Len(t, pending, 1)

	open, _ := trades.ListOpenForOwner(context.Background(), "u8")
	require.Empty(t, open)
}
