// Package breaker implements the Circuit Breaker Registry (§4.4): a
// process-wide, lazily-populated map of per-resource three-state
// breakers (closed/open/half_open) guarding flaky remote dependencies.
package breaker

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tradecore/backend/internal/config"
	"github.com/tradecore/backend/pkg/errs"
	"github.com/tradecore/backend/pkg/logger"
)

// State is one of the three breaker lifecycle states.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Well-known resource keys created eagerly by NewRegistry; others are
// created lazily on first Registry.Get.
const (
	ResourceExchangeAPI    = "exchange_api"
	ResourceTradeExecution = "trade_execution"
	ResourceRiskThreshold  = "risk_threshold"
)

// Breaker is a single per-resource state machine. All state transitions
// happen under mu; callers never see a torn compare-and-set.
type Breaker struct {
	mu sync.Mutex

	resourceKey string
	cfg         config.BreakerConfig

	state              State
	failureCount       int
	windowStart        time.Time
	openedAt           time.Time
	halfOpenInFlight   int
	halfOpenSuccesses  int
}

func newBreaker(resourceKey string, cfg config.BreakerConfig) *Breaker {
	return &Breaker{
		resourceKey: resourceKey,
		cfg:         cfg,
		state:       StateClosed,
		windowStart: time.Now(),
	}
}

// Allow reports whether a call may proceed, transitioning open->half_open
// once the cooldown has elapsed (closed->open happens only in
// RecordFailure). It is the only suspension-free gate the
// Trade Router consults before invoking an adapter (§5).
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.openedAt) >= b.cfg.Cooldown {
			b.state = StateHalfOpen
			b.halfOpenInFlight = 0
			b.halfOpenSuccesses = 0
			logger.Info("breaker transitioning to half_open", zap.String("resource", b.resourceKey))
		} else {
			return errs.New(errs.KindBreaker, "breaker is open for "+b.resourceKey).
				WithDetails(map[string]interface{}{
					"resource":     b.resourceKey,
					"retry_after":  (b.cfg.Cooldown - time.Since(b.openedAt)).String(),
				})
		}
	}

	if b.state == StateHalfOpen {
		if b.halfOpenInFlight >= b.cfg.ProbeLimit {
			return errs.New(errs.KindBreaker, "breaker half_open probe limit reached for "+b.resourceKey)
		}
		b.halfOpenInFlight++
	}

	return nil
}

// RecordSuccess reports a successful call outcome.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.halfOpenSuccesses++
		if b.halfOpenInFlight > 0 {
			b.halfOpenInFlight--
		}
		b.state = StateClosed
		b.failureCount = 0
		b.windowStart = time.Now()
		logger.Info("breaker closed after successful probe", zap.String("resource", b.resourceKey))
	case StateClosed:
		// Healthy path, nothing to do.
	}
}

// RecordFailure reports a failed call outcome, possibly opening the
// breaker.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		if b.halfOpenInFlight > 0 {
			b.halfOpenInFlight--
		}
		b.trip("probe failed during half_open")
		return
	case StateOpen:
		return
	}

	if time.Since(b.windowStart) > b.cfg.FailureWindow {
		b.failureCount = 0
		b.windowStart = time.Now()
	}
	b.failureCount++

	if b.failureCount >= b.cfg.FailureThreshold {
		b.trip("failure threshold reached")
	}
}

// trip must be called with mu held.
func (b *Breaker) trip(reason string) {
	b.state = StateOpen
	b.openedAt = time.Now()
	logger.Error("breaker opened",
		zap.String("resource", b.resourceKey),
		zap.String("reason", reason),
		zap.Int("failure_count", b.failureCount),
	)
}

// Reset manually closes the breaker (admin scope only — enforced by the
// caller, e.g. internal/httpapi).
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failureCount = 0
	b.halfOpenInFlight = 0
	b.windowStart = time.Now()
	logger.Info("breaker manually reset", zap.String("resource", b.resourceKey))
}

// Status is a point-in-time snapshot for API/admin consumption.
type Status struct {
	ResourceKey  string `json:"resource_key"`
	State        State  `json:"state"`
	FailureCount int    `json:"failure_count"`
}

func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{ResourceKey: b.resourceKey, State: b.state, FailureCount: b.failureCount}
}

// Registry is the process-wide map of resource key -> Breaker.
type Registry struct {
	mu       sync.RWMutex
	cfg      config.BreakerConfig
	breakers map[string]*Breaker
}

// NewRegistry creates the registry with the three named breakers
// required by §4.4 pre-populated.
func NewRegistry(cfg config.BreakerConfig) *Registry {
	r := &Registry{cfg: cfg, breakers: make(map[string]*Breaker)}
	for _, key := range []string{ResourceExchangeAPI, ResourceTradeExecution, ResourceRiskThreshold} {
		r.breakers[key] = newBreaker(key, cfg)
	}
	return r
}

// Get returns the breaker for resourceKey, creating it lazily.
func (r *Registry) Get(resourceKey string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[resourceKey]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[resourceKey]; ok {
		return b
	}
	b = newBreaker(resourceKey, r.cfg)
	r.breakers[resourceKey] = b
	return b
}

// AllStatus returns a snapshot of every known breaker, for /ready,
// /metrics and admin endpoints.
func (r *Registry) AllStatus() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Status, 0, len(r.breakers))
	for _, b := range r.breakers {
		out = append(out, b.Status())
	}
	return out
}

// ResetAll manually closes every breaker (admin scope only).
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.breakers {
		b.Reset()
	}
}
