package router

import (
	"sync"
	"time"
)

// KillSwitchReason enumerates why a user's trading was halted (§4.6.5),
// grounded on the original KillSwitchService's reason enum.
type KillSwitchReason string

const (
	KillSwitchManual          KillSwitchReason = "manual"
	KillSwitchDailyDrawdown   KillSwitchReason = "daily_drawdown_exceeded"
	KillSwitchTotalDrawdown   KillSwitchReason = "total_drawdown_exceeded"
	KillSwitchCircuitBreaker  KillSwitchReason = "circuit_breaker_triggered"
)

// killSwitchState is one user's halt status plus its activation history,
// generalized from the teacher's process-wide KillSwitch into a
// per-user map the way the original service keys by user_id.
type killSwitchState struct {
	active      bool
	reason      KillSwitchReason
	triggeredBy string
	activatedAt time.Time
}

// KillSwitchRegistry tracks per-user emergency halts. Once active, the
// Trade Router refuses every new submission for that user until a
// manual Deactivate call (§4.6.5 "requires manual intervention").
type KillSwitchRegistry struct {
	mu      sync.RWMutex
	states  map[string]*killSwitchState
	history []Activation
}

// Activation is one recorded activation/deactivation event.
type Activation struct {
	OwnerID     string
	Reason      KillSwitchReason
	TriggeredBy string
	At          time.Time
	Deactivated bool
}

func NewKillSwitchRegistry() *KillSwitchRegistry {
	return &KillSwitchRegistry{states: make(map[string]*killSwitchState)}
}

func (k *KillSwitchRegistry) IsActive(ownerID string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	s, ok := k.states[ownerID]
	return ok && s.active
}

// Activate halts ownerID's trading. Re-activating an already-active
// switch is a no-op (the original service's "don't retrigger" guard).
func (k *KillSwitchRegistry) Activate(ownerID string, reason KillSwitchReason, triggeredBy string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if s, ok := k.states[ownerID]; ok && s.active {
		return
	}
	now := time.Now()
	k.states[ownerID] = &killSwitchState{active: true, reason: reason, triggeredBy: triggeredBy, activatedAt: now}
	k.history = append(k.history, Activation{OwnerID: ownerID, Reason: reason, TriggeredBy: triggeredBy, At: now})
}

// Deactivate resumes trading for ownerID, always a deliberate, separate
// call from whatever triggered the activation.
func (k *KillSwitchRegistry) Deactivate(ownerID, deactivatedBy string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s, ok := k.states[ownerID]
	if !ok || !s.active {
		return
	}
	s.active = false
	k.history = append(k.history, Activation{OwnerID: ownerID, TriggeredBy: deactivatedBy, At: time.Now(), Deactivated: true})
}

// Status reports the current state for ownerID, mirroring the original
// service's "ACTIVE means trading is allowed" default.
func (k *KillSwitchRegistry) Status(ownerID string) (active bool, reason KillSwitchReason, since time.Time) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	s, ok := k.states[ownerID]
	if !ok {
		return false, "", time.Time{}
	}
	return s.active, s.reason, s.activatedAt
}

// History returns the last limit activation events, optionally filtered
// to one owner.
func (k *KillSwitchRegistry) History(ownerID string, limit int) []Activation {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var filtered []Activation
	for _, a := range k.history {
		if ownerID == "" || a.OwnerID == ownerID {
			filtered = append(filtered, a)
		}
	}
	if len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered
}
