package router

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tradecore/backend/pkg/models"
)

// queuedProposal is one automated order awaiting a human's explicit
// approval in Assisted mode (§4.6.1).
type queuedProposal struct {
	order     models.TradeOrder
	expiresAt time.Time
}

// ApprovalQueue holds Assisted-mode proposals until a user approves
// them or they expire. Grounded on the same per-user map shape as
// KillSwitchRegistry; a proposal that isn't approved within ttl is
// silently dropped on next access rather than actively swept, since the
// queue is small and read-heavy.
type ApprovalQueue struct {
	ttl time.Duration

	mu        sync.Mutex
	proposals map[string]map[string]*queuedProposal // ownerID -> proposalID -> proposal
}

func NewApprovalQueue(ttl time.Duration) *ApprovalQueue {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ApprovalQueue{ttl: ttl, proposals: make(map[string]map[string]*queuedProposal)}
}

// Enqueue stores order for its owner's approval and returns its
// proposal id.
func (q *ApprovalQueue) Enqueue(order models.TradeOrder) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := uuid.NewString()
	owned, ok := q.proposals[order.OwnerID]
	if !ok {
		owned = make(map[string]*queuedProposal)
		q.proposals[order.OwnerID] = owned
	}
	owned[id] = &queuedProposal{order: order, expiresAt: time.Now().Add(q.ttl)}
	return id
}

// Pending lists an owner's unexpired proposals.
func (q *ApprovalQueue) Pending(ownerID string) []models.TradeOrder {
	q.mu.Lock()
	defer q.mu.Unlock()

	owned := q.proposals[ownerID]
	now := time.Now()
	var out []models.TradeOrder
	for id, p := range owned {
		if now.After(p.expiresAt) {
			delete(owned, id)
			continue
		}
		out = append(out, p.order)
	}
	return out
}

// Approve removes and returns proposalID if it belongs to ownerID and
// hasn't expired.
func (q *ApprovalQueue) Approve(ownerID, proposalID string) (models.TradeOrder, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	owned, ok := q.proposals[ownerID]
	if !ok {
		return models.TradeOrder{}, false
	}
	p, ok := owned[proposalID]
	if !ok {
		return models.TradeOrder{}, false
	}
	delete(owned, proposalID)
	if time.Now().After(p.expiresAt) {
		return models.TradeOrder{}, false
	}
	return p.order, true
}

// Reject discards a queued proposal without submitting it.
func (q *ApprovalQueue) Reject(ownerID, proposalID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	owned, ok := q.proposals[ownerID]
	if !ok {
		return false
	}
	if _, ok := owned[proposalID]; !ok {
		return false
	}
	delete(owned, proposalID)
	return true
}
