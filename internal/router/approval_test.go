package router

import (
	"testing"
	"time"

	"github.com/tradecore/backend/pkg/models"
)

func TestApprovalQueueEnqueueAndApprove(t *testing.T) {
	q := NewApprovalQueue(time.Minute)
	id := q.Enqueue(models.TradeOrder{OwnerID: "u1", Symbol: "BTCUSDT"})

	order, ok := q.Approve("u1", id)
	if !ok {
		t.Fatal("expected approval to succeed")
	}
	if order.Symbol != "BTCUSDT" {
		t.Fatalf("expected the enqueued order to come back, got %+v", order)
	}

	if _, ok := q.Approve("u1", id); ok {
		t.Fatal("expected a second approval of the same id to fail")
	}
}

func TestApprovalQueueApproveWrongOwnerFails(t *testing.T) {
	q := NewApprovalQueue(time.Minute)
	id := q.Enqueue(models.TradeOrder{OwnerID: "u1", Symbol: "BTCUSDT"})

	if _, ok := q.Approve("u2", id); ok {
		t.Fatal("expected approval under a different owner to fail")
	}
}

func TestApprovalQueueExpiredProposalRejected(t *testing.T) {
	q := NewApprovalQueue(time.Millisecond)
	id := q.Enqueue(models.TradeOrder{OwnerID: "u1", Symbol: "BTCUSDT"})
	time.Sleep(5 * time.Millisecond)

	if _, ok := q.Approve("u1", id); ok {
		t.Fatal("expected expired proposal to be rejected")
	}
}

func TestApprovalQueuePendingPrunesExpired(t *testing.T) {
	q := NewApprovalQueue(time.Millisecond)
	q.Enqueue(models.TradeOrder{OwnerID: "u1", Symbol: "BTCUSDT"})
	time.Sleep(5 * time.Millisecond)

	if pending := q.Pending("u1"); len(pending) != 0 {
		t.Fatalf("expected expired proposals to be pruned, got %d", len(pending))
	}
}

func TestApprovalQueueReject(t *testing.T) {
	q := NewApprovalQueue(time.Minute)
	id := q.Enqueue(models.TradeOrder{OwnerID: "u1", Symbol: "BTCUSDT"})

	if !q.Reject("u1", id) {
		t.Fatal("expected reject to succeed")
	}
	if _, ok := q.Approve("u1", id); ok {
		t.Fatal("expected approval after reject to fail")
	}
}
