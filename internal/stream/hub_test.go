package stream

import (
	"testing"
	"time"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	h := NewHub()
	sub := h.SubscribeTrades("user-1")

	h.PublishTrade("user-1", "fill")

	select {
	case ev := <-sub.Events():
		if ev.Payload != "fill" {
			t.Fatalf("expected payload 'fill', got %v", ev.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishOnlyReachesSubscribersOfThatChannel(t *testing.T) {
	h := NewHub()
	subA := h.SubscribeTrades("user-a")
	subB := h.SubscribeTrades("user-b")

	h.PublishTrade("user-a", "only-for-a")

	select {
	case ev := <-subA.Events():
		if ev.Payload != "only-for-a" {
			t.Fatalf("unexpected payload %v", ev.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("expected subscriber A to receive the event")
	}

	select {
	case ev := <-subB.Events():
		t.Fatalf("expected subscriber B to receive nothing, got %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPriceChannelLastValueWinsUnderBackpressure(t *testing.T) {
	h := NewHub()
	sub := h.SubscribePrice("BTCUSDT")

	h.PublishPrice("BTCUSDT", 100)
	h.PublishPrice("BTCUSDT", 200)
	h.PublishPrice("BTCUSDT", 300)

	select {
	case ev := <-sub.Events():
		if ev.Payload != 300 {
			t.Fatalf("expected the latest price to win, got %v", ev.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a buffered price event")
	}

	select {
	case ev, ok := <-sub.Events():
		if ok {
			t.Fatalf("expected only the most recent price to survive, got extra event %v", ev)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUserChannelDisconnectsOnOverflow(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe(TradeChannel("user-1"), OverflowDisconnect, 1)

	h.PublishTrade("user-1", "first")
	h.PublishTrade("user-1", "second")

	if h.SubscriberCount(TradeChannel("user-1")) != 0 {
		t.Fatal("expected the overflowed subscriber to be disconnected")
	}

	if ev, ok := <-sub.Events(); !ok || ev.Payload != "first" {
		t.Fatalf("expected the event buffered before the overflow to be delivered, got %v (open=%v)", ev, ok)
	}

	_, ok := <-sub.Events()
	if ok {
		t.Fatal("expected the subscriber's event channel to be closed after disconnect")
	}
}

func TestUnsubscribeRemovesAndClosesSubscriber(t *testing.T) {
	h := NewHub()
	sub := h.SubscribeSystem()
	if h.SubscriberCount(SystemChannel) != 1 {
		t.Fatal("expected one subscriber registered")
	}

	h.Unsubscribe(sub)
	if h.SubscriberCount(SystemChannel) != 0 {
		t.Fatal("expected subscriber removed after Unsubscribe")
	}

	_, ok := <-sub.Events()
	if ok {
		t.Fatal("expected event channel closed after Unsubscribe")
	}
}

func TestUnsubscribeIsSafeToCallTwice(t *testing.T) {
	h := NewHub()
	sub := h.SubscribeSystem()
	h.Unsubscribe(sub)
	h.Unsubscribe(sub)
}
