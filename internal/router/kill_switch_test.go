package router

import "testing"

func TestKillSwitchActivateAndIsActive(t *testing.T) {
	k := NewKillSwitchRegistry()
	if k.IsActive("u1") {
		t.Fatal("expected inactive by default")
	}
	k.Activate("u1", KillSwitchDailyDrawdown, "risk_engine")
	if !k.IsActive("u1") {
		t.Fatal("expected active after Activate")
	}
	if k.IsActive("u2") {
		t.Fatal("expected other owners unaffected")
	}
}

func TestKillSwitchReactivateIsNoop(t *testing.T) {
	k := NewKillSwitchRegistry()
	k.Activate("u1", KillSwitchManual, "user")
	k.Activate("u1", KillSwitchTotalDrawdown, "risk_engine")

	active, reason, _ := k.Status("u1")
	if !active {
		t.Fatal("expected still active")
	}
	if reason != KillSwitchManual {
		t.Fatalf("expected the original reason to stick, got %s", reason)
	}
}

func TestKillSwitchDeactivate(t *testing.T) {
	k := NewKillSwitchRegistry()
	k.Activate("u1", KillSwitchManual, "user")
	k.Deactivate("u1", "user")
	if k.IsActive("u1") {
		t.Fatal("expected inactive after Deactivate")
	}
}

func TestKillSwitchHistoryFiltersByOwner(t *testing.T) {
	k := NewKillSwitchRegistry()
	k.Activate("u1", KillSwitchManual, "user")
	k.Activate("u2", KillSwitchDailyDrawdown, "risk_engine")

	h := k.History("u1", 50)
	if len(h) != 1 || h[0].OwnerID != "u1" {
		t.Fatalf("expected exactly one u1 event, got %+v", h)
	}
}
