package flow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSessionModeLifecycle(t *testing.T) {
	s := NewSessions(time.Minute)

	if s.Mode(1) != ModeIdle || s.InProgress(1) {
		t.Fatal("new chat should be idle")
	}

	s.SetMode(1, ModeSendingNative)
	if s.Mode(1) != ModeSendingNative || !s.InProgress(1) {
		t.Fatal("mode not applied")
	}

	if !s.Reset(1) {
		t.Fatal("reset of active session should report true")
	}
	if s.Reset(1) {
		t.Fatal("reset of idle chat should report false")
	}
}

func TestTakePendingIsTakeOnce(t *testing.T) {
	s := NewSessions(time.Minute)
	intent := &TransferIntent{Recipient: "r", Amount: decimal.NewFromInt(1), Lamports: 1}
	s.SetPending(7, intent)

	// Storing a pending action ends the text-input step.
	if s.InProgress(7) {
		t.Fatal("pending action should not await text")
	}

	p, ok := s.TakePending(7)
	if !ok || p != PendingAction(intent) {
		t.Fatal("first take should return the intent")
	}
	if _, ok := s.TakePending(7); ok {
		t.Fatal("second take should find nothing")
	}
}

func TestTakePendingIfRejectsMismatch(t *testing.T) {
	s := NewSessions(time.Minute)
	s.SetPending(7, &SwapIntent{})

	_, ok := s.TakePendingIf(7, func(p PendingAction) bool {
		_, match := p.(*TransferIntent)
		return match
	})
	if ok {
		t.Fatal("mismatched take should fail")
	}

	// The swap intent must survive the mismatched attempt.
	if _, ok := s.TakePendingIf(7, func(p PendingAction) bool {
		_, match := p.(*SwapIntent)
		return match
	}); !ok {
		t.Fatal("pending swap was consumed by a mismatched take")
	}
}

func TestSessionExpiry(t *testing.T) {
	s := NewSessions(time.Minute)
	current := time.Now()
	s.now = func() time.Time { return current }

	s.SetMode(1, ModeSwapping)
	s.SetPending(2, &TransferIntent{})

	current = current.Add(2 * time.Minute)

	if s.Mode(1) != ModeIdle {
		t.Fatal("expired session still reports a mode")
	}
	if _, ok := s.TakePending(2); ok {
		t.Fatal("expired pending action still takeable")
	}
}

func TestPurgeDropsOnlyExpired(t *testing.T) {
	s := NewSessions(time.Minute)
	current := time.Now()
	s.now = func() time.Time { return current }

	s.SetMode(1, ModeSwapping)
	current = current.Add(2 * time.Minute)
	s.SetMode(2, ModeSendingToken)

	if dropped := s.Purge(); dropped != 1 {
		t.Fatalf("dropped %d sessions, want 1", dropped)
	}
	if s.Mode(2) != ModeSendingToken {
		t.Fatal("live session was purged")
	}
}
