package flow

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/getbits/solbot/internal/market"
)

// Mode is the conversational state of a chat.
type Mode int

const (
	// ModeIdle means no dialog step is awaiting input.
	ModeIdle Mode = iota
	// ModeAwaitingSecret means the next free-text message is a wallet secret.
	ModeAwaitingSecret
	// ModeSendingNative means the next message is "<recipient> <amount>" in SOL.
	ModeSendingNative
	// ModeSendingToken means the next message is "<recipient> <token> <amount>".
	ModeSendingToken
	// ModeSwapping means the next message is "<from> <to> <amount>".
	ModeSwapping
)

// PendingAction is a fully computed intent awaiting a single confirmation.
type PendingAction interface{ pendingAction() }

// TransferIntent is a captured native SOL transfer.
type TransferIntent struct {
	Recipient string
	Amount    decimal.Decimal
	Lamports  uint64
}

func (*TransferIntent) pendingAction() {}

// TokenTransferIntent is a captured SPL token transfer. Decimals are resolved
// at execution time from the mint.
type TokenTransferIntent struct {
	Recipient string
	Mint      string
	Symbol    string
	Amount    decimal.Decimal
}

func (*TokenTransferIntent) pendingAction() {}

// SwapIntent is a captured swap with its priced quote. Confirmation submits
// this exact quote; it is never re-priced.
type SwapIntent struct {
	From        market.Token
	To          market.Token
	Amount      decimal.Decimal
	AmountBase  uint64
	Quote       market.Quote
	ExpectedOut decimal.Decimal
}

func (*SwapIntent) pendingAction() {}

type session struct {
	mode    Mode
	pending PendingAction
	touched time.Time
}

// Sessions is the in-memory per-chat session store. Entries expire after the
// configured TTL; expiry is enforced on access and by Purge.
type Sessions struct {
	mu  sync.Mutex
	m   map[int64]*session
	ttl time.Duration
	now func() time.Time
}

// NewSessions builds a session store with the given TTL.
func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Sessions{
		m:   make(map[int64]*session),
		ttl: ttl,
		now: time.Now,
	}
}

// get returns the live session for a chat, dropping it when expired.
// Callers must hold s.mu.
func (s *Sessions) get(chatID int64) *session {
	sess, ok := s.m[chatID]
	if !ok {
		return nil
	}
	if s.now().Sub(sess.touched) > s.ttl {
		delete(s.m, chatID)
		return nil
	}
	return sess
}

// Mode returns the chat's current mode.
func (s *Sessions) Mode(chatID int64) Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.get(chatID); sess != nil {
		return sess.mode
	}
	return ModeIdle
}

// SetMode moves the chat into a dialog step and clears any pending action.
func (s *Sessions) SetMode(chatID int64, mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[chatID] = &session{mode: mode, touched: s.now()}
}

// SetPending stores a computed intent and returns the chat to no-input mode:
// the next expected interaction is a button press, not text.
func (s *Sessions) SetPending(chatID int64, p PendingAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[chatID] = &session{mode: ModeIdle, pending: p, touched: s.now()}
}

// TakePending atomically removes and returns the pending action, so two
// concurrent confirmations cannot both execute it.
func (s *Sessions) TakePending(chatID int64) (PendingAction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.get(chatID)
	if sess == nil || sess.pending == nil {
		return nil, false
	}
	p := sess.pending
	delete(s.m, chatID)
	return p, true
}

// TakePendingIf removes and returns the pending action only when match
// accepts it. A mismatched confirmation must not consume someone else's
// pending action.
func (s *Sessions) TakePendingIf(chatID int64, match func(PendingAction) bool) (PendingAction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.get(chatID)
	if sess == nil || sess.pending == nil || !match(sess.pending) {
		return nil, false
	}
	p := sess.pending
	delete(s.m, chatID)
	return p, true
}

// Reset drops all state for the chat and reports whether anything was active.
func (s *Sessions) Reset(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.get(chatID)
	delete(s.m, chatID)
	return sess != nil && (sess.mode != ModeIdle || sess.pending != nil)
}

// InProgress reports whether the chat has a dialog step awaiting text input.
func (s *Sessions) InProgress(chatID int64) bool {
	return s.Mode(chatID) != ModeIdle
}

// Purge drops every expired session. Meant to run on a ticker.
func (s *Sessions) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	dropped := 0
	for id, sess := range s.m {
		if now.Sub(sess.touched) > s.ttl {
			delete(s.m, id)
			dropped++
		}
	}
	return dropped
}
