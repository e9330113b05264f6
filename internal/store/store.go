// Package store persists wallet bindings and the transaction audit log.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Transaction kinds recorded in the audit log.
const (
	KindSend = "SEND"
	KindSwap = "SWAP"
)

// UserBinding links a chat to its encrypted wallet secret.
type UserBinding struct {
	ChatID          int64     `db:"chat_id"`
	EncryptedSecret string    `db:"encrypted_secret"`
	PublicAddress   string    `db:"public_address"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// TransactionRecord is one executed send or swap.
type TransactionRecord struct {
	ID        int64           `db:"id"`
	ChatID    int64           `db:"chat_id"`
	Kind      string          `db:"kind"`
	Signature string          `db:"signature"`
	Amount    decimal.Decimal `db:"amount"`
	Token     string          `db:"token"`
	Recipient sql.NullString  `db:"recipient"`
	CreatedAt time.Time       `db:"created_at"`
}

// Store wraps the database handle.
type Store struct {
	db *sqlx.DB
}

// New builds a Store over an open connection.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// UpsertUser binds a wallet to a chat, replacing any previous binding.
func (s *Store) UpsertUser(ctx context.Context, chatID int64, encryptedSecret, publicAddress string) error {
	const q = `
		INSERT INTO users (chat_id, encrypted_secret, public_address)
		VALUES ($1, $2, $3)
		ON CONFLICT (chat_id) DO UPDATE
		SET encrypted_secret = EXCLUDED.encrypted_secret,
		    public_address   = EXCLUDED.public_address,
		    updated_at       = now()`
	if _, err := s.db.ExecContext(ctx, q, chatID, encryptedSecret, publicAddress); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetUser returns the wallet binding for a chat, or (nil, nil) when the chat
// has no imported wallet.
func (s *Store) GetUser(ctx context.Context, chatID int64) (*UserBinding, error) {
	const q = `SELECT chat_id, encrypted_secret, public_address, created_at, updated_at
		FROM users WHERE chat_id = $1`
	var u UserBinding
	if err := s.db.GetContext(ctx, &u, q, chatID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// InsertTransaction appends one executed action to the audit log.
func (s *Store) InsertTransaction(ctx context.Context, rec TransactionRecord) error {
	const q = `
		INSERT INTO transactions (chat_id, kind, signature, amount, token, recipient)
		VALUES (:chat_id, :kind, :signature, :amount, :token, :recipient)`
	if _, err := s.db.NamedExecContext(ctx, q, rec); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}
