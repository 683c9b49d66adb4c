// Package outbox is the durable record of outbound email. Messages are
// inserted before any delivery attempt and marked sent afterwards, giving
// at-least-once delivery across crashes.
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Message is a pending or delivered email.
type Message struct {
	ID            uuid.UUID
	Recipient     string
	RecipientName string
	Subject       string
	Body          string
	SentAt        *time.Time
	CreatedAt     time.Time
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store persists outbox messages.
type Store struct {
	db querier
}

// NewStore creates a store backed by pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("outbox: pgx pool required")
	}
	return &Store{db: pool}
}

func newStoreWithQuerier(q querier) *Store {
	if q == nil {
		panic("outbox: querier required")
	}
	return &Store{db: q}
}

// Enqueue inserts the message with a null sent timestamp. Durability first:
// the row exists before anyone tries to deliver it.
func (s *Store) Enqueue(ctx context.Context, recipient, recipientName, subject, body string) (uuid.UUID, error) {
	id := uuid.New()
	query := `
		INSERT INTO email_outbox (id, recipient, recipient_name, subject, body)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.db.Exec(ctx, query, id, recipient, recipientName, subject, body); err != nil {
		return uuid.Nil, fmt.Errorf("outbox: enqueue: %w", err)
	}
	return id, nil
}

// FetchUnsent returns the oldest messages without a sent timestamp.
func (s *Store) FetchUnsent(ctx context.Context, limit int32) ([]Message, error) {
	query := `
		SELECT id, recipient, recipient_name, subject, body, sent_at, created_at
		FROM email_outbox
		WHERE sent_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("outbox: fetch unsent: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Recipient, &m.RecipientName, &m.Subject, &m.Body, &m.SentAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("outbox: scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MarkSent stamps the delivery time. Repeating the call is harmless: the
// predicate only matches rows still unsent.
func (s *Store) MarkSent(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE email_outbox
		SET sent_at = now()
		WHERE id = $1 AND sent_at IS NULL
	`
	ct, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("outbox: mark sent: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}
