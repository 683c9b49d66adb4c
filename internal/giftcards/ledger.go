package giftcards

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/slotleaf/booking-platform/internal/observability/metrics"
	"github.com/slotleaf/booking-platform/pkg/logging"
)

const uniqueViolation = "23505"

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Ledger owns all gift-card mutations.
type Ledger struct {
	db      txBeginner
	logger  *logging.Logger
	metrics *metrics.BookingMetrics
}

// NewLedger creates a ledger backed by pgx pool.
func NewLedger(pool *pgxpool.Pool, logger *logging.Logger) *Ledger {
	if pool == nil {
		panic("giftcards: pgx pool required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Ledger{db: pool, logger: logger}
}

func newLedgerWithDB(db txBeginner, logger *logging.Logger) *Ledger {
	if logger == nil {
		logger = logging.Default()
	}
	return &Ledger{db: db, logger: logger}
}

// WithMetrics attaches debit observations.
func (l *Ledger) WithMetrics(m *metrics.BookingMetrics) *Ledger {
	l.metrics = m
	return l
}

// Debit takes up to amount from the card and returns what was actually
// debited. The card row is locked for the duration of the transaction, so
// two concurrent debits serialize and the balance can never go negative.
// An unknown, inactive or exhausted card is a logged no-op, not an error.
func (l *Ledger) Debit(ctx context.Context, code string, amount decimal.Decimal, appointmentID *uuid.UUID) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, nil
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("giftcards: begin debit tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id uuid.UUID
	var remaining decimal.Decimal
	var status string
	err = tx.QueryRow(ctx, `
		SELECT id, remaining, status
		FROM gift_cards
		WHERE code = $1
		FOR UPDATE
	`, code).Scan(&id, &remaining, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			l.logger.Warn("debit against unknown gift card", "code", code)
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("giftcards: lock card: %w", err)
	}

	if status != StatusActive || remaining.LessThanOrEqual(decimal.Zero) {
		l.logger.Warn("debit against unusable gift card", "card_id", id, "status", status)
		return decimal.Zero, nil
	}

	debited := decimal.Min(amount, remaining)
	newRemaining := remaining.Sub(debited)
	newStatus := StatusActive
	if newRemaining.IsZero() {
		newStatus = StatusEmpty
	}

	if _, err := tx.Exec(ctx, `
		UPDATE gift_cards
		SET remaining = $2, status = $3
		WHERE id = $1
	`, id, newRemaining, newStatus); err != nil {
		return decimal.Zero, fmt.Errorf("giftcards: update balance: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO gift_card_redemptions (id, gift_card_id, amount, appointment_id)
		VALUES ($1, $2, $3, $4)
	`, uuid.New(), id, debited, appointmentID); err != nil {
		return decimal.Zero, fmt.Errorf("giftcards: record redemption: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("giftcards: commit debit: %w", err)
	}

	l.metrics.ObserveDebit(debited.InexactFloat64())
	l.logger.Info("gift card debited", "card_id", id, "debited", debited, "remaining", newRemaining)
	return debited, nil
}

// Create records a purchased card under a freshly generated code, retrying
// on the unlikely code collision.
func (l *Ledger) Create(ctx context.Context, amount decimal.Decimal, buyerEmail, recipientEmail string) (*GiftCard, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("giftcards: amount must be positive")
	}

	for attempt := 0; attempt < 5; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return nil, err
		}
		card := GiftCard{
			ID:             uuid.New(),
			Code:           code,
			Amount:         amount,
			Remaining:      amount,
			Status:         StatusActive,
			BuyerEmail:     buyerEmail,
			RecipientEmail: recipientEmail,
		}
		err = l.db.QueryRow(ctx, `
			INSERT INTO gift_cards (id, code, amount, remaining, status, buyer_email, recipient_email)
			VALUES ($1, $2, $3, $4, 'active', $5, $6)
			RETURNING created_at
		`, card.ID, card.Code, card.Amount, card.Remaining, card.BuyerEmail, card.RecipientEmail).Scan(&card.CreatedAt)
		if err == nil {
			l.logger.Info("gift card created", "card_id", card.ID, "amount", amount)
			return &card, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			continue
		}
		return nil, fmt.Errorf("giftcards: insert card: %w", err)
	}
	return nil, fmt.Errorf("giftcards: could not generate unique code")
}
