// Package decision implements the first-accept-wins arbitration over booking
// requests. Every mutation here runs in one transaction; the conditional
// status update on the request row is the single gate deciding the race.
package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotleaf/booking-platform/internal/appointments"
	"github.com/slotleaf/booking-platform/internal/booking"
	"github.com/slotleaf/booking-platform/internal/clients"
	"github.com/slotleaf/booking-platform/internal/observability/metrics"
	"github.com/slotleaf/booking-platform/internal/schedule"
	"github.com/slotleaf/booking-platform/pkg/logging"
)

// Action is what the token holder asked for.
type Action string

const (
	ActionAccept  Action = "accept"
	ActionDecline Action = "decline"
)

// Outcome of resolving a decision token.
type Outcome string

const (
	// OutcomeWon: the caller's accept converted the request into an appointment.
	OutcomeWon Outcome = "won"
	// OutcomeAlreadyResolved: another candidate won the race first.
	OutcomeAlreadyResolved Outcome = "already_resolved"
	// OutcomeTokenUnknown: the token matches no outstanding candidate.
	OutcomeTokenUnknown Outcome = "token_unknown"
	// OutcomeSlotGone: the coach was double-booked since the invite went out.
	OutcomeSlotGone Outcome = "slot_gone"
	// OutcomeDeclined: the candidate withdrew (idempotent).
	OutcomeDeclined Outcome = "declined"
	// OutcomeExpired: the request outlived its decision window.
	OutcomeExpired Outcome = "expired"
)

// Result reports how a token resolution ended.
type Result struct {
	Outcome     Outcome
	RequestID   uuid.UUID
	CoachID     uuid.UUID
	Appointment *appointments.Appointment
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Resolver applies accept/decline decisions.
type Resolver struct {
	db      txBeginner
	logger  *logging.Logger
	metrics *metrics.BookingMetrics
}

// NewResolver creates a resolver backed by pgx pool.
func NewResolver(pool *pgxpool.Pool, logger *logging.Logger) *Resolver {
	if pool == nil {
		panic("decision: pgx pool required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{db: pool, logger: logger}
}

func newResolverWithDB(db txBeginner, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{db: db, logger: logger}
}

// WithMetrics attaches resolution counters.
func (r *Resolver) WithMetrics(m *metrics.BookingMetrics) *Resolver {
	r.metrics = m
	return r
}

// candidateRow is the joined view the resolver works from.
type candidateRow struct {
	CandidateID uuid.UUID
	RequestID   uuid.UUID
	CoachID     uuid.UUID
	ServiceID   uuid.UUID
	Window      schedule.Window
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Status      string
	ExpiresAt   time.Time
}

// Resolve looks up the candidate behind the token and applies the action.
// Safe to call any number of times with the same token: only the first
// effective call mutates state.
func (r *Resolver) Resolve(ctx context.Context, token string, action Action) (Result, error) {
	var result Result
	var err error
	switch action {
	case ActionAccept:
		result, err = r.accept(ctx, token)
	case ActionDecline:
		result, err = r.decline(ctx, token)
	default:
		return Result{}, fmt.Errorf("decision: unknown action %q", action)
	}
	if err == nil {
		r.metrics.ObserveResolution(string(result.Outcome))
	}
	return result, err
}

func (r *Resolver) accept(ctx context.Context, token string) (Result, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("decision: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row, err := lookupCandidate(ctx, tx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Result{Outcome: OutcomeTokenUnknown}, nil
		}
		return Result{}, err
	}

	if row.Status != booking.StatusPending {
		return Result{Outcome: OutcomeAlreadyResolved, RequestID: row.RequestID, CoachID: row.CoachID}, nil
	}

	if time.Now().UTC().After(row.ExpiresAt) {
		if err := expireRequest(ctx, tx, row.RequestID); err != nil {
			return Result{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return Result{}, fmt.Errorf("decision: commit expiry: %w", err)
		}
		r.logger.Info("decision token used after expiry", "request_id", row.RequestID)
		return Result{Outcome: OutcomeExpired, RequestID: row.RequestID, CoachID: row.CoachID}, nil
	}

	// The conditional update is the arbitration gate: exactly one concurrent
	// accept can move the request out of pending.
	ct, err := tx.Exec(ctx, `
		UPDATE appointment_requests
		SET status = 'accepted'
		WHERE id = $1 AND status = 'pending'
	`, row.RequestID)
	if err != nil {
		return Result{}, fmt.Errorf("decision: accept request: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return Result{Outcome: OutcomeAlreadyResolved, RequestID: row.RequestID, CoachID: row.CoachID}, nil
	}

	client, err := clients.Upsert(ctx, tx, clients.UpsertParams{
		FirstName: row.FirstName,
		LastName:  row.LastName,
		Email:     row.Email,
		Phone:     row.Phone,
	})
	if err != nil {
		return Result{}, err
	}

	taken, err := appointments.CoachSlotTaken(ctx, tx, row.CoachID, row.Window)
	if err != nil {
		return Result{}, err
	}
	if taken {
		// Rolling back leaves the request pending so a sibling candidate with
		// a free calendar can still claim it.
		r.logger.Warn("accept lost slot to existing appointment", "request_id", row.RequestID, "coach_id", row.CoachID)
		return Result{Outcome: OutcomeSlotGone, RequestID: row.RequestID, CoachID: row.CoachID}, nil
	}

	appt, err := appointments.InsertScheduled(ctx, tx, appointments.InsertParams{
		ClientID:  client.ID,
		CoachID:   row.CoachID,
		ServiceID: row.ServiceID,
		Window:    row.Window,
	})
	if err != nil {
		return Result{}, err
	}

	// Every sibling token dies with the candidates; later accepts or
	// declines resolve to TokenUnknown/AlreadyResolved.
	if _, err := tx.Exec(ctx, `DELETE FROM appointment_candidates WHERE request_id = $1`, row.RequestID); err != nil {
		return Result{}, fmt.Errorf("decision: clear candidates: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("decision: commit accept: %w", err)
	}

	r.logger.Info("booking request accepted",
		"request_id", row.RequestID,
		"coach_id", row.CoachID,
		"appointment_id", appt.ID,
	)
	return Result{Outcome: OutcomeWon, RequestID: row.RequestID, CoachID: row.CoachID, Appointment: appt}, nil
}

func (r *Resolver) decline(ctx context.Context, token string) (Result, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("decision: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var requestID, coachID uuid.UUID
	err = tx.QueryRow(ctx, `
		DELETE FROM appointment_candidates
		WHERE token = $1
		RETURNING request_id, coach_id
	`, token).Scan(&requestID, &coachID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Deleting an absent row is the idempotent no-op the decliner
			// expects; the race may already have been resolved.
			return Result{Outcome: OutcomeDeclined}, nil
		}
		return Result{}, fmt.Errorf("decision: delete candidate: %w", err)
	}

	// When the last candidate walks away a pending request can never be
	// accepted; close it out deterministically.
	if _, err := tx.Exec(ctx, `
		UPDATE appointment_requests
		SET status = 'declined'
		WHERE id = $1 AND status = 'pending'
		  AND NOT EXISTS (SELECT 1 FROM appointment_candidates WHERE request_id = $1)
	`, requestID); err != nil {
		return Result{}, fmt.Errorf("decision: close declined request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("decision: commit decline: %w", err)
	}

	r.logger.Info("candidate declined", "request_id", requestID, "coach_id", coachID)
	return Result{Outcome: OutcomeDeclined, RequestID: requestID, CoachID: coachID}, nil
}

func lookupCandidate(ctx context.Context, tx pgx.Tx, token string) (*candidateRow, error) {
	var row candidateRow
	err := tx.QueryRow(ctx, `
		SELECT c.id, c.request_id, c.coach_id,
		       r.service_id, r.starts_at, r.ends_at,
		       r.first_name, r.last_name, r.email, r.phone,
		       r.status, r.expires_at
		FROM appointment_candidates c
		JOIN appointment_requests r ON r.id = c.request_id
		WHERE c.token = $1
	`, token).Scan(
		&row.CandidateID,
		&row.RequestID,
		&row.CoachID,
		&row.ServiceID,
		&row.Window.Start,
		&row.Window.End,
		&row.FirstName,
		&row.LastName,
		&row.Email,
		&row.Phone,
		&row.Status,
		&row.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("decision: lookup candidate: %w", err)
	}
	return &row, nil
}

func expireRequest(ctx context.Context, tx pgx.Tx, requestID uuid.UUID) error {
	if _, err := tx.Exec(ctx, `
		UPDATE appointment_requests
		SET status = 'expired'
		WHERE id = $1 AND status = 'pending'
	`, requestID); err != nil {
		return fmt.Errorf("decision: expire request: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM appointment_candidates WHERE request_id = $1`, requestID); err != nil {
		return fmt.Errorf("decision: clear expired candidates: %w", err)
	}
	return nil
}
