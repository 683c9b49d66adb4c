// Package appointments persists confirmed appointments and answers the
// overlap questions the booking engine asks before creating new ones.
package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotleaf/booking-platform/internal/schedule"
)

// Appointment statuses.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
)

// Appointment is a confirmed, coach-owned time window.
type Appointment struct {
	ID        uuid.UUID `json:"id"`
	ClientID  uuid.UUID `json:"client_id"`
	CoachID   uuid.UUID `json:"coach_id"`
	ServiceID uuid.UUID `json:"service_id"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Querier is the pgx subset the repo needs; pgx.Tx satisfies it so writes
// can join the resolver's transaction.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads and writes appointment rows.
type Repository struct {
	db Querier
}

// NewRepository initializes a repo backed by pgxpool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &Repository{db: pool}
}

func newRepositoryWithQuerier(q Querier) *Repository {
	if q == nil {
		panic("appointments: querier required")
	}
	return &Repository{db: q}
}

// ServiceSlotTaken reports whether any scheduled appointment for the service
// intersects the window. Used at intake before a request row exists.
func (r *Repository) ServiceSlotTaken(ctx context.Context, serviceID uuid.UUID, window schedule.Window) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE service_id = $1 AND status = 'scheduled'
			  AND starts_at < $3 AND $2 < ends_at
		)
	`
	var taken bool
	if err := r.db.QueryRow(ctx, query, serviceID, window.Start, window.End).Scan(&taken); err != nil {
		return false, fmt.Errorf("appointments: service overlap check: %w", err)
	}
	return taken, nil
}

// CoachSlotTaken reports whether the coach already holds a scheduled
// appointment intersecting the window.
func (r *Repository) CoachSlotTaken(ctx context.Context, coachID uuid.UUID, window schedule.Window) (bool, error) {
	return CoachSlotTaken(ctx, r.db, coachID, window)
}

// CoachSlotTaken runs the coach overlap check against any Querier, typically
// the resolver's transaction so the re-check and the insert share a snapshot.
func CoachSlotTaken(ctx context.Context, db Querier, coachID uuid.UUID, window schedule.Window) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE coach_id = $1 AND status = 'scheduled'
			  AND starts_at < $3 AND $2 < ends_at
		)
	`
	var taken bool
	if err := db.QueryRow(ctx, query, coachID, window.Start, window.End).Scan(&taken); err != nil {
		return false, fmt.Errorf("appointments: coach overlap check: %w", err)
	}
	return taken, nil
}

// InsertParams describes a new scheduled appointment.
type InsertParams struct {
	ClientID  uuid.UUID
	CoachID   uuid.UUID
	ServiceID uuid.UUID
	Window    schedule.Window
}

// InsertScheduled creates the appointment row inside the caller's Querier.
func InsertScheduled(ctx context.Context, db Querier, params InsertParams) (*Appointment, error) {
	query := `
		INSERT INTO appointments (id, client_id, coach_id, service_id, starts_at, ends_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'scheduled')
		RETURNING created_at
	`
	appt := Appointment{
		ID:        uuid.New(),
		ClientID:  params.ClientID,
		CoachID:   params.CoachID,
		ServiceID: params.ServiceID,
		StartsAt:  params.Window.Start,
		EndsAt:    params.Window.End,
		Status:    StatusScheduled,
	}
	if err := db.QueryRow(ctx, query,
		appt.ID,
		appt.ClientID,
		appt.CoachID,
		appt.ServiceID,
		appt.StartsAt,
		appt.EndsAt,
	).Scan(&appt.CreatedAt); err != nil {
		return nil, fmt.Errorf("appointments: insert scheduled: %w", err)
	}
	return &appt, nil
}
