package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotleaf/booking-platform/internal/schedule"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads services and coaches from the relational store.
type Repository struct {
	db querier
}

// NewRepository initializes a repo backed by pgxpool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("catalog: pgx pool required")
	}
	return &Repository{db: pool}
}

func newRepositoryWithQuerier(q querier) *Repository {
	if q == nil {
		panic("catalog: querier required")
	}
	return &Repository{db: q}
}

// GetService loads an active service by id.
func (r *Repository) GetService(ctx context.Context, id uuid.UUID) (*Service, error) {
	query := `
		SELECT id, name, price, duration_minutes, active
		FROM services
		WHERE id = $1 AND active = TRUE
	`
	var svc Service
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&svc.ID,
		&svc.Name,
		&svc.Price,
		&svc.DurationMinutes,
		&svc.Active,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("catalog: select service: %w", err)
	}
	return &svc, nil
}

// SelectCandidates returns every active coach authorized to serve the
// service, ordered by coach id so the result is stable for a given snapshot.
// The window parameter is reserved for availability-rule filtering; today a
// coach is eligible whenever they offer the service and are active.
func (r *Repository) SelectCandidates(ctx context.Context, serviceID uuid.UUID, window schedule.Window) ([]Coach, error) {
	query := `
		SELECT c.id, c.name, c.email, c.active
		FROM coaches c
		JOIN coach_services cs ON cs.coach_id = c.id
		WHERE cs.service_id = $1 AND c.active = TRUE
		ORDER BY c.id
	`
	rows, err := r.db.Query(ctx, query, serviceID)
	if err != nil {
		return nil, fmt.Errorf("catalog: select candidates: %w", err)
	}
	defer rows.Close()

	var coaches []Coach
	for rows.Next() {
		var c Coach
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Active); err != nil {
			return nil, fmt.Errorf("catalog: scan candidate: %w", err)
		}
		coaches = append(coaches, c)
	}
	return coaches, rows.Err()
}
