package booking

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotleaf/booking-platform/internal/schedule"
)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists booking requests and their candidates.
type Store struct {
	db querier
}

// NewStore creates a store backed by pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("booking: pgx pool required")
	}
	return &Store{db: pool}
}

func newStoreWithQuerier(q querier) *Store {
	if q == nil {
		panic("booking: querier required")
	}
	return &Store{db: q}
}

// CreateRequestParams describes a new pending request.
type CreateRequestParams struct {
	ServiceID uuid.UUID
	Window    schedule.Window
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Notes     string
	ExpiresAt time.Time
}

// CreateRequest inserts a pending request row.
func (s *Store) CreateRequest(ctx context.Context, params CreateRequestParams) (*Request, error) {
	req := Request{
		ID:        uuid.New(),
		ServiceID: params.ServiceID,
		StartsAt:  params.Window.Start,
		EndsAt:    params.Window.End,
		FirstName: params.FirstName,
		LastName:  params.LastName,
		Email:     params.Email,
		Phone:     params.Phone,
		Notes:     params.Notes,
		Status:    StatusPending,
		ExpiresAt: params.ExpiresAt,
	}
	query := `
		INSERT INTO appointment_requests
			(id, service_id, starts_at, ends_at, first_name, last_name, email, phone, notes, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', $10)
		RETURNING created_at
	`
	if err := s.db.QueryRow(ctx, query,
		req.ID,
		req.ServiceID,
		req.StartsAt,
		req.EndsAt,
		req.FirstName,
		req.LastName,
		req.Email,
		req.Phone,
		req.Notes,
		req.ExpiresAt,
	).Scan(&req.CreatedAt); err != nil {
		return nil, fmt.Errorf("booking: insert request: %w", err)
	}
	return &req, nil
}

// CreateCandidate issues a fresh single-use token for the (request, coach)
// pair and inserts the candidate row. The unique constraint on the pair
// keeps a coach from being invited twice.
func (s *Store) CreateCandidate(ctx context.Context, requestID, coachID uuid.UUID) (*Candidate, error) {
	token, err := newDecisionToken()
	if err != nil {
		return nil, err
	}
	cand := Candidate{
		ID:        uuid.New(),
		RequestID: requestID,
		CoachID:   coachID,
		Token:     token,
	}
	query := `
		INSERT INTO appointment_candidates (id, request_id, coach_id, token)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	if err := s.db.QueryRow(ctx, query, cand.ID, cand.RequestID, cand.CoachID, cand.Token).Scan(&cand.CreatedAt); err != nil {
		return nil, fmt.Errorf("booking: insert candidate: %w", err)
	}
	return &cand, nil
}

// newDecisionToken returns 32 random bytes hex-encoded. The token is the
// bearer capability embedded in a coach's decision link.
func newDecisionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("booking: generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
