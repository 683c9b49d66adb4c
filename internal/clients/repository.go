// Package clients owns the shared client records keyed by email identity.
package clients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Client represents a customer identified by their email address.
type Client struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// UpsertParams carries the identity fields for an upsert.
type UpsertParams struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// Querier is the subset of pgx needed for client writes. Both *pgxpool.Pool
// and pgx.Tx satisfy it, so the resolver can upsert inside its transaction.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores clients in the relational database.
type Repository struct {
	db Querier
}

// NewRepository initializes a repo backed by pgxpool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("clients: pgx pool required")
	}
	return &Repository{db: pool}
}

func newRepositoryWithQuerier(q Querier) *Repository {
	if q == nil {
		panic("clients: querier required")
	}
	return &Repository{db: q}
}

// Upsert inserts or refreshes a client row matched case-insensitively on
// email, returning the canonical row id.
func (r *Repository) Upsert(ctx context.Context, params UpsertParams) (*Client, error) {
	return Upsert(ctx, r.db, params)
}

// Upsert performs the upsert against any Querier, typically a transaction.
func Upsert(ctx context.Context, db Querier, params UpsertParams) (*Client, error) {
	email := strings.TrimSpace(params.Email)
	if email == "" {
		return nil, fmt.Errorf("clients: email required")
	}

	query := `
		INSERT INTO clients (id, first_name, last_name, email, phone)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (lower(email)) DO UPDATE
		SET first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    phone = CASE WHEN EXCLUDED.phone <> '' THEN EXCLUDED.phone ELSE clients.phone END
		RETURNING id, first_name, last_name, email, phone, created_at
	`
	var c Client
	if err := db.QueryRow(ctx, query,
		uuid.New(),
		params.FirstName,
		params.LastName,
		email,
		params.Phone,
	).Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.CreatedAt); err != nil {
		return nil, fmt.Errorf("clients: upsert: %w", err)
	}
	return &c, nil
}
