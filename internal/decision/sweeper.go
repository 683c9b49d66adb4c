package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotleaf/booking-platform/pkg/logging"
)

// Sweeper closes out pending requests that outlived their decision window.
// The resolver already expires lazily on token use; the sweep catches
// requests nobody clicks.
type Sweeper struct {
	db       txBeginner
	logger   *logging.Logger
	interval time.Duration
}

// NewSweeper creates a sweeper backed by pgx pool.
func NewSweeper(pool *pgxpool.Pool, logger *logging.Logger) *Sweeper {
	if pool == nil {
		panic("decision: pgx pool required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{db: pool, logger: logger, interval: 10 * time.Minute}
}

func newSweeperWithDB(db txBeginner, logger *logging.Logger) *Sweeper {
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{db: db, logger: logger, interval: 10 * time.Minute}
}

// WithInterval overrides the sweep interval.
func (s *Sweeper) WithInterval(interval time.Duration) *Sweeper {
	if interval > 0 {
		s.interval = interval
	}
	return s
}

// Start blocks sweeping until the context is canceled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("expiry sweep failed", "error", err)
			} else if n > 0 {
				s.logger.Info("expired booking requests", "count", n)
			}
		}
	}
}

// SweepOnce expires every overdue pending request and removes its
// candidates, returning how many requests were closed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("decision: begin sweep tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		UPDATE appointment_requests
		SET status = 'expired'
		WHERE status = 'pending' AND expires_at < now()
		RETURNING id
	`)
	if err != nil {
		return 0, fmt.Errorf("decision: expire overdue requests: %w", err)
	}
	var expired []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("decision: scan expired id: %w", err)
		}
		expired = append(expired, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("decision: iterate expired ids: %w", err)
	}

	if len(expired) == 0 {
		return 0, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM appointment_candidates WHERE request_id = ANY($1)`, expired); err != nil {
		return 0, fmt.Errorf("decision: clear expired candidates: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("decision: commit sweep: %w", err)
	}
	return len(expired), nil
}
