// Package booking owns the booking request aggregate: the request row, its
// candidate coaches, and the intake flow that creates both.
package booking

import (
	"time"

	"github.com/google/uuid"
)

// Request statuses. A request leaves pending exactly once, either through
// the decision resolver or the expiry sweep.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
	StatusExpired  = "expired"
)

// Request is a customer's ask for a service in a concrete time window. The
// stored window already includes the post-appointment buffer.
type Request struct {
	ID        uuid.UUID `json:"id"`
	ServiceID uuid.UUID `json:"service_id"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Notes     string    `json:"notes"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Candidate is one coach's standing offer to claim a request. Presence means
// the offer is still open; the row disappears on decline or when the race is
// resolved.
type Candidate struct {
	ID        uuid.UUID `json:"id"`
	RequestID uuid.UUID `json:"request_id"`
	CoachID   uuid.UUID `json:"coach_id"`
	Token     string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// IntakeRequest is the POST /bookings payload.
type IntakeRequest struct {
	FirstName     string      `json:"firstName"`
	LastName      string      `json:"lastName"`
	Email         string      `json:"email"`
	Phone         string      `json:"phone"`
	ServiceID     uuid.UUID   `json:"serviceId"`
	StartsAt      time.Time   `json:"startsAt"`
	EndsAt        *time.Time  `json:"endsAt,omitempty"`
	Notes         string      `json:"notes"`
	SupplementIDs []uuid.UUID `json:"supplementIds,omitempty"`
}

// Validate checks the required intake fields.
func (r *IntakeRequest) Validate() error {
	if r.FirstName == "" || r.LastName == "" {
		return ErrMissingName
	}
	if r.Email == "" {
		return ErrMissingEmail
	}
	if r.ServiceID == uuid.Nil {
		return ErrMissingService
	}
	if r.StartsAt.IsZero() {
		return ErrMissingStart
	}
	if r.EndsAt != nil && !r.EndsAt.After(r.StartsAt) {
		return ErrInvalidWindow
	}
	return nil
}

// IntakeResult is the POST /bookings response body.
type IntakeResult struct {
	RequestID         uuid.UUID   `json:"requestId"`
	ClientID          uuid.UUID   `json:"clientId"`
	CandidateCoachIDs []uuid.UUID `json:"candidateCoachIds"`
	QueuedEmailCount  int         `json:"queuedEmailCount"`
}
