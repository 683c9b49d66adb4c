package booking

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/slotleaf/booking-platform/internal/catalog"
	"github.com/slotleaf/booking-platform/internal/clients"
	"github.com/slotleaf/booking-platform/internal/observability/metrics"
	"github.com/slotleaf/booking-platform/internal/outbox"
	"github.com/slotleaf/booking-platform/internal/schedule"
	"github.com/slotleaf/booking-platform/pkg/logging"
)

type serviceCatalog interface {
	GetService(ctx context.Context, id uuid.UUID) (*catalog.Service, error)
	SelectCandidates(ctx context.Context, serviceID uuid.UUID, window schedule.Window) ([]catalog.Coach, error)
}

type slotChecker interface {
	ServiceSlotTaken(ctx context.Context, serviceID uuid.UUID, window schedule.Window) (bool, error)
}

type clientUpserter interface {
	Upsert(ctx context.Context, params clients.UpsertParams) (*clients.Client, error)
}

type requestStore interface {
	CreateRequest(ctx context.Context, params CreateRequestParams) (*Request, error)
	CreateCandidate(ctx context.Context, requestID, coachID uuid.UUID) (*Candidate, error)
}

type outboxEnqueuer interface {
	Enqueue(ctx context.Context, recipient, recipientName, subject, body string) (uuid.UUID, error)
}

// Service runs the booking intake flow: validate, guard the slot, persist
// the request, fan out candidate invites through the outbox.
type Service struct {
	catalog    serviceCatalog
	slots      slotChecker
	clients    clientUpserter
	store      requestStore
	outbox     outboxEnqueuer
	logger     *logging.Logger
	metrics    *metrics.BookingMetrics
	baseURL    string
	requestTTL time.Duration
	staffEmail string
}

// ServiceConfig wires the intake service.
type ServiceConfig struct {
	Catalog    serviceCatalog
	Slots      slotChecker
	Clients    clientUpserter
	Store      requestStore
	Outbox     outboxEnqueuer
	Logger     *logging.Logger
	Metrics    *metrics.BookingMetrics
	BaseURL    string
	RequestTTL time.Duration
	StaffEmail string
}

// NewService constructs the intake service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.RequestTTL <= 0 {
		cfg.RequestTTL = 72 * time.Hour
	}
	return &Service{
		catalog:    cfg.Catalog,
		slots:      cfg.Slots,
		clients:    cfg.Clients,
		store:      cfg.Store,
		outbox:     cfg.Outbox,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		baseURL:    cfg.BaseURL,
		requestTTL: cfg.RequestTTL,
		staffEmail: cfg.StaffEmail,
	}
}

// Intake processes one booking request end to end. On a slot conflict it
// returns ErrSlotTaken before any row is written.
func (s *Service) Intake(ctx context.Context, req IntakeRequest) (*IntakeResult, error) {
	if err := req.Validate(); err != nil {
		s.metrics.ObserveIntake("invalid")
		return nil, err
	}

	svc, err := s.catalog.GetService(ctx, req.ServiceID)
	if err != nil {
		if errors.Is(err, catalog.ErrServiceNotFound) {
			s.metrics.ObserveIntake("invalid")
			return nil, ErrMissingService
		}
		return nil, err
	}

	duration := svc.Duration()
	for _, supID := range req.SupplementIDs {
		sup, err := s.catalog.GetService(ctx, supID)
		if err != nil {
			if errors.Is(err, catalog.ErrServiceNotFound) {
				s.metrics.ObserveIntake("invalid")
				return nil, ErrMissingService
			}
			return nil, err
		}
		duration += sup.Duration()
	}

	window := schedule.NewWindow(req.StartsAt.UTC(), duration)

	taken, err := s.slots.ServiceSlotTaken(ctx, svc.ID, window)
	if err != nil {
		return nil, err
	}
	if taken {
		s.metrics.ObserveIntake("conflict")
		return nil, ErrSlotTaken
	}

	client, err := s.clients.Upsert(ctx, clients.UpsertParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		return nil, err
	}

	request, err := s.store.CreateRequest(ctx, CreateRequestParams{
		ServiceID: svc.ID,
		Window:    window,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Notes:     req.Notes,
		ExpiresAt: time.Now().UTC().Add(s.requestTTL),
	})
	if err != nil {
		return nil, err
	}

	coaches, err := s.catalog.SelectCandidates(ctx, svc.ID, window)
	if err != nil {
		return nil, err
	}

	result := &IntakeResult{RequestID: request.ID, ClientID: client.ID}
	slotText := outbox.FormatSlot(window.Start)

	for _, coach := range coaches {
		cand, err := s.store.CreateCandidate(ctx, request.ID, coach.ID)
		if err != nil {
			return nil, err
		}
		body, err := outbox.RenderCoachInvite(outbox.CoachInviteData{
			CoachName:   coach.Name,
			ServiceName: svc.Name,
			StartsAt:    slotText,
			AcceptURL:   s.decisionURL(cand.Token, "accept"),
			DeclineURL:  s.decisionURL(cand.Token, "decline"),
		})
		if err != nil {
			return nil, err
		}
		if _, err := s.outbox.Enqueue(ctx, coach.Email, coach.Name, "New booking request: "+svc.Name, body); err != nil {
			return nil, err
		}
		result.CandidateCoachIDs = append(result.CandidateCoachIDs, coach.ID)
		result.QueuedEmailCount++
	}

	if len(coaches) == 0 && s.staffEmail != "" {
		body, err := outbox.RenderStaffFallback(outbox.StaffFallbackData{
			ServiceName:   svc.Name,
			StartsAt:      slotText,
			CustomerName:  req.FirstName + " " + req.LastName,
			CustomerEmail: req.Email,
			RequestID:     request.ID.String(),
		})
		if err != nil {
			return nil, err
		}
		if _, err := s.outbox.Enqueue(ctx, s.staffEmail, "", "Booking request needs attention", body); err != nil {
			return nil, err
		}
		result.QueuedEmailCount++
	}

	confirmation, err := outbox.RenderCustomerConfirmation(outbox.CustomerConfirmationData{
		FirstName:   req.FirstName,
		ServiceName: svc.Name,
		StartsAt:    slotText,
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.outbox.Enqueue(ctx, req.Email, req.FirstName+" "+req.LastName, "We received your booking request", confirmation); err != nil {
		return nil, err
	}
	result.QueuedEmailCount++

	s.metrics.ObserveIntake("created")
	s.logger.Info("booking request created",
		"request_id", request.ID,
		"service_id", svc.ID,
		"candidates", len(result.CandidateCoachIDs),
		"queued_emails", result.QueuedEmailCount,
	)
	return result, nil
}

func (s *Service) decisionURL(token, action string) string {
	return fmt.Sprintf("%s/decisions?token=%s&d=%s", s.baseURL, url.QueryEscape(token), action)
}
