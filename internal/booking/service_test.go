package booking

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotleaf/booking-platform/internal/catalog"
	"github.com/slotleaf/booking-platform/internal/clients"
	"github.com/slotleaf/booking-platform/internal/schedule"
)

var start = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type fakeCatalog struct {
	services map[uuid.UUID]*catalog.Service
	coaches  []catalog.Coach
}

func (f *fakeCatalog) GetService(ctx context.Context, id uuid.UUID) (*catalog.Service, error) {
	svc, ok := f.services[id]
	if !ok {
		return nil, catalog.ErrServiceNotFound
	}
	return svc, nil
}

func (f *fakeCatalog) SelectCandidates(ctx context.Context, serviceID uuid.UUID, window schedule.Window) ([]catalog.Coach, error) {
	return f.coaches, nil
}

type fakeSlots struct {
	taken      bool
	lastWindow schedule.Window
}

func (f *fakeSlots) ServiceSlotTaken(ctx context.Context, serviceID uuid.UUID, window schedule.Window) (bool, error) {
	f.lastWindow = window
	return f.taken, nil
}

type fakeClients struct {
	id uuid.UUID
}

func (f *fakeClients) Upsert(ctx context.Context, params clients.UpsertParams) (*clients.Client, error) {
	return &clients.Client{ID: f.id, Email: params.Email}, nil
}

type fakeStore struct {
	requests   []CreateRequestParams
	candidates []uuid.UUID // coach ids
	tokens     []string
}

func (f *fakeStore) CreateRequest(ctx context.Context, params CreateRequestParams) (*Request, error) {
	f.requests = append(f.requests, params)
	return &Request{ID: uuid.New(), ServiceID: params.ServiceID, StartsAt: params.Window.Start, EndsAt: params.Window.End, Status: StatusPending}, nil
}

func (f *fakeStore) CreateCandidate(ctx context.Context, requestID, coachID uuid.UUID) (*Candidate, error) {
	token, err := newDecisionToken()
	if err != nil {
		return nil, err
	}
	f.candidates = append(f.candidates, coachID)
	f.tokens = append(f.tokens, token)
	return &Candidate{ID: uuid.New(), RequestID: requestID, CoachID: coachID, Token: token}, nil
}

type queuedEmail struct {
	recipient string
	subject   string
	body      string
}

type fakeOutbox struct {
	enqueued []queuedEmail
}

func (f *fakeOutbox) Enqueue(ctx context.Context, recipient, recipientName, subject, body string) (uuid.UUID, error) {
	f.enqueued = append(f.enqueued, queuedEmail{recipient: recipient, subject: subject, body: body})
	return uuid.New(), nil
}

func newTestService(cat *fakeCatalog, slots *fakeSlots, store *fakeStore, ob *fakeOutbox) *Service {
	return NewService(ServiceConfig{
		Catalog:    cat,
		Slots:      slots,
		Clients:    &fakeClients{id: uuid.New()},
		Store:      store,
		Outbox:     ob,
		BaseURL:    "https://book.example.com",
		RequestTTL: 48 * time.Hour,
		StaffEmail: "staff@example.com",
	})
}

func validIntake(serviceID uuid.UUID) IntakeRequest {
	return IntakeRequest{
		FirstName: "Mira",
		LastName:  "Kovacs",
		Email:     "mira@example.com",
		ServiceID: serviceID,
		StartsAt:  start,
	}
}

func massageService() *catalog.Service {
	return &catalog.Service{ID: uuid.New(), Name: "Deep Tissue Massage", DurationMinutes: 60, Active: true}
}

func TestIntakeHappyPath(t *testing.T) {
	svc := massageService()
	coachA := catalog.Coach{ID: uuid.New(), Name: "Alma", Email: "alma@example.com", Active: true}
	coachB := catalog.Coach{ID: uuid.New(), Name: "Bela", Email: "bela@example.com", Active: true}

	cat := &fakeCatalog{services: map[uuid.UUID]*catalog.Service{svc.ID: svc}, coaches: []catalog.Coach{coachA, coachB}}
	slots := &fakeSlots{}
	store := &fakeStore{}
	ob := &fakeOutbox{}

	result, err := newTestService(cat, slots, store, ob).Intake(context.Background(), validIntake(svc.ID))
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{coachA.ID, coachB.ID}, result.CandidateCoachIDs)
	// two invites plus the customer confirmation
	assert.Equal(t, 3, result.QueuedEmailCount)
	require.Len(t, ob.enqueued, 3)
	assert.Equal(t, "alma@example.com", ob.enqueued[0].recipient)
	assert.Contains(t, ob.enqueued[0].body, "d=accept")
	assert.Equal(t, "mira@example.com", ob.enqueued[2].recipient)

	// tokens are single-use and unique per candidate
	require.Len(t, store.tokens, 2)
	assert.NotEqual(t, store.tokens[0], store.tokens[1])

	// 60 min service blocks 70 min including buffer
	require.Len(t, store.requests, 1)
	assert.Equal(t, start, store.requests[0].Window.Start)
	assert.Equal(t, start.Add(70*time.Minute), store.requests[0].Window.End)
}

func TestIntakeConflictCreatesNothing(t *testing.T) {
	svc := massageService()
	cat := &fakeCatalog{services: map[uuid.UUID]*catalog.Service{svc.ID: svc}}
	store := &fakeStore{}
	ob := &fakeOutbox{}

	_, err := newTestService(cat, &fakeSlots{taken: true}, store, ob).Intake(context.Background(), validIntake(svc.ID))
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.Empty(t, store.requests)
	assert.Empty(t, ob.enqueued)
}

func TestIntakeValidation(t *testing.T) {
	svc := massageService()
	cat := &fakeCatalog{services: map[uuid.UUID]*catalog.Service{svc.ID: svc}}

	tests := []struct {
		name   string
		mutate func(*IntakeRequest)
		want   error
	}{
		{"missing first name", func(r *IntakeRequest) { r.FirstName = "" }, ErrMissingName},
		{"missing email", func(r *IntakeRequest) { r.Email = "" }, ErrMissingEmail},
		{"missing service", func(r *IntakeRequest) { r.ServiceID = uuid.Nil }, ErrMissingService},
		{"missing start", func(r *IntakeRequest) { r.StartsAt = time.Time{} }, ErrMissingStart},
		{"end before start", func(r *IntakeRequest) { e := r.StartsAt.Add(-time.Hour); r.EndsAt = &e }, ErrInvalidWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validIntake(svc.ID)
			tt.mutate(&req)
			_, err := newTestService(cat, &fakeSlots{}, &fakeStore{}, &fakeOutbox{}).Intake(context.Background(), req)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestIntakeUnknownServiceIsValidation(t *testing.T) {
	cat := &fakeCatalog{services: map[uuid.UUID]*catalog.Service{}}
	_, err := newTestService(cat, &fakeSlots{}, &fakeStore{}, &fakeOutbox{}).Intake(context.Background(), validIntake(uuid.New()))
	assert.ErrorIs(t, err, ErrMissingService)
}

func TestIntakeNoCandidatesQueuesStaffFallback(t *testing.T) {
	svc := massageService()
	cat := &fakeCatalog{services: map[uuid.UUID]*catalog.Service{svc.ID: svc}}
	ob := &fakeOutbox{}

	result, err := newTestService(cat, &fakeSlots{}, &fakeStore{}, ob).Intake(context.Background(), validIntake(svc.ID))
	require.NoError(t, err)

	assert.Empty(t, result.CandidateCoachIDs)
	// staff notice plus customer confirmation
	assert.Equal(t, 2, result.QueuedEmailCount)
	require.Len(t, ob.enqueued, 2)
	assert.Equal(t, "staff@example.com", ob.enqueued[0].recipient)
	assert.True(t, strings.Contains(ob.enqueued[0].body, "no eligible coach"))
}

func TestIntakeSupplementsExtendWindow(t *testing.T) {
	svc := massageService()
	sup := &catalog.Service{ID: uuid.New(), Name: "Hot Stones", DurationMinutes: 30, Active: true}
	cat := &fakeCatalog{services: map[uuid.UUID]*catalog.Service{svc.ID: svc, sup.ID: sup}}
	slots := &fakeSlots{}
	store := &fakeStore{}

	req := validIntake(svc.ID)
	req.SupplementIDs = []uuid.UUID{sup.ID}
	_, err := newTestService(cat, slots, store, &fakeOutbox{}).Intake(context.Background(), req)
	require.NoError(t, err)

	// 60 + 30 minutes of service plus the 10 minute buffer
	assert.Equal(t, start.Add(100*time.Minute), slots.lastWindow.End)
}
