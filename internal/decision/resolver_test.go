package decision

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotleaf/booking-platform/internal/appointments"
	"github.com/slotleaf/booking-platform/internal/booking"
)

const token = "a3f8c2d1e4b5968716253441aabbccddeeff00112233445566778899aabbccdd"

var (
	slotStart = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	slotEnd   = slotStart.Add(70 * time.Minute)
)

var candidateCols = []string{
	"id", "request_id", "coach_id",
	"service_id", "starts_at", "ends_at",
	"first_name", "last_name", "email", "phone",
	"status", "expires_at",
}

func candidateRowFor(requestID, coachID uuid.UUID, status string, expiresAt time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(candidateCols).AddRow(
		uuid.New(), requestID, coachID,
		uuid.New(), slotStart, slotEnd,
		"Mira", "Kovacs", "mira@example.com", "",
		status, expiresAt,
	)
}

func clientRow() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "first_name", "last_name", "email", "phone", "created_at"}).
		AddRow(uuid.New(), "Mira", "Kovacs", "mira@example.com", "", time.Now().UTC())
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestAcceptWins(t *testing.T) {
	mock := newMock(t)
	requestID := uuid.New()
	coachID := uuid.New()
	future := time.Now().UTC().Add(24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT c.id, c.request_id").WithArgs(token).
		WillReturnRows(candidateRowFor(requestID, coachID, booking.StatusPending, future))
	mock.ExpectExec("UPDATE appointment_requests").WithArgs(requestID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("INSERT INTO clients").
		WithArgs(pgxmock.AnyArg(), "Mira", "Kovacs", "mira@example.com", "").
		WillReturnRows(clientRow())
	mock.ExpectQuery("SELECT EXISTS").WithArgs(coachID, slotStart, slotEnd).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), coachID, pgxmock.AnyArg(), slotStart, slotEnd).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now().UTC()))
	mock.ExpectExec("DELETE FROM appointment_candidates").WithArgs(requestID).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCommit()

	result, err := newResolverWithDB(mock, nil).Resolve(context.Background(), token, ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, OutcomeWon, result.Outcome)
	assert.Equal(t, requestID, result.RequestID)
	assert.Equal(t, coachID, result.CoachID)
	require.NotNil(t, result.Appointment)
	assert.Equal(t, appointments.StatusScheduled, result.Appointment.Status)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptAfterRequestResolved(t *testing.T) {
	mock := newMock(t)
	requestID := uuid.New()
	coachID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT c.id, c.request_id").WithArgs(token).
		WillReturnRows(candidateRowFor(requestID, coachID, booking.StatusAccepted, time.Now().UTC().Add(time.Hour)))
	mock.ExpectRollback()

	result, err := newResolverWithDB(mock, nil).Resolve(context.Background(), token, ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyResolved, result.Outcome)
	assert.Nil(t, result.Appointment)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptLosesRaceOnConditionalUpdate(t *testing.T) {
	// The snapshot read still says pending, but another coach's accept commits
	// first: the conditional update matches zero rows and the caller loses.
	mock := newMock(t)
	requestID := uuid.New()
	coachID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT c.id, c.request_id").WithArgs(token).
		WillReturnRows(candidateRowFor(requestID, coachID, booking.StatusPending, time.Now().UTC().Add(time.Hour)))
	mock.ExpectExec("UPDATE appointment_requests").WithArgs(requestID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	result, err := newResolverWithDB(mock, nil).Resolve(context.Background(), token, ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyResolved, result.Outcome)
	assert.Nil(t, result.Appointment)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptUnknownToken(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT c.id, c.request_id").WithArgs(token).
		WillReturnRows(pgxmock.NewRows(candidateCols))
	mock.ExpectRollback()

	result, err := newResolverWithDB(mock, nil).Resolve(context.Background(), token, ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTokenUnknown, result.Outcome)
}

func TestAcceptCoachDoubleBookedRollsBack(t *testing.T) {
	mock := newMock(t)
	requestID := uuid.New()
	coachID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT c.id, c.request_id").WithArgs(token).
		WillReturnRows(candidateRowFor(requestID, coachID, booking.StatusPending, time.Now().UTC().Add(time.Hour)))
	mock.ExpectExec("UPDATE appointment_requests").WithArgs(requestID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("INSERT INTO clients").
		WithArgs(pgxmock.AnyArg(), "Mira", "Kovacs", "mira@example.com", "").
		WillReturnRows(clientRow())
	mock.ExpectQuery("SELECT EXISTS").WithArgs(coachID, slotStart, slotEnd).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	// No appointment insert, no candidate cleanup: the rollback keeps the
	// request pending for the remaining candidates.
	mock.ExpectRollback()

	result, err := newResolverWithDB(mock, nil).Resolve(context.Background(), token, ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSlotGone, result.Outcome)
	assert.Nil(t, result.Appointment)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptExpiredRequest(t *testing.T) {
	mock := newMock(t)
	requestID := uuid.New()
	coachID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT c.id, c.request_id").WithArgs(token).
		WillReturnRows(candidateRowFor(requestID, coachID, booking.StatusPending, time.Now().UTC().Add(-time.Hour)))
	mock.ExpectExec("UPDATE appointment_requests").WithArgs(requestID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("DELETE FROM appointment_candidates").WithArgs(requestID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	result, err := newResolverWithDB(mock, nil).Resolve(context.Background(), token, ActionAccept)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, result.Outcome)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeclineRemovesCandidate(t *testing.T) {
	mock := newMock(t)
	requestID := uuid.New()
	coachID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM appointment_candidates").WithArgs(token).
		WillReturnRows(pgxmock.NewRows([]string{"request_id", "coach_id"}).AddRow(requestID, coachID))
	mock.ExpectExec("UPDATE appointment_requests").WithArgs(requestID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectCommit()

	result, err := newResolverWithDB(mock, nil).Resolve(context.Background(), token, ActionDecline)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeclined, result.Outcome)
	assert.Equal(t, coachID, result.CoachID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeclineLastCandidateClosesRequest(t *testing.T) {
	mock := newMock(t)
	requestID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM appointment_candidates").WithArgs(token).
		WillReturnRows(pgxmock.NewRows([]string{"request_id", "coach_id"}).AddRow(requestID, uuid.New()))
	mock.ExpectExec("UPDATE appointment_requests").WithArgs(requestID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	result, err := newResolverWithDB(mock, nil).Resolve(context.Background(), token, ActionDecline)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeclined, result.Outcome)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeclineIsIdempotent(t *testing.T) {
	mock := newMock(t)

	// Token already consumed: the delete matches nothing and nothing else runs.
	mock.ExpectBegin()
	mock.ExpectQuery("DELETE FROM appointment_candidates").WithArgs(token).
		WillReturnRows(pgxmock.NewRows([]string{"request_id", "coach_id"}))
	mock.ExpectRollback()

	result, err := newResolverWithDB(mock, nil).Resolve(context.Background(), token, ActionDecline)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeclined, result.Outcome)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnknownActionRejected(t *testing.T) {
	mock := newMock(t)
	_, err := newResolverWithDB(mock, nil).Resolve(context.Background(), token, Action("maybe"))
	assert.Error(t, err)
}
