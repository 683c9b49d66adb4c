package giftcards

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func cardRows(id uuid.UUID, remaining, status string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "remaining", "status"}).AddRow(id, dec(remaining), status)
}

func TestDebitFullAmount(t *testing.T) {
	mock := newMock(t)
	cardID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, remaining, status").WithArgs("GC-AAAA-BBBB-CCCC").
		WillReturnRows(cardRows(cardID, "50.00", StatusActive))
	mock.ExpectExec("UPDATE gift_cards").
		WithArgs(cardID, dec("20.00"), StatusActive).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO gift_card_redemptions").
		WithArgs(pgxmock.AnyArg(), cardID, dec("30.00"), (*uuid.UUID)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	debited, err := newLedgerWithDB(mock, nil).Debit(context.Background(), "GC-AAAA-BBBB-CCCC", dec("30.00"), nil)
	require.NoError(t, err)
	assert.True(t, debited.Equal(dec("30.00")), "debited %s", debited)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitCapsAtRemainingAndEmptiesCard(t *testing.T) {
	// The second of two 30 debits against a 50 card: only 20 remains, so
	// only 20 is debited and the card flips to empty.
	mock := newMock(t)
	cardID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, remaining, status").WithArgs("GC-AAAA-BBBB-CCCC").
		WillReturnRows(cardRows(cardID, "20.00", StatusActive))
	mock.ExpectExec("UPDATE gift_cards").
		WithArgs(cardID, dec("20.00").Sub(dec("20.00")), StatusEmpty).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO gift_card_redemptions").
		WithArgs(pgxmock.AnyArg(), cardID, dec("20.00"), (*uuid.UUID)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	debited, err := newLedgerWithDB(mock, nil).Debit(context.Background(), "GC-AAAA-BBBB-CCCC", dec("30.00"), nil)
	require.NoError(t, err)
	assert.True(t, debited.Equal(dec("20.00")), "debited %s", debited)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitUnknownCardIsNoOp(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, remaining, status").WithArgs("GC-XXXX-XXXX-XXXX").
		WillReturnRows(pgxmock.NewRows([]string{"id", "remaining", "status"}))
	mock.ExpectRollback()

	debited, err := newLedgerWithDB(mock, nil).Debit(context.Background(), "GC-XXXX-XXXX-XXXX", dec("30.00"), nil)
	require.NoError(t, err)
	assert.True(t, debited.IsZero())
}

func TestDebitInactiveCardIsNoOp(t *testing.T) {
	mock := newMock(t)
	cardID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, remaining, status").WithArgs("GC-AAAA-BBBB-CCCC").
		WillReturnRows(cardRows(cardID, "50.00", StatusCanceled))
	mock.ExpectRollback()

	debited, err := newLedgerWithDB(mock, nil).Debit(context.Background(), "GC-AAAA-BBBB-CCCC", dec("30.00"), nil)
	require.NoError(t, err)
	assert.True(t, debited.IsZero())
}

func TestDebitExhaustedCardIsNoOp(t *testing.T) {
	mock := newMock(t)
	cardID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, remaining, status").WithArgs("GC-AAAA-BBBB-CCCC").
		WillReturnRows(cardRows(cardID, "0.00", StatusEmpty))
	mock.ExpectRollback()

	debited, err := newLedgerWithDB(mock, nil).Debit(context.Background(), "GC-AAAA-BBBB-CCCC", dec("10.00"), nil)
	require.NoError(t, err)
	assert.True(t, debited.IsZero())
}

func TestDebitNonPositiveAmountIsNoOp(t *testing.T) {
	mock := newMock(t)
	debited, err := newLedgerWithDB(mock, nil).Debit(context.Background(), "GC-AAAA-BBBB-CCCC", decimal.Zero, nil)
	require.NoError(t, err)
	assert.True(t, debited.IsZero())
}

func TestCreateRetriesOnCodeCollision(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery("INSERT INTO gift_cards").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), dec("50.00"), dec("50.00"), "buyer@example.com", "friend@example.com").
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})
	mock.ExpectQuery("INSERT INTO gift_cards").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), dec("50.00"), dec("50.00"), "buyer@example.com", "friend@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now().UTC()))

	card, err := newLedgerWithDB(mock, nil).Create(context.Background(), dec("50.00"), "buyer@example.com", "friend@example.com")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, card.Status)
	assert.True(t, card.Remaining.Equal(dec("50.00")))
	assert.Regexp(t, `^GC(-[A-Z2-9]{4}){3}$`, card.Code)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRejectsNonPositiveAmount(t *testing.T) {
	mock := newMock(t)
	_, err := newLedgerWithDB(mock, nil).Create(context.Background(), decimal.Zero, "buyer@example.com", "")
	assert.Error(t, err)
}

func TestGenerateCodeShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Regexp(t, `^GC(-[A-Z2-9]{4}){3}$`, code)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}
