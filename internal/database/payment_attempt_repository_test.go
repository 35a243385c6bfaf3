package database

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swiftbus/booking-backend/internal/models"
)

func attemptRows(attemptID, bookingID uuid.UUID, providerRef string, status models.AttemptStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "booking_id", "provider", "phone_number", "provider_ref",
		"amount", "currency", "status", "initiated_at", "completed_at",
	}).AddRow(
		attemptID, bookingID, "mtn_momo", "+256772123456", providerRef,
		90000.0, "UGX", status, time.Now(), nil,
	)
}

func TestPaymentAttemptRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentAttemptRepository(db)

	attempt := &models.PaymentAttempt{
		BookingID:   uuid.New(),
		Provider:    models.ProviderMTNMoMo,
		PhoneNumber: "+256772123456",
		ProviderRef: "MOMO-123",
		Amount:      90000.0,
		Currency:    "UGX",
		Status:      models.AttemptStatusPending,
	}

	mock.ExpectExec(`INSERT INTO payment_attempts`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(attempt)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, attempt.ID)
	assert.False(t, attempt.InitiatedAt.IsZero())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentAttemptRepository_GetByProviderRef(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentAttemptRepository(db)

		attemptID := uuid.New()
		bookingID := uuid.New()
		mock.ExpectQuery(`SELECT (.+) FROM payment_attempts WHERE provider_ref = \$1`).
			WithArgs("MOMO-123").
			WillReturnRows(attemptRows(attemptID, bookingID, "MOMO-123", models.AttemptStatusPending))

		attempt, err := repo.GetByProviderRef("MOMO-123")
		require.NoError(t, err)
		assert.Equal(t, attemptID, attempt.ID)
		assert.Equal(t, bookingID, attempt.BookingID)
		assert.Equal(t, models.AttemptStatusPending, attempt.Status)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPaymentAttemptRepository(db)

		mock.ExpectQuery(`SELECT (.+) FROM payment_attempts WHERE provider_ref = \$1`).
			WillReturnError(sql.ErrNoRows)

		attempt, err := repo.GetByProviderRef("MOMO-999")
		assert.ErrorIs(t, err, models.ErrAttemptNotFound)
		assert.Nil(t, attempt)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPaymentAttemptRepository_GetLatestByBookingID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentAttemptRepository(db)

	bookingID := uuid.New()
	attemptID := uuid.New()
	mock.ExpectQuery(`SELECT (.+) FROM payment_attempts`).
		WithArgs(bookingID).
		WillReturnRows(attemptRows(attemptID, bookingID, "MOMO-456", models.AttemptStatusCompleted))

	attempt, err := repo.GetLatestByBookingID(bookingID)
	require.NoError(t, err)
	assert.Equal(t, attemptID, attempt.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentAttemptRepository_MarkCompleted(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentAttemptRepository(db)

	attemptID := uuid.New()
	mock.ExpectExec(`UPDATE payment_attempts`).
		WithArgs(attemptID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.MarkCompleted(attemptID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentAttemptRepository_PurgeSettledOlderThan(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentAttemptRepository(db)

	cutoff := time.Now().Add(-90 * 24 * time.Hour)
	mock.ExpectExec(`DELETE FROM payment_attempts`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 12))

	purged, err := repo.PurgeSettledOlderThan(cutoff)
	require.NoError(t, err)
	assert.Equal(t, 12, purged)

	assert.NoError(t, mock.ExpectationsWereMet())
}
