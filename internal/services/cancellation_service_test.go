package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swiftbus/booking-backend/internal/database"
	"github.com/swiftbus/booking-backend/internal/models"
)

func newCancellationService(db *sqlx.DB) *CancellationService {
	return NewCancellationService(database.NewBookingRepository(db), nil, testLogger())
}

func expectRelease(mock sqlmock.Sqlmock, bookingID, tripID uuid.UUID, seatCount int) {
	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE bookings`).
		WillReturnRows(sqlmock.NewRows([]string{"trip_id", "seat_count"}).AddRow(tripID, seatCount))
	mock.ExpectExec(`DELETE FROM booking_seats`).
		WithArgs(bookingID).
		WillReturnResult(sqlmock.NewResult(0, int64(seatCount)))
	mock.ExpectExec(`UPDATE trips`).
		WithArgs(tripID, seatCount).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

func TestCancellationService_Cancel(t *testing.T) {
	t.Run("Owner Cancels Pending Hold", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newCancellationService(db)

		bookingID := uuid.New()
		tripID := uuid.New()
		userID := uuid.New()
		expiresAt := time.Now().Add(10 * time.Minute)

		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
			WithArgs(bookingID).
			WillReturnRows(bookingRowsWith(bookingID, userID, tripID, models.PaymentStatusPending, &expiresAt))
		expectRelease(mock, bookingID, tripID, 2)

		resp, err := svc.Cancel(context.Background(), bookingID, userID, false)
		require.NoError(t, err)

		assert.Equal(t, models.PaymentStatusCancelled, resp.PaymentStatus)
		assert.Equal(t, models.ReasonUserCancelled, resp.Reason)
		assert.Equal(t, 2, resp.SeatsReleased)
		assert.False(t, resp.RefundDue)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Cancelling A Paid Booking Flags A Refund", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newCancellationService(db)

		bookingID := uuid.New()
		tripID := uuid.New()
		userID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
			WillReturnRows(bookingRowsWith(bookingID, userID, tripID, models.PaymentStatusCompleted, nil))
		expectRelease(mock, bookingID, tripID, 2)

		resp, err := svc.Cancel(context.Background(), bookingID, userID, false)
		require.NoError(t, err)
		assert.True(t, resp.RefundDue)
		assert.Equal(t, models.ReasonUserCancelled, resp.Reason)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Admin Cancels Another User's Booking", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newCancellationService(db)

		bookingID := uuid.New()
		tripID := uuid.New()
		adminID := uuid.New()
		expiresAt := time.Now().Add(10 * time.Minute)

		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
			WillReturnRows(bookingRowsWith(bookingID, uuid.New(), tripID, models.PaymentStatusPending, &expiresAt))
		expectRelease(mock, bookingID, tripID, 2)

		resp, err := svc.Cancel(context.Background(), bookingID, adminID, true)
		require.NoError(t, err)
		assert.Equal(t, models.ReasonAdminCancelled, resp.Reason)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Other User Is Forbidden", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newCancellationService(db)

		bookingID := uuid.New()
		expiresAt := time.Now().Add(10 * time.Minute)

		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
			WillReturnRows(bookingRowsWith(bookingID, uuid.New(), uuid.New(), models.PaymentStatusPending, &expiresAt))

		_, err := svc.Cancel(context.Background(), bookingID, uuid.New(), false)
		assert.ErrorIs(t, err, models.ErrUnauthorized)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Terminal Booking Cannot Be Cancelled", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newCancellationService(db)

		bookingID := uuid.New()
		userID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
			WillReturnRows(bookingRowsWith(bookingID, userID, uuid.New(), models.PaymentStatusFailed, nil))

		_, err := svc.Cancel(context.Background(), bookingID, userID, false)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Cancel Racing An Expiry Loses Cleanly", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newCancellationService(db)

		bookingID := uuid.New()
		userID := uuid.New()
		expiresAt := time.Now().Add(time.Minute)

		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
			WillReturnRows(bookingRowsWith(bookingID, userID, uuid.New(), models.PaymentStatusPending, &expiresAt))

		// Sweeper got there first; the guarded release returns no row
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE bookings`).
			WillReturnRows(sqlmock.NewRows([]string{"trip_id", "seat_count"}))
		mock.ExpectRollback()

		_, err := svc.Cancel(context.Background(), bookingID, userID, false)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
