package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swiftbus/booking-backend/internal/config"
	"github.com/swiftbus/booking-backend/internal/database"
	"github.com/swiftbus/booking-backend/internal/models"
	"github.com/swiftbus/booking-backend/pkg/momo"
	"github.com/swiftbus/booking-backend/pkg/validator"
)

// newPaymentService wires a payment service over a mocked database with
// the gateway in sandbox mode, so no HTTP leaves the test.
func newPaymentService(db *sqlx.DB) *PaymentService {
	return NewPaymentService(
		database.NewBookingRepository(db),
		database.NewPaymentAttemptRepository(db),
		database.NewPaymentAuditRepository(db),
		momo.NewGateway(momo.Config{}),
		validator.NewPhoneValidator(),
		nil,
		testLogger(),
		config.PaymentConfig{
			Currency:      "UGX",
			RetryAttempts: 2,
			RetryBackoff:  time.Millisecond,
		},
	)
}

func attemptRows(attemptID, bookingID uuid.UUID, providerRef string, status models.AttemptStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "booking_id", "provider", "phone_number", "provider_ref",
		"amount", "currency", "status", "initiated_at", "completed_at",
	}).AddRow(
		attemptID, bookingID, "mtn_momo", "+256772123456", providerRef,
		90000.0, "UGX", status, time.Now(), nil,
	)
}

func TestPaymentService_Initiate(t *testing.T) {
	userID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newPaymentService(db)

		bookingID := uuid.New()
		expiresAt := time.Now().Add(10 * time.Minute)
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
			WithArgs(bookingID).
			WillReturnRows(bookingRowsWith(bookingID, userID, uuid.New(), models.PaymentStatusPending, &expiresAt))
		mock.ExpectExec(`INSERT INTO payment_attempts`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO payment_audits`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		resp, err := svc.Initiate(context.Background(), bookingID, userID, &models.InitiatePaymentRequest{
			Provider:    models.ProviderMTNMoMo,
			PhoneNumber: "0772123456",
		}, ClientMeta{})
		require.NoError(t, err)

		assert.Equal(t, bookingID, resp.BookingID)
		assert.NotEqual(t, uuid.Nil, resp.AttemptID)
		assert.True(t, strings.HasPrefix(resp.ProviderRef, "SANDBOX-"))
		assert.Equal(t, 90000.0, resp.Amount)
		assert.Equal(t, "UGX", resp.Currency)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unsupported Provider", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newPaymentService(db)

		_, err := svc.Initiate(context.Background(), uuid.New(), userID, &models.InitiatePaymentRequest{
			Provider:    "visa",
			PhoneNumber: "0772123456",
		}, ClientMeta{})
		assert.Error(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Invalid Phone Number", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newPaymentService(db)

		_, err := svc.Initiate(context.Background(), uuid.New(), userID, &models.InitiatePaymentRequest{
			Provider:    models.ProviderMTNMoMo,
			PhoneNumber: "12345",
		}, ClientMeta{})
		assert.Error(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Other User Is Forbidden", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newPaymentService(db)

		bookingID := uuid.New()
		expiresAt := time.Now().Add(10 * time.Minute)
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
			WillReturnRows(bookingRowsWith(bookingID, uuid.New(), uuid.New(), models.PaymentStatusPending, &expiresAt))

		_, err := svc.Initiate(context.Background(), bookingID, userID, &models.InitiatePaymentRequest{
			Provider:    models.ProviderMTNMoMo,
			PhoneNumber: "0772123456",
		}, ClientMeta{})
		assert.ErrorIs(t, err, models.ErrUnauthorized)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already Settled Booking", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newPaymentService(db)

		bookingID := uuid.New()
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
			WillReturnRows(bookingRowsWith(bookingID, userID, uuid.New(), models.PaymentStatusCompleted, nil))

		_, err := svc.Initiate(context.Background(), bookingID, userID, &models.InitiatePaymentRequest{
			Provider:    models.ProviderMTNMoMo,
			PhoneNumber: "0772123456",
		}, ClientMeta{})
		assert.ErrorIs(t, err, models.ErrInvalidTransition)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Expired Booking Is Released And Rejected", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newPaymentService(db)

		bookingID := uuid.New()
		tripID := uuid.New()
		expiresAt := time.Now().Add(-time.Minute)
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
			WillReturnRows(bookingRowsWith(bookingID, userID, tripID, models.PaymentStatusPending, &expiresAt))

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE bookings`).
			WillReturnRows(sqlmock.NewRows([]string{"trip_id", "seat_count"}).AddRow(tripID, 2))
		mock.ExpectExec(`DELETE FROM booking_seats`).
			WithArgs(bookingID).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`UPDATE trips`).
			WithArgs(tripID, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		_, err := svc.Initiate(context.Background(), bookingID, userID, &models.InitiatePaymentRequest{
			Provider:    models.ProviderMTNMoMo,
			PhoneNumber: "0772123456",
		}, ClientMeta{})
		assert.ErrorIs(t, err, models.ErrBookingExpired)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Overdue Initiate Losing To A Completing Payment", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newPaymentService(db)

		bookingID := uuid.New()
		expiresAt := time.Now().Add(-time.Minute)
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
			WillReturnRows(bookingRowsWith(bookingID, userID, uuid.New(), models.PaymentStatusPending, &expiresAt))

		// A webhook settled the booking first; the guarded release
		// returns no row and the re-read shows it completed
		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE bookings`).
			WillReturnRows(sqlmock.NewRows([]string{"trip_id", "seat_count"}))
		mock.ExpectRollback()
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
			WillReturnRows(bookingRowsWith(bookingID, userID, uuid.New(), models.PaymentStatusCompleted, nil))

		_, err := svc.Initiate(context.Background(), bookingID, userID, &models.InitiatePaymentRequest{
			Provider:    models.ProviderMTNMoMo,
			PhoneNumber: "0772123456",
		}, ClientMeta{})
		assert.ErrorIs(t, err, models.ErrInvalidTransition)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPaymentService_PollStatus(t *testing.T) {
	userID := uuid.New()

	t.Run("Sandbox Poll Completes Booking", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newPaymentService(db)

		bookingID := uuid.New()
		attemptID := uuid.New()
		expiresAt := time.Now().Add(10 * time.Minute)

		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
			WithArgs(bookingID).
			WillReturnRows(bookingRowsWith(bookingID, userID, uuid.New(), models.PaymentStatusPending, &expiresAt))
		mock.ExpectQuery(`SELECT (.+) FROM payment_attempts`).
			WithArgs(bookingID).
			WillReturnRows(attemptRows(attemptID, bookingID, "SANDBOX-ref", models.AttemptStatusPending))

		// Poll audit entry
		mock.ExpectExec(`INSERT INTO payment_audits`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// Guarded pending -> completed flip wins
		mock.ExpectExec(`UPDATE bookings`).
			WithArgs(bookingID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE payment_attempts`).
			WithArgs(attemptID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// Ticket QR write
		mock.ExpectExec(`UPDATE bookings`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// Completion audit entry
		mock.ExpectExec(`INSERT INTO payment_audits`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		resp, err := svc.PollStatus(context.Background(), bookingID, userID, ClientMeta{})
		require.NoError(t, err)

		assert.Equal(t, models.PaymentStatusCompleted, resp.PaymentStatus)
		assert.Equal(t, models.AttemptStatusCompleted, resp.AttemptStatus)
		require.NotNil(t, resp.TicketQR)
		assert.NotEmpty(t, *resp.TicketQR)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Settled Attempt Answers Without Provider Call", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newPaymentService(db)

		bookingID := uuid.New()
		attemptID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
			WillReturnRows(bookingRowsWith(bookingID, userID, uuid.New(), models.PaymentStatusCompleted, nil))
		mock.ExpectQuery(`SELECT (.+) FROM payment_attempts`).
			WillReturnRows(attemptRows(attemptID, bookingID, "SANDBOX-ref", models.AttemptStatusCompleted))

		resp, err := svc.PollStatus(context.Background(), bookingID, userID, ClientMeta{})
		require.NoError(t, err)
		assert.Equal(t, models.AttemptStatusCompleted, resp.AttemptStatus)
		assert.Equal(t, models.PaymentStatusCompleted, resp.PaymentStatus)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Charge Landing After Cancellation Flags Refund", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newPaymentService(db)

		bookingID := uuid.New()
		attemptID := uuid.New()
		expiresAt := time.Now().Add(10 * time.Minute)

		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
			WillReturnRows(bookingRowsWith(bookingID, userID, uuid.New(), models.PaymentStatusPending, &expiresAt))
		mock.ExpectQuery(`SELECT (.+) FROM payment_attempts`).
			WillReturnRows(attemptRows(attemptID, bookingID, "SANDBOX-ref", models.AttemptStatusPending))
		mock.ExpectExec(`INSERT INTO payment_audits`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// The booking was cancelled between the read and the flip
		mock.ExpectExec(`UPDATE bookings`).
			WithArgs(bookingID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
			WillReturnRows(bookingRowsWith(bookingID, userID, uuid.New(), models.PaymentStatusCancelled, nil))

		_, err := svc.PollStatus(context.Background(), bookingID, userID, ClientMeta{})
		assert.ErrorIs(t, err, models.ErrInvalidTransition)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPaymentService_HandleWebhook(t *testing.T) {
	t.Run("Failed Outcome Releases Seats", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newPaymentService(db)

		bookingID := uuid.New()
		attemptID := uuid.New()
		tripID := uuid.New()
		userID := uuid.New()
		expiresAt := time.Now().Add(10 * time.Minute)

		mock.ExpectQuery(`SELECT (.+) FROM payment_attempts WHERE provider_ref = \$1`).
			WithArgs("MOMO-123").
			WillReturnRows(attemptRows(attemptID, bookingID, "MOMO-123", models.AttemptStatusPending))
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
			WithArgs(bookingID).
			WillReturnRows(bookingRowsWith(bookingID, userID, tripID, models.PaymentStatusPending, &expiresAt))
		mock.ExpectExec(`INSERT INTO payment_audits`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		mock.ExpectBegin()
		mock.ExpectQuery(`UPDATE bookings`).
			WillReturnRows(sqlmock.NewRows([]string{"trip_id", "seat_count"}).AddRow(tripID, 2))
		mock.ExpectExec(`DELETE FROM booking_seats`).
			WithArgs(bookingID).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`UPDATE trips`).
			WithArgs(tripID, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		mock.ExpectExec(`UPDATE payment_attempts`).
			WithArgs(attemptID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO payment_audits`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := svc.HandleWebhook(context.Background(), "MOMO-123", momo.OutcomeFailed, ClientMeta{})
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Replayed Webhook Is A No-Op", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newPaymentService(db)

		bookingID := uuid.New()
		attemptID := uuid.New()

		mock.ExpectQuery(`SELECT (.+) FROM payment_attempts WHERE provider_ref = \$1`).
			WithArgs("MOMO-123").
			WillReturnRows(attemptRows(attemptID, bookingID, "MOMO-123", models.AttemptStatusCompleted))
		mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
			WillReturnRows(bookingRowsWith(bookingID, uuid.New(), uuid.New(), models.PaymentStatusCompleted, nil))
		mock.ExpectExec(`INSERT INTO payment_audits`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := svc.HandleWebhook(context.Background(), "MOMO-123", momo.OutcomeCompleted, ClientMeta{})
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown Provider Ref", func(t *testing.T) {
		db, mock := newMockDB(t)
		svc := newPaymentService(db)

		mock.ExpectQuery(`SELECT (.+) FROM payment_attempts WHERE provider_ref = \$1`).
			WillReturnError(assert.AnError)

		err := svc.HandleWebhook(context.Background(), "MOMO-999", momo.OutcomeCompleted, ClientMeta{})
		assert.Error(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
