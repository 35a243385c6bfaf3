package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/swiftbus/booking-backend/internal/models"
)

// PaymentAttemptRepository handles payment attempt database operations
type PaymentAttemptRepository struct {
	db *sqlx.DB
}

// NewPaymentAttemptRepository creates a new PaymentAttemptRepository
func NewPaymentAttemptRepository(db *sqlx.DB) *PaymentAttemptRepository {
	return &PaymentAttemptRepository{db: db}
}

const attemptColumns = `
	id, booking_id, provider, phone_number, provider_ref, amount,
	currency, status, initiated_at, completed_at`

// Create records a new attempt after the provider accepted the charge
func (r *PaymentAttemptRepository) Create(attempt *models.PaymentAttempt) error {
	attempt.ID = uuid.New()
	attempt.InitiatedAt = time.Now()

	_, err := r.db.Exec(`
		INSERT INTO payment_attempts (
			id, booking_id, provider, phone_number, provider_ref,
			amount, currency, status, initiated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`,
		attempt.ID, attempt.BookingID, attempt.Provider, attempt.PhoneNumber,
		attempt.ProviderRef, attempt.Amount, attempt.Currency,
		attempt.Status, attempt.InitiatedAt,
	)
	return err
}

// GetByID retrieves an attempt by ID
func (r *PaymentAttemptRepository) GetByID(attemptID uuid.UUID) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE id = $1`

	err := r.db.Get(&attempt, query, attemptID)
	if err == sql.ErrNoRows {
		return nil, models.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// GetByProviderRef retrieves an attempt by the provider's reference.
// Webhooks only carry the provider ref, so this is their entry point.
func (r *PaymentAttemptRepository) GetByProviderRef(providerRef string) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE provider_ref = $1`

	err := r.db.Get(&attempt, query, providerRef)
	if err == sql.ErrNoRows {
		return nil, models.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// GetLatestByBookingID retrieves the most recent attempt for a booking
func (r *PaymentAttemptRepository) GetLatestByBookingID(bookingID uuid.UUID) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	query := `
		SELECT ` + attemptColumns + `
		FROM payment_attempts
		WHERE booking_id = $1
		ORDER BY initiated_at DESC
		LIMIT 1`

	err := r.db.Get(&attempt, query, bookingID)
	if err == sql.ErrNoRows {
		return nil, models.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// MarkCompleted settles an attempt as completed
func (r *PaymentAttemptRepository) MarkCompleted(attemptID uuid.UUID) error {
	_, err := r.db.Exec(`
		UPDATE payment_attempts
		SET status = 'completed', completed_at = NOW()
		WHERE id = $1 AND status = 'pending'`,
		attemptID,
	)
	return err
}

// MarkFailed settles an attempt as failed
func (r *PaymentAttemptRepository) MarkFailed(attemptID uuid.UUID) error {
	_, err := r.db.Exec(`
		UPDATE payment_attempts
		SET status = 'failed', completed_at = NOW()
		WHERE id = $1 AND status = 'pending'`,
		attemptID,
	)
	return err
}

// PurgeSettledOlderThan deletes settled attempts older than the cutoff.
// The payment audit trail keeps the long-term record.
func (r *PaymentAttemptRepository) PurgeSettledOlderThan(cutoff time.Time) (int, error) {
	result, err := r.db.Exec(`
		DELETE FROM payment_attempts
		WHERE status IN ('completed', 'failed')
		  AND initiated_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}
