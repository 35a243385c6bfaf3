package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/swiftbus/booking-backend/internal/models"
)

// PaymentAuditRepository handles the append-only payment audit trail
type PaymentAuditRepository struct {
	db *sqlx.DB
}

// NewPaymentAuditRepository creates a new PaymentAuditRepository
func NewPaymentAuditRepository(db *sqlx.DB) *PaymentAuditRepository {
	return &PaymentAuditRepository{db: db}
}

// Log appends one audit entry. Audit writes never gate a booking
// transition; callers log the error and move on if this fails.
func (r *PaymentAuditRepository) Log(audit *models.PaymentAudit) error {
	audit.ID = uuid.New()
	audit.CreatedAt = time.Now()

	_, err := r.db.Exec(`
		INSERT INTO payment_audits (
			id, attempt_id, booking_id, provider_ref, event_type,
			amount, currency, outcome, error_message,
			ip_address, client_os, client_agent, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)`,
		audit.ID, audit.AttemptID, audit.BookingID, audit.ProviderRef,
		audit.EventType, audit.Amount, audit.Currency, audit.Outcome,
		audit.ErrorMessage, audit.IPAddress, audit.ClientOS,
		audit.ClientAgent, audit.CreatedAt,
	)
	return err
}

// GetByBookingID retrieves the audit trail for a booking, oldest first
func (r *PaymentAuditRepository) GetByBookingID(bookingID uuid.UUID, limit int) ([]models.PaymentAudit, error) {
	if limit <= 0 {
		limit = 100
	}

	audits := []models.PaymentAudit{}
	query := `
		SELECT id, attempt_id, booking_id, provider_ref, event_type,
		       amount, currency, outcome, error_message,
		       ip_address, client_os, client_agent, created_at
		FROM payment_audits
		WHERE booking_id = $1
		ORDER BY created_at ASC
		LIMIT $2`

	err := r.db.Select(&audits, query, bookingID, limit)
	return audits, err
}

// PurgeOlderThan deletes audit entries older than the cutoff
func (r *PaymentAuditRepository) PurgeOlderThan(cutoff time.Time) (int, error) {
	result, err := r.db.Exec(`DELETE FROM payment_audits WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}
