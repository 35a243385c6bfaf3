package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/swiftbus/booking-backend/internal/cache"
	"github.com/swiftbus/booking-backend/internal/config"
	"github.com/swiftbus/booking-backend/internal/database"
	"github.com/swiftbus/booking-backend/internal/models"
	"github.com/swiftbus/booking-backend/pkg/momo"
	"github.com/swiftbus/booking-backend/pkg/validator"
)

// ClientMeta carries request metadata into the payment audit trail
type ClientMeta struct {
	IPAddress   *string
	ClientOS    *string
	ClientAgent *string
}

// PaymentService coordinates a booking's settlement against the
// mobile-money provider. Provider calls happen outside any database
// transaction; the booking only transitions through the guarded
// repository updates, so a crash between the two leaves a pending
// booking the poll or the sweeper can still settle.
type PaymentService struct {
	bookingRepo *database.BookingRepository
	attemptRepo *database.PaymentAttemptRepository
	auditRepo   *database.PaymentAuditRepository
	gateway     *momo.Gateway
	phone       *validator.PhoneValidator
	cache       *cache.AvailabilityCache
	logger      *logrus.Logger
	cfg         config.PaymentConfig
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	bookingRepo *database.BookingRepository,
	attemptRepo *database.PaymentAttemptRepository,
	auditRepo *database.PaymentAuditRepository,
	gateway *momo.Gateway,
	phoneValidator *validator.PhoneValidator,
	availabilityCache *cache.AvailabilityCache,
	logger *logrus.Logger,
	cfg config.PaymentConfig,
) *PaymentService {
	return &PaymentService{
		bookingRepo: bookingRepo,
		attemptRepo: attemptRepo,
		auditRepo:   auditRepo,
		gateway:     gateway,
		phone:       phoneValidator,
		cache:       availabilityCache,
		logger:      logger,
		cfg:         cfg,
	}
}

// ============================================================================
// INITIATE
// ============================================================================

// Initiate starts a mobile-money charge for a pending booking. The
// expiry pre-check releases an overdue hold immediately instead of
// letting the charge race the sweeper.
func (s *PaymentService) Initiate(ctx context.Context, bookingID, actorID uuid.UUID, req *models.InitiatePaymentRequest, meta ClientMeta) (*models.InitiatePaymentResponse, error) {
	// 1. Validate the request
	if !models.ValidProvider(req.Provider) {
		return nil, fmt.Errorf("unsupported provider %q", req.Provider)
	}
	phoneE164, err := s.phone.E164(req.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("invalid phone number: %w", err)
	}

	// 2. Load the booking and check it can still be paid
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != actorID {
		return nil, models.ErrUnauthorized
	}
	if booking.PaymentStatus != models.PaymentStatusPending {
		return nil, models.ErrInvalidTransition
	}
	if booking.IsExpired(time.Now()) {
		return nil, s.expireOverdue(ctx, booking)
	}

	// 3. Charge the provider with a bounded retry budget
	chargeReq := &momo.ChargeRequest{
		Provider:    string(req.Provider),
		PhoneNumber: phoneE164,
		Amount:      booking.TotalAmount,
		Currency:    booking.Currency,
		ExternalRef: booking.Reference,
		Description: fmt.Sprintf("SwiftBus booking %s", booking.Reference),
	}

	var chargeResp *momo.ChargeResponse
	err = s.withRetry(ctx, func() error {
		var callErr error
		chargeResp, callErr = s.gateway.Charge(ctx, chargeReq)
		return callErr
	})
	if err != nil {
		s.audit(&models.PaymentAudit{
			BookingID:    &booking.ID,
			EventType:    models.PaymentEventProviderError,
			Amount:       &booking.TotalAmount,
			Currency:     &booking.Currency,
			ErrorMessage: strPtr(err.Error()),
			IPAddress:    meta.IPAddress,
			ClientOS:     meta.ClientOS,
			ClientAgent:  meta.ClientAgent,
		})
		s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Provider charge failed after retries")
		return nil, models.ErrProviderUnavailable
	}

	// 4. Record the attempt so polls and webhooks can correlate back
	attempt := &models.PaymentAttempt{
		BookingID:   booking.ID,
		Provider:    req.Provider,
		PhoneNumber: phoneE164,
		ProviderRef: chargeResp.ProviderRef,
		Amount:      booking.TotalAmount,
		Currency:    booking.Currency,
		Status:      models.AttemptStatusPending,
	}
	if err := s.attemptRepo.Create(attempt); err != nil {
		return nil, fmt.Errorf("failed to record payment attempt: %w", err)
	}

	s.audit(&models.PaymentAudit{
		AttemptID:   &attempt.ID,
		BookingID:   &booking.ID,
		ProviderRef: &attempt.ProviderRef,
		EventType:   models.PaymentEventInitiated,
		Amount:      &booking.TotalAmount,
		Currency:    &booking.Currency,
		IPAddress:   meta.IPAddress,
		ClientOS:    meta.ClientOS,
		ClientAgent: meta.ClientAgent,
	})

	s.logger.WithFields(logrus.Fields{
		"booking_id":   booking.ID,
		"attempt_id":   attempt.ID,
		"provider":     req.Provider,
		"provider_ref": attempt.ProviderRef,
	}).Info("Payment initiated")

	return &models.InitiatePaymentResponse{
		AttemptID:   attempt.ID,
		BookingID:   booking.ID,
		Provider:    req.Provider,
		ProviderRef: attempt.ProviderRef,
		Amount:      booking.TotalAmount,
		Currency:    booking.Currency,
		ExpiresAt:   booking.ExpiresAt,
	}, nil
}

// ============================================================================
// POLL
// ============================================================================

// PollStatus queries the provider for the latest attempt on a booking
// and settles the booking when the provider reports a final outcome.
func (s *PaymentService) PollStatus(ctx context.Context, bookingID, actorID uuid.UUID, meta ClientMeta) (*models.PollStatusResponse, error) {
	booking, err := s.bookingRepo.GetByID(bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != actorID {
		return nil, models.ErrUnauthorized
	}

	attempt, err := s.attemptRepo.GetLatestByBookingID(bookingID)
	if err != nil {
		return nil, err
	}

	// Settled attempts answer from our own state, no provider call
	if attempt.Status != models.AttemptStatusPending {
		return s.pollResponse(booking, attempt), nil
	}

	var outcome momo.Outcome
	err = s.withRetry(ctx, func() error {
		var callErr error
		outcome, callErr = s.gateway.QueryStatus(ctx, attempt.ProviderRef)
		return callErr
	})
	if err != nil {
		s.audit(&models.PaymentAudit{
			AttemptID:    &attempt.ID,
			BookingID:    &booking.ID,
			ProviderRef:  &attempt.ProviderRef,
			EventType:    models.PaymentEventProviderError,
			ErrorMessage: strPtr(err.Error()),
			IPAddress:    meta.IPAddress,
			ClientOS:     meta.ClientOS,
			ClientAgent:  meta.ClientAgent,
		})
		return nil, models.ErrProviderUnavailable
	}

	s.audit(&models.PaymentAudit{
		AttemptID:   &attempt.ID,
		BookingID:   &booking.ID,
		ProviderRef: &attempt.ProviderRef,
		EventType:   models.PaymentEventPolled,
		Outcome:     strPtr(string(outcome)),
		IPAddress:   meta.IPAddress,
		ClientOS:    meta.ClientOS,
		ClientAgent: meta.ClientAgent,
	})

	booking, attempt, err = s.settle(ctx, booking, attempt, outcome)
	if err != nil {
		return nil, err
	}
	return s.pollResponse(booking, attempt), nil
}

// HandleWebhook settles a booking from a provider callback. Webhooks
// funnel into the same guarded transitions as polling, so a webhook and
// a poll landing together still settle the booking exactly once.
func (s *PaymentService) HandleWebhook(ctx context.Context, providerRef string, outcome momo.Outcome, meta ClientMeta) error {
	attempt, err := s.attemptRepo.GetByProviderRef(providerRef)
	if err != nil {
		return err
	}

	booking, err := s.bookingRepo.GetByID(attempt.BookingID)
	if err != nil {
		return err
	}

	s.audit(&models.PaymentAudit{
		AttemptID:   &attempt.ID,
		BookingID:   &booking.ID,
		ProviderRef: &attempt.ProviderRef,
		EventType:   models.PaymentEventWebhookReceived,
		Outcome:     strPtr(string(outcome)),
		IPAddress:   meta.IPAddress,
		ClientOS:    meta.ClientOS,
		ClientAgent: meta.ClientAgent,
	})

	if attempt.Status != models.AttemptStatusPending {
		// Already settled by an earlier poll or webhook
		return nil
	}

	_, _, err = s.settle(ctx, booking, attempt, outcome)
	return err
}

// ============================================================================
// SETTLEMENT
// ============================================================================

// settle applies a provider outcome to the booking and attempt. All
// transitions go through guarded updates; losing a race resolves by
// re-reading the booking rather than overwriting anything.
func (s *PaymentService) settle(ctx context.Context, booking *models.Booking, attempt *models.PaymentAttempt, outcome momo.Outcome) (*models.Booking, *models.PaymentAttempt, error) {
	switch outcome {
	case momo.OutcomePending:
		return booking, attempt, nil

	case momo.OutcomeCompleted:
		flipped, err := s.bookingRepo.CompletePayment(booking.ID)
		if err != nil {
			return nil, nil, err
		}
		if !flipped {
			// Lost the race. Re-read: an already-completed booking is
			// an idempotent success, anything else means the money
			// moved after the hold was gone.
			current, err := s.bookingRepo.GetByID(booking.ID)
			if err != nil {
				return nil, nil, err
			}
			if current.PaymentStatus != models.PaymentStatusCompleted {
				s.logger.WithFields(logrus.Fields{
					"booking_id": booking.ID,
					"status":     current.PaymentStatus,
				}).Error("Provider completed charge but booking is no longer pending, refund required")
				return nil, nil, models.ErrInvalidTransition
			}
			booking = current
		} else {
			booking.PaymentStatus = models.PaymentStatusCompleted
		}

		if err := s.attemptRepo.MarkCompleted(attempt.ID); err != nil {
			s.logger.WithError(err).WithField("attempt_id", attempt.ID).Error("Failed to mark attempt completed")
		}
		attempt.Status = models.AttemptStatusCompleted

		s.issueTicket(booking)

		s.audit(&models.PaymentAudit{
			AttemptID:   &attempt.ID,
			BookingID:   &booking.ID,
			ProviderRef: &attempt.ProviderRef,
			EventType:   models.PaymentEventCompleted,
			Amount:      &booking.TotalAmount,
			Currency:    &booking.Currency,
		})
		s.logger.WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"reference":  booking.Reference,
		}).Info("Payment completed")
		return booking, attempt, nil

	case momo.OutcomeFailed:
		released, _, tripID, err := s.bookingRepo.ReleaseSeats(
			booking.ID,
			[]models.PaymentStatus{models.PaymentStatusPending},
			models.PaymentStatusFailed,
			models.ReasonPaymentFailed,
		)
		if err != nil {
			return nil, nil, err
		}
		if released {
			s.cache.Invalidate(ctx, tripID)
			booking.PaymentStatus = models.PaymentStatusFailed
		} else {
			current, err := s.bookingRepo.GetByID(booking.ID)
			if err != nil {
				return nil, nil, err
			}
			booking = current
		}

		if err := s.attemptRepo.MarkFailed(attempt.ID); err != nil {
			s.logger.WithError(err).WithField("attempt_id", attempt.ID).Error("Failed to mark attempt failed")
		}
		attempt.Status = models.AttemptStatusFailed

		s.audit(&models.PaymentAudit{
			AttemptID:   &attempt.ID,
			BookingID:   &booking.ID,
			ProviderRef: &attempt.ProviderRef,
			EventType:   models.PaymentEventFailed,
		})
		s.logger.WithField("booking_id", booking.ID).Info("Payment failed, seats released")
		return booking, attempt, nil

	default:
		return nil, nil, fmt.Errorf("unknown provider outcome %q", outcome)
	}
}

// issueTicket renders the boarding QR for a completed booking. Ticket
// rendering is best effort; the booking is already settled.
func (s *PaymentService) issueTicket(booking *models.Booking) {
	content := fmt.Sprintf("swiftbus://ticket/%s/%s", booking.Reference, booking.ID)
	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to render ticket QR")
		return
	}

	qr := base64.StdEncoding.EncodeToString(png)
	if err := s.bookingRepo.SetTicketQR(booking.ID, qr); err != nil {
		s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to store ticket QR")
		return
	}
	booking.TicketQR = &qr
}

// ============================================================================
// HELPERS
// ============================================================================

func (s *PaymentService) pollResponse(booking *models.Booking, attempt *models.PaymentAttempt) *models.PollStatusResponse {
	return &models.PollStatusResponse{
		AttemptID:     attempt.ID,
		BookingID:     booking.ID,
		AttemptStatus: attempt.Status,
		PaymentStatus: booking.PaymentStatus,
		TicketQR:      booking.TicketQR,
	}
}

// expireOverdue lazily expires an overdue pending booking and returns
// the error the initiation should surface. When the guarded release
// loses to a concurrent settlement, the error is derived from the
// booking's actual state rather than assumed to be an expiry.
func (s *PaymentService) expireOverdue(ctx context.Context, booking *models.Booking) error {
	released, _, tripID, err := s.bookingRepo.ReleaseSeats(
		booking.ID,
		[]models.PaymentStatus{models.PaymentStatusPending},
		models.PaymentStatusCancelled,
		models.ReasonExpired,
	)
	if err != nil {
		return err
	}
	if released {
		s.cache.Invalidate(ctx, tripID)
		s.logger.WithField("booking_id", booking.ID).Info("Booking expired on payment initiation")
		return models.ErrBookingExpired
	}

	current, err := s.bookingRepo.GetByID(booking.ID)
	if err != nil {
		return err
	}
	if current.CancellationReason != nil && *current.CancellationReason == models.ReasonExpired {
		return models.ErrBookingExpired
	}
	return models.ErrInvalidTransition
}

// withRetry runs the provider call under the configured retry budget
func (s *PaymentService) withRetry(ctx context.Context, call func() error) error {
	attempts := s.cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = call(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(s.cfg.RetryBackoff * time.Duration(i+1)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// audit appends an audit entry, logging rather than failing the flow
func (s *PaymentService) audit(entry *models.PaymentAudit) {
	if err := s.auditRepo.Log(entry); err != nil {
		s.logger.WithError(err).Warn("Failed to write payment audit entry")
	}
}

func strPtr(s string) *string {
	return &s
}
