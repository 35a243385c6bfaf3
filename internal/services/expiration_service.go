package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/cache"
	"github.com/swiftbus/booking-backend/internal/config"
	"github.com/swiftbus/booking-backend/internal/database"
	"github.com/swiftbus/booking-backend/internal/models"
)

// ExpirationService sweeps overdue pending bookings in the background
// and returns their seats to the ledger. Each booking is released in its
// own transaction, so one poisoned row cannot wedge the whole sweep, and
// the guarded release makes a sweep racing a payment or cancellation a
// harmless no-op.
type ExpirationService struct {
	bookingRepo *database.BookingRepository
	cache       *cache.AvailabilityCache
	logger      *logrus.Logger
	stopCh      chan struct{}
	interval    time.Duration
	batchSize   int
}

// NewExpirationService creates a new expiration sweeper
func NewExpirationService(
	bookingRepo *database.BookingRepository,
	availabilityCache *cache.AvailabilityCache,
	logger *logrus.Logger,
	cfg config.BookingConfig,
) *ExpirationService {
	return &ExpirationService{
		bookingRepo: bookingRepo,
		cache:       availabilityCache,
		logger:      logger,
		stopCh:      make(chan struct{}),
		interval:    cfg.SweepInterval,
		batchSize:   cfg.SweepBatchSize,
	}
}

// Start begins the background sweep loop
func (s *ExpirationService) Start() {
	s.logger.WithField("interval", s.interval).Info("Starting booking expiration sweeper")
	go s.run()
}

// Stop stops the background sweep loop
func (s *ExpirationService) Stop() {
	s.logger.Info("Stopping booking expiration sweeper")
	close(s.stopCh)
}

func (s *ExpirationService) run() {
	// Run immediately on start so a restart does not leave overdue
	// holds in place for a full interval
	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			s.logger.Info("Booking expiration sweeper stopped")
			return
		}
	}
}

// sweep releases one batch of overdue pending bookings
func (s *ExpirationService) sweep() {
	expired, err := s.bookingRepo.GetExpiredPending(s.batchSize)
	if err != nil {
		s.logger.WithError(err).Error("Failed to query expired bookings")
		return
	}

	if len(expired) == 0 {
		return
	}

	s.logger.WithField("count", len(expired)).Info("Sweeping expired bookings")

	ctx := context.Background()
	releasedCount := 0

	for _, booking := range expired {
		released, seatCount, tripID, err := s.bookingRepo.ReleaseSeats(
			booking.ID,
			[]models.PaymentStatus{models.PaymentStatusPending},
			models.PaymentStatusCancelled,
			models.ReasonExpired,
		)
		if err != nil {
			s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to expire booking")
			continue
		}
		if !released {
			// Paid or cancelled between the query and the release
			continue
		}

		releasedCount++
		s.cache.Invalidate(ctx, tripID)
		s.logger.WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"reference":  booking.Reference,
			"seats":      seatCount,
		}).Info("Expired booking, seats released")
	}

	if releasedCount > 0 {
		s.logger.WithField("released", releasedCount).Info("Sweep pass complete")
	}
}

// RunOnce runs a single sweep pass (manual trigger and tests)
func (s *ExpirationService) RunOnce() {
	s.sweep()
}
