package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/database"
)

// Retention windows for purged records
const (
	attemptRetention = 90 * 24 * time.Hour
	bookingRetention = 180 * 24 * time.Hour
	auditRetention   = 365 * 24 * time.Hour
)

// CronService manages scheduled maintenance jobs
type CronService struct {
	cron        *cron.Cron
	bookingRepo *database.BookingRepository
	attemptRepo *database.PaymentAttemptRepository
	auditRepo   *database.PaymentAuditRepository
	logger      *logrus.Logger
}

// NewCronService creates a new CronService
func NewCronService(
	bookingRepo *database.BookingRepository,
	attemptRepo *database.PaymentAttemptRepository,
	auditRepo *database.PaymentAuditRepository,
	logger *logrus.Logger,
) *CronService {
	return &CronService{
		cron:        cron.New(cron.WithSeconds()),
		bookingRepo: bookingRepo,
		attemptRepo: attemptRepo,
		auditRepo:   auditRepo,
		logger:      logger,
	}
}

// Start schedules and starts all maintenance jobs
func (s *CronService) Start() error {
	// Cron format: second minute hour day month weekday

	// Purge settled payment attempts daily at 3 AM
	_, err := s.cron.AddFunc("0 0 3 * * *", s.purgeAttemptsJob)
	if err != nil {
		return fmt.Errorf("failed to schedule attempt purge job: %w", err)
	}

	// Purge old failed and cancelled bookings weekly on Sunday at 4 AM
	_, err = s.cron.AddFunc("0 0 4 * * 0", s.purgeBookingsJob)
	if err != nil {
		return fmt.Errorf("failed to schedule booking purge job: %w", err)
	}

	// Purge old audit entries monthly on the 1st at 5 AM
	_, err = s.cron.AddFunc("0 0 5 1 * *", s.purgeAuditsJob)
	if err != nil {
		return fmt.Errorf("failed to schedule audit purge job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Maintenance cron started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Maintenance cron stopped")
}

func (s *CronService) purgeAttemptsJob() {
	cutoff := time.Now().Add(-attemptRetention)
	purged, err := s.attemptRepo.PurgeSettledOlderThan(cutoff)
	if err != nil {
		s.logger.WithError(err).Error("Failed to purge settled payment attempts")
		return
	}
	if purged > 0 {
		s.logger.WithField("count", purged).Info("Purged settled payment attempts")
	}
}

func (s *CronService) purgeBookingsJob() {
	cutoff := time.Now().Add(-bookingRetention)
	purged, err := s.bookingRepo.PurgeTerminalOlderThan(cutoff)
	if err != nil {
		s.logger.WithError(err).Error("Failed to purge old bookings")
		return
	}
	if purged > 0 {
		s.logger.WithField("count", purged).Info("Purged old failed and cancelled bookings")
	}
}

func (s *CronService) purgeAuditsJob() {
	cutoff := time.Now().Add(-auditRetention)
	purged, err := s.auditRepo.PurgeOlderThan(cutoff)
	if err != nil {
		s.logger.WithError(err).Error("Failed to purge old audit entries")
		return
	}
	if purged > 0 {
		s.logger.WithField("count", purged).Info("Purged old payment audit entries")
	}
}

// JobStatus reports the schedule for the health endpoint
func (s *CronService) JobStatus() []map[string]interface{} {
	entries := s.cron.Entries()
	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}
	return jobs
}
