package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/config"
	"github.com/swiftbus/booking-backend/internal/models"
)

// AvailabilityCache is a short-TTL Redis cache for the trip seat-map
// projection. The database ledger stays authoritative; the cache only
// absorbs read traffic from seat-selection screens. A nil cache (no
// Redis configured) is valid and makes every call a no-op, so callers
// never branch on whether caching is enabled.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// New connects to Redis and returns the cache, or nil when no Redis URL
// is configured
func New(cfg config.RedisConfig, logger *logrus.Logger) (*AvailabilityCache, error) {
	if cfg.URL == "" {
		logger.Info("Redis not configured, availability cache disabled")
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &AvailabilityCache{
		client: client,
		ttl:    cfg.TTL,
		logger: logger,
	}, nil
}

func availabilityKey(tripID uuid.UUID) string {
	return "swiftbus:availability:" + tripID.String()
}

// Get returns the cached projection for a trip, or nil on a miss.
// Cache errors degrade to a miss; the caller falls through to Postgres.
func (c *AvailabilityCache) Get(ctx context.Context, tripID uuid.UUID) *models.TripAvailability {
	if c == nil {
		return nil
	}

	val, err := c.client.Get(ctx, availabilityKey(tripID)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		c.logger.WithError(err).Warn("Availability cache read failed")
		return nil
	}

	var availability models.TripAvailability
	if err := json.Unmarshal([]byte(val), &availability); err != nil {
		c.logger.WithError(err).Warn("Availability cache entry corrupt, discarding")
		c.Invalidate(ctx, tripID)
		return nil
	}
	return &availability
}

// Set stores the projection with the configured TTL
func (c *AvailabilityCache) Set(ctx context.Context, availability *models.TripAvailability) {
	if c == nil || availability == nil {
		return
	}

	data, err := json.Marshal(availability)
	if err != nil {
		c.logger.WithError(err).Warn("Availability cache encode failed")
		return
	}

	if err := c.client.Set(ctx, availabilityKey(availability.TripID), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("Availability cache write failed")
	}
}

// Invalidate drops the cached projection after any seat mutation
func (c *AvailabilityCache) Invalidate(ctx context.Context, tripID uuid.UUID) {
	if c == nil {
		return
	}

	if err := c.client.Del(ctx, availabilityKey(tripID)).Err(); err != nil {
		c.logger.WithError(err).Warn("Availability cache invalidation failed")
	}
}

// Close shuts down the Redis connection
func (c *AvailabilityCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
