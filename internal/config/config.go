package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// Booking lifecycle configuration
	Booking BookingConfig

	// Payment gateway configuration
	Payment PaymentConfig

	// Redis configuration (availability cache)
	Redis RedisConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// CORS configuration
	CORS CORSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration. Tokens are minted by the
// shared auth service; this backend only needs the verification secret.
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// BookingConfig holds reservation lifecycle configuration
type BookingConfig struct {
	// HoldWindow is how long a pending booking keeps its seats before
	// the sweeper reclaims them
	HoldWindow time.Duration

	// SweepInterval is how often the expiration sweeper scans for
	// overdue pending bookings
	SweepInterval time.Duration

	// SweepBatchSize caps how many overdue bookings one sweep pass
	// processes
	SweepBatchSize int

	// MaxSeatsPerBooking caps seats on a single reservation
	MaxSeatsPerBooking int
}

// PaymentConfig holds mobile-money gateway configuration. An empty
// BaseURL runs the gateway in sandbox mode.
type PaymentConfig struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
	Currency      string
}

// RedisConfig holds the availability cache configuration. An empty URL
// disables the cache and all reads fall through to Postgres.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	TTL      time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		Booking: BookingConfig{
			HoldWindow:         time.Duration(getEnvAsInt("BOOKING_HOLD_WINDOW_MINUTES", 15)) * time.Minute,
			SweepInterval:      time.Duration(getEnvAsInt("BOOKING_SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
			SweepBatchSize:     getEnvAsInt("BOOKING_SWEEP_BATCH_SIZE", 100),
			MaxSeatsPerBooking: getEnvAsInt("BOOKING_MAX_SEATS", 8),
		},
		Payment: PaymentConfig{
			BaseURL:       getEnv("MOMO_BASE_URL", ""),
			APIKey:        getEnv("MOMO_API_KEY", ""),
			Timeout:       time.Duration(getEnvAsInt("MOMO_TIMEOUT_SECONDS", 30)) * time.Second,
			RetryAttempts: getEnvAsInt("MOMO_RETRY_ATTEMPTS", 3),
			RetryBackoff:  time.Duration(getEnvAsInt("MOMO_RETRY_BACKOFF_MS", 200)) * time.Millisecond,
			Currency:      getEnv("PAYMENT_CURRENCY", "UGX"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      time.Duration(getEnvAsInt("REDIS_TTL_SECONDS", 30)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Booking.HoldWindow <= 0 {
		return fmt.Errorf("BOOKING_HOLD_WINDOW_MINUTES must be positive")
	}

	if c.Booking.SweepBatchSize <= 0 {
		return fmt.Errorf("BOOKING_SWEEP_BATCH_SIZE must be positive")
	}

	// A real gateway URL needs credentials; sandbox mode does not
	if c.Payment.BaseURL != "" && c.Payment.APIKey == "" {
		return fmt.Errorf("MOMO_API_KEY is required when MOMO_BASE_URL is set")
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid float value for %s, using default: %g", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
