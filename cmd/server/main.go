package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/swiftbus/booking-backend/internal/cache"
	"github.com/swiftbus/booking-backend/internal/config"
	"github.com/swiftbus/booking-backend/internal/database"
	"github.com/swiftbus/booking-backend/internal/handlers"
	"github.com/swiftbus/booking-backend/internal/middleware"
	"github.com/swiftbus/booking-backend/internal/services"
	"github.com/swiftbus/booking-backend/pkg/jwt"
	"github.com/swiftbus/booking-backend/pkg/momo"
	"github.com/swiftbus/booking-backend/pkg/validator"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting SwiftBus Booking Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Initialize availability cache (nil when Redis is not configured)
	availabilityCache, err := cache.New(cfg.Redis, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to redis: %v", err)
	}
	defer availabilityCache.Close()

	// Initialize repositories
	bookingRepo := database.NewBookingRepository(db)
	tripRepo := database.NewTripRepository(db)
	attemptRepo := database.NewPaymentAttemptRepository(db)
	auditRepo := database.NewPaymentAuditRepository(db)

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	phoneValidator := validator.NewPhoneValidator()

	gateway := momo.NewGateway(momo.Config{
		BaseURL: cfg.Payment.BaseURL,
		APIKey:  cfg.Payment.APIKey,
		Timeout: cfg.Payment.Timeout,
	})
	if gateway.IsSandbox() {
		logger.Warn("Payment gateway in sandbox mode, charges settle locally")
	}

	reservationSvc := services.NewReservationService(
		bookingRepo, tripRepo, availabilityCache, logger, cfg.Booking, cfg.Payment.Currency,
	)
	paymentSvc := services.NewPaymentService(
		bookingRepo, attemptRepo, auditRepo, gateway, phoneValidator,
		availabilityCache, logger, cfg.Payment,
	)
	cancellationSvc := services.NewCancellationService(bookingRepo, availabilityCache, logger)

	// Start the expiration sweeper
	expirationSvc := services.NewExpirationService(bookingRepo, availabilityCache, logger, cfg.Booking)
	expirationSvc.Start()

	// Start maintenance cron
	cronService := services.NewCronService(bookingRepo, attemptRepo, auditRepo, logger)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}

	logger.Info("Services initialized")

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(reservationSvc, cancellationSvc)
	paymentHandler := handlers.NewPaymentHandler(paymentSvc)
	systemHandler := handlers.NewSystemHandler(db)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Rate limiting
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit)
	router.Use(rateLimiter.Middleware())

	// Health check endpoint
	router.GET("/health", systemHandler.Health)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Public trip availability (seat-selection screens poll this)
		v1.GET("/trips/:id/availability", bookingHandler.GetTripAvailability)

		// Provider settlement webhook (public, provider-facing)
		v1.POST("/payments/webhook", paymentHandler.PaymentWebhook)

		// Booking routes (protected)
		bookings := v1.Group("/bookings")
		bookings.Use(middleware.AuthMiddleware(jwtService))
		{
			bookings.POST("", bookingHandler.CreateBooking)
			bookings.GET("", bookingHandler.ListMyBookings)
			bookings.GET("/:id", bookingHandler.GetBooking)
			bookings.GET("/:id/countdown", bookingHandler.GetCountdown)
			bookings.POST("/:id/cancel", bookingHandler.CancelBooking)

			bookings.POST("/:id/payment", paymentHandler.InitiatePayment)
			bookings.GET("/:id/payment", paymentHandler.PollPaymentStatus)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtService))
		admin.Use(middleware.RequireRole("admin"))
		{
			admin.GET("/bookings", bookingHandler.ListBookings)
			admin.POST("/sweep", func(c *gin.Context) {
				expirationSvc.RunOnce()
				c.JSON(http.StatusOK, gin.H{"message": "Sweep triggered"})
			})
			admin.GET("/cron/status", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"jobs": cronService.JobStatus()})
			})
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	expirationSvc.Stop()
	cronService.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		if userCtx, exists := middleware.GetUserContext(c); exists {
			fields["user_id"] = userCtx.UserID
		}

		entry := logger.WithFields(fields)

		status := c.Writer.Status()
		switch {
		case len(c.Errors) > 0:
			entry.WithField("errors", c.Errors.String()).Error("Request failed with errors")
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed")
		}
	}
}
