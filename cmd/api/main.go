package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/diagnosis/roombook/internal/credential"
	"github.com/diagnosis/roombook/internal/handlers"
	"github.com/diagnosis/roombook/internal/notify"
	"github.com/diagnosis/roombook/internal/repository"
	"github.com/diagnosis/roombook/internal/repository/memory"
	"github.com/diagnosis/roombook/internal/service"
	"github.com/diagnosis/roombook/pkg/config"
	"github.com/diagnosis/roombook/pkg/database"
	"github.com/diagnosis/roombook/pkg/events"
	"github.com/diagnosis/roombook/pkg/logger"
	mw "github.com/diagnosis/roombook/pkg/middleware"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// Record store
	var (
		accountRepo repository.AccountRepository
		bookingRepo repository.BookingRepository
		otpRepo     repository.OTPRepository
	)
	if cfg.Database.InMemory() {
		logger.Warn("Using in-memory record store, data is lost on exit")
		store := memory.New()
		accountRepo, bookingRepo, otpRepo = store.Accounts(), store.Bookings(), store.Challenges()
	} else {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		accountRepo = repository.NewAccountRepository(pool)
		bookingRepo = repository.NewBookingRepository(pool)
		otpRepo = repository.NewOTPRepository(pool)
	}

	// Event bus
	var eventBus events.Publisher = events.Discard{}
	if cfg.NATS.URL != "" {
		bus, err := events.NewNATSEventBus(cfg.NATS.URL)
		if err != nil {
			logger.Warn("NATS unavailable, events disabled", "error", err)
		} else {
			eventBus = bus
		}
	}
	defer eventBus.Close()

	// Redis backed rate limiting and idempotency
	var deps handlers.RouteDeps
	if cfg.Redis.Enabled {
		rdb, err := repository.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn("Redis unavailable, rate limiting and idempotency disabled", "error", err)
		} else {
			defer rdb.Close()
			if cfg.RateLimit.Enabled {
				deps.Limiter = repository.NewRateLimiter(rdb, "ratelimit:otp", cfg.RateLimit.Requests, cfg.RateLimit.Window)
			}
			deps.Idempotency = repository.NewIdempotencyCache(rdb)
			deps.IdempotencyTTL = 24 * time.Hour
		}
	}

	// Notification channel
	notifier, err := notify.Build(cfg.Email.Driver, cfg.Email, cfg.AMQP)
	if err != nil {
		logger.Error("Failed to set up notifier", "error", err, "driver", cfg.Email.Driver)
		os.Exit(1)
	}
	if c, ok := notifier.(io.Closer); ok {
		defer c.Close()
	}

	// Services
	credentials := credential.New(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	otpService := service.NewOTPService(otpRepo, notify.Async(notifier, 30*time.Second), eventBus, cfg.OTP)
	accountService := service.NewAccountService(accountRepo, credentials, otpService, eventBus, cfg.Auth)
	bookingService := service.NewBookingService(bookingRepo, otpService, eventBus, cfg.OTP)

	h := handlers.New(accountService, bookingService, otpService, credentials, cfg.OTP)

	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("roombook-api"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After", "Idempotent-Replayed"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h.Routes(r, deps)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down roombook API...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Roombook API shutdown error", "error", err)
		}
	}()

	logger.Info("Starting roombook API", "port", cfg.Server.Port, "notify_driver", cfg.Email.Driver)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Roombook API error", "error", err)
		os.Exit(1)
	}
}
