package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	avstore "tutorly/internal/availability/store"
	bookingmetrics "tutorly/internal/booking/metrics"
	bookingstore "tutorly/internal/booking/store"
	"tutorly/internal/booking/store/slotcache"
	httpapi "tutorly/internal/http"
	jwttoken "tutorly/internal/jwt_token"
	"tutorly/internal/notify"
	paymentstore "tutorly/internal/payment/store"
	"tutorly/internal/platform/config"
	"tutorly/internal/platform/httpserver"
	"tutorly/internal/platform/logger"
	"tutorly/internal/platform/metrics"
	"tutorly/internal/platform/postgres"
	"tutorly/internal/platform/ratelimit"
	"tutorly/internal/platform/redis"
	"tutorly/internal/receipts/storage"
	"tutorly/pkg/platform/tx"
)

// main wires backends from the environment, exposes the HTTP router, and
// keeps the server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return err
	}
	if cfg.AdminToken == "" {
		log.Warn("ADMIN_TOKEN is not set, admin routes will reject every request")
	}

	backends := httpapi.MemoryBackends("http://localhost"+cfg.Addr, log)
	var checks []httpapi.HealthCheck

	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		usePostgres(&backends, db)
		checks = append(checks, db.PingContext)
		log.Info("using postgres stores", "driver", cfg.Database.Driver)
	} else {
		log.Info("DATABASE_URL not set, using in-memory stores")
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		backends.SlotCache = slotcache.New(rdb.Client)
		checks = append(checks, rdb.Health)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := notify.NewKafkaNotifier(ctx, cfg.Kafka.Brokers, cfg.Kafka.NotifyTopic, notify.WithKafkaLogger(log))
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer closeCancel()
			_ = producer.Close(closeCtx)
		}()
		backends.Notifier = producer
	}

	if cfg.Cloudinary.URL != "" {
		receipts, err := storage.NewCloudinary(cfg.Cloudinary.URL, cfg.Cloudinary.Folder)
		if err != nil {
			return err
		}
		backends.Receipts = receipts
		backends.Files = nil
	}

	limiter := ratelimit.New(ratelimit.NewInMemoryStore(), log, ratelimit.WithDisabled(cfg.RateLimit.Disabled))
	app := httpapi.NewApp(backends, httpapi.Settings{
		Logger:          log,
		Location:        loc,
		HorizonDays:     cfg.Booking.HorizonDays,
		MaxReceiptBytes: cfg.Booking.MaxReceiptBytes,
		Tokens:          jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience),
		AdminToken:      cfg.AdminToken,
		HTTPMetrics:     metrics.New(),
		BookingMetrics:  bookingmetrics.New(),
		RateLimit:       limiter,
		Limits:          cfg.RateLimit,
		Health:          allHealthy(checks),
	})

	srv := httpserver.New(cfg.Addr, app.Router)
	log.Info("starting tutorly", "addr", cfg.Addr, "timezone", loc.String())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func usePostgres(b *httpapi.Backends, db *sql.DB) {
	b.Schedules = avstore.NewPostgres(db)
	b.Bookings = bookingstore.NewPostgres(db)
	b.Payments = paymentstore.NewPostgres(db)
	b.Transactor = tx.NewSQL(db)
}

func allHealthy(checks []httpapi.HealthCheck) httpapi.HealthCheck {
	return func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}
