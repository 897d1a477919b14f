package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	avhandler "tutorly/internal/availability/handler"
	avservice "tutorly/internal/availability/service"
	avstore "tutorly/internal/availability/store"
	bookinghandler "tutorly/internal/booking/handler"
	bookingmetrics "tutorly/internal/booking/metrics"
	bookingservice "tutorly/internal/booking/service"
	bookingstore "tutorly/internal/booking/store"
	"tutorly/internal/notify"
	paymenthandler "tutorly/internal/payment/handler"
	paymentservice "tutorly/internal/payment/service"
	paymentstore "tutorly/internal/payment/store"
	"tutorly/internal/platform/config"
	"tutorly/internal/platform/metrics"
	"tutorly/internal/platform/ratelimit"
	"tutorly/internal/receipts"
	receiptshandler "tutorly/internal/receipts/handler"
	"tutorly/internal/receipts/storage"
	"tutorly/pkg/platform/middleware/auth"
	"tutorly/pkg/platform/tx"
)

// Backends selects the storage behind each module. SlotCache and Files are optional.
type Backends struct {
	Schedules  avservice.Store
	Bookings   bookingservice.Store
	Payments   paymentservice.Store
	Transactor tx.Transactor
	SlotCache  bookingservice.SlotCache
	Notifier   notify.Sender
	Receipts   receipts.Storage
	Files      receiptshandler.FileServer
}

// MemoryBackends keeps everything in process. Receipts are served back under
// filesBaseURL + "/files".
func MemoryBackends(filesBaseURL string, logger *slog.Logger) Backends {
	files := storage.NewMemory(filesBaseURL + "/files")
	return Backends{
		Schedules:  avstore.NewInMemory(),
		Bookings:   bookingstore.NewInMemory(),
		Payments:   paymentstore.NewInMemory(),
		Transactor: tx.NewLocal(),
		Notifier:   notify.NewLogNotifier(logger),
		Receipts:   files,
		Files:      files,
	}
}

// Settings are the non-storage knobs of the API.
type Settings struct {
	Logger          *slog.Logger
	Location        *time.Location
	HorizonDays     int
	MaxReceiptBytes int64
	Tokens          auth.TokenValidator
	AdminToken      string

	// Optional.
	HTTPMetrics    *metrics.Metrics
	BookingMetrics *bookingmetrics.Metrics
	RateLimit      *ratelimit.Middleware
	Limits         config.RateLimitConfig
	Health         HealthCheck
}

// App is the wired API.
type App struct {
	Availability *avservice.Service
	Bookings     *bookingservice.Service
	Payments     *paymentservice.Service
	Receipts     *receipts.Service
	Router       http.Handler
}

func NewApp(b Backends, s Settings) *App {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	if b.Notifier == nil {
		b.Notifier = notify.NewLogNotifier(log)
	}
	if b.Transactor == nil {
		b.Transactor = tx.NewLocal()
	}

	availability := avservice.New(b.Schedules,
		avservice.WithLogger(log),
		avservice.WithLocation(s.Location),
		avservice.WithHorizonDays(s.HorizonDays),
	)
	bookingOpts := []bookingservice.Option{
		bookingservice.WithLogger(log),
		bookingservice.WithMetrics(s.BookingMetrics),
		bookingservice.WithNotifier(b.Notifier),
	}
	if b.SlotCache != nil {
		bookingOpts = append(bookingOpts, bookingservice.WithSlotCache(b.SlotCache))
	}
	bookings := bookingservice.New(b.Bookings, availability, bookingOpts...)
	payments := paymentservice.New(b.Payments, bookings,
		paymentservice.WithLogger(log),
		paymentservice.WithNotifier(b.Notifier),
		paymentservice.WithTransactor(b.Transactor),
		paymentservice.WithLocation(s.Location),
	)
	receiptSvc := receipts.NewService(b.Receipts,
		receipts.WithLogger(log),
		receipts.WithMaxBytes(s.MaxReceiptBytes),
	)

	router := NewRouter(Deps{
		Logger:       log,
		Tokens:       s.Tokens,
		AdminToken:   s.AdminToken,
		Metrics:      s.HTTPMetrics,
		RateLimit:    s.RateLimit,
		Limits:       s.Limits,
		Health:       s.Health,
		Availability: avhandler.New(availability, log),
		Bookings:     bookinghandler.New(bookings, log, s.Location),
		Payments:     paymenthandler.New(payments, log),
		Receipts:     receiptshandler.New(receiptSvc, b.Files, log),
	})

	return &App{
		Availability: availability,
		Bookings:     bookings,
		Payments:     payments,
		Receipts:     receiptSvc,
		Router:       router,
	}
}
