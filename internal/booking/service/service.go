package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	avsvc "tutorly/internal/availability/service"
	"tutorly/internal/booking/metrics"
	"tutorly/internal/booking/models"
	"tutorly/internal/notify"
	id "tutorly/pkg/domain"
	dErrors "tutorly/pkg/domain-errors"
	"tutorly/pkg/platform/sentinel"
	"tutorly/pkg/requestcontext"
)

// ConflictMessage is the client-visible reason a slot could not be reserved.
const ConflictMessage = "time slot already booked"

type Store interface {
	CreateIfSlotFree(ctx context.Context, b *models.Booking) error
	FindByID(ctx context.Context, bookingID id.BookingID) (*models.Booking, error)
	SlotTaken(ctx context.Context, teacherID id.TeacherID, start, end time.Time) (bool, error)
	Update(ctx context.Context, bookingID id.BookingID, fn func(*models.Booking) error) (*models.Booking, error)
}

// Quoter confirms an interval is offered and prices it.
type Quoter interface {
	Quote(ctx context.Context, teacherID id.TeacherID, start, end time.Time) (*avsvc.Quote, error)
}

// SlotCache is the advisory mirror of held intervals.
type SlotCache interface {
	Mark(ctx context.Context, teacherID id.TeacherID, start, end time.Time) error
	Release(ctx context.Context, teacherID id.TeacherID, start, end time.Time) error
	Taken(ctx context.Context, teacherID id.TeacherID, start, end time.Time) (bool, error)
}

type Notifier interface {
	Send(ctx context.Context, kind notify.Kind, recipient string, data map[string]string) error
}

// Service reserves slots. The store's conflict gate is authoritative; the
// slot cache only serves advisory probes.
type Service struct {
	store    Store
	quoter   Quoter
	cache    SlotCache
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithSlotCache(cache SlotCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func New(store Store, quoter Quoter, opts ...Option) *Service {
	s := &Service{store: store, quoter: quoter, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create reserves [start, end) with teacherID for studentID.
func (s *Service) Create(ctx context.Context, studentID id.StudentID, teacherID id.TeacherID, start, end time.Time) (*models.Booking, error) {
	began := time.Now()
	defer s.metrics.ObserveCreate(began)

	if studentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "student identity required")
	}
	if teacherID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "teacher_id is required")
	}
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return nil, dErrors.New(dErrors.CodeValidation, "start_time must be before end_time")
	}

	quote, err := s.quoter.Quote(ctx, teacherID, start, end)
	if err != nil {
		return nil, err
	}
	booking, err := models.NewReserved(teacherID, studentID, quote.Slot.Start, quote.Slot.End, quote.Price, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}

	if err := s.store.CreateIfSlotFree(ctx, booking); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.IncrementConflict()
			s.logger.InfoContext(ctx, "booking conflict",
				"teacher_id", teacherID,
				"start_time", start,
				"student_id", studentID,
			)
			return nil, dErrors.New(dErrors.CodeConflict, ConflictMessage)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create booking")
	}

	s.metrics.IncrementCreated()
	s.logger.InfoContext(ctx, "booking reserved",
		"booking_id", booking.ID,
		"teacher_id", teacherID,
		"student_id", studentID,
		"start_time", booking.Start,
	)
	s.markCache(ctx, booking)
	s.notify(ctx, notify.KindBookingReserved, booking)
	return booking, nil
}

// Probe answers whether [start, end) looks free. It is advisory: the cache is
// consulted first and the store answers when the cache is absent or failing.
func (s *Service) Probe(ctx context.Context, teacherID id.TeacherID, start, end time.Time) (bool, error) {
	if teacherID.IsNil() || !start.Before(end) {
		return false, dErrors.New(dErrors.CodeValidation, "teacher_id and a valid interval are required")
	}
	if s.cache != nil {
		taken, err := s.cache.Taken(ctx, teacherID, start, end)
		if err == nil {
			s.metrics.ObserveProbe("cache", !taken)
			return !taken, nil
		}
		s.logger.WarnContext(ctx, "slot cache probe failed, falling back to store",
			"teacher_id", teacherID,
			"error", err.Error(),
		)
	}
	taken, err := s.store.SlotTaken(ctx, teacherID, start, end)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "slot probe unavailable")
	}
	s.metrics.ObserveProbe("store", !taken)
	return !taken, nil
}

// Get returns a booking owned by studentID. Other students' bookings are reported as not found.
func (s *Service) Get(ctx context.Context, studentID id.StudentID, bookingID id.BookingID) (*models.Booking, error) {
	booking, err := s.find(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.StudentID != studentID {
		return nil, dErrors.New(dErrors.CodeNotFound, "booking not found")
	}
	return booking, nil
}

// Find returns a booking regardless of owner, for collaborating services.
func (s *Service) Find(ctx context.Context, bookingID id.BookingID) (*models.Booking, error) {
	return s.find(ctx, bookingID)
}

// Transition moves a booking along its lifecycle. Leaving the live set
// releases the interval in the slot cache.
func (s *Service) Transition(ctx context.Context, bookingID id.BookingID, next models.Status) (*models.Booking, error) {
	now := requestcontext.Now(ctx)
	booking, err := s.store.Update(ctx, bookingID, func(b *models.Booking) error {
		return b.Transition(next, now)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "booking not found")
		}
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update booking")
	}
	s.metrics.IncrementTransition(string(next))
	s.logger.InfoContext(ctx, "booking status changed",
		"booking_id", bookingID,
		"status", next,
	)
	if !next.IsLive() && s.cache != nil {
		if err := s.cache.Release(ctx, booking.TeacherID, booking.Start, booking.End); err != nil {
			s.logger.WarnContext(ctx, "failed to release slot in cache",
				"booking_id", bookingID,
				"error", err.Error(),
			)
		}
	}
	return booking, nil
}

// Cancel is the back-office release of a reserved or in-review booking.
func (s *Service) Cancel(ctx context.Context, bookingID id.BookingID) (*models.Booking, error) {
	return s.Transition(ctx, bookingID, models.StatusCancelled)
}

func (s *Service) find(ctx context.Context, bookingID id.BookingID) (*models.Booking, error) {
	booking, err := s.store.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "booking not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load booking")
	}
	return booking, nil
}

func (s *Service) markCache(ctx context.Context, b *models.Booking) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Mark(ctx, b.TeacherID, b.Start, b.End); err != nil {
		s.logger.WarnContext(ctx, "failed to mirror booking into slot cache",
			"booking_id", b.ID,
			"error", err.Error(),
		)
	}
}

func (s *Service) notify(ctx context.Context, kind notify.Kind, b *models.Booking) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Send(ctx, kind, b.StudentID.String(), map[string]string{
		"booking_id": b.ID.String(),
		"teacher_id": b.TeacherID.String(),
		"start_time": b.Start.Format(time.RFC3339),
		"price":      b.Price.String(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			"kind", kind,
			"booking_id", b.ID,
			"error", err.Error(),
		)
	}
}
