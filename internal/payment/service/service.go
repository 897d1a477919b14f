package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	bookingmodels "tutorly/internal/booking/models"
	"tutorly/internal/notify"
	"tutorly/internal/payment/models"
	id "tutorly/pkg/domain"
	dErrors "tutorly/pkg/domain-errors"
	"tutorly/pkg/platform/sentinel"
	"tutorly/pkg/platform/tx"
	"tutorly/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, p *models.Payment) error
	FindByID(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error)
	FindByBooking(ctx context.Context, bookingID id.BookingID) (*models.Payment, error)
	Update(ctx context.Context, paymentID id.PaymentID, fn func(*models.Payment) error) (*models.Payment, error)
}

// Bookings is the slice of the booking service payments need.
type Bookings interface {
	Find(ctx context.Context, bookingID id.BookingID) (*bookingmodels.Booking, error)
	Transition(ctx context.Context, bookingID id.BookingID, next bookingmodels.Status) (*bookingmodels.Booking, error)
}

type Notifier interface {
	Send(ctx context.Context, kind notify.Kind, recipient string, data map[string]string) error
}

// Service accepts payment proofs for reserved bookings and settles them on review.
type Service struct {
	store    Store
	bookings Bookings
	tx       tx.Transactor
	notifier Notifier
	logger   *slog.Logger
	location *time.Location
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithTransactor replaces the default in-process transaction.
func WithTransactor(t tx.Transactor) Option {
	return func(s *Service) {
		s.tx = t
	}
}

// WithLocation sets the zone "today" is computed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func New(store Store, bookings Bookings, opts ...Option) *Service {
	s := &Service{
		store:    store,
		bookings: bookings,
		tx:       tx.NewLocal(),
		logger:   slog.Default(),
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit records a payment proof and moves its booking to awaiting_review in
// one transaction.
func (s *Service) Submit(ctx context.Context, studentID id.StudentID, sub models.Submission) (*models.Payment, error) {
	if studentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "student identity required")
	}
	if sub.BookingID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "booking_id is required")
	}
	now := requestcontext.Now(ctx)
	today := id.DateOf(now.In(s.location))

	var payment *models.Payment
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		booking, err := s.bookings.Find(ctx, sub.BookingID)
		if err != nil {
			return err
		}
		if booking.StudentID != studentID {
			return dErrors.New(dErrors.CodeNotFound, "booking not found")
		}
		if fieldErrs := sub.Validate(booking.Price, today); fieldErrs != nil {
			return dErrors.New(dErrors.CodeValidation, fieldErrs.Error())
		}
		switch booking.Status {
		case bookingmodels.StatusReserved:
		case bookingmodels.StatusAwaitingReview, bookingmodels.StatusConfirmed:
			return dErrors.New(dErrors.CodeConflict, "payment already submitted for this booking")
		default:
			return dErrors.New(dErrors.CodeInvariantViolation, "booking is no longer active")
		}
		if _, err := s.store.FindByBooking(ctx, sub.BookingID); err == nil {
			return dErrors.New(dErrors.CodeConflict, "payment already submitted for this booking")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing payment")
		}

		p := models.NewPending(studentID, sub, now)
		if _, err := s.bookings.Transition(ctx, sub.BookingID, bookingmodels.StatusAwaitingReview); err != nil {
			return err
		}
		if err := s.store.Create(ctx, p); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "payment already submitted for this booking")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store payment")
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "payment submitted",
		"payment_id", payment.ID,
		"booking_id", payment.BookingID,
		"student_id", studentID,
		"receipts", len(payment.ReceiptURLs),
	)
	s.notify(ctx, notify.KindPaymentSubmitted, payment)
	return payment, nil
}

// Review approves or rejects a pending payment and settles its booking.
func (s *Service) Review(ctx context.Context, paymentID id.PaymentID, approve bool, reason string) (*models.Payment, error) {
	if !approve && reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "a reason is required when rejecting a payment")
	}
	now := requestcontext.Now(ctx)
	var payment *models.Payment
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.store.FindByID(ctx, paymentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "payment not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load payment")
		}
		if current.Status != models.StatusPendingReview {
			return dErrors.New(dErrors.CodeInvariantViolation, "payment has already been reviewed")
		}
		next := bookingmodels.StatusConfirmed
		if !approve {
			next = bookingmodels.StatusRejected
		}
		if _, err := s.bookings.Transition(ctx, current.BookingID, next); err != nil {
			return err
		}
		p, err := s.store.Update(ctx, paymentID, func(p *models.Payment) error {
			return p.Review(approve, reason, now)
		})
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				return err
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update payment")
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	kind := notify.KindPaymentApproved
	if !approve {
		kind = notify.KindPaymentRejected
	}
	s.logger.InfoContext(ctx, "payment reviewed",
		"payment_id", paymentID,
		"status", payment.Status,
	)
	s.notify(ctx, kind, payment)
	return payment, nil
}

// Get returns a payment owned by studentID.
func (s *Service) Get(ctx context.Context, studentID id.StudentID, paymentID id.PaymentID) (*models.Payment, error) {
	p, err := s.store.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "payment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load payment")
	}
	if p.StudentID != studentID {
		return nil, dErrors.New(dErrors.CodeNotFound, "payment not found")
	}
	return p, nil
}

func (s *Service) notify(ctx context.Context, kind notify.Kind, p *models.Payment) {
	if s.notifier == nil {
		return
	}
	data := map[string]string{
		"payment_id": p.ID.String(),
		"booking_id": p.BookingID.String(),
		"amount":     p.Amount.String(),
	}
	if p.ReviewReason != "" {
		data["reason"] = p.ReviewReason
	}
	if err := s.notifier.Send(ctx, kind, p.StudentID.String(), data); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			"kind", kind,
			"payment_id", p.ID,
			"error", err.Error(),
		)
	}
}
