package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	avmodels "tutorly/internal/availability/models"
	avservice "tutorly/internal/availability/service"
	avstore "tutorly/internal/availability/store"
	bookingmodels "tutorly/internal/booking/models"
	bookingservice "tutorly/internal/booking/service"
	bookingstore "tutorly/internal/booking/store"
	"tutorly/internal/notify"
	"tutorly/internal/payment/models"
	"tutorly/internal/payment/store"
	"tutorly/internal/platform/logger"
	id "tutorly/pkg/domain"
	dErrors "tutorly/pkg/domain-errors"
	"tutorly/pkg/requestcontext"
)

var riyadh = time.FixedZone("AST", 3*60*60)

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	bookings *bookingservice.Service
	notifier *notify.Recorder
	service  *Service
	teacher  id.TeacherID
	student  id.StudentID
	booking  *bookingmodels.Booking
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 10, 16, 8, 0, 0, 0, riyadh))
	s.teacher = id.TeacherID(uuid.New())
	s.student = id.StudentID(uuid.New())

	availability := avservice.New(avstore.NewInMemory(), avservice.WithLocation(riyadh))
	s.Require().NoError(availability.ReplaceSchedule(s.ctx, &avmodels.Schedule{
		TeacherID:  s.teacher,
		Name:       "Noura",
		HourlyRate: id.MustMoney("120.00"),
		Windows:    []avmodels.Window{{DayOfWeek: time.Sunday, Start: 9 * 60, End: 10 * 60}},
	}))
	s.bookings = bookingservice.New(bookingstore.NewInMemory(), availability, bookingservice.WithLogger(logger.Discard()))
	s.notifier = notify.NewRecorder()
	s.service = New(store.NewInMemory(), s.bookings,
		WithLogger(logger.Discard()),
		WithNotifier(s.notifier),
		WithLocation(riyadh),
	)

	start := time.Date(2026, 10, 18, 9, 0, 0, 0, riyadh)
	b, err := s.bookings.Create(s.ctx, s.student, s.teacher, start, start.Add(time.Hour))
	s.Require().NoError(err)
	s.booking = b
}

func (s *ServiceSuite) submission() models.Submission {
	return models.Submission{
		BookingID:     s.booking.ID,
		TransactionID: "TX-98211",
		Amount:        id.MustMoney("120.00"),
		PaymentDate:   id.Date{Year: 2026, Month: time.October, Day: 16},
		BankName:      "Al Rajhi Bank",
		ReceiptURLs:   []string{"https://files.example/r1.jpg"},
	}
}

func (s *ServiceSuite) bookingStatus() bookingmodels.Status {
	b, err := s.bookings.Find(s.ctx, s.booking.ID)
	s.Require().NoError(err)
	return b.Status
}

func (s *ServiceSuite) TestSubmit() {
	s.Run("rejects an amount that differs from the price", func() {
		sub := s.submission()
		sub.Amount = id.MustMoney("119.99")
		_, err := s.service.Submit(s.ctx, s.student, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(dErrors.MessageOf(err), "amount must be exactly 120.00")
		s.Equal(bookingmodels.StatusReserved, s.bookingStatus())
	})

	s.Run("another student's booking is not found", func() {
		_, err := s.service.Submit(s.ctx, id.StudentID(uuid.New()), s.submission())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("accepts a valid proof and moves the booking to review", func() {
		p, err := s.service.Submit(s.ctx, s.student, s.submission())
		s.Require().NoError(err)
		s.Equal(models.StatusPendingReview, p.Status)
		s.Equal([]string{"https://files.example/r1.jpg"}, p.ReceiptURLs)
		s.Equal(bookingmodels.StatusAwaitingReview, s.bookingStatus())
		s.Contains(s.notifier.Kinds(), notify.KindPaymentSubmitted)
	})

	s.Run("a second proof for the same booking conflicts", func() {
		_, err := s.service.Submit(s.ctx, s.student, s.submission())
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown booking is not found", func() {
		sub := s.submission()
		sub.BookingID = id.NewBookingID()
		_, err := s.service.Submit(s.ctx, s.student, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestSubmitForCancelledBooking() {
	_, err := s.bookings.Cancel(s.ctx, s.booking.ID)
	s.Require().NoError(err)

	_, err = s.service.Submit(s.ctx, s.student, s.submission())
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *ServiceSuite) TestReview() {
	p, err := s.service.Submit(s.ctx, s.student, s.submission())
	s.Require().NoError(err)

	s.Run("rejection requires a reason", func() {
		_, err := s.service.Review(s.ctx, p.ID, false, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("approval confirms the booking", func() {
		reviewed, err := s.service.Review(s.ctx, p.ID, true, "")
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, reviewed.Status)
		s.NotNil(reviewed.ReviewedAt)
		s.Equal(bookingmodels.StatusConfirmed, s.bookingStatus())
		s.Contains(s.notifier.Kinds(), notify.KindPaymentApproved)
	})

	s.Run("a payment is reviewed only once", func() {
		_, err := s.service.Review(s.ctx, p.ID, false, "duplicate")
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		s.Equal(bookingmodels.StatusConfirmed, s.bookingStatus())
	})

	s.Run("unknown payment is not found", func() {
		_, err := s.service.Review(s.ctx, id.NewPaymentID(), true, "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestRejectReleasesBooking() {
	p, err := s.service.Submit(s.ctx, s.student, s.submission())
	s.Require().NoError(err)

	reviewed, err := s.service.Review(s.ctx, p.ID, false, "receipt unreadable")
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, reviewed.Status)
	s.Equal(bookingmodels.StatusRejected, s.bookingStatus())

	start := time.Date(2026, 10, 18, 9, 0, 0, 0, riyadh)
	available, err := s.bookings.Probe(s.ctx, s.teacher, start, start.Add(time.Hour))
	s.Require().NoError(err)
	s.True(available)
}

func (s *ServiceSuite) TestGet() {
	p, err := s.service.Submit(s.ctx, s.student, s.submission())
	s.Require().NoError(err)

	found, err := s.service.Get(s.ctx, s.student, p.ID)
	s.Require().NoError(err)
	s.Equal(p.ID, found.ID)

	_, err = s.service.Get(s.ctx, id.StudentID(uuid.New()), p.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
