package session_test

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks Catalog,Bookings,Payments,Uploader,Prober

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/mock/gomock"

	avmodels "tutorly/internal/availability/models"
	paymodels "tutorly/internal/payment/models"
	"tutorly/internal/platform/logger"
	"tutorly/internal/session"
	"tutorly/internal/session/mocks"
	id "tutorly/pkg/domain"
	dErrors "tutorly/pkg/domain-errors"
	"tutorly/pkg/platform/circuit"
)

// =============================================================================
// Pipeline Test Suite
// =============================================================================
// The pipeline is the only writer of authoritative state. Tests pin the
// ordering of the two phases and the error each failure is classified as.

type PipelineSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	bookings *mocks.MockBookings
	payments *mocks.MockPayments
	uploader *mocks.MockUploader
	prober   *mocks.MockProber
	pipeline *session.Pipeline
	draft    session.Draft
	sub      paymodels.Submission
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.bookings = mocks.NewMockBookings(s.ctrl)
	s.payments = mocks.NewMockPayments(s.ctrl)
	s.uploader = mocks.NewMockUploader(s.ctrl)
	s.prober = mocks.NewMockProber(s.ctrl)
	s.pipeline = session.NewPipeline(s.bookings, s.payments, s.uploader,
		session.WithTracer(noop.NewTracerProvider().Tracer("test")),
		session.WithPipelineLogger(logger.Discard()),
		session.WithCallTimeout(time.Second),
	)
	s.draft = session.Draft{
		StudentID: id.StudentID(uuid.New()),
		TeacherID: id.TeacherID(uuid.New()),
		Date:      id.Date{Year: 2026, Month: 10, Day: 17},
		TimeSlot:  avmodels.TimeSlot{Start: 9 * 60, End: 10 * 60},
		Price:     id.MustMoney("120.00"),
	}
	s.sub = paymodels.Submission{
		TransactionID: "TX-001",
		Amount:        id.MustMoney("120.00"),
		PaymentDate:   id.Date{Year: 2026, Month: 10, Day: 16},
		BankName:      "Al Rajhi Bank",
	}
}

func (s *PipelineSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *PipelineSuite) TestRoundTrip() {
	bookingID := id.NewBookingID()
	paymentID := id.NewPaymentID()
	wantStart := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	gomock.InOrder(
		s.bookings.EXPECT().CreateBooking(gomock.Any(), session.CreateBookingRequest{
			TeacherID: s.draft.TeacherID,
			Start:     wantStart,
			End:       wantStart.Add(time.Hour),
		}).Return(&session.BookingRef{BookingID: bookingID, Status: "reserved"}, nil).Times(1),
		s.payments.EXPECT().SubmitPayment(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, sub paymodels.Submission) (*session.PaymentRef, error) {
				s.Equal(bookingID, sub.BookingID)
				s.Equal("TX-001", sub.TransactionID)
				s.Empty(sub.ReceiptURLs)
				return &session.PaymentRef{PaymentID: paymentID, Status: "pending_review"}, nil
			}).Times(1),
	)

	result, err := s.pipeline.Run(context.Background(), s.draft, s.sub, nil)
	s.Require().NoError(err)
	s.Equal(bookingID, result.BookingID)
	s.Equal(paymentID, result.PaymentID)
}

func (s *PipelineSuite) TestUploadsEveryReceiptOnceInOrder() {
	files := stageFiles(s.T(), "a.png", "b.pdf")
	bookingID := id.NewBookingID()

	s.bookings.EXPECT().CreateBooking(gomock.Any(), gomock.Any()).
		Return(&session.BookingRef{BookingID: bookingID}, nil)
	s.uploader.EXPECT().Upload(gomock.Any(), "a.png", gomock.Any()).Return("https://cdn/a.png", nil).Times(1)
	s.uploader.EXPECT().Upload(gomock.Any(), "b.pdf", gomock.Any()).Return("https://cdn/b.pdf", nil).Times(1)
	s.payments.EXPECT().SubmitPayment(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, sub paymodels.Submission) (*session.PaymentRef, error) {
			s.Equal([]string{"https://cdn/a.png", "https://cdn/b.pdf"}, sub.ReceiptURLs)
			return &session.PaymentRef{PaymentID: id.NewPaymentID()}, nil
		})

	_, err := s.pipeline.Run(context.Background(), s.draft, s.sub, files)
	s.NoError(err)
}

func (s *PipelineSuite) TestPhaseOneFailures() {
	s.Run("conflict code is classified as conflict", func() {
		s.bookings.EXPECT().CreateBooking(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "time slot already booked"))

		_, err := s.pipeline.Run(context.Background(), s.draft, s.sub, nil)
		var conflict *session.ConflictError
		s.Require().ErrorAs(err, &conflict)
		s.False(conflict.FromProbe)
		s.Equal(session.ConflictMessage, err.Error())
	})

	s.Run("known phrasing is classified as conflict", func() {
		s.bookings.EXPECT().CreateBooking(gomock.Any(), gomock.Any()).
			Return(nil, errors.New("Time slot already booked"))

		_, err := s.pipeline.Run(context.Background(), s.draft, s.sub, nil)
		var conflict *session.ConflictError
		s.ErrorAs(err, &conflict)
	})

	s.Run("anything else is a booking error", func() {
		s.bookings.EXPECT().CreateBooking(gomock.Any(), gomock.Any()).
			Return(nil, errors.New("connection refused"))

		_, err := s.pipeline.Run(context.Background(), s.draft, s.sub, nil)
		var bookingErr *session.BookingError
		s.ErrorAs(err, &bookingErr)
		var partial *session.PartialSubmissionError
		s.False(errors.As(err, &partial))
	})
}

func (s *PipelineSuite) TestPhaseTwoFailureIsPartial() {
	s.Run("submit failure", func() {
		bookingID := id.NewBookingID()
		s.bookings.EXPECT().CreateBooking(gomock.Any(), gomock.Any()).
			Return(&session.BookingRef{BookingID: bookingID}, nil)
		s.payments.EXPECT().SubmitPayment(gomock.Any(), gomock.Any()).
			Return(nil, errors.New("bad gateway"))

		_, err := s.pipeline.Run(context.Background(), s.draft, s.sub, nil)
		var partial *session.PartialSubmissionError
		s.Require().ErrorAs(err, &partial)
		s.Equal(bookingID, partial.BookingID)
		var payErr *session.PaymentError
		s.Require().ErrorAs(err, &payErr)
		s.Equal("submit", payErr.Stage)
	})

	s.Run("upload failure skips the submit call", func() {
		s.bookings.EXPECT().CreateBooking(gomock.Any(), gomock.Any()).
			Return(&session.BookingRef{BookingID: id.NewBookingID()}, nil)
		s.uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).
			Return("", errors.New("storage down"))

		_, err := s.pipeline.Run(context.Background(), s.draft, s.sub, stageFiles(s.T(), "a.png"))
		var payErr *session.PaymentError
		s.Require().ErrorAs(err, &payErr)
		s.Equal("upload", payErr.Stage)
	})
}

func (s *PipelineSuite) TestResumeSkipsPhaseOne() {
	draft := s.draft
	draft.BookingID = id.NewBookingID()
	s.payments.EXPECT().SubmitPayment(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, sub paymodels.Submission) (*session.PaymentRef, error) {
			s.Equal(draft.BookingID, sub.BookingID)
			return &session.PaymentRef{PaymentID: id.NewPaymentID()}, nil
		})

	result, err := s.pipeline.Run(context.Background(), draft, s.sub, nil)
	s.Require().NoError(err)
	s.Equal(draft.BookingID, result.BookingID)
}

func (s *PipelineSuite) TestResumeFindsEvidenceAlreadyAttached() {
	draft := s.draft
	draft.BookingID = id.NewBookingID()
	s.payments.EXPECT().SubmitPayment(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeConflict, "payment already submitted for this booking"))

	result, err := s.pipeline.Run(context.Background(), draft, s.sub, nil)
	s.Require().NoError(err)
	s.True(result.AlreadySubmitted)
}

func (s *PipelineSuite) TestProbe() {
	checker := session.NewChecker(s.prober, session.WithCheckerLogger(logger.Discard()))
	pipeline := session.NewPipeline(s.bookings, s.payments, s.uploader,
		session.WithChecker(checker),
		session.WithPipelineLogger(logger.Discard()),
	)

	s.Run("unavailable short-circuits phase one", func() {
		s.prober.EXPECT().Probe(gomock.Any(), s.draft.TeacherID, s.draft.Date, "09:00 - 10:00").Return(false, nil)

		_, err := pipeline.Run(context.Background(), s.draft, s.sub, nil)
		var conflict *session.ConflictError
		s.Require().ErrorAs(err, &conflict)
		s.True(conflict.FromProbe)
	})

	s.Run("probe failure falls through to the authoritative call", func() {
		s.prober.EXPECT().Probe(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(false, errors.New("timeout"))
		s.bookings.EXPECT().CreateBooking(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "time slot already booked"))

		_, err := pipeline.Run(context.Background(), s.draft, s.sub, nil)
		var conflict *session.ConflictError
		s.Require().ErrorAs(err, &conflict)
		s.False(conflict.FromProbe)
	})
}

func (s *PipelineSuite) TestCheckerOpensAfterRepeatedFailures() {
	now := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	breaker := circuit.New("probe",
		circuit.WithFailureThreshold(2),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }),
	)
	checker := session.NewChecker(s.prober, session.WithBreaker(breaker), session.WithCheckerLogger(logger.Discard()))

	s.prober.EXPECT().Probe(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(false, errors.New("down")).Times(2)

	ctx := context.Background()
	s.Equal(session.ProbeUnknown, checker.Probe(ctx, s.draft.TeacherID, s.draft.Date, "09:00 - 10:00"))
	s.Equal(session.ProbeUnknown, checker.Probe(ctx, s.draft.TeacherID, s.draft.Date, "09:00 - 10:00"))
	s.True(breaker.IsOpen())

	// open breaker skips the prober entirely
	s.Equal(session.ProbeUnknown, checker.Probe(ctx, s.draft.TeacherID, s.draft.Date, "09:00 - 10:00"))

	now = now.Add(2 * time.Minute)
	s.prober.EXPECT().Probe(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
	s.Equal(session.ProbeAvailable, checker.Probe(ctx, s.draft.TeacherID, s.draft.Date, "09:00 - 10:00"))
}

func stageFiles(t *testing.T, names ...string) []session.StagedFile {
	t.Helper()
	c := session.NewCollector(0)
	var out []session.StagedFile
	for i, name := range names {
		data := pdfData
		if name[len(name)-3:] == "png" {
			data = pngData
		}
		// distinct content per file
		data = append(append([]byte{}, data...), byte(i))
		f, err := c.AddReceipt(name, data)
		if err != nil {
			t.Fatalf("stage %s: %v", name, err)
		}
		out = append(out, f)
	}
	return out
}

var (
	pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	pdfData = []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n")
)
