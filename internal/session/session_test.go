package session_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	avmodels "tutorly/internal/availability/models"
	paymodels "tutorly/internal/payment/models"
	"tutorly/internal/platform/logger"
	"tutorly/internal/session"
	"tutorly/internal/session/mocks"
	id "tutorly/pkg/domain"
	dErrors "tutorly/pkg/domain-errors"
)

// =============================================================================
// Session Test Suite
// =============================================================================
// Drives the state machine through a real Reconciler and Pipeline with the
// network ports mocked. A mock with no expectation set doubles as the
// "no network call happened" assertion.

var riyadh = time.FixedZone("AST", 3*60*60)

type SessionSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	catalog   *mocks.MockCatalog
	bookings  *mocks.MockBookings
	payments  *mocks.MockPayments
	uploader  *mocks.MockUploader
	session   *session.Session
	studentID id.StudentID
	teacherID id.TeacherID
	saturday  id.Date
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func (s *SessionSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.catalog = mocks.NewMockCatalog(s.ctrl)
	s.bookings = mocks.NewMockBookings(s.ctrl)
	s.payments = mocks.NewMockPayments(s.ctrl)
	s.uploader = mocks.NewMockUploader(s.ctrl)
	s.studentID = id.StudentID(uuid.New())
	s.teacherID = id.TeacherID(uuid.New())
	s.saturday = id.Date{Year: 2026, Month: 10, Day: 17}

	s.catalog.EXPECT().Schedule(gomock.Any(), s.teacherID).Return(&avmodels.Schedule{
		TeacherID:  s.teacherID,
		Name:       "Noura",
		HourlyRate: id.MustMoney("120.00"),
		Windows: []avmodels.Window{
			{DayOfWeek: time.Saturday, Start: 9 * 60, End: 10 * 60},
			{DayOfWeek: time.Saturday, Start: 10 * 60, End: 11*60 + 30},
		},
	}, nil).AnyTimes()

	log := logger.Discard()
	pipeline := session.NewPipeline(s.bookings, s.payments, s.uploader, session.WithPipelineLogger(log))
	sess, err := session.New(s.studentID, s.catalog, session.NewReconciler(pipeline, log),
		session.WithLogger(log),
		session.WithLocation(riyadh),
		session.WithClock(func() time.Time { return time.Date(2026, 10, 16, 8, 0, 0, 0, riyadh) }),
	)
	s.Require().NoError(err)
	s.session = sess
}

func (s *SessionSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *SessionSuite) openForm(slot string) {
	s.Require().NoError(s.session.SelectSlot(context.Background(), s.teacherID, s.saturday, slot))
	s.Require().NoError(s.session.OpenPaymentForm())
}

func (s *SessionSuite) fillForm(amount string) {
	for field, value := range map[string]string{
		paymodels.FieldTransactionID: "TX-001",
		paymodels.FieldAmount:        amount,
		paymodels.FieldPaymentDate:   "2026-10-16",
		paymodels.FieldBankName:      "Al Rajhi Bank",
		paymodels.FieldNotes:         "transfer from my own account",
	} {
		s.Require().NoError(s.session.UpdatePaymentField(field, value))
	}
}

func (s *SessionSuite) TestNew() {
	s.Run("student identity is required", func() {
		_, err := session.New(id.StudentID{}, s.catalog, session.NewReconciler(nil, nil))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("starts idle", func() {
		s.Equal(session.StateIdle, s.session.State())
	})
}

func (s *SessionSuite) TestSelectSlot() {
	s.Run("builds the draft with the slot price", func() {
		s.Require().NoError(s.session.SelectSlot(context.Background(), s.teacherID, s.saturday, "10:00 - 11:30"))

		snap := s.session.Snapshot()
		s.Equal(session.StateSlotSelected, snap.State)
		s.Equal("Noura", snap.Draft.TeacherName)
		s.Equal(90, snap.Draft.DurationMinutes)
		s.Equal(id.MustMoney("180.00"), snap.Draft.Price)
		s.Equal(s.studentID, snap.Draft.StudentID)
	})

	s.Run("a second selection is rejected without touching the draft", func() {
		err := s.session.SelectSlot(context.Background(), s.teacherID, s.saturday, "09:00 - 10:00")
		s.ErrorIs(err, session.ErrPendingBooking)
		s.Equal("10:00 - 11:30", s.session.Snapshot().Draft.TimeSlot.String())
	})

	s.Run("also rejected while awaiting payment", func() {
		s.Require().NoError(s.session.OpenPaymentForm())
		err := s.session.SelectSlot(context.Background(), s.teacherID, s.saturday, "09:00 - 10:00")
		s.ErrorIs(err, session.ErrPendingBooking)
		s.Equal(session.StateAwaitingPayment, s.session.State())
	})
}

func (s *SessionSuite) TestSelectSlotWhileSubmitting() {
	s.openForm("09:00 - 10:00")
	s.fillForm("120.00")

	started := make(chan struct{})
	release := make(chan struct{})
	s.bookings.EXPECT().CreateBooking(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, session.CreateBookingRequest) (*session.BookingRef, error) {
			close(started)
			<-release
			return &session.BookingRef{BookingID: id.NewBookingID()}, nil
		})
	s.payments.EXPECT().SubmitPayment(gomock.Any(), gomock.Any()).
		Return(&session.PaymentRef{PaymentID: id.NewPaymentID()}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.session.Submit(context.Background())
		done <- err
	}()
	<-started
	s.Require().Equal(session.StateSubmitting, s.session.State())

	err := s.session.SelectSlot(context.Background(), s.teacherID, s.saturday, "10:00 - 11:30")
	s.ErrorIs(err, session.ErrPendingBooking)
	snap := s.session.Snapshot()
	s.Equal(session.StateSubmitting, snap.State)
	s.Equal("09:00 - 10:00", snap.Draft.TimeSlot.String())
	s.Equal(id.MustMoney("120.00"), snap.Draft.Price)

	close(release)
	s.NoError(<-done)
	s.Equal(session.StateCompleted, s.session.State())
}

func (s *SessionSuite) TestSelectSlotValidation() {
	ctx := context.Background()

	s.Run("slot not offered that day", func() {
		err := s.session.SelectSlot(ctx, s.teacherID, s.saturday, "13:00 - 14:00")
		var v *session.ValidationError
		s.Require().ErrorAs(err, &v)
		s.Contains(v.Fields, "time_slot")
	})

	s.Run("date outside the horizon", func() {
		err := s.session.SelectSlot(ctx, s.teacherID, id.Date{Year: 2026, Month: 12, Day: 19}, "09:00 - 10:00")
		var v *session.ValidationError
		s.Require().ErrorAs(err, &v)
		s.Contains(v.Fields, "date")
	})

	s.Run("malformed label", func() {
		err := s.session.SelectSlot(ctx, s.teacherID, s.saturday, "nine to ten")
		var v *session.ValidationError
		s.ErrorAs(err, &v)
	})

	s.Equal(session.StateIdle, s.session.State())
}

func (s *SessionSuite) TestRoundTrip() {
	s.openForm("09:00 - 10:00")
	s.fillForm("120.00")

	bookingID := id.NewBookingID()
	paymentID := id.NewPaymentID()
	gomock.InOrder(
		s.bookings.EXPECT().CreateBooking(gomock.Any(), gomock.Any()).
			Return(&session.BookingRef{BookingID: bookingID, Status: "reserved"}, nil).Times(1),
		s.payments.EXPECT().SubmitPayment(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, sub paymodels.Submission) (*session.PaymentRef, error) {
				s.Equal(bookingID, sub.BookingID)
				s.Equal(id.MustMoney("120.00"), sub.Amount)
				return &session.PaymentRef{PaymentID: paymentID, Status: "pending_review"}, nil
			}).Times(1),
	)

	result, err := s.session.Submit(context.Background())
	s.Require().NoError(err)
	s.Equal(paymentID, result.PaymentID)

	snap := s.session.Snapshot()
	s.Equal(session.StateCompleted, snap.State)
	s.Nil(snap.Draft)
	s.Empty(snap.Fields)
	s.Equal(bookingID, snap.Result.BookingID)

	// a new booking can start right away, exactly as from idle
	s.Require().NoError(s.session.SelectSlot(context.Background(), s.teacherID, s.saturday, "10:00 - 11:30"))
	snap = s.session.Snapshot()
	s.Equal(session.StateSlotSelected, snap.State)
	s.Nil(snap.Result)
	s.Equal(id.MustMoney("180.00"), snap.Draft.Price)
}

func (s *SessionSuite) TestInvalidFormNeverReachesTheNetwork() {
	s.openForm("09:00 - 10:00")
	s.fillForm("119.99")

	_, err := s.session.Submit(context.Background())
	var v *session.ValidationError
	s.Require().ErrorAs(err, &v)
	s.Equal("amount must be exactly 120.00", v.Fields[paymodels.FieldAmount])

	snap := s.session.Snapshot()
	s.Equal(session.StateAwaitingPayment, snap.State)
	s.Contains(snap.FieldErrors, paymodels.FieldAmount)
}

func (s *SessionSuite) TestConflictKeepsThePaymentForm() {
	s.openForm("09:00 - 10:00")
	s.fillForm("120.00")
	before := s.session.Snapshot().Fields

	s.bookings.EXPECT().CreateBooking(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeConflict, "time slot already booked"))

	_, err := s.session.Submit(context.Background())
	var conflict *session.ConflictError
	s.Require().ErrorAs(err, &conflict)

	snap := s.session.Snapshot()
	s.Equal(session.StateConflictRetry, snap.State)
	s.Equal(session.ConflictMessage, snap.Message)
	s.False(snap.Draft.HasSlot())
	s.Equal(s.teacherID, snap.Draft.TeacherID)
	s.Equal(s.saturday, snap.Draft.Date)
	s.Equal(before, snap.Fields)

	s.Run("submit is blocked until a new slot is picked", func() {
		_, err := s.session.Submit(context.Background())
		s.ErrorIs(err, session.ErrSlotRequired)
	})

	s.Run("another teacher is refused", func() {
		err := s.session.SelectSlot(context.Background(), id.TeacherID(uuid.New()), s.saturday, "09:00 - 10:00")
		var v *session.ValidationError
		s.ErrorAs(err, &v)
	})

	s.Run("new slot re-runs amount validation against the new price", func() {
		s.openForm("10:00 - 11:30")
		s.Equal(before, s.session.Snapshot().Fields)

		_, err := s.session.Submit(context.Background())
		var v *session.ValidationError
		s.Require().ErrorAs(err, &v)
		s.Equal("amount must be exactly 180.00", v.Fields[paymodels.FieldAmount])
	})
}

func (s *SessionSuite) TestPartialSubmissionKeepsTheDraft() {
	s.openForm("09:00 - 10:00")
	s.fillForm("120.00")
	bookingID := id.NewBookingID()

	s.bookings.EXPECT().CreateBooking(gomock.Any(), gomock.Any()).
		Return(&session.BookingRef{BookingID: bookingID}, nil).Times(1)
	s.payments.EXPECT().SubmitPayment(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("503 service unavailable"))

	_, err := s.session.Submit(context.Background())
	var partial *session.PartialSubmissionError
	s.Require().ErrorAs(err, &partial)

	snap := s.session.Snapshot()
	s.Equal(session.StateFailed, snap.State)
	s.Equal(session.PartialMessage, snap.Message)
	s.Require().NotNil(snap.Draft)
	s.Equal(bookingID, snap.Draft.BookingID)
	s.Equal("TX-001", snap.Fields[paymodels.FieldTransactionID])

	s.Run("retry reuses the reserved booking", func() {
		s.payments.EXPECT().SubmitPayment(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, sub paymodels.Submission) (*session.PaymentRef, error) {
				s.Equal(bookingID, sub.BookingID)
				return &session.PaymentRef{PaymentID: id.NewPaymentID()}, nil
			})

		_, err := s.session.Submit(context.Background())
		s.Require().NoError(err)
		s.Equal(session.StateCompleted, s.session.State())
	})
}

func (s *SessionSuite) TestBookingFailureAllowsRetry() {
	s.openForm("09:00 - 10:00")
	s.fillForm("120.00")

	s.bookings.EXPECT().CreateBooking(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))
	_, err := s.session.Submit(context.Background())
	var bookingErr *session.BookingError
	s.Require().ErrorAs(err, &bookingErr)
	s.Equal(session.StateFailed, s.session.State())
	s.Equal("TX-001", s.session.Snapshot().Fields[paymodels.FieldTransactionID])

	s.bookings.EXPECT().CreateBooking(gomock.Any(), gomock.Any()).
		Return(&session.BookingRef{BookingID: id.NewBookingID()}, nil)
	s.payments.EXPECT().SubmitPayment(gomock.Any(), gomock.Any()).
		Return(&session.PaymentRef{PaymentID: id.NewPaymentID()}, nil)
	_, err = s.session.Submit(context.Background())
	s.NoError(err)
}

func (s *SessionSuite) TestCancel() {
	s.Run("twice is a no-op", func() {
		s.openForm("09:00 - 10:00")
		s.session.Cancel(context.Background())
		s.Equal(session.StateIdle, s.session.State())
		s.session.Cancel(context.Background())
		s.Equal(session.StateIdle, s.session.State())
		s.Nil(s.session.Snapshot().Draft)
	})

	s.Run("during submission the late result is ignored", func() {
		s.openForm("09:00 - 10:00")
		s.fillForm("120.00")

		started := make(chan struct{})
		release := make(chan struct{})
		s.bookings.EXPECT().CreateBooking(gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, session.CreateBookingRequest) (*session.BookingRef, error) {
				close(started)
				<-release
				return &session.BookingRef{BookingID: id.NewBookingID()}, nil
			})
		s.payments.EXPECT().SubmitPayment(gomock.Any(), gomock.Any()).
			Return(&session.PaymentRef{PaymentID: id.NewPaymentID()}, nil)

		done := make(chan error, 1)
		go func() {
			_, err := s.session.Submit(context.Background())
			done <- err
		}()
		<-started
		s.Equal(session.StateSubmitting, s.session.State())
		s.session.Cancel(context.Background())
		close(release)

		s.NoError(<-done)
		snap := s.session.Snapshot()
		s.Equal(session.StateIdle, snap.State)
		s.Nil(snap.Draft)
		s.Nil(snap.Result)
	})
}

func (s *SessionSuite) TestReceipts() {
	s.Run("form is closed before the payment step", func() {
		_, err := s.session.AddReceiptFile("r.png", pngData)
		var te *session.TransitionError
		s.ErrorAs(err, &te)
	})

	s.openForm("09:00 - 10:00")

	s.Run("an 11MB file is rejected without touching staged files", func() {
		staged, err := s.session.AddReceiptFile("r.png", pngData)
		s.Require().NoError(err)

		big := append(bytes.Clone(pdfData), make([]byte, 11<<20)...)
		_, err = s.session.AddReceiptFile("statement.pdf", big)
		var v *session.ValidationError
		s.Require().ErrorAs(err, &v)
		s.Contains(v.Fields[paymodels.FieldReceipts], "statement.pdf")

		files := s.session.Snapshot().Files
		s.Require().Len(files, 1)
		s.Equal(staged.Fingerprint, files[0].Fingerprint)
	})

	s.Run("remove", func() {
		files := s.session.Snapshot().Files
		s.NoError(s.session.RemoveReceiptFile(files[0].Fingerprint))
		s.Error(s.session.RemoveReceiptFile(files[0].Fingerprint))
	})
}

func (s *SessionSuite) TestOpenPaymentFormRequiresASlot() {
	err := s.session.OpenPaymentForm()
	var te *session.TransitionError
	s.Require().ErrorAs(err, &te)
	s.Equal(session.StateIdle, te.From)
}
