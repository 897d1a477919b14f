package session

import (
	"context"
	"time"

	avmodels "tutorly/internal/availability/models"
	paymodels "tutorly/internal/payment/models"
	id "tutorly/pkg/domain"
)

// CreateBookingRequest is the phase-one payload.
type CreateBookingRequest struct {
	TeacherID id.TeacherID
	Start     time.Time
	End       time.Time
}

// BookingRef is what the server returns for a reserved booking.
type BookingRef struct {
	BookingID id.BookingID
	Status    string
	Price     id.Money
}

// PaymentRef is what the server returns for accepted payment evidence.
type PaymentRef struct {
	PaymentID id.PaymentID
	Status    string
}

// Catalog loads a teacher's schedule.
type Catalog interface {
	Schedule(ctx context.Context, teacherID id.TeacherID) (*avmodels.Schedule, error)
}

// Bookings is the authoritative create-booking call.
type Bookings interface {
	CreateBooking(ctx context.Context, req CreateBookingRequest) (*BookingRef, error)
}

// Payments attaches payment evidence to a reserved booking.
type Payments interface {
	SubmitPayment(ctx context.Context, sub paymodels.Submission) (*PaymentRef, error)
}

// Uploader stores one receipt file and returns its URL.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

// Prober answers the advisory "is this slot still free" question.
type Prober interface {
	Probe(ctx context.Context, teacherID id.TeacherID, date id.Date, timeSlot string) (bool, error)
}
