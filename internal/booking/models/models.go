package models

import (
	"fmt"
	"time"

	id "tutorly/pkg/domain"
	dErrors "tutorly/pkg/domain-errors"
)

// Status is the lifecycle stage of a booking. Bookings are never deleted; a
// booking that leaves the live set is cancelled or rejected.
type Status string

const (
	StatusReserved       Status = "reserved"
	StatusAwaitingReview Status = "awaiting_review"
	StatusConfirmed      Status = "confirmed"
	StatusRejected       Status = "rejected"
	StatusCancelled      Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusReserved:       {StatusAwaitingReview, StatusCancelled},
	StatusAwaitingReview: {StatusConfirmed, StatusRejected, StatusCancelled},
}

func (s Status) IsValid() bool {
	switch s {
	case StatusReserved, StatusAwaitingReview, StatusConfirmed, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// IsLive reports whether a booking in this status still holds its slot.
func (s Status) IsLive() bool {
	return s == StatusReserved || s == StatusAwaitingReview || s == StatusConfirmed
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Booking is a student's reservation of one teacher interval.
type Booking struct {
	ID        id.BookingID `json:"booking_id"`
	TeacherID id.TeacherID `json:"teacher_id"`
	StudentID id.StudentID `json:"student_id"`
	Start     time.Time    `json:"start_time"`
	End       time.Time    `json:"end_time"`
	Price     id.Money     `json:"price"`
	Status    Status       `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewReserved builds a booking in its initial status.
func NewReserved(teacherID id.TeacherID, studentID id.StudentID, start, end time.Time, price id.Money, now time.Time) (*Booking, error) {
	if !start.Before(end) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "booking must end after it starts")
	}
	if price <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "booking price must be positive")
	}
	return &Booking{
		ID:        id.NewBookingID(),
		TeacherID: teacherID,
		StudentID: studentID,
		Start:     start,
		End:       end,
		Price:     price,
		Status:    StatusReserved,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Overlaps reports whether b holds any part of [start, end).
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.Start.Before(end) && start.Before(b.End)
}

// Transition moves b to next, enforcing the lifecycle graph.
func (b *Booking) Transition(next Status, now time.Time) error {
	if !b.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("booking cannot move from %s to %s", b.Status, next))
	}
	b.Status = next
	b.UpdatedAt = now
	return nil
}
