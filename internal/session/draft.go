package session

import (
	"time"

	avmodels "tutorly/internal/availability/models"
	id "tutorly/pkg/domain"
)

// Draft is the booking intent a session holds before the server accepts it.
// TimeSlot is zero after a conflict until a new slot is picked. BookingID is
// set once the slot is reserved and payment evidence is still missing.
type Draft struct {
	StudentID       id.StudentID
	TeacherID       id.TeacherID
	TeacherName     string
	Date            id.Date
	TimeSlot        avmodels.TimeSlot
	DurationMinutes int
	Price           id.Money
	BookingID       id.BookingID
	loc             *time.Location
}

// Slot anchors the draft's time slot on its date.
func (d Draft) Slot() avmodels.Slot {
	return d.TimeSlot.On(d.Date.In(d.location()))
}

// HasSlot reports whether a time slot is selected.
func (d Draft) HasSlot() bool {
	return !d.TimeSlot.IsZero()
}

// Reserved reports whether phase one already succeeded for this draft.
func (d Draft) Reserved() bool {
	return !d.BookingID.IsNil()
}

func (d Draft) location() *time.Location {
	if d.loc == nil {
		return time.UTC
	}
	return d.loc
}

func (d Draft) logAttrs() []any {
	return []any{
		"student_id", d.StudentID.String(),
		"teacher_id", d.TeacherID.String(),
		"date", d.Date.String(),
		"time_slot", d.TimeSlot.String(),
		"price", d.Price.String(),
		"booking_id", d.BookingID.String(),
	}
}
