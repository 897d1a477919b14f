// Package domain holds the typed identifiers shared by every module.
//
// IDs are distinct named UUID types so a TeacherID can never be passed where a
// StudentID is expected. Parse functions are the trust boundary: they reject
// empty, malformed and nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "tutorly/pkg/domain-errors"
)

type (
	StudentID uuid.UUID
	TeacherID uuid.UUID
	BookingID uuid.UUID
	PaymentID uuid.UUID
)

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return parsed, nil
}

func ParseStudentID(s string) (StudentID, error) {
	u, err := parseUUID("student_id", s)
	return StudentID(u), err
}

func ParseTeacherID(s string) (TeacherID, error) {
	u, err := parseUUID("teacher_id", s)
	return TeacherID(u), err
}

func ParseBookingID(s string) (BookingID, error) {
	u, err := parseUUID("booking_id", s)
	return BookingID(u), err
}

func ParsePaymentID(s string) (PaymentID, error) {
	u, err := parseUUID("payment_id", s)
	return PaymentID(u), err
}

func NewBookingID() BookingID { return BookingID(uuid.New()) }
func NewPaymentID() PaymentID { return PaymentID(uuid.New()) }

func (id StudentID) String() string { return uuid.UUID(id).String() }
func (id TeacherID) String() string { return uuid.UUID(id).String() }
func (id BookingID) String() string { return uuid.UUID(id).String() }
func (id PaymentID) String() string { return uuid.UUID(id).String() }

func (id StudentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id TeacherID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id BookingID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PaymentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets typed IDs travel as plain strings in JSON.
func (id StudentID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id TeacherID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id BookingID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id PaymentID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *StudentID) UnmarshalText(b []byte) error {
	parsed, err := ParseStudentID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *TeacherID) UnmarshalText(b []byte) error {
	parsed, err := ParseTeacherID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *BookingID) UnmarshalText(b []byte) error {
	parsed, err := ParseBookingID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *PaymentID) UnmarshalText(b []byte) error {
	parsed, err := ParsePaymentID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
