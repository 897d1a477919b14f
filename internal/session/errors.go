package session

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	id "tutorly/pkg/domain"
	dErrors "tutorly/pkg/domain-errors"
)

// User-facing messages.
const (
	ConflictMessage = "this time slot was just booked, please choose another"
	PartialMessage  = "your slot is reserved but payment proof must be resubmitted"
)

var (
	ErrPendingBooking = errors.New("existing pending booking")
	ErrSlotRequired   = errors.New("choose a new time slot before submitting")
)

// TransitionError is returned when an action is not allowed in the current state.
type TransitionError struct {
	From   State
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Action, e.From)
}

// ValidationError carries per-field messages. It is resolved locally and never
// reaches the network.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// ConflictError means the slot was taken by someone else, either reported by
// the probe or by the authoritative create call.
type ConflictError struct {
	TeacherID id.TeacherID
	TimeSlot  string
	FromProbe bool
	Err       error
}

func (e *ConflictError) Error() string { return ConflictMessage }
func (e *ConflictError) Unwrap() error { return e.Err }

// BookingError is a non-conflict failure of the create-booking call.
type BookingError struct {
	Err error
}

func (e *BookingError) Error() string { return "booking failed: " + e.Err.Error() }
func (e *BookingError) Unwrap() error { return e.Err }

// PaymentError is a failure while attaching payment evidence. Stage is
// "upload" or "submit".
type PaymentError struct {
	Stage string
	Err   error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("payment %s failed: %s", e.Stage, e.Err.Error())
}
func (e *PaymentError) Unwrap() error { return e.Err }

// PartialSubmissionError means the booking exists but no payment evidence is
// attached. BookingID is reused on retry.
type PartialSubmissionError struct {
	BookingID id.BookingID
	Err       error
}

func (e *PartialSubmissionError) Error() string { return PartialMessage + ": " + e.Err.Error() }
func (e *PartialSubmissionError) Unwrap() error { return e.Err }

// StatusCoder is implemented by transport errors that carry a response status.
type StatusCoder interface {
	StatusCode() int
}

// ConflictReporter is implemented by transport errors that classify themselves.
type ConflictReporter interface {
	IsConflict() bool
}

var conflictPhrases = []string{
	"already booked",
	"already reserved",
	"slot is taken",
	"slot unavailable",
}

// IsConflict classifies a create-booking failure as a slot race.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	var reporter ConflictReporter
	if errors.As(err, &reporter) {
		return reporter.IsConflict()
	}
	if dErrors.HasCode(err, dErrors.CodeConflict) {
		return true
	}
	return matchesConflictPhrase(err.Error())
}

func matchesConflictPhrase(msg string) bool {
	msg = strings.ToLower(msg)
	for _, p := range conflictPhrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// StatusOf returns the response status behind err, or 0 when there was none.
func StatusOf(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

const paymentSubmittedPhrase = "payment already submitted"

// IsPaymentAlreadySubmitted reports that the booking already carries payment
// evidence, which happens when an earlier attempt landed but its response was lost.
func IsPaymentAlreadySubmitted(err error) bool {
	if err == nil {
		return false
	}
	conflict := StatusOf(err) == http.StatusConflict || dErrors.HasCode(err, dErrors.CodeConflict)
	return conflict && strings.Contains(strings.ToLower(err.Error()), paymentSubmittedPhrase)
}
