// Package session is the student-side booking flow: one draft at a time,
// moving from slot selection through payment evidence to a reserved booking.
//
// The session is a state machine. Network work happens only inside Submit
// (through the Reconciler and Pipeline) and when a slot is selected (to load
// the teacher's schedule). Everything else is synchronous.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tutorly/internal/availability"
	avmodels "tutorly/internal/availability/models"
	"tutorly/internal/receipts"
	id "tutorly/pkg/domain"
	dErrors "tutorly/pkg/domain-errors"
)

const (
	fieldTeacherID = "teacher_id"
	fieldDate      = "date"
	fieldTimeSlot  = "time_slot"
)

// Snapshot is a read-only view for rendering.
type Snapshot struct {
	State       State
	Draft       *Draft
	Fields      map[string]string
	Files       []StagedFile
	FieldErrors map[string]string
	Message     string
	Result      *Result
}

type Session struct {
	mu sync.Mutex

	studentID       id.StudentID
	catalog         Catalog
	reconciler      *Reconciler
	logger          *slog.Logger
	now             func() time.Time
	loc             *time.Location
	horizonDays     int
	maxReceiptBytes int64

	state       State
	draft       *Draft
	form        *Collector
	fieldErrors map[string]string
	message     string
	result      *Result
	// epoch changes on every submission start and every cancel so a late
	// pipeline result can tell it no longer owns the session.
	epoch uint64
}

type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone in which dates and slot times are interpreted.
func WithLocation(loc *time.Location) Option {
	return func(s *Session) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithHorizonDays(days int) Option {
	return func(s *Session) {
		if days > 0 {
			s.horizonDays = days
		}
	}
}

func WithMaxReceiptBytes(n int64) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxReceiptBytes = n
		}
	}
}

// New starts an idle session for studentID.
func New(studentID id.StudentID, catalog Catalog, reconciler *Reconciler, opts ...Option) (*Session, error) {
	if studentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "student identity required")
	}
	if catalog == nil || reconciler == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "session requires a catalog and a reconciler")
	}
	s := &Session{
		studentID:       studentID,
		catalog:         catalog,
		reconciler:      reconciler,
		logger:          slog.Default(),
		now:             time.Now,
		loc:             time.UTC,
		horizonDays:     availability.DefaultHorizonDays,
		maxReceiptBytes: receipts.MaxBytes,
		state:           StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		State:   s.state,
		Message: s.message,
	}
	if s.draft != nil {
		d := *s.draft
		snap.Draft = &d
	}
	if s.form != nil {
		snap.Fields = s.form.Fields()
		snap.Files = s.form.Files()
	}
	if len(s.fieldErrors) > 0 {
		snap.FieldErrors = make(map[string]string, len(s.fieldErrors))
		for k, v := range s.fieldErrors {
			snap.FieldErrors[k] = v
		}
	}
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	return snap
}

// AvailableSlots lists what the teacher offers on date. It does not touch
// session state.
func (s *Session) AvailableSlots(ctx context.Context, teacherID id.TeacherID, date id.Date) ([]avmodels.Slot, error) {
	schedule, err := s.catalog.Schedule(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	return s.index(schedule).SlotsFor(teacherID, date.In(s.loc)), nil
}

// SelectSlot creates the draft. It fails with ErrPendingBooking while another
// draft is in progress and leaves that draft untouched. After a conflict the
// payment form is kept and only the slot changes.
func (s *Session) SelectSlot(ctx context.Context, teacherID id.TeacherID, date id.Date, timeSlot string) error {
	s.mu.Lock()
	if s.state.HoldsPendingDraft() {
		s.mu.Unlock()
		return ErrPendingBooking
	}
	if s.state == StateConflictRetry && s.draft != nil && s.draft.TeacherID != teacherID {
		s.mu.Unlock()
		return newValidationError(fieldTeacherID, "choose another slot with the same teacher or cancel first")
	}
	s.mu.Unlock()

	if teacherID.IsNil() {
		return newValidationError(fieldTeacherID, "teacher is required")
	}
	if date.IsZero() {
		return newValidationError(fieldDate, "date is required")
	}
	if _, err := avmodels.ParseTimeSlot(timeSlot); err != nil {
		return newValidationError(fieldTimeSlot, dErrors.MessageOf(err))
	}

	schedule, err := s.catalog.Schedule(ctx, teacherID)
	if err != nil {
		return fmt.Errorf("load availability: %w", err)
	}
	ix := s.index(schedule)
	day := date.In(s.loc)
	if !ix.InHorizon(day) {
		return newValidationError(fieldDate,
			fmt.Sprintf("date must be between today and %d days ahead", s.horizonDays))
	}
	slot, ok := ix.Find(teacherID, day, timeSlot)
	if !ok {
		return newValidationError(fieldTimeSlot, "this time slot is not offered on the selected date")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.HoldsPendingDraft() {
		return ErrPendingBooking
	}
	if s.state != StateConflictRetry || s.form == nil {
		s.form = NewCollector(s.maxReceiptBytes)
	}
	s.draft = &Draft{
		StudentID:       s.studentID,
		TeacherID:       teacherID,
		TeacherName:     schedule.Name,
		Date:            date,
		TimeSlot:        avmodels.TimeSlot{Start: avmodels.ClockOf(slot.Start), End: avmodels.ClockOf(slot.End)},
		DurationMinutes: slot.Minutes(),
		Price:           schedule.HourlyRate.ProRate(slot.Minutes()),
		loc:             s.loc,
	}
	s.state = StateSlotSelected
	s.message = ""
	s.fieldErrors = nil
	s.result = nil
	return nil
}

func (s *Session) OpenPaymentForm() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSlotSelected {
		return &TransitionError{From: s.state, Action: "open the payment form"}
	}
	s.state = StateAwaitingPayment
	return nil
}

func (s *Session) UpdatePaymentField(field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.CanEditForm() {
		return &TransitionError{From: s.state, Action: "edit the payment form"}
	}
	if err := s.form.Set(field, value); err != nil {
		return err
	}
	delete(s.fieldErrors, field)
	return nil
}

// AddReceiptFile stages one receipt. Rejection affects only this file.
func (s *Session) AddReceiptFile(name string, data []byte) (StagedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.CanEditForm() {
		return StagedFile{}, &TransitionError{From: s.state, Action: "attach a receipt"}
	}
	return s.form.AddReceipt(name, data)
}

func (s *Session) RemoveReceiptFile(fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.CanEditForm() {
		return &TransitionError{From: s.state, Action: "remove a receipt"}
	}
	if !s.form.RemoveReceipt(fingerprint) {
		return newValidationError("receipts", "no such staged file")
	}
	return nil
}

// Submit validates the form and runs the two-phase submission. Invalid input
// returns a ValidationError without any network call. A retry from Failed
// reuses a booking that was already reserved.
func (s *Session) Submit(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.state == StateConflictRetry {
		s.mu.Unlock()
		return nil, ErrSlotRequired
	}
	if !s.state.CanSubmit() {
		state := s.state
		s.mu.Unlock()
		return nil, &TransitionError{From: state, Action: "submit"}
	}
	sub, err := s.form.Build(s.draft.Price, s.today())
	if err != nil {
		var v *ValidationError
		if errors.As(err, &v) {
			s.fieldErrors = v.Fields
		}
		s.mu.Unlock()
		return nil, err
	}
	draft := *s.draft
	files := s.form.Files()
	s.state = StateSubmitting
	s.message = ""
	s.fieldErrors = nil
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	out := s.reconciler.Submit(ctx, draft, sub, files)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		s.logger.WarnContext(ctx, "submission finished after the session was cancelled",
			append(draft.logAttrs(),
				"outcome", out.State.String(),
				"error", out.Err,
			)...,
		)
		return out.Result, out.Err
	}
	s.state = out.State
	s.message = out.Message
	switch out.State {
	case StateCompleted:
		s.result = out.Result
		s.draft = nil
		s.form = nil
	default:
		d := out.Draft
		s.draft = &d
	}
	return out.Result, out.Err
}

// Cancel discards the draft and returns to Idle. Calls in flight keep running;
// their result is logged and ignored.
func (s *Session) Cancel(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle && s.draft == nil {
		return
	}
	if s.state == StateSubmitting {
		s.logger.WarnContext(ctx, "session cancelled while a submission is in flight",
			s.draft.logAttrs()...,
		)
	} else if s.draft != nil && s.draft.Reserved() {
		s.logger.WarnContext(ctx, "session cancelled with a reserved booking lacking payment evidence",
			s.draft.logAttrs()...,
		)
	}
	s.epoch++
	s.state = StateIdle
	s.draft = nil
	s.form = nil
	s.fieldErrors = nil
	s.message = ""
	s.result = nil
}

func (s *Session) today() id.Date {
	return id.DateOf(s.now().In(s.loc))
}

func (s *Session) index(schedule *avmodels.Schedule) *availability.Index {
	windows := make([]avmodels.Window, len(schedule.Windows))
	for i, w := range schedule.Windows {
		w.TeacherID = schedule.TeacherID
		windows[i] = w
	}
	return availability.NewIndex(windows,
		availability.WithHorizonDays(s.horizonDays),
		availability.WithClock(s.now),
	)
}
