package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	id "tutorly/pkg/domain"
	dErrors "tutorly/pkg/domain-errors"
)

// ClockTime is a wall-clock time of day in minutes since midnight.
type ClockTime int

const lastMinute ClockTime = 23*60 + 59

// ParseClockTime parses "HH:MM" (24h clock, 00:00 to 23:59).
func ParseClockTime(s string) (ClockTime, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 || !allDigits(hh) || !allDigits(mm) {
		return 0, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("invalid time %q, expected HH:MM", s))
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("invalid time %q, expected HH:MM", s))
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || h < 0 || h > 23 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("invalid time %q, expected HH:MM", s))
	}
	return ClockTime(h*60 + m), nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(b []byte) error {
	parsed, err := ParseClockTime(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// On returns the concrete instant of this clock time on date's calendar day,
// in date's location.
func (c ClockTime) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, int(c)/60, int(c)%60, 0, 0, date.Location())
}

// ClockOf extracts the wall-clock time of t in its own location.
func ClockOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*60 + t.Minute())
}

// Window is one recurring weekly availability block. Windows may overlap;
// each is offered as an independent slot.
type Window struct {
	TeacherID id.TeacherID `json:"teacher_id"`
	DayOfWeek time.Weekday `json:"day_of_week"`
	Start     ClockTime    `json:"start_time"`
	End       ClockTime    `json:"end_time"`
}

func (w Window) Validate() error {
	if w.DayOfWeek < time.Sunday || w.DayOfWeek > time.Saturday {
		return dErrors.New(dErrors.CodeValidation, "day_of_week must be between 0 and 6")
	}
	if w.Start < 0 || w.End > lastMinute {
		return dErrors.New(dErrors.CodeValidation, "window must fall within one day")
	}
	if w.Start >= w.End {
		return dErrors.New(dErrors.CodeValidation, "window start_time must be before end_time")
	}
	return nil
}

// TimeSlot returns the window's clock interval.
func (w Window) TimeSlot() TimeSlot {
	return TimeSlot{Start: w.Start, End: w.End}
}

// Schedule is a teacher's bookable profile: name, rate and weekly windows.
type Schedule struct {
	TeacherID  id.TeacherID `json:"teacher_id"`
	Name       string       `json:"name"`
	HourlyRate id.Money     `json:"hourly_rate"`
	Windows    []Window     `json:"windows"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Validate checks the schedule invariants before it is stored.
func (s *Schedule) Validate() error {
	if s.TeacherID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "teacher_id is required")
	}
	if strings.TrimSpace(s.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if s.HourlyRate <= 0 {
		return dErrors.New(dErrors.CodeValidation, "hourly_rate must be positive")
	}
	for i := range s.Windows {
		if s.Windows[i].TeacherID != s.TeacherID {
			return dErrors.New(dErrors.CodeValidation, "window teacher_id does not match schedule")
		}
		if err := s.Windows[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Slot is a concrete bookable interval derived from a window.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Label renders the slot as "HH:MM - HH:MM".
func (s Slot) Label() string {
	return TimeSlot{Start: ClockOf(s.Start), End: ClockOf(s.End)}.String()
}

func (s Slot) Minutes() int {
	return int(s.End.Sub(s.Start) / time.Minute)
}

// TimeSlot is the "HH:MM - HH:MM" label a student picks.
type TimeSlot struct {
	Start ClockTime
	End   ClockTime
}

// ParseTimeSlot parses "HH:MM - HH:MM". Spacing around the dash is optional.
func ParseTimeSlot(s string) (TimeSlot, error) {
	left, right, ok := strings.Cut(s, "-")
	if !ok {
		return TimeSlot{}, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("invalid time slot %q, expected HH:MM - HH:MM", s))
	}
	start, err := ParseClockTime(left)
	if err != nil {
		return TimeSlot{}, err
	}
	end, err := ParseClockTime(right)
	if err != nil {
		return TimeSlot{}, err
	}
	if start >= end {
		return TimeSlot{}, dErrors.New(dErrors.CodeInvalidInput, "time slot must end after it starts")
	}
	return TimeSlot{Start: start, End: end}, nil
}

func (t TimeSlot) String() string {
	return t.Start.String() + " - " + t.End.String()
}

func (t TimeSlot) Minutes() int {
	return int(t.End - t.Start)
}

// On anchors the slot on a calendar date.
func (t TimeSlot) On(date time.Time) Slot {
	return Slot{Start: t.Start.On(date), End: t.End.On(date)}
}

// IsZero reports an unset slot (cleared after a conflict).
func (t TimeSlot) IsZero() bool {
	return t.Start == 0 && t.End == 0
}
