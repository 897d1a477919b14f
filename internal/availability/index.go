// Package availability answers "which slots does a teacher offer on a date".
//
// The Index is a pure lookup over an immutable snapshot of weekly windows. It
// never performs I/O; callers load windows through the store or the HTTP
// client and build an index from them.
package availability

import (
	"sort"
	"time"

	"tutorly/internal/availability/models"
	id "tutorly/pkg/domain"
)

// DefaultHorizonDays bounds how far ahead a lesson can be booked.
const DefaultHorizonDays = 30

type Index struct {
	windows     map[id.TeacherID][]models.Window
	horizonDays int
	now         func() time.Time
}

type IndexOption func(*Index)

func WithHorizonDays(days int) IndexOption {
	return func(ix *Index) {
		if days > 0 {
			ix.horizonDays = days
		}
	}
}

// WithClock pins "now" for deterministic lookups.
func WithClock(now func() time.Time) IndexOption {
	return func(ix *Index) {
		if now != nil {
			ix.now = now
		}
	}
}

// NewIndex snapshots windows. Later changes to the input slice are not observed.
func NewIndex(windows []models.Window, opts ...IndexOption) *Index {
	ix := &Index{
		windows:     make(map[id.TeacherID][]models.Window),
		horizonDays: DefaultHorizonDays,
		now:         time.Now,
	}
	for _, w := range windows {
		ix.windows[w.TeacherID] = append(ix.windows[w.TeacherID], w)
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// SlotsFor lists the concrete slots a teacher offers on date, sorted by start.
// An empty result is normal: no windows that weekday, a date outside the
// booking horizon, or every slot today has already started.
func (ix *Index) SlotsFor(teacherID id.TeacherID, date time.Time) []models.Slot {
	if !ix.InHorizon(date) {
		return nil
	}
	now := ix.now()
	var slots []models.Slot
	for _, w := range ix.windows[teacherID] {
		if w.DayOfWeek != date.Weekday() {
			continue
		}
		slot := w.TimeSlot().On(date)
		if slot.Start.Before(now) {
			continue
		}
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Start.Equal(slots[j].Start) {
			return slots[i].End.Before(slots[j].End)
		}
		return slots[i].Start.Before(slots[j].Start)
	})
	return slots
}

// InHorizon reports whether date is today or a later day within the horizon,
// comparing calendar days in date's location.
func (ix *Index) InHorizon(date time.Time) bool {
	today := DateOnly(ix.now().In(date.Location()))
	day := DateOnly(date)
	if day.Before(today) {
		return false
	}
	return !day.After(today.AddDate(0, 0, ix.horizonDays))
}

// Find returns the offered slot on date matching the "HH:MM - HH:MM" label.
func (ix *Index) Find(teacherID id.TeacherID, date time.Time, label string) (models.Slot, bool) {
	want, err := models.ParseTimeSlot(label)
	if err != nil {
		return models.Slot{}, false
	}
	for _, slot := range ix.SlotsFor(teacherID, date) {
		if models.ClockOf(slot.Start) == want.Start && models.ClockOf(slot.End) == want.End {
			return slot, true
		}
	}
	return models.Slot{}, false
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
