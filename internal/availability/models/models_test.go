package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "tutorly/pkg/domain"
)

func TestParseClockTime(t *testing.T) {
	got, err := ParseClockTime("9:05")
	require.NoError(t, err)
	assert.Equal(t, ClockTime(9*60+5), got)

	for _, in := range []string{"+9:00", "-1:00", "09:+5", "24:00", "09:60", "0900", "9:5", " :00"} {
		_, err := ParseClockTime(in)
		assert.Error(t, err, in)
	}
}

func TestParseTimeSlot(t *testing.T) {
	ts, err := ParseTimeSlot("09:00 - 10:30")
	require.NoError(t, err)
	assert.Equal(t, ClockTime(9*60), ts.Start)
	assert.Equal(t, 90, ts.Minutes())
	assert.Equal(t, "09:00 - 10:30", ts.String())

	ts, err = ParseTimeSlot("9:00-10:00")
	require.NoError(t, err)
	assert.Equal(t, "09:00 - 10:00", ts.String())

	for _, bad := range []string{"", "09:00", "10:00 - 09:00", "25:00 - 26:00", "09:00 - 09:00", "ab:cd - 10:00"} {
		_, err := ParseTimeSlot(bad)
		assert.Error(t, err, bad)
	}
}

func TestWindowValidate(t *testing.T) {
	teacher := id.TeacherID(uuid.New())
	ok := Window{TeacherID: teacher, DayOfWeek: time.Monday, Start: 9 * 60, End: 10 * 60}
	require.NoError(t, ok.Validate())

	reversed := ok
	reversed.Start, reversed.End = reversed.End, reversed.Start
	assert.Error(t, reversed.Validate())

	badDay := ok
	badDay.DayOfWeek = 7
	assert.Error(t, badDay.Validate())
}

func TestScheduleValidate(t *testing.T) {
	teacher := id.TeacherID(uuid.New())
	s := &Schedule{
		TeacherID:  teacher,
		Name:       "Noura",
		HourlyRate: id.MustMoney("120.00"),
		Windows:    []Window{{TeacherID: teacher, DayOfWeek: time.Sunday, Start: 9 * 60, End: 10 * 60}},
	}
	require.NoError(t, s.Validate())

	s.Windows[0].TeacherID = id.TeacherID(uuid.New())
	assert.Error(t, s.Validate())

	s.Windows = nil
	s.HourlyRate = 0
	assert.Error(t, s.Validate())
}

func TestTimeSlotOn(t *testing.T) {
	loc := time.FixedZone("AST", 3*60*60)
	ts, _ := ParseTimeSlot("09:00 - 10:00")
	slot := ts.On(time.Date(2026, 10, 18, 15, 4, 0, 0, loc))
	assert.Equal(t, time.Date(2026, 10, 18, 9, 0, 0, 0, loc), slot.Start)
	assert.Equal(t, "09:00 - 10:00", slot.Label())
}
