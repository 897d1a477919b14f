//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"tutorly/internal/availability/models"
	"tutorly/internal/availability/store"
	id "tutorly/pkg/domain"
	"tutorly/pkg/platform/sentinel"
	"tutorly/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "payments", "bookings", "availability_windows", "teachers"))
}

func (s *PostgresStoreSuite) TestReplaceRewritesWindows() {
	ctx := context.Background()
	teacher := id.TeacherID(uuid.New())
	schedule := &models.Schedule{
		TeacherID:  teacher,
		Name:       "Noura",
		HourlyRate: id.MustMoney("150.00"),
		UpdatedAt:  time.Now().UTC().Truncate(time.Millisecond),
		Windows: []models.Window{
			{TeacherID: teacher, DayOfWeek: time.Monday, Start: 14 * 60, End: 15 * 60},
			{TeacherID: teacher, DayOfWeek: time.Sunday, Start: 9 * 60, End: 10 * 60},
		},
	}
	s.Require().NoError(s.store.Replace(ctx, schedule))

	found, err := s.store.Get(ctx, teacher)
	s.Require().NoError(err)
	s.Equal(id.MustMoney("150.00"), found.HourlyRate)
	s.Require().Len(found.Windows, 2)
	s.Equal(time.Sunday, found.Windows[0].DayOfWeek)

	schedule.Windows = schedule.Windows[:1]
	schedule.Name = "Noura A."
	s.Require().NoError(s.store.Replace(ctx, schedule))

	found, err = s.store.Get(ctx, teacher)
	s.Require().NoError(err)
	s.Equal("Noura A.", found.Name)
	s.Len(found.Windows, 1)
}

func (s *PostgresStoreSuite) TestUnknownTeacher() {
	_, err := s.store.Get(context.Background(), id.TeacherID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}
