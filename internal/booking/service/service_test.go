package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	avmodels "tutorly/internal/availability/models"
	avservice "tutorly/internal/availability/service"
	avstore "tutorly/internal/availability/store"
	"tutorly/internal/booking/metrics"
	"tutorly/internal/booking/models"
	"tutorly/internal/booking/store"
	"tutorly/internal/notify"
	"tutorly/internal/platform/logger"
	id "tutorly/pkg/domain"
	dErrors "tutorly/pkg/domain-errors"
	"tutorly/pkg/requestcontext"
)

var riyadh = time.FixedZone("AST", 3*60*60)

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	store    *store.InMemory
	cache    *fakeCache
	notifier *notify.Recorder
	service  *Service
	teacher  id.TeacherID
	student  id.StudentID
	start    time.Time
	end      time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 10, 16, 8, 0, 0, 0, riyadh))
	s.teacher = id.TeacherID(uuid.New())
	s.student = id.StudentID(uuid.New())
	s.start = time.Date(2026, 10, 18, 9, 0, 0, 0, riyadh)
	s.end = s.start.Add(time.Hour)

	availability := avservice.New(avstore.NewInMemory(), avservice.WithLocation(riyadh))
	s.Require().NoError(availability.ReplaceSchedule(s.ctx, &avmodels.Schedule{
		TeacherID:  s.teacher,
		Name:       "Noura",
		HourlyRate: id.MustMoney("120.00"),
		Windows: []avmodels.Window{
			{DayOfWeek: time.Sunday, Start: 9 * 60, End: 10 * 60},
			{DayOfWeek: time.Sunday, Start: 9*60 + 30, End: 10*60 + 30},
		},
	}))

	s.store = store.NewInMemory()
	s.cache = newFakeCache()
	s.notifier = notify.NewRecorder()
	s.service = New(s.store, availability,
		WithLogger(logger.Discard()),
		WithMetrics(metrics.NewWithRegisterer(prometheus.NewRegistry())),
		WithSlotCache(s.cache),
		WithNotifier(s.notifier),
	)
}

func (s *ServiceSuite) TestCreate() {
	s.Run("reserves an offered slot at the quoted price", func() {
		b, err := s.service.Create(s.ctx, s.student, s.teacher, s.start, s.end)
		s.Require().NoError(err)
		s.Equal(models.StatusReserved, b.Status)
		s.Equal(id.MustMoney("120.00"), b.Price)
		s.Equal([]notify.Kind{notify.KindBookingReserved}, s.notifier.Kinds())

		taken, err := s.cache.Taken(s.ctx, s.teacher, s.start, s.end)
		s.Require().NoError(err)
		s.True(taken)
	})

	s.Run("second booking of the same interval conflicts", func() {
		_, err := s.service.Create(s.ctx, id.StudentID(uuid.New()), s.teacher, s.start, s.end)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal(ConflictMessage, dErrors.MessageOf(err))
	})

	s.Run("overlapping offered window conflicts", func() {
		start := s.start.Add(30 * time.Minute)
		_, err := s.service.Create(s.ctx, id.StudentID(uuid.New()), s.teacher, start, start.Add(time.Hour))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("interval not offered is a validation error", func() {
		start := s.start.Add(3 * time.Hour)
		_, err := s.service.Create(s.ctx, s.student, s.teacher, start, start.Add(time.Hour))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing student is unauthorized", func() {
		_, err := s.service.Create(s.ctx, id.StudentID{}, s.teacher, s.start, s.end)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("reversed interval is a validation error", func() {
		_, err := s.service.Create(s.ctx, s.student, s.teacher, s.end, s.start)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// TestConcurrentCreate verifies two students racing for one slot: exactly one wins.
func (s *ServiceSuite) TestConcurrentCreate() {
	const students = 20
	var wg sync.WaitGroup
	var wins, conflicts atomic.Int32
	for i := 0; i < students; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.Create(s.ctx, id.StudentID(uuid.New()), s.teacher, s.start, s.end)
			switch {
			case err == nil:
				wins.Add(1)
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
	s.Equal(int32(students-1), conflicts.Load())
}

func (s *ServiceSuite) TestProbe() {
	s.Run("free slot is available", func() {
		ok, err := s.service.Probe(s.ctx, s.teacher, s.start, s.end)
		s.Require().NoError(err)
		s.True(ok)
	})

	_, err := s.service.Create(s.ctx, s.student, s.teacher, s.start, s.end)
	s.Require().NoError(err)

	s.Run("held slot is unavailable via the cache", func() {
		ok, err := s.service.Probe(s.ctx, s.teacher, s.start, s.end)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("falls back to the store when the cache fails", func() {
		s.cache.failWith(errors.New("redis down"))
		ok, err := s.service.Probe(s.ctx, s.teacher, s.start, s.end)
		s.Require().NoError(err)
		s.False(ok)
	})
}

func (s *ServiceSuite) TestGetAndTransition() {
	b, err := s.service.Create(s.ctx, s.student, s.teacher, s.start, s.end)
	s.Require().NoError(err)

	s.Run("owner can read the booking", func() {
		found, err := s.service.Get(s.ctx, s.student, b.ID)
		s.Require().NoError(err)
		s.Equal(b.ID, found.ID)
	})

	s.Run("another student sees not found", func() {
		_, err := s.service.Get(s.ctx, id.StudentID(uuid.New()), b.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("illegal transition is an invariant violation", func() {
		_, err := s.service.Transition(s.ctx, b.ID, models.StatusConfirmed)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("cancel releases the slot", func() {
		cancelled, err := s.service.Cancel(s.ctx, b.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusCancelled, cancelled.Status)

		ok, err := s.service.Probe(s.ctx, s.teacher, s.start, s.end)
		s.Require().NoError(err)
		s.True(ok)

		_, err = s.service.Create(s.ctx, id.StudentID(uuid.New()), s.teacher, s.start, s.end)
		s.NoError(err)
	})

	s.Run("unknown booking is not found", func() {
		_, err := s.service.Transition(s.ctx, id.NewBookingID(), models.StatusCancelled)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

type interval struct {
	teacher    id.TeacherID
	start, end time.Time
}

type fakeCache struct {
	mu   sync.Mutex
	held map[interval]bool
	err  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{held: make(map[interval]bool)}
}

func (c *fakeCache) failWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *fakeCache) Mark(_ context.Context, t id.TeacherID, start, end time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.held[interval{t, start.UTC(), end.UTC()}] = true
	return c.err
}

func (c *fakeCache) Release(_ context.Context, t id.TeacherID, start, end time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.held, interval{t, start.UTC(), end.UTC()})
	return c.err
}

func (c *fakeCache) Taken(_ context.Context, t id.TeacherID, start, end time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	for iv := range c.held {
		if iv.teacher == t && iv.start.Before(end) && start.Before(iv.end) {
			return true, nil
		}
	}
	return false, nil
}
