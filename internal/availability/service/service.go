package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tutorly/internal/availability"
	"tutorly/internal/availability/models"
	id "tutorly/pkg/domain"
	dErrors "tutorly/pkg/domain-errors"
	"tutorly/pkg/platform/sentinel"
	"tutorly/pkg/requestcontext"
)

type Store interface {
	Get(ctx context.Context, teacherID id.TeacherID) (*models.Schedule, error)
	Replace(ctx context.Context, schedule *models.Schedule) error
}

// Quote is the authoritative price of one offered slot.
type Quote struct {
	TeacherID id.TeacherID
	Slot      models.Slot
	Price     id.Money
}

// Service owns teacher schedules and decides whether an interval is bookable.
type Service struct {
	store       Store
	logger      *slog.Logger
	location    *time.Location
	horizonDays int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithLocation sets the zone windows are expressed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithHorizonDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.horizonDays = days
		}
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		logger:      slog.Default(),
		location:    time.UTC,
		horizonDays: availability.DefaultHorizonDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location is the zone schedules are interpreted in.
func (s *Service) Location() *time.Location {
	return s.location
}

func (s *Service) GetSchedule(ctx context.Context, teacherID id.TeacherID) (*models.Schedule, error) {
	schedule, err := s.store.Get(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "teacher not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load schedule")
	}
	return schedule, nil
}

// ReplaceSchedule validates and stores a full weekly schedule.
func (s *Service) ReplaceSchedule(ctx context.Context, schedule *models.Schedule) error {
	for i := range schedule.Windows {
		if schedule.Windows[i].TeacherID.IsNil() {
			schedule.Windows[i].TeacherID = schedule.TeacherID
		}
	}
	if err := schedule.Validate(); err != nil {
		return err
	}
	schedule.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Replace(ctx, schedule); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store schedule")
	}
	s.logger.InfoContext(ctx, "schedule replaced",
		"teacher_id", schedule.TeacherID,
		"windows", len(schedule.Windows),
	)
	return nil
}

// Quote confirms [start, end) is an offered, future, in-horizon slot and prices it.
func (s *Service) Quote(ctx context.Context, teacherID id.TeacherID, start, end time.Time) (*Quote, error) {
	schedule, err := s.GetSchedule(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	local := start.In(s.location)
	index := availability.NewIndex(schedule.Windows,
		availability.WithHorizonDays(s.horizonDays),
		availability.WithClock(func() time.Time { return requestcontext.Now(ctx) }),
	)
	for _, slot := range index.SlotsFor(teacherID, local) {
		if slot.Start.Equal(start) && slot.End.Equal(end) {
			return &Quote{
				TeacherID: teacherID,
				Slot:      slot,
				Price:     schedule.HourlyRate.ProRate(slot.Minutes()),
			}, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeValidation, "requested time is not an offered slot")
}
