package store

import (
	"context"
	"sync"

	"tutorly/internal/availability/models"
	id "tutorly/pkg/domain"
	"tutorly/pkg/platform/sentinel"
)

// InMemory keeps teacher schedules in a map guarded by a RWMutex.
type InMemory struct {
	mu        sync.RWMutex
	schedules map[id.TeacherID]*models.Schedule
}

func NewInMemory() *InMemory {
	return &InMemory{schedules: make(map[id.TeacherID]*models.Schedule)}
}

func (s *InMemory) Get(_ context.Context, teacherID id.TeacherID) (*models.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	schedule, ok := s.schedules[teacherID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(schedule), nil
}

// Replace upserts the teacher row and swaps its windows wholesale.
func (s *InMemory) Replace(_ context.Context, schedule *models.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[schedule.TeacherID] = clone(schedule)
	return nil
}

func clone(s *models.Schedule) *models.Schedule {
	c := *s
	c.Windows = append([]models.Window(nil), s.Windows...)
	return &c
}
