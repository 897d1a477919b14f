package store

import (
	"context"
	"sync"
	"time"

	"tutorly/internal/booking/models"
	id "tutorly/pkg/domain"
	"tutorly/pkg/platform/sentinel"
)

// InMemory serializes every write under one mutex, so the overlap check and
// the insert are atomic.
type InMemory struct {
	mu       sync.RWMutex
	bookings map[id.BookingID]*models.Booking
}

func NewInMemory() *InMemory {
	return &InMemory{bookings: make(map[id.BookingID]*models.Booking)}
}

func (s *InMemory) CreateIfSlotFree(_ context.Context, b *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overlapsLocked(b.TeacherID, b.Start, b.End) {
		return sentinel.ErrConflict
	}
	c := *b
	s.bookings[b.ID] = &c
	return nil
}

func (s *InMemory) FindByID(_ context.Context, bookingID id.BookingID) (*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *b
	return &c, nil
}

func (s *InMemory) SlotTaken(_ context.Context, teacherID id.TeacherID, start, end time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overlapsLocked(teacherID, start, end), nil
}

// Update applies fn to the stored booking and persists the result.
func (s *InMemory) Update(_ context.Context, bookingID id.BookingID, fn func(*models.Booking) error) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *b
	if err := fn(&c); err != nil {
		return nil, err
	}
	s.bookings[bookingID] = &c
	out := c
	return &out, nil
}

func (s *InMemory) overlapsLocked(teacherID id.TeacherID, start, end time.Time) bool {
	for _, existing := range s.bookings {
		if existing.TeacherID == teacherID && existing.Status.IsLive() && existing.Overlaps(start, end) {
			return true
		}
	}
	return false
}
