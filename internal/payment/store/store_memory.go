package store

import (
	"context"
	"sync"

	"tutorly/internal/payment/models"
	id "tutorly/pkg/domain"
	"tutorly/pkg/platform/sentinel"
)

// InMemory keeps payments in maps; one payment per booking is enforced on Create.
type InMemory struct {
	mu        sync.RWMutex
	payments  map[id.PaymentID]*models.Payment
	byBooking map[id.BookingID]id.PaymentID
}

func NewInMemory() *InMemory {
	return &InMemory{
		payments:  make(map[id.PaymentID]*models.Payment),
		byBooking: make(map[id.BookingID]id.PaymentID),
	}
}

func (s *InMemory) Create(_ context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byBooking[p.BookingID]; exists {
		return sentinel.ErrConflict
	}
	s.payments[p.ID] = clone(p)
	s.byBooking[p.BookingID] = p.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, paymentID id.PaymentID) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(p), nil
}

func (s *InMemory) FindByBooking(_ context.Context, bookingID id.BookingID) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pid, ok := s.byBooking[bookingID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(s.payments[pid]), nil
}

func (s *InMemory) Update(_ context.Context, paymentID id.PaymentID, fn func(*models.Payment) error) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := clone(p)
	if err := fn(c); err != nil {
		return nil, err
	}
	s.payments[paymentID] = c
	return clone(c), nil
}

func clone(p *models.Payment) *models.Payment {
	c := *p
	c.ReceiptURLs = append([]string{}, p.ReceiptURLs...)
	if p.ReviewedAt != nil {
		t := *p.ReviewedAt
		c.ReviewedAt = &t
	}
	return &c
}
