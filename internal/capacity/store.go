package capacity

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrCapacityExhausted is returned when a day's ceiling for a class is reached.
	ErrCapacityExhausted = errors.New("capacity: class fully booked for day")
	// ErrReservationNotFound is returned when no reservation exists for an order.
	ErrReservationNotFound = errors.New("capacity: reservation not found")
)

// Reservation consumes one slot of a class on a day.
type Reservation struct {
	OrderID    string    `json:"orderId"`
	Class      Class     `json:"class"`
	Day        string    `json:"day"`
	CreatedAt  time.Time `json:"createdAt"`
	Overbooked bool      `json:"overbooked,omitempty"`
}

// Store keeps reservation counters. Reserve must be a serializable
// read-modify-write per (day, class) and idempotent per order id: reserving an
// order that already holds a reservation returns the existing one.
type Store interface {
	Count(ctx context.Context, day string, class Class) (int, error)
	Reserve(ctx context.Context, res Reservation, capacity int, allowOverbook bool) (Reservation, error)
	Lookup(ctx context.Context, orderID string) (Reservation, error)
}

type slotKey struct {
	day   string
	class Class
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	counts  map[slotKey]int
	byOrder map[string]Reservation
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: map[slotKey]int{}, byOrder: map[string]Reservation{}}
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context, day string, class Class) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[slotKey{day, class}], nil
}

// Reserve implements Store.
func (s *MemoryStore) Reserve(_ context.Context, res Reservation, capacity int, allowOverbook bool) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byOrder[res.OrderID]; ok {
		return existing, nil
	}
	key := slotKey{res.Day, res.Class}
	if s.counts[key] >= capacity {
		if !allowOverbook {
			return Reservation{}, ErrCapacityExhausted
		}
		res.Overbooked = true
	}
	s.counts[key]++
	s.byOrder[res.OrderID] = res
	return res, nil
}

// Lookup implements Store.
func (s *MemoryStore) Lookup(_ context.Context, orderID string) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.byOrder[orderID]
	if !ok {
		return Reservation{}, ErrReservationNotFound
	}
	return res, nil
}
