package capacity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/cockroachdb/pebble"
)

// PebbleStore persists counters on local disk for single-instance
// deployments. Read-modify-write is serialised by a process mutex and writes
// are synced.
type PebbleStore struct {
	mu sync.Mutex
	db *pebble.DB
}

// OpenPebbleStore opens (or creates) the store in dir.
func OpenPebbleStore(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

// Close releases the database.
func (s *PebbleStore) Close() error { return s.db.Close() }

func pebbleCountKey(day string, class Class) []byte {
	return []byte("count/" + day + "/" + string(class))
}

func pebbleReservationKey(orderID string) []byte {
	return []byte("res/" + orderID)
}

// Count implements Store.
func (s *PebbleStore) Count(_ context.Context, day string, class Class) (int, error) {
	return s.count(pebbleCountKey(day, class))
}

func (s *PebbleStore) count(key []byte) (int, error) {
	v, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer closer.Close()
	n, err := strconv.Atoi(string(v))
	if err != nil {
		return 0, fmt.Errorf("capacity: corrupt counter %s: %w", key, err)
	}
	return n, nil
}

// Reserve implements Store.
func (s *PebbleStore) Reserve(_ context.Context, res Reservation, capacity int, allowOverbook bool) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.lookup(res.OrderID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrReservationNotFound) {
		return Reservation{}, err
	}
	key := pebbleCountKey(res.Day, res.Class)
	count, err := s.count(key)
	if err != nil {
		return Reservation{}, err
	}
	if count >= capacity {
		if !allowOverbook {
			return Reservation{}, ErrCapacityExhausted
		}
		res.Overbooked = true
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return Reservation{}, err
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(key, []byte(strconv.Itoa(count+1)), nil); err != nil {
		return Reservation{}, err
	}
	if err := batch.Set(pebbleReservationKey(res.OrderID), payload, nil); err != nil {
		return Reservation{}, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return Reservation{}, err
	}
	return res, nil
}

// Lookup implements Store.
func (s *PebbleStore) Lookup(_ context.Context, orderID string) (Reservation, error) {
	return s.lookup(orderID)
}

func (s *PebbleStore) lookup(orderID string) (Reservation, error) {
	v, closer, err := s.db.Get(pebbleReservationKey(orderID))
	if errors.Is(err, pebble.ErrNotFound) {
		return Reservation{}, ErrReservationNotFound
	}
	if err != nil {
		return Reservation{}, err
	}
	defer closer.Close()
	var res Reservation
	if err := json.Unmarshal(v, &res); err != nil {
		return Reservation{}, err
	}
	return res, nil
}
