package capacity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/snapstudio-api/internal/lock"
)

// RedisStore shares counters across instances. Each reservation holds a
// distributed lock on its (day, class) for the read-modify-write.
type RedisStore struct {
	R       *redis.Client
	Locker  lock.Locker
	LockTTL time.Duration
	// Retention bounds how long counters and reservations are kept.
	Retention time.Duration
	Prefix    string
}

func (s *RedisStore) prefix() string {
	if s.Prefix == "" {
		return "capacity:"
	}
	return s.Prefix
}

func (s *RedisStore) countKey(day string, class Class) string {
	return s.prefix() + "count:" + day + ":" + string(class)
}

func (s *RedisStore) reservationKey(orderID string) string {
	return s.prefix() + "res:" + orderID
}

func (s *RedisStore) retention() time.Duration {
	if s.Retention <= 0 {
		return 30 * 24 * time.Hour
	}
	return s.Retention
}

// Count implements Store.
func (s *RedisStore) Count(ctx context.Context, day string, class Class) (int, error) {
	if s.R == nil {
		return 0, errors.New("capacity: redis client not configured")
	}
	n, err := s.R.Get(ctx, s.countKey(day, class)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Reserve implements Store.
func (s *RedisStore) Reserve(ctx context.Context, res Reservation, capacity int, allowOverbook bool) (Reservation, error) {
	if s.R == nil {
		return Reservation{}, errors.New("capacity: redis client not configured")
	}
	var out Reservation
	key := lock.Key("capacity", res.Day, string(res.Class))
	err := s.Locker.WithLock(ctx, key, s.LockTTL, func(ctx context.Context) error {
		existing, err := s.Lookup(ctx, res.OrderID)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, ErrReservationNotFound) {
			return err
		}
		count, err := s.Count(ctx, res.Day, res.Class)
		if err != nil {
			return err
		}
		if count >= capacity {
			if !allowOverbook {
				return ErrCapacityExhausted
			}
			res.Overbooked = true
		}
		payload, err := json.Marshal(res)
		if err != nil {
			return err
		}
		ttl := s.retention()
		created, err := s.R.SetNX(ctx, s.reservationKey(res.OrderID), payload, ttl).Result()
		if err != nil {
			return err
		}
		if !created {
			// Reserved concurrently under another (day, class).
			out, err = s.Lookup(ctx, res.OrderID)
			return err
		}
		pipe := s.R.TxPipeline()
		pipe.Incr(ctx, s.countKey(res.Day, res.Class))
		pipe.Expire(ctx, s.countKey(res.Day, res.Class), ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			_ = s.R.Del(context.Background(), s.reservationKey(res.OrderID)).Err()
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return Reservation{}, err
	}
	return out, nil
}

// Lookup implements Store.
func (s *RedisStore) Lookup(ctx context.Context, orderID string) (Reservation, error) {
	if s.R == nil {
		return Reservation{}, errors.New("capacity: redis client not configured")
	}
	raw, err := s.R.Get(ctx, s.reservationKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Reservation{}, ErrReservationNotFound
	}
	if err != nil {
		return Reservation{}, err
	}
	var res Reservation
	if err := json.Unmarshal(raw, &res); err != nil {
		return Reservation{}, err
	}
	return res, nil
}

// Ping reports whether Redis answers; used by readiness probes.
func (s *RedisStore) Ping(ctx context.Context) error {
	if s.R == nil {
		return errors.New("capacity: redis client not configured")
	}
	return s.R.Ping(ctx).Err()
}
