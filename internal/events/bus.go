package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/snapstudio-api/internal/obs"
)

// Event is a published domain event. Key is the aggregate id, e.g. an order id.
type Event struct {
	ID         string          `json:"id"`
	Topic      string          `json:"topic"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher delivers events to a downstream sink.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Bus stamps domain events and fans them out to every publisher.
type Bus struct {
	Publishers []Publisher
	Now        func() time.Time
}

// Emit builds the event and hands it to all configured publishers. Publisher
// failures are joined; the event is returned either way.
func (b *Bus) Emit(ctx context.Context, topic, key string, payload any) (Event, error) {
	if b == nil {
		return Event{}, errors.New("events: bus not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Event{}, errors.New("events: topic is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return Event{}, errors.New("events: aggregate key is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return Event{}, fmt.Errorf("events: encode payload: %w", err)
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	ev := Event{
		ID:         uuid.NewString(),
		Topic:      topic,
		Key:        key,
		OccurredAt: now().UTC(),
		Payload:    encoded,
	}

	var joined error
	for _, p := range b.Publishers {
		if p == nil {
			continue
		}
		started := time.Now()
		pubErr := p.Publish(ctx, ev)
		observe(topic, started, pubErr)
		if pubErr != nil {
			joined = errors.Join(joined, fmt.Errorf("events: publish %s: %w", topic, pubErr))
		}
	}
	return ev, joined
}

func observe(topic string, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	if obs.EventsPublishedTotal != nil {
		obs.EventsPublishedTotal.WithLabelValues(topic, result).Inc()
	}
	if obs.EventPublishLatency != nil {
		obs.EventPublishLatency.WithLabelValues(topic).Observe(float64(time.Since(started).Microseconds()) / 1000)
	}
}

func encodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	switch v := payload.(type) {
	case []byte:
		return rawJSON(v)
	case json.RawMessage:
		return rawJSON(v)
	case string:
		if strings.TrimSpace(v) == "" {
			return []byte("{}"), nil
		}
		return rawJSON([]byte(v))
	default:
		return json.Marshal(v)
	}
}

func rawJSON(v []byte) ([]byte, error) {
	if len(v) == 0 {
		return []byte("{}"), nil
	}
	if !json.Valid(v) {
		return nil, errors.New("payload is not valid json")
	}
	return append([]byte(nil), v...), nil
}
