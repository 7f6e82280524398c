package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/snapstudio-api/internal/events"
)

type capturePublisher struct {
	events []events.Event
	err    error
}

func (c *capturePublisher) Publish(_ context.Context, ev events.Event) error {
	c.events = append(c.events, ev)
	return c.err
}

func TestEmitFansOutToPublishers(t *testing.T) {
	first := &capturePublisher{}
	second := &capturePublisher{}
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	bus := events.Bus{Publishers: []events.Publisher{first, nil, second}, Now: func() time.Time { return now }}

	ev, err := bus.Emit(context.Background(), events.TopicOrderQuoted, "SS123456ABC", map[string]any{"orderId": "SS123456ABC"})
	require.NoError(t, err)
	require.NotEmpty(t, ev.ID)
	require.Equal(t, now, ev.OccurredAt)
	require.JSONEq(t, `{"orderId":"SS123456ABC"}`, string(ev.Payload))
	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	require.Equal(t, ev.ID, second.events[0].ID)
}

func TestEmitJoinsPublisherErrors(t *testing.T) {
	failing := &capturePublisher{err: errors.New("broker down")}
	ok := &capturePublisher{}
	bus := events.Bus{Publishers: []events.Publisher{failing, ok}}

	ev, err := bus.Emit(context.Background(), events.TopicOrderConfirmed, "SS1", nil)
	require.ErrorContains(t, err, "broker down")
	require.Equal(t, "{}", string(ev.Payload))
	require.Len(t, ok.events, 1)
}

func TestEmitValidatesInput(t *testing.T) {
	bus := events.Bus{}
	_, err := bus.Emit(context.Background(), " ", "SS1", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderQuoted, "", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderQuoted, "SS1", "{not json")
	require.ErrorContains(t, err, "encode payload")

	var nilBus *events.Bus
	_, err = nilBus.Emit(context.Background(), events.TopicOrderQuoted, "SS1", nil)
	require.Error(t, err)
}

func TestLogPublisherWritesEvent(t *testing.T) {
	var buf bytes.Buffer
	pub := events.LogPublisher{Logger: zerolog.New(&buf)}
	bus := events.Bus{Publishers: []events.Publisher{pub}}

	_, err := bus.Emit(context.Background(), events.TopicOrderQuoted, "SS1", json.RawMessage(`{"total":"94.5"}`))
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "domain_event", line["message"])
	require.Equal(t, events.TopicOrderQuoted, line["topic"])
	require.Equal(t, map[string]any{"total": "94.5"}, line["payload"])
}
