package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() Event {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return Event{
		Type:       BookingCancelled,
		BookingID:  "b-1",
		ResourceID: "court-1",
		UserID:     "user-1",
		Status:     "cancelled",
		StartTime:  start,
		EndTime:    start.Add(time.Hour),
		OccurredAt: start.Add(-3 * time.Hour),
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), sampleEvent()))
	assert.NoError(t, p.Close())
}

func TestNewPublishing(t *testing.T) {
	ev := sampleEvent()

	msg, err := newPublishing(ev)
	require.NoError(t, err)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "booking.cancelled", msg.Type)
	assert.Equal(t, ev.OccurredAt, msg.Timestamp)
	_, err = uuid.Parse(msg.MessageId)
	assert.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &body))
	assert.Equal(t, "booking.cancelled", body["type"])
	assert.Equal(t, "b-1", body["booking_id"])
	assert.Equal(t, "2026-03-02T10:00:00Z", body["start_time"])
	assert.NotContains(t, body, "actor_id")
}

func TestNewPublishingUniqueMessageIDs(t *testing.T) {
	a, err := newPublishing(sampleEvent())
	require.NoError(t, err)
	b, err := newPublishing(sampleEvent())
	require.NoError(t, err)
	assert.NotEqual(t, a.MessageId, b.MessageId)
}

func TestRoutingKey(t *testing.T) {
	for _, typ := range []Type{BookingCreated, BookingCancelled, BookingStatusChanged} {
		assert.Equal(t, string(typ), routingKey(Event{Type: typ}))
	}
}
