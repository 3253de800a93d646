// Package events publishes booking lifecycle events for downstream consumers
// (notifications, payments). Publishing is best effort: the booking store stays
// the source of truth.
package events

import (
	"context"
	"time"
)

type Type string

const (
	BookingCreated       Type = "booking.created"
	BookingCancelled     Type = "booking.cancelled"
	BookingStatusChanged Type = "booking.status_changed"
)

// Event is the JSON payload published for a booking change.
type Event struct {
	Type       Type      `json:"type"`
	BookingID  string    `json:"booking_id"`
	ResourceID string    `json:"resource_id"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	ActorID    string    `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
