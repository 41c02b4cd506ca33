// Package events carries committed domain changes to outside subscribers.
package events

import (
	"context"
	"time"
)

// Kind names a domain event. It doubles as the last NATS subject token.
type Kind string

const (
	BookingCreated        Kind = "booking.created"
	BookingConfirmed      Kind = "booking.confirmed"
	BookingRejected       Kind = "booking.rejected"
	BookingCancelled      Kind = "booking.cancelled"
	BookingPaymentUpdated Kind = "booking.payment_updated"
	TripStarted           Kind = "trip.started"
	TripPhaseChanged      Kind = "trip.phase"
	TripEnded             Kind = "trip.ended"
	RouteCompleted        Kind = "route.completed"
	RouteSkipped          Kind = "route.skipped"
	CheckInConfirmed      Kind = "checkin.confirmed"
	ShuttleAssigned       Kind = "shuttle.assigned"
	ShuttleUnassigned     Kind = "shuttle.unassigned"
)

// Event is one committed change, scoped to a hotel.
type Event struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"type"`
	HotelID   string         `json:"hotelId"`
	SubjectID string         `json:"subjectId"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Publisher delivers events to one sink.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, e Event) error
}
