package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"shuttle/internal/domain"
	"shuttle/internal/events"
)

// PublishMetrics records the outcome of each delivery.
type PublishMetrics interface {
	EventPublished(sink string, err error)
}

// NotificationService turns committed changes into domain events and hands
// them to every configured sink. It runs after commit, so delivery failures
// are logged and never undo the change.
type NotificationService struct {
	publishers []events.Publisher
	metrics    PublishMetrics
	now        Clock
}

// NewNotificationService creates a new NotificationService. m may be nil.
func NewNotificationService(m PublishMetrics, publishers ...events.Publisher) *NotificationService {
	return &NotificationService{publishers: publishers, metrics: m, now: time.Now}
}

// NotifyBooking announces a booking transition.
func (s *NotificationService) NotifyBooking(ctx context.Context, kind events.Kind, b *domain.Booking, actorID string) {
	s.send(ctx, events.Event{
		Kind:      kind,
		HotelID:   b.HotelID,
		SubjectID: b.ID,
		Message:   fmt.Sprintf("Booking %s for %s is %s", shortID(b.ID), b.GuestName, b.Status),
		Data: map[string]any{
			"bookingId":      b.ID,
			"tripInstanceId": b.TripInstanceID,
			"status":         b.Status,
			"paymentStatus":  b.PaymentStatus,
			"seats":          b.Seats,
			"actorId":        actorID,
		},
	})
}

// NotifyTrip announces a trip instance transition.
func (s *NotificationService) NotifyTrip(ctx context.Context, kind events.Kind, t *domain.TripInstance, extra map[string]any) {
	data := map[string]any{
		"tripInstanceId": t.ID,
		"tripName":       t.TripName,
		"status":         t.Status,
		"phase":          t.Phase,
		"driverId":       t.DriverID,
		"shuttleId":      t.ShuttleID,
	}
	for k, v := range extra {
		data[k] = v
	}
	s.send(ctx, events.Event{
		Kind:      kind,
		HotelID:   t.HotelID,
		SubjectID: t.ID,
		Message:   fmt.Sprintf("%s (%s) is %s", t.TripName, t.ScheduledDate, t.Status),
		Data:      data,
	})
}

// NotifyRoute announces a completed or skipped leg.
func (s *NotificationService) NotifyRoute(ctx context.Context, kind events.Kind, t *domain.TripInstance, leg *domain.RouteInstance) {
	s.send(ctx, events.Event{
		Kind:      kind,
		HotelID:   t.HotelID,
		SubjectID: leg.ID,
		Message:   fmt.Sprintf("%s: %s to %s", t.TripName, leg.StartLocation, leg.EndLocation),
		Data: map[string]any{
			"tripInstanceId":  t.ID,
			"routeInstanceId": leg.ID,
			"seq":             leg.Seq,
			"skipped":         leg.Skipped,
		},
	})
}

// NotifyCheckIn announces a boarded passenger.
func (s *NotificationService) NotifyCheckIn(ctx context.Context, b *domain.Booking, driverID string) {
	s.send(ctx, events.Event{
		Kind:      events.CheckInConfirmed,
		HotelID:   b.HotelID,
		SubjectID: b.ID,
		Message:   fmt.Sprintf("%s boarded with %d seat(s)", b.GuestName, b.Seats),
		Data: map[string]any{
			"bookingId":      b.ID,
			"tripInstanceId": b.TripInstanceID,
			"seats":          b.Seats,
			"driverId":       driverID,
		},
	})
}

// NotifyAssignment announces a driver taking or leaving a shuttle.
func (s *NotificationService) NotifyAssignment(ctx context.Context, kind events.Kind, a *domain.DriverAssignment, displacedDriverID string) {
	s.send(ctx, events.Event{
		Kind:      kind,
		HotelID:   a.HotelID,
		SubjectID: a.ShuttleID,
		Message:   fmt.Sprintf("Driver %s %s shuttle %s", a.DriverID, assignmentVerb(kind), shortID(a.ShuttleID)),
		Data: map[string]any{
			"driverId":          a.DriverID,
			"shuttleId":         a.ShuttleID,
			"displacedDriverId": displacedDriverID,
		},
	})
}

func assignmentVerb(kind events.Kind) string {
	if kind == events.ShuttleUnassigned {
		return "left"
	}
	return "took"
}

// send delivers the event to every sink.
func (s *NotificationService) send(ctx context.Context, e events.Event) {
	if s == nil {
		return
	}
	e.ID = uuid.New().String()
	e.CreatedAt = s.now().UTC()

	for _, p := range s.publishers {
		err := p.Publish(ctx, e)
		if err != nil {
			log.Printf("[EVENT] %s delivery of %s (%s) failed: %v", p.Name(), e.Kind, e.SubjectID, err)
		}
		if s.metrics != nil {
			s.metrics.EventPublished(p.Name(), err)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
