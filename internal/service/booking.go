package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"shuttle/internal/domain"
	"shuttle/internal/events"
	"shuttle/internal/redis"
	"shuttle/internal/repository"
)

// BookingService owns the booking lifecycle and keeps the seat counters of
// the booked trip instance in step with it.
type BookingService struct {
	store               repository.Store
	viewCache           redis.ViewCacheInterface // optional
	notificationService *NotificationService
	metrics             Metrics
	now                 Clock
}

// NewBookingService creates a new BookingService. viewCache and metrics may be nil.
func NewBookingService(
	store repository.Store,
	viewCache redis.ViewCacheInterface,
	notificationService *NotificationService,
	metrics Metrics,
) *BookingService {
	return &BookingService{
		store:               store,
		viewCache:           viewCache,
		notificationService: notificationService,
		metrics:             metricsOrNoop(metrics),
		now:                 time.Now,
	}
}

// SetClock replaces the service clock.
func (s *BookingService) SetClock(c Clock) { s.now = clockOrNow(c) }

// CreateBookingRequest contains the parameters for creating a booking.
type CreateBookingRequest struct {
	TripInstanceID string
	GuestID        string // taken from the caller when a guest books
	GuestName      string
	GuestEmail     string
	FromSeq        int // pickup stop index
	ToSeq          int // dropoff stop index; 0 means the last stop
	Seats          int
	Bags           int
	PaymentMethod  domain.PaymentMethod
	Notes          string
}

// Create places a PENDING booking. No seats are held until it is confirmed.
func (s *BookingService) Create(ctx context.Context, actor domain.Actor, req CreateBookingRequest) (*domain.Booking, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if req.Seats < 1 {
		return nil, domain.ErrInvalidSeats
	}
	if req.Bags < 0 {
		return nil, domain.ErrInvalidBags
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentMethodCash
	}
	if !req.PaymentMethod.Valid() {
		return nil, domain.ErrInvalidPaymentMethod
	}

	inst, err := s.store.Repositories().TripInstances.GetByID(ctx, req.TripInstanceID)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case domain.RoleGuest:
		if !actor.CanAccessHotel(inst.HotelID) {
			return nil, ErrWrongHotel
		}
		req.GuestID = actor.UserID
		if strings.TrimSpace(req.GuestName) == "" {
			req.GuestName = actor.Name
		}
	default:
		if err := requireRole(actor, inst.HotelID, staffRoles...); err != nil {
			return nil, err
		}
		if req.GuestID == "" {
			req.GuestID = "walk-in:" + uuid.New().String()
		}
	}
	if strings.TrimSpace(req.GuestName) == "" {
		return nil, domain.ErrNameRequired
	}

	if inst.Status != domain.TripStatusPending {
		return nil, ErrTripNotBookable
	}
	if req.Seats > inst.Capacity {
		return nil, ErrSeatsOverCapacity
	}
	if req.ToSeq == 0 {
		req.ToSeq = len(inst.Routes)
	}
	if req.FromSeq < 0 || req.ToSeq <= req.FromSeq || req.ToSeq > len(inst.Routes) {
		return nil, domain.ErrInvalidLegRange
	}

	perPerson, total, payment := domain.Quote(inst.Routes, req.FromSeq, req.ToSeq, req.Seats, req.PaymentMethod)
	now := s.now().UTC()
	b := &domain.Booking{
		ID:             uuid.New().String(),
		HotelID:        inst.HotelID,
		TripInstanceID: inst.ID,
		GuestID:        req.GuestID,
		GuestName:      strings.TrimSpace(req.GuestName),
		GuestEmail:     strings.TrimSpace(req.GuestEmail),
		Seats:          req.Seats,
		Bags:           req.Bags,
		FromSeq:        req.FromSeq,
		ToSeq:          req.ToSeq,
		Pickup:         inst.Routes[req.FromSeq].StartLocation,
		Dropoff:        inst.Routes[req.ToSeq-1].EndLocation,
		Status:         domain.BookingStatusPending,
		PaymentStatus:  payment,
		PaymentMethod:  req.PaymentMethod,
		PricePerPerson: perPerson,
		TotalPrice:     total,
		Notes:          strings.TrimSpace(req.Notes),
		CreatedAt:      now,
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Bookings.Create(ctx, b); err != nil {
			return err
		}
		return repos.Bookings.AppendEvent(ctx, &domain.BookingEvent{
			ID:        uuid.New().String(),
			BookingID: b.ID,
			Kind:      domain.BookingEventCreated,
			To:        string(b.Status),
			ActorID:   actor.UserID,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.BookingOutcome("created")
	invalidateTripView(ctx, s.viewCache, inst.ID)
	s.notificationService.NotifyBooking(ctx, events.BookingCreated, b, actor.UserID)
	return b, nil
}

// Confirm accepts a pending booking and holds its seats on every leg it
// spans. The trip instance row is locked, so concurrent confirmations on
// one trip are serialized and cannot oversell it.
func (s *BookingService) Confirm(ctx context.Context, actor domain.Actor, id string) (*domain.Booking, error) {
	now := s.now().UTC()
	var out *domain.Booking
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		b, inst, err := lockBookingWithTrip(ctx, repos, id)
		if err != nil {
			return err
		}
		if err := requireRole(actor, b.HotelID, staffRoles...); err != nil {
			return err
		}
		if b.Status != domain.BookingStatusPending {
			return domain.ErrBookingNotPending
		}
		if inst.Closed() {
			return domain.ErrTripClosed
		}
		if err := inst.HoldSeats(b.FromSeq, b.ToSeq, b.Seats); err != nil {
			return err
		}
		if err := b.Confirm(actor.UserID, now); err != nil {
			return err
		}
		if err := repos.TripInstances.Update(ctx, inst); err != nil {
			return err
		}
		if err := repos.Bookings.Update(ctx, b); err != nil {
			return err
		}
		if err := appendStatusEvent(ctx, repos, b, domain.BookingStatusPending, actor.UserID, "", now); err != nil {
			return err
		}
		if err := issueToken(ctx, repos, b.ID, now); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrCapacityExceeded) {
			s.metrics.BookingOutcome("capacity_exceeded")
		}
		return nil, err
	}

	s.metrics.BookingOutcome("confirmed")
	invalidateTripView(ctx, s.viewCache, out.TripInstanceID)
	s.notificationService.NotifyBooking(ctx, events.BookingConfirmed, out, actor.UserID)
	return out, nil
}

// Reject declines a pending booking with a reason.
func (s *BookingService) Reject(ctx context.Context, actor domain.Actor, id, reason string) (*domain.Booking, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, domain.ErrReasonRequired
	}
	now := s.now().UTC()
	var out *domain.Booking
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		b, err := repos.Bookings.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := requireRole(actor, b.HotelID, staffRoles...); err != nil {
			return err
		}
		if err := b.Reject(actor.UserID, reason, now); err != nil {
			return err
		}
		if err := repos.Bookings.Update(ctx, b); err != nil {
			return err
		}
		if err := appendStatusEvent(ctx, repos, b, domain.BookingStatusPending, actor.UserID, b.RejectionReason, now); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.BookingOutcome("rejected")
	invalidateTripView(ctx, s.viewCache, out.TripInstanceID)
	s.notificationService.NotifyBooking(ctx, events.BookingRejected, out, actor.UserID)
	return out, nil
}

// Cancel closes an active booking that has not boarded, releasing any seats
// it held. Guests may cancel their own bookings.
func (s *BookingService) Cancel(ctx context.Context, actor domain.Actor, id, reason string) (*domain.Booking, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, domain.ErrReasonRequired
	}
	now := s.now().UTC()
	var out *domain.Booking
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		b, inst, err := lockBookingWithTrip(ctx, repos, id)
		if err != nil {
			return err
		}
		if err := authorizeBookingWrite(actor, b); err != nil {
			return err
		}
		if err := cancelBooking(ctx, repos, inst, b, actor.UserID, reason, now); err != nil {
			return err
		}
		if err := repos.TripInstances.Update(ctx, inst); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.BookingOutcome("cancelled")
	invalidateTripView(ctx, s.viewCache, out.TripInstanceID)
	s.notificationService.NotifyBooking(ctx, events.BookingCancelled, out, actor.UserID)
	return out, nil
}

// UpdatePaymentStatus sets the payment axis of a confirmed booking. It will
// not move a booking away from WAIVED; Unwaive does that.
func (s *BookingService) UpdatePaymentStatus(ctx context.Context, actor domain.Actor, id string, status domain.PaymentStatus) (*domain.Booking, error) {
	return s.changePayment(ctx, actor, id, "", func(b *domain.Booking) error {
		return b.SetPaymentStatus(status)
	})
}

// Unwaive lifts a waiver and records why.
func (s *BookingService) Unwaive(ctx context.Context, actor domain.Actor, id string, status domain.PaymentStatus, reason string) (*domain.Booking, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, domain.ErrReasonRequired
	}
	return s.changePayment(ctx, actor, id, strings.TrimSpace(reason), func(b *domain.Booking) error {
		return b.Unwaive(status)
	})
}

func (s *BookingService) changePayment(ctx context.Context, actor domain.Actor, id, reason string, apply func(*domain.Booking) error) (*domain.Booking, error) {
	now := s.now().UTC()
	var out *domain.Booking
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		b, err := repos.Bookings.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := requireRole(actor, b.HotelID, staffRoles...); err != nil {
			return err
		}
		from := b.PaymentStatus
		if err := apply(b); err != nil {
			return err
		}
		if err := repos.Bookings.Update(ctx, b); err != nil {
			return err
		}
		if err := repos.Bookings.AppendEvent(ctx, &domain.BookingEvent{
			ID:        uuid.New().String(),
			BookingID: b.ID,
			Kind:      domain.BookingEventPayment,
			From:      string(from),
			To:        string(b.PaymentStatus),
			ActorID:   actor.UserID,
			Reason:    reason,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.BookingOutcome("payment_" + strings.ToLower(string(out.PaymentStatus)))
	s.notificationService.NotifyBooking(ctx, events.BookingPaymentUpdated, out, actor.UserID)
	return out, nil
}

// Get retrieves a booking the caller may see.
func (s *BookingService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Booking, error) {
	b, err := s.store.Repositories().Bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeBookingRead(actor, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ListBookingsRequest narrows a booking listing.
type ListBookingsRequest struct {
	HotelID        string
	Status         domain.BookingStatus
	TripInstanceID string
	Page           repository.PageRequest
}

// List pages through a hotel's bookings, newest first.
func (s *BookingService) List(ctx context.Context, actor domain.Actor, req ListBookingsRequest) (repository.Page[*domain.Booking], error) {
	hotelID, err := scopeHotel(actor, req.HotelID)
	if err != nil {
		return repository.Page[*domain.Booking]{}, err
	}
	if err := requireRole(actor, hotelID, staffRoles...); err != nil {
		return repository.Page[*domain.Booking]{}, err
	}
	if req.Status != "" && !req.Status.Valid() {
		return repository.Page[*domain.Booking]{}, fmt.Errorf("%w: unknown booking status %q", domain.ErrValidation, req.Status)
	}
	return s.store.Repositories().Bookings.List(ctx, repository.BookingFilter{
		HotelID:        hotelID,
		Status:         req.Status,
		TripInstanceID: req.TripInstanceID,
	}, req.Page)
}

// Events returns a booking's history, oldest first.
func (s *BookingService) Events(ctx context.Context, actor domain.Actor, id string) ([]*domain.BookingEvent, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.store.Repositories().Bookings.ListEvents(ctx, id)
}

func authorizeBookingRead(actor domain.Actor, b *domain.Booking) error {
	if actor.Role == domain.RoleGuest {
		if err := requireActor(actor); err != nil {
			return err
		}
		if b.GuestID != actor.UserID {
			return ErrNotYourBooking
		}
		return nil
	}
	return requireRole(actor, b.HotelID, operatorRoles...)
}

func authorizeBookingWrite(actor domain.Actor, b *domain.Booking) error {
	if actor.Role == domain.RoleGuest {
		return authorizeBookingRead(actor, b)
	}
	return requireRole(actor, b.HotelID, staffRoles...)
}

// cancelBooking cancels b, gives back the seats it held on inst and revokes
// its check-in token. The caller holds the lock on inst and saves it.
func cancelBooking(ctx context.Context, repos repository.Repositories, inst *domain.TripInstance, b *domain.Booking, actorID, reason string, now time.Time) error {
	from := b.Status
	held := b.HoldsSeats()
	if err := b.Cancel(actorID, reason, now); err != nil {
		return err
	}
	if held {
		if err := inst.ReleaseSeats(b.FromSeq, b.ToSeq, b.Seats); err != nil {
			return err
		}
	}
	if err := repos.Bookings.Update(ctx, b); err != nil {
		return err
	}
	if held {
		if err := revokeToken(ctx, repos, b.ID); err != nil {
			return err
		}
	}
	return appendStatusEvent(ctx, repos, b, from, actorID, b.CancellationReason, now)
}

// lockBookingWithTrip locks a booking together with its trip instance.
// Transactions that touch both rows lock the trip instance first, then the
// booking, then its check-in token; the booking is read without a lock only
// to learn which trip it belongs to, which never changes.
func lockBookingWithTrip(ctx context.Context, repos repository.Repositories, id string) (*domain.Booking, *domain.TripInstance, error) {
	peek, err := repos.Bookings.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	inst, err := repos.TripInstances.GetForUpdate(ctx, peek.TripInstanceID)
	if err != nil {
		return nil, nil, err
	}
	b, err := repos.Bookings.GetForUpdate(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return b, inst, nil
}

func appendStatusEvent(ctx context.Context, repos repository.Repositories, b *domain.Booking, from domain.BookingStatus, actorID, reason string, now time.Time) error {
	return repos.Bookings.AppendEvent(ctx, &domain.BookingEvent{
		ID:        uuid.New().String(),
		BookingID: b.ID,
		Kind:      domain.BookingEventStatus,
		From:      string(from),
		To:        string(b.Status),
		ActorID:   actorID,
		Reason:    reason,
		CreatedAt: now,
	})
}

// issueToken creates the booking's check-in token unless it already has one.
func issueToken(ctx context.Context, repos repository.Repositories, bookingID string, now time.Time) error {
	existing, err := repos.CheckIns.GetByBookingID(ctx, bookingID)
	if err != nil || existing != nil {
		return err
	}
	return repos.CheckIns.Create(ctx, &domain.CheckInToken{
		ID:        uuid.New().String(),
		BookingID: bookingID,
		Status:    domain.CheckInIssued,
		IssuedAt:  now,
	})
}

func revokeToken(ctx context.Context, repos repository.Repositories, bookingID string) error {
	t, err := repos.CheckIns.GetByBookingID(ctx, bookingID)
	if err != nil || t == nil {
		return err
	}
	t.Revoke()
	return repos.CheckIns.Update(ctx, t)
}
