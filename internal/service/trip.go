package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"shuttle/internal/domain"
	"shuttle/internal/events"
	"shuttle/internal/redis"
	"shuttle/internal/repository"
)

// autoCancelReason is recorded on bookings still pending when a trip ends.
const autoCancelReason = "Trip ended before the booking was confirmed"

// TripService materializes trip instances from templates and drives them
// through their lifecycle: start, phase change, legs, end.
type TripService struct {
	store               repository.Store
	positionStore       redis.PositionStoreInterface
	viewCache           redis.ViewCacheInterface // optional
	notificationService *NotificationService
	metrics             Metrics
	loc                 *time.Location
	startLead           time.Duration
	speedKmh            float64
	now                 Clock
}

// TripSettings holds the operational knobs of TripService.
type TripSettings struct {
	Location        *time.Location
	StartLead       time.Duration // how long before the slot a driver may start
	AverageSpeedKmh float64
}

// NewTripService creates a new TripService. viewCache and metrics may be nil.
func NewTripService(
	store repository.Store,
	positionStore redis.PositionStoreInterface,
	viewCache redis.ViewCacheInterface,
	notificationService *NotificationService,
	metrics Metrics,
	settings TripSettings,
) *TripService {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.AverageSpeedKmh <= 0 {
		settings.AverageSpeedKmh = 40
	}
	return &TripService{
		store:               store,
		positionStore:       positionStore,
		viewCache:           viewCache,
		notificationService: notificationService,
		metrics:             metricsOrNoop(metrics),
		loc:                 settings.Location,
		startLead:           settings.StartLead,
		speedKmh:            settings.AverageSpeedKmh,
		now:                 time.Now,
	}
}

// SetClock replaces the service clock.
func (s *TripService) SetClock(c Clock) { s.now = clockOrNow(c) }

// TripInstanceView is a trip instance with the figures derived from its
// live bookings and, while running, the shuttle's progress.
type TripInstanceView struct {
	Instance *domain.TripInstance
	Summary  domain.BookingSummary
	Position *redis.ShuttlePosition
	NextStop *NextStopETA
}

// NextStopETA estimates the arrival at the end of the current leg.
type NextStopETA struct {
	RouteInstanceID string
	Location        string
	DistanceKm      float64
	ETA             time.Time
}

// cachedTrip is the part of a view that only changes on writes.
type cachedTrip struct {
	Instance *domain.TripInstance
	Summary  domain.BookingSummary
}

// Materialize creates the instances of every shuttle-bound slot of a hotel
// for a date. Slots that already have an instance are left alone.
func (s *TripService) Materialize(ctx context.Context, actor domain.Actor, hotelID, date string) ([]*domain.TripInstance, error) {
	hotelID, err := scopeHotel(actor, hotelID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(actor, hotelID, staffRoles...); err != nil {
		return nil, err
	}
	if _, err := domain.ParseDate(date); err != nil {
		return nil, err
	}

	var created []*domain.TripInstance
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		created, err = s.materialize(ctx, repos, hotelID, date, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	for range created {
		s.metrics.TripEvent("materialized")
	}
	return created, nil
}

// materialize creates missing instances for hotelID on date. A non-empty
// shuttleID limits it to that shuttle's slots.
func (s *TripService) materialize(ctx context.Context, repos repository.Repositories, hotelID, date, shuttleID string) ([]*domain.TripInstance, error) {
	day, err := domain.ParseDate(date)
	if err != nil {
		return nil, err
	}
	trips, err := repos.Trips.ListByHotel(ctx, hotelID)
	if err != nil {
		return nil, err
	}

	shuttles := make(map[string]*domain.Shuttle)
	var created []*domain.TripInstance
	for _, trip := range trips {
		for _, slot := range trip.Slots {
			if slot.ShuttleID == "" || (shuttleID != "" && slot.ShuttleID != shuttleID) {
				continue
			}
			existing, err := repos.TripInstances.GetBySlotAndDate(ctx, slot.ID, date)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				continue
			}

			shuttle, ok := shuttles[slot.ShuttleID]
			if !ok {
				shuttle, err = repos.Shuttles.GetByID(ctx, slot.ShuttleID)
				if err != nil {
					return nil, err
				}
				shuttles[slot.ShuttleID] = shuttle
			}

			inst, err := s.newInstance(trip, slot, shuttle, day, date)
			if err != nil {
				return nil, err
			}
			if err := repos.TripInstances.Create(ctx, inst); err != nil {
				return nil, err
			}
			created = append(created, inst)
		}
	}
	return created, nil
}

func (s *TripService) newInstance(trip *domain.Trip, slot domain.TripSlot, shuttle *domain.Shuttle, day time.Time, date string) (*domain.TripInstance, error) {
	start, end, err := slot.Window()
	if err != nil {
		return nil, err
	}
	inst := &domain.TripInstance{
		ID:             uuid.New().String(),
		HotelID:        trip.HotelID,
		TripID:         trip.ID,
		TripSlotID:     slot.ID,
		TripName:       trip.Name,
		Direction:      trip.Direction(),
		ShuttleID:      shuttle.ID,
		ScheduledDate:  date,
		ScheduledStart: start.On(day, s.loc),
		ScheduledEnd:   end.On(day, s.loc),
		Status:         domain.TripStatusPending,
		Phase:          domain.PhaseOutbound,
		Capacity:       shuttle.TotalSeats,
		CreatedAt:      s.now().UTC(),
	}
	for i := 0; i+1 < len(trip.Stops); i++ {
		from, to := trip.Stops[i], trip.Stops[i+1]
		inst.Routes = append(inst.Routes, domain.RouteInstance{
			ID:              uuid.New().String(),
			TripInstanceID:  inst.ID,
			Seq:             i,
			StartLocationID: from.LocationID,
			StartLocation:   from.LocationName,
			EndLocationID:   to.LocationID,
			EndLocation:     to.LocationName,
			Charges:         from.Charges,
		})
	}
	return inst, nil
}

// List pages through a hotel's instances on a date.
func (s *TripService) List(ctx context.Context, actor domain.Actor, hotelID, date string, page repository.PageRequest) (repository.Page[*TripInstanceView], error) {
	var out repository.Page[*TripInstanceView]
	hotelID, err := scopeHotel(actor, hotelID)
	if err != nil {
		return out, err
	}
	if err := requireRole(actor, hotelID, viewerRoles...); err != nil {
		return out, err
	}
	if _, err := domain.ParseDate(date); err != nil {
		return out, err
	}

	repos := s.store.Repositories()
	instances, err := repos.TripInstances.ListByHotelAndDate(ctx, hotelID, date, page)
	if err != nil {
		return out, err
	}
	out.NextCursor = instances.NextCursor
	out.IsDone = instances.IsDone
	out.Items = make([]*TripInstanceView, 0, len(instances.Items))
	for _, inst := range instances.Items {
		view, err := s.buildView(ctx, repos, inst)
		if err != nil {
			return out, err
		}
		out.Items = append(out.Items, view)
	}
	return out, nil
}

// Get retrieves one instance with its legs, derived figures and live ETA.
func (s *TripService) Get(ctx context.Context, actor domain.Actor, id string) (*TripInstanceView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var cached cachedTrip
	hit := false
	if s.viewCache != nil {
		var err error
		hit, err = s.viewCache.GetTripView(ctx, id, &cached)
		if err != nil {
			log.Printf("trip view cache get %s: %v", id, err)
			hit = false
		}
	}

	repos := s.store.Repositories()
	var view *TripInstanceView
	if hit && cached.Instance != nil {
		view = &TripInstanceView{Instance: cached.Instance, Summary: cached.Summary}
	} else {
		inst, err := repos.TripInstances.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		view, err = s.buildView(ctx, repos, inst)
		if err != nil {
			return nil, err
		}
		if s.viewCache != nil {
			if err := s.viewCache.SetTripView(ctx, id, cachedTrip{Instance: view.Instance, Summary: view.Summary}); err != nil {
				log.Printf("trip view cache set %s: %v", id, err)
			}
		}
	}

	if err := requireRole(actor, view.Instance.HotelID, viewerRoles...); err != nil {
		return nil, err
	}
	if err := s.attachProgress(ctx, repos, view); err != nil {
		return nil, err
	}
	return view, nil
}

// Current returns the driver's running trip, or nil.
func (s *TripService) Current(ctx context.Context, actor domain.Actor) (*TripInstanceView, error) {
	if err := requireRole(actor, "", domain.RoleDriver); err != nil {
		return nil, err
	}
	repos := s.store.Repositories()
	inst, err := repos.TripInstances.GetActiveByDriverID(ctx, actor.UserID)
	if err != nil || inst == nil {
		return nil, err
	}
	view, err := s.buildView(ctx, repos, inst)
	if err != nil {
		return nil, err
	}
	if err := s.attachProgress(ctx, repos, view); err != nil {
		return nil, err
	}
	return view, nil
}

// Available lists today's pending instances on the driver's shuttle,
// optionally narrowed to one direction.
func (s *TripService) Available(ctx context.Context, actor domain.Actor, direction domain.Direction) ([]*TripInstanceView, error) {
	if err := requireRole(actor, "", domain.RoleDriver); err != nil {
		return nil, err
	}
	if direction != "" && !direction.Valid() {
		return nil, ErrInvalidDirection
	}

	today := serviceDate(s.now(), s.loc)
	var instances []*domain.TripInstance
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		a, err := repos.Assignments.GetByDriver(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if a == nil {
			return ErrNoShuttleAssigned
		}
		if _, err := s.materialize(ctx, repos, a.HotelID, today, a.ShuttleID); err != nil {
			return err
		}
		instances, err = repos.TripInstances.ListByShuttleAndDate(ctx, a.ShuttleID, today)
		return err
	})
	if err != nil {
		return nil, err
	}

	repos := s.store.Repositories()
	out := make([]*TripInstanceView, 0, len(instances))
	for _, inst := range instances {
		if inst.Status != domain.TripStatusPending || (direction != "" && inst.Direction != direction) {
			continue
		}
		view, err := s.buildView(ctx, repos, inst)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}

// Start begins the earliest pending instance on the driver's shuttle whose
// window is open now, optionally matching a direction.
func (s *TripService) Start(ctx context.Context, actor domain.Actor, direction domain.Direction) (*domain.TripInstance, error) {
	if err := requireRole(actor, "", domain.RoleDriver); err != nil {
		return nil, err
	}
	if direction != "" && !direction.Valid() {
		return nil, ErrInvalidDirection
	}
	return s.start(ctx, actor, func(candidates []*domain.TripInstance, now time.Time) *domain.TripInstance {
		for _, inst := range candidates {
			if direction != "" && inst.Direction != direction {
				continue
			}
			if s.startable(inst, now) {
				return inst
			}
		}
		return nil
	})
}

// StartInstance begins a specific pending instance of the driver's shuttle.
func (s *TripService) StartInstance(ctx context.Context, actor domain.Actor, id string) (*domain.TripInstance, error) {
	if err := requireRole(actor, "", domain.RoleDriver); err != nil {
		return nil, err
	}
	return s.start(ctx, actor, func(candidates []*domain.TripInstance, now time.Time) *domain.TripInstance {
		for _, inst := range candidates {
			if inst.ID == id && s.startable(inst, now) {
				return inst
			}
		}
		return nil
	})
}

func (s *TripService) startable(inst *domain.TripInstance, now time.Time) bool {
	return inst.Status == domain.TripStatusPending &&
		!now.Before(inst.ScheduledStart.Add(-s.startLead)) &&
		now.Before(inst.ScheduledEnd)
}

func (s *TripService) start(ctx context.Context, actor domain.Actor, pick func([]*domain.TripInstance, time.Time) *domain.TripInstance) (*domain.TripInstance, error) {
	now := s.now()
	today := serviceDate(now, s.loc)

	var started *domain.TripInstance
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		active, err := repos.TripInstances.GetActiveByDriverID(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if active != nil {
			return ErrDriverHasActiveTrip
		}
		a, err := repos.Assignments.GetByDriver(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if a == nil {
			return ErrNoShuttleAssigned
		}
		if _, err := s.materialize(ctx, repos, a.HotelID, today, a.ShuttleID); err != nil {
			return err
		}
		candidates, err := repos.TripInstances.ListByShuttleAndDate(ctx, a.ShuttleID, today)
		if err != nil {
			return err
		}
		chosen := pick(candidates, now)
		if chosen == nil {
			return ErrNoEligibleTrip
		}

		inst, err := repos.TripInstances.GetForUpdate(ctx, chosen.ID)
		if err != nil {
			return err
		}
		if err := inst.Start(actor.UserID, now.UTC()); err != nil {
			return err
		}
		if err := repos.TripInstances.Update(ctx, inst); err != nil {
			return err
		}
		started = inst
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTripChange(ctx, "started", started.ID)
	s.notificationService.NotifyTrip(ctx, events.TripStarted, started, nil)
	return started, nil
}

// TransitionPhase moves a running round trip into its return phase.
func (s *TripService) TransitionPhase(ctx context.Context, actor domain.Actor, id string, phase domain.TripPhase) (*domain.TripInstance, error) {
	inst, err := s.mutate(ctx, actor, id, func(ctx context.Context, repos repository.Repositories, inst *domain.TripInstance) error {
		return inst.TransitionPhase(phase)
	})
	if err != nil {
		return nil, err
	}
	s.afterTripChange(ctx, "phase_changed", inst.ID)
	s.notificationService.NotifyTrip(ctx, events.TripPhaseChanged, inst, nil)
	return inst, nil
}

// EndTripSummary reports what happened to the bookings of an ended trip.
type EndTripSummary struct {
	Instance          *domain.TripInstance
	CompletedBookings int
	CancelledBookings int
	NoShows           int // confirmed but never checked in
}

// End completes a running trip. Bookings still pending are cancelled with an
// automatic reason and confirmed passengers who never boarded are reported as
// no-shows; either one needs the driver's acknowledgement up front.
func (s *TripService) End(ctx context.Context, actor domain.Actor, id string, acknowledge bool) (*EndTripSummary, error) {
	now := s.now().UTC()
	summary := &EndTripSummary{}
	var cancelled []*domain.Booking

	inst, err := s.mutate(ctx, actor, id, func(ctx context.Context, repos repository.Repositories, inst *domain.TripInstance) error {
		if inst.Status != domain.TripStatusInProgress {
			return domain.ErrTripNotInProgress
		}
		bookings, err := repos.Bookings.ListByTripInstance(ctx, inst.ID)
		if err != nil {
			return err
		}

		var pending []*domain.Booking
		for _, b := range bookings {
			switch b.Status {
			case domain.BookingStatusPending:
				pending = append(pending, b)
			case domain.BookingStatusConfirmed:
				summary.CompletedBookings++
				if !b.CheckedIn() {
					summary.NoShows++
				}
			}
		}
		if (len(pending) > 0 || summary.NoShows > 0) && !acknowledge {
			return ErrAcknowledgementRequired
		}

		for _, b := range pending {
			if err := cancelBooking(ctx, repos, inst, b, actor.UserID, autoCancelReason, now); err != nil {
				return err
			}
		}
		summary.CancelledBookings = len(pending)
		cancelled = pending
		return inst.End(now)
	})
	if err != nil {
		return nil, err
	}
	summary.Instance = inst

	s.afterTripChange(ctx, "ended", inst.ID)
	for _, b := range cancelled {
		s.notificationService.NotifyBooking(ctx, events.BookingCancelled, b, actor.UserID)
	}
	s.notificationService.NotifyTrip(ctx, events.TripEnded, inst, map[string]any{
		"completedBookings": summary.CompletedBookings,
		"cancelledBookings": summary.CancelledBookings,
		"noShows":           summary.NoShows,
	})
	return summary, nil
}

// Cancel aborts a trip instance and cancels its bookings that have not boarded.
func (s *TripService) Cancel(ctx context.Context, actor domain.Actor, id, reason string) (*domain.TripInstance, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.ErrReasonRequired
	}
	now := s.now().UTC()
	var cancelled []*domain.Booking

	var out *domain.TripInstance
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		inst, err := repos.TripInstances.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := requireRole(actor, inst.HotelID, adminRoles...); err != nil {
			return err
		}
		if err := inst.Cancel(now); err != nil {
			return err
		}
		bookings, err := repos.Bookings.ListByTripInstance(ctx, inst.ID)
		if err != nil {
			return err
		}
		for _, b := range bookings {
			if !b.Active() || b.CheckedIn() {
				continue
			}
			if err := cancelBooking(ctx, repos, inst, b, actor.UserID, reason, now); err != nil {
				return err
			}
			cancelled = append(cancelled, b)
		}
		if err := repos.TripInstances.Update(ctx, inst); err != nil {
			return err
		}
		out = inst
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTripChange(ctx, "cancelled", out.ID)
	for _, b := range cancelled {
		s.notificationService.NotifyBooking(ctx, events.BookingCancelled, b, actor.UserID)
	}
	s.notificationService.NotifyTrip(ctx, events.TripEnded, out, map[string]any{
		"cancelledBookings": len(cancelled),
		"reason":            reason,
	})
	return out, nil
}

// CompleteLeg marks the current leg of a running trip completed.
func (s *TripService) CompleteLeg(ctx context.Context, actor domain.Actor, routeID string) (*TripInstanceView, error) {
	return s.finishLeg(ctx, actor, routeID, false)
}

// SkipLeg skips the current leg of a running trip. Only legs no live
// booking spans can be skipped.
func (s *TripService) SkipLeg(ctx context.Context, actor domain.Actor, routeID string) (*TripInstanceView, error) {
	return s.finishLeg(ctx, actor, routeID, true)
}

func (s *TripService) finishLeg(ctx context.Context, actor domain.Actor, routeID string, skip bool) (*TripInstanceView, error) {
	owner, err := s.store.Repositories().TripInstances.GetByRouteID(ctx, routeID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	inst, err := s.mutate(ctx, actor, owner.ID, func(ctx context.Context, repos repository.Repositories, inst *domain.TripInstance) error {
		if !skip {
			return inst.CompleteLeg(routeID, now)
		}
		bookings, err := repos.Bookings.ListByTripInstance(ctx, inst.ID)
		if err != nil {
			return err
		}
		inst.RefreshSkippable(bookings)
		return inst.SkipLeg(routeID, now)
	})
	if err != nil {
		return nil, err
	}

	kind, event := events.RouteCompleted, "leg_completed"
	if skip {
		kind, event = events.RouteSkipped, "leg_skipped"
	}
	s.afterTripChange(ctx, event, inst.ID)
	s.notificationService.NotifyRoute(ctx, kind, inst, inst.Leg(routeID))

	repos := s.store.Repositories()
	view, err := s.buildView(ctx, repos, inst)
	if err != nil {
		return nil, err
	}
	if err := s.attachProgress(ctx, repos, view); err != nil {
		return nil, err
	}
	return view, nil
}

// mutate loads an instance under lock, checks the caller may drive it, applies
// fn and saves the result in one transaction.
func (s *TripService) mutate(ctx context.Context, actor domain.Actor, id string, fn func(context.Context, repository.Repositories, *domain.TripInstance) error) (*domain.TripInstance, error) {
	var out *domain.TripInstance
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		inst, err := repos.TripInstances.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := authorizeTripDriver(actor, inst); err != nil {
			return err
		}
		if err := fn(ctx, repos, inst); err != nil {
			return err
		}
		if err := repos.TripInstances.Update(ctx, inst); err != nil {
			return err
		}
		out = inst
		return nil
	})
	return out, err
}

// authorizeTripDriver lets the driver running the trip, or an admin of its
// hotel, act on it.
func authorizeTripDriver(actor domain.Actor, inst *domain.TripInstance) error {
	if actor.Role == domain.RoleDriver {
		if err := requireRole(actor, inst.HotelID, domain.RoleDriver); err != nil {
			return err
		}
		if inst.DriverID != actor.UserID {
			return ErrNotYourTrip
		}
		return nil
	}
	return requireRole(actor, inst.HotelID, adminRoles...)
}

func (s *TripService) buildView(ctx context.Context, repos repository.Repositories, inst *domain.TripInstance) (*TripInstanceView, error) {
	bookings, err := repos.Bookings.ListByTripInstance(ctx, inst.ID)
	if err != nil {
		return nil, err
	}
	inst.RefreshSkippable(bookings)
	return &TripInstanceView{Instance: inst, Summary: domain.SummarizeBookings(bookings)}, nil
}

// attachProgress adds the shuttle position and the ETA to the end of the
// current leg. Position lookups never fail the read.
func (s *TripService) attachProgress(ctx context.Context, repos repository.Repositories, view *TripInstanceView) error {
	inst := view.Instance
	if inst.Status != domain.TripStatusInProgress {
		return nil
	}
	pos, err := s.positionStore.GetPosition(ctx, inst.ShuttleID)
	if err != nil {
		log.Printf("shuttle position %s: %v", inst.ShuttleID, err)
		return nil
	}
	if pos == nil {
		return nil
	}
	view.Position = pos

	leg := inst.CurrentLeg()
	if leg == nil {
		return nil
	}
	stop, err := repos.Locations.GetByID(ctx, leg.EndLocationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	km := domain.DistanceKm(pos.Lat, pos.Lng, stop.Lat, stop.Lng)
	travel := time.Duration(km / s.speedKmh * float64(time.Hour))
	view.NextStop = &NextStopETA{
		RouteInstanceID: leg.ID,
		Location:        leg.EndLocation,
		DistanceKm:      km,
		ETA:             s.now().UTC().Add(travel),
	}
	return nil
}

// afterTripChange records the transition and drops the cached view.
func (s *TripService) afterTripChange(ctx context.Context, event, id string) {
	s.metrics.TripEvent(event)
	invalidateTripView(ctx, s.viewCache, id)
}

func invalidateTripView(ctx context.Context, cache redis.ViewCacheInterface, ids ...string) {
	if cache == nil {
		return
	}
	if err := cache.InvalidateTripView(ctx, ids...); err != nil {
		log.Printf("trip view cache invalidate %v: %v", ids, err)
	}
}
