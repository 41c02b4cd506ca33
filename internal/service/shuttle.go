package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"shuttle/internal/domain"
	"shuttle/internal/events"
	"shuttle/internal/redis"
	"shuttle/internal/repository"
)

// ShuttleService manages vehicles, which driver operates which shuttle, and
// where each shuttle currently is.
type ShuttleService struct {
	store               repository.Store
	lockStore           redis.LockStoreInterface
	positionStore       redis.PositionStoreInterface
	notificationService *NotificationService
	loc                 *time.Location
	lockTTL             time.Duration
	now                 Clock
}

// NewShuttleService creates a new ShuttleService.
func NewShuttleService(
	store repository.Store,
	lockStore redis.LockStoreInterface,
	positionStore redis.PositionStoreInterface,
	notificationService *NotificationService,
	loc *time.Location,
	lockTTL time.Duration,
) *ShuttleService {
	if loc == nil {
		loc = time.UTC
	}
	return &ShuttleService{
		store:               store,
		lockStore:           lockStore,
		positionStore:       positionStore,
		notificationService: notificationService,
		loc:                 loc,
		lockTTL:             lockTTL,
		now:                 time.Now,
	}
}

// SetClock replaces the service clock.
func (s *ShuttleService) SetClock(c Clock) { s.now = clockOrNow(c) }

// ShuttleRequest contains the editable shuttle fields.
type ShuttleRequest struct {
	HotelID       string
	VehicleNumber string
	TotalSeats    int
}

// Create registers a shuttle. Vehicle numbers are unique per hotel.
func (s *ShuttleService) Create(ctx context.Context, actor domain.Actor, req ShuttleRequest) (*domain.Shuttle, error) {
	hotelID, err := scopeHotel(actor, req.HotelID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(actor, hotelID, adminRoles...); err != nil {
		return nil, err
	}

	shuttle := &domain.Shuttle{
		ID:            uuid.New().String(),
		HotelID:       hotelID,
		VehicleNumber: req.VehicleNumber,
		TotalSeats:    req.TotalSeats,
		CreatedAt:     s.now().UTC(),
	}
	if err := shuttle.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Repositories().Shuttles.Create(ctx, shuttle); err != nil {
		return nil, err
	}
	return shuttle, nil
}

// Get retrieves a shuttle of the caller's hotel.
func (s *ShuttleService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Shuttle, error) {
	shuttle, err := s.store.Repositories().Shuttles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireRole(actor, shuttle.HotelID, operatorRoles...); err != nil {
		return nil, err
	}
	return shuttle, nil
}

// List returns a hotel's shuttles.
func (s *ShuttleService) List(ctx context.Context, actor domain.Actor, hotelID string) ([]*domain.Shuttle, error) {
	hotelID, err := scopeHotel(actor, hotelID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(actor, hotelID, operatorRoles...); err != nil {
		return nil, err
	}
	return s.store.Repositories().Shuttles.ListByHotel(ctx, hotelID)
}

// Update changes the vehicle number or seat count. Existing trip instances
// keep the capacity they were materialized with.
func (s *ShuttleService) Update(ctx context.Context, actor domain.Actor, id string, req ShuttleRequest) (*domain.Shuttle, error) {
	var out *domain.Shuttle
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		shuttle, err := repos.Shuttles.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := requireRole(actor, shuttle.HotelID, adminRoles...); err != nil {
			return err
		}
		if strings.TrimSpace(req.VehicleNumber) != "" {
			shuttle.VehicleNumber = req.VehicleNumber
		}
		if req.TotalSeats != 0 {
			shuttle.TotalSeats = req.TotalSeats
		}
		if err := shuttle.Validate(); err != nil {
			return err
		}
		if err := repos.Shuttles.Update(ctx, shuttle); err != nil {
			return err
		}
		out = shuttle
		return nil
	})
	return out, err
}

// Delete removes a shuttle. It is refused while any trip slot still uses it;
// the driver assignment, if any, goes with it.
func (s *ShuttleService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		shuttle, err := repos.Shuttles.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := requireRole(actor, shuttle.HotelID, adminRoles...); err != nil {
			return err
		}
		n, err := repos.Trips.CountSlotsByShuttle(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrShuttleInUse
		}
		return repos.Shuttles.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	if err := s.positionStore.RemovePosition(ctx, id); err != nil {
		log.Printf("remove position of deleted shuttle %s: %v", id, err)
	}
	return nil
}

// AssignDriverRequest contains the parameters for assigning a driver.
type AssignDriverRequest struct {
	DriverID   string
	DriverName string
	ShuttleID  string
}

// AssignmentResult describes an assignment and what it displaced.
type AssignmentResult struct {
	Assignment        *domain.DriverAssignment
	DisplacedDriverID string // previous driver of the shuttle
	PreviousShuttleID string // shuttle the driver left
	TripCountToday    int
}

// AssignDriver points a driver at a shuttle. A driver already on the shuttle
// is displaced, and the driver leaves any shuttle they held before, all in
// one transaction so both sides stay unique.
func (s *ShuttleService) AssignDriver(ctx context.Context, actor domain.Actor, req AssignDriverRequest) (*AssignmentResult, error) {
	if req.DriverID == "" {
		return nil, ErrInvalidDriverID
	}

	shuttle, err := s.store.Repositories().Shuttles.GetByID(ctx, req.ShuttleID)
	if err != nil {
		return nil, err
	}
	if err := authorizeDriverAction(actor, shuttle.HotelID, req.DriverID); err != nil {
		return nil, err
	}

	lockToken, err := s.lockStore.AcquireShuttleLock(ctx, shuttle.ID, s.lockTTL)
	if err != nil {
		return nil, err
	}
	if lockToken == "" {
		return nil, ErrShuttleBusy
	}
	defer func() {
		if err := s.lockStore.ReleaseShuttleLock(ctx, shuttle.ID, lockToken); err != nil {
			log.Printf("release shuttle lock %s: %v", shuttle.ID, err)
		}
	}()

	now := s.now()
	result := &AssignmentResult{}
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		active, err := repos.TripInstances.GetActiveByDriverID(ctx, req.DriverID)
		if err != nil {
			return err
		}
		if active != nil && active.ShuttleID != shuttle.ID {
			return ErrDriverHasActiveTrip
		}

		holder, err := repos.Assignments.GetByShuttle(ctx, shuttle.ID)
		if err != nil {
			return err
		}
		if holder != nil && holder.DriverID == req.DriverID {
			result.Assignment = holder
			return nil
		}
		if holder != nil {
			busy, err := repos.TripInstances.GetActiveByDriverID(ctx, holder.DriverID)
			if err != nil {
				return err
			}
			if busy != nil {
				return ErrDriverHasActiveTrip
			}
			if _, err := repos.Assignments.DeleteByShuttle(ctx, shuttle.ID); err != nil {
				return err
			}
			result.DisplacedDriverID = holder.DriverID
		}

		previous, err := repos.Assignments.GetByDriver(ctx, req.DriverID)
		if err != nil {
			return err
		}
		if previous != nil {
			if _, err := repos.Assignments.DeleteByDriver(ctx, req.DriverID); err != nil {
				return err
			}
			result.PreviousShuttleID = previous.ShuttleID
		}

		a := &domain.DriverAssignment{
			DriverID:   req.DriverID,
			DriverName: strings.TrimSpace(req.DriverName),
			ShuttleID:  shuttle.ID,
			HotelID:    shuttle.HotelID,
			AssignedAt: now.UTC(),
		}
		if err := repos.Assignments.Create(ctx, a); err != nil {
			return err
		}
		result.Assignment = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	repos := s.store.Repositories()
	trips, err := repos.Trips.ListByHotel(ctx, shuttle.HotelID)
	if err != nil {
		return nil, err
	}
	count, _, err := tripsOn(ctx, repos, trips, shuttle.ID, serviceDate(now, s.loc))
	if err != nil {
		return nil, err
	}
	result.TripCountToday = count

	if result.DisplacedDriverID != "" {
		s.notificationService.NotifyAssignment(ctx, events.ShuttleUnassigned, &domain.DriverAssignment{
			DriverID: result.DisplacedDriverID, ShuttleID: shuttle.ID, HotelID: shuttle.HotelID,
		}, "")
	}
	s.notificationService.NotifyAssignment(ctx, events.ShuttleAssigned, result.Assignment, result.DisplacedDriverID)
	return result, nil
}

// UnassignDriver clears the driver's shuttle. It reports false, without
// error, when the driver had none.
func (s *ShuttleService) UnassignDriver(ctx context.Context, actor domain.Actor, driverID string) (bool, error) {
	if driverID == "" {
		return false, ErrInvalidDriverID
	}

	var removed *domain.DriverAssignment
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		a, err := repos.Assignments.GetByDriver(ctx, driverID)
		if err != nil {
			return err
		}
		if a == nil {
			if actor.Role == domain.RoleDriver && actor.UserID != driverID {
				return ErrRoleNotAllowed
			}
			return nil
		}
		if err := authorizeDriverAction(actor, a.HotelID, driverID); err != nil {
			return err
		}
		active, err := repos.TripInstances.GetActiveByDriverID(ctx, driverID)
		if err != nil {
			return err
		}
		if active != nil {
			return ErrDriverHasActiveTrip
		}
		if _, err := repos.Assignments.DeleteByDriver(ctx, driverID); err != nil {
			return err
		}
		removed = a
		return nil
	})
	if err != nil || removed == nil {
		return false, err
	}

	if err := s.positionStore.RemovePosition(ctx, removed.ShuttleID); err != nil {
		log.Printf("remove position of shuttle %s: %v", removed.ShuttleID, err)
	}
	s.notificationService.NotifyAssignment(ctx, events.ShuttleUnassigned, removed, "")
	return true, nil
}

// ListAssignments returns the current assignments of a hotel.
func (s *ShuttleService) ListAssignments(ctx context.Context, actor domain.Actor, hotelID string) ([]*domain.DriverAssignment, error) {
	hotelID, err := scopeHotel(actor, hotelID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(actor, hotelID, staffRoles...); err != nil {
		return nil, err
	}
	return s.store.Repositories().Assignments.ListByHotel(ctx, hotelID)
}

// ShuttleAvailability is one row of a driver's shuttle picker.
type ShuttleAvailability struct {
	Shuttle             *domain.Shuttle
	CurrentlyAssignedTo string // driver name, or id when no name is known
	IsAssignedToMe      bool
	TripCountToday      int
	TotalBookingsToday  int
	TotalSeats          int
}

// AvailableShuttles lists the hotel's shuttles with today's workload.
func (s *ShuttleService) AvailableShuttles(ctx context.Context, actor domain.Actor) ([]ShuttleAvailability, error) {
	if err := requireRole(actor, actor.HotelID, domain.RoleDriver); err != nil {
		return nil, err
	}

	repos := s.store.Repositories()
	shuttles, err := repos.Shuttles.ListByHotel(ctx, actor.HotelID)
	if err != nil {
		return nil, err
	}
	assignments, err := repos.Assignments.ListByHotel(ctx, actor.HotelID)
	if err != nil {
		return nil, err
	}
	byShuttle := make(map[string]*domain.DriverAssignment, len(assignments))
	for _, a := range assignments {
		byShuttle[a.ShuttleID] = a
	}

	trips, err := repos.Trips.ListByHotel(ctx, actor.HotelID)
	if err != nil {
		return nil, err
	}

	today := serviceDate(s.now(), s.loc)
	out := make([]ShuttleAvailability, 0, len(shuttles))
	for _, sh := range shuttles {
		row := ShuttleAvailability{Shuttle: sh, TotalSeats: sh.TotalSeats}
		if a, ok := byShuttle[sh.ID]; ok {
			row.CurrentlyAssignedTo = a.DriverName
			if row.CurrentlyAssignedTo == "" {
				row.CurrentlyAssignedTo = a.DriverID
			}
			row.IsAssignedToMe = a.DriverID == actor.UserID
		}

		count, instances, err := tripsOn(ctx, repos, trips, sh.ID, today)
		if err != nil {
			return nil, err
		}
		row.TripCountToday = count
		for _, inst := range instances {
			bookings, err := repos.Bookings.ListByTripInstance(ctx, inst.ID)
			if err != nil {
				return nil, err
			}
			row.TotalBookingsToday += domain.SummarizeBookings(bookings).BookingCount
		}
		out = append(out, row)
	}
	return out, nil
}

// tripsOn counts a shuttle's trips on date: the instances already
// materialized plus the bound slots that have none yet. It also returns the
// materialized instances.
func tripsOn(ctx context.Context, repos repository.Repositories, trips []*domain.Trip, shuttleID, date string) (int, []*domain.TripInstance, error) {
	instances, err := repos.TripInstances.ListByShuttleAndDate(ctx, shuttleID, date)
	if err != nil {
		return 0, nil, err
	}
	materialized := make(map[string]bool, len(instances))
	for _, inst := range instances {
		materialized[inst.TripSlotID] = true
	}
	count := len(instances)
	for _, trip := range trips {
		for _, slot := range trip.Slots {
			if slot.ShuttleID != shuttleID || materialized[slot.ID] {
				continue
			}
			// A slot rebound after materializing keeps its instance on the old shuttle.
			existing, err := repos.TripInstances.GetBySlotAndDate(ctx, slot.ID, date)
			if err != nil {
				return 0, nil, err
			}
			if existing == nil {
				count++
			}
		}
	}
	return count, instances, nil
}

// ReportPosition records where the driver's shuttle is.
func (s *ShuttleService) ReportPosition(ctx context.Context, actor domain.Actor, lat, lng float64) error {
	if err := requireRole(actor, "", domain.RoleDriver); err != nil {
		return err
	}
	if !domain.ValidCoordinates(lat, lng) {
		return domain.ErrInvalidCoordinates
	}
	a, err := s.store.Repositories().Assignments.GetByDriver(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if a == nil {
		return ErrNoShuttleAssigned
	}
	return s.positionStore.UpdatePosition(ctx, a.ShuttleID, lat, lng)
}

// authorizeDriverAction lets drivers act on themselves and admins act on
// any driver of their hotel.
func authorizeDriverAction(actor domain.Actor, hotelID, driverID string) error {
	if actor.Role == domain.RoleDriver {
		if actor.UserID != driverID {
			return ErrRoleNotAllowed
		}
		return requireRole(actor, hotelID, domain.RoleDriver)
	}
	return requireRole(actor, hotelID, adminRoles...)
}
