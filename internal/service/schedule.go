package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"shuttle/internal/domain"
	"shuttle/internal/repository"
)

// ScheduleService manages trip templates: their stops, fares and the daily
// slots each shuttle runs.
type ScheduleService struct {
	store repository.Store
	now   Clock
}

// NewScheduleService creates a new ScheduleService.
func NewScheduleService(store repository.Store) *ScheduleService {
	return &ScheduleService{store: store, now: time.Now}
}

// StopInput is one stop of a trip request.
type StopInput struct {
	LocationID string
	Charges    float64
}

// SlotInput is one slot of a trip request. ID keeps an existing slot on update.
type SlotInput struct {
	ID        string
	StartTime string
	EndTime   string
	ShuttleID string
}

// TripRequest contains the parameters for creating or replacing a trip.
type TripRequest struct {
	HotelID string
	Name    string
	Stops   []StopInput
	Slots   []SlotInput
}

// CreateTrip validates and stores a new trip template.
func (s *ScheduleService) CreateTrip(ctx context.Context, actor domain.Actor, req TripRequest) (*domain.Trip, error) {
	hotelID, err := scopeHotel(actor, req.HotelID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(actor, hotelID, adminRoles...); err != nil {
		return nil, err
	}

	trip := &domain.Trip{
		ID:        uuid.New().String(),
		HotelID:   hotelID,
		CreatedAt: s.now().UTC(),
	}
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := s.build(ctx, repos, trip, req); err != nil {
			return err
		}
		return repos.Trips.Create(ctx, trip)
	})
	if err != nil {
		return nil, err
	}
	return trip, nil
}

// UpdateTrip replaces a trip's name, stops and slots. Instances already
// materialized keep the stops and times they were created with.
func (s *ScheduleService) UpdateTrip(ctx context.Context, actor domain.Actor, id string, req TripRequest) (*domain.Trip, error) {
	var out *domain.Trip
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		trip, err := repos.Trips.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := requireRole(actor, trip.HotelID, adminRoles...); err != nil {
			return err
		}
		if err := s.build(ctx, repos, trip, req); err != nil {
			return err
		}
		if err := repos.Trips.Update(ctx, trip); err != nil {
			return err
		}
		out = trip
		return nil
	})
	return out, err
}

// GetTrip retrieves a trip template.
func (s *ScheduleService) GetTrip(ctx context.Context, actor domain.Actor, id string) (*domain.Trip, error) {
	trip, err := s.store.Repositories().Trips.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireRole(actor, trip.HotelID, operatorRoles...); err != nil {
		return nil, err
	}
	return trip, nil
}

// ListTrips returns a hotel's trip templates.
func (s *ScheduleService) ListTrips(ctx context.Context, actor domain.Actor, hotelID string) ([]*domain.Trip, error) {
	hotelID, err := scopeHotel(actor, hotelID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(actor, hotelID, operatorRoles...); err != nil {
		return nil, err
	}
	return s.store.Repositories().Trips.ListByHotel(ctx, hotelID)
}

// DeleteTrip removes a trip that has no pending or running instances.
func (s *ScheduleService) DeleteTrip(ctx context.Context, actor domain.Actor, id string) error {
	return s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		trip, err := repos.Trips.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := requireRole(actor, trip.HotelID, adminRoles...); err != nil {
			return err
		}
		open, err := repos.TripInstances.CountOpenByTrip(ctx, id)
		if err != nil {
			return err
		}
		if open > 0 {
			return ErrTripHasOpenInstances
		}
		return repos.Trips.Delete(ctx, id)
	})
}

// build fills trip from req and checks it against the rest of the hotel's
// schedule. Every slot conflict is reported at once.
func (s *ScheduleService) build(ctx context.Context, repos repository.Repositories, trip *domain.Trip, req TripRequest) error {
	trip.Name = strings.TrimSpace(req.Name)

	trip.Stops = make([]domain.Stop, 0, len(req.Stops))
	for _, in := range req.Stops {
		loc, err := repos.Locations.GetByID(ctx, in.LocationID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUnknownLocation
			}
			return err
		}
		if loc.HotelID != trip.HotelID {
			return ErrUnknownLocation
		}
		trip.Stops = append(trip.Stops, domain.Stop{
			LocationID:   loc.ID,
			LocationName: loc.Name,
			LocationType: loc.Type,
			Charges:      in.Charges,
		})
	}

	existing := make(map[string]struct{}, len(trip.Slots))
	for _, slot := range trip.Slots {
		existing[slot.ID] = struct{}{}
	}
	shuttles, err := repos.Shuttles.ListByHotel(ctx, trip.HotelID)
	if err != nil {
		return err
	}
	vehicle := make(map[string]string, len(shuttles))
	for _, sh := range shuttles {
		vehicle[sh.ID] = sh.VehicleNumber
	}

	trip.Slots = make([]domain.TripSlot, 0, len(req.Slots))
	for _, in := range req.Slots {
		slot := domain.TripSlot{
			ID:        in.ID,
			StartTime: strings.TrimSpace(in.StartTime),
			EndTime:   strings.TrimSpace(in.EndTime),
			ShuttleID: in.ShuttleID,
		}
		if _, ok := existing[slot.ID]; !ok {
			slot.ID = uuid.New().String()
		}
		if slot.ShuttleID != "" {
			if _, ok := vehicle[slot.ShuttleID]; !ok {
				return ErrUnknownShuttle
			}
		}
		trip.Slots = append(trip.Slots, slot)
	}

	if err := trip.Validate(); err != nil {
		return err
	}

	proposed, err := domain.FlattenSlots(trip)
	if err != nil {
		return err
	}
	if len(proposed) == 0 {
		return nil
	}

	others, err := repos.Trips.ListByHotel(ctx, trip.HotelID)
	if err != nil {
		return err
	}
	var scheduled []domain.ScheduledSlot
	for _, other := range others {
		if other.ID == trip.ID {
			continue
		}
		flat, err := domain.FlattenSlots(other)
		if err != nil {
			return err
		}
		scheduled = append(scheduled, flat...)
	}

	if conflicts := domain.FindSlotConflicts(proposed, scheduled); len(conflicts) > 0 {
		return domain.NewSchedulingConflictError(conflicts, func(id string) string {
			if v := vehicle[id]; v != "" {
				return v
			}
			return id
		})
	}
	return nil
}
