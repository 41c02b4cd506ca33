package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"shuttle/internal/domain"
	"shuttle/internal/repository"
)

// LocationService manages the stops trips are built from. Locations with an
// empty HotelID form the public registry that hotels import from.
type LocationService struct {
	store repository.Store
	now   Clock
}

// NewLocationService creates a new LocationService.
func NewLocationService(store repository.Store) *LocationService {
	return &LocationService{store: store, now: time.Now}
}

// CreateLocationRequest contains the parameters for creating a location.
type CreateLocationRequest struct {
	HotelID string // empty creates a public location (super admin only)
	Name    string
	Address string
	Lat     float64
	Lng     float64
	Type    domain.LocationType
}

// Create adds a location to a hotel or to the public registry.
func (s *LocationService) Create(ctx context.Context, actor domain.Actor, req CreateLocationRequest) (*domain.Location, error) {
	hotelID := req.HotelID
	if hotelID == "" && actor.Role != domain.RoleSuperAdmin {
		if actor.HotelID == "" {
			return nil, ErrHotelRequired
		}
		hotelID = actor.HotelID
	}
	if err := requireRole(actor, hotelID, adminRoles...); err != nil {
		return nil, err
	}

	loc := &domain.Location{
		ID:        uuid.New().String(),
		HotelID:   hotelID,
		Name:      strings.TrimSpace(req.Name),
		Address:   strings.TrimSpace(req.Address),
		Lat:       req.Lat,
		Lng:       req.Lng,
		Type:      req.Type,
		CreatedAt: s.now().UTC(),
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Repositories().Locations.Create(ctx, loc); err != nil {
		return nil, err
	}
	return loc, nil
}

// Import clones a public location into the caller's hotel. The copy keeps
// its coordinates and type fixed.
func (s *LocationService) Import(ctx context.Context, actor domain.Actor, hotelID, sourceID string) (*domain.Location, error) {
	hotelID, err := scopeHotel(actor, hotelID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(actor, hotelID, adminRoles...); err != nil {
		return nil, err
	}

	repos := s.store.Repositories()
	src, err := repos.Locations.GetByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if src.HotelID != "" {
		return nil, ErrNotPublicLocation
	}

	clone := *src
	clone.ID = uuid.New().String()
	clone.HotelID = hotelID
	clone.ClonedFrom = src.ID
	clone.CreatedAt = s.now().UTC()
	if err := repos.Locations.Create(ctx, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}

// Get retrieves a location visible to the caller.
func (s *LocationService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Location, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	loc, err := s.store.Repositories().Locations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if loc.HotelID != "" && !actor.CanAccessHotel(loc.HotelID) {
		return nil, ErrWrongHotel
	}
	return loc, nil
}

// List returns a hotel's locations, or the public registry when public is set.
func (s *LocationService) List(ctx context.Context, actor domain.Actor, hotelID string, public bool) ([]*domain.Location, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if public {
		return s.store.Repositories().Locations.ListByHotel(ctx, "")
	}
	hotelID, err := scopeHotel(actor, hotelID)
	if err != nil {
		return nil, err
	}
	return s.store.Repositories().Locations.ListByHotel(ctx, hotelID)
}

// Update applies a partial update.
func (s *LocationService) Update(ctx context.Context, actor domain.Actor, id string, u domain.LocationUpdate) (*domain.Location, error) {
	var out *domain.Location
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		loc, err := repos.Locations.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authorizeWrite(actor, loc); err != nil {
			return err
		}
		if err := loc.Apply(u); err != nil {
			return err
		}
		if err := repos.Locations.Update(ctx, loc); err != nil {
			return err
		}
		out = loc
		return nil
	})
	return out, err
}

// Delete removes a location no trip stops at.
func (s *LocationService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	return s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		loc, err := repos.Locations.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.authorizeWrite(actor, loc); err != nil {
			return err
		}
		used, err := repos.Locations.IsReferenced(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return ErrLocationInUse
		}
		return repos.Locations.Delete(ctx, id)
	})
}

func (s *LocationService) authorizeWrite(actor domain.Actor, loc *domain.Location) error {
	if loc.HotelID == "" {
		return requireRole(actor, "", domain.RoleSuperAdmin)
	}
	return requireRole(actor, loc.HotelID, adminRoles...)
}

