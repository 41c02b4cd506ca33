package repository

import (
	"context"

	"shuttle/internal/domain"
)

// LocationRepository defines the persistence operations for locations.
type LocationRepository interface {
	// Create persists a new location.
	Create(ctx context.Context, location *domain.Location) error

	// GetByID retrieves a location by ID.
	GetByID(ctx context.Context, id string) (*domain.Location, error)

	// ListByHotel retrieves the locations of a hotel ordered by name.
	ListByHotel(ctx context.Context, hotelID string) ([]*domain.Location, error)

	// Update updates an existing location.
	Update(ctx context.Context, location *domain.Location) error

	// Delete removes a location.
	Delete(ctx context.Context, id string) error

	// IsReferenced reports whether any trip stop uses the location.
	IsReferenced(ctx context.Context, id string) (bool, error)
}
