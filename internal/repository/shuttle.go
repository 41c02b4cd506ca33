package repository

import (
	"context"

	"shuttle/internal/domain"
)

// ShuttleRepository defines the persistence operations for shuttles.
type ShuttleRepository interface {
	// Create persists a new shuttle. Returns ErrDuplicate when the vehicle
	// number is already used inside the hotel.
	Create(ctx context.Context, shuttle *domain.Shuttle) error

	// GetByID retrieves a shuttle by ID.
	GetByID(ctx context.Context, id string) (*domain.Shuttle, error)

	// ListByHotel retrieves a hotel's shuttles ordered by vehicle number.
	ListByHotel(ctx context.Context, hotelID string) ([]*domain.Shuttle, error)

	// Update updates an existing shuttle.
	Update(ctx context.Context, shuttle *domain.Shuttle) error

	// Delete removes a shuttle.
	Delete(ctx context.Context, id string) error
}

// AssignmentRepository defines the persistence operations for driver to
// shuttle assignments. Both sides are unique.
type AssignmentRepository interface {
	// GetByDriver returns nil if the driver has no shuttle.
	GetByDriver(ctx context.Context, driverID string) (*domain.DriverAssignment, error)

	// GetByShuttle returns nil if the shuttle has no driver.
	GetByShuttle(ctx context.Context, shuttleID string) (*domain.DriverAssignment, error)

	// ListByHotel retrieves every assignment of a hotel.
	ListByHotel(ctx context.Context, hotelID string) ([]*domain.DriverAssignment, error)

	// Create records an assignment.
	Create(ctx context.Context, assignment *domain.DriverAssignment) error

	// DeleteByDriver removes the driver's assignment and reports whether one existed.
	DeleteByDriver(ctx context.Context, driverID string) (bool, error)

	// DeleteByShuttle removes the shuttle's assignment and reports whether one existed.
	DeleteByShuttle(ctx context.Context, shuttleID string) (bool, error)
}
