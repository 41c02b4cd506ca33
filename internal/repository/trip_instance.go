package repository

import (
	"context"

	"shuttle/internal/domain"
)

// TripInstanceRepository defines the persistence operations for trip
// instances. Route instances are stored and loaded with their trip instance.
type TripInstanceRepository interface {
	// Create persists a new trip instance with its route instances.
	Create(ctx context.Context, instance *domain.TripInstance) error

	// GetByID retrieves a trip instance with its legs in order.
	GetByID(ctx context.Context, id string) (*domain.TripInstance, error)

	// GetForUpdate retrieves a trip instance and locks it until the enclosing
	// transaction ends. Outside a transaction it behaves like GetByID.
	GetForUpdate(ctx context.Context, id string) (*domain.TripInstance, error)

	// GetBySlotAndDate retrieves the instance of a slot on a date.
	// Returns nil if none was materialized.
	GetBySlotAndDate(ctx context.Context, slotID, date string) (*domain.TripInstance, error)

	// GetByRouteID retrieves the trip instance owning a route instance.
	GetByRouteID(ctx context.Context, routeID string) (*domain.TripInstance, error)

	// ListByHotelAndDate pages through a hotel's instances on a date by scheduled start.
	ListByHotelAndDate(ctx context.Context, hotelID, date string, page PageRequest) (Page[*domain.TripInstance], error)

	// ListByShuttleAndDate retrieves a shuttle's instances on a date by scheduled start.
	ListByShuttleAndDate(ctx context.Context, shuttleID, date string) ([]*domain.TripInstance, error)

	// GetActiveByDriverID retrieves the in-progress instance of a driver.
	// Returns nil if the driver has none.
	GetActiveByDriverID(ctx context.Context, driverID string) (*domain.TripInstance, error)

	// CountOpenByTrip counts pending or in-progress instances of a trip.
	CountOpenByTrip(ctx context.Context, tripID string) (int, error)

	// Update persists status, counters and every leg of an instance.
	Update(ctx context.Context, instance *domain.TripInstance) error
}
