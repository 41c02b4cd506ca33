package repository

import (
	"context"

	"shuttle/internal/domain"
)

// TripRepository defines the persistence operations for trip templates.
// Stops and slots are stored with their trip.
type TripRepository interface {
	// Create persists a new trip with its stops and slots.
	Create(ctx context.Context, trip *domain.Trip) error

	// GetByID retrieves a trip by ID, stops in order.
	GetByID(ctx context.Context, id string) (*domain.Trip, error)

	// ListByHotel retrieves all trips of a hotel.
	ListByHotel(ctx context.Context, hotelID string) ([]*domain.Trip, error)

	// Update replaces a trip's name, stops and slots.
	Update(ctx context.Context, trip *domain.Trip) error

	// Delete removes a trip with its stops and slots.
	Delete(ctx context.Context, id string) error

	// CountSlotsByShuttle counts the slots bound to a shuttle.
	CountSlotsByShuttle(ctx context.Context, shuttleID string) (int, error)
}
