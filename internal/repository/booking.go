package repository

import (
	"context"

	"shuttle/internal/domain"
)

// BookingFilter narrows a booking listing.
type BookingFilter struct {
	HotelID        string
	Status         domain.BookingStatus // empty means any
	TripInstanceID string               // empty means any
}

// BookingRepository defines the persistence operations for bookings.
type BookingRepository interface {
	// Create persists a new booking.
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking by ID.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// GetForUpdate retrieves a booking and locks it until the enclosing
	// transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Booking, error)

	// Update updates an existing booking.
	Update(ctx context.Context, booking *domain.Booking) error

	// ListByTripInstance retrieves every booking of a trip instance.
	ListByTripInstance(ctx context.Context, tripInstanceID string) ([]*domain.Booking, error)

	// List pages through bookings, newest first.
	List(ctx context.Context, filter BookingFilter, page PageRequest) (Page[*domain.Booking], error)

	// AppendEvent records a history entry.
	AppendEvent(ctx context.Context, event *domain.BookingEvent) error

	// ListEvents retrieves a booking's history, oldest first.
	ListEvents(ctx context.Context, bookingID string) ([]*domain.BookingEvent, error)
}
