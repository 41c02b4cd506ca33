package repository

import (
	"context"

	"shuttle/internal/domain"
)

// CheckInTokenRepository defines the persistence operations for check-in tokens.
type CheckInTokenRepository interface {
	// Create persists a new token.
	Create(ctx context.Context, token *domain.CheckInToken) error

	// GetByID retrieves a token by ID.
	GetByID(ctx context.Context, id string) (*domain.CheckInToken, error)

	// GetForUpdate retrieves a token and locks it until the enclosing transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.CheckInToken, error)

	// GetByBookingID returns nil if no token was issued for the booking.
	GetByBookingID(ctx context.Context, bookingID string) (*domain.CheckInToken, error)

	// Update updates an existing token.
	Update(ctx context.Context, token *domain.CheckInToken) error
}
