package repository

import "context"

// Repositories groups the repositories bound to one connection or transaction.
type Repositories struct {
	Locations     LocationRepository
	Trips         TripRepository
	TripInstances TripInstanceRepository
	Bookings      BookingRepository
	Shuttles      ShuttleRepository
	Assignments   AssignmentRepository
	CheckIns      CheckInTokenRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	// Repositories returns repositories outside any transaction.
	Repositories() Repositories

	// WithinTx runs fn inside one transaction. Returning an error rolls
	// every change back; returning nil commits.
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
