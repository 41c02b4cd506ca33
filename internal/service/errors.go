package service

import (
	"fmt"

	"shuttle/internal/domain"
)

var (
	// ErrActorRequired is returned when an operation has no authenticated caller.
	ErrActorRequired = fmt.Errorf("%w: authentication required", domain.ErrForbidden)

	// ErrWrongHotel is returned when the caller acts outside their hotel.
	ErrWrongHotel = fmt.Errorf("%w: resource belongs to another hotel", domain.ErrForbidden)

	// ErrRoleNotAllowed is returned when the caller's role cannot perform the operation.
	ErrRoleNotAllowed = fmt.Errorf("%w: role not allowed", domain.ErrForbidden)

	// ErrNotYourBooking is returned when a guest touches another guest's booking.
	ErrNotYourBooking = fmt.Errorf("%w: booking belongs to another guest", domain.ErrForbidden)

	// ErrNotYourTrip is returned when a driver acts on a trip they do not run.
	ErrNotYourTrip = fmt.Errorf("%w: trip is assigned to another driver", domain.ErrForbidden)

	// ErrHotelRequired is returned when a hotel-scoped call has no hotel.
	ErrHotelRequired = fmt.Errorf("%w: hotel id is required", domain.ErrValidation)

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = fmt.Errorf("%w: driver id is required", domain.ErrValidation)

	// ErrInvalidDirection is returned for an unknown trip direction.
	ErrInvalidDirection = fmt.Errorf("%w: invalid direction", domain.ErrValidation)

	// ErrUnknownLocation is returned when a stop references a location outside the hotel.
	ErrUnknownLocation = fmt.Errorf("%w: unknown location", domain.ErrValidation)

	// ErrUnknownShuttle is returned when a slot references a shuttle outside the hotel.
	ErrUnknownShuttle = fmt.Errorf("%w: unknown shuttle", domain.ErrValidation)

	// ErrSeatsOverCapacity is returned when a booking asks for more seats than the shuttle has.
	ErrSeatsOverCapacity = fmt.Errorf("%w: more seats requested than the shuttle has", domain.ErrCapacityExceeded)

	// ErrNoShuttleAssigned is returned when a driver acts without an assigned shuttle.
	ErrNoShuttleAssigned = fmt.Errorf("%w: driver has no assigned shuttle", domain.ErrInvalidState)

	// ErrNoEligibleTrip is returned when no pending trip instance can be started now.
	ErrNoEligibleTrip = fmt.Errorf("%w: no pending trip can be started now", domain.ErrInvalidState)

	// ErrDriverHasActiveTrip is returned when driver already has an active trip.
	ErrDriverHasActiveTrip = fmt.Errorf("%w: driver already has an active trip", domain.ErrInvalidState)

	// ErrTripNotBookable is returned when booking a trip instance that already left or closed.
	ErrTripNotBookable = fmt.Errorf("%w: trip instance is not open for booking", domain.ErrInvalidState)

	// ErrAcknowledgementRequired is returned when ending a trip with bookings
	// that are unconfirmed or have not boarded, and the driver has not
	// acknowledged it.
	ErrAcknowledgementRequired = fmt.Errorf("%w: some bookings are unconfirmed or have not boarded, acknowledge to end the trip", domain.ErrConflict)

	// ErrShuttleInUse is returned when deleting a shuttle that trip slots still use.
	ErrShuttleInUse = fmt.Errorf("%w: shuttle is used by trip slots, reassign them first", domain.ErrConflict)

	// ErrShuttleBusy is returned when another assignment of the shuttle is in flight.
	ErrShuttleBusy = fmt.Errorf("%w: shuttle assignment in progress, retry", domain.ErrConflict)

	// ErrLocationInUse is returned when deleting a location that trip stops still use.
	ErrLocationInUse = fmt.Errorf("%w: location is used by trips", domain.ErrConflict)

	// ErrTripHasOpenInstances is returned when deleting a trip with pending or running instances.
	ErrTripHasOpenInstances = fmt.Errorf("%w: trip has pending or running instances", domain.ErrConflict)

	// ErrNotPublicLocation is returned when importing a location that is not public.
	ErrNotPublicLocation = fmt.Errorf("%w: only public locations can be imported", domain.ErrValidation)

	// ErrVerificationExpired is returned when a check-in handle is unknown or expired.
	ErrVerificationExpired = fmt.Errorf("%w: verification expired, scan again", domain.ErrTokenInvalid)

	// ErrUnknownToken is returned when a scanned code names no issued token.
	ErrUnknownToken = fmt.Errorf("%w: unknown check-in token", domain.ErrTokenInvalid)

	// ErrBookingNotBoardable is returned when the booking behind a code is not confirmed.
	ErrBookingNotBoardable = fmt.Errorf("%w: booking is not confirmed", domain.ErrBookingNotEligible)

	// ErrNotOnRunningTrip is returned when the booking is not on the driver's running trip.
	ErrNotOnRunningTrip = fmt.Errorf("%w: booking is not on your running trip", domain.ErrBookingNotEligible)
)
