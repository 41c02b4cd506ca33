package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every rule violation below wraps exactly one of these so the
// transport layer can map a whole family of errors with a single errors.Is.
var (
	ErrValidation         = errors.New("validation error")
	ErrInvalidState       = errors.New("invalid state")
	ErrCapacityExceeded   = errors.New("capacity exceeded")
	ErrSchedulingConflict = errors.New("scheduling conflict")
	ErrTokenInvalid       = errors.New("check-in token invalid")
	ErrTokenAlreadyUsed   = errors.New("check-in token already used")
	ErrBookingNotEligible = errors.New("booking not eligible for check-in")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
)

// Booking rules.
var (
	ErrBookingNotPending    = fmt.Errorf("%w: booking is not pending", ErrInvalidState)
	ErrBookingNotConfirmed  = fmt.Errorf("%w: booking is not confirmed", ErrInvalidState)
	ErrBookingNotActive     = fmt.Errorf("%w: booking is already closed", ErrInvalidState)
	ErrAlreadyCheckedIn     = fmt.Errorf("%w: booking is already checked in", ErrInvalidState)
	ErrPaymentWaived        = fmt.Errorf("%w: payment is waived, unwaive it first", ErrInvalidState)
	ErrPaymentNotWaived     = fmt.Errorf("%w: payment is not waived", ErrInvalidState)
	ErrReasonRequired       = fmt.Errorf("%w: reason is required", ErrValidation)
	ErrInvalidSeats         = fmt.Errorf("%w: seats must be at least 1", ErrValidation)
	ErrInvalidBags          = fmt.Errorf("%w: bags cannot be negative", ErrValidation)
	ErrInvalidLegRange      = fmt.Errorf("%w: invalid pickup/dropoff range", ErrValidation)
	ErrInvalidPaymentStatus = fmt.Errorf("%w: invalid payment status", ErrValidation)
	ErrInvalidPaymentMethod = fmt.Errorf("%w: invalid payment method", ErrValidation)
)

// Trip instance and route rules.
var (
	ErrTripNotPending    = fmt.Errorf("%w: trip instance is not pending", ErrInvalidState)
	ErrTripNotInProgress = fmt.Errorf("%w: trip instance is not in progress", ErrInvalidState)
	ErrTripClosed        = fmt.Errorf("%w: trip instance is already closed", ErrInvalidState)
	ErrPhaseNotOutbound  = fmt.Errorf("%w: trip is not in the outbound phase", ErrInvalidState)
	ErrInvalidPhase      = fmt.Errorf("%w: phase must be RETURN", ErrValidation)
	ErrLegNotFound       = fmt.Errorf("%w: route segment does not belong to trip", ErrValidation)
	ErrLegNotCurrent     = fmt.Errorf("%w: route segment is not the current segment", ErrInvalidState)
	ErrLegNotSkippable   = fmt.Errorf("%w: route segment has bookings and cannot be skipped", ErrInvalidState)
	ErrSeatUnderflow     = fmt.Errorf("%w: seat accounting would go negative", ErrInvalidState)
	ErrOccupancyOverHold = fmt.Errorf("%w: boarded seats would exceed held seats", ErrInvalidState)
)

// Trip template rules.
var (
	ErrTripNameRequired = fmt.Errorf("%w: trip name is required", ErrValidation)
	ErrTooFewStops      = fmt.Errorf("%w: a trip needs at least two stops", ErrValidation)
	ErrDuplicateStop    = fmt.Errorf("%w: stop locations must be distinct", ErrValidation)
	ErrNegativeCharge   = fmt.Errorf("%w: stop charges cannot be negative", ErrValidation)
	ErrInvalidClockTime = fmt.Errorf("%w: time must be HH:MM in 24-hour format", ErrValidation)
	ErrSlotOrder        = fmt.Errorf("%w: slot start must be before its end", ErrValidation)
	ErrSlotTooShort     = fmt.Errorf("%w: slot must last at least one hour", ErrValidation)
)

// Registry rules.
var (
	ErrNameRequired          = fmt.Errorf("%w: name is required", ErrValidation)
	ErrInvalidCoordinates    = fmt.Errorf("%w: invalid coordinates", ErrValidation)
	ErrInvalidLocationType   = fmt.Errorf("%w: invalid location type", ErrValidation)
	ErrImportedLocationGeo   = fmt.Errorf("%w: imported locations cannot change coordinates or type", ErrValidation)
	ErrVehicleNumberRequired = fmt.Errorf("%w: vehicle number is required", ErrValidation)
	ErrInvalidTotalSeats     = fmt.Errorf("%w: total seats must be at least 1", ErrValidation)
)

// Check-in rules.
var (
	ErrTokenRejected = fmt.Errorf("%w: token was revoked", ErrTokenInvalid)
)
