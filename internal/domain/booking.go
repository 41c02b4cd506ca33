package domain

import (
	"strings"
	"time"
)

// BookingStatus represents the reservation lifecycle.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusRejected  BookingStatus = "REJECTED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Valid reports whether s is a known booking status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusRejected, BookingStatusCancelled:
		return true
	}
	return false
}

// PaymentStatus is independent of the booking status.
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "UNPAID"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
	PaymentStatusWaived   PaymentStatus = "WAIVED"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusRefunded, PaymentStatusWaived:
		return true
	}
	return false
}

// PaymentMethod is how the guest settles the fare.
type PaymentMethod string

const (
	PaymentMethodCash          PaymentMethod = "CASH"
	PaymentMethodCard          PaymentMethod = "CARD"
	PaymentMethodRoomCharge    PaymentMethod = "ROOM_CHARGE"
	PaymentMethodComplimentary PaymentMethod = "COMPLIMENTARY"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodRoomCharge, PaymentMethodComplimentary:
		return true
	}
	return false
}

// Booking is a guest's reservation of seats on a range of legs of a trip instance.
type Booking struct {
	ID                 string
	HotelID            string
	TripInstanceID     string
	GuestID            string
	GuestName          string
	GuestEmail         string
	Seats              int
	Bags               int
	FromSeq            int // first stop index (pickup)
	ToSeq              int // last stop index (dropoff), exclusive for legs
	Pickup             string
	Dropoff            string
	Status             BookingStatus
	PaymentStatus      PaymentStatus
	PaymentMethod      PaymentMethod
	PricePerPerson     float64
	TotalPrice         float64
	Notes              string
	RejectionReason    string
	CancellationReason string
	CancelledBy        string
	ConfirmedBy        string
	CreatedAt          time.Time
	VerifiedAt         time.Time
	CancelledAt        time.Time
	CheckedInAt        time.Time
}

// Active reports whether the booking still references its legs.
func (b *Booking) Active() bool {
	return b.Status == BookingStatusPending || b.Status == BookingStatusConfirmed
}

// HoldsSeats reports whether the booking's seats are counted in seatHeld.
func (b *Booking) HoldsSeats() bool {
	return b.Status == BookingStatusConfirmed
}

// CheckedIn reports whether the guest boarded.
func (b *Booking) CheckedIn() bool {
	return !b.CheckedInAt.IsZero()
}

// SpansLeg reports whether leg seq lies between pickup and dropoff.
func (b *Booking) SpansLeg(seq int) bool {
	return seq >= b.FromSeq && seq < b.ToSeq
}

// Confirm accepts a pending booking.
func (b *Booking) Confirm(actorID string, now time.Time) error {
	if b.Status != BookingStatusPending {
		return ErrBookingNotPending
	}
	b.Status = BookingStatusConfirmed
	b.ConfirmedBy = actorID
	b.VerifiedAt = now
	return nil
}

// Reject declines a pending booking. REJECTED is terminal.
func (b *Booking) Reject(actorID, reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	if b.Status != BookingStatusPending {
		return ErrBookingNotPending
	}
	b.Status = BookingStatusRejected
	b.RejectionReason = reason
	b.CancelledBy = actorID
	b.CancelledAt = now
	return nil
}

// Cancel closes an active booking that has not boarded. It is distinct from
// Reject because it records who cancelled and why after the fact.
func (b *Booking) Cancel(actorID, reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	if !b.Active() {
		return ErrBookingNotActive
	}
	if b.CheckedIn() {
		return ErrAlreadyCheckedIn
	}
	b.Status = BookingStatusCancelled
	b.CancellationReason = reason
	b.CancelledBy = actorID
	b.CancelledAt = now
	return nil
}

// SetPaymentStatus changes the payment axis of a confirmed booking. A waived
// payment is sticky: moving away from WAIVED needs Unwaive.
func (b *Booking) SetPaymentStatus(status PaymentStatus) error {
	if !status.Valid() {
		return ErrInvalidPaymentStatus
	}
	if b.Status != BookingStatusConfirmed {
		return ErrBookingNotConfirmed
	}
	if b.PaymentStatus == PaymentStatusWaived && status != PaymentStatusWaived {
		return ErrPaymentWaived
	}
	b.PaymentStatus = status
	return nil
}

// Unwaive explicitly lifts a waiver and sets the new payment status.
func (b *Booking) Unwaive(status PaymentStatus) error {
	if !status.Valid() || status == PaymentStatusWaived {
		return ErrInvalidPaymentStatus
	}
	if b.Status != BookingStatusConfirmed {
		return ErrBookingNotConfirmed
	}
	if b.PaymentStatus != PaymentStatusWaived {
		return ErrPaymentNotWaived
	}
	b.PaymentStatus = status
	return nil
}

// Quote prices seats over the legs [fromSeq, toSeq). Complimentary rides are
// free and start out waived.
func Quote(routes []RouteInstance, fromSeq, toSeq, seats int, method PaymentMethod) (perPerson, total float64, status PaymentStatus) {
	for _, leg := range routes {
		if leg.Seq >= fromSeq && leg.Seq < toSeq {
			perPerson += leg.Charges
		}
	}
	if method == PaymentMethodComplimentary {
		return perPerson, 0, PaymentStatusWaived
	}
	return perPerson, perPerson * float64(seats), PaymentStatusUnpaid
}

// BookingEventKind names an entry in a booking's history.
type BookingEventKind string

const (
	BookingEventCreated   BookingEventKind = "CREATED"
	BookingEventStatus    BookingEventKind = "STATUS"
	BookingEventPayment   BookingEventKind = "PAYMENT"
	BookingEventCheckedIn BookingEventKind = "CHECKED_IN"
)

// BookingEvent is an audit entry for a booking mutation.
type BookingEvent struct {
	ID        string
	BookingID string
	Kind      BookingEventKind
	From      string
	To        string
	ActorID   string
	Reason    string
	CreatedAt time.Time
}

// BookingSummary holds aggregates derived from a live booking set.
type BookingSummary struct {
	BookingCount int
	TotalPersons int
	TotalBags    int
	Pending      int
	Confirmed    int
	CheckedIn    int
}

// SummarizeBookings derives counters from active bookings. It is recomputed
// on every read instead of being stored.
func SummarizeBookings(bookings []*Booking) BookingSummary {
	var s BookingSummary
	for _, b := range bookings {
		if !b.Active() {
			continue
		}
		s.BookingCount++
		s.TotalPersons += b.Seats
		s.TotalBags += b.Bags
		switch {
		case b.Status == BookingStatusPending:
			s.Pending++
		case b.CheckedIn():
			s.Confirmed++
			s.CheckedIn++
		default:
			s.Confirmed++
		}
	}
	return s
}
