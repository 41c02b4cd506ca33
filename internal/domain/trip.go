package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Direction describes which way a trip runs relative to the airport.
type Direction string

const (
	DirectionToAirport   Direction = "TO_AIRPORT"
	DirectionFromAirport Direction = "FROM_AIRPORT"
	DirectionLocal       Direction = "LOCAL"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	switch d {
	case DirectionToAirport, DirectionFromAirport, DirectionLocal:
		return true
	}
	return false
}

// Stop is one location on a trip. Charges is the price per person for the leg
// that starts at this stop; the last stop's charge is unused.
type Stop struct {
	LocationID   string
	LocationName string
	LocationType LocationType
	Charges      float64
}

// TripSlot is a recurring daily departure window of a trip.
type TripSlot struct {
	ID        string
	StartTime string // "HH:MM"
	EndTime   string // "HH:MM"
	ShuttleID string // empty until a shuttle is bound
}

// Window parses the slot's start and end times.
func (s TripSlot) Window() (ClockTime, ClockTime, error) {
	start, err := ParseClockTime(s.StartTime)
	if err != nil {
		return 0, 0, err
	}
	end, err := ParseClockTime(s.EndTime)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// Validate checks ordering and minimum duration.
func (s TripSlot) Validate() error {
	start, end, err := s.Window()
	if err != nil {
		return err
	}
	if start >= end {
		return ErrSlotOrder
	}
	if end-start < 60 {
		return ErrSlotTooShort
	}
	return nil
}

// Trip is a template: an ordered stop sequence plus daily slots.
type Trip struct {
	ID        string
	HotelID   string
	Name      string
	Stops     []Stop
	Slots     []TripSlot
	CreatedAt time.Time
}

// Validate checks the template invariants that do not need other trips.
func (t *Trip) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrTripNameRequired
	}
	if len(t.Stops) < 2 {
		return ErrTooFewStops
	}
	seen := make(map[string]struct{}, len(t.Stops))
	for _, s := range t.Stops {
		if _, dup := seen[s.LocationID]; dup {
			return ErrDuplicateStop
		}
		seen[s.LocationID] = struct{}{}
		if s.Charges < 0 {
			return ErrNegativeCharge
		}
	}
	for _, slot := range t.Slots {
		if err := slot.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Direction derives the trip direction from its end stops.
func (t *Trip) Direction() Direction {
	if len(t.Stops) == 0 {
		return DirectionLocal
	}
	switch {
	case t.Stops[0].LocationType == LocationTypeAirport:
		return DirectionFromAirport
	case t.Stops[len(t.Stops)-1].LocationType == LocationTypeAirport:
		return DirectionToAirport
	default:
		return DirectionLocal
	}
}

// Slot returns the slot with the given id.
func (t *Trip) Slot(id string) (TripSlot, bool) {
	for _, s := range t.Slots {
		if s.ID == id {
			return s, true
		}
	}
	return TripSlot{}, false
}

// ClockTime is a time of day in minutes after midnight.
type ClockTime int

// ParseClockTime parses "HH:MM" (24-hour).
func ParseClockTime(s string) (ClockTime, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, ErrInvalidClockTime
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, ErrInvalidClockTime
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, ErrInvalidClockTime
	}
	return ClockTime(h*60 + m), nil
}

// String formats as "HH:MM".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// EpochString formats the time of day on the Unix epoch date, the convention
// the dashboards use to carry a bare time of day as an ISO timestamp.
func (c ClockTime) EpochString() string {
	return fmt.Sprintf("1970-01-01T%02d:%02d:00.000Z", int(c)/60, int(c)%60)
}

// On places the time of day on the given calendar date in loc.
func (c ClockTime) On(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, int(c)/60, int(c)%60, 0, 0, loc)
}

// DateLayout is the calendar date format used for trip instances.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	}
	return d, nil
}
