package domain

import (
	"strings"
	"time"
)

// Shuttle is a vehicle of a hotel.
type Shuttle struct {
	ID            string
	HotelID       string
	VehicleNumber string
	TotalSeats    int
	CreatedAt     time.Time
}

// Validate checks the admin-editable fields.
func (s *Shuttle) Validate() error {
	s.VehicleNumber = strings.TrimSpace(s.VehicleNumber)
	if s.VehicleNumber == "" {
		return ErrVehicleNumberRequired
	}
	if s.TotalSeats < 1 {
		return ErrInvalidTotalSeats
	}
	return nil
}

// DriverAssignment points a driver at the shuttle they operate today.
// Storage keeps both DriverID and ShuttleID unique, so the mapping is a
// partial bijection.
type DriverAssignment struct {
	DriverID   string
	DriverName string
	ShuttleID  string
	HotelID    string
	AssignedAt time.Time
}
