package domain

import (
	"math"
	"strings"
	"time"
)

// LocationType classifies a stop.
type LocationType string

const (
	LocationTypeAirport LocationType = "AIRPORT"
	LocationTypeHotel   LocationType = "HOTEL"
	LocationTypeOther   LocationType = "OTHER"
)

// Valid reports whether t is a known location type.
func (t LocationType) Valid() bool {
	switch t {
	case LocationTypeAirport, LocationTypeHotel, LocationTypeOther:
		return true
	}
	return false
}

// Location is a named point that trips stop at.
type Location struct {
	ID         string
	HotelID    string
	Name       string
	Address    string
	Lat        float64
	Lng        float64
	Type       LocationType
	ClonedFrom string // set when imported from the public registry
	CreatedAt  time.Time
}

// Imported reports whether the location was cloned from a public location.
func (l *Location) Imported() bool {
	return l.ClonedFrom != ""
}

// Validate checks the fields a tenant is allowed to set.
func (l *Location) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return ErrNameRequired
	}
	if !ValidCoordinates(l.Lat, l.Lng) {
		return ErrInvalidCoordinates
	}
	if !l.Type.Valid() {
		return ErrInvalidLocationType
	}
	return nil
}

// LocationUpdate carries optional changes to a location.
type LocationUpdate struct {
	Name    *string
	Address *string
	Lat     *float64
	Lng     *float64
	Type    *LocationType
}

// Apply merges the update into the location. Imported locations keep their
// geo fields; any attempt to change them is rejected rather than ignored.
func (l *Location) Apply(u LocationUpdate) error {
	if l.Imported() {
		if (u.Lat != nil && *u.Lat != l.Lat) ||
			(u.Lng != nil && *u.Lng != l.Lng) ||
			(u.Type != nil && *u.Type != l.Type) {
			return ErrImportedLocationGeo
		}
	}

	next := *l
	if u.Name != nil {
		next.Name = strings.TrimSpace(*u.Name)
	}
	if u.Address != nil {
		next.Address = strings.TrimSpace(*u.Address)
	}
	if u.Lat != nil {
		next.Lat = *u.Lat
	}
	if u.Lng != nil {
		next.Lng = *u.Lng
	}
	if u.Type != nil {
		next.Type = *u.Type
	}
	if err := next.Validate(); err != nil {
		return err
	}

	*l = next
	return nil
}

// ValidCoordinates reports whether lat/lng are within WGS84 bounds.
func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

const earthRadiusKm = 6371.0

// DistanceKm is the great-circle distance between two points.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
