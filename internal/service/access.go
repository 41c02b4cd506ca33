package service

import (
	"time"

	"shuttle/internal/domain"
)

// Clock returns the current time. Services default to time.Now.
type Clock func() time.Time

func clockOrNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

func requireActor(actor domain.Actor) error {
	if actor.UserID == "" || !actor.Role.Valid() {
		return ErrActorRequired
	}
	return nil
}

// requireRole checks the role and, when hotelID is set, the tenant.
func requireRole(actor domain.Actor, hotelID string, roles ...domain.Role) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	allowed := false
	for _, r := range roles {
		if actor.Role == r {
			allowed = true
			break
		}
	}
	if !allowed {
		return ErrRoleNotAllowed
	}
	if hotelID != "" && !actor.CanAccessHotel(hotelID) {
		return ErrWrongHotel
	}
	return nil
}

var (
	adminRoles    = []domain.Role{domain.RoleSuperAdmin, domain.RoleHotelAdmin}
	staffRoles    = []domain.Role{domain.RoleSuperAdmin, domain.RoleHotelAdmin, domain.RoleFrontdesk}
	operatorRoles = []domain.Role{domain.RoleSuperAdmin, domain.RoleHotelAdmin, domain.RoleFrontdesk, domain.RoleDriver}
	viewerRoles   = []domain.Role{domain.RoleSuperAdmin, domain.RoleHotelAdmin, domain.RoleFrontdesk, domain.RoleDriver, domain.RoleGuest}
)

// scopeHotel resolves the hotel a listing runs against. Super admins must
// name one; everyone else is pinned to their own.
func scopeHotel(actor domain.Actor, requested string) (string, error) {
	if actor.Role == domain.RoleSuperAdmin {
		if requested == "" {
			return "", ErrHotelRequired
		}
		return requested, nil
	}
	if requested != "" && requested != actor.HotelID {
		return "", ErrWrongHotel
	}
	if actor.HotelID == "" {
		return "", ErrHotelRequired
	}
	return actor.HotelID, nil
}

// serviceDate is the calendar date of t in loc.
func serviceDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(domain.DateLayout)
}
