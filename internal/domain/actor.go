package domain

// Role is the staff or guest role carried by a session.
type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleHotelAdmin Role = "HOTEL_ADMIN"
	RoleFrontdesk  Role = "FRONTDESK"
	RoleDriver     Role = "DRIVER"
	RoleGuest      Role = "GUEST"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleHotelAdmin, RoleFrontdesk, RoleDriver, RoleGuest:
		return true
	}
	return false
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID  string
	Name    string
	Role    Role
	HotelID string // empty for super admins
}

// CanAccessHotel reports whether the actor may act inside the given tenant.
func (a Actor) CanAccessHotel(hotelID string) bool {
	if a.Role == RoleSuperAdmin {
		return true
	}
	return a.HotelID != "" && a.HotelID == hotelID
}

// IsStaff reports whether the actor manages bookings for a hotel.
func (a Actor) IsStaff() bool {
	switch a.Role {
	case RoleSuperAdmin, RoleHotelAdmin, RoleFrontdesk:
		return true
	}
	return false
}
