package events

import "testing"

func TestSubject(t *testing.T) {
	testCases := []struct {
		name   string
		prefix string
		hotel  string
		kind   Kind
		want   string
	}{
		{"plain", "shuttle", "h-1", BookingConfirmed, "shuttle.h-1.booking.confirmed"},
		{"dotted hotel", "shuttle", "grand.hotel", TripStarted, "shuttle.grand_hotel.trip.started"},
		{"wildcards", "a b", "*>", CheckInConfirmed, "a_b.__.checkin.confirmed"},
		{"empty hotel", "shuttle", "", RouteSkipped, "shuttle._.route.skipped"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Subject(tc.prefix, Event{HotelID: tc.hotel, Kind: tc.kind})
			if got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
