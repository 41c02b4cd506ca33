package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"shuttle/internal/domain"
	"shuttle/internal/events"
	"shuttle/internal/service"
)

// ──────────────────────────────────────────────
// 6. TRIP LIFECYCLE
// ──────────────────────────────────────────────

func TestTrip_MaterializeIsIdempotent(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	f := h.SeedFleet(t, 6, 0)

	again, err := h.Trips.Materialize(context.Background(), hotelAdmin, "", testDate)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("expected no new instances, got %d", len(again))
	}

	inst := f.Instance
	if inst.Status != domain.TripStatusPending || inst.Capacity != 6 || len(inst.Routes) != 1 {
		t.Errorf("unexpected instance %+v", inst)
	}
	if inst.Direction != domain.DirectionFromAirport {
		t.Errorf("expected FROM_AIRPORT, got %s", inst.Direction)
	}
	wantStart := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)
	if !inst.ScheduledStart.Equal(wantStart) {
		t.Errorf("expected start %v, got %v", wantStart, inst.ScheduledStart)
	}
}

func TestTrip_StartWindow(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		at   time.Time
		want error
	}{
		{"too early", time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC), service.ErrNoEligibleTrip},
		{"within lead", time.Date(2026, 3, 2, 6, 30, 0, 0, time.UTC), nil},
		{"during slot", time.Date(2026, 3, 2, 7, 59, 0, 0, time.UTC), nil},
		{"after slot", time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), service.ErrNoEligibleTrip},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHarness(t)
			h.SeedFleet(t, 6, 0)
			h.Clock.Set(tc.at)

			_, err := h.Trips.Start(context.Background(), driverOne, "")
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestTrip_StartRules(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	f := h.SeedFleet(t, 6, 0)
	ctx := context.Background()

	if _, err := h.Trips.Start(ctx, driverTwo, ""); !errors.Is(err, service.ErrNoShuttleAssigned) {
		t.Errorf("expected no shuttle assigned, got %v", err)
	}
	if _, err := h.Trips.Start(ctx, driverOne, domain.DirectionToAirport); !errors.Is(err, service.ErrNoEligibleTrip) {
		t.Errorf("expected no trip in that direction, got %v", err)
	}

	started, err := h.Trips.Start(ctx, driverOne, domain.DirectionFromAirport)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if started.ID != f.Instance.ID || started.DriverID != driverOne.UserID || started.Status != domain.TripStatusInProgress {
		t.Errorf("unexpected started instance %+v", started)
	}
	if _, err := h.Trips.Start(ctx, driverOne, ""); !errors.Is(err, service.ErrDriverHasActiveTrip) {
		t.Errorf("expected active trip error, got %v", err)
	}

	current, err := h.Trips.Current(ctx, driverOne)
	if err != nil || current == nil || current.Instance.ID != f.Instance.ID {
		t.Errorf("expected current trip, got %+v, %v", current, err)
	}
	if h.Publisher.Count(events.TripStarted) != 1 {
		t.Errorf("expected trip.started, got %v", h.Publisher.Kinds())
	}
}

func TestTrip_AvailableShowsDerivedCounts(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	f := h.SeedFleet(t, 6, 0)
	ctx := context.Background()

	h.MustConfirm(t, h.MustBook(t, f.Instance.ID, 2).ID)
	h.MustBook(t, f.Instance.ID, 1)

	views, err := h.Trips.Available(ctx, driverOne, "")
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected one available trip, got %d", len(views))
	}
	s := views[0].Summary
	if s.BookingCount != 2 || s.TotalPersons != 3 || s.TotalBags != 2 || s.Pending != 1 || s.Confirmed != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
}

func TestTrip_ReturnPhaseOnlyOnce(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	f := h.SeedFleet(t, 6, 0)
	ctx := context.Background()

	if _, err := h.Trips.TransitionPhase(ctx, hotelAdmin, f.Instance.ID, domain.PhaseReturn); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("expected invalid state before start, got %v", err)
	}
	if _, err := h.Trips.Start(ctx, driverOne, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}

	inst, err := h.Trips.TransitionPhase(ctx, driverOne, f.Instance.ID, domain.PhaseReturn)
	if err != nil {
		t.Fatalf("TransitionPhase: %v", err)
	}
	if inst.Phase != domain.PhaseReturn {
		t.Errorf("expected RETURN, got %s", inst.Phase)
	}
	if _, err := h.Trips.TransitionPhase(ctx, driverOne, f.Instance.ID, domain.PhaseReturn); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("expected invalid state on second transition, got %v", err)
	}
	if _, err := h.Trips.TransitionPhase(ctx, driverOne, f.Instance.ID, domain.PhaseCompleted); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error for a bad phase, got %v", err)
	}
}

func TestTrip_OnlyItsDriverDrivesIt(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	f := h.SeedFleet(t, 6, 0)
	ctx := context.Background()

	if _, err := h.Trips.Start(ctx, driverOne, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := h.Trips.TransitionPhase(ctx, driverTwo, f.Instance.ID, domain.PhaseReturn); !errors.Is(err, service.ErrNotYourTrip) {
		t.Errorf("expected not your trip, got %v", err)
	}
	if _, err := h.Trips.End(ctx, frontdesk, f.Instance.ID, true); !errors.Is(err, service.ErrRoleNotAllowed) {
		t.Errorf("expected frontdesk to be refused, got %v", err)
	}
}

func TestTrip_EndCancelsUnconfirmed(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	f := h.SeedFleet(t, 6, 0)
	ctx := context.Background()

	var pending []string
	for i := 0; i < 3; i++ {
		h.MustConfirm(t, h.MustBook(t, f.Instance.ID, 1).ID)
	}
	for i := 0; i < 2; i++ {
		pending = append(pending, h.MustBook(t, f.Instance.ID, 1).ID)
	}

	if _, err := h.Trips.Start(ctx, driverOne, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := h.Trips.End(ctx, driverOne, f.Instance.ID, false); !errors.Is(err, service.ErrAcknowledgementRequired) {
		t.Fatalf("expected acknowledgement to be required, got %v", err)
	}
	if inst := h.Instance(t, f.Instance.ID); inst.Status != domain.TripStatusInProgress {
		t.Fatalf("unacknowledged end must not change the trip, got %s", inst.Status)
	}

	summary, err := h.Trips.End(ctx, driverOne, f.Instance.ID, true)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if summary.CompletedBookings != 3 || summary.CancelledBookings != 2 {
		t.Errorf("expected 3 completed and 2 cancelled, got %+v", summary)
	}
	if summary.NoShows != 3 {
		t.Errorf("expected 3 no-shows, got %d", summary.NoShows)
	}
	if summary.Instance.Status != domain.TripStatusCompleted || summary.Instance.Phase != domain.PhaseCompleted {
		t.Errorf("unexpected ended instance %+v", summary.Instance)
	}

	for _, id := range pending {
		b := h.Booking(t, id)
		if b.Status != domain.BookingStatusCancelled || b.CancellationReason == "" {
			t.Errorf("expected auto-cancelled booking, got %s %q", b.Status, b.CancellationReason)
		}
	}
	assertCapacity(t, h.Instance(t, f.Instance.ID))
	if h.Publisher.Count(events.TripEnded) != 1 || h.Publisher.Count(events.BookingCancelled) != 2 {
		t.Errorf("unexpected events %v", h.Publisher.Kinds())
	}
}

func TestTrip_EndWithNoShowNeedsAcknowledgement(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	f := h.SeedFleet(t, 6, 0)
	ctx := context.Background()

	b := h.MustConfirm(t, h.MustBook(t, f.Instance.ID, 2).ID)
	if _, err := h.Trips.Start(ctx, driverOne, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := h.Trips.End(ctx, driverOne, f.Instance.ID, false); !errors.Is(err, service.ErrAcknowledgementRequired) {
		t.Fatalf("expected acknowledgement for a passenger who never boarded, got %v", err)
	}
	if inst := h.Instance(t, f.Instance.ID); inst.Status != domain.TripStatusInProgress {
		t.Fatalf("unacknowledged end must not change the trip, got %s", inst.Status)
	}

	summary, err := h.Trips.End(ctx, driverOne, f.Instance.ID, true)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if summary.CompletedBookings != 1 || summary.CancelledBookings != 0 || summary.NoShows != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if got := h.Booking(t, b.ID); got.Status != domain.BookingStatusConfirmed {
		t.Errorf("no-show booking must stay confirmed, got %s", got.Status)
	}
	if _, err := h.Trips.End(ctx, driverOne, f.Instance.ID, true); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("expected invalid state ending twice, got %v", err)
	}
}

func TestTrip_EndWithEveryoneBoardedNeedsNoAcknowledgement(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	f := h.SeedFleet(t, 6, 0)
	ctx := context.Background()

	b := h.MustConfirm(t, h.MustBook(t, f.Instance.ID, 2).ID)
	if _, err := h.Trips.Start(ctx, driverOne, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	qr, err := h.CheckIns.IssueQR(ctx, frontdesk, b.ID)
	if err != nil {
		t.Fatalf("IssueQR: %v", err)
	}
	scan, err := h.CheckIns.CheckQR(ctx, driverOne, qr.Payload)
	if err != nil {
		t.Fatalf("CheckQR: %v", err)
	}
	if _, err := h.CheckIns.ConfirmCheckIn(ctx, driverOne, scan.Handle); err != nil {
		t.Fatalf("ConfirmCheckIn: %v", err)
	}

	summary, err := h.Trips.End(ctx, driverOne, f.Instance.ID, false)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if summary.CompletedBookings != 1 || summary.CancelledBookings != 0 || summary.NoShows != 0 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestTrip_AdminCancelReleasesSeats(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	f := h.SeedFleet(t, 6, 0)
	ctx := context.Background()

	confirmed := h.MustConfirm(t, h.MustBook(t, f.Instance.ID, 4).ID)
	pending := h.MustBook(t, f.Instance.ID, 1)

	if _, err := h.Trips.Cancel(ctx, driverOne, f.Instance.ID, "storm"); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected driver to be refused, got %v", err)
	}
	inst, err := h.Trips.Cancel(ctx, hotelAdmin, f.Instance.ID, "storm")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if inst.Status != domain.TripStatusCancelled || inst.SeatHeld != 0 {
		t.Errorf("unexpected cancelled instance %+v", inst)
	}
	for _, id := range []string{confirmed.ID, pending.ID} {
		if b := h.Booking(t, id); b.Status != domain.BookingStatusCancelled {
			t.Errorf("expected %s cancelled, got %s", id, b.Status)
		}
	}
	if _, err := h.Bookings.Create(ctx, frontdesk, service.CreateBookingRequest{
		TripInstanceID: f.Instance.ID, GuestName: "Late", Seats: 1,
	}); !errors.Is(err, service.ErrTripNotBookable) {
		t.Errorf("expected cancelled trip to refuse bookings, got %v", err)
	}
}

// ──────────────────────────────────────────────
// 7. LEGS AND SEGMENTS
// ──────────────────────────────────────────────

// seedLoop builds Airport → Hotel → Mall on shuttle S1 and starts nothing.
func seedLoop(t *testing.T, h *Harness, seats int) *domain.TripInstance {
	t.Helper()
	ctx := context.Background()

	airport := h.MustLocation(t, "Airport", domain.LocationTypeAirport, 25.2532, 55.3657)
	hotel := h.MustLocation(t, "Hotel", domain.LocationTypeHotel, 25.1972, 55.2744)
	mall := h.MustLocation(t, "Mall", domain.LocationTypeOther, 25.1181, 55.2006)
	shuttle := h.MustShuttle(t, "S1", seats)

	if _, err := h.Schedule.CreateTrip(ctx, hotelAdmin, service.TripRequest{
		Name: "Loop",
		Stops: []service.StopInput{
			{LocationID: airport.ID, Charges: 20},
			{LocationID: hotel.ID, Charges: 10},
			{LocationID: mall.ID},
		},
		Slots: []service.SlotInput{{StartTime: "07:00", EndTime: "09:00", ShuttleID: shuttle.ID}},
	}); err != nil {
		t.Fatalf("CreateTrip: %v", err)
	}
	if _, err := h.Shuttles.AssignDriver(ctx, hotelAdmin, service.AssignDriverRequest{
		DriverID: driverOne.UserID, ShuttleID: shuttle.ID,
	}); err != nil {
		t.Fatalf("AssignDriver: %v", err)
	}
	created, err := h.Trips.Materialize(ctx, hotelAdmin, "", testDate)
	if err != nil || len(created) != 1 {
		t.Fatalf("Materialize: %v (%d)", err, len(created))
	}
	return created[0]
}

func TestTrip_SegmentBookingsShareSeats(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	inst := seedLoop(t, h, 4)
	ctx := context.Background()

	first, err := h.Bookings.Create(ctx, frontdesk, service.CreateBookingRequest{
		TripInstanceID: inst.ID, GuestName: "First Leg", Seats: 4, FromSeq: 0, ToSeq: 1,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := h.Bookings.Create(ctx, frontdesk, service.CreateBookingRequest{
		TripInstanceID: inst.ID, GuestName: "Second Leg", Seats: 4, FromSeq: 1, ToSeq: 2,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.TotalPrice != 80 || second.TotalPrice != 40 {
		t.Errorf("expected leg pricing 80 and 40, got %v and %v", first.TotalPrice, second.TotalPrice)
	}
	if second.Pickup != "Hotel" || second.Dropoff != "Mall" {
		t.Errorf("unexpected segment %q -> %q", second.Pickup, second.Dropoff)
	}

	h.MustConfirm(t, first.ID)
	h.MustConfirm(t, second.ID)

	got := h.Instance(t, inst.ID)
	if got.SeatHeld != 4 || got.Routes[0].SeatHeld != 4 || got.Routes[1].SeatHeld != 4 {
		t.Errorf("expected disjoint segments to fill the shuttle once, got trip=%d legs=%d/%d",
			got.SeatHeld, got.Routes[0].SeatHeld, got.Routes[1].SeatHeld)
	}
	assertCapacity(t, got)

	whole := h.MustBook(t, inst.ID, 1)
	if _, err := h.Bookings.Confirm(ctx, frontdesk, whole.ID); !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Errorf("expected a whole-trip booking to be refused, got %v", err)
	}
	after := h.Instance(t, inst.ID)
	if after.Routes[0].SeatHeld != 4 || after.Routes[1].SeatHeld != 4 {
		t.Error("refused confirmation must leave every leg untouched")
	}
}

func TestTrip_CompleteAndSkipLegs(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	inst := seedLoop(t, h, 4)
	ctx := context.Background()

	b, err := h.Bookings.Create(ctx, frontdesk, service.CreateBookingRequest{
		TripInstanceID: inst.ID, GuestName: "Airport Run", Seats: 1, FromSeq: 0, ToSeq: 1,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	h.MustConfirm(t, b.ID)
	if _, err := h.Trips.Start(ctx, driverOne, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}

	legs := inst.Routes
	if _, err := h.Trips.SkipLeg(ctx, driverOne, legs[0].ID); !errors.Is(err, domain.ErrLegNotSkippable) {
		t.Errorf("expected booked leg to be unskippable, got %v", err)
	}
	if _, err := h.Trips.CompleteLeg(ctx, driverOne, legs[1].ID); !errors.Is(err, domain.ErrLegNotCurrent) {
		t.Errorf("expected out-of-order leg to be refused, got %v", err)
	}

	view, err := h.Trips.CompleteLeg(ctx, driverOne, legs[0].ID)
	if err != nil {
		t.Fatalf("CompleteLeg: %v", err)
	}
	if !view.Instance.Routes[0].Completed {
		t.Error("expected first leg completed")
	}
	if !view.Instance.Routes[1].CanBeSkipped {
		t.Error("expected empty second leg to be skippable")
	}

	view, err = h.Trips.SkipLeg(ctx, driverOne, legs[1].ID)
	if err != nil {
		t.Fatalf("SkipLeg: %v", err)
	}
	if !view.Instance.Routes[1].Skipped || !view.Instance.AllLegsDone() {
		t.Errorf("expected all legs done, got %+v", view.Instance.Routes)
	}
	if h.Publisher.Count(events.RouteCompleted) != 1 || h.Publisher.Count(events.RouteSkipped) != 1 {
		t.Errorf("unexpected events %v", h.Publisher.Kinds())
	}
}

func TestTrip_LiveETA(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	f := h.SeedFleet(t, 6, 0)
	ctx := context.Background()

	if _, err := h.Trips.Start(ctx, driverOne, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.Shuttles.ReportPosition(ctx, driverOne, f.Airport.Lat, f.Airport.Lng); err != nil {
		t.Fatalf("ReportPosition: %v", err)
	}

	view, err := h.Trips.Get(ctx, frontdesk, f.Instance.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if view.Position == nil || view.NextStop == nil {
		t.Fatalf("expected position and ETA, got %+v", view)
	}
	if view.NextStop.Location != "Hotel" || view.NextStop.DistanceKm < 5 {
		t.Errorf("unexpected next stop %+v", view.NextStop)
	}
	if !view.NextStop.ETA.After(h.Clock.Now()) {
		t.Errorf("expected ETA in the future, got %v", view.NextStop.ETA)
	}
}

func TestTrip_DeleteBlockedWhileInstancesOpen(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	f := h.SeedFleet(t, 6, 0)
	ctx := context.Background()

	if err := h.Schedule.DeleteTrip(ctx, hotelAdmin, f.Trip.ID); !errors.Is(err, service.ErrTripHasOpenInstances) {
		t.Errorf("expected open instances to block delete, got %v", err)
	}
	if _, err := h.Trips.Cancel(ctx, hotelAdmin, f.Instance.ID, "retired"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := h.Schedule.DeleteTrip(ctx, hotelAdmin, f.Trip.ID); err != nil {
		t.Errorf("expected delete after cancel, got %v", err)
	}
}
