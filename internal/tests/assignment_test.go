package tests

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shuttle/internal/domain"
	"shuttle/internal/events"
	"shuttle/internal/redis"
	"shuttle/internal/service"
)

// ──────────────────────────────────────────────
// 10. DRIVER / SHUTTLE ASSIGNMENT
// ──────────────────────────────────────────────

func TestAssignment_DisplacesPreviousDriver(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	f := h.SeedFleet(t, 6, 0)
	ctx := context.Background()

	result, err := h.Shuttles.AssignDriver(ctx, hotelAdmin, service.AssignDriverRequest{
		DriverID: driverTwo.UserID, DriverName: driverTwo.Name, ShuttleID: f.Shuttle.ID,
	})
	if err != nil {
		t.Fatalf("AssignDriver: %v", err)
	}
	if result.DisplacedDriverID != driverOne.UserID {
		t.Errorf("expected driver-1 displaced, got %q", result.DisplacedDriverID)
	}
	if result.TripCountToday != 1 {
		t.Errorf("expected 1 trip today, got %d", result.TripCountToday)
	}

	repos := h.Store.Repositories()
	if a, _ := repos.Assignments.GetByDriver(ctx, driverOne.UserID); a != nil {
		t.Errorf("expected driver-1 unassigned, got %+v", a)
	}
	if a, _ := repos.Assignments.GetByShuttle(ctx, f.Shuttle.ID); a == nil || a.DriverID != driverTwo.UserID {
		t.Errorf("expected shuttle held by driver-2, got %+v", a)
	}
	if h.Publisher.Count(events.ShuttleUnassigned) != 1 {
		t.Errorf("expected an unassigned event, got %v", h.Publisher.Kinds())
	}
}

func TestAssignment_DriverMovesShuttle(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	f := h.SeedFleet(t, 6, 0)
	ctx := context.Background()
	s2 := h.MustShuttle(t, "S2", 8)

	result, err := h.Shuttles.AssignDriver(ctx, driverOne, service.AssignDriverRequest{
		DriverID: driverOne.UserID, ShuttleID: s2.ID,
	})
	if err != nil {
		t.Fatalf("AssignDriver: %v", err)
	}
	if result.PreviousShuttleID != f.Shuttle.ID {
		t.Errorf("expected previous shuttle S1, got %q", result.PreviousShuttleID)
	}
	if a, _ := h.Store.Repositories().Assignments.GetByShuttle(ctx, f.Shuttle.ID); a != nil {
		t.Errorf("expected S1 free, got %+v", a)
	}
}

func TestAssignment_DriverCannotAssignSomeoneElse(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	f := h.SeedFleet(t, 6, 0)

	_, err := h.Shuttles.AssignDriver(context.Background(), driverOne, service.AssignDriverRequest{
		DriverID: driverTwo.UserID, ShuttleID: f.Shuttle.ID,
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestAssignment_BlockedWhileOnTrip(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	f := h.SeedFleet(t, 6, 0)
	ctx := context.Background()

	if _, err := h.Trips.Start(ctx, driverOne, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := h.Shuttles.AssignDriver(ctx, hotelAdmin, service.AssignDriverRequest{
		DriverID: driverTwo.UserID, ShuttleID: f.Shuttle.ID,
	}); !errors.Is(err, service.ErrDriverHasActiveTrip) {
		t.Errorf("expected displacement of a driving driver to fail, got %v", err)
	}
	if _, err := h.Shuttles.UnassignDriver(ctx, hotelAdmin, driverOne.UserID); !errors.Is(err, service.ErrDriverHasActiveTrip) {
		t.Errorf("expected unassign of a driving driver to fail, got %v", err)
	}
}

func TestAssignment_UnassignReportsAbsence(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	h.SeedFleet(t, 6, 0)
	ctx := context.Background()

	removed, err := h.Shuttles.UnassignDriver(ctx, hotelAdmin, driverOne.UserID)
	if err != nil || !removed {
		t.Fatalf("expected removal, got %v, %v", removed, err)
	}
	removed, err = h.Shuttles.UnassignDriver(ctx, hotelAdmin, driverOne.UserID)
	if err != nil || removed {
		t.Errorf("expected a reported no-op, got %v, %v", removed, err)
	}
}

func TestAssignment_AlwaysPartialBijection(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	ctx := context.Background()

	shuttles := make([]*domain.Shuttle, 3)
	for i := range shuttles {
		shuttles[i] = h.MustShuttle(t, fmt.Sprintf("S%d", i+1), 6)
	}
	drivers := []string{"d-1", "d-2", "d-3", "d-4"}

	rng := rand.New(rand.NewSource(7))
	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		driver := drivers[rng.Intn(len(drivers))]
		shuttle := shuttles[rng.Intn(len(shuttles))]
		unassign := rng.Intn(4) == 0

		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			if unassign {
				_, err = h.Shuttles.UnassignDriver(ctx, hotelAdmin, driver)
			} else {
				_, err = h.Shuttles.AssignDriver(ctx, hotelAdmin, service.AssignDriverRequest{
					DriverID: driver, ShuttleID: shuttle.ID,
				})
			}
			if err != nil && !errors.Is(err, service.ErrShuttleBusy) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assignments, err := h.Shuttles.ListAssignments(ctx, hotelAdmin, "")
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	byDriver := map[string]string{}
	byShuttle := map[string]string{}
	for _, a := range assignments {
		if prev, ok := byDriver[a.DriverID]; ok {
			t.Errorf("driver %s holds %s and %s", a.DriverID, prev, a.ShuttleID)
		}
		if prev, ok := byShuttle[a.ShuttleID]; ok {
			t.Errorf("shuttle %s held by %s and %s", a.ShuttleID, prev, a.DriverID)
		}
		byDriver[a.DriverID] = a.ShuttleID
		byShuttle[a.ShuttleID] = a.DriverID
	}
}

func TestAssignment_AvailableShuttlesForDriver(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	f := h.SeedFleet(t, 6, 0)
	ctx := context.Background()
	h.MustShuttle(t, "S2", 10)
	h.MustBook(t, f.Instance.ID, 2)

	rows, err := h.Shuttles.AvailableShuttles(ctx, driverOne)
	if err != nil {
		t.Fatalf("AvailableShuttles: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 shuttles, got %d", len(rows))
	}
	s1 := rows[0]
	if s1.Shuttle.ID != f.Shuttle.ID {
		s1 = rows[1]
	}
	if !s1.IsAssignedToMe || s1.CurrentlyAssignedTo != driverOne.Name {
		t.Errorf("expected S1 assigned to me, got %+v", s1)
	}
	if s1.TripCountToday != 1 || s1.TotalBookingsToday != 1 || s1.TotalSeats != 6 {
		t.Errorf("unexpected workload %+v", s1)
	}
}

func TestAssignment_TripCountIncludesUnmaterializedSlots(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	f := h.SeedFleet(t, 6, 0)
	ctx := context.Background()

	if _, err := h.Schedule.CreateTrip(ctx, hotelAdmin, service.TripRequest{
		Name: "Hotel→Airport",
		Stops: []service.StopInput{
			{LocationID: f.Hotel.ID},
			{LocationID: f.Airport.ID},
		},
		Slots: []service.SlotInput{
			{StartTime: "09:00", EndTime: "10:00", ShuttleID: f.Shuttle.ID},
			{StartTime: "12:00", EndTime: "13:00", ShuttleID: f.Shuttle.ID},
			{StartTime: "15:00", EndTime: "16:00"},
		},
	}); err != nil {
		t.Fatalf("CreateTrip: %v", err)
	}

	tests := []struct {
		name  string
		count func(t *testing.T) int
	}{
		{"assignment result", func(t *testing.T) int {
			result, err := h.Shuttles.AssignDriver(ctx, driverOne, service.AssignDriverRequest{
				DriverID: driverOne.UserID, ShuttleID: f.Shuttle.ID,
			})
			if err != nil {
				t.Fatalf("AssignDriver: %v", err)
			}
			return result.TripCountToday
		}},
		{"available shuttles", func(t *testing.T) int {
			rows, err := h.Shuttles.AvailableShuttles(ctx, driverOne)
			if err != nil || len(rows) != 1 {
				t.Fatalf("AvailableShuttles: %v, %d rows", err, len(rows))
			}
			return rows[0].TripCountToday
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.count(t); got != 3 {
				t.Errorf("expected 1 materialized and 2 pending slots, got %d", got)
			}
		})
	}

	if _, err := h.Trips.Materialize(ctx, hotelAdmin, "", testDate); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	rows, err := h.Shuttles.AvailableShuttles(ctx, driverOne)
	if err != nil {
		t.Fatalf("AvailableShuttles: %v", err)
	}
	if rows[0].TripCountToday != 3 {
		t.Errorf("materializing must not change the count, got %d", rows[0].TripCountToday)
	}
}

// ──────────────────────────────────────────────
// 11. SHUTTLE REGISTRY
// ──────────────────────────────────────────────

func TestShuttle_DeleteBlockedWhileSlotsUseIt(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	f := h.SeedFleet(t, 6, 0)
	ctx := context.Background()

	if err := h.Shuttles.Delete(ctx, hotelAdmin, f.Shuttle.ID); !errors.Is(err, service.ErrShuttleInUse) {
		t.Errorf("expected shuttle in use, got %v", err)
	}
	spare := h.MustShuttle(t, "S9", 4)
	if err := h.Shuttles.Delete(ctx, hotelAdmin, spare.ID); err != nil {
		t.Errorf("expected unused shuttle to be deleted, got %v", err)
	}
}

// unreachablePositions fails every removal and counts the attempts.
type unreachablePositions struct {
	*redis.LocalPositionStore
	removes atomic.Int32
}

func (p *unreachablePositions) RemovePosition(ctx context.Context, shuttleID string) error {
	p.removes.Add(1)
	return errors.New("position store unreachable")
}

func TestShuttle_PositionCleanupFailureDoesNotFailTheWrite(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	f := h.SeedFleet(t, 6, 0)
	ctx := context.Background()
	positions := &unreachablePositions{LocalPositionStore: redis.NewLocalPositionStore()}
	shuttles := service.NewShuttleService(h.Locks, redis.NewLocalLockStore(), positions,
		service.NewNotificationService(h.Metrics, h.Publisher), time.UTC, 5*time.Second)

	removed, err := shuttles.UnassignDriver(ctx, hotelAdmin, driverOne.UserID)
	if err != nil || !removed {
		t.Fatalf("expected driver unassigned, got %v, %v", removed, err)
	}
	spare := h.MustShuttle(t, "S9", 4)
	if err := shuttles.Delete(ctx, hotelAdmin, spare.ID); err != nil {
		t.Fatalf("expected shuttle deleted, got %v", err)
	}

	if n := positions.removes.Load(); n != 2 {
		t.Errorf("expected 2 position removals attempted, got %d", n)
	}
	if a, _ := h.Store.Repositories().Assignments.GetByShuttle(ctx, f.Shuttle.ID); a != nil {
		t.Errorf("assignment survived a failed position cleanup: %+v", a)
	}
	if _, err := h.Store.Repositories().Shuttles.GetByID(ctx, spare.ID); err == nil {
		t.Errorf("deleted shuttle still stored")
	}
}

func TestShuttle_VehicleNumberUniquePerHotel(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	ctx := context.Background()
	h.MustShuttle(t, "S1", 6)

	if _, err := h.Shuttles.Create(ctx, hotelAdmin, service.ShuttleRequest{VehicleNumber: "S1", TotalSeats: 4}); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected conflict, got %v", err)
	}
	if _, err := h.Shuttles.Create(ctx, hotelAdmin, service.ShuttleRequest{VehicleNumber: "S2", TotalSeats: 0}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
