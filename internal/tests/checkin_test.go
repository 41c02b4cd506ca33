package tests

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shuttle/internal/domain"
	"shuttle/internal/events"
	"shuttle/internal/service"
)

// ──────────────────────────────────────────────
// 8. QR CHECK-IN
// ──────────────────────────────────────────────

// boardingSetup confirms a booking of seats and starts the trip.
func boardingSetup(t *testing.T, h *Harness, seats int) (*Fleet, *domain.Booking, string) {
	t.Helper()
	f := h.SeedFleet(t, 6, 25)
	b := h.MustConfirm(t, h.MustBook(t, f.Instance.ID, seats).ID)
	if _, err := h.Trips.Start(context.Background(), driverOne, ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	qr, err := h.CheckIns.IssueQR(context.Background(), frontdesk, b.ID)
	if err != nil {
		t.Fatalf("IssueQR: %v", err)
	}
	return f, b, qr.Payload
}

func TestCheckIn_ScanThenConfirm(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	f, b, payload := boardingSetup(t, h, 2)
	ctx := context.Background()

	result, err := h.CheckIns.CheckQR(ctx, driverOne, payload)
	if err != nil {
		t.Fatalf("CheckQR: %v", err)
	}
	if result.Handle == "" || result.Passenger.BookingID != b.ID || result.Passenger.Seats != 2 {
		t.Errorf("unexpected scan result %+v", result)
	}

	token, _ := h.Store.Repositories().CheckIns.GetByBookingID(ctx, b.ID)
	if token.Status != domain.CheckInIssued {
		t.Errorf("scanning must not consume the token, got %s", token.Status)
	}
	if inst := h.Instance(t, f.Instance.ID); inst.SeatsOccupied != 0 {
		t.Errorf("scanning must not board, occupied=%d", inst.SeatsOccupied)
	}

	boarded, err := h.CheckIns.ConfirmCheckIn(ctx, driverOne, result.Handle)
	if err != nil {
		t.Fatalf("ConfirmCheckIn: %v", err)
	}
	if !boarded.CheckedIn() {
		t.Error("expected booking to be checked in")
	}
	inst := h.Instance(t, f.Instance.ID)
	if inst.SeatsOccupied != 2 {
		t.Errorf("expected 2 occupied, got %d", inst.SeatsOccupied)
	}
	assertCapacity(t, inst)
	if h.Publisher.Count(events.CheckInConfirmed) != 1 {
		t.Errorf("expected checkin event, got %v", h.Publisher.Kinds())
	}
}

func TestCheckIn_DoubleConfirmCountsOnce(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	f, _, payload := boardingSetup(t, h, 2)
	ctx := context.Background()

	result, err := h.CheckIns.CheckQR(ctx, driverOne, payload)
	if err != nil {
		t.Fatalf("CheckQR: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.CheckIns.ConfirmCheckIn(ctx, driverOne, result.Handle)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case !errors.Is(err, domain.ErrTokenAlreadyUsed):
			t.Errorf("expected token already used, got %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly one check-in, got %d", wins)
	}
	if inst := h.Instance(t, f.Instance.ID); inst.SeatsOccupied != 2 {
		t.Errorf("expected occupancy counted once, got %d", inst.SeatsOccupied)
	}
	if h.Metrics.Get("checkin:already_used") != 3 {
		t.Errorf("expected 3 replays counted, got %d", h.Metrics.Get("checkin:already_used"))
	}

	if _, err := h.CheckIns.CheckQR(ctx, driverOne, payload); !errors.Is(err, domain.ErrTokenAlreadyUsed) {
		t.Errorf("expected rescanning a used code to fail, got %v", err)
	}
}

func TestCheckIn_HandleExpires(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	_, _, payload := boardingSetup(t, h, 1)
	ctx := context.Background()

	result, err := h.CheckIns.CheckQR(ctx, driverOne, payload)
	if err != nil {
		t.Fatalf("CheckQR: %v", err)
	}
	h.Clock.Advance(91 * time.Second)

	if _, err := h.CheckIns.ConfirmCheckIn(ctx, driverOne, result.Handle); !errors.Is(err, service.ErrVerificationExpired) {
		t.Errorf("expected expired verification, got %v", err)
	}
}

func TestCheckIn_HandleBelongsToScanningDriver(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	_, _, payload := boardingSetup(t, h, 1)
	ctx := context.Background()

	result, err := h.CheckIns.CheckQR(ctx, driverOne, payload)
	if err != nil {
		t.Fatalf("CheckQR: %v", err)
	}
	if _, err := h.CheckIns.ConfirmCheckIn(ctx, driverTwo, result.Handle); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected another driver's confirm to fail, got %v", err)
	}
}

func TestCheckIn_ScanFailures(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	_, b, payload := boardingSetup(t, h, 1)
	ctx := context.Background()

	forged, err := h.Signer.Sign(&domain.CheckInToken{ID: "tok-x", BookingID: b.ID, IssuedAt: h.Clock.Now()}, testHotel)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	issued, err := h.Store.Repositories().CheckIns.GetByBookingID(ctx, b.ID)
	if err != nil || issued == nil {
		t.Fatalf("GetByBookingID: %v", err)
	}
	swapped, err := h.Signer.Sign(&domain.CheckInToken{ID: issued.ID, BookingID: "bk-other", IssuedAt: h.Clock.Now()}, testHotel)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	testCases := []struct {
		name    string
		actor   domain.Actor
		payload string
		want    error
	}{
		{"garbage payload", driverOne, "not-a-qr", domain.ErrTokenInvalid},
		{"unknown token", driverOne, forged, domain.ErrTokenInvalid},
		{"token of another booking", driverOne, swapped, domain.ErrTokenInvalid},
		{"not the trip driver", driverTwo, payload, domain.ErrBookingNotEligible},
		{"frontdesk cannot scan", frontdesk, payload, service.ErrRoleNotAllowed},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := h.CheckIns.CheckQR(ctx, tc.actor, tc.payload); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCheckIn_NotEligibleBeforeTripStarts(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	f := h.SeedFleet(t, 6, 25)
	ctx := context.Background()

	b := h.MustConfirm(t, h.MustBook(t, f.Instance.ID, 1).ID)
	qr, err := h.CheckIns.IssueQR(ctx, frontdesk, b.ID)
	if err != nil {
		t.Fatalf("IssueQR: %v", err)
	}
	if _, err := h.CheckIns.CheckQR(ctx, driverOne, qr.Payload); !errors.Is(err, domain.ErrBookingNotEligible) {
		t.Errorf("expected not eligible before start, got %v", err)
	}
}

func TestCheckIn_BoardedBookingCannotBeCancelled(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	_, b, payload := boardingSetup(t, h, 1)
	ctx := context.Background()

	result, err := h.CheckIns.CheckQR(ctx, driverOne, payload)
	if err != nil {
		t.Fatalf("CheckQR: %v", err)
	}
	if _, err := h.CheckIns.ConfirmCheckIn(ctx, driverOne, result.Handle); err != nil {
		t.Fatalf("ConfirmCheckIn: %v", err)
	}
	if _, err := h.Bookings.Cancel(ctx, frontdesk, b.ID, "oops"); !errors.Is(err, domain.ErrAlreadyCheckedIn) {
		t.Errorf("expected boarded booking to refuse cancel, got %v", err)
	}
}

// ──────────────────────────────────────────────
// 9. RECEIPTS
// ──────────────────────────────────────────────

func TestReceipt_ConfirmedBookingOnly(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	f := h.SeedFleet(t, 6, 25)
	ctx := context.Background()

	pending := h.MustBook(t, f.Instance.ID, 2)
	if _, err := h.Receipts.GenerateReceipt(ctx, frontdesk, pending.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("expected pending booking to have no receipt, got %v", err)
	}

	h.MustConfirm(t, pending.ID)
	r, err := h.Receipts.GenerateReceipt(ctx, frontdesk, pending.ID)
	if err != nil {
		t.Fatalf("GenerateReceipt: %v", err)
	}
	if r.TotalPrice != 50 || len(r.Lines) != 1 || r.VehicleNumber != "S1" {
		t.Errorf("unexpected receipt %+v", r)
	}

	pdf, name, err := h.Receipts.RenderPDF(r)
	if err != nil {
		t.Fatalf("RenderPDF: %v", err)
	}
	if len(pdf) < 4 || string(pdf[:4]) != "%PDF" || name == "" {
		t.Errorf("expected a PDF document, got %d bytes named %q", len(pdf), name)
	}
}
