package tests

import (
	"context"
	"strings"
	"testing"
)

// assertInstanceLockedFirst fails when a transaction that locks more than one
// row does not lock its trip instance before any booking or token, or when it
// locks more than one trip instance.
func assertInstanceLockedFirst(t *testing.T, txs [][]string) {
	t.Helper()
	for i, rows := range txs {
		if len(rows) < 2 {
			continue
		}
		if !strings.HasPrefix(rows[0], "instance:") {
			t.Errorf("transaction %d locks %v before its trip instance", i, rows)
			continue
		}
		for _, row := range rows[1:] {
			if strings.HasPrefix(row, "instance:") && row != rows[0] {
				t.Errorf("transaction %d locks two trip instances: %v", i, rows)
			}
		}
	}
}

// lockedKinds reduces "kind:id" rows to their kinds.
func lockedKinds(rows []string) string {
	kinds := make([]string, 0, len(rows))
	for _, row := range rows {
		kind, _, _ := strings.Cut(row, ":")
		kinds = append(kinds, kind)
	}
	return strings.Join(kinds, ",")
}

func TestLockOrder_SingleBookingTransactions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		run  func(t *testing.T, h *Harness, instanceID string)
		want string
	}{
		{
			name: "confirm",
			run: func(t *testing.T, h *Harness, instanceID string) {
				b := h.MustBook(t, instanceID, 1)
				h.Locks.Reset()
				h.MustConfirm(t, b.ID)
			},
			want: "instance,booking",
		},
		{
			name: "cancel confirmed booking",
			run: func(t *testing.T, h *Harness, instanceID string) {
				b := h.MustConfirm(t, h.MustBook(t, instanceID, 1).ID)
				h.Locks.Reset()
				if _, err := h.Bookings.Cancel(context.Background(), frontdesk, b.ID, "plans changed"); err != nil {
					t.Fatalf("Cancel: %v", err)
				}
			},
			want: "instance,booking,token",
		},
		{
			name: "reject",
			run: func(t *testing.T, h *Harness, instanceID string) {
				b := h.MustBook(t, instanceID, 1)
				h.Locks.Reset()
				if _, err := h.Bookings.Reject(context.Background(), frontdesk, b.ID, "full"); err != nil {
					t.Fatalf("Reject: %v", err)
				}
			},
			want: "booking",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewHarness(t)
			f := h.SeedFleet(t, 6, 0)

			tt.run(t, h, f.Instance.ID)

			txs := h.Locks.Transactions()
			if len(txs) != 1 {
				t.Fatalf("expected one transaction, got %v", txs)
			}
			if got := lockedKinds(txs[0]); got != tt.want {
				t.Errorf("expected locks %s, got %s", tt.want, got)
			}
		})
	}
}

func TestLockOrder_ConfirmCheckInLocksTripBeforeToken(t *testing.T) {
	t.Parallel()

	h := NewHarness(t)
	_, _, payload := boardingSetup(t, h, 1)
	ctx := context.Background()

	scan, err := h.CheckIns.CheckQR(ctx, driverOne, payload)
	if err != nil {
		t.Fatalf("CheckQR: %v", err)
	}
	h.Locks.Reset()
	if _, err := h.CheckIns.ConfirmCheckIn(ctx, driverOne, scan.Handle); err != nil {
		t.Fatalf("ConfirmCheckIn: %v", err)
	}

	txs := h.Locks.Transactions()
	if len(txs) != 1 || lockedKinds(txs[0]) != "instance,booking,token" {
		t.Errorf("expected instance, booking, token in one transaction, got %v", txs)
	}
}

func TestLockOrder_EveryTransactionLocksTripFirst(t *testing.T) {
	t.Parallel()

	t.Run("booking lifecycle through trip end", func(t *testing.T) {
		t.Parallel()
		h := NewHarness(t)
		f := h.SeedFleet(t, 8, 0)
		ctx := context.Background()

		boarded := h.MustConfirm(t, h.MustBook(t, f.Instance.ID, 1).ID)
		noShow := h.MustConfirm(t, h.MustBook(t, f.Instance.ID, 2).ID)
		cancelled := h.MustConfirm(t, h.MustBook(t, f.Instance.ID, 1).ID)
		if _, err := h.Bookings.Cancel(ctx, frontdesk, cancelled.ID, "plans changed"); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if _, err := h.Bookings.Reject(ctx, frontdesk, h.MustBook(t, f.Instance.ID, 1).ID, "full"); err != nil {
			t.Fatalf("Reject: %v", err)
		}
		h.MustBook(t, f.Instance.ID, 1)

		if _, err := h.Trips.Start(ctx, driverOne, ""); err != nil {
			t.Fatalf("Start: %v", err)
		}
		qr, err := h.CheckIns.IssueQR(ctx, frontdesk, boarded.ID)
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
		if _, err := h.Trips.End(ctx, driverOne, f.Instance.ID, true); err != nil {
			t.Fatalf("End: %v", err)
		}
		if got := h.Booking(t, noShow.ID); got.CheckedIn() {
			t.Fatalf("no-show booking unexpectedly boarded")
		}

		assertInstanceLockedFirst(t, h.Locks.Transactions())
	})

	t.Run("admin cancels a trip with bookings", func(t *testing.T) {
		t.Parallel()
		h := NewHarness(t)
		f := h.SeedFleet(t, 6, 0)

		h.MustConfirm(t, h.MustBook(t, f.Instance.ID, 2).ID)
		h.MustConfirm(t, h.MustBook(t, f.Instance.ID, 1).ID)
		h.MustBook(t, f.Instance.ID, 1)
		h.Locks.Reset()

		if _, err := h.Trips.Cancel(context.Background(), hotelAdmin, f.Instance.ID, "storm"); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		txs := h.Locks.Transactions()
		if len(txs) != 1 || !strings.HasPrefix(txs[0][0], "instance:") || len(txs[0]) < 4 {
			t.Errorf("expected one transaction locking the trip then its bookings, got %v", txs)
		}
		assertInstanceLockedFirst(t, txs)
	})
}
