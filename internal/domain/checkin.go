package domain

import "time"

// CheckInStatus is the lifecycle of a QR check-in token.
// VERIFIED is never stored: it lives as a short-lived verification handle.
type CheckInStatus string

const (
	CheckInIssued   CheckInStatus = "ISSUED"
	CheckInVerified CheckInStatus = "VERIFIED"
	CheckInConsumed CheckInStatus = "CONSUMED"
	CheckInRejected CheckInStatus = "REJECTED"
)

// CheckInToken is the single-use token behind a booking's QR code.
type CheckInToken struct {
	ID         string
	BookingID  string
	Status     CheckInStatus
	IssuedAt   time.Time
	ConsumedAt time.Time
	ConsumedBy string
}

// Usable reports why the token cannot be redeemed, if it cannot.
func (t *CheckInToken) Usable() error {
	switch t.Status {
	case CheckInConsumed:
		return ErrTokenAlreadyUsed
	case CheckInRejected:
		return ErrTokenRejected
	}
	return nil
}

// Consume redeems the token. It is a compare-and-swap on Status: only an
// unconsumed token moves to CONSUMED.
func (t *CheckInToken) Consume(driverID string, now time.Time) error {
	if err := t.Usable(); err != nil {
		return err
	}
	t.Status = CheckInConsumed
	t.ConsumedAt = now
	t.ConsumedBy = driverID
	return nil
}

// Revoke rejects a token whose booking can no longer travel.
func (t *CheckInToken) Revoke() {
	if t.Status != CheckInConsumed {
		t.Status = CheckInRejected
	}
}
