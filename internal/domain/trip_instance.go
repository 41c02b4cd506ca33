package domain

import "time"

// TripInstanceStatus represents the lifecycle status of a trip instance.
type TripInstanceStatus string

const (
	TripStatusPending    TripInstanceStatus = "PENDING"
	TripStatusInProgress TripInstanceStatus = "IN_PROGRESS"
	TripStatusCompleted  TripInstanceStatus = "COMPLETED"
	TripStatusCancelled  TripInstanceStatus = "CANCELLED"
)

// TripPhase tracks round-trip progress. It only moves forward.
type TripPhase string

const (
	PhaseOutbound  TripPhase = "OUTBOUND"
	PhaseReturn    TripPhase = "RETURN"
	PhaseCompleted TripPhase = "COMPLETED"
)

// TripInstance is one occurrence of a trip slot on a calendar date.
type TripInstance struct {
	ID             string
	HotelID        string
	TripID         string
	TripSlotID     string
	TripName       string
	Direction      Direction
	ShuttleID      string
	DriverID       string
	ScheduledDate  string // YYYY-MM-DD
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	ActualStart    time.Time
	ActualEnd      time.Time
	Status         TripInstanceStatus
	Phase          TripPhase
	Capacity       int
	SeatHeld       int // peak held seats over all legs
	SeatsOccupied  int // peak boarded seats over all legs
	Routes         []RouteInstance
	CreatedAt      time.Time
}

// RouteInstance is one stop-to-stop leg of a trip instance.
type RouteInstance struct {
	ID              string
	TripInstanceID  string
	Seq             int // leg i runs from stop i to stop i+1
	StartLocationID string
	StartLocation   string
	EndLocationID   string
	EndLocation     string
	Charges         float64
	SeatHeld        int
	SeatsOccupied   int
	Completed       bool
	Skipped         bool
	CompletedAt     time.Time
	CanBeSkipped    bool // derived from live bookings, never persisted
}

// Done reports whether the leg no longer blocks progress.
func (r *RouteInstance) Done() bool {
	return r.Completed || r.Skipped
}

// Closed reports whether the instance reached a terminal status.
func (t *TripInstance) Closed() bool {
	return t.Status == TripStatusCompleted || t.Status == TripStatusCancelled
}

// Start moves a pending instance into progress and records the driver.
func (t *TripInstance) Start(driverID string, now time.Time) error {
	if t.Status != TripStatusPending {
		return ErrTripNotPending
	}
	t.Status = TripStatusInProgress
	t.Phase = PhaseOutbound
	t.DriverID = driverID
	t.ActualStart = now
	return nil
}

// TransitionPhase moves the outbound leg of a round trip into its return leg.
// Calling it twice fails: the phase never goes backwards or repeats.
func (t *TripInstance) TransitionPhase(to TripPhase) error {
	if to != PhaseReturn {
		return ErrInvalidPhase
	}
	if t.Status != TripStatusInProgress {
		return ErrTripNotInProgress
	}
	if t.Phase != PhaseOutbound {
		return ErrPhaseNotOutbound
	}
	t.Phase = PhaseReturn
	return nil
}

// End completes an in-progress instance.
func (t *TripInstance) End(now time.Time) error {
	if t.Status != TripStatusInProgress {
		return ErrTripNotInProgress
	}
	t.Status = TripStatusCompleted
	t.Phase = PhaseCompleted
	t.ActualEnd = now
	return nil
}

// Cancel aborts a pending or in-progress instance.
func (t *TripInstance) Cancel(now time.Time) error {
	if t.Closed() {
		return ErrTripClosed
	}
	t.Status = TripStatusCancelled
	t.ActualEnd = now
	return nil
}

// CurrentLeg returns the first leg that is neither completed nor skipped,
// or nil when every leg is done.
func (t *TripInstance) CurrentLeg() *RouteInstance {
	for i := range t.Routes {
		if !t.Routes[i].Done() {
			return &t.Routes[i]
		}
	}
	return nil
}

// AllLegsDone reports whether the instance is ready to be ended.
func (t *TripInstance) AllLegsDone() bool {
	return t.CurrentLeg() == nil
}

// Leg returns the leg with the given route instance id.
func (t *TripInstance) Leg(routeID string) *RouteInstance {
	for i := range t.Routes {
		if t.Routes[i].ID == routeID {
			return &t.Routes[i]
		}
	}
	return nil
}

// CompleteLeg marks the current leg completed.
func (t *TripInstance) CompleteLeg(routeID string, now time.Time) error {
	leg, err := t.currentLegFor(routeID)
	if err != nil {
		return err
	}
	leg.Completed = true
	leg.CompletedAt = now
	return nil
}

// SkipLeg marks the current leg skipped. RefreshSkippable must have been
// called with the instance's bookings first.
func (t *TripInstance) SkipLeg(routeID string, now time.Time) error {
	leg, err := t.currentLegFor(routeID)
	if err != nil {
		return err
	}
	if !leg.CanBeSkipped {
		return ErrLegNotSkippable
	}
	leg.Skipped = true
	leg.CompletedAt = now
	return nil
}

func (t *TripInstance) currentLegFor(routeID string) (*RouteInstance, error) {
	if t.Status != TripStatusInProgress {
		return nil, ErrTripNotInProgress
	}
	if t.Leg(routeID) == nil {
		return nil, ErrLegNotFound
	}
	current := t.CurrentLeg()
	if current == nil || current.ID != routeID {
		return nil, ErrLegNotCurrent
	}
	return current, nil
}

// RefreshSkippable recomputes CanBeSkipped: a leg can be skipped only when no
// pending or confirmed booking spans it.
func (t *TripInstance) RefreshSkippable(bookings []*Booking) {
	for i := range t.Routes {
		leg := &t.Routes[i]
		leg.CanBeSkipped = true
		for _, b := range bookings {
			if b.TripInstanceID == t.ID && b.Active() && b.SpansLeg(leg.Seq) {
				leg.CanBeSkipped = false
				break
			}
		}
	}
}
