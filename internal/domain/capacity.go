package domain

import "fmt"

// HoldSeats reserves seats on every leg in [fromSeq, toSeq). Either all legs
// are updated or none: capacity is checked on every leg before any change.
func (t *TripInstance) HoldSeats(fromSeq, toSeq, seats int) error {
	legs, err := t.span(fromSeq, toSeq, seats)
	if err != nil {
		return err
	}
	for _, i := range legs {
		leg := &t.Routes[i]
		if leg.SeatHeld+seats > t.Capacity {
			return fmt.Errorf("%w: %s to %s has %d of %d seats held, %d requested",
				ErrCapacityExceeded, leg.StartLocation, leg.EndLocation, leg.SeatHeld, t.Capacity, seats)
		}
	}
	for _, i := range legs {
		t.Routes[i].SeatHeld += seats
	}
	t.recomputePeaks()
	return nil
}

// ReleaseSeats undoes HoldSeats for a booking that was rejected or cancelled
// before boarding.
func (t *TripInstance) ReleaseSeats(fromSeq, toSeq, seats int) error {
	legs, err := t.span(fromSeq, toSeq, seats)
	if err != nil {
		return err
	}
	for _, i := range legs {
		leg := &t.Routes[i]
		if leg.SeatHeld-seats < leg.SeatsOccupied || leg.SeatHeld-seats < 0 {
			return ErrSeatUnderflow
		}
	}
	for _, i := range legs {
		t.Routes[i].SeatHeld -= seats
	}
	t.recomputePeaks()
	return nil
}

// OccupySeats records boarded passengers. Occupancy never exceeds holds.
func (t *TripInstance) OccupySeats(fromSeq, toSeq, seats int) error {
	legs, err := t.span(fromSeq, toSeq, seats)
	if err != nil {
		return err
	}
	for _, i := range legs {
		leg := &t.Routes[i]
		if leg.SeatsOccupied+seats > leg.SeatHeld {
			return ErrOccupancyOverHold
		}
	}
	for _, i := range legs {
		t.Routes[i].SeatsOccupied += seats
	}
	t.recomputePeaks()
	return nil
}

// RemainingSeats is the number of seats still free on the busiest leg of the range.
func (t *TripInstance) RemainingSeats(fromSeq, toSeq int) int {
	remaining := t.Capacity
	for i := range t.Routes {
		leg := t.Routes[i]
		if leg.Seq >= fromSeq && leg.Seq < toSeq && t.Capacity-leg.SeatHeld < remaining {
			remaining = t.Capacity - leg.SeatHeld
		}
	}
	return remaining
}

// CapacityInvariantHolds reports seatsOccupied <= seatHeld <= capacity on
// the instance and on every leg.
func (t *TripInstance) CapacityInvariantHolds() bool {
	if t.SeatsOccupied > t.SeatHeld || t.SeatHeld > t.Capacity {
		return false
	}
	for _, leg := range t.Routes {
		if leg.SeatsOccupied < 0 || leg.SeatsOccupied > leg.SeatHeld || leg.SeatHeld > t.Capacity {
			return false
		}
	}
	return true
}

func (t *TripInstance) span(fromSeq, toSeq, seats int) ([]int, error) {
	if seats < 1 {
		return nil, ErrInvalidSeats
	}
	if fromSeq < 0 || toSeq <= fromSeq || toSeq > len(t.Routes) {
		return nil, ErrInvalidLegRange
	}
	legs := make([]int, 0, toSeq-fromSeq)
	for i := range t.Routes {
		if t.Routes[i].Seq >= fromSeq && t.Routes[i].Seq < toSeq {
			legs = append(legs, i)
		}
	}
	if len(legs) != toSeq-fromSeq {
		return nil, ErrInvalidLegRange
	}
	return legs, nil
}

// recomputePeaks derives the instance counters from the legs, so a segment
// booking on disjoint legs is never counted twice.
func (t *TripInstance) recomputePeaks() {
	held, occupied := 0, 0
	for _, leg := range t.Routes {
		if leg.SeatHeld > held {
			held = leg.SeatHeld
		}
		if leg.SeatsOccupied > occupied {
			occupied = leg.SeatsOccupied
		}
	}
	t.SeatHeld = held
	t.SeatsOccupied = occupied
}
