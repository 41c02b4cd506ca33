package memory

import (
	"context"
	"sort"

	"shuttle/internal/domain"
	"shuttle/internal/repository"
)

// LocationRepository is the in-memory repository.LocationRepository.
type LocationRepository struct{ v view }

func (r *LocationRepository) Create(ctx context.Context, location *domain.Location) error {
	return r.v.write(func(d *dataset) error {
		if _, ok := d.locations[location.ID]; ok {
			return repository.ErrDuplicate
		}
		d.locations[location.ID] = *location
		return nil
	})
}

func (r *LocationRepository) GetByID(ctx context.Context, id string) (*domain.Location, error) {
	var out *domain.Location
	r.v.read(func(d *dataset) {
		if l, ok := d.locations[id]; ok {
			out = &l
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *LocationRepository) ListByHotel(ctx context.Context, hotelID string) ([]*domain.Location, error) {
	var out []*domain.Location
	r.v.read(func(d *dataset) {
		for _, l := range d.locations {
			if l.HotelID == hotelID {
				l := l
				out = append(out, &l)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *LocationRepository) Update(ctx context.Context, location *domain.Location) error {
	return r.v.write(func(d *dataset) error {
		if _, ok := d.locations[location.ID]; !ok {
			return repository.ErrNotFound
		}
		d.locations[location.ID] = *location
		return nil
	})
}

func (r *LocationRepository) Delete(ctx context.Context, id string) error {
	return r.v.write(func(d *dataset) error {
		if _, ok := d.locations[id]; !ok {
			return repository.ErrNotFound
		}
		delete(d.locations, id)
		return nil
	})
}

func (r *LocationRepository) IsReferenced(ctx context.Context, id string) (bool, error) {
	found := false
	r.v.read(func(d *dataset) {
		for _, t := range d.trips {
			for _, s := range t.Stops {
				if s.LocationID == id {
					found = true
					return
				}
			}
		}
	})
	return found, nil
}

// ShuttleRepository is the in-memory repository.ShuttleRepository.
type ShuttleRepository struct{ v view }

func (r *ShuttleRepository) Create(ctx context.Context, shuttle *domain.Shuttle) error {
	return r.v.write(func(d *dataset) error {
		if _, ok := d.shuttles[shuttle.ID]; ok {
			return repository.ErrDuplicate
		}
		if vehicleTaken(d, shuttle) {
			return repository.ErrDuplicate
		}
		d.shuttles[shuttle.ID] = *shuttle
		return nil
	})
}

func (r *ShuttleRepository) GetByID(ctx context.Context, id string) (*domain.Shuttle, error) {
	var out *domain.Shuttle
	r.v.read(func(d *dataset) {
		if s, ok := d.shuttles[id]; ok {
			out = &s
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *ShuttleRepository) ListByHotel(ctx context.Context, hotelID string) ([]*domain.Shuttle, error) {
	var out []*domain.Shuttle
	r.v.read(func(d *dataset) {
		for _, s := range d.shuttles {
			if s.HotelID == hotelID {
				s := s
				out = append(out, &s)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleNumber < out[j].VehicleNumber })
	return out, nil
}

func (r *ShuttleRepository) Update(ctx context.Context, shuttle *domain.Shuttle) error {
	return r.v.write(func(d *dataset) error {
		if _, ok := d.shuttles[shuttle.ID]; !ok {
			return repository.ErrNotFound
		}
		if vehicleTaken(d, shuttle) {
			return repository.ErrDuplicate
		}
		d.shuttles[shuttle.ID] = *shuttle
		return nil
	})
}

func (r *ShuttleRepository) Delete(ctx context.Context, id string) error {
	return r.v.write(func(d *dataset) error {
		if _, ok := d.shuttles[id]; !ok {
			return repository.ErrNotFound
		}
		delete(d.shuttles, id)
		for driverID, a := range d.assignments {
			if a.ShuttleID == id {
				delete(d.assignments, driverID)
			}
		}
		return nil
	})
}

func vehicleTaken(d *dataset, shuttle *domain.Shuttle) bool {
	for _, s := range d.shuttles {
		if s.ID != shuttle.ID && s.HotelID == shuttle.HotelID && s.VehicleNumber == shuttle.VehicleNumber {
			return true
		}
	}
	return false
}

// AssignmentRepository is the in-memory repository.AssignmentRepository.
type AssignmentRepository struct{ v view }

func (r *AssignmentRepository) GetByDriver(ctx context.Context, driverID string) (*domain.DriverAssignment, error) {
	var out *domain.DriverAssignment
	r.v.read(func(d *dataset) {
		if a, ok := d.assignments[driverID]; ok {
			out = &a
		}
	})
	return out, nil
}

func (r *AssignmentRepository) GetByShuttle(ctx context.Context, shuttleID string) (*domain.DriverAssignment, error) {
	var out *domain.DriverAssignment
	r.v.read(func(d *dataset) {
		for _, a := range d.assignments {
			if a.ShuttleID == shuttleID {
				a := a
				out = &a
				return
			}
		}
	})
	return out, nil
}

func (r *AssignmentRepository) ListByHotel(ctx context.Context, hotelID string) ([]*domain.DriverAssignment, error) {
	var out []*domain.DriverAssignment
	r.v.read(func(d *dataset) {
		for _, a := range d.assignments {
			if a.HotelID == hotelID {
				a := a
				out = append(out, &a)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].DriverID < out[j].DriverID })
	return out, nil
}

func (r *AssignmentRepository) Create(ctx context.Context, assignment *domain.DriverAssignment) error {
	return r.v.write(func(d *dataset) error {
		if _, ok := d.assignments[assignment.DriverID]; ok {
			return repository.ErrDuplicate
		}
		for _, a := range d.assignments {
			if a.ShuttleID == assignment.ShuttleID {
				return repository.ErrDuplicate
			}
		}
		d.assignments[assignment.DriverID] = *assignment
		return nil
	})
}

func (r *AssignmentRepository) DeleteByDriver(ctx context.Context, driverID string) (bool, error) {
	removed := false
	err := r.v.write(func(d *dataset) error {
		if _, ok := d.assignments[driverID]; ok {
			delete(d.assignments, driverID)
			removed = true
		}
		return nil
	})
	return removed, err
}

func (r *AssignmentRepository) DeleteByShuttle(ctx context.Context, shuttleID string) (bool, error) {
	removed := false
	err := r.v.write(func(d *dataset) error {
		for driverID, a := range d.assignments {
			if a.ShuttleID == shuttleID {
				delete(d.assignments, driverID)
				removed = true
			}
		}
		return nil
	})
	return removed, err
}

// CheckInTokenRepository is the in-memory repository.CheckInTokenRepository.
type CheckInTokenRepository struct{ v view }

func (r *CheckInTokenRepository) Create(ctx context.Context, token *domain.CheckInToken) error {
	return r.v.write(func(d *dataset) error {
		for _, t := range d.tokens {
			if t.ID == token.ID || t.BookingID == token.BookingID {
				return repository.ErrDuplicate
			}
		}
		d.tokens[token.ID] = *token
		return nil
	})
}

func (r *CheckInTokenRepository) GetByID(ctx context.Context, id string) (*domain.CheckInToken, error) {
	var out *domain.CheckInToken
	r.v.read(func(d *dataset) {
		if t, ok := d.tokens[id]; ok {
			out = &t
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

// GetForUpdate needs no extra locking: transactions are already serialized.
func (r *CheckInTokenRepository) GetForUpdate(ctx context.Context, id string) (*domain.CheckInToken, error) {
	return r.GetByID(ctx, id)
}

func (r *CheckInTokenRepository) GetByBookingID(ctx context.Context, bookingID string) (*domain.CheckInToken, error) {
	var out *domain.CheckInToken
	r.v.read(func(d *dataset) {
		for _, t := range d.tokens {
			if t.BookingID == bookingID {
				t := t
				out = &t
				return
			}
		}
	})
	return out, nil
}

func (r *CheckInTokenRepository) Update(ctx context.Context, token *domain.CheckInToken) error {
	return r.v.write(func(d *dataset) error {
		if _, ok := d.tokens[token.ID]; !ok {
			return repository.ErrNotFound
		}
		d.tokens[token.ID] = *token
		return nil
	})
}

// Ensure the in-memory repositories implement the repository interfaces.
var (
	_ repository.LocationRepository     = (*LocationRepository)(nil)
	_ repository.ShuttleRepository      = (*ShuttleRepository)(nil)
	_ repository.AssignmentRepository   = (*AssignmentRepository)(nil)
	_ repository.CheckInTokenRepository = (*CheckInTokenRepository)(nil)
)
