package memory

import (
	"context"
	"sort"
	"time"

	"shuttle/internal/domain"
	"shuttle/internal/repository"
)

// TripRepository is the in-memory repository.TripRepository.
type TripRepository struct{ v view }

func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	return r.v.write(func(d *dataset) error {
		if _, ok := d.trips[trip.ID]; ok {
			return repository.ErrDuplicate
		}
		d.trips[trip.ID] = cloneTrip(*trip)
		return nil
	})
}

func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	var out *domain.Trip
	r.v.read(func(d *dataset) {
		if t, ok := d.trips[id]; ok {
			t = cloneTrip(t)
			out = &t
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *TripRepository) ListByHotel(ctx context.Context, hotelID string) ([]*domain.Trip, error) {
	var out []*domain.Trip
	r.v.read(func(d *dataset) {
		for _, t := range d.trips {
			if t.HotelID == hotelID {
				t = cloneTrip(t)
				out = append(out, &t)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *TripRepository) Update(ctx context.Context, trip *domain.Trip) error {
	return r.v.write(func(d *dataset) error {
		if _, ok := d.trips[trip.ID]; !ok {
			return repository.ErrNotFound
		}
		d.trips[trip.ID] = cloneTrip(*trip)
		return nil
	})
}

func (r *TripRepository) Delete(ctx context.Context, id string) error {
	return r.v.write(func(d *dataset) error {
		if _, ok := d.trips[id]; !ok {
			return repository.ErrNotFound
		}
		delete(d.trips, id)
		return nil
	})
}

func (r *TripRepository) CountSlotsByShuttle(ctx context.Context, shuttleID string) (int, error) {
	n := 0
	r.v.read(func(d *dataset) {
		for _, t := range d.trips {
			for _, s := range t.Slots {
				if s.ShuttleID == shuttleID {
					n++
				}
			}
		}
	})
	return n, nil
}

// TripInstanceRepository is the in-memory repository.TripInstanceRepository.
type TripInstanceRepository struct{ v view }

func (r *TripInstanceRepository) Create(ctx context.Context, instance *domain.TripInstance) error {
	return r.v.write(func(d *dataset) error {
		if _, ok := d.instances[instance.ID]; ok {
			return repository.ErrDuplicate
		}
		for _, t := range d.instances {
			if t.TripSlotID == instance.TripSlotID && t.ScheduledDate == instance.ScheduledDate {
				return repository.ErrDuplicate
			}
		}
		d.instances[instance.ID] = storedInstance(instance)
		return nil
	})
}

func (r *TripInstanceRepository) GetByID(ctx context.Context, id string) (*domain.TripInstance, error) {
	out := r.find(func(t *domain.TripInstance) bool { return t.ID == id })
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

// GetForUpdate needs no extra locking: transactions are already serialized.
func (r *TripInstanceRepository) GetForUpdate(ctx context.Context, id string) (*domain.TripInstance, error) {
	return r.GetByID(ctx, id)
}

func (r *TripInstanceRepository) GetBySlotAndDate(ctx context.Context, slotID, date string) (*domain.TripInstance, error) {
	return r.find(func(t *domain.TripInstance) bool {
		return t.TripSlotID == slotID && t.ScheduledDate == date
	}), nil
}

func (r *TripInstanceRepository) GetByRouteID(ctx context.Context, routeID string) (*domain.TripInstance, error) {
	out := r.find(func(t *domain.TripInstance) bool { return t.Leg(routeID) != nil })
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

func (r *TripInstanceRepository) ListByHotelAndDate(ctx context.Context, hotelID, date string, page repository.PageRequest) (repository.Page[*domain.TripInstance], error) {
	var after *repository.Cursor
	if page.Cursor != "" {
		c, err := repository.DecodeCursor(page.Cursor)
		if err != nil {
			return repository.Page[*domain.TripInstance]{}, err
		}
		after = &c
	}
	items := r.filter(func(t *domain.TripInstance) bool {
		if t.HotelID != hotelID || t.ScheduledDate != date {
			return false
		}
		if after == nil {
			return true
		}
		return t.ScheduledStart.After(after.At) ||
			(t.ScheduledStart.Equal(after.At) && t.ID > after.ID)
	})
	size := page.Size(repository.TripInstancePageSize)
	if len(items) > size+1 {
		items = items[:size+1]
	}
	return repository.NewPage(items, size, func(t *domain.TripInstance) (time.Time, string) {
		return t.ScheduledStart, t.ID
	}), nil
}

func (r *TripInstanceRepository) ListByShuttleAndDate(ctx context.Context, shuttleID, date string) ([]*domain.TripInstance, error) {
	return r.filter(func(t *domain.TripInstance) bool {
		return t.ShuttleID == shuttleID && t.ScheduledDate == date
	}), nil
}

func (r *TripInstanceRepository) GetActiveByDriverID(ctx context.Context, driverID string) (*domain.TripInstance, error) {
	return r.find(func(t *domain.TripInstance) bool {
		return t.DriverID == driverID && t.Status == domain.TripStatusInProgress
	}), nil
}

func (r *TripInstanceRepository) CountOpenByTrip(ctx context.Context, tripID string) (int, error) {
	return len(r.filter(func(t *domain.TripInstance) bool {
		return t.TripID == tripID && !t.Closed()
	})), nil
}

func (r *TripInstanceRepository) Update(ctx context.Context, instance *domain.TripInstance) error {
	return r.v.write(func(d *dataset) error {
		if _, ok := d.instances[instance.ID]; !ok {
			return repository.ErrNotFound
		}
		d.instances[instance.ID] = storedInstance(instance)
		return nil
	})
}

// find returns a copy of the first instance, in scheduled order, matching fn.
func (r *TripInstanceRepository) find(fn func(*domain.TripInstance) bool) *domain.TripInstance {
	items := r.filter(fn)
	if len(items) == 0 {
		return nil
	}
	return items[0]
}

// filter returns copies of matching instances ordered by scheduled start, then id.
func (r *TripInstanceRepository) filter(fn func(*domain.TripInstance) bool) []*domain.TripInstance {
	var out []*domain.TripInstance
	r.v.read(func(d *dataset) {
		for _, t := range d.instances {
			t = cloneInstance(t)
			if fn(&t) {
				out = append(out, &t)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledStart.Equal(out[j].ScheduledStart) {
			return out[i].ScheduledStart.Before(out[j].ScheduledStart)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// storedInstance copies an instance for storage, dropping derived leg flags.
func storedInstance(instance *domain.TripInstance) domain.TripInstance {
	t := cloneInstance(*instance)
	for i := range t.Routes {
		t.Routes[i].CanBeSkipped = false
	}
	return t
}

var (
	_ repository.TripRepository         = (*TripRepository)(nil)
	_ repository.TripInstanceRepository = (*TripInstanceRepository)(nil)
)
