package memory

import (
	"context"
	"sort"
	"time"

	"shuttle/internal/domain"
	"shuttle/internal/repository"
)

// BookingRepository is the in-memory repository.BookingRepository.
type BookingRepository struct{ v view }

func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	return r.v.write(func(d *dataset) error {
		if _, ok := d.bookings[booking.ID]; ok {
			return repository.ErrDuplicate
		}
		d.bookings[booking.ID] = *booking
		return nil
	})
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	var out *domain.Booking
	r.v.read(func(d *dataset) {
		if b, ok := d.bookings[id]; ok {
			out = &b
		}
	})
	if out == nil {
		return nil, repository.ErrNotFound
	}
	return out, nil
}

// GetForUpdate needs no extra locking: transactions are already serialized.
func (r *BookingRepository) GetForUpdate(ctx context.Context, id string) (*domain.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r *BookingRepository) Update(ctx context.Context, booking *domain.Booking) error {
	return r.v.write(func(d *dataset) error {
		if _, ok := d.bookings[booking.ID]; !ok {
			return repository.ErrNotFound
		}
		d.bookings[booking.ID] = *booking
		return nil
	})
}

func (r *BookingRepository) ListByTripInstance(ctx context.Context, tripInstanceID string) ([]*domain.Booking, error) {
	items := r.filter(func(b *domain.Booking) bool { return b.TripInstanceID == tripInstanceID })
	// oldest first, the order a driver works through a manifest
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

func (r *BookingRepository) List(ctx context.Context, filter repository.BookingFilter, page repository.PageRequest) (repository.Page[*domain.Booking], error) {
	var before *repository.Cursor
	if page.Cursor != "" {
		c, err := repository.DecodeCursor(page.Cursor)
		if err != nil {
			return repository.Page[*domain.Booking]{}, err
		}
		before = &c
	}
	items := r.filter(func(b *domain.Booking) bool {
		if filter.HotelID != "" && b.HotelID != filter.HotelID {
			return false
		}
		if filter.Status != "" && b.Status != filter.Status {
			return false
		}
		if filter.TripInstanceID != "" && b.TripInstanceID != filter.TripInstanceID {
			return false
		}
		if before == nil {
			return true
		}
		return b.CreatedAt.Before(before.At) ||
			(b.CreatedAt.Equal(before.At) && b.ID < before.ID)
	})
	size := page.Size(repository.BookingPageSize)
	if len(items) > size+1 {
		items = items[:size+1]
	}
	return repository.NewPage(items, size, func(b *domain.Booking) (time.Time, string) {
		return b.CreatedAt, b.ID
	}), nil
}

func (r *BookingRepository) AppendEvent(ctx context.Context, event *domain.BookingEvent) error {
	return r.v.write(func(d *dataset) error {
		d.events[event.BookingID] = append(d.events[event.BookingID], *event)
		return nil
	})
}

func (r *BookingRepository) ListEvents(ctx context.Context, bookingID string) ([]*domain.BookingEvent, error) {
	var out []*domain.BookingEvent
	r.v.read(func(d *dataset) {
		for _, e := range d.events[bookingID] {
			e := e
			out = append(out, &e)
		}
	})
	return out, nil
}

// filter returns copies of matching bookings, newest first.
func (r *BookingRepository) filter(fn func(*domain.Booking) bool) []*domain.Booking {
	var out []*domain.Booking
	r.v.read(func(d *dataset) {
		for _, b := range d.bookings {
			b := b
			if fn(&b) {
				out = append(out, &b)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

var _ repository.BookingRepository = (*BookingRepository)(nil)
