// Package memory is an in-process implementation of the repository layer.
// It backs the service tests and the STORAGE_DRIVER=memory development mode.
package memory

import (
	"context"
	"sync"

	"shuttle/internal/domain"
	"shuttle/internal/repository"
)

type dataset struct {
	locations   map[string]domain.Location
	trips       map[string]domain.Trip
	instances   map[string]domain.TripInstance
	bookings    map[string]domain.Booking
	events      map[string][]domain.BookingEvent
	shuttles    map[string]domain.Shuttle
	assignments map[string]domain.DriverAssignment // keyed by driver
	tokens      map[string]domain.CheckInToken
}

func newDataset() *dataset {
	return &dataset{
		locations:   make(map[string]domain.Location),
		trips:       make(map[string]domain.Trip),
		instances:   make(map[string]domain.TripInstance),
		bookings:    make(map[string]domain.Booking),
		events:      make(map[string][]domain.BookingEvent),
		shuttles:    make(map[string]domain.Shuttle),
		assignments: make(map[string]domain.DriverAssignment),
		tokens:      make(map[string]domain.CheckInToken),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.locations {
		c.locations[k] = v
	}
	for k, v := range d.trips {
		c.trips[k] = cloneTrip(v)
	}
	for k, v := range d.instances {
		c.instances[k] = cloneInstance(v)
	}
	for k, v := range d.bookings {
		c.bookings[k] = v
	}
	for k, v := range d.events {
		c.events[k] = append([]domain.BookingEvent(nil), v...)
	}
	for k, v := range d.shuttles {
		c.shuttles[k] = v
	}
	for k, v := range d.assignments {
		c.assignments[k] = v
	}
	for k, v := range d.tokens {
		c.tokens[k] = v
	}
	return c
}

func cloneTrip(t domain.Trip) domain.Trip {
	t.Stops = append([]domain.Stop(nil), t.Stops...)
	t.Slots = append([]domain.TripSlot(nil), t.Slots...)
	return t
}

func cloneInstance(t domain.TripInstance) domain.TripInstance {
	t.Routes = append([]domain.RouteInstance(nil), t.Routes...)
	return t
}

// Store is an in-memory repository.Store. Transactions are serialized and
// work on a private copy of the data that replaces the live copy on commit.
type Store struct {
	txMu sync.Mutex   // serializes writers
	mu   sync.RWMutex // guards data
	data *dataset
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: newDataset()}
}

// Repositories returns repositories that read and write the live data.
func (s *Store) Repositories() repository.Repositories {
	return s.reposFor(view{store: s})
}

// WithinTx runs fn against a snapshot and commits it if fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	if err := fn(ctx, s.reposFor(view{store: s, tx: work})); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

func (s *Store) reposFor(v view) repository.Repositories {
	return repository.Repositories{
		Locations:     &LocationRepository{v},
		Trips:         &TripRepository{v},
		TripInstances: &TripInstanceRepository{v},
		Bookings:      &BookingRepository{v},
		Shuttles:      &ShuttleRepository{v},
		Assignments:   &AssignmentRepository{v},
		CheckIns:      &CheckInTokenRepository{v},
	}
}

// view routes reads and writes either to a transaction snapshot or, outside
// a transaction, to the live data under the store's locks.
type view struct {
	store *Store
	tx    *dataset
}

func (v view) read(fn func(d *dataset)) {
	if v.tx != nil {
		fn(v.tx)
		return
	}
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	fn(v.store.data)
}

func (v view) write(fn func(d *dataset) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.txMu.Lock()
	defer v.store.txMu.Unlock()
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.data)
}

// Ensure Store implements repository.Store.
var _ repository.Store = (*Store)(nil)
