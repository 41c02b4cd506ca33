package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shuttle/internal/auth"
	"shuttle/internal/domain"
	"shuttle/internal/events"
	"shuttle/internal/redis"
	"shuttle/internal/repository"
	"shuttle/internal/repository/memory"
	"shuttle/internal/service"
)

// ──────────────────────────────────────────────
// FAKE CLOCK
// ──────────────────────────────────────────────

// FakeClock is a settable clock shared by every service of a harness.
type FakeClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewFakeClock creates a clock stopped at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{t: t}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Set moves the clock to t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// ──────────────────────────────────────────────
// MOCK PUBLISHER
// ──────────────────────────────────────────────

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []events.Event

	// Counters
	PublishCallCount int32

	// Error injection
	PublishError error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Name() string { return "mock" }

func (m *MockPublisher) Publish(ctx context.Context, e events.Event) error {
	atomic.AddInt32(&m.PublishCallCount, 1)
	if m.PublishError != nil {
		return m.PublishError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// Kinds returns the kinds of the recorded events in order.
func (m *MockPublisher) Kinds() []events.Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.Kind, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Kind)
	}
	return out
}

// Count returns how many events of kind were recorded.
func (m *MockPublisher) Count(kind events.Kind) int {
	n := 0
	for _, k := range m.Kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

// ──────────────────────────────────────────────
// MOCK METRICS
// ──────────────────────────────────────────────

// MockMetrics counts every metric call by label.
type MockMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMockMetrics creates a new mock metrics sink.
func NewMockMetrics() *MockMetrics {
	return &MockMetrics{counts: make(map[string]int)}
}

func (m *MockMetrics) inc(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
}

func (m *MockMetrics) BookingOutcome(outcome string) { m.inc("booking:" + outcome) }
func (m *MockMetrics) CheckInResult(result string)   { m.inc("checkin:" + result) }
func (m *MockMetrics) TripEvent(event string)        { m.inc("trip:" + event) }

func (m *MockMetrics) EventPublished(sink string, err error) {
	if err != nil {
		m.inc("event_failed:" + sink)
		return
	}
	m.inc("event:" + sink)
}

// Get returns the count recorded under key.
func (m *MockMetrics) Get(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}

// ──────────────────────────────────────────────
// LOCK RECORDER
// ──────────────────────────────────────────────

// LockRecorder wraps a store and records, per transaction, the order in which
// trip instance, booking and check-in token rows are first locked or written.
// On PostgreSQL both take a row lock that is held until commit.
type LockRecorder struct {
	repository.Store

	mu  sync.Mutex
	txs [][]string
}

// NewLockRecorder wraps store.
func NewLockRecorder(store repository.Store) *LockRecorder {
	return &LockRecorder{Store: store}
}

func (r *LockRecorder) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	tx := &lockLog{seen: make(map[string]bool)}
	err := r.Store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		repos.TripInstances = lockingInstances{repos.TripInstances, tx}
		repos.Bookings = lockingBookings{repos.Bookings, tx}
		repos.CheckIns = lockingTokens{repos.CheckIns, tx}
		return fn(ctx, repos)
	})
	r.mu.Lock()
	r.txs = append(r.txs, tx.order)
	r.mu.Unlock()
	return err
}

// Reset forgets every recorded transaction.
func (r *LockRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txs = nil
}

// Transactions returns the rows each transaction locked, in order.
func (r *LockRecorder) Transactions() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.txs...)
}

type lockLog struct {
	seen  map[string]bool
	order []string
}

func (l *lockLog) take(kind, id string) {
	key := kind + ":" + id
	if !l.seen[key] {
		l.seen[key] = true
		l.order = append(l.order, key)
	}
}

type lockingInstances struct {
	repository.TripInstanceRepository
	log *lockLog
}

func (r lockingInstances) GetForUpdate(ctx context.Context, id string) (*domain.TripInstance, error) {
	r.log.take("instance", id)
	return r.TripInstanceRepository.GetForUpdate(ctx, id)
}

func (r lockingInstances) Update(ctx context.Context, t *domain.TripInstance) error {
	r.log.take("instance", t.ID)
	return r.TripInstanceRepository.Update(ctx, t)
}

type lockingBookings struct {
	repository.BookingRepository
	log *lockLog
}

func (r lockingBookings) GetForUpdate(ctx context.Context, id string) (*domain.Booking, error) {
	r.log.take("booking", id)
	return r.BookingRepository.GetForUpdate(ctx, id)
}

func (r lockingBookings) Update(ctx context.Context, b *domain.Booking) error {
	r.log.take("booking", b.ID)
	return r.BookingRepository.Update(ctx, b)
}

type lockingTokens struct {
	repository.CheckInTokenRepository
	log *lockLog
}

func (r lockingTokens) GetForUpdate(ctx context.Context, id string) (*domain.CheckInToken, error) {
	r.log.take("token", id)
	return r.CheckInTokenRepository.GetForUpdate(ctx, id)
}

func (r lockingTokens) Update(ctx context.Context, t *domain.CheckInToken) error {
	r.log.take("token", t.ID)
	return r.CheckInTokenRepository.Update(ctx, t)
}

// ──────────────────────────────────────────────
// HARNESS
// ──────────────────────────────────────────────

const (
	testHotel = "hotel-1"
	testDate  = "2026-03-02"
)

// Actors of testHotel.
var (
	hotelAdmin = domain.Actor{UserID: "admin-1", Name: "Ada Admin", Role: domain.RoleHotelAdmin, HotelID: testHotel}
	frontdesk  = domain.Actor{UserID: "desk-1", Name: "Frank Desk", Role: domain.RoleFrontdesk, HotelID: testHotel}
	driverOne  = domain.Actor{UserID: "driver-1", Name: "Dana Driver", Role: domain.RoleDriver, HotelID: testHotel}
	driverTwo  = domain.Actor{UserID: "driver-2", Name: "Dev Driver", Role: domain.RoleDriver, HotelID: testHotel}
	guestOne   = domain.Actor{UserID: "guest-1", Name: "Gail Guest", Role: domain.RoleGuest, HotelID: testHotel}
	outsider   = domain.Actor{UserID: "desk-9", Name: "Other Desk", Role: domain.RoleFrontdesk, HotelID: "hotel-2"}
)

// Harness wires every service against one in-memory store.
type Harness struct {
	Store     *memory.Store
	Locks     *LockRecorder
	Clock     *FakeClock
	Publisher *MockPublisher
	Metrics   *MockMetrics
	Positions *redis.LocalPositionStore
	Signer    *auth.QRSigner

	Locations *service.LocationService
	Schedule  *service.ScheduleService
	Shuttles  *service.ShuttleService
	Trips     *service.TripService
	Bookings  *service.BookingService
	CheckIns  *service.CheckInService
	Receipts  *service.ReceiptService
}

// NewHarness builds a harness whose clock stands at 06:45 UTC on testDate.
func NewHarness(t *testing.T) *Harness {
	t.Helper()

	clock := NewFakeClock(time.Date(2026, 3, 2, 6, 45, 0, 0, time.UTC))
	h := &Harness{
		Store:     memory.NewStore(),
		Clock:     clock,
		Publisher: NewMockPublisher(),
		Metrics:   NewMockMetrics(),
		Positions: redis.NewLocalPositionStore(),
		Signer:    auth.NewQRSigner("qr-test-secret"),
	}
	h.Locks = NewLockRecorder(h.Store)
	notifications := service.NewNotificationService(h.Metrics, h.Publisher)
	now := service.Clock(clock.Now)

	h.Locations = service.NewLocationService(h.Locks)
	h.Schedule = service.NewScheduleService(h.Locks)
	h.Shuttles = service.NewShuttleService(h.Locks, redis.NewLocalLockStore(), h.Positions, notifications, time.UTC, 5*time.Second)
	h.Shuttles.SetClock(now)
	h.Trips = service.NewTripService(h.Locks, h.Positions, nil, notifications, h.Metrics, service.TripSettings{
		Location:        time.UTC,
		StartLead:       30 * time.Minute,
		AverageSpeedKmh: 40,
	})
	h.Trips.SetClock(now)
	h.Bookings = service.NewBookingService(h.Locks, nil, notifications, h.Metrics)
	h.Bookings.SetClock(now)
	h.CheckIns = service.NewCheckInService(h.Locks, redis.NewLocalHandleStore(clock.Now), h.Signer, nil, notifications, h.Metrics, 90*time.Second)
	h.CheckIns.SetClock(now)
	h.Receipts = service.NewReceiptService(h.Locks, time.UTC)
	h.Receipts.SetClock(now)
	return h
}

// Fleet is the seeded hotel: two stops, one shuttle and its trip.
type Fleet struct {
	Airport  *domain.Location
	Hotel    *domain.Location
	Mall     *domain.Location
	Shuttle  *domain.Shuttle
	Trip     *domain.Trip
	Instance *domain.TripInstance
}

// SeedFleet creates the "Airport↔Hotel" trip with a 07:00-08:00 slot on a
// shuttle with seats seats, assigns driverOne and materializes testDate.
func (h *Harness) SeedFleet(t *testing.T, seats int, airportCharge float64) *Fleet {
	t.Helper()
	ctx := context.Background()

	f := &Fleet{
		Airport: h.MustLocation(t, "Airport", domain.LocationTypeAirport, 25.2532, 55.3657),
		Hotel:   h.MustLocation(t, "Hotel", domain.LocationTypeHotel, 25.1972, 55.2744),
	}
	f.Shuttle = h.MustShuttle(t, "S1", seats)

	trip, err := h.Schedule.CreateTrip(ctx, hotelAdmin, service.TripRequest{
		Name: "Airport↔Hotel",
		Stops: []service.StopInput{
			{LocationID: f.Airport.ID, Charges: airportCharge},
			{LocationID: f.Hotel.ID},
		},
		Slots: []service.SlotInput{{StartTime: "07:00", EndTime: "08:00", ShuttleID: f.Shuttle.ID}},
	})
	if err != nil {
		t.Fatalf("CreateTrip: %v", err)
	}
	f.Trip = trip

	if _, err := h.Shuttles.AssignDriver(ctx, hotelAdmin, service.AssignDriverRequest{
		DriverID: driverOne.UserID, DriverName: driverOne.Name, ShuttleID: f.Shuttle.ID,
	}); err != nil {
		t.Fatalf("AssignDriver: %v", err)
	}

	created, err := h.Trips.Materialize(ctx, hotelAdmin, "", testDate)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 trip instance, got %d", len(created))
	}
	f.Instance = created[0]
	return f
}

// MustLocation creates a location of testHotel.
func (h *Harness) MustLocation(t *testing.T, name string, typ domain.LocationType, lat, lng float64) *domain.Location {
	t.Helper()
	loc, err := h.Locations.Create(context.Background(), hotelAdmin, service.CreateLocationRequest{
		Name: name, Lat: lat, Lng: lng, Type: typ,
	})
	if err != nil {
		t.Fatalf("create location %s: %v", name, err)
	}
	return loc
}

// MustShuttle creates a shuttle of testHotel.
func (h *Harness) MustShuttle(t *testing.T, vehicle string, seats int) *domain.Shuttle {
	t.Helper()
	s, err := h.Shuttles.Create(context.Background(), hotelAdmin, service.ShuttleRequest{
		VehicleNumber: vehicle, TotalSeats: seats,
	})
	if err != nil {
		t.Fatalf("create shuttle %s: %v", vehicle, err)
	}
	return s
}

// MustBook places a pending booking over the whole trip.
func (h *Harness) MustBook(t *testing.T, instanceID string, seats int) *domain.Booking {
	t.Helper()
	b, err := h.Bookings.Create(context.Background(), frontdesk, service.CreateBookingRequest{
		TripInstanceID: instanceID,
		GuestName:      "Walk In",
		Seats:          seats,
		Bags:           1,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}

// MustConfirm confirms a booking as frontdesk.
func (h *Harness) MustConfirm(t *testing.T, bookingID string) *domain.Booking {
	t.Helper()
	b, err := h.Bookings.Confirm(context.Background(), frontdesk, bookingID)
	if err != nil {
		t.Fatalf("confirm booking: %v", err)
	}
	return b
}

// Instance reloads a trip instance from the store.
func (h *Harness) Instance(t *testing.T, id string) *domain.TripInstance {
	t.Helper()
	inst, err := h.Store.Repositories().TripInstances.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load trip instance: %v", err)
	}
	return inst
}

// Booking reloads a booking from the store.
func (h *Harness) Booking(t *testing.T, id string) *domain.Booking {
	t.Helper()
	b, err := h.Store.Repositories().Bookings.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load booking: %v", err)
	}
	return b
}

// assertCapacity checks seatsOccupied ≤ seatHeld ≤ capacity on every leg.
func assertCapacity(t *testing.T, inst *domain.TripInstance) {
	t.Helper()
	if !inst.CapacityInvariantHolds() {
		t.Fatalf("capacity invariant broken: trip held=%d occupied=%d cap=%d legs=%+v",
			inst.SeatHeld, inst.SeatsOccupied, inst.Capacity, inst.Routes)
	}
}

func pageAfter(cursor string) repository.PageRequest {
	return repository.PageRequest{Cursor: cursor}
}
