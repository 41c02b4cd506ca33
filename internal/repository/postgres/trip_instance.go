package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/lib/pq"

	"shuttle/internal/domain"
	"shuttle/internal/repository"
)

// TripInstanceRepository is a PostgreSQL implementation of repository.TripInstanceRepository.
type TripInstanceRepository struct {
	q Querier
}

// NewTripInstanceRepository creates a new PostgreSQL trip instance repository.
func NewTripInstanceRepository(q Querier) *TripInstanceRepository {
	return &TripInstanceRepository{q: q}
}

const tripInstanceColumns = `
	id, hotel_id, trip_id, trip_slot_id, trip_name, direction, shuttle_id, driver_id,
	to_char(scheduled_date, 'YYYY-MM-DD'), scheduled_start, scheduled_end, actual_start, actual_end,
	status, phase, capacity, seat_held, seats_occupied, created_at`

// Create persists a new trip instance with its route instances. A second
// instance for the same slot and date yields repository.ErrDuplicate.
func (r *TripInstanceRepository) Create(ctx context.Context, t *domain.TripInstance) error {
	query := `
		INSERT INTO trip_instances (
			id, hotel_id, trip_id, trip_slot_id, trip_name, direction, shuttle_id, driver_id,
			scheduled_date, scheduled_start, scheduled_end, actual_start, actual_end,
			status, phase, capacity, seat_held, seats_occupied, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err := r.q.ExecContext(ctx, query,
		t.ID,
		t.HotelID,
		t.TripID,
		t.TripSlotID,
		t.TripName,
		t.Direction,
		t.ShuttleID,
		nullString(t.DriverID),
		t.ScheduledDate,
		t.ScheduledStart,
		t.ScheduledEnd,
		nullTime(t.ActualStart),
		nullTime(t.ActualEnd),
		t.Status,
		t.Phase,
		t.Capacity,
		t.SeatHeld,
		t.SeatsOccupied,
		t.CreatedAt,
	)
	if err != nil {
		return translate(err)
	}

	for _, leg := range t.Routes {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO route_instances (
				id, trip_instance_id, seq, start_location_id, start_location, end_location_id, end_location,
				charges, seat_held, seats_occupied, completed, skipped, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`,
			leg.ID,
			t.ID,
			leg.Seq,
			leg.StartLocationID,
			leg.StartLocation,
			leg.EndLocationID,
			leg.EndLocation,
			leg.Charges,
			leg.SeatHeld,
			leg.SeatsOccupied,
			leg.Completed,
			leg.Skipped,
			nullTime(leg.CompletedAt),
		)
		if err != nil {
			return translate(err)
		}
	}
	return nil
}

// GetByID retrieves a trip instance with its legs in order.
func (r *TripInstanceRepository) GetByID(ctx context.Context, id string) (*domain.TripInstance, error) {
	return r.getOne(ctx, `SELECT `+tripInstanceColumns+` FROM trip_instances WHERE id = $1`, id)
}

// GetForUpdate locks the trip instance row until the transaction ends. Every
// seat mutation goes through this lock, so legs need no locks of their own.
func (r *TripInstanceRepository) GetForUpdate(ctx context.Context, id string) (*domain.TripInstance, error) {
	return r.getOne(ctx, `SELECT `+tripInstanceColumns+` FROM trip_instances WHERE id = $1 FOR UPDATE`, id)
}

// GetBySlotAndDate returns nil when the slot has no instance on the date.
func (r *TripInstanceRepository) GetBySlotAndDate(ctx context.Context, slotID, date string) (*domain.TripInstance, error) {
	t, err := r.getOne(ctx,
		`SELECT `+tripInstanceColumns+` FROM trip_instances WHERE trip_slot_id = $1 AND scheduled_date = $2`,
		slotID, date)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return t, err
}

// GetByRouteID retrieves the trip instance owning a route instance.
func (r *TripInstanceRepository) GetByRouteID(ctx context.Context, routeID string) (*domain.TripInstance, error) {
	return r.getOne(ctx, `
		SELECT `+tripInstanceColumns+` FROM trip_instances
		WHERE id = (SELECT trip_instance_id FROM route_instances WHERE id = $1)
	`, routeID)
}

// ListByHotelAndDate pages through a hotel's instances on a date by scheduled start.
func (r *TripInstanceRepository) ListByHotelAndDate(ctx context.Context, hotelID, date string, page repository.PageRequest) (repository.Page[*domain.TripInstance], error) {
	size := page.Size(repository.TripInstancePageSize)
	query := `SELECT ` + tripInstanceColumns + ` FROM trip_instances WHERE hotel_id = $1 AND scheduled_date = $2`
	args := []any{hotelID, date}
	if page.Cursor != "" {
		c, err := repository.DecodeCursor(page.Cursor)
		if err != nil {
			return repository.Page[*domain.TripInstance]{}, err
		}
		query += ` AND (scheduled_start, id) > ($3, $4)`
		args = append(args, c.At, c.ID)
	}
	args = append(args, size+1)
	query += ` ORDER BY scheduled_start, id LIMIT $` + strconv.Itoa(len(args))

	items, err := r.list(ctx, query, args...)
	if err != nil {
		return repository.Page[*domain.TripInstance]{}, err
	}
	return repository.NewPage(items, size, func(t *domain.TripInstance) (time.Time, string) {
		return t.ScheduledStart, t.ID
	}), nil
}

// ListByShuttleAndDate retrieves a shuttle's instances on a date by scheduled start.
func (r *TripInstanceRepository) ListByShuttleAndDate(ctx context.Context, shuttleID, date string) ([]*domain.TripInstance, error) {
	return r.list(ctx, `
		SELECT `+tripInstanceColumns+` FROM trip_instances
		WHERE shuttle_id = $1 AND scheduled_date = $2
		ORDER BY scheduled_start, id
	`, shuttleID, date)
}

// GetActiveByDriverID returns nil when the driver has no trip in progress.
func (r *TripInstanceRepository) GetActiveByDriverID(ctx context.Context, driverID string) (*domain.TripInstance, error) {
	items, err := r.list(ctx, `
		SELECT `+tripInstanceColumns+` FROM trip_instances
		WHERE driver_id = $1 AND status = $2
		ORDER BY scheduled_start LIMIT 1
	`, driverID, domain.TripStatusInProgress)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

// CountOpenByTrip counts pending or in-progress instances of a trip.
func (r *TripInstanceRepository) CountOpenByTrip(ctx context.Context, tripID string) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trip_instances WHERE trip_id = $1 AND status IN ($2, $3)`,
		tripID, domain.TripStatusPending, domain.TripStatusInProgress,
	).Scan(&n)
	return n, err
}

// Update persists status, counters and every leg of an instance.
func (r *TripInstanceRepository) Update(ctx context.Context, t *domain.TripInstance) error {
	query := `
		UPDATE trip_instances
		SET driver_id = $1, actual_start = $2, actual_end = $3, status = $4, phase = $5,
			seat_held = $6, seats_occupied = $7
		WHERE id = $8
	`
	err := expectOne(r.q.ExecContext(ctx, query,
		nullString(t.DriverID),
		nullTime(t.ActualStart),
		nullTime(t.ActualEnd),
		t.Status,
		t.Phase,
		t.SeatHeld,
		t.SeatsOccupied,
		t.ID,
	))
	if err != nil {
		return err
	}

	for _, leg := range t.Routes {
		_, err := r.q.ExecContext(ctx, `
			UPDATE route_instances
			SET seat_held = $1, seats_occupied = $2, completed = $3, skipped = $4, completed_at = $5
			WHERE id = $6
		`, leg.SeatHeld, leg.SeatsOccupied, leg.Completed, leg.Skipped, nullTime(leg.CompletedAt), leg.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *TripInstanceRepository) getOne(ctx context.Context, query string, args ...any) (*domain.TripInstance, error) {
	t, err := scanTripInstance(r.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, translate(err)
	}
	if err := r.loadRoutes(ctx, []*domain.TripInstance{t}); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TripInstanceRepository) list(ctx context.Context, query string, args ...any) ([]*domain.TripInstance, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var items []*domain.TripInstance
	for rows.Next() {
		t, err := scanTripInstance(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := r.loadRoutes(ctx, items); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (r *TripInstanceRepository) loadRoutes(ctx context.Context, items []*domain.TripInstance) error {
	byID := make(map[string]*domain.TripInstance, len(items))
	ids := make([]string, 0, len(items))
	for _, t := range items {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, trip_instance_id, seq, start_location_id, start_location, end_location_id, end_location,
			charges, seat_held, seats_occupied, completed, skipped, completed_at
		FROM route_instances WHERE trip_instance_id = ANY($1)
		ORDER BY trip_instance_id, seq
	`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var leg domain.RouteInstance
		var completedAt sql.NullTime
		if err := rows.Scan(
			&leg.ID,
			&leg.TripInstanceID,
			&leg.Seq,
			&leg.StartLocationID,
			&leg.StartLocation,
			&leg.EndLocationID,
			&leg.EndLocation,
			&leg.Charges,
			&leg.SeatHeld,
			&leg.SeatsOccupied,
			&leg.Completed,
			&leg.Skipped,
			&completedAt,
		); err != nil {
			return err
		}
		leg.CompletedAt = completedAt.Time
		t := byID[leg.TripInstanceID]
		t.Routes = append(t.Routes, leg)
	}
	return rows.Err()
}

func scanTripInstance(row scanner) (*domain.TripInstance, error) {
	var t domain.TripInstance
	var driverID sql.NullString
	var actualStart, actualEnd sql.NullTime
	if err := row.Scan(
		&t.ID,
		&t.HotelID,
		&t.TripID,
		&t.TripSlotID,
		&t.TripName,
		&t.Direction,
		&t.ShuttleID,
		&driverID,
		&t.ScheduledDate,
		&t.ScheduledStart,
		&t.ScheduledEnd,
		&actualStart,
		&actualEnd,
		&t.Status,
		&t.Phase,
		&t.Capacity,
		&t.SeatHeld,
		&t.SeatsOccupied,
		&t.CreatedAt,
	); err != nil {
		return nil, err
	}
	t.DriverID = driverID.String
	t.ActualStart = actualStart.Time
	t.ActualEnd = actualEnd.Time
	return &t, nil
}

var _ repository.TripInstanceRepository = (*TripInstanceRepository)(nil)
