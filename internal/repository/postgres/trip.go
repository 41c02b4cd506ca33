package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"shuttle/internal/domain"
	"shuttle/internal/repository"
)

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
// Callers that write stops and slots must run inside WithinTx so the trip row
// and its children change together.
type TripRepository struct {
	q Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(q Querier) *TripRepository {
	return &TripRepository{q: q}
}

// Create persists a new trip with its stops and slots.
func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	query := `INSERT INTO trips (id, hotel_id, name, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := r.q.ExecContext(ctx, query, trip.ID, trip.HotelID, trip.Name, trip.CreatedAt); err != nil {
		return translate(err)
	}
	return r.insertChildren(ctx, trip)
}

// GetByID retrieves a trip by ID, stops in order.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	var trip domain.Trip
	err := r.q.QueryRowContext(ctx,
		`SELECT id, hotel_id, name, created_at FROM trips WHERE id = $1`, id,
	).Scan(&trip.ID, &trip.HotelID, &trip.Name, &trip.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	trips := []*domain.Trip{&trip}
	if err := r.loadChildren(ctx, trips); err != nil {
		return nil, err
	}
	return &trip, nil
}

// ListByHotel retrieves all trips of a hotel, oldest first.
func (r *TripRepository) ListByHotel(ctx context.Context, hotelID string) ([]*domain.Trip, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, hotel_id, name, created_at FROM trips WHERE hotel_id = $1 ORDER BY created_at, id`, hotelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []*domain.Trip
	for rows.Next() {
		var trip domain.Trip
		if err := rows.Scan(&trip.ID, &trip.HotelID, &trip.Name, &trip.CreatedAt); err != nil {
			return nil, err
		}
		trips = append(trips, &trip)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(trips) == 0 {
		return trips, nil
	}
	if err := r.loadChildren(ctx, trips); err != nil {
		return nil, err
	}
	return trips, nil
}

// Update replaces a trip's name, stops and slots.
func (r *TripRepository) Update(ctx context.Context, trip *domain.Trip) error {
	if err := expectOne(r.q.ExecContext(ctx, `UPDATE trips SET name = $1 WHERE id = $2`, trip.Name, trip.ID)); err != nil {
		return err
	}
	if _, err := r.q.ExecContext(ctx, `DELETE FROM trip_stops WHERE trip_id = $1`, trip.ID); err != nil {
		return err
	}
	if _, err := r.q.ExecContext(ctx, `DELETE FROM trip_slots WHERE trip_id = $1`, trip.ID); err != nil {
		return err
	}
	return r.insertChildren(ctx, trip)
}

// Delete removes a trip with its stops and slots.
func (r *TripRepository) Delete(ctx context.Context, id string) error {
	return expectOne(r.q.ExecContext(ctx, `DELETE FROM trips WHERE id = $1`, id))
}

// CountSlotsByShuttle counts the slots bound to a shuttle.
func (r *TripRepository) CountSlotsByShuttle(ctx context.Context, shuttleID string) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM trip_slots WHERE shuttle_id = $1`, shuttleID).Scan(&n)
	return n, err
}

func (r *TripRepository) insertChildren(ctx context.Context, trip *domain.Trip) error {
	for i, stop := range trip.Stops {
		_, err := r.q.ExecContext(ctx,
			`INSERT INTO trip_stops (trip_id, seq, location_id, charges) VALUES ($1, $2, $3, $4)`,
			trip.ID, i, stop.LocationID, stop.Charges,
		)
		if err != nil {
			return translate(err)
		}
	}
	for i, slot := range trip.Slots {
		_, err := r.q.ExecContext(ctx,
			`INSERT INTO trip_slots (id, trip_id, seq, start_time, end_time, shuttle_id) VALUES ($1, $2, $3, $4, $5, $6)`,
			slot.ID, trip.ID, i, slot.StartTime, slot.EndTime, nullString(slot.ShuttleID),
		)
		if err != nil {
			return translate(err)
		}
	}
	return nil
}

// loadChildren fills stops and slots for a batch of trips with two queries.
func (r *TripRepository) loadChildren(ctx context.Context, trips []*domain.Trip) error {
	byID := make(map[string]*domain.Trip, len(trips))
	ids := make([]string, 0, len(trips))
	for _, t := range trips {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}

	stopRows, err := r.q.QueryContext(ctx, `
		SELECT s.trip_id, s.location_id, l.name, l.type, s.charges
		FROM trip_stops s JOIN locations l ON l.id = s.location_id
		WHERE s.trip_id = ANY($1)
		ORDER BY s.trip_id, s.seq
	`, pq.Array(ids))
	if err != nil {
		return err
	}
	for stopRows.Next() {
		var tripID string
		var stop domain.Stop
		if err := stopRows.Scan(&tripID, &stop.LocationID, &stop.LocationName, &stop.LocationType, &stop.Charges); err != nil {
			stopRows.Close()
			return err
		}
		t := byID[tripID]
		t.Stops = append(t.Stops, stop)
	}
	stopRows.Close()
	if err := stopRows.Err(); err != nil {
		return err
	}

	slotRows, err := r.q.QueryContext(ctx, `
		SELECT trip_id, id, start_time, end_time, shuttle_id
		FROM trip_slots WHERE trip_id = ANY($1)
		ORDER BY trip_id, seq
	`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer slotRows.Close()
	for slotRows.Next() {
		var tripID string
		var slot domain.TripSlot
		var shuttleID sql.NullString
		if err := slotRows.Scan(&tripID, &slot.ID, &slot.StartTime, &slot.EndTime, &shuttleID); err != nil {
			return err
		}
		slot.ShuttleID = shuttleID.String
		t := byID[tripID]
		t.Slots = append(t.Slots, slot)
	}
	return slotRows.Err()
}

var _ repository.TripRepository = (*TripRepository)(nil)
