package postgres

import (
	"context"
	"database/sql"
	"errors"

	"shuttle/internal/domain"
	"shuttle/internal/repository"
)

// ShuttleRepository is a PostgreSQL implementation of repository.ShuttleRepository.
type ShuttleRepository struct {
	q Querier
}

// NewShuttleRepository creates a new PostgreSQL shuttle repository.
func NewShuttleRepository(q Querier) *ShuttleRepository {
	return &ShuttleRepository{q: q}
}

// Create persists a new shuttle. A vehicle number already used by the
// hotel yields repository.ErrDuplicate.
func (r *ShuttleRepository) Create(ctx context.Context, shuttle *domain.Shuttle) error {
	query := `
		INSERT INTO shuttles (id, hotel_id, vehicle_number, total_seats, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.q.ExecContext(ctx, query,
		shuttle.ID,
		shuttle.HotelID,
		shuttle.VehicleNumber,
		shuttle.TotalSeats,
		shuttle.CreatedAt,
	)
	return translate(err)
}

// GetByID retrieves a shuttle by ID.
func (r *ShuttleRepository) GetByID(ctx context.Context, id string) (*domain.Shuttle, error) {
	query := `SELECT id, hotel_id, vehicle_number, total_seats, created_at FROM shuttles WHERE id = $1`
	var s domain.Shuttle
	err := r.q.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.HotelID, &s.VehicleNumber, &s.TotalSeats, &s.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

// ListByHotel retrieves a hotel's shuttles by vehicle number.
func (r *ShuttleRepository) ListByHotel(ctx context.Context, hotelID string) ([]*domain.Shuttle, error) {
	query := `
		SELECT id, hotel_id, vehicle_number, total_seats, created_at
		FROM shuttles WHERE hotel_id = $1 ORDER BY vehicle_number
	`
	rows, err := r.q.QueryContext(ctx, query, hotelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shuttles []*domain.Shuttle
	for rows.Next() {
		var s domain.Shuttle
		if err := rows.Scan(&s.ID, &s.HotelID, &s.VehicleNumber, &s.TotalSeats, &s.CreatedAt); err != nil {
			return nil, err
		}
		shuttles = append(shuttles, &s)
	}
	return shuttles, rows.Err()
}

// Update updates a shuttle's vehicle number and seat count.
func (r *ShuttleRepository) Update(ctx context.Context, shuttle *domain.Shuttle) error {
	query := `UPDATE shuttles SET vehicle_number = $1, total_seats = $2 WHERE id = $3`
	return expectOne(r.q.ExecContext(ctx, query, shuttle.VehicleNumber, shuttle.TotalSeats, shuttle.ID))
}

// Delete removes a shuttle; its driver assignment goes with it.
func (r *ShuttleRepository) Delete(ctx context.Context, id string) error {
	return expectOne(r.q.ExecContext(ctx, `DELETE FROM shuttles WHERE id = $1`, id))
}

// AssignmentRepository is a PostgreSQL implementation of repository.AssignmentRepository.
type AssignmentRepository struct {
	q Querier
}

// NewAssignmentRepository creates a new PostgreSQL assignment repository.
func NewAssignmentRepository(q Querier) *AssignmentRepository {
	return &AssignmentRepository{q: q}
}

const assignmentColumns = `driver_id, driver_name, shuttle_id, hotel_id, assigned_at`

// GetByDriver returns the driver's assignment, or nil if unassigned.
func (r *AssignmentRepository) GetByDriver(ctx context.Context, driverID string) (*domain.DriverAssignment, error) {
	return r.getOne(ctx, `SELECT `+assignmentColumns+` FROM driver_assignments WHERE driver_id = $1`, driverID)
}

// GetByShuttle returns the shuttle's assignment, or nil if unassigned.
func (r *AssignmentRepository) GetByShuttle(ctx context.Context, shuttleID string) (*domain.DriverAssignment, error) {
	return r.getOne(ctx, `SELECT `+assignmentColumns+` FROM driver_assignments WHERE shuttle_id = $1`, shuttleID)
}

func (r *AssignmentRepository) getOne(ctx context.Context, query, arg string) (*domain.DriverAssignment, error) {
	var a domain.DriverAssignment
	err := r.q.QueryRowContext(ctx, query, arg).Scan(&a.DriverID, &a.DriverName, &a.ShuttleID, &a.HotelID, &a.AssignedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListByHotel retrieves all assignments of a hotel.
func (r *AssignmentRepository) ListByHotel(ctx context.Context, hotelID string) ([]*domain.DriverAssignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM driver_assignments WHERE hotel_id = $1 ORDER BY driver_id`
	rows, err := r.q.QueryContext(ctx, query, hotelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.DriverAssignment
	for rows.Next() {
		var a domain.DriverAssignment
		if err := rows.Scan(&a.DriverID, &a.DriverName, &a.ShuttleID, &a.HotelID, &a.AssignedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// Create persists an assignment. Either side already being assigned yields
// repository.ErrDuplicate.
func (r *AssignmentRepository) Create(ctx context.Context, a *domain.DriverAssignment) error {
	query := `INSERT INTO driver_assignments (` + assignmentColumns + `) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.q.ExecContext(ctx, query, a.DriverID, a.DriverName, a.ShuttleID, a.HotelID, a.AssignedAt)
	return translate(err)
}

// DeleteByDriver removes the driver's assignment and reports whether one existed.
func (r *AssignmentRepository) DeleteByDriver(ctx context.Context, driverID string) (bool, error) {
	return r.delete(ctx, `DELETE FROM driver_assignments WHERE driver_id = $1`, driverID)
}

// DeleteByShuttle removes the shuttle's assignment and reports whether one existed.
func (r *AssignmentRepository) DeleteByShuttle(ctx context.Context, shuttleID string) (bool, error) {
	return r.delete(ctx, `DELETE FROM driver_assignments WHERE shuttle_id = $1`, shuttleID)
}

func (r *AssignmentRepository) delete(ctx context.Context, query, arg string) (bool, error) {
	res, err := r.q.ExecContext(ctx, query, arg)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

var (
	_ repository.ShuttleRepository    = (*ShuttleRepository)(nil)
	_ repository.AssignmentRepository = (*AssignmentRepository)(nil)
)
