package postgres

import (
	"context"
	"database/sql"

	"shuttle/internal/domain"
	"shuttle/internal/repository"
)

// LocationRepository is a PostgreSQL implementation of repository.LocationRepository.
type LocationRepository struct {
	q Querier
}

// NewLocationRepository creates a new PostgreSQL location repository.
func NewLocationRepository(q Querier) *LocationRepository {
	return &LocationRepository{q: q}
}

const locationColumns = `id, hotel_id, name, address, lat, lng, type, cloned_from, created_at`

// Create persists a new location.
func (r *LocationRepository) Create(ctx context.Context, location *domain.Location) error {
	query := `
		INSERT INTO locations (` + locationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.q.ExecContext(ctx, query,
		location.ID,
		location.HotelID,
		location.Name,
		location.Address,
		location.Lat,
		location.Lng,
		location.Type,
		nullString(location.ClonedFrom),
		location.CreatedAt,
	)
	return translate(err)
}

// GetByID retrieves a location by ID.
func (r *LocationRepository) GetByID(ctx context.Context, id string) (*domain.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE id = $1`
	location, err := scanLocation(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, translate(err)
	}
	return location, nil
}

// ListByHotel retrieves a hotel's locations by name.
func (r *LocationRepository) ListByHotel(ctx context.Context, hotelID string) ([]*domain.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE hotel_id = $1 ORDER BY name, id`
	rows, err := r.q.QueryContext(ctx, query, hotelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []*domain.Location
	for rows.Next() {
		location, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		locations = append(locations, location)
	}
	return locations, rows.Err()
}

// Update updates the editable fields of a location.
func (r *LocationRepository) Update(ctx context.Context, location *domain.Location) error {
	query := `
		UPDATE locations
		SET name = $1, address = $2, lat = $3, lng = $4, type = $5
		WHERE id = $6
	`
	return expectOne(r.q.ExecContext(ctx, query,
		location.Name,
		location.Address,
		location.Lat,
		location.Lng,
		location.Type,
		location.ID,
	))
}

// Delete removes a location.
func (r *LocationRepository) Delete(ctx context.Context, id string) error {
	return expectOne(r.q.ExecContext(ctx, `DELETE FROM locations WHERE id = $1`, id))
}

// IsReferenced reports whether any trip stops at the location.
func (r *LocationRepository) IsReferenced(ctx context.Context, id string) (bool, error) {
	var referenced bool
	err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM trip_stops WHERE location_id = $1)`, id,
	).Scan(&referenced)
	return referenced, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLocation(row scanner) (*domain.Location, error) {
	var location domain.Location
	var clonedFrom sql.NullString
	if err := row.Scan(
		&location.ID,
		&location.HotelID,
		&location.Name,
		&location.Address,
		&location.Lat,
		&location.Lng,
		&location.Type,
		&clonedFrom,
		&location.CreatedAt,
	); err != nil {
		return nil, err
	}
	location.ClonedFrom = clonedFrom.String
	return &location, nil
}

var _ repository.LocationRepository = (*LocationRepository)(nil)
