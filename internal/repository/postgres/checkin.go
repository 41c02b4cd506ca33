package postgres

import (
	"context"
	"database/sql"
	"errors"

	"shuttle/internal/domain"
	"shuttle/internal/repository"
)

// CheckInTokenRepository is a PostgreSQL implementation of repository.CheckInTokenRepository.
type CheckInTokenRepository struct {
	q Querier
}

// NewCheckInTokenRepository creates a new PostgreSQL check-in token repository.
func NewCheckInTokenRepository(q Querier) *CheckInTokenRepository {
	return &CheckInTokenRepository{q: q}
}

const checkInColumns = `id, booking_id, status, issued_at, consumed_at, consumed_by`

// Create persists a token. A booking has at most one.
func (r *CheckInTokenRepository) Create(ctx context.Context, t *domain.CheckInToken) error {
	query := `INSERT INTO checkin_tokens (` + checkInColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.ExecContext(ctx, query,
		t.ID, t.BookingID, t.Status, t.IssuedAt, nullTime(t.ConsumedAt), nullString(t.ConsumedBy))
	return translate(err)
}

// GetByID retrieves a token by ID.
func (r *CheckInTokenRepository) GetByID(ctx context.Context, id string) (*domain.CheckInToken, error) {
	t, err := scanCheckIn(r.q.QueryRowContext(ctx, `SELECT `+checkInColumns+` FROM checkin_tokens WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return t, nil
}

// GetForUpdate locks the token row so only one confirmation can consume it.
func (r *CheckInTokenRepository) GetForUpdate(ctx context.Context, id string) (*domain.CheckInToken, error) {
	t, err := scanCheckIn(r.q.QueryRowContext(ctx, `SELECT `+checkInColumns+` FROM checkin_tokens WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, translate(err)
	}
	return t, nil
}

// GetByBookingID returns nil when the booking has no token yet.
func (r *CheckInTokenRepository) GetByBookingID(ctx context.Context, bookingID string) (*domain.CheckInToken, error) {
	t, err := scanCheckIn(r.q.QueryRowContext(ctx, `SELECT `+checkInColumns+` FROM checkin_tokens WHERE booking_id = $1`, bookingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Update writes the token status.
func (r *CheckInTokenRepository) Update(ctx context.Context, t *domain.CheckInToken) error {
	query := `UPDATE checkin_tokens SET status = $1, consumed_at = $2, consumed_by = $3 WHERE id = $4`
	return expectOne(r.q.ExecContext(ctx, query, t.Status, nullTime(t.ConsumedAt), nullString(t.ConsumedBy), t.ID))
}

func scanCheckIn(row scanner) (*domain.CheckInToken, error) {
	var t domain.CheckInToken
	var consumedAt sql.NullTime
	var consumedBy sql.NullString
	if err := row.Scan(&t.ID, &t.BookingID, &t.Status, &t.IssuedAt, &consumedAt, &consumedBy); err != nil {
		return nil, err
	}
	t.ConsumedAt = consumedAt.Time
	t.ConsumedBy = consumedBy.String
	return &t, nil
}

var _ repository.CheckInTokenRepository = (*CheckInTokenRepository)(nil)
