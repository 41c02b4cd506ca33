package postgres

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"shuttle/internal/domain"
	"shuttle/internal/repository"
)

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
type BookingRepository struct {
	q Querier
}

// NewBookingRepository creates a new PostgreSQL booking repository.
func NewBookingRepository(q Querier) *BookingRepository {
	return &BookingRepository{q: q}
}

const bookingColumns = `
	id, hotel_id, trip_instance_id, guest_id, guest_name, guest_email, seats, bags, from_seq, to_seq,
	pickup, dropoff, status, payment_status, payment_method, price_per_person, total_price, notes,
	rejection_reason, cancellation_reason, cancelled_by, confirmed_by,
	created_at, verified_at, cancelled_at, checked_in_at`

// Create persists a new booking.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26)
	`
	_, err := r.q.ExecContext(ctx, query,
		b.ID,
		b.HotelID,
		b.TripInstanceID,
		b.GuestID,
		b.GuestName,
		b.GuestEmail,
		b.Seats,
		b.Bags,
		b.FromSeq,
		b.ToSeq,
		b.Pickup,
		b.Dropoff,
		b.Status,
		b.PaymentStatus,
		b.PaymentMethod,
		b.PricePerPerson,
		b.TotalPrice,
		b.Notes,
		nullString(b.RejectionReason),
		nullString(b.CancellationReason),
		nullString(b.CancelledBy),
		nullString(b.ConfirmedBy),
		b.CreatedAt,
		nullTime(b.VerifiedAt),
		nullTime(b.CancelledAt),
		nullTime(b.CheckedInAt),
	)
	return translate(err)
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := scanBooking(r.q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return b, nil
}

// GetForUpdate locks the booking row until the transaction ends.
func (r *BookingRepository) GetForUpdate(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := scanBooking(r.q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, translate(err)
	}
	return b, nil
}

// Update writes every mutable booking field.
func (r *BookingRepository) Update(ctx context.Context, b *domain.Booking) error {
	query := `
		UPDATE bookings
		SET status = $1, payment_status = $2, payment_method = $3, price_per_person = $4, total_price = $5,
			notes = $6, rejection_reason = $7, cancellation_reason = $8, cancelled_by = $9, confirmed_by = $10,
			verified_at = $11, cancelled_at = $12, checked_in_at = $13
		WHERE id = $14
	`
	return expectOne(r.q.ExecContext(ctx, query,
		b.Status,
		b.PaymentStatus,
		b.PaymentMethod,
		b.PricePerPerson,
		b.TotalPrice,
		b.Notes,
		nullString(b.RejectionReason),
		nullString(b.CancellationReason),
		nullString(b.CancelledBy),
		nullString(b.ConfirmedBy),
		nullTime(b.VerifiedAt),
		nullTime(b.CancelledAt),
		nullTime(b.CheckedInAt),
		b.ID,
	))
}

// ListByTripInstance retrieves every booking of a trip instance, oldest first.
func (r *BookingRepository) ListByTripInstance(ctx context.Context, tripInstanceID string) ([]*domain.Booking, error) {
	return r.list(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE trip_instance_id = $1 ORDER BY created_at, id`,
		tripInstanceID)
}

// List pages through bookings, newest first.
func (r *BookingRepository) List(ctx context.Context, filter repository.BookingFilter, page repository.PageRequest) (repository.Page[*domain.Booking], error) {
	size := page.Size(repository.BookingPageSize)

	var where []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if filter.HotelID != "" {
		add("hotel_id = ?", filter.HotelID)
	}
	if filter.Status != "" {
		add("status = ?", filter.Status)
	}
	if filter.TripInstanceID != "" {
		add("trip_instance_id = ?", filter.TripInstanceID)
	}
	if page.Cursor != "" {
		c, err := repository.DecodeCursor(page.Cursor)
		if err != nil {
			return repository.Page[*domain.Booking]{}, err
		}
		args = append(args, c.At, c.ID)
		where = append(where, "(created_at, id) < ($"+strconv.Itoa(len(args)-1)+", $"+strconv.Itoa(len(args))+")")
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, size+1)
	query += ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args))

	items, err := r.list(ctx, query, args...)
	if err != nil {
		return repository.Page[*domain.Booking]{}, err
	}
	return repository.NewPage(items, size, func(b *domain.Booking) (time.Time, string) {
		return b.CreatedAt, b.ID
	}), nil
}

// AppendEvent records a history entry.
func (r *BookingRepository) AppendEvent(ctx context.Context, e *domain.BookingEvent) error {
	query := `
		INSERT INTO booking_events (id, booking_id, kind, from_value, to_value, actor_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.q.ExecContext(ctx, query, e.ID, e.BookingID, e.Kind, e.From, e.To, e.ActorID, e.Reason, e.CreatedAt)
	return translate(err)
}

// ListEvents retrieves a booking's history, oldest first.
func (r *BookingRepository) ListEvents(ctx context.Context, bookingID string) ([]*domain.BookingEvent, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, booking_id, kind, from_value, to_value, actor_id, reason, created_at
		FROM booking_events WHERE booking_id = $1 ORDER BY created_at, id
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.BookingEvent
	for rows.Next() {
		var e domain.BookingEvent
		if err := rows.Scan(&e.ID, &e.BookingID, &e.Kind, &e.From, &e.To, &e.ActorID, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *BookingRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Booking, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func scanBooking(row scanner) (*domain.Booking, error) {
	var b domain.Booking
	var rejectionReason, cancellationReason, cancelledBy, confirmedBy sql.NullString
	var verifiedAt, cancelledAt, checkedInAt sql.NullTime
	if err := row.Scan(
		&b.ID,
		&b.HotelID,
		&b.TripInstanceID,
		&b.GuestID,
		&b.GuestName,
		&b.GuestEmail,
		&b.Seats,
		&b.Bags,
		&b.FromSeq,
		&b.ToSeq,
		&b.Pickup,
		&b.Dropoff,
		&b.Status,
		&b.PaymentStatus,
		&b.PaymentMethod,
		&b.PricePerPerson,
		&b.TotalPrice,
		&b.Notes,
		&rejectionReason,
		&cancellationReason,
		&cancelledBy,
		&confirmedBy,
		&b.CreatedAt,
		&verifiedAt,
		&cancelledAt,
		&checkedInAt,
	); err != nil {
		return nil, err
	}
	b.RejectionReason = rejectionReason.String
	b.CancellationReason = cancellationReason.String
	b.CancelledBy = cancelledBy.String
	b.ConfirmedBy = confirmedBy.String
	b.VerifiedAt = verifiedAt.Time
	b.CancelledAt = cancelledAt.Time
	b.CheckedInAt = checkedInAt.Time
	return &b, nil
}

var _ repository.BookingRepository = (*BookingRepository)(nil)
