package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/roombook/internal/domain"
)

type bookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) BookingRepository {
	return &bookingRepository{pool: pool}
}

const bookingCols = `id, room_type, check_in, check_out, guests, user_id, created_at, updated_at, updated_by`

const bookingViewCols = `b.id, b.room_type, b.check_in, b.check_out, b.guests, b.user_id,
b.created_at, b.updated_at, b.updated_by,
u.id, u.email, u.full_name, u.role`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.RoomType, &b.CheckIn, &b.CheckOut, &b.Guests, &b.UserID,
		&b.CreatedAt, &b.UpdatedAt, &b.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func scanBookingView(row pgx.Row) (*domain.BookingView, error) {
	var v domain.BookingView
	var o domain.Owner
	err := row.Scan(
		&v.ID, &v.RoomType, &v.CheckIn, &v.CheckOut, &v.Guests, &v.UserID,
		&v.CreatedAt, &v.UpdatedAt, &v.UpdatedBy,
		&o.ID, &o.Email, &o.FullName, &o.Role,
	)
	if err != nil {
		return nil, err
	}
	v.Owner = &o
	return &v, nil
}

func (r *bookingRepository) Create(ctx context.Context, ownerID int64, req *domain.CreateBookingRequest) (*domain.Booking, error) {
	const q = `INSERT INTO bookings (room_type, check_in, check_out, guests, user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + bookingCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanBooking(r.pool.QueryRow(ctx, q, req.RoomType, req.CheckIn, req.CheckOut, req.Guests, ownerID))
}

func (r *bookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r *bookingRepository) GetView(ctx context.Context, id int64) (*domain.BookingView, error) {
	const q = `SELECT ` + bookingViewCols + `
		FROM bookings b JOIN users u ON u.id = b.user_id
		WHERE b.id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	v, err := scanBookingView(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

func (r *bookingRepository) ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]domain.Booking, error) {
	limit, offset = clampPage(limit, offset)
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE user_id=$1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	return r.queryBookings(ctx, q, ownerID, limit, offset)
}

func (r *bookingRepository) List(ctx context.Context, limit, offset int) ([]domain.Booking, error) {
	limit, offset = clampPage(limit, offset)
	const q = `SELECT ` + bookingCols + ` FROM bookings
		ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`
	return r.queryBookings(ctx, q, limit, offset)
}

func (r *bookingRepository) ListViews(ctx context.Context, limit, offset int) ([]domain.BookingView, error) {
	limit, offset = clampPage(limit, offset)
	const q = `SELECT ` + bookingViewCols + `
		FROM bookings b JOIN users u ON u.id = b.user_id
		ORDER BY b.created_at DESC, b.id DESC LIMIT $1 OFFSET $2`
	return r.queryViews(ctx, q, limit, offset)
}

func (r *bookingRepository) ListAttributed(ctx context.Context, limit, offset int) ([]domain.BookingView, error) {
	limit, offset = clampPage(limit, offset)
	const q = `SELECT ` + bookingViewCols + `
		FROM bookings b JOIN users u ON u.id = b.user_id
		WHERE b.updated_by IS NOT NULL
		ORDER BY b.updated_at DESC, b.id DESC LIMIT $1 OFFSET $2`
	return r.queryViews(ctx, q, limit, offset)
}

func (r *bookingRepository) Update(ctx context.Context, id int64, patch domain.BookingPatch, updatedBy string) (*domain.Booking, error) {
	const q = `
		UPDATE bookings
		SET
			room_type  = COALESCE($2, room_type),
			check_in   = COALESCE($3, check_in),
			check_out  = COALESCE($4, check_out),
			guests     = COALESCE($5, guests),
			updated_by = $6,
			updated_at = now()
		WHERE id=$1
		RETURNING ` + bookingCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, q,
		id,
		patch.RoomType,
		patch.CheckIn,
		patch.CheckOut,
		patch.Guests,
		updatedBy,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r *bookingRepository) Delete(ctx context.Context, id int64) (bool, error) {
	const q = `DELETE FROM bookings WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *bookingRepository) queryBookings(ctx context.Context, q string, args ...any) ([]domain.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := []domain.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (r *bookingRepository) queryViews(ctx context.Context, q string, args ...any) ([]domain.BookingView, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := []domain.BookingView{}
	for rows.Next() {
		v, err := scanBookingView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, rows.Err()
}
