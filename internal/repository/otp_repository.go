package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/roombook/internal/domain"
)

type otpRepository struct {
	pool *pgxpool.Pool
}

func NewOTPRepository(pool *pgxpool.Pool) OTPRepository {
	return &otpRepository{pool: pool}
}

const otpCols = `id, user_id, code_hash, action_type, target_booking_id, is_used, approved_by, expires_at, created_at`

func scanChallenge(row pgx.Row) (*domain.OTPChallenge, error) {
	var c domain.OTPChallenge
	err := row.Scan(
		&c.ID, &c.UserID, &c.CodeHash, &c.Action, &c.TargetBookingID,
		&c.Used, &c.ApprovedBy, &c.ExpiresAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *otpRepository) Create(ctx context.Context, c *domain.NewOTPChallenge) (*domain.OTPChallenge, error) {
	const q = `INSERT INTO otp_requests (user_id, code_hash, action_type, target_booking_id, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + otpCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanChallenge(r.pool.QueryRow(ctx, q, c.UserID, c.CodeHash, string(c.Action), c.TargetBookingID, c.ExpiresAt))
}

func (r *otpRepository) FindByID(ctx context.Context, id int64) (*domain.OTPChallenge, error) {
	const q = `SELECT ` + otpCols + ` FROM otp_requests WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	c, err := scanChallenge(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *otpRepository) ListUnused(ctx context.Context, userID int64, action domain.OTPAction, target *int64) ([]domain.OTPChallenge, error) {
	const q = `SELECT ` + otpCols + ` FROM otp_requests
		WHERE user_id=$1 AND action_type=$2
		  AND target_booking_id IS NOT DISTINCT FROM $3
		  AND is_used = false
		ORDER BY created_at DESC, id DESC`
	return r.query(ctx, q, userID, string(action), target)
}

func (r *otpRepository) ListPending(ctx context.Context, userID int64, now time.Time) ([]domain.OTPChallenge, error) {
	const q = `SELECT ` + otpCols + ` FROM otp_requests
		WHERE user_id=$1 AND is_used = false AND expires_at > $2
		ORDER BY created_at DESC, id DESC`
	return r.query(ctx, q, userID, now)
}

func (r *otpRepository) FindConsumed(ctx context.Context, userID int64, action domain.OTPAction, target *int64) (*domain.OTPChallenge, error) {
	const q = `SELECT ` + otpCols + ` FROM otp_requests
		WHERE user_id=$1 AND action_type=$2
		  AND target_booking_id IS NOT DISTINCT FROM $3
		  AND is_used = true
		ORDER BY created_at DESC, id DESC
		LIMIT 1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	c, err := scanChallenge(r.pool.QueryRow(ctx, q, userID, string(action), target))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *otpRepository) MarkUsed(ctx context.Context, id int64, approver string) (bool, error) {
	const q = `UPDATE otp_requests SET is_used = true, approved_by = $2 WHERE id=$1 AND is_used = false`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, id, approver)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *otpRepository) Replace(ctx context.Context, id int64, codeHash string, expiresAt time.Time) (*domain.OTPChallenge, error) {
	const q = `UPDATE otp_requests SET code_hash = $2, expires_at = $3
		WHERE id=$1 AND is_used = false
		RETURNING ` + otpCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	c, err := scanChallenge(r.pool.QueryRow(ctx, q, id, codeHash, expiresAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *otpRepository) Delete(ctx context.Context, id int64) (bool, error) {
	const q = `DELETE FROM otp_requests WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *otpRepository) query(ctx context.Context, q string, args ...any) ([]domain.OTPChallenge, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	challenges := []domain.OTPChallenge{}
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, *c)
	}
	return challenges, rows.Err()
}
