// Package repository is the record store. Lookups that find nothing return
// (nil, nil); deletes report whether a row went away.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/diagnosis/roombook/internal/domain"
)

type AccountRepository interface {
	// Create fails with domain.ErrConflict when the email is taken.
	Create(ctx context.Context, acc *domain.NewAccount) (*domain.Account, error)
	FindByID(ctx context.Context, id int64) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	Update(ctx context.Context, id int64, patch domain.AccountPatch) (*domain.Account, error)
	// Delete cascades to the account's bookings and challenges.
	Delete(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, limit, offset int) ([]domain.Account, error)
}

type BookingRepository interface {
	Create(ctx context.Context, ownerID int64, req *domain.CreateBookingRequest) (*domain.Booking, error)
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetView(ctx context.Context, id int64) (*domain.BookingView, error)
	ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]domain.Booking, error)
	List(ctx context.Context, limit, offset int) ([]domain.Booking, error)
	ListViews(ctx context.Context, limit, offset int) ([]domain.BookingView, error)
	// ListAttributed returns bookings that have been modified, newest change first.
	ListAttributed(ctx context.Context, limit, offset int) ([]domain.BookingView, error)
	Update(ctx context.Context, id int64, patch domain.BookingPatch, updatedBy string) (*domain.Booking, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type OTPRepository interface {
	Create(ctx context.Context, c *domain.NewOTPChallenge) (*domain.OTPChallenge, error)
	FindByID(ctx context.Context, id int64) (*domain.OTPChallenge, error)
	// ListUnused includes expired challenges; expiry is judged by the caller.
	ListUnused(ctx context.Context, userID int64, action domain.OTPAction, target *int64) ([]domain.OTPChallenge, error)
	ListPending(ctx context.Context, userID int64, now time.Time) ([]domain.OTPChallenge, error)
	FindConsumed(ctx context.Context, userID int64, action domain.OTPAction, target *int64) (*domain.OTPChallenge, error)
	// MarkUsed flips used false->true. It reports false if the challenge is
	// gone or was consumed concurrently.
	MarkUsed(ctx context.Context, id int64, approver string) (bool, error)
	// Replace regenerates code and expiry of an unused challenge in place.
	Replace(ctx context.Context, id int64, codeHash string, expiresAt time.Time) (*domain.OTPChallenge, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
