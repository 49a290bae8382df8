package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/roombook/internal/domain"
)

type accountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) AccountRepository {
	return &accountRepository{pool: pool}
}

const accountCols = `id, email, hashed_password, full_name, role, created_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.FullName, &a.Role, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *accountRepository) Create(ctx context.Context, acc *domain.NewAccount) (*domain.Account, error) {
	const q = `INSERT INTO users (email, hashed_password, full_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + accountCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	a, err := scanAccount(r.pool.QueryRow(ctx, q, acc.Email, acc.PasswordHash, acc.FullName, string(acc.Role)))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: email already registered", domain.ErrConflict)
	}
	return a, err
}

func (r *accountRepository) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	const q = `SELECT ` + accountCols + ` FROM users WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	a, err := scanAccount(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *accountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	const q = `SELECT ` + accountCols + ` FROM users WHERE email=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	a, err := scanAccount(r.pool.QueryRow(ctx, q, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *accountRepository) Update(ctx context.Context, id int64, patch domain.AccountPatch) (*domain.Account, error) {
	const q = `
		UPDATE users
		SET
			email           = COALESCE($2, email),
			full_name       = COALESCE($3, full_name),
			hashed_password = COALESCE($4, hashed_password)
		WHERE id=$1
		RETURNING ` + accountCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	a, err := scanAccount(r.pool.QueryRow(ctx, q, id, patch.Email, patch.FullName, patch.PasswordHash))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case isUniqueViolation(err):
		return nil, fmt.Errorf("%w: email already registered", domain.ErrConflict)
	}
	return a, err
}

func (r *accountRepository) Delete(ctx context.Context, id int64) (bool, error) {
	const q = `DELETE FROM users WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *accountRepository) List(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	limit, offset = clampPage(limit, offset)

	const q = `SELECT ` + accountCols + ` FROM users ORDER BY id LIMIT $1 OFFSET $2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}
