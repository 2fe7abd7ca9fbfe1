package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kouriin1/Servicio-Comunitario/internal/models"
)

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// CreateWithProfile inserts the account and its profile in one transaction.
func (r *AccountRepository) CreateWithProfile(ctx context.Context, account models.Account, profile models.Profile) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insertAccount = `
		INSERT INTO accounts (
			id, email, password_hash, status, confirmed_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, NOW(), NOW()
		)
	`
	if _, err := tx.Exec(ctx, insertAccount,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.Status,
		account.ConfirmedAt,
	); err != nil {
		return translate(err)
	}

	const insertProfile = `
		INSERT INTO profiles (
			id, email, first_name, last_name, display_name, role, faculty_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, NOW(), NOW()
		)
	`
	if _, err := tx.Exec(ctx, insertProfile,
		profile.ID,
		profile.Email,
		profile.FirstName,
		profile.LastName,
		profile.DisplayName,
		profile.Role,
		profile.FacultyID,
	); err != nil {
		return translate(err)
	}

	return tx.Commit(ctx)
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (models.Account, error) {
	const query = `
		SELECT id, email, password_hash, status, confirmed_at, created_at, updated_at
		FROM accounts WHERE email = $1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, email))
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (models.Account, error) {
	const query = `
		SELECT id, email, password_hash, status, confirmed_at, created_at, updated_at
		FROM accounts WHERE id = $1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) scanOne(row pgx.Row) (models.Account, error) {
	var account models.Account
	if err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Status,
		&account.ConfirmedAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, ErrAccountNotFound
		}
		return models.Account{}, err
	}
	return account, nil
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, id string, passwordHash []byte) error {
	const query = `
		UPDATE accounts SET password_hash = $2, updated_at = NOW() WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) Confirm(ctx context.Context, id string) error {
	const query = `
		UPDATE accounts
		SET status = $2, confirmed_at = COALESCE(confirmed_at, NOW()), updated_at = NOW()
		WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, models.AccountStatusActive)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}
