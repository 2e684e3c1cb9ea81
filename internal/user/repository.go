package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goddeus/caixa-premiada-sub004/internal/db"

	"github.com/jmoiron/sqlx"
)

var (
	ErrUserNotFound = errors.New("user not found")
)

const userColumns = `id, name, email, password_hash, role, account_mode,
	real_balance_cents, demo_balance_cents, active, created_at, updated_at`

type SQLRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// Create inserts the user and its wallet projection in one transaction
// so the mirror exists before the first balance operation.
func (r *SQLRepository) Create(ctx context.Context, name, email, passwordHash, role string) (*User, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var user User
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO users (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		name, email, passwordHash, role,
	).StructScan(&user)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO wallets (user_id) VALUES ($1)`, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *SQLRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := r.db.GetContext(ctx, &user,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *SQLRepository) FindByID(ctx context.Context, id int) (*User, error) {
	var user User
	err := r.db.GetContext(ctx, &user,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *SQLRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return db.Exists(ctx, r.db,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email)
}

func (r *SQLRepository) SetAccountMode(ctx context.Context, userID int, mode string) (*User, error) {
	var user User
	err := r.db.QueryRowxContext(ctx, `
		UPDATE users
		SET account_mode = $1, updated_at = NOW()
		WHERE id = $2 AND active = TRUE
		RETURNING `+userColumns,
		mode, userID,
	).StructScan(&user)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Deactivate soft-deletes the account. User rows are never hard-deleted;
// the ledger and audit history must stay attributable.
func (r *SQLRepository) Deactivate(ctx context.Context, userID int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET active = FALSE, updated_at = NOW() WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}
