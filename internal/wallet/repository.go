package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goddeus/caixa-premiada-sub004/internal/user"

	"github.com/jmoiron/sqlx"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrUserInactive      = errors.New("user is inactive")
)

type SQLRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) DB() *sqlx.DB {
	return r.db
}

// balanceColumn resolves which balance column the account mode makes
// live. Purchase operations must never touch the other column.
func balanceColumn(mode string) string {
	if mode == user.ModeDemo {
		return "demo_balance_cents"
	}
	return "real_balance_cents"
}

// GetBalance serves reads from the wallet projection so callers never
// compete with the users row lock held by in-flight purchases.
func (r *SQLRepository) GetBalance(ctx context.Context, userID int) (*Balance, error) {
	var b Balance
	err := r.db.GetContext(ctx, &b, `
		SELECT w.user_id, w.real_balance_cents, w.demo_balance_cents, w.currency, u.account_mode
		FROM wallets w
		JOIN users u ON u.id = w.user_id
		WHERE w.user_id = $1`,
		userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &b, nil
}

// LockUser loads the user row FOR UPDATE inside the caller's
// transaction. Every balance read and write of one purchase derives
// from this single locked snapshot; concurrent purchases by the same
// user serialize here.
func (r *SQLRepository) LockUser(ctx context.Context, tx *sqlx.Tx, userID int) (*user.User, error) {
	var u user.User
	err := tx.QueryRowxContext(ctx, `
		SELECT id, name, email, password_hash, role, account_mode,
		       real_balance_cents, demo_balance_cents, active, created_at, updated_at
		FROM users
		WHERE id = $1
		FOR UPDATE`,
		userID,
	).StructScan(&u)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// DebitTx decrements the live balance by amount inside tx, mirrors the
// wallet projection and appends the ledger row. The balance check uses
// the snapshot loaded by LockUser, never a re-read. The snapshot's
// balance field is advanced so a later CreditTx chains off the same read.
func (r *SQLRepository) DebitTx(ctx context.Context, tx *sqlx.Tx, u *user.User, amountCents int64, entry Entry) (int64, error) {
	if amountCents <= 0 {
		return 0, fmt.Errorf("debit amount must be positive, got %d", amountCents)
	}

	before := u.LiveBalanceCents()
	if before < amountCents {
		return 0, ErrInsufficientFunds
	}
	after := before - amountCents

	if err := r.applyBalance(ctx, tx, u, after); err != nil {
		return 0, err
	}

	if err := r.appendLedger(ctx, tx, u, -amountCents, before, after, entry); err != nil {
		return 0, err
	}

	return after, nil
}

// CreditTx increments the live balance by amount inside tx. A zero
// amount is a no-op: the balance is untouched and no ledger row is
// written — credit rows exist only for real value movement.
func (r *SQLRepository) CreditTx(ctx context.Context, tx *sqlx.Tx, u *user.User, amountCents int64, entry Entry) (int64, error) {
	if amountCents < 0 {
		return 0, fmt.Errorf("credit amount must not be negative, got %d", amountCents)
	}

	before := u.LiveBalanceCents()
	if amountCents == 0 {
		return before, nil
	}
	after := before + amountCents

	if err := r.applyBalance(ctx, tx, u, after); err != nil {
		return 0, err
	}

	if err := r.appendLedger(ctx, tx, u, amountCents, before, after, entry); err != nil {
		return 0, err
	}

	return after, nil
}

// applyBalance writes the new live balance to the users row and the
// wallet mirror in the same transaction, keeping the projection
// invariant: wallet balances equal user balances after every commit.
func (r *SQLRepository) applyBalance(ctx context.Context, tx *sqlx.Tx, u *user.User, newBalance int64) error {
	col := balanceColumn(u.AccountMode)

	_, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE users SET %s = $1, updated_at = NOW() WHERE id = $2`, col),
		newBalance, u.ID)
	if err != nil {
		return fmt.Errorf("failed to update user balance: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE wallets SET %s = $1, updated_at = NOW() WHERE user_id = $2`, col),
		newBalance, u.ID)
	if err != nil {
		return fmt.Errorf("failed to update wallet projection: %w", err)
	}

	if u.AccountMode == user.ModeDemo {
		u.DemoBalanceCents = newBalance
	} else {
		u.RealBalanceCents = newBalance
	}

	return nil
}

func (r *SQLRepository) appendLedger(ctx context.Context, tx *sqlx.Tx, u *user.User, amountCents, before, after int64, entry Entry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_transactions
			(user_id, type, amount_cents, balance_before_cents, balance_after_cents, account_mode, description, box_id, prize_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, entry.Type, amountCents, before, after, u.AccountMode, entry.Description, entry.BoxID, entry.PrizeID)
	if err != nil {
		return fmt.Errorf("failed to append ledger transaction: %w", err)
	}
	return nil
}

// Deposit credits the live balance in its own transaction.
func (r *SQLRepository) Deposit(ctx context.Context, userID int, amountCents int64) (int64, error) {
	if amountCents <= 0 {
		return 0, fmt.Errorf("deposit amount must be positive, got %d", amountCents)
	}
	return r.standalone(ctx, userID, func(tx *sqlx.Tx, u *user.User) (int64, error) {
		return r.CreditTx(ctx, tx, u, amountCents, Entry{
			Type:        TypeDeposit,
			Description: "wallet deposit",
		})
	})
}

// Withdraw debits the live balance in its own transaction. Fails with
// ErrInsufficientFunds when the live balance is short.
func (r *SQLRepository) Withdraw(ctx context.Context, userID int, amountCents int64) (int64, error) {
	if amountCents <= 0 {
		return 0, fmt.Errorf("withdrawal amount must be positive, got %d", amountCents)
	}
	return r.standalone(ctx, userID, func(tx *sqlx.Tx, u *user.User) (int64, error) {
		return r.DebitTx(ctx, tx, u, amountCents, Entry{
			Type:        TypeWithdrawal,
			Description: "wallet withdrawal",
		})
	})
}

func (r *SQLRepository) standalone(ctx context.Context, userID int, op func(*sqlx.Tx, *user.User) (int64, error)) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	u, err := r.LockUser(ctx, tx, userID)
	if err != nil {
		return 0, err
	}
	if !u.Active {
		return 0, ErrUserInactive
	}

	newBalance, err := op(tx, u)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return newBalance, nil
}

func (r *SQLRepository) GetTransactions(ctx context.Context, userID int, limit, offset int) ([]LedgerTransaction, error) {
	if limit <= 0 {
		limit = 50
	}

	var txs []LedgerTransaction
	err := r.db.SelectContext(ctx, &txs, `
		SELECT id, user_id, type, amount_cents, balance_before_cents, balance_after_cents,
		       account_mode, description, box_id, prize_id, created_at
		FROM ledger_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []LedgerTransaction{}
	}

	return txs, nil
}
