package wallet

import (
	"context"

	"github.com/goddeus/caixa-premiada-sub004/internal/user"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	GetBalance(ctx context.Context, userID int) (*Balance, error)
	LockUser(ctx context.Context, tx *sqlx.Tx, userID int) (*user.User, error)
	DebitTx(ctx context.Context, tx *sqlx.Tx, u *user.User, amountCents int64, entry Entry) (int64, error)
	CreditTx(ctx context.Context, tx *sqlx.Tx, u *user.User, amountCents int64, entry Entry) (int64, error)
	Deposit(ctx context.Context, userID int, amountCents int64) (int64, error)
	Withdraw(ctx context.Context, userID int, amountCents int64) (int64, error)
	GetTransactions(ctx context.Context, userID int, limit, offset int) ([]LedgerTransaction, error)
}
