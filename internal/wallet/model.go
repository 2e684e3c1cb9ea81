package wallet

import "time"

// Ledger transaction types. The ledger is append-only and is the
// canonical source of truth for balance history reconciliation.
const (
	TypeBoxOpen     = "box_open"
	TypeBoxOpenBulk = "box_open_bulk"
	TypePrizeCredit = "prize_credit"
	TypeDeposit     = "deposit"
	TypeWithdrawal  = "withdrawal"
)

// Wallet is the denormalized mirror of the user's two balances. It is
// updated in lock-step with the users row inside the same transaction
// and exists to serve balance reads without the users row lock pattern.
type Wallet struct {
	ID               int       `db:"id" json:"id"`
	UserID           int       `db:"user_id" json:"user_id"`
	RealBalanceCents int64     `db:"real_balance_cents" json:"real_balance_cents"`
	DemoBalanceCents int64     `db:"demo_balance_cents" json:"demo_balance_cents"`
	Currency         string    `db:"currency" json:"currency"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

type LedgerTransaction struct {
	ID                 int64     `db:"id" json:"id"`
	UserID             int       `db:"user_id" json:"user_id"`
	Type               string    `db:"type" json:"type"`
	AmountCents        int64     `db:"amount_cents" json:"amount_cents"`
	BalanceBeforeCents int64     `db:"balance_before_cents" json:"balance_before_cents"`
	BalanceAfterCents  int64     `db:"balance_after_cents" json:"balance_after_cents"`
	AccountMode        string    `db:"account_mode" json:"account_mode"`
	Description        string    `db:"description" json:"description"`
	BoxID              *int      `db:"box_id" json:"box_id,omitempty"`
	PrizeID            *int      `db:"prize_id" json:"prize_id,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// Entry describes the ledger row an in-transaction debit or credit
// should append alongside the balance mutation.
type Entry struct {
	Type        string
	Description string
	BoxID       *int
	PrizeID     *int
}

// Balance is the read-side view served from the wallet projection.
type Balance struct {
	UserID           int    `db:"user_id" json:"user_id"`
	RealBalanceCents int64  `db:"real_balance_cents" json:"real_balance_cents"`
	DemoBalanceCents int64  `db:"demo_balance_cents" json:"demo_balance_cents"`
	AccountMode      string `db:"account_mode" json:"account_mode"`
	Currency         string `db:"currency" json:"currency"`
}

type DepositRequest struct {
	AmountCents int64 `json:"amount_cents" binding:"required,gt=0"`
}

type WithdrawRequest struct {
	AmountCents int64 `json:"amount_cents" binding:"required,gt=0"`
}
