package purchase

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

const (
	StatusCompleted   = "completed"
	StatusError       = "error"
	StatusUnderReview = "under_review"
)

// BasketLine is one ordered line of a purchase request.
type BasketLine struct {
	BoxID    int `json:"box_id" binding:"required,gt=0"`
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

// Input is the validated engine input. PurchaseID must be set by the
// caller; retries that reuse it are answered idempotently.
type Input struct {
	UserID     int
	SessionID  string
	PurchaseID string
	Basket     []BasketLine
}

// Outcome records one unit opened: which prize the draw selected and
// what it was worth. Illustrative outcomes never carry credit.
type Outcome struct {
	BoxID        int    `json:"box_id"`
	PrizeID      int    `json:"prize_id"`
	PrizeName    string `json:"prize_name"`
	ValueCents   int64  `json:"value_cents"`
	Illustrative bool   `json:"illustrative"`
	Category     string `json:"category"`
}

// Result is the engine's return value. A replayed purchase id yields a
// Result identical to the original call.
type Result struct {
	PurchaseID         string    `json:"purchase_id"`
	TotalDebitedCents  int64     `json:"total_debited_cents"`
	TotalCreditedCents int64     `json:"total_credited_cents"`
	FinalBalanceCents  int64     `json:"final_balance_cents"`
	Outcomes           []Outcome `json:"outcomes"`
}

// Audit is the single authoritative summary row per purchase attempt,
// keyed uniquely by purchase id. Written once; only an out-of-scope
// reconciliation process may later flip status to under_review.
type Audit struct {
	ID                 int64          `db:"id" json:"id"`
	PurchaseID         string         `db:"purchase_id" json:"purchase_id"`
	UserID             int            `db:"user_id" json:"user_id"`
	SessionID          *string        `db:"session_id" json:"session_id,omitempty"`
	Basket             types.JSONText `db:"basket" json:"basket"`
	TotalDebitedCents  int64          `db:"total_debited_cents" json:"total_debited_cents"`
	TotalCreditedCents int64          `db:"total_credited_cents" json:"total_credited_cents"`
	BalanceBeforeCents int64          `db:"balance_before_cents" json:"balance_before_cents"`
	BalanceAfterCents  int64          `db:"balance_after_cents" json:"balance_after_cents"`
	Status             string         `db:"status" json:"status"`
	AccountMode        string         `db:"account_mode" json:"account_mode"`
	Outcomes           types.JSONText `db:"outcomes" json:"outcomes"`
	ErrorDetail        *string        `db:"error_detail" json:"error_detail,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
}

type PurchaseRequest struct {
	PurchaseID string       `json:"purchase_id"`
	Basket     []BasketLine `json:"basket" binding:"required,min=1,dive"`
}

type PurchaseResponse struct {
	Success bool `json:"success"`
	Result
}
