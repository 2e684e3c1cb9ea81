package purchase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const auditColumns = `id, purchase_id, user_id, session_id, basket,
	total_debited_cents, total_credited_cents, balance_before_cents, balance_after_cents,
	status, account_mode, outcomes, error_detail, created_at`

type SQLRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) GetAuditByPurchaseID(ctx context.Context, purchaseID string) (*Audit, error) {
	var audit Audit
	err := r.db.GetContext(ctx, &audit,
		`SELECT `+auditColumns+` FROM purchase_audits WHERE purchase_id = $1`, purchaseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAuditNotFound
		}
		return nil, err
	}
	return &audit, nil
}

func (r *SQLRepository) ListAuditsByUser(ctx context.Context, userID, limit, offset int) ([]Audit, error) {
	if limit <= 0 {
		limit = 50
	}

	var audits []Audit
	err := r.db.SelectContext(ctx, &audits,
		`SELECT `+auditColumns+` FROM purchase_audits
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if audits == nil {
		audits = []Audit{}
	}
	return audits, nil
}

// InsertCompletedTx writes the completed audit row inside the purchase
// transaction. The unique key on purchase_id is the linearization
// point for concurrent requests carrying the same id.
//
// A prior attempt that failed leaves an error-status row behind; a
// retry may overwrite it, which is why the conflict clause updates
// rows still in status 'error'. A conflict against a completed row
// yields sql.ErrNoRows, which IsUniqueConflict recognizes.
func (r *SQLRepository) InsertCompletedTx(ctx context.Context, tx *sqlx.Tx, audit *Audit) error {
	err := tx.QueryRowxContext(ctx, `
		INSERT INTO purchase_audits
			(purchase_id, user_id, session_id, basket,
			 total_debited_cents, total_credited_cents, balance_before_cents, balance_after_cents,
			 status, account_mode, outcomes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'completed', $9, $10)
		ON CONFLICT (purchase_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			session_id = EXCLUDED.session_id,
			basket = EXCLUDED.basket,
			total_debited_cents = EXCLUDED.total_debited_cents,
			total_credited_cents = EXCLUDED.total_credited_cents,
			balance_before_cents = EXCLUDED.balance_before_cents,
			balance_after_cents = EXCLUDED.balance_after_cents,
			status = EXCLUDED.status,
			account_mode = EXCLUDED.account_mode,
			outcomes = EXCLUDED.outcomes,
			error_detail = NULL
		WHERE purchase_audits.status = 'error'
		RETURNING id, created_at`,
		audit.PurchaseID, audit.UserID, audit.SessionID, audit.Basket,
		audit.TotalDebitedCents, audit.TotalCreditedCents, audit.BalanceBeforeCents, audit.BalanceAfterCents,
		audit.AccountMode, audit.Outcomes,
	).Scan(&audit.ID, &audit.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert purchase audit: %w", err)
	}
	audit.Status = StatusCompleted

	return nil
}

// InsertErrorAudit records a failed attempt outside the rolled-back
// transaction, best-effort. It must never clobber a completed row.
func (r *SQLRepository) InsertErrorAudit(ctx context.Context, audit *Audit) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO purchase_audits
			(purchase_id, user_id, session_id, basket,
			 total_debited_cents, total_credited_cents, balance_before_cents, balance_after_cents,
			 status, account_mode, outcomes, error_detail)
		VALUES ($1, $2, $3, $4, 0, 0, $5, $5, $6, $7, '[]', $8)
		ON CONFLICT (purchase_id) DO NOTHING`,
		audit.PurchaseID, audit.UserID, audit.SessionID, audit.Basket,
		audit.BalanceBeforeCents, StatusError, audit.AccountMode, audit.ErrorDetail)
	return err
}

// IsUniqueConflict reports whether err is the audit-insert losing the
// purchase-id race: either a raw 23505 from postgres or the guarded
// upsert matching no row.
func IsUniqueConflict(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
