package purchase

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	GetAuditByPurchaseID(ctx context.Context, purchaseID string) (*Audit, error)
	ListAuditsByUser(ctx context.Context, userID, limit, offset int) ([]Audit, error)
	InsertCompletedTx(ctx context.Context, tx *sqlx.Tx, audit *Audit) error
	InsertErrorAudit(ctx context.Context, audit *Audit) error
}
