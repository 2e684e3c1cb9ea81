package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var (
	ErrBoxNotFound = errors.New("box not found")
)

type SQLRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) GetBoxByID(ctx context.Context, id int) (*Box, error) {
	var box Box
	err := r.db.GetContext(ctx, &box, `
		SELECT id, name, price_cents, active, created_at, updated_at
		FROM boxes
		WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBoxNotFound
		}
		return nil, err
	}
	return &box, nil
}

func (r *SQLRepository) ListActiveBoxes(ctx context.Context) ([]Box, error) {
	var boxes []Box
	err := r.db.SelectContext(ctx, &boxes, `
		SELECT id, name, price_cents, active, created_at, updated_at
		FROM boxes
		WHERE active = TRUE
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	if boxes == nil {
		boxes = []Box{}
	}
	return boxes, nil
}

// GetPrizes returns every prize of the box, illustrative ones
// included — this is the display pool. Categories are resolved here,
// once, at load time.
func (r *SQLRepository) GetPrizes(ctx context.Context, boxID int) ([]Prize, error) {
	var prizes []Prize
	err := r.db.SelectContext(ctx, &prizes, `
		SELECT id, box_id, name, value_cents, weight, illustrative, active, created_at
		FROM prizes
		WHERE box_id = $1
		ORDER BY id`, boxID)
	if err != nil {
		return nil, err
	}
	for i := range prizes {
		prizes[i].resolveCategory()
	}
	if prizes == nil {
		prizes = []Prize{}
	}
	return prizes, nil
}

func (r *SQLRepository) CreateBox(ctx context.Context, name string, priceCents int64) (*Box, error) {
	var box Box
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO boxes (name, price_cents)
		VALUES ($1, $2)
		RETURNING id, name, price_cents, active, created_at, updated_at`,
		name, priceCents,
	).StructScan(&box)
	if err != nil {
		return nil, err
	}
	return &box, nil
}

func (r *SQLRepository) UpdateBox(ctx context.Context, id int, name string, priceCents int64, active bool) (*Box, error) {
	var box Box
	err := r.db.QueryRowxContext(ctx, `
		UPDATE boxes
		SET name = $1, price_cents = $2, active = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING id, name, price_cents, active, created_at, updated_at`,
		name, priceCents, active, id,
	).StructScan(&box)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBoxNotFound
		}
		return nil, err
	}
	return &box, nil
}

func (r *SQLRepository) CreatePrize(ctx context.Context, boxID int, req CreatePrizeRequest) (*Prize, error) {
	var prize Prize
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO prizes (box_id, name, value_cents, weight, illustrative)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, box_id, name, value_cents, weight, illustrative, active, created_at`,
		boxID, req.Name, req.ValueCents, req.Weight, req.Illustrative,
	).StructScan(&prize)
	if err != nil {
		return nil, err
	}
	prize.resolveCategory()
	return &prize, nil
}
