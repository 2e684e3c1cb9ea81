package catalog

import "time"

// PrizeCategory is resolved once when prizes are loaded from the
// catalog, so consumers never re-derive what kind of outcome a prize
// is from its name or value.
type PrizeCategory string

const (
	CategoryCash         PrizeCategory = "cash"
	CategoryNoWin        PrizeCategory = "no_win"
	CategoryIllustrative PrizeCategory = "illustrative"
)

type Box struct {
	ID         int       `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	PriceCents int64     `db:"price_cents" json:"price_cents"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

type Prize struct {
	ID           int           `db:"id" json:"id"`
	BoxID        int           `db:"box_id" json:"box_id"`
	Name         string        `db:"name" json:"name"`
	ValueCents   int64         `db:"value_cents" json:"value_cents"`
	Weight       float64       `db:"weight" json:"weight"`
	Illustrative bool          `db:"illustrative" json:"illustrative"`
	Active       bool          `db:"active" json:"active"`
	Category     PrizeCategory `db:"-" json:"category"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// resolveCategory tags the prize once at load time.
func (p *Prize) resolveCategory() {
	switch {
	case p.Illustrative:
		p.Category = CategoryIllustrative
	case p.ValueCents > 0:
		p.Category = CategoryCash
	default:
		p.Category = CategoryNoWin
	}
}

type BoxWithPrizes struct {
	Box
	Prizes []Prize `json:"prizes"`
}

type CreateBoxRequest struct {
	Name       string `json:"name" binding:"required,min=2,max=255"`
	PriceCents int64  `json:"price_cents" binding:"required,gt=0"`
}

type UpdateBoxRequest struct {
	Name       string `json:"name" binding:"required,min=2,max=255"`
	PriceCents int64  `json:"price_cents" binding:"required,gt=0"`
	Active     *bool  `json:"active" binding:"required"`
}

type CreatePrizeRequest struct {
	Name         string  `json:"name" binding:"required,min=1,max=255"`
	ValueCents   int64   `json:"value_cents" binding:"gte=0"`
	Weight       float64 `json:"weight" binding:"required,gt=0,lte=1"`
	Illustrative bool    `json:"illustrative"`
}
