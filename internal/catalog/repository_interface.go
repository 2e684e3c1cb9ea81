package catalog

import "context"

type Repository interface {
	GetBoxByID(ctx context.Context, id int) (*Box, error)
	ListActiveBoxes(ctx context.Context) ([]Box, error)
	GetPrizes(ctx context.Context, boxID int) ([]Prize, error)
	CreateBox(ctx context.Context, name string, priceCents int64) (*Box, error)
	UpdateBox(ctx context.Context, id int, name string, priceCents int64, active bool) (*Box, error)
	CreatePrize(ctx context.Context, boxID int, req CreatePrizeRequest) (*Prize, error)
}
