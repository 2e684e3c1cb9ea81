package draw

import "github.com/goddeus/caixa-premiada-sub004/internal/catalog"

// PoolPolicy decides which weighted pool a given user draws from. The
// selector itself never branches on user behavior; any odds adjustment
// lives behind this interface, upstream of Pick, where it can be
// tested and replaced on its own.
type PoolPolicy interface {
	Pool(userID int, prizes []catalog.Prize) []catalog.Prize
}

// FixedOddsPolicy is the default policy: eligibility filtering only,
// identical pool for every user.
type FixedOddsPolicy struct{}

func (FixedOddsPolicy) Pool(userID int, prizes []catalog.Prize) []catalog.Prize {
	return EligiblePool(prizes)
}
