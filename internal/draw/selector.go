// Package draw implements the weighted prize selection used when a box
// is opened. The selector is pure: it performs no I/O and takes its
// randomness as an argument, so its distribution is verifiable in tests.
package draw

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/goddeus/caixa-premiada-sub004/internal/catalog"
)

var ErrNoEligiblePrizes = errors.New("no eligible prizes in pool")

// Source supplies uniform randomness in [0, 1).
type Source interface {
	Float64() float64
}

// lockedSource serializes access to a single rand.Rand. One Source is
// shared by every purchase goroutine in the process; *rand.Rand alone
// is not safe for concurrent use.
type lockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	v := s.rnd.Float64()
	s.mu.Unlock()
	return v
}

// NewSource returns a crypto-seeded, concurrency-safe source. Draw
// outcomes must not be predictable from process start time.
func NewSource() Source {
	seed := time.Now().UnixNano()
	var b [8]byte
	if _, err := crand.Read(b[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(b[:]))
	}
	return &lockedSource{rnd: rand.New(rand.NewSource(seed))}
}

// EligiblePool filters a display pool down to the prizes a draw may
// select: active, not illustrative, positive weight.
func EligiblePool(prizes []catalog.Prize) []catalog.Prize {
	eligible := make([]catalog.Prize, 0, len(prizes))
	for _, p := range prizes {
		if p.Active && !p.Illustrative && p.Weight > 0 {
			eligible = append(eligible, p)
		}
	}
	return eligible
}

// Pick selects exactly one prize from the pool, with long-run frequency
// weight/sum(weights). The pool must already be eligibility-filtered;
// an empty pool is ErrNoEligiblePrizes and the calling transaction must
// abort before any balance mutation.
//
// If floating-point drift leaves the cumulative walk short of r, the
// last prize is returned deterministically.
func Pick(pool []catalog.Prize, src Source) (catalog.Prize, error) {
	if len(pool) == 0 {
		return catalog.Prize{}, ErrNoEligiblePrizes
	}

	var total float64
	for _, p := range pool {
		total += p.Weight
	}

	r := src.Float64() * total

	var cumulative float64
	for _, p := range pool {
		cumulative += p.Weight
		if r < cumulative {
			return p, nil
		}
	}

	return pool[len(pool)-1], nil
}
