package draw

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/goddeus/caixa-premiada-sub004/internal/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedSource returns a scripted sequence of values.
type fixedSource struct {
	values []float64
	i      int
}

func (f *fixedSource) Float64() float64 {
	v := f.values[f.i%len(f.values)]
	f.i++
	return v
}

func pool(prizes ...catalog.Prize) []catalog.Prize { return prizes }

func TestPick_EmptyPool(t *testing.T) {
	_, err := Pick(nil, &fixedSource{values: []float64{0.5}})
	assert.ErrorIs(t, err, ErrNoEligiblePrizes)
}

func TestPick_SinglePrize(t *testing.T) {
	p := catalog.Prize{ID: 1, Name: "R$2", Weight: 0.7, Active: true}

	got, err := Pick(pool(p), &fixedSource{values: []float64{0.999}})
	require.NoError(t, err)
	assert.Equal(t, 1, got.ID)
}

func TestPick_CumulativeBoundaries(t *testing.T) {
	// weights 0.75 / 0.25 are exact in binary, so the pool total is
	// exactly 1.0: r in [0, 0.75) picks first, [0.75, 1.0) second
	p1 := catalog.Prize{ID: 1, Name: "R$2", Weight: 0.75, Active: true}
	p2 := catalog.Prize{ID: 2, Name: "Nada", Weight: 0.25, Active: true}

	tests := []struct {
		name   string
		r      float64
		wantID int
	}{
		{"start of range", 0.0, 1},
		{"just below first boundary", 0.74, 1},
		{"first boundary", 0.75, 2},
		{"near end", 0.9999, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Pick(pool(p1, p2), &fixedSource{values: []float64{tt.r}})
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

// driftSource returns a value slightly above 1.0 scaled, simulating
// cumulative float drift leaving the walk short.
type driftSource struct{}

func (driftSource) Float64() float64 { return math.Nextafter(1.0, 0) }

func TestPick_FloatDriftFallsBackToLastPrize(t *testing.T) {
	// Weights that accumulate with rounding error.
	p1 := catalog.Prize{ID: 1, Weight: 0.1, Active: true}
	p2 := catalog.Prize{ID: 2, Weight: 0.1, Active: true}
	p3 := catalog.Prize{ID: 3, Weight: 0.1, Active: true}

	got, err := Pick(pool(p1, p2, p3), driftSource{})
	require.NoError(t, err)
	assert.Equal(t, 3, got.ID, "drift must resolve to the last prize, not an error")
}

func TestEligiblePool_ExcludesIllustrativeAndInactive(t *testing.T) {
	prizes := pool(
		catalog.Prize{ID: 1, Weight: 0.5, Active: true},
		catalog.Prize{ID: 2, Weight: 0.3, Active: true, Illustrative: true},
		catalog.Prize{ID: 3, Weight: 0.1, Active: false},
		catalog.Prize{ID: 4, Weight: 0, Active: true},
		catalog.Prize{ID: 5, Weight: 0.1, Active: true},
	)

	eligible := EligiblePool(prizes)
	require.Len(t, eligible, 2)
	assert.Equal(t, 1, eligible[0].ID)
	assert.Equal(t, 5, eligible[1].ID)
}

func TestEligiblePool_AllExcludedIsEmpty(t *testing.T) {
	prizes := pool(
		catalog.Prize{ID: 1, Weight: 0.5, Active: true, Illustrative: true},
		catalog.Prize{ID: 2, Weight: 0.5, Active: false},
	)

	eligible := EligiblePool(prizes)
	assert.Empty(t, eligible)

	_, err := Pick(eligible, &fixedSource{values: []float64{0.1}})
	assert.ErrorIs(t, err, ErrNoEligiblePrizes)
}

func TestFixedOddsPolicy_IsUserIndependent(t *testing.T) {
	prizes := pool(
		catalog.Prize{ID: 1, Weight: 0.5, Active: true},
		catalog.Prize{ID: 2, Weight: 0.5, Active: true, Illustrative: true},
	)

	policy := FixedOddsPolicy{}
	a := policy.Pool(1, prizes)
	b := policy.Pool(99999, prizes)

	assert.Equal(t, a, b)
	require.Len(t, a, 1)
	assert.Equal(t, 1, a[0].ID)
}

func TestPick_Distribution(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping statistical test")
	}

	prizes := pool(
		catalog.Prize{ID: 1, Weight: 0.70, Active: true},
		catalog.Prize{ID: 2, Weight: 0.20, Active: true},
		catalog.Prize{ID: 3, Weight: 0.10, Active: true},
	)

	src := rand.New(rand.NewSource(42))
	const n = 100000

	counts := map[int]int{}
	for i := 0; i < n; i++ {
		p, err := Pick(prizes, src)
		require.NoError(t, err)
		counts[p.ID]++
	}

	// chi-squared goodness of fit against expected frequencies;
	// critical value for df=2 at p=0.01 is 9.21
	expected := map[int]float64{1: 0.70 * n, 2: 0.20 * n, 3: 0.10 * n}
	var chi2 float64
	for id, exp := range expected {
		diff := float64(counts[id]) - exp
		chi2 += diff * diff / exp
	}

	assert.Less(t, chi2, 9.21, "observed frequencies diverge from weights: %v", counts)
}

func TestPick_DistributionUnnormalizedWeights(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping statistical test")
	}

	// Weights need not sum to 1; frequency follows weight/sum(weights).
	prizes := pool(
		catalog.Prize{ID: 1, Weight: 0.6, Active: true},
		catalog.Prize{ID: 2, Weight: 0.2, Active: true},
	)

	src := rand.New(rand.NewSource(7))
	const n = 100000

	first := 0
	for i := 0; i < n; i++ {
		p, err := Pick(prizes, src)
		require.NoError(t, err)
		if p.ID == 1 {
			first++
		}
	}

	got := float64(first) / n
	assert.InDelta(t, 0.75, got, 0.01)
}

// One process-wide Source is shared by every purchase goroutine; this
// fails under -race if the default source is not synchronized.
func TestNewSource_ConcurrentDraws(t *testing.T) {
	prizes := pool(
		catalog.Prize{ID: 1, Weight: 0.7, Active: true},
		catalog.Prize{ID: 2, Weight: 0.3, Active: true},
	)

	src := NewSource()

	const workers = 8
	const draws = 2000

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < draws; i++ {
				p, err := Pick(prizes, src)
				if err != nil {
					errs[w] = err
					return
				}
				if p.ID != 1 && p.ID != 2 {
					errs[w] = fmt.Errorf("picked prize outside pool: %d", p.ID)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	for w, err := range errs {
		require.NoError(t, err, "worker %d", w)
	}
}

func TestNewSource_RangeContract(t *testing.T) {
	src := NewSource()
	for i := 0; i < 1000; i++ {
		v := src.Float64()
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}
