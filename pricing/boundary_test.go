package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollocationGrid(t *testing.T) {
	ts := collocationGrid(1.0, 24)
	require.Len(t, ts, 25)
	assert.Zero(t, ts[0])
	assert.Equal(t, 1.0, ts[24])

	for i := 1; i < len(ts); i++ {
		assert.Greater(t, ts[i], ts[i-1], "grid must ascend")
	}
	// sqrt spacing clusters points near expiry
	first := ts[1] - ts[0]
	last := ts[24] - ts[23]
	assert.Less(t, first, last/10)
}

func TestInterpSqrtAtNodes(t *testing.T) {
	ts := collocationGrid(0.25, 8)
	vals := make([]float64, len(ts))
	for i, tau := range ts {
		vals[i] = 100 - 10*math.Sqrt(tau) // linear in sqrt(tau): interp is exact
	}
	dx := gridStep(ts)
	for _, tau := range []float64{0, 0.01, 0.0625, 0.1, 0.2, 0.25} {
		assert.InDelta(t, 100-10*math.Sqrt(tau), interpSqrt(vals, dx, tau), 1e-10, "tau %v", tau)
	}
	// beyond the far end clamps to the last value
	assert.Equal(t, vals[len(vals)-1], interpSqrt(vals, dx, 0.4))
	// at or before expiry returns the expiry value
	assert.Equal(t, vals[0], interpSqrt(vals, dx, -1))
}

func TestBoundaryVariants(t *testing.T) {
	ts := collocationGrid(1.0, 4)

	sb := &SingleBoundary{T: ts, Values: []float64{100, 95, 92, 90, 89}}
	assert.Equal(t, KindSingle, sb.Kind())
	assert.Equal(t, ts, sb.Times())
	assert.InDelta(t, 89.0, sb.At(1.0), 1e-12)
	assert.InDelta(t, 100.0, sb.At(0), 1e-12)

	db := &DoubleBoundary{
		T:     ts,
		Lower: []float64{50, 51, 52, 53, 54},
		Upper: []float64{100, 98, 96, 94, 92},
	}
	assert.Equal(t, KindDouble, db.Kind())
	lo, hi := db.At(1.0)
	assert.InDelta(t, 54.0, lo, 1e-12)
	assert.InDelta(t, 92.0, hi, 1e-12)
	lo, hi = db.At(0)
	assert.Less(t, lo, hi)
}
