package pricing

import "math"

// BoundaryKind tags the concrete exercise-boundary variant.
type BoundaryKind int

const (
	KindSingle BoundaryKind = iota
	KindDouble
)

// ExerciseBoundary is an early-exercise frontier sampled on a collocation
// grid uniform in sqrt(time-to-expiry), so points cluster near expiry where
// the frontier moves fastest. Values are immutable once returned by the
// solver; concurrent readers need no locking.
type ExerciseBoundary interface {
	Kind() BoundaryKind
	// Times returns the collocation times ascending, starting at 0.
	Times() []float64
}

// SingleBoundary is the one-frontier regime. For puts exercise is optimal
// at or below the frontier, for calls at or above it. NoEarlyExercise marks
// parameter regimes in which waiting always dominates; the American value
// then equals the European one and Values holds a far sentinel level that
// keeps the premium integral at zero if evaluated anyway.
type SingleBoundary struct {
	T               []float64
	Values          []float64
	NoEarlyExercise bool
}

func (b *SingleBoundary) Kind() BoundaryKind { return KindSingle }
func (b *SingleBoundary) Times() []float64   { return b.T }

// At interpolates the frontier at time-to-expiry tau.
func (b *SingleBoundary) At(tau float64) float64 {
	return interpSqrt(b.Values, gridStep(b.T), tau)
}

// DoubleBoundary is the negative-rate band regime: exercise is optimal only
// for spot inside [Lower, Upper]. Lower[i] <= Upper[i] holds at every
// collocation point; where the band has closed the two frontiers coincide.
type DoubleBoundary struct {
	T     []float64
	Upper []float64
	Lower []float64
}

func (b *DoubleBoundary) Kind() BoundaryKind { return KindDouble }
func (b *DoubleBoundary) Times() []float64   { return b.T }

// At interpolates both frontiers at time-to-expiry tau.
func (b *DoubleBoundary) At(tau float64) (lower, upper float64) {
	dx := gridStep(b.T)
	return interpSqrt(b.Lower, dx, tau), interpSqrt(b.Upper, dx, tau)
}

// collocationGrid returns n+1 times uniform in x = sqrt(tau), tau_i =
// (i*dx)^2 with dx = sqrt(maturity)/n.
func collocationGrid(maturity float64, n int) []float64 {
	ts := make([]float64, n+1)
	dx := math.Sqrt(maturity) / float64(n)
	for i := range ts {
		x := float64(i) * dx
		ts[i] = x * x
	}
	ts[n] = maturity // guard sqrt roundoff at the far end
	return ts
}

// gridStep recovers the uniform sqrt-time spacing of a collocation grid.
func gridStep(times []float64) float64 {
	return math.Sqrt(times[len(times)-1]) / float64(len(times)-1)
}

// interpSqrt interpolates linearly on the sqrt(tau) axis. The grid is
// uniform in x = sqrt(tau), so locating the bracket is O(1) arithmetic
// rather than a search.
func interpSqrt(values []float64, dx, tau float64) float64 {
	if tau <= 0 {
		return values[0]
	}
	pos := math.Sqrt(tau) / dx
	i := int(pos)
	if i >= len(values)-1 {
		return values[len(values)-1]
	}
	frac := pos - float64(i)
	return values[i] + frac*(values[i+1]-values[i])
}
