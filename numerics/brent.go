package numerics

import "math"

// DefaultBrentIterations is the iteration budget used when the caller passes
// a non-positive maxIter.
const DefaultBrentIterations = 100

const machineEpsilon = 2.220446049250313e-16

// Brent finds a root of f inside [lower, upper] with Brent's method:
// bisection for safety, secant and inverse quadratic interpolation for
// speed. The endpoints must bracket a root (opposite-sign residuals),
// otherwise a *BracketingError is returned without any iteration. If the
// iteration budget passes without meeting tol, the best estimate is wrapped
// in a *NonConvergenceError.
func Brent(f func(float64) float64, lower, upper, tol float64, maxIter int) (float64, error) {
	if maxIter <= 0 {
		maxIter = DefaultBrentIterations
	}
	if tol <= 0 {
		tol = 1e-12
	}

	a, b := lower, upper
	fa, fb := f(a), f(b)
	if fa == 0 {
		return a, nil
	}
	if fb == 0 {
		return b, nil
	}
	if (fa > 0) == (fb > 0) {
		return 0, &BracketingError{Lower: lower, Upper: upper, FLower: fa, FUpper: fb}
	}

	c, fc := b, fb
	var d, e float64

	for i := 0; i < maxIter; i++ {
		if (fb > 0) == (fc > 0) {
			c, fc = a, fa
			d = b - a
			e = d
		}
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}

		tol1 := 2*machineEpsilon*math.Abs(b) + 0.5*tol
		xm := 0.5 * (c - b)
		if math.Abs(xm) <= tol1 || fb == 0 {
			return b, nil
		}

		if math.Abs(e) >= tol1 && math.Abs(fa) > math.Abs(fb) {
			// Attempt secant / inverse quadratic interpolation.
			var p, q float64
			s := fb / fa
			if a == c {
				p = 2 * xm * s
				q = 1 - s
			} else {
				q = fa / fc
				r := fb / fc
				p = s * (2*xm*q*(q-r) - (b-a)*(r-1))
				q = (q - 1) * (r - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			}
			p = math.Abs(p)
			min1 := 3*xm*q - math.Abs(tol1*q)
			min2 := math.Abs(e * q)
			if 2*p < math.Min(min1, min2) {
				e = d
				d = p / q
			} else {
				d = xm
				e = d
			}
		} else {
			d = xm
			e = d
		}

		a, fa = b, fb
		if math.Abs(d) > tol1 {
			b += d
		} else {
			b += math.Copysign(tol1, xm)
		}
		fb = f(b)
	}

	return b, &NonConvergenceError{
		Op:         "brent root finding",
		Iterations: maxIter,
		Best:       b,
		Residual:   math.Abs(fb),
	}
}
