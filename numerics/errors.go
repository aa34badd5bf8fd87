package numerics

import "fmt"

// BracketingError reports that a root-bracketing precondition failed: the
// supplied interval endpoints do not straddle the target value.
type BracketingError struct {
	Lower  float64
	Upper  float64
	FLower float64
	FUpper float64
}

func (e *BracketingError) Error() string {
	return fmt.Sprintf("numerics: no root bracketed in [%g, %g]: f(lower)=%g, f(upper)=%g",
		e.Lower, e.Upper, e.FLower, e.FUpper)
}

// NonConvergenceError reports that an iterative routine exhausted its budget
// before meeting tolerance. Best carries the last estimate so the caller can
// decide whether to accept it anyway.
type NonConvergenceError struct {
	Op         string
	Iterations int
	Best       float64
	Residual   float64
}

func (e *NonConvergenceError) Error() string {
	return fmt.Sprintf("numerics: %s did not converge after %d iterations (best %g, residual %g)",
		e.Op, e.Iterations, e.Best, e.Residual)
}
