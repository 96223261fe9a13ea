package pulses

import "math"

// Tolerance is the combined relative/absolute closeness test used for every
// comparison against the saturation level: |a-b| <= Abs + Rel*|b|.
type Tolerance struct {
	Rel float64 `json:"rel_tol" yaml:"rel_tol"`
	Abs float64 `json:"abs_tol" yaml:"abs_tol"`
}

// DefaultTolerance matches a plateau recorded at the digitizer ceiling.
var DefaultTolerance = Tolerance{Rel: 1e-10, Abs: 1e-15}

// Close reports whether a is within tolerance of the reference b.
func (tol Tolerance) Close(a, b float64) bool {
	if a == b {
		return true
	}
	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return false
	}
	return math.Abs(a-b) <= tol.Abs+tol.Rel*math.Abs(b)
}

// AllClose reports whether every value of xs is close to b. It is false for
// an empty slice.
func (tol Tolerance) AllClose(xs []float64, b float64) bool {
	if len(xs) == 0 {
		return false
	}
	for _, x := range xs {
		if !tol.Close(x, b) {
			return false
		}
	}
	return true
}

func (tol Tolerance) validate() error {
	if tol.Rel < 0 || math.IsNaN(tol.Rel) {
		return configError("rel_tol", tol.Rel, "must not be negative")
	}
	if tol.Abs < 0 || math.IsNaN(tol.Abs) {
		return configError("abs_tol", tol.Abs, "must not be negative")
	}
	return nil
}
