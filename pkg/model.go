package pulses

import "math"

// ModelParameters describe the analytic pulse
//
//	f(t) = A · exp(-K(t-TPeak)) · g(t),  g(t) = exp(-Lambda(t-TPeak)) for t > TPeak, 1 otherwise.
//
// K shapes the pulse before the peak and K+Lambda after it. TPeak is taken
// from the measured pulse and is not fitted. K and Lambda are in 1/s.
type ModelParameters struct {
	A      float64 `json:"a"`
	K      float64 `json:"k"`
	Lambda float64 `json:"lambda"`
	TPeak  float64 `json:"t_peak"`
}

func (m ModelParameters) Eval(t float64) float64 {
	s := t - m.TPeak
	v := m.A * math.Exp(-m.K*s)
	if s > 0 {
		v *= math.Exp(-m.Lambda * s)
	}
	return v
}

// Curve evaluates the model at every time of ts.
func (m ModelParameters) Curve(ts []float64) []float64 {
	out := make([]float64, len(ts))
	for k, t := range ts {
		out[k] = m.Eval(t)
	}
	return out
}
