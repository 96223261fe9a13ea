package pulses

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
)

// CharacterizeParams configures the per-pulse statistics.
type CharacterizeParams struct {
	Tolerance Tolerance `json:"tolerance" yaml:"tolerance"`
	// Lookback is how many samples before the start and after the end are
	// searched for the reference crossing.
	Lookback int `json:"lookback" yaml:"lookback"`
	// ReferenceFraction of the saturation level marks the rise start and the
	// fall end.
	ReferenceFraction float64 `json:"reference_fraction" yaml:"reference_fraction"`
}

func DefaultCharacterizeParams() CharacterizeParams {
	return CharacterizeParams{
		Tolerance:         DefaultTolerance,
		Lookback:          50,
		ReferenceFraction: 0.1,
	}
}

func (p CharacterizeParams) Validate() error {
	if err := p.Tolerance.validate(); err != nil {
		return err
	}
	if p.Lookback < 0 {
		return configError("lookback", p.Lookback, "must not be negative")
	}
	if !(p.ReferenceFraction > 0 && p.ReferenceFraction < 1) {
		return configError("reference_fraction", p.ReferenceFraction, "must be in (0, 1)")
	}
	return nil
}

// PulseStats are the derived characteristics of one pulse. RiseTimeS and
// FallTimeS are nil when the surrounding samples do not contain the
// reference crossing; nil never means zero.
type PulseStats struct {
	Number            int       `json:"number"`
	Kind              PulseKind `json:"kind"`
	StartIdx          int       `json:"start_idx"`
	EndIdx            int       `json:"end_idx"`
	DurationS         float64   `json:"duration_s"`
	MaxAmplitudeA     float64   `json:"max_amplitude_a"`
	PeakAbsA          float64   `json:"peak_abs_a"`
	ChargeC           float64   `json:"charge_c"`
	IsSaturated       bool      `json:"is_saturated"`
	RiseTimeS         *float64  `json:"rise_time_s,omitempty"`
	FallTimeS         *float64  `json:"fall_time_s,omitempty"`
	ClippedPointCount int       `json:"clipped_point_count"`
}

// Characterize computes the statistics of range r of a record. A
// non-positive globalMax disables the saturation, rise and fall figures.
func Characterize(t, i []float64, r IndexRange, globalMax float64, p CharacterizeParams) (PulseStats, error) {
	if err := p.Validate(); err != nil {
		return PulseStats{}, err
	}
	if err := validatePair(t, i); err != nil {
		return PulseStats{}, err
	}
	if !r.valid(len(t)) {
		return PulseStats{}, configError("range", r, fmt.Sprintf("outside record of %d samples", len(t)))
	}

	ts, is := t[r.Start:r.End], i[r.Start:r.End]
	stats := PulseStats{
		Kind:          KindPulse,
		StartIdx:      r.Start,
		EndIdx:        r.End,
		DurationS:     ts[len(ts)-1] - ts[0],
		MaxAmplitudeA: floats.Max(is),
		PeakAbsA:      max(abs(floats.Max(is)), abs(floats.Min(is))),
	}
	if len(ts) >= 2 {
		stats.ChargeC = integrate.Trapezoidal(ts, is)
	}

	if !(globalMax > 0) {
		return stats, nil
	}
	for _, x := range is {
		if p.Tolerance.Close(x, globalMax) {
			stats.ClippedPointCount++
		}
	}
	stats.IsSaturated = stats.ClippedPointCount == len(is)

	period, ok := samplePeriod(t)
	if !ok {
		return stats, nil
	}
	reference := p.ReferenceFraction * globalMax
	stats.RiseTimeS = riseTime(i, r.Start, p.Lookback, reference, period)
	stats.FallTimeS = fallTime(i, r.End, p.Lookback, reference, period)
	return stats, nil
}

// riseTime looks back from start for the last sample under reference.
func riseTime(i []float64, start, lookback int, reference, period float64) *float64 {
	for k := start - 1; k >= max(0, start-lookback); k-- {
		if i[k] < reference {
			v := float64(start-k) * period
			return &v
		}
	}
	return nil
}

// fallTime looks forward from end for the first sample under reference.
func fallTime(i []float64, end, lookback int, reference, period float64) *float64 {
	for k := end; k < min(len(i), end+lookback); k++ {
		if i[k] < reference {
			v := float64(k-end) * period
			return &v
		}
	}
	return nil
}
