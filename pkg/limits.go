package pulses

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
)

// DefaultLimitsMargin widens the observed current range when the limits are
// stored.
const DefaultLimitsMargin = 1.05

// Limits are the dataset-wide current limits. MaxCurrent and MinCurrent are
// the observed extremes scaled by the margin; MaxCurrentActual is the
// observed maximum itself, the plateau value a saturated channel sits at.
// Limits are computed once and then shared read-only by every worker.
type Limits struct {
	MaxCurrent       float64 `json:"max_current"`
	MinCurrent       float64 `json:"min_current"`
	MaxCurrentActual float64 `json:"max_current_actual"`
}

// SaturationLevel is the value clipped samples are compared against.
func (l Limits) SaturationLevel() float64 {
	return l.MaxCurrentActual
}

// ComputeLimits reduces the current channel of every record to the dataset
// limits.
func ComputeLimits(records []WaveformRecord, margin float64) (Limits, error) {
	if !(margin > 0) || math.IsInf(margin, 0) {
		return Limits{}, configError("limits_margin", margin, "must be a positive finite factor")
	}
	parts := make([]Limits, 0, len(records))
	for _, record := range records {
		if len(record.I) == 0 {
			continue
		}
		parts = append(parts, RecordLimits(record.I, margin))
	}
	if len(parts) == 0 {
		return Limits{}, &ErrMalformedRecord{Reason: "no current samples to compute limits from", Index: -1}
	}
	return MergeLimits(parts...), nil
}

// RecordLimits are the limits of a single non-empty current channel.
func RecordLimits(i []float64, margin float64) Limits {
	hi, lo := floats.Max(i), floats.Min(i)
	return Limits{
		MaxCurrent:       hi * margin,
		MinCurrent:       lo * margin,
		MaxCurrentActual: hi,
	}
}

// MergeLimits combines partial limits computed with the same margin.
func MergeLimits(parts ...Limits) Limits {
	if len(parts) == 0 {
		return Limits{}
	}
	merged := parts[0]
	for _, p := range parts[1:] {
		merged.MaxCurrent = max(merged.MaxCurrent, p.MaxCurrent)
		merged.MinCurrent = min(merged.MinCurrent, p.MinCurrent)
		merged.MaxCurrentActual = max(merged.MaxCurrentActual, p.MaxCurrentActual)
	}
	return merged
}

func LoadLimits(filename string) (Limits, error) {
	var limits Limits
	data, err := os.ReadFile(filename)
	if err != nil {
		return limits, err
	}
	if err := json.Unmarshal(data, &limits); err != nil {
		return limits, fmt.Errorf("decoding limits %s: %w", filename, err)
	}
	return limits, nil
}

func SaveLimits(filename string, limits Limits) error {
	data, err := json.MarshalIndent(limits, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}
