package pulses

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ClassifierParams configures the per-window noise/signal verdict.
//
// HThreshold is the amplitude veto applied to the demeaned window. QThreshold
// is the net area, in ampere-samples, a chunk must exceed. Chunks of
// ChunkSize samples advance by ChunkSize-ChunkOverlap.
type ClassifierParams struct {
	HThreshold   float64 `json:"h_threshold" yaml:"h_threshold"`
	QThreshold   float64 `json:"q_threshold" yaml:"q_threshold"`
	ChunkSize    int     `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int     `json:"chunk_overlap" yaml:"chunk_overlap"`
}

func DefaultClassifierParams() ClassifierParams {
	return ClassifierParams{
		HThreshold:   0.025,
		QThreshold:   0.007515,
		ChunkSize:    50,
		ChunkOverlap: 14,
	}
}

func (p ClassifierParams) Validate() error {
	if !(p.HThreshold > 0) {
		return configError("h_threshold", p.HThreshold, "must be positive")
	}
	if !(p.QThreshold > 0) {
		return configError("q_threshold", p.QThreshold, "must be positive")
	}
	if p.ChunkSize < 2 {
		return configError("chunk_size", p.ChunkSize, "must be at least 2")
	}
	if p.ChunkOverlap < 0 || p.ChunkOverlap >= p.ChunkSize {
		return configError("chunk_overlap", p.ChunkOverlap, "must be in [0, chunk_size)")
	}
	return nil
}

// Classify decides whether a window of current samples holds anything but
// noise. An amplitude excursion beyond HThreshold short-circuits with no
// hint. Otherwise the first chunk whose net area exceeds QThreshold is
// returned as the only hint and scanning stops there, so the hint is a
// visualization aid and not a list of every event in the window.
func Classify(current []float64, p ClassifierParams) (bool, []IndexRange, error) {
	if err := p.Validate(); err != nil {
		return false, nil, err
	}
	if len(current) == 0 {
		return false, nil, nil
	}

	mean := stat.Mean(current, nil)
	shifted := make([]float64, len(current))
	copy(shifted, current)
	floats.AddConst(-mean, shifted)
	if floats.Max(shifted) > p.HThreshold || floats.Min(shifted) < -p.HThreshold {
		return true, nil, nil
	}

	grid := make([]float64, p.ChunkSize)
	floats.Span(grid, 0, float64(p.ChunkSize-1))

	step := p.ChunkSize - p.ChunkOverlap
	for start := 0; start+p.ChunkSize <= len(shifted); start += step {
		area := integrate.Trapezoidal(grid, shifted[start:start+p.ChunkSize])
		if abs(area) > p.QThreshold {
			return true, []IndexRange{{Start: start, End: start + p.ChunkSize}}, nil
		}
	}
	return false, nil, nil
}
