package pulses

// ClippedParams configures the saturation plateau detector.
type ClippedParams struct {
	Tolerance     Tolerance `json:"tolerance" yaml:"tolerance"`
	MinPlateauLen int       `json:"min_plateau_len" yaml:"min_plateau_len"`
}

func DefaultClippedParams() ClippedParams {
	return ClippedParams{
		Tolerance:     DefaultTolerance,
		MinPlateauLen: 3,
	}
}

func (p ClippedParams) Validate() error {
	if err := p.Tolerance.validate(); err != nil {
		return err
	}
	if p.MinPlateauLen < 1 {
		return configError("min_plateau_len", p.MinPlateauLen, "must be at least 1")
	}
	return nil
}

// DetectClipped returns the runs of at least MinPlateauLen consecutive
// samples within tolerance of globalMax. A run reaching the last sample is
// closed at len(i).
func DetectClipped(i []float64, globalMax float64, p ClippedParams) ([]IndexRange, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var ranges []IndexRange
	runStart := -1
	closeRun := func(end int) {
		if runStart >= 0 && end-runStart >= p.MinPlateauLen {
			ranges = append(ranges, IndexRange{Start: runStart, End: end})
		}
		runStart = -1
	}

	for idx, x := range i {
		if p.Tolerance.Close(x, globalMax) {
			if runStart < 0 {
				runStart = idx
			}
			continue
		}
		closeRun(idx)
	}
	closeRun(len(i))
	return ranges, nil
}
