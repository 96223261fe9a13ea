package pulses

// OpenPulsePolicy decides what happens to a pulse still open when the
// samples run out.
type OpenPulsePolicy string

const (
	// DropOpenPulse discards a pulse that never returns to baseline.
	DropOpenPulse OpenPulsePolicy = "drop"
	// CloseAtEnd closes an open pulse at the last sample (end = len).
	CloseAtEnd OpenPulsePolicy = "close"
)

// DetectorParams configures the pulse boundary detector.
type DetectorParams struct {
	// CurrentThreshold is the |i| level that opens a pulse.
	CurrentThreshold float64 `json:"current_threshold" yaml:"current_threshold"`
	// DerivativeThreshold is the |di| level the edges are extended through.
	DerivativeThreshold float64 `json:"derivative_threshold" yaml:"derivative_threshold"`
	// NoiseThreshold is the |i| level considered back at baseline.
	NoiseThreshold float64 `json:"noise_threshold" yaml:"noise_threshold"`
	// MinDuration is the minimum unpadded width in samples.
	MinDuration int `json:"min_duration" yaml:"min_duration"`
	// Padding is the number of context samples kept on each side.
	Padding   int             `json:"padding" yaml:"padding"`
	OpenPulse OpenPulsePolicy `json:"open_pulse" yaml:"open_pulse"`
}

func DefaultDetectorParams() DetectorParams {
	return DetectorParams{
		CurrentThreshold:    0.001,
		DerivativeThreshold: 0.0003,
		NoiseThreshold:      0.0005,
		MinDuration:         10,
		Padding:             5,
		OpenPulse:           DropOpenPulse,
	}
}

func (p DetectorParams) Validate() error {
	if !(p.CurrentThreshold > 0) {
		return configError("current_threshold", p.CurrentThreshold, "must be positive")
	}
	if !(p.DerivativeThreshold >= 0) {
		return configError("derivative_threshold", p.DerivativeThreshold, "must not be negative")
	}
	if !(p.NoiseThreshold >= 0) {
		return configError("noise_threshold", p.NoiseThreshold, "must not be negative")
	}
	if p.MinDuration < 0 {
		return configError("min_duration", p.MinDuration, "must not be negative")
	}
	if p.Padding < 0 {
		return configError("padding", p.Padding, "must not be negative")
	}
	switch p.OpenPulse {
	case DropOpenPulse, CloseAtEnd, "":
	default:
		return configError("open_pulse", p.OpenPulse, `must be "drop" or "close"`)
	}
	return nil
}

// PulseEvent is one accepted pulse: Core is the derivative-refined boundary,
// Range is Core widened by the padding and clamped to the record.
type PulseEvent struct {
	Core  IndexRange
	Range IndexRange
}

type detectorState int

const (
	baseline detectorState = iota
	inPulse
)

// DetectPulses returns the padded ranges of the pulses found in i.
func DetectPulses(t, i []float64, p DetectorParams) ([]IndexRange, error) {
	events, err := DetectPulseEvents(t, i, p)
	if err != nil {
		return nil, err
	}
	ranges := make([]IndexRange, len(events))
	for k, e := range events {
		ranges[k] = e.Range
	}
	return ranges, nil
}

// DetectPulseEvents runs the boundary state machine over i.
//
// A pulse opens at the first sample with |i| above CurrentThreshold; the
// start is then walked back while the preceding difference is steeper than
// DerivativeThreshold. It closes at the first sample that drops below
// CurrentThreshold or into the noise band, and the end is walked forward
// through the falling edge the same way. A record that starts inside a pulse
// opens it at sample 0. A pulse still open at the last sample is handled by
// OpenPulse.
func DetectPulseEvents(t, i []float64, p DetectorParams) ([]PulseEvent, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := validatePair(t, i); err != nil {
		return nil, err
	}
	events, _ := detectEvents(i, p)
	return events, nil
}

// detectEvents is the state machine of DetectPulseEvents. openStart is the
// start of the pulse still open at the last sample, -1 when there is none.
func detectEvents(i []float64, p DetectorParams) (events []PulseEvent, openStart int) {

	n := len(i)
	slope := func(k int) float64 { return abs(i[k+1] - i[k]) }

	accept := func(start, end int) {
		if end-start < p.MinDuration {
			return
		}
		events = append(events, PulseEvent{
			Core:  IndexRange{Start: start, End: end},
			Range: IndexRange{Start: max(0, start-p.Padding), End: min(n, end+p.Padding)},
		})
	}

	state := baseline
	start := 0
	for idx, x := range i {
		level := abs(x)
		above := level > p.CurrentThreshold
		atNoise := level <= p.NoiseThreshold

		switch state {
		case baseline:
			if !above {
				continue
			}
			start = idx
			for start > 0 && slope(start-1) > p.DerivativeThreshold {
				start--
			}
			state = inPulse
		case inPulse:
			if above && !atNoise {
				continue
			}
			end := idx
			for end < n-1 && slope(end) > p.DerivativeThreshold {
				end++
			}
			accept(start, end)
			state = baseline
		}
	}

	if state != inPulse {
		return events, -1
	}
	if p.OpenPulse == CloseAtEnd {
		accept(start, n)
	}
	return events, start
}
