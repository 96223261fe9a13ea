package pulses

import (
	"fmt"
	"math"
)

// WaveformRecord holds one capture: time in seconds, voltage in volts and
// current in amperes. The three slices have the same length and T is
// strictly increasing. A record is read-only once built.
type WaveformRecord struct {
	T []float64
	V []float64
	I []float64
}

// NewRecord builds a record from the three archive channels. The raw current
// channel is divided by the shunt resistance to obtain amperes.
func NewRecord(t, v, rawCurrent []float64, shuntOhm float64) (WaveformRecord, error) {
	if !(shuntOhm > 0) || math.IsInf(shuntOhm, 0) {
		return WaveformRecord{}, configError("shunt_ohm", shuntOhm, "must be a positive finite resistance")
	}
	current := make([]float64, len(rawCurrent))
	for k, raw := range rawCurrent {
		current[k] = raw / shuntOhm
	}
	record := WaveformRecord{T: t, V: v, I: current}
	if err := record.Validate(); err != nil {
		return WaveformRecord{}, err
	}
	return record, nil
}

func (r WaveformRecord) Len() int {
	return len(r.T)
}

// Validate checks the length and monotonic time invariants.
func (r WaveformRecord) Validate() error {
	if len(r.V) != len(r.T) || len(r.I) != len(r.T) {
		return &ErrMalformedRecord{
			Reason: fmt.Sprintf("channel lengths differ: t=%d v=%d i=%d", len(r.T), len(r.V), len(r.I)),
			Index:  -1,
		}
	}
	return validateTime(r.T)
}

// SamplePeriod is the nominal sample period t[1]-t[0]. It returns false for
// records shorter than two samples.
func (r WaveformRecord) SamplePeriod() (float64, bool) {
	return samplePeriod(r.T)
}

func samplePeriod(t []float64) (float64, bool) {
	if len(t) < 2 {
		return 0, false
	}
	return t[1] - t[0], true
}

func validateTime(t []float64) error {
	for k := 1; k < len(t); k++ {
		if !(t[k] > t[k-1]) {
			return &ErrMalformedRecord{Reason: "time is not strictly increasing", Index: k}
		}
	}
	return nil
}

func validatePair(t, i []float64) error {
	if len(t) != len(i) {
		return &ErrMalformedRecord{
			Reason: fmt.Sprintf("time and current lengths differ: t=%d i=%d", len(t), len(i)),
			Index:  -1,
		}
	}
	return validateTime(t)
}

// IndexRange is a half-open [Start, End) interval of sample indices.
type IndexRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r IndexRange) Len() int {
	return r.End - r.Start
}

func (r IndexRange) Contains(idx int) bool {
	return idx >= r.Start && idx < r.End
}

// Shift moves the range by offset samples.
func (r IndexRange) Shift(offset int) IndexRange {
	return IndexRange{Start: r.Start + offset, End: r.End + offset}
}

func (r IndexRange) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// valid reports whether 0 <= Start < End <= n.
func (r IndexRange) valid(n int) bool {
	return r.Start >= 0 && r.Start < r.End && r.End <= n
}

// PulseKind tells regular pulses from saturated plateaus.
type PulseKind string

const (
	KindPulse   PulseKind = "pulse"
	KindClipped PulseKind = "clipped"
)

// Pulse is an extracted copy of the time and current samples over a range of
// its source record.
type Pulse struct {
	Number int
	Kind   PulseKind
	Source string
	Range  IndexRange
	T      []float64
	I      []float64
}

// Extract copies the samples of r out of record.
func Extract(record WaveformRecord, r IndexRange) (Pulse, error) {
	if !r.valid(record.Len()) {
		return Pulse{}, configError("range", r, fmt.Sprintf("outside record of %d samples", record.Len()))
	}
	p := Pulse{
		Kind:  KindPulse,
		Range: r,
		T:     make([]float64, r.Len()),
		I:     make([]float64, r.Len()),
	}
	copy(p.T, record.T[r.Start:r.End])
	copy(p.I, record.I[r.Start:r.End])
	return p, nil
}

func (p Pulse) Len() int {
	return len(p.T)
}

// Filename is the zero-padded archive name of the pulse, e.g. impulse_0003.
func (p Pulse) Filename() string {
	if p.Kind == KindClipped {
		return fmt.Sprintf("clipped_impulse_%04d", p.Number)
	}
	return fmt.Sprintf("impulse_%04d", p.Number)
}
