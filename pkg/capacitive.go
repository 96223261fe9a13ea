package pulses

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// CapacitiveParams describe the displacement current of the electrode
// capacitance: a sine of the supply frequency whose peak trails or leads the
// voltage peak by Delay.
type CapacitiveParams struct {
	AmplitudeA float64 `json:"amplitude_a" yaml:"amplitude_a"`
	DelayS     float64 `json:"delay_s" yaml:"delay_s"`
	FrequencyH float64 `json:"frequency_hz" yaml:"frequency_hz"`
}

func DefaultCapacitiveParams() CapacitiveParams {
	return CapacitiveParams{
		AmplitudeA: 1.478774e-4,
		DelayS:     -7.068553539992742e-6,
		FrequencyH: 30e3,
	}
}

func (p CapacitiveParams) Validate() error {
	if math.IsNaN(p.AmplitudeA) || math.IsInf(p.AmplitudeA, 0) {
		return configError("capacitive.amplitude_a", p.AmplitudeA, "must be finite")
	}
	if math.IsNaN(p.DelayS) || math.IsInf(p.DelayS, 0) {
		return configError("capacitive.delay_s", p.DelayS, "must be finite")
	}
	if !(p.FrequencyH > 0) || math.IsInf(p.FrequencyH, 0) {
		return configError("capacitive.frequency_hz", p.FrequencyH, "must be a positive finite frequency")
	}
	return nil
}

// CapacitiveCurrent models the capacitive current of a record. Its peak sits
// at the time of the voltage maximum shifted by Delay.
func CapacitiveCurrent(record WaveformRecord, p CapacitiveParams) ([]float64, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}
	out := make([]float64, record.Len())
	if record.Len() == 0 {
		return out, nil
	}

	omega := 2 * math.Pi * p.FrequencyH
	tPeak := record.T[argMax(record.V)] + p.DelayS
	phi := math.Pi/2 - omega*tPeak
	for k, t := range record.T {
		out[k] = p.AmplitudeA * math.Sin(omega*t+phi)
	}
	return out, nil
}

// SubtractCapacitive returns a copy of record with the modelled capacitive
// current removed from I.
func SubtractCapacitive(record WaveformRecord, p CapacitiveParams) (WaveformRecord, error) {
	capacitive, err := CapacitiveCurrent(record, p)
	if err != nil {
		return WaveformRecord{}, err
	}
	current := make([]float64, record.Len())
	floats.SubTo(current, record.I, capacitive)
	return WaveformRecord{T: record.T, V: record.V, I: current}, nil
}
