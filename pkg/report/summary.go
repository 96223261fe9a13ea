package report

import (
	"math"
	"sort"

	"github.com/HdrHistogram/hdrhistogram-go"
	"gonum.org/v1/gonum/stat"

	pulses "github.com/hvlab/pulse_go/pkg"
)

// Distribution describes one pulse figure over a run. Percentiles come from
// an HDR histogram with three significant digits and refer to magnitudes.
// Rejected counts the values the histogram could not hold.
type Distribution struct {
	Count    int     `json:"count"`
	Rejected int     `json:"rejected"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	StdDev   float64 `json:"std_dev"`
	P50      float64 `json:"p50"`
	P90      float64 `json:"p90"`
	P99      float64 `json:"p99"`
}

type FileCount struct {
	Source  string `json:"source"`
	Pulses  int    `json:"pulses"`
	Clipped int    `json:"clipped"`
}

type Summary struct {
	Files       int `json:"files"`
	FailedFiles int `json:"failed_files"`
	Pulses      int `json:"pulses"`
	Clipped     int `json:"clipped"`
	Saturated   int `json:"saturated"`
	Fitted      int `json:"fitted"`
	FitFailures int `json:"fit_failures"`

	DurationS     Distribution `json:"duration_s"`
	ChargeC       Distribution `json:"charge_c"`
	MaxAmplitudeA Distribution `json:"max_amplitude_a"`

	PerFile []FileCount `json:"per_file"`
}

// Histogram resolution per figure: picoseconds, femtocoulombs, microamperes.
const (
	durationScale  = 1e12
	chargeScale    = 1e15
	amplitudeScale = 1e6

	maxTrackable = 1e12
)

// Summarize reduces the results of a run. Failed files are counted but
// contribute no pulses.
func Summarize(results []pulses.FileResult) Summary {
	var s Summary
	var durations, charges, amplitudes []float64
	for _, r := range results {
		s.Files++
		if r.Err != nil {
			s.FailedFiles++
			continue
		}
		a := r.Analysis
		count := FileCount{Source: a.Source, Pulses: a.Count(pulses.KindPulse), Clipped: a.Count(pulses.KindClipped)}
		s.PerFile = append(s.PerFile, count)
		s.Pulses += count.Pulses
		s.Clipped += count.Clipped
		for _, pa := range a.Pulses {
			if pa.Stats.IsSaturated {
				s.Saturated++
			}
			if pa.Fit != nil {
				s.Fitted++
			} else if pa.FitErr != nil {
				s.FitFailures++
			}
			durations = append(durations, pa.Stats.DurationS)
			charges = append(charges, pa.Stats.ChargeC)
			amplitudes = append(amplitudes, pa.Stats.MaxAmplitudeA)
		}
	}
	s.DurationS = distribution(durations, durationScale)
	s.ChargeC = distribution(charges, chargeScale)
	s.MaxAmplitudeA = distribution(amplitudes, amplitudeScale)
	return s
}

func distribution(values []float64, scale float64) Distribution {
	d := Distribution{Count: len(values)}
	if len(values) == 0 {
		return d
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	d.Mean = stat.Mean(sorted, nil)
	d.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	if len(sorted) > 1 {
		d.StdDev = stat.StdDev(sorted, nil)
	}

	hist := hdrhistogram.New(1, int64(maxTrackable), 3)
	for _, v := range sorted {
		if math.IsNaN(v) {
			d.Rejected++
			continue
		}
		scaled := math.Min(math.Abs(v)*scale, maxTrackable)
		if err := hist.RecordValue(int64(math.Round(scaled))); err != nil {
			d.Rejected++
		}
	}
	d.P50 = float64(hist.ValueAtQuantile(50)) / scale
	d.P90 = float64(hist.ValueAtQuantile(90)) / scale
	d.P99 = float64(hist.ValueAtQuantile(99)) / scale
	return d
}
