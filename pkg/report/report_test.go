package report

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pulses "github.com/hvlab/pulse_go/pkg"
)

func pulseWith(kind pulses.PulseKind, number int, duration, charge float64) pulses.PulseAnalysis {
	t := []float64{0, 1e-9, 2e-9, 3e-9}
	return pulses.PulseAnalysis{
		Pulse: pulses.Pulse{Number: number, Kind: kind, Source: "data/run.npz", T: t, I: []float64{0, 0.01, 0.005, 0}},
		Stats: pulses.PulseStats{Kind: kind, DurationS: duration, ChargeC: charge, MaxAmplitudeA: 0.01, IsSaturated: kind == pulses.KindClipped},
	}
}

func testResults() []pulses.FileResult {
	var first pulses.RecordAnalysis
	first.Source = "data/run.npz"
	for k := 1; k <= 100; k++ {
		first.Pulses = append(first.Pulses, pulseWith(pulses.KindPulse, k-1, float64(k)*1e-9, float64(k)*1e-12))
	}
	first.Pulses[0].Fit = &pulses.FitResult{Method: pulses.LevenbergMarquardt}
	first.Pulses[1].FitErr = &pulses.ErrFitDidNotConverge{Method: pulses.LevenbergMarquardt}

	second := pulses.RecordAnalysis{
		Source: "data/other.npz",
		Pulses: []pulses.PulseAnalysis{pulseWith(pulses.KindClipped, 0, 20e-9, 4e-10)},
	}
	return []pulses.FileResult{
		{Path: first.Source, Analysis: first},
		{Path: "data/broken.npz", Err: errors.New("truncated")},
		{Path: second.Source, Analysis: second},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(testResults())

	assert.Equal(t, 3, s.Files)
	assert.Equal(t, 1, s.FailedFiles)
	assert.Equal(t, 100, s.Pulses)
	assert.Equal(t, 1, s.Clipped)
	assert.Equal(t, 1, s.Saturated)
	assert.Equal(t, 1, s.Fitted)
	assert.Equal(t, 1, s.FitFailures)
	assert.Equal(t, []FileCount{
		{Source: "data/run.npz", Pulses: 100},
		{Source: "data/other.npz", Clipped: 1},
	}, s.PerFile)

	d := s.DurationS
	assert.Equal(t, 101, d.Count)
	assert.Zero(t, d.Rejected)
	assert.InEpsilon(t, 5070e-9/101, d.Mean, 1e-12)
	// The clipped pulse repeats 20 ns, so the 51st smallest duration is 50 ns.
	assert.InEpsilon(t, 50e-9, d.Median, 1e-12)
	assert.InEpsilon(t, 50e-9, d.P50, 1e-2)
	assert.InEpsilon(t, 90e-9, d.P90, 1e-2)
	assert.InEpsilon(t, 99e-9, d.P99, 1e-2)
	assert.InEpsilon(t, 51e-12, s.ChargeC.Median, 1e-12)
	assert.InDelta(t, 0.01, s.MaxAmplitudeA.Mean, 1e-15)
}

func TestSummarizeCountsRejectedValues(t *testing.T) {
	a := pulses.RecordAnalysis{Source: "data/run.npz", Pulses: []pulses.PulseAnalysis{
		pulseWith(pulses.KindPulse, 0, 1e-9, 1e-12),
		pulseWith(pulses.KindPulse, 1, math.NaN(), 2e-12),
		pulseWith(pulses.KindPulse, 2, 2e-9, 3e-12),
	}}
	s := Summarize([]pulses.FileResult{{Path: a.Source, Analysis: a}})

	d := s.DurationS
	assert.Equal(t, 3, d.Count)
	assert.Equal(t, 1, d.Rejected)
	assert.InEpsilon(t, 1e-9, d.P50, 1e-2)
	assert.InEpsilon(t, 2e-9, d.P99, 1e-2)
	assert.Zero(t, s.ChargeC.Rejected)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Files)
	assert.Equal(t, Distribution{}, s.DurationS)
}

func TestPlotPulses(t *testing.T) {
	results := testResults()
	results[0].Analysis.Pulses[0].Fit.Params = pulses.ModelParameters{A: 0.01, K: -1e8, Lambda: 1e9, TPeak: 1e-9}
	dir := filepath.Join(t.TempDir(), "plots")

	written, err := PlotPulses([]pulses.RecordAnalysis{results[0].Analysis, results[2].Analysis}, dir, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	for _, name := range []string{"run_impulse_0000.png", "run_impulse_0001.png"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
	_, err = os.Stat(filepath.Join(dir, "run_impulse_0002.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	written, err = PlotPulses(nil, dir, 0)
	require.NoError(t, err)
	assert.Zero(t, written)

	assert.Error(t, PlotPulse(pulses.PulseAnalysis{}, filepath.Join(dir, "empty.png")))
}

func TestWriteHTMLReport(t *testing.T) {
	results := testResults()
	var buf bytes.Buffer
	analyses := []pulses.RecordAnalysis{results[0].Analysis, results[2].Analysis}
	require.NoError(t, WriteHTMLReport(&buf, Summarize(results), analyses))

	html := buf.String()
	assert.Contains(t, html, "Pulse duration vs charge")
	assert.Contains(t, html, "Pulses per file")
	assert.Contains(t, html, "other.npz")
}
