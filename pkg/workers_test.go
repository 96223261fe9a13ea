package pulses

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapLoader serves records from memory. "panic" makes the load panic and
// unknown paths fail with os.ErrNotExist.
func mapLoader(records map[string]WaveformRecord) RecordLoader {
	return LoaderFunc(func(path string) (WaveformRecord, error) {
		if path == "panic" {
			panic("corrupt archive")
		}
		record, ok := records[path]
		if !ok {
			return WaveformRecord{}, fmt.Errorf("open %s: %w", path, os.ErrNotExist)
		}
		return record, nil
	})
}

func TestAnalyzeFilesKeepsInputOrder(t *testing.T) {
	records := make(map[string]WaveformRecord)
	var paths []string
	for k := 0; k < 12; k++ {
		i := make([]float64, 500)
		// File k holds k%3+1 pulses.
		for p := 0; p <= k%3; p++ {
			addPulse(i, 50+150*p, 80+150*p, 0.01)
		}
		path := fmt.Sprintf("record_%02d.npz", k)
		records[path] = recordOf(i)
		paths = append(paths, path)
	}
	paths = append(paths, "missing.npz", "panic")

	cfg := DefaultConfiguration()
	cfg.Fit.Enabled = false
	cfg.NumWorkers = 4
	results := AnalyzeFiles(paths, mapLoader(records), cfg, 0)
	require.Len(t, results, len(paths))

	for k := 0; k < 12; k++ {
		require.NoError(t, results[k].Err)
		assert.Equal(t, paths[k], results[k].Path)
		assert.Equal(t, paths[k], results[k].Analysis.Source)
		assert.Equal(t, k%3+1, results[k].Analysis.Count(KindPulse))
	}
	assert.ErrorIs(t, results[12].Err, os.ErrNotExist)
	require.Error(t, results[13].Err)
	assert.Contains(t, results[13].Err.Error(), "recovered from panic")
	assert.Equal(t, "panic", results[13].Path)
}

func TestAnalyzeFilesReportsAnalysisErrors(t *testing.T) {
	bad := recordOf(make([]float64, 10))
	bad.T[3] = bad.T[2]
	results := AnalyzeFiles([]string{"bad"}, mapLoader(map[string]WaveformRecord{"bad": bad}), DefaultConfiguration(), 0)
	require.Len(t, results, 1)
	var malformed *ErrMalformedRecord
	assert.True(t, errors.As(results[0].Err, &malformed))
}

func TestAnalyzeFilesEmpty(t *testing.T) {
	assert.Empty(t, AnalyzeFiles(nil, mapLoader(nil), DefaultConfiguration(), 0))
}

func TestComputeLimitsFiles(t *testing.T) {
	records := map[string]WaveformRecord{
		"a": recordOf([]float64{0, 0.01, -0.003}),
		"b": recordOf([]float64{0.02, 0.001}),
		"c": recordOf([]float64{-0.004, 0.005}),
	}
	limits, err := ComputeLimitsFiles([]string{"a", "b", "missing", "c", "panic"}, mapLoader(records), 1.05, 3)
	require.NoError(t, err)
	assert.Equal(t, 0.02, limits.MaxCurrentActual)
	assert.InDelta(t, 0.021, limits.MaxCurrent, 1e-15)
	assert.InDelta(t, -0.0042, limits.MinCurrent, 1e-15)

	_, err = ComputeLimitsFiles([]string{"missing"}, mapLoader(records), 1.05, 2)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = ComputeLimitsFiles(nil, mapLoader(records), 1.05, 2)
	assert.Error(t, err)

	_, err = ComputeLimitsFiles([]string{"a"}, mapLoader(records), 0, 2)
	var cfgErr *ErrConfig
	assert.True(t, errors.As(err, &cfgErr))
}
