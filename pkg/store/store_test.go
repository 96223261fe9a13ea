package store

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pulses "github.com/hvlab/pulse_go/pkg"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "pulses.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.MigrateUp())
	return s
}

func TestMigrateUpIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.MigrateUp())

	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(4), version)
	assert.False(t, dirty)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("postgres", "whatever")
	assert.Error(t, err)
}

func TestCreateRun(t *testing.T) {
	s := newTestStore(t)
	config := pulses.DefaultConfiguration()
	config.Passwd = "secret"

	id, err := s.CreateRun(config, 0.02)
	require.NoError(t, err)
	assert.Len(t, id, 36)

	run, err := s.Run(id)
	require.NoError(t, err)
	assert.Equal(t, 0.02, run.SaturationLevel)
	assert.NotContains(t, run.Config, "secret")

	var stored pulses.Configuration
	require.NoError(t, json.Unmarshal([]byte(run.Config), &stored))
	assert.Equal(t, config.BatchSize, stored.BatchSize)
}

func testAnalysis() pulses.RecordAnalysis {
	rise := 3e-9
	return pulses.RecordAnalysis{
		Source: "run_50Ohm_1000V_30kHz.npz",
		Pulses: []pulses.PulseAnalysis{
			{
				Pulse: pulses.Pulse{Number: 0, Kind: pulses.KindPulse, Source: "run_50Ohm_1000V_30kHz.npz"},
				Stats: pulses.PulseStats{Kind: pulses.KindPulse, StartIdx: 4, EndIdx: 11, DurationS: 6e-9, MaxAmplitudeA: 0.01, ChargeC: 5e-11},
				Fit: &pulses.FitResult{
					Method:     pulses.LevenbergMarquardt,
					Params:     pulses.ModelParameters{A: 0.01, K: -1e8, Lambda: 2e8, TPeak: 5e-9},
					SSE:        1e-12,
					Iterations: 12,
				},
			},
			{
				Pulse:  pulses.Pulse{Number: 1, Kind: pulses.KindPulse, Source: "run_50Ohm_1000V_30kHz.npz"},
				Stats:  pulses.PulseStats{Kind: pulses.KindPulse, StartIdx: 40, EndIdx: 50},
				FitErr: &pulses.ErrFitDidNotConverge{Method: pulses.NelderMead, Iterations: 1, Last: pulses.ModelParameters{A: 0.01}},
			},
			{
				Pulse: pulses.Pulse{Number: 0, Kind: pulses.KindClipped, Source: "run_50Ohm_1000V_30kHz.npz"},
				Stats: pulses.PulseStats{Kind: pulses.KindClipped, StartIdx: 100, EndIdx: 120, IsSaturated: true, RiseTimeS: &rise, ClippedPointCount: 20},
			},
		},
	}
}

func TestSaveRecordAnalysis(t *testing.T) {
	s := newTestStore(t)
	id, err := s.CreateRun(pulses.DefaultConfiguration(), 0.02)
	require.NoError(t, err)

	analysis := testAnalysis()
	require.NoError(t, s.SaveRecordAnalysis(id, analysis))
	// Saving again replaces the rows.
	require.NoError(t, s.SaveRecordAnalysis(id, analysis))

	rows, err := s.PulseStats(id)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	clipped := rows[0]
	assert.Equal(t, "clipped", clipped.Kind)
	assert.True(t, clipped.IsSaturated)
	require.NotNil(t, clipped.RiseTimeS)
	assert.Equal(t, 3e-9, *clipped.RiseTimeS)
	assert.Nil(t, clipped.FallTimeS)
	assert.Equal(t, 20, clipped.ClippedPointCount)

	assert.Equal(t, "pulse", rows[1].Kind)
	assert.Equal(t, 0.01, rows[1].MaxAmplitudeA)
	assert.Equal(t, 5e-11, rows[1].ChargeC)
	assert.False(t, rows[1].IsSaturated)

	fits, err := s.Fits(id)
	require.NoError(t, err)
	require.Len(t, fits, 2)
	assert.True(t, fits[0].Converged)
	require.NotNil(t, fits[0].SSE)
	assert.Equal(t, 1e-12, *fits[0].SSE)
	assert.Equal(t, 2e8, *fits[0].Lambda)
	assert.False(t, fits[1].Converged)
	assert.Nil(t, fits[1].SSE)
	assert.Equal(t, "nelder-mead", fits[1].Method)

	other, err := s.PulseStats("unknown")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestLimits(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadLimits("default")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	limits := pulses.Limits{MaxCurrent: 0.021, MinCurrent: -0.0042, MaxCurrentActual: 0.02}
	require.NoError(t, s.SaveLimits("default", limits))
	limits.MaxCurrentActual = 0.03
	require.NoError(t, s.SaveLimits("default", limits))

	got, err := s.LoadLimits("default")
	require.NoError(t, err)
	assert.Equal(t, limits, got)
}
