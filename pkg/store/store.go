package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	sqlx "github.com/jmoiron/sqlx"

	pulses "github.com/hvlab/pulse_go/pkg"
)

// Store keeps runs, pulse statistics, fits and current limits in SQL.
type Store struct {
	DB     *sqlx.DB
	Driver string
	Logger pulses.Logger
}

type Run struct {
	ID              string  `db:"id"`
	CreatedAt       string  `db:"created_at"`
	SaturationLevel float64 `db:"saturation_level"`
	Config          string  `db:"config"`
}

// PulseRow is one row of pulse_stats.
type PulseRow struct {
	RunID             string   `db:"run_id"`
	Source            string   `db:"source"`
	Kind              string   `db:"kind"`
	Number            int      `db:"number"`
	StartIdx          int      `db:"start_idx"`
	EndIdx            int      `db:"end_idx"`
	DurationS         float64  `db:"duration_s"`
	MaxAmplitudeA     float64  `db:"max_amplitude_a"`
	PeakAbsA          float64  `db:"peak_abs_a"`
	ChargeC           float64  `db:"charge_c"`
	IsSaturated       bool     `db:"is_saturated"`
	RiseTimeS         *float64 `db:"rise_time_s"`
	FallTimeS         *float64 `db:"fall_time_s"`
	ClippedPointCount int      `db:"clipped_point_count"`
}

// FitRow is one row of fits. Non-finite values are stored as NULL; SSE is
// NULL for fits that did not converge.
type FitRow struct {
	RunID      string   `db:"run_id"`
	Source     string   `db:"source"`
	Number     int      `db:"number"`
	Method     string   `db:"method"`
	A          *float64 `db:"a"`
	K          *float64 `db:"k"`
	Lambda     *float64 `db:"lambda"`
	TPeak      *float64 `db:"t_peak"`
	SSE        *float64 `db:"sse"`
	Iterations int      `db:"iterations"`
	Converged  bool     `db:"converged"`
}

const insertPulseStats = `REPLACE INTO pulse_stats (
	run_id, source, kind, number, start_idx, end_idx, duration_s, max_amplitude_a,
	peak_abs_a, charge_c, is_saturated, rise_time_s, fall_time_s, clipped_point_count
) VALUES (
	:run_id, :source, :kind, :number, :start_idx, :end_idx, :duration_s, :max_amplitude_a,
	:peak_abs_a, :charge_c, :is_saturated, :rise_time_s, :fall_time_s, :clipped_point_count
)`

const insertFit = `REPLACE INTO fits (
	run_id, source, number, method, a, k, lambda, t_peak, sse, iterations, converged
) VALUES (
	:run_id, :source, :number, :method, :a, :k, :lambda, :t_peak, :sse, :iterations, :converged
)`

func (s *Store) info(message string) {
	if s.Logger != nil {
		s.Logger.Info(message, "store")
	}
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// CreateRun registers a new analysis run and returns its identifier. The
// database password is not stored with the configuration.
func (s *Store) CreateRun(config pulses.Configuration, saturationLevel float64) (string, error) {
	config.Passwd = ""
	data, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("encoding configuration: %w", err)
	}
	run := Run{
		ID:              uuid.NewString(),
		CreatedAt:       now(),
		SaturationLevel: saturationLevel,
		Config:          string(data),
	}
	_, err = s.DB.NamedExec(`INSERT INTO runs (id, created_at, saturation_level, config)
		VALUES (:id, :created_at, :saturation_level, :config)`, run)
	if err != nil {
		return "", fmt.Errorf("creating run: %w", err)
	}
	s.info(fmt.Sprintf("Created run %s", run.ID))
	return run.ID, nil
}

func (s *Store) Run(id string) (Run, error) {
	var run Run
	err := s.DB.Get(&run, `SELECT id, created_at, saturation_level, config FROM runs WHERE id = ?`, id)
	return run, err
}

// SaveRecordAnalysis stores the statistics and fits of one record in a
// single transaction. Saving the same record twice replaces its rows.
func (s *Store) SaveRecordAnalysis(runID string, analysis pulses.RecordAnalysis) error {
	tx, err := s.DB.Beginx()
	if err != nil {
		return err
	}
	for _, pa := range analysis.Pulses {
		if _, err := tx.NamedExec(insertPulseStats, newPulseRow(runID, pa)); err != nil {
			tx.Rollback()
			return fmt.Errorf("saving stats of %s %s: %w", analysis.Source, pa.Pulse.Filename(), err)
		}
		row, ok := newFitRow(runID, pa)
		if !ok {
			continue
		}
		if _, err := tx.NamedExec(insertFit, row); err != nil {
			tx.Rollback()
			return fmt.Errorf("saving fit of %s %s: %w", analysis.Source, pa.Pulse.Filename(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.info(fmt.Sprintf("Saved %d pulses of %s", len(analysis.Pulses), analysis.Source))
	return nil
}

func (s *Store) PulseStats(runID string) ([]PulseRow, error) {
	var rows []PulseRow
	err := s.DB.Select(&rows, `SELECT * FROM pulse_stats WHERE run_id = ?
		ORDER BY source, kind, number`, runID)
	return rows, err
}

func (s *Store) Fits(runID string) ([]FitRow, error) {
	var rows []FitRow
	err := s.DB.Select(&rows, `SELECT * FROM fits WHERE run_id = ? ORDER BY source, number`, runID)
	return rows, err
}

// SaveLimits stores limits under name, replacing any previous value.
func (s *Store) SaveLimits(name string, limits pulses.Limits) error {
	_, err := s.DB.Exec(`REPLACE INTO limits (name, max_current, min_current, max_current_actual, updated_at)
		VALUES (?, ?, ?, ?, ?)`, name, limits.MaxCurrent, limits.MinCurrent, limits.MaxCurrentActual, now())
	if err != nil {
		return fmt.Errorf("saving limits %s: %w", name, err)
	}
	return nil
}

// LoadLimits returns the limits stored under name. The error wraps
// sql.ErrNoRows when there are none.
func (s *Store) LoadLimits(name string) (pulses.Limits, error) {
	var limits pulses.Limits
	err := s.DB.QueryRowx(`SELECT max_current, min_current, max_current_actual FROM limits
		WHERE name = ?`, name).Scan(&limits.MaxCurrent, &limits.MinCurrent, &limits.MaxCurrentActual)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return limits, fmt.Errorf("no limits named %s: %w", name, err)
		}
		return limits, err
	}
	return limits, nil
}

func newPulseRow(runID string, pa pulses.PulseAnalysis) PulseRow {
	st := pa.Stats
	return PulseRow{
		RunID:             runID,
		Source:            pa.Pulse.Source,
		Kind:              string(pa.Pulse.Kind),
		Number:            pa.Pulse.Number,
		StartIdx:          st.StartIdx,
		EndIdx:            st.EndIdx,
		DurationS:         st.DurationS,
		MaxAmplitudeA:     st.MaxAmplitudeA,
		PeakAbsA:          st.PeakAbsA,
		ChargeC:           st.ChargeC,
		IsSaturated:       st.IsSaturated,
		RiseTimeS:         st.RiseTimeS,
		FallTimeS:         st.FallTimeS,
		ClippedPointCount: st.ClippedPointCount,
	}
}

// newFitRow describes a fit outcome. Fits that failed for a reason other
// than the iteration budget have no row.
func newFitRow(runID string, pa pulses.PulseAnalysis) (FitRow, bool) {
	row := FitRow{RunID: runID, Source: pa.Pulse.Source, Number: pa.Pulse.Number}
	var params pulses.ModelParameters
	switch {
	case pa.Fit != nil:
		params = pa.Fit.Params
		row.Method = string(pa.Fit.Method)
		row.Iterations = pa.Fit.Iterations
		row.Converged = true
		row.SSE = finite(pa.Fit.SSE)
	case pa.FitErr != nil:
		var notConverged *pulses.ErrFitDidNotConverge
		if !errors.As(pa.FitErr, &notConverged) {
			return row, false
		}
		params = notConverged.Last
		row.Method = string(notConverged.Method)
		row.Iterations = notConverged.Iterations
	default:
		return row, false
	}
	row.A = finite(params.A)
	row.K = finite(params.K)
	row.Lambda = finite(params.Lambda)
	row.TPeak = finite(params.TPeak)
	return row, true
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
