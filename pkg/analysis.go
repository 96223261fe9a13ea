package pulses

import (
	"fmt"
	"sort"
)

// WindowVerdict is the classifier output for one window, with the hint
// ranges in record indices.
type WindowVerdict struct {
	Window    int          `json:"window"`
	Range     IndexRange   `json:"range"`
	HasSignal bool         `json:"has_signal"`
	Hints     []IndexRange `json:"hints,omitempty"`
}

// PulseAnalysis is one extracted pulse with its statistics and, for regular
// pulses, the model fit. Fit is nil when fitting is disabled or failed; a
// failure is kept in FitErr.
type PulseAnalysis struct {
	Pulse  Pulse
	Stats  PulseStats
	Fit    *FitResult
	FitErr error
}

// RecordAnalysis is everything found in one waveform record.
type RecordAnalysis struct {
	Source          string
	Samples         int
	SaturationLevel float64
	Windows         []WindowVerdict
	Pulses          []PulseAnalysis
}

// Count returns the number of pulses of the given kind.
func (a RecordAnalysis) Count(kind PulseKind) int {
	n := 0
	for _, p := range a.Pulses {
		if p.Pulse.Kind == kind {
			n++
		}
	}
	return n
}

// SignalWindows returns the number of windows classified as signal.
func (a RecordAnalysis) SignalWindows() int {
	n := 0
	for _, w := range a.Windows {
		if w.HasSignal {
			n++
		}
	}
	return n
}

// PulseSink receives the pulses of every analysed record, e.g. an archive
// writer.
type PulseSink interface {
	WritePulse(p PulseAnalysis) error
	Close() error
}

// WritePulses sends every pulse of the analysis to sink, in order.
func (a RecordAnalysis) WritePulses(sink PulseSink) error {
	for _, pa := range a.Pulses {
		if err := sink.WritePulse(pa); err != nil {
			return fmt.Errorf("%s: %w", a.Source, err)
		}
	}
	return nil
}

// AnalyzeRecord runs the whole chain over one record: window
// classification, boundary detection, clipped detection when globalMax is
// positive, then extraction, characterization and fitting of every pulse.
// globalMax is read-only input shared by all records of a dataset.
func AnalyzeRecord(record WaveformRecord, source string, cfg Configuration, globalMax float64) (RecordAnalysis, error) {
	if err := cfg.Validate(); err != nil {
		return RecordAnalysis{}, err
	}
	if err := record.Validate(); err != nil {
		return RecordAnalysis{}, err
	}
	if cfg.SubtractCapacitive {
		var err error
		if record, err = SubtractCapacitive(record, cfg.Capacitive); err != nil {
			return RecordAnalysis{}, err
		}
	}

	analysis := RecordAnalysis{
		Source:          source,
		Samples:         record.Len(),
		SaturationLevel: globalMax,
	}

	windows, err := Split(record, cfg.BatchSize, cfg.Overlap)
	if err != nil {
		return analysis, err
	}
	for _, w := range windows {
		hasSignal, hints, err := Classify(w.I, cfg.Classifier)
		if err != nil {
			return analysis, err
		}
		verdict := WindowVerdict{
			Window:    w.Index,
			Range:     IndexRange{Start: w.Start, End: w.End},
			HasSignal: hasSignal,
		}
		for _, h := range hints {
			verdict.Hints = append(verdict.Hints, h.Shift(w.Start))
		}
		analysis.Windows = append(analysis.Windows, verdict)
	}

	var ranges []IndexRange
	if cfg.Windowed {
		ranges, err = detectWindowed(record, windows, cfg.Detector)
	} else {
		ranges, err = DetectPulses(record.T, record.I, cfg.Detector)
	}
	if err != nil {
		return analysis, err
	}

	var clipped []IndexRange
	if globalMax > 0 {
		if clipped, err = DetectClipped(record.I, globalMax, cfg.Clipped); err != nil {
			return analysis, err
		}
	}

	for k, r := range ranges {
		pa, err := analyzePulse(record, source, k, KindPulse, r, globalMax, cfg)
		if err != nil {
			return analysis, err
		}
		analysis.Pulses = append(analysis.Pulses, pa)
	}
	for k, r := range clipped {
		pa, err := analyzePulse(record, source, k, KindClipped, r, globalMax, cfg)
		if err != nil {
			return analysis, err
		}
		analysis.Pulses = append(analysis.Pulses, pa)
	}

	logger.Info(fmt.Sprintf("%s: %d samples, %d/%d signal windows, %d pulses, %d clipped",
		source, analysis.Samples, analysis.SignalWindows(), len(analysis.Windows),
		analysis.Count(KindPulse), analysis.Count(KindClipped)), "analysis")
	return analysis, nil
}

func analyzePulse(record WaveformRecord, source string, number int, kind PulseKind, r IndexRange, globalMax float64, cfg Configuration) (PulseAnalysis, error) {
	pulse, err := Extract(record, r)
	if err != nil {
		return PulseAnalysis{}, err
	}
	pulse.Number = number
	pulse.Kind = kind
	pulse.Source = source

	stats, err := Characterize(record.T, record.I, r, globalMax, cfg.Characterize)
	if err != nil {
		return PulseAnalysis{}, err
	}
	stats.Number = number
	stats.Kind = kind

	pa := PulseAnalysis{Pulse: pulse, Stats: stats}
	if kind != KindPulse || !cfg.Fit.Enabled || pulse.Len() < minFitSamples {
		return pa, nil
	}
	fit, err := Fit(pulse.T, pulse.I, cfg.Fit)
	if err != nil {
		pa.FitErr = err
		return pa, nil
	}
	pa.Fit = &fit
	return pa, nil
}

// detectWindowed runs the boundary detector on every window. A pulse is
// kept only by the window whose core holds its unpadded start, so a pulse
// seen by two overlapping windows is reported once. A pulse still open at
// the end of its window is followed through the rest of the record, so the
// result matches whole-record detection whatever the pulse length.
func detectWindowed(record WaveformRecord, windows []Window, p DetectorParams) ([]IndexRange, error) {
	n := record.Len()
	var ranges []IndexRange
	for _, w := range windows {
		if err := validatePair(w.T, w.I); err != nil {
			return nil, err
		}
		last := w.End == n
		params := p
		if !last {
			params.OpenPulse = DropOpenPulse
		}
		events, open := detectEvents(w.I, params)
		core := w.Core()
		for _, e := range events {
			if !core.Contains(e.Core.Start) || continuesPrevious(record, w, e, p) {
				continue
			}
			ranges = append(ranges, e.Range.Shift(w.Start))
		}
		if last || open < 0 || !core.Contains(open) {
			continue
		}
		if r, ok := followOpenPulse(record, w.Start, open, w.End, p); ok {
			ranges = append(ranges, r)
		}
	}
	sort.Slice(ranges, func(a, b int) bool { return ranges[a].Start < ranges[b].Start })
	return ranges, nil
}

// continuesPrevious reports whether e only starts at the first sample of w
// because the pulse was already open in the previous window. That window
// follows it.
func continuesPrevious(record WaveformRecord, w Window, e PulseEvent, p DetectorParams) bool {
	return w.Start > 0 && e.Core.Start == 0 && abs(record.I[w.Start-1]) > p.CurrentThreshold
}

// followOpenPulse re-runs the detector from absolute index from over a
// growing span until the pulse opened at relative index start closes well
// inside the span, or the span reaches the end of the record.
func followOpenPulse(record WaveformRecord, from, start, end int, p DetectorParams) (IndexRange, bool) {
	n := record.Len()
	for {
		end = min(n, from+2*(end-from))
		params := p
		if end < n {
			params.OpenPulse = DropOpenPulse
		}
		events, _ := detectEvents(record.I[from:end], params)
		for _, e := range events {
			if e.Core.Start != start {
				continue
			}
			// The falling edge walk stops at the span end; only trust an end
			// that closed before it.
			if end == n || e.Core.End < end-from-1 {
				return e.Range.Shift(from), true
			}
		}
		if end == n {
			return IndexRange{}, false
		}
	}
}
