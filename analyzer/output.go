package main

import (
	"fmt"
	"os"
	"path/filepath"

	pulses "github.com/hvlab/pulse_go/pkg"
	"github.com/hvlab/pulse_go/pkg/archive"
	"github.com/hvlab/pulse_go/pkg/h5"
	"github.com/hvlab/pulse_go/pkg/report"
	"github.com/hvlab/pulse_go/pkg/store"
)

// newSink opens the pulse archive chosen in the configuration.
func newSink(config pulses.Configuration) (pulses.PulseSink, error) {
	if config.PulseFormat == pulses.FormatHDF5 {
		filename := config.FileOut
		if filename == "" {
			filename = filepath.Join(config.PulseDir, "pulses.h5")
		}
		if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
			return nil, err
		}
		return h5.NewWriter(filename, config.CompressionLevel)
	}
	return archive.NewNPZWriter(config.PulseDir)
}

func writePulses(config pulses.Configuration, analyses []pulses.RecordAnalysis) error {
	sink, err := newSink(config)
	if err != nil {
		return fmt.Errorf("opening pulse archive: %w", err)
	}
	for _, a := range analyses {
		if err := a.WritePulses(sink); err != nil {
			sink.Close()
			return err
		}
	}
	return sink.Close()
}

func saveToDatabase(config pulses.Configuration, saturationLevel float64, analyses []pulses.RecordAnalysis) (string, error) {
	db, err := store.OpenConfigured(config)
	if err != nil {
		return "", err
	}
	defer db.Close()
	if VerbosityLevel > 1 {
		db.Logger = logger
	}

	if err := db.MigrateUp(); err != nil {
		return "", err
	}
	runID, err := db.CreateRun(config, saturationLevel)
	if err != nil {
		return "", err
	}
	for _, a := range analyses {
		if err := db.SaveRecordAnalysis(runID, a); err != nil {
			return runID, err
		}
	}
	return runID, nil
}

func writeReport(filename string, summary report.Summary, analyses []pulses.RecordAnalysis) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := report.WriteHTMLReport(f, summary, analyses); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
