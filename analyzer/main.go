package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	pulses "github.com/hvlab/pulse_go/pkg"
	"github.com/hvlab/pulse_go/pkg/archive"
	"github.com/hvlab/pulse_go/pkg/h5"
	"github.com/hvlab/pulse_go/pkg/logging"
	"github.com/hvlab/pulse_go/pkg/report"
)

var configuration pulses.Configuration

var (
	logger         logging.Logger
	VerbosityLevel int
)

func init() {
	logger = logging.New(os.Stdout, os.Stderr, slog.LevelDebug)
}

func main() {
	configFilename := flag.String("config", "", "Configuration file path (JSON or YAML)")
	fileIn := flag.String("file", "", "Analyse a single record, overrides file_in")
	inputDir := flag.String("dir", "", "Analyse every record in a directory, overrides input_dir")
	pulseFile := flag.String("pulse", "", "Fit the model to one saved pulse archive and exit")
	flag.Parse()

	var err error
	if *pulseFile != "" {
		err = fitSavedPulse(*configFilename, *pulseFile)
	} else {
		err = run(*configFilename, *fileIn, *inputDir)
	}
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func loadConfiguration(configFilename string) error {
	var err error
	configuration = pulses.DefaultConfiguration()
	if configFilename != "" {
		configuration, err = pulses.LoadConfiguration(configFilename)
		if err != nil {
			return fmt.Errorf("Error reading configuration file: %w", err)
		}
	}
	return nil
}

func run(configFilename, fileIn, inputDir string) error {
	if err := loadConfiguration(configFilename); err != nil {
		return err
	}
	if fileIn != "" {
		configuration.FileIn = fileIn
	}
	if inputDir != "" {
		configuration.InputDir = inputDir
	}
	if err := configuration.Validate(); err != nil {
		return err
	}
	VerbosityLevel = configuration.Verbosity
	configureLogging()
	if VerbosityLevel > 0 {
		logger.Info(fmt.Sprintf("Reading configuration file: %s", configFilename), "main")
		printConfiguration(configuration, logger)
	}

	loader := archive.NewLoader(configuration.ShuntOhm, configuration.ShuntFromFilename)
	loader.Register(".h5", h5.ReadChannels)
	loader.Register(".hdf5", h5.ReadChannels)

	paths, err := recordPaths(configuration, loader)
	if err != nil {
		return err
	}
	info(1, fmt.Sprintf("Number of records: %d", len(paths)), "main")

	limits, err := currentLimits(configuration, paths, loader)
	if err != nil {
		return err
	}
	saturationLevel := limits.SaturationLevel()
	info(1, fmt.Sprintf("Saturation level: %g A", saturationLevel), "main")

	start := time.Now()
	results := pulses.AnalyzeFiles(paths, loader, configuration, saturationLevel)
	analyses := make([]pulses.RecordAnalysis, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			logger.Error(fmt.Errorf("discarding record %s: %w", r.Path, r.Err).Error())
			continue
		}
		info(2, fmt.Sprintf("%s: %d pulses, %d clipped, %d/%d signal windows", r.Path,
			r.Analysis.Count(pulses.KindPulse), r.Analysis.Count(pulses.KindClipped),
			r.Analysis.SignalWindows(), len(r.Analysis.Windows)), "main")
		analyses = append(analyses, r.Analysis)
	}
	info(1, fmt.Sprintf("Analysis time: %d ms", time.Since(start).Milliseconds()), "main")

	if configuration.WritePulses {
		if err := writePulses(configuration, analyses); err != nil {
			return fmt.Errorf("error writing pulses: %w", err)
		}
	}

	if !configuration.NoDB {
		runID, err := saveToDatabase(configuration, saturationLevel, analyses)
		if err != nil {
			return fmt.Errorf("error saving to database: %w", err)
		}
		info(1, fmt.Sprintf("Run stored as %s", runID), "main")
	}

	if configuration.PlotDir != "" {
		written, err := report.PlotPulses(analyses, configuration.PlotDir, configuration.MaxPlots)
		if err != nil {
			logger.Error(fmt.Errorf("error plotting pulses: %w", err).Error())
		}
		info(1, fmt.Sprintf("Plots written: %d", written), "main")
	}

	summary := report.Summarize(results)
	logSummary(summary)
	if configuration.ReportFile != "" {
		if err := writeReport(configuration.ReportFile, summary, analyses); err != nil {
			return fmt.Errorf("error writing report: %w", err)
		}
	}
	return nil
}

// fitSavedPulse fits the model to a pulse written by a previous run and
// plots it into plot_dir when one is configured.
func fitSavedPulse(configFilename, filename string) error {
	if err := loadConfiguration(configFilename); err != nil {
		return err
	}
	VerbosityLevel = configuration.Verbosity
	configureLogging()

	t, i, err := archive.ReadPulseNPZ(filename)
	if err != nil {
		return err
	}
	pa := pulses.PulseAnalysis{
		Pulse: pulses.Pulse{Kind: pulses.KindPulse, Source: filename, Range: pulses.IndexRange{Start: 0, End: len(t)}, T: t, I: i},
	}
	fit, err := pulses.Fit(t, i, configuration.Fit)
	if err != nil {
		return fmt.Errorf("Error fitting %s: %w", filename, err)
	}
	pa.Fit = &fit
	logger.Info(fmt.Sprintf("%s: A=%g A, k=%g 1/s, lambda=%g 1/s, t_peak=%g s, sse=%g, iterations=%d",
		filename, fit.Params.A, fit.Params.K, fit.Params.Lambda, fit.Params.TPeak, fit.SSE, fit.Iterations), "fit")

	if configuration.PlotDir == "" {
		return nil
	}
	if err := os.MkdirAll(configuration.PlotDir, 0o755); err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return report.PlotPulse(pa, filepath.Join(configuration.PlotDir, base+"_fit.png"))
}

// configureLogging hands the logger to the library only from verbosity 2,
// where per record and per worker messages are wanted.
func configureLogging() {
	if VerbosityLevel > 1 {
		pulses.SetLogger(logger)
	} else {
		pulses.SetLogger(nil)
	}
}

// info logs message when the verbosity reaches level: 1 for the run
// summary, 2 for every record.
func info(level int, message, module string) {
	if VerbosityLevel >= level {
		logger.Info(message, module)
	}
}

func recordPaths(config pulses.Configuration, loader *archive.Loader) ([]string, error) {
	if config.FileIn != "" {
		return []string{config.FileIn}, nil
	}
	if config.InputDir == "" {
		return nil, errors.New("no input: set file_in or input_dir")
	}
	paths, err := archive.FindRecords(config.InputDir, loader.Extensions())
	if err != nil {
		return nil, fmt.Errorf("Error listing %s: %w", config.InputDir, err)
	}
	return paths, nil
}

// currentLimits reads the limits file. When there is none the limits are
// measured on the records being analysed and saved for the next run.
func currentLimits(config pulses.Configuration, paths []string, loader *archive.Loader) (pulses.Limits, error) {
	limits, err := pulses.LoadLimits(config.LimitsFile)
	if err == nil {
		return limits, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return limits, fmt.Errorf("Error reading limits file: %w", err)
	}

	info(1, fmt.Sprintf("No limits file %s, measuring limits", config.LimitsFile), "main")
	limits, err = pulses.ComputeLimitsFiles(paths, loader, config.LimitsMargin, config.NumWorkers)
	if err != nil {
		return limits, fmt.Errorf("Error measuring limits: %w", err)
	}
	if err := pulses.SaveLimits(config.LimitsFile, limits); err != nil {
		logger.Error(fmt.Errorf("Error saving limits file: %w", err).Error())
	}
	return limits, nil
}

func logSummary(s report.Summary) {
	if VerbosityLevel < 1 {
		return
	}
	logger.Info(fmt.Sprintf("Files: %d (failed %d)", s.Files, s.FailedFiles), "summary")
	logger.Info(fmt.Sprintf("Pulses: %d, clipped: %d, saturated: %d", s.Pulses, s.Clipped, s.Saturated), "summary")
	logger.Info(fmt.Sprintf("Fits: %d, failed: %d", s.Fitted, s.FitFailures), "summary")
	logger.Info(fmt.Sprintf("Duration: mean %.3g s, p50 %.3g s, p90 %.3g s, p99 %.3g s",
		s.DurationS.Mean, s.DurationS.P50, s.DurationS.P90, s.DurationS.P99), "summary")
	logger.Info(fmt.Sprintf("Charge: mean %.3g C, p50 %.3g C, p90 %.3g C, p99 %.3g C",
		s.ChargeC.Mean, s.ChargeC.P50, s.ChargeC.P90, s.ChargeC.P99), "summary")
}
