package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	pulses "github.com/hvlab/pulse_go/pkg"
	"github.com/hvlab/pulse_go/pkg/archive"
	"github.com/hvlab/pulse_go/pkg/h5"
	"github.com/hvlab/pulse_go/pkg/logging"
	"github.com/hvlab/pulse_go/pkg/store"
)

var configuration pulses.Configuration

var logger logging.Logger

func init() {
	logger = logging.New(os.Stdout, os.Stderr, slog.LevelDebug)
}

func main() {
	configFilename := flag.String("config", "", "Configuration file path (JSON or YAML)")
	inputDir := flag.String("dir", "", "Directory with the records, overrides input_dir")
	out := flag.String("out", "", "Limits file to write, overrides limits_file")
	name := flag.String("name", "default", "Name of the limits in the database")
	flag.Parse()

	if err := run(*configFilename, *inputDir, *out, *name); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func run(configFilename, inputDir, out, name string) error {
	var err error
	configuration = pulses.DefaultConfiguration()
	if configFilename != "" {
		configuration, err = pulses.LoadConfiguration(configFilename)
		if err != nil {
			return fmt.Errorf("Error reading configuration file: %w", err)
		}
	}
	if inputDir != "" {
		configuration.InputDir = inputDir
	}
	if out != "" {
		configuration.LimitsFile = out
	}
	if err := configuration.Validate(); err != nil {
		return err
	}
	// Per worker messages only from verbosity 2.
	if configuration.Verbosity > 1 {
		pulses.SetLogger(logger)
	} else {
		pulses.SetLogger(nil)
	}

	loader := archive.NewLoader(configuration.ShuntOhm, configuration.ShuntFromFilename)
	loader.Register(".h5", h5.ReadChannels)
	loader.Register(".hdf5", h5.ReadChannels)

	var paths []string
	if configuration.FileIn != "" {
		paths = []string{configuration.FileIn}
	} else {
		paths, err = archive.FindRecords(configuration.InputDir, loader.Extensions())
		if err != nil {
			return fmt.Errorf("Error listing %s: %w", configuration.InputDir, err)
		}
	}
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Number of records: %d", len(paths)), "main")
	}

	start := time.Now()
	limits, err := pulses.ComputeLimitsFiles(paths, loader, configuration.LimitsMargin, configuration.NumWorkers)
	if err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("Max current: %g A, min current: %g A, observed max: %g A",
		limits.MaxCurrent, limits.MinCurrent, limits.MaxCurrentActual), "main")
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Total time: %d ms", time.Since(start).Milliseconds()), "main")
	}

	if err := pulses.SaveLimits(configuration.LimitsFile, limits); err != nil {
		return fmt.Errorf("Error writing limits file: %w", err)
	}
	logger.Info(fmt.Sprintf("Limits written to %s", configuration.LimitsFile), "main")

	if configuration.NoDB {
		return nil
	}
	db, err := store.OpenConfigured(configuration)
	if err != nil {
		return err
	}
	defer db.Close()
	if configuration.Verbosity > 1 {
		db.Logger = logger
	}
	if err := db.MigrateUp(); err != nil {
		return err
	}
	return db.SaveLimits(name, limits)
}
