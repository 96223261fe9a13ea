package main

import (
	"fmt"

	pulses "github.com/hvlab/pulse_go/pkg"
	"github.com/hvlab/pulse_go/pkg/logging"
)

func printConfiguration(config pulses.Configuration, logger logging.Logger) {
	logger.Info(fmt.Sprintf("File in: %s", config.FileIn), "config")
	logger.Info(fmt.Sprintf("Input dir: %s", config.InputDir), "config")
	logger.Info(fmt.Sprintf("Shunt: %g Ohm (from filename: %t)", config.ShuntOhm, config.ShuntFromFilename), "config")
	logger.Info(fmt.Sprintf("Batch size: %d, overlap: %d, windowed: %t", config.BatchSize, config.Overlap, config.Windowed), "config")
	logger.Info(fmt.Sprintf("Subtract capacitive: %t", config.SubtractCapacitive), "config")
	logger.Info(fmt.Sprintf("Classifier: %+v", config.Classifier), "config")
	logger.Info(fmt.Sprintf("Detector: %+v", config.Detector), "config")
	logger.Info(fmt.Sprintf("Clipped: %+v", config.Clipped), "config")
	logger.Info(fmt.Sprintf("Characterize: %+v", config.Characterize), "config")
	logger.Info(fmt.Sprintf("Fit: %+v", config.Fit), "config")
	logger.Info(fmt.Sprintf("Limits file: %s (margin %g)", config.LimitsFile, config.LimitsMargin), "config")
	logger.Info(fmt.Sprintf("Write pulses: %t", config.WritePulses), "config")
	logger.Info(fmt.Sprintf("Pulse format: %s", config.PulseFormat), "config")
	logger.Info(fmt.Sprintf("Pulse dir: %s", config.PulseDir), "config")
	logger.Info(fmt.Sprintf("File out: %s", config.FileOut), "config")
	logger.Info(fmt.Sprintf("Plot dir: %s (max %d)", config.PlotDir, config.MaxPlots), "config")
	logger.Info(fmt.Sprintf("Report file: %s", config.ReportFile), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	logger.Info(fmt.Sprintf("DB driver: %s", config.DBDriver), "config")
	logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
	logger.Info(fmt.Sprintf("Number of workers: %d", config.NumWorkers), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
}
