package pulses

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pulse archive formats.
const (
	FormatNPZ  = "npz"
	FormatHDF5 = "h5"
)

type Configuration struct {
	FileIn            string  `json:"file_in" yaml:"file_in"`
	InputDir          string  `json:"input_dir" yaml:"input_dir"`
	ShuntOhm          float64 `json:"shunt_ohm" yaml:"shunt_ohm"`
	ShuntFromFilename bool    `json:"shunt_from_filename" yaml:"shunt_from_filename"`

	BatchSize int  `json:"batch_size" yaml:"batch_size"`
	Overlap   int  `json:"overlap" yaml:"overlap"`
	Windowed  bool `json:"windowed" yaml:"windowed"`

	SubtractCapacitive bool             `json:"subtract_capacitive" yaml:"subtract_capacitive"`
	Capacitive         CapacitiveParams `json:"capacitive" yaml:"capacitive"`

	Classifier   ClassifierParams   `json:"classifier" yaml:"classifier"`
	Detector     DetectorParams     `json:"detector" yaml:"detector"`
	Clipped      ClippedParams      `json:"clipped" yaml:"clipped"`
	Characterize CharacterizeParams `json:"characterize" yaml:"characterize"`
	Fit          FitParams          `json:"fit" yaml:"fit"`

	LimitsMargin float64 `json:"limits_margin" yaml:"limits_margin"`
	LimitsFile   string  `json:"limits_file" yaml:"limits_file"`

	WritePulses bool   `json:"write_pulses" yaml:"write_pulses"`
	PulseDir    string `json:"pulse_dir" yaml:"pulse_dir"`
	PulseFormat string `json:"pulse_format" yaml:"pulse_format"`
	FileOut     string `json:"file_out" yaml:"file_out"`
	PlotDir     string `json:"plot_dir" yaml:"plot_dir"`
	MaxPlots    int    `json:"max_plots" yaml:"max_plots"`
	ReportFile  string `json:"report_file" yaml:"report_file"`

	// CompressionLevel is the deflate level of the HDF5 output.
	CompressionLevel int `json:"compression_level" yaml:"compression_level"`

	NoDB     bool   `json:"no_db" yaml:"no_db"`
	DBDriver string `json:"db_driver" yaml:"db_driver"`
	DBDSN    string `json:"db_dsn" yaml:"db_dsn"`
	Host     string `json:"host" yaml:"host"`
	User     string `json:"user" yaml:"user"`
	Passwd   string `json:"pass" yaml:"pass"`
	DBName   string `json:"dbname" yaml:"dbname"`

	NumWorkers int `json:"num_workers" yaml:"num_workers"`
	Verbosity  int `json:"verbosity" yaml:"verbosity"`
}

func DefaultConfiguration() Configuration {
	return Configuration{
		ShuntOhm:         50,
		BatchSize:        1000,
		Overlap:          100,
		Capacitive:       DefaultCapacitiveParams(),
		Classifier:       DefaultClassifierParams(),
		Detector:         DefaultDetectorParams(),
		Clipped:          DefaultClippedParams(),
		Characterize:     DefaultCharacterizeParams(),
		Fit:              DefaultFitParams(),
		LimitsMargin:     DefaultLimitsMargin,
		LimitsFile:       "current_limits.json",
		WritePulses:      true,
		PulseDir:         "saved_impulses",
		PulseFormat:      FormatNPZ,
		MaxPlots:         20,
		CompressionLevel: 4,
		NoDB:             true,
		DBDriver:         "sqlite",
		DBDSN:            "pulses.db",
		Host:             "localhost",
		DBName:           "pulses",
		NumWorkers:       1,
	}
}

// LoadConfiguration reads a JSON or YAML (.yaml, .yml) file over the
// defaults; keys missing from the file keep their default value.
func LoadConfiguration(filename string) (Configuration, error) {
	config := DefaultConfiguration()

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return config, fmt.Errorf("decoding %s: %w", filename, err)
	}
	return config, nil
}

// Validate checks every section and returns the first *ErrConfig found.
func (c Configuration) Validate() error {
	if !(c.ShuntOhm > 0) {
		return configError("shunt_ohm", c.ShuntOhm, "must be positive")
	}
	if c.BatchSize <= 0 {
		return configError("batch_size", c.BatchSize, "must be positive")
	}
	if c.Overlap < 0 {
		return configError("overlap", c.Overlap, "must not be negative")
	}
	if c.SubtractCapacitive {
		if err := c.Capacitive.Validate(); err != nil {
			return err
		}
	}
	sections := []interface{ Validate() error }{
		c.Classifier, c.Detector, c.Clipped, c.Characterize, c.Fit,
	}
	for _, section := range sections {
		if err := section.Validate(); err != nil {
			return err
		}
	}
	if !(c.LimitsMargin > 0) {
		return configError("limits_margin", c.LimitsMargin, "must be positive")
	}
	switch c.PulseFormat {
	case FormatNPZ, FormatHDF5:
	default:
		return configError("pulse_format", c.PulseFormat, `must be "npz" or "h5"`)
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 9 {
		return configError("compression_level", c.CompressionLevel, "must be in [0, 9]")
	}
	if c.MaxPlots < 0 {
		return configError("max_plots", c.MaxPlots, "must not be negative")
	}
	if !c.NoDB {
		switch c.DBDriver {
		case "mysql", "sqlite":
		default:
			return configError("db_driver", c.DBDriver, `must be "mysql" or "sqlite"`)
		}
	}
	if c.NumWorkers < 1 {
		return configError("num_workers", c.NumWorkers, "must be at least 1")
	}
	return nil
}
