package archive

import (
	"path/filepath"
	"regexp"
	"strconv"
)

var runPattern = regexp.MustCompile(`(\d+)Ohm_(\d+)V_(\d+)kHz`)

// RunMetadata are the acquisition settings encoded in a file name such as
// "discharge_50Ohm_1500V_30kHz.npz".
type RunMetadata struct {
	ResistanceOhm float64 `json:"resistance_ohm"`
	VoltageV      float64 `json:"voltage_v"`
	FrequencyKHz  float64 `json:"frequency_khz"`
}

// ParseFilename extracts the run settings from the base name of path.
func ParseFilename(path string) (RunMetadata, bool) {
	m := runPattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return RunMetadata{}, false
	}
	values := make([]float64, 3)
	for k := range values {
		v, err := strconv.ParseFloat(m[k+1], 64)
		if err != nil {
			return RunMetadata{}, false
		}
		values[k] = v
	}
	return RunMetadata{ResistanceOhm: values[0], VoltageV: values[1], FrequencyKHz: values[2]}, true
}
