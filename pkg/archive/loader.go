package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	pulses "github.com/hvlab/pulse_go/pkg"
)

// ChannelReader reads the raw channels of one archive format.
type ChannelReader func(filename string) (Channels, error)

// Loader turns archives into records, dispatching on the file extension and
// scaling the raw current by the shunt resistance.
type Loader struct {
	ShuntOhm          float64
	ShuntFromFilename bool
	readers           map[string]ChannelReader
}

// NewLoader returns a loader that reads .npz archives. Other formats are
// added with Register.
func NewLoader(shuntOhm float64, shuntFromFilename bool) *Loader {
	l := &Loader{
		ShuntOhm:          shuntOhm,
		ShuntFromFilename: shuntFromFilename,
		readers:           make(map[string]ChannelReader),
	}
	l.Register(".npz", ReadNPZ)
	return l
}

func (l *Loader) Register(ext string, reader ChannelReader) {
	l.readers[strings.ToLower(ext)] = reader
}

// Extensions returns the registered extensions, sorted.
func (l *Loader) Extensions() []string {
	exts := make([]string, 0, len(l.readers))
	for ext := range l.readers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Shunt is the resistance used for path: the one in its name when enabled
// and present, the configured one otherwise.
func (l *Loader) Shunt(path string) float64 {
	if l.ShuntFromFilename {
		if meta, ok := ParseFilename(path); ok && meta.ResistanceOhm > 0 {
			return meta.ResistanceOhm
		}
	}
	return l.ShuntOhm
}

func (l *Loader) Load(path string) (pulses.WaveformRecord, error) {
	reader, ok := l.readers[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return pulses.WaveformRecord{}, &ErrUnsupportedFormat{Filename: path}
	}
	ch, err := reader(path)
	if err != nil {
		return pulses.WaveformRecord{}, err
	}
	record, err := pulses.NewRecord(ch.T, ch.V, ch.RawCurrent, l.Shunt(path))
	if err != nil {
		return pulses.WaveformRecord{}, fmt.Errorf("%s: %w", path, err)
	}
	return record, nil
}

// FindRecords lists the files of dir with one of the given extensions,
// sorted by name. Subdirectories are not searched.
func FindRecords(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &ErrOpenFile{Filename: dir, Err: err}
	}
	wanted := make(map[string]bool, len(exts))
	for _, ext := range exts {
		wanted[strings.ToLower(ext)] = true
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !wanted[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
