package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sbinet/npyio/npz"
	"gonum.org/v1/gonum/mat"

	pulses "github.com/hvlab/pulse_go/pkg"
)

// DataKey is the array holding the (3, N) waveform: time, voltage and raw
// current rows.
const DataKey = "data"

// Channels are the rows of a waveform archive before current scaling.
type Channels struct {
	T          []float64
	V          []float64
	RawCurrent []float64
}

// ChannelsFromMatrix splits a (3, N) matrix into channels. An (N, 3) matrix
// is accepted as well.
func ChannelsFromMatrix(filename string, m mat.Matrix) (Channels, error) {
	rows, cols := m.Dims()
	if rows != 3 && cols == 3 {
		m = m.T()
		rows, cols = cols, rows
	}
	if rows != 3 {
		return Channels{}, &ErrBadShape{Filename: filename, Rows: rows, Cols: cols}
	}
	row := func(r int) []float64 {
		out := make([]float64, cols)
		mat.Row(out, r, m)
		return out
	}
	return Channels{T: row(0), V: row(1), RawCurrent: row(2)}, nil
}

// ReadNPZ reads the waveform channels of an .npz archive.
func ReadNPZ(filename string) (Channels, error) {
	r, err := npz.Open(filename)
	if err != nil {
		return Channels{}, &ErrOpenFile{Filename: filename, Err: err}
	}
	defer r.Close()

	key, ok := findKey(r.Keys(), DataKey)
	if !ok {
		return Channels{}, &ErrMissingArray{Filename: filename, Name: DataKey}
	}
	var data mat.Dense
	if err := r.Read(key, &data); err != nil {
		return Channels{}, fmt.Errorf("reading %s from %s: %w", key, filename, err)
	}
	return ChannelsFromMatrix(filename, &data)
}

// ReadPulseNPZ reads the t and i arrays of a saved pulse.
func ReadPulseNPZ(filename string) ([]float64, []float64, error) {
	r, err := npz.Open(filename)
	if err != nil {
		return nil, nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	defer r.Close()

	read := func(name string) ([]float64, error) {
		key, ok := findKey(r.Keys(), name)
		if !ok {
			return nil, &ErrMissingArray{Filename: filename, Name: name}
		}
		var out []float64
		if err := r.Read(key, &out); err != nil {
			return nil, fmt.Errorf("reading %s from %s: %w", key, filename, err)
		}
		return out, nil
	}
	t, err := read("t")
	if err != nil {
		return nil, nil, err
	}
	i, err := read("i")
	if err != nil {
		return nil, nil, err
	}
	return t, i, nil
}

func findKey(keys []string, name string) (string, bool) {
	for _, k := range keys {
		if strings.TrimSuffix(k, ".npy") == name {
			return k, true
		}
	}
	return "", false
}

// NPZWriter stores every pulse as its own archive in a directory. Pulses
// are numbered in the order they are written, one counter per kind.
type NPZWriter struct {
	dir  string
	mu   sync.Mutex
	next map[pulses.PulseKind]int
}

func NewNPZWriter(dir string) (*NPZWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &NPZWriter{dir: dir, next: make(map[pulses.PulseKind]int)}, nil
}

// WritePulse writes t and i; clipped pulses also get their position
// [start, end] in the source record.
func (w *NPZWriter) WritePulse(pa pulses.PulseAnalysis) error {
	w.mu.Lock()
	pulse := pa.Pulse
	pulse.Number = w.next[pulse.Kind]
	w.next[pulse.Kind]++
	w.mu.Unlock()

	filename := filepath.Join(w.dir, pulse.Filename()+".npz")
	f, err := npz.Create(filename)
	if err != nil {
		return &ErrOpenFile{Filename: filename, Err: err}
	}
	if err := f.Write("t", pulse.T); err != nil {
		f.Close()
		return err
	}
	if err := f.Write("i", pulse.I); err != nil {
		f.Close()
		return err
	}
	if pulse.Kind == pulses.KindClipped {
		position := []int64{int64(pulse.Range.Start), int64(pulse.Range.End)}
		if err := f.Write("position", position); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

// Written returns how many pulses of kind have been written.
func (w *NPZWriter) Written(kind pulses.PulseKind) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.next[kind]
}

func (w *NPZWriter) Close() error {
	return nil
}
