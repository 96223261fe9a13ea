package archive

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio/npz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	pulses "github.com/hvlab/pulse_go/pkg"
)

// writeWaveform stores a (3, n) waveform whose raw current is 50 times the
// sample index in milliamperes.
func writeWaveform(t *testing.T, filename string, n int) {
	t.Helper()
	data := mat.NewDense(3, n, nil)
	for k := 0; k < n; k++ {
		data.Set(0, k, float64(k)*1e-9)
		data.Set(1, k, 1000)
		data.Set(2, k, 50*float64(k)*1e-3)
	}
	f, err := npz.Create(filename)
	require.NoError(t, err)
	require.NoError(t, f.Write(DataKey, data))
	require.NoError(t, f.Close())
}

func TestReadNPZ(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "run.npz")
	writeWaveform(t, filename, 8)

	ch, err := ReadNPZ(filename)
	require.NoError(t, err)
	require.Len(t, ch.T, 8)
	assert.InDelta(t, 7e-9, ch.T[7], 1e-21)
	assert.Equal(t, 1000.0, ch.V[3])
	assert.InDelta(t, 0.15, ch.RawCurrent[3], 1e-15)
}

func TestReadNPZErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadNPZ(filepath.Join(dir, "missing.npz"))
	var openErr *ErrOpenFile
	assert.True(t, errors.As(err, &openErr))

	other := filepath.Join(dir, "other.npz")
	f, err := npz.Create(other)
	require.NoError(t, err)
	require.NoError(t, f.Write("samples", []float64{1, 2, 3}))
	require.NoError(t, f.Close())
	_, err = ReadNPZ(other)
	var missing *ErrMissingArray
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, DataKey, missing.Name)
}

func TestChannelsFromMatrix(t *testing.T) {
	columns := mat.NewDense(4, 3, []float64{
		0, 10, 100,
		1, 11, 101,
		2, 12, 102,
		3, 13, 103,
	})
	ch, err := ChannelsFromMatrix("columns", columns)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3}, ch.T)
	assert.Equal(t, []float64{100, 101, 102, 103}, ch.RawCurrent)

	_, err = ChannelsFromMatrix("bad", mat.NewDense(2, 5, nil))
	var shape *ErrBadShape
	require.True(t, errors.As(err, &shape))
	assert.Equal(t, 2, shape.Rows)
}

func TestParseFilename(t *testing.T) {
	meta, ok := ParseFilename("/data/discharge_47Ohm_1500V_30kHz_run3.npz")
	require.True(t, ok)
	assert.Equal(t, RunMetadata{ResistanceOhm: 47, VoltageV: 1500, FrequencyKHz: 30}, meta)

	_, ok = ParseFilename("/data/discharge.npz")
	assert.False(t, ok)
}

func TestLoaderScalesByShunt(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.npz")
	named := filepath.Join(dir, "run_25Ohm_1000V_30kHz.npz")
	writeWaveform(t, plain, 5)
	writeWaveform(t, named, 5)

	loader := NewLoader(50, true)
	record, err := loader.Load(plain)
	require.NoError(t, err)
	assert.InDelta(t, 0.004, record.I[4], 1e-15)

	record, err = loader.Load(named)
	require.NoError(t, err)
	assert.InDelta(t, 0.008, record.I[4], 1e-15, "the resistance in the name wins")

	loader.ShuntFromFilename = false
	assert.Equal(t, 50.0, loader.Shunt(named))

	_, err = loader.Load(filepath.Join(dir, "run.csv"))
	var unsupported *ErrUnsupportedFormat
	assert.True(t, errors.As(err, &unsupported))
}

func TestLoaderRegister(t *testing.T) {
	loader := NewLoader(50, false)
	loader.Register(".H5", func(string) (Channels, error) {
		return Channels{T: []float64{0, 1}, V: []float64{0, 0}, RawCurrent: []float64{100, 50}}, nil
	})
	assert.Equal(t, []string{".h5", ".npz"}, loader.Extensions())

	record, err := loader.Load("run.h5")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1}, record.I)

	loader.Register(".h5", func(string) (Channels, error) {
		return Channels{T: []float64{1, 0}, V: []float64{0, 0}, RawCurrent: []float64{0, 0}}, nil
	})
	_, err = loader.Load("run.h5")
	var malformed *pulses.ErrMalformedRecord
	assert.True(t, errors.As(err, &malformed))
}

func TestFindRecords(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.npz", "a.NPZ", "c.h5", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.npz"), 0o755))

	paths, err := FindRecords(dir, []string{".npz", ".h5"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.NPZ"),
		filepath.Join(dir, "b.npz"),
		filepath.Join(dir, "c.h5"),
	}, paths)

	_, err = FindRecords(filepath.Join(dir, "missing"), []string{".npz"})
	assert.Error(t, err)
}

func TestNPZWriterNumbersPulses(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "saved_impulses")
	w, err := NewNPZWriter(dir)
	require.NoError(t, err)

	pulse := func(kind pulses.PulseKind, start int) pulses.PulseAnalysis {
		return pulses.PulseAnalysis{Pulse: pulses.Pulse{
			Number: 99,
			Kind:   kind,
			Range:  pulses.IndexRange{Start: start, End: start + 3},
			T:      []float64{0, 1e-9, 2e-9},
			I:      []float64{0.001, 0.02, 0.001},
		}}
	}
	require.NoError(t, w.WritePulse(pulse(pulses.KindPulse, 10)))
	require.NoError(t, w.WritePulse(pulse(pulses.KindPulse, 40)))
	require.NoError(t, w.WritePulse(pulse(pulses.KindClipped, 70)))
	require.NoError(t, w.Close())
	assert.Equal(t, 2, w.Written(pulses.KindPulse))
	assert.Equal(t, 1, w.Written(pulses.KindClipped))

	for _, name := range []string{"impulse_0000.npz", "impulse_0001.npz", "clipped_impulse_0000.npz"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	ts, is, err := ReadPulseNPZ(filepath.Join(dir, "impulse_0001.npz"))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1e-9, 2e-9}, ts)
	assert.Equal(t, []float64{0.001, 0.02, 0.001}, is)

	r, err := npz.Open(filepath.Join(dir, "clipped_impulse_0000.npz"))
	require.NoError(t, err)
	defer r.Close()
	var position []int64
	require.NoError(t, r.Read("position", &position))
	assert.Equal(t, []int64{70, 73}, position)
}
