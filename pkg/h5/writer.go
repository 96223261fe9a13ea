package h5

import (
	"errors"
	"fmt"
	"sync"

	hdf5 "github.com/jmbenlloch/go-hdf5"

	pulses "github.com/hvlab/pulse_go/pkg"
)

// Writer stores pulses, their statistics and fits in one HDF5 file:
//
//	/Pulses/<name>/{t,i}   samples of every pulse, <name> as in Pulse.Filename
//	/Pulses/index          number, kind, range and source of every pulse
//	/Stats/pulses          one PulseStats row per pulse
//	/Fits/pulses           one row per attempted fit
//
// Pulses are renumbered in write order, one counter per kind.
type Writer struct {
	File        *hdf5.File
	Filename    string
	PulsesGroup *hdf5.Group
	StatsGroup  *hdf5.Group
	FitsGroup   *hdf5.Group
	IndexTable  *hdf5.Dataset
	StatsTable  *hdf5.Dataset
	FitsTable   *hdf5.Dataset
	PulseCount  int
	FitCount    int

	mu   sync.Mutex
	next map[pulses.PulseKind]int
}

func NewWriter(filename string, compressionLevel int) (*Writer, error) {
	hdf5.SetStringLength(STRLEN)

	file, err := hdf5.CreateFile(filename, hdf5.F_ACC_TRUNC)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	w := &Writer{
		File:     file,
		Filename: filename,
		next:     make(map[pulses.PulseKind]int),
	}
	if err := w.createLayout(compressionLevel); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) createLayout(compressionLevel int) error {
	var err error
	if w.PulsesGroup, err = createGroup(w.File, "Pulses"); err != nil {
		return err
	}
	if w.StatsGroup, err = createGroup(w.File, "Stats"); err != nil {
		return err
	}
	if w.FitsGroup, err = createGroup(w.File, "Fits"); err != nil {
		return err
	}
	if w.IndexTable, err = createTable(w.PulsesGroup, "index", PulseIndexHDF5{}, compressionLevel); err != nil {
		return err
	}
	if w.StatsTable, err = createTable(w.StatsGroup, "pulses", PulseStatsHDF5{}, compressionLevel); err != nil {
		return err
	}
	if w.FitsTable, err = createTable(w.FitsGroup, "pulses", FitHDF5{}, compressionLevel); err != nil {
		return err
	}
	return nil
}

// WritePulse appends one analysed pulse. It is safe for concurrent use.
// A pulse whose rows cannot all be written leaves no row behind, so row n
// of the index and stats tables always describe the same pulse. Its
// number is still used up once its samples group exists.
func (w *Writer) WritePulse(pa pulses.PulseAnalysis) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	pa.Pulse.Number = w.next[pa.Pulse.Kind]
	pa.Stats.Number = pa.Pulse.Number
	name := pa.Pulse.Filename()

	group, err := w.PulsesGroup.CreateGroup(name)
	if err != nil {
		return &ErrCreateGroup{GroupName: name, Err: err}
	}
	defer group.Close()
	w.next[pa.Pulse.Kind]++
	if err := writeArray(group, "t", pa.Pulse.T); err != nil {
		return err
	}
	if err := writeArray(group, "i", pa.Pulse.I); err != nil {
		return err
	}

	if err := writeEntryToTable(w.IndexTable, pulseIndexRow(pa.Pulse), w.PulseCount); err != nil {
		return w.rollback(fmt.Errorf("writing index of %s: %w", name, err))
	}
	if err := writeEntryToTable(w.StatsTable, pulseStatsRow(pa.Pulse.Source, pa.Stats), w.PulseCount); err != nil {
		return w.rollback(fmt.Errorf("writing stats of %s: %w", name, err))
	}
	if row, ok := fitRow(pa); ok {
		if err := writeEntryToTable(w.FitsTable, row, w.FitCount); err != nil {
			return w.rollback(fmt.Errorf("writing fit of %s: %w", name, err))
		}
		w.FitCount++
	}

	w.PulseCount++
	return nil
}

// rollback shrinks the tables back to the rows already committed.
func (w *Writer) rollback(cause error) error {
	errs := []error{cause}
	for _, t := range []struct {
		dataset *hdf5.Dataset
		rows    int
	}{
		{w.IndexTable, w.PulseCount},
		{w.StatsTable, w.PulseCount},
		{w.FitsTable, w.FitCount},
	} {
		if err := t.dataset.Resize([]uint{uint(t.rows)}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *Writer) Close() error {
	for _, d := range []*hdf5.Dataset{w.IndexTable, w.StatsTable, w.FitsTable} {
		if d != nil {
			d.Close()
		}
	}
	for _, g := range []*hdf5.Group{w.PulsesGroup, w.StatsGroup, w.FitsGroup} {
		if g != nil {
			g.Close()
		}
	}
	return w.File.Close()
}
