package h5

import (
	"errors"
	"fmt"

	hdf5 "github.com/jmbenlloch/go-hdf5"
	"gonum.org/v1/gonum/mat"

	"github.com/hvlab/pulse_go/pkg/archive"
)

// DataDataset is the (3, N) waveform dataset of an HDF5 record.
const DataDataset = "data"

// ReadChannels reads the waveform channels of an HDF5 record. It has the
// signature of archive.ChannelReader.
func ReadChannels(filename string) (archive.Channels, error) {
	file, err := hdf5.OpenFile(filename, hdf5.F_ACC_RDONLY)
	if err != nil {
		return archive.Channels{}, &ErrOpenFile{Filename: filename, Err: err}
	}
	defer file.Close()

	data, rows, cols, err := readMatrix(file, DataDataset)
	if err != nil {
		return archive.Channels{}, &ErrReadDataset{Filename: filename, Dataset: DataDataset, Err: err}
	}
	if len(data) == 0 {
		return archive.Channels{}, &ErrReadDataset{Filename: filename, Dataset: DataDataset, Err: errors.New("empty dataset")}
	}
	return archive.ChannelsFromMatrix(filename, mat.NewDense(rows, cols, data))
}

// ReadPulse reads the samples of a pulse written by Writer, e.g.
// ReadPulse(f, "impulse_0003").
func ReadPulse(filename, name string) ([]float64, []float64, error) {
	file, err := hdf5.OpenFile(filename, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	defer file.Close()

	read := func(channel string) ([]float64, error) {
		path := fmt.Sprintf("/Pulses/%s/%s", name, channel)
		data, _, _, err := readMatrix(file, path)
		if err != nil {
			return nil, &ErrReadDataset{Filename: filename, Dataset: path, Err: err}
		}
		return data, nil
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

// TableRows returns the number of rows of a table such as /Stats/pulses.
func TableRows(filename, path string) (int, error) {
	file, err := hdf5.OpenFile(filename, hdf5.F_ACC_RDONLY)
	if err != nil {
		return 0, &ErrOpenFile{Filename: filename, Err: err}
	}
	defer file.Close()

	dset, err := file.OpenDataset(path)
	if err != nil {
		return 0, &ErrReadDataset{Filename: filename, Dataset: path, Err: err}
	}
	defer dset.Close()
	space := dset.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return 0, &ErrReadDataset{Filename: filename, Dataset: path, Err: err}
	}
	if len(dims) != 1 {
		return 0, &ErrReadDataset{Filename: filename, Dataset: path, Err: fmt.Errorf("rank %d, want 1", len(dims))}
	}
	return int(dims[0]), nil
}

// readMatrix reads a one or two dimensional double dataset in row-major
// order. A one dimensional dataset is returned as a single row.
func readMatrix(file *hdf5.File, path string) ([]float64, int, int, error) {
	dset, err := file.OpenDataset(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer dset.Close()

	space := dset.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, 0, 0, err
	}

	var rows, cols int
	switch len(dims) {
	case 1:
		rows, cols = 1, int(dims[0])
	case 2:
		rows, cols = int(dims[0]), int(dims[1])
	default:
		return nil, 0, 0, fmt.Errorf("rank %d, want 1 or 2", len(dims))
	}
	data := make([]float64, rows*cols)
	if len(data) == 0 {
		return data, rows, cols, nil
	}
	if err := dset.Read(&data); err != nil {
		return nil, 0, 0, err
	}
	return data, rows, cols, nil
}
