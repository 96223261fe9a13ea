package h5

import (
	"errors"
	"math"

	"github.com/jmbenlloch/go-hdf5"

	pulses "github.com/hvlab/pulse_go/pkg"
)

type PulseIndexHDF5 struct {
	number int32
	kind   [STRLEN]byte
	start  int64
	end    int64
	source [STRLEN]byte
}

type PulseStatsHDF5 struct {
	number         int32
	kind           [STRLEN]byte
	source         [STRLEN]byte
	start_idx      int64
	end_idx        int64
	duration       float64
	max_amplitude  float64
	peak_abs       float64
	charge         float64
	saturated      int8
	rise_time      float64
	fall_time      float64
	clipped_points int32
}

type FitHDF5 struct {
	number     int32
	source     [STRLEN]byte
	method     [STRLEN]byte
	a          float64
	k          float64
	lambda     float64
	t_peak     float64
	sse        float64
	iterations int32
	converged  int8
}

const STRLEN = 128

// chunkRows is the chunk length of the growing tables.
const chunkRows = 4096

func convertToHdf5String(s string) [STRLEN]byte {
	var byteArray [STRLEN]byte
	copy(byteArray[:], s)
	return byteArray
}

// optionalFloat stores an absent value as NaN.
func optionalFloat(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func boolToInt8(b bool) int8 {
	if b {
		return 1
	}
	return 0
}

func createGroup(file *hdf5.File, groupName string) (*hdf5.Group, error) {
	g, err := file.CreateGroup(groupName)
	if err != nil {
		return nil, &ErrCreateGroup{GroupName: groupName, Err: err}
	}
	return g, nil
}

func createTable(group *hdf5.Group, name string, datatype interface{}, compressionLevel int) (*hdf5.Dataset, error) {
	dims := []uint{0}
	unlimitedDims := -1 // H5S_UNLIMITED is -1L
	maxDims := []uint{uint(unlimitedDims)}
	fileSpace, err := hdf5.CreateSimpleDataspace(dims, maxDims)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer fileSpace.Close()

	plist, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer plist.Close()
	if err := plist.SetChunk([]uint{chunkRows}); err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	if err := plist.SetDeflate(compressionLevel); err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}

	dtype, err := hdf5.NewDatatypeFromValue(datatype)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}

	dset, err := group.CreateDatasetWith(name, dtype, fileSpace, plist)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	return dset, nil
}

// writeArray stores a one-dimensional float array.
func writeArray(group *hdf5.Group, name string, data []float64) error {
	space, err := hdf5.CreateSimpleDataspace([]uint{uint(len(data))}, nil)
	if err != nil {
		return &ErrCreateTable{TableName: name, Err: err}
	}
	defer space.Close()

	dset, err := group.CreateDataset(name, hdf5.T_NATIVE_DOUBLE, space)
	if err != nil {
		return &ErrCreateTable{TableName: name, Err: err}
	}
	defer dset.Close()
	return dset.Write(&data)
}

func writeEntryToTable[T any](dataset *hdf5.Dataset, data T, rowCounter int) error {
	array := []T{data}
	return writeArrayToTable(dataset, &array, rowCounter)
}

func writeArrayToTable[T any](dataset *hdf5.Dataset, data *[]T, rowCounter int) error {
	length := uint(len(*data))
	dataspace, err := hdf5.CreateSimpleDataspace([]uint{length}, nil)
	if err != nil {
		return err
	}
	defer dataspace.Close()

	// extend
	rowsInFile := uint(rowCounter)
	if err := dataset.Resize([]uint{rowsInFile + length}); err != nil {
		return err
	}
	filespace := dataset.Space()
	defer filespace.Close()

	if err := filespace.SelectHyperslab([]uint{rowsInFile}, nil, []uint{length}, nil); err != nil {
		return err
	}
	return dataset.WriteSubset(data, dataspace, filespace)
}

func pulseIndexRow(p pulses.Pulse) PulseIndexHDF5 {
	return PulseIndexHDF5{
		number: int32(p.Number),
		kind:   convertToHdf5String(string(p.Kind)),
		start:  int64(p.Range.Start),
		end:    int64(p.Range.End),
		source: convertToHdf5String(p.Source),
	}
}

func pulseStatsRow(source string, s pulses.PulseStats) PulseStatsHDF5 {
	return PulseStatsHDF5{
		number:         int32(s.Number),
		kind:           convertToHdf5String(string(s.Kind)),
		source:         convertToHdf5String(source),
		start_idx:      int64(s.StartIdx),
		end_idx:        int64(s.EndIdx),
		duration:       s.DurationS,
		max_amplitude:  s.MaxAmplitudeA,
		peak_abs:       s.PeakAbsA,
		charge:         s.ChargeC,
		saturated:      boolToInt8(s.IsSaturated),
		rise_time:      optionalFloat(s.RiseTimeS),
		fall_time:      optionalFloat(s.FallTimeS),
		clipped_points: int32(s.ClippedPointCount),
	}
}

// fitRow describes a fit outcome. A fit that ran out of iterations is stored
// with converged=0 and its last estimate.
func fitRow(pa pulses.PulseAnalysis) (FitHDF5, bool) {
	row := FitHDF5{
		number: int32(pa.Pulse.Number),
		source: convertToHdf5String(pa.Pulse.Source),
	}
	var params pulses.ModelParameters
	switch {
	case pa.Fit != nil:
		params = pa.Fit.Params
		row.method = convertToHdf5String(string(pa.Fit.Method))
		row.sse = pa.Fit.SSE
		row.iterations = int32(pa.Fit.Iterations)
		row.converged = 1
	case pa.FitErr != nil:
		var notConverged *pulses.ErrFitDidNotConverge
		if !errors.As(pa.FitErr, &notConverged) {
			return row, false
		}
		params = notConverged.Last
		row.method = convertToHdf5String(string(notConverged.Method))
		row.sse = math.NaN()
		row.iterations = int32(notConverged.Iterations)
	default:
		return row, false
	}
	row.a = params.A
	row.k = params.K
	row.lambda = params.Lambda
	row.t_peak = params.TPeak
	return row, true
}
