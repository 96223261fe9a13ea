package pulses

// Window is a contiguous view into a record. T, V and I alias the record's
// arrays. Start and End are the absolute bounds of the view; CoreStart and
// CoreEnd bound the non-overlapping part owned by this window.
type Window struct {
	Index     int
	Start     int
	End       int
	CoreStart int
	CoreEnd   int
	T         []float64
	V         []float64
	I         []float64
}

func (w Window) Len() int {
	return w.End - w.Start
}

// Core returns the owned region relative to the window start.
func (w Window) Core() IndexRange {
	return IndexRange{Start: w.CoreStart - w.Start, End: w.CoreEnd - w.Start}
}

// Split cuts record into windows of batchSize samples extended by overlap
// samples on each side. The cursor advances by batchSize, so there are
// ceil(len/batchSize) windows.
func Split(record WaveformRecord, batchSize, overlap int) ([]Window, error) {
	if batchSize <= 0 {
		return nil, configError("batch_size", batchSize, "must be positive")
	}
	if overlap < 0 {
		return nil, configError("overlap", overlap, "must not be negative")
	}
	n := record.Len()
	windows := make([]Window, 0, (n+batchSize-1)/batchSize)
	for cursor := 0; cursor < n; cursor += batchSize {
		start := max(cursor-overlap, 0)
		end := min(cursor+batchSize+overlap, n)
		windows = append(windows, Window{
			Index:     len(windows),
			Start:     start,
			End:       end,
			CoreStart: cursor,
			CoreEnd:   min(cursor+batchSize, n),
			T:         record.T[start:end],
			V:         record.V[start:end],
			I:         record.I[start:end],
		})
	}
	return windows, nil
}
