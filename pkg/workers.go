package pulses

import (
	"errors"
	"fmt"
)

// RecordLoader reads one waveform record from a file.
type RecordLoader interface {
	Load(path string) (WaveformRecord, error)
}

// LoaderFunc adapts a function to RecordLoader.
type LoaderFunc func(path string) (WaveformRecord, error)

func (f LoaderFunc) Load(path string) (WaveformRecord, error) {
	return f(path)
}

// FileResult is the outcome of one file. Err is set when the file could not
// be loaded or analysed; a worker panic is reported the same way.
type FileResult struct {
	Path     string
	Analysis RecordAnalysis
	Limits   Limits
	Err      error
}

type job struct {
	index int
	path  string
}

type jobResult struct {
	index  int
	result FileResult
}

// AnalyzeFiles analyses every file with numWorkers workers. Results are
// returned in the order of paths. globalMax is shared read-only by the
// workers.
func AnalyzeFiles(paths []string, loader RecordLoader, cfg Configuration, globalMax float64) []FileResult {
	return runWorkers(paths, cfg.NumWorkers, func(path string) FileResult {
		record, err := loader.Load(path)
		if err != nil {
			return FileResult{Path: path, Err: err}
		}
		analysis, err := AnalyzeRecord(record, path, cfg, globalMax)
		return FileResult{Path: path, Analysis: analysis, Err: err}
	})
}

// ComputeLimitsFiles reduces the current limits of every file in parallel.
// Files that fail to load are logged and skipped; an error is returned only
// when no file could be read.
func ComputeLimitsFiles(paths []string, loader RecordLoader, margin float64, numWorkers int) (Limits, error) {
	if !(margin > 0) {
		return Limits{}, configError("limits_margin", margin, "must be positive")
	}
	results := runWorkers(paths, numWorkers, func(path string) FileResult {
		record, err := loader.Load(path)
		if err != nil {
			return FileResult{Path: path, Err: err}
		}
		if record.Len() == 0 {
			return FileResult{Path: path, Err: &ErrMalformedRecord{Reason: "empty record", Index: -1}}
		}
		return FileResult{Path: path, Limits: RecordLimits(record.I, margin)}
	})

	var (
		parts []Limits
		errs  []error
	)
	for _, r := range results {
		if r.Err != nil {
			logger.Error(fmt.Sprintf("skipping %s: %v", r.Path, r.Err))
			errs = append(errs, fmt.Errorf("%s: %w", r.Path, r.Err))
			continue
		}
		parts = append(parts, r.Limits)
	}
	if len(parts) == 0 {
		if len(errs) == 0 {
			return Limits{}, errors.New("no files to compute limits from")
		}
		return Limits{}, errors.Join(errs...)
	}
	return MergeLimits(parts...), nil
}

func runWorkers(paths []string, numWorkers int, process func(path string) FileResult) []FileResult {
	numWorkers = clamp(numWorkers, 1, max(len(paths), 1))
	jobs := make(chan job, len(paths))
	results := make(chan jobResult, len(paths))

	for w := 1; w <= numWorkers; w++ {
		go worker(w, jobs, results, process)
	}
	for k, path := range paths {
		jobs <- job{index: k, path: path}
	}
	close(jobs)

	ordered := make([]FileResult, len(paths))
	for range paths {
		r := <-results
		ordered[r.index] = r.result
	}
	return ordered
}

func worker(id int, jobs <-chan job, results chan<- jobResult, process func(path string) FileResult) {
	for j := range jobs {
		results <- jobResult{index: j.index, result: processSafely(id, j.path, process)}
	}
}

func processSafely(id int, path string, process func(path string) FileResult) (result FileResult) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("worker %d recovered from panic on %s: %v", id, path, r)
			logger.Error(err.Error())
			result = FileResult{Path: path, Err: err}
		}
	}()
	logger.Info(fmt.Sprintf("Worker %d processing %s", id, path), "workers")
	return process(path)
}
