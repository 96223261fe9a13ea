package pulses

import "fmt"

// ErrConfig represents an invalid analysis parameter.
type ErrConfig struct {
	Param  string
	Value  any
	Reason string
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Param, e.Value, e.Reason)
}

// ErrMalformedRecord represents a waveform record that breaks the record invariants.
type ErrMalformedRecord struct {
	Reason string
	Index  int
}

func (e *ErrMalformedRecord) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("malformed record at sample %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("malformed record: %s", e.Reason)
}

// ErrFitDidNotConverge is returned when the optimizer runs out of iterations.
// Last holds the estimate reached when the budget was exhausted.
type ErrFitDidNotConverge struct {
	Method     FitMethod
	Iterations int
	Last       ModelParameters
	Err        error
}

func (e *ErrFitDidNotConverge) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s fit did not converge after %d iterations: %v", e.Method, e.Iterations, e.Err)
	}
	return fmt.Sprintf("%s fit did not converge after %d iterations", e.Method, e.Iterations)
}

func (e *ErrFitDidNotConverge) Unwrap() error {
	return e.Err
}

func configError(param string, value any, reason string) error {
	return &ErrConfig{Param: param, Value: value, Reason: reason}
}
