package archive

import "fmt"

type ErrOpenFile struct {
	Filename string
	Err      error
}

func (e *ErrOpenFile) Error() string {
	return fmt.Sprintf("error opening file %s: %v", e.Filename, e.Err)
}

func (e *ErrOpenFile) Unwrap() error {
	return e.Err
}

type ErrMissingArray struct {
	Filename string
	Name     string
}

func (e *ErrMissingArray) Error() string {
	return fmt.Sprintf("array %q not found in %s", e.Name, e.Filename)
}

// ErrBadShape is returned when the waveform array is not made of three
// channels.
type ErrBadShape struct {
	Filename   string
	Rows, Cols int
}

func (e *ErrBadShape) Error() string {
	return fmt.Sprintf("array in %s has shape (%d, %d), want (3, N)", e.Filename, e.Rows, e.Cols)
}

type ErrUnsupportedFormat struct {
	Filename string
}

func (e *ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("unsupported archive format: %s", e.Filename)
}
