package cube

import "fmt"

// FormatError reports a structural problem in cube text.
// Line is 0-based; -1 means the problem is not tied to a single line.
type FormatError struct {
	Line     int
	Field    string
	Expected string
	Err      error
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	msg := fmt.Sprintf("cube format: %s", e.Field)
	if e.Line >= 0 {
		msg = fmt.Sprintf("cube format: line %d: %s", e.Line+1, e.Field)
	}
	if e.Expected != "" {
		msg += fmt.Sprintf(" (expected %s)", e.Expected)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying parse error, if any.
func (e *FormatError) Unwrap() error { return e.Err }

// PartialDataWarning reports a voxel section shorter than the grid requires.
type PartialDataWarning struct {
	Want int
	Got  int
}

// Error implements the error interface.
func (w *PartialDataWarning) Error() string {
	return fmt.Sprintf("cube voxels: got %d of %d values", w.Got, w.Want)
}
