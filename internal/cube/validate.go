package cube

import (
	"fmt"
	"io"
	"strings"
)

// Validate reports whether text passes the pre-flight structural checks:
// at least six lines, a numeric atom count on line 3, and enough lines for
// the declared atoms. It never panics.
func Validate(text string) bool {
	return Check(text) == nil
}

// Check is Validate with the reason for rejection as a *FormatError.
func Check(text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &FormatError{Line: -1, Field: "input", Err: fmt.Errorf("%v", r)}
		}
	}()

	lines := splitLines(text)
	if len(lines) < HeaderLines {
		return &FormatError{
			Line:     len(lines),
			Field:    "header",
			Expected: fmt.Sprintf("at least %d lines, found %d", HeaderLines, len(lines)),
			Err:      io.ErrUnexpectedEOF,
		}
	}

	fields := strings.Fields(lines[2])
	if len(fields) == 0 {
		return &FormatError{Line: 2, Field: "atom count", Expected: "integer"}
	}
	n, err := parseInt(fields[0])
	if err != nil {
		return &FormatError{Line: 2, Field: "atom count", Expected: "integer", Err: err}
	}

	if len(lines) < HeaderLines+abs(n) {
		return &FormatError{
			Line:     len(lines),
			Field:    "atom records",
			Expected: fmt.Sprintf("%d atom lines, found %d", abs(n), len(lines)-HeaderLines),
			Err:      io.ErrUnexpectedEOF,
		}
	}
	return nil
}
