package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel causes wrapped by the typed errors below.
var (
	ErrEmptyFile       = errors.New("empty file: no header row found")
	ErrNoData          = errors.New("no data loaded: load a source file first")
	ErrNothingToExport = errors.New("nothing to export: convert data first")
	ErrSessionNotFound = errors.New("session not found")
	ErrCutoffInput     = errors.New("cutoff requires a serial number and a start date")
)

// LoadError reports a source file that could not be read or decoded.
// No partial table is returned alongside it.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// MappingError reports canonical roles without a usable source column.
type MappingError struct {
	Missing []Role   // Roles with no column assigned
	Unknown []string // Assigned columns that are not in the table
}

func (e *MappingError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		names := make([]string, len(e.Missing))
		for i, r := range e.Missing {
			names[i] = r.String()
		}
		parts = append(parts, "missing column mapping for "+strings.Join(names, ", "))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "mapped column not found: "+strings.Join(e.Unknown, ", "))
	}
	return strings.Join(parts, "; ")
}

// DateFormatError reports a cutoff or format string the parser does not accept.
type DateFormatError struct {
	Field string // What was being parsed, e.g. "global start"
	Input string
	Hint  string
}

func (e *DateFormatError) Error() string {
	hint := e.Hint
	if hint == "" {
		hint = "use YYYY-MM-DD or YYYY-MM-DD HH:MM:SS"
	}
	return fmt.Sprintf("invalid date for %s: %q (%s)", e.Field, e.Input, hint)
}

// ExportError reports a destination that could not be written.
// The destination is left untouched when this is returned.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
