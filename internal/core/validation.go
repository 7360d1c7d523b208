package core

// validation.go reports source cells that will come out empty after
// conversion, so a user can fix the mapping or time format before
// exporting.
//
// A row is never rejected: conversion keeps it with absent fields. The
// validator only explains which cells were absent and why, with row
// numbers counted from the first data row.

import (
	"context"
	"fmt"
)

// DefaultValidationSamples is how many problem cells a report lists.
const DefaultValidationSamples = 50

// ValidationError describes one cell that did not yield a value.
type ValidationError struct {
	Row     int    `json:"row"`   // 1-based data row
	Field   string `json:"field"` // Role name, e.g. "timestamp"
	Column  string `json:"column"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("row %d: %s (%s): %s", e.Row, e.Field, e.Column, e.Message)
}

// ValidationResult is the outcome for one row.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// RowValidator checks rows against a resolved mapping and time parser.
type RowValidator struct {
	mapping FieldMapping
	cols    resolvedColumns
	parser  *TimeParser
}

// NewRowValidator resolves m against t and compiles format. It fails with
// the same configuration errors Convert would.
func NewRowValidator(t *Table, m FieldMapping, format string) (*RowValidator, error) {
	cols, err := m.Resolve(t)
	if err != nil {
		return nil, err
	}
	parser, err := NewTimeParser(format)
	if err != nil {
		return nil, err
	}
	return &RowValidator{mapping: m, cols: cols, parser: parser}, nil
}

// ValidateRow returns every problem in row. rowNum is used in the errors.
func (v *RowValidator) ValidateRow(rowNum int, row []string) ValidationResult {
	result := ValidationResult{Valid: true}
	fail := func(role Role, value, msg string) {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Row:     rowNum,
			Field:   role.String(),
			Column:  v.mapping.Column(role),
			Value:   value,
			Message: msg,
		})
	}

	if raw := row[v.cols.Serial]; ParseSerial(raw) == "" {
		fail(RoleSerial, raw, "empty")
	}

	if raw := row[v.cols.Time]; !v.parser.Parse(raw).Valid {
		if CleanCell(raw) == "" {
			fail(RoleTime, raw, "empty")
		} else if v.parser.Format() != "" {
			fail(RoleTime, raw, fmt.Sprintf("does not match format %q", v.parser.Format()))
		} else {
			fail(RoleTime, raw, "not a recognized date/time")
		}
	}

	for _, c := range []struct {
		role Role
		pos  int
	}{{RoleLatitude, v.cols.Latitude}, {RoleLongitude, v.cols.Longitude}} {
		raw := row[c.pos]
		if ParseCoordinate(raw).Valid {
			continue
		}
		if CleanCell(raw) == "" {
			fail(c.role, raw, "empty")
		} else {
			fail(c.role, raw, "not a number")
		}
	}

	return result
}

// ValidationReport summarizes the problems in a table.
type ValidationReport struct {
	RowsChecked   int               `json:"rows_checked"`
	RowsWithIssue int               `json:"rows_with_issues"`
	ByField       map[string]int    `json:"by_field"`
	Samples       []ValidationError `json:"samples"`
}

// Valid reports whether every row converts without absent fields.
func (r *ValidationReport) Valid() bool {
	return r.RowsWithIssue == 0
}

// ValidateTable checks every row of t and keeps up to samples errors.
func ValidateTable(ctx context.Context, t *Table, m FieldMapping, format string, samples int) (*ValidationReport, error) {
	if samples <= 0 {
		samples = DefaultValidationSamples
	}
	v, err := NewRowValidator(t, m, format)
	if err != nil {
		return nil, err
	}

	report := &ValidationReport{
		RowsChecked: t.Len(),
		ByField:     make(map[string]int),
		Samples:     []ValidationError{},
	}
	for i, row := range t.Rows {
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		res := v.ValidateRow(i+1, row)
		if res.Valid {
			continue
		}
		report.RowsWithIssue++
		for _, e := range res.Errors {
			report.ByField[e.Field]++
			if len(report.Samples) < samples {
				report.Samples = append(report.Samples, e)
			}
		}
	}
	return report, nil
}

// Validate checks the session's table against m and format.
func (s *Session) Validate(ctx context.Context, m FieldMapping, format string, samples int) (*ValidationReport, error) {
	t := s.Table()
	if t == nil {
		return nil, ErrNoData
	}
	return ValidateTable(ctx, t, m, format, samples)
}
