package core

// convert.go turns raw source cells into canonical field values.
//
// Cells come from hand-edited spreadsheets and vendor portals, so they may
// carry Excel formula prefixes (="123"), stray quotes or padding. Values that
// still fail to parse become Valid=false instead of an error: a bad cell never
// drops its row.

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// CleanCell removes common CSV artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// ParseCoordinate converts a cell to a decimal-degree value.
// Empty, non-numeric, NaN and infinite input yield Valid=false. No range check
// is applied; out-of-range degrees pass through unchanged.
func ParseCoordinate(s string) pgtype.Float8 {
	s = CleanCell(s)
	if s == "" || !numericRegex.MatchString(s) {
		return pgtype.Float8{Valid: false}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return pgtype.Float8{Valid: false}
	}
	return pgtype.Float8{Float64: f, Valid: true}
}

// ParseSerial normalizes a serial number cell. Serials are opaque labels:
// only surrounding whitespace is removed.
func ParseSerial(s string) string {
	return strings.TrimSpace(s)
}

// buildRecords projects every table row onto the canonical schema.
// Output has one record per input row, in input order.
func buildRecords(ctx context.Context, t *Table, cols resolvedColumns, parser *TimeParser, stats *ConvertStats) ([]CanonicalRecord, error) {
	records := make([]CanonicalRecord, len(t.Rows))

	for i, row := range t.Rows {
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		rec := CanonicalRecord{
			Serial:    ParseSerial(row[cols.Serial]),
			Time:      parser.Parse(row[cols.Time]),
			Latitude:  ParseCoordinate(row[cols.Latitude]),
			Longitude: ParseCoordinate(row[cols.Longitude]),
		}

		if !rec.Time.Valid {
			stats.InvalidTimes++
		}
		if !rec.Latitude.Valid {
			stats.InvalidLatitudes++
		}
		if !rec.Longitude.Valid {
			stats.InvalidLongitudes++
		}
		records[i] = rec
	}

	return records, nil
}
