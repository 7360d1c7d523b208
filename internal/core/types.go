// Package core provides the conversion pipeline for GPS collar exports.
// This package has no UI dependencies and can be used by any frontend.
package core

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// HeaderIndex maps column names (lowercase, trimmed) to their position in a row.
type HeaderIndex map[string]int

// MakeHeaderIndex creates a HeaderIndex from a header row.
// Keys are lowercased for case-insensitive matching. When two columns clean to
// the same key the first one wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, exists := idx[key]; !exists {
			idx[key] = i
		}
	}
	return idx
}

// Table is a loaded source file: an ordered header plus the raw rows.
// Every row has exactly len(Columns) cells. A Table is read-only once the
// loader returns it.
type Table struct {
	Source    string     // File name or path the table was read from
	Columns   []string   // Header names, de-duplicated
	Rows      [][]string // Data rows, header excluded
	Delimiter rune       // Sniffed separator; 0 for spreadsheet sources
	BytesRead int64      // Raw bytes consumed (CSV sources only)

	indexOnce sync.Once
	index     HeaderIndex
}

// Index returns the case-insensitive header index, building it on first use.
func (t *Table) Index() HeaderIndex {
	t.indexOnce.Do(func() {
		t.index = MakeHeaderIndex(t.Columns)
	})
	return t.index
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// CanonicalRecord is one fix in the target schema.
//
// Time, Latitude and Longitude use Valid=false for values that could not be
// parsed. Such rows are kept, never dropped at parse time. Times are offset
// naive: wall clock values stored in time.UTC.
type CanonicalRecord struct {
	Serial    string
	Time      pgtype.Timestamp
	Latitude  pgtype.Float8
	Longitude pgtype.Float8
}

// ConvertOptions carries everything the pipeline needs besides the table.
type ConvertOptions struct {
	Mapping       FieldMapping
	TimeFormat    string // Empty selects permissive auto-detection
	Cutoffs       CutoffSpec
	FixDuplicates bool
}

// ConvertStats summarizes what each pipeline stage did.
type ConvertStats struct {
	RowsIn            int           `json:"rows_in"`
	RowsOut           int           `json:"rows_out"`
	InvalidTimes      int           `json:"invalid_times"`
	InvalidLatitudes  int           `json:"invalid_latitudes"`
	InvalidLongitudes int           `json:"invalid_longitudes"`
	DroppedGlobal     int           `json:"dropped_global"`
	DroppedPerSerial  int           `json:"dropped_per_serial"`
	Shifted           int           `json:"shifted"`          // Rows moved forward by the duplicate resolver
	ShiftCollisions   int           `json:"shift_collisions"` // Shifted rows that landed on an existing timestamp
	Duration          time.Duration `json:"duration_ns"`
}

// ConvertResult is the converted dataset plus its statistics.
// The pipeline owns Records; callers must not retain them across conversions.
type ConvertResult struct {
	Records []CanonicalRecord
	Stats   ConvertStats
}

// Serials returns the distinct serial numbers in the result, sorted.
func (r *ConvertResult) Serials() []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, rec := range r.Records {
		seen[rec.Serial] = struct{}{}
	}
	serials := make([]string, 0, len(seen))
	for s := range seen {
		serials = append(serials, s)
	}
	sort.Strings(serials)
	return serials
}
