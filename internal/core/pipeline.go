package core

import (
	"context"
	"log/slog"
	"time"
)

// Convert runs the full pipeline over a loaded table:
//
//  1. resolve the field mapping against the header
//  2. parse serials, times and coordinates (bad cells become absent)
//  3. apply the global start, then per-serial starts
//  4. optionally shift duplicate (serial, time) rows apart
//  5. sort by (serial, time)
//
// The table is not modified. Configuration errors (*MappingError,
// *DateFormatError for a bad format) are returned before any row is touched.
func Convert(ctx context.Context, t *Table, opts ConvertOptions) (*ConvertResult, error) {
	start := time.Now()

	cols, err := opts.Mapping.Resolve(t)
	if err != nil {
		return nil, err
	}

	parser, err := NewTimeParser(opts.TimeFormat)
	if err != nil {
		return nil, err
	}

	stats := ConvertStats{RowsIn: t.Len()}

	records, err := buildRecords(ctx, t, cols, parser, &stats)
	if err != nil {
		return nil, err
	}

	records, fstats := ApplyCutoffs(records, opts.Cutoffs)
	stats.DroppedGlobal = fstats.DroppedGlobal
	stats.DroppedPerSerial = fstats.DroppedPerSerial

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.FixDuplicates {
		dstats := ResolveDuplicates(records)
		stats.Shifted = dstats.Shifted
		stats.ShiftCollisions = dstats.Collisions
		if dstats.Collisions > 0 {
			slog.WarnContext(ctx, "shifted timestamps collide with existing fixes",
				"source", t.Source,
				"collisions", dstats.Collisions,
			)
		}
	}

	SortCanonical(records)

	stats.RowsOut = len(records)
	stats.Duration = time.Since(start)

	slog.InfoContext(ctx, "conversion complete",
		"source", t.Source,
		"rows_in", stats.RowsIn,
		"rows_out", stats.RowsOut,
		"invalid_times", stats.InvalidTimes,
		"dropped_global", stats.DroppedGlobal,
		"dropped_per_serial", stats.DroppedPerSerial,
		"shifted", stats.Shifted,
		"duration", stats.Duration,
	)

	return &ConvertResult{Records: records, Stats: stats}, nil
}
