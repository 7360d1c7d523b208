package core

import (
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// DuplicateStats describes what ResolveDuplicates changed.
type DuplicateStats struct {
	Groups     int // (serial, time) keys that had more than one row
	Shifted    int // Rows whose time was moved forward
	Collisions int // Shifted rows that landed on a time already used by the serial
}

// ResolveDuplicates makes times unique within each serial.
//
// Rows are stably sorted by (serial, time, latitude, longitude) with absent
// values last. In every run of rows sharing serial and time, the k-th row
// (0-based) is moved forward by k seconds. Rows without a valid time are left
// alone. A shifted time can coincide with a later original time of the same
// serial; such collisions are counted, not repaired.
func ResolveDuplicates(rows []CanonicalRecord) DuplicateStats {
	var stats DuplicateStats

	sort.SliceStable(rows, func(i, j int) bool {
		return compareDedup(rows[i], rows[j]) < 0
	})

	type instant struct {
		serial string
		nanos  int64
	}
	original := make(map[instant]struct{}, len(rows))
	for _, r := range rows {
		if r.Time.Valid {
			original[instant{r.Serial, r.Time.Time.UnixNano()}] = struct{}{}
		}
	}

	for i := 0; i < len(rows); {
		j := i + 1
		if !rows[i].Time.Valid {
			i = j
			continue
		}

		base := rows[i].Time.Time
		for j < len(rows) && rows[j].Serial == rows[i].Serial && rows[j].Time.Valid && rows[j].Time.Time.Equal(base) {
			j++
		}

		if j-i > 1 {
			stats.Groups++
			for k := i + 1; k < j; k++ {
				shifted := base.Add(time.Duration(k-i) * time.Second)
				rows[k].Time = pgtype.Timestamp{Time: shifted, Valid: true}
				stats.Shifted++
				if _, clash := original[instant{rows[k].Serial, shifted.UnixNano()}]; clash {
					stats.Collisions++
				}
			}
		}
		i = j
	}

	return stats
}

// compareDedup orders by serial, time, latitude, longitude; absent last.
func compareDedup(a, b CanonicalRecord) int {
	if c := compareCanonical(a, b); c != 0 {
		return c
	}
	if c := compareFloat(a.Latitude, b.Latitude); c != 0 {
		return c
	}
	return compareFloat(a.Longitude, b.Longitude)
}

// compareCanonical orders by serial then time, absent times last.
func compareCanonical(a, b CanonicalRecord) int {
	switch {
	case a.Serial < b.Serial:
		return -1
	case a.Serial > b.Serial:
		return 1
	}
	return compareTime(a.Time, b.Time)
}

func compareTime(a, b pgtype.Timestamp) int {
	switch {
	case !a.Valid && !b.Valid:
		return 0
	case !a.Valid:
		return 1
	case !b.Valid:
		return -1
	}
	return a.Time.Compare(b.Time)
}

func compareFloat(a, b pgtype.Float8) int {
	switch {
	case !a.Valid && !b.Valid:
		return 0
	case !a.Valid:
		return 1
	case !b.Valid:
		return -1
	case a.Float64 < b.Float64:
		return -1
	case a.Float64 > b.Float64:
		return 1
	}
	return 0
}

// SortCanonical stably orders rows by (serial, time) with absent times last
// within each serial.
func SortCanonical(rows []CanonicalRecord) {
	sort.SliceStable(rows, func(i, j int) bool {
		return compareCanonical(rows[i], rows[j]) < 0
	})
}
