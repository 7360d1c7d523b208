package core

import (
	"time"
)

// SerialCutoff is a start instant for one individual.
type SerialCutoff struct {
	Serial string    `json:"serial" yaml:"serial"`
	Start  time.Time `json:"start" yaml:"start"`
}

// CutoffSpec holds the optional global start and the per-serial starts.
// PerSerial keeps insertion order; a serial appears at most once.
type CutoffSpec struct {
	Global    *time.Time
	PerSerial []SerialCutoff
}

// Set adds or replaces the cutoff for serial. A replaced entry keeps its
// position in the list.
func (c *CutoffSpec) Set(serial string, start time.Time) {
	for i := range c.PerSerial {
		if c.PerSerial[i].Serial == serial {
			c.PerSerial[i].Start = start
			return
		}
	}
	c.PerSerial = append(c.PerSerial, SerialCutoff{Serial: serial, Start: start})
}

// Remove deletes the cutoff for serial and reports whether one existed.
func (c *CutoffSpec) Remove(serial string) bool {
	for i := range c.PerSerial {
		if c.PerSerial[i].Serial == serial {
			c.PerSerial = append(c.PerSerial[:i], c.PerSerial[i+1:]...)
			return true
		}
	}
	return false
}

// ClearPerSerial removes every per-serial cutoff. The global start is kept.
func (c *CutoffSpec) ClearPerSerial() {
	c.PerSerial = nil
}

// IsZero reports whether the spec filters nothing.
func (c CutoffSpec) IsZero() bool {
	return c.Global == nil && len(c.PerSerial) == 0
}

// Clone returns a deep copy.
func (c CutoffSpec) Clone() CutoffSpec {
	out := CutoffSpec{}
	if c.Global != nil {
		g := *c.Global
		out.Global = &g
	}
	if len(c.PerSerial) > 0 {
		out.PerSerial = append([]SerialCutoff(nil), c.PerSerial...)
	}
	return out
}

// FilterStats counts rows removed by each cutoff stage.
type FilterStats struct {
	DroppedGlobal    int
	DroppedPerSerial int
}

// ApplyCutoffs removes fixes recorded before their start instant.
//
// The global start applies to every row, then each serial's own start applies
// to that serial's rows. Both bounds are inclusive. Rows without a valid time
// are never removed, and serials with no entry are untouched by the second
// stage. Filtering happens in place; the returned slice shares rows' backing
// array and keeps input order.
func ApplyCutoffs(rows []CanonicalRecord, spec CutoffSpec) ([]CanonicalRecord, FilterStats) {
	var stats FilterStats
	if spec.IsZero() {
		return rows, stats
	}

	perSerial := make(map[string]time.Time, len(spec.PerSerial))
	for _, c := range spec.PerSerial {
		perSerial[c.Serial] = c.Start
	}

	out := rows[:0]
	for _, r := range rows {
		if r.Time.Valid {
			if spec.Global != nil && r.Time.Time.Before(*spec.Global) {
				stats.DroppedGlobal++
				continue
			}
			if start, ok := perSerial[r.Serial]; ok && r.Time.Time.Before(start) {
				stats.DroppedPerSerial++
				continue
			}
		}
		out = append(out, r)
	}
	return out, stats
}
