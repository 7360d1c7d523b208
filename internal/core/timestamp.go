package core

// timestamp.go parses acquisition times.
//
// Two modes are supported:
//   - auto: an empty format tries a broad list of layouts (ISO 8601, US and
//     EU numeric dates, month names, 2-digit years)
//   - explicit: a strftime-style pattern such as "%m/%d/%Y %H:%M" is
//     translated to a Go layout once, then applied to every cell
//
// Zone-aware input is converted to UTC and the zone is dropped, so every
// parsed value is a UTC wall clock time. Unparseable cells yield Valid=false.

import (
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// CutoffLayouts are the accepted layouts for user-entered cutoff dates.
var CutoffLayouts = []string{"2006-01-02 15:04:05", "2006-01-02"}

var (
	// autoLayouts are tried in order. Slash and dash dates are read month
	// first, so 01/02/2024 is January 2, and day first only when that fails
	// (15/10/2025). Dotted dates are always day first: 01.02.2024 is
	// February 1.
	autoLayouts = []string{
		time.RFC3339,
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02T15:04:05-0700",
		"2006-01-02 15:04:05-0700",
		"2006-01-02 15:04:05 -0700",
		"2006-01-02 15:04:05 -07:00",
		"2006-01-02T15:04Z07:00",
		"2006-01-02 15:04:05 MST",
		time.RFC1123Z,
		time.RFC1123,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		"2006-01-02",
		"2006/01/02 15:04:05",
		"2006/01/02 15:04",
		"2006/01/02",
		"2006.01.02 15:04:05",
		"2006.01.02",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
		"1/2/2006 3:04:05 PM",
		"1/2/2006 3:04 PM",
		"1/2/2006",
		"1-2-2006 15:04:05",
		"1-2-2006 15:04",
		"1-2-2006 3:04 PM",
		"1-2-2006",
		"2/1/2006 15:04:05",
		"2/1/2006 15:04",
		"2/1/2006",
		"2-1-2006 15:04:05",
		"2-1-2006 15:04",
		"2-1-2006",
		"2.1.2006 15:04:05",
		"2.1.2006 15:04",
		"2.1.2006",
		"Jan 2, 2006 15:04:05",
		"Jan 2, 2006 3:04 PM",
		"Jan 2, 2006",
		"2 Jan 2006 15:04:05",
		"2 Jan 2006 15:04",
		"2 Jan 2006",
		"2-Jan-2006 15:04:05",
		"2-Jan-2006",
		"20060102150405",
		"20060102",
	}

	// twoDigitLayouts get the pivot year adjustment.
	twoDigitLayouts = []string{
		"1/2/06 15:04:05",
		"1/2/06 15:04",
		"1/2/06 3:04 PM",
		"1/2/06",
		"2/1/06 15:04:05",
		"2/1/06 15:04",
		"2/1/06",
		"2.1.06 15:04:05",
		"2.1.06 15:04",
		"2.1.06",
	}
)

// strftimeDirectives maps strftime directives to Go layout fragments.
var strftimeDirectives = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "1",
	'd': "2",
	'e': "_2",
	'j': "002",
	'H': "15",
	'I': "3",
	'M': "04",
	'S': "05",
	'p': "PM",
	'b': "Jan",
	'h': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'f': "999999999",
	'z': "Z0700",
	'Z': "MST",
	'F': "2006-01-02",
	'T': "15:04:05",
	'R': "15:04",
	'D': "01/02/06",
	'%': "%",
}

// TimeParser converts cells to timestamps using one format. It remembers the
// last auto layout that matched, so it is not safe for concurrent use.
type TimeParser struct {
	format  string
	layouts []string // explicit mode; nil in auto mode
	upper   bool     // uppercase input before parsing (AM/PM matching)
	last    int
	pivot   int
}

// NewTimeParser builds a parser for format. An empty format selects auto
// detection. Formats containing '%' are read as strftime patterns; anything
// else is used as a Go reference layout.
func NewTimeParser(format string) (*TimeParser, error) {
	p := &TimeParser{
		format: strings.TrimSpace(format),
		pivot:  time.Now().Year() + TwoDigitYearPivot,
	}
	if p.format == "" {
		return p, nil
	}

	layout := p.format
	if strings.Contains(layout, "%") {
		var err error
		layout, err = translateStrftime(layout)
		if err != nil {
			return nil, err
		}
	}

	p.layouts = []string{layout}
	if strings.Contains(layout, "Z0700") {
		p.layouts = append(p.layouts, strings.ReplaceAll(layout, "Z0700", "Z07:00"))
	}
	p.upper = strings.Contains(layout, "PM")
	return p, nil
}

// Format returns the format the parser was built with ("" for auto).
func (p *TimeParser) Format() string {
	return p.format
}

// Parse converts one cell. Absent or unparseable input yields Valid=false.
func (p *TimeParser) Parse(s string) pgtype.Timestamp {
	s = CleanCell(s)
	if s == "" {
		return pgtype.Timestamp{Valid: false}
	}

	if p.layouts != nil {
		if p.upper {
			s = strings.ToUpper(s)
		}
		for _, layout := range p.layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return naiveUTC(t)
			}
		}
		return pgtype.Timestamp{Valid: false}
	}

	return p.parseAuto(s)
}

func (p *TimeParser) parseAuto(s string) pgtype.Timestamp {
	n := len(autoLayouts)
	s = strings.ToUpper(s)

	// Exports use one layout throughout, so the last hit usually matches.
	if p.last < n {
		if t, err := time.Parse(autoLayouts[p.last], s); err == nil {
			return naiveUTC(t)
		}
	}

	for i, layout := range autoLayouts {
		if i == p.last {
			continue
		}
		if t, err := time.Parse(layout, s); err == nil {
			p.last = i
			return naiveUTC(t)
		}
	}

	for _, layout := range twoDigitLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Year() > p.pivot {
			t = t.AddDate(-100, 0, 0)
		}
		return naiveUTC(t)
	}

	return pgtype.Timestamp{Valid: false}
}

// naiveUTC converts t to UTC and wraps it as a zone-free timestamp.
func naiveUTC(t time.Time) pgtype.Timestamp {
	return pgtype.Timestamp{Time: t.UTC(), Valid: true}
}

// translateStrftime turns a strftime pattern into a Go layout.
func translateStrftime(format string) (string, error) {
	var b strings.Builder
	b.Grow(len(format) + 8)

	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(format) {
			return "", &DateFormatError{Field: "time format", Input: format, Hint: "pattern ends with a lone %"}
		}
		i++
		frag, ok := strftimeDirectives[format[i]]
		if !ok {
			return "", &DateFormatError{
				Field: "time format",
				Input: format,
				Hint:  "unsupported directive %" + string(format[i]),
			}
		}
		b.WriteString(frag)
	}
	return b.String(), nil
}

// ParseCutoff parses a user-entered cutoff as "YYYY-MM-DD HH:MM:SS" or
// "YYYY-MM-DD" (midnight). field names the input in the returned error.
func ParseCutoff(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range CutoffLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &DateFormatError{Field: field, Input: s}
}
