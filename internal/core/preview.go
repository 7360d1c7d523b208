package core

import (
	"fmt"
	"strings"
)

// DefaultPreviewRows caps the rows returned by a preview.
const DefaultPreviewRows = 500

// Preview views.
const (
	ViewSource = "source" // Raw rows as loaded
	ViewOutput = "output" // Converted rows in the canonical format
)

// PreviewResponse is the first rows of a session's source or output.
type PreviewResponse struct {
	Source     string     `json:"source"`
	View       string     `json:"view"`
	Status     string     `json:"status"`
	Columns    []string   `json:"columns"`
	Rows       [][]string `json:"rows"`
	Total      int        `json:"total"`
	Incomplete int        `json:"incomplete,omitempty"` // Output rows with at least one empty field
}

// LoadedStatus is the one-line summary shown after a load.
func LoadedStatus(t *Table) string {
	return fmt.Sprintf("Loaded %d rows, %d columns", t.Len(), len(t.Columns))
}

// ConvertedStatus is the one-line summary shown after a conversion.
func ConvertedStatus(res *ConvertResult) string {
	return fmt.Sprintf("Converted: %d rows", len(res.Records))
}

// ExportedStatus is the one-line summary shown after an export.
func ExportedStatus(rows int) string {
	return fmt.Sprintf("Exported %d rows", rows)
}

// Fields returns the record's four canonical fields as exported, unquoted.
func (r CanonicalRecord) Fields() []string {
	return []string{
		r.Serial,
		FormatTime(r.Time),
		FormatCoordinate(r.Latitude),
		FormatCoordinate(r.Longitude),
	}
}

// Complete reports whether every field has a value.
func (r CanonicalRecord) Complete() bool {
	return r.Time.Valid && r.Latitude.Valid && r.Longitude.Valid
}

// Preview returns up to limit rows of the session.
//
// An empty view shows the output when a conversion exists and the source
// otherwise. Asking for the output before converting is ErrNothingToExport.
func (s *Session) Preview(view string, limit int) (*PreviewResponse, error) {
	if limit <= 0 {
		limit = DefaultPreviewRows
	}

	s.mu.RLock()
	t, res := s.table, s.result
	s.mu.RUnlock()

	if t == nil {
		return nil, ErrNoData
	}

	switch strings.ToLower(strings.TrimSpace(view)) {
	case "":
		if res != nil {
			return outputPreview(t, res, limit), nil
		}
		return sourcePreview(t, limit), nil
	case ViewSource:
		return sourcePreview(t, limit), nil
	case ViewOutput:
		if res == nil {
			return nil, ErrNothingToExport
		}
		return outputPreview(t, res, limit), nil
	default:
		return nil, fmt.Errorf("invalid request: unknown preview view %q", view)
	}
}

func sourcePreview(t *Table, limit int) *PreviewResponse {
	n := min(limit, t.Len())
	return &PreviewResponse{
		Source:  t.Source,
		View:    ViewSource,
		Status:  LoadedStatus(t),
		Columns: t.Columns,
		Rows:    t.Rows[:n],
		Total:   t.Len(),
	}
}

func outputPreview(t *Table, res *ConvertResult, limit int) *PreviewResponse {
	n := min(limit, len(res.Records))
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = res.Records[i].Fields()
	}

	incomplete := 0
	for _, r := range res.Records {
		if !r.Complete() {
			incomplete++
		}
	}

	return &PreviewResponse{
		Source:     t.Source,
		View:       ViewOutput,
		Status:     ConvertedStatus(res),
		Columns:    strings.Split(CanonicalHeader, ";"),
		Rows:       rows,
		Total:      len(res.Records),
		Incomplete: incomplete,
	}
}
