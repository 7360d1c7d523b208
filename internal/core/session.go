package core

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ConvertRequest is what a caller supplies for one conversion run.
// Per-serial cutoffs come from the session; GlobalStart is parsed per run.
type ConvertRequest struct {
	Mapping       FieldMapping `json:"mapping"`
	TimeFormat    string       `json:"time_format"`
	GlobalStart   string       `json:"global_start"`
	FixDuplicates bool         `json:"fix_duplicates"`
}

// Session is one interactive workflow: a loaded table, the user's per-serial
// cutoffs, and the latest conversion result. Safe for concurrent use.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.RWMutex
	table    *Table
	cutoffs  CutoffSpec
	result   *ConvertResult
	lastUsed time.Time
}

// NewSession creates an empty session with a fresh ID.
func NewSession() *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		lastUsed:  now,
	}
}

func (s *Session) touch() {
	s.lastUsed = time.Now()
}

// LastUsed returns when the session was last read or changed.
func (s *Session) LastUsed() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUsed
}

// Load replaces the session's table. Per-serial cutoffs and any previous
// result are discarded.
func (s *Session) Load(t *Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = t
	s.cutoffs.ClearPerSerial()
	s.result = nil
	s.touch()
}

// Table returns the loaded table, or nil.
func (s *Session) Table() *Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}

// SetCutoff adds or replaces the start date for one serial.
func (s *Session) SetCutoff(serial, start string) error {
	serial = strings.TrimSpace(serial)
	if serial == "" || strings.TrimSpace(start) == "" {
		return ErrCutoffInput
	}
	t, err := ParseCutoff("start for "+serial, start)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoffs.Set(serial, t)
	s.touch()
	return nil
}

// RemoveCutoff deletes one serial's cutoff and reports whether it existed.
func (s *Session) RemoveCutoff(serial string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.cutoffs.Remove(serial)
}

// ClearCutoffs deletes every per-serial cutoff.
func (s *Session) ClearCutoffs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoffs.ClearPerSerial()
	s.touch()
}

// Cutoffs returns a copy of the per-serial cutoffs in insertion order.
func (s *Session) Cutoffs() []SerialCutoff {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SerialCutoff(nil), s.cutoffs.PerSerial...)
}

// Convert runs the pipeline on the loaded table and stores the result.
// A failed run leaves the previous result in place.
func (s *Session) Convert(ctx context.Context, req ConvertRequest) (*ConvertResult, error) {
	s.mu.RLock()
	t := s.table
	cutoffs := s.cutoffs.Clone()
	s.mu.RUnlock()

	if t == nil {
		return nil, ErrNoData
	}

	if g := strings.TrimSpace(req.GlobalStart); g != "" {
		start, err := ParseCutoff("global start", g)
		if err != nil {
			return nil, err
		}
		cutoffs.Global = &start
	}

	res, err := Convert(ctx, t, ConvertOptions{
		Mapping:       req.Mapping,
		TimeFormat:    req.TimeFormat,
		Cutoffs:       cutoffs,
		FixDuplicates: req.FixDuplicates,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.result = res
	s.touch()
	s.mu.Unlock()

	return res, nil
}

// Result returns the latest conversion result, or nil.
func (s *Session) Result() *ConvertResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Exportable returns the latest result when it has rows to write. A missing
// result, or one whose filters dropped every row, is ErrNothingToExport.
func (s *Session) Exportable() (*ConvertResult, error) {
	res := s.Result()
	if res == nil {
		return nil, ErrNothingToExport
	}
	if len(res.Records) == 0 {
		return nil, fmt.Errorf("%w: the last conversion produced no rows", ErrNothingToExport)
	}
	return res, nil
}

// WriteCSV streams the latest result in the canonical format.
func (s *Session) WriteCSV(w io.Writer) error {
	res, err := s.Exportable()
	if err != nil {
		return err
	}
	return WriteCanonical(w, res.Records)
}

// Export writes the latest result to path.
func (s *Session) Export(path string) error {
	res, err := s.Exportable()
	if err != nil {
		return err
	}
	return ExportFile(path, res.Records)
}

// SessionSummary is a serializable view of a session.
type SessionSummary struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	Columns    []string       `json:"columns"`
	Rows       int            `json:"rows"`
	Delimiter  string         `json:"delimiter,omitempty"`
	Suggested  FieldMapping   `json:"suggested_mapping"`
	Cutoffs    []SerialCutoff `json:"cutoffs"`
	Converted  bool           `json:"converted"`
	OutputRows int            `json:"output_rows,omitempty"`
	Serials    []string       `json:"serials,omitempty"`
	Stats      *ConvertStats  `json:"stats,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	LastUsed   time.Time      `json:"last_used"`
}

// Summary describes the session's current state.
func (s *Session) Summary() SessionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := SessionSummary{
		ID:        s.ID,
		Cutoffs:   append([]SerialCutoff(nil), s.cutoffs.PerSerial...),
		CreatedAt: s.CreatedAt,
		LastUsed:  s.lastUsed,
	}
	if s.table != nil {
		sum.Source = s.table.Source
		sum.Columns = s.table.Columns
		sum.Rows = s.table.Len()
		if s.table.Delimiter != 0 {
			sum.Delimiter = string(s.table.Delimiter)
		}
		sum.Suggested = AutoSuggest(s.table.Columns)
	}
	if s.result != nil {
		stats := s.result.Stats
		sum.Converted = true
		sum.OutputRows = len(s.result.Records)
		sum.Serials = s.result.Serials()
		sum.Stats = &stats
	}
	return sum
}
