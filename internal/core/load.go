package core

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ContextCheckInterval is how often to check for context cancellation.
var ContextCheckInterval = 100

// ProgressLogInterval is how many records are read between progress logs.
var ProgressLogInterval = 100_000

// LoadOptions tunes how a source file is read.
type LoadOptions struct {
	SampleBytes     int  // Bytes handed to the delimiter sniffer; 0 means the default
	LenientUTF8     bool // Replace invalid UTF-8 instead of failing
	Delimiter       rune // Forces a separator and skips sniffing when non-zero
	LargeRowWarning int  // Logs a warning past this many rows; 0 disables it
}

func (o LoadOptions) sampleBytes() int {
	if o.SampleBytes <= 0 {
		return DefaultSniffSampleBytes
	}
	return o.SampleBytes
}

// IsSpreadsheet reports whether a file name has a spreadsheet extension.
func IsSpreadsheet(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}

// LoadFile reads a delimited text file or an .xlsx workbook into a Table.
// Any failure is returned as a *LoadError.
func LoadFile(ctx context.Context, path string, opts LoadOptions) (*Table, error) {
	if IsSpreadsheet(path) {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
		defer f.Close()
		return loadWorkbook(ctx, f, path, opts)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer f.Close()

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	t, err := loadDelimited(ctx, f, size, path, opts)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return t, nil
}

// LoadReader reads a source from r. name labels the table and errors; an
// .xlsx or .xlsm name selects the workbook reader.
func LoadReader(ctx context.Context, r io.Reader, name string, opts LoadOptions) (*Table, error) {
	if IsSpreadsheet(name) {
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, &LoadError{Path: name, Err: err}
		}
		defer f.Close()
		return loadWorkbook(ctx, f, name, opts)
	}

	t, err := loadDelimited(ctx, r, 0, name, opts)
	if err != nil {
		return nil, &LoadError{Path: name, Err: err}
	}
	return t, nil
}

func loadDelimited(ctx context.Context, src io.Reader, size int64, name string, opts LoadOptions) (*Table, error) {
	clean, counter := WrapSource(src, size, opts.LenientUTF8)

	sampleSize := opts.sampleBytes()
	br := bufio.NewReaderSize(clean, max(sampleSize, 64*1024))

	delim := opts.Delimiter
	if delim == 0 {
		sample, err := br.Peek(sampleSize)
		if err != nil && err != io.EOF && !errors.Is(err, bufio.ErrBufferFull) {
			return nil, err
		}
		delim = sniff(sample, len(sample) == sampleSize)
	}

	r := csv.NewReader(br)
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	b := newTableBuilder(name, opts)
	for n := 1; ; n++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := b.add(ctx, rec); err != nil {
			return nil, err
		}
		if n%ProgressLogInterval == 0 {
			logProgress(ctx, name, n, counter)
		}
	}

	t, err := b.finish()
	if err != nil {
		return nil, err
	}
	t.Delimiter = delim
	t.BytesRead = counter.BytesRead

	slog.DebugContext(ctx, "source loaded",
		"source", name,
		"delimiter", strconv.QuoteRune(delim),
		"rows", t.Len(),
		"columns", len(t.Columns),
		"bytes", counter.BytesRead,
	)
	return t, nil
}

// logProgress reports how far a delimited load has read. The percentage is
// only logged when the source size is known.
func logProgress(ctx context.Context, name string, records int, counter *CountingReader) {
	args := []any{"source", name, "records", records, "bytes", counter.BytesRead}
	if counter.Total > 0 {
		args = append(args, "progress_pct", counter.Progress())
	}
	slog.DebugContext(ctx, "loading source", args...)
}

// loadWorkbook reads the first sheet of an .xlsx workbook.
func loadWorkbook(ctx context.Context, f *excelize.File, path string, opts LoadOptions) (*Table, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &LoadError{Path: path, Err: ErrEmptyFile}
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer rows.Close()

	b := newTableBuilder(path, opts)
	for rows.Next() {
		cells, err := rows.Columns()
		if err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
		if err := b.add(ctx, cells); err != nil {
			return nil, &LoadError{Path: path, Err: err}
		}
	}
	if err := rows.Error(); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	t, err := b.finish()
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	slog.DebugContext(ctx, "workbook loaded",
		"source", path,
		"sheet", sheets[0],
		"rows", t.Len(),
		"columns", len(t.Columns),
	)
	return t, nil
}

// tableBuilder accumulates records into a Table. The first non-blank record
// is the header; later records are padded or cut to the header width.
type tableBuilder struct {
	table   *Table
	opts    LoadOptions
	width   int
	seen    int
	warned  bool
	haveHdr bool
}

func newTableBuilder(name string, opts LoadOptions) *tableBuilder {
	return &tableBuilder{table: &Table{Source: name}, opts: opts}
}

func (b *tableBuilder) add(ctx context.Context, rec []string) error {
	b.seen++
	if b.seen%ContextCheckInterval == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	if isBlankLine(rec) {
		return nil
	}

	if !b.haveHdr {
		b.table.Columns = uniqueColumns(rec)
		b.width = len(rec)
		b.haveHdr = true
		return nil
	}

	row := make([]string, b.width)
	copy(row, rec)
	b.table.Rows = append(b.table.Rows, row)

	if limit := b.opts.LargeRowWarning; limit > 0 && !b.warned && len(b.table.Rows) > limit {
		b.warned = true
		slog.WarnContext(ctx, "large source file", "source", b.table.Source, "rows_over", limit)
	}
	return nil
}

// isBlankLine reports a record with no content at all. Records made only of
// separators (",,,") are not blank: they become rows of empty cells.
func isBlankLine(rec []string) bool {
	return len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "")
}

func (b *tableBuilder) finish() (*Table, error) {
	if !b.haveHdr {
		return nil, ErrEmptyFile
	}
	return b.table, nil
}

// uniqueColumns copies a header row, naming blank columns "Unnamed: N" and
// suffixing repeated names with ".1", ".2" and so on.
func uniqueColumns(header []string) []string {
	cols := make([]string, len(header))
	used := make(map[string]bool, len(header))

	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}

		candidate := name
		for n := 1; used[candidate]; n++ {
			candidate = name + "." + strconv.Itoa(n)
		}
		used[candidate] = true
		cols[i] = candidate
	}
	return cols
}
