package core

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jackc/pgx/v5/pgtype"
)

// CanonicalHeader is the first line of every exported file.
const CanonicalHeader = "serialnumber;time;latitude;longitude"

// CanonicalTimeLayout is how times are written. Sub-second precision is
// truncated.
const CanonicalTimeLayout = "2006-01-02 15:04:05"

// FormatTime renders a canonical time; absent times render as "".
func FormatTime(ts pgtype.Timestamp) string {
	if !ts.Valid {
		return ""
	}
	return ts.Time.Format(CanonicalTimeLayout)
}

// FormatCoordinate renders a coordinate with exactly seven decimals;
// absent values render as "".
func FormatCoordinate(f pgtype.Float8) string {
	if !f.Valid {
		return ""
	}
	return strconv.FormatFloat(f.Float64, 'f', 7, 64)
}

// WriteCanonical writes the header line and one line per record.
//
// Every field is double-quoted and separated by ';'. Lines end in "\n". The
// serial is written verbatim; it is expected not to contain '"'.
func WriteCanonical(w io.Writer, rows []CanonicalRecord) error {
	bw := bufio.NewWriterSize(w, 64*1024)

	if _, err := bw.WriteString(CanonicalHeader + "\n"); err != nil {
		return err
	}

	line := make([]byte, 0, 96)
	for _, r := range rows {
		line = line[:0]
		line = append(line, '"')
		line = append(line, r.Serial...)
		line = append(line, `";"`...)
		line = append(line, FormatTime(r.Time)...)
		line = append(line, `";"`...)
		line = append(line, FormatCoordinate(r.Latitude)...)
		line = append(line, `";"`...)
		line = append(line, FormatCoordinate(r.Longitude)...)
		line = append(line, '"', '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// ExportFile writes rows to path in the canonical format.
//
// The file is written to a temporary sibling and renamed into place, so on
// failure the destination is either untouched or absent. Errors are returned
// as *ExportError.
func ExportFile(path string, rows []CanonicalRecord) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &ExportError{Path: path, Err: err}
	}

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			err = &ExportError{Path: path, Err: err}
		}
	}()

	if err = WriteCanonical(tmp, rows); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
