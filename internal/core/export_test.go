package core

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func TestFormatCoordinate(t *testing.T) {
	tests := []struct {
		in   pgtype.Float8
		want string
	}{
		{in: pgtype.Float8{Float64: 45.1234567, Valid: true}, want: "45.1234567"},
		{in: pgtype.Float8{Float64: 7.5, Valid: true}, want: "7.5000000"},
		{in: pgtype.Float8{Float64: -0.00000004, Valid: true}, want: "-0.0000000"},
		{in: pgtype.Float8{Float64: 12.123456789, Valid: true}, want: "12.1234568"},
		{in: pgtype.Float8{Float64: 0, Valid: true}, want: "0.0000000"},
		{in: pgtype.Float8{Valid: false}, want: ""},
	}

	for _, tt := range tests {
		if got := FormatCoordinate(tt.in); got != tt.want {
			t.Errorf("FormatCoordinate(%v) = %q, want %q", tt.in.Float64, got, tt.want)
		}
	}
}

func TestFormatTime(t *testing.T) {
	withNanos := pgtype.Timestamp{Time: time.Date(2024, 5, 6, 7, 8, 9, 999000000, time.UTC), Valid: true}
	if got := FormatTime(withNanos); got != "2024-05-06 07:08:09" {
		t.Errorf("FormatTime = %q, want truncated seconds", got)
	}
	if got := FormatTime(pgtype.Timestamp{}); got != "" {
		t.Errorf("FormatTime(absent) = %q, want empty", got)
	}
}

func TestWriteCanonical(t *testing.T) {
	rows := []CanonicalRecord{
		fix("C001", "2024-01-01 10:00:00", 45.1234567, 7.654321),
		{Serial: "C002"},
	}

	var buf bytes.Buffer
	if err := WriteCanonical(&buf, rows); err != nil {
		t.Fatalf("WriteCanonical: %v", err)
	}

	want := "serialnumber;time;latitude;longitude\n" +
		`"C001";"2024-01-01 10:00:00";"45.1234567";"7.6543210"` + "\n" +
		`"C002";"";"";""` + "\n"
	if buf.String() != want {
		t.Errorf("output:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWriteCanonical_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCanonical(&buf, nil); err != nil {
		t.Fatalf("WriteCanonical: %v", err)
	}
	if buf.String() != CanonicalHeader+"\n" {
		t.Errorf("empty export = %q, want header only", buf.String())
	}
}

func TestExportFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	rows := []CanonicalRecord{fix("A", "2024-01-01 00:00:00", 1, 2)}

	if err := ExportFile(path, rows); err != nil {
		t.Fatalf("ExportFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var want bytes.Buffer
	WriteCanonical(&want, rows)
	if !bytes.Equal(data, want.Bytes()) {
		t.Errorf("file content = %q, want %q", data, want.Bytes())
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the export (temp file left behind?)", len(entries))
	}
}

func TestExportFile_Overwrite(t *testing.T) {
	path := writeTemp(t, "out.csv", []byte("old content that is longer than the new export\n"))

	if err := ExportFile(path, nil); err != nil {
		t.Fatalf("ExportFile: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != CanonicalHeader+"\n" {
		t.Errorf("overwrite left %q", data)
	}
}

func TestExportFile_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no", "such", "dir", "out.csv")

	err := ExportFile(path, nil)
	var ee *ExportError
	if !errors.As(err, &ee) {
		t.Fatalf("error = %v, want *ExportError", err)
	}
	if ee.Path != path {
		t.Errorf("Path = %q, want %q", ee.Path, path)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("destination must not exist after a failed export")
	}
}
