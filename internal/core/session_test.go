package core

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleExport = "Collar ID;Acq. Time [UTC];Latitude [deg];Longitude [deg]\n" +
	"C1;2024-03-01 00:00:00;45.1;7.1\n" +
	"C1;2024-07-01 00:00:00;45.2;7.2\n" +
	"C2;2024-01-15 00:00:00;46.1;8.1\n" +
	"C2;2024-01-15 00:00:00;46.0;8.0\n"

var sampleMapping = FieldMapping{
	Serial:    "Collar ID",
	Time:      "Acq. Time [UTC]",
	Latitude:  "Latitude [deg]",
	Longitude: "Longitude [deg]",
}

func openSample(t *testing.T, svc *Service) *Session {
	t.Helper()
	sess, err := svc.Open(context.Background(), "sample.csv", strings.NewReader(sampleExport))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return sess
}

func TestSession_ConvertAndExport(t *testing.T) {
	svc := NewService(ServiceConfig{})
	sess := openSample(t, svc)

	if err := sess.SetCutoff("C1", "2024-06-01"); err != nil {
		t.Fatalf("SetCutoff: %v", err)
	}

	res, err := svc.Convert(context.Background(), sess.ID, ConvertRequest{
		Mapping:       sampleMapping,
		GlobalStart:   "2024-01-01",
		FixDuplicates: true,
	})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	want := []string{
		"C1@2024-07-01 00:00:00",
		"C2@2024-01-15 00:00:00",
		"C2@2024-01-15 00:00:01",
	}
	if got := times(res.Records); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("records = %v, want %v", got, want)
	}

	var buf bytes.Buffer
	if err := sess.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if !strings.HasPrefix(buf.String(), CanonicalHeader+"\n") {
		t.Errorf("WriteCSV output missing header: %q", buf.String())
	}

	path := filepath.Join(t.TempDir(), "out.csv")
	if err := sess.Export(path); err != nil {
		t.Fatalf("Export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !bytes.Equal(data, buf.Bytes()) {
		t.Error("Export and WriteCSV disagree")
	}

	sum := sess.Summary()
	if !sum.Converted || sum.OutputRows != 3 || sum.Rows != 4 {
		t.Errorf("Summary = %+v", sum)
	}
	if sum.Delimiter != ";" {
		t.Errorf("Summary.Delimiter = %q, want ;", sum.Delimiter)
	}
	if sum.Suggested != sampleMapping {
		t.Errorf("Summary.Suggested = %+v, want %+v", sum.Suggested, sampleMapping)
	}
	if strings.Join(sum.Serials, ",") != "C1,C2" {
		t.Errorf("Summary.Serials = %v", sum.Serials)
	}
}

func TestSession_Errors(t *testing.T) {
	sess := NewSession()

	if _, err := sess.Convert(context.Background(), ConvertRequest{Mapping: sampleMapping}); !errors.Is(err, ErrNoData) {
		t.Errorf("Convert without data = %v, want ErrNoData", err)
	}
	if err := sess.WriteCSV(&bytes.Buffer{}); !errors.Is(err, ErrNothingToExport) {
		t.Errorf("WriteCSV without result = %v, want ErrNothingToExport", err)
	}
	if err := sess.Export(filepath.Join(t.TempDir(), "x.csv")); !errors.Is(err, ErrNothingToExport) {
		t.Errorf("Export without result = %v, want ErrNothingToExport", err)
	}

	if err := sess.SetCutoff("", "2024-01-01"); !errors.Is(err, ErrCutoffInput) {
		t.Errorf("SetCutoff with empty serial = %v, want ErrCutoffInput", err)
	}
	if err := sess.SetCutoff("C1", " "); !errors.Is(err, ErrCutoffInput) {
		t.Errorf("SetCutoff with empty date = %v, want ErrCutoffInput", err)
	}

	err := sess.SetCutoff("C1", "01/06/2024")
	var de *DateFormatError
	if !errors.As(err, &de) {
		t.Fatalf("SetCutoff with bad date = %v, want *DateFormatError", err)
	}
	if de.Field != "start for C1" {
		t.Errorf("Field = %q", de.Field)
	}
	if len(sess.Cutoffs()) != 0 {
		t.Error("rejected cutoff was stored")
	}
}

func TestSession_EmptyResultIsNothingToExport(t *testing.T) {
	svc := NewService(ServiceConfig{})
	sess := openSample(t, svc)

	res, err := sess.Convert(context.Background(), ConvertRequest{Mapping: sampleMapping, GlobalStart: "2030-01-01"})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(res.Records) != 0 {
		t.Fatalf("records = %d, want every row dropped", len(res.Records))
	}

	var buf bytes.Buffer
	if err := sess.WriteCSV(&buf); !errors.Is(err, ErrNothingToExport) {
		t.Errorf("WriteCSV of empty result = %v, want ErrNothingToExport", err)
	}
	if buf.Len() != 0 {
		t.Errorf("WriteCSV wrote %q", buf.String())
	}

	path := filepath.Join(t.TempDir(), "out.csv")
	if err := sess.Export(path); !errors.Is(err, ErrNothingToExport) {
		t.Errorf("Export of empty result = %v, want ErrNothingToExport", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("empty export created %s", path)
	}
	if got := MapError(sess.Export(path)).Code; got != "EXP002" {
		t.Errorf("code = %q, want EXP002", got)
	}
}

func TestSession_BadGlobalStartKeepsResult(t *testing.T) {
	svc := NewService(ServiceConfig{})
	sess := openSample(t, svc)

	first, err := sess.Convert(context.Background(), ConvertRequest{Mapping: sampleMapping})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	_, err = sess.Convert(context.Background(), ConvertRequest{Mapping: sampleMapping, GlobalStart: "yesterday"})
	var de *DateFormatError
	if !errors.As(err, &de) || de.Field != "global start" {
		t.Fatalf("error = %v, want *DateFormatError for global start", err)
	}
	if sess.Result() != first {
		t.Error("failed conversion replaced the previous result")
	}
}

func TestSession_LoadResetsState(t *testing.T) {
	svc := NewService(ServiceConfig{})
	sess := openSample(t, svc)

	sess.SetCutoff("C1", "2024-06-01")
	sess.SetCutoff("C2", "2024-01-01 12:00:00")
	sess.SetCutoff("C1", "2024-05-01")

	cutoffs := sess.Cutoffs()
	if len(cutoffs) != 2 || cutoffs[0].Serial != "C1" || !cutoffs[0].Start.Equal(at("2024-05-01 00:00:00")) {
		t.Errorf("Cutoffs = %+v", cutoffs)
	}
	if !sess.RemoveCutoff("C2") || sess.RemoveCutoff("C2") {
		t.Error("RemoveCutoff should report true once")
	}

	if _, err := sess.Convert(context.Background(), ConvertRequest{Mapping: sampleMapping}); err != nil {
		t.Fatalf("Convert: %v", err)
	}

	sess.Load(table([]string{"X", "2024-01-01", "1", "1"}))
	if sess.Result() != nil {
		t.Error("Load kept the previous result")
	}
	if len(sess.Cutoffs()) != 0 {
		t.Error("Load kept per-serial cutoffs")
	}
}

func TestService_Sessions(t *testing.T) {
	svc := NewService(ServiceConfig{})
	a := openSample(t, svc)
	time.Sleep(2 * time.Millisecond)
	b := openSample(t, svc)

	got, err := svc.Session(a.ID)
	if err != nil || got != a {
		t.Fatalf("Session(a) = %v, %v", got, err)
	}

	list := svc.Sessions()
	if len(list) != 2 || list[0] != b {
		t.Errorf("Sessions should list the most recent first")
	}

	if err := svc.CloseSession(context.Background(), a.ID); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if _, err := svc.Session(a.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("closed session lookup = %v, want ErrSessionNotFound", err)
	}
	if err := svc.CloseSession(context.Background(), a.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("double close = %v, want ErrSessionNotFound", err)
	}
	if _, err := svc.Convert(context.Background(), a.ID, ConvertRequest{}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Convert on closed session = %v, want ErrSessionNotFound", err)
	}
}

func TestService_OpenErrors(t *testing.T) {
	svc := NewService(ServiceConfig{})

	_, err := svc.Open(context.Background(), "empty.csv", strings.NewReader(""))
	if !errors.Is(err, ErrEmptyFile) {
		t.Errorf("Open(empty) = %v, want ErrEmptyFile", err)
	}
	if n := len(svc.Sessions()); n != 0 {
		t.Errorf("failed open registered %d sessions", n)
	}

	path := writeTemp(t, "fixes.csv", []byte(sampleExport))
	sess, err := svc.OpenFile(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if sess.Table().Source != path {
		t.Errorf("Source = %q, want %q", sess.Table().Source, path)
	}
}

func TestService_EvictsLeastRecentlyUsed(t *testing.T) {
	svc := NewService(ServiceConfig{MaxSessions: 2})
	a := openSample(t, svc)
	time.Sleep(2 * time.Millisecond)
	b := openSample(t, svc)
	time.Sleep(2 * time.Millisecond)

	// Touch a so b becomes the oldest.
	a.ClearCutoffs()
	time.Sleep(2 * time.Millisecond)

	c := openSample(t, svc)

	if _, err := svc.Session(b.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Error("least recently used session was not evicted")
	}
	for _, s := range []*Session{a, c} {
		if _, err := svc.Session(s.ID); err != nil {
			t.Errorf("session %s evicted: %v", s.ID, err)
		}
	}
}

func TestService_SweepIdle(t *testing.T) {
	svc := NewService(ServiceConfig{})
	old := openSample(t, svc)
	time.Sleep(5 * time.Millisecond)
	cutoff := time.Now()
	time.Sleep(5 * time.Millisecond)
	fresh := openSample(t, svc)

	if n := svc.SweepIdle(cutoff); n != 1 {
		t.Errorf("SweepIdle removed %d, want 1", n)
	}
	if _, err := svc.Session(old.ID); err == nil {
		t.Error("idle session survived the sweep")
	}
	if _, err := svc.Session(fresh.ID); err != nil {
		t.Errorf("fresh session swept: %v", err)
	}
}

func TestService_SessionSweeperStops(t *testing.T) {
	svc := NewService(ServiceConfig{})
	openSample(t, svc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.StartSessionSweeper(ctx, SweepConfig{IdleTTL: time.Millisecond, CheckInterval: 10 * time.Millisecond})
		close(done)
	}()

	deadline := time.After(time.Second)
	for len(svc.Sessions()) > 0 {
		select {
		case <-deadline:
			t.Fatal("sweeper never removed the idle session")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("sweeper did not stop after cancellation")
	}
}

func TestService_ConvertBusy(t *testing.T) {
	svc := NewService(ServiceConfig{MaxConcurrent: 1, MaxWait: 20 * time.Millisecond})
	sess := openSample(t, svc)

	if !svc.Limiter().TryAcquire() {
		t.Fatal("TryAcquire failed on an idle limiter")
	}
	_, err := svc.Convert(context.Background(), sess.ID, ConvertRequest{Mapping: sampleMapping})
	if err != ErrTooManyConversions {
		t.Errorf("Convert while busy = %v, want ErrTooManyConversions", err)
	}
	svc.Limiter().Release()

	if err := svc.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestSweepConfig_Defaults(t *testing.T) {
	cfg := SweepConfig{}.withDefaults()
	if cfg.IdleTTL != time.Hour || cfg.CheckInterval != 5*time.Minute {
		t.Errorf("defaults = %+v", cfg)
	}
	custom := SweepConfig{IdleTTL: time.Minute, CheckInterval: time.Second}.withDefaults()
	if custom.IdleTTL != time.Minute || custom.CheckInterval != time.Second {
		t.Errorf("custom values overridden: %+v", custom)
	}
}
