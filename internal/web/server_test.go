package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/collarconv/internal/config"
	"github.com/JonMunkholm/collarconv/internal/core"
	"github.com/JonMunkholm/collarconv/internal/profile"
)

const vendorExport = "Collar ID;Acq. Time [UTC];Latitude [deg];Longitude [deg]\n" +
	"C1;2024-03-01 00:00:00;45.1;7.1\n" +
	"C1;2024-07-01 00:00:00;45.2;7.2\n" +
	"C2;2024-01-15 00:00:00;46.1;8.1\n" +
	"C2;2024-01-15 00:00:00;46.0;8.0\n"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.RequestTimeout = 30 * time.Second
	cfg.Convert.FixDuplicates = true
	cfg.Convert.PreviewRows = 500
	cfg.Convert.MaxConcurrent = 2
	cfg.Convert.MaxWaitTime = time.Second
	cfg.Upload.MaxFileSize = 1 << 20
	cfg.Profile.Dir = t.TempDir()
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	svc := core.NewService(cfg.ServiceConfig())
	s := NewServer(svc, profile.NewStore(cfg.Profile.Dir), cfg)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

func do(t *testing.T, s *Server, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func uploadBody(t *testing.T, name, content string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write([]byte(content))
	mw.Close()
	return buf.Bytes(), mw.FormDataContentType()
}

func createSession(t *testing.T, s *Server) SessionResponse {
	t.Helper()
	body, ct := uploadBody(t, "fixes.csv", vendorExport)
	rec := do(t, s, http.MethodPost, "/api/sessions", body, ct)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp SessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return e
}

func TestServer_UploadConvertExport(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	created := createSession(t, s)
	if created.Rows != 4 || created.Delimiter != ";" {
		t.Errorf("created = %+v", created.SessionSummary)
	}
	if created.Status != "Loaded 4 rows, 4 columns" {
		t.Errorf("Status = %q", created.Status)
	}
	base := "/api/sessions/" + created.ID

	rec := do(t, s, http.MethodPost, base+"/cutoffs", []byte(`{"serial":"C1","start":"2024-06-01"}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("set cutoff: %d %s", rec.Code, rec.Body.String())
	}

	convert, _ := json.Marshal(ConvertRequest{Mapping: created.Suggested, Start: "2024-01-01"})
	rec = do(t, s, http.MethodPost, base+"/convert", convert, "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("convert: %d %s", rec.Code, rec.Body.String())
	}
	var converted SessionResponse
	json.Unmarshal(rec.Body.Bytes(), &converted)
	if converted.Status != "Converted: 3 rows" || strings.Join(converted.Serials, ",") != "C1,C2" {
		t.Errorf("converted = %+v", converted)
	}

	rec = do(t, s, http.MethodGet, base+"/export", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d %s", rec.Code, rec.Body.String())
	}
	want := core.CanonicalHeader + "\n" +
		`"C1";"2024-07-01 00:00:00";"45.2000000";"7.2000000"` + "\n" +
		`"C2";"2024-01-15 00:00:00";"46.0000000";"8.0000000"` + "\n" +
		`"C2";"2024-01-15 00:00:01";"46.1000000";"8.1000000"` + "\n"
	if rec.Body.String() != want {
		t.Errorf("export body:\n%s\nwant:\n%s", rec.Body.String(), want)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "fixes_converted.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rec = do(t, s, http.MethodGet, base+"/preview", nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "showing 3 of 3 rows") {
		t.Errorf("preview: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodDelete, base, nil, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: %d", rec.Code)
	}
	rec = do(t, s, http.MethodGet, base, nil, "")
	if rec.Code != http.StatusNotFound || decodeError(t, rec).Code != "SES001" {
		t.Errorf("get deleted: %d %s", rec.Code, rec.Body.String())
	}
}

func TestServer_Errors(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	id := createSession(t, s).ID
	base := "/api/sessions/" + id

	emptyForm, ct := func() ([]byte, string) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		mw.WriteField("note", "no file here")
		mw.Close()
		return buf.Bytes(), mw.FormDataContentType()
	}()
	emptyFile, emptyCT := uploadBody(t, "empty.csv", "")

	tests := []struct {
		name        string
		method      string
		path        string
		body        []byte
		contentType string
		wantStatus  int
		wantCode    string
	}{
		{"unknown session", http.MethodGet, "/api/sessions/missing", nil, "", http.StatusNotFound, "SES001"},
		{"export before convert", http.MethodGet, base + "/export", nil, "", http.StatusConflict, "EXP002"},
		{"output preview before convert", http.MethodGet, base + "/preview?view=output", nil, "", http.StatusConflict, "EXP002"},
		{"missing mapping", http.MethodPost, base + "/convert", []byte(`{}`), "application/json", http.StatusUnprocessableEntity, "MAP001"},
		{"bad global start", http.MethodPost, base + "/convert",
			[]byte(`{"mapping":{"serial":"Collar ID","time":"Acq. Time [UTC]","latitude":"Latitude [deg]","longitude":"Longitude [deg]"},"start":"soon"}`),
			"application/json", http.StatusUnprocessableEntity, "DATE001"},
		{"unknown json field", http.MethodPost, base + "/convert", []byte(`{"colour":"red"}`), "application/json", http.StatusBadRequest, "REQ001"},
		{"empty cutoff", http.MethodPost, base + "/cutoffs", []byte(`{"serial":"","start":"2024-01-01"}`), "application/json", http.StatusBadRequest, "SES003"},
		{"no file", http.MethodPost, "/api/sessions", emptyForm, ct, http.StatusBadRequest, "FILE004"},
		{"empty file", http.MethodPost, "/api/sessions", emptyFile, emptyCT, http.StatusUnprocessableEntity, "LOAD002"},
		{"unknown profile", http.MethodGet, "/api/profiles/nope", nil, "", http.StatusNotFound, "PRF001"},
		{"match without columns", http.MethodGet, "/api/profiles/match", nil, "", http.StatusBadRequest, "REQ001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.path, tt.body, tt.contentType)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := decodeError(t, rec).Code; got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestServer_ExportEmptyResult(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	base := "/api/sessions/" + createSession(t, s).ID

	body := []byte(`{"mapping":{"serial":"Collar ID","time":"Acq. Time [UTC]","latitude":"Latitude [deg]","longitude":"Longitude [deg]"},"start":"2030-01-01"}`)
	rec := do(t, s, http.MethodPost, base+"/convert", body, "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("convert: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodGet, base+"/export", nil, "")
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if got := decodeError(t, rec).Code; got != "EXP002" {
		t.Errorf("code = %q, want EXP002", got)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != "" {
		t.Errorf("Content-Disposition = %q on a failed export", cd)
	}
}

func TestServer_UploadTooLarge(t *testing.T) {
	cfg := testConfig(t)
	cfg.Upload.MaxFileSize = 64
	s := newTestServer(t, cfg)

	body, ct := uploadBody(t, "big.csv", vendorExport+strings.Repeat("C9;2024-01-01 00:00:00;1;1\n", 20))
	rec := do(t, s, http.MethodPost, "/api/sessions", body, ct)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413 (body %s)", rec.Code, rec.Body.String())
	}
	if got := decodeError(t, rec).Code; got != "FILE001" {
		t.Errorf("code = %q, want FILE001", got)
	}
}

func TestServer_HTMXErrorPartial(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/missing/preview", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want html", ct)
	}
	if !strings.Contains(rec.Body.String(), "SES001") {
		t.Errorf("body missing code: %s", rec.Body.String())
	}
}

func TestServer_Profiles(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	created := createSession(t, s)

	save := []byte(`{"name":"vendor","mapping":{"serial":"Collar ID","time":"Acq. Time [UTC]","latitude":"Latitude [deg]","longitude":"Longitude [deg]"},"cutoffs":[{"serial":"C1","start":"2024-06-01"}],"fix_duplicates":false}`)
	rec := do(t, s, http.MethodPost, "/api/profiles?session="+created.ID, save, "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("save profile: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodGet, "/api/profiles/match?session="+created.ID, nil, "")
	var matches []profile.Match
	json.Unmarshal(rec.Body.Bytes(), &matches)
	if len(matches) != 1 || matches[0].Profile.Name != "vendor" || matches[0].Score != 1 {
		t.Errorf("matches = %+v", matches)
	}

	rec = do(t, s, http.MethodPost, "/api/sessions/"+created.ID+"/convert", []byte(`{"profile":"vendor"}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("convert with profile: %d %s", rec.Code, rec.Body.String())
	}
	var converted SessionResponse
	json.Unmarshal(rec.Body.Bytes(), &converted)
	// The profile's C1 cutoff drops the March fix and dedup stays off.
	if converted.OutputRows != 3 || converted.Stats.Shifted != 0 {
		t.Errorf("converted = %+v stats %+v", converted.SessionSummary, converted.Stats)
	}
	if len(converted.Cutoffs) != 1 || converted.Cutoffs[0].Serial != "C1" {
		t.Errorf("profile cutoffs not applied: %+v", converted.Cutoffs)
	}

	rec = do(t, s, http.MethodGet, "/api/profiles", nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"name":"vendor"`) {
		t.Errorf("list profiles: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodDelete, "/api/profiles/vendor", nil, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete profile: %d", rec.Code)
	}
}

func TestServer_Validate(t *testing.T) {
	s := newTestServer(t, testConfig(t))
	created := createSession(t, s)
	path := "/api/sessions/" + created.ID + "/validate"

	rec := do(t, s, http.MethodPost, path, []byte(`{}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("validate: %d %s", rec.Code, rec.Body.String())
	}
	var report core.ValidationReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.RowsChecked != 4 || !report.Valid() {
		t.Errorf("suggested mapping report = %+v", report)
	}

	rec = do(t, s, http.MethodPost, path, []byte(`{"format":"%d.%m.%Y","samples":1}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("validate with format: %d %s", rec.Code, rec.Body.String())
	}
	report = core.ValidationReport{}
	json.Unmarshal(rec.Body.Bytes(), &report)
	if report.RowsWithIssue != 4 || report.ByField["timestamp"] != 4 || len(report.Samples) != 1 {
		t.Errorf("mismatched format report = %+v", report)
	}

	rec = do(t, s, http.MethodPost, path, []byte(`{"mapping":{"serial":"nope"}}`), "application/json")
	if rec.Code != http.StatusUnprocessableEntity || decodeError(t, rec).Code != "MAP002" {
		t.Errorf("unknown column: %d %s", rec.Code, rec.Body.String())
	}
}

func TestServer_APIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	s := newTestServer(t, cfg)

	if rec := do(t, s, http.MethodGet, "/api/sessions", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("without key: %d, want 401", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/healthz", nil, ""); rec.Code != http.StatusOK {
		t.Errorf("healthz should not need a key: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("with key: %d %s", rec.Code, rec.Body.String())
	}
}

func TestServer_RateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 2
	s := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		if rec := do(t, s, http.MethodGet, "/healthz", nil, ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, rec.Code)
		}
	}
	rec := do(t, s, http.MethodGet, "/healthz", nil, "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: %d, want 429", rec.Code)
	}
	if decodeError(t, rec).Code != "RATE001" || rec.Header().Get("Retry-After") == "" {
		t.Errorf("rate limit response = %s", rec.Body.String())
	}
}

func TestExportName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"fixes.csv", "fixes_converted.csv"},
		{"/data/run 1/collars.xlsx", "collars_converted.csv"},
		{"", "export_converted.csv"},
	}
	for _, tt := range tests {
		if got := exportName(tt.in); got != tt.want {
			t.Errorf("exportName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
