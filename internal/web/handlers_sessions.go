package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/collarconv/internal/core"
	"github.com/JonMunkholm/collarconv/internal/logging"
	"github.com/JonMunkholm/collarconv/internal/profile"
	"github.com/JonMunkholm/collarconv/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// multipartMemory is how much of an upload is held in memory before
// spilling to a temp file.
const multipartMemory = 32 << 20

// SessionResponse is a session summary with a status line.
type SessionResponse struct {
	core.SessionSummary
	Status  string          `json:"status"`
	Matches []profile.Match `json:"profile_matches,omitempty"`
}

// CutoffRequest sets one serial's start date.
type CutoffRequest struct {
	Serial string `json:"serial"`
	Start  string `json:"start"`
}

// CutoffsResponse lists a session's per-serial cutoffs.
type CutoffsResponse struct {
	Cutoffs []core.SerialCutoff `json:"cutoffs"`
	Removed *bool               `json:"removed,omitempty"`
}

// ConvertRequest is the body of a convert call. Unset fields fall back to
// the named profile, then to the server defaults.
type ConvertRequest struct {
	Mapping core.FieldMapping `json:"mapping"`
	Format  string            `json:"format"`
	Start   string            `json:"start"`
	Dedup   *bool             `json:"dedup"`
	Profile string            `json:"profile"`
}

// handleCreateSession loads an uploaded file into a new session.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondError(w, r, fmt.Errorf("%w: limit is %d bytes", errFileTooBig, maxSize))
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: %v", errBadForm, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, errNoFile)
		return
	}
	defer file.Close()

	sess, err := s.service.Open(r.Context(), header.Filename, file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	t := sess.Table()
	logging.ForSession(r.Context(), sess.ID).Info("session created",
		"file", header.Filename,
		"rows", t.Len(),
		"columns", len(t.Columns),
	)

	resp := SessionResponse{
		SessionSummary: sess.Summary(),
		Status:         core.LoadedStatus(t),
	}
	matches, err := s.profiles.Match(t.Columns)
	if err != nil {
		slog.Warn("profile match failed", "error", err)
	}
	resp.Matches = matches

	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.service.Sessions()
	out := make([]core.SessionSummary, len(sessions))
	for i, sess := range sessions {
		out[i] = sess.Summary()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{
		SessionSummary: sess.Summary(),
		Status:         sessionStatus(sess),
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CloseSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetCutoff(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req CutoffRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := sess.SetCutoff(req.Serial, req.Start); err != nil {
		s.respondError(w, r, err)
		return
	}
	s.service.RecordCutoffSet(r.Context(), sess.ID, req.Serial, req.Start)
	writeJSON(w, http.StatusOK, CutoffsResponse{Cutoffs: sess.Cutoffs()})
}

func (s *Server) handleClearCutoffs(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	sess.ClearCutoffs()
	s.service.RecordCutoffsClear(r.Context(), sess.ID)
	writeJSON(w, http.StatusOK, CutoffsResponse{Cutoffs: sess.Cutoffs()})
}

func (s *Server) handleRemoveCutoff(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	serial := chi.URLParam(r, "serial")
	removed := sess.RemoveCutoff(serial)
	if removed {
		s.service.RecordCutoffRemove(r.Context(), sess.ID, serial)
	}
	writeJSON(w, http.StatusOK, CutoffsResponse{Cutoffs: sess.Cutoffs(), Removed: &removed})
}

// handleConvert runs the pipeline on a session. A named profile supplies
// any field the request leaves empty and adds its per-serial cutoffs to the
// session.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var body ConvertRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.respondError(w, r, err)
		return
	}

	req, err := s.buildConvertRequest(sess, body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.service.Convert(r.Context(), sess.ID, req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.ForSession(r.Context(), sess.ID).Info("conversion complete",
		"rows_in", res.Stats.RowsIn,
		"rows_out", res.Stats.RowsOut,
		"rows_shifted", res.Stats.Shifted,
	)

	writeJSON(w, http.StatusOK, SessionResponse{
		SessionSummary: sess.Summary(),
		Status:         core.ConvertedStatus(res),
	})
}

func (s *Server) buildConvertRequest(sess *core.Session, body ConvertRequest) (core.ConvertRequest, error) {
	req := core.ConvertRequest{
		Mapping:       body.Mapping,
		TimeFormat:    strings.TrimSpace(body.Format),
		GlobalStart:   strings.TrimSpace(body.Start),
		FixDuplicates: s.cfg.Convert.FixDuplicates,
	}

	if name := strings.TrimSpace(body.Profile); name != "" {
		p, err := s.profiles.Load(name)
		if err != nil {
			return core.ConvertRequest{}, err
		}
		if req, err = p.Apply(req, sess); err != nil {
			return core.ConvertRequest{}, err
		}
	}

	if req.TimeFormat == "" {
		req.TimeFormat = s.cfg.Convert.TimeFormat
	}
	if body.Dedup != nil {
		req.FixDuplicates = *body.Dedup
	}
	return req, nil
}

// handlePreview renders the first rows of a session as an HTML table.
// Query: view=source|output, limit=N (capped by config).
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	limit := min(parseIntParam(r, "limit", s.cfg.Convert.PreviewRows), s.cfg.Convert.PreviewRows)
	preview, err := sess.Preview(r.URL.Query().Get("view"), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, preview)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = templates.PreviewTable(templates.PreviewParams{
		Title:   filepath.Base(preview.Source),
		Status:  preview.Status,
		Columns: preview.Columns,
		Rows:    preview.Rows,
		Total:   preview.Total,
	}).Render(r.Context(), w)
	if err != nil {
		slog.Error("render preview", "error", err)
	}
}

// handleExport streams the latest conversion as a CSV download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := sess.Exportable()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	filename := exportName(sess.Table().Source)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := core.WriteCanonical(w, res.Records); err != nil {
		// Headers are already sent.
		slog.Error("export write failed", "session_id", sess.ID, "error", err)
		return
	}
	s.service.RecordExport(r.Context(), sess.ID, filename, len(res.Records))
	logging.ForSession(r.Context(), sess.ID).Info(core.ExportedStatus(len(res.Records)), "file", filename)
}

// exportName derives the download name from the source file name.
func exportName(source string) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "export"
	}
	return base + "_converted.csv"
}

func sessionStatus(sess *core.Session) string {
	if res := sess.Result(); res != nil {
		return core.ConvertedStatus(res)
	}
	if t := sess.Table(); t != nil {
		return core.LoadedStatus(t)
	}
	return ""
}

// ValidateRequest asks which source cells would convert to empty fields.
// Unset mapping roles fall back to the profile, then to the suggested
// mapping for the session's header.
type ValidateRequest struct {
	Mapping core.FieldMapping `json:"mapping"`
	Format  string            `json:"format"`
	Profile string            `json:"profile"`
	Samples int               `json:"samples"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var body ValidateRequest
	if err := decodeJSON(w, r, &body); err != nil {
		s.respondError(w, r, err)
		return
	}

	mapping := body.Mapping
	format := strings.TrimSpace(body.Format)
	if name := strings.TrimSpace(body.Profile); name != "" {
		p, err := s.profiles.Load(name)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		mapping = mapping.Fill(p.Mapping)
		if format == "" {
			format = p.TimeFormat
		}
	}
	mapping = mapping.Fill(sess.Summary().Suggested)
	if format == "" {
		format = s.cfg.Convert.TimeFormat
	}

	report, err := sess.Validate(r.Context(), mapping, format, body.Samples)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
