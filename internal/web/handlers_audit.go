package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/collarconv/internal/core"
	"github.com/go-chi/chi/v5"
)

// handleSessionHistory lists one session's operations, newest first. The
// history outlives the session so closed and evicted sessions can still be
// looked up.
func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", core.DefaultHistoryLimit)
	entries := s.service.SessionHistory(chi.URLParam(r, "id"), limit)
	writeJSON(w, http.StatusOK, entries)
}

// handleAuditLog lists operations across sessions.
// Query: session, action, since (RFC 3339), limit, offset.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.AuditLogFilter{
		SessionID: q.Get("session"),
		Action:    core.AuditAction(q.Get("action")),
		Limit:     parseIntParam(r, "limit", core.DefaultHistoryLimit),
		Offset:    parseIntParam(r, "offset", 0),
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			s.respondError(w, r, fmt.Errorf("%w: since must be RFC 3339: %v", errBadQuery, err))
			return
		}
		filter.Since = t
	}
	writeJSON(w, http.StatusOK, s.service.GetAuditLog(filter))
}
