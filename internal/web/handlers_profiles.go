package web

import (
	"net/http"
	"strings"

	"github.com/JonMunkholm/collarconv/internal/profile"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.profiles.List()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if profiles == nil {
		profiles = []profile.Profile{}
	}
	writeJSON(w, http.StatusOK, profiles)
}

// handleMatchProfiles scores saved profiles against a header, given either
// as ?columns=a,b,c or as the header of ?session=ID.
func (s *Server) handleMatchProfiles(w http.ResponseWriter, r *http.Request) {
	columns := parseListParam(r, "columns")
	if id := strings.TrimSpace(r.URL.Query().Get("session")); id != "" {
		sess, err := s.service.Session(id)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if t := sess.Table(); t != nil {
			columns = t.Columns
		}
	}
	if len(columns) == 0 {
		s.respondError(w, r, errNoColumns)
		return
	}

	matches, err := s.profiles.Match(columns)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if matches == nil {
		matches = []profile.Match{}
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Load(chi.URLParam(r, "name"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleSaveProfile creates or replaces a profile. When the body has no
// headers and ?session=ID is given, the session's header is stored.
func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	var p profile.Profile
	if err := decodeJSON(w, r, &p); err != nil {
		s.respondError(w, r, err)
		return
	}

	if id := strings.TrimSpace(r.URL.Query().Get("session")); id != "" && len(p.Headers) == 0 {
		sess, err := s.service.Session(id)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if t := sess.Table(); t != nil {
			p.Headers = t.Columns
		}
	}

	if err := s.profiles.Save(&p); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.profiles.Delete(chi.URLParam(r, "name")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
