package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ConvertTimeout is the maximum duration for one conversion.
var ConvertTimeout = 10 * time.Minute

// ServiceConfig tunes a Service.
type ServiceConfig struct {
	Load          LoadOptions
	MaxConcurrent int           // Parallel conversions
	MaxWait       time.Duration // How long a conversion waits for a slot
	MaxSessions   int           // Oldest idle session is evicted past this; 0 means unlimited
	AuditCapacity int           // Entries kept in the audit log
}

// Service owns the live sessions and bounds concurrent conversions.
type Service struct {
	cfg     ServiceConfig
	limiter *ConversionLimiter
	audit   *AuditLog

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService creates a new Service instance.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		cfg:      cfg,
		limiter:  NewConversionLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		audit:    NewAuditLog(cfg.AuditCapacity),
		sessions: make(map[string]*Session),
	}
}

// Limiter exposes the conversion limiter for status reporting.
func (s *Service) Limiter() *ConversionLimiter {
	return s.limiter
}

// Open loads a source from r into a new session.
func (s *Service) Open(ctx context.Context, name string, r io.Reader) (*Session, error) {
	t, err := LoadReader(ctx, r, name, s.cfg.Load)
	if err != nil {
		return nil, err
	}
	return s.register(ctx, t), nil
}

// OpenFile loads a source file from disk into a new session.
func (s *Service) OpenFile(ctx context.Context, path string) (*Session, error) {
	t, err := LoadFile(ctx, path, s.cfg.Load)
	if err != nil {
		return nil, err
	}
	return s.register(ctx, t), nil
}

func (s *Service) register(ctx context.Context, t *Table) *Session {
	sess := NewSession()
	sess.Load(t)

	s.mu.Lock()
	defer s.mu.Unlock()

	if limit := s.cfg.MaxSessions; limit > 0 && len(s.sessions) >= limit {
		s.evictOldestLocked(ctx)
	}
	s.sessions[sess.ID] = sess

	slog.Info("session opened",
		"session_id", sess.ID,
		"source", t.Source,
		"rows", t.Len(),
		"columns", len(t.Columns),
	)
	s.audit.Record(ctx, AuditLogParams{
		SessionID:    sess.ID,
		Action:       ActionLoad,
		Source:       t.Source,
		Detail:       LoadedStatus(t),
		RowsAffected: t.Len(),
	})
	return sess
}

func (s *Service) evictOldestLocked(ctx context.Context) {
	var oldest *Session
	for _, sess := range s.sessions {
		if oldest == nil || sess.LastUsed().Before(oldest.LastUsed()) {
			oldest = sess
		}
	}
	if oldest != nil {
		delete(s.sessions, oldest.ID)
		slog.Info("session evicted", "session_id", oldest.ID, "reason", "session limit")
		s.audit.Record(ctx, AuditLogParams{SessionID: oldest.ID, Action: ActionEvict, Detail: "session limit"})
	}
}

// Session returns a live session by ID.
func (s *Service) Session(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Sessions returns every live session, most recently used first.
func (s *Service) Sessions() []*Session {
	s.mu.RLock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUsed().After(out[j].LastUsed())
	})
	return out
}

// CloseSession discards a session.
func (s *Service) CloseSession(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.sessions[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	s.mu.Unlock()

	s.audit.Record(ctx, AuditLogParams{SessionID: id, Action: ActionClose})
	return nil
}

// Convert runs a conversion for a session, holding a limiter slot for its
// duration.
func (s *Service) Convert(ctx context.Context, id string, req ConvertRequest) (*ConvertResult, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, ConvertTimeout)
	defer cancel()

	res, err := sess.Convert(ctx, req)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, AuditLogParams{
		SessionID:    id,
		Action:       ActionConvert,
		Detail:       ConvertedStatus(res),
		RowsAffected: len(res.Records),
	})
	return res, nil
}

// SweepIdle removes sessions unused since before cutoff and returns how many
// were removed.
func (s *Service) SweepIdle(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.LastUsed().Before(cutoff) {
			delete(s.sessions, id)
			s.audit.Record(context.Background(), AuditLogParams{SessionID: id, Action: ActionEvict, Detail: "idle"})
			removed++
		}
	}
	return removed
}

// Shutdown waits for running conversions to finish.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.limiter.Drain(ctx)
}
