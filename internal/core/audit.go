package core

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditAction is the kind of session operation being recorded.
type AuditAction string

const (
	ActionLoad         AuditAction = "load"
	ActionCutoffSet    AuditAction = "cutoff_set"
	ActionCutoffRemove AuditAction = "cutoff_remove"
	ActionCutoffsClear AuditAction = "cutoffs_clear"
	ActionConvert      AuditAction = "convert"
	ActionExport       AuditAction = "export"
	ActionClose        AuditAction = "session_close"
	ActionEvict        AuditAction = "session_evict"
)

// AuditSeverity ranks entries for filtering.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

const (
	// DefaultAuditCapacity is how many entries the log keeps.
	DefaultAuditCapacity = 1000

	// DefaultHistoryLimit caps a single query.
	DefaultHistoryLimit = 100
)

// AuditEntry is one recorded operation.
type AuditEntry struct {
	ID           string        `json:"id"`
	SessionID    string        `json:"sessionId"`
	Action       AuditAction   `json:"action"`
	Severity     AuditSeverity `json:"severity"`
	Source       string        `json:"source,omitempty"`
	Detail       string        `json:"detail,omitempty"`
	RowsAffected int           `json:"rowsAffected,omitempty"`
	IPAddress    string        `json:"ipAddress,omitempty"`
	UserAgent    string        `json:"userAgent,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// AuditLogParams describes an entry to record. IP and user agent come from
// the context.
type AuditLogParams struct {
	SessionID    string
	Action       AuditAction
	Source       string
	Detail       string
	RowsAffected int
}

// determineSeverity returns the severity for an action.
func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionConvert, ActionExport:
		return SeverityMedium
	case ActionClose, ActionEvict:
		return SeverityHigh
	default:
		return SeverityLow
	}
}

// AuditLog is a bounded in-memory log of session operations. The oldest
// entries are overwritten once it is full. Safe for concurrent use.
type AuditLog struct {
	mu      sync.RWMutex
	entries []AuditEntry
	next    int
	full    bool
}

// NewAuditLog creates a log holding up to capacity entries.
func NewAuditLog(capacity int) *AuditLog {
	if capacity <= 0 {
		capacity = DefaultAuditCapacity
	}
	return &AuditLog{entries: make([]AuditEntry, capacity)}
}

// Record appends an entry and returns it.
func (l *AuditLog) Record(ctx context.Context, p AuditLogParams) AuditEntry {
	meta := RequestMetaFromContext(ctx)
	entry := AuditEntry{
		ID:           uuid.New().String(),
		SessionID:    p.SessionID,
		Action:       p.Action,
		Severity:     determineSeverity(p.Action),
		Source:       p.Source,
		Detail:       p.Detail,
		RowsAffected: p.RowsAffected,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		CreatedAt:    time.Now(),
	}

	l.mu.Lock()
	l.entries[l.next] = entry
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
	l.mu.Unlock()

	slog.Debug("audit",
		"session_id", entry.SessionID,
		"action", entry.Action,
		"rows", entry.RowsAffected,
	)
	return entry
}

// Len returns the number of entries held.
func (l *AuditLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.full {
		return len(l.entries)
	}
	return l.next
}

// AuditLogFilter narrows a query. Zero fields match everything.
type AuditLogFilter struct {
	SessionID string
	Action    AuditAction
	Since     time.Time
	Limit     int
	Offset    int
}

func (f AuditLogFilter) matches(e AuditEntry) bool {
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

// Entries returns matching entries, newest first.
func (l *AuditLog) Entries(filter AuditLogFilter) []AuditEntry {
	if filter.Limit <= 0 {
		filter.Limit = DefaultHistoryLimit
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	n := l.next
	if l.full {
		n = len(l.entries)
	}

	out := make([]AuditEntry, 0, min(filter.Limit, n))
	skipped := 0
	for i := 1; i <= n && len(out) < filter.Limit; i++ {
		e := l.entries[(l.next-i+len(l.entries))%len(l.entries)]
		if !filter.matches(e) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, e)
	}
	return out
}
