package core

import (
	"context"
	"fmt"
)

// LogAudit records an operation in the service's audit log.
func (s *Service) LogAudit(ctx context.Context, params AuditLogParams) AuditEntry {
	return s.audit.Record(ctx, params)
}

// GetAuditLog returns audit entries matching filter, newest first.
func (s *Service) GetAuditLog(filter AuditLogFilter) []AuditEntry {
	return s.audit.Entries(filter)
}

// SessionHistory returns the entries for one session, newest first.
func (s *Service) SessionHistory(id string, limit int) []AuditEntry {
	return s.audit.Entries(AuditLogFilter{SessionID: id, Limit: limit})
}

// RecordCutoffSet logs a per-serial cutoff change.
func (s *Service) RecordCutoffSet(ctx context.Context, sessionID, serial, start string) {
	s.LogAudit(ctx, AuditLogParams{
		SessionID: sessionID,
		Action:    ActionCutoffSet,
		Detail:    fmt.Sprintf("%s from %s", serial, start),
	})
}

// RecordCutoffRemove logs the removal of one serial's cutoff.
func (s *Service) RecordCutoffRemove(ctx context.Context, sessionID, serial string) {
	s.LogAudit(ctx, AuditLogParams{
		SessionID: sessionID,
		Action:    ActionCutoffRemove,
		Detail:    serial,
	})
}

// RecordCutoffsClear logs clearing every per-serial cutoff.
func (s *Service) RecordCutoffsClear(ctx context.Context, sessionID string) {
	s.LogAudit(ctx, AuditLogParams{SessionID: sessionID, Action: ActionCutoffsClear})
}

// RecordExport logs a download or file export of a session's result.
func (s *Service) RecordExport(ctx context.Context, sessionID, target string, rows int) {
	s.LogAudit(ctx, AuditLogParams{
		SessionID:    sessionID,
		Action:       ActionExport,
		Detail:       target,
		RowsAffected: rows,
	})
}
