// Package audit records operator, supervisor and admin actions for
// accountability: logins, password resets, decisions, settings changes and
// dispatch approvals all go through a Service so there is one place that
// knows how an AuditEvent gets timestamped and persisted.
package audit

import (
	"context"
	"time"

	"alibi/internal/domain"
)

// Recorder is the persistence side a Service needs. *logstore.Store
// satisfies this directly.
type Recorder interface {
	AppendAudit(domain.AuditEvent) error
}

// Service emits audit events synchronously through a Recorder, and mirrors
// them to Postgres when one is configured.
type Service struct {
	recorder Recorder
	mirror   *PostgresMirror
}

func NewService(recorder Recorder, mirror *PostgresMirror) *Service {
	return &Service{recorder: recorder, mirror: mirror}
}

// Emit persists one audit line, stamping the timestamp if the caller left
// it zero. The JSONL log store is written first and is authoritative; a
// Postgres mirror failure is discarded (neither returned nor logged), since
// losing the mirror must never block the audit trail itself.
func (s *Service) Emit(ctx context.Context, evt domain.AuditEvent) error {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if err := s.recorder.AppendAudit(evt); err != nil {
		return err
	}
	_ = s.mirror.Append(ctx, evt)
	return nil
}

// Log is a convenience wrapper for the common case of a single actor,
// action, target and detail string.
func (s *Service) Log(ctx context.Context, actorUsername, action, targetID, detail string) error {
	return s.Emit(ctx, domain.AuditEvent{
		ActorUsername: actorUsername,
		Action:        action,
		TargetID:      targetID,
		Detail:        detail,
	})
}
