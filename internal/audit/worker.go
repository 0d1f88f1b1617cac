package audit

import (
	"context"
	"log/slog"

	"alibi/internal/domain"
)

// Worker drains a channel of audit events and persists them through a
// Service, so a caller on the ingestion hot path can hand off an audit
// line with a non-blocking send instead of waiting on the log store's
// fsync.
type Worker struct {
	service *Service
	inbox   <-chan domain.AuditEvent
	logger  *slog.Logger
}

func NewWorker(service *Service, inbox <-chan domain.AuditEvent, logger *slog.Logger) *Worker {
	return &Worker{service: service, inbox: inbox, logger: logger}
}

// Run processes events until ctx is canceled or inbox is closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-w.inbox:
			if !ok {
				return
			}
			if err := w.service.Emit(ctx, evt); err != nil {
				w.logger.ErrorContext(ctx, "audit worker failed to persist event", "error", err, "action", evt.Action)
			}
		}
	}
}
