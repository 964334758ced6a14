package audit

import (
	"context"
	"log/slog"
)

// Worker consumes audit events from a channel and persists them. The engine
// publishes without blocking; a full inbox drops the event rather than
// stalling a scan.
type Worker struct {
	service *Service
	inbox   <-chan Event
	logger  *slog.Logger
}

func NewWorker(service *Service, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{service: service, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.service.Emit(ctx, event); err != nil {
				w.logger.WarnContext(ctx, "audit append failed",
					"type", string(event.Type),
					"scan_id", event.ScanID,
					"error", err,
				)
			}
		}
	}
}
