package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/ntodo/ntodo/internal/tasks"
)

// Worker refreshes the task list in the background: once at startup, on a
// fixed interval to pick up edits made directly in Notion, and on demand
// through Notify. Mutation handlers already re-poll synchronously; the
// worker only covers external changes.
type Worker struct {
	service  *tasks.Service
	interval time.Duration
	logger   *slog.Logger
	notify   chan struct{}
}

// NewWorker creates a refresh worker polling at the given interval.
func NewWorker(service *tasks.Service, interval time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		service:  service,
		interval: interval,
		logger:   logger,
		notify:   make(chan struct{}, 1),
	}
}

// Notify schedules an immediate refresh. Non-blocking; if a refresh is
// already pending this is a no-op.
func (w *Worker) Notify() {
	select {
	case w.notify <- struct{}{}:
		w.logger.Debug("refresh worker notified")
	default:
		w.logger.Debug("refresh notification skipped (already pending)")
	}
}

// Start runs the worker until the context is canceled. This method blocks
// and should be called in a goroutine. A failed poll is logged and retried
// on the next cycle, never fatal.
func (w *Worker) Start(ctx context.Context) {
	w.logger.InfoContext(ctx, "refresh worker started", "interval", w.interval)

	w.refresh(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "refresh worker stopping")
			return
		case <-ticker.C:
			w.refresh(ctx)
		case <-w.notify:
			w.refresh(ctx)
		}
	}
}

// refresh performs one poll cycle.
func (w *Worker) refresh(ctx context.Context) {
	items, err := w.service.Poll(ctx)
	if err != nil {
		w.logger.WarnContext(ctx, "refresh failed", "error", err)
		return
	}
	w.logger.DebugContext(ctx, "refresh complete", "tasks", len(items))
}
