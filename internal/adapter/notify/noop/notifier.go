// Package noop is the notifier used when no stream is configured.
package noop

import (
	"context"
	"log/slog"

	"github.com/heartmarshall/laudo-backend/internal/domain"
)

type Notifier struct {
	log *slog.Logger
}

func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{log: logger.With("adapter", "notify-noop")}
}

func (n *Notifier) NotifyEmitted(ctx context.Context, event domain.EmittedEvent) error {
	n.log.DebugContext(ctx, "notification skipped", slog.Int64("batch_id", event.BatchID))
	return nil
}

func (n *Notifier) Close() error { return nil }
