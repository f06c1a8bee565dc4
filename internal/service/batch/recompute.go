package batch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/heartmarshall/laudo-backend/internal/domain"
	"github.com/heartmarshall/laudo-backend/pkg/ctxutil"
)

// Recompute re-derives the batch status from its assessments under the
// batch row lock. Re-running it for unchanged data yields the same status.
func (s *Service) Recompute(ctx context.Context, batchID int64) (domain.BatchStatus, error) {
	actor := ctxutil.ActorIDOr(ctx, domain.SystemActor)

	var status domain.BatchStatus
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		b, err := s.batches.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		b, err = s.recompute(ctx, b, actor)
		if err != nil {
			return err
		}
		status = b.Status
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("recompute batch %d: %w", batchID, err)
	}
	return status, nil
}

// recompute must run inside a transaction holding the lock on b. Only ACTIVE
// batches move; anything else is recorded as a no-op so status never regresses.
func (s *Service) recompute(ctx context.Context, b domain.Batch, actor string) (domain.Batch, error) {
	now := s.clock.Now()
	entry := domain.AuditEntry{
		BatchID:   b.ID,
		Actor:     actor,
		Action:    domain.AuditActionBatchRecomputed,
		Outcome:   domain.AuditOutcomeNoop,
		Details:   map[string]any{"old_status": string(b.Status), "new_status": string(b.Status)},
		CreatedAt: now,
	}

	if b.Status != domain.BatchStatusActive {
		return b, s.audit.Log(ctx, entry)
	}

	counts, err := s.assessments.CountByBatch(ctx, b.ID)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("count assessments: %w", err)
	}
	entry.Details["total"] = counts.Total
	entry.Details["completed"] = counts.Completed
	entry.Details["excluded"] = counts.Excluded

	switch {
	case counts.Active() == 0:
		entry.Outcome = domain.AuditOutcomeAnomaly
		s.log.WarnContext(ctx, "batch has no active assessments",
			slog.Int64("batch_id", b.ID),
			slog.Int("total", counts.Total),
			slog.Int("excluded", counts.Excluded),
		)
	case counts.AllActiveCompleted():
		ready, err := s.batches.MarkReady(ctx, b.ID, now)
		if err != nil {
			return domain.Batch{}, fmt.Errorf("mark ready: %w", err)
		}
		b = ready
		entry.Outcome = domain.AuditOutcomeSuccess
		entry.Details["new_status"] = string(b.Status)
		s.log.InfoContext(ctx, "batch ready", slog.Int64("batch_id", b.ID))
	}

	if err := s.audit.Log(ctx, entry); err != nil {
		return domain.Batch{}, err
	}
	return b, nil
}
