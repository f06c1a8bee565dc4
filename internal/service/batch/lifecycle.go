package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/heartmarshall/laudo-backend/internal/domain"
	"github.com/heartmarshall/laudo-backend/pkg/ctxutil"
)

// Create opens a DRAFT batch with the next order index of the owner.
func (s *Service) Create(ctx context.Context, input CreateInput) (domain.Batch, error) {
	if err := input.Validate(); err != nil {
		return domain.Batch{}, err
	}
	actor := ctxutil.ActorIDOr(ctx, domain.SystemActor)
	now := s.clock.Now()

	var created domain.Batch
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		b, err := s.batches.Create(ctx, input.Owner, now)
		if err != nil {
			return fmt.Errorf("create batch: %w", err)
		}
		created = b

		return s.audit.Log(ctx, domain.AuditEntry{
			BatchID: b.ID,
			Actor:   actor,
			Action:  domain.AuditActionBatchCreated,
			Outcome: domain.AuditOutcomeSuccess,
			Details: map[string]any{
				"code":        b.Code,
				"order_index": b.OrderIndex,
				"owner":       input.Owner.String(),
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		return domain.Batch{}, err
	}

	s.log.InfoContext(ctx, "batch created",
		slog.Int64("batch_id", created.ID),
		slog.String("code", created.Code),
	)
	return created, nil
}

// Release moves a DRAFT batch to ACTIVE and opens one assessment per employee.
func (s *Service) Release(ctx context.Context, input ReleaseInput) (ReleaseResult, error) {
	if err := input.Validate(); err != nil {
		return ReleaseResult{}, err
	}
	const op = "release"
	actor := ctxutil.ActorIDOr(ctx, domain.SystemActor)
	now := s.clock.Now()
	refs := normalizeRefs(input.EmployeeRefs)

	var result ReleaseResult
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		b, err := s.batches.GetForUpdate(ctx, input.BatchID)
		if err != nil {
			return err
		}
		if err := s.guard.Check(ctx, b.ID, op); err != nil {
			return err
		}
		if err := domain.Transition(b.Status, domain.BatchStatusActive); err != nil {
			return fmt.Errorf("release batch %d: %w", b.ID, err)
		}

		released, err := s.batches.Release(ctx, b.ID, now)
		if err != nil {
			return fmt.Errorf("release batch %d: %w", b.ID, err)
		}
		assessments, err := s.assessments.CreateMany(ctx, b.ID, refs, now)
		if err != nil {
			return fmt.Errorf("open assessments of batch %d: %w", b.ID, err)
		}
		result = ReleaseResult{Batch: released, Assessments: assessments}

		return s.audit.Log(ctx, domain.AuditEntry{
			BatchID:   b.ID,
			Actor:     actor,
			Action:    domain.AuditActionBatchReleased,
			Outcome:   domain.AuditOutcomeSuccess,
			Details:   map[string]any{"assessments": len(assessments)},
			CreatedAt: now,
		})
	})
	if err != nil {
		return ReleaseResult{}, s.guard.Reject(ctx, input.BatchID, actor, op, err)
	}

	s.log.InfoContext(ctx, "batch released",
		slog.Int64("batch_id", result.Batch.ID),
		slog.Int("assessments", len(result.Assessments)),
	)
	return result, nil
}

// Cancel moves a DRAFT, ACTIVE or READY batch to CANCELLED.
func (s *Service) Cancel(ctx context.Context, input CancelInput) (domain.Batch, error) {
	if err := input.Validate(); err != nil {
		return domain.Batch{}, err
	}
	const op = "cancel"
	actor := ctxutil.ActorIDOr(ctx, domain.SystemActor)
	now := s.clock.Now()

	var cancelled domain.Batch
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		b, err := s.batches.GetForUpdate(ctx, input.BatchID)
		if err != nil {
			return err
		}
		if err := s.guard.Check(ctx, b.ID, op); err != nil {
			return err
		}
		if err := domain.Transition(b.Status, domain.BatchStatusCancelled); err != nil {
			return fmt.Errorf("cancel batch %d: %w", b.ID, err)
		}

		cancelled, err = s.batches.Cancel(ctx, b.ID, now)
		if err != nil {
			return fmt.Errorf("cancel batch %d: %w", b.ID, err)
		}

		return s.audit.Log(ctx, domain.AuditEntry{
			BatchID: b.ID,
			Actor:   actor,
			Action:  domain.AuditActionBatchCancelled,
			Outcome: domain.AuditOutcomeSuccess,
			Details: map[string]any{
				"old_status": string(b.Status),
				"reason":     strings.TrimSpace(input.Reason),
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		return domain.Batch{}, s.guard.Reject(ctx, input.BatchID, actor, op, err)
	}

	s.log.InfoContext(ctx, "batch cancelled", slog.Int64("batch_id", cancelled.ID))
	return cancelled, nil
}

// MarkSent records delivery of an emitted report. It is the only write the
// immutability rules admit once a report exists.
func (s *Service) MarkSent(ctx context.Context, batchID int64) (domain.Report, error) {
	actor := ctxutil.ActorIDOr(ctx, domain.SystemActor)
	now := s.clock.Now()

	var sent domain.Report
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		b, err := s.batches.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		switch b.Status {
		case domain.BatchStatusEmitted:
		case domain.BatchStatusSent:
			return fmt.Errorf("batch %d: %w", batchID, domain.ErrAlreadySent)
		default:
			return fmt.Errorf("mark batch %d sent: %w", batchID, domain.Transition(b.Status, domain.BatchStatusSent))
		}

		sent, err = s.reports.MarkSent(ctx, batchID, now)
		if err != nil {
			return fmt.Errorf("mark report of batch %d sent: %w", batchID, err)
		}
		if _, err := s.batches.MarkSent(ctx, batchID, now); err != nil {
			return fmt.Errorf("mark batch %d sent: %w", batchID, err)
		}

		return s.audit.Log(ctx, domain.AuditEntry{
			BatchID:   batchID,
			Actor:     actor,
			Action:    domain.AuditActionReportSent,
			Outcome:   domain.AuditOutcomeSuccess,
			Details:   map[string]any{"report_id": sent.ID},
			CreatedAt: now,
		})
	})
	if err != nil {
		return domain.Report{}, err
	}

	s.log.InfoContext(ctx, "report sent",
		slog.Int64("batch_id", batchID),
		slog.Int64("report_id", sent.ID),
	)
	return sent, nil
}

// Revalidate recomputes the batch and schedules it when it is READY without
// a schedule, e.g. after coverage that blocked it has been fixed.
func (s *Service) Revalidate(ctx context.Context, batchID int64) (domain.Batch, error) {
	if _, err := s.Recompute(ctx, batchID); err != nil {
		return domain.Batch{}, err
	}

	b, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return domain.Batch{}, err
	}
	if b.Status != domain.BatchStatusReady || b.ScheduledEmitAt != nil {
		return b, nil
	}
	return s.scheduler.ScheduleIfEligible(ctx, batchID)
}
