package emission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/laudo-backend/internal/domain"
)

// Scheduler decides when a READY batch is handed to the worker.
type Scheduler struct {
	log       *slog.Logger
	batches   batchRepo
	reports   reportRepo
	audit     auditRepo
	validator validator
	tx        txManager
	clock     clockwork.Clock
	grace     time.Duration
	cooldown  time.Duration
}

// NewScheduler creates a scheduler. grace delays the first automatic attempt
// after READY; cooldown spaces accepted manual reprocess requests.
func NewScheduler(
	log *slog.Logger,
	batches batchRepo,
	reports reportRepo,
	audit auditRepo,
	validator validator,
	tx txManager,
	clock clockwork.Clock,
	grace, cooldown time.Duration,
) *Scheduler {
	return &Scheduler{
		log:       log.With("service", "scheduler"),
		batches:   batches,
		reports:   reports,
		audit:     audit,
		validator: validator,
		tx:        tx,
		clock:     clock,
		grace:     grace,
		cooldown:  cooldown,
	}
}

// ScheduleIfEligible sets scheduled_emit_at = now + grace for a READY,
// unscheduled batch whose readiness has no blocking reason. A blocked batch
// stays READY without a schedule and the reasons are audited.
func (s *Scheduler) ScheduleIfEligible(ctx context.Context, batchID int64) (domain.Batch, error) {
	now := s.clock.Now()

	var result domain.Batch
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		b, err := s.batches.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		result = b
		if b.Status != domain.BatchStatusReady || b.ScheduledEmitAt != nil {
			return nil
		}

		report, _, err := s.validator.Inspect(ctx, b)
		if err != nil {
			return err
		}

		entry := domain.AuditEntry{
			BatchID:   b.ID,
			Actor:     domain.SystemActor,
			Action:    domain.AuditActionEmissionScheduled,
			CreatedAt: now,
		}

		if report.Blocking {
			entry.Outcome = domain.AuditOutcomeBlocked
			entry.Details = map[string]any{
				"reasons":              reasonsDetail(report.BlockingReasons()),
				"pending_member_count": report.PendingMemberCount,
			}
			s.log.InfoContext(ctx, "batch ready but blocked",
				slog.Int64("batch_id", b.ID),
				slog.Int("pending_members", report.PendingMemberCount),
			)
			return s.audit.Log(ctx, entry)
		}

		at := now.Add(s.grace)
		result, err = s.batches.SetSchedule(ctx, b.ID, &at)
		if err != nil {
			return fmt.Errorf("set schedule: %w", err)
		}

		entry.Outcome = domain.AuditOutcomeSuccess
		entry.Details = map[string]any{"scheduled_emit_at": at}
		if warnings := report.Warnings(); len(warnings) > 0 {
			entry.Outcome = domain.AuditOutcomeWarning
			entry.Details["warnings"] = reasonsDetail(warnings)
		}
		return s.audit.Log(ctx, entry)
	})
	if err != nil {
		return domain.Batch{}, fmt.Errorf("schedule batch %d: %w", batchID, err)
	}

	if result.ScheduledEmitAt != nil {
		s.log.InfoContext(ctx, "emission scheduled",
			slog.Int64("batch_id", batchID),
			slog.Time("scheduled_emit_at", *result.ScheduledEmitAt),
		)
	}
	return result, nil
}

// ReprocessResult is the accepted outcome of a manual reprocess request.
type ReprocessResult struct {
	Batch       domain.Batch
	ScheduledAt time.Time
}

// RequestManualReprocess puts a READY batch back in the queue for immediate
// emission. Rejections are audited and returned as typed errors: SENT and
// already emitted batches yield ErrAlreadySent / ErrAlreadyEmitted, blocked
// batches *ValidationBlockedError, a request inside the cooldown after an
// accepted one *RateLimitedError.
func (s *Scheduler) RequestManualReprocess(ctx context.Context, batchID int64, actor string) (ReprocessResult, error) {
	now := s.clock.Now()

	var (
		result   ReprocessResult
		rejected error
	)
	// Rejections commit their audit entry, so the function returns nil and
	// hands the rejection back through the closure.
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		b, err := s.batches.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}

		entry := domain.AuditEntry{
			BatchID:   b.ID,
			Actor:     actor,
			Action:    domain.AuditActionReprocessRequested,
			Outcome:   domain.AuditOutcomeRejected,
			Details:   map[string]any{"status": string(b.Status)},
			CreatedAt: now,
		}
		reject := func(outcome domain.AuditOutcome, cause error) error {
			entry.Outcome = outcome
			entry.Details["error"] = cause.Error()
			rejected = cause
			return s.audit.Log(ctx, entry)
		}

		if b.Status == domain.BatchStatusSent {
			return reject(domain.AuditOutcomeRejected, fmt.Errorf("batch %d: %w", b.ID, domain.ErrAlreadySent))
		}
		exists, err := s.reports.ExistsForBatch(ctx, b.ID)
		if err != nil {
			return err
		}
		if exists || b.Status == domain.BatchStatusEmitted {
			return reject(domain.AuditOutcomeRejected, fmt.Errorf("batch %d: %w", b.ID, domain.ErrAlreadyEmitted))
		}
		if b.Status != domain.BatchStatusReady {
			return reject(domain.AuditOutcomeRejected, fmt.Errorf("batch %d: %w", b.ID, &domain.TransitionError{From: b.Status, To: domain.BatchStatusEmitting}))
		}

		report, _, err := s.validator.Inspect(ctx, b)
		if err != nil {
			return err
		}
		if report.Blocking {
			entry.Details["reasons"] = reasonsDetail(report.BlockingReasons())
			return reject(domain.AuditOutcomeBlocked, &domain.ValidationBlockedError{BatchID: b.ID, Reasons: report.BlockingReasons()})
		}

		last, err := s.audit.LastAt(ctx, b.ID, domain.AuditActionReprocessRequested, domain.AuditOutcomeAccepted)
		if err != nil {
			return fmt.Errorf("last accepted reprocess: %w", err)
		}
		if last != nil {
			if elapsed := now.Sub(*last); elapsed < s.cooldown {
				entry.Details["last_accepted_at"] = *last
				return reject(domain.AuditOutcomeRateLimited, &domain.RateLimitedError{BatchID: b.ID, RetryAfter: s.cooldown - elapsed})
			}
		}

		scheduled, err := s.batches.SetSchedule(ctx, b.ID, &now)
		if err != nil {
			return fmt.Errorf("set schedule: %w", err)
		}
		result = ReprocessResult{Batch: scheduled, ScheduledAt: now}

		entry.Outcome = domain.AuditOutcomeAccepted
		entry.Details["scheduled_emit_at"] = now
		return s.audit.Log(ctx, entry)
	})
	if err != nil {
		return ReprocessResult{}, fmt.Errorf("reprocess batch %d: %w", batchID, err)
	}
	if rejected != nil {
		level := slog.LevelInfo
		if errors.Is(rejected, domain.ErrRateLimited) {
			level = slog.LevelWarn
		}
		s.log.Log(ctx, level, "reprocess rejected",
			slog.Int64("batch_id", batchID),
			slog.String("actor", actor),
			slog.String("reason", rejected.Error()),
		)
		return ReprocessResult{}, rejected
	}

	s.log.InfoContext(ctx, "reprocess accepted",
		slog.Int64("batch_id", batchID),
		slog.String("actor", actor),
	)
	return result, nil
}
