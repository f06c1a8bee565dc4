package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/heartmarshall/laudo-backend/internal/domain"
	"github.com/heartmarshall/laudo-backend/pkg/ctxutil"
)

// StartAssessment records that the employee opened the questionnaire.
func (s *Service) StartAssessment(ctx context.Context, assessmentID int64) (AssessmentResult, error) {
	return s.updateAssessment(ctx, assessmentID, "start_assessment", false,
		func(ctx context.Context, _ time.Time) (domain.Assessment, domain.AuditEntry, error) {
			a, err := s.assessments.Start(ctx, assessmentID)
			return a, domain.AuditEntry{Action: domain.AuditActionAssessmentStarted}, err
		})
}

// CompleteAssessment stores the scores and recomputes the batch.
func (s *Service) CompleteAssessment(ctx context.Context, input CompleteInput) (AssessmentResult, error) {
	if err := input.Validate(); err != nil {
		return AssessmentResult{}, err
	}
	return s.updateAssessment(ctx, input.AssessmentID, "complete_assessment", true,
		func(ctx context.Context, now time.Time) (domain.Assessment, domain.AuditEntry, error) {
			a, err := s.assessments.Complete(ctx, input.AssessmentID, input.Scores, now)
			return a, domain.AuditEntry{
				Action:  domain.AuditActionAssessmentCompleted,
				Details: map[string]any{"dimensions": len(input.Scores)},
			}, err
		})
}

// ExcludeAssessment removes the assessment from the batch denominator and
// recomputes the batch.
func (s *Service) ExcludeAssessment(ctx context.Context, input ExcludeInput) (AssessmentResult, error) {
	if err := input.Validate(); err != nil {
		return AssessmentResult{}, err
	}
	reason := strings.TrimSpace(input.Reason)
	return s.updateAssessment(ctx, input.AssessmentID, "exclude_assessment", true,
		func(ctx context.Context, now time.Time) (domain.Assessment, domain.AuditEntry, error) {
			a, err := s.assessments.Exclude(ctx, input.AssessmentID, reason, now)
			return a, domain.AuditEntry{
				Action:  domain.AuditActionAssessmentExcluded,
				Details: map[string]any{"reason": reason},
			}, err
		})
}

type assessmentMutation func(ctx context.Context, now time.Time) (domain.Assessment, domain.AuditEntry, error)

func (s *Service) updateAssessment(ctx context.Context, assessmentID int64, op string, recompute bool, mutate assessmentMutation) (AssessmentResult, error) {
	actor := ctxutil.ActorIDOr(ctx, domain.SystemActor)
	now := s.clock.Now()

	current, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		return AssessmentResult{}, err
	}
	batchID := current.BatchID

	var (
		result      AssessmentResult
		becameReady bool
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		b, err := s.batches.GetForUpdate(ctx, batchID)
		if err != nil {
			return err
		}
		if err := s.guard.Check(ctx, b.ID, op); err != nil {
			return err
		}
		if b.Status != domain.BatchStatusActive && b.Status != domain.BatchStatusReady {
			return fmt.Errorf("%s: batch %d is %s: %w", op, b.ID, b.Status, domain.ErrConflict)
		}

		updated, entry, err := mutate(ctx, now)
		if err != nil {
			return fmt.Errorf("%s %d: %w", op, assessmentID, err)
		}
		entry.BatchID = b.ID
		entry.Actor = actor
		entry.Outcome = domain.AuditOutcomeSuccess
		entry.CreatedAt = now
		if entry.Details == nil {
			entry.Details = map[string]any{}
		}
		entry.Details["assessment_id"] = assessmentID
		if err := s.audit.Log(ctx, entry); err != nil {
			return err
		}

		if recompute {
			before := b.Status
			if b, err = s.recompute(ctx, b, actor); err != nil {
				return err
			}
			becameReady = before != domain.BatchStatusReady && b.Status == domain.BatchStatusReady
		}
		result = AssessmentResult{Assessment: updated, Batch: b}
		return nil
	})
	if err != nil {
		return AssessmentResult{}, s.guard.Reject(ctx, batchID, actor, op, err)
	}

	if becameReady {
		// The assessment write is committed; a scheduling failure leaves the
		// batch READY and unscheduled, where monitoring and revalidate see it.
		scheduled, err := s.scheduler.ScheduleIfEligible(ctx, batchID)
		if err != nil {
			s.log.ErrorContext(ctx, "schedule after ready failed",
				slog.Int64("batch_id", batchID),
				slog.String("error", err.Error()),
			)
		} else {
			result.Batch = scheduled
		}
	}

	return result, nil
}
