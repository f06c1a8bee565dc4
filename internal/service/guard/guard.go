// Package guard rejects mutations of batches that already have a report.
//
// The database triggers raise the same violation, so a write that slips past
// Check still fails; both paths end in Reject.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/laudo-backend/internal/domain"
)

type reportRepo interface {
	ExistsForBatch(ctx context.Context, batchID int64) (bool, error)
}

type auditRepo interface {
	Log(ctx context.Context, entry domain.AuditEntry) error
}

// Guard is the immutability pre-condition shared by every mutation entry point.
type Guard struct {
	log     *slog.Logger
	reports reportRepo
	audit   auditRepo
	clock   clockwork.Clock
}

func New(log *slog.Logger, reports reportRepo, audit auditRepo, clock clockwork.Clock) *Guard {
	return &Guard{
		log:     log.With("service", "guard"),
		reports: reports,
		audit:   audit,
		clock:   clock,
	}
}

// Check fails with *domain.ImmutabilityViolationError when a report exists
// for the batch. Call it inside the transaction that holds the batch lock.
func (g *Guard) Check(ctx context.Context, batchID int64, operation string) error {
	exists, err := g.reports.ExistsForBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("immutability check for batch %d: %w", batchID, err)
	}
	if exists {
		return &domain.ImmutabilityViolationError{BatchID: batchID, Operation: operation}
	}
	return nil
}

// Reject records a violation after the failed transaction has rolled back and
// returns the error to hand back to the caller. Errors that are not
// violations pass through untouched.
func (g *Guard) Reject(ctx context.Context, batchID int64, actor, operation string, err error) error {
	if !errors.Is(err, domain.ErrImmutable) {
		return err
	}

	var violation *domain.ImmutabilityViolationError
	if !errors.As(err, &violation) {
		// Raised by a trigger rather than by Check.
		violation = &domain.ImmutabilityViolationError{BatchID: batchID, Operation: operation}
		err = fmt.Errorf("%w: %w", violation, err)
	}

	g.log.ErrorContext(ctx, "immutability violation",
		slog.Int64("batch_id", batchID),
		slog.String("operation", operation),
		slog.String("actor", actor),
		slog.String("error", err.Error()),
	)

	auditErr := g.audit.Log(context.WithoutCancel(ctx), domain.AuditEntry{
		BatchID:   batchID,
		Actor:     actor,
		Action:    domain.AuditActionImmutabilityViolation,
		Outcome:   domain.AuditOutcomeRejected,
		Details:   map[string]any{"operation": operation, "error": err.Error()},
		CreatedAt: g.clock.Now(),
	})
	if auditErr != nil {
		return errors.Join(err, fmt.Errorf("audit violation: %w", auditErr))
	}
	return err
}
