// Package monitoring serves the read-only operator queries: batches pending
// emission or delivery, the audit trail of a batch and stored report hashes.
package monitoring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/laudo-backend/internal/domain"
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type batchRepo interface {
	GetByID(ctx context.Context, id int64) (domain.Batch, error)
	ListPending(ctx context.Context, filter domain.PendingFilter, now time.Time) ([]domain.PendingBatch, error)
}

type reportRepo interface {
	GetByID(ctx context.Context, id int64) (domain.Report, error)
}

type auditRepo interface {
	Query(ctx context.Context, batchID int64, filter domain.AuditFilter) ([]domain.AuditEntry, error)
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

const (
	maxPendingLimit = 500
	maxAuditLimit   = 1000
)

type Service struct {
	log     *slog.Logger
	batches batchRepo
	reports reportRepo
	audit   auditRepo
	clock   clockwork.Clock
}

func NewService(log *slog.Logger, batches batchRepo, reports reportRepo, audit auditRepo, clock clockwork.Clock) *Service {
	return &Service{
		log:     log.With("service", "monitoring"),
		batches: batches,
		reports: reports,
		audit:   audit,
		clock:   clock,
	}
}

// Pending lists batches waiting on emission or delivery, oldest first.
func (s *Service) Pending(ctx context.Context, filter domain.PendingFilter) ([]domain.PendingBatch, error) {
	var errs []domain.FieldError
	if filter.Stage != nil && !filter.Stage.IsValid() {
		errs = append(errs, domain.FieldError{Field: "stage", Message: "unknown stage"})
	}
	if filter.Owner != nil {
		if err := filter.Owner.Validate(); err != nil {
			errs = append(errs, domain.FieldError{Field: "owner", Message: err.Error()})
		}
	}
	if filter.Limit < 0 || filter.Limit > maxPendingLimit {
		errs = append(errs, domain.FieldError{Field: "limit", Message: "must be between 0 and 500"})
	}
	if len(errs) > 0 {
		return nil, &domain.ValidationError{Errors: errs}
	}

	pending, err := s.batches.ListPending(ctx, filter, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return pending, nil
}

// AuditTrail returns the audit entries of an existing batch, newest first.
func (s *Service) AuditTrail(ctx context.Context, batchID int64, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	if filter.Limit < 0 || filter.Limit > maxAuditLimit {
		return nil, domain.NewValidationError("limit", "must be between 0 and 1000")
	}
	if filter.Action != nil && !filter.Action.IsValid() {
		return nil, domain.NewValidationError("action", "unknown action")
	}
	if filter.Outcome != nil && !filter.Outcome.IsValid() {
		return nil, domain.NewValidationError("outcome", "unknown outcome")
	}
	if _, err := s.batches.GetByID(ctx, batchID); err != nil {
		return nil, err
	}
	return s.audit.Query(ctx, batchID, filter)
}

// ReportHash is the stored integrity record of a report.
type ReportHash struct {
	ReportID    int64
	BatchID     int64
	ContentHash string
	Status      domain.ReportStatus
	EmittedAt   time.Time
}

// ReportHash returns the content hash recorded at emission. The artifact is
// never re-read or re-hashed here.
func (s *Service) ReportHash(ctx context.Context, reportID int64) (ReportHash, error) {
	rep, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return ReportHash{}, err
	}
	return ReportHash{
		ReportID:    rep.ID,
		BatchID:     rep.BatchID,
		ContentHash: rep.ContentHash,
		Status:      rep.Status,
		EmittedAt:   rep.EmittedAt,
	}, nil
}
