// Package batch owns every mutation of batches and assessments and keeps
// batch status in step with assessment progress.
package batch

import (
	"context"
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
	GetForUpdate(ctx context.Context, id int64) (domain.Batch, error)
	Create(ctx context.Context, owner domain.Owner, now time.Time) (domain.Batch, error)
	Release(ctx context.Context, id int64, at time.Time) (domain.Batch, error)
	MarkReady(ctx context.Context, id int64, at time.Time) (domain.Batch, error)
	MarkSent(ctx context.Context, id int64, at time.Time) (domain.Batch, error)
	Cancel(ctx context.Context, id int64, at time.Time) (domain.Batch, error)
}

type assessmentRepo interface {
	GetByID(ctx context.Context, id int64) (domain.Assessment, error)
	CountByBatch(ctx context.Context, batchID int64) (domain.StatusCounts, error)
	CreateMany(ctx context.Context, batchID int64, employeeRefs []string, startedAt time.Time) ([]domain.Assessment, error)
	Start(ctx context.Context, id int64) (domain.Assessment, error)
	Complete(ctx context.Context, id int64, scores map[string]float64, at time.Time) (domain.Assessment, error)
	Exclude(ctx context.Context, id int64, reason string, at time.Time) (domain.Assessment, error)
}

type reportRepo interface {
	MarkSent(ctx context.Context, batchID int64, at time.Time) (domain.Report, error)
}

type auditRepo interface {
	Log(ctx context.Context, entry domain.AuditEntry) error
}

type immutabilityGuard interface {
	Check(ctx context.Context, batchID int64, operation string) error
	Reject(ctx context.Context, batchID int64, actor, operation string, err error) error
}

type emissionScheduler interface {
	ScheduleIfEligible(ctx context.Context, batchID int64) (domain.Batch, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service is the batch state tracker and the single entry point for batch
// and assessment writes.
type Service struct {
	log         *slog.Logger
	batches     batchRepo
	assessments assessmentRepo
	reports     reportRepo
	audit       auditRepo
	guard       immutabilityGuard
	scheduler   emissionScheduler
	tx          txManager
	clock       clockwork.Clock
}

// NewService creates a batch service.
func NewService(
	log *slog.Logger,
	batches batchRepo,
	assessments assessmentRepo,
	reports reportRepo,
	audit auditRepo,
	guard immutabilityGuard,
	scheduler emissionScheduler,
	tx txManager,
	clock clockwork.Clock,
) *Service {
	return &Service{
		log:         log.With("service", "batch"),
		batches:     batches,
		assessments: assessments,
		reports:     reports,
		audit:       audit,
		guard:       guard,
		scheduler:   scheduler,
		tx:          tx,
		clock:       clock,
	}
}

// GetBatch returns a batch by id.
func (s *Service) GetBatch(ctx context.Context, id int64) (domain.Batch, error) {
	return s.batches.GetByID(ctx, id)
}
