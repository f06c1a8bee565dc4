// Package emission schedules batches for emission, claims due batches and
// turns each claimed batch into exactly one stored, hashed report.
package emission

import (
	"context"
	"time"

	"github.com/heartmarshall/laudo-backend/internal/domain"
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type batchRepo interface {
	GetByID(ctx context.Context, id int64) (domain.Batch, error)
	GetForUpdate(ctx context.Context, id int64) (domain.Batch, error)
	SetSchedule(ctx context.Context, id int64, at *time.Time) (domain.Batch, error)
	Claim(ctx context.Context, id int64, at time.Time) (domain.Batch, error)
	ReleaseClaim(ctx context.Context, id int64, clearSchedule bool) (domain.Batch, error)
	MarkEmitted(ctx context.Context, id int64, at time.Time) (domain.Batch, error)
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.Batch, error)
	RecoverStale(ctx context.Context, cutoff time.Time) ([]domain.Batch, error)
}

type reportRepo interface {
	NextID(ctx context.Context) (int64, error)
	Create(ctx context.Context, rep domain.Report) (domain.Report, error)
	ExistsForBatch(ctx context.Context, batchID int64) (bool, error)
}

type auditRepo interface {
	Log(ctx context.Context, entry domain.AuditEntry) error
	LastAt(ctx context.Context, batchID int64, action domain.AuditAction, outcome domain.AuditOutcome) (*time.Time, error)
}

type validator interface {
	Inspect(ctx context.Context, b domain.Batch) (domain.ReadinessReport, []domain.AssessmentView, error)
}

type renderer interface {
	Render(ctx context.Context, snapshot domain.BatchSnapshot) ([]byte, error)
}

type artifactStore interface {
	Store(ctx context.Context, reportID int64, data []byte) (string, error)
}

type notifier interface {
	NotifyEmitted(ctx context.Context, event domain.EmittedEvent) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

func reasonsDetail(reasons []domain.Reason) []map[string]any {
	out := make([]map[string]any, 0, len(reasons))
	for _, r := range reasons {
		m := map[string]any{"code": string(r.Code), "message": r.Message}
		if r.EmployeeRef != "" {
			m["employee_ref"] = r.EmployeeRef
		}
		out = append(out, m)
	}
	return out
}
