package rest

import (
	"context"
	"errors"

	"github.com/heartmarshall/laudo-backend/internal/domain"
	"github.com/heartmarshall/laudo-backend/internal/service/batch"
	"github.com/heartmarshall/laudo-backend/internal/service/emission"
	"github.com/heartmarshall/laudo-backend/internal/service/monitoring"
	"github.com/heartmarshall/laudo-backend/pkg/ctxutil"
)

var errNotStubbed = errors.New("not stubbed")

type batchServiceMock struct {
	GetBatchFunc   func(ctx context.Context, id int64) (domain.Batch, error)
	CreateFunc     func(ctx context.Context, input batch.CreateInput) (domain.Batch, error)
	ReleaseFunc    func(ctx context.Context, input batch.ReleaseInput) (batch.ReleaseResult, error)
	CancelFunc     func(ctx context.Context, input batch.CancelInput) (domain.Batch, error)
	MarkSentFunc   func(ctx context.Context, batchID int64) (domain.Report, error)
	RevalidateFunc func(ctx context.Context, batchID int64) (domain.Batch, error)
}

func (m *batchServiceMock) GetBatch(ctx context.Context, id int64) (domain.Batch, error) {
	if m.GetBatchFunc == nil {
		return domain.Batch{}, errNotStubbed
	}
	return m.GetBatchFunc(ctx, id)
}

func (m *batchServiceMock) Create(ctx context.Context, input batch.CreateInput) (domain.Batch, error) {
	if m.CreateFunc == nil {
		return domain.Batch{}, errNotStubbed
	}
	return m.CreateFunc(ctx, input)
}

func (m *batchServiceMock) Release(ctx context.Context, input batch.ReleaseInput) (batch.ReleaseResult, error) {
	if m.ReleaseFunc == nil {
		return batch.ReleaseResult{}, errNotStubbed
	}
	return m.ReleaseFunc(ctx, input)
}

func (m *batchServiceMock) Cancel(ctx context.Context, input batch.CancelInput) (domain.Batch, error) {
	if m.CancelFunc == nil {
		return domain.Batch{}, errNotStubbed
	}
	return m.CancelFunc(ctx, input)
}

func (m *batchServiceMock) MarkSent(ctx context.Context, batchID int64) (domain.Report, error) {
	if m.MarkSentFunc == nil {
		return domain.Report{}, errNotStubbed
	}
	return m.MarkSentFunc(ctx, batchID)
}

func (m *batchServiceMock) Revalidate(ctx context.Context, batchID int64) (domain.Batch, error) {
	if m.RevalidateFunc == nil {
		return domain.Batch{}, errNotStubbed
	}
	return m.RevalidateFunc(ctx, batchID)
}

type readinessServiceMock struct {
	ValidateFunc func(ctx context.Context, batchID int64) (domain.ReadinessReport, error)
}

func (m *readinessServiceMock) Validate(ctx context.Context, batchID int64) (domain.ReadinessReport, error) {
	if m.ValidateFunc == nil {
		return domain.ReadinessReport{}, errNotStubbed
	}
	return m.ValidateFunc(ctx, batchID)
}

type reprocessServiceMock struct {
	RequestManualReprocessFunc func(ctx context.Context, batchID int64, actor string) (emission.ReprocessResult, error)
}

func (m *reprocessServiceMock) RequestManualReprocess(ctx context.Context, batchID int64, actor string) (emission.ReprocessResult, error) {
	if m.RequestManualReprocessFunc == nil {
		return emission.ReprocessResult{}, errNotStubbed
	}
	return m.RequestManualReprocessFunc(ctx, batchID, actor)
}

type assessmentServiceMock struct {
	StartAssessmentFunc    func(ctx context.Context, assessmentID int64) (batch.AssessmentResult, error)
	CompleteAssessmentFunc func(ctx context.Context, input batch.CompleteInput) (batch.AssessmentResult, error)
	ExcludeAssessmentFunc  func(ctx context.Context, input batch.ExcludeInput) (batch.AssessmentResult, error)
}

func (m *assessmentServiceMock) StartAssessment(ctx context.Context, assessmentID int64) (batch.AssessmentResult, error) {
	if m.StartAssessmentFunc == nil {
		return batch.AssessmentResult{}, errNotStubbed
	}
	return m.StartAssessmentFunc(ctx, assessmentID)
}

func (m *assessmentServiceMock) CompleteAssessment(ctx context.Context, input batch.CompleteInput) (batch.AssessmentResult, error) {
	if m.CompleteAssessmentFunc == nil {
		return batch.AssessmentResult{}, errNotStubbed
	}
	return m.CompleteAssessmentFunc(ctx, input)
}

func (m *assessmentServiceMock) ExcludeAssessment(ctx context.Context, input batch.ExcludeInput) (batch.AssessmentResult, error) {
	if m.ExcludeAssessmentFunc == nil {
		return batch.AssessmentResult{}, errNotStubbed
	}
	return m.ExcludeAssessmentFunc(ctx, input)
}

type monitoringServiceMock struct {
	PendingFunc    func(ctx context.Context, filter domain.PendingFilter) ([]domain.PendingBatch, error)
	AuditTrailFunc func(ctx context.Context, batchID int64, filter domain.AuditFilter) ([]domain.AuditEntry, error)
	ReportHashFunc func(ctx context.Context, reportID int64) (monitoring.ReportHash, error)
}

func (m *monitoringServiceMock) Pending(ctx context.Context, filter domain.PendingFilter) ([]domain.PendingBatch, error) {
	if m.PendingFunc == nil {
		return nil, errNotStubbed
	}
	return m.PendingFunc(ctx, filter)
}

func (m *monitoringServiceMock) AuditTrail(ctx context.Context, batchID int64, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	if m.AuditTrailFunc == nil {
		return nil, errNotStubbed
	}
	return m.AuditTrailFunc(ctx, batchID, filter)
}

func (m *monitoringServiceMock) ReportHash(ctx context.Context, reportID int64) (monitoring.ReportHash, error) {
	if m.ReportHashFunc == nil {
		return monitoring.ReportHash{}, errNotStubbed
	}
	return m.ReportHashFunc(ctx, reportID)
}

// tokenStub maps fixed bearer tokens to actors.
type tokenStub struct{}

func (tokenStub) ValidateToken(_ context.Context, token string) (ctxutil.Actor, error) {
	switch token {
	case "issuer":
		return ctxutil.Actor{ID: "op-1", Role: ctxutil.RoleIssuer}, nil
	case "system":
		return ctxutil.Actor{ID: "questionnaire", Role: ctxutil.RoleSystem}, nil
	}
	return ctxutil.Actor{}, errors.New("invalid token")
}
