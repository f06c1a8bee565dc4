package readiness

import (
	"context"
	"sync"

	"github.com/heartmarshall/laudo-backend/internal/domain"
)

//go:generate moq -out mocks_test.go -pkg readiness . batchRepo assessmentRepo eligibilityProvider anomalyDetector

var (
	_ batchRepo           = &batchRepoMock{}
	_ assessmentRepo      = &assessmentRepoMock{}
	_ eligibilityProvider = &eligibilityProviderMock{}
	_ anomalyDetector     = &anomalyDetectorMock{}
)

type batchRepoMock struct {
	GetByIDFunc func(ctx context.Context, id int64) (domain.Batch, error)

	calls struct {
		GetByID []struct {
			Ctx context.Context
			ID  int64
		}
	}
	lockGetByID sync.RWMutex
}

func (mock *batchRepoMock) GetByID(ctx context.Context, id int64) (domain.Batch, error) {
	if mock.GetByIDFunc == nil {
		panic("batchRepoMock.GetByIDFunc: method is nil but batchRepo.GetByID was just called")
	}
	callInfo := struct {
		Ctx context.Context
		ID  int64
	}{Ctx: ctx, ID: id}
	mock.lockGetByID.Lock()
	mock.calls.GetByID = append(mock.calls.GetByID, callInfo)
	mock.lockGetByID.Unlock()
	return mock.GetByIDFunc(ctx, id)
}

type assessmentRepoMock struct {
	ListByBatchFunc func(ctx context.Context, batchID int64) ([]domain.Assessment, error)

	calls struct {
		ListByBatch []struct {
			Ctx     context.Context
			BatchID int64
		}
	}
	lockListByBatch sync.RWMutex
}

func (mock *assessmentRepoMock) ListByBatch(ctx context.Context, batchID int64) ([]domain.Assessment, error) {
	if mock.ListByBatchFunc == nil {
		panic("assessmentRepoMock.ListByBatchFunc: method is nil but assessmentRepo.ListByBatch was just called")
	}
	callInfo := struct {
		Ctx     context.Context
		BatchID int64
	}{Ctx: ctx, BatchID: batchID}
	mock.lockListByBatch.Lock()
	mock.calls.ListByBatch = append(mock.calls.ListByBatch, callInfo)
	mock.lockListByBatch.Unlock()
	return mock.ListByBatchFunc(ctx, batchID)
}

type eligibilityProviderMock struct {
	EligibleMembersFunc func(ctx context.Context, owner domain.Owner, cycle domain.Cycle) ([]string, error)

	calls struct {
		EligibleMembers []struct {
			Ctx   context.Context
			Owner domain.Owner
			Cycle domain.Cycle
		}
	}
	lockEligibleMembers sync.RWMutex
}

func (mock *eligibilityProviderMock) EligibleMembers(ctx context.Context, owner domain.Owner, cycle domain.Cycle) ([]string, error) {
	if mock.EligibleMembersFunc == nil {
		panic("eligibilityProviderMock.EligibleMembersFunc: method is nil but eligibilityProvider.EligibleMembers was just called")
	}
	callInfo := struct {
		Ctx   context.Context
		Owner domain.Owner
		Cycle domain.Cycle
	}{Ctx: ctx, Owner: owner, Cycle: cycle}
	mock.lockEligibleMembers.Lock()
	mock.calls.EligibleMembers = append(mock.calls.EligibleMembers, callInfo)
	mock.lockEligibleMembers.Unlock()
	return mock.EligibleMembersFunc(ctx, owner, cycle)
}

func (mock *eligibilityProviderMock) EligibleMembersCalls() []struct {
	Ctx   context.Context
	Owner domain.Owner
	Cycle domain.Cycle
} {
	mock.lockEligibleMembers.RLock()
	calls := mock.calls.EligibleMembers
	mock.lockEligibleMembers.RUnlock()
	return calls
}

type anomalyDetectorMock struct {
	DetectAnomaliesFunc func(ctx context.Context, owner domain.Owner) ([]domain.Anomaly, error)

	calls struct {
		DetectAnomalies []struct {
			Ctx   context.Context
			Owner domain.Owner
		}
	}
	lockDetectAnomalies sync.RWMutex
}

func (mock *anomalyDetectorMock) DetectAnomalies(ctx context.Context, owner domain.Owner) ([]domain.Anomaly, error) {
	if mock.DetectAnomaliesFunc == nil {
		panic("anomalyDetectorMock.DetectAnomaliesFunc: method is nil but anomalyDetector.DetectAnomalies was just called")
	}
	callInfo := struct {
		Ctx   context.Context
		Owner domain.Owner
	}{Ctx: ctx, Owner: owner}
	mock.lockDetectAnomalies.Lock()
	mock.calls.DetectAnomalies = append(mock.calls.DetectAnomalies, callInfo)
	mock.lockDetectAnomalies.Unlock()
	return mock.DetectAnomaliesFunc(ctx, owner)
}
