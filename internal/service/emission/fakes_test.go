package emission

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/heartmarshall/laudo-backend/internal/domain"
)

// fakeDB mimics the compare-and-set semantics of the batch, report and audit
// tables behind a single mutex.
type fakeDB struct {
	mu       sync.Mutex
	batches  map[int64]domain.Batch
	reports  map[int64]domain.Report // by batch id
	audit    []domain.AuditEntry
	reportID int64
	auditErr error

	claimDueCalls chan struct{}
}

func newFakeDB() *fakeDB {
	return &fakeDB{batches: map[int64]domain.Batch{}, reports: map[int64]domain.Report{}}
}

func (f *fakeDB) put(b domain.Batch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches[b.ID] = b
}

func (f *fakeDB) batch(id int64) domain.Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches[id]
}

func (f *fakeDB) reportCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reports)
}

func (f *fakeDB) entries(action domain.AuditAction) []domain.AuditEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range f.audit {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// batchRepo

func (f *fakeDB) GetByID(_ context.Context, id int64) (domain.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return domain.Batch{}, fmt.Errorf("batch %d: %w", id, domain.ErrNotFound)
	}
	return b, nil
}

func (f *fakeDB) GetForUpdate(ctx context.Context, id int64) (domain.Batch, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeDB) cas(id int64, from domain.BatchStatus, apply func(*domain.Batch) bool) (domain.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok || b.Status != from || !apply(&b) {
		return domain.Batch{}, fmt.Errorf("batch %d: %w", id, domain.ErrConcurrencyConflict)
	}
	f.batches[id] = b
	return b, nil
}

func (f *fakeDB) SetSchedule(_ context.Context, id int64, at *time.Time) (domain.Batch, error) {
	return f.cas(id, domain.BatchStatusReady, func(b *domain.Batch) bool {
		if at != nil {
			v := *at
			at = &v
		}
		b.ScheduledEmitAt = at
		return true
	})
}

func (f *fakeDB) Claim(_ context.Context, id int64, at time.Time) (domain.Batch, error) {
	return f.cas(id, domain.BatchStatusReady, func(b *domain.Batch) bool {
		if _, exists := f.reports[id]; exists {
			return false
		}
		b.Status, b.EmissionStartedAt = domain.BatchStatusEmitting, &at
		return true
	})
}

func (f *fakeDB) ReleaseClaim(_ context.Context, id int64, clearSchedule bool) (domain.Batch, error) {
	return f.cas(id, domain.BatchStatusEmitting, func(b *domain.Batch) bool {
		b.Status, b.EmissionStartedAt = domain.BatchStatusReady, nil
		if clearSchedule {
			b.ScheduledEmitAt = nil
		}
		return true
	})
}

func (f *fakeDB) MarkEmitted(_ context.Context, id int64, at time.Time) (domain.Batch, error) {
	return f.cas(id, domain.BatchStatusEmitting, func(b *domain.Batch) bool {
		b.Status, b.EmittedAt = domain.BatchStatusEmitted, &at
		return true
	})
}

func (f *fakeDB) ClaimDue(_ context.Context, now time.Time, limit int) ([]domain.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimDueCalls != nil {
		defer func() { f.claimDueCalls <- struct{}{} }()
	}
	var ids []int64
	for id, b := range f.batches {
		_, hasReport := f.reports[id]
		if b.Status == domain.BatchStatusReady && b.ScheduledEmitAt != nil && !b.ScheduledEmitAt.After(now) && !hasReport {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var out []domain.Batch
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		b := f.batches[id]
		b.Status, b.EmissionStartedAt = domain.BatchStatusEmitting, &now
		f.batches[id] = b
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeDB) RecoverStale(_ context.Context, cutoff time.Time) ([]domain.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Batch
	for id, b := range f.batches {
		if b.Status == domain.BatchStatusEmitting && b.EmissionStartedAt != nil && b.EmissionStartedAt.Before(cutoff) {
			b.Status, b.EmissionStartedAt = domain.BatchStatusReady, nil
			f.batches[id] = b
			out = append(out, b)
		}
	}
	return out, nil
}

// reportRepo

type reportFake struct{ *fakeDB }

func (f reportFake) NextID(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reportID++
	return f.reportID, nil
}

func (f reportFake) Create(_ context.Context, rep domain.Report) (domain.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.reports[rep.BatchID]; exists {
		return domain.Report{}, domain.ErrAlreadyExists
	}
	f.reports[rep.BatchID] = rep
	return rep, nil
}

func (f reportFake) ExistsForBatch(_ context.Context, batchID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.reports[batchID]
	return ok, nil
}

// auditRepo

func (f *fakeDB) Log(_ context.Context, e domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.auditErr != nil {
		return f.auditErr
	}
	f.audit = append(f.audit, e)
	return nil
}

func (f *fakeDB) LastAt(_ context.Context, batchID int64, action domain.AuditAction, outcome domain.AuditOutcome) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var last *time.Time
	for _, e := range f.audit {
		if e.BatchID == batchID && e.Action == action && e.Outcome == outcome {
			at := e.CreatedAt
			if last == nil || at.After(*last) {
				last = &at
			}
		}
	}
	return last, nil
}

// collaborators

type validatorStub struct {
	mu      sync.Mutex
	reports []domain.ReadinessReport // consumed in order; the last one repeats
	err     error
	calls   int
}

func eligibleReport(batchID int64) domain.ReadinessReport {
	return domain.ReadinessReport{BatchID: batchID, Eligible: true, Reasons: []domain.Reason{}, CompletionRatio: 1}
}

func blockedReport(batchID int64) domain.ReadinessReport {
	return domain.ReadinessReport{
		BatchID:            batchID,
		Blocking:           true,
		PendingMemberCount: 1,
		Reasons: []domain.Reason{{
			Code: domain.ReasonIncompleteCoverage, Severity: domain.ReasonSeverityBlocking,
			Message: "1 eligible members have no assessment in this batch",
		}},
	}
}

func (v *validatorStub) Inspect(_ context.Context, b domain.Batch) (domain.ReadinessReport, []domain.AssessmentView, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if v.err != nil {
		return domain.ReadinessReport{}, nil, v.err
	}
	rep := eligibleReport(b.ID)
	if len(v.reports) > 0 {
		rep = v.reports[0]
		if len(v.reports) > 1 {
			v.reports = v.reports[1:]
		}
	}
	views := []domain.AssessmentView{
		{ID: 1, EmployeeRef: "A", State: domain.TerminalStateCompleted, Scores: map[string]float64{"demand": 2}},
		{ID: 2, EmployeeRef: "B", State: domain.TerminalStateCompleted, Scores: map[string]float64{"demand": 3}},
	}
	return rep, views, nil
}

type rendererStub struct {
	mu    sync.Mutex
	calls int
	errs  []error
	block bool
}

func (r *rendererStub) Render(ctx context.Context, s domain.BatchSnapshot) ([]byte, error) {
	r.mu.Lock()
	r.calls++
	var err error
	if len(r.errs) > 0 {
		err, r.errs = r.errs[0], r.errs[1:]
	}
	block := r.block
	r.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("%%PDF laudo %s", s.Batch.Code)), nil
}

func (r *rendererStub) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type storeStub struct {
	mu      sync.Mutex
	errs    []error
	objects map[int64][]byte
}

func (s *storeStub) Store(_ context.Context, reportID int64, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return "", err
		}
	}
	if s.objects == nil {
		s.objects = map[int64][]byte{}
	}
	s.objects[reportID] = data
	return fmt.Sprintf("mem://laudos/%d.pdf", reportID), nil
}

type notifierStub struct {
	mu     sync.Mutex
	events []domain.EmittedEvent
	err    error
}

func (n *notifierStub) NotifyEmitted(_ context.Context, e domain.EmittedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

type txFake struct{}

func (txFake) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

func (v *validatorStub) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}
