package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/heartmarshall/laudo-backend/internal/domain"
)

// fakeStore is an in-memory stand-in for the batch, assessment, report and
// audit repositories with the same status guards as the SQL.
type fakeStore struct {
	mu          sync.Mutex
	batches     map[int64]domain.Batch
	assessments map[int64]domain.Assessment
	reports     map[int64]domain.Report
	audit       []domain.AuditEntry
	nextID      int64
	auditErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		batches:     map[int64]domain.Batch{},
		assessments: map[int64]domain.Assessment{},
		reports:     map[int64]domain.Report{},
		nextID:      100,
	}
}

func (f *fakeStore) id() int64 { f.nextID++; return f.nextID }

func (f *fakeStore) putBatch(b domain.Batch) domain.Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.ID == 0 {
		b.ID = f.id()
	}
	f.batches[b.ID] = b
	return b
}

func (f *fakeStore) putAssessment(batchID int64, ref string, status domain.AssessmentStatus) domain.Assessment {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := domain.Assessment{ID: f.id(), BatchID: batchID, EmployeeRef: ref, Status: status}
	f.assessments[a.ID] = a
	return a
}

func (f *fakeStore) auditActions() []domain.AuditAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(f.audit))
	for _, e := range f.audit {
		out = append(out, e.Action)
	}
	return out
}

func (f *fakeStore) lastAudit() domain.AuditEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audit[len(f.audit)-1]
}

// batchRepo

func (f *fakeStore) GetByID(_ context.Context, id int64) (domain.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return domain.Batch{}, fmt.Errorf("batch %d: %w", id, domain.ErrNotFound)
	}
	return b, nil
}

func (f *fakeStore) GetForUpdate(ctx context.Context, id int64) (domain.Batch, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeStore) Create(_ context.Context, owner domain.Owner, now time.Time) (domain.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order := 1
	for _, b := range f.batches {
		if b.Owner.Kind == owner.Kind && b.Owner.ID == owner.ID && b.OrderIndex >= order {
			order = b.OrderIndex + 1
		}
	}
	b := domain.Batch{
		ID: f.id(), Code: domain.BatchCode(owner, order), OrderIndex: order,
		Owner: owner, Status: domain.BatchStatusDraft, CreatedAt: now,
	}
	f.batches[b.ID] = b
	return b, nil
}

func (f *fakeStore) move(id int64, from []domain.BatchStatus, apply func(*domain.Batch)) (domain.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return domain.Batch{}, domain.ErrConcurrencyConflict
	}
	for _, s := range from {
		if b.Status == s {
			apply(&b)
			f.batches[id] = b
			return b, nil
		}
	}
	return domain.Batch{}, fmt.Errorf("batch %d: %w", id, domain.ErrConcurrencyConflict)
}

func (f *fakeStore) Release(_ context.Context, id int64, at time.Time) (domain.Batch, error) {
	return f.move(id, []domain.BatchStatus{domain.BatchStatusDraft}, func(b *domain.Batch) {
		b.Status, b.ReleasedAt = domain.BatchStatusActive, &at
	})
}

func (f *fakeStore) MarkReady(_ context.Context, id int64, at time.Time) (domain.Batch, error) {
	return f.move(id, []domain.BatchStatus{domain.BatchStatusActive}, func(b *domain.Batch) {
		b.Status, b.ReadyAt = domain.BatchStatusReady, &at
	})
}

func (f *fakeStore) MarkSent(_ context.Context, id int64, at time.Time) (domain.Batch, error) {
	return f.move(id, []domain.BatchStatus{domain.BatchStatusEmitted}, func(b *domain.Batch) {
		b.Status, b.SentAt = domain.BatchStatusSent, &at
	})
}

func (f *fakeStore) Cancel(_ context.Context, id int64, at time.Time) (domain.Batch, error) {
	return f.move(id, []domain.BatchStatus{domain.BatchStatusDraft, domain.BatchStatusActive, domain.BatchStatusReady}, func(b *domain.Batch) {
		b.Status, b.CancelledAt, b.ScheduledEmitAt = domain.BatchStatusCancelled, &at, nil
	})
}

// assessmentRepo

type assessmentFake struct{ *fakeStore }

func (f assessmentFake) GetByID(_ context.Context, id int64) (domain.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assessments[id]
	if !ok {
		return domain.Assessment{}, fmt.Errorf("assessment %d: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

func (f assessmentFake) CountByBatch(_ context.Context, batchID int64) (domain.StatusCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var views []domain.AssessmentView
	for _, a := range f.assessments {
		if a.BatchID == batchID {
			views = append(views, a.View())
		}
	}
	return domain.CountViews(views), nil
}

func (f assessmentFake) CreateMany(_ context.Context, batchID int64, refs []string, startedAt time.Time) ([]domain.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Assessment, 0, len(refs))
	for _, ref := range refs {
		a := domain.Assessment{ID: f.id(), BatchID: batchID, EmployeeRef: ref, Status: domain.AssessmentStatusStarted, StartedAt: startedAt}
		f.assessments[a.ID] = a
		out = append(out, a)
	}
	return out, nil
}

func (f assessmentFake) update(id int64, from []domain.AssessmentStatus, apply func(*domain.Assessment)) (domain.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assessments[id]
	if !ok {
		return domain.Assessment{}, domain.ErrNotFound
	}
	for _, s := range from {
		if a.Status == s {
			apply(&a)
			f.assessments[id] = a
			return a, nil
		}
	}
	return domain.Assessment{}, fmt.Errorf("assessment %d: %w", id, domain.ErrConflict)
}

func (f assessmentFake) Start(_ context.Context, id int64) (domain.Assessment, error) {
	return f.update(id, []domain.AssessmentStatus{domain.AssessmentStatusStarted}, func(a *domain.Assessment) {
		a.Status = domain.AssessmentStatusInProgress
	})
}

func (f assessmentFake) Complete(_ context.Context, id int64, scores map[string]float64, at time.Time) (domain.Assessment, error) {
	return f.update(id, []domain.AssessmentStatus{domain.AssessmentStatusStarted, domain.AssessmentStatusInProgress}, func(a *domain.Assessment) {
		a.Status, a.Scores, a.CompletedAt = domain.AssessmentStatusCompleted, scores, &at
	})
}

func (f assessmentFake) Exclude(_ context.Context, id int64, reason string, at time.Time) (domain.Assessment, error) {
	return f.update(id, []domain.AssessmentStatus{domain.AssessmentStatusStarted, domain.AssessmentStatusInProgress}, func(a *domain.Assessment) {
		a.Status, a.ExclusionReason, a.ExcludedAt = domain.AssessmentStatusExcluded, &reason, &at
	})
}

// reportRepo

type reportFake struct{ *fakeStore }

func (f reportFake) MarkSent(_ context.Context, batchID int64, at time.Time) (domain.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[batchID]
	if !ok || r.Status != domain.ReportStatusEmitted {
		return domain.Report{}, domain.ErrAlreadySent
	}
	r.Status, r.SentAt = domain.ReportStatusSent, &at
	f.reports[batchID] = r
	return r, nil
}

// auditRepo

func (f *fakeStore) Log(_ context.Context, e domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.auditErr != nil {
		return f.auditErr
	}
	f.audit = append(f.audit, e)
	return nil
}

// guard backed by the fake report table.

type guardFake struct {
	store    *fakeStore
	rejected []string
}

func (g *guardFake) Check(_ context.Context, batchID int64, op string) error {
	g.store.mu.Lock()
	defer g.store.mu.Unlock()
	if _, ok := g.store.reports[batchID]; ok {
		return &domain.ImmutabilityViolationError{BatchID: batchID, Operation: op}
	}
	return nil
}

func (g *guardFake) Reject(_ context.Context, _ int64, _, op string, err error) error {
	var violation *domain.ImmutabilityViolationError
	if errors.As(err, &violation) {
		g.rejected = append(g.rejected, op)
	}
	return err
}

type schedulerFake struct {
	store *fakeStore
	calls []int64
	err   error
	at    time.Time
}

func (s *schedulerFake) ScheduleIfEligible(_ context.Context, batchID int64) (domain.Batch, error) {
	s.calls = append(s.calls, batchID)
	if s.err != nil {
		return domain.Batch{}, s.err
	}
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	b := s.store.batches[batchID]
	at := s.at
	b.ScheduledEmitAt = &at
	s.store.batches[batchID] = b
	return b, nil
}

type txFake struct{ calls int }

func (t *txFake) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}
