package testhelper

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/laudo-backend/internal/domain"
)

// ownerSeq hands out owner ids that do not collide across tests sharing the
// same container.
var ownerSeq atomic.Int64

func init() {
	ownerSeq.Store(time.Now().UnixNano() % 1_000_000_000)
}

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// NewOwner returns a fresh entity owner that no other test uses.
func NewOwner() domain.Owner {
	return domain.Owner{Kind: domain.OwnerKindEntity, ID: ownerSeq.Add(1)}
}

// NewClinicOwner returns a fresh clinic-scoped owner.
func NewClinicOwner() domain.Owner {
	clinic := ownerSeq.Add(1)
	return domain.Owner{Kind: domain.OwnerKindClinic, ID: ownerSeq.Add(1), ClinicID: &clinic}
}

// SeedBatch inserts a batch for owner in the given status. Timestamps that the
// status implies (released_at for ACTIVE and beyond) are filled in.
// EMITTED and SENT batches must be produced with SeedEmittedBatch.
func SeedBatch(t *testing.T, pool *pgxpool.Pool, owner domain.Owner, status domain.BatchStatus) domain.Batch {
	t.Helper()
	ctx := context.Background()

	if status.IsFrozen() {
		t.Fatalf("testhelper: SeedBatch cannot seed %s batches, use SeedEmittedBatch", status)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)

	var orderIndex int
	if err := pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(order_index), 0) + 1 FROM batches WHERE owner_kind = $1 AND owner_id = $2`,
		string(owner.Kind), owner.ID,
	).Scan(&orderIndex); err != nil {
		t.Fatalf("testhelper: SeedBatch next order index: %v", err)
	}

	b := domain.Batch{
		Code:       domain.BatchCode(owner, orderIndex) + "-" + uniqueSuffix(),
		OrderIndex: orderIndex,
		Owner:      owner,
		Status:     status,
		CreatedAt:  now,
	}
	if status != domain.BatchStatusDraft {
		released := now
		b.ReleasedAt = &released
	}
	if status.Rank() >= domain.BatchStatusReady.Rank() {
		ready := now
		b.ReadyAt = &ready
	}
	if status == domain.BatchStatusEmitting {
		started := now
		b.EmissionStartedAt = &started
	}
	if status == domain.BatchStatusCancelled {
		cancelled := now
		b.CancelledAt = &cancelled
	}

	err := pool.QueryRow(ctx,
		`INSERT INTO batches (code, order_index, owner_kind, owner_id, clinic_id, status,
		                      created_at, released_at, ready_at, emission_started_at, cancelled_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		b.Code, b.OrderIndex, string(owner.Kind), owner.ID, owner.ClinicID, string(status),
		b.CreatedAt, b.ReleasedAt, b.ReadyAt, b.EmissionStartedAt, b.CancelledAt,
	).Scan(&b.ID)
	if err != nil {
		t.Fatalf("testhelper: SeedBatch insert: %v", err)
	}

	return b
}

// SeedAssessment inserts an assessment in the given status.
func SeedAssessment(t *testing.T, pool *pgxpool.Pool, batchID int64, employeeRef string, status domain.AssessmentStatus) domain.Assessment {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	a := domain.Assessment{
		BatchID:     batchID,
		EmployeeRef: employeeRef,
		Status:      status,
		StartedAt:   now,
	}

	var scores []byte
	switch status {
	case domain.AssessmentStatusCompleted:
		completed := now
		a.CompletedAt = &completed
		a.Scores = map[string]float64{"demand": 2.5, "control": 3.0}
		scores, _ = json.Marshal(a.Scores)
	case domain.AssessmentStatusExcluded:
		excluded := now
		reason := "employee deactivated"
		a.ExcludedAt = &excluded
		a.ExclusionReason = &reason
	}

	err := pool.QueryRow(ctx,
		`INSERT INTO assessments (batch_id, employee_ref, status, scores, started_at, completed_at, excluded_at, exclusion_reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		batchID, employeeRef, string(status), scores, a.StartedAt, a.CompletedAt, a.ExcludedAt, a.ExclusionReason,
	).Scan(&a.ID)
	if err != nil {
		t.Fatalf("testhelper: SeedAssessment insert: %v", err)
	}

	return a
}

// SeedEmployee inserts an employee of owner hired at hiredAt.
func SeedEmployee(t *testing.T, pool *pgxpool.Pool, owner domain.Owner, ref string, active bool, hiredAt time.Time) domain.Employee {
	t.Helper()

	e := domain.Employee{Ref: ref, Owner: owner, Active: active, HiredAt: hiredAt.UTC().Truncate(time.Microsecond)}
	if !active {
		deactivated := e.HiredAt.Add(time.Hour)
		e.DeactivatedAt = &deactivated
	}

	err := pool.QueryRow(context.Background(),
		`INSERT INTO employees (employee_ref, owner_kind, owner_id, active, hired_at, deactivated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		ref, string(owner.Kind), owner.ID, active, e.HiredAt, e.DeactivatedAt,
	).Scan(&e.ID)
	if err != nil {
		t.Fatalf("testhelper: SeedEmployee insert: %v", err)
	}

	return e
}

// SeedEmittedBatch produces a batch with one completed assessment and an
// emitted report, following the same order the emission worker uses so the
// immutability triggers accept it.
func SeedEmittedBatch(t *testing.T, pool *pgxpool.Pool, owner domain.Owner) (domain.Batch, domain.Report) {
	t.Helper()
	ctx := context.Background()

	b := SeedBatch(t, pool, owner, domain.BatchStatusEmitting)
	SeedAssessment(t, pool, b.ID, "EMP-"+uniqueSuffix(), domain.AssessmentStatusCompleted)

	now := time.Now().UTC().Truncate(time.Microsecond)
	if _, err := pool.Exec(ctx,
		`UPDATE batches SET status = 'EMITTED', emitted_at = $2 WHERE id = $1`, b.ID, now,
	); err != nil {
		t.Fatalf("testhelper: SeedEmittedBatch mark emitted: %v", err)
	}
	b.Status = domain.BatchStatusEmitted
	b.EmittedAt = &now

	r := domain.Report{
		BatchID:         b.ID,
		ContentHash:     "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		StorageLocation: "memory://reports/" + uniqueSuffix(),
		Status:          domain.ReportStatusEmitted,
		EmittedAt:       now,
	}
	if err := pool.QueryRow(ctx,
		`INSERT INTO reports (batch_id, content_hash, storage_location, status, emitted_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		r.BatchID, r.ContentHash, r.StorageLocation, string(r.Status), r.EmittedAt,
	).Scan(&r.ID); err != nil {
		t.Fatalf("testhelper: SeedEmittedBatch insert report: %v", err)
	}

	return b, r
}
