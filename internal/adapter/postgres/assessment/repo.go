// Package assessment implements the Assessment repository using PostgreSQL.
// Scores are stored as JSONB and decoded into map[string]float64.
package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/laudo-backend/internal/adapter/postgres"
	"github.com/heartmarshall/laudo-backend/internal/domain"
)

// Repo provides assessment persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new assessment repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// SQL constants
// ---------------------------------------------------------------------------

const assessmentColumns = `id, batch_id, employee_ref, status, scores, started_at,
	completed_at, excluded_at, exclusion_reason`

const createManySQL = `
INSERT INTO assessments (batch_id, employee_ref, status, started_at)
SELECT $1, ref, 'STARTED', $3
FROM unnest($2::text[]) AS ref
RETURNING ` + assessmentColumns

const getByIDSQL = `
SELECT ` + assessmentColumns + `
FROM assessments
WHERE id = $1`

const listByBatchSQL = `
SELECT ` + assessmentColumns + `
FROM assessments
WHERE batch_id = $1
ORDER BY employee_ref, id`

const countByBatchSQL = `
SELECT count(*),
       count(*) FILTER (WHERE status = 'COMPLETED'),
       count(*) FILTER (WHERE status = 'EXCLUDED')
FROM assessments
WHERE batch_id = $1`

const startSQL = `
UPDATE assessments
SET status = 'IN_PROGRESS'
WHERE id = $1 AND status = 'STARTED'
RETURNING ` + assessmentColumns

const completeSQL = `
UPDATE assessments
SET status = 'COMPLETED', completed_at = $2, scores = $3
WHERE id = $1 AND status IN ('STARTED', 'IN_PROGRESS')
RETURNING ` + assessmentColumns

const excludeSQL = `
UPDATE assessments
SET status = 'EXCLUDED', excluded_at = $2, exclusion_reason = $3
WHERE id = $1 AND status IN ('STARTED', 'IN_PROGRESS')
RETURNING ` + assessmentColumns

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns an assessment by primary key.
func (r *Repo) GetByID(ctx context.Context, id int64) (domain.Assessment, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	a, err := scanAssessment(querier.QueryRow(ctx, getByIDSQL, id))
	if err != nil {
		return domain.Assessment{}, postgres.MapError(err, "assessment", id)
	}
	return a, nil
}

// ListByBatch returns every assessment of a batch ordered by employee_ref.
func (r *Repo) ListByBatch(ctx context.Context, batchID int64) ([]domain.Assessment, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := querier.Query(ctx, listByBatchSQL, batchID)
	if err != nil {
		return nil, fmt.Errorf("list assessments of batch %d: %w", batchID, err)
	}
	defer rows.Close()

	return scanAssessments(rows)
}

// CountByBatch aggregates the assessments of a batch by terminal state.
func (r *Repo) CountByBatch(ctx context.Context, batchID int64) (domain.StatusCounts, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	var c domain.StatusCounts
	if err := querier.QueryRow(ctx, countByBatchSQL, batchID).Scan(&c.Total, &c.Completed, &c.Excluded); err != nil {
		return domain.StatusCounts{}, postgres.MapError(err, "batch", batchID)
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// CreateMany inserts one STARTED assessment per employee ref.
func (r *Repo) CreateMany(ctx context.Context, batchID int64, employeeRefs []string, startedAt time.Time) ([]domain.Assessment, error) {
	if len(employeeRefs) == 0 {
		return nil, nil
	}
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := querier.Query(ctx, createManySQL, batchID, employeeRefs, startedAt)
	if err != nil {
		return nil, postgres.MapError(err, "batch", batchID)
	}
	defer rows.Close()

	created, err := scanAssessments(rows)
	if err != nil {
		return nil, postgres.MapError(err, "batch", batchID)
	}
	return created, nil
}

// Start moves a STARTED assessment to IN_PROGRESS.
func (r *Repo) Start(ctx context.Context, id int64) (domain.Assessment, error) {
	return r.update(ctx, id, startSQL)
}

// Complete records the scores of a non-terminal assessment and marks it COMPLETED.
func (r *Repo) Complete(ctx context.Context, id int64, scores map[string]float64, at time.Time) (domain.Assessment, error) {
	raw, err := json.Marshal(scores)
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("assessment %d marshal scores: %w", id, err)
	}
	return r.update(ctx, id, completeSQL, at, raw)
}

// Exclude marks a non-terminal assessment EXCLUDED with a reason.
func (r *Repo) Exclude(ctx context.Context, id int64, reason string, at time.Time) (domain.Assessment, error) {
	return r.update(ctx, id, excludeSQL, at, reason)
}

// update runs a guarded status change. A row that no longer matches the
// expected source status yields domain.ErrConflict.
func (r *Repo) update(ctx context.Context, id int64, query string, args ...any) (domain.Assessment, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	a, err := scanAssessment(querier.QueryRow(ctx, query, append([]any{id}, args...)...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Assessment{}, fmt.Errorf("assessment %d: status changed: %w", id, domain.ErrConflict)
		}
		return domain.Assessment{}, postgres.MapError(err, "assessment", id)
	}
	return a, nil
}

// ---------------------------------------------------------------------------
// Scanning
// ---------------------------------------------------------------------------

func scanAssessment(row pgx.Row) (domain.Assessment, error) {
	var (
		a      domain.Assessment
		scores []byte
	)
	err := row.Scan(&a.ID, &a.BatchID, &a.EmployeeRef, &a.Status, &scores, &a.StartedAt,
		&a.CompletedAt, &a.ExcludedAt, &a.ExclusionReason)
	if err != nil {
		return domain.Assessment{}, err
	}
	if len(scores) > 0 {
		if err := json.Unmarshal(scores, &a.Scores); err != nil {
			return domain.Assessment{}, fmt.Errorf("assessment %d unmarshal scores: %w", a.ID, err)
		}
	}
	return a, nil
}

func scanAssessments(rows pgx.Rows) ([]domain.Assessment, error) {
	var out []domain.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
