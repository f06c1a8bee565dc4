// Package report implements the Report repository using PostgreSQL.
// Rows are insert-once; the only update is the EMITTED->SENT delivery stamp.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/laudo-backend/internal/adapter/postgres"
	"github.com/heartmarshall/laudo-backend/internal/domain"
)

// Repo provides report persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new report repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const reportColumns = `id, batch_id, content_hash, storage_location, status, emitted_at, sent_at`

const nextIDSQL = `SELECT nextval(pg_get_serial_sequence('reports', 'id'))`

const createSQL = `
INSERT INTO reports (id, batch_id, content_hash, storage_location, status, emitted_at)
VALUES ($1, $2, $3, $4, 'EMITTED', $5)
RETURNING ` + reportColumns

const getByIDSQL = `
SELECT ` + reportColumns + `
FROM reports
WHERE id = $1`

const getByBatchSQL = `
SELECT ` + reportColumns + `
FROM reports
WHERE batch_id = $1`

const existsForBatchSQL = `SELECT EXISTS(SELECT 1 FROM reports WHERE batch_id = $1)`

const markSentSQL = `
UPDATE reports
SET status = 'SENT', sent_at = $2
WHERE batch_id = $1 AND status = 'EMITTED'
RETURNING ` + reportColumns

// NextID reserves a report id. The emission worker needs it before the row
// exists so the artifact can be stored under its final key.
func (r *Repo) NextID(ctx context.Context) (int64, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	var id int64
	if err := querier.QueryRow(ctx, nextIDSQL).Scan(&id); err != nil {
		return 0, fmt.Errorf("reserve report id: %w", err)
	}
	return id, nil
}

// Create inserts an EMITTED report under a reserved id. A second report for
// the same batch yields domain.ErrAlreadyExists.
func (r *Repo) Create(ctx context.Context, rep domain.Report) (domain.Report, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	got, err := scanReport(querier.QueryRow(ctx, createSQL,
		rep.ID, rep.BatchID, rep.ContentHash, rep.StorageLocation, rep.EmittedAt,
	))
	if err != nil {
		return domain.Report{}, postgres.MapError(err, "report", rep.ID)
	}
	return got, nil
}

// GetByID returns a report by primary key.
func (r *Repo) GetByID(ctx context.Context, id int64) (domain.Report, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	got, err := scanReport(querier.QueryRow(ctx, getByIDSQL, id))
	if err != nil {
		return domain.Report{}, postgres.MapError(err, "report", id)
	}
	return got, nil
}

// GetByBatch returns the report of a batch.
func (r *Repo) GetByBatch(ctx context.Context, batchID int64) (domain.Report, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	got, err := scanReport(querier.QueryRow(ctx, getByBatchSQL, batchID))
	if err != nil {
		return domain.Report{}, postgres.MapError(err, "batch report", batchID)
	}
	return got, nil
}

// ExistsForBatch reports whether a report has been written for the batch.
func (r *Repo) ExistsForBatch(ctx context.Context, batchID int64) (bool, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	var exists bool
	if err := querier.QueryRow(ctx, existsForBatchSQL, batchID).Scan(&exists); err != nil {
		return false, postgres.MapError(err, "batch report", batchID)
	}
	return exists, nil
}

// MarkSent stamps delivery on the report of a batch. A report already SENT
// yields domain.ErrAlreadySent.
func (r *Repo) MarkSent(ctx context.Context, batchID int64, at time.Time) (domain.Report, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	got, err := scanReport(querier.QueryRow(ctx, markSentSQL, batchID, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Report{}, fmt.Errorf("batch report %d: %w", batchID, domain.ErrAlreadySent)
		}
		return domain.Report{}, postgres.MapError(err, "batch report", batchID)
	}
	return got, nil
}

func scanReport(row pgx.Row) (domain.Report, error) {
	var rep domain.Report
	err := row.Scan(&rep.ID, &rep.BatchID, &rep.ContentHash, &rep.StorageLocation, &rep.Status, &rep.EmittedAt, &rep.SentAt)
	if err != nil {
		return domain.Report{}, err
	}
	return rep, nil
}
