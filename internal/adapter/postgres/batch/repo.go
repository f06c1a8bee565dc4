// Package batch implements the Batch repository using PostgreSQL.
// Status changes are compare-and-set updates: each transition names the
// status it expects to find, and a miss is reported as
// domain.ErrConcurrencyConflict so that racing workers can treat it as a no-op.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/laudo-backend/internal/adapter/postgres"
	"github.com/heartmarshall/laudo-backend/internal/domain"
)

// Repo provides batch persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new batch repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// ---------------------------------------------------------------------------
// SQL constants
// ---------------------------------------------------------------------------

const batchColumns = `id, code, order_index, owner_kind, owner_id, clinic_id, status,
	created_at, released_at, ready_at, scheduled_emit_at, emission_started_at,
	emitted_at, sent_at, cancelled_at`

// The lock key matches the (owner_kind, owner_id) scope of order_index.
const lockOwnerSQL = `SELECT pg_advisory_xact_lock(hashtext($1))`

const nextOrderIndexSQL = `
SELECT COALESCE(MAX(order_index), 0) + 1
FROM batches
WHERE owner_kind = $1 AND owner_id = $2`

const createSQL = `
INSERT INTO batches (code, order_index, owner_kind, owner_id, clinic_id, status, created_at)
VALUES ($1, $2, $3, $4, $5, 'DRAFT', $6)
RETURNING ` + batchColumns

const getByIDSQL = `
SELECT ` + batchColumns + `
FROM batches
WHERE id = $1`

const getForUpdateSQL = getByIDSQL + `
FOR UPDATE`

const releaseSQL = `
UPDATE batches
SET status = 'ACTIVE', released_at = $2
WHERE id = $1 AND status = 'DRAFT'
RETURNING ` + batchColumns

const markReadySQL = `
UPDATE batches
SET status = 'READY', ready_at = $2
WHERE id = $1 AND status = 'ACTIVE'
RETURNING ` + batchColumns

// The NOT EXISTS makes a claim impossible for a batch that somehow already
// has a report, whatever its status column says.
const claimSQL = `
UPDATE batches
SET status = 'EMITTING', emission_started_at = $2
WHERE id = $1 AND status = 'READY'
  AND NOT EXISTS (SELECT 1 FROM reports r WHERE r.batch_id = batches.id)
RETURNING ` + batchColumns

const releaseClaimSQL = `
UPDATE batches
SET status = 'READY',
    emission_started_at = NULL,
    scheduled_emit_at = CASE WHEN $2 THEN NULL ELSE scheduled_emit_at END
WHERE id = $1 AND status = 'EMITTING'
RETURNING ` + batchColumns

const markEmittedSQL = `
UPDATE batches
SET status = 'EMITTED', emitted_at = $2
WHERE id = $1 AND status = 'EMITTING'
RETURNING ` + batchColumns

const markSentSQL = `
UPDATE batches
SET status = 'SENT', sent_at = $2
WHERE id = $1 AND status = 'EMITTED'
RETURNING ` + batchColumns

const cancelSQL = `
UPDATE batches
SET status = 'CANCELLED', cancelled_at = $2, scheduled_emit_at = NULL
WHERE id = $1 AND status IN ('DRAFT', 'ACTIVE', 'READY')
RETURNING ` + batchColumns

const setScheduleSQL = `
UPDATE batches
SET scheduled_emit_at = $2
WHERE id = $1 AND status = 'READY'
RETURNING ` + batchColumns

// claimDueSQL claims up to $2 due batches in one statement. SKIP LOCKED lets
// concurrent pollers partition the due set instead of queueing behind each other.
const claimDueSQL = `
UPDATE batches
SET status = 'EMITTING', emission_started_at = $1
WHERE id IN (
    SELECT b.id
    FROM batches b
    WHERE b.status = 'READY'
      AND b.scheduled_emit_at IS NOT NULL
      AND b.scheduled_emit_at <= $1
      AND NOT EXISTS (SELECT 1 FROM reports r WHERE r.batch_id = b.id)
    ORDER BY b.scheduled_emit_at, b.id
    LIMIT $2
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + batchColumns

// recoverStaleSQL returns abandoned claims to READY. The schedule is kept so
// the next poll picks the batch up again.
const recoverStaleSQL = `
UPDATE batches
SET status = 'READY', emission_started_at = NULL
WHERE id IN (
    SELECT b.id
    FROM batches b
    WHERE b.status = 'EMITTING'
      AND b.emission_started_at < $1
      AND NOT EXISTS (SELECT 1 FROM reports r WHERE r.batch_id = b.id)
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + batchColumns

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// GetByID returns a batch by primary key.
func (r *Repo) GetByID(ctx context.Context, id int64) (domain.Batch, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	b, err := scanBatch(querier.QueryRow(ctx, getByIDSQL, id))
	if err != nil {
		return domain.Batch{}, postgres.MapError(err, "batch", id)
	}
	return b, nil
}

// GetForUpdate returns a batch and holds its row lock until the surrounding
// transaction ends. It must be called inside TxManager.RunInTx.
func (r *Repo) GetForUpdate(ctx context.Context, id int64) (domain.Batch, error) {
	if !postgres.InTx(ctx) {
		return domain.Batch{}, fmt.Errorf("batch %d: row lock requires a transaction", id)
	}
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	b, err := scanBatch(querier.QueryRow(ctx, getForUpdateSQL, id))
	if err != nil {
		return domain.Batch{}, postgres.MapError(err, "batch", id)
	}
	return b, nil
}

const (
	defaultPendingLimit = 100
	maxPendingLimit     = 500
)

// ListPending returns batches waiting on emission or delivery, oldest first,
// each with the time of its most recent transient emission failure.
func (r *Repo) ListPending(ctx context.Context, filter domain.PendingFilter, now time.Time) ([]domain.PendingBatch, error) {
	query, args, err := buildPendingQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("build pending query: %w", err)
	}

	querier := postgres.QuerierFromCtx(ctx, r.pool)
	rows, err := querier.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending batches: %w", err)
	}
	defer rows.Close()

	var result []domain.PendingBatch
	for rows.Next() {
		var (
			b           domain.Batch
			lastFailure *time.Time
		)
		if err := rows.Scan(append(batchDest(&b), &lastFailure)...); err != nil {
			return nil, fmt.Errorf("scan pending batch: %w", err)
		}
		stage, ok := domain.PendingStageOf(b)
		if !ok {
			continue
		}
		age := now.Sub(domain.PendingSince(b))
		if age < 0 {
			age = 0
		}
		result = append(result, domain.PendingBatch{
			Batch:         b,
			Stage:         stage,
			Age:           age,
			LastFailureAt: lastFailure,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending batches: %w", err)
	}

	return result, nil
}

func buildPendingQuery(filter domain.PendingFilter) (string, []any, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPendingLimit
	}
	if limit > maxPendingLimit {
		limit = maxPendingLimit
	}

	lastFailure := sq.Select("MAX(a.created_at)").
		From("audit_entries a").
		Where("a.batch_id = b.id").
		Where(sq.Eq{"a.outcome": string(domain.AuditOutcomeTransient)})
	lastFailureSQL, lastFailureArgs, err := lastFailure.ToSql()
	if err != nil {
		return "", nil, err
	}

	builder := sq.Select(prefixed("b", batchColumns)...).
		Column(sq.Expr("("+lastFailureSQL+")", lastFailureArgs...)).
		From("batches b").
		OrderBy("COALESCE(b.emitted_at, b.emission_started_at, b.ready_at, b.created_at) ASC", "b.id ASC").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar)

	if filter.Stage != nil {
		switch *filter.Stage {
		case domain.PendingStageUnscheduled:
			builder = builder.Where(sq.Eq{"b.status": string(domain.BatchStatusReady), "b.scheduled_emit_at": nil})
		case domain.PendingStageScheduled:
			builder = builder.Where(sq.And{
				sq.Eq{"b.status": string(domain.BatchStatusReady)},
				sq.NotEq{"b.scheduled_emit_at": nil},
			})
		case domain.PendingStageEmitting:
			builder = builder.Where(sq.Eq{"b.status": string(domain.BatchStatusEmitting)})
		case domain.PendingStageDelivery:
			builder = builder.Where(sq.Eq{"b.status": string(domain.BatchStatusEmitted)})
		default:
			return "", nil, fmt.Errorf("unknown pending stage %q", *filter.Stage)
		}
	} else {
		builder = builder.Where(sq.Eq{"b.status": []string{
			string(domain.BatchStatusReady),
			string(domain.BatchStatusEmitting),
			string(domain.BatchStatusEmitted),
		}})
	}

	if filter.Owner != nil {
		builder = builder.Where(sq.Eq{"b.owner_kind": string(filter.Owner.Kind), "b.owner_id": filter.Owner.ID})
	}

	return builder.ToSql()
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Create inserts a DRAFT batch for owner with the next order_index of that
// owner. Allocation is serialised per owner with a transaction-scoped
// advisory lock, so Create must run inside TxManager.RunInTx.
func (r *Repo) Create(ctx context.Context, owner domain.Owner, now time.Time) (domain.Batch, error) {
	if !postgres.InTx(ctx) {
		return domain.Batch{}, errors.New("create batch: order index allocation requires a transaction")
	}
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	if _, err := querier.Exec(ctx, lockOwnerSQL, fmt.Sprintf("%s:%d", owner.Kind, owner.ID)); err != nil {
		return domain.Batch{}, fmt.Errorf("lock owner %s: %w", owner, err)
	}

	var orderIndex int
	if err := querier.QueryRow(ctx, nextOrderIndexSQL, string(owner.Kind), owner.ID).Scan(&orderIndex); err != nil {
		return domain.Batch{}, fmt.Errorf("next order index for %s: %w", owner, err)
	}

	b, err := scanBatch(querier.QueryRow(ctx, createSQL,
		domain.BatchCode(owner, orderIndex), orderIndex, string(owner.Kind), owner.ID, owner.ClinicID, now,
	))
	if err != nil {
		return domain.Batch{}, postgres.MapError(err, "batch", 0)
	}
	return b, nil
}

// Release moves a DRAFT batch to ACTIVE.
func (r *Repo) Release(ctx context.Context, id int64, at time.Time) (domain.Batch, error) {
	return r.transition(ctx, id, releaseSQL, at)
}

// MarkReady moves an ACTIVE batch to READY.
func (r *Repo) MarkReady(ctx context.Context, id int64, at time.Time) (domain.Batch, error) {
	return r.transition(ctx, id, markReadySQL, at)
}

// Claim moves a READY batch without a report to EMITTING. A batch in any
// other state yields domain.ErrConcurrencyConflict.
func (r *Repo) Claim(ctx context.Context, id int64, at time.Time) (domain.Batch, error) {
	return r.transition(ctx, id, claimSQL, at)
}

// ReleaseClaim returns an EMITTING batch to READY. With clearSchedule the
// batch leaves the automatic queue until it is rescheduled.
func (r *Repo) ReleaseClaim(ctx context.Context, id int64, clearSchedule bool) (domain.Batch, error) {
	return r.transition(ctx, id, releaseClaimSQL, clearSchedule)
}

// MarkEmitted moves an EMITTING batch to EMITTED.
func (r *Repo) MarkEmitted(ctx context.Context, id int64, at time.Time) (domain.Batch, error) {
	return r.transition(ctx, id, markEmittedSQL, at)
}

// MarkSent moves an EMITTED batch to SENT.
func (r *Repo) MarkSent(ctx context.Context, id int64, at time.Time) (domain.Batch, error) {
	return r.transition(ctx, id, markSentSQL, at)
}

// Cancel moves a DRAFT, ACTIVE or READY batch to CANCELLED.
func (r *Repo) Cancel(ctx context.Context, id int64, at time.Time) (domain.Batch, error) {
	return r.transition(ctx, id, cancelSQL, at)
}

// SetSchedule sets or clears (at == nil) the emission time of a READY batch.
func (r *Repo) SetSchedule(ctx context.Context, id int64, at *time.Time) (domain.Batch, error) {
	return r.transition(ctx, id, setScheduleSQL, at)
}

// ClaimDue atomically claims up to limit READY batches whose schedule has
// passed and returns them in EMITTING state.
func (r *Repo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.Batch, error) {
	return r.updateMany(ctx, "claim due batches", claimDueSQL, now, limit)
}

// RecoverStale returns batches that have been EMITTING since before cutoff
// to READY and reports which ones were recovered.
func (r *Repo) RecoverStale(ctx context.Context, cutoff time.Time) ([]domain.Batch, error) {
	return r.updateMany(ctx, "recover stale batches", recoverStaleSQL, cutoff)
}

func (r *Repo) transition(ctx context.Context, id int64, query string, arg any) (domain.Batch, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	b, err := scanBatch(querier.QueryRow(ctx, query, id, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Batch{}, fmt.Errorf("batch %d: %w", id, domain.ErrConcurrencyConflict)
		}
		return domain.Batch{}, postgres.MapError(err, "batch", id)
	}
	return b, nil
}

func (r *Repo) updateMany(ctx context.Context, op, query string, args ...any) ([]domain.Batch, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := querier.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var batches []domain.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return batches, nil
}
