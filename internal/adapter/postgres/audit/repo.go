// Package audit implements the AuditTrail repository using PostgreSQL.
// It provides append-only operations; the table rejects UPDATE and DELETE.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/laudo-backend/internal/adapter/postgres"
	"github.com/heartmarshall/laudo-backend/internal/domain"
)

// Repo provides audit trail persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new audit repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const (
	defaultQueryLimit = 200
	maxQueryLimit     = 1000
)

var auditColumns = []string{"id", "batch_id", "actor", "action", "outcome", "details", "created_at"}

const appendSQL = `
INSERT INTO audit_entries (batch_id, actor, action, outcome, details, created_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6::timestamptz, now()))
RETURNING id, batch_id, actor, action, outcome, details, created_at`

const lastAtSQL = `
SELECT MAX(created_at)
FROM audit_entries
WHERE batch_id = $1 AND action = $2 AND outcome = $3`

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Append inserts an audit entry and returns it with its id. A zero CreatedAt
// is stamped with the database clock.
func (r *Repo) Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("audit_entry marshal details: %w", err)
	}

	var createdAt any
	if !entry.CreatedAt.IsZero() {
		createdAt = entry.CreatedAt
	}

	got, err := scanEntry(querier.QueryRow(ctx, appendSQL,
		entry.BatchID, entry.Actor, string(entry.Action), string(entry.Outcome), detailsJSON, createdAt,
	))
	if err != nil {
		return domain.AuditEntry{}, postgres.MapError(err, "audit_entry for batch", entry.BatchID)
	}
	return got, nil
}

// Log appends an entry and discards the result. Satisfies the auditLogger
// interfaces of the services.
func (r *Repo) Log(ctx context.Context, entry domain.AuditEntry) error {
	_, err := r.Append(ctx, entry)
	return err
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// Query returns the audit entries of a batch, newest first.
func (r *Repo) Query(ctx context.Context, batchID int64, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	query, args, err := buildQuery(batchID, filter)
	if err != nil {
		return nil, fmt.Errorf("build audit query: %w", err)
	}

	querier := postgres.QuerierFromCtx(ctx, r.pool)
	rows, err := querier.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit_entries of batch %d: %w", batchID, err)
	}
	defer rows.Close()

	entries := []domain.AuditEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit_entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query audit_entries of batch %d: %w", batchID, err)
	}

	return entries, nil
}

// LastAt returns the time of the most recent entry of a batch with the given
// action and outcome, or nil if there is none.
func (r *Repo) LastAt(ctx context.Context, batchID int64, action domain.AuditAction, outcome domain.AuditOutcome) (*time.Time, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	var last *time.Time
	if err := querier.QueryRow(ctx, lastAtSQL, batchID, string(action), string(outcome)).Scan(&last); err != nil {
		return nil, postgres.MapError(err, "audit_entry for batch", batchID)
	}
	return last, nil
}

func buildQuery(batchID int64, filter domain.AuditFilter) (string, []any, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	builder := sq.Select(auditColumns...).
		From("audit_entries").
		Where(sq.Eq{"batch_id": batchID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar)

	if filter.Action != nil {
		builder = builder.Where(sq.Eq{"action": string(*filter.Action)})
	}
	if filter.Outcome != nil {
		builder = builder.Where(sq.Eq{"outcome": string(*filter.Outcome)})
	}
	if filter.Since != nil {
		builder = builder.Where(sq.GtOrEq{"created_at": *filter.Since})
	}

	return builder.ToSql()
}

func scanEntry(row pgx.Row) (domain.AuditEntry, error) {
	var (
		e       domain.AuditEntry
		details []byte
	)
	if err := row.Scan(&e.ID, &e.BatchID, &e.Actor, &e.Action, &e.Outcome, &details, &e.CreatedAt); err != nil {
		return domain.AuditEntry{}, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return domain.AuditEntry{}, fmt.Errorf("audit_entry %d unmarshal details: %w", e.ID, err)
		}
	}
	return e, nil
}
