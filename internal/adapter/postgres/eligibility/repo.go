// Package eligibility answers which members of an owner are expected to take
// part in an assessment cycle.
package eligibility

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	postgres "github.com/heartmarshall/laudo-backend/internal/adapter/postgres"
	"github.com/heartmarshall/laudo-backend/internal/domain"
)

// Repo reads the employees table.
type Repo struct {
	pool  *pgxpool.Pool
	clock clockwork.Clock
}

// New creates a new eligibility repository.
func New(pool *pgxpool.Pool, clock clockwork.Clock) *Repo {
	return &Repo{pool: pool, clock: clock}
}

// An employee is eligible for a cycle when they were hired on or before the
// release and were still active at that moment.
const eligibleSQL = `
SELECT employee_ref
FROM employees
WHERE owner_kind = $1 AND owner_id = $2
  AND hired_at <= $3
  AND (active OR deactivated_at > $3)
ORDER BY employee_ref`

// EligibleMembers returns the normalised refs of the employees expected in
// cycle. A cycle that has not been released yet is evaluated at now.
func (r *Repo) EligibleMembers(ctx context.Context, owner domain.Owner, cycle domain.Cycle) ([]string, error) {
	at := cycle.ReleasedAt
	if at.IsZero() {
		at = r.clock.Now()
	}

	querier := postgres.QuerierFromCtx(ctx, r.pool)
	rows, err := querier.Query(ctx, eligibleSQL, string(owner.Kind), owner.ID, at)
	if err != nil {
		return nil, fmt.Errorf("eligible members of %s: %w", owner, err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("scan eligible member: %w", err)
		}
		refs = append(refs, domain.NormalizeEmployeeRef(ref))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eligible members of %s: %w", owner, err)
	}

	return refs, nil
}
