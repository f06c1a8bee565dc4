// Package anomaly flags members whose assessment history looks abnormal.
// The signal is advisory: readiness surfaces it as a warning only.
package anomaly

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/heartmarshall/laudo-backend/internal/adapter/postgres"
	"github.com/heartmarshall/laudo-backend/internal/domain"
)

// Severities reported by Detect.
const (
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

const (
	mediumThreshold = 2
	highThreshold   = 3
)

// Repo reads past assessments of an owner.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new anomaly repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Only emitted cycles count as history.
const repeatedExclusionsSQL = `
SELECT a.employee_ref, count(*) AS exclusions
FROM assessments a
JOIN batches b ON b.id = a.batch_id
WHERE b.owner_kind = $1 AND b.owner_id = $2
  AND b.status IN ('EMITTED', 'SENT')
  AND a.status = 'EXCLUDED'
GROUP BY a.employee_ref
HAVING count(*) >= $3
ORDER BY exclusions DESC, a.employee_ref`

// DetectAnomalies returns members excluded from at least two previously
// emitted batches of owner.
func (r *Repo) DetectAnomalies(ctx context.Context, owner domain.Owner) ([]domain.Anomaly, error) {
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := querier.Query(ctx, repeatedExclusionsSQL, string(owner.Kind), owner.ID, mediumThreshold)
	if err != nil {
		return nil, fmt.Errorf("detect anomalies for %s: %w", owner, err)
	}
	defer rows.Close()

	var out []domain.Anomaly
	for rows.Next() {
		var (
			ref   string
			count int
		)
		if err := rows.Scan(&ref, &count); err != nil {
			return nil, fmt.Errorf("scan anomaly: %w", err)
		}
		out = append(out, classify(ref, count))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("detect anomalies for %s: %w", owner, err)
	}

	return out, nil
}

func classify(ref string, exclusions int) domain.Anomaly {
	severity := SeverityMedium
	if exclusions >= highThreshold {
		severity = SeverityHigh
	}
	return domain.Anomaly{
		EmployeeRef: ref,
		Severity:    severity,
		Note:        fmt.Sprintf("excluded from %d previous emitted batches", exclusions),
	}
}
