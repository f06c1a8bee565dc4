package batch

import (
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/heartmarshall/laudo-backend/internal/domain"
)

// batchDest returns scan destinations in batchColumns order. Pointer time
// fields scan NULL as nil.
func batchDest(b *domain.Batch) []any {
	return []any{
		&b.ID, &b.Code, &b.OrderIndex, &b.Owner.Kind, &b.Owner.ID, &b.Owner.ClinicID, &b.Status,
		&b.CreatedAt, &b.ReleasedAt, &b.ReadyAt, &b.ScheduledEmitAt, &b.EmissionStartedAt,
		&b.EmittedAt, &b.SentAt, &b.CancelledAt,
	}
}

func scanBatch(row pgx.Row) (domain.Batch, error) {
	var b domain.Batch
	if err := row.Scan(batchDest(&b)...); err != nil {
		return domain.Batch{}, err
	}
	return b, nil
}

// prefixed qualifies a comma-separated column list with a table alias.
func prefixed(alias, columns string) []string {
	parts := strings.Split(columns, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, alias+"."+p)
		}
	}
	return out
}
