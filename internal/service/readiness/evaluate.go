package readiness

import (
	"fmt"

	"github.com/heartmarshall/laudo-backend/internal/domain"
)

// Evaluate applies the readiness rules. Only zero completed work and
// eligible members without an assessment block; everything else is a warning.
func Evaluate(
	b domain.Batch,
	views []domain.AssessmentView,
	eligible []string,
	anomalies []domain.Anomaly,
	highExclusionRatio float64,
) domain.ReadinessReport {
	counts := domain.CountViews(views)

	report := domain.ReadinessReport{
		BatchID:         b.ID,
		Status:          string(b.Status),
		Reasons:         []domain.Reason{},
		CompletionRatio: counts.CompletionRatio(),
		Total:           counts.Total,
		Completed:       counts.Completed,
		Excluded:        counts.Excluded,
	}

	if counts.Completed == 0 {
		report.Reasons = append(report.Reasons, domain.Reason{
			Code:     domain.ReasonNoCompletedWork,
			Severity: domain.ReasonSeverityBlocking,
			Message:  "batch has no completed assessments",
		})
	}

	if missing := missingMembers(views, eligible); missing > 0 {
		report.PendingMemberCount = missing
		report.Reasons = append(report.Reasons, domain.Reason{
			Code:     domain.ReasonIncompleteCoverage,
			Severity: domain.ReasonSeverityBlocking,
			Message:  fmt.Sprintf("%d eligible members have no assessment in this batch", missing),
		})
	}

	if ratio := counts.ExclusionRatio(); ratio > highExclusionRatio {
		report.Reasons = append(report.Reasons, domain.Reason{
			Code:     domain.ReasonHighExclusionRate,
			Severity: domain.ReasonSeverityWarning,
			Message:  fmt.Sprintf("%.0f%% of assessments are excluded (threshold %.0f%%)", ratio*100, highExclusionRatio*100),
		})
	}

	for _, a := range anomalies {
		report.Reasons = append(report.Reasons, domain.Reason{
			Code:        domain.ReasonAnomalySignal,
			Severity:    domain.ReasonSeverityWarning,
			Message:     fmt.Sprintf("%s anomaly: %s", a.Severity, a.Note),
			EmployeeRef: a.EmployeeRef,
		})
	}

	report.Blocking = len(report.BlockingReasons()) > 0
	report.Eligible = !report.Blocking && counts.Pending() == 0

	return report
}

// missingMembers counts eligible refs with no assessment row, whatever its status.
func missingMembers(views []domain.AssessmentView, eligible []string) int {
	present := make(map[string]struct{}, len(views))
	for _, v := range views {
		present[domain.NormalizeEmployeeRef(v.EmployeeRef)] = struct{}{}
	}

	seen := make(map[string]struct{}, len(eligible))
	missing := 0
	for _, ref := range eligible {
		ref = domain.NormalizeEmployeeRef(ref)
		if ref == "" {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		if _, ok := present[ref]; !ok {
			missing++
		}
	}
	return missing
}
