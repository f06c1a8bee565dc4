package render

import (
	"time"

	"github.com/heartmarshall/laudo-backend/internal/domain"
)

// renderRequest is the wire shape of a snapshot.
type renderRequest struct {
	Batch       batchPayload        `json:"batch"`
	Assessments []assessmentPayload `json:"assessments"`
	Summary     summaryPayload      `json:"summary"`
	Warnings    []domain.Reason     `json:"warnings"`
	TakenAt     time.Time           `json:"taken_at"`
}

type batchPayload struct {
	ID         int64      `json:"id"`
	Code       string     `json:"code"`
	OrderIndex int        `json:"order_index"`
	OwnerKind  string     `json:"owner_kind"`
	OwnerID    int64      `json:"owner_id"`
	ClinicID   *int64     `json:"clinic_id,omitempty"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
}

type assessmentPayload struct {
	EmployeeRef string             `json:"employee_ref"`
	State       string             `json:"state"`
	Scores      map[string]float64 `json:"scores,omitempty"`
}

type summaryPayload struct {
	Total           int     `json:"total"`
	Completed       int     `json:"completed"`
	Excluded        int     `json:"excluded"`
	CompletionRatio float64 `json:"completion_ratio"`
}

func toRequest(s domain.BatchSnapshot) renderRequest {
	req := renderRequest{
		Batch: batchPayload{
			ID:         s.Batch.ID,
			Code:       s.Batch.Code,
			OrderIndex: s.Batch.OrderIndex,
			OwnerKind:  string(s.Batch.Owner.Kind),
			OwnerID:    s.Batch.Owner.ID,
			ClinicID:   s.Batch.Owner.ClinicID,
			ReleasedAt: s.Batch.ReleasedAt,
		},
		Assessments: make([]assessmentPayload, 0, len(s.Assessments)),
		Summary: summaryPayload{
			Total:           s.Counts.Total,
			Completed:       s.Counts.Completed,
			Excluded:        s.Counts.Excluded,
			CompletionRatio: s.Counts.CompletionRatio(),
		},
		Warnings: s.Readiness.Warnings(),
		TakenAt:  s.TakenAt,
	}
	for _, a := range s.Assessments {
		req.Assessments = append(req.Assessments, assessmentPayload{
			EmployeeRef: a.EmployeeRef,
			State:       string(a.State),
			Scores:      a.Scores,
		})
	}
	if req.Warnings == nil {
		req.Warnings = []domain.Reason{}
	}
	return req
}
