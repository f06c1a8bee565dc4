package rest

import (
	"time"

	"github.com/heartmarshall/laudo-backend/internal/domain"
	"github.com/heartmarshall/laudo-backend/internal/service/monitoring"
)

type ownerDTO struct {
	Kind     string `json:"kind"`
	ID       int64  `json:"id"`
	ClinicID *int64 `json:"clinic_id,omitempty"`
}

type batchResponse struct {
	ID              int64      `json:"id"`
	Code            string     `json:"code"`
	OrderIndex      int        `json:"order_index"`
	Owner           ownerDTO   `json:"owner"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	ReleasedAt      *time.Time `json:"released_at,omitempty"`
	ReadyAt         *time.Time `json:"ready_at,omitempty"`
	ScheduledEmitAt *time.Time `json:"scheduled_emit_at,omitempty"`
	EmittedAt       *time.Time `json:"emitted_at,omitempty"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
}

func toBatchResponse(b domain.Batch) batchResponse {
	return batchResponse{
		ID:         b.ID,
		Code:       b.Code,
		OrderIndex: b.OrderIndex,
		Owner: ownerDTO{
			Kind:     string(b.Owner.Kind),
			ID:       b.Owner.ID,
			ClinicID: b.Owner.ClinicID,
		},
		Status:          string(b.Status),
		CreatedAt:       b.CreatedAt,
		ReleasedAt:      b.ReleasedAt,
		ReadyAt:         b.ReadyAt,
		ScheduledEmitAt: b.ScheduledEmitAt,
		EmittedAt:       b.EmittedAt,
		SentAt:          b.SentAt,
		CancelledAt:     b.CancelledAt,
	}
}

type assessmentResponse struct {
	ID              int64              `json:"id"`
	BatchID         int64              `json:"batch_id"`
	EmployeeRef     string             `json:"employee_ref"`
	Status          string             `json:"status"`
	Scores          map[string]float64 `json:"scores,omitempty"`
	StartedAt       time.Time          `json:"started_at"`
	CompletedAt     *time.Time         `json:"completed_at,omitempty"`
	ExcludedAt      *time.Time         `json:"excluded_at,omitempty"`
	ExclusionReason *string            `json:"exclusion_reason,omitempty"`
}

func toAssessmentResponse(a domain.Assessment) assessmentResponse {
	return assessmentResponse{
		ID:              a.ID,
		BatchID:         a.BatchID,
		EmployeeRef:     a.EmployeeRef,
		Status:          string(a.Status),
		Scores:          a.Scores,
		StartedAt:       a.StartedAt,
		CompletedAt:     a.CompletedAt,
		ExcludedAt:      a.ExcludedAt,
		ExclusionReason: a.ExclusionReason,
	}
}

type assessmentResultResponse struct {
	Assessment  assessmentResponse `json:"assessment"`
	BatchStatus string             `json:"batch_status"`
	Batch       batchResponse      `json:"batch"`
}

type releaseResponse struct {
	Batch       batchResponse        `json:"batch"`
	Assessments []assessmentResponse `json:"assessments"`
}

type reprocessResponse struct {
	BatchID     int64     `json:"batch_id"`
	Status      string    `json:"status"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

type reportResponse struct {
	ID              int64      `json:"id"`
	BatchID         int64      `json:"batch_id"`
	ContentHash     string     `json:"content_hash"`
	StorageLocation string     `json:"storage_location"`
	Status          string     `json:"status"`
	EmittedAt       time.Time  `json:"emitted_at"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
}

func toReportResponse(r domain.Report) reportResponse {
	return reportResponse{
		ID:              r.ID,
		BatchID:         r.BatchID,
		ContentHash:     r.ContentHash,
		StorageLocation: r.StorageLocation,
		Status:          string(r.Status),
		EmittedAt:       r.EmittedAt,
		SentAt:          r.SentAt,
	}
}

type reportHashResponse struct {
	ReportID    int64     `json:"report_id"`
	BatchID     int64     `json:"batch_id"`
	ContentHash string    `json:"content_hash"`
	Algorithm   string    `json:"algorithm"`
	Status      string    `json:"status"`
	EmittedAt   time.Time `json:"emitted_at"`
}

func toReportHashResponse(h monitoring.ReportHash) reportHashResponse {
	return reportHashResponse{
		ReportID:    h.ReportID,
		BatchID:     h.BatchID,
		ContentHash: h.ContentHash,
		Algorithm:   "sha256",
		Status:      string(h.Status),
		EmittedAt:   h.EmittedAt,
	}
}

type auditEntryResponse struct {
	ID        int64          `json:"id"`
	BatchID   int64          `json:"batch_id"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Outcome   string         `json:"outcome"`
	Details   map[string]any `json:"details"`
	CreatedAt time.Time      `json:"created_at"`
}

func toAuditResponse(entries []domain.AuditEntry) []auditEntryResponse {
	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse{
			ID:        e.ID,
			BatchID:   e.BatchID,
			Actor:     e.Actor,
			Action:    string(e.Action),
			Outcome:   string(e.Outcome),
			Details:   e.Details,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

type pendingResponse struct {
	Batch         batchResponse `json:"batch"`
	Stage         string        `json:"stage"`
	AgeSeconds    int64         `json:"age_seconds"`
	Age           string        `json:"age"`
	LastFailureAt *time.Time    `json:"last_failure_at,omitempty"`
}

func toPendingResponse(items []domain.PendingBatch) []pendingResponse {
	out := make([]pendingResponse, 0, len(items))
	for _, p := range items {
		out = append(out, pendingResponse{
			Batch:         toBatchResponse(p.Batch),
			Stage:         string(p.Stage),
			AgeSeconds:    int64(p.Age / time.Second),
			Age:           p.Age.Truncate(time.Second).String(),
			LastFailureAt: p.LastFailureAt,
		})
	}
	return out
}
