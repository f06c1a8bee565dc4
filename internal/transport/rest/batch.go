package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/heartmarshall/laudo-backend/internal/domain"
	"github.com/heartmarshall/laudo-backend/internal/service/batch"
	"github.com/heartmarshall/laudo-backend/internal/service/emission"
	"github.com/heartmarshall/laudo-backend/pkg/ctxutil"
)

type batchService interface {
	GetBatch(ctx context.Context, id int64) (domain.Batch, error)
	Create(ctx context.Context, input batch.CreateInput) (domain.Batch, error)
	Release(ctx context.Context, input batch.ReleaseInput) (batch.ReleaseResult, error)
	Cancel(ctx context.Context, input batch.CancelInput) (domain.Batch, error)
	MarkSent(ctx context.Context, batchID int64) (domain.Report, error)
	Revalidate(ctx context.Context, batchID int64) (domain.Batch, error)
}

type readinessService interface {
	Validate(ctx context.Context, batchID int64) (domain.ReadinessReport, error)
}

type reprocessService interface {
	RequestManualReprocess(ctx context.Context, batchID int64, actor string) (emission.ReprocessResult, error)
}

// BatchHandler serves the batch lifecycle endpoints.
type BatchHandler struct {
	batches   batchService
	readiness readinessService
	reprocess reprocessService
	log       *slog.Logger
}

// NewBatchHandler creates a BatchHandler.
func NewBatchHandler(batches batchService, readiness readinessService, reprocess reprocessService, logger *slog.Logger) *BatchHandler {
	return &BatchHandler{
		batches:   batches,
		readiness: readiness,
		reprocess: reprocess,
		log:       logger.With("handler", "batch"),
	}
}

type createBatchRequest struct {
	OwnerKind string `json:"owner_kind"`
	OwnerID   int64  `json:"owner_id"`
	ClinicID  *int64 `json:"clinic_id"`
}

type releaseRequest struct {
	EmployeeRefs []string `json:"employee_refs"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Get handles GET /batches/{id}.
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	b, err := h.batches.GetBatch(r.Context(), id)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResponse(b))
}

// Create handles POST /batches.
func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.batches.Create(r.Context(), batch.CreateInput{Owner: domain.Owner{
		Kind:     domain.OwnerKind(req.OwnerKind),
		ID:       req.OwnerID,
		ClinicID: req.ClinicID,
	}})
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBatchResponse(b))
}

// Release handles POST /batches/{id}/release.
func (h *BatchHandler) Release(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req releaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.batches.Release(r.Context(), batch.ReleaseInput{BatchID: id, EmployeeRefs: req.EmployeeRefs})
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	out := releaseResponse{Batch: toBatchResponse(res.Batch), Assessments: make([]assessmentResponse, 0, len(res.Assessments))}
	for _, a := range res.Assessments {
		out.Assessments = append(out.Assessments, toAssessmentResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

// Readiness handles GET /batches/{id}/readiness. It never changes state.
func (h *BatchHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	report, err := h.readiness.Validate(r.Context(), id)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Reprocess handles POST /batches/{id}/reprocess.
func (h *BatchHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	actor := ctxutil.ActorIDOr(r.Context(), domain.SystemActor)

	res, err := h.reprocess.RequestManualReprocess(r.Context(), id, actor)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, reprocessResponse{
		BatchID:     res.Batch.ID,
		Status:      string(res.Batch.Status),
		ScheduledAt: res.ScheduledAt,
	})
}

// Revalidate handles POST /batches/{id}/revalidate.
func (h *BatchHandler) Revalidate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	b, err := h.batches.Revalidate(r.Context(), id)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResponse(b))
}

// Cancel handles POST /batches/{id}/cancel.
func (h *BatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req cancelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.batches.Cancel(r.Context(), batch.CancelInput{BatchID: id, Reason: req.Reason})
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResponse(b))
}

// Delivered handles POST /batches/{id}/delivered, sent by the delivery
// collaborator once the laudo reached its recipient.
func (h *BatchHandler) Delivered(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	rep, err := h.batches.MarkSent(r.Context(), id)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(rep))
}
