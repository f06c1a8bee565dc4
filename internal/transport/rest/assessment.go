package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/heartmarshall/laudo-backend/internal/service/batch"
)

type assessmentService interface {
	StartAssessment(ctx context.Context, assessmentID int64) (batch.AssessmentResult, error)
	CompleteAssessment(ctx context.Context, input batch.CompleteInput) (batch.AssessmentResult, error)
	ExcludeAssessment(ctx context.Context, input batch.ExcludeInput) (batch.AssessmentResult, error)
}

// AssessmentHandler receives assessment events from the questionnaire service.
type AssessmentHandler struct {
	svc assessmentService
	log *slog.Logger
}

func NewAssessmentHandler(svc assessmentService, logger *slog.Logger) *AssessmentHandler {
	return &AssessmentHandler{svc: svc, log: logger.With("handler", "assessment")}
}

type completeRequest struct {
	Scores map[string]float64 `json:"scores"`
}

type excludeRequest struct {
	Reason string `json:"reason"`
}

// Start handles POST /assessments/{id}/start.
func (h *AssessmentHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res, err := h.svc.StartAssessment(r.Context(), id)
	h.respond(w, r, res, err)
}

// Complete handles POST /assessments/{id}/complete.
func (h *AssessmentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req completeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.CompleteAssessment(r.Context(), batch.CompleteInput{AssessmentID: id, Scores: req.Scores})
	h.respond(w, r, res, err)
}

// Exclude handles POST /assessments/{id}/exclude.
func (h *AssessmentHandler) Exclude(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req excludeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.ExcludeAssessment(r.Context(), batch.ExcludeInput{AssessmentID: id, Reason: req.Reason})
	h.respond(w, r, res, err)
}

func (h *AssessmentHandler) respond(w http.ResponseWriter, r *http.Request, res batch.AssessmentResult, err error) {
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, assessmentResultResponse{
		Assessment:  toAssessmentResponse(res.Assessment),
		BatchStatus: string(res.Batch.Status),
		Batch:       toBatchResponse(res.Batch),
	})
}
