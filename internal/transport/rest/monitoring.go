package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/heartmarshall/laudo-backend/internal/domain"
	"github.com/heartmarshall/laudo-backend/internal/service/monitoring"
)

type monitoringService interface {
	Pending(ctx context.Context, filter domain.PendingFilter) ([]domain.PendingBatch, error)
	AuditTrail(ctx context.Context, batchID int64, filter domain.AuditFilter) ([]domain.AuditEntry, error)
	ReportHash(ctx context.Context, reportID int64) (monitoring.ReportHash, error)
}

// MonitoringHandler serves the read-only operator queries.
type MonitoringHandler struct {
	svc monitoringService
	log *slog.Logger
}

func NewMonitoringHandler(svc monitoringService, logger *slog.Logger) *MonitoringHandler {
	return &MonitoringHandler{svc: svc, log: logger.With("handler", "monitoring")}
}

// Pending handles GET /monitoring/pending?stage=&owner_kind=&owner_id=&clinic_id=&limit=.
func (h *MonitoringHandler) Pending(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter domain.PendingFilter

	if s := q.Get("stage"); s != "" {
		stage := domain.PendingStage(s)
		filter.Stage = &stage
	}
	if kind := q.Get("owner_kind"); kind != "" {
		ownerID, err := strconv.ParseInt(q.Get("owner_id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid owner_id")
			return
		}
		owner := domain.Owner{Kind: domain.OwnerKind(kind), ID: ownerID}
		if c := q.Get("clinic_id"); c != "" {
			clinicID, err := strconv.ParseInt(c, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid clinic_id")
				return
			}
			owner.ClinicID = &clinicID
		}
		filter.Owner = &owner
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	filter.Limit = limit

	items, err := h.svc.Pending(r.Context(), filter)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPendingResponse(items))
}

// AuditTrail handles GET /batches/{id}/audit?action=&outcome=&since=&limit=.
func (h *MonitoringHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	q := r.URL.Query()
	var filter domain.AuditFilter

	if a := q.Get("action"); a != "" {
		action := domain.AuditAction(a)
		filter.Action = &action
	}
	if o := q.Get("outcome"); o != "" {
		outcome := domain.AuditOutcome(o)
		filter.Outcome = &outcome
	}
	if s := q.Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since, want RFC 3339")
			return
		}
		filter.Since = &since
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	filter.Limit = limit

	entries, err := h.svc.AuditTrail(r.Context(), id, filter)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditResponse(entries))
}

// ReportHash handles GET /reports/{id}/hash.
func (h *MonitoringHandler) ReportHash(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	hash, err := h.svc.ReportHash(r.Context(), id)
	if err != nil {
		handleError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportHashResponse(hash))
}

func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return v, true
}
