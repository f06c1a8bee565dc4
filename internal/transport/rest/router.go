package rest

import (
	"net/http"

	"github.com/heartmarshall/laudo-backend/internal/transport/middleware"
	"github.com/heartmarshall/laudo-backend/pkg/ctxutil"
)

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Health     *HealthHandler
	Batch      *BatchHandler
	Assessment *AssessmentHandler
	Monitoring *MonitoringHandler
}

// NewRouter mounts every endpoint with its role requirement. limit wraps the
// authenticated API routes; health probes are never limited. Authentication
// itself is expected to run before the router.
func NewRouter(h Handlers, limit middleware.Middleware) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /live", h.Health.Live)
	mux.HandleFunc("GET /ready", h.Health.Ready)
	mux.HandleFunc("GET /health", h.Health.Health)

	route := func(pattern string, fn http.HandlerFunc, roles ...string) {
		mux.Handle(pattern, middleware.Chain(middleware.RequireRole(roles...), limit)(fn))
	}

	issuer := ctxutil.RoleIssuer
	system := ctxutil.RoleSystem

	route("POST /batches", h.Batch.Create, system)
	route("GET /batches/{id}", h.Batch.Get, issuer, system)
	route("POST /batches/{id}/release", h.Batch.Release, system)
	route("GET /batches/{id}/readiness", h.Batch.Readiness, issuer)
	route("POST /batches/{id}/reprocess", h.Batch.Reprocess, issuer)
	route("POST /batches/{id}/revalidate", h.Batch.Revalidate, issuer)
	route("POST /batches/{id}/cancel", h.Batch.Cancel, issuer)
	route("POST /batches/{id}/delivered", h.Batch.Delivered, system)
	route("GET /batches/{id}/audit", h.Monitoring.AuditTrail, issuer)

	route("POST /assessments/{id}/start", h.Assessment.Start, system)
	route("POST /assessments/{id}/complete", h.Assessment.Complete, system)
	route("POST /assessments/{id}/exclude", h.Assessment.Exclude, system)

	route("GET /reports/{id}/hash", h.Monitoring.ReportHash)
	route("GET /monitoring/pending", h.Monitoring.Pending, issuer)

	return mux
}
