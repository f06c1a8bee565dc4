package rest

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/heartmarshall/laudo-backend/internal/domain"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Fields  []fieldError      `json:"fields,omitempty"`
	Reasons []domain.Reason   `json:"reasons,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// pathID parses a positive int64 path value.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// handleError maps domain errors to HTTP responses. Operators see three
// distinct failure families: blocked (422), rejected (409/429) and
// failed-will-retry (503).
func handleError(log *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation  *domain.ValidationError
		blocked     *domain.ValidationBlockedError
		rateLimited *domain.RateLimitedError
		transition  *domain.TransitionError
	)
	switch {
	case errors.As(err, &validation):
		resp := errorResponse{Error: "validation failed", Code: "VALIDATION"}
		for _, f := range validation.Errors {
			resp.Fields = append(resp.Fields, fieldError{Field: f.Field, Message: f.Message})
		}
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "VALIDATION"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found", Code: "NOT_FOUND"})
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.As(err, &blocked):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: "batch is blocked and needs more data", Code: "VALIDATION_BLOCKED", Reasons: blocked.Reasons,
		})
	case errors.As(err, &rateLimited):
		seconds := int(math.Ceil(rateLimited.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error: "too soon to retry", Code: "RATE_LIMITED",
			Details: map[string]string{"retry_after": rateLimited.RetryAfter.String()},
		})
	case errors.Is(err, domain.ErrAlreadySent):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "report already sent", Code: "ALREADY_SENT"})
	case errors.Is(err, domain.ErrAlreadyEmitted):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "report already emitted", Code: "ALREADY_EMITTED"})
	case errors.Is(err, domain.ErrImmutable):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "batch is immutable after emission", Code: "IMMUTABLE"})
	case errors.As(err, &transition):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error: err.Error(), Code: "INVALID_TRANSITION",
			Details: map[string]string{"from": string(transition.From), "to": string(transition.To)},
		})
	case errors.Is(err, domain.ErrConcurrencyConflict),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "conflict", Code: "CONFLICT"})
	case errors.Is(err, domain.ErrTransientEmission):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "emission failed and will be retried", Code: "TRANSIENT"})
	default:
		log.ErrorContext(r.Context(), "internal error",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
