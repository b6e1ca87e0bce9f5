package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"procurement-engine/internal/core"
	"procurement-engine/internal/session"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

type writeFailureResponse struct {
	POID  string `json:"po_id"`
	Error string `json:"error"`
}

type partialFailureResponse struct {
	errorResponse
	Operation string                 `json:"operation"`
	Failures  []writeFailureResponse `json:"failures"`
	Pending   []core.StatusUpdate    `json:"pending"`
	Result    any                    `json:"result,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError maps engine errors onto HTTP statuses. result, when non-nil, is
// included in partial failure responses so the caller sees what did complete.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, result any) {
	var (
		pf *core.PartialFailure
		ve *core.ValidationError
		pv *core.PreconditionViolation
	)
	switch {
	case errors.As(err, &pf):
		resp := partialFailureResponse{
			errorResponse: errorResponse{
				Error:     pf.Error(),
				Code:      "PARTIAL_FAILURE",
				RequestID: requestIDFromContext(r.Context()),
			},
			Operation: pf.Operation,
			Pending:   pf.Pending,
			Result:    result,
		}
		for _, f := range pf.Failures {
			resp.Failures = append(resp.Failures, writeFailureResponse{POID: f.POID, Error: f.Err.Error()})
		}
		h.log.Warn("partial failure",
			zap.String("request_id", resp.RequestID),
			zap.String("operation", pf.Operation),
			zap.Int("failures", len(pf.Failures)),
		)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(resp)
	case errors.As(err, &ve):
		writeError(w, r, ve.Message, ve.Code, http.StatusUnprocessableEntity)
	case errors.As(err, &pv):
		writeError(w, r, pv.Message, pv.Code, http.StatusConflict)
	case errors.Is(err, core.ErrPONotFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, session.ErrNotFound):
		writeError(w, r, err.Error(), "SESSION_NOT_FOUND", http.StatusNotFound)
	default:
		h.log.Error("request failed",
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// notFound returns HTTP 404 JSON for unknown routes.
func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, "route not found", "NOT_FOUND", http.StatusNotFound)
}
