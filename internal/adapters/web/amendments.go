package web

import (
	"net/http"

	"procurement-engine/internal/app"
)

// apiBeginAmendment handles POST /api/purchase-orders/{id}/amendments.
func (h *Handler) apiBeginAmendment(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.BeginAmendment(r.Context(), poID(r))
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, result)
}

// apiGetAmendment handles GET /api/amendments/{token}.
func (h *Handler) apiGetAmendment(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetAmendment(r.Context(), sessionToken(r))
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	writeJSON(w, result)
}

// apiEditAmendment handles POST /api/amendments/{token}/edits.
func (h *Handler) apiEditAmendment(w http.ResponseWriter, r *http.Request) {
	var req app.AmendmentEditRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Token = sessionToken(r)
	result, err := h.svc.EditAmendment(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	writeJSON(w, result)
}

// apiUndoAmendment handles POST /api/amendments/{token}/undo.
func (h *Handler) apiUndoAmendment(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.UndoAmendment(r.Context(), sessionToken(r))
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	writeJSON(w, result)
}

// apiCommitAmendment handles POST /api/amendments/{token}/commit.
func (h *Handler) apiCommitAmendment(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.CommitAmendment(r.Context(), sessionToken(r))
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	writeJSON(w, result)
}

// apiDiscardAmendment handles DELETE /api/amendments/{token}.
func (h *Handler) apiDiscardAmendment(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DiscardAmendment(r.Context(), sessionToken(r)); err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
