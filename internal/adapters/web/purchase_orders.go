package web

import (
	"fmt"
	"net/http"
	"strconv"

	"procurement-engine/internal/app"
)

// apiListPurchaseOrders handles GET /api/purchase-orders?project_id=&vendor_id=&status=.
func (h *Handler) apiListPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.svc.ListPurchaseOrders(r.Context(), app.ListPurchaseOrdersRequest{
		ProjectID: q.Get("project_id"),
		VendorID:  q.Get("vendor_id"),
		Status:    q.Get("status"),
	})
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	writeJSON(w, result)
}

// apiGetPurchaseOrder handles GET /api/purchase-orders/{id}.
func (h *Handler) apiGetPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetPurchaseOrder(r.Context(), poID(r))
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	writeJSON(w, result)
}

// apiGetTotals handles GET /api/purchase-orders/{id}/totals.
func (h *Handler) apiGetTotals(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetTotals(r.Context(), poID(r))
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	writeJSON(w, result)
}

// apiExportPurchaseOrder handles GET /api/purchase-orders/{id}/export.xlsx.
func (h *Handler) apiExportPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ExportPurchaseOrder(r.Context(), poID(r))
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	_, _ = w.Write(out.Data)
}

// apiSetPaymentSplit handles PUT /api/purchase-orders/{id}/payment-split.
func (h *Handler) apiSetPaymentSplit(w http.ResponseWriter, r *http.Request) {
	var req app.PaymentSplitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.POID = poID(r)
	result, err := h.svc.SetPaymentSplit(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	writeJSON(w, result)
}

// apiDispatch handles POST /api/purchase-orders/{id}/dispatch. The body is optional.
func (h *Handler) apiDispatch(w http.ResponseWriter, r *http.Request) {
	var req app.DispatchRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	req.POID = poID(r)
	result, err := h.svc.DispatchPurchaseOrder(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	writeJSON(w, result)
}

// apiRevertDispatch handles POST /api/purchase-orders/{id}/revert-dispatch.
func (h *Handler) apiRevertDispatch(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.RevertDispatch(r.Context(), poID(r))
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	writeJSON(w, result)
}

// apiCancel handles POST /api/purchase-orders/{id}/cancel.
func (h *Handler) apiCancel(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.CancelPurchaseOrder(r.Context(), poID(r))
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	writeJSON(w, result)
}

// apiMergeCandidates handles GET /api/purchase-orders/{id}/merge-candidates.
func (h *Handler) apiMergeCandidates(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListMergeCandidates(r.Context(), poID(r))
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	writeJSON(w, result)
}

type mergeBody struct {
	CandidateIDs []string `json:"candidate_ids"`
}

// apiPreviewMerge handles POST /api/purchase-orders/{id}/merge/preview.
func (h *Handler) apiPreviewMerge(w http.ResponseWriter, r *http.Request) {
	var body mergeBody
	if !decodeJSON(w, r, &body) {
		return
	}
	result, err := h.svc.PreviewMerge(r.Context(), app.MergeRequest{TargetID: poID(r), CandidateIDs: body.CandidateIDs})
	if err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	writeJSON(w, result)
}

// apiMerge handles POST /api/purchase-orders/{id}/merge.
func (h *Handler) apiMerge(w http.ResponseWriter, r *http.Request) {
	var body mergeBody
	if !decodeJSON(w, r, &body) {
		return
	}
	result, err := h.svc.MergePurchaseOrders(r.Context(), app.MergeRequest{TargetID: poID(r), CandidateIDs: body.CandidateIDs})
	if err != nil {
		h.writeServiceError(w, r, err, result)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, result)
}

// apiUnmerge handles POST /api/purchase-orders/{id}/unmerge.
func (h *Handler) apiUnmerge(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.UnmergePurchaseOrder(r.Context(), poID(r))
	if err != nil {
		h.writeServiceError(w, r, err, result)
		return
	}
	writeJSON(w, result)
}

// apiRetryStatusUpdates handles POST /api/status-updates/retry.
func (h *Handler) apiRetryStatusUpdates(w http.ResponseWriter, r *http.Request) {
	var req app.RetryStatusUpdatesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.RetryStatusUpdates(r.Context(), req); err != nil {
		h.writeServiceError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
