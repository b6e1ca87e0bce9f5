package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"procurement-engine/internal/app"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Options configures NewHandler.
type Options struct {
	AllowedOrigins []string
	JWTSecret      string
	Logger         *zap.Logger
	// Metrics serves /metrics when non-nil.
	Metrics http.Handler
}

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	router    chi.Router
	jwtSecret string
	log       *zap.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		svc:       svc,
		jwtSecret: opts.JWTSecret,
		log:       log,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(opts.AllowedOrigins))
	r.NotFound(notFound)

	// ── Public ───────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Get("/api/schemas/{name}", h.schema)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/auth/me", h.me)

		// Purchase orders
		r.Get("/api/purchase-orders", h.apiListPurchaseOrders)
		r.Get("/api/purchase-orders/{id}", h.apiGetPurchaseOrder)
		r.Get("/api/purchase-orders/{id}/totals", h.apiGetTotals)
		r.Get("/api/purchase-orders/{id}/export.xlsx", h.apiExportPurchaseOrder)
		r.Put("/api/purchase-orders/{id}/payment-split", h.apiSetPaymentSplit)
		r.Post("/api/purchase-orders/{id}/dispatch", h.apiDispatch)
		r.Post("/api/purchase-orders/{id}/revert-dispatch", h.apiRevertDispatch)
		r.Post("/api/purchase-orders/{id}/cancel", h.apiCancel)

		// Merge / unmerge
		r.Get("/api/purchase-orders/{id}/merge-candidates", h.apiMergeCandidates)
		r.Post("/api/purchase-orders/{id}/merge/preview", h.apiPreviewMerge)
		r.Post("/api/purchase-orders/{id}/merge", h.apiMerge)
		r.Post("/api/purchase-orders/{id}/unmerge", h.apiUnmerge)
		r.Post("/api/status-updates/retry", h.apiRetryStatusUpdates)

		// Amendments
		r.Post("/api/purchase-orders/{id}/amendments", h.apiBeginAmendment)
		r.Get("/api/amendments/{token}", h.apiGetAmendment)
		r.Post("/api/amendments/{token}/edits", h.apiEditAmendment)
		r.Post("/api/amendments/{token}/undo", h.apiUndoAmendment)
		r.Post("/api/amendments/{token}/commit", h.apiCommitAmendment)
		r.Delete("/api/amendments/{token}", h.apiDiscardAmendment)
	})

	h.router = r
	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// poID extracts the {id} URL parameter.
func poID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// sessionToken extracts the {token} URL parameter.
func sessionToken(r *http.Request) string {
	return chi.URLParam(r, "token")
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
