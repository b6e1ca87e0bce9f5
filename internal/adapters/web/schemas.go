package web

import (
	"net/http"
	"reflect"

	"procurement-engine/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"
)

// requestSchemas are the request bodies published under /api/schemas/{name}.
var requestSchemas = map[string]any{
	"merge":          app.MergeRequest{},
	"retry":          app.RetryStatusUpdatesRequest{},
	"dispatch":       app.DispatchRequest{},
	"payment-split":  app.PaymentSplitRequest{},
	"amendment-edit": app.AmendmentEditRequest{},
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

func generateSchema(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		// Decimals travel as strings, e.g. "12.50".
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == decimalType {
				return &jsonschema.Schema{Type: "string", Pattern: `^-?[0-9]+(\.[0-9]+)?$`}
			}
			return nil
		},
	}
	return reflector.Reflect(v)
}

// schema handles GET /api/schemas/{name}.
func (h *Handler) schema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	v, ok := requestSchemas[name]
	if !ok {
		writeError(w, r, "unknown schema "+name, "NOT_FOUND", http.StatusNotFound)
		return
	}
	writeJSON(w, generateSchema(v))
}
