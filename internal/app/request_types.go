package app

import (
	"procurement-engine/internal/core"

	"github.com/shopspring/decimal"
)

// ListPurchaseOrdersRequest filters ListPurchaseOrders. Empty fields match everything.
type ListPurchaseOrdersRequest struct {
	ProjectID string `json:"project_id,omitempty"`
	VendorID  string `json:"vendor_id,omitempty"`
	Status    string `json:"status,omitempty"`
}

// MergeRequest selects the candidates to merge into TargetID, in selection order.
type MergeRequest struct {
	TargetID     string   `json:"target_id" jsonschema:"required"`
	CandidateIDs []string `json:"candidate_ids" jsonschema:"required,minItems=1"`
}

// RetryStatusUpdatesRequest carries the pending writes reported by a partial failure.
type RetryStatusUpdatesRequest struct {
	Operation string              `json:"operation" jsonschema:"required,enum=merge,enum=unmerge"`
	Updates   []core.StatusUpdate `json:"updates" jsonschema:"required,minItems=1"`
}

// DispatchRequest dispatches a PO, optionally recording who receives it on site.
type DispatchRequest struct {
	POID         string `json:"-"`
	ContactName  string `json:"contact_name,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
}

// PaymentSplitRequest sets the five milestone percentages of a PO.
type PaymentSplitRequest struct {
	POID        string            `json:"-"`
	Percentages []decimal.Decimal `json:"percentages" jsonschema:"required,minItems=5,maxItems=5"`
}

// Amendment edit operations.
const (
	EditQuantity = "quantity"
	EditMake     = "make"
	EditDelete   = "delete"
)

// AmendmentEditRequest is one edit on an amendment session. Quantity is used by
// "quantity" edits and Make by "make" edits; an empty Make clears the selection.
type AmendmentEditRequest struct {
	Token      string           `json:"-"`
	Op         string           `json:"op" jsonschema:"required,enum=quantity,enum=make,enum=delete"`
	ItemID     string           `json:"item_id" jsonschema:"required"`
	SourcePoID string           `json:"source_po_id,omitempty"`
	Quantity   *decimal.Decimal `json:"quantity,omitempty"`
	Make       string           `json:"make,omitempty"`
}

// Ref returns the line the edit targets.
func (r AmendmentEditRequest) Ref() core.LineRef {
	return core.LineRef{ItemID: r.ItemID, SourcePoID: r.SourcePoID}
}
