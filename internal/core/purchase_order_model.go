package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// POStatus is the lifecycle state of a purchase order.
type POStatus string

const (
	StatusDraft      POStatus = "Draft"
	StatusApproved   POStatus = "PO Approved"
	StatusDispatched POStatus = "Dispatched"
	StatusMerged     POStatus = "Merged"
	StatusCancelled  POStatus = "Cancelled"
	StatusAmendment  POStatus = "PO Amendment"
)

// LineStatusPending is the status given to every item of a sent-back record.
const LineStatusPending = "Pending"

// SentBackCancelled is the type label of the record forked by a cancellation.
const SentBackCancelled = "Sent Back (Cancelled)"

// MakeEntry is one manufacturer option on a line. At most one entry per line is enabled.
type MakeEntry struct {
	Make    string `json:"make"`
	Enabled bool   `json:"enabled"`
}

// OrderLine is one purchased item within a purchase order.
type OrderLine struct {
	ItemID   string          `json:"item_id"`
	ItemName string          `json:"item_name"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit"`
	Rate     decimal.Decimal `json:"rate"`     // quoted unit price
	TaxRate  decimal.Decimal `json:"tax_rate"` // percent
	Makes    []MakeEntry     `json:"makes"`
	// SourcePoID is set on lines carried into a consolidated PO by a merge.
	SourcePoID string `json:"source_po_id,omitempty"`
	Comment    string `json:"comment,omitempty"`
	Category   string `json:"category"`
	Status     string `json:"status,omitempty"`
}

// Amount returns rate × quantity.
func (l OrderLine) Amount() decimal.Decimal {
	return l.Rate.Mul(l.Quantity)
}

// Ref returns the identity of the line within its list.
func (l OrderLine) Ref() LineRef {
	return LineRef{ItemID: l.ItemID, SourcePoID: l.SourcePoID}
}

// EnabledMake returns the selected make, or "" when none is enabled.
func (l OrderLine) EnabledMake() string {
	for _, m := range l.Makes {
		if m.Enabled {
			return m.Make
		}
	}
	return ""
}

// ValidateMakes checks that at most one make is enabled.
func (l OrderLine) ValidateMakes() error {
	enabled := 0
	for _, m := range l.Makes {
		if m.Enabled {
			enabled++
		}
	}
	if enabled > 1 {
		return validationErrorf(CodeMultipleMakes, "item %s has %d enabled makes (at most 1 allowed)", l.ItemID, enabled)
	}
	return nil
}

// Clone returns a deep copy of the line.
func (l OrderLine) Clone() OrderLine {
	c := l
	if l.Makes != nil {
		c.Makes = make([]MakeEntry, len(l.Makes))
		copy(c.Makes, l.Makes)
	}
	return c
}

// LineRef identifies a line in an order list. A bare ItemID (empty SourcePoID) matches
// only when exactly one line carries that item.
type LineRef struct {
	ItemID     string `json:"item_id"`
	SourcePoID string `json:"source_po_id,omitempty"`
}

func (r LineRef) String() string {
	if r.SourcePoID == "" {
		return r.ItemID
	}
	return r.ItemID + "@" + r.SourcePoID
}

// ItemRef builds a LineRef from an item id alone.
func ItemRef(itemID string) LineRef {
	return LineRef{ItemID: itemID}
}

// OrderList is the ordered line list owned by exactly one purchase order.
type OrderList struct {
	Lines []OrderLine `json:"lines"`
}

// Clone returns a deep copy of the list.
func (o OrderList) Clone() OrderList {
	return OrderList{Lines: cloneLines(o.Lines)}
}

func cloneLines(lines []OrderLine) []OrderLine {
	if lines == nil {
		return nil
	}
	out := make([]OrderLine, len(lines))
	for i, l := range lines {
		out[i] = l.Clone()
	}
	return out
}

// Surcharges are PO-level charges taxed at SurchargeTaxRate.
type Surcharges struct {
	Loading decimal.Decimal `json:"loading"`
	Freight decimal.Decimal `json:"freight"`
}

// PaymentSplit holds the five milestone percentages. They sum to 0 (unset) or 100.
type PaymentSplit [5]decimal.Decimal

// DeliveryContact is recorded when a PO is dispatched.
type DeliveryContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// PurchaseOrder is a committed vendor order.
type PurchaseOrder struct {
	ID                   string           `json:"id"`
	ProjectID            string           `json:"project_id"`
	ProjectName          string           `json:"project_name"`
	VendorID             string           `json:"vendor_id"`
	VendorName           string           `json:"vendor_name"`
	ProcurementRequestID string           `json:"procurement_request_id,omitempty"`
	OrderList            OrderList        `json:"order_list"`
	Status               POStatus         `json:"status"`
	MergedInto           *string          `json:"merged_into,omitempty"`
	Merged               bool             `json:"merged"` // consolidated PO produced by a merge
	PaymentsTotal        decimal.Decimal  `json:"payments_total"`
	Surcharges           Surcharges       `json:"surcharges"`
	PaymentSplit         PaymentSplit     `json:"payment_split"`
	DeliveryContact      *DeliveryContact `json:"delivery_contact,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// Clone returns a deep copy of the purchase order.
func (po PurchaseOrder) Clone() PurchaseOrder {
	c := po
	c.OrderList = po.OrderList.Clone()
	if po.MergedInto != nil {
		id := *po.MergedInto
		c.MergedInto = &id
	}
	if po.DeliveryContact != nil {
		dc := *po.DeliveryContact
		c.DeliveryContact = &dc
	}
	return c
}

// HasPayments reports whether any payment has been recorded against the PO.
func (po PurchaseOrder) HasPayments() bool {
	return po.PaymentsTotal.GreaterThan(decimal.Zero)
}

// Validate checks the structural invariants of the purchase order.
func (po PurchaseOrder) Validate() error {
	if err := ValidatePaymentSplit(po.PaymentSplit); err != nil {
		return err
	}
	for _, l := range po.OrderList.Lines {
		if err := l.ValidateMakes(); err != nil {
			return err
		}
	}
	if (po.MergedInto != nil) != (po.Status == StatusMerged) {
		return validationErrorf(CodeMergedIntoMismatch, "purchase order %s: merged_into must be set iff status is %s", po.ID, StatusMerged)
	}
	return nil
}

// StatusUpdate is one status write required by a merge or unmerge. It applies only
// while the PO is in From, or is already in To, so replaying it is idempotent.
type StatusUpdate struct {
	POID       string   `json:"po_id"`
	From       POStatus `json:"from"`
	To         POStatus `json:"to"`
	MergedInto *string  `json:"merged_into,omitempty"`
}

// SentBackCategory is one deduplicated category of a sent-back record.
type SentBackCategory struct {
	Name  string   `json:"name"`
	Makes []string `json:"makes"`
}

// SentBackRecord re-enters the procurement pipeline when a PO is cancelled.
type SentBackRecord struct {
	ID                   string             `json:"id"`
	Type                 string             `json:"type"`
	SourcePOID           string             `json:"source_po_id"`
	ProcurementRequestID string             `json:"procurement_request_id,omitempty"`
	ProjectID            string             `json:"project_id"`
	VendorID             string             `json:"vendor_id"`
	Items                []OrderLine        `json:"items"`
	Categories           []SentBackCategory `json:"categories"`
	CreatedAt            time.Time          `json:"created_at"`
}

// PurchaseOrderStore is the persistence boundary of the engine. Every write is a single
// document operation; implementations must make UpdateStatus idempotent.
type PurchaseOrderStore interface {
	// GetPO returns a purchase order by id, or an error wrapping ErrPONotFound.
	GetPO(ctx context.Context, id string) (*PurchaseOrder, error)

	// ListPOs returns purchase orders filtered by project, vendor and status.
	// Empty filter values match everything.
	ListPOs(ctx context.Context, filter POFilter) ([]PurchaseOrder, error)

	// CreatePO inserts a new purchase order.
	CreatePO(ctx context.Context, po PurchaseOrder) error

	// SavePO replaces an existing purchase order document.
	SavePO(ctx context.Context, po PurchaseOrder) error

	// UpdateStatus applies a merge/unmerge status write.
	UpdateStatus(ctx context.Context, update StatusUpdate) error

	// DeletePO removes a purchase order.
	DeletePO(ctx context.Context, id string) error

	// CreateSentBack inserts a sent-back record.
	CreateSentBack(ctx context.Context, rec SentBackRecord) error
}

// POFilter selects purchase orders in ListPOs.
type POFilter struct {
	ProjectID  string
	VendorID   string
	Status     POStatus
	MergedInto string
}

// CategoryMakesLookup resolves the allowed makes of a category on the upstream
// procurement request.
type CategoryMakesLookup interface {
	CategoryMakes(ctx context.Context, procurementRequestID string) (map[string][]string, error)
}

func (s POStatus) String() string {
	return string(s)
}

// ParseStatus converts a stored status string into a POStatus.
func ParseStatus(s string) (POStatus, error) {
	switch st := POStatus(s); st {
	case StatusDraft, StatusApproved, StatusDispatched, StatusMerged, StatusCancelled, StatusAmendment:
		return st, nil
	}
	return "", fmt.Errorf("unknown purchase order status %q", s)
}
