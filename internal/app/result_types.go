package app

import (
	"procurement-engine/internal/core"

	"github.com/shopspring/decimal"
)

// PurchaseOrderListResult holds a list of purchase orders.
type PurchaseOrderListResult struct {
	PurchaseOrders []core.PurchaseOrder `json:"purchase_orders"`
}

// PurchaseOrderResult is a purchase order with its computed totals.
type PurchaseOrderResult struct {
	PurchaseOrder  core.PurchaseOrder `json:"purchase_order"`
	Totals         core.Totals        `json:"totals"`
	AllowedActions []core.Action      `json:"allowed_actions"`
}

// TotalsResult is the financial summary of a purchase order.
type TotalsResult struct {
	POID       string             `json:"po_id"`
	Totals     core.Totals        `json:"totals"`
	Split      core.PaymentSplit  `json:"payment_split"`
	Milestones [5]decimal.Decimal `json:"milestones"`
	SplitValid bool               `json:"split_valid"` // percentages total exactly 100
}

// MergeCandidatesResult lists the siblings of a target PO.
type MergeCandidatesResult struct {
	TargetID   string                `json:"target_id"`
	Candidates []core.MergeCandidate `json:"candidates"`
}

// MergePreviewResult is the consolidated list a merge would produce.
type MergePreviewResult struct {
	TargetID     string           `json:"target_id"`
	CandidateIDs []string         `json:"candidate_ids"`
	Lines        []core.OrderLine `json:"lines"`
	Totals       core.Totals      `json:"totals"`
}

// MergeResult is the outcome of a merge.
type MergeResult struct {
	NewPO   core.PurchaseOrder  `json:"new_po"`
	Applied []core.StatusUpdate `json:"applied"`
}

// UnmergeResult is the outcome of an unmerge.
type UnmergeResult struct {
	Restored  []string `json:"restored"`
	DeletedPO string   `json:"deleted_po,omitempty"`
}

// CancelResult is the outcome of a cancellation.
type CancelResult struct {
	PurchaseOrder core.PurchaseOrder  `json:"purchase_order"`
	SentBack      core.SentBackRecord `json:"sent_back"`
}

// AmendmentResult is the working state of an amendment session.
type AmendmentResult struct {
	Token     string           `json:"token"`
	POID      string           `json:"po_id"`
	Lines     []core.OrderLine `json:"lines"`
	Depth     int              `json:"depth"`
	CanCommit bool             `json:"can_commit"`
	Totals    core.Totals      `json:"totals"`
}

// ExportResult is a rendered document ready to be downloaded.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}
