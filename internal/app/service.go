package app

import (
	"context"
)

// ApplicationService is the single interface all UI adapters (CLI, Web) call.
// It decouples presentation from the purchase order engine. Implementations must
// contain no fmt.Println, no ANSI codes, and no display logic of any kind.
type ApplicationService interface {
	// ListPurchaseOrders returns purchase orders filtered by project, vendor and status.
	ListPurchaseOrders(ctx context.Context, req ListPurchaseOrdersRequest) (*PurchaseOrderListResult, error)

	// GetPurchaseOrder returns a purchase order with its totals and allowed actions.
	GetPurchaseOrder(ctx context.Context, id string) (*PurchaseOrderResult, error)

	// GetTotals returns the financial summary and milestone amounts of a purchase order.
	GetTotals(ctx context.Context, id string) (*TotalsResult, error)

	// ListMergeCandidates returns sibling POs that can be merged into id,
	// with the ones that conflict on rate flagged as blocked.
	ListMergeCandidates(ctx context.Context, id string) (*MergeCandidatesResult, error)

	// PreviewMerge returns the consolidated list and totals a merge would produce.
	// Nothing is written.
	PreviewMerge(ctx context.Context, req MergeRequest) (*MergePreviewResult, error)

	// MergePurchaseOrders consolidates the target and candidates into a new PO.
	// On a partial failure both a result and a *core.PartialFailure are returned.
	MergePurchaseOrders(ctx context.Context, req MergeRequest) (*MergeResult, error)

	// RetryStatusUpdates re-applies the pending writes of a partially failed merge or unmerge.
	RetryStatusUpdates(ctx context.Context, req RetryStatusUpdatesRequest) error

	// UnmergePurchaseOrder restores the constituents of a consolidated PO and deletes it.
	UnmergePurchaseOrder(ctx context.Context, id string) (*UnmergeResult, error)

	// DispatchPurchaseOrder moves a PO Approved order to Dispatched.
	DispatchPurchaseOrder(ctx context.Context, req DispatchRequest) (*PurchaseOrderResult, error)

	// RevertDispatch moves a Dispatched order back to PO Approved.
	RevertDispatch(ctx context.Context, id string) (*PurchaseOrderResult, error)

	// CancelPurchaseOrder cancels a PO and creates its sent-back record.
	CancelPurchaseOrder(ctx context.Context, id string) (*CancelResult, error)

	// SetPaymentSplit replaces the five milestone percentages.
	SetPaymentSplit(ctx context.Context, req PaymentSplitRequest) (*PurchaseOrderResult, error)

	// BeginAmendment opens an amendment session and returns its token.
	BeginAmendment(ctx context.Context, poID string) (*AmendmentResult, error)

	// GetAmendment returns the current state of an amendment session.
	GetAmendment(ctx context.Context, token string) (*AmendmentResult, error)

	// EditAmendment applies one quantity, make or delete edit to a session.
	EditAmendment(ctx context.Context, req AmendmentEditRequest) (*AmendmentResult, error)

	// UndoAmendment reverts the most recent edit of a session.
	UndoAmendment(ctx context.Context, token string) (*AmendmentResult, error)

	// CommitAmendment writes the session into its PO and closes the session.
	CommitAmendment(ctx context.Context, token string) (*PurchaseOrderResult, error)

	// DiscardAmendment closes a session without writing anything.
	DiscardAmendment(ctx context.Context, token string) error

	// ExportPurchaseOrder renders a PO as an XLSX workbook. The payment split
	// must total 100%.
	ExportPurchaseOrder(ctx context.Context, id string) (*ExportResult, error)
}
