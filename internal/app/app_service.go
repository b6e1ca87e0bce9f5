package app

import (
	"context"
	"fmt"

	"procurement-engine/internal/core"
	"procurement-engine/internal/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type appService struct {
	procurement core.ProcurementService
	sessions    session.Store
	log         *zap.Logger
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(procurement core.ProcurementService, sessions session.Store, log *zap.Logger) ApplicationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &appService{
		procurement: procurement,
		sessions:    sessions,
		log:         log,
	}
}

func invalidRequest(format string, args ...any) error {
	return &core.ValidationError{Code: "INVALID_REQUEST", Message: fmt.Sprintf(format, args...)}
}

func poResult(po core.PurchaseOrder) *PurchaseOrderResult {
	return &PurchaseOrderResult{
		PurchaseOrder:  po,
		Totals:         core.ComputeTotals(po.OrderList.Lines, po.Surcharges),
		AllowedActions: core.AllowedActions(po),
	}
}

// ListPurchaseOrders returns purchase orders matching the request filters.
func (s *appService) ListPurchaseOrders(ctx context.Context, req ListPurchaseOrdersRequest) (*PurchaseOrderListResult, error) {
	filter := core.POFilter{ProjectID: req.ProjectID, VendorID: req.VendorID}
	if req.Status != "" {
		st, err := core.ParseStatus(req.Status)
		if err != nil {
			return nil, invalidRequest("%v", err)
		}
		filter.Status = st
	}
	orders, err := s.procurement.ListPOs(ctx, filter)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []core.PurchaseOrder{}
	}
	return &PurchaseOrderListResult{PurchaseOrders: orders}, nil
}

// GetPurchaseOrder returns a purchase order with its totals.
func (s *appService) GetPurchaseOrder(ctx context.Context, id string) (*PurchaseOrderResult, error) {
	po, err := s.procurement.GetPO(ctx, id)
	if err != nil {
		return nil, err
	}
	return poResult(*po), nil
}

// GetTotals returns totals and milestone amounts.
func (s *appService) GetTotals(ctx context.Context, id string) (*TotalsResult, error) {
	po, err := s.procurement.GetPO(ctx, id)
	if err != nil {
		return nil, err
	}
	totals := core.ComputeTotals(po.OrderList.Lines, po.Surcharges)
	return &TotalsResult{
		POID:       po.ID,
		Totals:     totals,
		Split:      po.PaymentSplit,
		Milestones: core.ComputeMilestoneAmounts(totals.GrandTotal, po.PaymentSplit),
		SplitValid: core.RequireCompleteSplit(po.PaymentSplit) == nil,
	}, nil
}

// ListMergeCandidates returns the merge candidates of a target PO.
func (s *appService) ListMergeCandidates(ctx context.Context, id string) (*MergeCandidatesResult, error) {
	candidates, err := s.procurement.MergeCandidates(ctx, id)
	if err != nil {
		return nil, err
	}
	return &MergeCandidatesResult{TargetID: id, Candidates: candidates}, nil
}

// PreviewMerge returns the consolidated list without writing.
func (s *appService) PreviewMerge(ctx context.Context, req MergeRequest) (*MergePreviewResult, error) {
	if req.TargetID == "" {
		return nil, invalidRequest("target_id is required")
	}
	preview, err := s.procurement.PreviewMerge(ctx, req.TargetID, req.CandidateIDs)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(preview.Selected))
	for i, po := range preview.Selected {
		ids[i] = po.ID
	}
	return &MergePreviewResult{
		TargetID:     req.TargetID,
		CandidateIDs: ids,
		Lines:        preview.Lines,
		Totals:       preview.Totals,
	}, nil
}

// MergePurchaseOrders merges the selection into a new consolidated PO.
func (s *appService) MergePurchaseOrders(ctx context.Context, req MergeRequest) (*MergeResult, error) {
	if req.TargetID == "" {
		return nil, invalidRequest("target_id is required")
	}
	res, err := s.procurement.Merge(ctx, req.TargetID, req.CandidateIDs)
	if res == nil {
		return nil, err
	}
	return &MergeResult{NewPO: res.NewPO, Applied: res.Applied}, err
}

// RetryStatusUpdates re-applies pending status writes.
func (s *appService) RetryStatusUpdates(ctx context.Context, req RetryStatusUpdatesRequest) error {
	if req.Operation != "merge" && req.Operation != "unmerge" {
		return invalidRequest("operation must be merge or unmerge, got %q", req.Operation)
	}
	if len(req.Updates) == 0 {
		return invalidRequest("updates are required")
	}
	for _, u := range req.Updates {
		if u.To != core.StatusMerged && u.To != core.StatusApproved {
			return invalidRequest("status update for %s must target %s or %s", u.POID, core.StatusMerged, core.StatusApproved)
		}
		if (u.To == core.StatusMerged) != (u.MergedInto != nil) {
			return invalidRequest("status update for %s: merged_into must be set iff target status is %s", u.POID, core.StatusMerged)
		}
	}
	return s.procurement.ApplyStatusUpdates(ctx, req.Operation, req.Updates)
}

// UnmergePurchaseOrder splits a consolidated PO back into its constituents.
func (s *appService) UnmergePurchaseOrder(ctx context.Context, id string) (*UnmergeResult, error) {
	res, err := s.procurement.Unmerge(ctx, id)
	if res == nil {
		return nil, err
	}
	return &UnmergeResult{Restored: res.Restored, DeletedPO: res.DeletedPO}, err
}

// DispatchPurchaseOrder dispatches a PO.
func (s *appService) DispatchPurchaseOrder(ctx context.Context, req DispatchRequest) (*PurchaseOrderResult, error) {
	var contact *core.DeliveryContact
	if req.ContactName != "" || req.ContactPhone != "" {
		contact = &core.DeliveryContact{Name: req.ContactName, Phone: req.ContactPhone}
	}
	po, err := s.procurement.Dispatch(ctx, req.POID, contact)
	if err != nil {
		return nil, err
	}
	return poResult(*po), nil
}

// RevertDispatch reverts a dispatch.
func (s *appService) RevertDispatch(ctx context.Context, id string) (*PurchaseOrderResult, error) {
	po, err := s.procurement.RevertDispatch(ctx, id)
	if err != nil {
		return nil, err
	}
	return poResult(*po), nil
}

// CancelPurchaseOrder cancels a PO.
func (s *appService) CancelPurchaseOrder(ctx context.Context, id string) (*CancelResult, error) {
	plan, err := s.procurement.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CancelResult{PurchaseOrder: plan.Cancelled, SentBack: plan.SentBack}, nil
}

// SetPaymentSplit replaces the milestone percentages.
func (s *appService) SetPaymentSplit(ctx context.Context, req PaymentSplitRequest) (*PurchaseOrderResult, error) {
	if len(req.Percentages) != len(core.PaymentSplit{}) {
		return nil, invalidRequest("exactly %d milestone percentages are required, got %d", len(core.PaymentSplit{}), len(req.Percentages))
	}
	var split core.PaymentSplit
	copy(split[:], req.Percentages)
	po, err := s.procurement.SetPaymentSplit(ctx, req.POID, split)
	if err != nil {
		return nil, err
	}
	return poResult(*po), nil
}

// BeginAmendment opens an amendment session.
func (s *appService) BeginAmendment(ctx context.Context, poID string) (*AmendmentResult, error) {
	sess, err := s.procurement.BeginAmendment(ctx, poID)
	if err != nil {
		return nil, err
	}
	token := uuid.NewString()
	if err := s.sessions.Put(ctx, token, sess); err != nil {
		return nil, err
	}
	s.log.Info("amendment session opened", zap.String("po", poID), zap.String("token", token))
	return s.amendmentResult(ctx, token, sess)
}

// GetAmendment returns a session's state.
func (s *appService) GetAmendment(ctx context.Context, token string) (*AmendmentResult, error) {
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.amendmentResult(ctx, token, sess)
}

// EditAmendment applies one edit to a session.
func (s *appService) EditAmendment(ctx context.Context, req AmendmentEditRequest) (*AmendmentResult, error) {
	sess, err := s.sessions.Get(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	var next core.AmendmentSession
	switch req.Op {
	case EditQuantity:
		if req.Quantity == nil {
			return nil, invalidRequest("quantity is required for a quantity edit")
		}
		next, err = sess.ApplyQuantityChange(req.Ref(), *req.Quantity)
	case EditMake:
		next, err = sess.ApplyMakeChange(req.Ref(), req.Make)
	case EditDelete:
		next, err = sess.ApplyDelete(req.Ref())
	default:
		return nil, invalidRequest("unknown edit %q (expected quantity, make or delete)", req.Op)
	}
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Put(ctx, req.Token, next); err != nil {
		return nil, err
	}
	return s.amendmentResult(ctx, req.Token, next)
}

// UndoAmendment reverts the last edit.
func (s *appService) UndoAmendment(ctx context.Context, token string) (*AmendmentResult, error) {
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	next, err := sess.Undo()
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Put(ctx, token, next); err != nil {
		return nil, err
	}
	return s.amendmentResult(ctx, token, next)
}

// CommitAmendment writes a session into its PO.
func (s *appService) CommitAmendment(ctx context.Context, token string) (*PurchaseOrderResult, error) {
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	po, err := s.procurement.CommitAmendment(ctx, sess)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		s.log.Warn("failed to close committed amendment session", zap.String("token", token), zap.Error(err))
	}
	return poResult(*po), nil
}

// DiscardAmendment closes a session.
func (s *appService) DiscardAmendment(ctx context.Context, token string) error {
	if _, err := s.sessions.Get(ctx, token); err != nil {
		return err
	}
	return s.sessions.Delete(ctx, token)
}

func (s *appService) amendmentResult(ctx context.Context, token string, sess core.AmendmentSession) (*AmendmentResult, error) {
	po, err := s.procurement.GetPO(ctx, sess.POID)
	if err != nil {
		return nil, err
	}
	return &AmendmentResult{
		Token:     token,
		POID:      sess.POID,
		Lines:     sess.Lines,
		Depth:     sess.Depth(),
		CanCommit: sess.CanCommit(),
		Totals:    core.ComputeTotals(sess.Lines, po.Surcharges),
	}, nil
}
