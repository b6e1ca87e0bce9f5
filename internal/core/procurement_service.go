package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"procurement-engine/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MergeCandidate is a sibling PO together with its rate conflicts against the target.
type MergeCandidate struct {
	PO        PurchaseOrder  `json:"po"`
	Blocked   bool           `json:"blocked"`
	Conflicts []RateConflict `json:"conflicts,omitempty"`
}

// MergePreview is the consolidated list a merge would produce.
type MergePreview struct {
	Target   PurchaseOrder   `json:"target"`
	Selected []PurchaseOrder `json:"selected"`
	Lines    []OrderLine     `json:"lines"`
	Totals   Totals          `json:"totals"`
}

// MergeResult is returned by Merge. On partial failure it is returned together with a
// *PartialFailure; Applied lists the status writes that did complete.
type MergeResult struct {
	NewPO   PurchaseOrder  `json:"new_po"`
	Applied []StatusUpdate `json:"applied"`
}

// UnmergeResult is returned by Unmerge.
type UnmergeResult struct {
	Restored  []string `json:"restored"`
	DeletedPO string   `json:"deleted_po,omitempty"`
}

// ProcurementService runs the PO engine against a PurchaseOrderStore. The pure planning
// functions decide every change; this service only loads documents and commits plans.
type ProcurementService interface {
	// GetPO returns a purchase order by id.
	GetPO(ctx context.Context, id string) (*PurchaseOrder, error)

	// ListPOs returns purchase orders matching filter.
	ListPOs(ctx context.Context, filter POFilter) ([]PurchaseOrder, error)

	// MergeCandidates returns the siblings of targetID that can be merged into it, each
	// flagged when it quotes a shared item at a different rate.
	MergeCandidates(ctx context.Context, targetID string) ([]MergeCandidate, error)

	// PreviewMerge builds the consolidated list for the selection without writing anything.
	PreviewMerge(ctx context.Context, targetID string, candidateIDs []string) (*MergePreview, error)

	// Merge creates the consolidated PO and retires the target and candidates as Merged.
	// Status writes are independent; failures are collected into a *PartialFailure.
	Merge(ctx context.Context, targetID string, candidateIDs []string) (*MergeResult, error)

	// Unmerge restores every constituent of a consolidated PO to PO Approved and deletes
	// the consolidated PO once all restores succeeded.
	Unmerge(ctx context.Context, mergedID string) (*UnmergeResult, error)

	// ApplyStatusUpdates re-drives status writes left pending by a partial failure.
	ApplyStatusUpdates(ctx context.Context, operation string, updates []StatusUpdate) error

	// Dispatch moves an approved PO to Dispatched.
	Dispatch(ctx context.Context, id string, contact *DeliveryContact) (*PurchaseOrder, error)

	// RevertDispatch moves a dispatched PO back to PO Approved.
	RevertDispatch(ctx context.Context, id string) (*PurchaseOrder, error)

	// Cancel cancels an approved PO and forks its items into a sent-back record.
	Cancel(ctx context.Context, id string) (*CancelPlan, error)

	// BeginAmendment opens a working copy of a PO's order list.
	BeginAmendment(ctx context.Context, id string) (AmendmentSession, error)

	// CommitAmendment writes the session's lines into the PO and moves it to PO Amendment.
	CommitAmendment(ctx context.Context, session AmendmentSession) (*PurchaseOrder, error)

	// SetPaymentSplit replaces the milestone percentages of a PO.
	SetPaymentSplit(ctx context.Context, id string, split PaymentSplit) (*PurchaseOrder, error)
}

// CancelWriter is implemented by stores that can cancel a PO and insert its sent-back
// record atomically.
type CancelWriter interface {
	CancelWithSentBack(ctx context.Context, cancelled PurchaseOrder, rec SentBackRecord) error
}

type procurementService struct {
	store   PurchaseOrderStore
	lookup  CategoryMakesLookup
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

// NewProcurementService constructs a ProcurementService. m may be nil.
func NewProcurementService(store PurchaseOrderStore, lookup CategoryMakesLookup, log *zap.Logger, m *metrics.Metrics) ProcurementService {
	if log == nil {
		log = zap.NewNop()
	}
	return &procurementService{
		store:   store,
		lookup:  lookup,
		log:     log,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

func (s *procurementService) GetPO(ctx context.Context, id string) (*PurchaseOrder, error) {
	return s.store.GetPO(ctx, id)
}

func (s *procurementService) ListPOs(ctx context.Context, filter POFilter) ([]PurchaseOrder, error) {
	return s.store.ListPOs(ctx, filter)
}

// siblings loads the target and its merge candidates.
func (s *procurementService) siblings(ctx context.Context, targetID string) (*PurchaseOrder, []PurchaseOrder, error) {
	target, err := s.store.GetPO(ctx, targetID)
	if err != nil {
		return nil, nil, err
	}
	all, err := s.store.ListPOs(ctx, POFilter{
		ProjectID: target.ProjectID,
		VendorID:  target.VendorID,
		Status:    StatusApproved,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load siblings of %s: %w", targetID, err)
	}
	return target, FindMergeCandidates(all, *target), nil
}

func (s *procurementService) MergeCandidates(ctx context.Context, targetID string) ([]MergeCandidate, error) {
	target, candidates, err := s.siblings(ctx, targetID)
	if err != nil {
		return nil, err
	}
	out := make([]MergeCandidate, 0, len(candidates))
	for _, c := range candidates {
		conflicts := MergeConflicts(*target, c)
		out = append(out, MergeCandidate{PO: c, Blocked: len(conflicts) > 0, Conflicts: conflicts})
	}
	return out, nil
}

// draft replays the user's selection onto a MergeDraft, in order.
func (s *procurementService) draft(ctx context.Context, targetID string, candidateIDs []string) (*MergeDraft, error) {
	target, candidates, err := s.siblings(ctx, targetID)
	if err != nil {
		return nil, err
	}
	d, err := NewMergeDraft(*target)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]PurchaseOrder, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}
	for _, id := range candidateIDs {
		c, ok := byID[id]
		if !ok {
			return nil, validationErrorf(CodeNotCandidate, "purchase order %s is not a merge candidate for %s", id, targetID)
		}
		if err := d.Add(c); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (s *procurementService) PreviewMerge(ctx context.Context, targetID string, candidateIDs []string) (*MergePreview, error) {
	d, err := s.draft(ctx, targetID, candidateIDs)
	if err != nil {
		return nil, err
	}
	return &MergePreview{
		Target:   d.Target(),
		Selected: d.Selected(),
		Lines:    d.Lines(),
		Totals:   d.Totals(),
	}, nil
}

func (s *procurementService) Merge(ctx context.Context, targetID string, candidateIDs []string) (*MergeResult, error) {
	d, err := s.draft(ctx, targetID, candidateIDs)
	if err != nil {
		s.metrics.Operation("merge", metrics.OutcomeRejected)
		return nil, err
	}
	plan, err := d.Plan(s.newID(), s.now())
	if err != nil {
		s.metrics.Operation("merge", metrics.OutcomeRejected)
		return nil, err
	}

	if err := plan.NewPO.Validate(); err != nil {
		s.metrics.Operation("merge", metrics.OutcomeRejected)
		return nil, err
	}
	if err := s.store.CreatePO(ctx, plan.NewPO); err != nil {
		s.metrics.Operation("merge", metrics.OutcomeError)
		return nil, fmt.Errorf("create consolidated purchase order: %w", err)
	}
	s.metrics.MergedLines(len(plan.NewPO.OrderList.Lines))

	applied, perr := s.applyUpdates(ctx, "merge", plan.StatusUpdates)
	result := &MergeResult{NewPO: plan.NewPO, Applied: applied}
	if perr != nil {
		return result, perr
	}

	s.metrics.Operation("merge", metrics.OutcomeOK)
	s.log.Info("purchase orders merged",
		zap.String("target", targetID),
		zap.Strings("candidates", candidateIDs),
		zap.String("new_po", plan.NewPO.ID),
		zap.Int("lines", len(plan.NewPO.OrderList.Lines)),
	)
	return result, nil
}

func (s *procurementService) Unmerge(ctx context.Context, mergedID string) (*UnmergeResult, error) {
	merged, err := s.store.GetPO(ctx, mergedID)
	if err != nil {
		return nil, err
	}
	constituents, err := s.store.ListPOs(ctx, POFilter{MergedInto: mergedID})
	if err != nil {
		return nil, fmt.Errorf("load constituents of %s: %w", mergedID, err)
	}
	plan, err := PlanUnmerge(*merged, constituents)
	if err != nil {
		s.metrics.Operation("unmerge", metrics.OutcomeRejected)
		return nil, err
	}

	applied, perr := s.applyUpdates(ctx, "unmerge", plan.RestoreOps)
	result := &UnmergeResult{}
	for _, u := range applied {
		result.Restored = append(result.Restored, u.POID)
	}
	if perr != nil {
		// The consolidated PO stays until every constituent is restored, so the
		// unmerge can be run again.
		return result, perr
	}

	if err := s.store.DeletePO(ctx, plan.DeletePOID); err != nil {
		s.metrics.Operation("unmerge", metrics.OutcomeError)
		return result, fmt.Errorf("delete consolidated purchase order %s: %w", plan.DeletePOID, err)
	}
	result.DeletedPO = plan.DeletePOID

	s.metrics.Operation("unmerge", metrics.OutcomeOK)
	s.log.Info("purchase order unmerged",
		zap.String("merged_po", mergedID),
		zap.Strings("restored", result.Restored),
	)
	return result, nil
}

func (s *procurementService) ApplyStatusUpdates(ctx context.Context, operation string, updates []StatusUpdate) error {
	for _, u := range updates {
		if err := s.checkPending(ctx, operation, u); err != nil {
			s.metrics.Operation(operation, metrics.OutcomeRejected)
			return err
		}
	}
	_, err := s.applyUpdates(ctx, operation, updates)
	return err
}

// checkPending accepts only the updates a merge or unmerge could have left pending,
// against POs still in the expected state. The store checks the status again on write.
func (s *procurementService) checkPending(ctx context.Context, operation string, u StatusUpdate) error {
	switch operation {
	case "merge":
		if u.From != StatusApproved || u.To != StatusMerged || u.MergedInto == nil {
			return validationErrorf(CodeInvalidUpdate, "merge update for %s must move %s to %s with merged_into set", u.POID, StatusApproved, StatusMerged)
		}
		into, err := s.store.GetPO(ctx, *u.MergedInto)
		if errors.Is(err, ErrPONotFound) {
			return validationErrorf(CodeNotConsolidated, "merged_into %s does not exist", *u.MergedInto)
		}
		if err != nil {
			return err
		}
		if !into.Merged || into.ID == u.POID {
			return validationErrorf(CodeNotConsolidated, "merged_into %s is not a consolidated purchase order", into.ID)
		}
	case "unmerge":
		if u.From != StatusMerged || u.To != StatusApproved || u.MergedInto != nil {
			return validationErrorf(CodeInvalidUpdate, "unmerge update for %s must move %s to %s", u.POID, StatusMerged, StatusApproved)
		}
	default:
		return validationErrorf(CodeInvalidUpdate, "unknown operation %q", operation)
	}
	po, err := s.store.GetPO(ctx, u.POID)
	if err != nil {
		return err
	}
	return CheckStatusUpdate(*po, u)
}

// applyUpdates writes each update independently and keeps going past failures.
func (s *procurementService) applyUpdates(ctx context.Context, operation string, updates []StatusUpdate) ([]StatusUpdate, error) {
	var applied []StatusUpdate
	pf := &PartialFailure{Operation: operation}
	for _, u := range updates {
		if err := s.store.UpdateStatus(ctx, u); err != nil {
			s.log.Warn("status write failed",
				zap.String("operation", operation),
				zap.String("po", u.POID),
				zap.String("to", u.To.String()),
				zap.Error(err),
			)
			pf.Failures = append(pf.Failures, WriteFailure{POID: u.POID, Err: err})
			pf.Pending = append(pf.Pending, u)
			continue
		}
		applied = append(applied, u)
	}
	if len(pf.Failures) > 0 {
		s.metrics.WriteFailures(operation, len(pf.Failures))
		s.metrics.Operation(operation, metrics.OutcomePartial)
		return applied, pf
	}
	return applied, nil
}

func (s *procurementService) Dispatch(ctx context.Context, id string, contact *DeliveryContact) (*PurchaseOrder, error) {
	return s.transform(ctx, id, "dispatch", func(po PurchaseOrder) (PurchaseOrder, error) {
		return Dispatch(po, contact, s.now())
	})
}

func (s *procurementService) RevertDispatch(ctx context.Context, id string) (*PurchaseOrder, error) {
	return s.transform(ctx, id, "revert", func(po PurchaseOrder) (PurchaseOrder, error) {
		return RevertDispatch(po, s.now())
	})
}

func (s *procurementService) SetPaymentSplit(ctx context.Context, id string, split PaymentSplit) (*PurchaseOrder, error) {
	return s.transform(ctx, id, "payment_split", func(po PurchaseOrder) (PurchaseOrder, error) {
		if err := ValidatePaymentSplit(split); err != nil {
			return PurchaseOrder{}, err
		}
		if po.Status == StatusMerged || po.Status == StatusCancelled {
			return PurchaseOrder{}, &PreconditionViolation{
				Code:    CodeInvalidStatus,
				POID:    po.ID,
				Status:  po.Status,
				Message: fmt.Sprintf("purchase order %s is %s and can no longer change", po.ID, po.Status),
			}
		}
		out := po.Clone()
		out.PaymentSplit = split
		out.UpdatedAt = s.now()
		return out, nil
	})
}

// transform loads a PO, applies fn and saves the result.
func (s *procurementService) transform(ctx context.Context, id, operation string, fn func(PurchaseOrder) (PurchaseOrder, error)) (*PurchaseOrder, error) {
	po, err := s.store.GetPO(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := fn(*po)
	if err == nil {
		err = out.Validate()
	}
	if err != nil {
		s.metrics.Operation(operation, metrics.OutcomeRejected)
		return nil, err
	}
	if err := s.store.SavePO(ctx, out); err != nil {
		s.metrics.Operation(operation, metrics.OutcomeError)
		return nil, err
	}
	s.metrics.Operation(operation, metrics.OutcomeOK)
	s.log.Info("purchase order updated",
		zap.String("operation", operation),
		zap.String("po", id),
		zap.String("status", out.Status.String()),
	)
	return &out, nil
}

func (s *procurementService) Cancel(ctx context.Context, id string) (*CancelPlan, error) {
	po, err := s.store.GetPO(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CheckAction(*po, ActionCancel); err != nil {
		s.metrics.Operation("cancel", metrics.OutcomeRejected)
		return nil, err
	}

	categoryMakes := map[string][]string{}
	if po.ProcurementRequestID != "" && s.lookup != nil {
		categoryMakes, err = s.lookup.CategoryMakes(ctx, po.ProcurementRequestID)
		if err != nil {
			return nil, fmt.Errorf("resolve category makes for %s: %w", id, err)
		}
	}

	plan, err := PlanCancel(*po, categoryMakes, s.newID(), s.now())
	if err != nil {
		s.metrics.Operation("cancel", metrics.OutcomeRejected)
		return nil, err
	}

	if cw, ok := s.store.(CancelWriter); ok {
		err = cw.CancelWithSentBack(ctx, plan.Cancelled, plan.SentBack)
	} else {
		// Sent-back first: a cancelled PO without its sent-back record would strand
		// the items, while a retried cancel re-forks from the still-approved PO.
		if err = s.store.CreateSentBack(ctx, plan.SentBack); err == nil {
			err = s.store.SavePO(ctx, plan.Cancelled)
		}
	}
	if err != nil {
		s.metrics.Operation("cancel", metrics.OutcomeError)
		return nil, fmt.Errorf("cancel purchase order %s: %w", id, err)
	}

	s.metrics.Operation("cancel", metrics.OutcomeOK)
	s.log.Info("purchase order cancelled",
		zap.String("po", id),
		zap.String("sent_back", plan.SentBack.ID),
		zap.Int("items", len(plan.SentBack.Items)),
	)
	return &plan, nil
}

func (s *procurementService) BeginAmendment(ctx context.Context, id string) (AmendmentSession, error) {
	po, err := s.store.GetPO(ctx, id)
	if err != nil {
		return AmendmentSession{}, err
	}
	return NewAmendmentSession(*po, s.now())
}

func (s *procurementService) CommitAmendment(ctx context.Context, session AmendmentSession) (*PurchaseOrder, error) {
	out, err := s.transform(ctx, session.POID, "amend", func(po PurchaseOrder) (PurchaseOrder, error) {
		return CommitAmendment(po, session, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.metrics.UndoDepth(session.Depth())
	return out, nil
}
