package core

import "fmt"

// UnmergePlan restores the constituents of a consolidated PO and deletes it.
type UnmergePlan struct {
	RestoreOps []StatusUpdate `json:"restore_ops"`
	DeletePOID string         `json:"delete_po_id"`
}

// PlanUnmerge splits mergedPO back into its constituents. Only constituents whose
// MergedInto points at mergedPO are restored; others are ignored. The consolidated PO
// must still be PO Approved with no payments.
func PlanUnmerge(mergedPO PurchaseOrder, constituents []PurchaseOrder) (UnmergePlan, error) {
	if err := CheckAction(mergedPO, ActionUnmerge); err != nil {
		return UnmergePlan{}, err
	}

	plan := UnmergePlan{DeletePOID: mergedPO.ID}
	for _, c := range constituents {
		if c.MergedInto == nil || *c.MergedInto != mergedPO.ID {
			continue
		}
		if _, err := Transition(c.Status, ActionUnmerge); err != nil {
			return UnmergePlan{}, err
		}
		plan.RestoreOps = append(plan.RestoreOps, StatusUpdate{
			POID: c.ID,
			From: c.Status,
			To:   StatusApproved,
		})
	}
	return plan, nil
}

// CheckStatusUpdate rejects update unless po is still in update.From or already in
// update.To. Replaying an applied update is allowed; a write over any other state is not.
func CheckStatusUpdate(po PurchaseOrder, update StatusUpdate) error {
	if po.Status == update.From {
		return nil
	}
	if po.Status == update.To && sameMergedInto(po.MergedInto, update.MergedInto) {
		return nil
	}
	return &PreconditionViolation{
		Code:   CodeStaleStatus,
		POID:   po.ID,
		Status: po.Status,
		Message: fmt.Sprintf("purchase order %s is %s; expected %s or %s",
			po.ID, po.Status, update.From, update.To),
	}
}

func sameMergedInto(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ApplyStatusUpdate returns po with update applied. It is used by stores that hold
// whole documents.
func ApplyStatusUpdate(po PurchaseOrder, update StatusUpdate) PurchaseOrder {
	out := po.Clone()
	out.Status = update.To
	out.MergedInto = nil
	if update.MergedInto != nil {
		into := *update.MergedInto
		out.MergedInto = &into
	}
	return out
}
