package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateConflict describes an item quoted at two different rates by a target and a candidate.
type RateConflict struct {
	ItemID        string          `json:"item_id"`
	ItemName      string          `json:"item_name"`
	TargetRate    decimal.Decimal `json:"target_rate"`
	CandidateRate decimal.Decimal `json:"candidate_rate"`
}

// FindMergeCandidates returns the sibling POs that can be merged into target: same
// project and vendor, status PO Approved, different id. A target with recorded
// payments has no candidates.
func FindMergeCandidates(all []PurchaseOrder, target PurchaseOrder) []PurchaseOrder {
	if target.HasPayments() {
		return nil
	}
	var out []PurchaseOrder
	for _, po := range all {
		if po.ID == target.ID ||
			po.ProjectID != target.ProjectID ||
			po.VendorID != target.VendorID ||
			po.Status != StatusApproved {
			continue
		}
		out = append(out, po)
	}
	return out
}

// IsMergeBlocked reports whether candidate shares an item with target at a different rate.
func IsMergeBlocked(target, candidate PurchaseOrder) bool {
	return len(lineConflicts(target.OrderList.Lines, candidate.OrderList.Lines)) > 0
}

// MergeConflicts lists every item on which target and candidate disagree on rate.
func MergeConflicts(target, candidate PurchaseOrder) []RateConflict {
	return lineConflicts(target.OrderList.Lines, candidate.OrderList.Lines)
}

func lineConflicts(base, incoming []OrderLine) []RateConflict {
	rates := make(map[string][]OrderLine, len(base))
	for _, l := range base {
		rates[l.ItemID] = append(rates[l.ItemID], l)
	}
	var out []RateConflict
	seen := make(map[string]bool)
	for _, in := range incoming {
		for _, b := range rates[in.ItemID] {
			if b.Rate.Equal(in.Rate) {
				continue
			}
			key := in.ItemID + "|" + b.Rate.String() + "|" + in.Rate.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, RateConflict{
				ItemID:        in.ItemID,
				ItemName:      in.ItemName,
				TargetRate:    b.Rate,
				CandidateRate: in.Rate,
			})
		}
	}
	return out
}

// TagLines returns copies of po's lines, each tagged with SourcePoID = po.ID.
func TagLines(po PurchaseOrder) []OrderLine {
	out := cloneLines(po.OrderList.Lines)
	for i := range out {
		out[i].SourcePoID = po.ID
	}
	return out
}

// MergeDraft accumulates the user's per-candidate merge selections for one target.
// Candidates can be added and removed until the merge is planned.
type MergeDraft struct {
	target   PurchaseOrder
	selected []PurchaseOrder
}

// NewMergeDraft starts a merge selection for target.
func NewMergeDraft(target PurchaseOrder) (*MergeDraft, error) {
	if err := CheckAction(target, ActionMerge); err != nil {
		return nil, err
	}
	return &MergeDraft{target: target.Clone()}, nil
}

// Target returns the PO the candidates are merged into.
func (d *MergeDraft) Target() PurchaseOrder {
	return d.target
}

// Selected returns the candidates in selection order.
func (d *MergeDraft) Selected() []PurchaseOrder {
	out := make([]PurchaseOrder, len(d.selected))
	copy(out, d.selected)
	return out
}

// Add selects candidate. It is rejected when the candidate is not a sibling of the
// target, is already selected, or quotes an item of the accumulated list at a
// different rate.
func (d *MergeDraft) Add(candidate PurchaseOrder) error {
	if len(FindMergeCandidates([]PurchaseOrder{candidate}, d.target)) == 0 {
		return validationErrorf(CodeNotCandidate, "purchase order %s cannot be merged into %s", candidate.ID, d.target.ID)
	}
	for _, s := range d.selected {
		if s.ID == candidate.ID {
			return validationErrorf(CodeAlreadySelected, "purchase order %s is already selected", candidate.ID)
		}
	}
	if conflicts := lineConflicts(d.Lines(), candidate.OrderList.Lines); len(conflicts) > 0 {
		c := conflicts[0]
		return validationErrorf(CodeRateConflict,
			"purchase order %s quotes %s at %s but the merged list has it at %s",
			candidate.ID, c.ItemID, c.CandidateRate.String(), c.TargetRate.String())
	}
	d.selected = append(d.selected, candidate.Clone())
	return nil
}

// Remove deselects the candidate with the given id. It reports whether it was selected.
func (d *MergeDraft) Remove(id string) bool {
	for i, s := range d.selected {
		if s.ID == id {
			d.selected = append(d.selected[:i], d.selected[i+1:]...)
			return true
		}
	}
	return false
}

// Lines returns the consolidated list the merge would produce.
func (d *MergeDraft) Lines() []OrderLine {
	return mergedLines(d.target, d.selected)
}

// Totals previews the totals of the consolidated list with the target's surcharges.
func (d *MergeDraft) Totals() Totals {
	return ComputeTotals(d.Lines(), d.target.Surcharges)
}

// Plan builds the merge plan for the current selection.
func (d *MergeDraft) Plan(newID string, now time.Time) (MergePlan, error) {
	return PlanMerge(d.target, d.selected, newID, now)
}

func mergedLines(target PurchaseOrder, selected []PurchaseOrder) []OrderLine {
	lines := TagLines(target)
	for _, c := range selected {
		lines = append(lines, TagLines(c)...)
	}
	return lines
}

// MergePlan is the outcome of a merge: the consolidated PO to create and the status
// writes that retire the target and the selected candidates.
type MergePlan struct {
	NewPO         PurchaseOrder  `json:"new_po"`
	StatusUpdates []StatusUpdate `json:"status_updates"`
}

// PlanMerge consolidates target and selected into a new PO with id newID. Target lines
// come first, then each candidate's lines in selection order. None of the inputs are
// modified; constituents keep their own order lists.
func PlanMerge(target PurchaseOrder, selected []PurchaseOrder, newID string, now time.Time) (MergePlan, error) {
	if err := CheckAction(target, ActionMerge); err != nil {
		return MergePlan{}, err
	}
	if len(selected) == 0 {
		return MergePlan{}, validationErrorf(CodeNoCandidates, "select at least one purchase order to merge into %s", target.ID)
	}

	var accumulated []OrderLine
	accumulated = append(accumulated, target.OrderList.Lines...)
	seen := map[string]bool{target.ID: true}
	for _, c := range selected {
		if seen[c.ID] {
			return MergePlan{}, validationErrorf(CodeAlreadySelected, "purchase order %s is selected more than once", c.ID)
		}
		seen[c.ID] = true
		if len(FindMergeCandidates([]PurchaseOrder{c}, target)) == 0 {
			return MergePlan{}, validationErrorf(CodeNotCandidate, "purchase order %s cannot be merged into %s", c.ID, target.ID)
		}
		if conflicts := lineConflicts(accumulated, c.OrderList.Lines); len(conflicts) > 0 {
			return MergePlan{}, validationErrorf(CodeRateConflict,
				"purchase order %s quotes %s at %s but the merged list has it at %s",
				c.ID, conflicts[0].ItemID, conflicts[0].CandidateRate.String(), conflicts[0].TargetRate.String())
		}
		accumulated = append(accumulated, c.OrderList.Lines...)
	}

	newPO := PurchaseOrder{
		ID:                   newID,
		ProjectID:            target.ProjectID,
		ProjectName:          target.ProjectName,
		VendorID:             target.VendorID,
		VendorName:           target.VendorName,
		ProcurementRequestID: target.ProcurementRequestID,
		OrderList:            OrderList{Lines: mergedLines(target, selected)},
		Status:               StatusApproved,
		Merged:               true,
		PaymentsTotal:        decimal.Zero,
		Surcharges:           target.Surcharges,
		PaymentSplit:         target.PaymentSplit,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	updates := make([]StatusUpdate, 0, len(selected)+1)
	for _, po := range append([]PurchaseOrder{target}, selected...) {
		into := newID
		updates = append(updates, StatusUpdate{
			POID:       po.ID,
			From:       po.Status,
			To:         StatusMerged,
			MergedInto: &into,
		})
	}

	return MergePlan{NewPO: newPO, StatusUpdates: updates}, nil
}
