package core

import "time"

// CancelPlan is the outcome of cancelling a PO: the cancelled PO, which is immutable
// from then on, and the sent-back record that carries its items back to procurement.
type CancelPlan struct {
	Cancelled PurchaseOrder  `json:"cancelled"`
	SentBack  SentBackRecord `json:"sent_back"`
}

// PlanCancel cancels po and forks its current order list into a sent-back record.
// Every item is reset to Pending. Categories are deduplicated by name in first-seen
// order, each carrying the allowed makes from categoryMakes.
func PlanCancel(po PurchaseOrder, categoryMakes map[string][]string, sentBackID string, now time.Time) (CancelPlan, error) {
	if err := CheckAction(po, ActionCancel); err != nil {
		return CancelPlan{}, err
	}

	items := cloneLines(po.OrderList.Lines)
	var categories []SentBackCategory
	seen := make(map[string]bool)
	for i := range items {
		items[i].Status = LineStatusPending
		name := items[i].Category
		if seen[name] {
			continue
		}
		seen[name] = true
		makes := make([]string, len(categoryMakes[name]))
		copy(makes, categoryMakes[name])
		categories = append(categories, SentBackCategory{Name: name, Makes: makes})
	}

	cancelled := po.Clone()
	cancelled.Status = StatusCancelled
	cancelled.UpdatedAt = now

	return CancelPlan{
		Cancelled: cancelled,
		SentBack: SentBackRecord{
			ID:                   sentBackID,
			Type:                 SentBackCancelled,
			SourcePOID:           po.ID,
			ProcurementRequestID: po.ProcurementRequestID,
			ProjectID:            po.ProjectID,
			VendorID:             po.VendorID,
			Items:                items,
			Categories:           categories,
			CreatedAt:            now,
		},
	}, nil
}
