package core_test

import (
	"reflect"
	"testing"

	"procurement-engine/internal/core"
)

func TestPlanCancel(t *testing.T) {
	po := approvedPO("PO-1",
		line("A", "Cables", "10", "100", "18"),
		line("B", "Switches", "5", "40", "18"),
		line("C", "Cables", "2", "250", "18"),
	)
	po.ProcurementRequestID = "PR-7"
	po.OrderList.Lines[0].Status = "Approved"

	makes := map[string][]string{
		"Cables":   {"Polycab", "Havells"},
		"Switches": {"Legrand"},
	}

	plan, err := core.PlanCancel(po, makes, "SB-1", testNow)
	if err != nil {
		t.Fatalf("PlanCancel failed: %v", err)
	}

	if plan.Cancelled.Status != core.StatusCancelled {
		t.Errorf("expected Cancelled, got %s", plan.Cancelled.Status)
	}
	if po.Status != core.StatusApproved {
		t.Error("PlanCancel must not modify its input")
	}

	sb := plan.SentBack
	if sb.ID != "SB-1" || sb.Type != core.SentBackCancelled || sb.SourcePOID != "PO-1" || sb.ProcurementRequestID != "PR-7" {
		t.Errorf("unexpected sent-back header: %+v", sb)
	}
	if len(sb.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(sb.Items))
	}
	for _, it := range sb.Items {
		if it.Status != core.LineStatusPending {
			t.Errorf("item %s: expected Pending, got %q", it.ItemID, it.Status)
		}
	}

	want := []core.SentBackCategory{
		{Name: "Cables", Makes: []string{"Polycab", "Havells"}},
		{Name: "Switches", Makes: []string{"Legrand"}},
	}
	if !reflect.DeepEqual(sb.Categories, want) {
		t.Errorf("categories: got %+v, want %+v", sb.Categories, want)
	}

	// The returned makes must not alias the lookup map.
	sb.Categories[0].Makes[0] = "changed"
	if makes["Cables"][0] != "Polycab" {
		t.Error("sent-back categories alias the lookup map")
	}
}

func TestPlanCancel_UnknownCategoryHasNoMakes(t *testing.T) {
	po := approvedPO("PO-1", line("A", "Lighting", "1", "10", "18"))
	plan, err := core.PlanCancel(po, nil, "SB-1", testNow)
	if err != nil {
		t.Fatalf("PlanCancel failed: %v", err)
	}
	if len(plan.SentBack.Categories) != 1 || len(plan.SentBack.Categories[0].Makes) != 0 {
		t.Errorf("unexpected categories %+v", plan.SentBack.Categories)
	}
}

func TestPlanCancel_Rejections(t *testing.T) {
	po := approvedPO("PO-1", line("A", "Cables", "1", "10", "18"))

	paid := po
	paid.PaymentsTotal = dec("1")
	_, err := core.PlanCancel(paid, nil, "SB-1", testNow)
	wantCode(t, err, core.CodeHasPayments)

	dispatched := po
	dispatched.Status = core.StatusDispatched
	_, err = core.PlanCancel(dispatched, nil, "SB-1", testNow)
	wantCode(t, err, core.CodeInvalidStatus)
}
