package app_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"procurement-engine/internal/app"
	"procurement-engine/internal/core"
	"procurement-engine/internal/session"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seedPO(id string, lines ...core.OrderLine) core.PurchaseOrder {
	return core.PurchaseOrder{
		ID:          id,
		ProjectID:   "proj-1",
		ProjectName: "Tower A",
		VendorID:    "vendor-1",
		VendorName:  "Acme Electricals",
		OrderList:   core.OrderList{Lines: lines},
		Status:      core.StatusApproved,
		Surcharges:  core.Surcharges{Loading: dec("100")},
	}
}

func setupApp(t *testing.T, orders ...core.PurchaseOrder) (app.ApplicationService, *core.MemoryStore) {
	t.Helper()
	store := core.NewMemoryStore()
	for _, po := range orders {
		store.Put(po)
	}
	svc := core.NewProcurementService(store, store, nil, nil)
	return app.NewAppService(svc, session.NewMemoryStore(time.Minute), nil), store
}

func TestAmendmentFlow(t *testing.T) {
	po := seedPO("PO-1",
		core.OrderLine{ItemID: "A", ItemName: "Cable", Quantity: dec("10"), Rate: dec("50"), TaxRate: dec("18"), Category: "Cables",
			Makes: []core.MakeEntry{{Make: "Polycab", Enabled: true}, {Make: "Havells"}}},
		core.OrderLine{ItemID: "B", ItemName: "Switch", Quantity: dec("2"), Rate: dec("80"), TaxRate: dec("18"), Category: "Switches"},
	)
	svc, store := setupApp(t, po)
	ctx := context.Background()

	started, err := svc.BeginAmendment(ctx, "PO-1")
	if err != nil {
		t.Fatalf("BeginAmendment failed: %v", err)
	}
	if started.Token == "" || started.CanCommit {
		t.Fatalf("unexpected new session: %+v", started)
	}

	qty := dec("4")
	edited, err := svc.EditAmendment(ctx, app.AmendmentEditRequest{Token: started.Token, Op: app.EditQuantity, ItemID: "A", Quantity: &qty})
	if err != nil {
		t.Fatalf("quantity edit failed: %v", err)
	}
	// 4*50 + 2*80 + 100 loading = 460 before tax.
	if !edited.Totals.Subtotal.Equal(dec("460")) {
		t.Errorf("expected subtotal 460, got %s", edited.Totals.Subtotal)
	}

	if _, err := svc.EditAmendment(ctx, app.AmendmentEditRequest{Token: started.Token, Op: app.EditMake, ItemID: "A", Make: "Havells"}); err != nil {
		t.Fatalf("make edit failed: %v", err)
	}
	undone, err := svc.UndoAmendment(ctx, started.Token)
	if err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	if undone.Depth != 1 || undone.Lines[0].EnabledMake() != "Polycab" {
		t.Errorf("unexpected state after undo: depth=%d make=%q", undone.Depth, undone.Lines[0].EnabledMake())
	}

	_, err = svc.EditAmendment(ctx, app.AmendmentEditRequest{Token: started.Token, Op: "rename", ItemID: "A"})
	if core.ErrorCode(err) != "INVALID_REQUEST" {
		t.Errorf("expected INVALID_REQUEST, got %v", err)
	}

	committed, err := svc.CommitAmendment(ctx, started.Token)
	if err != nil {
		t.Fatalf("CommitAmendment failed: %v", err)
	}
	if committed.PurchaseOrder.Status != core.StatusAmendment {
		t.Errorf("expected PO Amendment, got %s", committed.PurchaseOrder.Status)
	}
	stored, _ := store.GetPO(ctx, "PO-1")
	if !stored.OrderList.Lines[0].Quantity.Equal(dec("4")) {
		t.Errorf("amendment not saved: %s", stored.OrderList.Lines[0].Quantity)
	}

	if _, err := svc.GetAmendment(ctx, started.Token); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("committed session should be closed, got %v", err)
	}
}

func TestDiscardAmendment(t *testing.T) {
	po := seedPO("PO-1", core.OrderLine{ItemID: "A", Quantity: dec("1"), Rate: dec("1"), Category: "Cables"})
	svc, _ := setupApp(t, po)
	ctx := context.Background()

	started, err := svc.BeginAmendment(ctx, "PO-1")
	if err != nil {
		t.Fatalf("BeginAmendment failed: %v", err)
	}
	if err := svc.DiscardAmendment(ctx, started.Token); err != nil {
		t.Fatalf("DiscardAmendment failed: %v", err)
	}
	if err := svc.DiscardAmendment(ctx, started.Token); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second discard, got %v", err)
	}
}

func TestGetTotalsAndPaymentSplit(t *testing.T) {
	po := seedPO("PO-1", core.OrderLine{ItemID: "A", Quantity: dec("10"), Rate: dec("90"), TaxRate: dec("0"), Category: "Cables"})
	svc, _ := setupApp(t, po)
	ctx := context.Background()

	_, err := svc.SetPaymentSplit(ctx, app.PaymentSplitRequest{POID: "PO-1", Percentages: []decimal.Decimal{dec("100")}})
	if core.ErrorCode(err) != "INVALID_REQUEST" {
		t.Errorf("expected INVALID_REQUEST for a short split, got %v", err)
	}

	_, err = svc.SetPaymentSplit(ctx, app.PaymentSplitRequest{
		POID:        "PO-1",
		Percentages: []decimal.Decimal{dec("20"), dec("30"), dec("50"), dec("0"), dec("0")},
	})
	if err != nil {
		t.Fatalf("SetPaymentSplit failed: %v", err)
	}

	totals, err := svc.GetTotals(ctx, "PO-1")
	if err != nil {
		t.Fatalf("GetTotals failed: %v", err)
	}
	// 900 lines + 100 loading + 18 surcharge tax.
	if !totals.Totals.GrandTotal.Equal(dec("1018")) || !totals.SplitValid {
		t.Errorf("unexpected totals: %+v", totals)
	}
	if !totals.Milestones[2].Equal(dec("509")) {
		t.Errorf("expected third milestone 509, got %s", totals.Milestones[2])
	}
}

func TestExportPurchaseOrder(t *testing.T) {
	po := seedPO("PO-1", core.OrderLine{ItemID: "A", ItemName: "Cable", Quantity: dec("3"), Rate: dec("10"), TaxRate: dec("18"), Category: "Cables"})
	svc, store := setupApp(t, po)
	ctx := context.Background()

	_, err := svc.ExportPurchaseOrder(ctx, "PO-1")
	if core.ErrorCode(err) != core.CodePaymentSplit {
		t.Fatalf("expected export to require a complete split, got %v", err)
	}

	po.PaymentSplit = core.PaymentSplit{dec("100")}
	store.Put(po)

	out, err := svc.ExportPurchaseOrder(ctx, "PO-1")
	if err != nil {
		t.Fatalf("ExportPurchaseOrder failed: %v", err)
	}
	if out.Filename != "PO_PO-1.xlsx" || len(out.Data) == 0 {
		t.Fatalf("unexpected export: %s (%d bytes)", out.Filename, len(out.Data))
	}

	f, err := excelize.OpenReader(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("open exported workbook: %v", err)
	}
	defer f.Close()
	name, err := f.GetCellValue("Purchase Order", "B7")
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if name != "Cable" {
		t.Errorf("expected first item in B7, got %q", name)
	}
	if style, err := f.GetCellStyle("Purchase Order", "K6"); err != nil || style == 0 {
		t.Errorf("expected the last header cell styled, got %d (%v)", style, err)
	}
	if width, err := f.GetColWidth("Purchase Order", "B"); err != nil || width != 28 {
		t.Errorf("expected item column width 28, got %v (%v)", width, err)
	}
	// Lines end at row 7; seven summary rows start at 9, milestones follow a blank row.
	if got, _ := f.GetCellValue("Purchase Order", "A18"); got != "Milestone 1" {
		t.Errorf("expected first milestone in A18, got %q", got)
	}
}

func TestRetryStatusUpdatesValidation(t *testing.T) {
	svc, _ := setupApp(t)
	ctx := context.Background()

	err := svc.RetryStatusUpdates(ctx, app.RetryStatusUpdatesRequest{
		Operation: "merge",
		Updates:   []core.StatusUpdate{{POID: "PO-1", To: core.StatusMerged}},
	})
	if core.ErrorCode(err) != "INVALID_REQUEST" {
		t.Errorf("expected merged_into to be required, got %v", err)
	}

	err = svc.RetryStatusUpdates(ctx, app.RetryStatusUpdatesRequest{Operation: "cancel"})
	if core.ErrorCode(err) != "INVALID_REQUEST" {
		t.Errorf("expected unknown operation to be rejected, got %v", err)
	}
}

func TestRetryStatusUpdatesRejectsStaleState(t *testing.T) {
	cancelled := seedPO("PO-C", core.OrderLine{ItemID: "A", Quantity: dec("1"), Rate: dec("1"), Category: "Cables"})
	cancelled.Status = core.StatusCancelled
	dispatched := seedPO("PO-D", core.OrderLine{ItemID: "B", Quantity: dec("1"), Rate: dec("1"), Category: "Cables"})
	dispatched.Status = core.StatusDispatched
	svc, store := setupApp(t, cancelled, dispatched)
	ctx := context.Background()

	err := svc.RetryStatusUpdates(ctx, app.RetryStatusUpdatesRequest{
		Operation: "unmerge",
		Updates:   []core.StatusUpdate{{POID: "PO-C", From: core.StatusMerged, To: core.StatusApproved}},
	})
	var pv *core.PreconditionViolation
	if !errors.As(err, &pv) || pv.Code != core.CodeStaleStatus {
		t.Errorf("expected STALE_STATUS for a cancelled PO, got %v", err)
	}

	missing := "NO-SUCH-PO"
	err = svc.RetryStatusUpdates(ctx, app.RetryStatusUpdatesRequest{
		Operation: "merge",
		Updates:   []core.StatusUpdate{{POID: "PO-D", From: core.StatusApproved, To: core.StatusMerged, MergedInto: &missing}},
	})
	if core.ErrorCode(err) != core.CodeNotConsolidated {
		t.Errorf("expected NOT_CONSOLIDATED for a missing merge target, got %v", err)
	}

	for id, want := range map[string]core.POStatus{"PO-C": core.StatusCancelled, "PO-D": core.StatusDispatched} {
		po, _ := store.GetPO(ctx, id)
		if po.Status != want || po.MergedInto != nil {
			t.Errorf("%s changed to %s", id, po.Status)
		}
	}
}
