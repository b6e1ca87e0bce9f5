package core_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"procurement-engine/internal/core"
	"procurement-engine/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func setupService(t *testing.T, orders ...core.PurchaseOrder) (*core.MemoryStore, core.ProcurementService, context.Context) {
	t.Helper()
	store := core.NewMemoryStore()
	for _, po := range orders {
		store.Put(po)
	}
	m := metrics.New(prometheus.NewRegistry())
	return store, core.NewProcurementService(store, store, zap.NewNop(), m), context.Background()
}

func getPO(t *testing.T, store *core.MemoryStore, id string) core.PurchaseOrder {
	t.Helper()
	po, err := store.GetPO(context.Background(), id)
	if err != nil {
		t.Fatalf("GetPO %s: %v", id, err)
	}
	return *po
}

func TestProcurementService_MergeCandidates(t *testing.T) {
	target := approvedPO("PO-1", line("A", "Cables", "1", "10", "18"))
	ok := approvedPO("PO-2", line("B", "Cables", "1", "5", "18"))
	blocked := approvedPO("PO-3", line("A", "Cables", "1", "11", "18"))
	_, svc, ctx := setupService(t, target, ok, blocked)

	got, err := svc.MergeCandidates(ctx, "PO-1")
	if err != nil {
		t.Fatalf("MergeCandidates failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].PO.ID != "PO-2" || got[0].Blocked {
		t.Errorf("PO-2 should be an unblocked candidate: %+v", got[0])
	}
	if got[1].PO.ID != "PO-3" || !got[1].Blocked || len(got[1].Conflicts) != 1 {
		t.Errorf("PO-3 should be blocked with one conflict: %+v", got[1])
	}

	if _, err := svc.MergeCandidates(ctx, "PO-404"); !errors.Is(err, core.ErrPONotFound) {
		t.Errorf("expected ErrPONotFound, got %v", err)
	}
}

func TestProcurementService_MergeThenUnmergeRestoresConstituents(t *testing.T) {
	target := approvedPO("PO-1", line("A", "Cables", "2", "10", "18"), line("B", "Cables", "1", "30", "18"))
	candidate := approvedPO("PO-2", line("C", "Switches", "4", "5", "12"))
	store, svc, ctx := setupService(t, target, candidate)

	preview, err := svc.PreviewMerge(ctx, "PO-1", []string{"PO-2"})
	if err != nil {
		t.Fatalf("PreviewMerge failed: %v", err)
	}
	if len(preview.Lines) != 3 {
		t.Errorf("expected 3 preview lines, got %d", len(preview.Lines))
	}
	if list, _ := svc.ListPOs(ctx, core.POFilter{}); len(list) != 2 {
		t.Fatalf("PreviewMerge must not write; found %d POs", len(list))
	}

	result, err := svc.Merge(ctx, "PO-1", []string{"PO-2"})
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	newID := result.NewPO.ID
	if newID == "" || len(result.Applied) != 2 {
		t.Fatalf("unexpected merge result: %+v", result)
	}

	merged := getPO(t, store, newID)
	if !merged.Merged || merged.Status != core.StatusApproved || len(merged.OrderList.Lines) != 3 {
		t.Errorf("unexpected consolidated PO: %+v", merged)
	}
	if !preview.Totals.GrandTotal.Equal(core.ComputeTotals(merged.OrderList.Lines, merged.Surcharges).GrandTotal) {
		t.Error("preview totals differ from the consolidated PO")
	}
	for _, id := range []string{"PO-1", "PO-2"} {
		po := getPO(t, store, id)
		if po.Status != core.StatusMerged || po.MergedInto == nil || *po.MergedInto != newID {
			t.Errorf("%s not retired into %s: %+v", id, newID, po)
		}
		if err := po.Validate(); err != nil {
			t.Errorf("%s invalid after merge: %v", id, err)
		}
	}

	unmerged, err := svc.Unmerge(ctx, newID)
	if err != nil {
		t.Fatalf("Unmerge failed: %v", err)
	}
	if unmerged.DeletedPO != newID || len(unmerged.Restored) != 2 {
		t.Errorf("unexpected unmerge result: %+v", unmerged)
	}
	if _, err := store.GetPO(ctx, newID); !errors.Is(err, core.ErrPONotFound) {
		t.Errorf("consolidated PO should be deleted, got %v", err)
	}
	for _, orig := range []core.PurchaseOrder{target, candidate} {
		po := getPO(t, store, orig.ID)
		if po.Status != core.StatusApproved || po.MergedInto != nil {
			t.Errorf("%s not restored: %+v", orig.ID, po)
		}
		if !reflect.DeepEqual(po.OrderList, orig.OrderList) {
			t.Errorf("%s order list changed across merge and unmerge", orig.ID)
		}
	}
}

func TestProcurementService_MergePartialFailure(t *testing.T) {
	target := approvedPO("PO-1", line("A", "Cables", "1", "10", "18"))
	first := approvedPO("PO-2", line("B", "Cables", "1", "5", "18"))
	second := approvedPO("PO-3", line("C", "Cables", "1", "7", "18"))
	store, svc, ctx := setupService(t, target, first, second)

	unavailable := errors.New("store unavailable")
	store.FailStatusWrites("PO-2", unavailable)

	result, err := svc.Merge(ctx, "PO-1", []string{"PO-2", "PO-3"})
	var pf *core.PartialFailure
	if !errors.As(err, &pf) {
		t.Fatalf("expected PartialFailure, got %v", err)
	}
	if !errors.Is(err, unavailable) {
		t.Error("PartialFailure should unwrap to the write error")
	}
	if len(pf.Failures) != 1 || pf.Failures[0].POID != "PO-2" || len(pf.Pending) != 1 {
		t.Fatalf("unexpected failures: %+v", pf)
	}
	if result == nil || len(result.Applied) != 2 {
		t.Fatalf("expected the other two writes applied, got %+v", result)
	}

	// Completed writes are kept.
	if getPO(t, store, "PO-1").Status != core.StatusMerged || getPO(t, store, "PO-3").Status != core.StatusMerged {
		t.Error("successful writes were not kept")
	}
	if getPO(t, store, "PO-2").Status != core.StatusApproved {
		t.Error("failed write should leave PO-2 approved")
	}

	store.FailStatusWrites("PO-2", nil)
	if err := svc.ApplyStatusUpdates(ctx, "merge", pf.Pending); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	po2 := getPO(t, store, "PO-2")
	if po2.Status != core.StatusMerged || *po2.MergedInto != result.NewPO.ID {
		t.Errorf("retry did not complete the merge: %+v", po2)
	}

	// Re-applying is harmless.
	if err := svc.ApplyStatusUpdates(ctx, "merge", pf.Pending); err != nil {
		t.Errorf("second retry failed: %v", err)
	}
}

func TestProcurementService_ApplyStatusUpdatesChecksCurrentState(t *testing.T) {
	target := approvedPO("PO-1", line("A", "Cables", "1", "10", "18"))
	candidate := approvedPO("PO-2", line("B", "Cables", "1", "5", "18"))
	cancelled := approvedPO("PO-C", line("C", "Cables", "1", "5", "18"))
	cancelled.Status = core.StatusCancelled
	dispatched := approvedPO("PO-D", line("D", "Cables", "1", "5", "18"))
	dispatched.Status = core.StatusDispatched
	store, svc, ctx := setupService(t, target, candidate, cancelled, dispatched)

	result, err := svc.Merge(ctx, "PO-1", []string{"PO-2"})
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	newID := result.NewPO.ID
	missing := "NO-SUCH-PO"
	plain := "PO-2"
	other := "PO-OTHER"
	otherPO := approvedPO(other, line("E", "Cables", "1", "5", "18"))
	otherPO.Merged = true
	store.Put(otherPO)

	tests := []struct {
		name      string
		operation string
		update    core.StatusUpdate
		code      string
	}{
		{"cancelled po reopened", "unmerge", core.StatusUpdate{POID: "PO-C", From: core.StatusCancelled, To: core.StatusApproved}, core.CodeInvalidUpdate},
		{"cancelled po claimed as merged", "unmerge", core.StatusUpdate{POID: "PO-C", From: core.StatusMerged, To: core.StatusApproved}, core.CodeStaleStatus},
		{"merged into missing po", "merge", core.StatusUpdate{POID: "PO-D", From: core.StatusApproved, To: core.StatusMerged, MergedInto: &missing}, core.CodeNotConsolidated},
		{"merged into plain po", "merge", core.StatusUpdate{POID: "PO-D", From: core.StatusApproved, To: core.StatusMerged, MergedInto: &plain}, core.CodeNotConsolidated},
		{"dispatched po merged", "merge", core.StatusUpdate{POID: "PO-D", From: core.StatusApproved, To: core.StatusMerged, MergedInto: &newID}, core.CodeStaleStatus},
		{"merged po re-pointed", "merge", core.StatusUpdate{POID: "PO-2", From: core.StatusApproved, To: core.StatusMerged, MergedInto: &other}, core.CodeStaleStatus},
		{"unknown operation", "cancel", core.StatusUpdate{POID: "PO-D", From: core.StatusDispatched, To: core.StatusApproved}, core.CodeInvalidUpdate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ApplyStatusUpdates(ctx, tt.operation, []core.StatusUpdate{tt.update})
			wantCode(t, err, tt.code)
		})
	}

	if po := getPO(t, store, "PO-C"); po.Status != core.StatusCancelled {
		t.Errorf("PO-C should stay Cancelled, got %s", po.Status)
	}
	if po := getPO(t, store, "PO-D"); po.Status != core.StatusDispatched || po.MergedInto != nil {
		t.Errorf("PO-D should stay Dispatched, got %s", po.Status)
	}

	// The store refuses the write on its own too.
	err = store.UpdateStatus(ctx, core.StatusUpdate{POID: "PO-D", From: core.StatusApproved, To: core.StatusMerged, MergedInto: &newID})
	wantCode(t, err, core.CodeStaleStatus)
}

func TestProcurementService_RejectsInvalidDocuments(t *testing.T) {
	po := approvedPO("PO-1", line("A", "Cables", "1", "10", "18", "Polycab", "Havells"))
	po.OrderList.Lines[0].Makes[1].Enabled = true
	store, svc, ctx := setupService(t, po)

	_, err := svc.Dispatch(ctx, "PO-1", nil)
	wantCode(t, err, core.CodeMultipleMakes)
	if getPO(t, store, "PO-1").Status != core.StatusApproved {
		t.Error("an invalid PO must not be saved")
	}

	err = store.CreatePO(ctx, approvedPO("PO-2", po.OrderList.Lines[0]))
	wantCode(t, err, core.CodeMultipleMakes)
	if _, err := store.GetPO(ctx, "PO-2"); !errors.Is(err, core.ErrPONotFound) {
		t.Errorf("invalid PO was created: %v", err)
	}
}

func TestProcurementService_UnmergeKeepsConsolidatedPOUntilAllRestored(t *testing.T) {
	target := approvedPO("PO-1", line("A", "Cables", "1", "10", "18"))
	candidate := approvedPO("PO-2", line("B", "Cables", "1", "5", "18"))
	store, svc, ctx := setupService(t, target, candidate)

	result, err := svc.Merge(ctx, "PO-1", []string{"PO-2"})
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	newID := result.NewPO.ID

	store.FailStatusWrites("PO-1", errors.New("timeout"))
	_, err = svc.Unmerge(ctx, newID)
	var pf *core.PartialFailure
	if !errors.As(err, &pf) {
		t.Fatalf("expected PartialFailure, got %v", err)
	}
	if _, err := store.GetPO(ctx, newID); err != nil {
		t.Fatalf("consolidated PO must survive a partial unmerge: %v", err)
	}

	store.FailStatusWrites("PO-1", nil)
	unmerged, err := svc.Unmerge(ctx, newID)
	if err != nil {
		t.Fatalf("second Unmerge failed: %v", err)
	}
	if unmerged.DeletedPO != newID || len(unmerged.Restored) != 1 {
		t.Errorf("unexpected result: %+v", unmerged)
	}
	if getPO(t, store, "PO-1").Status != core.StatusApproved {
		t.Error("PO-1 not restored")
	}
}

func TestProcurementService_MergeRejections(t *testing.T) {
	target := approvedPO("PO-1", line("A", "Cables", "1", "10", "18"))
	other := approvedPO("PO-2", line("B", "Cables", "1", "5", "18"))
	other.VendorID = "vendor-2"
	conflicting := approvedPO("PO-3", line("A", "Cables", "1", "12", "18"))
	_, svc, ctx := setupService(t, target, other, conflicting)

	_, err := svc.Merge(ctx, "PO-1", []string{"PO-2"})
	wantCode(t, err, core.CodeNotCandidate)

	_, err = svc.Merge(ctx, "PO-1", []string{"PO-3"})
	wantCode(t, err, core.CodeRateConflict)

	_, err = svc.Merge(ctx, "PO-1", nil)
	wantCode(t, err, core.CodeNoCandidates)

	if list, _ := svc.ListPOs(ctx, core.POFilter{Status: core.StatusApproved}); len(list) != 3 {
		t.Errorf("rejected merges must not write, found %d approved POs", len(list))
	}
}

func TestProcurementService_Cancel(t *testing.T) {
	po := approvedPO("PO-1", line("A", "Cables", "1", "10", "18"), line("B", "Switches", "2", "40", "18"))
	po.ProcurementRequestID = "PR-1"
	store, svc, ctx := setupService(t, po)
	store.SetCategoryMakes("PR-1", map[string][]string{"Cables": {"Polycab"}})

	plan, err := svc.Cancel(ctx, "PO-1")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if getPO(t, store, "PO-1").Status != core.StatusCancelled {
		t.Error("PO not cancelled")
	}
	records := store.SentBack("PO-1")
	if len(records) != 1 || records[0].ID != plan.SentBack.ID || len(records[0].Items) != 2 {
		t.Fatalf("unexpected sent-back records: %+v", records)
	}
	if got := records[0].Categories[0].Makes; len(got) != 1 || got[0] != "Polycab" {
		t.Errorf("unexpected makes %v", got)
	}

	_, err = svc.Cancel(ctx, "PO-1")
	wantCode(t, err, core.CodeInvalidStatus)
}

func TestProcurementService_AmendmentLifecycle(t *testing.T) {
	po := approvedPO("PO-1", line("A", "Cables", "1", "10", "18"), line("B", "Switches", "2", "40", "18"))
	store, svc, ctx := setupService(t, po)

	s, err := svc.BeginAmendment(ctx, "PO-1")
	if err != nil {
		t.Fatalf("BeginAmendment failed: %v", err)
	}
	if _, err := svc.CommitAmendment(ctx, s); core.ErrorCode(err) != core.CodeEmptyUndoStack {
		t.Fatalf("expected EMPTY_UNDO_STACK, got %v", err)
	}

	s, err = s.ApplyQuantityChange(core.ItemRef("B"), dec("5"))
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	amended, err := svc.CommitAmendment(ctx, s)
	if err != nil {
		t.Fatalf("CommitAmendment failed: %v", err)
	}
	stored := getPO(t, store, "PO-1")
	if amended.Status != core.StatusAmendment || stored.Status != core.StatusAmendment {
		t.Errorf("expected PO Amendment, got %s / %s", amended.Status, stored.Status)
	}
	if !stored.OrderList.Lines[1].Quantity.Equal(dec("5")) {
		t.Errorf("amended quantity not saved: %s", stored.OrderList.Lines[1].Quantity)
	}
}

func TestProcurementService_DispatchAndPaymentSplit(t *testing.T) {
	po := approvedPO("PO-1", line("A", "Cables", "1", "10", "18"))
	store, svc, ctx := setupService(t, po)

	if _, err := svc.SetPaymentSplit(ctx, "PO-1", core.PaymentSplit{dec("30"), dec("30")}); core.ErrorCode(err) != core.CodePaymentSplit {
		t.Errorf("expected INVALID_PAYMENT_SPLIT, got %v", err)
	}
	updated, err := svc.SetPaymentSplit(ctx, "PO-1", core.PaymentSplit{dec("40"), dec("60")})
	if err != nil {
		t.Fatalf("SetPaymentSplit failed: %v", err)
	}
	if !updated.PaymentSplit.Sum().Equal(dec("100")) {
		t.Errorf("split not saved: %v", updated.PaymentSplit)
	}

	if _, err := svc.Dispatch(ctx, "PO-1", &core.DeliveryContact{Name: "Site Office"}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if getPO(t, store, "PO-1").Status != core.StatusDispatched {
		t.Error("PO not dispatched")
	}
	if _, err := svc.RevertDispatch(ctx, "PO-1"); err != nil {
		t.Fatalf("RevertDispatch failed: %v", err)
	}
	stored := getPO(t, store, "PO-1")
	if stored.Status != core.StatusApproved || stored.DeliveryContact != nil {
		t.Errorf("unexpected PO after revert: %+v", stored)
	}
}
