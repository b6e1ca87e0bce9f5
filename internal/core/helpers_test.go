package core_test

import (
	"sort"
	"testing"
	"time"

	"procurement-engine/internal/core"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func line(itemID, category, qty, rate, taxRate string, makes ...string) core.OrderLine {
	l := core.OrderLine{
		ItemID:   itemID,
		ItemName: "Item " + itemID,
		Quantity: dec(qty),
		Unit:     "nos",
		Rate:     dec(rate),
		TaxRate:  dec(taxRate),
		Category: category,
	}
	for i, m := range makes {
		l.Makes = append(l.Makes, core.MakeEntry{Make: m, Enabled: i == 0})
	}
	return l
}

func approvedPO(id string, lines ...core.OrderLine) core.PurchaseOrder {
	return core.PurchaseOrder{
		ID:          id,
		ProjectID:   "proj-1",
		ProjectName: "Tower A",
		VendorID:    "vendor-1",
		VendorName:  "Acme Electricals",
		OrderList:   core.OrderList{Lines: lines},
		Status:      core.StatusApproved,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	}
}

func itemIDs(lines []core.OrderLine) []string {
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.Ref().String()
	}
	return ids
}

// sameLines compares two lists ignoring order.
func sameLines(t *testing.T, got, want []core.OrderLine) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d lines %v, want %d lines %v", len(got), itemIDs(got), len(want), itemIDs(want))
	}
	key := func(l core.OrderLine) string { return l.Ref().String() }
	g := append([]core.OrderLine(nil), got...)
	w := append([]core.OrderLine(nil), want...)
	sort.Slice(g, func(i, j int) bool { return key(g[i]) < key(g[j]) })
	sort.Slice(w, func(i, j int) bool { return key(w[i]) < key(w[j]) })
	for i := range g {
		if key(g[i]) != key(w[i]) {
			t.Fatalf("line %d: got %s, want %s", i, key(g[i]), key(w[i]))
		}
		if !g[i].Quantity.Equal(w[i].Quantity) {
			t.Errorf("%s quantity: got %s, want %s", key(g[i]), g[i].Quantity, w[i].Quantity)
		}
		if !g[i].Rate.Equal(w[i].Rate) {
			t.Errorf("%s rate: got %s, want %s", key(g[i]), g[i].Rate, w[i].Rate)
		}
		if g[i].EnabledMake() != w[i].EnabledMake() {
			t.Errorf("%s make: got %q, want %q", key(g[i]), g[i].EnabledMake(), w[i].EnabledMake())
		}
	}
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	if got := core.ErrorCode(err); got != code {
		t.Fatalf("expected code %s, got %q (%v)", code, got, err)
	}
}
