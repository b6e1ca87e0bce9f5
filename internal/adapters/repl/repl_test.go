package repl

import (
	"bufio"
	"context"
	"strings"
	"testing"
	"time"

	"procurement-engine/internal/adapters/cli"
	"procurement-engine/internal/app"
	"procurement-engine/internal/core"
	"procurement-engine/internal/session"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seed(id, itemID string) core.PurchaseOrder {
	return core.PurchaseOrder{
		ID:        id,
		ProjectID: "proj-1",
		VendorID:  "vendor-1",
		Status:    core.StatusApproved,
		OrderList: core.OrderList{Lines: []core.OrderLine{
			{ItemID: itemID, Quantity: dec("1"), Rate: dec("10"), TaxRate: dec("18"), Category: "Cables",
				Makes: []core.MakeEntry{{Make: "Polycab", Enabled: true}, {Make: "Havells"}}},
		}},
	}
}

func run(t *testing.T, store *core.MemoryStore, script string) {
	t.Helper()
	svc := app.NewAppService(core.NewProcurementService(store, store, nil, nil), session.NewMemoryStore(time.Minute), nil)
	Run(context.Background(), svc, cli.Options{}, bufio.NewReader(strings.NewReader(script)))
}

func TestAmendSession(t *testing.T) {
	store := core.NewMemoryStore()
	store.Put(seed("PO-1", "A"))

	run(t, store, strings.Join([]string{
		"/amend PO-1",
		"qty A 5",
		"make A Havells",
		"undo",
		"del A",
		"commit",
		"/exit",
	}, "\n")+"\n")

	got, err := store.GetPO(context.Background(), "PO-1")
	if err != nil {
		t.Fatalf("GetPO failed: %v", err)
	}
	l := got.OrderList.Lines[0]
	if !l.Quantity.Equal(dec("5")) || l.EnabledMake() != "Polycab" {
		t.Errorf("unexpected committed line: qty=%s make=%s", l.Quantity, l.EnabledMake())
	}
	if got.Status != core.StatusAmendment {
		t.Errorf("expected Amendment status, got %s", got.Status)
	}
}

func TestMergeSession(t *testing.T) {
	store := core.NewMemoryStore()
	store.Put(seed("PO-1", "A"))
	store.Put(seed("PO-2", "B"))

	run(t, store, "/merge PO-1\nadd PO-9\nadd PO-2\ndone\ny\n/exit\n")

	merged, _ := store.ListPOs(context.Background(), core.POFilter{Status: core.StatusMerged})
	if len(merged) != 2 {
		t.Errorf("expected both POs merged, got %d", len(merged))
	}
}

func TestParseRef(t *testing.T) {
	item, src := parseRef("A@PO-2")
	if item != "A" || src != "PO-2" {
		t.Errorf("got %q %q", item, src)
	}
	item, src = parseRef("A")
	if item != "A" || src != "" {
		t.Errorf("got %q %q", item, src)
	}
}
