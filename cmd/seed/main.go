// seed loads a small demo project into the database: three approved purchase orders
// from one vendor (two mergeable, one rate-blocked) and the procurement request makes.
//
// Usage: go run ./cmd/seed
package main

import (
	"context"
	"log"
	"time"

	"procurement-engine/internal/config"
	"procurement-engine/internal/core"
	"procurement-engine/internal/db"

	"github.com/shopspring/decimal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	log.Println("Restoring procurement request makes...")
	_, err = tx.Exec(ctx, `
		INSERT INTO procurement_request_categories (procurement_request_id, category, makes)
		VALUES
		  ('PR-DEMO-1', 'Cables',   ARRAY['Polycab', 'Havells', 'Finolex']),
		  ('PR-DEMO-1', 'Switches', ARRAY['Legrand', 'Schneider'])
		ON CONFLICT (procurement_request_id, category) DO UPDATE
		  SET makes = EXCLUDED.makes;
	`)
	if err != nil {
		log.Fatalf("Failed to restore categories: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	log.Println("Restoring demo purchase orders...")
	store := core.NewPostgresStore(pool)
	for _, po := range demoOrders(time.Now().UTC()) {
		if err := store.CreatePO(ctx, po); err != nil {
			log.Fatalf("Failed to create %s: %v", po.ID, err)
		}
	}
	log.Println("Seed data restored.")
}

func demoOrders(now time.Time) []core.PurchaseOrder {
	d := decimal.RequireFromString
	cable := func(qty, rate string) core.OrderLine {
		return core.OrderLine{
			ItemID: "ITM-CBL-4", ItemName: "4 sq mm copper cable", Unit: "m", Category: "Cables",
			Quantity: d(qty), Rate: d(rate), TaxRate: d("18"),
			Makes: []core.MakeEntry{{Make: "Polycab", Enabled: true}, {Make: "Havells"}, {Make: "Finolex"}},
		}
	}
	switchLine := core.OrderLine{
		ItemID: "ITM-SW-6A", ItemName: "6A modular switch", Unit: "nos", Category: "Switches",
		Quantity: d("120"), Rate: d("42.50"), TaxRate: d("18"),
		Makes: []core.MakeEntry{{Make: "Legrand", Enabled: true}, {Make: "Schneider"}},
	}
	base := func(id string, lines ...core.OrderLine) core.PurchaseOrder {
		return core.PurchaseOrder{
			ID: id, ProjectID: "PRJ-DEMO", ProjectName: "Demo Tower", VendorID: "VND-DEMO", VendorName: "Demo Electricals",
			ProcurementRequestID: "PR-DEMO-1", Status: core.StatusApproved,
			OrderList:  core.OrderList{Lines: lines},
			Surcharges: core.Surcharges{Loading: d("250"), Freight: d("400")},
			CreatedAt:  now, UpdatedAt: now,
		}
	}
	return []core.PurchaseOrder{
		base("PO-DEMO-1", cable("500", "38.75")),
		base("PO-DEMO-2", switchLine),
		base("PO-DEMO-3", cable("200", "41.00")),
	}
}
