package cli

import (
	"fmt"
	"io"
	"strings"

	"procurement-engine/internal/app"
	"procurement-engine/internal/core"
)

func printPurchaseOrders(out io.Writer, orders []core.PurchaseOrder) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 86))
	if len(orders) == 0 {
		fmt.Fprintln(out, "  No purchase orders found.")
		fmt.Fprintln(out, strings.Repeat("=", 86))
		return
	}
	fmt.Fprintf(out, "  %-20s %-18s %-14s %-14s %5s %10s\n", "ID", "STATUS", "PROJECT", "VENDOR", "LINES", "TOTAL")
	fmt.Fprintln(out, strings.Repeat("-", 86))
	for _, po := range orders {
		totals := core.ComputeTotals(po.OrderList.Lines, po.Surcharges)
		fmt.Fprintf(out, "  %-20s %-18s %-14s %-14s %5d %10s\n",
			po.ID, po.Status, po.ProjectID, po.VendorID, len(po.OrderList.Lines), totals.RoundedTotal.StringFixed(0))
	}
	fmt.Fprintln(out, strings.Repeat("=", 86))
}

func printPurchaseOrder(out io.Writer, result *app.PurchaseOrderResult) {
	po := result.PurchaseOrder
	fmt.Fprintln(out)
	fmt.Fprintf(out, "PURCHASE ORDER %s\n", po.ID)
	fmt.Fprintf(out, "  Project : %s %s\n", po.ProjectID, po.ProjectName)
	fmt.Fprintf(out, "  Vendor  : %s %s\n", po.VendorID, po.VendorName)
	fmt.Fprintf(out, "  Status  : %s\n", po.Status)
	if po.MergedInto != nil {
		fmt.Fprintf(out, "  Merged into %s\n", *po.MergedInto)
	}
	if po.DeliveryContact != nil {
		fmt.Fprintf(out, "  Contact : %s %s\n", po.DeliveryContact.Name, po.DeliveryContact.Phone)
	}
	printLines(out, po.OrderList.Lines)
	printTotalsBlock(out, result.Totals)
	fmt.Fprintf(out, "  Split   : %s\n", formatSplit(po.PaymentSplit))
	names := make([]string, len(result.AllowedActions))
	for i, a := range result.AllowedActions {
		names[i] = string(a)
	}
	fmt.Fprintf(out, "  Actions : %s\n", strings.Join(names, ", "))
}

func printLines(out io.Writer, lines []core.OrderLine) {
	fmt.Fprintln(out, strings.Repeat("-", 86))
	fmt.Fprintf(out, "  %-10s %-24s %-12s %8s %10s %6s %12s %s\n", "ITEM", "NAME", "MAKE", "QTY", "RATE", "TAX%", "AMOUNT", "SOURCE")
	for _, l := range lines {
		fmt.Fprintf(out, "  %-10s %-24s %-12s %8s %10s %6s %12s %s\n",
			l.ItemID, truncate(l.ItemName, 24), l.EnabledMake(), l.Quantity.String(), l.Rate.StringFixed(2),
			l.TaxRate.String(), l.Amount().StringFixed(2), l.SourcePoID)
	}
	fmt.Fprintln(out, strings.Repeat("-", 86))
}

func printTotalsBlock(out io.Writer, t core.Totals) {
	fmt.Fprintf(out, "  Subtotal   : %14s\n", t.Subtotal.StringFixed(2))
	fmt.Fprintf(out, "  Tax        : %14s\n", t.TaxTotal.StringFixed(2))
	fmt.Fprintf(out, "  Grand total: %14s\n", t.GrandTotal.StringFixed(2))
	fmt.Fprintf(out, "  Round off  : %14s\n", t.RoundOff.StringFixed(2))
	fmt.Fprintf(out, "  Total      : %14s\n", t.RoundedTotal.StringFixed(0))
}

func printTotals(out io.Writer, result *app.TotalsResult) {
	fmt.Fprintf(out, "\nTOTALS %s\n", result.POID)
	printTotalsBlock(out, result.Totals)
	for i, pct := range result.Split {
		if pct.IsZero() {
			continue
		}
		fmt.Fprintf(out, "  Milestone %d (%s%%): %s\n", i+1, pct.String(), result.Milestones[i].StringFixed(2))
	}
	if !result.SplitValid {
		fmt.Fprintln(out, "  Payment split is incomplete; export is disabled.")
	}
}

func printCandidates(out io.Writer, result *app.MergeCandidatesResult) {
	fmt.Fprintf(out, "\nMERGE CANDIDATES for %s\n", result.TargetID)
	if len(result.Candidates) == 0 {
		fmt.Fprintln(out, "  None.")
		return
	}
	for _, c := range result.Candidates {
		state := "ok"
		if c.Blocked {
			state = "blocked"
		}
		fmt.Fprintf(out, "  %-20s %-8s %d lines\n", c.PO.ID, state, len(c.PO.OrderList.Lines))
		for _, conflict := range c.Conflicts {
			fmt.Fprintf(out, "      %s: %s vs %s\n", conflict.ItemID, conflict.TargetRate.StringFixed(2), conflict.CandidateRate.StringFixed(2))
		}
	}
}

func formatSplit(split core.PaymentSplit) string {
	parts := make([]string, len(split))
	for i, pct := range split {
		parts[i] = pct.String()
	}
	return strings.Join(parts, "/")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
