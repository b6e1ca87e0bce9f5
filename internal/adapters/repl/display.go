package repl

import (
	"fmt"
	"strings"

	"procurement-engine/internal/app"
	"procurement-engine/internal/core"
)

func printHelp() {
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  /list [project=..] [vendor=..] [status=..]   list purchase orders")
	fmt.Println("  /show <id>          /totals <id>             inspect a purchase order")
	fmt.Println("  /candidates <id>    /merge <id>              find and merge sibling POs")
	fmt.Println("  /unmerge <id>                                split a consolidated PO")
	fmt.Println("  /amend <id>                                  edit lines with undo")
	fmt.Println("  /dispatch <id> [name] [phone]   /revert <id>   /cancel <id>")
	fmt.Println("  /split <id> <pct>...   /export <id> [file]")
	fmt.Println("  /exit")
}

func printLineTable(lines []core.OrderLine) {
	fmt.Printf("  %-12s %-24s %-12s %8s %10s %12s\n", "ITEM", "NAME", "MAKE", "QTY", "RATE", "AMOUNT")
	fmt.Println("  " + strings.Repeat("-", 82))
	for _, l := range lines {
		item := l.ItemID
		if l.SourcePoID != "" {
			item += "@" + l.SourcePoID
		}
		fmt.Printf("  %-12s %-24s %-12s %8s %10s %12s\n",
			item, l.ItemName, l.EnabledMake(), l.Quantity.String(), l.Rate.StringFixed(2), l.Amount().StringFixed(2))
	}
}

func printAmendment(r *app.AmendmentResult) {
	fmt.Println()
	printLineTable(r.Lines)
	fmt.Printf("  Grand total %s (rounded %s), %d edit(s) on the undo stack\n",
		r.Totals.GrandTotal.StringFixed(2), r.Totals.RoundedTotal.StringFixed(0), r.Depth)
}

func printCandidateList(r *app.MergeCandidatesResult) {
	fmt.Printf("Candidates for %s:\n", r.TargetID)
	for _, c := range r.Candidates {
		note := ""
		if c.Blocked {
			parts := make([]string, len(c.Conflicts))
			for i, conflict := range c.Conflicts {
				parts[i] = fmt.Sprintf("%s %s≠%s", conflict.ItemID, conflict.TargetRate.StringFixed(2), conflict.CandidateRate.StringFixed(2))
			}
			note = "  BLOCKED: " + strings.Join(parts, ", ")
		}
		fmt.Printf("  %-20s %d lines%s\n", c.PO.ID, len(c.PO.OrderList.Lines), note)
	}
}

func printPreview(p *app.MergePreviewResult) {
	printLineTable(p.Lines)
	fmt.Printf("  Preview grand total %s\n", p.Totals.GrandTotal.StringFixed(2))
}
