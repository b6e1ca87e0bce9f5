package repl

import (
	"bufio"
	"context"
	"fmt"
	"slices"
	"strings"

	"procurement-engine/internal/app"

	"github.com/shopspring/decimal"
)

func prompt(reader *bufio.Reader, label string) (string, bool) {
	fmt.Print(label)
	raw, err := reader.ReadString('\n')
	raw = strings.TrimSpace(raw)
	if err != nil && raw == "" {
		return "", false
	}
	return raw, true
}

// parseRef splits "ITEM" or "ITEM@SOURCE-PO".
func parseRef(s string) (itemID, sourcePoID string) {
	itemID, sourcePoID, _ = strings.Cut(s, "@")
	return itemID, sourcePoID
}

// handleAmend runs an interactive amendment session on one purchase order.
func handleAmend(ctx context.Context, reader *bufio.Reader, svc app.ApplicationService, poID string) error {
	state, err := svc.BeginAmendment(ctx, poID)
	if err != nil {
		return err
	}
	fmt.Printf("Amending %s. Commands:\n", poID)
	fmt.Println("  qty <item>[@source] <quantity>   make <item>[@source] <make>   del <item>[@source]")
	fmt.Println("  undo   show   commit   discard")
	printAmendment(state)

	for {
		raw, ok := prompt(reader, fmt.Sprintf("  amend %s> ", poID))
		if !ok {
			return svc.DiscardAmendment(ctx, state.Token)
		}
		parts := strings.Fields(raw)
		if len(parts) == 0 {
			continue
		}

		req := app.AmendmentEditRequest{Token: state.Token}
		var next *app.AmendmentResult
		switch strings.ToLower(parts[0]) {
		case "qty":
			if len(parts) != 3 {
				fmt.Println("  Usage: qty <item>[@source] <quantity>")
				continue
			}
			qty, perr := decimal.NewFromString(parts[2])
			if perr != nil {
				fmt.Println("  Invalid quantity.")
				continue
			}
			req.Op, req.Quantity = app.EditQuantity, &qty
			req.ItemID, req.SourcePoID = parseRef(parts[1])
			next, err = svc.EditAmendment(ctx, req)
		case "make":
			if len(parts) < 3 {
				fmt.Println("  Usage: make <item>[@source] <make>")
				continue
			}
			req.Op, req.Make = app.EditMake, strings.Join(parts[2:], " ")
			req.ItemID, req.SourcePoID = parseRef(parts[1])
			next, err = svc.EditAmendment(ctx, req)
		case "del", "delete":
			if len(parts) != 2 {
				fmt.Println("  Usage: del <item>[@source]")
				continue
			}
			req.Op = app.EditDelete
			req.ItemID, req.SourcePoID = parseRef(parts[1])
			next, err = svc.EditAmendment(ctx, req)
		case "undo":
			next, err = svc.UndoAmendment(ctx, state.Token)
		case "show":
			printAmendment(state)
			continue
		case "commit":
			result, cerr := svc.CommitAmendment(ctx, state.Token)
			if cerr != nil {
				fmt.Printf("  Commit FAILED: %v\n", cerr)
				continue
			}
			fmt.Printf("Amendment committed. %s is now %s.\n", result.PurchaseOrder.ID, result.PurchaseOrder.Status)
			return nil
		case "discard", "cancel":
			fmt.Println("Amendment discarded.")
			return svc.DiscardAmendment(ctx, state.Token)
		default:
			fmt.Printf("  Unknown command: %s\n", parts[0])
			continue
		}

		if err != nil {
			fmt.Printf("  Rejected: %v\n", err)
			continue
		}
		state = next
		printAmendment(state)
	}
}

// handleMerge builds a merge selection one candidate at a time, previewing after each change.
func handleMerge(ctx context.Context, reader *bufio.Reader, svc app.ApplicationService, targetID string) error {
	candidates, err := svc.ListMergeCandidates(ctx, targetID)
	if err != nil {
		return err
	}
	if len(candidates.Candidates) == 0 {
		fmt.Printf("No merge candidates for %s.\n", targetID)
		return nil
	}
	printCandidateList(candidates)
	fmt.Println("Commands: add <id>   remove <id>   done   cancel")

	var selected []string
	for {
		raw, ok := prompt(reader, fmt.Sprintf("  merge %s [%s]> ", targetID, strings.Join(selected, ",")))
		if !ok {
			return nil
		}
		parts := strings.Fields(raw)
		if len(parts) == 0 {
			continue
		}

		switch strings.ToLower(parts[0]) {
		case "add":
			if len(parts) != 2 {
				fmt.Println("  Usage: add <id>")
				continue
			}
			attempt := append(slices.Clone(selected), parts[1])
			preview, perr := svc.PreviewMerge(ctx, app.MergeRequest{TargetID: targetID, CandidateIDs: attempt})
			if perr != nil {
				fmt.Printf("  Rejected: %v\n", perr)
				continue
			}
			selected = attempt
			printPreview(preview)
		case "remove", "rm":
			if len(parts) != 2 {
				fmt.Println("  Usage: remove <id>")
				continue
			}
			i := slices.Index(selected, parts[1])
			if i < 0 {
				fmt.Printf("  %s is not selected.\n", parts[1])
				continue
			}
			selected = slices.Delete(selected, i, i+1)
			if len(selected) > 0 {
				preview, perr := svc.PreviewMerge(ctx, app.MergeRequest{TargetID: targetID, CandidateIDs: selected})
				if perr != nil {
					return perr
				}
				printPreview(preview)
			}
		case "done":
			if len(selected) == 0 {
				fmt.Println("  Select at least one candidate.")
				continue
			}
			choice, _ := prompt(reader, fmt.Sprintf("Merge %s with %s? (y/n): ", targetID, strings.Join(selected, ", ")))
			if c := strings.ToLower(choice); c != "y" && c != "yes" {
				fmt.Println("Merge cancelled.")
				return nil
			}
			result, merr := svc.MergePurchaseOrders(ctx, app.MergeRequest{TargetID: targetID, CandidateIDs: selected})
			if result != nil {
				fmt.Printf("Created %s.\n", result.NewPO.ID)
			}
			return merr
		case "cancel":
			fmt.Println("Merge cancelled.")
			return nil
		default:
			fmt.Printf("  Unknown command: %s\n", parts[0])
		}
	}
}
