package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"procurement-engine/internal/adapters/web"
	"procurement-engine/internal/app"
	"procurement-engine/internal/core"

	"github.com/shopspring/decimal"
)

const usage = `Available: list, show, totals, candidates, preview, merge, unmerge, dispatch,
           revert, cancel, split, export, token`

// Options carries settings that some subcommands need beyond the service.
type Options struct {
	JWTSecret string
	Out       io.Writer
}

// Run executes a one-shot CLI command and exits.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, opts Options, args []string) {
	if err := Exec(ctx, svc, opts, args); err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

// Exec runs one subcommand and returns its error instead of exiting.
func Exec(ctx context.Context, svc app.ApplicationService, opts Options, args []string) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	if len(args) == 0 {
		return fmt.Errorf("no command given\n%s", usage)
	}
	need := func(n int, form string) error {
		if len(args) < n+1 {
			return fmt.Errorf("usage: poctl %s %s", args[0], form)
		}
		return nil
	}

	switch args[0] {
	case "list", "ls":
		req, err := parseFilters(args[1:])
		if err != nil {
			return err
		}
		result, err := svc.ListPurchaseOrders(ctx, req)
		if err != nil {
			return err
		}
		printPurchaseOrders(out, result.PurchaseOrders)

	case "show":
		if err := need(1, "<po-id>"); err != nil {
			return err
		}
		result, err := svc.GetPurchaseOrder(ctx, args[1])
		if err != nil {
			return err
		}
		printPurchaseOrder(out, result)

	case "totals":
		if err := need(1, "<po-id>"); err != nil {
			return err
		}
		result, err := svc.GetTotals(ctx, args[1])
		if err != nil {
			return err
		}
		printTotals(out, result)

	case "candidates":
		if err := need(1, "<target-id>"); err != nil {
			return err
		}
		result, err := svc.ListMergeCandidates(ctx, args[1])
		if err != nil {
			return err
		}
		printCandidates(out, result)

	case "preview":
		if err := need(2, "<target-id> <candidate-id>..."); err != nil {
			return err
		}
		result, err := svc.PreviewMerge(ctx, app.MergeRequest{TargetID: args[1], CandidateIDs: args[2:]})
		if err != nil {
			return err
		}
		printLines(out, result.Lines)
		printTotalsBlock(out, result.Totals)

	case "merge":
		if err := need(2, "<target-id> <candidate-id>..."); err != nil {
			return err
		}
		result, err := svc.MergePurchaseOrders(ctx, app.MergeRequest{TargetID: args[1], CandidateIDs: args[2:]})
		if result != nil {
			fmt.Fprintf(out, "Merged into %s (%d lines).\n", result.NewPO.ID, len(result.NewPO.OrderList.Lines))
		}
		if err != nil {
			printPending(out, err)
			return err
		}

	case "unmerge":
		if err := need(1, "<merged-po-id>"); err != nil {
			return err
		}
		result, err := svc.UnmergePurchaseOrder(ctx, args[1])
		if result != nil {
			fmt.Fprintf(out, "Restored: %s\n", strings.Join(result.Restored, ", "))
			if result.DeletedPO != "" {
				fmt.Fprintf(out, "Deleted %s.\n", result.DeletedPO)
			}
		}
		if err != nil {
			printPending(out, err)
			return err
		}

	case "retry":
		var req app.RetryStatusUpdatesRequest
		if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		if err := svc.RetryStatusUpdates(ctx, req); err != nil {
			return err
		}
		fmt.Fprintf(out, "Applied %d status updates.\n", len(req.Updates))

	case "dispatch":
		if err := need(1, "<po-id> [contact-name] [contact-phone]"); err != nil {
			return err
		}
		req := app.DispatchRequest{POID: args[1]}
		if len(args) > 2 {
			req.ContactName = args[2]
		}
		if len(args) > 3 {
			req.ContactPhone = args[3]
		}
		result, err := svc.DispatchPurchaseOrder(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s is now %s.\n", result.PurchaseOrder.ID, result.PurchaseOrder.Status)

	case "revert":
		if err := need(1, "<po-id>"); err != nil {
			return err
		}
		result, err := svc.RevertDispatch(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s is now %s.\n", result.PurchaseOrder.ID, result.PurchaseOrder.Status)

	case "cancel":
		if err := need(1, "<po-id>"); err != nil {
			return err
		}
		result, err := svc.CancelPurchaseOrder(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s cancelled. Sent back %d lines as %s.\n",
			result.PurchaseOrder.ID, len(result.SentBack.Items), result.SentBack.ID)

	case "split":
		if err := need(2, "<po-id> <pct>..."); err != nil {
			return err
		}
		req := app.PaymentSplitRequest{POID: args[1]}
		for _, raw := range args[2:] {
			pct, err := decimal.NewFromString(raw)
			if err != nil {
				return fmt.Errorf("invalid percentage %q", raw)
			}
			req.Percentages = append(req.Percentages, pct)
		}
		// Trailing milestones default to zero.
		for len(req.Percentages) < len(core.PaymentSplit{}) {
			req.Percentages = append(req.Percentages, decimal.Zero)
		}
		result, err := svc.SetPaymentSplit(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Payment split of %s set to %s.\n", result.PurchaseOrder.ID, formatSplit(result.PurchaseOrder.PaymentSplit))

	case "export":
		if err := need(1, "<po-id> [file]"); err != nil {
			return err
		}
		result, err := svc.ExportPurchaseOrder(ctx, args[1])
		if err != nil {
			return err
		}
		path := result.Filename
		if len(args) > 2 {
			path = args[2]
		}
		if err := os.WriteFile(path, result.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Fprintf(out, "Wrote %s (%d bytes).\n", path, len(result.Data))

	case "token":
		if err := need(1, "<subject> [role] [ttl]"); err != nil {
			return err
		}
		role, ttl := "buyer", 24*time.Hour
		if len(args) > 2 {
			role = args[2]
		}
		if len(args) > 3 {
			d, err := time.ParseDuration(args[3])
			if err != nil {
				return fmt.Errorf("invalid ttl %q: %w", args[3], err)
			}
			ttl = d
		}
		token, err := web.IssueToken(opts.JWTSecret, args[1], role, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, token)

	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], usage)
	}
	return nil
}

// parseFilters reads key=value pairs (project, vendor, status).
func parseFilters(args []string) (app.ListPurchaseOrdersRequest, error) {
	var req app.ListPurchaseOrdersRequest
	for _, a := range args {
		key, value, ok := strings.Cut(a, "=")
		if !ok {
			return req, fmt.Errorf("filter %q must be key=value", a)
		}
		switch key {
		case "project":
			req.ProjectID = value
		case "vendor":
			req.VendorID = value
		case "status":
			req.Status = value
		default:
			return req, fmt.Errorf("unknown filter %q (expected project, vendor or status)", key)
		}
	}
	return req, nil
}

func printPending(out io.Writer, err error) {
	var pf *core.PartialFailure
	if !errors.As(err, &pf) {
		return
	}
	fmt.Fprintln(out, "Some status writes failed. Retry with: poctl retry < pending.json")
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(app.RetryStatusUpdatesRequest{Operation: pf.Operation, Updates: pf.Pending})
}
