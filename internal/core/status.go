package core

import (
	"fmt"
	"time"
)

// Action is an operation that moves a purchase order between statuses.
type Action string

const (
	ActionMerge    Action = "merge"
	ActionUnmerge  Action = "unmerge"
	ActionDispatch Action = "dispatch"
	ActionRevert   Action = "revert"
	ActionAmend    Action = "amend"
	ActionCancel   Action = "cancel"
)

// transitions lists, per action, the status it is legal from and the status it leads to.
//
//	PO Approved --merge-->    Merged
//	Merged      --unmerge-->  PO Approved  (constituents; the consolidated PO is deleted)
//	PO Approved --dispatch--> Dispatched
//	Dispatched  --revert-->   PO Approved
//	PO Approved --amend-->    PO Amendment
//	PO Approved --cancel-->   Cancelled
var transitions = map[Action]struct{ from, to POStatus }{
	ActionMerge:    {StatusApproved, StatusMerged},
	ActionUnmerge:  {StatusMerged, StatusApproved},
	ActionDispatch: {StatusApproved, StatusDispatched},
	ActionRevert:   {StatusDispatched, StatusApproved},
	ActionAmend:    {StatusApproved, StatusAmendment},
	ActionCancel:   {StatusApproved, StatusCancelled},
}

// Transition returns the status reached by applying action from status.
func Transition(status POStatus, action Action) (POStatus, error) {
	t, ok := transitions[action]
	if !ok {
		return "", fmt.Errorf("unknown action %q", action)
	}
	if status != t.from {
		return "", &PreconditionViolation{
			Code:    CodeInvalidStatus,
			Status:  status,
			Action:  action,
			Message: fmt.Sprintf("cannot %s: status is %s (must be %s)", action, status, t.from),
		}
	}
	return t.to, nil
}

// CheckAction reports whether action is legal for po given its status and payment
// history. Unmerge is checked against the consolidated PO, so its status guard is
// PO Approved rather than Merged.
func CheckAction(po PurchaseOrder, action Action) error {
	violation := func(code, format string, args ...any) error {
		return &PreconditionViolation{
			Code:    code,
			POID:    po.ID,
			Status:  po.Status,
			Action:  action,
			Message: fmt.Sprintf("purchase order %s cannot %s: ", po.ID, action) + fmt.Sprintf(format, args...),
		}
	}

	switch action {
	case ActionAmend, ActionCancel:
		if po.Status == StatusMerged {
			return violation(CodeMergedPO, "it has been merged into %s; unmerge first", derefOr(po.MergedInto, "another PO"))
		}
		if po.HasPayments() {
			return violation(CodeHasPayments, "payments of %s are recorded", po.PaymentsTotal.StringFixed(2))
		}
	case ActionMerge:
		if po.HasPayments() {
			return violation(CodeHasPayments, "payments of %s are recorded", po.PaymentsTotal.StringFixed(2))
		}
	case ActionUnmerge:
		if !po.Merged {
			return violation(CodeNotConsolidated, "it is not a consolidated purchase order")
		}
		if po.HasPayments() {
			return violation(CodeHasPayments, "payments of %s are recorded", po.PaymentsTotal.StringFixed(2))
		}
		if po.Status != StatusApproved {
			return violation(CodeInvalidStatus, "status is %s (must be %s)", po.Status, StatusApproved)
		}
		return nil
	case ActionDispatch, ActionRevert:
	default:
		return fmt.Errorf("unknown action %q", action)
	}

	if _, err := Transition(po.Status, action); err != nil {
		return violation(CodeInvalidStatus, "status is %s (must be %s)", po.Status, transitions[action].from)
	}
	return nil
}

// AllowedActions returns the actions CheckAction accepts for po, in a stable order.
func AllowedActions(po PurchaseOrder) []Action {
	var out []Action
	for _, a := range []Action{ActionMerge, ActionUnmerge, ActionDispatch, ActionRevert, ActionAmend, ActionCancel} {
		if CheckAction(po, a) == nil {
			out = append(out, a)
		}
	}
	return out
}

// Dispatch moves an approved PO to Dispatched, recording the optional delivery contact.
// The order list is untouched.
func Dispatch(po PurchaseOrder, contact *DeliveryContact, now time.Time) (PurchaseOrder, error) {
	if err := CheckAction(po, ActionDispatch); err != nil {
		return PurchaseOrder{}, err
	}
	out := po.Clone()
	out.Status = StatusDispatched
	if contact != nil {
		c := *contact
		out.DeliveryContact = &c
	}
	out.UpdatedAt = now
	return out, nil
}

// RevertDispatch returns a dispatched PO to PO Approved and clears the delivery contact.
func RevertDispatch(po PurchaseOrder, now time.Time) (PurchaseOrder, error) {
	if err := CheckAction(po, ActionRevert); err != nil {
		return PurchaseOrder{}, err
	}
	out := po.Clone()
	out.Status = StatusApproved
	out.DeliveryContact = nil
	out.UpdatedAt = now
	return out, nil
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
