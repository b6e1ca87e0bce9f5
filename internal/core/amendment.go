package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AmendmentOp is one reversible edit on an amendment working copy. The set of
// implementations is closed: DeleteOp, QuantityChangeOp and MakeChangeOp.
type AmendmentOp interface {
	Kind() string
	// invert applies the inverse of the edit to lines.
	invert(lines []OrderLine) ([]OrderLine, error)
}

// DeleteOp records a removed line.
type DeleteOp struct {
	RemovedLine OrderLine `json:"removed_line"`
}

// QuantityChangeOp records the quantity a line had before an edit.
type QuantityChangeOp struct {
	Ref              LineRef         `json:"ref"`
	PreviousQuantity decimal.Decimal `json:"previous_quantity"`
}

// MakeChangeOp records the make list a line had before an edit.
type MakeChangeOp struct {
	Ref           LineRef     `json:"ref"`
	PreviousMakes []MakeEntry `json:"previous_makes"`
}

const (
	opDelete   = "delete"
	opQuantity = "quantity_change"
	opMake     = "make_change"
)

func (DeleteOp) Kind() string         { return opDelete }
func (QuantityChangeOp) Kind() string { return opQuantity }
func (MakeChangeOp) Kind() string     { return opMake }

// A restored line goes to the end of the list; its original position is not kept.
func (op DeleteOp) invert(lines []OrderLine) ([]OrderLine, error) {
	return append(lines, op.RemovedLine.Clone()), nil
}

func (op QuantityChangeOp) invert(lines []OrderLine) ([]OrderLine, error) {
	i, err := findLine(lines, op.Ref)
	if err != nil {
		return nil, err
	}
	lines[i].Quantity = op.PreviousQuantity
	return lines, nil
}

func (op MakeChangeOp) invert(lines []OrderLine) ([]OrderLine, error) {
	i, err := findLine(lines, op.Ref)
	if err != nil {
		return nil, err
	}
	lines[i].Makes = cloneMakes(op.PreviousMakes)
	return lines, nil
}

func cloneMakes(m []MakeEntry) []MakeEntry {
	if m == nil {
		return nil
	}
	out := make([]MakeEntry, len(m))
	copy(out, m)
	return out
}

// findLine resolves ref to an index. A ref without SourcePoID must match exactly one line.
func findLine(lines []OrderLine, ref LineRef) (int, error) {
	idx := -1
	matches := 0
	for i, l := range lines {
		if l.ItemID != ref.ItemID {
			continue
		}
		if ref.SourcePoID != "" && l.SourcePoID != ref.SourcePoID {
			continue
		}
		if idx < 0 {
			idx = i
		}
		matches++
	}
	switch {
	case matches == 0:
		return -1, validationErrorf(CodeLineNotFound, "item %s is not on the order list", ref)
	case matches > 1:
		return -1, validationErrorf(CodeAmbiguousLine, "item %s appears %d times; qualify it with its source purchase order", ref, matches)
	}
	return idx, nil
}

// ApplyQuantityChange sets the quantity of the referenced line. An op is pushed only
// when the quantity actually changes.
func ApplyQuantityChange(lines []OrderLine, stack []AmendmentOp, ref LineRef, newQty decimal.Decimal) ([]OrderLine, []AmendmentOp, error) {
	if newQty.IsNegative() {
		return lines, stack, validationErrorf(CodeNegativeQuantity, "quantity for %s cannot be negative", ref)
	}
	i, err := findLine(lines, ref)
	if err != nil {
		return lines, stack, err
	}
	prev := lines[i].Quantity
	if prev.Equal(newQty) {
		return lines, stack, nil
	}
	out := cloneLines(lines)
	out[i].Quantity = newQty
	return out, pushOp(stack, QuantityChangeOp{Ref: out[i].Ref(), PreviousQuantity: prev}), nil
}

// ApplyMakeChange enables newMake on the referenced line and disables every other
// make. An empty newMake clears the selection. An op is pushed only when the make list
// changes, so selecting the enabled make of a line with several enabled still records one.
func ApplyMakeChange(lines []OrderLine, stack []AmendmentOp, ref LineRef, newMake string) ([]OrderLine, []AmendmentOp, error) {
	i, err := findLine(lines, ref)
	if err != nil {
		return lines, stack, err
	}
	line := lines[i]
	if newMake != "" {
		known := false
		for _, m := range line.Makes {
			if m.Make == newMake {
				known = true
				break
			}
		}
		if !known {
			return lines, stack, validationErrorf(CodeUnknownMake, "make %q is not offered for item %s", newMake, ref)
		}
	}

	out := cloneLines(lines)
	selected := false
	changed := false
	for j := range out[i].Makes {
		enable := !selected && newMake != "" && out[i].Makes[j].Make == newMake
		if out[i].Makes[j].Enabled != enable {
			changed = true
		}
		out[i].Makes[j].Enabled = enable
		if enable {
			selected = true
		}
	}
	if !changed {
		return lines, stack, nil
	}
	return out, pushOp(stack, MakeChangeOp{Ref: line.Ref(), PreviousMakes: cloneMakes(line.Makes)}), nil
}

// ApplyDelete removes the referenced line. The last remaining line cannot be deleted.
func ApplyDelete(lines []OrderLine, stack []AmendmentOp, ref LineRef) ([]OrderLine, []AmendmentOp, error) {
	if len(lines) <= 1 {
		return lines, stack, validationErrorf(CodeLastLine, "a purchase order must keep at least one line")
	}
	i, err := findLine(lines, ref)
	if err != nil {
		return lines, stack, err
	}
	removed := lines[i].Clone()
	out := make([]OrderLine, 0, len(lines)-1)
	for j, l := range lines {
		if j != i {
			out = append(out, l.Clone())
		}
	}
	return out, pushOp(stack, DeleteOp{RemovedLine: removed}), nil
}

// Undo pops the most recent op and applies its inverse. An empty stack is a no-op.
func Undo(lines []OrderLine, stack []AmendmentOp) ([]OrderLine, []AmendmentOp, error) {
	if len(stack) == 0 {
		return lines, stack, nil
	}
	top := stack[len(stack)-1]
	out, err := top.invert(cloneLines(lines))
	if err != nil {
		return lines, stack, fmt.Errorf("undo %s: %w", top.Kind(), err)
	}
	rest := make([]AmendmentOp, len(stack)-1)
	copy(rest, stack[:len(stack)-1])
	return out, rest, nil
}

func pushOp(stack []AmendmentOp, op AmendmentOp) []AmendmentOp {
	out := make([]AmendmentOp, len(stack), len(stack)+1)
	copy(out, stack)
	return append(out, op)
}

// AmendmentSession is the working copy of a PO's lines plus its undo stack. It is a
// value: every edit returns a new session and leaves the receiver unchanged.
type AmendmentSession struct {
	POID      string
	Lines     []OrderLine
	Stack     []AmendmentOp
	StartedAt time.Time
}

// NewAmendmentSession opens a working copy of po's order list.
func NewAmendmentSession(po PurchaseOrder, now time.Time) (AmendmentSession, error) {
	if err := CheckAction(po, ActionAmend); err != nil {
		return AmendmentSession{}, err
	}
	return AmendmentSession{
		POID:      po.ID,
		Lines:     cloneLines(po.OrderList.Lines),
		StartedAt: now,
	}, nil
}

func (s AmendmentSession) ApplyQuantityChange(ref LineRef, qty decimal.Decimal) (AmendmentSession, error) {
	lines, stack, err := ApplyQuantityChange(s.Lines, s.Stack, ref, qty)
	return s.with(lines, stack), err
}

func (s AmendmentSession) ApplyMakeChange(ref LineRef, makeName string) (AmendmentSession, error) {
	lines, stack, err := ApplyMakeChange(s.Lines, s.Stack, ref, makeName)
	return s.with(lines, stack), err
}

func (s AmendmentSession) ApplyDelete(ref LineRef) (AmendmentSession, error) {
	lines, stack, err := ApplyDelete(s.Lines, s.Stack, ref)
	return s.with(lines, stack), err
}

func (s AmendmentSession) Undo() (AmendmentSession, error) {
	lines, stack, err := Undo(s.Lines, s.Stack)
	return s.with(lines, stack), err
}

// Depth is the number of undoable edits.
func (s AmendmentSession) Depth() int {
	return len(s.Stack)
}

// CanCommit reports whether at least one edit has been made.
func (s AmendmentSession) CanCommit() bool {
	return len(s.Stack) > 0
}

func (s AmendmentSession) with(lines []OrderLine, stack []AmendmentOp) AmendmentSession {
	s.Lines = lines
	s.Stack = stack
	return s
}

// CommitAmendment writes the session's lines into po and moves it to PO Amendment.
func CommitAmendment(po PurchaseOrder, s AmendmentSession, now time.Time) (PurchaseOrder, error) {
	if s.POID != po.ID {
		return PurchaseOrder{}, validationErrorf(CodeSessionMismatch, "amendment session belongs to %s, not %s", s.POID, po.ID)
	}
	if err := CheckAction(po, ActionAmend); err != nil {
		return PurchaseOrder{}, err
	}
	if !s.CanCommit() {
		return PurchaseOrder{}, validationErrorf(CodeEmptyUndoStack, "no changes to amend on purchase order %s", po.ID)
	}
	out := po.Clone()
	out.OrderList = OrderList{Lines: cloneLines(s.Lines)}
	out.Status = StatusAmendment
	out.UpdatedAt = now
	if err := out.Validate(); err != nil {
		return PurchaseOrder{}, err
	}
	return out, nil
}

type opEnvelope struct {
	Kind string          `json:"kind"`
	Op   json.RawMessage `json:"op"`
}

type sessionJSON struct {
	POID      string       `json:"po_id"`
	Lines     []OrderLine  `json:"lines"`
	Stack     []opEnvelope `json:"stack"`
	StartedAt time.Time    `json:"started_at"`
}

// MarshalJSON encodes the undo stack as tagged entries.
func (s AmendmentSession) MarshalJSON() ([]byte, error) {
	out := sessionJSON{POID: s.POID, Lines: s.Lines, StartedAt: s.StartedAt, Stack: make([]opEnvelope, len(s.Stack))}
	for i, op := range s.Stack {
		raw, err := json.Marshal(op)
		if err != nil {
			return nil, fmt.Errorf("encode %s op: %w", op.Kind(), err)
		}
		out.Stack[i] = opEnvelope{Kind: op.Kind(), Op: raw}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a session written by MarshalJSON.
func (s *AmendmentSession) UnmarshalJSON(data []byte) error {
	var in sessionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	stack := make([]AmendmentOp, 0, len(in.Stack))
	for _, env := range in.Stack {
		var (
			op  AmendmentOp
			err error
		)
		switch env.Kind {
		case opDelete:
			var d DeleteOp
			err = json.Unmarshal(env.Op, &d)
			op = d
		case opQuantity:
			var q QuantityChangeOp
			err = json.Unmarshal(env.Op, &q)
			op = q
		case opMake:
			var m MakeChangeOp
			err = json.Unmarshal(env.Op, &m)
			op = m
		default:
			return fmt.Errorf("unknown amendment op %q", env.Kind)
		}
		if err != nil {
			return fmt.Errorf("decode %s op: %w", env.Kind, err)
		}
		stack = append(stack, op)
	}
	*s = AmendmentSession{POID: in.POID, Lines: in.Lines, Stack: stack, StartedAt: in.StartedAt}
	return nil
}
