package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPONotFound is wrapped by stores when a purchase order does not exist.
var ErrPONotFound = errors.New("purchase order not found")

// Reason codes carried by ValidationError and PreconditionViolation.
const (
	CodeLastLine           = "LAST_LINE"
	CodeEmptyUndoStack     = "EMPTY_UNDO_STACK"
	CodeRateConflict       = "RATE_CONFLICT"
	CodeLineNotFound       = "LINE_NOT_FOUND"
	CodeAmbiguousLine      = "AMBIGUOUS_LINE"
	CodeNegativeQuantity   = "NEGATIVE_QUANTITY"
	CodeUnknownMake        = "UNKNOWN_MAKE"
	CodeMultipleMakes      = "MULTIPLE_ENABLED_MAKES"
	CodePaymentSplit       = "INVALID_PAYMENT_SPLIT"
	CodeMergedIntoMismatch = "MERGED_INTO_MISMATCH"
	CodeNotCandidate       = "NOT_A_MERGE_CANDIDATE"
	CodeAlreadySelected    = "ALREADY_SELECTED"
	CodeNoCandidates       = "NO_CANDIDATES"
	CodeSessionMismatch    = "SESSION_MISMATCH"
	CodeInvalidUpdate      = "INVALID_STATUS_UPDATE"

	CodeHasPayments     = "HAS_PAYMENTS"
	CodeMergedPO        = "PO_MERGED"
	CodeNotConsolidated = "NOT_CONSOLIDATED"
	CodeInvalidStatus   = "INVALID_STATUS"
	CodeStaleStatus     = "STALE_STATUS"
)

// ValidationError is a locally rejected operation. No state has changed.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(code, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// PreconditionViolation is returned when an action is not legal for the PO's
// current status or payment history.
type PreconditionViolation struct {
	Code    string
	POID    string
	Status  POStatus
	Action  Action
	Message string
}

func (e *PreconditionViolation) Error() string {
	return e.Message
}

// WriteFailure records one failed remote write of a multi-document operation.
type WriteFailure struct {
	POID string
	Err  error
}

// PartialFailure reports the writes of a merge or unmerge that did not complete.
// Writes that did complete are left in their new state.
type PartialFailure struct {
	Operation string
	Failures  []WriteFailure
	// Pending holds the status updates that can be re-driven with ApplyStatusUpdates.
	Pending []StatusUpdate
}

func (e *PartialFailure) Error() string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = fmt.Sprintf("%s (%v)", f.POID, f.Err)
	}
	return fmt.Sprintf("%s partially failed for %d purchase order(s): %s", e.Operation, len(e.Failures), strings.Join(ids, "; "))
}

// Unwrap exposes the individual write errors to errors.Is / errors.As.
func (e *PartialFailure) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// ErrorCode returns the reason code of a ValidationError or PreconditionViolation,
// or "" for any other error.
func ErrorCode(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	var pv *PreconditionViolation
	if errors.As(err, &pv) {
		return pv.Code
	}
	return ""
}
