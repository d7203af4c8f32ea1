package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// Stable reason codes surfaced to the calling layer. The client renders
// affordances off these codes, never off free-text messages.
type ConflictReason string

const (
	ConflictReasonActiveByOther ConflictReason = "active_by_other"
	ConflictReasonOwnSubmitted  ConflictReason = "own_submitted"
)

// ConflictError is returned when a submission loses the exclusivity claim:
// the pet already has a live application.
type ConflictError struct {
	Reason ConflictReason
}

func (e *ConflictError) Error() string {
	return "application conflict: " + string(e.Reason)
}

func NewConflictError(reason ConflictReason) *ConflictError {
	return &ConflictError{Reason: reason}
}

func AsConflictError(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// ValidationError covers malformed or missing applicationData fields and
// agreedToTerms=false. It never mutates state; the caller must resubmit.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Message
}

func NewValidationError(message string, fields map[string]string) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// InvalidTransitionError is returned for an illegal status transition or an
// actor lacking the required role. Terminal for the request, no retry.
type InvalidTransitionError struct {
	From    string
	To      string
	Message string
}

func (e *InvalidTransitionError) Error() string {
	if e.Message != "" {
		return "invalid transition: " + e.Message
	}
	return "invalid transition: " + e.From + " -> " + e.To
}

func AsInvalidTransitionError(err error) (*InvalidTransitionError, bool) {
	var te *InvalidTransitionError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// ArchivalConsistencyError signals a partial archival move. The operation is
// idempotent: re-invoking it converges to the same end state, so callers and
// the reconciler retry it rather than ignore it.
type ArchivalConsistencyError struct {
	ApplicationId int
	Message       string
}

func (e *ArchivalConsistencyError) Error() string {
	return "archival inconsistency: " + e.Message
}

func AsArchivalConsistencyError(err error) (*ArchivalConsistencyError, bool) {
	var ae *ArchivalConsistencyError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
