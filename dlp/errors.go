package dlp

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by Solve before a successful Initialize.
	ErrNotInitialized = errors.New("dlp: not initialized")

	// ErrAlreadyInitialized is returned by Initialize once the dispatcher is ready.
	ErrAlreadyInitialized = errors.New("dlp: already initialized")

	// ErrInitializationInProgress is returned while another Initialize call is
	// building the tables.
	ErrInitializationInProgress = errors.New("dlp: initialization in progress")

	// ErrInvalidTableDescriptor indicates a malformed table descriptor or payload.
	ErrInvalidTableDescriptor = errors.New("dlp: invalid table descriptor")

	// ErrInvalidTarget indicates a target that is not a well-formed point.
	ErrInvalidTarget = errors.New("dlp: invalid target")

	// ErrInvalidBudget indicates a negative time budget.
	ErrInvalidBudget = errors.New("dlp: invalid time budget")

	// ErrBudgetMismatch indicates a budget list whose length differs from the
	// number of tables.
	ErrBudgetMismatch = fmt.Errorf("%w: budget count does not match table count", ErrInvalidBudget)

	// ErrNoSolutionFound indicates that every table missed. The target lies
	// outside all covered ranges; nothing is broken.
	ErrNoSolutionFound = errors.New("dlp: no solution found")

	// ErrEngine is matched by every *EngineError.
	ErrEngine = errors.New("dlp: engine failure")
)

// EngineError is an opaque failure reported by the solver of one table.
type EngineError struct {
	Index int   // position of the table in the escalation order
	Bits  uint8 // bit width of the table
	Err   error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("dlp: engine failure on table %d (%d bits): %v", e.Index, e.Bits, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

func (e *EngineError) Is(target error) bool { return target == ErrEngine }

// Kind classifies dispatcher errors for callers that cannot use errors.Is,
// such as foreign-language bindings.
type Kind int

const (
	KindNone Kind = iota
	KindNotInitialized
	KindAlreadyInitialized
	KindInitializationInProgress
	KindInvalidTableDescriptor
	KindInvalidTarget
	KindInvalidBudget
	KindNoSolutionFound
	KindEngine
	KindCanceled
	KindUnknown
)

var kindNames = [...]string{
	KindNone:                     "none",
	KindNotInitialized:           "not_initialized",
	KindAlreadyInitialized:       "already_initialized",
	KindInitializationInProgress: "initialization_in_progress",
	KindInvalidTableDescriptor:   "invalid_table_descriptor",
	KindInvalidTarget:            "invalid_target",
	KindInvalidBudget:            "invalid_budget",
	KindNoSolutionFound:          "no_solution_found",
	KindEngine:                   "engine_error",
	KindCanceled:                 "canceled",
	KindUnknown:                  "unknown",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// KindOf returns the kind of err.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrEngine):
		// The cause of an engine failure may wrap any sentinel.
		return KindEngine
	case errors.Is(err, ErrNotInitialized):
		return KindNotInitialized
	case errors.Is(err, ErrAlreadyInitialized):
		return KindAlreadyInitialized
	case errors.Is(err, ErrInitializationInProgress):
		return KindInitializationInProgress
	case errors.Is(err, ErrInvalidTableDescriptor):
		return KindInvalidTableDescriptor
	case errors.Is(err, ErrInvalidTarget):
		return KindInvalidTarget
	case errors.Is(err, ErrInvalidBudget):
		return KindInvalidBudget
	case errors.Is(err, ErrNoSolutionFound):
		return KindNoSolutionFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindUnknown
	}
}
