package mobile

import (
	"fmt"

	"github.com/tos-network/kangaroo/dlp"
)

// Stable error codes reported to host applications.
const (
	CodeNotInitialized           = 1
	CodeAlreadyInitialized       = 2
	CodeInitializationInProgress = 3
	CodeInvalidTableDescriptor   = 4
	CodeInvalidTarget            = 5
	CodeInvalidBudget            = 6
	CodeNoSolutionFound          = 7
	CodeEngine                   = 8
	CodeCanceled                 = 9
	CodeUnknown                  = 99
)

// Error is the only error type returned across the binding.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("kangaroo error %d: %s", e.Code, e.Message)
}

// GetCode returns the stable error code.
func (e *Error) GetCode() int { return e.Code }

// GetMessage returns the human readable description.
func (e *Error) GetMessage() string { return e.Message }

func codeOf(kind dlp.Kind) int {
	switch kind {
	case dlp.KindNotInitialized:
		return CodeNotInitialized
	case dlp.KindAlreadyInitialized:
		return CodeAlreadyInitialized
	case dlp.KindInitializationInProgress:
		return CodeInitializationInProgress
	case dlp.KindInvalidTableDescriptor:
		return CodeInvalidTableDescriptor
	case dlp.KindInvalidTarget:
		return CodeInvalidTarget
	case dlp.KindInvalidBudget:
		return CodeInvalidBudget
	case dlp.KindNoSolutionFound:
		return CodeNoSolutionFound
	case dlp.KindEngine:
		return CodeEngine
	case dlp.KindCanceled:
		return CodeCanceled
	}
	return CodeUnknown
}

// wrapError converts a dispatcher error into an *Error.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: codeOf(dlp.KindOf(err)), Message: err.Error()}
}

func newError(code int, format string, args ...interface{}) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}
