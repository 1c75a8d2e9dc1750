// Package errcode carries the stable error codes the control API maps to
// HTTP statuses.
package errcode

import (
	"errors"
	"fmt"
)

const (
	Validation      = "VALIDATION"
	SurfaceNotFound = "SURFACE_NOT_FOUND"
	NotFound        = "NOT_FOUND"
	Unsupported     = "UNSUPPORTED"
	SessionClosed   = "SESSION_CLOSED"
	APIUnavailable  = "API_UNAVAILABLE"
	EvalFailure     = "EVAL_FAILURE"
	EvalTimeout     = "EVAL_TIMEOUT"
	CDPUnavailable  = "CDP_UNAVAILABLE"
)

// CodedError is a typed error used for stable API mapping.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *CodedError) Unwrap() error { return e.Cause }

// New returns a *CodedError.
func New(code, msg string, cause error) error {
	return &CodedError{Code: code, Message: msg, Cause: cause}
}

// Code returns the code of the first CodedError in err's chain, or "".
func Code(err error) string {
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
