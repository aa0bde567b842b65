package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the closed set of failures the orchestration core reports.
type ErrorKind string

const (
	KindInvalidContext      ErrorKind = "invalid_context"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindUpstreamTimeout     ErrorKind = "upstream_timeout"
	KindMalformedOutput     ErrorKind = "malformed_model_output"
)

// Reasons attached to upstream failures.
const (
	ReasonNetwork      = "network"
	ReasonTimeout      = "timeout"
	ReasonRateLimited  = "rate_limited"
	ReasonServerError  = "server_error"
	ReasonUnauthorized = "unauthorized"
	ReasonRejected     = "rejected"
	ReasonCanceled     = "canceled"
	ReasonCircuitOpen  = "circuit_open"
)

var (
	// ErrInvalidContext indicates the caller supplied an unusable prompt context.
	ErrInvalidContext = errors.New("invalid context")
	// ErrUpstreamUnavailable indicates the model provider could not serve the request.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamTimeout indicates the final attempt exceeded its deadline.
	ErrUpstreamTimeout = errors.New("upstream timeout")
	// ErrMalformedModelOutput indicates the model reply violated the expected shape.
	ErrMalformedModelOutput = errors.New("malformed model output")
	// ErrMissingAPIKey indicates the model client was configured without credentials.
	ErrMissingAPIKey = errors.New("ai api key is required")
)

// Error is the typed failure returned by every stage of the pipeline.
type Error struct {
	Kind      ErrorKind
	Operation Operation
	Reason    string
	Attempts  int
	// Raw holds the offending model output for MalformedModelOutput failures.
	Raw string
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Operation != "" {
		fmt.Fprintf(&b, " (%s)", e.Operation)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	if e.Attempts > 0 {
		fmt.Fprintf(&b, " after %d attempt(s)", e.Attempts)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidContext:
		return e.Kind == KindInvalidContext
	case ErrUpstreamUnavailable:
		return e.Kind == KindUpstreamUnavailable
	case ErrUpstreamTimeout:
		return e.Kind == KindUpstreamTimeout
	case ErrMalformedModelOutput:
		return e.Kind == KindMalformedOutput
	}
	return false
}

// AsError extracts the typed pipeline error from err.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf reports the failure kind of err, or an empty kind for foreign errors.
func KindOf(err error) ErrorKind {
	if target, ok := AsError(err); ok {
		return target.Kind
	}
	return ""
}

func invalidContext(op Operation, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidContext, Operation: op, Reason: fmt.Sprintf(format, args...)}
}

func malformed(op Operation, raw string, format string, args ...interface{}) *Error {
	return &Error{Kind: KindMalformedOutput, Operation: op, Raw: raw, Reason: fmt.Sprintf(format, args...)}
}

// interrupted reports a pipeline stopped by its context before or between model attempts.
func interrupted(op Operation, attempts int, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindUpstreamTimeout, Operation: op, Reason: ReasonTimeout, Attempts: attempts, Err: err}
	}
	return &Error{Kind: KindUpstreamUnavailable, Operation: op, Reason: ReasonCanceled, Attempts: attempts, Err: err}
}
