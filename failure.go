package leafless

import (
	"errors"
	"fmt"
	"os"
)

// ErrHandlerPanic wraps the value recovered from a panicking handler
var ErrHandlerPanic = errors.New("handler panicked")

// FailurePolicy decides what happens to the process when a handler fails.
type FailurePolicy int

const (
	// FailFast logs the failure and terminates the process.
	FailFast FailurePolicy = iota
	// IsolateRequest answers the failed request with a 500 and keeps serving.
	IsolateRequest
)

// ParseFailurePolicy maps the "exit" and "isolate" flag values to a policy.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "exit":
		return FailFast, nil
	case "isolate":
		return IsolateRequest, nil
	}

	return FailFast, fmt.Errorf("unknown handler failure policy %q", s)
}

func (p FailurePolicy) String() string {
	switch p {
	case FailFast:
		return "exit"
	case IsolateRequest:
		return "isolate"
	}

	return fmt.Sprintf("FailurePolicy(%d)", int(p))
}

// HandlerError is the failure of a single handler invocation.
type HandlerError struct {
	Method Method
	Path   string
	Route  string
	Err    error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s %s (route %s): %v", e.Method, e.Path, e.Route, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// ExitFunc terminates the process when the FailFast policy applies.
type ExitFunc func(code int)

var defaultExit ExitFunc = os.Exit
