package executor

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an execution failure.
type ErrorKind string

const (
	// Network means the upstream could not be reached.
	Network ErrorKind = "network"
	// Timeout means the configured deadline expired.
	Timeout ErrorKind = "timeout"
	// UpstreamStatus means the upstream answered with a non-2xx status.
	UpstreamStatus ErrorKind = "upstream_status"
)

// ExecutionError reports a failed outbound call. For UpstreamStatus the
// Result holds the status, headers and body the upstream returned.
type ExecutionError struct {
	Kind   ErrorKind
	Tool   string
	Result *Result
	Err    error
}

func (e *ExecutionError) Error() string {
	switch e.Kind {
	case UpstreamStatus:
		return fmt.Sprintf("%s: upstream returned %s", e.Tool, e.Result.statusLine())
	case Timeout:
		return fmt.Sprintf("%s: request timed out: %v", e.Tool, e.Err)
	default:
		return fmt.Sprintf("%s: request failed: %v", e.Tool, e.Err)
	}
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsExecution reports whether err is an ExecutionError of the given kind.
func IsExecution(err error, kind ErrorKind) bool {
	var ee *ExecutionError
	return errors.As(err, &ee) && ee.Kind == kind
}
