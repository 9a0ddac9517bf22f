package registry

import (
	"errors"
	"fmt"
	"strings"
)

// ProtocolErrorKind classifies failures at the tool-invocation boundary.
type ProtocolErrorKind string

const (
	ToolNotFound     ProtocolErrorKind = "tool_not_found"
	InvalidArguments ProtocolErrorKind = "invalid_arguments"
)

// ProtocolError reports an invocation that never reached a handler.
type ProtocolError struct {
	Kind   ProtocolErrorKind
	Tool   string
	Fields []string
	Msg    string
}

func (e *ProtocolError) Error() string {
	switch e.Kind {
	case ToolNotFound:
		return fmt.Sprintf("tool not found: %s", e.Tool)
	case InvalidArguments:
		if e.Msg != "" {
			return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Msg)
		}
		return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(e.Fields, ", "))
	}
	return e.Msg
}

// IsProtocol reports whether err is a ProtocolError of the given kind.
func IsProtocol(err error, kind ProtocolErrorKind) bool {
	var pe *ProtocolError
	return errors.As(err, &pe) && pe.Kind == kind
}

func notFound(name string) error {
	return &ProtocolError{Kind: ToolNotFound, Tool: name}
}

// InvalidArgs builds an InvalidArguments error for tool naming fields.
func InvalidArgs(tool, msg string, fields ...string) error {
	return &ProtocolError{Kind: InvalidArguments, Tool: tool, Fields: fields, Msg: msg}
}
