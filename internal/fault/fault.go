// Package fault defines the error taxonomy shared by all orchestrator
// components. Every error that crosses a component boundary is a [*Error]
// carrying a [Kind]; the HTTP layer maps kinds to status codes and the
// controller client uses them to decide whether to fall back to the
// deterministic planner.
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an orchestrator error. Kinds are stable identifiers that
// appear verbatim in API error responses.
type Kind string

const (
	// InvalidInput — the inbound message carried neither text nor audio.
	InvalidInput Kind = "invalid_input"

	// SchemaError — controller output failed plan validation.
	SchemaError Kind = "schema_error"

	// UnknownTool — a plan step referenced a tool outside the registry.
	UnknownTool Kind = "unknown_tool"

	// UnknownRoute — a model step referenced an unconfigured route.
	UnknownRoute Kind = "unknown_route"

	// BadStep — a step's kind/payload combination is not executable.
	BadStep Kind = "bad_step"

	// DependencyMissing — a wait_for dependency was never satisfied.
	DependencyMissing Kind = "dependency_missing"

	// EmitConflict — two steps wrote the same emit name in one execution.
	EmitConflict Kind = "emit_conflict"

	// Transport — network/DNS/TLS failure talking to a downstream service.
	Transport Kind = "transport"

	// Timeout — a downstream call exceeded its deadline.
	Timeout Kind = "timeout"

	// HTTPStatus — a downstream service answered with a non-2xx status.
	HTTPStatus Kind = "http_status"

	// ToolError — a tool handler rejected its arguments or its backend's reply.
	ToolError Kind = "tool_error"

	// Canceled — the request context was canceled.
	Canceled Kind = "canceled"
)

// Error is a classified orchestrator error.
type Error struct {
	Kind    Kind
	Message string

	// Code holds the downstream status for HTTPStatus errors, zero otherwise.
	Code int

	// Err is the wrapped cause, if any.
	Err error
}

// New creates an [*Error] with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an [*Error] that wraps cause with a formatted message.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a [*Error] with the same kind, so that
// errors.Is(err, &Error{Kind: k}) works for kind matching.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the [Kind] of err, or the empty string when err carries no
// classification.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// clientKinds map to 4xx responses: the plan or inbound message was at fault,
// not the infrastructure.
var clientKinds = map[Kind]bool{
	InvalidInput:      true,
	SchemaError:       true,
	UnknownTool:       true,
	UnknownRoute:      true,
	BadStep:           true,
	DependencyMissing: true,
	EmitConflict:      true,
	ToolError:         true,
}

// HTTPStatusOf maps an error to the response status code for the /route
// surface. Unclassified errors map to 500.
func HTTPStatusOf(err error) int {
	switch k := KindOf(err); {
	case clientKinds[k]:
		return http.StatusBadRequest
	case k == Timeout:
		return http.StatusGatewayTimeout
	case k == Transport || k == HTTPStatus:
		return http.StatusBadGateway
	case k == Canceled:
		// 499 is the de-facto "client closed request" status.
		return 499
	default:
		return http.StatusInternalServerError
	}
}
