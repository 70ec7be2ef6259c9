// Package errs defines the orchestrator's error taxonomy: a small closed set
// of kinds that call sites can classify on with errors.As, each carrying a
// sanitized, truncated message and a wrapped cause.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an orchestrator failure into one of the categories callers
// need to branch on (HTTP status mapping, retry policy, CLI exit code).
type Kind string

const (
	KindInvalidWorkflow      Kind = "invalid_workflow"
	KindUnresolvedReference  Kind = "unresolved_reference"
	KindWorkerUnreachable    Kind = "worker_unreachable"
	KindWorkerProtocolError  Kind = "worker_protocol_error"
	KindToolError            Kind = "tool_error"
	KindUntrustedPublisher   Kind = "untrusted_publisher"
	KindInvalidSignature     Kind = "invalid_signature"
	KindChecksumMismatch     Kind = "checksum_mismatch"
	KindLLMAuthError         Kind = "llm_auth_error"
	KindLLMQuota             Kind = "llm_quota"
	KindLLMTimeout           Kind = "llm_timeout"
	KindLLMBlocked           Kind = "llm_blocked"
	KindMaxIterationsExceeded Kind = "max_iterations_exceeded"
	KindExecutionCancelled   Kind = "execution_cancelled"
	KindNotFound             Kind = "not_found"
	KindInvalidArgument      Kind = "invalid_argument"
)

// maxMessageRunes bounds how much of a message survives sanitization, so a
// misbehaving worker or provider can't flood logs or API responses.
const maxMessageRunes = 500

// Error is the orchestrator's single structured error type. Every error kind
// named in the specification's error taxonomy is represented by a value of
// this type rather than a distinct Go type, so callers have exactly one
// extraction path: errors.As(err, &errs.Error{}).
type Error struct {
	kind      Kind
	component string
	message   string
	cause     error
}

// New constructs an Error. component identifies the subsystem that raised it
// (e.g. "worker", "pkginstall", "model/anthropic"); message is sanitized and
// truncated before storage.
func New(kind Kind, component, message string, cause error) *Error {
	return &Error{
		kind:      kind,
		component: component,
		message:   sanitize(message),
		cause:     cause,
	}
}

// Wrap classifies an existing error as kind without altering its message,
// preserving the original error as the cause.
func Wrap(kind Kind, component string, cause error) *Error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return New(kind, component, msg, cause)
}

// Kind returns the coarse-grained classification.
func (e *Error) Kind() Kind { return e.kind }

// Component returns the subsystem that raised the error.
func (e *Error) Component() string { return e.component }

// Message returns the sanitized, truncated message.
func (e *Error) Message() string { return e.message }

func (e *Error) Error() string {
	msg := e.message
	if msg == "" && e.cause != nil {
		msg = e.cause.Error()
	}
	if msg == "" {
		msg = string(e.kind)
	}
	if e.component == "" {
		return fmt.Sprintf("%s: %s", e.kind, msg)
	}
	return fmt.Sprintf("%s (%s): %s", e.kind, e.component, msg)
}

// Unwrap returns the wrapped cause, preserving the original error chain for
// errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Of returns the first *Error in err's chain, if any.
func Of(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err's chain contains an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := Of(err)
	return ok && e.kind == kind
}

// sanitize trims surrounding whitespace and truncates a message to
// maxMessageRunes, appending "..." when it cuts. Filesystem paths embedded in
// the message are left as they are.
func sanitize(msg string) string {
	msg = strings.TrimSpace(msg)
	runes := []rune(msg)
	if len(runes) > maxMessageRunes {
		msg = string(runes[:maxMessageRunes]) + "..."
	}
	return msg
}
