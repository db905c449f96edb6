package trace

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/runtrace/internal/ir"
)

// IntegrationError reports an event stream that the observer cannot accept
// because the producer is wired incorrectly. These are returned to the
// caller immediately; run-domain failures are recorded in the log instead.
type IntegrationError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Kind is the kind of the offending event.
	Kind ir.Kind

	// Path is the path of the offending event.
	Path ir.Path
}

// ErrorCode categorizes integration errors.
type ErrorCode string

const (
	// ErrCodeGraphAlreadyStarted indicates a second top-level graphstart.
	ErrCodeGraphAlreadyStarted ErrorCode = "GRAPH_ALREADY_STARTED"

	// ErrCodeNoGraph indicates a step event before any top-level graphstart.
	ErrCodeNoGraph ErrorCode = "NO_GRAPH"

	// ErrCodeInvalidEvent indicates an event missing its required fields.
	ErrCodeInvalidEvent ErrorCode = "INVALID_EVENT"
)

// Error implements the error interface.
func (e *IntegrationError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s: %s (kind=%s, path=%s)", e.Code, e.Message, e.Kind, e.Path.ID())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code ErrorCode) bool {
	var ie *IntegrationError
	if errors.As(err, &ie) {
		return ie.Code == code
	}
	return false
}

// IsIntegrationError returns true for any IntegrationError in err's chain.
func IsIntegrationError(err error) bool {
	var ie *IntegrationError
	return errors.As(err, &ie)
}

// IsGraphAlreadyStarted returns true if err reports a duplicate graphstart.
func IsGraphAlreadyStarted(err error) bool {
	return hasCode(err, ErrCodeGraphAlreadyStarted)
}

// IsNoGraph returns true if err reports a step event outside a graph.
func IsNoGraph(err error) bool {
	return hasCode(err, ErrCodeNoGraph)
}

// IsInvalidEvent returns true if err reports a malformed event record.
func IsInvalidEvent(err error) bool {
	return hasCode(err, ErrCodeInvalidEvent)
}

func newGraphAlreadyStartedError(e ir.Event) *IntegrationError {
	return &IntegrationError{
		Code:    ErrCodeGraphAlreadyStarted,
		Message: "graph already started",
		Kind:    e.Kind,
		Path:    e.Path,
	}
}

func newNoGraphError(e ir.Event) *IntegrationError {
	return &IntegrationError{
		Code:    ErrCodeNoGraph,
		Message: "step event received without a graph",
		Kind:    e.Kind,
		Path:    e.Path,
	}
}

func newInvalidEventError(e ir.Event, cause error) *IntegrationError {
	return &IntegrationError{
		Code:    ErrCodeInvalidEvent,
		Message: cause.Error(),
		Kind:    e.Kind,
		Path:    e.Path,
	}
}

// FormatError renders a run error as a one-line description for activity
// items. Nested errors carried in Details["error"] are unwrapped.
func FormatError(e ir.RunError) string {
	var parts []string
	if e.Node != "" {
		parts = append(parts, e.Node)
	}
	msg := e.Message
	if nested, ok := e.Details.Get("error").(ir.Object); ok {
		if inner, ok := nested.Get("message").(ir.String); ok && inner != "" {
			if msg == "" {
				msg = string(inner)
			} else {
				msg = msg + ": " + string(inner)
			}
		}
	}
	if msg == "" {
		msg = "unknown error"
	}
	parts = append(parts, msg)
	return strings.Join(parts, ": ")
}
