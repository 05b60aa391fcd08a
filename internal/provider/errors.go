package provider

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured signals absent credentials. It is expected and silent:
// callers branch on it to show a "please connect" state instead of retrying.
var ErrNotConfigured = errors.New("provider not configured")

// Kind classifies adapter failures for the orchestrator.
type Kind int

const (
	// KindTransient covers timeouts and 5xx responses; retryable.
	KindTransient Kind = iota
	// KindRejected covers provider-semantic rejections (assignment refusal,
	// missing transition) that have no further fallback.
	KindRejected
	// KindInvalid covers requests the provider deems malformed.
	KindInvalid
)

// Error is a classified adapter failure.
type Error struct {
	Provider string
	Kind     Kind
	Op       string
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Message)
}

// NewError builds a classified adapter failure.
func NewError(provider string, kind Kind, op, message string) *Error {
	return &Error{Provider: provider, Kind: kind, Op: op, Message: message}
}

// KindForStatus maps an HTTP status code to a failure kind.
func KindForStatus(code int) Kind {
	switch {
	case code >= 500 || code == 429:
		return KindTransient
	case code >= 400:
		return KindInvalid
	default:
		return KindTransient
	}
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == KindTransient
	}
	// Network-level errors without a classified wrapper are transient.
	return true
}

// assignmentMarkers are the substrings that identify an assignment-shaped
// rejection across issue-tracker deployments: the requested user cannot be
// assigned, typically for lack of a paid seat.
var assignmentMarkers = []string{
	"assignee",
	"cannot be assigned",
	"user does not exist",
	"unlicensed",
}

// IsAssignmentError reports whether err is an assignment-shaped rejection,
// distinct from generic validation or auth failures.
func IsAssignmentError(err error) bool {
	if err == nil {
		return false
	}
	var pe *Error
	if errors.As(err, &pe) && pe.Kind == KindTransient {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range assignmentMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
