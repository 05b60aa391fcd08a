// Package provider defines the capability contract shared by the four
// external task-platform adapters. The providers share no implementation, only
// contract shape: each adapter independently satisfies Adapter against its own
// wire protocol and its own status/priority vocabulary.
package provider

import (
	"context"
	"time"

	"github.com/JoshuaSeidel/taskbridge/internal/task"
)

// Provider name constants
const (
	NameIssueTracker = "issuetracker"
	NameTodoList     = "todolist"
	NameBoardCard    = "boardcard"
	NameBoardItem    = "boarditem"
)

// Status is the result of a connectivity probe. A missing configuration is a
// normal disconnected state, never an error; any other failure is also folded
// into Connected=false so status checks cannot crash a caller.
type Status struct {
	Provider  string `json:"provider"`
	Connected bool   `json:"connected"`
	Identity  string `json:"identity,omitempty"`
	// NotConfigured distinguishes "please connect" from "retry later".
	NotConfigured bool   `json:"not_configured,omitempty"`
	Error         string `json:"error,omitempty"`
}

// OpResult is the non-throwing outcome of close/delete operations. Callers
// decide what to do with a failure; the adapter never raises.
type OpResult struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Fields carries a partial update. Only non-nil members are written.
type Fields struct {
	Description *string
	Deadline    *time.Time
	Priority    *string
	Status      *string
}

// Adapter is the uniform contract implemented once per provider. Adapters are
// stateless per call: they hold credentials and a short-lived HTTP client,
// nothing else.
type Adapter interface {
	Name() string

	// CheckStatus probes connectivity. It never returns an error value;
	// failures of any kind are reported inside Status.
	CheckStatus(ctx context.Context) Status

	// Create mirrors the task and returns the provider's external ID. The
	// adapter maps the canonical vocabulary into its own, logging (not
	// failing) on unmapped values.
	Create(ctx context.Context, t *task.Task) (string, error)

	// Update applies a partial field update to an existing remote object.
	Update(ctx context.Context, externalID string, fields Fields) error

	// AddComment appends a human-readable audit note without mutating
	// structured fields.
	AddComment(ctx context.Context, externalID, text string) error

	// Close marks the remote object done, best-effort attaching the
	// completion note.
	Close(ctx context.Context, externalID, note string) OpResult

	// Delete removes the remote object.
	Delete(ctx context.Context, externalID string) OpResult
}
