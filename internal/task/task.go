package task

import (
	"fmt"
	"strings"
	"time"
)

// Task type constants
const (
	TypeCommitment = "commitment"
	TypeAction     = "action"
	TypeFollowUp   = "follow-up"
	TypeRisk       = "risk"
)

// Priority constants
const (
	PriorityLow     = "low"
	PriorityMedium  = "medium"
	PriorityHigh    = "high"
	PriorityHighest = "highest"
)

// Status constants. Rejected is terminal for the sync subsystem: a task whose
// owner declined it is never eligible for sync and never counted as pending.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusRejected  = "rejected"
)

// ExternalRef records that a task has been mirrored to one provider.
// Once set, the external ID is never overwritten by a later create.
type ExternalRef struct {
	ExternalID string    `json:"external_id"`
	SyncedAt   time.Time `json:"synced_at"`
}

// Task is the canonical commitment/action item, independent of any external
// task platform.
type Task struct {
	ID            string                 `json:"id"`
	Description   string                 `json:"description"`
	Type          string                 `json:"task_type"`
	Assignee      string                 `json:"assignee,omitempty"`
	Deadline      time.Time              `json:"deadline,omitempty"`
	Priority      string                 `json:"priority"`
	Status        string                 `json:"status"`
	CompletedDate time.Time              `json:"completed_date,omitempty"`
	// NeedsConfirmation is true when the extraction step could not determine a
	// confident assignee. It gates the task out of every sync batch until a
	// human confirms or rejects ownership.
	NeedsConfirmation bool                   `json:"needs_confirmation"`
	SourceMeeting     string                 `json:"source_meeting,omitempty"`
	ExternalSync      map[string]ExternalRef `json:"external_sync,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// ValidTypes lists the accepted task types.
var ValidTypes = []string{TypeCommitment, TypeAction, TypeFollowUp, TypeRisk}

// ValidPriorities lists the accepted priorities.
var ValidPriorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityHighest}

// ValidStatuses lists the accepted statuses.
var ValidStatuses = []string{StatusPending, StatusCompleted, StatusRejected}

// Validate checks the local invariants that must hold before any network call.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("task description is required")
	}
	if t.Type != "" && !contains(ValidTypes, t.Type) {
		return fmt.Errorf("invalid task type: %s", t.Type)
	}
	if t.Priority != "" && !contains(ValidPriorities, t.Priority) {
		return fmt.Errorf("invalid priority: %s", t.Priority)
	}
	if t.Status != "" && !contains(ValidStatuses, t.Status) {
		return fmt.Errorf("invalid status: %s", t.Status)
	}
	return nil
}

// Normalize fills zero-valued vocabulary fields with their defaults.
func (t *Task) Normalize() {
	if t.Type == "" {
		t.Type = TypeCommitment
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
}

// SyncedTo reports whether the task already holds an external reference for
// the given provider.
func (t *Task) SyncedTo(provider string) bool {
	_, ok := t.ExternalSync[provider]
	return ok
}

// Overdue reports whether the task is past its deadline. It is a pure
// derivation, not stored state: a completed or rejected task is never overdue,
// and a deadline of exactly now is not yet overdue (strict boundary).
func (t *Task) Overdue(now time.Time) bool {
	if t.Status != StatusPending {
		return false
	}
	if t.Deadline.IsZero() {
		return false
	}
	return t.Deadline.Before(now)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
