package task

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

// Overdue is a pure derivation: true exactly when the task is pending and its
// deadline is strictly before now.
func TestProperty_OverdueDerivation(t *testing.T) {
	statuses := []string{StatusPending, StatusCompleted, StatusRejected}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	rapid.Check(t, func(rt *rapid.T) {
		status := rapid.SampledFrom(statuses).Draw(rt, "status")
		hasDeadline := rapid.Bool().Draw(rt, "has_deadline")
		offset := rapid.Int64Range(-1e6, 1e6).Draw(rt, "offset_seconds")

		task := Task{Description: "x", Status: status}
		if hasDeadline {
			task.Deadline = base.Add(time.Duration(offset) * time.Second)
		}

		expect := status == StatusPending && hasDeadline && offset < 0
		if got := task.Overdue(base); got != expect {
			rt.Fatalf("Overdue() = %v, want %v (status=%s deadline=%v offset=%d)",
				got, expect, status, hasDeadline, offset)
		}
	})
}

// Normalize is idempotent and always yields a task that passes validation
// when the description is non-empty.
func TestProperty_NormalizeIdempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		task := Task{
			Description: rapid.StringMatching(`[a-zA-Z0-9 ]{1,40}[a-zA-Z0-9]`).Draw(rt, "description"),
			Type:        rapid.SampledFrom(append([]string{""}, ValidTypes...)).Draw(rt, "type"),
			Priority:    rapid.SampledFrom(append([]string{""}, ValidPriorities...)).Draw(rt, "priority"),
		}

		task.Normalize()
		typ, priority, status := task.Type, task.Priority, task.Status
		task.Normalize()

		if task.Type != typ || task.Priority != priority || task.Status != status {
			rt.Fatalf("Normalize not idempotent: %s/%s/%s != %s/%s/%s",
				task.Type, task.Priority, task.Status, typ, priority, status)
		}
		if err := task.Validate(); err != nil {
			rt.Fatalf("normalized task failed validation: %v", err)
		}
	})
}
