// Package sync orchestrates pushing canonical tasks to the external task
// platforms: batch creation with per-task failure isolation, operator-driven
// retry, best-effort remote completion and deletion, and the confirmation
// gate that keeps ambiguous tasks out of every batch.
package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/JoshuaSeidel/taskbridge/internal/provider"
	"github.com/JoshuaSeidel/taskbridge/internal/task"
)

// TaskStore is the persistence surface the engine drives. The SQLite store
// implements it; tests substitute mocks.
type TaskStore interface {
	ListEligibleForSync(provider string) ([]*task.Task, error)
	GetTask(id string) (*task.Task, error)
	RecordSyncSuccess(taskID, provider, externalID string) (bool, error)
	RecordSyncFailure(taskID, provider, message string) error
	SetStatus(taskID, status string) error
	SetConfirmation(taskID string, confirmed bool) error
	DeleteTask(taskID string) error
}

// Engine is the sync orchestrator.
type Engine struct {
	store    TaskStore
	registry *provider.Registry
	timeout  time.Duration
}

// NewEngine creates a sync engine. timeout bounds every single adapter call.
func NewEngine(store TaskStore, registry *provider.Registry, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Engine{store: store, registry: registry, timeout: timeout}
}

// Providers returns the registered provider names.
func (e *Engine) Providers() []string {
	return e.registry.Names()
}

// SyncBatch pushes every eligible task to the named provider. One task's
// failure never aborts the batch; the result carries per-task errors.
func (e *Engine) SyncBatch(ctx context.Context, providerName string) (*task.SyncResult, error) {
	adapter, err := e.registry.Get(providerName)
	if err != nil {
		return nil, err
	}

	tasks, err := e.store.ListEligibleForSync(providerName)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible tasks: %w", err)
	}

	return e.SyncTasks(ctx, tasks, adapter), nil
}

// RetryFailed re-attempts every task that should have an external record for
// the provider but does not. The eligibility predicate is identical to a
// normal batch: an absent external id is the only retry signal kept, with no
// attempt counters or backoff.
func (e *Engine) RetryFailed(ctx context.Context, providerName string) (*task.SyncResult, error) {
	return e.SyncBatch(ctx, providerName)
}

// SyncTasks pushes the given tasks to one adapter, sequentially and in the
// order presented. The gating predicates are re-applied per task so a caller
// can hand over any set without bypassing confirmation or idempotency rules.
func (e *Engine) SyncTasks(ctx context.Context, tasks []*task.Task, adapter provider.Adapter) *task.SyncResult {
	result := &task.SyncResult{}
	name := adapter.Name()

	for _, t := range tasks {
		if t.Status != task.StatusPending || t.NeedsConfirmation || t.SyncedTo(name) {
			continue
		}

		if err := t.Validate(); err != nil {
			result.AddFailure(t.ID, err.Error())
			continue
		}

		externalID, err := e.create(ctx, adapter, t)
		if err != nil {
			result.AddFailure(t.ID, err.Error())
			if recordErr := e.store.RecordSyncFailure(t.ID, name, err.Error()); recordErr != nil {
				log.Printf("Warning: failed to record sync failure for %s: %v", t.ID, recordErr)
			}
			continue
		}

		inserted, err := e.store.RecordSyncSuccess(t.ID, name, externalID)
		if err != nil {
			// The remote object exists but the reference write failed; the
			// task stays eligible and the next attempt may duplicate it.
			result.AddFailure(t.ID, fmt.Sprintf("created %s but failed to record reference: %v", externalID, err))
			continue
		}
		if !inserted {
			// A concurrent batch won the conditional insert. The extra remote
			// object is orphaned; count the task as skipped, not synced.
			log.Printf("Warning: task %s was synced to %s concurrently, orphaned duplicate %s", t.ID, name, externalID)
			result.Skipped++
			continue
		}

		result.Synced++
	}

	return result
}

func (e *Engine) create(ctx context.Context, adapter provider.Adapter, t *task.Task) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return adapter.Create(callCtx, t)
}

// CompleteTask marks a task completed locally, then best-effort closes its
// remote mirrors. Remote state is advisory: a close failure is logged and
// never blocks or reverses the local completion.
func (e *Engine) CompleteTask(ctx context.Context, taskID, note string) error {
	t, err := e.store.GetTask(taskID)
	if err != nil {
		return err
	}

	if err := e.store.SetStatus(taskID, task.StatusCompleted); err != nil {
		return err
	}

	for name, ref := range t.ExternalSync {
		adapter, err := e.registry.Get(name)
		if err != nil {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		res := adapter.Close(callCtx, ref.ExternalID, note)
		cancel()

		if !res.OK {
			log.Printf("Warning: failed to close %s on %s: %s", ref.ExternalID, name, res.Error)
		}
	}

	return nil
}

// DeleteTask removes a task locally and best-effort deletes its remote
// mirrors first. Remote deletion failures are logged, never fatal.
func (e *Engine) DeleteTask(ctx context.Context, taskID string) error {
	t, err := e.store.GetTask(taskID)
	if err != nil {
		return err
	}

	for name, ref := range t.ExternalSync {
		adapter, err := e.registry.Get(name)
		if err != nil {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		res := adapter.Delete(callCtx, ref.ExternalID)
		cancel()

		if !res.OK {
			log.Printf("Warning: failed to delete %s on %s: %s", ref.ExternalID, name, res.Error)
		}
	}

	return e.store.DeleteTask(taskID)
}

// Confirm resolves the confirmation gate: confirmed tasks enter the normal
// pending flow and become eligible for sync; rejected tasks are terminally
// withdrawn and never reach a batch.
func (e *Engine) Confirm(taskID string, confirmed bool) error {
	return e.store.SetConfirmation(taskID, confirmed)
}

// ProviderStatuses probes every registered adapter. Status checks never
// propagate errors; each failure is folded into that provider's entry.
func (e *Engine) ProviderStatuses(ctx context.Context) []provider.Status {
	names := e.registry.Names()
	statuses := make([]provider.Status, 0, len(names))

	for _, name := range names {
		adapter, err := e.registry.Get(name)
		if err != nil {
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		statuses = append(statuses, adapter.CheckStatus(callCtx))
		cancel()
	}

	return statuses
}
