package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JoshuaSeidel/taskbridge/internal/provider"
	"github.com/JoshuaSeidel/taskbridge/internal/task"
)

func pendingTask(id string) *task.Task {
	return &task.Task{
		ID:          id,
		Description: "task " + id,
		Type:        task.TypeCommitment,
		Priority:    task.PriorityMedium,
		Status:      task.StatusPending,
	}
}

func newTestEngine(store *MockStore, adapter *MockAdapter) *Engine {
	return NewEngine(store, provider.NewRegistry(adapter), time.Second)
}

func TestSyncBatchCreatesEligibleTasks(t *testing.T) {
	store := NewMockStore(pendingTask("1"), pendingTask("2"))
	adapter := &MockAdapter{}
	engine := newTestEngine(store, adapter)

	result, err := engine.SyncBatch(context.Background(), "mock")
	if err != nil {
		t.Fatalf("SyncBatch failed: %v", err)
	}

	if result.Synced != 2 || result.Failed != 0 {
		t.Errorf("expected 2 synced / 0 failed, got %d/%d", result.Synced, result.Failed)
	}
	if len(adapter.CreateCalls) != 2 {
		t.Errorf("expected 2 create calls, got %d", len(adapter.CreateCalls))
	}
	if len(store.Successes) != 2 {
		t.Errorf("expected 2 recorded references, got %d", len(store.Successes))
	}
}

func TestSyncBatchUnknownProvider(t *testing.T) {
	engine := newTestEngine(NewMockStore(), &MockAdapter{})

	_, err := engine.SyncBatch(context.Background(), "nope")
	if !errors.Is(err, provider.ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

// A task already holding an external id for the provider produces zero
// adapter calls and a zero result.
func TestSyncTasksIdempotency(t *testing.T) {
	synced := pendingTask("1")
	synced.ExternalSync = map[string]task.ExternalRef{
		"mock": {ExternalID: "EXT-1", SyncedAt: time.Now()},
	}

	store := NewMockStore(synced)
	adapter := &MockAdapter{}
	engine := newTestEngine(store, adapter)

	result := engine.SyncTasks(context.Background(), []*task.Task{synced}, adapter)

	if result.Synced != 0 || result.Failed != 0 {
		t.Errorf("expected zero result, got %+v", result)
	}
	if len(adapter.CreateCalls) != 0 {
		t.Errorf("expected zero adapter calls, got %d", len(adapter.CreateCalls))
	}
}

// A task awaiting confirmation is left untouched even when handed directly
// to SyncTasks.
func TestSyncTasksConfirmationGate(t *testing.T) {
	gated := pendingTask("1")
	gated.NeedsConfirmation = true

	store := NewMockStore(gated)
	adapter := &MockAdapter{}
	engine := newTestEngine(store, adapter)

	result := engine.SyncTasks(context.Background(), []*task.Task{gated}, adapter)

	if result.Synced != 0 || result.Failed != 0 {
		t.Errorf("expected zero result, got %+v", result)
	}
	if len(adapter.CreateCalls) != 0 {
		t.Errorf("gated task must never reach the adapter, got %d calls", len(adapter.CreateCalls))
	}
	if len(store.Successes) != 0 {
		t.Errorf("gated task must never receive an external reference")
	}
}

// One task's failure never aborts the batch: with the adapter failing on the
// second of three tasks, the first and third still sync with distinct ids.
func TestSyncTasksPartialFailureIsolation(t *testing.T) {
	tasks := []*task.Task{pendingTask("1"), pendingTask("2"), pendingTask("3")}
	store := NewMockStore(tasks...)

	adapter := &MockAdapter{}
	adapter.CreateFunc = func(ctx context.Context, tk *task.Task) (string, error) {
		if tk.ID == "2" {
			return "", ErrMockCreate
		}
		return "EXT-" + tk.ID, nil
	}
	engine := newTestEngine(store, adapter)

	result := engine.SyncTasks(context.Background(), tasks, adapter)

	if result.Synced != 2 || result.Failed != 1 {
		t.Errorf("expected 2 synced / 1 failed, got %d/%d", result.Synced, result.Failed)
	}
	if len(result.Errors) != 1 || result.Errors[0].TaskID != "2" {
		t.Errorf("expected error for task 2, got %+v", result.Errors)
	}

	if len(store.Successes) != 2 {
		t.Fatalf("expected 2 recorded references, got %d", len(store.Successes))
	}
	if store.Successes[0].ExternalID == store.Successes[1].ExternalID {
		t.Errorf("tasks must receive distinct external ids: %+v", store.Successes)
	}
	if len(store.Failures) != 1 || store.Failures[0].TaskID != "2" {
		t.Errorf("expected failure recorded for task 2, got %+v", store.Failures)
	}
}

// Batch order follows the order presented by the store.
func TestSyncTasksPreservesOrder(t *testing.T) {
	tasks := []*task.Task{pendingTask("a"), pendingTask("b"), pendingTask("c")}
	store := NewMockStore(tasks...)
	adapter := &MockAdapter{}
	engine := newTestEngine(store, adapter)

	engine.SyncTasks(context.Background(), tasks, adapter)

	want := []string{"a", "b", "c"}
	for i, id := range want {
		if adapter.CreateCalls[i] != id {
			t.Fatalf("expected create order %v, got %v", want, adapter.CreateCalls)
		}
	}
}

// When a concurrent batch wins the conditional reference insert, the task is
// counted as skipped, never double-counted as synced.
func TestSyncTasksLostRaceCountsAsSkipped(t *testing.T) {
	tk := pendingTask("1")
	store := NewMockStore(tk)
	store.RecordSuccessFunc = func(taskID, provider, externalID string) (bool, error) {
		return false, nil
	}

	adapter := &MockAdapter{}
	engine := newTestEngine(store, adapter)

	result := engine.SyncTasks(context.Background(), []*task.Task{tk}, adapter)

	if result.Synced != 0 || result.Failed != 0 || result.Skipped != 1 {
		t.Errorf("expected skipped=1, got %+v", result)
	}
}

func TestSyncTasksInvalidTaskFailsBeforeNetwork(t *testing.T) {
	invalid := pendingTask("1")
	invalid.Description = ""

	store := NewMockStore(invalid)
	adapter := &MockAdapter{}
	engine := newTestEngine(store, adapter)

	result := engine.SyncTasks(context.Background(), []*task.Task{invalid}, adapter)

	if result.Failed != 1 {
		t.Errorf("expected 1 failed, got %+v", result)
	}
	if len(adapter.CreateCalls) != 0 {
		t.Errorf("invalid task must be rejected before any network call")
	}
}

// Local completion always succeeds; remote close failures are advisory.
func TestCompleteTaskBestEffort(t *testing.T) {
	tk := pendingTask("1")
	tk.ExternalSync = map[string]task.ExternalRef{
		"mock": {ExternalID: "EXT-1", SyncedAt: time.Now()},
	}

	store := NewMockStore(tk)
	adapter := &MockAdapter{}
	adapter.CloseFunc = func(ctx context.Context, externalID, note string) provider.OpResult {
		return provider.OpResult{Error: "no matching transition"}
	}
	engine := newTestEngine(store, adapter)

	err := engine.CompleteTask(context.Background(), "1", "done in standup")
	if err != nil {
		t.Fatalf("CompleteTask must not fail on remote close failure: %v", err)
	}

	if store.Statuses["1"] != task.StatusCompleted {
		t.Errorf("expected local status completed, got %q", store.Statuses["1"])
	}
	if len(adapter.CloseCalls) != 1 || adapter.CloseCalls[0] != "EXT-1" {
		t.Errorf("expected one close call for EXT-1, got %v", adapter.CloseCalls)
	}
}

func TestDeleteTaskRemovesRemoteMirrors(t *testing.T) {
	tk := pendingTask("1")
	tk.ExternalSync = map[string]task.ExternalRef{
		"mock": {ExternalID: "EXT-9", SyncedAt: time.Now()},
	}

	store := NewMockStore(tk)
	adapter := &MockAdapter{}
	engine := newTestEngine(store, adapter)

	if err := engine.DeleteTask(context.Background(), "1"); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}

	if len(adapter.DeleteCalls) != 1 || adapter.DeleteCalls[0] != "EXT-9" {
		t.Errorf("expected remote delete of EXT-9, got %v", adapter.DeleteCalls)
	}
	if len(store.Deleted) != 1 || store.Deleted[0] != "1" {
		t.Errorf("expected local delete of task 1, got %v", store.Deleted)
	}
}

func TestRetryFailedUsesSameEligibility(t *testing.T) {
	fresh := pendingTask("fresh")
	syncedElsewhere := pendingTask("synced-elsewhere")
	syncedElsewhere.ExternalSync = map[string]task.ExternalRef{
		"other": {ExternalID: "O-1", SyncedAt: time.Now()},
	}
	syncedHere := pendingTask("synced-here")
	syncedHere.ExternalSync = map[string]task.ExternalRef{
		"mock": {ExternalID: "EXT-0", SyncedAt: time.Now()},
	}

	store := NewMockStore(fresh, syncedElsewhere, syncedHere)
	adapter := &MockAdapter{}
	engine := newTestEngine(store, adapter)

	result, err := engine.RetryFailed(context.Background(), "mock")
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}

	if result.Synced != 2 {
		t.Errorf("expected 2 synced (fresh + synced-elsewhere), got %d", result.Synced)
	}
	for _, id := range adapter.CreateCalls {
		if id == "synced-here" {
			t.Errorf("task already synced to the provider must be untouched by retry")
		}
	}
}

func TestProviderStatuses(t *testing.T) {
	store := NewMockStore()
	adapter := &MockAdapter{}
	adapter.StatusFunc = func(ctx context.Context) provider.Status {
		return provider.Status{Provider: "mock", NotConfigured: true}
	}
	engine := newTestEngine(store, adapter)

	statuses := engine.ProviderStatuses(context.Background())

	if len(statuses) != 1 {
		t.Fatalf("expected 1 status, got %d", len(statuses))
	}
	if statuses[0].Connected || !statuses[0].NotConfigured {
		t.Errorf("expected disconnected/not-configured status, got %+v", statuses[0])
	}
}

// Each adapter call is bounded: a hung provider times out and the task is
// recorded failed-for-this-invocation, still eligible for retry.
func TestSyncTasksAdapterTimeout(t *testing.T) {
	tk := pendingTask("1")
	store := NewMockStore(tk)

	adapter := &MockAdapter{}
	adapter.CreateFunc = func(ctx context.Context, tk *task.Task) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	engine := NewEngine(store, provider.NewRegistry(adapter), 20*time.Millisecond)
	result := engine.SyncTasks(context.Background(), []*task.Task{tk}, adapter)

	if result.Failed != 1 {
		t.Errorf("expected timeout to count as failure, got %+v", result)
	}
	if len(store.Failures) != 1 {
		t.Errorf("expected failure recorded, got %+v", store.Failures)
	}
}
