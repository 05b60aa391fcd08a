package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JoshuaSeidel/taskbridge/internal/provider"
	"github.com/JoshuaSeidel/taskbridge/internal/task"
)

// Common test errors
var (
	ErrMockStore  = errors.New("mock store error")
	ErrMockCreate = errors.New("mock create error")
)

// MockStore implements TaskStore for testing
type MockStore struct {
	mu sync.Mutex

	Tasks map[string]*task.Task

	ListEligibleFunc  func(provider string) ([]*task.Task, error)
	RecordSuccessFunc func(taskID, provider, externalID string) (bool, error)

	Successes []recordedRef
	Failures  []recordedFailure
	Statuses  map[string]string
	Deleted   []string
	Confirmed map[string]bool
}

type recordedRef struct {
	TaskID     string
	Provider   string
	ExternalID string
}

type recordedFailure struct {
	TaskID   string
	Provider string
	Message  string
}

func NewMockStore(tasks ...*task.Task) *MockStore {
	m := &MockStore{
		Tasks:     make(map[string]*task.Task),
		Statuses:  make(map[string]string),
		Confirmed: make(map[string]bool),
	}
	for _, t := range tasks {
		m.Tasks[t.ID] = t
	}
	return m
}

func (m *MockStore) ListEligibleForSync(providerName string) ([]*task.Task, error) {
	if m.ListEligibleFunc != nil {
		return m.ListEligibleFunc(providerName)
	}

	var eligible []*task.Task
	for _, t := range m.Tasks {
		if t.Status == task.StatusPending && !t.NeedsConfirmation && !t.SyncedTo(providerName) {
			eligible = append(eligible, t)
		}
	}
	return eligible, nil
}

func (m *MockStore) GetTask(id string) (*task.Task, error) {
	t, ok := m.Tasks[id]
	if !ok {
		return nil, fmt.Errorf("task not found: %s", id)
	}
	return t, nil
}

func (m *MockStore) RecordSyncSuccess(taskID, providerName, externalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RecordSuccessFunc != nil {
		return m.RecordSuccessFunc(taskID, providerName, externalID)
	}

	m.Successes = append(m.Successes, recordedRef{taskID, providerName, externalID})
	return true, nil
}

func (m *MockStore) RecordSyncFailure(taskID, providerName, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Failures = append(m.Failures, recordedFailure{taskID, providerName, message})
	return nil
}

func (m *MockStore) SetStatus(taskID, status string) error {
	m.Statuses[taskID] = status
	return nil
}

func (m *MockStore) SetConfirmation(taskID string, confirmed bool) error {
	m.Confirmed[taskID] = confirmed
	return nil
}

func (m *MockStore) DeleteTask(taskID string) error {
	m.Deleted = append(m.Deleted, taskID)
	return nil
}

// MockAdapter implements provider.Adapter for testing
type MockAdapter struct {
	mu sync.Mutex

	AdapterName string
	CreateFunc  func(ctx context.Context, t *task.Task) (string, error)
	CloseFunc   func(ctx context.Context, externalID, note string) provider.OpResult
	DeleteFunc  func(ctx context.Context, externalID string) provider.OpResult
	StatusFunc  func(ctx context.Context) provider.Status

	CreateCalls []string
	CloseCalls  []string
	DeleteCalls []string
}

func (m *MockAdapter) Name() string {
	if m.AdapterName != "" {
		return m.AdapterName
	}
	return "mock"
}

func (m *MockAdapter) CheckStatus(ctx context.Context) provider.Status {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx)
	}
	return provider.Status{Provider: m.Name(), Connected: true, Identity: "tester"}
}

func (m *MockAdapter) Create(ctx context.Context, t *task.Task) (string, error) {
	m.mu.Lock()
	m.CreateCalls = append(m.CreateCalls, t.ID)
	n := len(m.CreateCalls)
	m.mu.Unlock()

	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, t)
	}
	return fmt.Sprintf("EXT-%d", n), nil
}

func (m *MockAdapter) Update(ctx context.Context, externalID string, fields provider.Fields) error {
	return nil
}

func (m *MockAdapter) AddComment(ctx context.Context, externalID, text string) error {
	return nil
}

func (m *MockAdapter) Close(ctx context.Context, externalID, note string) provider.OpResult {
	m.mu.Lock()
	m.CloseCalls = append(m.CloseCalls, externalID)
	m.mu.Unlock()

	if m.CloseFunc != nil {
		return m.CloseFunc(ctx, externalID, note)
	}
	return provider.OpResult{OK: true}
}

func (m *MockAdapter) Delete(ctx context.Context, externalID string) provider.OpResult {
	m.mu.Lock()
	m.DeleteCalls = append(m.DeleteCalls, externalID)
	m.mu.Unlock()

	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, externalID)
	}
	return provider.OpResult{OK: true}
}
