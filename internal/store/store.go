// Package store owns the canonical task records and their sync-state rows.
// It carries no sync logic; the orchestrator drives it.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/JoshuaSeidel/taskbridge/internal/task"
)

// ErrTaskNotFound is returned when a task id does not exist.
var ErrTaskNotFound = errors.New("task not found")

// Store is the SQLite-backed task store.
type Store struct {
	db *sql.DB
}

// Filter narrows ListTasks.
type Filter struct {
	Status            string
	NeedsConfirmation *bool
	Assignee          string
}

// FailureRecord is one entry of the per-task sync error history.
type FailureRecord struct {
	TaskID     string    `json:"task_id"`
	Provider   string    `json:"provider"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Open opens (creating if needed) the task store at dbPath.
func Open(dbPath string) (*Store, error) {
	// Expand ~ in path
	if strings.HasPrefix(dbPath, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// migrate creates the necessary tables
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			task_type TEXT NOT NULL DEFAULT 'commitment',
			assignee TEXT,
			deadline DATETIME,
			priority TEXT NOT NULL DEFAULT 'medium',
			status TEXT NOT NULL DEFAULT 'pending',
			completed_date DATETIME,
			needs_confirmation INTEGER NOT NULL DEFAULT 0,
			source_meeting TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS external_refs (
			task_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			external_id TEXT NOT NULL,
			synced_at DATETIME NOT NULL,
			UNIQUE(task_id, provider),
			FOREIGN KEY (task_id) REFERENCES tasks(id)
		);

		CREATE TABLE IF NOT EXISTS sync_failures (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			message TEXT NOT NULL,
			occurred_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
		CREATE INDEX IF NOT EXISTS idx_refs_provider ON external_refs(provider);
		CREATE INDEX IF NOT EXISTS idx_failures_task ON sync_failures(task_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateTask validates, normalizes and inserts a new task, assigning its id
// when absent. completed_date is kept consistent with the status: set exactly
// when the task arrives completed, cleared otherwise.
func (s *Store) CreateTask(t *task.Task) error {
	t.Normalize()
	if err := t.Validate(); err != nil {
		return err
	}

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	if t.Status == task.StatusCompleted {
		if t.CompletedDate.IsZero() {
			t.CompletedDate = now
		}
	} else {
		t.CompletedDate = time.Time{}
	}

	_, err := s.db.Exec(`
		INSERT INTO tasks (id, description, task_type, assignee, deadline, priority, status,
			completed_date, needs_confirmation, source_meeting, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Description, t.Type, nullString(t.Assignee), nullTime(t.Deadline), t.Priority,
		t.Status, nullTime(t.CompletedDate), t.NeedsConfirmation, nullString(t.SourceMeeting),
		t.CreatedAt, t.UpdatedAt)

	return err
}

const taskColumns = `id, description, task_type, assignee, deadline, priority, status,
	completed_date, needs_confirmation, source_meeting, created_at, updated_at`

// GetTask retrieves a task with its external sync references.
func (s *Store) GetTask(id string) (*task.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)

	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
		return nil, err
	}

	refs, err := s.ExternalRefs(id)
	if err != nil {
		return nil, err
	}
	t.ExternalSync = refs

	return t, nil
}

// ListTasks returns tasks matching the filter, oldest first.
func (s *Store) ListTasks(f Filter) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	var args []any

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.NeedsConfirmation != nil {
		query += ` AND needs_confirmation = ?`
		args = append(args, *f.NeedsConfirmation)
	}
	if f.Assignee != "" {
		query += ` AND assignee = ?`
		args = append(args, f.Assignee)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}
	return s.attachRefs(tasks)
}

// ListEligibleForSync returns the tasks that should be pushed to the given
// provider: pending, confirmed, and not already bearing an external reference
// for it. The order is stable (creation order) so batches are deterministic.
func (s *Store) ListEligibleForSync(provider string) ([]*task.Task, error) {
	rows, err := s.db.Query(`
		SELECT `+taskColumns+` FROM tasks
		WHERE status = ?
		  AND needs_confirmation = 0
		  AND id NOT IN (SELECT task_id FROM external_refs WHERE provider = ?)
		ORDER BY created_at ASC, id ASC
	`, task.StatusPending, provider)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, err
	}
	return s.attachRefs(tasks)
}

// RecordSyncSuccess writes the external reference for a task/provider pair.
// The insert is conditional: if another batch already recorded a reference,
// no row is written and inserted=false, letting the caller detect the lost
// race instead of double-counting.
func (s *Store) RecordSyncSuccess(taskID, provider, externalID string) (inserted bool, err error) {
	res, err := s.db.Exec(`
		INSERT INTO external_refs (task_id, provider, external_id, synced_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(task_id, provider) DO NOTHING
	`, taskID, provider, externalID, time.Now().UTC())
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecordSyncFailure appends to the per-task error history. No attempt
// counters are kept: absence of an external reference is the only retry
// signal.
func (s *Store) RecordSyncFailure(taskID, provider, message string) error {
	_, err := s.db.Exec(`
		INSERT INTO sync_failures (task_id, provider, message, occurred_at)
		VALUES (?, ?, ?, ?)
	`, taskID, provider, message, time.Now().UTC())
	return err
}

// SyncFailures returns the recorded failure history for a task, newest first.
func (s *Store) SyncFailures(taskID string) ([]FailureRecord, error) {
	rows, err := s.db.Query(`
		SELECT task_id, provider, message, occurred_at
		FROM sync_failures WHERE task_id = ?
		ORDER BY occurred_at DESC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []FailureRecord
	for rows.Next() {
		var r FailureRecord
		if err := rows.Scan(&r.TaskID, &r.Provider, &r.Message, &r.OccurredAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ExternalRefs returns the provider→reference map for a task.
func (s *Store) ExternalRefs(taskID string) (map[string]task.ExternalRef, error) {
	rows, err := s.db.Query(`
		SELECT provider, external_id, synced_at FROM external_refs WHERE task_id = ?
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make(map[string]task.ExternalRef)
	for rows.Next() {
		var provider string
		var ref task.ExternalRef
		if err := rows.Scan(&provider, &ref.ExternalID, &ref.SyncedAt); err != nil {
			return nil, err
		}
		refs[provider] = ref
	}
	return refs, rows.Err()
}

// SetStatus updates a task's status, maintaining the completed_date
// invariant: set exactly when the status is completed.
func (s *Store) SetStatus(taskID, status string) error {
	now := time.Now().UTC()

	var completed sql.NullTime
	if status == task.StatusCompleted {
		completed = sql.NullTime{Time: now, Valid: true}
	}

	res, err := s.db.Exec(`
		UPDATE tasks SET status = ?, completed_date = ?, updated_at = ? WHERE id = ?
	`, status, completed, now, taskID)
	if err != nil {
		return err
	}
	return s.checkFound(res, taskID)
}

// SetConfirmation resolves the confirmation gate for a task. Confirming puts
// it into the normal pending flow; rejecting sets the terminal rejected
// status so it is permanently excluded from sync. Rejection also clears
// completed_date, which is set exactly when the status is completed.
func (s *Store) SetConfirmation(taskID string, confirmed bool) error {
	now := time.Now().UTC()

	var res sql.Result
	var err error
	if confirmed {
		res, err = s.db.Exec(`
			UPDATE tasks SET needs_confirmation = 0, updated_at = ? WHERE id = ?
		`, now, taskID)
	} else {
		res, err = s.db.Exec(`
			UPDATE tasks SET needs_confirmation = 0, status = ?, completed_date = NULL, updated_at = ?
			WHERE id = ?
		`, task.StatusRejected, now, taskID)
	}
	if err != nil {
		return err
	}
	return s.checkFound(res, taskID)
}

// UpdateFields applies a partial edit to the task's own fields.
func (s *Store) UpdateFields(taskID string, description, assignee, priority *string, deadline *time.Time) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *description)
	}
	if assignee != nil {
		sets = append(sets, "assignee = ?")
		args = append(args, nullString(*assignee))
	}
	if priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, *priority)
	}
	if deadline != nil {
		sets = append(sets, "deadline = ?")
		args = append(args, nullTime(*deadline))
	}

	args = append(args, taskID)
	res, err := s.db.Exec(`UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	return s.checkFound(res, taskID)
}

// DeleteTask removes the task and its sync rows.
func (s *Store) DeleteTask(taskID string) error {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, taskID)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM external_refs WHERE task_id = ?`, taskID); err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM sync_failures WHERE task_id = ?`, taskID); err != nil {
		return err
	}
	return s.checkFound(res, taskID)
}

// StatusCounts returns the number of tasks per status plus the count awaiting
// confirmation (which is excluded from the pending figure).
func (s *Store) StatusCounts() (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT CASE WHEN needs_confirmation = 1 AND status = 'pending'
			THEN 'awaiting_confirmation' ELSE status END AS bucket, COUNT(*)
		FROM tasks GROUP BY bucket
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var bucket string
		var n int
		if err := rows.Scan(&bucket, &n); err != nil {
			return nil, err
		}
		counts[bucket] = n
	}
	return counts, rows.Err()
}

func (s *Store) checkFound(res sql.Result, taskID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return nil
}

func (s *Store) attachRefs(tasks []*task.Task) ([]*task.Task, error) {
	for _, t := range tasks {
		refs, err := s.ExternalRefs(t.ID)
		if err != nil {
			return nil, err
		}
		t.ExternalSync = refs
	}
	return tasks, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*task.Task, error) {
	var t task.Task
	var assignee, sourceMeeting sql.NullString
	var deadline, completed sql.NullTime

	err := row.Scan(&t.ID, &t.Description, &t.Type, &assignee, &deadline, &t.Priority,
		&t.Status, &completed, &t.NeedsConfirmation, &sourceMeeting, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	t.Assignee = assignee.String
	t.SourceMeeting = sourceMeeting.String
	if deadline.Valid {
		t.Deadline = deadline.Time
	}
	if completed.Valid {
		t.CompletedDate = completed.Time
	}
	return &t, nil
}

func scanTasks(rows *sql.Rows) ([]*task.Task, error) {
	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
