package task

// SyncError describes one task's failure inside a batch.
type SyncError struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

// SyncResult aggregates the outcome of a batch sync operation. A batch with
// failures is still a normal business outcome, not a protocol error.
type SyncResult struct {
	Synced  int         `json:"synced"`
	Failed  int         `json:"failed"`
	Skipped int         `json:"skipped,omitempty"`
	Errors  []SyncError `json:"errors,omitempty"`
}

// Success reports whether every attempted task synced.
func (r *SyncResult) Success() bool {
	return r.Failed == 0
}

// AddFailure records one task's failure and keeps the batch going.
func (r *SyncResult) AddFailure(taskID, message string) {
	r.Failed++
	r.Errors = append(r.Errors, SyncError{TaskID: taskID, Message: message})
}
