package export

import (
	"log/slog"
	"sync"
	"time"
)

// Update carries the fields an export task transition may change. Nil
// pointers leave the current value untouched.
type Update struct {
	Status          *Status
	Progress        *int
	Error           *string
	RowCount        *int64
	FileSizeBytes   *int64
	StartedAt       *time.Time
	CompletedAt     *time.Time
	ExecutionTimeMS *int64
}

// Registry is the in-memory store of export tasks. It enforces the
// per-user concurrent task limit atomically: counting a user's active
// tasks and inserting a new one happen under the same lock, so two
// racing submissions cannot both slip under the limit.
type Registry struct {
	mu           sync.Mutex
	tasks        map[string]*Task
	perUserLimit int
	logger       *slog.Logger
}

// NewRegistry creates a Registry with the given per-user active task
// limit.
func NewRegistry(perUserLimit int) *Registry {
	return &Registry{
		tasks:        make(map[string]*Task),
		perUserLimit: perUserLimit,
		logger:       slog.Default().With("component", "export.registry"),
	}
}

// Add registers a new task. Returns ConcurrentTaskLimitError when the
// user already has the maximum number of active tasks.
func (r *Registry) Add(task *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := 0
	for _, t := range r.tasks {
		if t.UserID == task.UserID && t.Status.Active() {
			active++
		}
	}
	if active >= r.perUserLimit {
		return NewConcurrentTaskLimitError(task.UserID, r.perUserLimit)
	}

	r.tasks[task.ID] = task
	return nil
}

// Get returns a point-in-time snapshot of the task.
func (r *Registry) Get(id string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return Snapshot{}, false
	}
	return task.snapshot(), true
}

// Update applies a state transition to the task. Updates to unknown or
// already-terminal tasks are logged and dropped, and progress never
// moves backwards.
func (r *Registry) Update(id string, upd Update) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		r.logger.Warn("update for unknown task", "task_id", id)
		return
	}
	if task.Status.Terminal() {
		r.logger.Warn("update for terminal task dropped", "task_id", id, "status", task.Status)
		return
	}

	if upd.Status != nil {
		task.Status = *upd.Status
	}
	if upd.Progress != nil && *upd.Progress > task.Progress {
		task.Progress = *upd.Progress
	}
	if upd.Error != nil {
		task.Error = *upd.Error
	}
	if upd.RowCount != nil {
		task.RowCount = upd.RowCount
	}
	if upd.FileSizeBytes != nil {
		task.FileSizeBytes = upd.FileSizeBytes
	}
	if upd.StartedAt != nil {
		task.StartedAt = upd.StartedAt
	}
	if upd.CompletedAt != nil && task.CompletedAt == nil {
		task.CompletedAt = upd.CompletedAt
	}
	if upd.ExecutionTimeMS != nil {
		task.ExecutionTimeMS = upd.ExecutionTimeMS
	}
}

// Cancel marks an active task cancelled. The cooperative flag is set
// first so the runner stops at its next row check; the status flips
// immediately so readers see CANCELLED without waiting for the runner.
// Returns false when the task does not exist or is already terminal.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok || task.Status.Terminal() {
		return false
	}

	task.Cancel()
	task.Status = StatusCancelled
	if task.CompletedAt == nil {
		now := time.Now().UTC()
		task.CompletedAt = &now
	}
	return true
}

// Remove deletes a task from the registry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
}

// ActiveCount returns the number of active tasks for the user.
func (r *Registry) ActiveCount(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, t := range r.tasks {
		if t.UserID == userID && t.Status.Active() {
			n++
		}
	}
	return n
}

// Snapshots returns point-in-time copies of every registered task.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Snapshot, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t.snapshot())
	}
	return out
}
