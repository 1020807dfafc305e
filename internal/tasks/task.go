// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// TASK STATUS
// =============================================================================

// TaskStatus represents the current state of a background task.
type TaskStatus string

const (
	// TaskStatusQueued indicates the task is waiting for a worker slot
	TaskStatusQueued TaskStatus = "Queued"

	// TaskStatusRunning indicates the task is currently executing
	TaskStatusRunning TaskStatus = "Running"

	// TaskStatusComplete indicates the task finished successfully
	TaskStatusComplete TaskStatus = "Complete"

	// TaskStatusFailed indicates the task returned an error or timed out
	TaskStatusFailed TaskStatus = "Failed"

	// TaskStatusCanceled indicates the runner stopped before the task finished
	TaskStatusCanceled TaskStatus = "Canceled"
)

// String returns the string representation of the task status.
func (s TaskStatus) String() string {
	return string(s)
}

// Terminal reports whether no further transitions are possible.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusComplete || s == TaskStatusFailed || s == TaskStatusCanceled
}

// =============================================================================
// TASK STRUCTURE
// =============================================================================

// Task records one submitted job.
type Task struct {
	ID        string
	Name      string
	Status    TaskStatus
	Submitted time.Time
	StartTime time.Time
	EndTime   time.Time
	Error     string

	mu sync.RWMutex
}

func newTask(name string) *Task {
	return &Task{
		ID:        uuid.New().String(),
		Name:      name,
		Status:    TaskStatusQueued,
		Submitted: time.Now(),
	}
}

// =============================================================================
// TASK METHODS
// =============================================================================

// SetStatus moves the task to status. Valid transitions are
// Queued -> Running -> Complete/Failed/Canceled, plus Queued -> Canceled.
func (t *Task) SetStatus(status TaskStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !validTransition(t.Status, status) {
		return fmt.Errorf("invalid status transition from %s to %s", t.Status, status)
	}
	t.Status = status
	switch {
	case status == TaskStatusRunning:
		t.StartTime = time.Now()
	case status.Terminal():
		t.EndTime = time.Now()
	}
	return nil
}

func validTransition(from, to TaskStatus) bool {
	switch from {
	case TaskStatusQueued:
		return to == TaskStatusRunning || to == TaskStatusCanceled
	case TaskStatusRunning:
		return to.Terminal()
	default:
		return false
	}
}

// GetStatus returns the current status.
func (t *Task) GetStatus() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status
}

// finish sets the terminal status and error text.
func (t *Task) finish(status TaskStatus, err error) {
	if setErr := t.SetStatus(status); setErr != nil {
		return
	}
	if err != nil {
		t.mu.Lock()
		t.Error = err.Error()
		t.mu.Unlock()
	}
}

// Duration returns how long the task ran, or has been running.
func (t *Task) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.StartTime.IsZero() {
		return 0
	}
	if t.EndTime.IsZero() {
		return time.Since(t.StartTime)
	}
	return t.EndTime.Sub(t.StartTime)
}

// Summary returns a one-line description.
func (t *Task) Summary() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := fmt.Sprintf("%s [%s]", t.Name, t.Status)
	if t.Error != "" {
		s += ": " + t.Error
	}
	return s
}

// Clone returns a copy safe to hand to other goroutines.
func (t *Task) Clone() *Task {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return &Task{
		ID:        t.ID,
		Name:      t.Name,
		Status:    t.Status,
		Submitted: t.Submitted,
		StartTime: t.StartTime,
		EndTime:   t.EndTime,
		Error:     t.Error,
	}
}
