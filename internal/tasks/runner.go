// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Defaults for Options fields left at zero.
const (
	DefaultMaxConcurrent = 4
	DefaultTimeout       = 15 * time.Second
	DefaultHistory       = 50
)

// ErrStopped is reported for work submitted after Stop.
var ErrStopped = errors.New("task runner stopped")

// Result is delivered to OnDone when a task reaches a terminal state.
type Result struct {
	Task *Task
	Err  error
}

// Options configures a Runner.
type Options struct {
	MaxConcurrent int
	Timeout       time.Duration // per task; negative disables
	History       int
	Logger        *zap.Logger

	// OnDone runs on the task's goroutine after every task.
	OnDone func(Result)
}

// =============================================================================
// TASK RUNNER
// =============================================================================

// Runner executes submitted functions in the background with bounded
// concurrency.
type Runner struct {
	opts      Options
	log       *zap.Logger
	semaphore chan struct{}

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped atomic.Bool

	mu      sync.Mutex
	history []*Task
}

// NewRunner creates a runner. It is ready to accept work immediately.
func NewRunner(opts Options) *Runner {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.History <= 0 {
		opts.History = DefaultHistory
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		opts:      opts,
		log:       log,
		semaphore: make(chan struct{}, opts.MaxConcurrent),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Go submits fn under name. It never blocks.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	task := newTask(name)
	r.remember(task)

	if r.stopped.Load() {
		task.finish(TaskStatusCanceled, ErrStopped)
		r.done(task, ErrStopped)
		return
	}

	r.wg.Add(1)
	go r.execute(task, fn)
}

func (r *Runner) execute(task *Task, fn func(ctx context.Context) error) {
	defer r.wg.Done()

	select {
	case r.semaphore <- struct{}{}:
		defer func() { <-r.semaphore }()
	case <-r.ctx.Done():
		task.finish(TaskStatusCanceled, ErrStopped)
		r.done(task, ErrStopped)
		return
	}

	ctx, cancel := r.ctx, context.CancelFunc(func() {})
	if r.opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(r.ctx, r.opts.Timeout)
	}
	defer cancel()

	_ = task.SetStatus(TaskStatusRunning)
	err := run(ctx, fn)

	switch {
	case err == nil:
		task.finish(TaskStatusComplete, nil)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("task timeout after %v: %w", r.opts.Timeout, err)
		task.finish(TaskStatusFailed, err)
	case errors.Is(r.ctx.Err(), context.Canceled):
		task.finish(TaskStatusCanceled, err)
	default:
		task.finish(TaskStatusFailed, err)
	}
	r.done(task, err)
}

// run calls fn and converts a panic into an error.
func run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return fn(ctx)
}

func (r *Runner) done(task *Task, err error) {
	snapshot := task.Clone()
	if err != nil {
		r.log.Warn("background task failed",
			zap.String("task", snapshot.Name),
			zap.String("id", snapshot.ID),
			zap.String("status", snapshot.Status.String()),
			zap.Error(err))
	} else {
		r.log.Debug("background task complete",
			zap.String("task", snapshot.Name),
			zap.Duration("duration", snapshot.Duration()))
	}
	if r.opts.OnDone != nil {
		r.opts.OnDone(Result{Task: snapshot, Err: err})
	}
}

// =============================================================================
// RUNNER LIFECYCLE
// =============================================================================

// Wait blocks until every submitted task has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Stop cancels running tasks, rejects new ones and waits for the workers
// to return. Safe to call more than once.
func (r *Runner) Stop() {
	r.stopped.Store(true)
	r.cancel()
	r.wg.Wait()
}

// =============================================================================
// HISTORY
// =============================================================================

// Recent returns copies of the most recently submitted tasks, newest first.
func (r *Runner) Recent() []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Task, len(r.history))
	for i, t := range r.history {
		out[len(r.history)-1-i] = t.Clone()
	}
	return out
}

// Running returns the number of tasks currently executing.
func (r *Runner) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, t := range r.history {
		if t.GetStatus() == TaskStatusRunning {
			n++
		}
	}
	return n
}

func (r *Runner) remember(task *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history = append(r.history, task)
	if over := len(r.history) - r.opts.History; over > 0 {
		r.history = append([]*Task(nil), r.history[over:]...)
	}
}
