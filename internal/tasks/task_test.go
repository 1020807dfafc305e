// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector gathers OnDone results.
type collector struct {
	mu      sync.Mutex
	results []Result
}

func (c *collector) add(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

func (c *collector) all() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Result(nil), c.results...)
}

func TestTaskStatusTransitions(t *testing.T) {
	task := newTask("t")
	assert.Equal(t, TaskStatusQueued, task.GetStatus())

	assert.Error(t, task.SetStatus(TaskStatusComplete), "queued cannot complete")
	require.NoError(t, task.SetStatus(TaskStatusRunning))
	require.NoError(t, task.SetStatus(TaskStatusComplete))
	assert.Error(t, task.SetStatus(TaskStatusRunning), "terminal is final")
	assert.GreaterOrEqual(t, task.Duration(), time.Duration(0))
}

func TestRunner_Success(t *testing.T) {
	var c collector
	r := NewRunner(Options{OnDone: c.add})

	r.Go("ok", func(ctx context.Context) error { return nil })
	r.Wait()

	results := c.all()
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "ok", results[0].Task.Name)
	assert.Equal(t, TaskStatusComplete, results[0].Task.Status)
	assert.NotEmpty(t, results[0].Task.ID)
}

func TestRunner_FailureAndPanic(t *testing.T) {
	var c collector
	r := NewRunner(Options{OnDone: c.add})
	boom := errors.New("boom")

	r.Go("fails", func(ctx context.Context) error { return boom })
	r.Go("panics", func(ctx context.Context) error { panic("oops") })
	r.Wait()

	results := c.all()
	require.Len(t, results, 2)
	for _, res := range results {
		assert.Error(t, res.Err)
		assert.Equal(t, TaskStatusFailed, res.Task.Status)
		if res.Task.Name == "fails" {
			assert.ErrorIs(t, res.Err, boom)
		} else {
			assert.Contains(t, res.Err.Error(), "panicked")
		}
	}
}

func TestRunner_Timeout(t *testing.T) {
	var c collector
	r := NewRunner(Options{Timeout: 20 * time.Millisecond, OnDone: c.add})

	r.Go("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	r.Wait()

	results := c.all()
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
	assert.Contains(t, results[0].Task.Error, "timeout")
}

func TestRunner_ConcurrencyLimit(t *testing.T) {
	r := NewRunner(Options{MaxConcurrent: 2})

	var active, peak int32
	for i := 0; i < 8; i++ {
		r.Go("work", func(ctx context.Context) error {
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return nil
		})
	}
	r.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestRunner_StopCancelsAndRejects(t *testing.T) {
	var c collector
	r := NewRunner(Options{Timeout: -1, OnDone: c.add})

	started := make(chan struct{})
	r.Go("blocked", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started
	r.Stop()
	r.Go("late", func(ctx context.Context) error { return nil })
	r.Stop()

	results := c.all()
	require.Len(t, results, 2)
	for _, res := range results {
		assert.Equal(t, TaskStatusCanceled, res.Task.Status, res.Task.Name)
	}
	assert.ErrorIs(t, results[1].Err, ErrStopped)
}

func TestRunner_RecentIsBounded(t *testing.T) {
	r := NewRunner(Options{History: 3})
	for _, name := range []string{"a", "b", "c", "d"} {
		r.Go(name, func(ctx context.Context) error { return nil })
	}
	r.Wait()

	recent := r.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, "d", recent[0].Name)
	assert.Equal(t, "b", recent[2].Name)
	assert.Equal(t, 0, r.Running())
}
