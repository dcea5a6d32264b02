package colltask_test

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geopub/colltask"
)

func TestRunnerEmpty(t *testing.T) {
	r := &colltask.Runner{}
	called := false
	summary := r.Run(nil, func(task colltask.Task) error {
		called = true
		return nil
	})
	assert.True(t, summary.NoOp)
	assert.Equal(t, 0, summary.Successful)
	assert.Equal(t, 0, summary.Failed)
	assert.False(t, called, "worker must not run for an empty task list")
}

func TestRunnerCounts(t *testing.T) {
	tasks := colltask.TaskList{
		{Dataset: "ds-a", Resource: "r1"},
		{Dataset: "ds-a", Resource: "r2"},
		{Dataset: "ds-b", Resource: "r1"},
		{Dataset: "ds-b", Resource: "r2"},
	}

	r := &colltask.Runner{MaxWorkers: 2}
	summary := r.Run(tasks, func(task colltask.Task) error {
		if task.Resource == "r2" {
			return errors.Errorf("broken %s", task.ID())
		}
		return nil
	})

	require.False(t, summary.NoOp)
	assert.Equal(t, 2, summary.Successful)
	assert.Equal(t, 2, summary.Failed)
	require.Len(t, summary.Errors, 2)

	// errors come back sorted by task regardless of completion order
	assert.Equal(t, "ds-a/r2", summary.Errors[0].Task.ID())
	assert.Equal(t, "ds-b/r2", summary.Errors[1].Task.ID())
	assert.Contains(t, summary.Errors[0].Message, "broken ds-a/r2")
}

func TestRunnerPanicIsolation(t *testing.T) {
	tasks := colltask.TaskList{
		{Dataset: "ds-a", Resource: "r1"},
		{Dataset: "ds-a", Resource: "r2"},
		{Dataset: "ds-a", Resource: "r3"},
	}

	r := &colltask.Runner{MaxWorkers: 1}
	summary := r.Run(tasks, func(task colltask.Task) error {
		if task.Resource == "r2" {
			panic("boom")
		}
		return nil
	})

	assert.Equal(t, 2, summary.Successful)
	require.Equal(t, 1, summary.Failed)
	msg := summary.Errors[0].Message
	assert.True(t, strings.Contains(msg, "panic") && strings.Contains(msg, "boom"),
		"panic message %q must identify the panic", msg)
}

func TestRunnerRunsEveryTaskOnce(t *testing.T) {
	var tasks colltask.TaskList
	for _, ds := range []string{"ds-a", "ds-b", "ds-c"} {
		for _, res := range []string{"r1", "r2", "r3", "r4", "r5"} {
			tasks = append(tasks, colltask.Task{Dataset: ds, Resource: res})
		}
	}

	var mu sync.Mutex
	seen := map[string]int{}
	r := &colltask.Runner{MaxWorkers: 4}
	summary := r.Run(tasks, func(task colltask.Task) error {
		mu.Lock()
		seen[task.ID()]++
		mu.Unlock()
		return nil
	})

	assert.Equal(t, len(tasks), summary.Successful)
	require.Len(t, seen, len(tasks))
	for id, count := range seen {
		assert.Equal(t, 1, count, "task %s ran %d times", id, count)
	}
}

func TestRunnerBoundsConcurrency(t *testing.T) {
	tasks := make(colltask.TaskList, 16)
	for i := range tasks {
		tasks[i] = colltask.Task{Dataset: "ds", Resource: string(rune('a' + i))}
	}

	var active, peak int32
	r := &colltask.Runner{MaxWorkers: 3}
	summary := r.Run(tasks, func(task colltask.Task) error {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		atomic.AddInt32(&active, -1)
		return nil
	})

	assert.Equal(t, 16, summary.Successful)
	if p := atomic.LoadInt32(&peak); p > 3 {
		t.Fatalf("observed %d concurrent workers, pool is bounded at 3", p)
	}
}
