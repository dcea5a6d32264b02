// Copyright 2024 Geopub Ltd.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package colltask

import (
	"runtime"
	"sort"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/geopub/colltask/progress"
)

// WorkerFunc processes one task. It is invoked concurrently from the
// runner's worker pool; a returned error (or a panic, which the runner
// recovers) marks that task failed without affecting siblings.
type WorkerFunc func(task Task) error

// TaskError is one task's failure, with its message, for the batch report.
type TaskError struct {
	Task    Task
	Message string
}

// Summary is the outcome of a batch run. The runner never decides process
// exit status - callers inspect Failed and Errors and choose for
// themselves. NoOp is true when there were no tasks to run at all, which is
// distinct from running tasks and having them all fail.
type Summary struct {
	Successful int
	Failed     int
	Errors     []TaskError
	NoOp       bool
}

// Runner executes a task list on a bounded pool of workers. Tasks complete
// in no particular order; each worker owns its task's output subpaths
// exclusively while it runs, so no coordination beyond the pool itself is
// needed.
type Runner struct {
	// MaxWorkers bounds the pool. Zero or negative means one worker per
	// available CPU, since the per-task work is assumed CPU-bound.
	MaxWorkers int
	// Reporter receives per-task completion events. Nil disables reporting.
	Reporter progress.Reporter
}

// Run executes fn once per task and collects the outcome. An empty task list
// returns a NoOp summary without starting the pool. Errors in the returned
// summary are ordered by task for reproducible reports.
func (r *Runner) Run(tasks TaskList, fn WorkerFunc) Summary {
	if len(tasks) == 0 {
		log.Warn("no tasks to process after applying filters")
		return Summary{NoOp: true}
	}

	workers := r.MaxWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}
	reporter := r.Reporter
	if reporter == nil {
		reporter = progress.Nop{}
	}
	log.Infof("using %d workers for %d tasks", workers, len(tasks))

	jobs := make(chan Task)
	results := make(chan TaskError, len(tasks))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				results <- TaskError{Task: task, Message: errMessage(runTask(task, fn))}
			}
		}()
	}

	reporter.Start(len(tasks))
	go func() {
		for _, task := range tasks {
			jobs <- task
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	summary := Summary{}
	for res := range results {
		reporter.Step()
		if res.Message == "" {
			summary.Successful++
			continue
		}
		summary.Failed++
		summary.Errors = append(summary.Errors, res)
	}
	reporter.Finish()

	sort.Slice(summary.Errors, func(i, j int) bool {
		return summary.Errors[i].Task.ID() < summary.Errors[j].Task.ID()
	})

	log.Infof("processing complete: %d successful, %d failed", summary.Successful, summary.Failed)
	for _, te := range summary.Errors {
		log.Errorf("failed task %s: %s", te.Task.ID(), te.Message)
	}
	return summary
}

// runTask isolates one invocation of fn: a panic inside a task is converted
// to that task's error so the pool and sibling tasks keep running.
func runTask(task Task, fn WorkerFunc) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("panic processing task %s: %v", task.ID(), p)
		}
	}()
	return fn(task)
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
