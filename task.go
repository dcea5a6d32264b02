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
	"fmt"
	"sort"
)

// Task is one unit of work: a single resource to be fetched or transformed
// for a single dataset. Resource is the identifier as requested - if the
// resource has since been redirected, outputs are still named after this
// identifier and only the physical input comes from the redirect target.
type Task struct {
	Dataset  string
	Resource string
}

// ID returns a stable identifier for the task, used in failure reports.
func (t Task) ID() string {
	return t.Dataset + "/" + t.Resource
}

// TaskList is an ordered list of tasks. Lists produced by BuildTasks are
// sorted by dataset then resource, so that offset/limit windows taken by
// independent worker invocations line up against the same ordering.
type TaskList []Task

// CollectionIndex maps each dataset to the resources published under it. A
// resource may appear under more than one dataset. The index is treated as
// read-only; internal ordering of the resource lists is irrelevant.
type CollectionIndex map[string][]string

// BuildTasks builds the canonical task list for an index: one task per
// (dataset, resource) membership, datasets in lexicographic order and
// resources in lexicographic order within each. Duplicate resources across
// datasets are preserved - a resource is transformed once per dataset it
// belongs to. If dataset is non-empty the list is restricted to that
// dataset; a dataset absent from the index yields an empty list, not an
// error.
func BuildTasks(index CollectionIndex, dataset string) TaskList {
	var datasets []string
	if dataset != "" {
		datasets = []string{dataset}
	} else {
		for ds := range index {
			datasets = append(datasets, ds)
		}
		sort.Strings(datasets)
	}

	var tasks TaskList
	for _, ds := range datasets {
		resources, ok := index[ds]
		if !ok {
			continue
		}
		sorted := make([]string, len(resources))
		copy(sorted, resources)
		sort.Strings(sorted)
		for _, resource := range sorted {
			tasks = append(tasks, Task{Dataset: ds, Resource: resource})
		}
	}
	return tasks
}

// RangeError is returned by Slice when the offset falls at or beyond the end
// of the task list. This almost always means a misconfigured shard count, so
// it is a hard failure rather than an empty slice.
type RangeError struct {
	Offset  int
	Total   int
	Dataset string
}

func (e *RangeError) Error() string {
	msg := fmt.Sprintf("offset %d is beyond the total number of transformation tasks (%d)", e.Offset, e.Total)
	if e.Dataset != "" {
		msg += fmt.Sprintf(" (filtering by dataset %q)", e.Dataset)
	}
	return msg
}

// Slice applies an offset and limit window to the task list, in its existing
// order. A negative offset or limit means "not set": no leading drop and no
// truncation respectively, so Slice(tasks, -1, -1, "") returns tasks
// unchanged. The dataset argument is only echoed into the error message when
// the offset is out of range.
func Slice(tasks TaskList, offset, limit int, dataset string) (TaskList, error) {
	if offset >= 0 {
		if offset >= len(tasks) {
			return nil, &RangeError{Offset: offset, Total: len(tasks), Dataset: dataset}
		}
		tasks = tasks[offset:]
	}
	if limit >= 0 && limit < len(tasks) {
		tasks = tasks[:limit]
	}
	return tasks, nil
}
