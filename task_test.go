package colltask_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/geopub/colltask"
)

func TestBuildTasks(t *testing.T) {
	tests := []struct {
		name    string
		index   colltask.CollectionIndex
		dataset string
		exp     colltask.TaskList
	}{
		{
			name: "sorted across datasets and resources",
			index: colltask.CollectionIndex{
				"dataset-b": {"resource-2", "resource-1"},
				"dataset-a": {"resource-3"},
			},
			exp: colltask.TaskList{
				{Dataset: "dataset-a", Resource: "resource-3"},
				{Dataset: "dataset-b", Resource: "resource-1"},
				{Dataset: "dataset-b", Resource: "resource-2"},
			},
		},
		{
			name: "filter to one dataset",
			index: colltask.CollectionIndex{
				"dataset-a": {"resource-1"},
				"dataset-b": {"resource-2"},
			},
			dataset: "dataset-a",
			exp: colltask.TaskList{
				{Dataset: "dataset-a", Resource: "resource-1"},
			},
		},
		{
			name: "missing dataset yields empty list",
			index: colltask.CollectionIndex{
				"dataset-a": {"resource-1"},
			},
			dataset: "dataset-missing",
			exp:     nil,
		},
		{
			name: "duplicates across datasets preserved",
			index: colltask.CollectionIndex{
				"dataset-a": {"resource-1"},
				"dataset-b": {"resource-1"},
			},
			exp: colltask.TaskList{
				{Dataset: "dataset-a", Resource: "resource-1"},
				{Dataset: "dataset-b", Resource: "resource-1"},
			},
		},
		{
			name:  "empty index",
			index: colltask.CollectionIndex{},
			exp:   nil,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := colltask.BuildTasks(test.index, test.dataset)
			if !reflect.DeepEqual(got, test.exp) {
				t.Fatalf("unexpected tasks: %v, expected %v", got, test.exp)
			}
		})
	}
}

func TestBuildTasksIdempotent(t *testing.T) {
	index := colltask.CollectionIndex{
		"ds-a": {"r3", "r1"},
		"ds-b": {"r1"},
		"ds-c": {"r9", "r2", "r5"},
	}
	first := colltask.BuildTasks(index, "")
	second := colltask.BuildTasks(index, "")
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("two builds differ: %v vs %v", first, second)
	}
}

func TestSlice(t *testing.T) {
	tasks := colltask.TaskList{
		{Dataset: "ds-a", Resource: "r1"},
		{Dataset: "ds-a", Resource: "r3"},
		{Dataset: "ds-b", Resource: "r1"},
	}

	tests := []struct {
		name   string
		offset int
		limit  int
		exp    colltask.TaskList
		expErr bool
	}{
		{name: "identity", offset: -1, limit: -1, exp: tasks},
		{name: "offset only", offset: 1, limit: -1, exp: tasks[1:]},
		{name: "limit only", offset: -1, limit: 2, exp: tasks[:2]},
		{name: "offset and limit", offset: 1, limit: 1, exp: tasks[1:2]},
		{name: "limit beyond end", offset: -1, limit: 10, exp: tasks},
		{name: "last item", offset: 2, limit: -1, exp: tasks[2:]},
		{name: "offset at end", offset: 3, limit: -1, expErr: true},
		{name: "offset beyond end", offset: 7, limit: -1, expErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := colltask.Slice(tasks, test.offset, test.limit, "")
			if test.expErr {
				if err == nil {
					t.Fatal("expected a range error")
				}
				if _, ok := err.(*colltask.RangeError); !ok {
					t.Fatalf("expected *RangeError, got %T: %v", err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("slicing: %v", err)
			}
			if !reflect.DeepEqual(got, test.exp) {
				t.Fatalf("unexpected slice: %v, expected %v", got, test.exp)
			}
		})
	}
}

func TestSliceRangeErrorMessage(t *testing.T) {
	tasks := colltask.TaskList{{Dataset: "ds-a", Resource: "r1"}}
	_, err := colltask.Slice(tasks, 5, -1, "ds-a")
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"5", "1", "ds-a"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error message %q missing %q", msg, want)
		}
	}
}

// A contiguous partition scheme must cover the list exactly once.
func TestSlicePartitionsCover(t *testing.T) {
	index := colltask.CollectionIndex{
		"ds-a": {"r3", "r1", "r7"},
		"ds-b": {"r1", "r4"},
		"ds-c": {"r2"},
	}
	tasks := colltask.BuildTasks(index, "")

	for _, width := range []int{1, 2, 3, 4, 6} {
		var union colltask.TaskList
		for offset := 0; offset < len(tasks); offset += width {
			shard, err := colltask.Slice(tasks, offset, width, "")
			if err != nil {
				t.Fatalf("slicing offset %d width %d: %v", offset, width, err)
			}
			union = append(union, shard...)
		}
		if !reflect.DeepEqual(union, tasks) {
			t.Fatalf("width %d: union of shards %v != original %v", width, union, tasks)
		}
	}
}
