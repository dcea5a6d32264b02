package colltask_test

import (
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/geopub/colltask"
)

// fakeCollection is an in-memory Collection for pipeline tests.
type fakeCollection struct {
	name          string
	dir           string
	index         colltask.CollectionIndex
	oldResources  []colltask.RedirectEntry
	endpoints     map[string][]string
	organisations map[string][]string
	startDates    map[string]string
}

func (c *fakeCollection) Name() string                                 { return c.name }
func (c *fakeCollection) DatasetResourceMap() colltask.CollectionIndex { return c.index }
func (c *fakeCollection) OldResourceEntries() []colltask.RedirectEntry { return c.oldResources }
func (c *fakeCollection) ResourcePath(resource string) string {
	return filepath.Join(c.dir, "resource", resource)
}
func (c *fakeCollection) ResourceEndpoints(resource string) []string {
	return c.endpoints[resource]
}
func (c *fakeCollection) ResourceOrganisations(resource string) []string {
	return c.organisations[resource]
}
func (c *fakeCollection) ResourceStartDate(resource string) string {
	return c.startDates[resource]
}

// recordingTransform captures every request handed to the transform engine.
type recordingTransform struct {
	mu       sync.Mutex
	requests []colltask.TransformRequest
	fail     map[string]bool
}

func (r *recordingTransform) run(req colltask.TransformRequest) error {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	if r.fail[req.Dataset+"/"+req.Resource] {
		return errors.New("engine exploded")
	}
	return nil
}

func (r *recordingTransform) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, req := range r.requests {
		ids = append(ids, req.Dataset+"/"+req.Resource)
	}
	sort.Strings(ids)
	return ids
}

func tempDirs(t *testing.T) colltask.Dirs {
	t.Helper()
	root := t.TempDir()
	return colltask.Dirs{
		Collection:        filepath.Join(root, "collection"),
		Pipeline:          filepath.Join(root, "pipeline"),
		Specification:     filepath.Join(root, "specification"),
		Cache:             filepath.Join(root, "cache"),
		Transformed:       filepath.Join(root, "transformed"),
		Issue:             filepath.Join(root, "issue"),
		OperationalIssue:  filepath.Join(root, "operational-issue"),
		OutputLog:         filepath.Join(root, "log"),
		ColumnField:       filepath.Join(root, "column-field"),
		DatasetResource:   filepath.Join(root, "dataset-resource"),
		ConvertedResource: filepath.Join(root, "converted-resource"),
	}
}

func TestTransformerRemovedResourcesSkipped(t *testing.T) {
	coll := &fakeCollection{
		name: "test-coll",
		dir:  t.TempDir(),
		index: colltask.CollectionIndex{
			"ds-a": {"r3", "r1"},
			"ds-b": {"r1"},
		},
		oldResources: []colltask.RedirectEntry{
			{OldResource: "r1", Resource: "", Status: "410"},
		},
	}
	engine := &recordingTransform{}
	tr := &colltask.Transformer{
		Collection: coll,
		Dirs:       tempDirs(t),
		Offset:     -1,
		Limit:      -1,
		MaxWorkers: 2,
		Reprocess:  true,
		Run:        engine.run,
	}

	summary, err := tr.Process()
	if err != nil {
		t.Fatalf("processing: %v", err)
	}
	// r1 is removed in both datasets, leaving only ds-a/r3
	if summary.Successful != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if got := engine.ids(); !reflect.DeepEqual(got, []string{"ds-a/r3"}) {
		t.Fatalf("ran %v, expected only ds-a/r3", got)
	}
}

func TestTransformerShardWindow(t *testing.T) {
	coll := &fakeCollection{
		name: "test-coll",
		dir:  t.TempDir(),
		index: colltask.CollectionIndex{
			"ds-a": {"r3", "r1"},
			"ds-b": {"r1"},
		},
	}
	engine := &recordingTransform{}
	tr := &colltask.Transformer{
		Collection: coll,
		Dirs:       tempDirs(t),
		Offset:     1,
		Limit:      1,
		Reprocess:  true,
		Run:        engine.run,
	}

	summary, err := tr.Process()
	if err != nil {
		t.Fatalf("processing: %v", err)
	}
	if summary.Successful != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	// canonical order is ds-a/r1, ds-a/r3, ds-b/r1; the window picks the second
	if got := engine.ids(); !reflect.DeepEqual(got, []string{"ds-a/r3"}) {
		t.Fatalf("ran %v, expected only ds-a/r3", got)
	}
}

func TestTransformerShardOutOfRange(t *testing.T) {
	coll := &fakeCollection{
		name:  "test-coll",
		dir:   t.TempDir(),
		index: colltask.CollectionIndex{"ds-a": {"r1"}},
	}
	tr := &colltask.Transformer{
		Collection: coll,
		Dirs:       tempDirs(t),
		Offset:     5,
		Limit:      -1,
		Reprocess:  true,
		Run:        (&recordingTransform{}).run,
	}

	_, err := tr.Process()
	if err == nil {
		t.Fatal("expected range error")
	}
	if _, ok := err.(*colltask.RangeError); !ok {
		t.Fatalf("expected *RangeError, got %T: %v", err, err)
	}
}

func TestTransformerRedirectedResource(t *testing.T) {
	coll := &fakeCollection{
		name:  "test-coll",
		dir:   t.TempDir(),
		index: colltask.CollectionIndex{"ds-a": {"r1"}},
		oldResources: []colltask.RedirectEntry{
			{OldResource: "r1", Resource: "r9", Status: "301"},
		},
		startDates: map[string]string{"r1": "2020-01-01"},
	}
	engine := &recordingTransform{}
	dirs := tempDirs(t)
	tr := &colltask.Transformer{
		Collection: coll,
		Dirs:       dirs,
		Offset:     -1,
		Limit:      -1,
		Reprocess:  true,
		Run:        engine.run,
	}

	summary, err := tr.Process()
	if err != nil {
		t.Fatalf("processing: %v", err)
	}
	if summary.Successful != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	req := engine.requests[0]
	if req.Resource != "r1" || req.ActualResource != "r9" {
		t.Fatalf("request = %+v", req)
	}
	// input bytes come from the redirect target, output keeps the requested name
	if exp := coll.ResourcePath("r9"); req.InputPath != exp {
		t.Fatalf("input path = %q, expected %q", req.InputPath, exp)
	}
	if exp := filepath.Join(dirs.Transformed, "ds-a", "r1.csv"); req.OutputPath != exp {
		t.Fatalf("output path = %q, expected %q", req.OutputPath, exp)
	}
	if req.StartDate != "2020-01-01" {
		t.Fatalf("start date = %q", req.StartDate)
	}
}

func TestTransformerFingerprintSkip(t *testing.T) {
	coll := &fakeCollection{
		name:  "test-coll",
		dir:   t.TempDir(),
		index: colltask.CollectionIndex{"ds-a": {"r1", "r2"}},
	}
	dirs := tempDirs(t)

	first := &recordingTransform{}
	tr := &colltask.Transformer{
		Collection:  coll,
		Dirs:        dirs,
		Offset:      -1,
		Limit:       -1,
		CodeVersion: "v1",
		Run:         first.run,
	}
	summary, err := tr.Process()
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if summary.Successful != 2 {
		t.Fatalf("first run summary = %+v", summary)
	}

	// everything is up to date now, so a second run does nothing
	second := &recordingTransform{}
	tr.Run = second.run
	summary, err = tr.Process()
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !summary.NoOp {
		t.Fatalf("second run summary = %+v, expected no-op", summary)
	}
	if len(second.ids()) != 0 {
		t.Fatalf("second run processed %v", second.ids())
	}

	// a new code version invalidates every record
	third := &recordingTransform{}
	tr.CodeVersion = "v2"
	tr.Run = third.run
	summary, err = tr.Process()
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if summary.Successful != 2 {
		t.Fatalf("third run summary = %+v", summary)
	}
}

func TestTransformerFailedTaskNoFingerprint(t *testing.T) {
	coll := &fakeCollection{
		name:  "test-coll",
		dir:   t.TempDir(),
		index: colltask.CollectionIndex{"ds-a": {"r1", "r2"}},
	}
	dirs := tempDirs(t)

	engine := &recordingTransform{fail: map[string]bool{"ds-a/r2": true}}
	tr := &colltask.Transformer{
		Collection:  coll,
		Dirs:        dirs,
		Offset:      -1,
		Limit:       -1,
		CodeVersion: "v1",
		Run:         engine.run,
	}
	summary, err := tr.Process()
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if summary.Successful != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Errors[0].Task.ID() != "ds-a/r2" {
		t.Fatalf("errors = %+v", summary.Errors)
	}

	// the failed task stays stale and is retried on the next run
	retry := &recordingTransform{}
	tr.Run = retry.run
	if _, err := tr.Process(); err != nil {
		t.Fatalf("retry run: %v", err)
	}
	if got := retry.ids(); !reflect.DeepEqual(got, []string{"ds-a/r2"}) {
		t.Fatalf("retry ran %v, expected only ds-a/r2", got)
	}
}
