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
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/geopub/colltask/progress"
)

// Dirs is the bundle of working directories the transform engine reads and
// writes. Per-dataset subdirectories are created on demand with
// create-if-absent semantics, so concurrent workers targeting the same
// dataset race harmlessly.
type Dirs struct {
	Collection        string
	Pipeline          string
	Specification     string
	Cache             string
	Transformed       string
	Issue             string
	OperationalIssue  string
	OutputLog         string
	ColumnField       string
	DatasetResource   string
	ConvertedResource string
}

// DefaultDirs returns the conventional working-directory layout.
func DefaultDirs() Dirs {
	return Dirs{
		Collection:        "collection/",
		Pipeline:          "pipeline/",
		Specification:     "specification/",
		Cache:             "var/cache/",
		Transformed:       "transformed/",
		Issue:             "issue/",
		OperationalIssue:  "performance/operational_issue/",
		OutputLog:         "log/",
		ColumnField:       "var/column-field/",
		DatasetResource:   "var/dataset-resource/",
		ConvertedResource: "var/converted-resource/",
	}
}

// TransformRequest is everything the transform engine needs for one task.
// Resource is the identifier as requested and names the output file;
// ActualResource is the redirect target whose bytes are actually read. The
// two differ only for redirected resources.
type TransformRequest struct {
	Dataset        string
	Resource       string
	ActualResource string
	InputPath      string
	OutputPath     string
	Endpoints      []string
	Organisations  []string
	StartDate      string
	Dirs           Dirs
}

// TransformFunc invokes the external transform engine for one request. It is
// treated as opaque and possibly failing; a returned error is recorded
// against the task without aborting the batch.
type TransformFunc func(req TransformRequest) error

// Transformer runs the transform flow: the canonical task list, minus
// already-up-to-date resources, windowed to this invocation's shard, with
// redirects resolved at execution time, fanned out to a bounded worker pool.
type Transformer struct {
	Collection Collection
	Dirs       Dirs

	// Dataset optionally restricts the run to one dataset.
	Dataset string
	// Offset and Limit window the canonical task list; negative means not
	// set.
	Offset int
	Limit  int

	// MaxWorkers bounds the pool; zero means one worker per CPU.
	MaxWorkers int
	// Reprocess disables the fingerprint check and re-runs everything.
	Reprocess bool
	// CodeVersion is the code axis of the fingerprint, normally the build
	// version.
	CodeVersion string

	Reporter progress.Reporter
	Run      TransformFunc
}

// Process executes the flow and returns the batch summary. A RangeError from
// the shard window propagates before any work starts; per-task transform
// failures only show up in the summary.
func (t *Transformer) Process() (Summary, error) {
	index := t.Collection.DatasetResourceMap()
	redirects := NewRedirects(t.Collection.OldResourceEntries())

	tasks := BuildTasks(index, t.Dataset)
	total := len(tasks)

	var store *FingerprintStore
	var current Fingerprint
	if !t.Reprocess {
		configHash, err := HashDirectory(t.Dirs.Pipeline)
		if err != nil {
			return Summary{}, errors.Wrap(err, "hashing pipeline directory")
		}
		specHash, err := HashDirectory(t.Dirs.Specification)
		if err != nil {
			return Summary{}, errors.Wrap(err, "hashing specification directory")
		}
		store = NewFingerprintStore(t.Dirs.DatasetResource)
		current = Fingerprint{
			CodeVersion:       t.CodeVersion,
			ConfigHash:        configHash,
			SpecificationHash: specHash,
		}

		var stale TaskList
		for _, task := range tasks {
			if store.NeedsProcessing(task.Dataset, task.Resource, current) {
				stale = append(stale, task)
			}
		}
		log.Infof("Skipping %d already up-to-date resources, %d to process", len(tasks)-len(stale), len(stale))
		tasks = stale
	}

	tasks, err := Slice(tasks, t.Offset, t.Limit, t.Dataset)
	if err != nil {
		log.Error(err)
		return Summary{}, err
	}

	// Redirects resolve at execution time, after the shard window is taken,
	// so every shard windows the same list.
	requests := map[Task]TransformRequest{}
	var run TaskList
	for _, task := range tasks {
		actual, removed := redirects.Resolve(task.Resource)
		if removed {
			log.Infof("Skipping removed resource: %s", task.Resource)
			continue
		}
		requests[task] = TransformRequest{
			Dataset:        task.Dataset,
			Resource:       task.Resource,
			ActualResource: actual,
			InputPath:      t.Collection.ResourcePath(actual),
			OutputPath:     filepath.Join(t.Dirs.Transformed, task.Dataset, task.Resource+".csv"),
			Endpoints:      t.Collection.ResourceEndpoints(task.Resource),
			Organisations:  t.Collection.ResourceOrganisations(task.Resource),
			StartDate:      t.Collection.ResourceStartDate(task.Resource),
			Dirs:           t.Dirs,
		}
		run = append(run, task)
	}

	log.Infof("Processing %d transformation tasks (out of %d total)", len(run), total)

	runner := &Runner{MaxWorkers: t.MaxWorkers, Reporter: t.Reporter}
	summary := runner.Run(run, func(task Task) error {
		req := requests[task]
		if err := t.makeDatasetDirs(task.Dataset); err != nil {
			return err
		}
		if err := t.Run(req); err != nil {
			return err
		}
		if store != nil {
			if err := store.Write(task.Dataset, task.Resource, current); err != nil {
				return err
			}
		}
		return nil
	})
	return summary, nil
}

// makeDatasetDirs creates the output directories for one dataset. MkdirAll
// is idempotent, so concurrent workers on the same dataset are fine.
func (t *Transformer) makeDatasetDirs(dataset string) error {
	dirs := []string{
		filepath.Join(t.Dirs.Transformed, dataset),
		filepath.Join(t.Dirs.Issue, dataset),
		t.Dirs.OperationalIssue,
		t.Dirs.OutputLog,
		filepath.Join(t.Dirs.ColumnField, dataset),
		filepath.Join(t.Dirs.DatasetResource, dataset),
		filepath.Join(t.Dirs.ConvertedResource, dataset),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "creating directory %s", dir)
		}
	}
	return nil
}

// ExecTransform returns a TransformFunc that invokes an external transform
// engine executable once per task. The engine's combined output is folded
// into the task error on failure, since it is the only diagnostic the engine
// leaves behind.
func ExecTransform(command string) TransformFunc {
	return func(req TransformRequest) error {
		args := []string{
			"--dataset", req.Dataset,
			"--input-path", req.InputPath,
			"--output-path", req.OutputPath,
			"--collection-dir", req.Dirs.Collection,
			"--pipeline-dir", req.Dirs.Pipeline,
			"--specification-dir", req.Dirs.Specification,
			"--cache-dir", req.Dirs.Cache,
			"--issue-dir", filepath.Join(req.Dirs.Issue, req.Dataset),
			"--operational-issue-dir", req.Dirs.OperationalIssue,
			"--output-log-dir", req.Dirs.OutputLog,
			"--column-field-dir", filepath.Join(req.Dirs.ColumnField, req.Dataset),
			"--dataset-resource-dir", filepath.Join(req.Dirs.DatasetResource, req.Dataset),
			"--converted-resource-dir", filepath.Join(req.Dirs.ConvertedResource, req.Dataset),
		}
		if req.StartDate != "" {
			args = append(args, "--entry-date", req.StartDate)
		}
		for _, e := range req.Endpoints {
			args = append(args, "--endpoint", e)
		}
		for _, o := range req.Organisations {
			args = append(args, "--organisation", o)
		}
		if req.ActualResource != req.Resource {
			// The engine needs the requested identifier to stamp outputs
			// with when the input bytes come from a redirect target.
			args = append(args, "--resource", req.Resource)
		}

		out, err := exec.Command(command, args...).CombinedOutput()
		if err != nil {
			msg := strings.TrimSpace(string(out))
			if msg != "" {
				return errors.Wrapf(err, "transform engine: %s", msg)
			}
			return errors.Wrap(err, "transform engine")
		}
		return nil
	}
}
