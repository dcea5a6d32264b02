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
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/geopub/colltask/fetch"
)

// Remote locates a collection's published files: either an object storage
// bucket or an HTTP(S) base URL. All remote paths live under
// "{collection}-collection/".
type Remote struct {
	Bucket     string
	BaseURL    string
	Collection string
}

// Validate fails fast, before any work starts, when neither a bucket nor a
// base URL was supplied.
func (r Remote) Validate() error {
	if r.Bucket == "" && r.BaseURL == "" {
		return errors.New("either a bucket or a base URL must be provided to download files")
	}
	return nil
}

// URL builds the full URL for a slash-separated remote path.
func (r Remote) URL(remotePath string) string {
	if r.Bucket != "" {
		return fmt.Sprintf("s3://%s/%s-collection/%s", r.Bucket, r.Collection, remotePath)
	}
	base := strings.TrimRight(r.BaseURL, "/")
	return fmt.Sprintf("%s/%s-collection/%s", base, r.Collection, remotePath)
}

// Downloader runs the fetch-side flows of the pipeline: raw resources,
// transformed artifacts, and fingerprint records. The same deterministic
// task ordering and offset/limit windows as the transform flow apply, so a
// download shard sees exactly the resources its transform shard will
// process.
type Downloader struct {
	Collection    Collection
	CollectionDir string
	Remote        Remote

	// Dataset optionally restricts all flows to one dataset.
	Dataset string
	// Offset and Limit window the canonical task list; negative means not
	// set.
	Offset int
	Limit  int

	MaxThreads int
	Fetcher    *fetch.Fetcher
}

func (d *Downloader) tasks() (sliced TaskList, total int, err error) {
	all := BuildTasks(d.Collection.DatasetResourceMap(), d.Dataset)
	sliced, err = Slice(all, d.Offset, d.Limit, d.Dataset)
	if err != nil {
		return nil, 0, err
	}
	return sliced, len(all), nil
}

// Resources downloads the raw resource files needed by the selected window
// of transformation tasks. A resource shared by several datasets is only
// fetched once; resources redirected to nothing are skipped with a log
// line. Returns an *fetch.AggregateError when any file failed.
func (d *Downloader) Resources() error {
	if err := d.Remote.Validate(); err != nil {
		log.Error(err)
		return err
	}
	tasks, total, err := d.tasks()
	if err != nil {
		return err
	}
	redirects := NewRedirects(d.Collection.OldResourceEntries())

	// Unique resources only: the same bytes serve every dataset membership.
	seen := map[string]bool{}
	var requested []string
	for _, task := range tasks {
		if !seen[task.Resource] {
			seen[task.Resource] = true
			requested = append(requested, task.Resource)
		}
	}
	sort.Strings(requested)

	log.Infof("Downloading resources for %d transformation tasks (out of %d total)", len(tasks), total)

	urlMap := map[string]string{}
	for _, res := range requested {
		actual, removed := redirects.Resolve(res)
		if removed {
			log.Infof("Skipping removed resource: %s", res)
			continue
		}
		url := d.Remote.URL(path.Join("collection", "resource", actual))
		urlMap[url] = filepath.Join(d.CollectionDir, "resource", actual)
	}

	log.Infof("Downloading %d resources...", len(urlMap))
	_, err = d.Fetcher.FetchAll(urlMap, d.MaxThreads)
	return err
}

// artifactPaths lists the per-(dataset, resource) files the transform flow
// produces, relative to the working directory; the same relative layout is
// used on the remote side.
func artifactPaths(dirs Dirs, dataset, resource string) []string {
	return []string{
		path.Join(filepath.ToSlash(dirs.Transformed), dataset, resource+".parquet"),
		path.Join(filepath.ToSlash(dirs.Issue), dataset, resource+".csv"),
		path.Join(filepath.ToSlash(dirs.ColumnField), dataset, resource+".csv"),
		path.Join(filepath.ToSlash(dirs.DatasetResource), dataset, resource+".csv"),
		path.Join(filepath.ToSlash(dirs.ConvertedResource), dataset, resource+".csv"),
	}
}

// Transformed downloads the already-computed artifacts for the selected
// window of tasks instead of recomputing them. Retired (410) resources are
// skipped: their artifacts were withdrawn at the source even if still cached
// locally from an earlier run.
func (d *Downloader) Transformed(dirs Dirs) error {
	if err := d.Remote.Validate(); err != nil {
		log.Error(err)
		return err
	}
	tasks, total, err := d.tasks()
	if err != nil {
		return err
	}
	retired := NewRedirects(d.Collection.OldResourceEntries()).RetiredSet()

	log.Infof("Downloading transformed files for %d transformation tasks (out of %d total)", len(tasks), total)

	urlMap := map[string]string{}
	kept := 0
	for _, task := range tasks {
		if retired[task.Resource] {
			log.Infof("Skipping retired resource (status 410): %s", task.Resource)
			continue
		}
		kept++
		for _, rel := range artifactPaths(dirs, task.Dataset, task.Resource) {
			urlMap[d.Remote.URL(rel)] = filepath.FromSlash(rel)
		}
	}

	perTask := 0
	if kept > 0 {
		perTask = len(urlMap) / kept
	}
	log.Infof("Downloading %d files (%d per transformation task)...", len(urlMap), perTask)
	_, err = d.Fetcher.FetchAll(urlMap, d.MaxThreads)
	return err
}

// Fingerprints downloads the per-(dataset, resource) fingerprint records so
// that a following transform run can skip up-to-date resources. Records for
// never-processed resources do not exist remotely, so missing files are
// expected and counted rather than treated as failures; the fetcher should
// be configured with a single attempt per file.
func (d *Downloader) Fingerprints(datasetResourceDir string) (downloaded, notFound int, err error) {
	if err := d.Remote.Validate(); err != nil {
		log.Error(err)
		return 0, 0, err
	}
	tasks := BuildTasks(d.Collection.DatasetResourceMap(), d.Dataset)

	log.Infof("Downloading fingerprint records for %d resources...", len(tasks))

	threads := d.MaxThreads
	if threads <= 0 {
		threads = 4
	}
	jobs := make(chan Task)
	var wg sync.WaitGroup
	var mu sync.Mutex
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				rel := path.Join(filepath.ToSlash(datasetResourceDir), task.Dataset, task.Resource+".csv")
				ok, _ := d.Fetcher.FetchOne(d.Remote.URL(rel), filepath.FromSlash(rel))
				if ok {
					mu.Lock()
					downloaded++
					mu.Unlock()
				}
			}
		}()
	}
	for _, task := range tasks {
		jobs <- task
	}
	close(jobs)
	wg.Wait()

	notFound = len(tasks) - downloaded
	log.Infof("Downloaded %d fingerprint records (%d not found - these resources will be processed)", downloaded, notFound)
	return downloaded, notFound, nil
}
