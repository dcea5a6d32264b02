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

// Package fetch downloads remote files to local paths, concurrently and with
// bounded retry. URLs with an s3:// scheme go through the object-storage
// client; everything else is treated as HTTP(S).
package fetch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/geopub/colltask/progress"
)

// Transport downloads one URL to a local file. The file's parent directory
// is guaranteed to exist by the time Get is called.
type Transport interface {
	Get(url, localPath string) error
}

// Fetcher downloads files with bounded retry. Construct one per process and
// share it: the underlying clients are safe for concurrent use and
// reconstructing them per call wastes connections.
type Fetcher struct {
	maxRetries    int
	retryInterval time.Duration
	raiseError    bool
	region        string
	reporter      progress.Reporter

	s3once sync.Once
	s3err  error
	s3     Transport
	http   Transport
}

// Option is a functional option for a Fetcher.
type Option func(f *Fetcher)

// OptMaxRetries sets the number of attempts per file (default 5).
func OptMaxRetries(n int) Option {
	return func(f *Fetcher) {
		f.maxRetries = n
	}
}

// OptRetryInterval sets a fixed pause between attempts (default none).
func OptRetryInterval(d time.Duration) Option {
	return func(f *Fetcher) {
		f.retryInterval = d
	}
}

// OptRaiseError makes FetchOne return the last error after exhausting
// retries instead of just reporting failure.
func OptRaiseError(raise bool) Option {
	return func(f *Fetcher) {
		f.raiseError = raise
	}
}

// OptRegion sets the AWS region for the object-storage client.
func OptRegion(region string) Option {
	return func(f *Fetcher) {
		f.region = region
	}
}

// OptReporter sets the progress reporter used by FetchAll.
func OptReporter(r progress.Reporter) Option {
	return func(f *Fetcher) {
		f.reporter = r
	}
}

// OptS3Transport overrides the object-storage transport.
func OptS3Transport(t Transport) Option {
	return func(f *Fetcher) {
		f.s3once.Do(func() {})
		f.s3 = t
	}
}

// OptHTTPTransport overrides the HTTP transport.
func OptHTTPTransport(t Transport) Option {
	return func(f *Fetcher) {
		f.http = t
	}
}

// New returns a Fetcher with the options applied. The object-storage client
// is only constructed if an s3:// URL is actually fetched, so HTTP-only runs
// need no credentials.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		maxRetries: 5,
		reporter:   progress.Nop{},
		http:       newHTTPTransport(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) transportFor(url string) (Transport, error) {
	if !strings.HasPrefix(url, "s3://") {
		return f.http, nil
	}
	f.s3once.Do(func() {
		f.s3, f.s3err = newS3Transport(f.region)
	})
	if f.s3err != nil {
		return nil, errors.Wrap(f.s3err, "getting object storage client")
	}
	return f.s3, nil
}

// FetchOne downloads url to localPath, creating parent directories as
// needed. Each failed attempt is logged at error level; after maxRetries
// attempts without success it returns ok=false. err is only non-nil when the
// fetcher was built with OptRaiseError, in which case it is the last
// transport error.
func (f *Fetcher) FetchOne(url, localPath string) (ok bool, err error) {
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		err = errors.Wrapf(err, "creating directory for %s", localPath)
		log.Error(err)
		if f.raiseError {
			return false, err
		}
		return false, nil
	}

	transport, err := f.transportFor(url)
	if err != nil {
		log.Error(err)
		if f.raiseError {
			return false, err
		}
		return false, nil
	}

	var lastErr error
	for attempt := 0; attempt < f.maxRetries; attempt++ {
		if attempt > 0 && f.retryInterval > 0 {
			time.Sleep(f.retryInterval)
		}
		lastErr = transport.Get(url, localPath)
		if lastErr == nil {
			return true, nil
		}
		log.Errorf("error downloading file from url %s: %v", url, lastErr)
	}
	if f.raiseError {
		return false, lastErr
	}
	return false, nil
}

// AggregateError reports every URL that failed in a FetchAll batch. A bare
// count is useless when fetching thousands of files, so the message lists
// each one.
type AggregateError struct {
	Failed []string
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("failed to download %d file(s):\n%s", len(e.Failed), strings.Join(e.Failed, "\n"))
}

// FetchAll downloads every url in urlMap (url -> local path) concurrently,
// bounded by maxParallel workers. It returns the per-URL outcome keyed by
// URL - look results up by URL, not position. All items are attempted even
// when some fail; if any did fail, the returned error is an *AggregateError
// listing every failed URL.
func (f *Fetcher) FetchAll(urlMap map[string]string, maxParallel int) (map[string]bool, error) {
	results := make(map[string]bool, len(urlMap))
	if len(urlMap) == 0 {
		return results, nil
	}
	if maxParallel <= 0 {
		maxParallel = 4
	}
	if maxParallel > len(urlMap) {
		maxParallel = len(urlMap)
	}

	type job struct {
		url  string
		path string
	}
	jobs := make(chan job)
	var wg sync.WaitGroup
	var mu sync.Mutex

	f.reporter.Start(len(urlMap))
	for i := 0; i < maxParallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for jb := range jobs {
				ok, _ := f.FetchOne(jb.url, jb.path)
				mu.Lock()
				results[jb.url] = ok
				mu.Unlock()
				f.reporter.Step()
			}
		}()
	}
	for url, path := range urlMap {
		jobs <- job{url: url, path: path}
	}
	close(jobs)
	wg.Wait()
	f.reporter.Finish()

	var failed []string
	for url, ok := range results {
		if !ok {
			failed = append(failed, url)
		}
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		err := &AggregateError{Failed: failed}
		log.Error(err)
		return results, err
	}
	return results, nil
}
