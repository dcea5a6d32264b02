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

	"github.com/pkg/errors"

	"github.com/geopub/colltask/fetch"
	"github.com/geopub/colltask/progress"
)

// newDownloader loads the collection once and wires up a Downloader. Every
// download Main funnels through here so loading happens exactly one time
// per invocation.
func newDownloader(collectionName, collectionDir, bucket, baseURL, dataset string, offset, limit, maxThreads int, fetcher *fetch.Fetcher) (*Downloader, error) {
	coll, err := LoadCollection(collectionName, collectionDir)
	if err != nil {
		return nil, errors.Wrap(err, "loading collection")
	}
	return &Downloader{
		Collection:    coll,
		CollectionDir: collectionDir,
		Remote: Remote{
			Bucket:     bucket,
			BaseURL:    baseURL,
			Collection: collectionName,
		},
		Dataset:    dataset,
		Offset:     offset,
		Limit:      limit,
		MaxThreads: maxThreads,
		Fetcher:    fetcher,
	}, nil
}

// DownloadMain is the configuration for downloading raw resources.
type DownloadMain struct {
	CollectionDir  string `help:"Path to the collection directory."`
	CollectionName string `help:"Collection name used to construct remote URLs."`
	Bucket         string `help:"S3 bucket name to download from (constructs s3:// URLs)."`
	BaseURL        string `help:"Base URL for HTTP(S) downloads."`
	Region         string `help:"AWS region for bucket downloads."`
	Dataset        string `help:"Only consider resources in this dataset."`
	Offset         int    `help:"Leading tasks to skip from the canonical ordering. -1 for none."`
	Limit          int    `help:"Maximum tasks to keep after the offset. -1 for no limit."`
	MaxThreads     int    `help:"Maximum number of concurrent downloads."`
	MaxRetries     int    `help:"Download attempts per file."`
}

// NewDownloadMain gets a DownloadMain with the default configuration.
func NewDownloadMain() *DownloadMain {
	return &DownloadMain{
		CollectionDir: "collection/",
		Offset:        -1,
		Limit:         -1,
		MaxThreads:    4,
		MaxRetries:    5,
	}
}

// Run downloads the raw resources for the configured window of tasks.
func (m *DownloadMain) Run() error {
	fetcher := fetch.New(
		fetch.OptMaxRetries(m.MaxRetries),
		fetch.OptRegion(m.Region),
		fetch.OptReporter(progress.Auto(os.Stdout, "Downloading files")),
	)
	d, err := newDownloader(m.CollectionName, m.CollectionDir, m.Bucket, m.BaseURL, m.Dataset, m.Offset, m.Limit, m.MaxThreads, fetcher)
	if err != nil {
		return err
	}
	return d.Resources()
}

// DownloadTransformedMain is the configuration for downloading transformed
// artifacts instead of recomputing them.
type DownloadTransformedMain struct {
	CollectionDir        string `help:"Path to the collection directory."`
	CollectionName       string `help:"Collection name used to construct remote URLs."`
	Bucket               string `help:"S3 bucket name to download from (constructs s3:// URLs)."`
	BaseURL              string `help:"Base URL for HTTP(S) downloads."`
	Region               string `help:"AWS region for bucket downloads."`
	Dataset              string `help:"Only consider resources in this dataset."`
	Offset               int    `help:"Leading tasks to skip from the canonical ordering. -1 for none."`
	Limit                int    `help:"Maximum tasks to keep after the offset. -1 for no limit."`
	MaxThreads           int    `help:"Maximum number of concurrent downloads."`
	MaxRetries           int    `help:"Download attempts per file."`
	TransformedDir       string `help:"Local directory for transformed files."`
	IssueDir             string `help:"Local directory for issue files."`
	ColumnFieldDir       string `help:"Local directory for column field mappings."`
	DatasetResourceDir   string `help:"Local directory for dataset resource records."`
	ConvertedResourceDir string `help:"Local directory for converted resources."`
}

// NewDownloadTransformedMain gets a DownloadTransformedMain with the default
// configuration.
func NewDownloadTransformedMain() *DownloadTransformedMain {
	dirs := DefaultDirs()
	return &DownloadTransformedMain{
		CollectionDir:        dirs.Collection,
		Offset:               -1,
		Limit:                -1,
		MaxThreads:           4,
		MaxRetries:           5,
		TransformedDir:       dirs.Transformed,
		IssueDir:             dirs.Issue,
		ColumnFieldDir:       dirs.ColumnField,
		DatasetResourceDir:   dirs.DatasetResource,
		ConvertedResourceDir: dirs.ConvertedResource,
	}
}

// Run downloads the artifact files for the configured window of tasks.
func (m *DownloadTransformedMain) Run() error {
	fetcher := fetch.New(
		fetch.OptMaxRetries(m.MaxRetries),
		fetch.OptRegion(m.Region),
		fetch.OptReporter(progress.Auto(os.Stdout, "Downloading files")),
	)
	d, err := newDownloader(m.CollectionName, m.CollectionDir, m.Bucket, m.BaseURL, m.Dataset, m.Offset, m.Limit, m.MaxThreads, fetcher)
	if err != nil {
		return err
	}
	dirs := Dirs{
		Transformed:       m.TransformedDir,
		Issue:             m.IssueDir,
		ColumnField:       m.ColumnFieldDir,
		DatasetResource:   m.DatasetResourceDir,
		ConvertedResource: m.ConvertedResourceDir,
	}
	return d.Transformed(dirs)
}

// DownloadFingerprintsMain is the configuration for downloading fingerprint
// records ahead of a transform run.
type DownloadFingerprintsMain struct {
	CollectionDir      string `help:"Path to the collection directory."`
	CollectionName     string `help:"Collection name used to construct remote URLs."`
	Bucket             string `help:"S3 bucket name to download from (constructs s3:// URLs)."`
	BaseURL            string `help:"Base URL for HTTP(S) downloads."`
	Region             string `help:"AWS region for bucket downloads."`
	Dataset            string `help:"Only consider resources in this dataset."`
	MaxThreads         int    `help:"Maximum number of concurrent downloads."`
	DatasetResourceDir string `help:"Local directory to store fingerprint records."`
}

// NewDownloadFingerprintsMain gets a DownloadFingerprintsMain with the
// default configuration.
func NewDownloadFingerprintsMain() *DownloadFingerprintsMain {
	return &DownloadFingerprintsMain{
		CollectionDir:      "collection/",
		MaxThreads:         4,
		DatasetResourceDir: DefaultDirs().DatasetResource,
	}
}

// Run downloads the fingerprint records for every resource in the
// collection. Missing remote records are expected for never-processed
// resources, so each file gets a single attempt and misses are counted, not
// failed.
func (m *DownloadFingerprintsMain) Run() error {
	fetcher := fetch.New(
		fetch.OptMaxRetries(1),
		fetch.OptRegion(m.Region),
	)
	d, err := newDownloader(m.CollectionName, m.CollectionDir, m.Bucket, m.BaseURL, m.Dataset, -1, -1, m.MaxThreads, fetcher)
	if err != nil {
		return err
	}
	_, _, err = d.Fingerprints(m.DatasetResourceDir)
	return err
}

// TransformMain is the configuration for the transform flow.
type TransformMain struct {
	CollectionDir        string `help:"Path to the collection directory."`
	PipelineDir          string `help:"Path to the pipeline configuration directory."`
	SpecificationDir     string `help:"Path to the specification directory."`
	CacheDir             string `help:"Path to the cache directory."`
	TransformedDir       string `help:"Path to the transformed output directory."`
	IssueDir             string `help:"Path to the issue directory."`
	OperationalIssueDir  string `help:"Path to the operational issue directory."`
	OutputLogDir         string `help:"Path to the output log directory."`
	ColumnFieldDir       string `help:"Path to the column field directory."`
	DatasetResourceDir   string `help:"Path to the dataset resource directory."`
	ConvertedResourceDir string `help:"Path to the converted resource directory."`
	Dataset              string `help:"Only process resources in this dataset."`
	Offset               int    `help:"Leading tasks to skip from the canonical ordering. -1 for none."`
	Limit                int    `help:"Maximum tasks to keep after the offset. -1 for no limit."`
	MaxWorkers           int    `help:"Number of parallel workers. 0 uses the CPU count."`
	Reprocess            bool   `help:"Reprocess all resources, even already up-to-date ones."`
	CodeVersion          string `help:"Code version recorded in fingerprints. Defaults to the build version."`
	TransformCommand     string `help:"Transform engine executable invoked once per task."`
}

// NewTransformMain gets a TransformMain with the default configuration.
func NewTransformMain() *TransformMain {
	dirs := DefaultDirs()
	return &TransformMain{
		CollectionDir:        dirs.Collection,
		PipelineDir:          dirs.Pipeline,
		SpecificationDir:     dirs.Specification,
		CacheDir:             dirs.Cache,
		TransformedDir:       dirs.Transformed,
		IssueDir:             dirs.Issue,
		OperationalIssueDir:  dirs.OperationalIssue,
		OutputLogDir:         dirs.OutputLog,
		ColumnFieldDir:       dirs.ColumnField,
		DatasetResourceDir:   dirs.DatasetResource,
		ConvertedResourceDir: dirs.ConvertedResource,
		Offset:               -1,
		Limit:                -1,
		TransformCommand:     "pipeline-transform",
	}
}

// Run executes the transform flow. Configuration and range failures return
// immediately; per-task failures are collected into the batch summary and
// surfaced as a single error after every task has been attempted.
func (m *TransformMain) Run() error {
	coll, err := LoadCollection("", m.CollectionDir)
	if err != nil {
		return errors.Wrap(err, "loading collection")
	}
	t := &Transformer{
		Collection: coll,
		Dirs: Dirs{
			Collection:        m.CollectionDir,
			Pipeline:          m.PipelineDir,
			Specification:     m.SpecificationDir,
			Cache:             m.CacheDir,
			Transformed:       m.TransformedDir,
			Issue:             m.IssueDir,
			OperationalIssue:  m.OperationalIssueDir,
			OutputLog:         m.OutputLogDir,
			ColumnField:       m.ColumnFieldDir,
			DatasetResource:   m.DatasetResourceDir,
			ConvertedResource: m.ConvertedResourceDir,
		},
		Dataset:     m.Dataset,
		Offset:      m.Offset,
		Limit:       m.Limit,
		MaxWorkers:  m.MaxWorkers,
		Reprocess:   m.Reprocess,
		CodeVersion: m.CodeVersion,
		Reporter:    progress.Auto(os.Stdout, "Processing resources"),
		Run:         ExecTransform(m.TransformCommand),
	}
	summary, err := t.Process()
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return errors.Errorf("%d of %d tasks failed", summary.Failed, summary.Successful+summary.Failed)
	}
	return nil
}
