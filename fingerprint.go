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
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"github.com/pkg/errors"
)

// Fingerprint captures the three dependency axes of a transform run. A
// resource only needs reprocessing when one of them has changed since its
// last successful run. Any change triggers reprocessing even if the output
// would be identical - unnecessary work is acceptable, skipping necessary
// work is not.
type Fingerprint struct {
	CodeVersion       string
	ConfigHash        string
	SpecificationHash string
}

// FingerprintStore reads and writes the per-(dataset, resource) record of the
// fingerprint a resource was last processed with. Each record is a small
// standalone CSV file so that records can be fetched individually from remote
// storage before a run.
type FingerprintStore struct {
	dir string
}

// NewFingerprintStore returns a store rooted at the dataset-resource
// directory.
func NewFingerprintStore(dir string) *FingerprintStore {
	return &FingerprintStore{dir: dir}
}

// Path returns the record file for a (dataset, resource) pair.
func (s *FingerprintStore) Path(dataset, resource string) string {
	return filepath.Join(s.dir, dataset, resource+".csv")
}

// Read returns the stored fingerprint and whether a record exists. A record
// that exists but cannot be parsed is reported as absent: the resource will
// be reprocessed and the record rewritten.
func (s *FingerprintStore) Read(dataset, resource string) (Fingerprint, bool) {
	data, err := os.ReadFile(s.Path(dataset, resource))
	if err != nil {
		return Fingerprint{}, false
	}
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil || len(records) < 2 || len(records[1]) < 4 {
		return Fingerprint{}, false
	}
	row := records[1]
	return Fingerprint{
		CodeVersion:       row[1],
		ConfigHash:        row[2],
		SpecificationHash: row[3],
	}, true
}

// NeedsProcessing reports whether a resource must be (re)transformed: true
// when no record exists for the pair, or when any fingerprint component
// differs from the current one.
func (s *FingerprintStore) NeedsProcessing(dataset, resource string, current Fingerprint) bool {
	prior, ok := s.Read(dataset, resource)
	if !ok {
		return true
	}
	return prior != current
}

// Write records the fingerprint a resource was just processed with,
// overwriting any previous record. The write is atomic so a record is never
// observed half-written by a concurrent reader or a later rerun.
func (s *FingerprintStore) Write(dataset, resource string, fp Fingerprint) error {
	path := s.Path(dataset, resource)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "creating dataset resource directory")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := [][]string{
		{"resource", "code-version", "config-hash", "specification-hash"},
		{resource, fp.CodeVersion, fp.ConfigHash, fp.SpecificationHash},
	}
	if err := w.WriteAll(rows); err != nil {
		return errors.Wrap(err, "encoding fingerprint record")
	}
	if err := renameio.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return errors.Wrapf(err, "writing fingerprint record %s", path)
	}
	return nil
}
