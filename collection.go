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
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Collection is the read-only view of a loaded collection that the task
// pipeline consumes. Loading happens exactly once, before any pipeline
// component is constructed; nothing here reloads or mutates collection
// state.
type Collection interface {
	// Name is the collection name used when constructing remote URLs.
	Name() string
	// DatasetResourceMap maps each dataset to its member resources.
	DatasetResourceMap() CollectionIndex
	// OldResourceEntries returns the historical rename/retirement records.
	OldResourceEntries() []RedirectEntry
	// ResourcePath returns the local path of a previously downloaded
	// resource.
	ResourcePath(resource string) string
	// ResourceEndpoints, ResourceOrganisations and ResourceStartDate return
	// per-resource metadata passed through to the transform engine
	// untouched.
	ResourceEndpoints(resource string) []string
	ResourceOrganisations(resource string) []string
	ResourceStartDate(resource string) string
}

type resourceRecord struct {
	datasets      []string
	endpoints     []string
	organisations []string
	startDate     string
}

// DirCollection is a Collection backed by a collection directory on disk:
// resource.csv for resource membership and metadata, old-resource.csv for
// redirects, and resource/ for the downloaded files themselves.
type DirCollection struct {
	name      string
	dir       string
	index     CollectionIndex
	redirects []RedirectEntry
	resources map[string]resourceRecord
}

// LoadCollection reads a collection directory once and returns the loaded
// view. A missing old-resource.csv is not an error - young collections have
// no redirect history yet.
func LoadCollection(name, dir string) (*DirCollection, error) {
	c := &DirCollection{
		name:      name,
		dir:       dir,
		index:     CollectionIndex{},
		resources: map[string]resourceRecord{},
	}
	if err := c.loadResources(filepath.Join(dir, "resource.csv")); err != nil {
		return nil, errors.Wrap(err, "loading resources")
	}
	if err := c.loadOldResources(filepath.Join(dir, "old-resource.csv")); err != nil {
		return nil, errors.Wrap(err, "loading old resources")
	}
	return c, nil
}

func (c *DirCollection) loadResources(path string) error {
	return readCSV(path, false, func(row map[string]string) {
		resource := row["resource"]
		if resource == "" {
			return
		}
		rec := resourceRecord{
			datasets:      splitList(row["datasets"]),
			endpoints:     splitList(row["endpoints"]),
			organisations: splitList(row["organisations"]),
			startDate:     row["start-date"],
		}
		c.resources[resource] = rec
		for _, ds := range rec.datasets {
			c.index[ds] = append(c.index[ds], resource)
		}
	})
}

func (c *DirCollection) loadOldResources(path string) error {
	return readCSV(path, true, func(row map[string]string) {
		if row["old-resource"] == "" {
			return
		}
		c.redirects = append(c.redirects, RedirectEntry{
			OldResource: row["old-resource"],
			Resource:    row["resource"],
			Status:      row["status"],
		})
	})
}

// Name implements Collection.
func (c *DirCollection) Name() string { return c.name }

// DatasetResourceMap implements Collection.
func (c *DirCollection) DatasetResourceMap() CollectionIndex { return c.index }

// OldResourceEntries implements Collection.
func (c *DirCollection) OldResourceEntries() []RedirectEntry { return c.redirects }

// ResourcePath implements Collection.
func (c *DirCollection) ResourcePath(resource string) string {
	return filepath.Join(c.dir, "resource", resource)
}

// ResourceEndpoints implements Collection.
func (c *DirCollection) ResourceEndpoints(resource string) []string {
	return c.resources[resource].endpoints
}

// ResourceOrganisations implements Collection.
func (c *DirCollection) ResourceOrganisations(resource string) []string {
	return c.resources[resource].organisations
}

// ResourceStartDate implements Collection.
func (c *DirCollection) ResourceStartDate(resource string) string {
	return c.resources[resource].startDate
}

// readCSV streams a headered CSV file, calling fn with a column-name keyed
// map per row. Rows shorter than the header are padded with empty strings.
func readCSV(path string, optional bool, fn func(row map[string]string)) error {
	f, err := os.Open(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "reading header of %s", path)
	}
	for {
		record, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "reading %s", path)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		fn(row)
	}
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Fields(s)
}
