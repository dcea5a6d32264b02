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

// StatusRetired marks a resource permanently withdrawn by its source (HTTP
// 410): still addressable locally, but no longer worth fetching.
const StatusRetired = "410"

// RedirectEntry records a historical rename or retirement of a resource. An
// empty Resource means the old resource was removed entirely.
type RedirectEntry struct {
	OldResource string
	Resource    string
	Status      string
}

// Redirects resolves historical resource identifiers to their current ones.
// It is built once from a collection's old-resource entries and is read-only
// afterward, so it is safe to share across workers.
type Redirects struct {
	byOld   map[string]string
	retired map[string]bool
}

// NewRedirects builds a resolver from old-resource entries. Later entries for
// the same old resource win, matching the order the collection records them.
func NewRedirects(entries []RedirectEntry) *Redirects {
	r := &Redirects{
		byOld:   make(map[string]string, len(entries)),
		retired: make(map[string]bool),
	}
	for _, entry := range entries {
		r.byOld[entry.OldResource] = entry.Resource
		if entry.Status == StatusRetired {
			r.retired[entry.OldResource] = true
		}
	}
	return r
}

// Resolve maps a requested resource to the resource that should actually be
// read. Resources with no redirect entry resolve to themselves. removed is
// true when the resource redirects to nothing, in which case the caller must
// skip the task rather than run it against stale content.
func (r *Redirects) Resolve(requested string) (resource string, removed bool) {
	resource, ok := r.byOld[requested]
	if !ok {
		return requested, false
	}
	if resource == "" {
		return "", true
	}
	return resource, false
}

// RetiredSet returns the old resources whose status is 410. Fetch-side logic
// uses this to skip downloading artifacts for resources the source has
// permanently withdrawn.
func (r *Redirects) RetiredSet() map[string]bool {
	out := make(map[string]bool, len(r.retired))
	for resource := range r.retired {
		out[resource] = true
	}
	return out
}
