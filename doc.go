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

// Package colltask is the shared core of the collection task pipeline: it
// turns a loaded collection into the work its entry points execute.
//
// The pipeline moves through a few distinct stages:
//
// 1. Task building
//
//    BuildTasks produces the canonical list of (dataset, resource) pairs for
//    a collection index. The ordering is a pure function of the index
//    contents - dataset then resource, both lexicographic - so every
//    independently-invoked worker process derives exactly the same list.
//
// 2. Sharding
//
//    Slice applies an offset/limit window over that canonical ordering.
//    Because the ordering is reproducible, contiguous non-overlapping
//    windows taken by separate invocations cover the list exactly once with
//    no gaps and no overlaps. An offset beyond the end is a hard error: it
//    almost always means a misconfigured shard count, and silently clamping
//    would hide it.
//
// 3. Staleness filtering
//
//    A FingerprintStore remembers the (code version, config hash,
//    specification hash) triple each resource was last processed with.
//    Resources whose triple is unchanged are skipped; changing any one axis
//    forces reprocessing.
//
// 4. Redirect resolution
//
//    Redirects maps historical resource identifiers to their current ones at
//    execution time. Outputs keep the requested identifier's name; only the
//    physical input follows the redirect. Resources redirected to nothing
//    are dropped, never run against stale content.
//
// 5. Execution
//
//    The fetch package downloads files concurrently with bounded retry and
//    aggregate failure reporting; Runner fans transform tasks out to a
//    bounded worker pool with per-task failure isolation. Both report
//    progress through the progress package.
//
// The Downloader and Transformer types compose these stages into the flows
// the cmd package exposes.
package colltask
