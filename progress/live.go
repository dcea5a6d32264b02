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

package progress

import (
	"fmt"
	"io"
	"sync"
)

// Live renders a single self-overwriting progress line to a terminal. Safe
// for concurrent Step calls from many workers.
type Live struct {
	mu    sync.Mutex
	out   io.Writer
	desc  string
	total int
	done  int
}

// NewLive returns a live reporter writing to out, prefixed with desc.
func NewLive(out io.Writer, desc string) *Live {
	return &Live{out: out, desc: desc}
}

// Start implements Reporter.
func (l *Live) Start(total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total = total
	l.done = 0
	l.write()
}

// Step implements Reporter.
func (l *Live) Step() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.done++
	l.write()
}

// Finish implements Reporter. It terminates the progress line so subsequent
// output starts on a fresh line.
func (l *Live) Finish() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out)
}

func (l *Live) write() {
	percent := 0
	if l.total > 0 {
		percent = l.done * 100 / l.total
	}
	fmt.Fprintf(l.out, "\r%s: %d/%d (%d%%)", l.desc, l.done, l.total, percent)
}
