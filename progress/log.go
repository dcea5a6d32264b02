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
	"sync"

	log "github.com/sirupsen/logrus"
)

// interval is the completion percentage between log lines. Per-item logging
// would flood batch logs on runs with thousands of items.
const interval = 10

// Log reports progress as periodic log lines, for non-interactive runs where
// a live indicator would be useless noise in captured output.
type Log struct {
	mu          sync.Mutex
	desc        string
	total       int
	done        int
	lastPercent int
}

// NewLog returns a log reporter prefixed with desc.
func NewLog(desc string) *Log {
	return &Log{desc: desc}
}

// Start implements Reporter.
func (l *Log) Start(total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total = total
	l.done = 0
	l.lastPercent = 0
	log.Infof("Starting %s of %d items...", l.desc, total)
}

// Step implements Reporter. A line is emitted each time completion crosses
// another interval boundary, and always for the final item.
func (l *Log) Step() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.done++
	if l.total == 0 {
		return
	}
	percent := l.done * 100 / l.total
	if percent >= l.lastPercent+interval || l.done == l.total {
		log.Infof("Progress: %d/%d items (%d%%)", l.done, l.total, percent)
		l.lastPercent = percent
	}
}

// Finish implements Reporter.
func (l *Log) Finish() {
	l.mu.Lock()
	defer l.mu.Unlock()
	log.Infof("Completed %s of %d items", l.desc, l.total)
}
