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

// Package progress reports completion of long-running batches. Operators get
// a live single-line indicator at an interactive terminal, or periodic log
// lines when output is piped into batch logs. The reporter is chosen once at
// startup and injected, so core pipeline code never inspects its
// environment.
package progress

import "os"

// Reporter receives completion events from a batch. Start is called once
// with the total item count before any work, Step once per completed item
// (from any goroutine), and Finish once after all items are done.
type Reporter interface {
	Start(total int)
	Step()
	Finish()
}

// Nop is a Reporter that does nothing.
type Nop struct{}

// Start implements Reporter.
func (Nop) Start(total int) {}

// Step implements Reporter.
func (Nop) Step() {}

// Finish implements Reporter.
func (Nop) Finish() {}

// Auto picks a reporter for out: a live indicator when out is a terminal,
// periodic log lines otherwise.
func Auto(out *os.File, desc string) Reporter {
	info, err := out.Stat()
	if err == nil && info.Mode()&os.ModeCharDevice != 0 {
		return NewLive(out, desc)
	}
	return NewLog(desc)
}
