// Copyright 2024 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Tracer is a reduced interactive REPL for watching a single page:
// the operator enters a PFN in hex, and the tracer prints a
// timestamped line every time the probe observes that page accessed,
// until interrupted, then prompts for the next page.

package pagecache

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

type Tracer struct {
	probe  Probe
	reader *bufio.Reader
	writer *bufio.Writer
	stopCh chan struct{}
}

func NewTracer(probe Probe, in io.Reader, out io.Writer) *Tracer {
	return &Tracer{
		probe:  probe,
		reader: bufio.NewReader(in),
		writer: bufio.NewWriter(out),
	}
}

// Interact runs the prompt loop on the calling goroutine until the
// reader is exhausted. Each entered page is watched on the calling
// goroutine while a separate goroutine waits for the next input line
// (or EOF), which interrupts the watch without waiting for the next
// access.
func (t *Tracer) Interact() {
	for {
		fmt.Fprint(t.writer, "Page ID to track (hex)> ")
		t.writer.Flush()

		line, err := t.reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line != "" {
			pfn, perr := strconv.ParseInt(line, 16, 64)
			if perr != nil {
				fmt.Fprintf(t.writer, "invalid page id %q: %s\n", line, perr)
				t.writer.Flush()
			} else {
				t.watch(PageID(pfn))
			}
		}
		if err != nil {
			return
		}
	}
}

// watch resets the page and polls it until the next input line (or
// EOF) arrives, printing one line per detected access.
func (t *Tracer) watch(page PageID) {
	pages := []PageID{page}
	if err := t.probe.Reset(pages); err != nil {
		fmt.Fprintf(t.writer, "reset failed: %s\n", err)
		t.writer.Flush()
		return
	}

	t.stopCh = make(chan struct{})
	go func() {
		t.reader.ReadString('\n')
		close(t.stopCh)
	}()

	fmt.Fprintln(t.writer, "watching, press enter to stop")
	t.writer.Flush()
	for {
		select {
		case <-t.stopCh:
			return
		default:
		}
		states, err := t.probe.State(pages)
		if err != nil {
			fmt.Fprintf(t.writer, "probe state failed: %s\n", err)
			t.writer.Flush()
			return
		}
		if states[0] {
			now := time.Now()
			fmt.Fprintf(t.writer, "[%ds %dns] access detected!\n", now.Unix(), now.Nanosecond())
			t.writer.Flush()
			if err := t.probe.Reset(pages); err != nil {
				fmt.Fprintf(t.writer, "reset failed: %s\n", err)
				t.writer.Flush()
				return
			}
		}
	}
}
