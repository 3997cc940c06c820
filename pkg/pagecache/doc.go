// Copyright 2021 Intel Corporation. All Rights Reserved.
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

/*

	Package pagecache implements a page-cache side-channel profiler:
	a training phase that derives which file pages an external event
	maps to from noisy hit-count matrices, and a classification phase
	that votes observed page residency back into predicted events.

	Component types

	1. Target Mapping Discovery (discovery.go) finds the files a
	victim process has mapped (or a configured include-path tree),
	maps each one read-only and shared into our own address space,
	and reports which pages are already resident.

	2. The Probe (probe*.go) abstracts "reset access / query access"
	over a set of pages. The idlepage probe (probe_idlepage.go) uses
	/sys/kernel/mm/page_idle/bitmap the same way tracker_idlepage.go
	tracks NUMA-bound processes, generalized here to page-cache pages
	of arbitrary mapped files rather than anonymous process memory.

	3. Triggers (trigger*.go) fire one labelled event and block until
	it has taken effect. The idle trigger sleeps; the stdin trigger
	delegates event generation to an external process over stdin/stdout.

	4. The Sample Collector (collector.go) drives the
	reset/trigger/settle/sample loop across a configurable event
	sequence, accumulating an event x page hit-count matrix per file.

	5. The Training Engine (training.go) is the hardest part: it
	turns noisy hit-count matrices into accepted (event, page)
	mappings, handling kernel readahead/readaround by either ignoring
	it, penalizing pages inside the predicted readahead window
	("noise"), or finding quiet neighbor pages that disambiguate a
	real fault from a speculative one ("suppressed"). It then
	self-validates by simulating its own accepted mappings back
	through a Classifier and flags any divergence.

	6. The Classifier (classifier.go) votes a sample's observed page
	hits into predicted events using a trained set of mappings -
	+1 per hit oracle page's event group, -1 per miss.

	7. Persistence (persistence.go) serializes a training result to
	JSON. Hit matrices round-trip exactly; physical frame numbers do
	not, and are re-derived by mapping the same files again.

	Supporting modules

	The main components are supported by lower-level modules:
	1. Process (process.go) supports freezing/resuming a victim via
	SIGSTOP/SIGCONT while its memory maps are read.
	2. AddrRange (addrrange.go) models a contiguous page range.
	3. proc.go contains read/iteration of /proc and /sys files.
	4. eventmodel.go defines Event, EventLabels, FileMapping and
	EventMapping, the data model shared by every component above.
*/

package pagecache
