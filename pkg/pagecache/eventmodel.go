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

package pagecache

// Event is an opaque index into the trigger's event list. The last
// index is always the idle event: a no-op trigger used to
// characterize background cache noise.
type Event int

// EventLabels carries the human-readable names of events, purely for
// display; the index into Labels is the Event value.
type EventLabels []string

func (l EventLabels) IdleEvent() Event {
	return Event(len(l) - 1)
}

func (l EventLabels) NonIdleEvents() []Event {
	events := make([]Event, 0, len(l)-1)
	for e := 0; e < len(l)-1; e++ {
		events = append(events, Event(e))
	}
	return events
}

func (l EventLabels) String(e Event) string {
	if int(e) < 0 || int(e) >= len(l) {
		return "?"
	}
	return l[e]
}

// FileMapping is a shared, file-backed file chosen for observation,
// together with the event x page hit-count matrix collected against
// it.
type FileMapping struct {
	Path      string
	Image     bool
	SizePages int

	// PageIDs[i] is the probe handle for page slot i, or
	// UntrackedPage if the slot is not tracked.
	PageIDs []PageID

	// EventPageAccesses[e][i] is the number of samples where page
	// i was hit after triggering event e.
	EventPageAccesses [][]int

	// EventPhRatiosRaw[e][i] = EventPageAccesses[e][i] / samples.
	// Populated by Training.computeRatios, nil before that.
	EventPhRatiosRaw [][]float64
}

func NewFileMapping(path string, image bool, pageIDs []PageID, numEvents int) *FileMapping {
	fm := &FileMapping{
		Path:      path,
		Image:     image,
		SizePages: len(pageIDs),
		PageIDs:   pageIDs,
	}
	fm.EventPageAccesses = make([][]int, numEvents)
	for e := range fm.EventPageAccesses {
		fm.EventPageAccesses[e] = make([]int, fm.SizePages)
	}
	return fm
}

// AnyPageTracked reports whether at least one page slot resolved to a
// real probe handle.
func (fm *FileMapping) AnyPageTracked() bool {
	for _, id := range fm.PageIDs {
		if id != UntrackedPage {
			return true
		}
	}
	return false
}

// RaSuppressMode selects which readahead-corner pages were found
// usable for a given accepted mapping.
type RaSuppressMode int

const (
	RaSuppressBack RaSuppressMode = iota
	RaSuppressFront
	RaSuppressBoth
)

// EventMapping is the accepted output of training for one non-idle
// event: the oracle page, the co-detected event group sharing it, and
// (on Linux-like backends) the readahead-suppression bookkeeping
// needed to tell an event-driven hit from kernel speculation.
type EventMapping struct {
	Event      Event
	EventGroup []Event

	FileIndex int // index into TrainingResult.FileMappings
	Offset    int // byte offset, page-aligned
	Image     bool

	Fitness float64
	PhRatio float64

	// RaCornerPages holds the kernel readaround window (left,
	// right) page bounds centered on the selected page. Populated
	// only under the "suppressed" readahead policy.
	HasRaCornerPages bool
	RaCornerPages    [2]int

	// RaSuppressMode is set only when at least one quiet corner
	// page was found to disambiguate the oracle page from
	// readahead.
	HasRaSuppressMode bool
	RaSuppressMode    RaSuppressMode
	RaSuppressPages   [2]int // corner pages; meaning depends on RaSuppressMode

	// AmbiguousWrongClassificationEvents lists events for which
	// self-validation (training step D.6) produced a classifier
	// output different from the intended event group.
	AmbiguousWrongClassificationEvents []Event
}

// EventGroupContains reports whether e is a member of m's event
// group.
func (m *EventMapping) EventGroupContains(e Event) bool {
	for _, g := range m.EventGroup {
		if g == e {
			return true
		}
	}
	return false
}

// HandleRaPolicy selects how training and classification treat kernel
// readahead/readaround speculation.
type HandleRaPolicy string

const (
	HandleRaNone       HandleRaPolicy = "none"
	HandleRaNoise      HandleRaPolicy = "noise"
	HandleRaSuppressed HandleRaPolicy = "suppressed"
)

// FitnessThreshold is the default minimum noise-adjusted residency
// score a candidate (event, page) pair must clear to be accepted.
// TrainingConfig.FitnessThreshold overrides it per training run.
const FitnessThreshold = 0.8

// PhRatiosSimilarThreshold is the maximum aggregate hit ratio a
// candidate suppress corner page may have and still count as "quiet".
const PhRatiosSimilarThreshold = 0.15

// ReadaheadWindowPages (W) is the number of pages the kernel's
// readaround logic fetches around a faulted page.
const ReadaheadWindowPages = 32

// WaitAfterEventSeconds is the settle time after an event trigger
// returns, before the collector samples page residency.
const WaitAfterEventSeconds = 0.025

// IdleEventWaitSeconds is how long the idle event keeps the sampler
// busy, to characterize low-frequency background noise.
const IdleEventWaitSeconds = 30.0
