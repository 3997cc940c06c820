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

import (
	"regexp"
	"testing"
)

func TestMatchesAny(t *testing.T) {
	res := []*regexp.Regexp{regexp.MustCompile(`\.so$`), regexp.MustCompile(`^/lib/`)}
	if !matchesAny(res, "/lib/libc.so") {
		t.Errorf("expected match")
	}
	if !matchesAny(res, "/usr/bin/foo.so") {
		t.Errorf("expected match")
	}
	if matchesAny(res, "/usr/bin/foo") {
		t.Errorf("expected no match")
	}
	if matchesAny(nil, "anything") {
		t.Errorf("empty pattern list should never match")
	}
}

func TestArgmaxFloat(t *testing.T) {
	cases := []struct {
		xs   []float64
		want int
	}{
		{[]float64{0.1, 0.9, 0.3}, 1},
		{[]float64{}, -1},
		{[]float64{5}, 0},
		{[]float64{1, 1, 1}, 0}, // first max wins
	}
	for _, c := range cases {
		if got := argmaxFloat(c.xs); got != c.want {
			t.Errorf("argmaxFloat(%v) = %d, want %d", c.xs, got, c.want)
		}
	}
}

func TestSortedEventKeysIsDeterministic(t *testing.T) {
	m := map[Event]setMemberType{3: setMember, 1: setMember, 2: setMember}
	want := []Event{1, 2, 3}
	for i := 0; i < 5; i++ {
		got := sortedEventKeys(m)
		if len(got) != len(want) {
			t.Fatalf("length mismatch: %v", got)
		}
		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("sortedEventKeys not deterministic: got %v, want %v", got, want)
			}
		}
	}
}

func TestEventSetsEqualIgnoresOrder(t *testing.T) {
	if !eventSetsEqual([]Event{1, 2, 3}, []Event{3, 1, 2}) {
		t.Errorf("expected equal regardless of order")
	}
	if eventSetsEqual([]Event{1, 2}, []Event{1, 2, 3}) {
		t.Errorf("expected unequal for different lengths")
	}
	if eventSetsEqual([]Event{1, 2}, []Event{1, 3}) {
		t.Errorf("expected unequal for different members")
	}
}

func TestPermuteEventMappingsVisitsAllOrderings(t *testing.T) {
	a := &EventMapping{Event: 0}
	b := &EventMapping{Event: 1}
	c := &EventMapping{Event: 2}

	seen := map[[3]Event]bool{}
	permuteEventMappings([]*EventMapping{a, b, c}, func(perm []*EventMapping) {
		seen[[3]Event{perm[0].Event, perm[1].Event, perm[2].Event}] = true
	})
	if len(seen) != 6 {
		t.Fatalf("expected 3! = 6 distinct permutations, got %d", len(seen))
	}
}

func TestRaReadaheadWindowClipsNearStart(t *testing.T) {
	back, front := raReadaheadWindow(0, 1000)
	if back != -1 {
		t.Errorf("page 0 should report back=-1 (no pages behind it), got %d", back)
	}
	if front <= 0 {
		t.Errorf("expected a positive front window, got %d", front)
	}
}

func TestRaReadaheadWindowClipsNearEndOfFile(t *testing.T) {
	_, front := raReadaheadWindow(9, 10)
	if front != 9 {
		t.Errorf("front window must not exceed the last page index 9, got %d", front)
	}
}

// TestTrainingFilterWhitelistOverridesBlacklist exercises the decided precedence
// rule: a non-empty whitelist replaces the blacklist entirely rather
// than the two being applied independently.
func TestTrainingFilterWhitelistOverridesBlacklist(t *testing.T) {
	labels := EventLabels{"a", "idle"}
	keep := NewFileMapping("/keep.so", true, []PageID{1, 2}, len(labels))
	drop := NewFileMapping("/drop.so", true, []PageID{1, 2}, len(labels))

	tr, err := NewTraining(labels, 10, []*FileMapping{keep, drop}, &TrainingConfig{
		FileBlacklistRe: []string{`keep\.so`},
		FileWhitelistRe: []string{`keep\.so`},
	})
	if err != nil {
		t.Fatalf("NewTraining: %s", err)
	}
	tr.filter()
	if len(tr.fileMappings) != 1 || tr.fileMappings[0].Path != "/keep.so" {
		t.Fatalf("expected only /keep.so to survive, got %v", tr.fileMappings)
	}
}

func TestTrainingFilterBlacklistAppliesWithoutWhitelist(t *testing.T) {
	labels := EventLabels{"a", "idle"}
	keep := NewFileMapping("/keep.so", true, []PageID{1}, len(labels))
	drop := NewFileMapping("/noisy.so", true, []PageID{1}, len(labels))

	tr, err := NewTraining(labels, 10, []*FileMapping{keep, drop}, &TrainingConfig{
		FileBlacklistRe: []string{`noisy\.so`},
	})
	if err != nil {
		t.Fatalf("NewTraining: %s", err)
	}
	tr.filter()
	if len(tr.fileMappings) != 1 || tr.fileMappings[0].Path != "/keep.so" {
		t.Fatalf("expected /noisy.so dropped, got %v", tr.fileMappings)
	}
}

func TestTrainingFilterZeroesBlacklistedPages(t *testing.T) {
	labels := EventLabels{"a", "idle"}
	fm := NewFileMapping("/f", true, []PageID{1, 2, 3}, len(labels))
	fm.EventPageAccesses[0] = []int{5, 5, 5}

	tr, err := NewTraining(labels, 10, []*FileMapping{fm}, &TrainingConfig{
		FilePageBlacklist: map[string][]int{"/f": {1}},
	})
	if err != nil {
		t.Fatalf("NewTraining: %s", err)
	}
	tr.filter()
	if fm.EventPageAccesses[0][1] != 0 {
		t.Errorf("expected blacklisted page zeroed, got %v", fm.EventPageAccesses[0])
	}
	if fm.EventPageAccesses[0][0] != 5 || fm.EventPageAccesses[0][2] != 5 {
		t.Errorf("expected non-blacklisted pages untouched, got %v", fm.EventPageAccesses[0])
	}
}

// TestTrainingFitnessThresholdOverrideRejectsBorderlineMapping pins
// testable property 9: a FitnessThreshold override of 1.0 rejects a
// mapping that the package default of 0.8 would have accepted.
func TestTrainingFitnessThresholdOverrideRejectsBorderlineMapping(t *testing.T) {
	labels := EventLabels{"e0", "idle"}
	samples := 10
	fm := NewFileMapping("/f", false, []PageID{100}, len(labels))
	// event 0 hits page 0 in 9 of 10 samples; noise is zero, so
	// fitness = 0.9: above the 0.8 default, below a 1.0 override.
	for s := 0; s < 9; s++ {
		fm.EventPageAccesses[0][0]++
	}

	tr, err := NewTraining(labels, samples, []*FileMapping{fm}, &TrainingConfig{HandleRa: HandleRaNone, FitnessThreshold: 1.0})
	if err != nil {
		t.Fatalf("NewTraining: %s", err)
	}
	tr.filter()
	tr.computeRatios()
	tr.presort()

	mappings, unlinked := tr.linkEventsWithPageHits()
	if len(mappings) != 0 {
		t.Fatalf("expected no accepted mappings with threshold 1.0, got %v", mappings)
	}
	if len(unlinked) != 1 || unlinked[0] != Event(0) {
		t.Fatalf("expected event 0 unlinked, got %v", unlinked)
	}
}

// TestLinkEventsWithPageHitsFindsDistinctOraclePages builds a
// noise-free two-event hit matrix, one oracle page per event, and
// checks training links each event to its own page deterministically.
func TestLinkEventsWithPageHitsFindsDistinctOraclePages(t *testing.T) {
	labels := EventLabels{"e0", "e1", "idle"}
	samples := 10
	fm := NewFileMapping("/f", false, []PageID{100, 101, 102}, len(labels))
	// event 0 always hits page 0, event 1 always hits page 1, idle
	// touches nothing.
	for s := 0; s < samples; s++ {
		fm.EventPageAccesses[0][0]++
		fm.EventPageAccesses[1][1]++
	}

	tr, err := NewTraining(labels, samples, []*FileMapping{fm}, &TrainingConfig{HandleRa: HandleRaNone})
	if err != nil {
		t.Fatalf("NewTraining: %s", err)
	}
	tr.filter()
	tr.computeRatios()
	tr.presort()

	mappings, unlinked := tr.linkEventsWithPageHits()
	if len(unlinked) != 0 {
		t.Fatalf("expected every event linked, got unlinked=%v", unlinked)
	}
	if len(mappings) != 2 {
		t.Fatalf("expected 2 mappings, got %d: %v", len(mappings), mappings)
	}
	byEvent := map[Event]*EventMapping{}
	for _, m := range mappings {
		byEvent[m.Event] = m
	}
	if byEvent[0].Offset/int(constUPagesize) != 0 {
		t.Errorf("expected event 0 linked to page 0, got offset %d", byEvent[0].Offset)
	}
	if byEvent[1].Offset/int(constUPagesize) != 1 {
		t.Errorf("expected event 1 linked to page 1, got offset %d", byEvent[1].Offset)
	}
}
