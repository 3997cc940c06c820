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
	"bufio"
	"strings"
	"testing"
)

func twoEventMappings() map[string]map[int]*EventMapping {
	return map[string]map[int]*EventMapping{
		"f": {
			10: {Event: 0, EventGroup: []Event{0}, FileIndex: 0, Offset: 10 * constPagesizeInt()},
			20: {Event: 1, EventGroup: []Event{1}, FileIndex: 0, Offset: 20 * constPagesizeInt()},
		},
	}
}

func constPagesizeInt() int { return int(constPagesize) }

func TestClassifySampleSingleHit(t *testing.T) {
	c := NewClassifier(twoEventMappings(), HandleRaNone, 2)

	sample := NewSample()
	sample.add("f", 10)

	got := c.ClassifySample(sample)
	if len(got) != 1 || got[0] != Event(0) {
		t.Fatalf("expected [0], got %v", got)
	}
}

func TestClassifySampleNoHitsReturnsNil(t *testing.T) {
	c := NewClassifier(twoEventMappings(), HandleRaNone, 2)
	got := c.ClassifySample(NewSample())
	if got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestClassifySampleTieReturnsBothEvents(t *testing.T) {
	c := NewClassifier(twoEventMappings(), HandleRaNone, 2)

	sample := NewSample()
	sample.add("f", 10)
	sample.add("f", 20)

	got := c.ClassifySample(sample)
	if len(got) != 2 {
		t.Fatalf("expected both events tied, got %v", got)
	}
}

func TestClassifySampleSharedOracleGroupsEvents(t *testing.T) {
	mappings := map[string]map[int]*EventMapping{
		"f": {
			10: {Event: 0, EventGroup: []Event{0, 1}, FileIndex: 0, Offset: 10 * constPagesizeInt()},
		},
	}
	c := NewClassifier(mappings, HandleRaNone, 2)

	sample := NewSample()
	sample.add("f", 10)

	got := c.ClassifySample(sample)
	if len(got) != 2 {
		t.Fatalf("expected both events in the shared group, got %v", got)
	}
}

func TestRaSuppressionBackRequiresCornerPage(t *testing.T) {
	mappings := map[string]map[int]*EventMapping{
		"f": {
			10: {
				Event: 0, EventGroup: []Event{0}, FileIndex: 0, Offset: 10 * constPagesizeInt(),
				HasRaSuppressMode: true, RaSuppressMode: RaSuppressBack, RaSuppressPages: [2]int{8, 0},
				HasRaCornerPages: true, RaCornerPages: [2]int{8, 12},
			},
		},
	}
	c := NewClassifier(mappings, HandleRaSuppressed, 1)

	// page 10 hit, but page 8 (the quiet back corner) is NOT hit: this
	// looks like readahead speculation from a neighboring fault, not a
	// genuine event, so it must be suppressed.
	speculative := NewSample()
	speculative.add("f", 10)
	if got := c.ClassifySample(speculative); got != nil {
		t.Fatalf("expected suppressed hit to classify as nothing, got %v", got)
	}

	// page 10 hit and page 8 also hit: the back corner being resident
	// confirms this was not speculative readahead.
	genuine := NewSample()
	genuine.add("f", 10)
	genuine.add("f", 8)
	got := c.ClassifySample(genuine)
	if len(got) != 1 || got[0] != Event(0) {
		t.Fatalf("expected [0], got %v", got)
	}
}

func TestClassifyNextSampleReadsBlankLineDelimitedGroups(t *testing.T) {
	c := NewClassifier(twoEventMappings(), HandleRaNone, 2)
	input := "100;f;a\n200;f;a\n\n300;f;14\n"
	scanner := bufio.NewScanner(strings.NewReader(input))

	first, err := c.ClassifyNextSample(scanner)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if first.MeanTimestampNs != 150 {
		t.Fatalf("expected mean 150, got %v", first.MeanTimestampNs)
	}
	if len(first.Events) != 1 || first.Events[0] != Event(0) {
		t.Fatalf("expected [0], got %v", first.Events)
	}

	second, err := c.ClassifyNextSample(scanner)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(second.Events) != 1 || second.Events[0] != Event(1) {
		t.Fatalf("expected [1], got %v", second.Events)
	}

	if _, err := c.ClassifyNextSample(scanner); err == nil {
		t.Fatalf("expected io.EOF on stream exhaustion")
	}
}

func TestClassifyNextSampleRejectsMalformedLine(t *testing.T) {
	c := NewClassifier(twoEventMappings(), HandleRaNone, 2)
	scanner := bufio.NewScanner(strings.NewReader("not-enough-fields\n"))
	if _, err := c.ClassifyNextSample(scanner); err == nil {
		t.Fatalf("expected error for malformed line")
	}
}
