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
	"math/rand"
	"testing"
)

func TestEventSequenceUniformRandomVisitsEveryEventPerPass(t *testing.T) {
	events := []Event{0, 1, 2}
	seq := NewEventSequenceUniformRandom(events, 3, rand.New(rand.NewSource(1)))

	counts := map[Event]int{}
	total := 0
	for {
		e, ok := seq.Next()
		if !ok {
			break
		}
		counts[e]++
		total++
	}
	if total != 9 {
		t.Fatalf("expected 3 passes x 3 events = 9, got %d", total)
	}
	for _, e := range events {
		if counts[e] != 3 {
			t.Errorf("expected event %d to appear exactly 3 times (once per pass), got %d", e, counts[e])
		}
	}
}

func TestEventSequenceUniformRandomDeterministicForSameSeed(t *testing.T) {
	events := []Event{0, 1, 2, 3}
	collect := func(seed int64) []Event {
		seq := NewEventSequenceUniformRandom(events, 2, rand.New(rand.NewSource(seed)))
		out := []Event{}
		for {
			e, ok := seq.Next()
			if !ok {
				break
			}
			out = append(out, e)
		}
		return out
	}
	a := collect(42)
	b := collect(42)
	if len(a) != len(b) {
		t.Fatalf("length mismatch: %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed produced different sequences: %v vs %v", a, b)
		}
	}
}

// TestEventSequenceHalfRepeatedFloorDivision pins the decided rounding
// rule: samples/2 (floor) feeds the random half and is also the number
// of back-to-back repeats of each event, so an odd sample count never
// gives the repeated half one extra sample.
func TestEventSequenceHalfRepeatedFloorDivision(t *testing.T) {
	events := []Event{0, 1, 2} // event 2 stands in for idle here
	seq := NewEventSequenceHalfRepeated(events, 7, rand.New(rand.NewSource(1)))

	var all []Event
	for {
		e, ok := seq.Next()
		if !ok {
			break
		}
		all = append(all, e)
	}

	randomHalf := 7 / 2 // 3
	repeats := 7 / 2    // 3
	wantTotal := randomHalf*len(events) + repeats*len(events)
	if len(all) != wantTotal {
		t.Fatalf("expected %d total events, got %d: %v", wantTotal, len(all), all)
	}

	repeatedPortion := all[randomHalf*len(events):]
	for i, e := range events {
		block := repeatedPortion[i*repeats : (i+1)*repeats]
		for _, got := range block {
			if got != e {
				t.Errorf("expected repeated block for event %d to be all %d, got %v", e, e, block)
			}
		}
	}
}

func TestEventSequenceHalfRepeatedExhausts(t *testing.T) {
	seq := NewEventSequenceHalfRepeated([]Event{0, 1}, 4, rand.New(rand.NewSource(3)))
	count := 0
	for {
		if _, ok := seq.Next(); !ok {
			break
		}
		count++
	}
	if count == 0 {
		t.Fatalf("expected at least one event")
	}
	if _, ok := seq.Next(); ok {
		t.Fatalf("expected sequence to stay exhausted")
	}
}
