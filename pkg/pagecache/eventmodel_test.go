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

import "testing"

func TestEventLabelsIdleAndNonIdle(t *testing.T) {
	labels := EventLabels{"open", "read", "write", "idle"}
	if labels.IdleEvent() != Event(3) {
		t.Errorf("expected idle event index 3, got %d", labels.IdleEvent())
	}
	nonIdle := labels.NonIdleEvents()
	if len(nonIdle) != 3 {
		t.Fatalf("expected 3 non-idle events, got %v", nonIdle)
	}
	for i, e := range nonIdle {
		if int(e) != i {
			t.Errorf("expected non-idle events 0..2 in order, got %v", nonIdle)
		}
	}
}

func TestEventLabelsStringOutOfRange(t *testing.T) {
	labels := EventLabels{"a", "b"}
	if labels.String(5) != "?" {
		t.Errorf("expected \"?\" for out-of-range event, got %q", labels.String(5))
	}
	if labels.String(-1) != "?" {
		t.Errorf("expected \"?\" for negative event, got %q", labels.String(-1))
	}
	if labels.String(0) != "a" {
		t.Errorf("expected \"a\", got %q", labels.String(0))
	}
}

func TestNewFileMappingAllocatesPerEventAccessCounters(t *testing.T) {
	fm := NewFileMapping("/bin/x", true, []PageID{10, 20, UntrackedPage}, 3)
	if fm.SizePages != 3 {
		t.Errorf("expected SizePages 3, got %d", fm.SizePages)
	}
	if len(fm.EventPageAccesses) != 3 {
		t.Fatalf("expected 3 event rows, got %d", len(fm.EventPageAccesses))
	}
	for e, row := range fm.EventPageAccesses {
		if len(row) != 3 {
			t.Errorf("event %d: expected 3 page columns, got %d", e, len(row))
		}
	}
	if !fm.AnyPageTracked() {
		t.Errorf("expected at least one tracked page")
	}
}

func TestFileMappingAnyPageTrackedAllUntracked(t *testing.T) {
	fm := NewFileMapping("/bin/y", false, []PageID{UntrackedPage, UntrackedPage}, 1)
	if fm.AnyPageTracked() {
		t.Errorf("expected no tracked pages")
	}
}

func TestEventGroupContains(t *testing.T) {
	m := &EventMapping{EventGroup: []Event{1, 3, 5}}
	if !m.EventGroupContains(3) {
		t.Errorf("expected group to contain 3")
	}
	if m.EventGroupContains(4) {
		t.Errorf("expected group to not contain 4")
	}
}
