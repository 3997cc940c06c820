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
	"os"
	"path/filepath"
	"testing"
)

func sampleTrainingResult() *TrainingResult {
	fm := &FileMapping{
		Path:              "/lib/libc.so",
		Image:             true,
		SizePages:         4,
		EventPageAccesses: [][]int{{9, 0, 0, 0}, {0, 9, 0, 0}},
		EventPhRatiosRaw:  [][]float64{{0.9, 0, 0, 0}, {0, 0.9, 0, 0}},
	}
	return &TrainingResult{
		Samples:         10,
		EventStrings:    []string{"open", "idle"},
		FileMappings:    []*FileMapping{fm},
		HandleRa:        HandleRaSuppressed,
		Status:          TrainingOK,
		OriginalEntropy: 1.0,
		AttackEntropy:   0.0,
		EventFileOffsetMappings: []*EventMapping{
			{
				Event: 0, EventGroup: []Event{0}, FileIndex: 0, Offset: 0,
				Image: true, Fitness: 0.9, PhRatio: 0.9,
				HasRaCornerPages: true, RaCornerPages: [2]int{0, 2},
				HasRaSuppressMode: true, RaSuppressMode: RaSuppressFront, RaSuppressPages: [2]int{0, 3},
			},
		},
		ClassificationResults: map[Event]*ClassificationResult{
			0: {EventGroup: []Event{0}},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.json")
	want := sampleTrainingResult()

	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %s", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %s", err)
	}

	if got.Samples != want.Samples || got.HandleRa != want.HandleRa || got.Status != want.Status {
		t.Fatalf("scalar fields mismatch: got %+v", got)
	}
	if len(got.FileMappings) != 1 || got.FileMappings[0].Path != "/lib/libc.so" {
		t.Fatalf("expected file mapping round-tripped, got %v", got.FileMappings)
	}
	if got.FileMappings[0].PageIDs != nil {
		t.Errorf("expected PageIDs left nil after Load (re-derived only by Reopen), got %v", got.FileMappings[0].PageIDs)
	}
	if len(got.EventFileOffsetMappings) != 1 {
		t.Fatalf("expected 1 event mapping, got %d", len(got.EventFileOffsetMappings))
	}
	m := got.EventFileOffsetMappings[0]
	if !m.HasRaSuppressMode || m.RaSuppressMode != RaSuppressFront || m.RaSuppressPages != [2]int{0, 3} {
		t.Errorf("readahead suppress fields did not round-trip: %+v", m)
	}
	cr, ok := got.ClassificationResults[0]
	if !ok || len(cr.EventGroup) != 1 || cr.EventGroup[0] != 0 {
		t.Errorf("expected classification result for event 0 to round-trip, got %v", got.ClassificationResults)
	}
}

func TestLoadRejectsMalformedClassificationKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	content := `{"classification_results":{"not-a-number":{"event_group":[0]}}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %s", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for malformed classification result key")
	}
}
