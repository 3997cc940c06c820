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
	"encoding/json"
	"fmt"
	"io/ioutil"
)

// persistedFileMapping is FileMapping's serialized shape: PageIDs are
// dropped, since PFNs are not stable across reboots and are
// re-derived by Reopen.
type persistedFileMapping struct {
	Path              string      `json:"path"`
	Image             bool        `json:"image"`
	SizePages         int         `json:"size_pages"`
	EventPageAccesses [][]int     `json:"event_page_accesses"`
	EventPhRatiosRaw  [][]float64 `json:"event_ph_ratios_raw,omitempty"`
}

type persistedEventMapping struct {
	Event      Event   `json:"event"`
	EventGroup []Event `json:"event_group"`

	FileIndex int  `json:"file_index"`
	Offset    int  `json:"offset"`
	Image     bool `json:"image"`

	Fitness float64 `json:"fitness"`
	PhRatio float64 `json:"ph_ratio"`

	HasRaCornerPages bool   `json:"has_ra_corner_pages,omitempty"`
	RaCornerPages    [2]int `json:"ra_corner_pages,omitempty"`

	HasRaSuppressMode bool           `json:"has_ra_suppress_mode,omitempty"`
	RaSuppressMode    RaSuppressMode `json:"ra_suppress_mode,omitempty"`
	RaSuppressPages   [2]int         `json:"ra_suppress_pages,omitempty"`

	AmbiguousWrongClassificationEvents []Event `json:"ambiguous_wrong_classification_events,omitempty"`
}

type persistedClassificationResult struct {
	EventGroup                         []Event   `json:"event_group"`
	AmbiguousWrongClassificationEvents [][]Event `json:"ambiguous_wrong_classification_events,omitempty"`
}

// persistedRecord is the on-disk shape of a TrainingResult: the
// self-describing record named in the persistence schema (§4.F).
// Only event_file_offset_mappings is serialized; the derived
// file_offset_event_mappings index is rebuilt on load.
type persistedRecord struct {
	Samples                 int                                      `json:"samples"`
	EventStrings            []string                                 `json:"event_strings"`
	RawData                 []persistedFileMapping                   `json:"raw_data"`
	EventFileOffsetMappings []persistedEventMapping                  `json:"event_file_offset_mappings"`
	ClassificationResults   map[string]persistedClassificationResult `json:"classification_results"`
	HandleRa                HandleRaPolicy                           `json:"handle_ra"`
	Status                  TrainingStatus                           `json:"status"`
	UnlinkableEvents        []Event                                  `json:"unlinkable_events,omitempty"`
	OriginalEntropy         float64                                  `json:"original_entropy"`
	AttackEntropy           float64                                  `json:"attack_entropy"`
}

// Save serializes a TrainingResult to a JSON file using
// encoding/json against tagged structs, per §4.F.
func Save(path string, r *TrainingResult) error {
	rec := persistedRecord{
		Samples:          r.Samples,
		EventStrings:     r.EventStrings,
		HandleRa:         r.HandleRa,
		Status:           r.Status,
		UnlinkableEvents: r.UnlinkableEvents,
		OriginalEntropy:  r.OriginalEntropy,
		AttackEntropy:    r.AttackEntropy,
	}

	for _, fm := range r.FileMappings {
		rec.RawData = append(rec.RawData, persistedFileMapping{
			Path:              fm.Path,
			Image:             fm.Image,
			SizePages:         fm.SizePages,
			EventPageAccesses: fm.EventPageAccesses,
			EventPhRatiosRaw:  fm.EventPhRatiosRaw,
		})
	}

	for _, m := range r.EventFileOffsetMappings {
		rec.EventFileOffsetMappings = append(rec.EventFileOffsetMappings, persistedEventMapping{
			Event:                              m.Event,
			EventGroup:                         m.EventGroup,
			FileIndex:                          m.FileIndex,
			Offset:                             m.Offset,
			Image:                              m.Image,
			Fitness:                            m.Fitness,
			PhRatio:                            m.PhRatio,
			HasRaCornerPages:                   m.HasRaCornerPages,
			RaCornerPages:                      m.RaCornerPages,
			HasRaSuppressMode:                  m.HasRaSuppressMode,
			RaSuppressMode:                     m.RaSuppressMode,
			RaSuppressPages:                    m.RaSuppressPages,
			AmbiguousWrongClassificationEvents: m.AmbiguousWrongClassificationEvents,
		})
	}

	if r.ClassificationResults != nil {
		rec.ClassificationResults = map[string]persistedClassificationResult{}
		for e, cr := range r.ClassificationResults {
			rec.ClassificationResults[fmt.Sprintf("%d", e)] = persistedClassificationResult{
				EventGroup:                         cr.EventGroup,
				AmbiguousWrongClassificationEvents: cr.AmbiguousWrongClassificationEvents,
			}
		}
	}

	data, err := json.MarshalIndent(&rec, "", "  ")
	if err != nil {
		return fmt.Errorf("persistence: marshal failed: %w", err)
	}
	if err := ioutil.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("persistence: write %q failed: %w", path, err)
	}
	return nil
}

// Load deserializes a TrainingResult from a JSON file. Hit matrices
// are restored verbatim; PageIDs are left unpopulated in FileMapping
// and must be re-derived by Reopen before the result can be used for
// further collection (PFNs are not stable across reboots).
func Load(path string) (*TrainingResult, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persistence: read %q failed: %w", path, err)
	}
	rec := persistedRecord{}
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("persistence: parse %q failed: %w", path, err)
	}

	r := &TrainingResult{
		Samples:          rec.Samples,
		EventStrings:     rec.EventStrings,
		HandleRa:         rec.HandleRa,
		Status:           rec.Status,
		UnlinkableEvents: rec.UnlinkableEvents,
		OriginalEntropy:  rec.OriginalEntropy,
		AttackEntropy:    rec.AttackEntropy,
	}

	for _, fm := range rec.RawData {
		r.FileMappings = append(r.FileMappings, &FileMapping{
			Path:              fm.Path,
			Image:             fm.Image,
			SizePages:         fm.SizePages,
			EventPageAccesses: fm.EventPageAccesses,
			EventPhRatiosRaw:  fm.EventPhRatiosRaw,
		})
	}

	for _, m := range rec.EventFileOffsetMappings {
		r.EventFileOffsetMappings = append(r.EventFileOffsetMappings, &EventMapping{
			Event:                              m.Event,
			EventGroup:                         m.EventGroup,
			FileIndex:                          m.FileIndex,
			Offset:                             m.Offset,
			Image:                              m.Image,
			Fitness:                            m.Fitness,
			PhRatio:                            m.PhRatio,
			HasRaCornerPages:                   m.HasRaCornerPages,
			RaCornerPages:                      m.RaCornerPages,
			HasRaSuppressMode:                  m.HasRaSuppressMode,
			RaSuppressMode:                     m.RaSuppressMode,
			RaSuppressPages:                    m.RaSuppressPages,
			AmbiguousWrongClassificationEvents: m.AmbiguousWrongClassificationEvents,
		})
	}

	if rec.ClassificationResults != nil {
		r.ClassificationResults = map[Event]*ClassificationResult{}
		for key, cr := range rec.ClassificationResults {
			var e int
			if _, err := fmt.Sscanf(key, "%d", &e); err != nil {
				return nil, fmt.Errorf("persistence: malformed classification result key %q: %w", key, err)
			}
			r.ClassificationResults[Event(e)] = &ClassificationResult{
				EventGroup:                         cr.EventGroup,
				AmbiguousWrongClassificationEvents: cr.AmbiguousWrongClassificationEvents,
			}
		}
	}

	return r, nil
}

// Reopen re-derives PageIDs for every FileMapping in a loaded
// TrainingResult by mapping each file shared/read-only into this
// process and querying current PFN residency, matching
// renewPageIDsLinux's approach: PFNs are only meaningful for the
// process that owns the mapping, never reused across reboots.
func Reopen(r *TrainingResult) error {
	for _, fm := range r.FileMappings {
		mf, err := mapFileSharedRo(fm.Path)
		if err != nil {
			log.Warnf("persistence: cannot reopen %q: %s", fm.Path, err)
			fm.PageIDs = make([]PageID, fm.SizePages)
			for i := range fm.PageIDs {
				fm.PageIDs[i] = UntrackedPage
			}
			continue
		}
		ids, err := residentPfns(mf)
		mf.Close()
		if err != nil {
			return fmt.Errorf("persistence: querying PFNs for %q failed: %w", fm.Path, err)
		}
		fm.PageIDs = ids
	}
	return nil
}
