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
	"fmt"
	"math"
	"regexp"
	"sort"
	"time"
)

var trainingClock = time.Now

type TrainingStatus string

const (
	TrainingOK                         TrainingStatus = "ok"
	TrainingFailed                     TrainingStatus = "failed"
	TrainingRequiresManualBlacklisting TrainingStatus = "requires manual blacklisting"
)

type TrainingConfig struct {
	FileBlacklistRe   []string
	FileWhitelistRe   []string
	FilePageBlacklist map[string][]int
	HandleRa          HandleRaPolicy
	// FitnessThreshold overrides the package default FitnessThreshold
	// when non-zero.
	FitnessThreshold float64
}

type ClassificationResult struct {
	EventGroup                         []Event
	AmbiguousWrongClassificationEvents [][]Event
}

// TrainingResult is training's self-describing output record (§4.F).
type TrainingResult struct {
	Samples                 int
	EventStrings            []string
	FileMappings            []*FileMapping
	EventFileOffsetMappings []*EventMapping
	ClassificationResults   map[Event]*ClassificationResult
	HandleRa                HandleRaPolicy

	Status           TrainingStatus
	UnlinkableEvents []Event
	OriginalEntropy  float64
	AttackEntropy    float64
}

// fileOffsetEventMappings derives the file -> page -> mapping index
// used by the classifier, from the single serialized source of truth
// EventFileOffsetMappings.
func (r *TrainingResult) fileOffsetEventMappings() map[string]map[int]*EventMapping {
	out := map[string]map[int]*EventMapping{}
	for _, m := range r.EventFileOffsetMappings {
		file := r.FileMappings[m.FileIndex].Path
		page := m.Offset / int(constUPagesize)
		if _, ok := out[file]; !ok {
			out[file] = map[int]*EventMapping{}
		}
		out[file][page] = m
	}
	return out
}

// NewClassifierFromTraining builds a Classifier from a training
// result, re-deriving file_offset_event_mappings on load per §9.
func NewClassifierFromTraining(r *TrainingResult) *Classifier {
	return NewClassifier(r.fileOffsetEventMappings(), r.HandleRa, len(r.EventStrings))
}

type Training struct {
	config       *TrainingConfig
	labels       EventLabels
	samples      int
	fileMappings []*FileMapping
	blacklistRe  []*regexp.Regexp
	whitelistRe  []*regexp.Regexp
	argsort      [][][]Event // [fileIdx][page] -> non-idle events sorted by descending ratio
}

func NewTraining(labels EventLabels, samples int, fileMappings []*FileMapping, config *TrainingConfig) (*Training, error) {
	t := &Training{labels: labels, samples: samples, fileMappings: fileMappings, config: config}
	for _, pattern := range config.FileBlacklistRe {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid file blacklist pattern %q: %w", pattern, err)
		}
		t.blacklistRe = append(t.blacklistRe, re)
	}
	for _, pattern := range config.FileWhitelistRe {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid file whitelist pattern %q: %w", pattern, err)
		}
		t.whitelistRe = append(t.whitelistRe, re)
	}
	return t, nil
}

// fitnessThreshold returns the configured acceptance threshold,
// falling back to the package default when the config leaves it at
// its zero value.
func (t *Training) fitnessThreshold() float64 {
	if t.config.FitnessThreshold != 0 {
		return t.config.FitnessThreshold
	}
	return FitnessThreshold
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// filter implements D.1: drop blacklisted files (ignored if a
// whitelist is set, in which case only whitelisted files survive),
// then zero out explicitly blacklisted per-file pages.
func (t *Training) filter() {
	blacklist := t.blacklistRe
	if len(t.whitelistRe) > 0 {
		blacklist = nil
	}
	kept := make([]*FileMapping, 0, len(t.fileMappings))
	for _, fm := range t.fileMappings {
		if len(t.whitelistRe) > 0 {
			if !matchesAny(t.whitelistRe, fm.Path) {
				continue
			}
		} else if matchesAny(blacklist, fm.Path) {
			continue
		}
		kept = append(kept, fm)
	}
	t.fileMappings = kept

	for _, fm := range t.fileMappings {
		blacklistedPages := t.config.FilePageBlacklist[fm.Path]
		for _, page := range blacklistedPages {
			if page < 0 || page >= fm.SizePages {
				continue
			}
			for e := range fm.EventPageAccesses {
				fm.EventPageAccesses[e][page] = 0
			}
		}
	}
}

// computeRatios implements D.2.
func (t *Training) computeRatios() {
	for _, fm := range t.fileMappings {
		fm.EventPhRatiosRaw = make([][]float64, len(fm.EventPageAccesses))
		for e, accesses := range fm.EventPageAccesses {
			ratios := make([]float64, len(accesses))
			for p, count := range accesses {
				ratios[p] = float64(count) / float64(t.samples)
			}
			fm.EventPhRatiosRaw[e] = ratios
		}
	}
}

// presort implements D.3: for each page, the non-idle events sorted
// by descending raw ratio, used to merge candidate event groups.
func (t *Training) presort() {
	nonIdle := t.labels.NonIdleEvents()
	t.argsort = make([][][]Event, len(t.fileMappings))
	for fi, fm := range t.fileMappings {
		pageSort := make([][]Event, fm.SizePages)
		for p := 0; p < fm.SizePages; p++ {
			order := make([]Event, len(nonIdle))
			copy(order, nonIdle)
			sort.Slice(order, func(i, j int) bool {
				return fm.EventPhRatiosRaw[order[i]][p] > fm.EventPhRatiosRaw[order[j]][p]
			})
			pageSort[p] = order
		}
		t.argsort[fi] = pageSort
	}
}

type linkCandidate struct {
	fitness      float64
	phRatio      float64
	fileIdx      int
	page         int
	image        bool
	eventGroup   []Event // includes the target event, sorted ascending
	filteredSize int
}

// tryLinkEventWithPageHitUnderGivenGroupSize mirrors
// tryLinkEventWithPageHitUnderGivenGroupSize from the Python original:
// for every file mapping compute a noise-adjusted fitness score per
// page, pick the best unblacklisted page, and keep the candidate with
// the smallest newly-introduced event count (ties broken by fitness).
func (t *Training) tryLinkEventWithPageHitUnderGivenGroupSize(event Event, detectable map[Event]setMemberType, groupSize int) *linkCandidate {
	var best *linkCandidate
	idle := t.labels.IdleEvent()

	for fi, fm := range t.fileMappings {
		if fm.SizePages == 0 {
			continue
		}
		fitness := make([]float64, fm.SizePages)
		mergeGroupPerPage := make([][]Event, fm.SizePages)
		copy(fitness, fm.EventPhRatiosRaw[event])

		if groupSize > 1 {
			for p := 0; p < fm.SizePages; p++ {
				order := t.argsort[fi][p]
				filtered := make([]Event, 0, len(order))
				for _, e := range order {
					if e != event {
						filtered = append(filtered, e)
					}
				}
				if len(filtered) < groupSize-1 {
					continue
				}
				mergeGroup := filtered[:groupSize-1]
				mergeGroupPerPage[p] = mergeGroup
				merged := fitness[p]
				for _, e := range mergeGroup {
					if r := fm.EventPhRatiosRaw[e][p]; r < merged {
						merged = r
					}
				}
				noise := fm.EventPhRatiosRaw[idle][p]
				for _, e := range filtered[groupSize-1:] {
					noise += fm.EventPhRatiosRaw[e][p]
				}
				fitness[p] = merged - noise
			}
		} else {
			for p := 0; p < fm.SizePages; p++ {
				noise := 0.0
				for e := range fm.EventPhRatiosRaw {
					noise += fm.EventPhRatiosRaw[e][p]
				}
				noise -= fm.EventPhRatiosRaw[event][p]
				fitness[p] = fm.EventPhRatiosRaw[event][p] - noise
			}
		}

		if t.config.HandleRa == HandleRaNoise {
			t.applyReadaheadNoise(fm, fitness)
		}

		blacklistedPages := map[int]setMemberType{}
		for _, p := range t.config.FilePageBlacklist[fm.Path] {
			blacklistedPages[p] = setMember
		}

		candidatePage := -1
		for {
			candidatePage = argmaxFloat(fitness)
			if candidatePage < 0 {
				break
			}
			if _, blacklisted := blacklistedPages[candidatePage]; blacklisted {
				fitness[candidatePage] = math.Inf(-1)
				continue
			}
			break
		}
		if candidatePage < 0 {
			continue
		}

		candidateFitness := fitness[candidatePage]
		group := map[Event]setMemberType{event: setMember}
		if groupSize > 1 {
			for _, e := range mergeGroupPerPage[candidatePage] {
				group[e] = setMember
			}
		}
		filteredSize := 0
		for e := range group {
			if _, ok := detectable[e]; !ok {
				filteredSize++
			}
		}

		threshold := t.fitnessThreshold()
		accept := false
		if best == nil {
			accept = candidateFitness >= threshold
		} else if filteredSize < best.filteredSize && candidateFitness >= threshold {
			accept = true
		} else if filteredSize == best.filteredSize && candidateFitness > best.fitness {
			accept = true
		}
		if !accept {
			continue
		}

		groupSlice := make([]Event, 0, len(group))
		for e := range group {
			groupSlice = append(groupSlice, e)
		}
		sort.Slice(groupSlice, func(i, j int) bool { return groupSlice[i] < groupSlice[j] })

		best = &linkCandidate{
			fitness:      candidateFitness,
			phRatio:      fm.EventPhRatiosRaw[event][candidatePage],
			fileIdx:      fi,
			page:         candidatePage,
			image:        fm.Image,
			eventGroup:   groupSlice,
			filteredSize: filteredSize,
		}
	}
	return best
}

func argmaxFloat(xs []float64) int {
	best := -1
	bestVal := math.Inf(-1)
	for i, x := range xs {
		if x > bestVal {
			bestVal = x
			best = i
		}
	}
	return best
}

// applyReadaheadNoise implements the "noise" readahead policy: every
// page within the kernel's readaround-trigger window of p is treated
// as possible noise and its aggregate hit ratio subtracted.
func (t *Training) applyReadaheadNoise(fm *FileMapping, fitness []float64) {
	W := ReadaheadWindowPages
	backTriggerWindow := 2*W - 1
	mjBack := W / 2
	frontTriggerWindow := mjBack

	rhSum := make([]float64, fm.SizePages)
	for p := 0; p < fm.SizePages; p++ {
		sum := 0.0
		for e := range fm.EventPhRatiosRaw {
			sum += fm.EventPhRatiosRaw[e][p]
		}
		rhSum[p] = sum
	}

	adjusted := make([]float64, len(fitness))
	copy(adjusted, fitness)
	for p := 0; p < fm.SizePages; p++ {
		var backStart int
		if p < backTriggerWindow {
			backStart = 0
		} else {
			backStart = p - backTriggerWindow
		}
		back := 0.0
		for q := backStart; q < p; q++ {
			back += rhSum[q]
		}
		front := 0.0
		frontEnd := p + 1 + frontTriggerWindow
		if frontEnd > fm.SizePages {
			frontEnd = fm.SizePages
		}
		for q := p + 1; q < frontEnd; q++ {
			front += rhSum[q]
		}
		adjusted[p] = fitness[p] - (back + front)
	}
	copy(fitness, adjusted)
}

func sortedEventKeys(m map[Event]setMemberType) []Event {
	keys := make([]Event, 0, len(m))
	for e := range m {
		keys = append(keys, e)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// linkEventsWithPageHits implements D.4's outer loop.
func (t *Training) linkEventsWithPageHits() ([]*EventMapping, []Event) {
	eventsToProcess := map[Event]setMemberType{}
	for _, e := range t.labels.NonIdleEvents() {
		eventsToProcess[e] = setMember
	}
	detectable := map[Event]setMemberType{}
	found := []*EventMapping{}

	for groupSize := 1; groupSize < len(t.labels) && len(eventsToProcess) > 0; groupSize++ {
		next := map[Event]setMemberType{}
		for _, targetEvent := range sortedEventKeys(eventsToProcess) {
			best := t.tryLinkEventWithPageHitUnderGivenGroupSize(targetEvent, detectable, groupSize)
			if best == nil {
				next[targetEvent] = setMember
				continue
			}
			for _, e := range best.eventGroup {
				detectable[e] = setMember
			}
			found = append(found, &EventMapping{
				Event:      targetEvent,
				EventGroup: best.eventGroup,
				FileIndex:  best.fileIdx,
				Offset:     best.page * int(constUPagesize),
				Image:      best.image,
				Fitness:    best.fitness,
				PhRatio:    best.phRatio,
			})
		}
		eventsToProcess = next
	}

	return found, sortedEventKeys(eventsToProcess)
}

// raReadaheadWindow implements raSuppressionGetReadaheadWindow: the
// kernel readaround corner pages (L, R) centered on page, clipping
// asymmetrically near page 0 the way ondemand_readahead does.
func raReadaheadWindow(page, sizePages int) (int, int) {
	W := ReadaheadWindowPages
	mjBack := W / 2
	mjFront := W/2 - 1
	lastPage := sizePages - 1
	if page < mjBack {
		back := 0
		if page == 0 {
			back = -1
		}
		front := mjFront + mjBack
		if front > lastPage {
			front = lastPage
		}
		return back, front
	}
	back := page - mjBack
	front := page + mjFront
	if front > lastPage {
		front = lastPage
	}
	return back, front
}

// raPagesWhichTriggerReadahead finds, among file's tracked oracle
// pages, those whose own readaround window could have prefetched
// page: "back" triggers precede page, "front" triggers follow it.
func raPagesWhichTriggerReadahead(page int, tracked map[int]setMemberType, sizePages int) ([]int, []int) {
	W := ReadaheadWindowPages
	mjBack := W / 2
	mjFront := W/2 - 1
	lastPage := sizePages - 1

	backCorner := 0
	if page >= W {
		backCorner = page - mjFront
	}
	frontCorner := page + mjBack
	if frontCorner > lastPage {
		frontCorner = lastPage
	}

	back := []int{}
	for p := backCorner; p < page; p++ {
		if _, ok := tracked[p]; ok {
			back = append(back, p)
		}
	}
	front := []int{}
	for p := page + 1; p <= frontCorner; p++ {
		if _, ok := tracked[p]; ok {
			front = append(front, p)
		}
	}
	return back, front
}

func findQuietPageForward(ratios []float64, start, end int, threshold float64) int {
	for p := start; p < end; p++ {
		if ratios[p] <= threshold {
			return p
		}
	}
	return -1
}

func findQuietPageBackward(ratios []float64, start, end int, threshold float64) int {
	for p := start; p > end; p-- {
		if ratios[p] <= threshold {
			return p
		}
	}
	return -1
}

// suppressReadahead implements D.5 for handleRa == "suppressed":
// attach readaround corner pages and, where a quiet neighbor exists,
// suppress-corner pages used later by the classifier's
// raSuppressionSpeculativePage to tell real hits from prefetch noise.
func (t *Training) suppressReadahead(mappings []*EventMapping) {
	byFile := map[int][]*EventMapping{}
	for _, m := range mappings {
		byFile[m.FileIndex] = append(byFile[m.FileIndex], m)
	}

	for fi, fileMappings := range byFile {
		fm := t.fileMappings[fi]
		assistRatios := make([]float64, fm.SizePages)
		for p := 0; p < fm.SizePages; p++ {
			sum := 0.0
			for e := range fm.EventPhRatiosRaw {
				sum += fm.EventPhRatiosRaw[e][p]
			}
			if sum > 1 {
				sum = 1
			}
			assistRatios[p] = sum
		}

		tracked := map[int]setMemberType{}
		for _, m := range fileMappings {
			tracked[m.Offset/int(constUPagesize)] = setMember
		}

		W := ReadaheadWindowPages
		mjBack := W / 2
		mjFront := W/2 - 1

		for _, m := range fileMappings {
			page := m.Offset / int(constUPagesize)
			L, R := raReadaheadWindow(page, fm.SizePages)
			m.HasRaCornerPages = true
			m.RaCornerPages = [2]int{L, R}

			back, front := raPagesWhichTriggerReadahead(page, tracked, fm.SizePages)

			var suppressBack, suppressFront int = -1, -1
			if len(front) > 0 {
				start := page - mjBack
				if start < 0 {
					start = 0
				}
				end := front[0] - mjBack
				if end < 0 {
					end = 0
				}
				suppressBack = findQuietPageForward(assistRatios, start, end, PhRatiosSimilarThreshold)
			}
			if len(back) > 0 {
				start := page + mjFront
				if start > fm.SizePages-1 {
					start = fm.SizePages - 1
				}
				end := back[len(back)-1] + mjFront
				if end > fm.SizePages-1 {
					end = fm.SizePages - 1
				}
				suppressFront = findQuietPageBackward(assistRatios, start, end, PhRatiosSimilarThreshold)
			}

			switch {
			case suppressBack >= 0 && suppressFront >= 0:
				m.HasRaSuppressMode = true
				m.RaSuppressMode = RaSuppressBoth
				m.RaSuppressPages = [2]int{suppressBack, suppressFront}
			case suppressBack >= 0:
				m.HasRaSuppressMode = true
				m.RaSuppressMode = RaSuppressBack
				m.RaSuppressPages = [2]int{suppressBack, 0}
			case suppressFront >= 0:
				m.HasRaSuppressMode = true
				m.RaSuppressMode = RaSuppressFront
				m.RaSuppressPages = [2]int{0, suppressFront}
			}
		}
	}
}

func permuteEventMappings(items []*EventMapping, f func([]*EventMapping)) {
	n := len(items)
	perm := make([]*EventMapping, n)
	copy(perm, items)
	var generate func(k int)
	generate = func(k int) {
		if k == 1 {
			out := make([]*EventMapping, n)
			copy(out, perm)
			f(out)
			return
		}
		for i := 0; i < k; i++ {
			generate(k - 1)
			if k%2 == 0 {
				perm[i], perm[k-1] = perm[k-1], perm[i]
			} else {
				perm[0], perm[k-1] = perm[k-1], perm[0]
			}
		}
	}
	if n == 0 {
		f(nil)
		return
	}
	generate(n)
}

func eventSetsEqual(a, b []Event) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]Event{}, a...)
	bs := append([]Event{}, b...)
	sort.Slice(as, func(i, j int) bool { return as[i] < as[j] })
	sort.Slice(bs, func(i, j int) bool { return bs[i] < bs[j] })
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func (t *Training) simulateEventPageHits(eventID Event, mappings []*EventMapping, fileObservedPages map[string]map[int]setMemberType, ignoreReadahead bool) Sample {
	sample := NewSample()
	for _, m := range mappings {
		if !m.EventGroupContains(eventID) {
			continue
		}
		file := t.fileMappings[m.FileIndex].Path
		targetPage := m.Offset / int(constUPagesize)
		alreadyPresent := sample.has(file, targetPage)
		sample.add(file, targetPage)
		if ignoreReadahead || alreadyPresent || !m.HasRaCornerPages {
			continue
		}
		for p := m.RaCornerPages[0]; p <= m.RaCornerPages[1]; p++ {
			if p == targetPage || p < 0 {
				continue
			}
			if _, ok := fileObservedPages[file][p]; !ok {
				continue
			}
			sample.add(file, p)
		}
	}
	return sample
}

// selfValidate implements D.6: simulate classification of every
// accepted mapping under every access-order permutation and compare
// against the ideal (no-readahead) simulation.
func (t *Training) selfValidate(result *TrainingResult) bool {
	fileObserved := map[string]map[int]setMemberType{}
	for _, m := range result.EventFileOffsetMappings {
		file := t.fileMappings[m.FileIndex].Path
		page := m.Offset / int(constUPagesize)
		if _, ok := fileObserved[file]; !ok {
			fileObserved[file] = map[int]setMemberType{}
		}
		fileObserved[file][page] = setMember
		if m.HasRaSuppressMode {
			switch m.RaSuppressMode {
			case RaSuppressBack:
				fileObserved[file][m.RaSuppressPages[0]] = setMember
			case RaSuppressFront:
				fileObserved[file][m.RaSuppressPages[1]] = setMember
			case RaSuppressBoth:
				fileObserved[file][m.RaSuppressPages[0]] = setMember
				fileObserved[file][m.RaSuppressPages[1]] = setMember
			}
		}
	}

	idealClassifier := NewClassifier(result.fileOffsetEventMappings(), HandleRaNone, len(t.labels))
	result.ClassificationResults = map[Event]*ClassificationResult{}
	for _, e := range t.labels.NonIdleEvents() {
		simulated := t.simulateEventPageHits(e, result.EventFileOffsetMappings, fileObserved, true)
		group := idealClassifier.ClassifySample(simulated)
		result.ClassificationResults[e] = &ClassificationResult{EventGroup: group}
	}

	if t.config.HandleRa != HandleRaSuppressed {
		return true
	}

	realClassifier := NewClassifier(result.fileOffsetEventMappings(), HandleRaSuppressed, len(t.labels))
	ok := true
	for _, e := range t.labels.NonIdleEvents() {
		affected := []*EventMapping{}
		for _, m := range result.EventFileOffsetMappings {
			if m.EventGroupContains(e) {
				affected = append(affected, m)
			}
		}
		cr := result.ClassificationResults[e]
		permuteEventMappings(affected, func(perm []*EventMapping) {
			simulated := t.simulateEventPageHits(e, perm, fileObserved, false)
			got := realClassifier.ClassifySample(simulated)
			if eventSetsEqual(got, cr.EventGroup) {
				return
			}
			for _, existing := range cr.AmbiguousWrongClassificationEvents {
				if eventSetsEqual(existing, got) {
					return
				}
			}
			cr.AmbiguousWrongClassificationEvents = append(cr.AmbiguousWrongClassificationEvents, got)
			ok = false
			for _, m := range affected {
				m.AmbiguousWrongClassificationEvents = append(m.AmbiguousWrongClassificationEvents, got...)
			}
		})
	}
	return ok
}

// entropyReport implements D.7, computed over the distinct ideal
// classification outcomes (as the original does), not the raw
// accepted mapping groups.
func (t *Training) entropyReport(result *TrainingResult) {
	n := float64(len(t.labels))
	result.OriginalEntropy = math.Log2(n - 1)

	seen := map[string]setMemberType{}
	attack := 0.0
	for _, e := range t.labels.NonIdleEvents() {
		cr, ok := result.ClassificationResults[e]
		if !ok {
			continue
		}
		key := fmt.Sprintf("%v", sortedIntsFromEvents(cr.EventGroup))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = setMember
		g := float64(len(cr.EventGroup))
		if g == 0 {
			continue
		}
		attack -= (g / n) * math.Log2(g/n)
	}
	result.AttackEntropy = attack
}

func sortedIntsFromEvents(events []Event) []int {
	out := make([]int, len(events))
	for i, e := range events {
		out[i] = int(e)
	}
	return sortInts(out)
}

// Train runs the full D.1-D.7 pipeline.
func (t *Training) Train() *TrainingResult {
	start := trainingClock()
	defer func() {
		metricsInstance.trainingDuration.Observe(trainingClock().Sub(start).Seconds())
	}()

	result := &TrainingResult{
		Samples:      t.samples,
		EventStrings: append([]string{}, t.labels...),
		HandleRa:     t.config.HandleRa,
		Status:       TrainingOK,
	}

	t.filter()
	t.computeRatios()
	t.presort()
	result.FileMappings = t.fileMappings

	mappings, unlinkable := t.linkEventsWithPageHits()
	if len(mappings) == 0 {
		result.Status = TrainingFailed
		result.UnlinkableEvents = unlinkable
		return result
	}
	result.EventFileOffsetMappings = mappings
	if len(unlinkable) > 0 {
		result.UnlinkableEvents = unlinkable
	}

	if t.config.HandleRa == HandleRaSuppressed {
		t.suppressReadahead(mappings)
	}

	if !t.selfValidate(result) {
		result.Status = TrainingRequiresManualBlacklisting
	}
	t.entropyReport(result)

	return result
}
