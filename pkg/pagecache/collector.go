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
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"
)

type EventSequence interface {
	// Next returns the next event to fire, and ok=false once the
	// sequence is exhausted.
	Next() (Event, bool)
}

// EventSequenceUniformRandom yields samples passes, each pass a fresh
// uniformly random permutation of all events (idle included).
type EventSequenceUniformRandom struct {
	events  []Event
	rng     *rand.Rand
	pass    []Event
	pos     int
	samples int
	done    int
}

func NewEventSequenceUniformRandom(events []Event, samples int, rng *rand.Rand) *EventSequenceUniformRandom {
	return &EventSequenceUniformRandom{events: events, rng: rng, samples: samples}
}

func (s *EventSequenceUniformRandom) Next() (Event, bool) {
	if s.pos >= len(s.pass) {
		if s.done >= s.samples {
			return 0, false
		}
		s.pass = make([]Event, len(s.events))
		copy(s.pass, s.events)
		s.rng.Shuffle(len(s.pass), func(i, j int) { s.pass[i], s.pass[j] = s.pass[j], s.pass[i] })
		s.pos = 0
		s.done++
	}
	e := s.pass[s.pos]
	s.pos++
	return e, true
}

// EventSequenceHalfRepeated yields floor(samples/2) uniform random
// passes over every event, then repeats each event (idle included)
// floor(samples/2) times back to back, so with an odd samples count
// every event is fired one time fewer than samples.
type EventSequenceHalfRepeated struct {
	random  *EventSequenceUniformRandom
	events  []Event
	repeats int
	evIdx   int
	rep     int
}

func NewEventSequenceHalfRepeated(events []Event, samples int, rng *rand.Rand) *EventSequenceHalfRepeated {
	half := samples / 2
	return &EventSequenceHalfRepeated{
		random:  NewEventSequenceUniformRandom(events, half, rng),
		events:  events,
		repeats: half,
	}
}

func (s *EventSequenceHalfRepeated) Next() (Event, bool) {
	if e, ok := s.random.Next(); ok {
		return e, true
	}
	for s.evIdx < len(s.events) {
		if s.rep < s.repeats {
			s.rep++
			return s.events[s.evIdx], true
		}
		s.evIdx++
		s.rep = 0
	}
	return 0, false
}

type CollectorConfig struct {
	Samples int
	// Sequence selects the default event ordering: "uniform" or
	// "half-repeated".
	Sequence string
	// PreFilter demotes pages that never fired during a 3x warm-up
	// round to untracked, shrinking per-sample probe cost.
	PreFilter bool
	Seed      int64
}

const collectorDefaults = `{"Samples":1000,"Sequence":"uniform","PreFilter":true,"Seed":1}`

// Collector drives the trigger/probe loop described by the training
// pipeline's data requirements: reset, trigger, settle, sample,
// accumulate, once per event per pass.
type Collector struct {
	config       *CollectorConfig
	trigger      Trigger
	probe        Probe
	fileMappings []*FileMapping
}

func NewCollector(trigger Trigger, probe Probe, fileMappings []*FileMapping) *Collector {
	c := &Collector{trigger: trigger, probe: probe, fileMappings: fileMappings}
	c.SetConfigJson(collectorDefaults)
	return c
}

func (c *Collector) SetConfigJson(configJson string) error {
	config := &CollectorConfig{}
	if err := unmarshal(configJson, config); err != nil {
		return err
	}
	c.config = config
	return nil
}

func (c *Collector) GetConfigJson() string {
	if c.config == nil {
		return ""
	}
	if configStr, err := json.Marshal(c.config); err == nil {
		return string(configStr)
	}
	return ""
}

func (c *Collector) allPageIDs() []PageID {
	ids := []PageID{}
	for _, fm := range c.fileMappings {
		ids = append(ids, fm.PageIDs...)
	}
	return ids
}

// warmUp triggers every non-idle event once, per training step 1.
func (c *Collector) warmUp(ctx context.Context, labels EventLabels) error {
	for _, e := range labels.NonIdleEvents() {
		if err := c.fireAndSettle(ctx, e); err != nil {
			return err
		}
	}
	time.Sleep(2 * time.Second)
	return nil
}

func (c *Collector) fireAndSettle(ctx context.Context, e Event) error {
	if err := c.trigger.Fire(ctx, e); err != nil {
		return err
	}
	select {
	case <-time.After(time.Duration(WaitAfterEventSeconds * float64(time.Second))):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// applyPreFilter fires every non-idle event 3 times, demoting any page
// that never lit up to UntrackedPage.
func (c *Collector) applyPreFilter(ctx context.Context, labels EventLabels) error {
	active := make([][]bool, len(c.fileMappings))
	for i, fm := range c.fileMappings {
		active[i] = make([]bool, fm.SizePages)
	}
	for round := 0; round < 3; round++ {
		for _, e := range labels.NonIdleEvents() {
			pages := c.allPageIDs()
			if err := c.probe.Reset(pages); err != nil {
				return err
			}
			if err := c.fireAndSettle(ctx, e); err != nil {
				return err
			}
			for i, fm := range c.fileMappings {
				states, err := c.probe.State(fm.PageIDs)
				if err != nil {
					return err
				}
				for j, hit := range states {
					if hit {
						active[i][j] = true
					}
				}
			}
		}
	}
	for i, fm := range c.fileMappings {
		for j := range fm.PageIDs {
			if !active[i][j] {
				fm.PageIDs[j] = UntrackedPage
			}
		}
	}
	return nil
}

// Run executes the full collection pipeline: warm-up, optional
// pre-filter, then Samples passes of reset/trigger/settle/accumulate
// driven by the configured sequence generator. It is cancellable via
// ctx: the loop checks ctx before each event, and ctx is also passed to
// the trigger's Fire and to the settle wait.
func (c *Collector) Run(ctx context.Context, labels EventLabels) error {
	if err := c.warmUp(ctx, labels); err != nil {
		return fmt.Errorf("collector warm-up failed: %w", err)
	}
	if c.config.PreFilter {
		if err := c.applyPreFilter(ctx, labels); err != nil {
			return fmt.Errorf("collector pre-filter failed: %w", err)
		}
	}

	events := make([]Event, 0, len(labels))
	for e := range labels {
		events = append(events, Event(e))
	}

	for i, fm := range c.fileMappings {
		fm.EventPageAccesses = make([][]int, len(labels))
		for e := range fm.EventPageAccesses {
			fm.EventPageAccesses[e] = make([]int, fm.SizePages)
		}
		c.fileMappings[i] = fm
	}

	rng := rand.New(rand.NewSource(c.config.Seed))
	var seq EventSequence
	switch c.config.Sequence {
	case "half-repeated":
		seq = NewEventSequenceHalfRepeated(events, c.config.Samples, rng)
	default:
		seq = NewEventSequenceUniformRandom(events, c.config.Samples, rng)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		e, ok := seq.Next()
		if !ok {
			break
		}

		pages := c.allPageIDs()
		if err := c.probe.Reset(pages); err != nil {
			return fmt.Errorf("collector: reset failed: %w", err)
		}
		if err := c.fireAndSettle(ctx, e); err != nil {
			return fmt.Errorf("collector: trigger for event %s failed: %w", labels.String(e), err)
		}
		metricsInstance.eventsFired.WithLabelValues(labels.String(e)).Inc()
		metricsInstance.samplesCollected.Inc()
		for _, fm := range c.fileMappings {
			states, err := c.probe.State(fm.PageIDs)
			if err != nil {
				return fmt.Errorf("collector: state query failed: %w", err)
			}
			for j, hit := range states {
				if hit {
					fm.EventPageAccesses[e][j]++
				}
			}
		}
	}
	return nil
}
