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
	"bytes"
	"strings"
	"testing"
	"time"
)

// fakeProbe is a minimal Probe that never reports an access, so
// Tracer.watch's poll loop spins harmlessly until stopped.
type fakeProbe struct {
	resets int
}

func (p *fakeProbe) SetConfigJson(string) error { return nil }
func (p *fakeProbe) GetConfigJson() string      { return "" }
func (p *fakeProbe) Reset(pages []PageID) error { p.resets++; return nil }
func (p *fakeProbe) State(pages []PageID) ([]bool, error) {
	return make([]bool, len(pages)), nil
}
func (p *fakeProbe) Close() error { return nil }

func TestTracerInteractParsesHexAndStopsOnBlankLine(t *testing.T) {
	probe := &fakeProbe{}
	in := strings.NewReader("2a\n\n")
	var out bytes.Buffer

	tracer := NewTracer(probe, in, &out)

	done := make(chan struct{})
	go func() {
		tracer.Interact()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Interact did not return after input was exhausted")
	}

	if probe.resets == 0 {
		t.Errorf("expected the probe to be reset for the tracked page")
	}
	if !strings.Contains(out.String(), "watching, press enter to stop") {
		t.Errorf("expected watch banner in output, got %q", out.String())
	}
}

func TestTracerInteractRejectsInvalidHex(t *testing.T) {
	probe := &fakeProbe{}
	in := strings.NewReader("not-hex\n")
	var out bytes.Buffer

	tracer := NewTracer(probe, in, &out)
	tracer.Interact()

	if probe.resets != 0 {
		t.Errorf("expected no reset for an invalid page id, got %d", probe.resets)
	}
	if !strings.Contains(out.String(), "invalid page id") {
		t.Errorf("expected an invalid-page-id message, got %q", out.String())
	}
}
