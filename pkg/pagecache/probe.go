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
	"sort"
)

// PageID identifies a single physical page as the Probe sees it: a
// physical frame number on Linux-like backends. UntrackedPage is the
// sentinel for a page slot that could not be resolved to any
// observable handle.
type PageID int64

const UntrackedPage PageID = -1

type ProbeConfig struct {
	Name   string
	Config string
}

// Probe abstracts "reset access / query access" over a set of
// file-backed pages of interest. There is no concurrency inside a
// Probe: callers never call Reset and State concurrently. A Reset is
// followed by one or more State calls; the collector fires exactly one
// event trigger between a Reset and the State calls that follow it.
type Probe interface {
	SetConfigJson(string) error
	GetConfigJson() string

	// Reset marks each listed page as "not recently accessed".
	// Pages that cannot be reset are skipped with a warning; Reset
	// only fails if no page in pages could be reset at all.
	Reset(pages []PageID) error

	// State reports, for each listed page, whether it has been
	// accessed since the last Reset call naming it. UntrackedPage
	// is always reported as false.
	State(pages []PageID) ([]bool, error)

	// Close releases any kernel file descriptors the probe holds
	// open (idle bitmap, kpageflags, ...).
	Close() error
}

type ProbeCreator func() (Probe, error)

var probes map[string]ProbeCreator = make(map[string]ProbeCreator, 0)

func ProbeRegister(name string, creator ProbeCreator) {
	probes[name] = creator
}

func ProbeList() []string {
	keys := make([]string, 0, len(probes))
	for key := range probes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func NewProbe(name string) (Probe, error) {
	if creator, ok := probes[name]; ok {
		return creator()
	}
	return nil, fmt.Errorf("invalid probe name %q", name)
}
