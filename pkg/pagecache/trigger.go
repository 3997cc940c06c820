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
	"fmt"
	"sort"
)

type TriggerConfig struct {
	Name   string
	Config string
}

// Trigger fires a single event and blocks until the victim has had a
// reasonable chance to touch the pages that event accesses. Labels
// returns the event names in index order, the last one always being
// the idle event.
type Trigger interface {
	SetConfigJson(string) error
	GetConfigJson() string

	Labels() EventLabels

	// Fire triggers event e and returns once the victim should have
	// settled. ctx allows the caller to abandon a long-running
	// trigger (such as the idle wait) early.
	Fire(ctx context.Context, e Event) error
}

type TriggerCreator func() (Trigger, error)

var triggers map[string]TriggerCreator = make(map[string]TriggerCreator, 0)

func TriggerRegister(name string, creator TriggerCreator) {
	triggers[name] = creator
}

func TriggerList() []string {
	keys := make([]string, 0, len(triggers))
	for key := range triggers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func NewTrigger(name string) (Trigger, error) {
	if creator, ok := triggers[name]; ok {
		return creator()
	}
	return nil, fmt.Errorf("invalid trigger name %q", name)
}
