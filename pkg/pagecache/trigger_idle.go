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

// The idle trigger has a single, idle event: firing it merely sleeps,
// for smoke-testing the collector/training pipeline without any
// victim process wired up.

package pagecache

import (
	"context"
	"encoding/json"
	"time"
)

type TriggerIdleConfig struct {
	// WaitSeconds is how long firing the idle event sleeps.
	WaitSeconds float64
}

const triggerIdleDefaults = `{"WaitSeconds":30}`

type TriggerIdle struct {
	config *TriggerIdleConfig
}

func init() {
	TriggerRegister("idle", NewTriggerIdle)
}

func NewTriggerIdle() (Trigger, error) {
	t := &TriggerIdle{}
	t.SetConfigJson(triggerIdleDefaults)
	return t, nil
}

func (t *TriggerIdle) SetConfigJson(configJson string) error {
	config := &TriggerIdleConfig{}
	if err := unmarshal(configJson, config); err != nil {
		return err
	}
	if config.WaitSeconds == 0 {
		config.WaitSeconds = IdleEventWaitSeconds
	}
	t.config = config
	return nil
}

func (t *TriggerIdle) GetConfigJson() string {
	if t.config == nil {
		return ""
	}
	if configStr, err := json.Marshal(t.config); err == nil {
		return string(configStr)
	}
	return ""
}

func (t *TriggerIdle) Labels() EventLabels {
	return EventLabels{"idle"}
}

func (t *TriggerIdle) Fire(ctx context.Context, e Event) error {
	wait := time.Duration(t.config.WaitSeconds * float64(time.Second))
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
