// Copyright 2022 Intel Corporation. All Rights Reserved.
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
	"strings"

	"gopkg.in/yaml.v3"
)

// unmarshal parses configJson (JSON is valid YAML) into config, which
// must be a pointer to a struct. An empty configJson is a no-op,
// leaving config at its zero value / existing defaults.
func unmarshal(configJson string, config interface{}) error {
	if strings.TrimSpace(configJson) == "" {
		return nil
	}
	if err := yaml.Unmarshal([]byte(configJson), config); err != nil {
		return fmt.Errorf("failed to parse configuration %q: %w", configJson, err)
	}
	return nil
}

// setMemberType is the value type of a map used as a set.
type setMemberType struct{}

var setMember = setMemberType{}

func sortInts(orig []int) []int {
	sort.Ints(orig)
	return orig
}
