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

// The idlepage probe uses /sys/kernel/mm/page_idle/bitmap and
// /proc/kpageflags to observe page-cache residency by physical frame
// number (PFN), the same kernel interface pkg/pagecache's idle page
// tracker used to observe process memory access.

package pagecache

import (
	"encoding/json"
	"fmt"
)

type ProbeIdlePageConfig struct {
	// BitmapReadahead is the number of chunks of 64 pages to be
	// read ahead from /sys/kernel/mm/page_idle/bitmap. 0 means a
	// default, -1 disables readahead.
	BitmapReadahead int
	// KpageflagsReadahead is the number of pages to be read ahead
	// from /proc/kpageflags. 0 means a default, -1 disables it.
	KpageflagsReadahead int
}

const probeIdlePageDefaults string = `{"BitmapReadahead":0,"KpageflagsReadahead":0}`

type ProbeIdlePage struct {
	config *ProbeIdlePageConfig
}

func init() {
	ProbeRegister("idlepage", NewProbeIdlePage)
}

func NewProbeIdlePage() (Probe, error) {
	if bmFile, err := ProcPageIdleBitmapOpen(); err != nil {
		return nil, fmt.Errorf("no idle page platform support: %w", err)
	} else {
		bmFile.Close()
	}
	p := &ProbeIdlePage{}
	if err := p.SetConfigJson(probeIdlePageDefaults); err != nil {
		return nil, fmt.Errorf("invalid idlepage probe default configuration")
	}
	return p, nil
}

func (p *ProbeIdlePage) SetConfigJson(configJson string) error {
	config := &ProbeIdlePageConfig{}
	if err := unmarshal(configJson, config); err != nil {
		return err
	}
	p.config = config
	return nil
}

func (p *ProbeIdlePage) GetConfigJson() string {
	if p.config == nil {
		return ""
	}
	if configStr, err := json.Marshal(p.config); err == nil {
		return string(configStr)
	}
	return ""
}

func (p *ProbeIdlePage) Close() error {
	return nil
}

// Reset sets the idle bit of every tracked page. Pages whose bit
// cannot be written are skipped with a warning; Reset fails only if
// every page in pages failed.
func (p *ProbeIdlePage) Reset(pages []PageID) error {
	bmFile, err := ProcPageIdleBitmapOpen()
	if err != nil {
		return fmt.Errorf("failed to open idle bitmap: %w", err)
	}
	defer bmFile.Close()
	if p.config.BitmapReadahead != 0 {
		bmFile.SetReadahead(p.config.BitmapReadahead)
	}

	resetCount := 0
	for _, pfn := range pages {
		if pfn == UntrackedPage {
			continue
		}
		if err := bmFile.SetIdleAll(uint64(pfn)); err != nil {
			log.Warnf("probe idlepage: failed to reset page %d: %s", pfn, err)
			continue
		}
		resetCount++
	}
	if resetCount == 0 && len(pages) > 0 {
		return fmt.Errorf("failed to reset any of %d pages", len(pages))
	}
	return nil
}

// State reports, for each page, whether it has been accessed since
// the matching Reset call.
func (p *ProbeIdlePage) State(pages []PageID) ([]bool, error) {
	bmFile, err := ProcPageIdleBitmapOpen()
	if err != nil {
		return nil, fmt.Errorf("failed to open idle bitmap: %w", err)
	}
	defer bmFile.Close()
	if p.config.BitmapReadahead != 0 {
		bmFile.SetReadahead(p.config.BitmapReadahead)
	}

	kpfFile, err := ProcKpageflagsOpen()
	if err != nil {
		return nil, fmt.Errorf("failed to open kpageflags: %w", err)
	}
	defer kpfFile.Close()
	if p.config.KpageflagsReadahead != 0 {
		kpfFile.SetReadahead(p.config.KpageflagsReadahead)
	}

	accessed := make([]bool, len(pages))
	for i, pfn := range pages {
		if pfn == UntrackedPage {
			accessed[i] = false
			continue
		}
		idle, err := bmFile.GetIdle(uint64(pfn))
		if err != nil {
			log.Warnf("probe idlepage: failed to read idle bit of page %d: %s", pfn, err)
			accessed[i] = false
			continue
		}
		if idle {
			accessed[i] = false
			continue
		}
		// Compound tail pages never carry their own idle bit;
		// only trust the signal on normal pages or compound
		// heads.
		flags, err := kpfFile.ReadFlags(uint64(pfn))
		if err != nil {
			accessed[i] = true
			continue
		}
		isTail := (flags>>KPFB_COMPOUND_TAIL)&1 == 1 && (flags>>KPFB_COMPOUND_HEAD)&1 == 0
		accessed[i] = !isTail
	}
	return accessed, nil
}
