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
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

type DiscoveryConfig struct {
	// IncludePaths are walked (non-symlinks only) and every
	// regular file found is added as a discovery candidate, in
	// addition to whatever the target processes have mapped.
	IncludePaths []string
	// FreezeTimeoutMs bounds how long Discover waits for a target
	// process to reach the stopped state after SIGSTOP.
	FreezeTimeoutMs int
	// MaxFileSize skips candidate files larger than this many bytes,
	// in the ParseBytes unit suffix form ("512M", "2G"). Empty means
	// unbounded. Large shared objects rarely add useful oracle pages
	// and are expensive to map and scan page by page.
	MaxFileSize string
}

const discoveryDefaults = `{"FreezeTimeoutMs":1000}`

type Discovery struct {
	config          *DiscoveryConfig
	maxFileSizeByte int64 // 0 means unbounded
}

func NewDiscovery() *Discovery {
	d := &Discovery{}
	d.SetConfigJson(discoveryDefaults)
	return d
}

func (d *Discovery) SetConfigJson(configJson string) error {
	config := &DiscoveryConfig{}
	if err := unmarshal(configJson, config); err != nil {
		return err
	}
	if config.MaxFileSize != "" {
		n, err := ParseBytes(config.MaxFileSize)
		if err != nil {
			return fmt.Errorf("discovery: invalid MaxFileSize: %w", err)
		}
		d.maxFileSizeByte = n
	} else {
		d.maxFileSizeByte = 0
	}
	d.config = config
	return nil
}

func (d *Discovery) GetConfigJson() string {
	if d.config == nil {
		return ""
	}
	if configStr, err := json.Marshal(d.config); err == nil {
		return string(configStr)
	}
	return ""
}

// candidatePaths enumerates read-only file-backed paths mapped by
// every pid in pids, plus every regular file reachable by walking
// IncludePaths, deduplicated.
func (d *Discovery) candidatePaths(pids []int) ([]string, error) {
	seen := map[string]setMemberType{}
	paths := []string{}

	for _, pid := range pids {
		p := NewProcess(pid)
		timeout := time.Duration(d.config.FreezeTimeoutMs) * time.Millisecond
		if err := p.Freeze(timeout); err != nil {
			return nil, fmt.Errorf("target pid %d: %w", pid, err)
		}
		found, err := p.FileBackedPaths()
		resumeErr := p.Resume()
		if err != nil {
			return nil, fmt.Errorf("target pid %d: failed to read memory map: %w", pid, err)
		}
		if resumeErr != nil {
			return nil, fmt.Errorf("target pid %d: %w", pid, resumeErr)
		}
		for _, path := range found {
			if _, ok := seen[path]; ok {
				continue
			}
			seen[path] = setMember
			paths = append(paths, path)
		}
	}

	for _, includePath := range d.config.IncludePaths {
		err := filepath.WalkDir(includePath, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if entry.Type()&fs.ModeSymlink != 0 {
				return nil
			}
			if entry.IsDir() {
				return nil
			}
			if !entry.Type().IsRegular() {
				return nil
			}
			if _, ok := seen[path]; ok {
				return nil
			}
			seen[path] = setMember
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			log.Warnf("discovery: failed to walk include path %q: %s", includePath, err)
		}
	}

	return paths, nil
}

// Discover maps every candidate path read-only into our own process
// and queries current page-cache residency for every page slot. Pages
// resident at discovery time are tracked by their PFN; all others are
// marked UntrackedPage. A path with zero resident pages is dropped
// entirely. blacklist/whitelist are full-match regexes over the path.
func (d *Discovery) Discover(pids []int, blacklist, whitelist *regexp.Regexp) ([]*FileMapping, int, error) {
	paths, err := d.candidatePaths(pids)
	if err != nil {
		return nil, 0, err
	}
	if whitelist != nil {
		whitelist = regexp.MustCompile(`^(?:` + whitelist.String() + `)$`)
	}
	if blacklist != nil {
		blacklist = regexp.MustCompile(`^(?:` + blacklist.String() + `)$`)
	}

	mappings := make([]*FileMapping, 0, len(paths))
	for _, path := range paths {
		if whitelist != nil {
			if !whitelist.MatchString(path) {
				continue
			}
		} else if blacklist != nil && blacklist.MatchString(path) {
			continue
		}

		if d.maxFileSizeByte > 0 {
			if info, err := os.Stat(path); err == nil && info.Size() > d.maxFileSizeByte {
				log.Debugf("discovery: skipping %q: %d bytes exceeds MaxFileSize", path, info.Size())
				continue
			}
		}

		mf, err := mapFileSharedRo(path)
		if err != nil {
			log.Warnf("discovery: skipping %q: %s", path, err)
			continue
		}
		pageIDs, err := residentPfns(mf)
		mf.Close()
		if err != nil {
			log.Warnf("discovery: skipping %q: failed to query residency: %s", path, err)
			continue
		}
		anyResident := false
		for _, id := range pageIDs {
			if id != UntrackedPage {
				anyResident = true
				break
			}
		}
		if !anyResident {
			continue
		}
		mappings = append(mappings, &FileMapping{
			Path:      path,
			Image:     isExecutableImage(path),
			SizePages: len(pageIDs),
			PageIDs:   pageIDs,
		})
	}
	return mappings, len(paths), nil
}

// residentPfns queries, for every page of mf, whether it is currently
// resident in the page cache and, if so, its PFN.
func residentPfns(mf *mappedFile) ([]PageID, error) {
	pmFile, err := ProcPagemapOpen(os.Getpid())
	if err != nil {
		return nil, err
	}
	defer pmFile.Close()

	pageIDs := make([]PageID, mf.sizePages)
	for i := range pageIDs {
		pageIDs[i] = UntrackedPage
	}
	startAddr := mf.addr(0)
	ranges := []AddrRange{{addr: startAddr, length: uint64(mf.sizePages)}}
	err = pmFile.ForEachPage(ranges, PMPresentSet, func(pagemapBits uint64, pageAddr uint64) int {
		pfn := pagemapBits & PM_PFN
		pageIndex := int((pageAddr - startAddr) / constUPagesize)
		if pageIndex >= 0 && pageIndex < len(pageIDs) {
			pageIDs[pageIndex] = PageID(pfn)
		}
		return 0
	})
	if err != nil {
		return nil, err
	}
	return pageIDs, nil
}

func isExecutableImage(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".so" || ext == "" || regexp.MustCompile(`\.so(\.[0-9]+)*$`).MatchString(path)
}
