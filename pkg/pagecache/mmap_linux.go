//go:build linux
// +build linux

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
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mappedFile is a file mapped read-only and shared into our own
// address space, so that its page-cache residency is observable
// through /proc/self/pagemap without disturbing the victim.
type mappedFile struct {
	path      string
	osFile    *os.File
	data      []byte
	sizePages int
}

// mapFileSharedRo maps path read-only and shared, then advises the
// kernel that access is random to suppress readahead while probing.
func mapFileSharedRo(path string) (*mappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %q: %w", path, err)
	}
	size := info.Size()
	if size == 0 {
		f.Close()
		return nil, fmt.Errorf("%q is empty", path)
	}
	mapSize := int((size + constPagesize - 1) / constPagesize * constPagesize)
	data, err := unix.Mmap(int(f.Fd()), 0, mapSize, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to mmap %q: %w", path, err)
	}
	if err := unix.Madvise(data, unix.MADV_RANDOM); err != nil {
		log.Warnf("mmap %q: madvise(MADV_RANDOM) failed: %s", path, err)
	}
	return &mappedFile{
		path:      path,
		osFile:    f,
		data:      data,
		sizePages: mapSize / int(constPagesize),
	}, nil
}

func (m *mappedFile) Close() error {
	var err error
	if m.data != nil {
		err = unix.Munmap(m.data)
		m.data = nil
	}
	if cerr := m.osFile.Close(); err == nil {
		err = cerr
	}
	return err
}

// addr returns the virtual address (in our own address space) of
// page index i of the mapping.
func (m *mappedFile) addr(i int) uint64 {
	return uint64(uintptr(unsafe.Pointer(&m.data[0]))) + uint64(i)*constUPagesize
}
