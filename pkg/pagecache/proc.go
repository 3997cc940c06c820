// Copyright 2021 Intel Corporation. All Rights Reserved.
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
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strconv"
	"strings"
)

const (
	// /proc/pid/pagemap bits
	// from fs/proc/task_mmu.c
	PMB_SOFT_DIRTY     = 55
	PMB_MMAP_EXCLUSIVE = 56
	PMB_UFFD_WP        = 57
	PMB_FILE           = 61
	PMB_SWAP           = 62
	PMB_PRESENT        = 63
	// corresponding bitmasks
	PM_PFN            = (uint64(0x1) << 55) - 1
	PM_SOFT_DIRTY     = uint64(0x1) << PMB_SOFT_DIRTY
	PM_MMAP_EXCLUSIVE = uint64(0x1) << PMB_MMAP_EXCLUSIVE
	PM_UFFD_WP        = uint64(0x1) << PMB_UFFD_WP
	PM_FILE           = uint64(0x1) << PMB_FILE
	PM_SWAP           = uint64(0x1) << PMB_SWAP
	PM_PRESENT        = uint64(0x1) << PMB_PRESENT

	// /proc/kpageflags bits
	// from include/uapi/linux/kernel-page-flags.h
	KPFB_LOCKED        = 0
	KPFB_ERROR         = 1
	KPFB_REFERENCED    = 2
	KPFB_UPTODATE      = 3
	KPFB_DIRTY         = 4
	KPFB_LRU           = 5
	KPFB_ACTIVE        = 6
	KPFB_SLAB          = 7
	KPFB_WRITEBACK     = 8
	KPFB_RECLAIM       = 9
	KPFB_BUDDY         = 10
	KPFB_MMAP          = 11
	KPFB_ANON          = 12
	KPFB_SWAPCACHE     = 13
	KPFB_SWAPBACKED    = 14
	KPFB_COMPOUND_HEAD = 15
	KPFB_COMPOUND_TAIL = 16
	KPFB_HUGE          = 17
	KPFB_UNEVICTABLE   = 18
	KPFB_HWPOISON      = 19
	KPFB_NOPAGE        = 20
	KPFB_KSM           = 21
	KPFB_THP           = 22
	KPFB_OFFLINE       = 23
	KPFB_ZERO_PAGE     = 24
	KPFB_IDLE          = 25
	KPFB_PGTABLE       = 26
	KPF_LOCKED         = uint64(0x1) << 0
	KPF_ERROR          = uint64(0x1) << 1
	KPF_REFERENCED     = uint64(0x1) << 2
	KPF_UPTODATE       = uint64(0x1) << 3
	KPF_DIRTY          = uint64(0x1) << 4
	KPF_LRU            = uint64(0x1) << 5
	KPF_ACTIVE         = uint64(0x1) << 6
	KPF_SLAB           = uint64(0x1) << 7
	KPF_WRITEBACK      = uint64(0x1) << 8
	KPF_RECLAIM        = uint64(0x1) << 9
	KPF_BUDDY          = uint64(0x1) << 10
	KPF_MMAP           = uint64(0x1) << 11
	KPF_ANON           = uint64(0x1) << 12
	KPF_SWAPCACHE      = uint64(0x1) << 13
	KPF_SWAPBACKED     = uint64(0x1) << 14
	KPF_COMPOUND_HEAD  = uint64(0x1) << 15
	KPF_COMPOUND_TAIL  = uint64(0x1) << 16
	KPF_HUGE           = uint64(0x1) << 17
	KPF_UNEVICTABLE    = uint64(0x1) << 18
	KPF_HWPOISON       = uint64(0x1) << 19
	KPF_NOPAGE         = uint64(0x1) << 20
	KPF_KSM            = uint64(0x1) << 21
	KPF_THP            = uint64(0x1) << 22
	KPF_OFFLINE        = uint64(0x1) << 23
	KPF_ZERO_PAGE      = uint64(0x1) << 24
	KPF_IDLE           = uint64(0x1) << 25
	KPF_PGTABLE        = uint64(0x1) << 26
)

type procPagemapFile struct {
	osFile    *os.File
	readahead int
	pos       int64
}

type procKpageflagsFile struct {
	osFile    *os.File
	readahead int
	readCache map[int64]uint64
}

type procPageIdleBitmapFile struct {
	osFile    *os.File
	readahead int
	readCache map[int64]uint64
}

func procRead(path string) (string, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func ProcKpageflagsOpen() (*procKpageflagsFile, error) {
	path := "/proc/kpageflags"
	osFile, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	return &procKpageflagsFile{osFile, 256, map[int64]uint64{}}, nil
}

func (f *procKpageflagsFile) SetReadahead(pages int) {
	if pages < 0 {
		pages = 0
	}
	f.readahead = pages
	if pages > 0 {
		f.readCache = map[int64]uint64{}
	} else {
		f.readCache = nil
	}
}

// ReadFlags returns 64-bit set of flags from /proc/kpageflags
// for a page indexed by page frame number (PFN).
func (f *procKpageflagsFile) ReadFlags(pfn uint64) (uint64, error) {
	kpfFileOffset := int64(pfn * 8)
	if f.readCache != nil {
		if flags, ok := f.readCache[kpfFileOffset]; ok {
			return flags, nil
		}
	}
	if _, err := f.osFile.Seek(kpfFileOffset, io.SeekStart); err != nil {
		return 0, err
	}
	readBufSize := 8 * (f.readahead + 1)
	readBuf := make([]byte, readBufSize)

	nbytes, err := io.ReadAtLeast(f.osFile, readBuf, readBufSize)
	if err != nil {
		return 0, err
	}
	if nbytes != readBufSize {
		return 0, fmt.Errorf("reading %d bytes from kpageflags failed, got %d bytes", readBufSize, nbytes)
	}
	flags := binary.LittleEndian.Uint64(readBuf)
	if f.readCache != nil {
		f.readCache[kpfFileOffset] = flags
		readBuf = readBuf[8:]
		for len(readBuf) > 0 {
			kpfFileOffset += 8
			flagsAhead := binary.LittleEndian.Uint64(readBuf[:8])
			f.readCache[kpfFileOffset] = flagsAhead
			readBuf = readBuf[8:]
		}
	}
	return flags, nil
}

func (f *procKpageflagsFile) Close() {
	f.osFile.Close()
}

// ProcPageIdleBitmapOpen returns opened page_idle/bitmap file
func ProcPageIdleBitmapOpen() (*procPageIdleBitmapFile, error) {
	path := "/sys/kernel/mm/page_idle/bitmap"
	osFile, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &procPageIdleBitmapFile{osFile, 8, map[int64]uint64{}}, nil
}

func (f *procPageIdleBitmapFile) Close() {
	f.osFile.Close()
	f.osFile = nil
}

func (f *procPageIdleBitmapFile) SetReadahead(chunks int) {
	if chunks < 0 {
		chunks = 0
	}
	f.readahead = chunks
	if chunks > 0 {
		f.readCache = map[int64]uint64{}
	} else {
		f.readCache = nil
	}
}

func (f *procPageIdleBitmapFile) SetIdleAll(pfn uint64) error {
	return f.WriteBits(pfn, uint64(0xffffffffffffffff))
}

func (f *procPageIdleBitmapFile) WriteBits(pfn uint64, bits uint64) error {
	pfnFileOffset := int64(pfn) / 64 * 8
	if _, err := f.osFile.Seek(pfnFileOffset, io.SeekStart); err != nil {
		return err
	}

	writeBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(writeBuf, bits)
	n, err := f.osFile.Write(writeBuf)
	if err != nil {
		return err
	}
	if n != 8 {
		return fmt.Errorf("wrote %d instead of 8 bytes", n)
	}
	return nil
}

func (f *procPageIdleBitmapFile) ReadBits(pfn uint64) (uint64, error) {
	pfnFileOffset := int64(pfn) / 64 * 8
	if f.readCache != nil {
		if bits, ok := f.readCache[pfnFileOffset]; ok {
			return bits, nil
		}
	}
	if _, err := f.osFile.Seek(pfnFileOffset, io.SeekStart); err != nil {
		return 0, err
	}

	readBufSize := 8 * (f.readahead + 1)
	readBuf := make([]byte, readBufSize)
	n, err := io.ReadAtLeast(f.osFile, readBuf, readBufSize)
	if err != nil {
		return 0, err
	}
	if n != readBufSize {
		return 0, fmt.Errorf("read %d instead of expected %d bytes", n, readBufSize)
	}
	bits := binary.LittleEndian.Uint64(readBuf[:8])
	if f.readCache != nil {
		f.readCache[pfnFileOffset] = bits
		readBuf = readBuf[8:]
		for len(readBuf) > 0 {
			pfnFileOffset += 8
			bitsAhead := binary.LittleEndian.Uint64(readBuf[:8])
			f.readCache[pfnFileOffset] = bitsAhead
			readBuf = readBuf[8:]
		}
	}

	return bits, nil
}

func (f *procPageIdleBitmapFile) GetIdle(pfn uint64) (bool, error) {
	pfnBitOffset := pfn % 64
	bits, err := f.ReadBits(pfn)
	if err != nil {
		return false, err
	}
	pfnBitMask := (uint64(0x1) << pfnBitOffset)
	return (bits & pfnBitMask) != 0, nil
}

// ProcPagemapOpen returns opened pagemap file for a process
func ProcPagemapOpen(pid int) (*procPagemapFile, error) {
	path := "/proc/" + strconv.Itoa(pid) + "/pagemap"
	osFile, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	// The magic default readahead (63 pages in addition to the
	// page that is requested, resulting in 64 pages in total) is
	// based on a performance test on a vm. 1k buffer (16 B/page *
	// 64 pages) performed better than 512B or 4k).
	defaultReadahead := 63
	return &procPagemapFile{osFile, defaultReadahead, 0}, nil
}

func (f *procPagemapFile) Close() {
	if f.osFile != nil {
		f.osFile.Close()
		f.osFile = nil
	}
}

func (f *procPagemapFile) SetReadahead(pages int) {
	f.readahead = pages
}

// ForEachPage calls handlePage with pagemap bytes and page's address for
// every matching page in the address range.
//
// Parameters:
//   - addressRanges includes the address ranges from which pages
//     are searched from.
//   - pageAttributes defines attributes that found pages must or must
//     not have. Value 0 matches all pages.
//   - handlePage(pagemapBits, pageAddr) is called for
//     matching pages. It returns an integer:
//     0 (continue): ForEachPage continues reading the next page attributes.
//     -1 (break):   ForEachPage returns immediately.
//     n > 0 (skip): ForEachPage will skip reading next n pages.
func (f *procPagemapFile) ForEachPage(addressRanges []AddrRange, pageAttributes uint64, handlePage func(uint64, uint64) int) error {
	// Filter pages based on pagemap bits without calling handlePage.
	// TODO: this is not complete!
	pageMustBePresent := (pageAttributes&PMPresentSet == PMPresentSet)
	pageMustBeExclusive := (pageAttributes&PMExclusiveSet == PMExclusiveSet)
	pageMustBeDirty := (pageAttributes&PMDirtySet == PMDirtySet)
	pageMustNotBeDirty := (pageAttributes&PMDirtyCleared == PMDirtyCleared)

	for _, addressRange := range addressRanges {
		pagemapOffset := int64(addressRange.addr / constUPagesize * 8)
		// read /proc/pid/pagemap in the chunks of len(readBuf).
		// The length of readBuf must be divisible by 16.
		// Too short a readBuf slows down the execution due to
		// many read()'s.
		// Too long a readBuf makes the syscall return slowly.
		readBuf := make([]byte, 16*(1+f.readahead))
		readData := readBuf[0:0] // valid data in readBuf
		for pageIndex := uint64(0); pageIndex < addressRange.length; pageIndex++ {
			if len(readData) == 0 {
				// Seek if not already in the correct position.
				if f.pos != pagemapOffset {
					_, err := f.osFile.Seek(pagemapOffset, io.SeekStart)
					if err != nil {
						// Maybe there was a race condition and the maps changed?
						break
					}
					f.pos = pagemapOffset
				}

				// Read from the correct position.
				unreadByteCount := 8 * int(addressRange.length-pageIndex)
				fillBufUpTo := cap(readBuf)
				if fillBufUpTo > unreadByteCount {
					fillBufUpTo = unreadByteCount
				}
				nbytes, err := io.ReadAtLeast(f.osFile, readBuf, fillBufUpTo)
				if err != nil {
					// cannot read address range
					continue
				}
				f.pos += int64(nbytes)
				pagemapOffset += int64(nbytes)
				readData = readBuf[:fillBufUpTo]
			}
			bytes := readData[:8]
			readData = readData[8:]
			pagemapBits := binary.LittleEndian.Uint64(bytes)

			present := (pagemapBits&PM_PRESENT == PM_PRESENT)
			exclusive := (pagemapBits&PM_MMAP_EXCLUSIVE == PM_MMAP_EXCLUSIVE)
			softDirty := (pagemapBits&PM_SOFT_DIRTY == PM_SOFT_DIRTY)

			if (!pageMustBePresent || present) &&
				(!pageMustBeExclusive || exclusive) &&
				(!pageMustBeDirty || softDirty) &&
				(!pageMustNotBeDirty || !softDirty) {
				n := handlePage(pagemapBits, addressRange.addr+pageIndex*constUPagesize)
				switch {
				case n == 0:
					continue
				case n == -1:
					return nil
				case n > 0:
					// Skip next n pages
					pageIndex += uint64(n)
					// Consume read buffer
					if len(readData) > n*8 {
						readData = readData[n*8:]
					} else {
						pagemapOffset += int64(n*8 - len(readData))
						readData = readData[0:0]
					}
				default:
					return fmt.Errorf("page handler callback returned invalid value: %d\n", n)
				}

			}
		}
	}
	return nil
}

// mapsEntry is one read-only, file-backed mapping of a process, as
// found in /proc/pid/maps.
type mapsEntry struct {
	AddrRange
	path string
}

// procFileBackedReadOnlyMaps returns the read-only, file-backed
// mappings of a process: the candidate set for target mapping
// discovery (shared libraries, executables, data files mapped
// MAP_SHARED|PROT_READ). Anonymous, heap, stack and write-enabled
// mappings are excluded: they cannot be re-mapped read-only shared
// from outside the process, so page-cache residency observed on them
// is not reproducible by mapping the file ourselves.
func procFileBackedReadOnlyMaps(pid int) ([]mapsEntry, error) {
	sPid := strconv.Itoa(pid)
	mapsPath := "/proc/" + sPid + "/maps"
	mapsBytes, err := ioutil.ReadFile(mapsPath)
	if err != nil {
		return nil, err
	}
	mapsLines := strings.Split(string(mapsBytes), "\n")

	entries := make([]mapsEntry, 0)
	for _, mapLine := range mapsLines {
		// Example of /proc/pid/maps lines:
		// 7f3bcf000000-7f3bcf022000 r--p 00000000 fe:03 1194719   /usr/lib/libc.so.6
		// 7f3bcf022000-7f3bcf1b0000 r-xp 00022000 fe:03 1194719   /usr/lib/libc.so.6
		// 55d74e76d000-55d74e968000 rw-p 00000000 00:00 0         [heap]
		fields := strings.Fields(mapLine)
		if len(fields) < 5 {
			continue
		}
		addrField, permField, path := fields[0], fields[1], fields[len(fields)-1]
		if len(path) == 0 || path[0] != '/' {
			// not a regular file: anonymous, heap, stack, vdso, deleted...
			continue
		}
		if strings.Contains(path, "(deleted)") {
			continue
		}
		if len(permField) < 2 || permField[0] != 'r' || permField[1] == 'w' {
			// not read-only
			continue
		}
		dashIndex := strings.Index(addrField, "-")
		if dashIndex <= 0 {
			continue
		}
		startAddr, err := strconv.ParseUint(addrField[:dashIndex], 16, 64)
		if err != nil {
			continue
		}
		endAddr, err := strconv.ParseUint(addrField[dashIndex+1:], 16, 64)
		if err != nil || endAddr < startAddr {
			continue
		}
		entries = append(entries, mapsEntry{
			AddrRange: AddrRange{addr: startAddr, length: (endAddr - startAddr) / constUPagesize},
			path:      path,
		})
	}
	return entries, nil
}
