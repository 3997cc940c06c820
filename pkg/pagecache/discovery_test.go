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

import "testing"

func TestIsExecutableImage(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/lib/x86_64-linux-gnu/libc.so.6", true},
		{"/lib/x86_64-linux-gnu/libc-2.31.so", true},
		{"/usr/bin/bash", true}, // no extension
		{"/etc/passwd.conf", false},
		{"/var/lib/data.txt", false},
	}
	for _, c := range cases {
		if got := isExecutableImage(c.path); got != c.want {
			t.Errorf("isExecutableImage(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestDiscoveryMaxFileSizeConfig(t *testing.T) {
	d := NewDiscovery()
	if err := d.SetConfigJson(`{"MaxFileSize":"1M"}`); err != nil {
		t.Fatalf("SetConfigJson: %s", err)
	}
	if d.maxFileSizeByte != 1024*1024 {
		t.Errorf("expected 1MiB in bytes, got %d", d.maxFileSizeByte)
	}
	if err := d.SetConfigJson(`{}`); err != nil {
		t.Fatalf("SetConfigJson: %s", err)
	}
	if d.maxFileSizeByte != 0 {
		t.Errorf("expected MaxFileSize to reset to unbounded (0), got %d", d.maxFileSizeByte)
	}
}

func TestDiscoveryRejectsInvalidMaxFileSize(t *testing.T) {
	d := NewDiscovery()
	if err := d.SetConfigJson(`{"MaxFileSize":"not-a-size"}`); err == nil {
		t.Fatalf("expected an error for an invalid MaxFileSize")
	}
}
