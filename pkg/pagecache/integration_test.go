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

package pagecache_test

import (
	"bufio"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/IAIK/LayeredBinaryTemplating/pkg/pagecache"
)

// TestTrainSaveLoadClassifyRoundTrip exercises the full pipeline
// black-box: a noise-free two-event hit matrix trains cleanly, the
// result survives a Save/Load round trip untouched, and the
// reconstructed classifier still votes a fresh sample correctly.
func TestTrainSaveLoadClassifyRoundTrip(t *testing.T) {
	labels := pagecache.EventLabels{"open", "write", "idle"}
	samples := 20

	fm := pagecache.NewFileMapping("/usr/lib/libtarget.so", true,
		[]pagecache.PageID{1000, 1001, 1002}, len(labels))
	for s := 0; s < samples; s++ {
		fm.EventPageAccesses[0][0]++
		fm.EventPageAccesses[1][1]++
	}

	training, err := pagecache.NewTraining(labels, samples, []*pagecache.FileMapping{fm}, &pagecache.TrainingConfig{
		HandleRa: pagecache.HandleRaNone,
	})
	require.NoError(t, err)

	result := training.Train()
	require.Equal(t, pagecache.TrainingOK, result.Status)
	require.Empty(t, result.UnlinkableEvents)
	require.Len(t, result.EventFileOffsetMappings, 2)

	path := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, pagecache.Save(path, result))

	loaded, err := pagecache.Load(path)
	require.NoError(t, err)
	require.Equal(t, result.Status, loaded.Status)
	require.Len(t, loaded.EventFileOffsetMappings, 2)

	classifier := pagecache.NewClassifierFromTraining(loaded)

	scanner := bufio.NewScanner(strings.NewReader("100;/usr/lib/libtarget.so;0\n"))
	classified, err := classifier.ClassifyNextSample(scanner)
	require.NoError(t, err)
	require.Len(t, classified.Events, 1)
	require.Equal(t, pagecache.Event(0), classified.Events[0])
}
