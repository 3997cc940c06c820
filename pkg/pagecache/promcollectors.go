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
	"github.com/prometheus/client_golang/prometheus"
)

// promMetrics mirrors pkg/metrics's RegisterCollector/Gatherer pattern,
// generalized from per-NUMA-node stats to per-event/per-file profiler
// stats: samples collected, events fired, training duration,
// classification calls.
type promMetrics struct {
	samplesCollected    prometheus.Counter
	eventsFired         *prometheus.CounterVec
	trainingDuration    prometheus.Histogram
	classificationCalls prometheus.Counter
}

var metricsInstance = newPromMetrics()

func newPromMetrics() *promMetrics {
	return &promMetrics{
		samplesCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fcprofiler",
			Subsystem: "collector",
			Name:      "samples_collected_total",
			Help:      "Number of reset/trigger/sample passes completed.",
		}),
		eventsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fcprofiler",
			Subsystem: "collector",
			Name:      "events_fired_total",
			Help:      "Number of times each event was fired during collection.",
		}, []string{"event"}),
		trainingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fcprofiler",
			Subsystem: "training",
			Name:      "duration_seconds",
			Help:      "Wall time spent in Training.Train.",
			Buckets:   prometheus.DefBuckets,
		}),
		classificationCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fcprofiler",
			Subsystem: "classifier",
			Name:      "classify_calls_total",
			Help:      "Number of ClassifySample invocations.",
		}),
	}
}

func (m *promMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.samplesCollected.Describe(ch)
	m.eventsFired.Describe(ch)
	m.trainingDuration.Describe(ch)
	m.classificationCalls.Describe(ch)
}

func (m *promMetrics) Collect(ch chan<- prometheus.Metric) {
	m.samplesCollected.Collect(ch)
	m.eventsFired.Collect(ch)
	m.trainingDuration.Collect(ch)
	m.classificationCalls.Collect(ch)
}

// NewPromCollector satisfies pkg/metrics.InitCollector, registering
// this package's instrumentation under the shared Gatherer.
func NewPromCollector() (prometheus.Collector, error) {
	return metricsInstance, nil
}
