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

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IAIK/LayeredBinaryTemplating/pkg/metrics"
	_ "github.com/IAIK/LayeredBinaryTemplating/pkg/metrics/register"
	"github.com/IAIK/LayeredBinaryTemplating/pkg/pagecache"
)

func exit(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, fmt.Sprintf("fc-train: "+format+"\n", a...))
	os.Exit(1)
}

// pidCollector gathers pids synchronously reported by a PidWatcher's
// single Poll/Start call.
type pidCollector struct {
	pids []int
}

func (c *pidCollector) AddPids(pids []int)    { c.pids = append(c.pids, pids...) }
func (c *pidCollector) RemovePids(pids []int) {}

func parsePids(s string) []int {
	pids := []int{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pid, err := strconv.Atoi(part)
		if err != nil {
			exit("invalid pid %q: %s", part, err)
		}
		pids = append(pids, pid)
	}
	return pids
}

func serveMetrics(addr string) {
	gatherer, err := metrics.NewMetricGatherer()
	if err != nil {
		exit("failed to set up metrics: %s", err)
	}
	http.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Printf("fc-train: metrics server stopped: %s", err)
		}
	}()
}

func main() {
	optPids := flag.String("pids", "", "comma-separated target pids")
	optPidwatcher := flag.String("pidwatcher", "", "pidwatcher backend name (see pkg/pagecache registry)")
	optPidwatcherConfig := flag.String("pidwatcher-config", "", "pidwatcher backend configuration (JSON/YAML)")
	optIncludePaths := flag.String("include-path", "", "comma-separated paths walked for candidate files")
	optMaxFileSize := flag.String("max-file-size", "", "skip candidate files larger than this (e.g. 512M, 2G)")
	optCollect := flag.Int("collect", 0, "collect N samples against a fresh target")
	optLoad := flag.String("load", "", "load a saved training record instead of collecting")
	optSave := flag.String("save", "", "save the training record to this path")
	optHandleRa := flag.String("handle-ra", "suppressed", "readahead handling: none, suppressed, or noise")
	optFitnessThreshold := flag.Float64("fitness-threshold", 0, "minimum fitness to accept a mapping (0 uses the package default)")
	optTrigger := flag.String("trigger", "stdin", "trigger backend name (see pkg/pagecache registry)")
	optTriggerConfig := flag.String("trigger-config", "", "trigger backend configuration (JSON/YAML)")
	optProbe := flag.String("probe", "idlepage", "probe backend name (see pkg/pagecache registry)")
	optTracer := flag.Bool("tracer", false, "launch the interactive single-page tracer afterwards")
	optMetricsPort := flag.Int("metrics-port", 0, "expose Prometheus /metrics on this port (0 disables)")
	optDebug := flag.Bool("debug", false, "print debug output")
	flag.Parse()

	pagecache.SetLogger(log.New(os.Stderr, "", 0))
	pagecache.SetLogDebug(*optDebug)

	if *optMetricsPort != 0 {
		serveMetrics(fmt.Sprintf(":%d", *optMetricsPort))
	}

	var result *pagecache.TrainingResult

	if *optLoad != "" {
		r, err := pagecache.Load(*optLoad)
		if err != nil {
			exit("%s", err)
		}
		if err := pagecache.Reopen(r); err != nil {
			exit("%s", err)
		}
		result = r
	} else {
		if *optCollect <= 0 {
			exit("missing -collect N or -load FILE")
		}

		pids := parsePids(*optPids)
		if *optPidwatcher != "" {
			watcher, err := pagecache.NewPidWatcher(*optPidwatcher)
			if err != nil {
				exit("%s", err)
			}
			if *optPidwatcherConfig != "" {
				if err := watcher.SetConfigJson(*optPidwatcherConfig); err != nil {
					exit("pidwatcher config: %s", err)
				}
			}
			collector := &pidCollector{}
			watcher.SetPidListener(collector)
			if err := watcher.Poll(); err != nil {
				exit("pidwatcher poll failed: %s", err)
			}
			pids = append(pids, collector.pids...)
		}

		discovery := pagecache.NewDiscovery()
		if *optIncludePaths != "" || *optMaxFileSize != "" {
			configJson := fmt.Sprintf(`{"IncludePaths":[%s],"FreezeTimeoutMs":1000,"MaxFileSize":%q}`,
				quoteCsv(*optIncludePaths), *optMaxFileSize)
			if err := discovery.SetConfigJson(configJson); err != nil {
				exit("discovery config: %s", err)
			}
		}

		if len(pids) == 0 && *optIncludePaths == "" {
			exit("no targets: pass -pids, -pidwatcher, or -include-path")
		}

		fileMappings, candidates, err := discovery.Discover(pids, nil, nil)
		if err != nil {
			exit("discovery failed: %s", err)
		}
		fmt.Printf("fc-train: %d candidate files, %d resident\n", candidates, len(fileMappings))

		trigger, err := pagecache.NewTrigger(*optTrigger)
		if err != nil {
			exit("%s", err)
		}
		if *optTriggerConfig != "" {
			if err := trigger.SetConfigJson(*optTriggerConfig); err != nil {
				exit("trigger config: %s", err)
			}
		}

		probe, err := pagecache.NewProbe(*optProbe)
		if err != nil {
			exit("%s", err)
		}

		collector := pagecache.NewCollector(trigger, probe, fileMappings)
		configJson := fmt.Sprintf(`{"Samples":%d,"Sequence":"uniform","PreFilter":true,"Seed":1}`, *optCollect)
		if err := collector.SetConfigJson(configJson); err != nil {
			exit("collector config: %s", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt)
		go func() {
			<-sigCh
			cancel()
		}()

		if err := collector.Run(ctx, trigger.Labels()); err != nil {
			exit("collection failed: %s", err)
		}

		training, err := pagecache.NewTraining(trigger.Labels(), *optCollect, fileMappings, &pagecache.TrainingConfig{
			HandleRa:         pagecache.HandleRaPolicy(*optHandleRa),
			FitnessThreshold: *optFitnessThreshold,
		})
		if err != nil {
			exit("%s", err)
		}
		result = training.Train()
		probe.Close()
	}

	fmt.Printf("fc-train: status=%s original_entropy=%.4f attack_entropy=%.4f\n",
		result.Status, result.OriginalEntropy, result.AttackEntropy)
	if len(result.UnlinkableEvents) > 0 {
		fmt.Printf("fc-train: %d unlinkable events\n", len(result.UnlinkableEvents))
	}

	if *optSave != "" {
		if err := pagecache.Save(*optSave, result); err != nil {
			exit("%s", err)
		}
	}

	if *optTracer {
		probe, err := pagecache.NewProbe(*optProbe)
		if err != nil {
			exit("%s", err)
		}
		defer probe.Close()
		tracer := pagecache.NewTracer(probe, os.Stdin, os.Stdout)
		tracer.Interact()
	}
}

func quoteCsv(s string) string {
	parts := strings.Split(s, ",")
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		quoted = append(quoted, strconv.Quote(p))
	}
	return strings.Join(quoted, ",")
}
