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
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IAIK/LayeredBinaryTemplating/pkg/metrics"
	_ "github.com/IAIK/LayeredBinaryTemplating/pkg/metrics/register"
	"github.com/IAIK/LayeredBinaryTemplating/pkg/pagecache"
)

func exit(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, fmt.Sprintf("fc-classify: "+format+"\n", a...))
	os.Exit(1)
}

func serveMetrics(addr string) {
	gatherer, err := metrics.NewMetricGatherer()
	if err != nil {
		exit("failed to set up metrics: %s", err)
	}
	http.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Printf("fc-classify: metrics server stopped: %s", err)
		}
	}()
}

// writeAttackConf implements the --attack-conf mode: one blank-line
// block per file, a header "image_flag path", then one "page_hex
// role" line per observed page, role 0=oracle 1=readahead-corner.
func writeAttackConf(path string, r *pagecache.TrainingResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("attack-conf: %w", err)
	}
	defer f.Close()

	byFile := map[int][]*pagecache.EventMapping{}
	for _, m := range r.EventFileOffsetMappings {
		byFile[m.FileIndex] = append(byFile[m.FileIndex], m)
	}
	fileIndices := make([]int, 0, len(byFile))
	for fi := range byFile {
		fileIndices = append(fileIndices, fi)
	}
	sort.Ints(fileIndices)

	first := true
	for _, fi := range fileIndices {
		mappings := byFile[fi]
		sort.Slice(mappings, func(i, j int) bool { return mappings[i].Offset < mappings[j].Offset })

		oraclePages := map[int]bool{}
		for _, m := range mappings {
			oraclePages[m.Offset/os.Getpagesize()] = true
		}

		if !first {
			fmt.Fprintln(f)
		}
		first = false
		fm := r.FileMappings[fi]
		imageFlag := 0
		if fm.Image {
			imageFlag = 1
		}
		fmt.Fprintf(f, "%d %s\n", imageFlag, fm.Path)
		for _, m := range mappings {
			page := m.Offset / os.Getpagesize()
			fmt.Fprintf(f, "%x 0\n", page)
			if !m.HasRaSuppressMode {
				continue
			}
			if m.RaSuppressMode == pagecache.RaSuppressBack || m.RaSuppressMode == pagecache.RaSuppressBoth {
				if corner := m.RaSuppressPages[0]; !oraclePages[corner] {
					fmt.Fprintf(f, "%x 1\n", corner)
				}
			}
			if m.RaSuppressMode == pagecache.RaSuppressFront || m.RaSuppressMode == pagecache.RaSuppressBoth {
				if corner := m.RaSuppressPages[1]; !oraclePages[corner] {
					fmt.Fprintf(f, "%x 1\n", corner)
				}
			}
		}
	}
	return nil
}

func main() {
	optLoad := flag.String("load", "", "load a saved training record")
	optAttackConf := flag.String("attack-conf", "", "write an attack-tool config file instead of classifying stdin")
	optMetricsPort := flag.Int("metrics-port", 0, "expose Prometheus /metrics on this port (0 disables)")
	optVerbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if *optLoad == "" {
		exit("missing -load FILE")
	}

	pagecache.SetLogger(log.New(os.Stderr, "", 0))
	pagecache.SetLogDebug(*optVerbose)

	if *optMetricsPort != 0 {
		serveMetrics(fmt.Sprintf(":%d", *optMetricsPort))
	}

	result, err := pagecache.Load(*optLoad)
	if err != nil {
		exit("%s", err)
	}

	if *optAttackConf != "" {
		if err := writeAttackConf(*optAttackConf, result); err != nil {
			exit("%s", err)
		}
		return
	}

	classifier := pagecache.NewClassifierFromTraining(result)
	scanner := bufio.NewScanner(os.Stdin)
	writer := bufio.NewWriter(os.Stdout)
	defer writer.Flush()

	for {
		sample, err := classifier.ClassifyNextSample(scanner)
		if err == io.EOF {
			break
		}
		if err != nil {
			exit("%s", err)
		}
		indices := make([]string, len(sample.Events))
		labels := make([]string, len(sample.Events))
		for i, e := range sample.Events {
			indices[i] = strconv.Itoa(int(e))
			labels[i] = eventLabel(result.EventStrings, e)
		}
		fmt.Fprintf(writer, "%g;%s;%s\n", sample.MeanTimestampNs, strings.Join(indices, ","), strings.Join(labels, ","))
	}
}

func eventLabel(labels []string, e pagecache.Event) string {
	if int(e) < 0 || int(e) >= len(labels) {
		return "?"
	}
	return labels[e]
}
