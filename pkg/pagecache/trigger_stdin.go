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

// The stdin trigger delegates event generation to an external process:
// firing a non-idle event prints its label to stdout as a request, then
// blocks until a line naming that same event is read back on stdin.
// This lets the actual event generator (a keypress campaign script, a
// mouse jiggler, anything) live entirely outside the core.

package pagecache

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

type TriggerStdinConfig struct {
	// Labels names the non-idle events, in event-index order. The
	// idle event is appended automatically.
	Labels []string
}

type TriggerStdin struct {
	config *TriggerStdinConfig
	reader *bufio.Reader
}

func init() {
	TriggerRegister("stdin", NewTriggerStdin)
}

func NewTriggerStdin() (Trigger, error) {
	t := &TriggerStdin{reader: bufio.NewReader(os.Stdin)}
	return t, nil
}

func (t *TriggerStdin) SetConfigJson(configJson string) error {
	config := &TriggerStdinConfig{}
	if err := unmarshal(configJson, config); err != nil {
		return err
	}
	if len(config.Labels) == 0 {
		return fmt.Errorf("stdin trigger requires at least one event label")
	}
	t.config = config
	return nil
}

func (t *TriggerStdin) GetConfigJson() string {
	if t.config == nil {
		return ""
	}
	if configStr, err := json.Marshal(t.config); err == nil {
		return string(configStr)
	}
	return ""
}

func (t *TriggerStdin) Labels() EventLabels {
	labels := make(EventLabels, 0, len(t.config.Labels)+1)
	labels = append(labels, t.config.Labels...)
	labels = append(labels, "idle")
	return labels
}

// Fire requests event e by printing its label, then blocks on stdin
// until a line matching that label arrives, confirming the victim
// acted on it. The idle event waits out IdleEventWaitSeconds instead
// of reading stdin at all.
func (t *TriggerStdin) Fire(ctx context.Context, e Event) error {
	labels := t.Labels()
	if int(e) == len(labels)-1 {
		wait := time.Duration(IdleEventWaitSeconds * float64(time.Second))
		select {
		case <-time.After(wait):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	want := labels.String(e)
	fmt.Fprintf(os.Stdout, "trigger: %s\n", want)

	type readResult struct {
		line string
		err  error
	}
	resultCh := make(chan readResult, 1)
	go func() {
		for {
			line, err := t.reader.ReadString('\n')
			if err != nil || strings.TrimRight(line, "\r\n") == want {
				resultCh <- readResult{line, err}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-resultCh:
			if res.err != nil {
				if res.err == io.EOF {
					return fmt.Errorf("stdin closed while waiting for event %q", want)
				}
				return res.err
			}
			if strings.TrimRight(res.line, "\r\n") == want {
				return nil
			}
		}
	}
}
