// Copyright 2025 ChemGPT
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

package logger

import (
	"bytes"
	"encoding/json"
	"log"
	"strings"
	"testing"
	"time"
)

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	oldWriter := log.Writer()
	oldFlags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	defer func() {
		log.SetOutput(oldWriter)
		log.SetFlags(oldFlags)
	}()

	fn()
	return buf.String()
}

func decodeEntry(t *testing.T, line string) LogEntry {
	t.Helper()
	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &entry); err != nil {
		t.Fatalf("log line is not JSON: %q: %v", line, err)
	}
	return entry
}

func TestLogEntryStructure(t *testing.T) {
	l := New("gateway")

	out := captureOutput(t, func() {
		l.Info("bench-app", "req-1", "request aggregated", map[string]interface{}{
			"status": "complete",
		})
	})

	entry := decodeEntry(t, out)
	if entry.Level != INFO {
		t.Errorf("expected INFO, got %s", entry.Level)
	}
	if entry.Component != "gateway" {
		t.Errorf("expected component gateway, got %s", entry.Component)
	}
	if entry.CallerID != "bench-app" || entry.RequestID != "req-1" {
		t.Errorf("correlation ids lost: %+v", entry)
	}
	if entry.Fields["status"] != "complete" {
		t.Errorf("fields lost: %+v", entry.Fields)
	}
	if entry.Timestamp == "" {
		t.Error("entry should carry a timestamp")
	}
}

func TestLogLevels(t *testing.T) {
	l := New("gateway")

	tests := []struct {
		level LogLevel
		fn    func(callerID, requestID, message string, fields map[string]interface{})
	}{
		{INFO, l.Info},
		{WARN, l.Warn},
		{ERROR, l.Error},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			out := captureOutput(t, func() {
				tt.fn("bench-app", "req-1", "message", nil)
			})
			if entry := decodeEntry(t, out); entry.Level != tt.level {
				t.Errorf("expected %s, got %s", tt.level, entry.Level)
			}
		})
	}
}

func TestInfoWithDuration(t *testing.T) {
	l := New("gateway")

	out := captureOutput(t, func() {
		l.InfoWithDuration("bench-app", "req-1", "request aggregated", 123400*time.Microsecond, nil)
	})

	entry := decodeEntry(t, out)
	if entry.Fields["duration_ms"] != 123.4 {
		t.Errorf("expected duration_ms 123.4, got %v", entry.Fields["duration_ms"])
	}
}
