/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func lastJSONLine(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var last string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			last = s
		}
	}
	if last == "" {
		t.Fatalf("no log lines in %q", data)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("unmarshal %q: %v", last, err)
	}
	return m
}

func TestInitWritesRotatedJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geolab.log")
	var console bytes.Buffer
	Init(Options{Level: "debug", Format: "console", File: path, Console: &console})
	t.Cleanup(func() { _ = Close() })

	l := WithOperation(WithComponent("lab"), "evaluate")
	l.Debug("applied", slog.String("kind", "rotation"), slog.Float64("angle", 90))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	m := lastJSONLine(t, data)
	for k, want := range map[string]any{"app": "geolab", "component": "lab", "op": "evaluate", "msg": "applied", "kind": "rotation"} {
		if m[k] != want {
			t.Fatalf("%s = %v, want %v (record %v)", k, m[k], want, m)
		}
	}
	if _, ok := m["ver"].(string); !ok {
		t.Fatalf("missing ver: %v", m)
	}
	if !strings.Contains(console.String(), "DBG applied") || !strings.Contains(console.String(), "angle=90") {
		t.Fatalf("console output: %q", console.String())
	}
}

func TestJSONConsoleAndContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Format: "json", Console: &buf})
	ctx := ContextWith(context.Background(), slog.String("sheet", "week1.yaml"))
	ctx = ContextWith(ctx, slog.Int("exercise", 2))
	L().InfoContext(ctx, "evaluated")
	L().Debug("hidden at info level")

	m := lastJSONLine(t, buf.Bytes())
	if m["sheet"] != "week1.yaml" || m["exercise"] != float64(2) || m["msg"] != "evaluated" {
		t.Fatalf("context attrs missing: %v", m)
	}
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("debug record leaked at info level: %q", buf.String())
	}
}

func TestFromEnvAndMerge(t *testing.T) {
	t.Setenv("GEOLAB_LOG_LEVEL", "warn")
	t.Setenv("GEOLAB_LOG_FORMAT", "")
	t.Setenv("GEOLAB_LOG_SOURCE", "TRUE")
	t.Setenv("GEOLAB_LOG_FILE", "")

	opts := FromEnv()
	if opts.Level != "warn" || opts.Format != "" || !opts.AddSource || opts.File != "" {
		t.Fatalf("FromEnv = %+v", opts)
	}
	merged := opts.Merge(Options{Level: "debug", Format: "json", File: "/tmp/x.log"})
	if merged.Level != "warn" || merged.Format != "json" || merged.File != "/tmp/x.log" || !merged.AddSource {
		t.Fatalf("Merge = %+v", merged)
	}
}

func TestConsoleHandler(t *testing.T) {
	var buf bytes.Buffer
	h := newConsoleHandler(&buf, slog.LevelWarn, false)
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info must be filtered at warn")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("error must pass at warn")
	}

	h2 := h.WithAttrs([]slog.Attr{slog.String("k", "v")}).WithGroup("pt")
	r := slog.NewRecord(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), slog.LevelError, "boom", 0)
	r.AddAttrs(slog.Float64("x", 100), slog.Float64("y", 3.14), slog.String("label", "A prime"))
	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("handle: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"03:04:05 ERR boom", " k=v", "pt.x=100", "pt.y=3.14", `pt.label="A prime"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	if strings.Contains(out, "pt.k") {
		t.Fatalf("attrs added before the group must not be prefixed: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"debug": slog.LevelDebug, " WARNING ": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo, "loud": slog.LevelInfo}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
