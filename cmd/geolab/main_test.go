/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"

	"geolab/internal/backend"
	"geolab/internal/config"
)

// setup points config and cache at temp dirs and silences info logs.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GEOLAB_CONFIG", filepath.Join(dir, "config.yaml"))
	t.Setenv("GEOLAB_CACHE_DIR", filepath.Join(dir, "cache"))
	t.Setenv("GEOLAB_LOG_LEVEL", "error")
	t.Setenv("GEOLAB_LOG_FILE", "")
	t.Setenv("GEOLAB_SERVER_URL", "")
	t.Setenv("GEOLAB_PG_DSN", "")
	return dir
}

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestVersionAndUsage(t *testing.T) {
	setup(t)
	code, out, _ := runCmd(t, "version")
	if code != 0 || !strings.HasPrefix(out, "geolab ") {
		t.Fatalf("version: code=%d out=%q", code, out)
	}
	if code, _, _ := runCmd(t); code != 2 {
		t.Fatalf("no args: code=%d", code)
	}
	if code, _, errOut := runCmd(t, "frobnicate"); code != 2 || !strings.Contains(errOut, "unknown command") {
		t.Fatalf("unknown: code=%d stderr=%q", code, errOut)
	}
}

func TestApplyDefaults(t *testing.T) {
	setup(t)
	code, out, errOut := runCmd(t, "apply")
	if code != 0 {
		t.Fatalf("code=%d stderr=%s", code, errOut)
	}
	for _, want := range []string{"Visualizing Translation", "Formula:", "Image (x', y')", "(5.0, 7.0)", "(8.0, 7.0)", "(6.0, 10.0)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestApplyRotationWithCustomVertex(t *testing.T) {
	setup(t)
	code, out, errOut := runCmd(t, "apply", "-kind", "rotation", "-angle", "90", "-a", "1,0")
	if code != 0 {
		t.Fatalf("code=%d stderr=%s", code, errOut)
	}
	if !strings.Contains(out, "(0.0, 1.0)") || !strings.Contains(out, "(-5.0, 5.0)") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestApplyErrors(t *testing.T) {
	setup(t)
	if code, _, errOut := runCmd(t, "apply", "-kind", "reflection", "-axis", "z"); code != 1 || !strings.Contains(errOut, "Error:") {
		t.Fatalf("bad axis: code=%d stderr=%q", code, errOut)
	}
	if code, _, _ := runCmd(t, "apply", "-kind", "shear"); code != 1 {
		t.Fatalf("bad kind: code=%d", code)
	}
	if code, _, _ := runCmd(t, "apply", "-a", "1"); code != 2 {
		t.Fatalf("bad vertex: code=%d", code)
	}
	if code, _, _ := runCmd(t, "apply", "extra"); code != 2 {
		t.Fatalf("extra arg: code=%d", code)
	}
}

func TestApplyOutOfRangeWarns(t *testing.T) {
	setup(t)
	code, _, errOut := runCmd(t, "apply", "-kind", "scaling", "-k", "5")
	if code != 0 || !strings.Contains(errOut, "Warning: k=5 is outside the suggested range") {
		t.Fatalf("code=%d stderr=%q", code, errOut)
	}
}

func TestApplyExport(t *testing.T) {
	dir := setup(t)
	for _, name := range []string{"fig.svg", "fig.png", "fig.pdf"} {
		path := filepath.Join(dir, name)
		if code, _, errOut := runCmd(t, "apply", "-kind", "reflection", "-axis", "y=-x", "-out", path); code != 0 {
			t.Fatalf("%s: code=%d stderr=%s", name, code, errOut)
		}
		if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
			t.Fatalf("%s missing: %v", name, err)
		}
	}
	if code, _, _ := runCmd(t, "apply", "-out", filepath.Join(dir, "fig.txt")); code != 1 {
		t.Fatalf("unknown format: code=%d", code)
	}
}

func TestCacheStatsAndPurge(t *testing.T) {
	dir := setup(t)
	t.Setenv("GEOLAB_CACHE", "1")
	if code, _, errOut := runCmd(t, "apply", "-out", filepath.Join(dir, "fig.png")); code != 0 {
		t.Fatalf("apply: code=%d stderr=%s", code, errOut)
	}
	code, out, errOut := runCmd(t, "cache", "stats")
	if code != 0 || !strings.Contains(out, "Entries: 1") || !strings.Contains(out, "renders.sqlite") {
		t.Fatalf("stats: code=%d out=%q stderr=%q", code, out, errOut)
	}
	code, out, _ = runCmd(t, "cache", "purge")
	if code != 0 || !strings.Contains(out, "Purged") {
		t.Fatalf("purge: code=%d out=%q", code, out)
	}
	code, out, _ = runCmd(t, "cache")
	if code != 0 || !strings.Contains(out, "Entries: 0") {
		t.Fatalf("stats after purge: code=%d out=%q", code, out)
	}
	if code, _, _ := runCmd(t, "cache", "shrink"); code != 2 {
		t.Fatalf("unknown subcommand: code=%d", code)
	}

	t.Setenv("GEOLAB_CACHE", "0")
	code, out, _ = runCmd(t, "cache", "stats")
	if code != 0 || !strings.Contains(out, "disabled") {
		t.Fatalf("disabled cache: code=%d out=%q", code, out)
	}
}

func TestConfigInitShowPath(t *testing.T) {
	dir := setup(t)
	code, out, errOut := runCmd(t, "config", "init")
	if code != 0 || !strings.Contains(out, "Created") {
		t.Fatalf("init: code=%d out=%q stderr=%q", code, out, errOut)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if code, _, _ := runCmd(t, "config", "init"); code != 1 {
		t.Fatalf("second init: code=%d", code)
	}
	code, out, _ = runCmd(t, "config")
	if code != 0 || !strings.Contains(out, "half_range: 15") {
		t.Fatalf("show: code=%d out=%q", code, out)
	}
	code, out, _ = runCmd(t, "config", "path")
	if code != 0 || strings.TrimSpace(out) != filepath.Join(dir, "config.yaml") {
		t.Fatalf("path: %q", out)
	}
	if code, _, _ := runCmd(t, "config", "drop"); code != 2 {
		t.Fatalf("unknown subcommand: code=%d", code)
	}
}

func TestSheetCommand(t *testing.T) {
	dir := setup(t)
	path := filepath.Join(dir, "week.yaml")
	doc := "title: Week 1\nexercises:\n  - kind: translation\n    dx: 1\n    dy: 1\n  - kind: scaling\n    factor: -1\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	outDir := filepath.Join(dir, "out")
	code, out, errOut := runCmd(t, "sheet", path, "-out", outDir)
	if code != 0 {
		t.Fatalf("code=%d stderr=%s", code, errOut)
	}
	if !strings.Contains(out, "Week 1") || !strings.Contains(out, "(-2.0, -5.0)") || !strings.Contains(out, "Wrote 5 files") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(outDir, "week-1.pdf")); err != nil {
		t.Fatalf("pdf missing: %v", err)
	}
	if code, _, _ := runCmd(t, "sheet"); code != 2 {
		t.Fatalf("missing file arg: code=%d", code)
	}
	if code, _, _ := runCmd(t, "sheet", filepath.Join(dir, "nope.yaml")); code != 1 {
		t.Fatalf("missing file: code=%d", code)
	}
}

func TestApplyAgainstServer(t *testing.T) {
	dir := setup(t)
	keyring.MockInit()
	t.Setenv(backend.EnvAuthSecret, "k")
	cfg := config.Defaults()
	srv := backend.New(backend.Options{Secret: "k", Triangle: cfg.Triangle, Ranges: cfg.Ranges, Chart: cfg.Chart}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	// a stale token from an earlier server is replaced transparently
	if err := backend.SaveToken(ts.URL, "stale.token"); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "remote.svg")
	code, stdout, errOut := runCmd(t, "apply", "-server", ts.URL, "-kind", "rotation", "-angle", "180", "-out", out)
	if code != 0 {
		t.Fatalf("code=%d stderr=%s", code, errOut)
	}
	if !strings.Contains(stdout, "Visualizing Rotation") || !strings.Contains(stdout, "(-2.0, -5.0)") {
		t.Fatalf("unexpected output:\n%s", stdout)
	}
	if b, err := os.ReadFile(out); err != nil || !bytes.Contains(b, []byte("<svg")) {
		t.Fatalf("svg not written: %v", err)
	}
	if tok, _ := backend.SavedToken(ts.URL); tok == "stale.token" || tok == "" {
		t.Fatalf("token not refreshed: %q", tok)
	}
}

func TestApplyAgainstServerWithWrongSecret(t *testing.T) {
	setup(t)
	keyring.MockInit()
	t.Setenv(backend.EnvAuthSecret, "wrong")
	cfg := config.Defaults()
	srv := backend.New(backend.Options{Secret: "k", Triangle: cfg.Triangle, Ranges: cfg.Ranges, Chart: cfg.Chart}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	if err := backend.SaveToken(ts.URL, "stale.token"); err != nil {
		t.Fatal(err)
	}
	code, _, errOut := runCmd(t, "apply", "-server", ts.URL, "-kind", "rotation")
	if code != 1 || !strings.Contains(errOut, "401") {
		t.Fatalf("code=%d stderr=%s", code, errOut)
	}
	if tok, _ := backend.SavedToken(ts.URL); tok != "" {
		t.Fatalf("rejected token kept: %q", tok)
	}
}
