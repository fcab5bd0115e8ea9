/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package sheet

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"geolab/internal/config"
	"geolab/internal/domain"
	"geolab/internal/lab"
	applog "geolab/internal/log"
	"geolab/internal/storage"
	"geolab/internal/transform"
)

const week3 = `
title: Week 3 - Transformations
exercises:
  - title: Shift
    kind: translation
    dx: 3
    dy: 2
  - kind: reflection
    axis: "y=x"
  - kind: rotation
    angle: 90
    triangle:
      A: {x: 1, y: 0}
      B: {x: 2, y: 0}
      C: {x: 1, y: 1}
  - kind: scaling
    factor: 2
`

func TestMain(m *testing.M) {
	applog.Init(applog.Options{Level: "error", Console: &bytes.Buffer{}})
	os.Exit(m.Run())
}

func TestParseValidSheet(t *testing.T) {
	s, err := Parse([]byte(week3))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Title != "Week 3 - Transformations" || len(s.Exercises) != 4 {
		t.Fatalf("sheet = %+v", s)
	}
	if s.Exercises[1].Axis != "y=x" || s.Exercises[2].Triangle == nil || s.Exercises[2].Triangle.C != domain.Pt(1, 1) {
		t.Fatalf("exercise decode: %+v", s.Exercises)
	}
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"missing params": "title: t\nexercises:\n  - kind: translation\n    dx: 1\n",
		"unknown kind":   "title: t\nexercises:\n  - kind: shear\n",
		"extra field":    "title: t\nexercises:\n  - kind: rotation\n    angle: 1\n    speed: 3\n",
		"no exercises":   "title: t\nexercises: []\n",
		"bad point":      "title: t\ntriangle: {A: {x: 1}, B: {x: 1, y: 1}, C: {x: 0, y: 0}}\nexercises:\n  - {kind: scaling, factor: 1}\n",
		"not yaml":       "title: [unclosed",
		"string number":  "title: t\nexercises:\n  - {kind: scaling, factor: two}\n",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); !errors.Is(err, ErrInvalidSheet) {
			t.Fatalf("%s: err = %v", name, err)
		}
	}
}

func TestEvaluate(t *testing.T) {
	s, err := Parse([]byte(week3))
	if err != nil {
		t.Fatal(err)
	}
	out, err := Evaluate(context.Background(), lab.New(config.Defaults().Ranges), s, domain.DefaultTriangle())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("outcomes = %d", len(out))
	}
	if out[0].Title != "Shift" || out[0].Result.Transformed.A != domain.Pt(5, 7) {
		t.Fatalf("first outcome: %+v", out[0])
	}
	if out[1].Title != "Exercise 2: Reflection" || out[1].Result.Transformed.A != domain.Pt(5, 2) {
		t.Fatalf("second outcome: %+v", out[1])
	}
	if a := out[2].Result.Transformed.A; a.X > 1e-9 || a.Y != 1 {
		t.Fatalf("exercise triangle not used: %v", a)
	}
	if out[3].Result.Original != domain.DefaultTriangle() {
		t.Fatalf("fallback triangle not used")
	}
}

func TestEvaluateStopsAtFirstContractViolation(t *testing.T) {
	s := Sheet{Title: "t", Exercises: []Exercise{
		{Kind: "scaling", Factor: 1},
		{Kind: "reflection", Axis: "diagonal"},
		{Kind: "scaling", Factor: 2},
	}}
	out, err := Evaluate(context.Background(), lab.New(config.Defaults().Ranges), s, domain.DefaultTriangle())
	if !errors.Is(err, transform.ErrInvalidAxis) || !strings.Contains(err.Error(), "exercise 2") {
		t.Fatalf("err = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("outcomes before the failure: %d", len(out))
	}
}

func TestOutOfRangeIsAWarning(t *testing.T) {
	s := Sheet{Title: "t", Exercises: []Exercise{{Kind: "rotation", Angle: 1080}}}
	out, err := Evaluate(context.Background(), lab.New(config.Defaults().Ranges), s, domain.DefaultTriangle())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(out[0].Warnings) != 1 || out[0].Warnings[0].Param != "angle" {
		t.Fatalf("warnings = %v", out[0].Warnings)
	}
}

func TestLoadAndExport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "week3.yaml")
	if err := os.WriteFile(path, []byte(week3), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ctx := context.Background()
	out, err := Evaluate(ctx, lab.New(config.Defaults().Ranges), s, domain.DefaultTriangle())
	if err != nil {
		t.Fatal(err)
	}
	cache, err := storage.Open(ctx, filepath.Join(dir, "cache"), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	outDir := filepath.Join(dir, "out")
	files, err := Export(ctx, s, out, ExportOptions{OutDir: outDir, Chart: config.Defaults().Chart, Cache: cache})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(files) != 9 {
		t.Fatalf("files = %v", files)
	}
	for _, name := range []string{"week-3-transformations.pdf", "week-3-transformations-01.png", "week-3-transformations-04.svg"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	st, err := cache.Stats(ctx)
	if err != nil || st.Entries != 8 {
		t.Fatalf("cache stats = %+v, %v", st, err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v", err)
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Week 3 - Transformations": "week-3-transformations",
		"  Exercise #1 ":           "exercise-1",
		"":                         "worksheet",
		"---":                      "worksheet",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Fatalf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}
