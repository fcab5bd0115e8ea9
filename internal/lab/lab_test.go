/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package lab

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"geolab/internal/config"
	"geolab/internal/domain"
	applog "geolab/internal/log"
	"geolab/internal/transform"
)

func TestSpecFromParams(t *testing.T) {
	p := Params{DX: 3, DY: 2, Axis: "y=-x", Angle: 90, Factor: 2}
	cases := map[string]transform.Spec{
		"translation": transform.Translation{DX: 3, DY: 2},
		"Reflect":     transform.Reflection{Axis: transform.AxisYEqualsNegX},
		"rotation":    transform.Rotation{Degrees: 90},
		"scale":       transform.Scaling{Factor: 2},
	}
	for kind, want := range cases {
		got, err := SpecFromParams(kind, p)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if got != want {
			t.Fatalf("%s: got %#v, want %#v", kind, got, want)
		}
	}
}

func TestSpecFromParamsErrors(t *testing.T) {
	if _, err := SpecFromParams("shear", Params{}); !errors.Is(err, transform.ErrUnsupportedTransformation) {
		t.Fatalf("shear: %v", err)
	}
	if _, err := SpecFromParams("reflection", Params{Axis: "z"}); !errors.Is(err, transform.ErrInvalidAxis) {
		t.Fatalf("axis z: %v", err)
	}
}

func TestEvaluateWarnsButNeverRejects(t *testing.T) {
	var buf bytes.Buffer
	applog.Init(applog.Options{Level: "debug", Console: &buf})
	l := New(config.Defaults().Ranges)

	res, err := l.Evaluate(context.Background(), Request{Triangle: domain.DefaultTriangle(), Spec: transform.Rotation{Degrees: -720}})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !strings.Contains(res.Explanation, "-720°") {
		t.Fatalf("angle must be reported as given: %q", res.Explanation)
	}
	out := buf.String()
	if !strings.Contains(out, "parameter outside suggested range") || !strings.Contains(out, "param=angle") {
		t.Fatalf("missing range warning: %q", out)
	}
	if !strings.Contains(out, "transformation applied") || !strings.Contains(out, "component=lab") {
		t.Fatalf("missing debug record: %q", out)
	}
}

func TestEvaluateErrors(t *testing.T) {
	applog.Init(applog.Options{Level: "error", Console: &bytes.Buffer{}})
	l := New(config.Defaults().Ranges)
	_, err := l.Evaluate(context.Background(), Request{Triangle: domain.DefaultTriangle(), Spec: transform.Reflection{Axis: 7}})
	if !errors.Is(err, transform.ErrInvalidAxis) {
		t.Fatalf("err = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Evaluate(ctx, Request{Spec: transform.Scaling{Factor: 1}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled ctx: %v", err)
	}
}

func TestOutOfRange(t *testing.T) {
	l := New(config.Defaults().Ranges)
	if w := l.OutOfRange(transform.Translation{DX: 10, DY: -10}); len(w) != 0 {
		t.Fatalf("bounds are inclusive, got %v", w)
	}
	w := l.OutOfRange(transform.Translation{DX: 11, DY: 0})
	if len(w) != 1 || w[0].Param != "dx" {
		t.Fatalf("got %v", w)
	}
	if got := w[0].String(); got != "dx=11 is outside the suggested range [-10, 10]" {
		t.Fatalf("String() = %q", got)
	}
	if w := l.OutOfRange(transform.Scaling{Factor: -3.5}); len(w) != 1 {
		t.Fatalf("scaling: %v", w)
	}
	if w := l.OutOfRange(transform.Reflection{Axis: transform.AxisX}); len(w) != 0 {
		t.Fatalf("reflection: %v", w)
	}
	if w := l.OutOfRange(nil); w != nil {
		t.Fatalf("nil spec: %v", w)
	}
	narrow := config.Defaults().Ranges
	narrow.Rotation = config.Range{Min: 0, Max: 90, Step: 1}
	if w := New(narrow).OutOfRange(transform.Rotation{Degrees: 120}); len(w) != 1 || w[0].Range != narrow.Rotation {
		t.Fatalf("configured rotation range not used: %v", w)
	}
}

func TestTitle(t *testing.T) {
	if got := Title(transform.KindReflection); got != "Visualizing Reflection" {
		t.Fatalf("Title = %q", got)
	}
}
