/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"geolab/internal/config"
	"geolab/internal/domain"
	"geolab/internal/lab"
	"geolab/internal/render"
	"geolab/internal/report"
	"geolab/internal/transform"
)

// Selection is the sidebar state. It is copied into a fresh lab.Request on
// every change.
type Selection struct {
	Kind     string
	Params   lab.Params
	Triangle domain.PointSet
}

// NewSelection starts from the configured triangle, kind and parameters.
func NewSelection(cfg config.AppConfig) Selection {
	return Selection{
		Kind:     cfg.Params.Kind,
		Params:   lab.ParamsFromConfig(cfg.Params),
		Triangle: cfg.Triangle,
	}
}

// Request builds a fresh lab request from the current selection.
func (s Selection) Request() (lab.Request, error) {
	spec, err := lab.SpecFromParams(s.Kind, s.Params)
	if err != nil {
		return lab.Request{}, err
	}
	return lab.Request{Triangle: s.Triangle, Spec: spec}, nil
}

// SetCoord parses text into the x (or y) coordinate of the labelled vertex.
// The selection is left untouched on error.
func (s *Selection) SetCoord(label string, x bool, text string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return fmt.Errorf("%s: not a number: %q", label, text)
	}
	p, err := s.Triangle.Get(label)
	if err != nil {
		return err
	}
	if x {
		p.X = v
	} else {
		p.Y = v
	}
	switch label {
	case "A":
		s.Triangle.A = p
	case "B":
		s.Triangle.B = p
	case "C":
		s.Triangle.C = p
	}
	return nil
}

// SliderBounds returns min, max and step for a slider over r.
func SliderBounds(r config.Range) (float64, float64, float64) {
	lo, hi, step := r.Min, r.Max, r.Step
	if hi <= lo {
		lo, hi = -1, 1
	}
	if step <= 0 {
		step = 1
	}
	return lo, hi, step
}

// Snap rounds v to the decimals of step so slider values read as typed,
// e.g. 0.3 rather than 0.30000000000000004.
func Snap(v, step float64) float64 {
	d := 0
	if s := strconv.FormatFloat(step, 'f', -1, 64); strings.Contains(s, ".") {
		d = len(s) - strings.Index(s, ".") - 1
	}
	out, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', d, 64), 64)
	if err != nil {
		return v
	}
	return out
}

// View is everything the main area shows for one evaluation.
type View struct {
	Title       string
	Explanation string
	Formula     string
	Rows        []report.Row
	Chart       []byte // PNG
	Warnings    []string
}

// Compute evaluates sel and renders its chart. cache may be nil.
func Compute(ctx context.Context, lb *lab.Lab, cache render.Store, chart config.ChartConfig, sel Selection) (View, error) {
	req, err := sel.Request()
	if err != nil {
		return View{}, err
	}
	res, err := lb.Evaluate(ctx, req)
	if err != nil {
		return View{}, err
	}
	png, err := render.EncodeCached(ctx, cache, res, chart, render.FormatPNG)
	if err != nil {
		return View{}, fmt.Errorf("render chart: %w", err)
	}
	v := View{
		Title:       lab.Title(res.Spec.Kind()),
		Explanation: res.Explanation,
		Formula:     res.Formula.Plain,
		Rows:        report.Rows(res, chart.Precision),
		Chart:       png,
	}
	for _, w := range lb.OutOfRange(res.Spec) {
		v.Warnings = append(v.Warnings, w.String())
	}
	return v, nil
}

// kindOptions are the select entries in menu order.
func kindOptions() []string {
	var out []string
	for _, k := range transform.Kinds() {
		out = append(out, k.Title())
	}
	return out
}

func axisOptions() []string {
	var out []string
	for _, a := range transform.Axes() {
		out = append(out, a.String())
	}
	return out
}
