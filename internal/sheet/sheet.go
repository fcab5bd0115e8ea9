/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package sheet loads exercise worksheets: YAML files listing several
// transformations to evaluate and print in one go.
//
//	title: Week 3
//	triangle: {A: {x: 2, y: 5}, B: {x: 5, y: 5}, C: {x: 3, y: 8}}
//	exercises:
//	  - {title: Shift, kind: translation, dx: 3, dy: 2}
//	  - {title: Mirror, kind: reflection, axis: "y=x"}
package sheet

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"geolab/internal/domain"
	"geolab/internal/lab"
	applog "geolab/internal/log"
	"geolab/internal/transform"
)

//go:embed worksheet.schema.json
var schemaJSON []byte

// ErrInvalidSheet wraps YAML and schema errors.
var ErrInvalidSheet = errors.New("invalid worksheet")

// Exercise is one transformation to evaluate. A nil Triangle uses the sheet's.
type Exercise struct {
	Title    string           `yaml:"title,omitempty"`
	Triangle *domain.PointSet `yaml:"triangle,omitempty"`
	Kind     string           `yaml:"kind"`
	DX       float64          `yaml:"dx,omitempty"`
	DY       float64          `yaml:"dy,omitempty"`
	Axis     string           `yaml:"axis,omitempty"`
	Angle    float64          `yaml:"angle,omitempty"`
	Factor   float64          `yaml:"factor,omitempty"`
}

// Params converts the exercise fields to lab parameters.
func (e Exercise) Params() lab.Params {
	return lab.Params{DX: e.DX, DY: e.DY, Axis: e.Axis, Angle: e.Angle, Factor: e.Factor}
}

// Sheet is a decoded worksheet.
type Sheet struct {
	Title     string           `yaml:"title"`
	Triangle  *domain.PointSet `yaml:"triangle,omitempty"`
	Exercises []Exercise       `yaml:"exercises"`
}

// Load reads and validates a worksheet file.
func Load(path string) (Sheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Sheet{}, err
	}
	s, err := Parse(data)
	if err != nil {
		return Sheet{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse validates data against the worksheet schema and decodes it.
func Parse(data []byte) (Sheet, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Sheet{}, fmt.Errorf("%w: %v", ErrInvalidSheet, err)
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return Sheet{}, fmt.Errorf("%w: %v", ErrInvalidSheet, err)
	}
	res, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewBytesLoader(asJSON))
	if err != nil {
		return Sheet{}, fmt.Errorf("%w: %v", ErrInvalidSheet, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return Sheet{}, fmt.Errorf("%w: %s", ErrInvalidSheet, strings.Join(msgs, "; "))
	}
	var s Sheet
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Sheet{}, fmt.Errorf("%w: %v", ErrInvalidSheet, err)
	}
	return s, nil
}

// Outcome is one evaluated exercise.
type Outcome struct {
	Index    int
	Title    string
	Result   transform.Result
	Warnings []lab.RangeWarning
}

// Evaluate runs every exercise. The triangle comes from the exercise, then
// the sheet, then fallback. The first failing exercise aborts the run.
func Evaluate(ctx context.Context, l *lab.Lab, s Sheet, fallback domain.PointSet) ([]Outcome, error) {
	ctx = applog.ContextWith(ctx, slog.String("sheet", s.Title))
	base := fallback
	if s.Triangle != nil {
		base = *s.Triangle
	}
	out := make([]Outcome, 0, len(s.Exercises))
	for i, ex := range s.Exercises {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		spec, err := lab.SpecFromParams(ex.Kind, ex.Params())
		if err != nil {
			return out, fmt.Errorf("exercise %d: %w", i+1, err)
		}
		tri := base
		if ex.Triangle != nil {
			tri = *ex.Triangle
		}
		res, err := l.Evaluate(applog.ContextWith(ctx, slog.Int("exercise", i+1)), lab.Request{Triangle: tri, Spec: spec})
		if err != nil {
			return out, fmt.Errorf("exercise %d: %w", i+1, err)
		}
		title := ex.Title
		if title == "" {
			title = fmt.Sprintf("Exercise %d: %s", i+1, spec.Kind().Title())
		}
		out = append(out, Outcome{Index: i + 1, Title: title, Result: res, Warnings: l.OutOfRange(spec)})
	}
	return out, nil
}
