/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package lab turns user selections into engine calls. A Lab is read-only
// after construction; each evaluation receives a fresh Request.
package lab

import (
	"context"
	"fmt"
	"log/slog"

	"geolab/internal/config"
	"geolab/internal/domain"
	applog "geolab/internal/log"
	"geolab/internal/telemetry"
	"geolab/internal/transform"
)

// Params is the raw control state of the sidebar or the command line. Only
// the fields of the selected kind are read.
type Params struct {
	DX, DY float64
	Axis   string
	Angle  float64
	Factor float64
}

// ParamsFromConfig copies the configured initial control values.
func ParamsFromConfig(d config.ParamDefaults) Params {
	return Params{DX: d.DX, DY: d.DY, Axis: d.Axis, Angle: d.Angle, Factor: d.Factor}
}

// SpecFromParams builds the transformation selected by kind.
func SpecFromParams(kind string, p Params) (transform.Spec, error) {
	k, err := transform.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	switch k {
	case transform.KindTranslation:
		return transform.Translation{DX: p.DX, DY: p.DY}, nil
	case transform.KindReflection:
		axis, err := transform.ParseAxis(p.Axis)
		if err != nil {
			return nil, err
		}
		return transform.Reflection{Axis: axis}, nil
	case transform.KindRotation:
		return transform.Rotation{Degrees: p.Angle}, nil
	case transform.KindScaling:
		return transform.Scaling{Factor: p.Factor}, nil
	}
	return nil, fmt.Errorf("%w: %s", transform.ErrUnsupportedTransformation, k)
}

// Title is the chart heading for a kind, e.g. "Visualizing Rotation".
func Title(k transform.Kind) string { return "Visualizing " + k.Title() }

// Request is one evaluation: a triangle and the transformation to apply.
type Request struct {
	Triangle domain.PointSet
	Spec     transform.Spec
}

// Lab evaluates requests and checks parameters against the suggested ranges.
type Lab struct {
	ranges config.Ranges
	log    *slog.Logger
}

// New returns a Lab that warns about parameters outside ranges.
func New(ranges config.Ranges) *Lab {
	return &Lab{ranges: ranges, log: applog.WithComponent("lab")}
}

// Evaluate applies req.Spec to req.Triangle. Parameters outside the
// suggested ranges are logged at warn level and evaluated anyway.
func (l *Lab) Evaluate(ctx context.Context, req Request) (transform.Result, error) {
	if err := ctx.Err(); err != nil {
		return transform.Result{}, err
	}
	lg := applog.WithOperation(l.log, "evaluate")
	res, err := transform.Apply(req.Triangle, req.Spec)
	if err != nil {
		lg.ErrorContext(ctx, "transformation rejected", slog.Any("err", err))
		return transform.Result{}, err
	}
	lg.DebugContext(ctx, "transformation applied", specAttrs(res.Spec)...)
	telemetry.Event("evaluate", map[string]any{"kind": res.Spec.Kind().String()})
	for _, w := range l.OutOfRange(res.Spec) {
		lg.WarnContext(ctx, "parameter outside suggested range",
			slog.String("param", w.Param), slog.Float64("value", w.Value),
			slog.Float64("min", w.Range.Min), slog.Float64("max", w.Range.Max))
	}
	return res, nil
}

// RangeWarning names a parameter that lies outside its suggested range.
type RangeWarning struct {
	Param string
	Value float64
	Range config.Range
}

func (w RangeWarning) String() string {
	return fmt.Sprintf("%s=%g is outside the suggested range [%g, %g]", w.Param, w.Value, w.Range.Min, w.Range.Max)
}

// OutOfRange lists the parameters of s outside the configured ranges.
func (l *Lab) OutOfRange(s transform.Spec) []RangeWarning {
	if s == nil {
		return nil
	}
	r, ok := l.ranges.RangeFor(s.Kind().String())
	if !ok {
		return nil
	}
	var out []RangeWarning
	check := func(name string, v float64) {
		if !r.Contains(v) {
			out = append(out, RangeWarning{Param: name, Value: v, Range: r})
		}
	}
	switch s := s.(type) {
	case transform.Translation:
		check("dx", s.DX)
		check("dy", s.DY)
	case transform.Rotation:
		check("angle", s.Degrees)
	case transform.Scaling:
		check("k", s.Factor)
	}
	return out
}

func specAttrs(s transform.Spec) []any {
	attrs := []any{slog.String("kind", s.Kind().String())}
	switch s := s.(type) {
	case transform.Translation:
		attrs = append(attrs, slog.Float64("dx", s.DX), slog.Float64("dy", s.DY))
	case transform.Reflection:
		attrs = append(attrs, slog.String("axis", s.Axis.String()))
	case transform.Rotation:
		attrs = append(attrs, slog.Float64("angle", s.Degrees))
	case transform.Scaling:
		attrs = append(attrs, slog.Float64("k", s.Factor))
	}
	return attrs
}
