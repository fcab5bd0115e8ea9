/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package transform

import (
	"fmt"

	"geolab/internal/domain"
)

// Formula is the symbolic rule of a transformation. It names parameters
// (dx, dy, theta, k) and never embeds their values.
type Formula struct {
	LaTeX string `json:"latex"`
	Plain string `json:"plain"`
}

// Result is the outcome of one evaluation.
type Result struct {
	Spec        Spec
	Original    domain.PointSet
	Transformed domain.PointSet
	Formula     Formula
	Explanation string
}

// Apply evaluates spec against ps. It has no side effects: ps is returned
// unchanged in Result.Original and every call is independent.
//
// The only failures are contract violations: a nil or foreign Spec yields
// ErrUnsupportedTransformation and an unknown reflection axis ErrInvalidAxis.
// No numeric parameter is ever rejected.
func Apply(ps domain.PointSet, spec Spec) (Result, error) {
	var (
		mapPoint    func(domain.Point) domain.Point
		formula     Formula
		explanation string
	)
	switch s := deref(spec).(type) {
	case Translation:
		mapPoint = func(p domain.Point) domain.Point { return Translate(p, s.DX, s.DY) }
		formula = translationFormula
		explanation = fmt.Sprintf("Every point is shifted %s units along the X-axis and %s units along the Y-axis.", num(s.DX), num(s.DY))
	case Reflection:
		m, ok := reflectionMaps[s.Axis]
		if !ok {
			return Result{}, fmt.Errorf("%w: %d", ErrInvalidAxis, int(s.Axis))
		}
		mapPoint = m.apply
		formula = reflectionFormulas[s.Axis]
		explanation = fmt.Sprintf("The triangle is reflected in %s.", s.Axis.Description())
	case Rotation:
		mapPoint = func(p domain.Point) domain.Point { return Rotate(p, s.Degrees) }
		formula = rotationFormula
		explanation = fmt.Sprintf("The triangle is rotated %s° counter-clockwise about the origin (0,0).", num(s.Degrees))
	case Scaling:
		k := s.Factor
		mapPoint = func(p domain.Point) domain.Point { return Scale(p, k) }
		formula = scalingFormula
		explanation = fmt.Sprintf("The triangle is dilated by scale factor k = %s from the origin (0,0).", num(k))
	default:
		return Result{}, fmt.Errorf("%w: %T", ErrUnsupportedTransformation, spec)
	}
	return Result{
		Spec:        deref(spec),
		Original:    ps,
		Transformed: ps.Map(mapPoint),
		Formula:     formula,
		Explanation: explanation,
	}, nil
}

// deref lets callers pass pointers to the variants. A nil pointer falls
// through to the unsupported case.
func deref(spec Spec) Spec {
	switch s := spec.(type) {
	case *Translation:
		if s != nil {
			return *s
		}
	case *Reflection:
		if s != nil {
			return *s
		}
	case *Rotation:
		if s != nil {
			return *s
		}
	case *Scaling:
		if s != nil {
			return *s
		}
	default:
		return spec
	}
	return nil
}

// Translate shifts p by (dx, dy).
func Translate(p domain.Point, dx, dy float64) domain.Point { return p.Add(domain.Pt(dx, dy)) }

// Reflect mirrors p in axis; an unknown axis gives ErrInvalidAxis.
func Reflect(p domain.Point, axis Axis) (domain.Point, error) {
	m, ok := reflectionMaps[axis]
	if !ok {
		return domain.Point{}, fmt.Errorf("%w: %d", ErrInvalidAxis, int(axis))
	}
	return m.apply(p), nil
}

// Rotate turns p counter-clockwise about the origin by degrees.
func Rotate(p domain.Point, degrees float64) domain.Point { return rotationMap(degrees).apply(p) }

// Scale multiplies p by k about the origin.
func Scale(p domain.Point, k float64) domain.Point { return p.Scale(k) }
