/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package domain defines the geometry value types shared by the engine, the
// renderers and the presentation layer.
package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrUnknownLabel is returned when a point is looked up by a name that is not
// one of the triangle's vertex labels.
var ErrUnknownLabel = errors.New("unknown point label")

// Labels are the vertex names of a PointSet in rendering order.
var Labels = [3]string{"A", "B", "C"}

// Point is an ordered pair of real numbers.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point { return Point{X: x, Y: y} }

// Add returns the component-wise sum of p and q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Scale returns p multiplied by k.
func (p Point) Scale(k float64) Point { return Point{X: p.X * k, Y: p.Y * k} }

// Norm is the distance from the origin.
func (p Point) Norm() float64 { return math.Hypot(p.X, p.Y) }

// Format renders the point as "(x, y)" with a fixed number of decimals.
func (p Point) Format(decimals int) string {
	if decimals < 0 {
		decimals = -1
	}
	return "(" + strconv.FormatFloat(p.X, 'f', decimals, 64) + ", " + strconv.FormatFloat(p.Y, 'f', decimals, 64) + ")"
}

func (p Point) String() string { return p.Format(-1) }

// PointSet is the triangle: exactly three named vertices A, B and C.
// It is a plain value; operations return new sets.
type PointSet struct {
	A Point `json:"A" yaml:"A"`
	B Point `json:"B" yaml:"B"`
	C Point `json:"C" yaml:"C"`
}

// NewPointSet builds a triangle from its three vertices.
func NewPointSet(a, b, c Point) PointSet { return PointSet{A: a, B: b, C: c} }

// DefaultTriangle is the lab's starting triangle A=(2,5), B=(5,5), C=(3,8).
func DefaultTriangle() PointSet {
	return PointSet{A: Pt(2, 5), B: Pt(5, 5), C: Pt(3, 8)}
}

// Get returns the vertex with the given label.
func (s PointSet) Get(name string) (Point, error) {
	switch name {
	case "A":
		return s.A, nil
	case "B":
		return s.B, nil
	case "C":
		return s.C, nil
	}
	return Point{}, fmt.Errorf("%w: %q", ErrUnknownLabel, name)
}

// Points returns the vertices in label order.
func (s PointSet) Points() []Point { return []Point{s.A, s.B, s.C} }

// AsOrderedPolygon returns A, B, C, A so that a renderer can draw a closed shape.
func (s PointSet) AsOrderedPolygon() []Point { return []Point{s.A, s.B, s.C, s.A} }

// Map applies f to every vertex and returns the resulting set; s is not modified.
func (s PointSet) Map(f func(Point) Point) PointSet {
	return PointSet{A: f(s.A), B: f(s.B), C: f(s.C)}
}

// Color is an 8-bit RGBA color used by the renderers.
type Color struct {
	R uint8 `json:"r" yaml:"r"`
	G uint8 `json:"g" yaml:"g"`
	B uint8 `json:"b" yaml:"b"`
	A uint8 `json:"a" yaml:"a"`
}

// Hex renders the color as #rrggbb, ignoring alpha.
func (c Color) Hex() string { return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B) }
