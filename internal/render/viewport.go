/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"math"

	"geolab/internal/domain"
)

// Rect is an axis-aligned rectangle in device units, Y pointing down.
type Rect struct{ X, Y, W, H float64 }

func (r Rect) MaxX() float64 { return r.X + r.W }
func (r Rect) MaxY() float64 { return r.Y + r.H }

func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && y >= r.Y && x <= r.MaxX() && y <= r.MaxY()
}

// affine is a 2D affine map
//
//	| a c e |
//	| b d f |
type affine struct{ a, b, c, d, e, f float64 }

func (m affine) mul(n affine) affine {
	return affine{
		a: m.a*n.a + m.c*n.b,
		b: m.b*n.a + m.d*n.b,
		c: m.a*n.c + m.c*n.d,
		d: m.b*n.c + m.d*n.d,
		e: m.a*n.e + m.c*n.f + m.e,
		f: m.b*n.e + m.d*n.f + m.f,
	}
}

func (m affine) apply(x, y float64) (float64, float64) {
	return m.a*x + m.c*y + m.e, m.b*x + m.d*y + m.f
}

func translate(tx, ty float64) affine { return affine{a: 1, d: 1, e: tx, f: ty} }
func scale(sx, sy float64) affine     { return affine{a: sx, d: sy} }

// Viewport maps world coordinates in [-HalfRange, HalfRange]² onto a square
// plot area. World Y points up; device Y points down.
type Viewport struct {
	Plot      Rect
	HalfRange float64
	toDevice  affine
}

func NewViewport(plot Rect, halfRange float64) Viewport {
	side := math.Min(plot.W, plot.H)
	sq := Rect{X: plot.X + (plot.W-side)/2, Y: plot.Y + (plot.H-side)/2, W: side, H: side}
	k := side / (2 * halfRange)
	m := translate(sq.X+side/2, sq.Y+side/2).mul(scale(k, -k))
	return Viewport{Plot: sq, HalfRange: halfRange, toDevice: m}
}

// Margins around the plot area in device units.
const (
	marginTop    = 44
	marginBottom = 28
	marginLeft   = 36
	marginRight  = 24
	minCanvas    = 160
)

// PixelViewport lays out a w×h canvas: the title above, the square plot below.
func PixelViewport(w, h int, halfRange float64) Viewport {
	fw, fh := float64(max(w, minCanvas)), float64(max(h, minCanvas))
	return NewViewport(Rect{X: marginLeft, Y: marginTop, W: fw - marginLeft - marginRight, H: fh - marginTop - marginBottom}, halfRange)
}

func (v Viewport) ToDevice(p domain.Point) (float64, float64) { return v.toDevice.apply(p.X, p.Y) }

// Visible reports whether p lies inside the fixed axis range.
func (v Viewport) Visible(p domain.Point) bool {
	return math.Abs(p.X) <= v.HalfRange && math.Abs(p.Y) <= v.HalfRange
}

// Scale is the number of device units per world unit.
func (v Viewport) Scale() float64 { return v.toDevice.a }
