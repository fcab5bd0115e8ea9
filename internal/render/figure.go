/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render draws the comparison chart of an original and a transformed
// triangle as SVG, PNG or PDF. Axes are fixed to [-HalfRange, HalfRange] in
// both directions; the chart never fits itself to the data.
package render

import (
	"math"

	"geolab/internal/config"
	"geolab/internal/domain"
	"geolab/internal/lab"
	"geolab/internal/transform"
)

var (
	RoyalBlue = domain.Color{R: 65, G: 105, B: 225, A: 255}
	Firebrick = domain.Color{R: 178, G: 34, B: 34, A: 255}

	gridColor  = domain.Color{R: 228, G: 228, B: 228, A: 255}
	axisColor  = domain.Color{R: 90, G: 90, B: 90, A: 255}
	frameColor = domain.Color{R: 160, G: 160, B: 160, A: 255}
	textColor  = domain.Color{R: 33, G: 33, B: 33, A: 255}
)

// Style describes how a series is stroked and filled. Width is in pixels
// (points for PDF). An empty Dash draws a solid line.
type Style struct {
	Color     domain.Color
	Width     float64
	Dash      []float64
	FillAlpha float64
}

type Series struct {
	Name     string
	Vertices domain.PointSet
	Labels   [3]string
	Style    Style
}

// Polygon returns the closed outline A, B, C, A.
func (s Series) Polygon() []domain.Point { return s.Vertices.AsOrderedPolygon() }

type Figure struct {
	Title     string
	HalfRange float64
	Width     int
	Height    int
	Series    []Series
}

// NewFigure builds the two-series chart for res: the original triangle
// dashed in royal blue, the image solid in firebrick.
func NewFigure(res transform.Result, chart config.ChartConfig) Figure {
	fig := Figure{
		HalfRange: chart.HalfRange,
		Width:     chart.Width,
		Height:    chart.Height,
		Series: []Series{
			{
				Name:     "Original",
				Vertices: res.Original,
				Labels:   domain.Labels,
				Style:    Style{Color: RoyalBlue, Width: 2, Dash: []float64{8, 5}, FillAlpha: 0.2},
			},
			{
				Name:     "Image",
				Vertices: res.Transformed,
				Labels:   [3]string{"A'", "B'", "C'"},
				Style:    Style{Color: Firebrick, Width: 3, FillAlpha: 0.2},
			},
		},
	}
	if res.Spec != nil {
		fig.Title = lab.Title(res.Spec.Kind())
	}
	if fig.HalfRange <= 0 {
		fig.HalfRange = 15
	}
	return fig
}

// gridStep picks the grid spacing from 1, 2, 5, 10, 20, ... so that each
// axis carries at most 40 grid lines. The default range gets unit steps.
func gridStep(halfRange float64) float64 {
	if !(halfRange > 0) || math.IsInf(halfRange, 0) {
		return 1
	}
	for base := 1.0; !math.IsInf(base, 0); base *= 10 {
		for _, m := range []float64{1, 2, 5} {
			if step := base * m; halfRange/step <= 20 {
				return step
			}
		}
	}
	return halfRange
}

// ticks returns the multiples of step within [-r, r].
func ticks(r, step float64) []float64 {
	n := int(math.Floor(r/step + 1e-9))
	out := make([]float64, 0, 2*n+1)
	for i := -n; i <= n; i++ {
		out = append(out, float64(i)*step)
	}
	return out
}
