/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package transform

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"geolab/internal/domain"
)

// linearMap is an origin-centred 2x2 linear map. The backing matrix is only
// read after construction, so shared maps are safe for concurrent use.
type linearMap struct{ m *mat.Dense }

// newLinearMap builds the map | a b |
//                            | c d |
func newLinearMap(a, b, c, d float64) linearMap {
	return linearMap{m: mat.NewDense(2, 2, []float64{a, b, c, d})}
}

func (l linearMap) apply(p domain.Point) domain.Point {
	var out mat.VecDense
	out.MulVec(l.m, mat.NewVecDense(2, []float64{p.X, p.Y}))
	return domain.Point{X: out.AtVec(0), Y: out.AtVec(1)}
}

var reflectionMaps = map[Axis]linearMap{
	AxisX:           newLinearMap(1, 0, 0, -1),
	AxisY:           newLinearMap(-1, 0, 0, 1),
	AxisYEqualsX:    newLinearMap(0, 1, 1, 0),
	AxisYEqualsNegX: newLinearMap(0, -1, -1, 0),
	AxisOrigin:      newLinearMap(-1, 0, 0, -1),
}

// rotationMap is the counter-clockwise rotation matrix for an angle in degrees.
func rotationMap(degrees float64) linearMap {
	rad := degrees * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return newLinearMap(cos, -sin, sin, cos)
}
