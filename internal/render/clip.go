/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import "math"

// vec is a device-space point.
type vec struct{ x, y float64 }

// clipPolygon clips a closed polygon (last vertex need not repeat the first)
// to r with Sutherland-Hodgman.
func clipPolygon(poly []vec, r Rect) []vec {
	edges := []struct {
		inside func(vec) bool
		cross  func(a, b vec) vec
	}{
		{func(p vec) bool { return p.x >= r.X }, func(a, b vec) vec { return atX(a, b, r.X) }},
		{func(p vec) bool { return p.x <= r.MaxX() }, func(a, b vec) vec { return atX(a, b, r.MaxX()) }},
		{func(p vec) bool { return p.y >= r.Y }, func(a, b vec) vec { return atY(a, b, r.Y) }},
		{func(p vec) bool { return p.y <= r.MaxY() }, func(a, b vec) vec { return atY(a, b, r.MaxY()) }},
	}
	out := poly
	for _, e := range edges {
		if len(out) == 0 {
			break
		}
		in := out
		out = make([]vec, 0, len(in)+2)
		prev := in[len(in)-1]
		for _, cur := range in {
			switch {
			case e.inside(cur) && e.inside(prev):
				out = append(out, cur)
			case e.inside(cur):
				out = append(out, e.cross(prev, cur), cur)
			case e.inside(prev):
				out = append(out, e.cross(prev, cur))
			}
			prev = cur
		}
	}
	return out
}

func atX(a, b vec, x float64) vec {
	t := (x - a.x) / (b.x - a.x)
	return vec{x, a.y + t*(b.y-a.y)}
}

func atY(a, b vec, y float64) vec {
	t := (y - a.y) / (b.y - a.y)
	return vec{a.x + t*(b.x-a.x), y}
}

// clipSegment clips a-b to r with Liang-Barsky; ok is false when nothing remains.
func clipSegment(a, b vec, r Rect) (vec, vec, bool) {
	dx, dy := b.x-a.x, b.y-a.y
	t0, t1 := 0.0, 1.0
	for _, c := range [4][2]float64{
		{-dx, a.x - r.X},
		{dx, r.MaxX() - a.x},
		{-dy, a.y - r.Y},
		{dy, r.MaxY() - a.y},
	} {
		p, q := c[0], c[1]
		if p == 0 {
			if q < 0 {
				return a, b, false
			}
			continue
		}
		t := q / p
		if p < 0 {
			if t > t1 {
				return a, b, false
			}
			if t > t0 {
				t0 = t
			}
		} else {
			if t < t0 {
				return a, b, false
			}
			if t < t1 {
				t1 = t
			}
		}
	}
	return vec{a.x + t0*dx, a.y + t0*dy}, vec{a.x + t1*dx, a.y + t1*dy}, true
}

// dashSegments splits a-b into the "on" pieces of pattern, starting at
// offset along the pattern. It returns the offset for the next segment so
// dashes run continuously around a polygon.
func dashSegments(a, b vec, pattern []float64, offset float64) ([][2]vec, float64) {
	total := 0.0
	for _, p := range pattern {
		total += p
	}
	length := dist(a, b)
	if math.IsNaN(length) || math.IsInf(length, 0) {
		return nil, offset
	}
	if len(pattern) == 0 || total <= 0 || length == 0 {
		return [][2]vec{{a, b}}, offset
	}
	var out [][2]vec
	pos := 0.0
	phase := offset
	for pos < length {
		// locate the pattern entry containing phase
		i, into := 0, phase
		for into >= pattern[i] {
			into -= pattern[i]
			i = (i + 1) % len(pattern)
		}
		step := pattern[i] - into
		end := pos + step
		if end > length {
			end = length
		}
		if i%2 == 0 {
			out = append(out, [2]vec{lerp(a, b, pos/length), lerp(a, b, end/length)})
		}
		phase = mod(phase+(end-pos), total)
		pos = end
	}
	return out, phase
}

func lerp(a, b vec, t float64) vec { return vec{a.x + t*(b.x-a.x), a.y + t*(b.y-a.y)} }

func dist(a, b vec) float64 {
	dx, dy := b.x-a.x, b.y-a.y
	return math.Hypot(dx, dy)
}

func mod(v, m float64) float64 {
	r := v - m*math.Floor(v/m)
	if r >= m {
		return 0
	}
	return r
}
