/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"geolab/internal/domain"
)

// RasterFigure draws fig into a new RGBA image.
func RasterFigure(fig Figure) *image.RGBA {
	vp := PixelViewport(fig.Width, fig.Height, fig.HalfRange)
	width, height := max(fig.Width, minCanvas), max(fig.Height, minCanvas)
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	c := &canvas{img: img, z: vector.NewRasterizer(width, height), clip: vp.Plot}
	plot := vp.Plot

	step := gridStep(fig.HalfRange)
	for _, t := range ticks(fig.HalfRange, step) {
		if t == 0 {
			continue
		}
		x, _ := vp.ToDevice(domain.Pt(t, 0))
		_, y := vp.ToDevice(domain.Pt(0, t))
		c.vline(x, plot.Y, plot.MaxY(), 1, gridColor)
		c.hline(y, plot.X, plot.MaxX(), 1, gridColor)
	}
	ox, oy := vp.ToDevice(domain.Point{})
	c.hline(oy, plot.X, plot.MaxX(), 2, axisColor)
	c.vline(ox, plot.Y, plot.MaxY(), 2, axisColor)
	c.frame(plot, frameColor)

	for _, t := range labelTicks(fig.HalfRange, step) {
		x, _ := vp.ToDevice(domain.Pt(t, 0))
		_, y := vp.ToDevice(domain.Pt(0, t))
		s := tickText(t)
		c.text(x-float64(c.measure(s))/2, plot.MaxY()+16, s, textColor)
		c.text(plot.X-6-float64(c.measure(s)), y+4, s, textColor)
	}
	if fig.Title != "" {
		c.text(float64(width)/2-float64(c.measure(fig.Title))/2, 28, fig.Title, textColor)
	}

	for _, s := range fig.Series {
		poly := make([]vec, 0, 3)
		for _, p := range s.Vertices.Points() {
			x, y := vp.ToDevice(p)
			poly = append(poly, vec{x, y})
		}
		fill := s.Style.Color
		fill.A = uint8(math.Round(255 * s.Style.FillAlpha))
		c.fillPolygon(clipPolygon(poly, plot), fill)
		c.strokePolygon(poly, s.Style)
		for i, p := range s.Vertices.Points() {
			if !vp.Visible(p) {
				continue
			}
			x, y := vp.ToDevice(p)
			c.dot(vec{x, y}, 4, s.Style.Color)
			c.text(x+6, y-6, s.Labels[i], s.Style.Color)
		}
	}

	lx, ly := plot.X+10, plot.Y+10
	box := Rect{X: lx, Y: ly, W: 110, H: float64(8 + 18*len(fig.Series))}
	c.fillPolygon([]vec{{box.X, box.Y}, {box.MaxX(), box.Y}, {box.MaxX(), box.MaxY()}, {box.X, box.MaxY()}}, domain.Color{R: 255, G: 255, B: 255, A: 217})
	c.frame(box, frameColor)
	for i, s := range fig.Series {
		y := ly + 13 + 18*float64(i)
		st := s.Style
		if len(st.Dash) > 0 {
			st.Dash = []float64{4, 3}
		}
		c.strokePath([]vec{{lx + 8, y}, {lx + 34, y}}, st)
		c.text(lx+42, y+4, s.Name, textColor)
	}
	return img
}

// WritePNG encodes fig as PNG.
func WritePNG(w io.Writer, fig Figure) error {
	if err := png.Encode(w, RasterFigure(fig)); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// canvas wraps an RGBA image with a reusable rasterizer. Shapes are clipped
// to clip before they reach the rasterizer, so the rasterizer only ever sees
// coordinates inside the image.
type canvas struct {
	img  *image.RGBA
	z    *vector.Rasterizer
	clip Rect
}

func (c *canvas) paint(col domain.Color) {
	c.z.DrawOp = draw.Over
	src := image.NewUniform(color.NRGBA{R: col.R, G: col.G, B: col.B, A: col.A})
	c.z.Draw(c.img, c.img.Bounds(), src, image.Point{})
	b := c.img.Bounds()
	c.z.Reset(b.Dx(), b.Dy())
}

func (c *canvas) addPolygon(poly []vec) {
	if len(poly) < 3 {
		return
	}
	c.z.MoveTo(float32(poly[0].x), float32(poly[0].y))
	for _, p := range poly[1:] {
		c.z.LineTo(float32(p.x), float32(p.y))
	}
	c.z.ClosePath()
}

func (c *canvas) fillPolygon(poly []vec, col domain.Color) {
	if len(poly) < 3 {
		return
	}
	c.addPolygon(poly)
	c.paint(col)
}

// addSegment adds a-b as a quad of the given width. extend lengthens both ends
// by half the width so consecutive segments meet without a notch.
func (c *canvas) addSegment(a, b vec, width float64, extend bool) {
	l := dist(a, b)
	if l == 0 || math.IsNaN(l) {
		return
	}
	ux, uy := (b.x-a.x)/l, (b.y-a.y)/l
	hw := width / 2
	if extend {
		a = vec{a.x - ux*hw, a.y - uy*hw}
		b = vec{b.x + ux*hw, b.y + uy*hw}
	}
	nx, ny := -uy*hw, ux*hw
	c.addPolygon([]vec{{a.x + nx, a.y + ny}, {b.x + nx, b.y + ny}, {b.x - nx, b.y - ny}, {a.x - nx, a.y - ny}})
}

// strokePath strokes an open polyline, clipped to the plot area.
func (c *canvas) strokePath(path []vec, st Style) {
	offset := 0.0
	for i := 0; i+1 < len(path); i++ {
		a, b, ok := clipSegment(path[i], path[i+1], c.clip)
		if !ok {
			continue
		}
		if len(st.Dash) == 0 {
			c.addSegment(a, b, st.Width, true)
			continue
		}
		var pieces [][2]vec
		pieces, offset = dashSegments(a, b, st.Dash, offset)
		for _, p := range pieces {
			c.addSegment(p[0], p[1], st.Width, false)
		}
	}
	c.paint(st.Color)
}

func (c *canvas) strokePolygon(poly []vec, st Style) {
	if len(poly) == 0 {
		return
	}
	closed := append(append([]vec(nil), poly...), poly[0])
	c.strokePath(closed, st)
}

func (c *canvas) dot(p vec, r float64, col domain.Color) {
	if !c.clip.Contains(p.x, p.y) {
		return
	}
	const n = 16
	pts := make([]vec, n)
	for i := range pts {
		s, co := math.Sincos(2 * math.Pi * float64(i) / n)
		pts[i] = vec{p.x + r*co, p.y + r*s}
	}
	c.addPolygon(pts)
	c.paint(col)
}

// hline and vline draw axis-aligned lines of integer thickness inside clip.
func (c *canvas) hline(y, x0, x1 float64, thickness int, col domain.Color) {
	if y < c.clip.Y || y > c.clip.MaxY() {
		return
	}
	top := int(math.Round(y)) - thickness/2
	c.fillRect(int(math.Round(x0)), top, int(math.Round(x1)), top+thickness-1, col)
}

func (c *canvas) vline(x, y0, y1 float64, thickness int, col domain.Color) {
	if x < c.clip.X || x > c.clip.MaxX() {
		return
	}
	left := int(math.Round(x)) - thickness/2
	c.fillRect(left, int(math.Round(y0)), left+thickness-1, int(math.Round(y1)), col)
}

func (c *canvas) frame(r Rect, col domain.Color) {
	x0, y0 := int(math.Round(r.X)), int(math.Round(r.Y))
	x1, y1 := int(math.Round(r.MaxX())), int(math.Round(r.MaxY()))
	c.fillRect(x0, y0, x1, y0, col)
	c.fillRect(x0, y1, x1, y1, col)
	c.fillRect(x0, y0, x0, y1, col)
	c.fillRect(x1, y0, x1, y1, col)
}

func (c *canvas) fillRect(x0, y0, x1, y1 int, col domain.Color) {
	r := image.Rect(x0, y0, x1+1, y1+1).Intersect(c.img.Bounds())
	draw.Draw(c.img, r, image.NewUniform(color.NRGBA{R: col.R, G: col.G, B: col.B, A: col.A}), image.Point{}, draw.Over)
}

func (c *canvas) measure(s string) int {
	d := &font.Drawer{Face: basicfont.Face7x13}
	return d.MeasureString(s).Ceil()
}

func (c *canvas) text(x, y float64, s string, col domain.Color) {
	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(color.NRGBA{R: col.R, G: col.G, B: col.B, A: col.A}),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(int(math.Round(x)), int(math.Round(y))),
	}
	d.DrawString(s)
}
