/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"geolab/internal/domain"
)

// WriteSVG writes fig as a standalone SVG document sized Width×Height px.
func WriteSVG(w io.Writer, fig Figure) error {
	vp := PixelViewport(fig.Width, fig.Height, fig.HalfRange)
	width, height := max(fig.Width, minCanvas), max(fig.Height, minCanvas)
	plot := vp.Plot

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%dpx\" height=\"%dpx\" viewBox=\"0 0 %d %d\">\n", width, height, width, height)
	wf("  <defs><clipPath id=\"plot\"><rect x=\"%s\" y=\"%s\" width=\"%s\" height=\"%s\"/></clipPath></defs>\n", n2(plot.X), n2(plot.Y), n2(plot.W), n2(plot.H))
	wf("  <rect x=\"0\" y=\"0\" width=\"%d\" height=\"%d\" fill=\"#ffffff\"/>\n", width, height)
	if fig.Title != "" {
		wf("  <text x=\"%s\" y=\"28\" text-anchor=\"middle\" font-family=\"Helvetica, Arial, sans-serif\" font-size=\"18\" fill=\"%s\">%s</text>\n",
			n2(float64(width)/2), textColor.Hex(), escText(fig.Title))
	}

	step := gridStep(fig.HalfRange)
	wf("  <g id=\"grid\" stroke=\"%s\" stroke-width=\"1\">\n", gridColor.Hex())
	for _, t := range ticks(fig.HalfRange, step) {
		if t == 0 {
			continue
		}
		x, _ := vp.ToDevice(domain.Pt(t, 0))
		_, y := vp.ToDevice(domain.Pt(0, t))
		wf("    <line x1=\"%s\" y1=\"%s\" x2=\"%s\" y2=\"%s\"/>\n", n2(x), n2(plot.Y), n2(x), n2(plot.MaxY()))
		wf("    <line x1=\"%s\" y1=\"%s\" x2=\"%s\" y2=\"%s\"/>\n", n2(plot.X), n2(y), n2(plot.MaxX()), n2(y))
	}
	wf("  </g>\n")
	ox, oy := vp.ToDevice(domain.Point{})
	wf("  <g id=\"axes\" stroke=\"%s\" stroke-width=\"2\">\n", axisColor.Hex())
	wf("    <line x1=\"%s\" y1=\"%s\" x2=\"%s\" y2=\"%s\"/>\n", n2(plot.X), n2(oy), n2(plot.MaxX()), n2(oy))
	wf("    <line x1=\"%s\" y1=\"%s\" x2=\"%s\" y2=\"%s\"/>\n", n2(ox), n2(plot.Y), n2(ox), n2(plot.MaxY()))
	wf("  </g>\n")
	wf("  <rect x=\"%s\" y=\"%s\" width=\"%s\" height=\"%s\" fill=\"none\" stroke=\"%s\" stroke-width=\"1\"/>\n",
		n2(plot.X), n2(plot.Y), n2(plot.W), n2(plot.H), frameColor.Hex())

	wf("  <g id=\"ticks\" font-family=\"Helvetica, Arial, sans-serif\" font-size=\"11\" fill=\"%s\">\n", textColor.Hex())
	for _, t := range labelTicks(fig.HalfRange, step) {
		x, _ := vp.ToDevice(domain.Pt(t, 0))
		_, y := vp.ToDevice(domain.Pt(0, t))
		wf("    <text x=\"%s\" y=\"%s\" text-anchor=\"middle\">%s</text>\n", n2(x), n2(plot.MaxY()+16), tickText(t))
		wf("    <text x=\"%s\" y=\"%s\" text-anchor=\"end\">%s</text>\n", n2(plot.X-6), n2(y+4), tickText(t))
	}
	wf("  </g>\n")

	wf("  <g clip-path=\"url(#plot)\">\n")
	for _, s := range fig.Series {
		pts := make([]string, 0, 3)
		for _, p := range s.Vertices.Points() {
			x, y := vp.ToDevice(p)
			pts = append(pts, n2(x)+","+n2(y))
		}
		dash := ""
		if len(s.Style.Dash) > 0 {
			parts := make([]string, len(s.Style.Dash))
			for i, d := range s.Style.Dash {
				parts[i] = n2(d)
			}
			dash = fmt.Sprintf(" stroke-dasharray=\"%s\"", strings.Join(parts, " "))
		}
		c := s.Style.Color.Hex()
		wf("    <g class=\"series\" data-name=\"%s\">\n", escAttr(s.Name))
		wf("      <polygon points=\"%s\" fill=\"%s\" fill-opacity=\"%s\" stroke=\"%s\" stroke-width=\"%s\" stroke-linejoin=\"round\"%s/>\n",
			strings.Join(pts, " "), c, n2(s.Style.FillAlpha), c, n2(s.Style.Width), dash)
		for i, p := range s.Vertices.Points() {
			x, y := vp.ToDevice(p)
			wf("      <circle cx=\"%s\" cy=\"%s\" r=\"4\" fill=\"%s\"/>\n", n2(x), n2(y), c)
			wf("      <text x=\"%s\" y=\"%s\" font-family=\"Helvetica, Arial, sans-serif\" font-size=\"13\" font-weight=\"bold\" fill=\"%s\">%s</text>\n",
				n2(x+6), n2(y-6), c, escText(s.Labels[i]))
		}
		wf("    </g>\n")
	}
	wf("  </g>\n")

	// legend, top-left inside the plot
	lx, ly := plot.X+10, plot.Y+10
	wf("  <g id=\"legend\" font-family=\"Helvetica, Arial, sans-serif\" font-size=\"12\" fill=\"%s\">\n", textColor.Hex())
	wf("    <rect x=\"%s\" y=\"%s\" width=\"110\" height=\"%d\" fill=\"#ffffff\" fill-opacity=\"0.85\" stroke=\"%s\"/>\n",
		n2(lx), n2(ly), 8+18*len(fig.Series), frameColor.Hex())
	for i, s := range fig.Series {
		y := ly + 13 + 18*float64(i)
		dash := ""
		if len(s.Style.Dash) > 0 {
			dash = " stroke-dasharray=\"4 3\""
		}
		wf("    <line x1=\"%s\" y1=\"%s\" x2=\"%s\" y2=\"%s\" stroke=\"%s\" stroke-width=\"%s\"%s/>\n",
			n2(lx+8), n2(y), n2(lx+34), n2(y), s.Style.Color.Hex(), n2(s.Style.Width), dash)
		wf("    <text x=\"%s\" y=\"%s\">%s</text>\n", n2(lx+42), n2(y+4), escText(s.Name))
	}
	wf("  </g>\n")
	wf("</svg>\n")

	if werr != nil {
		return fmt.Errorf("build svg: %w", werr)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// labelTicks are the grid ticks that carry a number: every fifth grid line.
func labelTicks(halfRange, step float64) []float64 {
	var out []float64
	for _, t := range ticks(halfRange, step) {
		if q := t / (5 * step); q == float64(int64(q)) {
			out = append(out, t)
		}
	}
	return out
}

func tickText(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// n2 formats a device coordinate with at most two decimals.
func n2(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if s == "-0" {
		return "0"
	}
	return s
}

func escAttr(s string) string {
	r := strings.NewReplacer("&", "&amp;", "\"", "&quot;", "<", "&lt;", ">", "&gt;", "\n", " ", "\r", "")
	return r.Replace(s)
}

func escText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}
