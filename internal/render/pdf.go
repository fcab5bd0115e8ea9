/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"errors"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"geolab/internal/config"
	"geolab/internal/domain"
	"geolab/internal/report"
	"geolab/internal/transform"
)

// Page is one PDF page: the chart followed by the explanation, the formula
// and the coordinate table.
type Page struct {
	Heading     string
	Figure      Figure
	Explanation string
	Formula     string
	Rows        []report.Row
}

// NewPage collects everything a PDF page shows for res.
func NewPage(heading string, res transform.Result, chart config.ChartConfig) Page {
	return Page{
		Heading:     heading,
		Figure:      NewFigure(res, chart),
		Explanation: res.Explanation,
		Formula:     res.Formula.Plain,
		Rows:        report.Rows(res, chart.Precision),
	}
}

// ErrNoPages is returned by WritePDF for an empty page list.
var ErrNoPages = errors.New("no pages to write")

const (
	pageMargin = 15.0
	plotSide   = 130.0
	pxToMM     = 0.2646
)

// WritePDF writes an A4 document with one page per entry.
func WritePDF(w io.Writer, pages []Page) error {
	if len(pages) == 0 {
		return ErrNoPages
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(pages[0].Heading, true)
	pdf.SetCreator("geolab", true)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, pg := range pages {
		pdf.AddPage()
		pageW, _ := pdf.GetPageSize()
		contentW := pageW - 2*pageMargin

		setTextColor(pdf, textColor)
		if pg.Heading != "" {
			pdf.SetFont("Helvetica", "B", 16)
			pdf.CellFormat(contentW, 8, tr(pg.Heading), "", 1, "L", false, 0, "")
		}
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(contentW, 7, tr(pg.Figure.Title), "", 1, "C", false, 0, "")

		top := pdf.GetY() + 4
		vp := NewViewport(Rect{X: (pageW - plotSide) / 2, Y: top, W: plotSide, H: plotSide}, pg.Figure.HalfRange)
		drawPDFChart(pdf, vp, pg.Figure, tr)

		pdf.SetXY(pageMargin, vp.Plot.MaxY()+10)
		setTextColor(pdf, textColor)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(contentW, 6, "Explanation", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(contentW, 5.5, tr(pg.Explanation), "", "L", false)
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(contentW, 6, "Formula", "", 1, "L", false, 0, "")
		pdf.SetFont("Courier", "", 10)
		pdf.MultiCell(contentW, 5.5, tr(pg.Formula), "", "L", false)
		pdf.Ln(3)

		if len(pg.Rows) > 0 {
			colW := []float64{20, 50, 50}
			h := report.Header()
			pdf.SetFont("Helvetica", "B", 10)
			pdf.SetFillColor(240, 240, 240)
			for i, title := range h {
				pdf.CellFormat(colW[i], 7, tr(title), "1", 0, "C", true, 0, "")
			}
			pdf.Ln(-1)
			pdf.SetFont("Helvetica", "", 10)
			for _, r := range pg.Rows {
				pdf.CellFormat(colW[0], 6.5, r.Label, "1", 0, "C", false, 0, "")
				pdf.CellFormat(colW[1], 6.5, r.Original, "1", 0, "C", false, 0, "")
				pdf.CellFormat(colW[2], 6.5, r.Transformed, "1", 0, "C", false, 0, "")
				pdf.Ln(-1)
			}
		}
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func drawPDFChart(pdf *gofpdf.Fpdf, vp Viewport, fig Figure, tr func(string) string) {
	plot := vp.Plot
	step := gridStep(fig.HalfRange)

	setDrawColor(pdf, gridColor)
	pdf.SetLineWidth(0.1)
	for _, t := range ticks(fig.HalfRange, step) {
		if t == 0 {
			continue
		}
		x, _ := vp.ToDevice(domain.Pt(t, 0))
		_, y := vp.ToDevice(domain.Pt(0, t))
		pdf.Line(x, plot.Y, x, plot.MaxY())
		pdf.Line(plot.X, y, plot.MaxX(), y)
	}
	ox, oy := vp.ToDevice(domain.Point{})
	setDrawColor(pdf, axisColor)
	pdf.SetLineWidth(0.4)
	pdf.Line(plot.X, oy, plot.MaxX(), oy)
	pdf.Line(ox, plot.Y, ox, plot.MaxY())
	setDrawColor(pdf, frameColor)
	pdf.SetLineWidth(0.2)
	pdf.Rect(plot.X, plot.Y, plot.W, plot.H, "D")

	pdf.SetFont("Helvetica", "", 7)
	setTextColor(pdf, textColor)
	for _, t := range labelTicks(fig.HalfRange, step) {
		x, _ := vp.ToDevice(domain.Pt(t, 0))
		_, y := vp.ToDevice(domain.Pt(0, t))
		s := tickText(t)
		sw := pdf.GetStringWidth(s)
		pdf.Text(x-sw/2, plot.MaxY()+4, s)
		pdf.Text(plot.X-1.5-sw, y+1, s)
	}

	pdf.ClipRect(plot.X, plot.Y, plot.W, plot.H, false)
	for _, s := range fig.Series {
		pts := make([]gofpdf.PointType, 0, 3)
		for _, p := range s.Vertices.Points() {
			x, y := vp.ToDevice(p)
			pts = append(pts, gofpdf.PointType{X: x, Y: y})
		}
		setFillColor(pdf, s.Style.Color)
		pdf.SetAlpha(s.Style.FillAlpha, "Normal")
		pdf.Polygon(pts, "F")
		pdf.SetAlpha(1, "Normal")

		setDrawColor(pdf, s.Style.Color)
		pdf.SetLineWidth(s.Style.Width * pxToMM)
		pdf.SetLineJoinStyle("round")
		if len(s.Style.Dash) > 0 {
			dash := make([]float64, len(s.Style.Dash))
			for i, d := range s.Style.Dash {
				dash[i] = d * pxToMM
			}
			pdf.SetDashPattern(dash, 0)
		}
		pdf.Polygon(pts, "D")
		pdf.SetDashPattern([]float64{}, 0)

		pdf.SetFont("Helvetica", "B", 9)
		setTextColor(pdf, s.Style.Color)
		for i, p := range pts {
			pdf.Circle(p.X, p.Y, 0.9, "F")
			pdf.Text(p.X+1.6, p.Y-1.6, tr(s.Labels[i]))
		}
	}
	pdf.ClipEnd()

	// legend
	lx, ly := plot.X+3, plot.Y+3
	pdf.SetFillColor(255, 255, 255)
	setDrawColor(pdf, frameColor)
	pdf.SetLineWidth(0.2)
	pdf.Rect(lx, ly, 32, 2+5*float64(len(fig.Series)), "FD")
	pdf.SetFont("Helvetica", "", 8)
	for i, s := range fig.Series {
		y := ly + 3.5 + 5*float64(i)
		setDrawColor(pdf, s.Style.Color)
		pdf.SetLineWidth(s.Style.Width * pxToMM)
		if len(s.Style.Dash) > 0 {
			pdf.SetDashPattern([]float64{1, 0.8}, 0)
		}
		pdf.Line(lx+2, y, lx+10, y)
		pdf.SetDashPattern([]float64{}, 0)
		setTextColor(pdf, textColor)
		pdf.Text(lx+12, y+1, tr(s.Name))
	}
}

func setDrawColor(pdf *gofpdf.Fpdf, c domain.Color) {
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
}

func setFillColor(pdf *gofpdf.Fpdf, c domain.Color) {
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
}

func setTextColor(pdf *gofpdf.Fpdf, c domain.Color) {
	pdf.SetTextColor(int(c.R), int(c.G), int(c.B))
}
