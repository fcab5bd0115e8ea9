//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"geolab/internal/config"
	"geolab/internal/domain"
	"geolab/internal/lab"
	applog "geolab/internal/log"
	"geolab/internal/report"
	"geolab/internal/storage"
	"geolab/internal/transform"
	"geolab/internal/version"
)

// Run starts the Fyne desktop UI and blocks until the window is closed.
func Run(cfg config.AppConfig) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI")
	ctx := context.Background()

	cache, err := storage.OpenConfigured(ctx, cfg.Cache)
	if err != nil {
		l.Warn("render cache disabled", slog.Any("err", err))
		cache = nil
	}
	if cache != nil {
		defer func() {
			if err := cache.Close(); err != nil {
				l.Error("close render cache", slog.Any("err", err))
			}
		}()
	}

	fyneApp := app.NewWithID("geolab")
	w := fyneApp.NewWindow("Geometric Transformations Lab")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1200)
	winH := prefs.IntWithFallback("window.height", 800)
	if winW < 800 {
		winW = 800
	}
	if winH < 600 {
		winH = 600
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	p := newPanel(ctx, cfg, cache)
	w.SetContent(p.layout())

	aboutItem := fyne.NewMenuItem("About", func() {
		dialog.ShowInformation("About", fmt.Sprintf("geolab %s\nInteractive 2D transformations of a triangle.", version.String()), w)
	})
	w.SetMainMenu(fyne.NewMainMenu(fyne.NewMenu("Help", aboutItem)))

	w.SetCloseIntercept(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		w.Close()
	})
	w.ShowAndRun()
	l.Info("UI closed")
	return nil
}

// panel is the sidebar plus the result area of one window.
type panel struct {
	ctx   context.Context
	cfg   config.AppConfig
	lab   *lab.Lab
	cache *storage.Cache
	log   *slog.Logger

	sel  Selection
	view View
	seq  int

	kindSelect  *widget.Select
	axisRadio   *widget.RadioGroup
	params      *fyne.Container
	paramViews  map[string]fyne.CanvasObject
	coords      map[string]*widget.Entry
	title       *widget.Label
	chart       *canvas.Image
	explanation *widget.Label
	formula     *widget.Label
	table       *widget.Table
	status      *widget.Label
}

func newPanel(ctx context.Context, cfg config.AppConfig, cache *storage.Cache) *panel {
	p := &panel{
		ctx:    ctx,
		cfg:    cfg,
		lab:    lab.New(cfg.Ranges),
		cache:  cache,
		log:    applog.WithComponent("ui"),
		sel:    NewSelection(cfg),
		coords: map[string]*widget.Entry{},
	}

	p.title = widget.NewLabelWithStyle("", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	p.chart = canvas.NewImageFromResource(nil)
	p.chart.FillMode = canvas.ImageFillContain
	p.chart.SetMinSize(fyne.NewSize(float32(cfg.Chart.Width)/2, float32(cfg.Chart.Height)/2))
	p.explanation = widget.NewLabel("")
	p.explanation.Wrapping = fyne.TextWrapWord
	p.formula = widget.NewLabelWithStyle("", fyne.TextAlignLeading, fyne.TextStyle{Monospace: true})
	p.status = widget.NewLabel("Ready")
	p.table = widget.NewTable(
		func() (int, int) { return len(p.view.Rows) + 1, 3 },
		func() fyne.CanvasObject { return widget.NewLabel("Image (x', y')") },
		func(id widget.TableCellID, o fyne.CanvasObject) { o.(*widget.Label).SetText(p.cell(id.Row, id.Col)) },
	)
	for i, w := range []float32{70, 150, 150} {
		p.table.SetColumnWidth(i, w)
	}

	p.paramViews = map[string]fyne.CanvasObject{
		transform.KindTranslation.Title(): container.NewVBox(
			p.slider("dx", cfg.Ranges.Translation, &p.sel.Params.DX),
			p.slider("dy", cfg.Ranges.Translation, &p.sel.Params.DY),
		),
		transform.KindReflection.Title(): p.axisGroup(),
		transform.KindRotation.Title():   p.slider("Angle (°)", cfg.Ranges.Rotation, &p.sel.Params.Angle),
		transform.KindScaling.Title():    p.slider("Factor k", cfg.Ranges.Scaling, &p.sel.Params.Factor),
	}
	p.params = container.NewStack()

	initial := transform.KindTranslation
	if k, err := transform.ParseKind(cfg.Params.Kind); err == nil {
		initial = k
	}
	p.kindSelect = widget.NewSelect(kindOptions(), func(s string) {
		p.sel.Kind = s
		p.showParams(s)
		p.log.Debug("kind selected", slog.String("kind", s))
		p.refresh()
	})
	p.kindSelect.SetSelected(initial.Title())
	return p
}

func (p *panel) layout() fyne.CanvasObject {
	bold := fyne.TextStyle{Bold: true}
	sidebar := container.NewVBox(
		widget.NewLabelWithStyle("Transformation", fyne.TextAlignLeading, bold),
		p.kindSelect,
		p.params,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Triangle", fyne.TextAlignLeading, bold),
		p.triangleForm(),
	)
	details := container.NewVBox(
		widget.NewCard("", "Explanation", p.explanation),
		widget.NewCard("", "Formula", p.formula),
		widget.NewCard("", "Coordinates", container.NewGridWrap(fyne.NewSize(380, 130), p.table)),
	)
	main := container.NewBorder(p.title, nil, nil, nil, container.NewHSplit(p.chart, container.NewVScroll(details)))
	split := container.NewHSplit(container.NewVScroll(sidebar), main)
	split.Offset = 0.22
	return container.NewBorder(nil, p.status, nil, nil, split)
}

func (p *panel) showParams(kind string) {
	v, ok := p.paramViews[kind]
	if !ok {
		p.params.Objects = nil
	} else {
		p.params.Objects = []fyne.CanvasObject{v}
	}
	p.params.Refresh()
}

// slider binds a slider over r to target. The initial value is written before
// the change handler is attached so construction does not trigger evaluations.
func (p *panel) slider(name string, r config.Range, target *float64) fyne.CanvasObject {
	lo, hi, step := SliderBounds(r)
	s := widget.NewSlider(lo, hi)
	s.Step = step
	s.Value = *target
	value := widget.NewLabel(strconv.FormatFloat(*target, 'f', -1, 64))
	s.OnChanged = func(v float64) {
		v = Snap(v, step)
		*target = v
		value.SetText(strconv.FormatFloat(v, 'f', -1, 64))
		p.refresh()
	}
	return container.NewBorder(nil, nil, widget.NewLabel(name), value, s)
}

func (p *panel) axisGroup() fyne.CanvasObject {
	p.axisRadio = widget.NewRadioGroup(axisOptions(), nil)
	p.axisRadio.Required = true
	if a, err := transform.ParseAxis(p.sel.Params.Axis); err == nil {
		p.axisRadio.SetSelected(a.String())
	}
	p.axisRadio.OnChanged = func(s string) {
		if s == "" {
			return
		}
		p.sel.Params.Axis = s
		p.refresh()
	}
	return p.axisRadio
}

func (p *panel) triangleForm() fyne.CanvasObject {
	grid := container.NewGridWithColumns(3, widget.NewLabel(""), widget.NewLabel("x"), widget.NewLabel("y"))
	for _, name := range domain.Labels {
		pt, _ := p.sel.Triangle.Get(name)
		grid.Add(widget.NewLabel(name))
		grid.Add(p.coordEntry(name, true, pt.X))
		grid.Add(p.coordEntry(name, false, pt.Y))
	}
	return grid
}

func (p *panel) coordEntry(label string, x bool, v float64) *widget.Entry {
	e := widget.NewEntry()
	e.SetText(strconv.FormatFloat(v, 'g', -1, 64))
	e.OnChanged = func(s string) {
		if err := p.sel.SetCoord(label, x, s); err != nil {
			p.status.SetText(err.Error())
			return
		}
		p.refresh()
	}
	key := label + ".y"
	if x {
		key = label + ".x"
	}
	p.coords[key] = e
	return e
}

// refresh evaluates a fresh request from the current selection and updates
// the result area. On error the previous result stays visible.
func (p *panel) refresh() {
	v, err := Compute(p.ctx, p.lab, p.cache, p.cfg.Chart, p.sel)
	if err != nil {
		p.log.Error("evaluation failed", slog.Any("err", err))
		p.status.SetText("Error: " + err.Error())
		return
	}
	p.view = v
	p.seq++
	p.title.SetText(v.Title)
	p.chart.Resource = fyne.NewStaticResource(fmt.Sprintf("chart-%d.png", p.seq), v.Chart)
	p.chart.Refresh()
	p.explanation.SetText(v.Explanation)
	p.formula.SetText(v.Formula)
	p.table.Refresh()
	if len(v.Warnings) > 0 {
		p.status.SetText(strings.Join(v.Warnings, "; "))
	} else {
		p.status.SetText("Ready")
	}
}

func (p *panel) cell(row, col int) string {
	if col < 0 || col > 2 {
		return ""
	}
	if row == 0 {
		return report.Header()[col]
	}
	if row-1 >= len(p.view.Rows) {
		return ""
	}
	r := p.view.Rows[row-1]
	return [3]string{r.Label, r.Original, r.Transformed}[col]
}
