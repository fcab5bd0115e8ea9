//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// These tests exercise the Fyne panel with the headless test driver. They are
// gated behind the "fyne" build tag so CI does not need Fyne or a display.
// To run locally:
//
//	go test -tags fyne ./internal/ui
package ui

import (
	"context"
	"strings"
	"testing"

	"fyne.io/fyne/v2/test"

	"geolab/internal/config"
)

func TestPanelInitialView(t *testing.T) {
	test.NewApp()
	p := newPanel(context.Background(), config.Defaults(), nil)
	if p.view.Title != "Visualizing Translation" {
		t.Fatalf("title = %q", p.view.Title)
	}
	if got := p.cell(0, 2); got != "Image (x', y')" {
		t.Fatalf("header = %q", got)
	}
	if got := p.cell(1, 2); got != "(5.0, 7.0)" {
		t.Fatalf("A' = %q", got)
	}
	if len(p.params.Objects) != 1 {
		t.Fatalf("expected translation controls")
	}
}

func TestPanelKindAndAxisChanges(t *testing.T) {
	test.NewApp()
	p := newPanel(context.Background(), config.Defaults(), nil)

	p.kindSelect.SetSelected("Reflection")
	if p.view.Title != "Visualizing Reflection" {
		t.Fatalf("title = %q", p.view.Title)
	}
	p.axisRadio.SetSelected("y=x")
	if got := p.cell(1, 2); got != "(5.0, 2.0)" {
		t.Fatalf("A' = %q", got)
	}
	if !strings.Contains(p.explanation.Text, "y = x") {
		t.Fatalf("explanation = %q", p.explanation.Text)
	}
}

func TestPanelBadCoordinateKeepsLastResult(t *testing.T) {
	test.NewApp()
	p := newPanel(context.Background(), config.Defaults(), nil)
	before := p.view.Rows

	p.coords["A.x"].SetText("abc")
	if !strings.Contains(p.status.Text, "not a number") {
		t.Fatalf("status = %q", p.status.Text)
	}
	if p.view.Rows[0] != before[0] {
		t.Fatalf("rows changed after bad input")
	}
}
