/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package sheet

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"geolab/internal/config"
	applog "geolab/internal/log"
	"geolab/internal/render"
)

// ExportOptions control where and how Export writes.
type ExportOptions struct {
	OutDir string
	Chart  config.ChartConfig
	// Cache, when set, serves the per-exercise PNG and SVG charts.
	Cache render.Store
}

// Export writes <slug>.pdf with one page per outcome plus
// <slug>-NN.png and <slug>-NN.svg per exercise. It returns the written paths.
func Export(ctx context.Context, s Sheet, outcomes []Outcome, opt ExportOptions) ([]string, error) {
	l := applog.WithOperation(applog.WithComponent("sheet"), "export")
	if err := os.MkdirAll(opt.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}
	slug := Slug(s.Title)
	var written []string

	pages := make([]render.Page, 0, len(outcomes))
	for _, o := range outcomes {
		pages = append(pages, render.NewPage(o.Title, o.Result, opt.Chart))
		for _, f := range []render.Format{render.FormatPNG, render.FormatSVG} {
			data, err := render.EncodeCached(ctx, opt.Cache, o.Result, opt.Chart, f)
			if err != nil {
				return written, fmt.Errorf("exercise %d: %w", o.Index, err)
			}
			path := filepath.Join(opt.OutDir, fmt.Sprintf("%s-%02d.%s", slug, o.Index, f))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return written, fmt.Errorf("write %s: %w", f, err)
			}
			written = append(written, path)
		}
	}
	pdfPath := filepath.Join(opt.OutDir, slug+".pdf")
	if err := render.Export(pdfPath, pages); err != nil {
		return written, err
	}
	written = append(written, pdfPath)
	l.Info("worksheet exported", slog.String("dir", opt.OutDir), slog.Int("files", len(written)))
	return written, nil
}

// Slug turns a title into a file name stem: lower-case letters and digits
// joined by single dashes, "worksheet" when nothing is left.
func Slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "worksheet"
	}
	return out
}
