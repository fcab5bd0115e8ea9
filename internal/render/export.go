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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format names an output encoding; it matches the file extension.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
	FormatPDF Format = "pdf"
)

// ErrUnknownFormat is returned for output paths with an unsupported extension.
var ErrUnknownFormat = errors.New("unknown output format")

// FormatFor picks the format from the extension of path.
func FormatFor(path string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))); f {
	case FormatSVG, FormatPNG, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q (want .svg, .png or .pdf)", ErrUnknownFormat, path)
}

// Encode renders a single figure in an image format.
func Encode(f Format, fig Figure) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch f {
	case FormatSVG:
		err = WriteSVG(&buf, fig)
	case FormatPNG:
		err = WritePNG(&buf, fig)
	case FormatPDF:
		err = WritePDF(&buf, []Page{{Figure: fig}})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Export writes pages to path. A PDF gets every page; SVG and PNG hold a
// single chart, so only the first page's figure is written.
func Export(path string, pages []Page) error {
	f, err := FormatFor(path)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return ErrNoPages
	}
	var data []byte
	if f == FormatPDF {
		var buf bytes.Buffer
		if err := WritePDF(&buf, pages); err != nil {
			return err
		}
		data = buf.Bytes()
	} else if data, err = Encode(f, pages[0].Figure); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure out dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", f, err)
	}
	return nil
}
