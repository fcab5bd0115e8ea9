/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package report formats the coordinate comparison table.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"geolab/internal/domain"
	"geolab/internal/transform"
)

// DefaultPrecision is the number of decimals used when none is configured.
const DefaultPrecision = 1

// Row is one line of the table: a vertex before and after the transformation.
type Row struct {
	Label       string `json:"label"`
	Original    string `json:"original"`
	Transformed string `json:"transformed"`
}

// Rows returns one row per vertex in A, B, C order, with coordinates
// formatted as "(x, y)" to the given number of decimals.
func Rows(res transform.Result, precision int) []Row {
	if precision < 0 {
		precision = DefaultPrecision
	}
	orig, moved := res.Original.Points(), res.Transformed.Points()
	rows := make([]Row, len(domain.Labels))
	for i, name := range domain.Labels {
		rows[i] = Row{
			Label:       name,
			Original:    orig[i].Format(precision),
			Transformed: moved[i].Format(precision),
		}
	}
	return rows
}

// Header returns the column titles.
func Header() [3]string { return [3]string{"Point", "Original (x, y)", "Image (x', y')"} }

// WriteText prints the table as aligned columns.
func WriteText(w io.Writer, res transform.Result, precision int) error {
	return WriteRows(w, Rows(res, precision))
}

// WriteRows prints already formatted rows under the standard header.
func WriteRows(w io.Writer, rows []Row) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	h := Header()
	if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n", h[0], h[1], h[2]); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Label, r.Original, r.Transformed); err != nil {
			return err
		}
	}
	return tw.Flush()
}
