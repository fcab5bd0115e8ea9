/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"context"

	"geolab/internal/config"
	"geolab/internal/storage"
	"geolab/internal/transform"
)

// Store keeps rendered charts by key. Both storage.Cache (SQLite) and
// storage.PGCache (Postgres) implement it.
type Store interface {
	GetOrCreate(ctx context.Context, key, format string, gen func(context.Context) ([]byte, error)) ([]byte, error)
}

// EncodeCached renders res as a single chart, going through store when it is
// non-nil. Equal inputs yield equal keys, so repeated evaluations of the same
// selection are served from the store.
func EncodeCached(ctx context.Context, store Store, res transform.Result, chart config.ChartConfig, f Format) ([]byte, error) {
	gen := func(context.Context) ([]byte, error) { return Encode(f, NewFigure(res, chart)) }
	if store == nil {
		return gen(ctx)
	}
	key := storage.Key(res.Original, res.Spec, string(f), chart.Width, chart.Height, chart.HalfRange)
	return store.GetOrCreate(ctx, key, string(f), gen)
}
