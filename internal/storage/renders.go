/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"geolab/internal/domain"
	"geolab/internal/transform"
)

// keyVersion changes whenever the renderer output changes for equal inputs.
const keyVersion = "r1"

// Key identifies a rendered chart by everything that affects its bytes.
func Key(points domain.PointSet, spec transform.Spec, format string, width, height int, halfRange float64) string {
	var b strings.Builder
	b.WriteString(keyVersion)
	for _, name := range domain.Labels {
		p, _ := points.Get(name)
		fmt.Fprintf(&b, "|%s=%s,%s", name, g(p.X), g(p.Y))
	}
	b.WriteByte('|')
	switch s := spec.(type) {
	case transform.Translation:
		fmt.Fprintf(&b, "T%s,%s", g(s.DX), g(s.DY))
	case transform.Reflection:
		fmt.Fprintf(&b, "F%d", int(s.Axis))
	case transform.Rotation:
		fmt.Fprintf(&b, "R%s", g(s.Degrees))
	case transform.Scaling:
		fmt.Fprintf(&b, "S%s", g(s.Factor))
	default:
		fmt.Fprintf(&b, "?%T", spec)
	}
	fmt.Fprintf(&b, "|%s|%dx%d|%s", strings.ToLower(format), width, height, g(halfRange))
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func g(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// Get returns the cached blob for key and marks it as recently used.
// A miss returns ok=false and no error.
func (c *Cache) Get(ctx context.Context, key string) (blob []byte, ok bool, err error) {
	err = c.db.QueryRowContext(ctx, `SELECT blob FROM renders WHERE key=?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query render: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, `UPDATE renders SET last_access=?, hits=hits+1 WHERE key=?`, time.Now().UnixNano(), key); err != nil {
		c.log.Warn("touch render failed", slog.String("key", key), slog.Any("err", err))
	}
	return blob, true, nil
}

// Put stores blob under key and evicts least recently used entries until
// the cache fits its byte limit again.
func (c *Cache) Put(ctx context.Context, key, format string, blob []byte) error {
	if len(blob) == 0 {
		return errors.New("refusing to cache an empty render")
	}
	now := time.Now()
	_, err := c.db.ExecContext(ctx, `INSERT INTO renders(key, format, blob, size, created_at, last_access)
		VALUES(?,?,?,?,?,?)
		ON CONFLICT(key) DO UPDATE SET format=excluded.format, blob=excluded.blob, size=excluded.size, last_access=excluded.last_access`,
		key, format, blob, len(blob), now.UTC().Format(time.RFC3339), now.UnixNano())
	if err != nil {
		return fmt.Errorf("upsert render: %w", err)
	}
	if c.maxBytes > 0 {
		return c.EvictToFit(ctx, c.maxBytes)
	}
	return nil
}

// GetOrCreate returns the cached render for key, calling gen and storing its
// output on a miss. A failed store is logged; the fresh bytes are still returned.
// A nil cache just calls gen.
func (c *Cache) GetOrCreate(ctx context.Context, key, format string, gen func(context.Context) ([]byte, error)) ([]byte, error) {
	if c == nil {
		return gen(ctx)
	}
	if b, ok, err := c.Get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return b, nil
	}
	data, err := gen(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Put(ctx, key, format, data); err != nil {
		c.log.Warn("store render failed", slog.String("key", key), slog.Any("err", err))
	}
	return data, nil
}

// EvictToFit deletes least recently used rows until the total size is at
// most capBytes.
func (c *Cache) EvictToFit(ctx context.Context, capBytes int64) error {
	total, err := c.TotalBytes(ctx)
	if err != nil {
		return err
	}
	if total <= capBytes {
		return nil
	}
	rows, err := c.db.QueryContext(ctx, `SELECT key, size FROM renders ORDER BY last_access ASC`)
	if err != nil {
		return fmt.Errorf("select victims: %w", err)
	}
	var victims []any
	for rows.Next() && total > capBytes {
		var key string
		var size int64
		if err := rows.Scan(&key, &size); err != nil {
			_ = rows.Close()
			return err
		}
		victims = append(victims, key)
		total -= size
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	// the single connection must be free before the delete
	if err := rows.Close(); err != nil {
		return err
	}
	if len(victims) == 0 {
		return nil
	}
	q := `DELETE FROM renders WHERE key IN (?` + strings.Repeat(",?", len(victims)-1) + `)`
	if _, err := c.db.ExecContext(ctx, q, victims...); err != nil {
		return fmt.Errorf("evict: %w", err)
	}
	c.log.Debug("evicted renders", slog.Int("count", len(victims)), slog.Int64("remaining_bytes", total))
	return nil
}

// TotalBytes is the summed size of all cached renders.
func (c *Cache) TotalBytes(ctx context.Context) (int64, error) {
	var total int64
	if err := c.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM renders`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum render sizes: %w", err)
	}
	return total, nil
}

// Stats reports the number of entries and their total size.
type Stats struct {
	Entries int64
	Bytes   int64
	Hits    int64
}

// Stats sums the cached renders.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(size),0), COALESCE(SUM(hits),0) FROM renders`).Scan(&s.Entries, &s.Bytes, &s.Hits)
	if err != nil {
		return Stats{}, fmt.Errorf("cache stats: %w", err)
	}
	return s, nil
}

// Purge removes every cached render.
func (c *Cache) Purge(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM renders`); err != nil {
		return fmt.Errorf("purge renders: %w", err)
	}
	return nil
}
