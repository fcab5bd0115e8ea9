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
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	applog "geolab/internal/log"
)

//go:embed migrations/*.sql
var pgMigrations embed.FS

// PGCache is the render cache on a shared Postgres database, used when
// several server processes should serve the same renders.
type PGCache struct {
	db       *sql.DB
	maxBytes int64
	log      *slog.Logger
}

// OpenPG connects to dsn and applies pending migrations. maxBytes <= 0
// disables eviction.
func OpenPG(ctx context.Context, dsn string, maxBytes int64) (*PGCache, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "pg_open")
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := applyPGMigrations(pctx, db, l); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	l.Debug("postgres cache ready")
	return &PGCache{db: db, maxBytes: maxBytes, log: applog.WithComponent("storage")}, nil
}

func (c *PGCache) Close() error { return c.db.Close() }

// Ping reports whether the database is reachable.
func (c *PGCache) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

// applyPGMigrations applies embedded SQL migrations in filename order and
// records each in schema_migrations.
func applyPGMigrations(ctx context.Context, db *sql.DB, l *slog.Logger) error {
	entries, err := pgMigrations.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	applied := map[int64]bool{}
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, name := range files {
		version, err := migrationVersion(name)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := pgMigrations.ReadFile(path.Join("migrations", name))
		if err != nil {
			return err
		}
		l.Info("applying migration", slog.String("file", name))
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES($1, $2)`, version, name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// migrationVersion parses the numeric prefix of "001_name.sql".
func migrationVersion(name string) (int64, error) {
	prefix, _, ok := strings.Cut(path.Base(name), "_")
	if !ok {
		return 0, fmt.Errorf("invalid migration filename: %s", name)
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}

// Get returns the cached blob for key and marks it as recently used.
func (c *PGCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var blob []byte
	err := c.db.QueryRowContext(ctx,
		`UPDATE renders SET last_access = now(), hits = hits + 1 WHERE key = $1 RETURNING blob`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query render: %w", err)
	}
	return blob, true, nil
}

// Put upserts blob and trims the table back to the byte limit.
func (c *PGCache) Put(ctx context.Context, key, format string, blob []byte) error {
	if len(blob) == 0 {
		return errors.New("refusing to cache an empty render")
	}
	_, err := c.db.ExecContext(ctx, `INSERT INTO renders(key, format, blob, size) VALUES($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET format = EXCLUDED.format, blob = EXCLUDED.blob, size = EXCLUDED.size, last_access = now()`,
		key, format, blob, int64(len(blob)))
	if err != nil {
		return fmt.Errorf("upsert render: %w", err)
	}
	if c.maxBytes > 0 {
		return c.EvictToFit(ctx, c.maxBytes)
	}
	return nil
}

// GetOrCreate has the same contract as Cache.GetOrCreate.
func (c *PGCache) GetOrCreate(ctx context.Context, key, format string, gen func(context.Context) ([]byte, error)) ([]byte, error) {
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

// EvictToFit keeps the most recently used renders whose running size fits
// capBytes and deletes the rest in one statement.
func (c *PGCache) EvictToFit(ctx context.Context, capBytes int64) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM renders WHERE key IN (
		SELECT key FROM (
			SELECT key, SUM(size) OVER (ORDER BY last_access DESC, key) AS running FROM renders
		) ranked WHERE running > $1
	)`, capBytes)
	if err != nil {
		return fmt.Errorf("evict: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		c.log.Debug("evicted renders", slog.Int64("count", n))
	}
	return nil
}

// Stats sums the cached renders.
func (c *PGCache) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(size),0), COALESCE(SUM(hits),0) FROM renders`).Scan(&s.Entries, &s.Bytes, &s.Hits)
	if err != nil {
		return Stats{}, fmt.Errorf("cache stats: %w", err)
	}
	return s, nil
}

// Purge removes every cached render.
func (c *PGCache) Purge(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM renders`); err != nil {
		return fmt.Errorf("purge renders: %w", err)
	}
	return nil
}
