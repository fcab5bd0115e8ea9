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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"geolab/internal/config"
	applog "geolab/internal/log"
	"geolab/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	CacheFileName = "renders.sqlite"

	// schemaVersion is the newest schema runMigrations knows how to reach.
	schemaVersion = 2
)

// Cache is an LRU-bounded store of rendered charts. It is safe for
// concurrent use; SQLite access is serialized over one connection.
type Cache struct {
	db       *sql.DB
	path     string
	maxBytes int64
	log      *slog.Logger
}

// CachePath returns the database file inside dir.
func CachePath(dir string) string { return filepath.Join(dir, CacheFileName) }

// Open opens or creates the cache in dir. maxBytes <= 0 disables eviction.
// A file that is not a usable database is backed up and replaced.
func Open(ctx context.Context, dir string, maxBytes int64) (*Cache, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "cache_open").With(slog.String("dir", dir))
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("cache dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	path := CachePath(dir)
	db, err := openDB(ctx, path)
	if err != nil {
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, err
		}
		l.Warn("cache unusable, rebuilding", slog.Any("err", err))
		if err := backupAndRemove(path); err != nil {
			return nil, err
		}
		if db, err = openDB(ctx, path); err != nil {
			l.Error("cache rebuild failed", slog.Any("err", err))
			return nil, err
		}
	}
	l.Debug("cache ready", slog.String("path", path))
	return &Cache{db: db, path: path, maxBytes: maxBytes, log: applog.WithComponent("storage")}, nil
}

// OpenConfigured opens the cache described by cc. It returns a nil cache and
// no error when caching is disabled.
func OpenConfigured(ctx context.Context, cc config.CacheConfig) (*Cache, error) {
	if !cc.Enabled {
		return nil, nil
	}
	dir, err := cc.CacheDir()
	if err != nil {
		return nil, err
	}
	return Open(ctx, dir, cc.MaxBytes)
}

func (c *Cache) Path() string { return c.path }

func (c *Cache) Close() error { return c.db.Close() }

// Ping reports whether the database is usable.
func (c *Cache) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	var chk string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check;").Scan(&chk); err != nil || !strings.EqualFold(chk, "ok") {
		_ = db.Close()
		if err == nil {
			err = errors.New(chk)
		}
		return nil, fmt.Errorf("quick_check: %w", err)
	}
	steps := []func(context.Context, *sql.DB) error{ensureMetaAndVersion, ensureSchema, runMigrations}
	for _, step := range steps {
		if err := step(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// a fresh file starts at 1 and walks the same migrations as an old one
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, version.String(), now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, version.String(), now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// ensureSchema creates the version 1 tables.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS renders (
		key         TEXT    PRIMARY KEY,
		format      TEXT    NOT NULL,
		blob        BLOB    NOT NULL,
		size        INTEGER NOT NULL,
		created_at  TEXT    NOT NULL,
		last_access INTEGER NOT NULL
	);`)
	if err != nil {
		return fmt.Errorf("ensure renders table: %w", err)
	}
	return nil
}

// runMigrations upgrades the schema one step at a time up to schemaVersion.
// A newer file written by a later release is left alone.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`ALTER TABLE renders ADD COLUMN hits INTEGER NOT NULL DEFAULT 0;`,
				`CREATE INDEX IF NOT EXISTS idx_renders_access ON renders(last_access);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// backupAndRemove moves a damaged cache file to backups/<name>.<stamp>.bak.
func backupAndRemove(path string) error {
	bdir := filepath.Join(filepath.Dir(path), "backups")
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(path), time.Now().Format("20060102-150405")))
	if err := os.Rename(path, bak); err != nil {
		return fmt.Errorf("backup cache: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
	return nil
}
