/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"geolab/internal/domain"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvCacheDir, EnvCache, EnvChartRange, EnvServerAddr, EnvPGDSN, EnvServerURL, EnvLogLevel, EnvLogFormat, EnvLogSource, EnvLogFile} {
		t.Setenv(k, "")
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "nope.yaml"))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	def := Defaults()
	if cfg.Triangle != def.Triangle || cfg.Params != def.Params || cfg.Chart != def.Chart || cfg.Ranges != def.Ranges {
		t.Fatalf("Load() = %#v, want defaults", cfg)
	}
	if cfg.Params.DX != 3 || cfg.Params.DY != 2 || cfg.Params.Angle != 90 || cfg.Params.Factor != 2 {
		t.Fatalf("unexpected default params: %#v", cfg.Params)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
triangle:
  A: {x: 0, y: 0}
defaults:
  kind: Rotation
  angle: 45
chart:
  half_range: 20
  width: -5
ranges:
  scaling: {min: 3, max: -3}
logging:
  level: " DEBUG "
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Triangle.A != (domain.Point{}) || cfg.Triangle.B != domain.Pt(5, 5) || cfg.Triangle.C != domain.Pt(3, 8) {
		t.Fatalf("triangle merge wrong: %#v", cfg.Triangle)
	}
	if cfg.Params.Kind != "rotation" || cfg.Params.Angle != 45 || cfg.Params.DX != 3 {
		t.Fatalf("params merge wrong: %#v", cfg.Params)
	}
	if cfg.Chart.HalfRange != 20 || cfg.Chart.Width != 700 || cfg.Chart.Height != 600 {
		t.Fatalf("chart merge wrong: %#v", cfg.Chart)
	}
	if cfg.Ranges.Scaling != Defaults().Ranges.Scaling {
		t.Fatalf("inverted range not repaired: %#v", cfg.Ranges.Scaling)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("logging level not normalized: %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("chart: [1, 2"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFrom(path)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
	if cfg.Chart != Defaults().Chart {
		t.Fatalf("defaults expected alongside the error, got %#v", cfg.Chart)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	t.Setenv(EnvConfigPath, path)
	cfg := Defaults()
	cfg.Triangle = domain.NewPointSet(domain.Pt(-1, -1), domain.Pt(1, -1), domain.Pt(0, 2))
	cfg.Cache.Enabled = false
	got, err := Save(cfg)
	if err != nil || got != path {
		t.Fatalf("Save() = %q, %v", got, err)
	}
	back, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if back.Triangle != cfg.Triangle || back.Cache.Enabled {
		t.Fatalf("round trip mismatch: %#v", back)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "none.yaml"))
	t.Setenv(EnvCacheDir, "/var/tmp/geolab-cache")
	t.Setenv(EnvCache, "off")
	t.Setenv(EnvChartRange, "25")
	t.Setenv(EnvLogLevel, "ERROR")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "/tmp/geolab.log")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Cache.Dir != "/var/tmp/geolab-cache" || cfg.Cache.Enabled || cfg.Chart.HalfRange != 25 {
		t.Fatalf("cache/chart overrides not applied: %#v %#v", cfg.Cache, cfg.Chart)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "/tmp/geolab.log" {
		t.Fatalf("logging overrides not applied: %#v", cfg.Logging)
	}
	if name, ok := EnvOverrideFor("logging.level"); !ok || name != EnvLogLevel {
		t.Fatalf("EnvOverrideFor(logging.level) = %q, %v", name, ok)
	}
	if _, ok := EnvOverrideFor("triangle.A"); ok {
		t.Fatalf("triangle has no env override")
	}
}

func TestServerSection(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := "server:\n  addr: \" \"\n  url: \"http://lab.example:8080/\"\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Server.URL != "http://lab.example:8080" || cfg.Server.PGDSN != "" {
		t.Fatalf("server section wrong: %#v", cfg.Server)
	}

	t.Setenv(EnvServerAddr, "127.0.0.1:9000")
	t.Setenv(EnvPGDSN, "postgres://u:p@db/geolab")
	t.Setenv(EnvServerURL, "http://other:9000/")
	cfg, _ = LoadFrom(path)
	if cfg.Server.Addr != "127.0.0.1:9000" || cfg.Server.PGDSN != "postgres://u:p@db/geolab" || cfg.Server.URL != "http://other:9000" {
		t.Fatalf("server overrides not applied: %#v", cfg.Server)
	}
	if name, ok := EnvOverrideFor("server.pg_dsn"); !ok || name != EnvPGDSN {
		t.Fatalf("EnvOverrideFor(server.pg_dsn) = %q, %v", name, ok)
	}
}

func TestEnvChartRangeIgnoresGarbage(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "none.yaml"))
	t.Setenv(EnvChartRange, "-3")
	cfg, _ := Load()
	if cfg.Chart.HalfRange != 15 {
		t.Fatalf("negative range must be ignored, got %v", cfg.Chart.HalfRange)
	}
}

func TestHalfRangeIsCapped(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("chart:\n  half_range: 1e308\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfigPath, path)
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Chart.HalfRange != MaxHalfRange {
		t.Fatalf("file half_range not capped: %v", cfg.Chart.HalfRange)
	}

	t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "none.yaml"))
	t.Setenv(EnvChartRange, "1e308")
	cfg, _ = Load()
	if cfg.Chart.HalfRange != MaxHalfRange {
		t.Fatalf("env half_range not capped: %v", cfg.Chart.HalfRange)
	}
	t.Setenv(EnvChartRange, "NaN")
	cfg, _ = Load()
	if cfg.Chart.HalfRange != 15 {
		t.Fatalf("NaN half_range must be ignored, got %v", cfg.Chart.HalfRange)
	}
}

func TestRangeHelpers(t *testing.T) {
	r := Defaults().Ranges
	rot, ok := r.RangeFor("rotation")
	if !ok || !rot.Contains(-360) || rot.Contains(361) {
		t.Fatalf("rotation range: %#v %v", rot, ok)
	}
	if _, ok := r.RangeFor("reflection"); ok {
		t.Fatalf("reflection has no numeric range")
	}
	dir, err := CacheConfig{Dir: "/x/y"}.CacheDir()
	if err != nil || dir != "/x/y" {
		t.Fatalf("CacheDir = %q, %v", dir, err)
	}
}
