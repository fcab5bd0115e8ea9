/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config holds the user-editable geolab settings. The YAML file lives
// in the per-user config directory; GEOLAB_* environment variables override
// individual fields at runtime and are never written back.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"geolab/internal/domain"
)

// CurrentVersion is written into new config files. Bump it when a field
// changes meaning.
const CurrentVersion = 1

// ErrInvalidConfig wraps YAML errors from a user config file.
var ErrInvalidConfig = errors.New("invalid config")

// ParamDefaults are the initial control values per transformation kind.
type ParamDefaults struct {
	Kind   string  `yaml:"kind"`
	DX     float64 `yaml:"dx"`
	DY     float64 `yaml:"dy"`
	Axis   string  `yaml:"axis"`
	Angle  float64 `yaml:"angle"`
	Factor float64 `yaml:"factor"`
}

// Range is a suggested control range. It bounds sliders in the UI and
// triggers a warning elsewhere; values outside it are still evaluated.
type Range struct {
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Step float64 `yaml:"step"`
}

func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

type Ranges struct {
	Translation Range `yaml:"translation"`
	Rotation    Range `yaml:"rotation"`
	Scaling     Range `yaml:"scaling"`
}

type ChartConfig struct {
	// HalfRange fixes both axes to [-HalfRange, HalfRange].
	HalfRange float64 `yaml:"half_range"`
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	// Precision is the number of decimals in the coordinate table.
	Precision int `yaml:"precision"`
}

type CacheConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Dir      string `yaml:"dir"` // empty: <user cache dir>/geolab
	MaxBytes int64  `yaml:"max_bytes"`
}

// ServerConfig covers "geolab serve" and the remote mode of "geolab apply".
// The token signing secret is never stored here; see GEOLAB_AUTH_SECRET.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// PGDSN selects a shared Postgres render cache instead of the local SQLite one.
	PGDSN string `yaml:"pg_dsn"`
	// URL is the server "geolab apply" talks to when set.
	URL string `yaml:"url"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// AppConfig is the full user configuration.
type AppConfig struct {
	ConfigVersion int             `yaml:"config_version"`
	Triangle      domain.PointSet `yaml:"triangle"`
	Params        ParamDefaults   `yaml:"defaults"`
	Ranges        Ranges          `yaml:"ranges"`
	Chart         ChartConfig     `yaml:"chart"`
	Cache         CacheConfig     `yaml:"cache"`
	Server        ServerConfig    `yaml:"server"`
	Logging       LoggingConfig   `yaml:"logging"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: CurrentVersion,
		Triangle:      domain.DefaultTriangle(),
		Params:        ParamDefaults{Kind: "translation", DX: 3, DY: 2, Axis: "x-axis", Angle: 90, Factor: 2},
		Ranges: Ranges{
			Translation: Range{Min: -10, Max: 10, Step: 1},
			Rotation:    Range{Min: -360, Max: 360, Step: 1},
			Scaling:     Range{Min: -3, Max: 3, Step: 0.1},
		},
		Chart:   ChartConfig{HalfRange: 15, Width: 700, Height: 600, Precision: 1},
		Cache:   CacheConfig{Enabled: true, MaxBytes: 64 << 20},
		Server:  ServerConfig{Addr: ":8080"},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath = "GEOLAB_CONFIG"
	EnvCacheDir   = "GEOLAB_CACHE_DIR"
	EnvCache      = "GEOLAB_CACHE"
	EnvChartRange = "GEOLAB_CHART_RANGE"
	EnvServerAddr = "GEOLAB_SERVER_ADDR"
	EnvPGDSN      = "GEOLAB_PG_DSN"
	EnvServerURL  = "GEOLAB_SERVER_URL"
	EnvLogLevel   = "GEOLAB_LOG_LEVEL"
	EnvLogFormat  = "GEOLAB_LOG_FORMAT"
	EnvLogSource  = "GEOLAB_LOG_SOURCE"
	EnvLogFile    = "GEOLAB_LOG_FILE"
)

// ConfigPath returns the config file path: $GEOLAB_CONFIG if set, otherwise
// config.yaml in the per-user config directory.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "geolab")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "geolab")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "geolab")
		} else if home := os.Getenv("HOME"); home != "" {
			base = filepath.Join(home, ".config", "geolab")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config (a missing file is not an error), fills gaps
// from Defaults and applies environment overrides.
func Load() (AppConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Defaults()
		applyEnvOverrides(&cfg)
		return cfg, err
	}
	return LoadFrom(path)
}

// LoadFrom is Load for an explicit path.
func LoadFrom(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		// decoding over the defaults keeps every field the file leaves out
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Defaults(), fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
		}
	}
	normalize(&cfg)
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes cfg to ConfigPath.
func Save(cfg AppConfig) (string, error) {
	path, err := ConfigPath()
	if err != nil {
		return "", err
	}
	return path, SaveTo(path, cfg)
}

// SaveTo writes cfg as YAML to path, creating parent directories.
func SaveTo(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// normalize repairs values that would make the chart or the controls unusable.
func normalize(cfg *AppConfig) {
	def := Defaults()
	if cfg.ConfigVersion == 0 {
		cfg.ConfigVersion = CurrentVersion
	}
	cfg.Params.Kind = strings.ToLower(strings.TrimSpace(cfg.Params.Kind))
	if cfg.Params.Kind == "" {
		cfg.Params.Kind = def.Params.Kind
	}
	if strings.TrimSpace(cfg.Params.Axis) == "" {
		cfg.Params.Axis = def.Params.Axis
	}
	fixRange(&cfg.Ranges.Translation, def.Ranges.Translation)
	fixRange(&cfg.Ranges.Rotation, def.Ranges.Rotation)
	fixRange(&cfg.Ranges.Scaling, def.Ranges.Scaling)
	cfg.Chart.HalfRange = clampHalfRange(cfg.Chart.HalfRange, def.Chart.HalfRange)
	if cfg.Chart.Width <= 0 {
		cfg.Chart.Width = def.Chart.Width
	}
	if cfg.Chart.Height <= 0 {
		cfg.Chart.Height = def.Chart.Height
	}
	if cfg.Chart.Precision < 0 {
		cfg.Chart.Precision = def.Chart.Precision
	}
	if cfg.Cache.MaxBytes < 0 {
		cfg.Cache.MaxBytes = 0
	}
	cfg.Server.Addr = strings.TrimSpace(cfg.Server.Addr)
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	cfg.Server.PGDSN = strings.TrimSpace(cfg.Server.PGDSN)
	cfg.Server.URL = strings.TrimRight(strings.TrimSpace(cfg.Server.URL), "/")
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Logging.Format))
	cfg.Logging.File = strings.TrimSpace(cfg.Logging.File)
}

// MaxHalfRange caps the chart half range.
const MaxHalfRange = 1e6

// clampHalfRange falls back to def for non-positive or NaN values and caps
// the rest at MaxHalfRange.
func clampHalfRange(v, def float64) float64 {
	switch {
	case !(v > 0):
		return def
	case v > MaxHalfRange:
		return MaxHalfRange
	}
	return v
}

func fixRange(r *Range, def Range) {
	if r.Max <= r.Min {
		r.Min, r.Max = def.Min, def.Max
	}
	if r.Step <= 0 {
		r.Step = def.Step
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvCacheDir)); v != "" {
		cfg.Cache.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCache)); v != "" {
		cfg.Cache.Enabled = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvChartRange)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Chart.HalfRange = clampHalfRange(f, cfg.Chart.HalfRange)
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerAddr)); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPGDSN)); v != "" {
		cfg.Server.PGDSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerURL)); v != "" {
		cfg.Server.URL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

var envKeys = map[string]string{
	"cache.dir":        EnvCacheDir,
	"cache.enabled":    EnvCache,
	"chart.half_range": EnvChartRange,
	"server.addr":      EnvServerAddr,
	"server.pg_dsn":    EnvPGDSN,
	"server.url":       EnvServerURL,
	"logging.level":    EnvLogLevel,
	"logging.format":   EnvLogFormat,
	"logging.source":   EnvLogSource,
	"logging.file":     EnvLogFile,
}

// EnvOverrideFor reports the variable overriding a dotted config key, if it is set.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// CacheDir resolves the render cache directory.
func (c CacheConfig) CacheDir() (string, error) {
	if d := strings.TrimSpace(c.Dir); d != "" {
		return d, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache dir: %w", err)
	}
	return filepath.Join(base, "geolab"), nil
}

// RangeFor returns the suggested range of the kind's main parameter.
// Reflection has no numeric parameter and reports false.
func (r Ranges) RangeFor(kind string) (Range, bool) {
	switch kind {
	case "translation":
		return r.Translation, true
	case "rotation":
		return r.Rotation, true
	case "scaling":
		return r.Scaling, true
	}
	return Range{}, false
}
