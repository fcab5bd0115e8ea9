/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log sets up the process-wide slog logger for geolab. Console output
// is either a compact one-line text format or JSON; a rotating JSON file can
// be added next to it. Every record carries app and ver, plus whatever
// attributes were attached to the context with ContextWith.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"geolab/internal/version"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger initialization. FromEnv fills it from:
//   - GEOLAB_LOG_LEVEL=debug|info|warn|error
//   - GEOLAB_LOG_FORMAT=console|json
//   - GEOLAB_LOG_FILE=<path> (adds a rotated JSON file)
//   - GEOLAB_LOG_SOURCE=true|false
type Options struct {
	Level     string
	Format    string // "console" or "json"
	AddSource bool
	File      string
	// Console defaults to os.Stderr.
	Console io.Writer
}

var (
	mu      sync.RWMutex
	current *slog.Logger
	file    *lj.Logger
)

// L returns the application logger, initializing it from the environment on first use.
func L() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init(FromEnv())
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Init replaces the global logger and slog.Default.
func Init(opts Options) {
	lvl := parseLevel(opts.Level)
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	var handlers []slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		handlers = append(handlers, slog.NewJSONHandler(console, &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource}))
	} else {
		handlers = append(handlers, newConsoleHandler(console, lvl, opts.AddSource))
	}

	var rotated *lj.Logger
	if path := strings.TrimSpace(opts.File); path != "" {
		rotated = &lj.Logger{Filename: path, MaxSize: 5, MaxBackups: 2, MaxAge: 14, Compress: true}
		handlers = append(handlers, slog.NewJSONHandler(rotated, &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource}))
	}

	var h slog.Handler = handlers[0]
	if len(handlers) > 1 {
		h = fanout(handlers...)
	}
	logger := slog.New(withContextAttrs(h)).With(
		slog.String("app", "geolab"),
		slog.String("ver", version.Version),
	)

	mu.Lock()
	prev := file
	current, file = logger, rotated
	mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	slog.SetDefault(logger)
}

// Close releases the rotating log file, if any.
func Close() error {
	mu.Lock()
	f := file
	file = nil
	mu.Unlock()
	if f == nil {
		return nil
	}
	return f.Close()
}

// FromEnv builds Options from the GEOLAB_LOG_* variables. Unset variables
// stay empty so Merge can fill them; Init treats empty as info/console.
func FromEnv() Options {
	return Options{
		Level:     os.Getenv("GEOLAB_LOG_LEVEL"),
		Format:    os.Getenv("GEOLAB_LOG_FORMAT"),
		AddSource: strings.EqualFold(os.Getenv("GEOLAB_LOG_SOURCE"), "true"),
		File:      os.Getenv("GEOLAB_LOG_FILE"),
	}
}

// Merge fills empty fields of o from fallback. Environment settings usually
// come first and the user config second.
func (o Options) Merge(fallback Options) Options {
	if o.Level == "" {
		o.Level = fallback.Level
	}
	if o.Format == "" {
		o.Format = fallback.Format
	}
	if o.File == "" {
		o.File = fallback.File
	}
	o.AddSource = o.AddSource || fallback.AddSource
	if o.Console == nil {
		o.Console = fallback.Console
	}
	return o
}

// WithComponent returns a logger with the component attribute set.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation annotates l with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
