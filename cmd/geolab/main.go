/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"geolab/internal/backend"
	"geolab/internal/config"
	"geolab/internal/crash"
	"geolab/internal/domain"
	"geolab/internal/lab"
	applog "geolab/internal/log"
	"geolab/internal/render"
	"geolab/internal/report"
	"geolab/internal/sheet"
	"geolab/internal/storage"
	"geolab/internal/telemetry"
	"geolab/internal/ui"
	"geolab/internal/version"
)

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "geolab: 2D transformations of a triangle")
	_, _ = fmt.Fprintf(w, "Version: %s\n", version.String())
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  geolab version|-v|--version                 Show version")
	_, _ = fmt.Fprintln(w, "  geolab apply [flags]                        Apply one transformation and print the result")
	_, _ = fmt.Fprintln(w, "  geolab sheet <file.yaml> [-out <dir>]       Evaluate a worksheet, optionally export PDF/PNG/SVG")
	_, _ = fmt.Fprintln(w, "  geolab config [show|init|path]              Show or create the user config")
	_, _ = fmt.Fprintln(w, "  geolab cache [stats|purge] [-pg <dsn>]      Inspect or empty the render cache")
	_, _ = fmt.Fprintln(w, "  geolab serve [-addr :8080] [-pg <dsn>]      Serve the HTTP API (apply, render)")
	_, _ = fmt.Fprintln(w, "  geolab ui                                   Launch desktop UI (build with -tags fyne for full UI)")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Run 'geolab apply -h' for the transformation flags.")
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code:
// 0 on success, 1 on errors, 2 on usage errors.
func run(args []string, stdout, stderr io.Writer) int {
	cfg, cfgErr := config.Load()
	applog.Init(applog.FromEnv().Merge(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
		Console:   stderr,
	}))
	defer func() { _ = applog.Close() }()
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config not loaded, using defaults", slog.Any("err", cfgErr))
	}
	reportDir, _ := cfg.Cache.CacheDir()
	defer crash.Recover(reportDir)
	defer telemetry.Flush(context.Background())

	l.Debug("start", slog.Int("args", len(args)))
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	ctx := context.Background()
	var err error
	switch args[0] {
	case "version", "--version", "-v":
		_, _ = fmt.Fprintln(stdout, "geolab", version.String())
		return 0
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	case "apply":
		err = cmdApply(ctx, cfg, args[1:], stdout, stderr)
	case "sheet":
		err = cmdSheet(ctx, cfg, args[1:], stdout, stderr)
	case "config":
		err = cmdConfig(cfg, args[1:], stdout)
	case "cache":
		err = cmdCache(ctx, cfg, args[1:], stdout, stderr)
	case "serve":
		err = cmdServe(ctx, cfg, args[1:], stdout, stderr)
	case "ui":
		err = ui.Run(cfg)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		_, _ = fmt.Fprintln(stderr, err)
		return 2
	default:
		l.Error("command failed", slog.String("cmd", args[0]), slog.Any("err", err))
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
}

var errUsage = errors.New("usage")

func usageErr(format string, a ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, a...))
}

// pointFlag parses "x,y" into a vertex.
type pointFlag struct{ p *domain.Point }

func (f pointFlag) String() string {
	if f.p == nil {
		return ""
	}
	return strconv.FormatFloat(f.p.X, 'g', -1, 64) + "," + strconv.FormatFloat(f.p.Y, 'g', -1, 64)
}

func (f pointFlag) Set(s string) error {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return fmt.Errorf("want x,y, got %q", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return fmt.Errorf("x: %w", err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return fmt.Errorf("y: %w", err)
	}
	*f.p = domain.Pt(x, y)
	return nil
}

// parseFlags maps flag parse failures to errUsage.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usageErr("%s: %v", fs.Name(), err)
	}
	return nil
}

func cmdApply(ctx context.Context, cfg config.AppConfig, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("apply", flag.ContinueOnError)
	fs.SetOutput(stderr)
	p := lab.ParamsFromConfig(cfg.Params)
	tri := cfg.Triangle
	kind := fs.String("kind", cfg.Params.Kind, "translation, reflection, rotation or scaling")
	fs.Float64Var(&p.DX, "dx", p.DX, "translation along x")
	fs.Float64Var(&p.DY, "dy", p.DY, "translation along y")
	fs.StringVar(&p.Axis, "axis", p.Axis, "reflection axis: x-axis, y-axis, y=x, y=-x or origin")
	fs.Float64Var(&p.Angle, "angle", p.Angle, "rotation angle in degrees, counter-clockwise about the origin")
	fs.Float64Var(&p.Factor, "k", p.Factor, "scale factor about the origin")
	fs.Var(pointFlag{&tri.A}, "a", "vertex A as x,y")
	fs.Var(pointFlag{&tri.B}, "b", "vertex B as x,y")
	fs.Var(pointFlag{&tri.C}, "c", "vertex C as x,y")
	out := fs.String("out", "", "also write the chart to this .svg, .png or .pdf file")
	server := fs.String("server", cfg.Server.URL, "evaluate on this geolab server instead of locally")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return usageErr("apply: unexpected argument %q", fs.Arg(0))
	}
	if *server != "" {
		req := backend.ApplyRequest{Triangle: &tri, Kind: *kind, DX: p.DX, DY: p.DY, Axis: p.Axis, Angle: p.Angle, Factor: p.Factor}
		return remoteApply(ctx, *server, req, *out, stdout, stderr)
	}

	spec, err := lab.SpecFromParams(*kind, p)
	if err != nil {
		return err
	}
	lb := lab.New(cfg.Ranges)
	res, err := lb.Evaluate(ctx, lab.Request{Triangle: tri, Spec: spec})
	if err != nil {
		return err
	}
	for _, w := range lb.OutOfRange(res.Spec) {
		_, _ = fmt.Fprintln(stderr, "Warning:", w)
	}
	title := lab.Title(res.Spec.Kind())
	if err := printResult(stdout, title, res.Explanation, res.Formula.Plain, report.Rows(res, cfg.Chart.Precision)); err != nil {
		return err
	}
	if *out == "" {
		return nil
	}

	f, err := render.FormatFor(*out)
	if err != nil {
		return err
	}
	if f == render.FormatPDF {
		err = render.Export(*out, []render.Page{render.NewPage(title, res, cfg.Chart)})
	} else {
		cache := openCache(ctx, cfg.Cache)
		if cache != nil {
			defer func() { _ = cache.Close() }()
		}
		var data []byte
		if data, err = render.EncodeCached(ctx, cache, res, cfg.Chart, f); err == nil {
			err = os.WriteFile(*out, data, 0o644)
		}
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", *out, err)
	}
	_, _ = fmt.Fprintln(stdout)
	_, _ = fmt.Fprintln(stdout, "Wrote", *out)
	return nil
}

func printResult(w io.Writer, title, explanation, formula string, rows []report.Row) error {
	_, _ = fmt.Fprintln(w, title)
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, explanation)
	_, _ = fmt.Fprintln(w, "Formula:", formula)
	_, _ = fmt.Fprintln(w)
	return report.WriteRows(w, rows)
}

// remoteApply evaluates req on a geolab server. A rejected saved token is
// replaced once.
func remoteApply(ctx context.Context, server string, req backend.ApplyRequest, out string, stdout, stderr io.Writer) error {
	c, err := backend.Connect(ctx, server)
	if err != nil {
		return fmt.Errorf("connect %s: %w", server, err)
	}
	res, err := c.Apply(ctx, req)
	if errors.Is(err, backend.ErrUnauthorized) {
		if err = c.Refresh(ctx); err == nil {
			res, err = c.Apply(ctx, req)
		}
	}
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		_, _ = fmt.Fprintln(stderr, "Warning:", w)
	}
	if err := printResult(stdout, res.Title, res.Explanation, res.Formula.Plain, res.Rows); err != nil {
		return err
	}
	if out == "" {
		return nil
	}
	f, err := render.FormatFor(out)
	if err != nil {
		return err
	}
	data, err := c.Render(ctx, req, f)
	if err != nil {
		return fmt.Errorf("export %s: %w", out, err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout)
	_, _ = fmt.Fprintln(stdout, "Wrote", out)
	return nil
}

func cmdSheet(ctx context.Context, cfg config.AppConfig, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("sheet", flag.ContinueOnError)
	fs.SetOutput(stderr)
	outDir := fs.String("out", "", "export directory for the PDF and per-exercise PNG/SVG charts")
	// accept the file before or after the flags
	var path string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		path, args = args[0], args[1:]
	}
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if path == "" {
		path = fs.Arg(0)
	}
	if path == "" {
		return usageErr("sheet requires <file.yaml>")
	}

	s, err := sheet.Load(path)
	if err != nil {
		return err
	}
	outcomes, err := sheet.Evaluate(ctx, lab.New(cfg.Ranges), s, cfg.Triangle)
	if err != nil {
		return err
	}
	if s.Title != "" {
		_, _ = fmt.Fprintln(stdout, s.Title)
		_, _ = fmt.Fprintln(stdout, strings.Repeat("=", len(s.Title)))
	}
	for _, o := range outcomes {
		_, _ = fmt.Fprintln(stdout)
		_, _ = fmt.Fprintln(stdout, o.Title)
		_, _ = fmt.Fprintln(stdout, o.Result.Explanation)
		_, _ = fmt.Fprintln(stdout, "Formula:", o.Result.Formula.Plain)
		if err := report.WriteText(stdout, o.Result, cfg.Chart.Precision); err != nil {
			return err
		}
		for _, w := range o.Warnings {
			_, _ = fmt.Fprintln(stderr, "Warning:", w)
		}
	}
	if *outDir == "" {
		return nil
	}

	cache := openCache(ctx, cfg.Cache)
	if cache != nil {
		defer func() { _ = cache.Close() }()
	}
	written, err := sheet.Export(ctx, s, outcomes, sheet.ExportOptions{OutDir: *outDir, Chart: cfg.Chart, Cache: cache})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "\nWrote %d files to %s\n", len(written), *outDir)
	return nil
}

func cmdConfig(cfg config.AppConfig, args []string, stdout io.Writer) error {
	sub := "show"
	if len(args) > 0 {
		sub = args[0]
	}
	switch sub {
	case "show":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = stdout.Write(data)
		return err
	case "path":
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stdout, path)
		return nil
	case "init":
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
		if _, err := config.Save(config.Defaults()); err != nil {
			return err
		}
		applog.WithComponent("cli").Info("config created", slog.String("path", path))
		_, _ = fmt.Fprintln(stdout, "Created", path)
		return nil
	}
	return usageErr("config: unknown subcommand %q (want show, init or path)", sub)
}

// renderCache is what the cache command needs from either cache backend.
type renderCache interface {
	Stats(ctx context.Context) (storage.Stats, error)
	Purge(ctx context.Context) error
	Close() error
}

func cmdCache(ctx context.Context, cfg config.AppConfig, args []string, stdout, stderr io.Writer) error {
	sub := "stats"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		sub, args = args[0], args[1:]
	}
	fs := flag.NewFlagSet("cache", flag.ContinueOnError)
	fs.SetOutput(stderr)
	pgDSN := fs.String("pg", cfg.Server.PGDSN, "Postgres DSN of a shared render cache (default: local SQLite cache)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if sub != "stats" && sub != "purge" {
		return usageErr("cache: unknown subcommand %q (want stats or purge)", sub)
	}

	var (
		c     renderCache
		where string
	)
	if *pgDSN != "" {
		pg, err := storage.OpenPG(ctx, *pgDSN, cfg.Cache.MaxBytes)
		if err != nil {
			return err
		}
		c, where = pg, "postgres"
	} else {
		if !cfg.Cache.Enabled {
			_, _ = fmt.Fprintln(stdout, "Render cache is disabled")
			return nil
		}
		sc, err := storage.OpenConfigured(ctx, cfg.Cache)
		if err != nil {
			return err
		}
		c, where = sc, sc.Path()
	}
	defer func() { _ = c.Close() }()

	if sub == "purge" {
		if err := c.Purge(ctx); err != nil {
			return err
		}
		applog.WithComponent("cli").Info("render cache purged", slog.String("cache", where))
		_, _ = fmt.Fprintln(stdout, "Purged", where)
		return nil
	}
	st, err := c.Stats(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Cache:   %s\nEntries: %d\nBytes:   %d\nHits:    %d\n", where, st.Entries, st.Bytes, st.Hits)
	return nil
}

func cmdServe(ctx context.Context, cfg config.AppConfig, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", cfg.Server.Addr, "listen address")
	pgDSN := fs.String("pg", cfg.Server.PGDSN, "Postgres DSN of a shared render cache (default: local SQLite cache)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return usageErr("serve: unexpected argument %q", fs.Arg(0))
	}
	secret, err := backend.ResolveSecret()
	if err != nil {
		return err
	}

	var store render.Store
	if *pgDSN != "" {
		pg, err := storage.OpenPG(ctx, *pgDSN, cfg.Cache.MaxBytes)
		if err != nil {
			return err
		}
		defer func() { _ = pg.Close() }()
		store = pg
	} else if c := openCache(ctx, cfg.Cache); c != nil {
		defer func() { _ = c.Close() }()
		store = c
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	srv := backend.New(backend.Options{
		Addr:     *addr,
		Secret:   secret,
		Triangle: cfg.Triangle,
		Ranges:   cfg.Ranges,
		Chart:    cfg.Chart,
	}, store)
	_, _ = fmt.Fprintf(stdout, "Serving on %s\n", *addr)
	return srv.ListenAndServe(ctx)
}

// openCache returns nil when the cache is disabled or cannot be opened;
// rendering then falls back to direct encoding.
func openCache(ctx context.Context, cc config.CacheConfig) *storage.Cache {
	c, err := storage.OpenConfigured(ctx, cc)
	if err != nil {
		applog.WithComponent("cli").Warn("render cache disabled", slog.Any("err", err))
		return nil
	}
	return c
}
