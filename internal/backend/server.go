/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backend serves the transformation engine over HTTP and provides
// the matching client used by "geolab apply -server".
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"geolab/internal/config"
	"geolab/internal/domain"
	"geolab/internal/lab"
	applog "geolab/internal/log"
	"geolab/internal/render"
	"geolab/internal/report"
	"geolab/internal/transform"
	"geolab/internal/version"
)

// ApplyRequest is the body of POST /api/apply and POST /api/render.
// Only the parameters of Kind are read; a missing triangle means the
// server's configured one.
type ApplyRequest struct {
	Triangle *domain.PointSet `json:"triangle,omitempty"`
	Kind     string           `json:"kind"`
	DX       float64          `json:"dx"`
	DY       float64          `json:"dy"`
	Axis     string           `json:"axis,omitempty"`
	Angle    float64          `json:"angle"`
	Factor   float64          `json:"factor"`
}

func (r ApplyRequest) params() lab.Params {
	return lab.Params{DX: r.DX, DY: r.DY, Axis: r.Axis, Angle: r.Angle, Factor: r.Factor}
}

// ApplyResponse carries one evaluation back to the client.
type ApplyResponse struct {
	Title       string            `json:"title"`
	Kind        string            `json:"kind"`
	Explanation string            `json:"explanation"`
	Formula     transform.Formula `json:"formula"`
	Original    domain.PointSet   `json:"original"`
	Transformed domain.PointSet   `json:"transformed"`
	Rows        []report.Row      `json:"rows"`
	Warnings    []string          `json:"warnings,omitempty"`
}

// Options configure a Server.
type Options struct {
	Addr     string
	Secret   string
	Triangle domain.PointSet
	Ranges   config.Ranges
	Chart    config.ChartConfig
}

// Server is stateless apart from the optional render store.
type Server struct {
	opt   Options
	lab   *lab.Lab
	store render.Store
	log   *slog.Logger
}

// New returns a server. store may be nil, in which case every chart is rendered.
func New(opt Options, store render.Store) *Server {
	return &Server{opt: opt, lab: lab.New(opt.Ranges), store: store, log: applog.WithComponent("backend")}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("store not ready"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(version.String()))
	})
	mux.HandleFunc("/api/auth/token", s.handleToken)
	mux.HandleFunc("/api/apply", withAuth(s.opt.Secret, s.handleApply))
	mux.HandleFunc("/api/render", withAuth(s.opt.Secret, s.handleRender))
	return s.logRequests(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: s.opt.Addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("listening", slog.String("addr", s.opt.Addr))
	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(sctx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// POST /api/auth/token -> { token, expires_at }
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	// JSON body: { "secret": "...", "subject": "name", "ttl_seconds": 3600 }
	var req struct {
		Secret     string `json:"secret"`
		Subject    string `json:"subject"`
		TTLSeconds int64  `json:"ttl_seconds"`
	}
	b, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	_ = r.Body.Close()
	_ = json.Unmarshal(b, &req)
	if !secretMatches(s.opt.Secret, req.Secret) {
		s.log.Warn("token request rejected", slog.String("remote", r.RemoteAddr))
		writeError(w, http.StatusUnauthorized, errBadSecret)
		return
	}
	if req.Subject == "" {
		req.Subject = "student"
	}
	if req.TTLSeconds <= 0 || req.TTLSeconds > 24*3600 {
		req.TTLSeconds = 3600
	}
	exp := time.Now().Add(time.Duration(req.TTLSeconds) * time.Second)
	tok, err := signToken(s.opt.Secret, req.Subject, exp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      tok,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request, sub string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	res, err := s.evaluate(r, sub)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	resp := ApplyResponse{
		Title:       lab.Title(res.Spec.Kind()),
		Kind:        res.Spec.Kind().String(),
		Explanation: res.Explanation,
		Formula:     res.Formula,
		Original:    res.Original,
		Transformed: res.Transformed,
		Rows:        report.Rows(res, s.opt.Chart.Precision),
	}
	for _, warn := range s.lab.OutOfRange(res.Spec) {
		resp.Warnings = append(resp.Warnings, warn.String())
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /api/render?format=png|svg|pdf -> chart bytes
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request, sub string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	f := render.Format(strings.ToLower(r.URL.Query().Get("format")))
	if f == "" {
		f = render.FormatPNG
	}
	ctype, ok := contentTypes[f]
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", render.ErrUnknownFormat, f))
		return
	}
	res, err := s.evaluate(r, sub)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	data, err := render.EncodeCached(r.Context(), s.store, res, s.opt.Chart, f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", ctype)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

var contentTypes = map[render.Format]string{
	render.FormatPNG: "image/png",
	render.FormatSVG: "image/svg+xml",
	render.FormatPDF: "application/pdf",
}

// errBadRequest marks bodies that are not a valid ApplyRequest.
var errBadRequest = errors.New("bad request")

// evaluate decodes the body and runs a fresh lab request for it.
func (s *Server) evaluate(r *http.Request, sub string) (transform.Result, error) {
	var req ApplyRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return transform.Result{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	spec, err := lab.SpecFromParams(req.Kind, req.params())
	if err != nil {
		return transform.Result{}, err
	}
	tri := s.opt.Triangle
	if req.Triangle != nil {
		tri = *req.Triangle
	}
	ctx := applog.ContextWith(r.Context(), slog.String("subject", sub))
	return s.lab.Evaluate(ctx, lab.Request{Triangle: tri, Spec: spec})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, transform.ErrUnsupportedTransformation),
		errors.Is(err, transform.ErrInvalidAxis),
		errors.Is(err, domain.ErrUnknownLabel):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		lvl := slog.LevelDebug
		if rec.status >= 500 {
			lvl = slog.LevelError
		}
		s.log.Log(r.Context(), lvl, "request",
			slog.String("method", r.Method), slog.String("path", r.URL.Path),
			slog.Int("status", rec.status), slog.Duration("took", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
