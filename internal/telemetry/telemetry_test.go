/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type sink struct {
	mu      sync.Mutex
	events  [][]byte
	crashes [][]byte
}

func (s *sink) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	record := func(dst *[][]byte) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			_ = r.Body.Close()
			s.mu.Lock()
			*dst = append(*dst, b)
			s.mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}
	}
	mux.HandleFunc("/events", record(&s.events))
	mux.HandleFunc("/crash", record(&s.crashes))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_EventAndUploadCrash(t *testing.T) {
	var s sink
	srv := s.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second})
	defer c.Close()
	if !c.Enabled() {
		t.Fatalf("expected client to be enabled")
	}

	c.Event("evaluate", map[string]any{"kind": "rotation"})
	c.Flush(context.Background())

	s.mu.Lock()
	events := append([][]byte(nil), s.events...)
	s.mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	var m map[string]any
	if err := json.Unmarshal(events[0], &m); err != nil {
		t.Fatalf("bad event json: %v", err)
	}
	if m["name"] != "evaluate" || m["kind"] != "rotation" {
		t.Fatalf("unexpected event: %v", m)
	}
	if _, ok := m["ts"].(string); !ok {
		t.Fatalf("missing ts field")
	}

	if err := c.UploadCrash([]byte("Panic: boom")); err != nil {
		t.Fatalf("UploadCrash: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.crashes) != 1 || string(s.crashes[0]) != "Panic: boom" {
		t.Fatalf("crash report not received: %q", s.crashes)
	}
}

func TestDisabledClientIsNoop(t *testing.T) {
	var s sink
	srv := s.server(t)
	c := New(Config{OptIn: false, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash"})
	defer c.Close()
	c.Event("evaluate", nil)
	c.Flush(context.Background())
	if err := c.UploadCrash([]byte("x")); err != nil {
		t.Fatal(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) != 0 || len(s.crashes) != 0 {
		t.Fatalf("opt-out client sent data: %d events, %d crashes", len(s.events), len(s.crashes))
	}
	var nilClient *Client
	nilClient.Event("x", nil)
	nilClient.Flush(context.Background())
}

func TestEventAfterCloseDoesNotStallFlush(t *testing.T) {
	var s sink
	srv := s.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", Timeout: time.Second})
	c.Close()
	c.Close()
	c.Event("evaluate", nil)

	start := time.Now()
	c.Flush(context.Background())
	if d := time.Since(start); d > 250*time.Millisecond {
		t.Fatalf("Flush after Close took %v", d)
	}
	if n := c.pendingCount(); n != 0 {
		t.Fatalf("pending = %d after Close", n)
	}
}

func TestConcurrentEventsAndFlush(t *testing.T) {
	var s sink
	srv := s.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", Timeout: 2 * time.Second})
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Event("evaluate", map[string]any{"kind": "scaling"})
		}()
		go func() {
			defer wg.Done()
			c.Flush(context.Background())
		}()
	}
	wg.Wait()
	c.Flush(context.Background())
	if n := c.pendingCount(); n != 0 {
		t.Fatalf("pending = %d after Flush", n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) != 8 {
		t.Fatalf("expected 8 events, got %d", len(s.events))
	}
}

func TestUploadCrashReportsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	c := New(Config{OptIn: true, CrashURL: srv.URL, Timeout: time.Second})
	defer c.Close()
	if err := c.UploadCrash([]byte("x")); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("GEOLAB_TELEMETRY_OPT_IN", "yes")
	t.Setenv("GEOLAB_TELEMETRY_URL", " http://t/events ")
	t.Setenv("GEOLAB_CRASH_UPLOAD_URL", "")
	t.Setenv("GEOLAB_TELEMETRY_TIMEOUT_MS", "250")
	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL != "http://t/events" || cfg.CrashURL != "" || cfg.Timeout != 250*time.Millisecond {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	t.Setenv("GEOLAB_TELEMETRY_TIMEOUT_MS", "soon")
	if FromEnv().Timeout != 1500*time.Millisecond {
		t.Fatalf("bad timeout must fall back to the default")
	}
}
