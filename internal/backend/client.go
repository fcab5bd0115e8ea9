/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	applog "geolab/internal/log"
	"geolab/internal/render"
)

// ErrUnauthorized is returned when the server rejects the bearer token.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server: %d %s: %s", e.Code, http.StatusText(e.Code), e.Message)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.Code == http.StatusUnauthorized
}

// Client is a minimal HTTP client for the geolab server API.
type Client struct {
	BaseURL string
	Token   string // bearer token
	Secret  string // shared secret exchanged for tokens
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Connect returns a client for baseURL that carries the token saved in the
// OS keyring, fetching and saving a new one when none is stored. New tokens
// are paid for with the secret from LookupSecret.
func Connect(ctx context.Context, baseURL string) (*Client, error) {
	c := NewClient(baseURL, "")
	secret, err := LookupSecret()
	if err != nil {
		applog.WithComponent("backend").Warn("read auth secret", slog.Any("err", err))
	}
	c.Secret = secret
	tok, err := SavedToken(c.BaseURL)
	if err != nil {
		applog.WithComponent("backend").Warn("read saved token", slog.Any("err", err))
	}
	if tok != "" {
		c.Token = tok
		return c, nil
	}
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Refresh requests a new token and stores it in the keyring. When the
// server refuses, the stored token is dropped as well.
func (c *Client) Refresh(ctx context.Context) error {
	tok, _, err := c.IssueToken(ctx, "")
	if err != nil {
		c.Token = ""
		if ferr := ForgetToken(c.BaseURL); ferr != nil {
			applog.WithComponent("backend").Warn("token not removed", slog.Any("err", ferr))
		}
		return err
	}
	c.Token = tok
	if err := SaveToken(c.BaseURL, tok); err != nil {
		applog.WithComponent("backend").Warn("token not saved", slog.Any("err", err))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		var env struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(msg, &env) == nil && env.Error != "" {
			msg = []byte(env.Error)
		}
		return nil, &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(dest)
}

// IssueToken exchanges c.Secret for a bearer token. An empty subject lets
// the server pick its default.
func (c *Client) IssueToken(ctx context.Context, subject string) (string, time.Time, error) {
	var out struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	body := map[string]any{"secret": c.Secret}
	if subject != "" {
		body["subject"] = subject
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", body, &out); err != nil {
		return "", time.Time{}, err
	}
	exp, _ := time.Parse(time.RFC3339, out.ExpiresAt)
	return out.Token, exp, nil
}

// Apply evaluates req on the server.
func (c *Client) Apply(ctx context.Context, req ApplyRequest) (ApplyResponse, error) {
	var out ApplyResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/apply", req, &out); err != nil {
		return ApplyResponse{}, err
	}
	return out, nil
}

// Render returns the chart for req in format f.
func (c *Client) Render(ctx context.Context, req ApplyRequest, f render.Format) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/render?format="+url.QueryEscape(string(f)), req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Version returns the server's version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/version", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	return string(b), err
}
