/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	applog "geolab/internal/log"
)

// EnvAuthSecret overrides the token signing secret kept in the OS keyring.
const EnvAuthSecret = "GEOLAB_AUTH_SECRET"

// Service/keys for OS keyring.
const (
	keyringService = "geolab"
	keyringSecret  = "auth_secret"
	keyringToken   = "token:" // + server URL
)

// ResolveSecret returns the token signing secret: $GEOLAB_AUTH_SECRET, then
// the OS keyring, then a fresh random secret that is stored in the keyring.
// Without a working keyring the fresh secret lives only as long as the process.
func ResolveSecret() (string, error) {
	l := applog.WithComponent("backend")
	if v := strings.TrimSpace(os.Getenv(EnvAuthSecret)); v != "" {
		return v, nil
	}
	v, err := keyring.Get(keyringService, keyringSecret)
	if err == nil && v != "" {
		return v, nil
	}
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		l.Warn("keyring unavailable", slog.Any("err", err))
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(buf)
	if err := keyring.Set(keyringService, keyringSecret, secret); err != nil {
		l.Warn("auth secret not persisted; tokens are invalid after restart", slog.Any("err", err))
	}
	return secret, nil
}

// LookupSecret returns the shared secret a client sends for tokens:
// $GEOLAB_AUTH_SECRET, then the OS keyring. It never creates one and
// returns "" when neither is set.
func LookupSecret() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvAuthSecret)); v != "" {
		return v, nil
	}
	v, err := keyring.Get(keyringService, keyringSecret)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return v, err
}

// SavedToken returns the bearer token stored for baseURL, or "" when none is.
func SavedToken(baseURL string) (string, error) {
	v, err := keyring.Get(keyringService, keyringToken+baseURL)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return v, err
}

// SaveToken stores token for baseURL in the OS keyring.
func SaveToken(baseURL, token string) error {
	return keyring.Set(keyringService, keyringToken+baseURL, token)
}

// ForgetToken removes the stored token for baseURL. A missing token is not an error.
func ForgetToken(baseURL string) error {
	err := keyring.Delete(keyringService, keyringToken+baseURL)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
