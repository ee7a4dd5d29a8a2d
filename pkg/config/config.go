// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config reads the console settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/united-manufacturing-hub/umh-utils/env"

	"github.com/united-manufacturing-hub/docconsole/pkg/hosts"
)

const defaultHostsFile = ".docconsole.db"

type Config struct {
	ServerPort   int
	ReadOnly     bool
	CountTimeout time.Duration
	// ConnectTimeout bounds dialing and the first ping of a server.
	ConnectTimeout    time.Duration
	QueryDefaultLimit int64
	QueryMaxLimit     int64
	DefaultHosts      []string
	HostsFile         string
	StatsCacheTTL     time.Duration
	MetricsPort       int
	HealthPort        int
	SentryDSN         string
	DemoMode          bool
}

// LoadFromEnv builds a Config from the environment. Any value that does not
// parse, or is out of range, is an error.
func LoadFromEnv() (Config, error) {
	var (
		cfg Config
		err error
	)

	if cfg.ServerPort, err = port("SERVER_PORT", 3100); err != nil {
		return Config{}, err
	}

	if cfg.ReadOnly, err = env.GetAsBool("READ_ONLY_MODE", false, false); err != nil {
		return Config{}, fmt.Errorf("READ_ONLY_MODE: %w", err)
	}

	if cfg.CountTimeout, err = millis("COUNT_TIMEOUT_MS", 5000); err != nil {
		return Config{}, err
	}

	if cfg.ConnectTimeout, err = millis("CONNECT_TIMEOUT_MS", 5000); err != nil {
		return Config{}, err
	}

	if cfg.StatsCacheTTL, err = millis("STATS_CACHE_TTL_MS", 5000); err != nil {
		return Config{}, err
	}

	defaultLimit, err := positive("QUERY_DEFAULT_LIMIT", 20)
	if err != nil {
		return Config{}, err
	}

	maxLimit, err := positive("QUERY_MAX_LIMIT", 1000)
	if err != nil {
		return Config{}, err
	}

	if defaultLimit > maxLimit {
		return Config{}, fmt.Errorf("QUERY_DEFAULT_LIMIT (%d) exceeds QUERY_MAX_LIMIT (%d)", defaultLimit, maxLimit)
	}

	cfg.QueryDefaultLimit, cfg.QueryMaxLimit = int64(defaultLimit), int64(maxLimit)

	defaultHosts, err := env.GetAsString("DEFAULT_HOSTS", false, "localhost:27017")
	if err != nil {
		return Config{}, fmt.Errorf("DEFAULT_HOSTS: %w", err)
	}

	cfg.DefaultHosts = hosts.SplitDefaults(defaultHosts)

	if cfg.HostsFile, err = env.GetAsString("HOSTS_DATABASE_FILE", false, ""); err != nil {
		return Config{}, fmt.Errorf("HOSTS_DATABASE_FILE: %w", err)
	}

	if cfg.HostsFile == "" {
		home, _ := os.UserHomeDir() //nolint:errcheck // falls back to the working directory
		cfg.HostsFile = filepath.Join(home, defaultHostsFile)
	}

	if cfg.MetricsPort, err = port("METRICS_PORT", 2112); err != nil {
		return Config{}, err
	}

	if cfg.HealthPort, err = port("HEALTH_PORT", 8086); err != nil {
		return Config{}, err
	}

	if cfg.SentryDSN, err = env.GetAsString("SENTRY_DSN", false, ""); err != nil {
		return Config{}, fmt.Errorf("SENTRY_DSN: %w", err)
	}

	if cfg.DemoMode, err = env.GetAsBool("DEMO_MODE", false, false); err != nil {
		return Config{}, fmt.Errorf("DEMO_MODE: %w", err)
	}

	return cfg, nil
}

func port(key string, fallback int) (int, error) {
	p, err := env.GetAsInt(key, false, fallback)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}

	if p < 1 || p > 65535 {
		return 0, fmt.Errorf("%s: port %d out of range", key, p)
	}

	return p, nil
}

func positive(key string, fallback int) (int, error) {
	n, err := env.GetAsInt(key, false, fallback)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}

	if n <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %d", key, n)
	}

	return n, nil
}

func millis(key string, fallback int) (time.Duration, error) {
	n, err := positive(key, fallback)
	if err != nil {
		return 0, err
	}

	return time.Duration(n) * time.Millisecond, nil
}
