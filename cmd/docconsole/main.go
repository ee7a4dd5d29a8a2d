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

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/docconsole/pkg/api"
	"github.com/united-manufacturing-hub/docconsole/pkg/config"
	"github.com/united-manufacturing-hub/docconsole/pkg/hosts"
	"github.com/united-manufacturing-hub/docconsole/pkg/logger"
	"github.com/united-manufacturing-hub/docconsole/pkg/metrics"
	"github.com/united-manufacturing-hub/docconsole/pkg/registry"
	"github.com/united-manufacturing-hub/docconsole/pkg/sentry"
	"github.com/united-manufacturing-hub/docconsole/pkg/store"
	"github.com/united-manufacturing-hub/docconsole/pkg/store/memstore"
	"github.com/united-manufacturing-hub/docconsole/pkg/store/mongostore"
)

// Set at build time.
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	logger.Initialize()
	defer func() { _ = logger.Sync() }()

	log := logger.For(logger.ComponentCore)

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalw("Invalid configuration", "error", err)
	}

	environment := "production"
	if cfg.DemoMode {
		environment = "demo"
	}

	if err := sentry.InitSentry(cfg.SentryDSN, version, environment); err != nil {
		log.Warnw("Error reporting disabled", "error", err)
	}
	defer sentry.Flush(2 * time.Second)

	hostStore, err := hosts.OpenBolt(cfg.HostsFile, cfg.DefaultHosts)
	if err != nil {
		log.Fatalw("Failed to open the server list", "path", cfg.HostsFile, "error", err)
	}

	defer func() {
		if err := hostStore.Close(); err != nil {
			log.Warnw("Failed to close the server list", "error", err)
		}
	}()

	addresses, err := hostStore.GetAll()
	if err != nil {
		log.Fatalw("Failed to read the server list", "error", err)
	}

	reg := registry.New(newDialer(cfg, addresses, log), registry.Options{
		CountTimeout:  cfg.CountTimeout,
		StatsCacheTTL: cfg.StatsCacheTTL,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsServer := metrics.SetupMetricsEndpoint(fmt.Sprintf(":%d", cfg.MetricsPort))

	var loaded atomic.Bool

	healthServer := startHealthCheck(cfg.HealthPort, &loaded)

	log.Infow("Connecting to configured servers", "servers", addresses, "demo", cfg.DemoMode)
	reg.Load(ctx, addresses)
	loaded.Store(true)

	server := api.NewServer(reg, hostStore, api.Options{
		Port:         cfg.ServerPort,
		ReadOnly:     cfg.ReadOnly,
		DefaultLimit: cfg.QueryDefaultLimit,
		MaxLimit:     cfg.QueryMaxLimit,
	})

	serveErr := make(chan error, 1)

	go func() {
		serveErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Received shutdown signal")
	case err := <-serveErr:
		if err != nil {
			sentry.ReportIssue(err, sentry.IssueTypeError, log)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Warnw("API server did not stop cleanly", "error", err)
	}

	if err := reg.Close(shutdownCtx); err != nil {
		log.Warnw("Failed to close server connections", "error", err)
	}

	_ = metricsServer.Shutdown(shutdownCtx)
	_ = healthServer.Shutdown(shutdownCtx)

	log.Info("Shutdown complete")
}

// newDialer connects to MongoDB, or in demo mode to in-memory servers seeded
// with sample data, one per configured address.
func newDialer(cfg config.Config, addresses []string, log *zap.SugaredLogger) store.Dialer {
	if cfg.DemoMode {
		log.Warn("Demo mode: serving sample data from memory")

		return memstore.NewDemoDialer(addresses)
	}

	return mongostore.NewDialer(cfg.ConnectTimeout)
}

func startHealthCheck(port int, loaded *atomic.Bool) *http.Server {
	log := logger.For(logger.ComponentHealth)

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(10000))
	health.AddReadinessCheck("initial-load", func() error {
		if !loaded.Load() {
			return errors.New("configured servers not loaded yet")
		}

		return nil
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           health,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("Error starting healthcheck", "error", err)
		}
	}()

	return server
}
