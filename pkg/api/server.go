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

// Package api serves the console's JSON interface over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/docconsole/pkg/collection"
	"github.com/united-manufacturing-hub/docconsole/pkg/hosts"
	"github.com/united-manufacturing-hub/docconsole/pkg/logger"
	"github.com/united-manufacturing-hub/docconsole/pkg/registry"
)

// Registry is the part of the connection registry the handlers use.
type Registry interface {
	Load(ctx context.Context, addresses []string)
	Remove(name string)
	ListServers(ctx context.Context) []registry.ServerEntry
	ListDatabases(ctx context.Context, server string) ([]registry.DatabaseSummary, error)
	ListCollections(ctx context.Context, server, database string) ([]collection.Stats, error)
	Collection(ctx context.Context, server, database, name string) (*collection.Accessor, error)
}

// Options configure a Server.
type Options struct {
	Port     int
	ReadOnly bool
	// DefaultLimit applies to queries without a limit, MaxLimit caps the
	// limit a caller may ask for.
	DefaultLimit int64
	MaxLimit     int64
	Debug        bool
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{Port: 3100, DefaultLimit: 20, MaxLimit: 1000}
}

// Server is the HTTP boundary of the console.
type Server struct {
	registry Registry
	hosts    hosts.Store
	opts     Options
	log      *zap.SugaredLogger
	router   *gin.Engine
	server   *http.Server
}

// NewServer builds the router. The server does not listen until Start.
func NewServer(reg Registry, hostStore hosts.Store, opts Options) *Server {
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = DefaultOptions().MaxLimit
	}

	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultOptions().DefaultLimit
	}

	opts.DefaultLimit = min(opts.DefaultLimit, opts.MaxLimit)

	s := &Server{
		registry: reg,
		hosts:    hostStore,
		opts:     opts,
		log:      logger.For(logger.ComponentAPI),
	}
	s.router = s.routes()

	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	if s.opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	access := s.log.Desugar()
	router.Use(ginzap.Ginzap(access, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(access, true))
	router.Use(requestMetrics())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "online")
	})

	writable := s.writeEnabled()

	api := router.Group("/api")
	{
		api.GET("/readonly", s.getReadOnly)

		api.GET("/servers", s.getServers)
		api.PUT("/servers", writable, s.putServer)
		api.DELETE("/servers/:server", writable, s.deleteServer)

		api.GET("/servers/:server/databases", s.getDatabases)
		api.GET("/servers/:server/databases/:database/collections", s.getCollections)

		coll := api.Group("/servers/:server/databases/:database/collections/:collection")
		coll.GET("/query", s.query)
		coll.GET("/count", s.count)
		coll.GET("/documents/:document", s.getDocument)
		coll.POST("/documents/:document", writable, s.postDocument)
		coll.DELETE("/documents/:document", writable, s.deleteDocument)
	}

	return router
}

// Start listens on the configured port until Stop is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.log.Infow("Starting API server", "port", s.opts.Port, "read_only", s.opts.ReadOnly)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("API server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.log.Info("Stopping API server")

	return s.server.Shutdown(ctx)
}
