// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the record store and the research agent over HTTP.
// Routes live under /api/dinosaurs and /ai-agent; errors are JSON objects
// of the form {"statusCode": n, "message": "..."}.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/LiangCY/dinosaur-wiki/internal/agent"
	"github.com/LiangCY/dinosaur-wiki/internal/metrics"
	"github.com/LiangCY/dinosaur-wiki/internal/store"
	"github.com/LiangCY/dinosaur-wiki/pkg/types"
)

// Defaults for ServerConfig fields left at zero.
const (
	DefaultAddr         = ":3000"
	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 10 * time.Minute
)

// DefaultCORSOrigins are the browser origins of the bundled UI.
var DefaultCORSOrigins = []string{"http://localhost:5173", "http://localhost:3000"}

// Researcher is the agent surface the server needs.
type Researcher interface {
	ResearchOne(ctx context.Context, name string) types.ResearchResult
	ResearchMany(ctx context.Context, names []string) []types.ResearchResult
	Stats(ctx context.Context) types.AgentStats
	Config() agent.Options
}

// Deps holds the server's collaborators. Agent may be nil when the agent
// failed to initialize; AgentErr then says why.
type Deps struct {
	Store    store.Store
	Agent    Researcher
	AgentErr error
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Log      *zap.Logger
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	cfg        types.ServerConfig
	deps       Deps
	logger     *zap.Logger
	limiter    *rate.Limiter
	router     http.Handler
	httpServer *http.Server
}

// New builds the server and its router.
func New(cfg types.ServerConfig, deps Deps) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = DefaultCORSOrigins
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{cfg: cfg, deps: deps, logger: deps.Log}
	if cfg.ResearchRate > 0 {
		burst := cfg.ResearchBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.ResearchRate), burst)
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.logger.Info("server listening", zap.String("addr", s.cfg.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
