// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/LiangCY/dinosaur-wiki/internal/agent"
	"github.com/LiangCY/dinosaur-wiki/internal/metrics"
	"github.com/LiangCY/dinosaur-wiki/internal/search"
	"github.com/LiangCY/dinosaur-wiki/internal/server"
	"github.com/LiangCY/dinosaur-wiki/internal/store"
	"github.com/LiangCY/dinosaur-wiki/pkg/types"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the encyclopedia REST API and the research endpoints",
	Long: `Serve opens the record store, builds the research agent and serves HTTP
until interrupted. If the agent cannot be built (for example an API key is
missing) the server still starts; research endpoints answer 400 and
/ai-agent/status reports initialized=false.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :3000)")
	serveCmd.Flags().String("store", "", "store driver: sqlite or postgres")
	serveCmd.Flags().String("db", "", "sqlite database path")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("store.driver", serveCmd.Flags().Lookup("store"))
	viper.BindPFlag("store.path", serveCmd.Flags().Lookup("db"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	cache, closeCache, err := buildSearchCache(ctx, cfg.Search)
	if err != nil {
		return err
	}
	defer closeCache()

	deps := server.Deps{
		Store:    st,
		Metrics:  m,
		Gatherer: prometheus.DefaultGatherer,
		Log:      logger,
	}
	a, err := agent.New(ctx, cfg.Agent, agent.Deps{
		Log:            logger,
		Metrics:        m,
		SearchCache:    cache,
		SearchCacheTTL: cfg.Search.CacheTTL,
	})
	if err != nil {
		logger.Error("research agent not initialized", zap.Error(err))
		deps.AgentErr = err
	} else {
		deps.Agent = a
	}

	srv := server.New(cfg.Server, deps)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// buildSearchCache returns the configured search response cache, or nil
// for none. The returned func releases it.
func buildSearchCache(ctx context.Context, cfg types.SearchConfig) (search.Cache, func(), error) {
	noop := func() {}
	switch cfg.Cache {
	case "", types.CacheNone:
		return nil, noop, nil
	case types.CacheMemory:
		logger.Info("search cache enabled", zap.String("kind", "memory"), zap.Duration("ttl", cfg.CacheTTL))
		return search.NewMemoryCache(cfg.CacheTTL), noop, nil
	case types.CacheRedis:
		rc := search.NewRedisCache(cfg.RedisAddr)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			rc.Close()
			return nil, noop, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Info("search cache enabled", zap.String("kind", "redis"), zap.String("addr", cfg.RedisAddr))
		return rc, func() { rc.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown search cache %q", cfg.Cache)
	}
}
