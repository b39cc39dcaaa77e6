package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/groundbot/retrieval/internal/indexer"
	"github.com/groundbot/retrieval/internal/indexer/persist"
	ingesthandler "github.com/groundbot/retrieval/internal/ingestion/handler"
	"github.com/groundbot/retrieval/internal/searcher"
	"github.com/groundbot/retrieval/internal/searcher/cache"
	searchhandler "github.com/groundbot/retrieval/internal/searcher/handler"
	"github.com/groundbot/retrieval/pkg/config"
	"github.com/groundbot/retrieval/pkg/health"
	"github.com/groundbot/retrieval/pkg/logger"
	"github.com/groundbot/retrieval/pkg/metrics"
	"github.com/groundbot/retrieval/pkg/middleware"
	pkgredis "github.com/groundbot/retrieval/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting retrieval service", "port", cfg.Server.Port, "index_path", cfg.Index.Path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loadCache := persist.NewCache()
	engine, err := indexer.NewEngine(cfg.Index, loadCache)
	if err != nil {
		slog.Error("failed to load index", "error", err)
		os.Exit(1)
	}
	slog.Info("index loaded", "docs", engine.DocCount(), "terms", engine.Index().TermCount())

	var resultCache *cache.ResultCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, result caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			resultCache = cache.New(redisClient, cfg.Redis)
			slog.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	checker := health.NewChecker()
	checker.Register("index_engine", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents indexed", engine.DocCount()),
		}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	retriever := searcher.New(engine.Index(), cfg.Search, cfg.Retrieval)
	searchH := searchhandler.New(retriever, resultCache, cfg.Search, cfg.Retrieval, m)
	ingestH := ingesthandler.New(engine, resultCache, m)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/documents", ingestH.Ingest)
	mux.HandleFunc("DELETE /api/v1/documents/{id}", ingestH.Remove)
	mux.HandleFunc("POST /api/v1/index/save", ingestH.Save)
	mux.HandleFunc("GET /api/v1/search", searchH.Search)
	mux.HandleFunc("GET /api/v1/retrieve", searchH.Retrieve)
	mux.HandleFunc("GET /api/v1/cache/stats", searchH.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", searchH.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if err := engine.Save(); err != nil {
			slog.Error("final index save failed", "error", err)
		}
	}()

	slog.Info("retrieval service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("retrieval service stopped")
}
