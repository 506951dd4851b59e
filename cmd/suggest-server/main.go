// Command suggest-server answers executable lookups and renders suggestion
// messages over HTTP.
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

	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/index/locator"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/searcher/lookup"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/internal/searcher/refresh"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/conda-suggest/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	searchPath := locator.Resolve(cfg.Search.Path)
	slog.Info("starting suggest service", "port", cfg.Server.Port, "search_path", searchPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	mapFiles := cache.NewMapFileCache(nil)
	m.RegisterMapFileCache(mapFiles.Stats, mapFiles.Len)
	engine := lookup.NewEngine(mapFiles, lookup.WithLoadWorkers(cfg.Search.LoadWorkers))

	var results *cache.ResultCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, message caching disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			results = cache.NewResultCache(redisClient, cfg.Redis.CacheTTL, pkgredis.IsNilError)
			slog.Info("message cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	h := handler.New(engine, results, m, searchPath, cfg.Search.MaxResults)

	if kafka.Enabled(cfg.Kafka) {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexUpdated, kafka.InstanceGroup(cfg.Kafka), refresh.HandleMessage(h.Clear))
		go func() {
			if err := refresh.New(consumer).Start(ctx); err != nil {
				slog.Error("refresh consumer error", "error", err)
			}
		}()
		slog.Info("refresh consumer started", "topic", cfg.Kafka.Topics.IndexUpdated)
	}

	checker := health.NewChecker()
	checker.Register("map_files", func(ctx context.Context) health.ComponentHealth {
		n := len(locator.ListMapFiles(searchPath))
		if n == 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "no map files on search path"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d map files", n)}
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

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

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
	}()

	slog.Info("suggest service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("suggest service stopped")
}
