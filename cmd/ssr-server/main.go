package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/ssr-gateway/internal/common/config"
	"github.com/edgecomet/ssr-gateway/internal/common/logger"
	"github.com/edgecomet/ssr-gateway/internal/common/metricsserver"
	"github.com/edgecomet/ssr-gateway/internal/common/redis"
	"github.com/edgecomet/ssr-gateway/internal/ssr/app"
	"github.com/edgecomet/ssr-gateway/internal/ssr/cache"
	"github.com/edgecomet/ssr-gateway/internal/ssr/document"
	"github.com/edgecomet/ssr-gateway/internal/ssr/graphql"
	"github.com/edgecomet/ssr-gateway/internal/ssr/metrics"
	"github.com/edgecomet/ssr-gateway/internal/ssr/orchestrator"
	"github.com/edgecomet/ssr-gateway/internal/ssr/server"
)

func main() {
	configPath := flag.String("c", "configs/ssr-server.yaml", "path to configuration file")
	testMode := flag.Bool("t", false, "test configuration and exit")
	flag.Parse()

	if *testMode {
		os.Exit(runConfigTest(*configPath))
	}

	// Create initial logger for startup
	initialLogger, err := logger.NewDefaultLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	initialLogger.Info("Starting SSR server", zap.String("config_path", *configPath))

	configManager, err := config.NewManager(*configPath, initialLogger.Logger)
	if err != nil {
		initialLogger.Fatal("Failed to create config manager", zap.Error(err))
	}

	cfg := configManager.GetConfig()

	dynamicLogger, err := logger.NewLoggerWithStartupOverride(cfg.Log)
	if err != nil {
		initialLogger.Fatal("Failed to create configured logger", zap.Error(err))
	}
	defer dynamicLogger.Sync()

	ssrLogger := dynamicLogger.Logger
	metricsCollector := metrics.NewMetricsCollector(cfg.Metrics.Namespace, ssrLogger)

	// Shared tier is optional; without it every instance keeps its own cache
	var shared *cache.Shared
	if cfg.Cache.Shared.Enabled {
		redisClient, err := redis.NewClient(cfg.Cache.Shared.Redis, ssrLogger)
		if err != nil {
			ssrLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()

		shared = cache.NewShared(redisClient, cfg.Cache.Shared.KeyPrefix, cfg.Cache.Shared.Compression, cfg.Cache.MaxAge.ToDuration())
		ssrLogger.Info("Shared cache tier enabled",
			zap.String("redis_addr", cfg.Cache.Shared.Redis.Addr),
			zap.String("compression", cfg.Cache.Shared.Compression))
	}

	pageCache := cache.New(
		cache.WithMaxEntries(cfg.Cache.MaxEntries),
		cache.WithMaxAge(cfg.Cache.MaxAge.ToDuration()),
		cache.WithEvictionHook(metricsCollector.RecordEviction),
	)
	store := cache.NewTiered(pageCache, shared, metricsCollector, ssrLogger)

	clients := graphql.NewFactory(cfg.GraphQL, ssrLogger)
	ssrLogger.Info("GraphQL endpoint configured", zap.String("endpoint", clients.Endpoint()))

	renderOrchestrator := orchestrator.NewRenderOrchestrator(
		store,
		app.New(),
		clients,
		document.New(cfg.Render.BundleURL),
		metricsCollector,
		orchestrator.Options{Coalesce: cfg.Render.Coalesce},
		ssrLogger,
	)

	srv := server.NewServer(configManager, store, renderOrchestrator, metricsCollector, ssrLogger)

	metricsServer, err := metricsserver.Start(cfg.Metrics, metricsCollector, ssrLogger)
	if err != nil {
		ssrLogger.Fatal("Failed to start metrics server", zap.Error(err))
	}

	serverErrors := make(chan error, 1)
	httpLifecycle := &serverLifecycle{
		server:  newFastHTTPServer(srv.HandleRequest, cfg.Server.Timeout.ToDuration()),
		name:    "HTTP",
		address: cfg.Server.Listen,
		logger:  ssrLogger,
	}
	httpLifecycle.StartWithErrorChan(serverErrors)

	// Wait briefly for the listener and check for immediate failures
	time.Sleep(100 * time.Millisecond)
	select {
	case err := <-serverErrors:
		ssrLogger.Fatal("Server failed to start", zap.Error(err))
	default:
	}

	ssrLogger.Info("SSR server started",
		zap.String("http_addr", cfg.Server.Listen),
		zap.Int("cache_max_entries", cfg.Cache.MaxEntries),
		zap.Duration("cache_max_age", cfg.Cache.MaxAge.ToDuration()))

	dynamicLogger.SwitchToConfiguredLevel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		dynamicLogger.EnsureInfoLevelForShutdown()
		ssrLogger.Info("Shutting down SSR server...")
	case err := <-serverErrors:
		dynamicLogger.EnsureInfoLevelForShutdown()
		ssrLogger.Error("Server failed, initiating shutdown", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		ssrLogger.Info("Shutting down metrics server")
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			ssrLogger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	httpLifecycle.Shutdown(shutdownCtx)
	ssrLogger.Info("SSR server stopped")
}

const serverName = "SSRServer/1.0"

func newFastHTTPServer(handler fasthttp.RequestHandler, timeout time.Duration) *fasthttp.Server {
	return &fasthttp.Server{
		Handler:                      handler,
		Name:                         serverName,
		ReadTimeout:                  timeout,
		WriteTimeout:                 timeout,
		IdleTimeout:                  timeout,
		DisablePreParseMultipartForm: true,
		NoDefaultServerHeader:        true,
		NoDefaultDate:                true,
	}
}

type serverLifecycle struct {
	server  *fasthttp.Server
	name    string
	address string
	logger  *zap.Logger
}

func (s *serverLifecycle) StartWithErrorChan(errChan chan<- error) {
	go func() {
		if err := s.server.ListenAndServe(s.address); err != nil {
			s.logger.Error("Server error", zap.String("name", s.name), zap.Error(err))
			if errChan != nil {
				errChan <- fmt.Errorf("%s server failed: %w", s.name, err)
			}
		}
	}()
	s.logger.Info("Server started", zap.String("name", s.name), zap.String("address", s.address))
}

func (s *serverLifecycle) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server", zap.String("name", s.name))
	err := s.server.ShutdownWithContext(ctx)
	if err != nil {
		s.logger.Error("Server shutdown error", zap.String("name", s.name), zap.Error(err))
	}
	return err
}

// runConfigTest loads and validates the configuration without starting anything
func runConfigTest(configPath string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Println("Configuration validation FAILED:")
		fmt.Printf("- %s: %v\n", configPath, err)
		return 1
	}

	fmt.Printf("configuration file %s syntax is ok\n", configPath)

	if warnings := config.Warnings(cfg); len(warnings) > 0 {
		fmt.Println()
		fmt.Printf("Configuration warnings (%d):\n", len(warnings))
		for _, w := range warnings {
			fmt.Printf("- %s: %s\n", configPath, w)
		}
		fmt.Println()
	}

	fmt.Println("configuration test is successful")
	return 0
}
