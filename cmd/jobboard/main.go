package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ishworii/jobboard/internal/adapter/httpserver"
	"github.com/ishworii/jobboard/internal/adapter/metrics"
	"github.com/ishworii/jobboard/internal/adapter/redis"
	"github.com/ishworii/jobboard/internal/adapter/sqlite"
	"github.com/ishworii/jobboard/internal/adapter/websocket"
	"github.com/ishworii/jobboard/internal/app"
	"github.com/ishworii/jobboard/internal/backend"
	"github.com/ishworii/jobboard/internal/domain"
	"github.com/ishworii/jobboard/internal/gateway"
	"github.com/ishworii/jobboard/internal/navigation"
	"github.com/ishworii/jobboard/internal/platform/config"
	"github.com/ishworii/jobboard/internal/platform/crypto"
	"github.com/ishworii/jobboard/internal/platform/logging"
	"github.com/ishworii/jobboard/internal/querycache"
	"github.com/ishworii/jobboard/internal/session"
)

// tokenBackend is a persisted token store plus its lifecycle hooks.
type tokenBackend struct {
	store domain.TokenStore
	ping  func(ctx context.Context) error
	close func() error
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupCipher(cfg *config.Config) crypto.Cipher {
	if cfg.TokenEncryptionKey == "" {
		return crypto.NoopCipher{}
	}
	c, err := crypto.NewAESGCM(cfg.TokenEncryptionKey)
	if err != nil {
		slog.Error("Failed to create token cipher", "error", err)
		os.Exit(1)
	}
	return c
}

func setupTokenStore(ctx context.Context, cfg *config.Config, redisMetrics *metrics.RedisMetrics) tokenBackend {
	switch cfg.TokenStore {
	case config.TokenStoreSQLite:
		db, err := sqlite.Open(cfg.TokenStorePath)
		if err != nil {
			slog.Error("Failed to open token database", "path", cfg.TokenStorePath, "error", err)
			os.Exit(1)
		}
		store, err := sqlite.NewTokenStore(db)
		if err != nil {
			slog.Error("Failed to prepare token database", "error", err)
			os.Exit(1)
		}
		return tokenBackend{store: store, ping: store.Ping, close: store.Close}

	case config.TokenStoreRedis:
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		client.AddHook(redis.NewMetricsHook(redisMetrics))
		store := redis.NewTokenStore(client, cfg.RedisKeyPrefix)
		return tokenBackend{store: store, ping: store.Ping, close: client.Close}

	default:
		slog.Warn("Using in-memory token store, sessions will not survive a restart")
		return tokenBackend{
			store: session.NewMemoryTokenStore(),
			ping:  func(context.Context) error { return nil },
			close: func() error { return nil },
		}
	}
}

func runGracefulShutdown(srv *httpserver.Server, svc *app.Service, hub *websocket.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		hub.Stop()
		svc.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "api", cfg.APIBaseURL)

	registry := metrics.NewRegistry()
	gatewayMetrics := metrics.NewGatewayMetrics(registry)
	cacheMetrics := metrics.NewCacheMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)
	wsMetrics := metrics.NewWebSocketMetrics(registry)
	redisMetrics := metrics.NewRedisMetrics(registry)

	gw, err := gateway.New(gateway.Config{
		BaseURL:       cfg.APIBaseURL,
		Timeout:       cfg.HTTPTimeout,
		RateLimit:     cfg.GatewayRateLimit,
		RateBurst:     cfg.GatewayRateBurst,
		RetryAttempts: cfg.GatewayRetries,
		RetryBackoff:  cfg.GatewayRetryBackoff,
	}, gateway.WithMetrics(gatewayMetrics), gateway.WithClock(clock))
	if err != nil {
		slog.Error("Failed to create gateway", "error", err)
		os.Exit(1)
	}

	tokens := setupTokenStore(context.Background(), cfg, redisMetrics)
	defer func() {
		if err := tokens.close(); err != nil {
			slog.Error("Failed to close token store", "error", err)
		}
	}()

	authSvc := backend.NewAuthService(gw)
	jobSvc := backend.NewJobService(gw)
	appSvc := backend.NewApplicationService(gw, jobSvc)

	sealed := session.NewSealedTokenStore(tokens.store, setupCipher(cfg))
	sessions := session.NewStore(authSvc, sealed, clock,
		session.WithLogoutOnUnauthorized(cfg.LogoutOnUnauthorized))

	cache := querycache.New(querycache.Config{
		StaleTime: cfg.CacheStaleTime,
		Retention: cfg.CacheRetention,
	}, clock, cacheMetrics)

	svc := app.NewService(sessions, cache, authSvc, jobSvc, appSvc, cfg.CacheEvictionInterval)

	initCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	sessions.Initialize(initCtx)
	cancel()

	hub := websocket.NewHub(cache, wsMetrics)
	sessions.OnSessionEnd(func(context.Context) { hub.DisconnectAll() })

	srv := httpserver.NewServer(cfg, svc, navigation.DefaultTable(), hub,
		websocket.NewCheckOrigin(cfg.AllowedOrigin, !cfg.IsProduction()),
		httpserver.WithMetrics(registry, httpMetrics),
		httpserver.WithHealthChecks(httpserver.HealthCheck{Name: "token_store", Check: tokens.ping}),
	)

	done := runGracefulShutdown(srv, svc, hub)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
