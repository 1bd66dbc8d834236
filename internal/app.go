package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgellow/oauth-bench/internal/benchmark"
	"github.com/dgellow/oauth-bench/internal/config"
	"github.com/dgellow/oauth-bench/internal/log"
	"github.com/dgellow/oauth-bench/internal/provider"
	"github.com/dgellow/oauth-bench/internal/server"
	"github.com/dgellow/oauth-bench/internal/session"
	"github.com/dgellow/oauth-bench/internal/sink"
	"github.com/dgellow/oauth-bench/internal/timing"
)

const shutdownTimeout = 30 * time.Second

// App is the benchmarking relay with all dependencies built
type App struct {
	config     config.Config
	httpServer *server.HTTPServer
	registry   session.Registry
	cleanup    *session.CleanupManager
	sinks      sink.Multi
}

// New builds the relay: state registry, providers, sinks and HTTP routes
func New(ctx context.Context, cfg config.Config, version string) (*App, error) {
	log.LogInfoWithFields("app", "Building OAuth benchmark relay", map[string]any{
		"baseURL":   cfg.Server.BaseURL,
		"providers": len(cfg.Providers),
		"sinks":     len(cfg.Sinks),
	})

	providers, runner, sinks, err := setupBenchmark(ctx, cfg)
	if err != nil {
		return nil, err
	}

	registry, err := setupRegistry(ctx, cfg.Sessions)
	if err != nil {
		_ = sinks.Close()
		return nil, fmt.Errorf("failed to setup state registry: %w", err)
	}

	handler := server.NewRouter(server.RouterConfig{
		Name:           cfg.Server.Name,
		Version:        version,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Registry:       registry,
		Providers:      providers,
		Runner:         runner,
	})

	return &App{
		config:     cfg,
		httpServer: server.NewHTTPServer(handler, cfg.Server.Addr),
		registry:   registry,
		cleanup:    session.NewCleanupManager(registry, cfg.Sessions.CleanupInterval),
		sinks:      sinks,
	}, nil
}

// Run serves until a signal or server error, then shuts down gracefully
func (a *App) Run() error {
	log.LogInfoWithFields("app", "Starting OAuth benchmark relay", map[string]any{
		"addr": a.config.Server.Addr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := a.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	a.cleanup.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var shutdownReason string
	var runErr error
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("signal %v", sig)
		log.LogInfoWithFields("app", "Received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
	case err := <-errChan:
		shutdownReason = fmt.Sprintf("error: %v", err)
		runErr = err
		log.LogErrorWithFields("app", "Shutting down due to error", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("app", "Starting graceful shutdown", map[string]any{
		"reason":  shutdownReason,
		"timeout": shutdownTimeout.String(),
	})
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		log.LogErrorWithFields("app", "HTTP server shutdown error", map[string]any{
			"error": err.Error(),
		})
		runErr = errors.Join(runErr, err)
	}

	if err := a.Close(); err != nil {
		runErr = errors.Join(runErr, err)
	}

	log.LogInfoWithFields("app", "Application shutdown complete", map[string]any{
		"reason": shutdownReason,
	})
	return runErr
}

// Close stops the cleanup loop and releases the registry and sinks
func (a *App) Close() error {
	a.cleanup.Stop()
	return errors.Join(a.registry.Close(), a.sinks.Close())
}

// RunStandalone benchmarks every provider with configured long-lived
// tokens, without a browser login, and writes the records to the sinks
func RunStandalone(ctx context.Context, cfg config.Config) ([]benchmark.Record, error) {
	providers, runner, sinks, err := setupBenchmark(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			log.LogWarnWithFields("app", "Failed to close sinks", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	creds := make(map[string]benchmark.Credentials, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		creds[name] = benchmark.StandaloneCredentials(pc)
	}
	return runner.RunStandalone(ctx, providers.All(), creds)
}

// setupBenchmark builds the pieces shared by the relay and standalone mode
func setupBenchmark(ctx context.Context, cfg config.Config) (*provider.Set, *benchmark.Runner, sink.Multi, error) {
	providers, err := provider.NewSet(cfg.Providers)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to setup providers: %w", err)
	}

	sinks, err := sink.New(ctx, cfg.Sinks)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to setup sinks: %w", err)
	}

	client := timing.NewHTTPClient(cfg.HTTP.ConnectTimeout, cfg.HTTP.Timeout)
	var out benchmark.Sink
	if len(sinks) > 0 {
		out = sinks
	}
	return providers, benchmark.NewRunner(client, out), sinks, nil
}

// setupRegistry creates the state registry for the configured backend
func setupRegistry(ctx context.Context, cfg config.SessionConfig) (session.Registry, error) {
	switch cfg.Storage {
	case config.StorageRedis:
		if cfg.Redis == nil {
			return nil, fmt.Errorf("redis configuration is required")
		}
		log.LogInfoWithFields("session", "Using Redis state registry", map[string]any{
			"addr": cfg.Redis.Addr,
			"db":   cfg.Redis.DB,
		})
		return session.NewRedisRegistryFromOptions(session.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: string(cfg.Redis.Password),
			DB:       cfg.Redis.DB,
		}, cfg.TTL)
	case config.StorageFirestore:
		log.LogInfoWithFields("session", "Using Firestore state registry", map[string]any{
			"project":    cfg.GCPProject,
			"database":   cfg.FirestoreDatabase,
			"collection": cfg.FirestoreCollection,
		})
		return session.NewFirestoreRegistry(ctx, cfg.GCPProject, cfg.FirestoreDatabase, cfg.FirestoreCollection, cfg.TTL)
	case config.StorageMemory, "":
		log.LogInfoWithFields("session", "Using in-memory state registry", map[string]any{
			"ttl": cfg.TTL.String(),
		})
		return session.NewMemoryRegistry(cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported storage %q", cfg.Storage)
	}
}
