// Package main is the entrypoint for the showcase-go server.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/showcaselabs/showcase-go/internal/cache"
	"github.com/showcaselabs/showcase-go/internal/config"
	"github.com/showcaselabs/showcase-go/internal/httpclient"
	"github.com/showcaselabs/showcase-go/internal/identity"
	"github.com/showcaselabs/showcase-go/internal/inference"
	"github.com/showcaselabs/showcase-go/internal/server"
	"github.com/showcaselabs/showcase-go/internal/store"

	// Register cache drivers
	_ "github.com/showcaselabs/showcase-go/internal/cache/loader"

	// Register store drivers
	_ "github.com/showcaselabs/showcase-go/internal/store/memory"
	_ "github.com/showcaselabs/showcase-go/internal/store/sqlite"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	modeFlag := flag.String("mode", "", "Operating mode: prod or dev (overrides config)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	externalOrigin := flag.String("external-origin", "", "External origin (overrides config)")
	databaseDriver := flag.String("database-driver", "", "Database driver: memory or sqlite (overrides config)")
	dataDir := flag.String("data-dir", "", "Data directory for the sqlite driver (overrides config)")
	cacheDriver := flag.String("cache-driver", "", "Cache driver: memory or valkey (overrides config)")
	tlsMode := flag.String("tls-mode", "", "TLS mode: off, static, selfsigned, or acme (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: debug, info, warn, or error (overrides config)")
	adminUsername := flag.String("admin-username", "", "Bootstrap admin username (overrides config)")
	adminPassword := flag.String("admin-password", "", "Bootstrap admin password (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors (uses default level)
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Load config with precedence: mode preset -> TOML file -> CLI flags -> env
	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		ModeFlag:   *modeFlag,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:     listenAddr,
			ExternalOrigin: externalOrigin,
			DatabaseDriver: databaseDriver,
			DataDir:        dataDir,
			CacheDriver:    cacheDriver,
			TLSMode:        tlsMode,
			LoggingLevel:   loggingLevel,
			AdminUsername:  adminUsername,
			AdminPassword:  adminPassword,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Create logger with configured level
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Log effective config with secrets redacted
	logger.Info("effective configuration", "config", cfg.Redacted())

	// Create the persistence driver
	driver, err := store.New(&store.DriverConfig{
		Driver:  cfg.Database.Driver,
		DataDir: cfg.Database.DataDir,
	})
	if err != nil {
		logger.Error("failed to create store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	if err := driver.Init(context.Background()); err != nil {
		logger.Error("failed to initialize store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer driver.Close()
	logger.Info("store initialized", "driver", driver.Name())

	sessions, ok := driver.(store.SessionStore)
	if !ok {
		logger.Error("store driver does not implement sessions", "driver", driver.Name())
		os.Exit(1)
	}
	users, ok := driver.(store.UserStore)
	if !ok {
		logger.Error("store driver does not implement users", "driver", driver.Name())
		os.Exit(1)
	}
	projectStore, ok := driver.(store.ProjectStore)
	if !ok {
		logger.Error("store driver does not implement projects", "driver", driver.Name())
		os.Exit(1)
	}
	analyticsStore, ok := driver.(store.AnalyticsStore)
	if !ok {
		logger.Error("store driver does not implement analytics", "driver", driver.Name())
		os.Exit(1)
	}

	// Create cache (defaults to in-memory if not configured)
	// Passes driver-specific config from [cache.drivers.<driver>] section
	cacheName := cfg.Cache.Driver
	if cacheName == "" {
		cacheName = "memory"
	}
	cacheInstance, err := cache.New(cacheName, cfg.Cache.Drivers[cacheName])
	if err != nil {
		logger.Error("failed to create cache", "driver", cacheName, "error", err)
		os.Exit(1)
	}
	defer cacheInstance.Close()
	logger.Info("cache initialized", "driver", cacheName)

	// Bootstrap admin account
	userAuth := identity.NewUserAuth(cfg.Auth.BcryptCost)
	if err := identity.EnsureAdmin(
		context.Background(),
		users,
		userAuth,
		cfg.Auth.AdminUsername,
		cfg.Auth.AdminPassword,
		logger,
	); err != nil {
		logger.Error("failed to bootstrap admin", "error", err)
		os.Exit(1)
	}

	// Create the outbound HTTP client and reply generation client
	outbound := httpclient.New(&cfg.OutboundHTTP)
	completer := inference.NewClient(&cfg.Inference, outbound)

	deps := &server.Deps{
		Sessions:  sessions,
		Users:     users,
		Projects:  projectStore,
		Analytics: analyticsStore,
		Completer: completer,
		Cache:     cacheInstance,
	}

	srv, err := server.New(cfg, logger, deps)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("server started, press Ctrl+C to stop")

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
