package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"pomflow/backend/internal/api"
	"pomflow/backend/internal/auth"
	"pomflow/backend/internal/config"
	"pomflow/backend/internal/logging"
	"pomflow/backend/internal/mcp"
	"pomflow/backend/internal/pipeline"
	"pomflow/backend/internal/repository"
	"pomflow/backend/internal/services"
	"pomflow/backend/internal/tls"
)

func main() {
	ctx := context.Background()

	// Parse command line flags
	configFile := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Configuration loading failed: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Logger initialization failed: %v", err)
	}
	defer logger.Close()

	logger.Info("Configuration loaded",
		"environment", cfg.Environment,
		"backend_url", cfg.Backend.URL,
		"okta_domain", cfg.Auth.OktaDomain,
		"swagger_client_id", cfg.Auth.SwaggerClientID,
		"config_file", viper.ConfigFileUsed(),
	)

	if cfg.Auth.SwaggerClientID != "" && cfg.Auth.SwaggerClientID == cfg.Auth.ClientID {
		logger.Warn("Swagger client ID matches the backend client ID; PKCE login from /docs will fail if the backend app requires a secret")
	}

	logger.Info("Starting pomflow pipeline service")

	// Snapshot history
	snapshots, closeStore, err := initSnapshotStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Snapshot store initialization failed: %v", err)
	}
	defer closeStore()

	// Service layer
	backend := services.NewHTTPBackendClient(cfg.Backend.URL, cfg.Backend.Timeout)
	workflow := services.NewWorkflowService(backend, logger)
	evaluator := pipeline.NewEvaluator(backend, logger)

	logger.Info("Service layer initialized")

	// Create Echo server
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.ErrorHandler(logger)

	// Middleware
	e.Use(otelecho.Middleware("pomflow"))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Initialize authentication
	authz, err := auth.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize auth", "error", err)
		log.Fatalf("auth initialization failed: %v", err)
	}
	if authz.Bypassed() {
		logger.Warn("Authentication bypassed (DEV mode)", "user", auth.DevEmail)
	}

	// Register auth handlers
	e.GET("/login", echo.WrapHandler(http.HandlerFunc(authz.LoginHandler)))
	e.GET("/auth/callback", echo.WrapHandler(http.HandlerFunc(authz.CallbackHandler)))
	e.GET("/logout", echo.WrapHandler(http.HandlerFunc(authz.LogoutHandler)))
	e.GET("/healthz", api.HandleHealth)

	// Backend pass-through
	proxy, err := api.NewBackendProxy(cfg.Backend.URL, logger)
	if err != nil {
		log.Fatalf("proxy initialization failed: %v", err)
	}
	e.Any("/api/*", echo.WrapHandler(proxy), authz.Middleware())

	// Pipeline endpoints
	pipelineServer := api.NewServer(evaluator, snapshots, logger)
	pipelineServer.HistoryLimit = cfg.Pipeline.HistoryLimit
	pipelineServer.PollInterval = cfg.Pipeline.PollInterval
	pipelineServer.RegisterRoutes(e.Group("/pipeline", authz.Middleware()))

	logger.Info("REST API handlers mounted")

	// Mount MCP protocol handlers
	mcpServer := mcp.NewServer(evaluator, workflow, logger, repository.Recorder(snapshots, logger))
	mcpServer.PollInterval = cfg.Pipeline.PollInterval
	mcpServer.WaitTimeout = cfg.Pipeline.WaitTimeout
	mcp.MountHTTPHandlers(e, mcpServer.GetMCPServer(), authz.Middleware())

	logger.Info("MCP protocol handlers mounted")

	// expose OpenAPI spec (with runtime substitution) and Swagger UI
	e.GET("/openapi.yaml", echo.WrapHandler(api.SpecHandler(cfg.Auth.OktaDomain)))
	e.GET("/docs", echo.WrapHandler(api.SwaggerHandler(cfg.Auth.OktaDomain, cfg.Auth.SwaggerClientID)))
	e.GET("/docs/oauth2-redirect.html", echo.WrapHandler(http.HandlerFunc(api.OAuthRedirectHandler)))

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      e,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", server.Addr, "tls", cfg.TLS.Enable)
		if !cfg.TLS.Enable {
			serverErrors <- server.ListenAndServe()
			return
		}
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			serverErrors <- errors.New("TLS enabled but cert/key file not provided")
			return
		}
		if len(cfg.TLS.Hostnames) > 0 {
			created, err := tls.EnsureCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames)
			if err != nil {
				serverErrors <- fmt.Errorf("failed to generate self-signed cert: %w", err)
				return
			}
			if created {
				logger.Info("Generated self-signed certificate", "cert_file", cfg.TLS.CertFile, "hostnames", cfg.TLS.Hostnames)
			}
		}
		serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	}()

	// Wait for shutdown signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-shutdown:
		logger.Info("Shutdown signal received", "signal", sig.String())

		// Create shutdown context with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}

		logger.Info("Server stopped gracefully")
	}
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	if cfg.Log.Dir != "" {
		return logging.NewFileLogger(cfg.Log.Dir, cfg.Log.Level)
	}
	return logging.New(os.Stdout, cfg.Log.Level), nil
}

// initSnapshotStore returns the Postgres store when a database is configured
// and the in-memory store otherwise.
func initSnapshotStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (repository.SnapshotStore, func(), error) {
	if !cfg.HasDatabase() {
		logger.Info("No database configured, keeping snapshots in memory", "per_project", cfg.Pipeline.HistoryLimit)
		return repository.NewMemorySnapshotStore(cfg.Pipeline.HistoryLimit), func() {}, nil
	}

	pool, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	store := repository.NewPostgresSnapshotStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info("Database connected", "host", cfg.DB.Host, "name", cfg.DB.Name)
	return store, pool.Close, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*pgxpool.Pool, error) {
	logger.Debug("Initializing database connection")

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
