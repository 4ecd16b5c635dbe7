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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noemisales1009/Round-Juju/internal/config"
	"github.com/noemisales1009/Round-Juju/internal/domain/checklist"
	"github.com/noemisales1009/Round-Juju/internal/domain/task"
	"github.com/noemisales1009/Round-Juju/internal/platform/auth"
	"github.com/noemisales1009/Round-Juju/internal/platform/clock"
	"github.com/noemisales1009/Round-Juju/internal/platform/db"
	"github.com/noemisales1009/Round-Juju/internal/platform/middleware"
	"github.com/noemisales1009/Round-Juju/internal/platform/telemetry"
	"github.com/noemisales1009/Round-Juju/internal/platform/websocket"
	"github.com/noemisales1009/Round-Juju/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:          "rounds-server",
		Short:        "Ward rounds task and checklist API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tasksCmd())
	rootCmd.AddCommand(checklistCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, db.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
		Schema:      cfg.DBSchema,
	})
}

func retryPolicy(cfg *config.Config) db.RetryPolicy {
	return db.RetryPolicy{
		MaxAttempts:  cfg.DBRetryAttempts,
		InitialDelay: cfg.DBRetryDelay,
		Timeout:      cfg.DBQueryTimeout,
	}
}

// loadCatalog prefers CATALOG_FILE and falls back to the seeded tables.
func loadCatalog(ctx context.Context, cfg *config.Config, q db.Querier) (*checklist.Catalog, error) {
	if cfg.CatalogFile != "" {
		return checklist.LoadCatalogFile(cfg.CatalogFile)
	}
	return checklist.LoadCatalog(ctx, q, retryPolicy(cfg))
}

// services is everything the HTTP layer and the one-shot commands share.
type services struct {
	catalog   *checklist.Catalog
	tasks     *task.Service
	checklist *checklist.Service
}

func newServices(q db.Querier, catalog *checklist.Catalog, clk clock.Clock, retry db.RetryPolicy) *services {
	return &services{
		catalog:   catalog,
		tasks:     task.NewService(task.NewTaskRepoPG(q, retry), catalog, clk),
		checklist: checklist.NewService(checklist.NewAnswerRepoPG(q, retry), catalog, clk),
	}
}

func bootstrap(ctx context.Context, cfg *config.Config, clk clock.Clock) (*pgxpool.Pool, *services, error) {
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	catalog, err := loadCatalog(ctx, cfg, pool)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("load catalog: %w", err)
	}
	return pool, newServices(pool, catalog, clk, retryPolicy(cfg)), nil
}

// newRouter builds the Echo instance with global middleware, health checks,
// metrics and every API route.
func newRouter(cfg *config.Config, logger zerolog.Logger, health db.Pinger, svcs *services, hub *websocket.Hub, metrics *telemetry.Provider) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
	}))

	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		logger.Warn().Msg("AUTH_SIGNING_KEY not set, every request runs as the development admin")
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(health))
	e.GET("/metrics", metrics.Handler())

	api := e.Group("/api/v1")
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	api.Use(middleware.RequestTimeout(30 * time.Second))

	task.NewHandler(svcs.tasks).RegisterRoutes(api)
	checklist.NewHandler(svcs.checklist).RegisterRoutes(api)
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(api)

	return e
}

func runServer() error {
	cfg, err := loadConfig()
	logger := newLogger(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid timezone")
	}
	clk := clock.NewSystem(loc)

	ctx := context.Background()
	pool, svcs, err := bootstrap(ctx, cfg, clk)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	defer pool.Close()
	logger.Info().
		Int("categories", len(svcs.catalog.Categories())).
		Str("timezone", loc.String()).
		Msg("connected to database")

	hub := websocket.NewHub(logger)
	metrics := telemetry.NewProvider("rounds-server", version)
	metrics.GaugeFunc("rounds_ws_clients", "Connected WebSocket clients.", func() float64 {
		return float64(hub.ClientCount())
	})
	metrics.GaugeFunc("db_pool_acquired_connections", "Database connections in use.", func() float64 {
		return float64(pool.Stat().AcquiredConns())
	})
	metrics.GaugeFunc("db_pool_idle_connections", "Idle database connections.", func() float64 {
		return float64(pool.Stat().IdleConns())
	})

	publisher := metrics.CountEvents(hub)
	svcs.tasks.SetPublisher(publisher)
	svcs.checklist.SetPublisher(publisher)

	e := newRouter(cfg, logger, pool, svcs, hub, metrics)

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// -- migrate --

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			schema := schemaFlag(cmd, cfg)

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running migrations on schema: %s\n", schema)
			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(out, "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "", "Target schema (defaults to DB_SCHEMA)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			schema := schemaFlag(cmd, cfg)

			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), schema, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("schema", "", "Target schema (defaults to DB_SCHEMA)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func schemaFlag(cmd *cobra.Command, cfg *config.Config) string {
	if s, _ := cmd.Flags().GetString("schema"); s != "" {
		return s
	}
	return cfg.DBSchema
}
