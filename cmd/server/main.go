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

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"visitor-analytics/internal/analytics"
	"visitor-analytics/internal/cache"
	"visitor-analytics/internal/config"
	"visitor-analytics/internal/handlers"
	"visitor-analytics/internal/logger"
	"visitor-analytics/internal/metrics"
	"visitor-analytics/internal/report"
	"visitor-analytics/internal/repository"
)

// Version задается при сборке через -ldflags
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:          "visitor-analytics",
		Short:        "Visitor traffic metrics and occupancy reports",
		SilenceUsage: true,
	}

	root.AddCommand(
		serveCmd(),
		dashboardCmd(),
		versionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Compute dashboard metrics once and print them as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.engine.Dashboard(cmd.Context())
			if err != nil {
				return fmt.Errorf("compute dashboard: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(d)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}

// app зависимости, общие для команд. Жизненным циклом кэша владеет app.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	store    cache.Store
	bolt     *cache.BoltCache
	repo     *repository.SQLiteRepository
	engine   *analytics.Engine
	bucketer *report.Bucketer
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	repo, err := repository.NewSQLiteRepository(cfg.DatabasePath, cfg.RepositoryTimeout)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	a := &app{cfg: cfg, log: log, repo: repo}

	var backend cache.Store
	switch cfg.CacheBackend {
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTimeout)
		if err != nil {
			// Кэш только оптимизация: работаем напрямую с хранилищем
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, caching disabled")
			backend = cache.NopStore{}
		} else {
			log.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
			backend = rc
		}
	case "bolt":
		bc, err := cache.NewBoltCache(cfg.CacheDataDir)
		if err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("open bolt cache: %w", err)
		}
		a.bolt = bc
		backend = bc
	default:
		backend = cache.NopStore{}
	}

	a.store = cache.NewBreaker(backend, cache.BreakerConfig{
		FailureThreshold: uint32(cfg.CacheBreakerFailures),
		Timeout:          cfg.CacheBreakerTimeout,
	}, log)

	a.engine = analytics.NewEngine(repo, repo, a.store, analytics.Config{
		Sensitivity:          cfg.Sensitivity,
		TopManufacturersTTL:  cfg.TopManufacturersTTL,
		ManufacturerRowLimit: cfg.ManufacturerRowLimit,
		Location:             cfg.Location(),
	}, log)
	a.bucketer = report.NewBucketer(repo, log)

	return a, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close cache")
	}
	if err := a.repo.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close repository")
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	log.Info().Str("version", Version).Str("cache_backend", cfg.CacheBackend).
		Int("sensitivity", cfg.Sensitivity).Msg("visitor-analytics starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	var stats func() map[string]interface{}
	if sp, ok := a.store.(cache.StatsProvider); ok {
		stats = sp.GetStats
	}
	handler := handlers.NewHandler(a.engine, a.bucketer, a.store, a.repo, stats, log)

	mux := http.NewServeMux()
	mux.Handle("/", handler.Routes())
	mux.Handle("/prometheus", promhttp.Handler())

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if a.bolt != nil {
		go pruneCache(ctx, a.bolt, cfg.JanitorInterval, log)
	}
	if cfg.RefreshInterval > 0 {
		go refreshDashboard(ctx, a.engine, cfg.RefreshInterval, log)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped gracefully")
	return nil
}

// pruneCache периодически удаляет истекшие записи встроенного кэша
func pruneCache(ctx context.Context, bc *cache.BoltCache, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := bc.Prune()
			if err != nil {
				metrics.CacheOperations.WithLabelValues("prune", "error").Inc()
				log.Warn().Err(err).Msg("cache prune failed")
				continue
			}
			metrics.CacheOperations.WithLabelValues("prune", "success").Inc()
			log.Debug().Int("pruned", n).Msg("cache pruned")
		}
	}
}

// refreshDashboard периодически пересчитывает сводку: прогревает кэш
// и обновляет gauge-метрики Prometheus
func refreshDashboard(ctx context.Context, engine *analytics.Engine, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := engine.Dashboard(ctx); err != nil {
				log.Warn().Err(err).Msg("dashboard refresh failed")
			}
		}
	}
}
