// Package app builds and holds the long-lived services, acting as a dependency
// injection container for the CLI and the HTTP facade.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/douban-harvester/internal/api"
	"github.com/JakeFAU/douban-harvester/internal/clock/system"
	"github.com/JakeFAU/douban-harvester/internal/config"
	"github.com/JakeFAU/douban-harvester/internal/detector"
	"github.com/JakeFAU/douban-harvester/internal/douban"
	collyfetcher "github.com/JakeFAU/douban-harvester/internal/fetcher/colly"
	"github.com/JakeFAU/douban-harvester/internal/id/uuid"
	"github.com/JakeFAU/douban-harvester/internal/logging"
	"github.com/JakeFAU/douban-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/douban-harvester/internal/session"
	"github.com/JakeFAU/douban-harvester/internal/storage/memory"
)

// App contains the application's dependencies.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	watcher *config.Watcher
	cache   *memory.ResultCache
	client  *douban.Client
	api     *api.Server
}

// Build loads configuration from path and wires every component.
func Build(path string) (*App, error) {
	watcher, err := config.NewWatcher(path, nil)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	cfg := watcher.Config()
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	watcher.SetLogger(logger.Named("config"))

	return New(cfg, watcher, logger)
}

// New wires the components from an already loaded configuration. settings
// supplies live session changes; nil means the configuration is static.
func New(cfg config.Config, settings douban.SettingsSource, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings == nil {
		settings = douban.NewStaticSettings(cfg.Settings())
	}
	logger.Info("Building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.Bool("avoid_risk_control", cfg.Douban.AvoidRiskControl),
		zap.Bool("cookie_configured", cfg.Douban.Cookie != ""),
	)

	store, err := session.NewStore(cfg.Douban.CookieDomain, logger.Named("session"))
	if err != nil {
		return nil, fmt.Errorf("session store init failed: %w", err)
	}
	logger.Debug("Session store ready", zap.String("cookie_domain", store.Domain()))
	clock := system.New()
	cache := memory.NewResultCache(clock)
	fetch := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.Timeout(),
		Jar:       store,
		Classifier: detector.New(detector.Config{
			Hosts:     cfg.Detector.BlockHosts,
			Markers:   cfg.Detector.BlockMarkers,
			Selectors: cfg.Detector.BlockSelectors,
		}),
		Logger: logger.Named("fetcher"),
	})
	limiter := ratelimit.New(ratelimit.Config{
		Clock:  clock,
		Logger: logger.Named("ratelimit"),
	})

	client, err := douban.New(douban.Config{
		BaseURL:            cfg.Douban.BaseURL,
		MovieBaseURL:       cfg.Douban.MovieBaseURL,
		SearchTTL:          cfg.Cache.SearchTTL,
		CelebritySearchTTL: cfg.Cache.CelebritySearchTTL,
		DetailTTL:          cfg.Cache.DetailTTL,
	}, douban.Deps{
		Fetcher:  fetch,
		Limiter:  limiter,
		Cache:    cache,
		Session:  store,
		Settings: settings,
		Logger:   logger.Named("douban"),
	})
	if err != nil {
		return nil, fmt.Errorf("douban client init failed: %w", err)
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		cache:  cache,
		client: client,
		api:    api.NewServer(client, logger.Named("api"), api.Options{IDs: uuid.New()}),
	}
	if w, ok := settings.(*config.Watcher); ok {
		a.watcher = w
	}
	return a, nil
}

// Client returns the lookup client.
func (a *App) Client() *douban.Client {
	return a.client
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Handler returns the HTTP facade.
func (a *App) Handler() http.Handler {
	return a.api.Handler()
}

// Run serves the HTTP facade and blocks until ctx is canceled or a signal
// arrives. It also watches the config file and sweeps the cache.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.watcher != nil {
		a.watcher.Start()
	}
	go a.sweep(ctx, a.cfg.Cache.SweepInterval)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("Shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Server shutdown error", zap.Error(err))
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// sweep drops expired cache entries every interval. Zero disables it.
func (a *App) sweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.cache.Sweep(); n > 0 {
				a.logger.Debug("Swept expired cache entries", zap.Int("count", n))
			}
		}
	}
}

// Close flushes the logger.
func (a *App) Close() {
	a.logger.Debug("Shutdown complete")
	// Sync returns EINVAL for terminal outputs.
	_ = a.logger.Sync()
}
