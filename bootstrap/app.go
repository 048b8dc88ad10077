// Package bootstrap assembles the gatewatch application from its
// components and owns the process lifecycle.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"gatewatch/api"
	"gatewatch/cache"
	"gatewatch/client"
	"gatewatch/config"
	"gatewatch/correlate"
	"gatewatch/geo"
	"gatewatch/search"
)

// App represents the gatewatch service with all its components.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	Cache    cache.Store
	Client   *client.Client
	Engine   *correlate.Engine
	Advisor  *correlate.Advisor
	Pipeline *geo.Pipeline
	Registry *api.Registry
	Server   *api.Server

	redisClient *redis.Client
	shutdownCh  chan struct{}
}

// NewApp creates the application and initializes all components.
func NewApp(_ context.Context, configPath string) (*App, error) {
	app := &App{shutdownCh: make(chan struct{})}

	logger, sugar, err := InitLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger = logger
	app.Sugar = sugar

	sugar.Info("gatewatch starting...")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	store, redisClient, err := initCache(cfg, sugar)
	if err != nil {
		return nil, err
	}
	app.Cache = store
	app.redisClient = redisClient

	retry := client.NewRetryManager(
		cfg.API.RetryBudget,
		cfg.API.MaxAttempts,
		cfg.API.MinAttemptFloor,
		sugar,
	)
	app.Client = client.New(client.Options{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout,
		Retry:   retry,
	}, sugar)

	catalog := search.MustCatalog()
	router := search.NewRouter()
	validator := search.NewValidator()

	app.Engine = correlate.NewEngine(router, validator, catalog, app.Client, sugar)
	app.Advisor = correlate.NewAdvisor(router, catalog, sugar)

	pipeline, err := initPipeline(cfg, store, sugar)
	if err != nil {
		return nil, err
	}
	app.Pipeline = pipeline

	registry := api.NewRegistry(sugar)
	deps := &api.Dependencies{
		Client:    app.Client,
		Engine:    app.Engine,
		Advisor:   app.Advisor,
		Pipeline:  pipeline,
		Validator: validator,
		Router:    router,
		Limits: api.Limits{
			SearchMax: cfg.Limits.SearchMax,
			AlarmsMax: cfg.Limits.AlarmsMax,
		},
		Logger: sugar,
	}
	if err := api.RegisterTools(registry, deps); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	app.Registry = registry

	app.Server = api.NewServer(registry, api.ServerOptions{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}, sugar)

	return app, nil
}

// Start launches the HTTP server.
func (a *App) Start(_ context.Context) error {
	go func() {
		if err := a.Server.ListenAndServe(); err != nil {
			a.Sugar.Errorw("http server stopped", "error", err.Error())
			close(a.shutdownCh)
		}
	}()
	return nil
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	select {
	case <-c:
	case <-a.shutdownCh:
	}
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown() {
	a.Sugar.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			a.Sugar.Warnw("http server shutdown", "error", err.Error())
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.Sugar.Warnw("redis close", "error", err.Error())
		}
	}

	a.Sugar.Info("Shutdown complete")
	_ = a.Logger.Sync()
}
