package bootstrap

import (
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gatewatch/cache"
	"gatewatch/config"
	"gatewatch/geo"
)

// InitLogger initializes the zap logger with colored console output.
func InitLogger() (*zap.Logger, *zap.SugaredLogger, error) {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)

	level := zapcore.InfoLevel
	if raw := os.Getenv("GATEWATCH_LOG_LEVEL"); raw != "" {
		if parsed, err := zapcore.ParseLevel(raw); err == nil {
			level = parsed
		}
	}

	core := zapcore.NewCore(
		consoleEncoder,
		zapcore.AddSync(os.Stdout),
		level,
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, logger.Sugar(), nil
}

// initCache builds the configured cache backend. The redis client is
// returned so the caller can close it on shutdown; it is nil for the
// memory backend.
func initCache(cfg *config.Config, sugar *zap.SugaredLogger) (cache.Store, *redis.Client, error) {
	switch cfg.Cache.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		sugar.Infow("cache backend", "backend", "redis", "addr", cfg.Cache.Redis.Addr)
		return cache.NewRedisStore(rdb, cfg.Cache.Redis.Prefix), rdb, nil
	case "memory":
		sugar.Infow("cache backend", "backend", "memory", "max_entries", cfg.Cache.MaxEntries)
		return cache.NewMemoryStore(cfg.Cache.MaxEntries, cfg.Cache.DefaultTTL), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// initPipeline builds the geo enrichment pipeline with the configured
// provider chain.
func initPipeline(cfg *config.Config, store cache.Store, sugar *zap.SugaredLogger) (*geo.Pipeline, error) {
	providers := []geo.Provider{
		geo.NewIPAPIProvider(cfg.Geo.Providers.PrimaryURL),
		geo.NewIPWhoProvider(cfg.Geo.Providers.SecondaryURL),
		geo.NewIPInfoProvider(cfg.Geo.Providers.TertiaryURL, cfg.Geo.Providers.TertiaryToken),
	}

	pipeline, err := geo.NewPipeline(geo.Config{
		Enabled:           cfg.Geo.Enabled,
		RolloutPercentage: cfg.Geo.RolloutPercentage,
		CacheTTL:          cfg.Geo.CacheTTL,
		SoftBudget:        cfg.Geo.SoftBudget,
		TargetSuccessRate: cfg.Geo.TargetSuccessRate,
	}, providers, store, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize enrichment pipeline: %w", err)
	}
	return pipeline, nil
}
