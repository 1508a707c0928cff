package main

import (
	"context"

	"github.com/genricoloni/nowplaying/internal/config"
	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/genricoloni/nowplaying/internal/engine"
	"github.com/genricoloni/nowplaying/internal/fetcher"
	"github.com/genricoloni/nowplaying/internal/monitor"
	"github.com/genricoloni/nowplaying/internal/processor"
	"github.com/genricoloni/nowplaying/internal/server"
	"github.com/genricoloni/nowplaying/internal/state"
	"github.com/spf13/afero"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AppOptions is the complete application graph
var AppOptions = fx.Options(
	// Logger configuration
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log.Named("fx")}
	}),

	// Provide dependencies
	fx.Provide(
		newViper,
		config.NewAppConfig,
		func(c *config.AppConfig) domain.Config { return c },
		newLogger,
		afero.NewOsFs,
		func() *state.Store { return state.NewStore() },
		monitor.NewProvider,
		newResolver,
		newProcessor,
		newWatcher,
		newServer,
	),

	// Lifecycle hooks
	fx.Invoke(registerHooks),
)

// newLogger creates the zap logger. Its level is held in an AtomicLevel so
// it can follow config file edits.
func newLogger(cfg *config.AppConfig) (*zap.Logger, zap.AtomicLevel, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		cfg.Warnings = append(cfg.Warnings, "invalid log.level "+cfg.LogLevel+", using info")
		level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.LogDevelopment {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level

	logger, err := zcfg.Build()
	if err != nil {
		return nil, level, err
	}
	return logger, level, nil
}

func newResolver(lc fx.Lifecycle, logger *zap.Logger, cfg *config.AppConfig, fs afero.Fs) domain.Resolver {
	r := fetcher.NewArtworkResolver(logger.Named("artwork"), fs, fetcher.ResolverOptions{
		HTTPTimeout: cfg.ArtHTTPTimeout,
		MaxBytes:    cfg.ArtMaxBytes,
		CacheTTL:    cfg.ArtCacheTTL,
	})
	lc.Append(fx.StopHook(r.Close))
	return r
}

func newProcessor(logger *zap.Logger, cfg *config.AppConfig) domain.ArtworkProcessor {
	return processor.NewResizeProcessor(logger.Named("processor"), cfg.ArtMaxDim)
}

func newWatcher(
	logger *zap.Logger,
	cfg domain.Config,
	provider domain.Provider,
	resolver domain.Resolver,
	proc domain.ArtworkProcessor,
	store *state.Store,
) *engine.Watcher {
	return engine.NewWatcher(logger.Named("watcher"), cfg, provider, resolver, proc, store)
}

func newServer(logger *zap.Logger, cfg domain.Config, store *state.Store, fs afero.Fs) *server.Server {
	return server.NewServer(logger.Named("http"), cfg, store, fs)
}

// registerHooks sets up application lifecycle hooks.
// fx stops hooks in reverse order: server, watcher, provider.
func registerHooks(
	lc fx.Lifecycle,
	logger *zap.Logger,
	level zap.AtomicLevel,
	cfg *config.AppConfig,
	provider domain.Provider,
	watcher *engine.Watcher,
	srv *server.Server,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			cfg.Log(logger)
			if cfg.WatchLogLevel(func(raw string) {
				lvl, err := zapcore.ParseLevel(raw)
				if err != nil {
					logger.Warn("Ignoring invalid log level from config file", zap.String("level", raw))
					return
				}
				if lvl != level.Level() {
					level.SetLevel(lvl)
					logger.Info("Log level changed", zap.Stringer("level", lvl))
				}
			}) {
				logger.Debug("Watching config file for log level changes")
			}
			return provider.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return provider.Stop(ctx)
		},
	})

	lc.Append(fx.Hook{
		OnStart: watcher.Start,
		OnStop:  watcher.Stop,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := srv.Start(ctx); err != nil {
				return err
			}
			logger.Info("nowplaying daemon started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")
			return srv.Stop(ctx)
		},
	})
}
