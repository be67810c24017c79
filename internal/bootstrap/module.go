package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"capatrack/internal/bootstrap/config"
	"capatrack/internal/bootstrap/database"
	"capatrack/internal/bootstrap/logging"
	cacheinfra "capatrack/internal/infrastructure/cache"
	"capatrack/internal/infrastructure/notify"
	sqliterepo "capatrack/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "capatrack/internal/infrastructure/persistence/sqlite/uow"
	"capatrack/internal/ports"
	"capatrack/internal/usecase/tracker"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewTrackerRepository,
			fx.As(new(ports.TrackerRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(providePublisher),
	fx.Provide(tracker.NewService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func providePublisher(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (ports.HistoryPublisher, error) {
	if cfg.NATS.URL == "" {
		return notify.Disabled{}, nil
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	pub, err := notify.NewNATSPublisher(cfg.NATS.URL)
	if err != nil {
		return nil, err
	}

	logging.Info(logCtx, "history publisher connected", slog.String("nats_url", cfg.NATS.URL))

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			pub.Close()
			return nil
		},
	})

	return pub, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}
