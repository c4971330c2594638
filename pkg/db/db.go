package db

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/ancloraflow/internal/config"
	obslogger "github.com/smallbiznis/ancloraflow/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	gormprom "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(FromAppConfig),
	fx.Provide(NewGorm),
)

type Params struct {
	fx.In

	Lc  fx.Lifecycle `optional:"true"`
	Cfg Config
	Log *zap.Logger
}

// NewGorm opens the configured database with tracing and metrics plugins registered.
func NewGorm(p Params) (*gorm.DB, error) {
	dialector, err := Dialect(p.Cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:         obslogger.NewGormLogger(obslogger.DefaultGormLoggerConfig()),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(p.Cfg.Name))); err != nil {
		return nil, err
	}
	if err := conn.Use(gormprom.New(gormprom.Config{
		DBName:          p.Cfg.Name,
		RefreshInterval: 15,
		StartServer:     false,
	})); err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(p.Cfg.MaxIdleConn)
	sqlDB.SetMaxOpenConns(p.Cfg.MaxOpenConn)
	sqlDB.SetConnMaxLifetime(p.Cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(p.Cfg.ConnMaxIdleTime)

	if p.Lc != nil {
		p.Lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				p.Log.Info("closing database connections")
				return sqlDB.Close()
			},
		})
	}

	p.Log.Info("database connected",
		zap.String("type", p.Cfg.Type),
		zap.String("name", p.Cfg.Name),
	)
	return conn, nil
}

// NewTest opens a private in-memory SQLite database.
// Each call gets its own named database so tests do not share state.
func NewTest() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", ulid.Make().String())
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         obslogger.NewGormLogger(obslogger.GormLoggerConfig{Level: gormlogger.Silent}),
		TranslateError: true,
	})
}

// FromConfig is used by CLI commands that run outside the fx graph.
func FromConfig(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	return NewGorm(Params{Cfg: FromAppConfig(cfg), Log: log})
}
