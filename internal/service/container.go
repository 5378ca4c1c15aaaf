package service

import (
	"context"

	"holdem-service/internal/config"
	"holdem-service/internal/service/game"
	"holdem-service/internal/service/table"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Table    *table.Service
	Game     *game.Service
	Watchdog *game.Watchdog
}

func NewContainer(db *gorm.DB, rdb *redis.Client, cfg config.EngineConfig) *Container {
	tables := table.NewService(db)
	games := game.NewService(db, tables,
		game.WithConfig(game.Config{TurnTimeout: cfg.TurnTimeout}),
		game.WithNotifier(game.NewNotifier(rdb)),
	)
	return &Container{
		Table:    tables,
		Game:     games,
		Watchdog: game.NewWatchdog(games, cfg.WatchdogInterval, cfg.WatchdogBatch),
	}
}

func (c *Container) Start(ctx context.Context) error {
	c.Watchdog.Start(ctx)
	return nil
}
