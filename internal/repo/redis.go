package repo

import (
	"context"

	"holdem-service/internal/config"
	"holdem-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var RDB *redis.Client

// InitRedis leaves RDB nil when no address is configured.
func InitRedis() {
	conf := config.GlobalConfig.Redis
	if conf.Addr == "" {
		logger.Log.Info("Redis disabled, hand events stay in-process")
		return
	}
	RDB = redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})

	_, err := RDB.Ping(context.Background()).Result()
	if err != nil {
		logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
}
