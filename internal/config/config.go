package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Engine   EngineConfig   `mapstructure:"engine"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	Mode     string `mapstructure:"mode"` // debug, release
	// LogLevel overrides the mode's default zap level, e.g. "warn".
	LogLevel string `mapstructure:"logLevel"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres, mysql, sqlite
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig with an empty Addr disables cross-node hand events.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type EngineConfig struct {
	TurnTimeout      time.Duration `mapstructure:"turnTimeout"`
	WatchdogInterval time.Duration `mapstructure:"watchdogInterval"`
	WatchdogBatch    int           `mapstructure:"watchdogBatch"`
}

var GlobalConfig *Config

func LoadConfig(path string) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("engine.turnTimeout", "30s")
	viper.SetDefault("engine.watchdogInterval", "1s")
	viper.SetDefault("engine.watchdogBatch", 100)

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file, %s", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}
	GlobalConfig = &cfg
}
