package repo

import (
	"fmt"
	"log"
	"strings"

	"holdem-service/internal/config"
	"holdem-service/internal/model"
	"holdem-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB() {
	conf := config.GlobalConfig.Database
	dialector, err := Dialector(conf.Driver, conf.DSN)
	if err != nil {
		logger.Log.Fatal("Unsupported database driver", zap.String("driver", conf.Driver), zap.Error(err))
	}

	DB, err = gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		logger.Log.Fatal("Failed to connect to database",
			zap.String("driver", conf.Driver),
			zap.Error(err),
		)
	}

	if err := DB.AutoMigrate(model.All()...); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
}

func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch strings.ToLower(driver) {
	case "", "postgres", "postgresql":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlite", "sqlite3":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unknown driver %q", driver)
	}
}
