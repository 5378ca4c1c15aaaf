package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"holdem-service/internal/api"
	"holdem-service/internal/config"
	"holdem-service/internal/repo"
	"holdem-service/internal/service"
	"holdem-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "path to config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load Config
	config.LoadConfig(configPath)
	conf := config.GlobalConfig

	// 2. Init Logger
	logger.InitLogger(conf.Server.Mode, conf.Server.LogLevel)
	defer logger.Sync()

	logger.Log.Info("Starting server...",
		zap.String("mode", conf.Server.Mode),
		zap.String("db", conf.Database.Driver),
		zap.Duration("turnTimeout", conf.Engine.TurnTimeout),
	)

	// 3. Init DB & Redis
	repo.InitDB()
	repo.InitRedis()

	// 3.5 Init Services, the watchdog starts here
	services := service.NewContainer(repo.DB, repo.RDB, conf.Engine)
	if err := services.Start(ctx); err != nil {
		logger.Log.Fatal("failed to start services", zap.Error(err))
	}

	// 4. Init Router
	if conf.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	api.RegisterRoutes(r, services)

	// 5. Start Server
	addr := fmt.Sprintf(":%s", conf.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		logger.Log.Info("Server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warn("Server shutdown error", zap.Error(err))
	}
}
