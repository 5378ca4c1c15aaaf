package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is a no-op until InitLogger runs, so packages can log from tests.
var Log = zap.NewNop()

func InitLogger(mode, level string) {
	var config zap.Config

	if mode == "release" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if level != "" {
		if lvl, err := zap.ParseAtomicLevel(level); err == nil {
			config.Level = lvl
		}
	}

	config.OutputPaths = []string{"stdout"}
	var err error
	Log, err = config.Build()
	if err != nil {
		os.Exit(1)
	}
	zap.ReplaceGlobals(Log)
}

// Sync flushes buffered entries; stdout sync errors are ignored.
func Sync() {
	_ = Log.Sync()
}
