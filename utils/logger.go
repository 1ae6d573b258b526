package utils

import (
	"os"

	"github.com/mahdichowdhury714-hub/passportkit/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 在 InitLogger 之前为空操作日志器
var Logger = zap.NewNop()

func InitLogger(mode string, logCfg *config.LogConfig) error {
	var cfg zap.Config

	if mode == "release" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := cfg.Build()
	if err != nil {
		return err
	}

	// 额外写入滚动日志文件
	if logCfg != nil && logCfg.File != "" {
		fileEncoderCfg := zap.NewProductionEncoderConfig()
		fileEncoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(fileEncoderCfg),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   logCfg.File,
				MaxSize:    logCfg.MaxSizeMB,
				MaxBackups: logCfg.MaxBackups,
				MaxAge:     logCfg.MaxAgeDays,
				Compress:   logCfg.Compress,
			}),
			cfg.Level,
		)
		logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore)
		}))
	}

	Logger = logger
	return nil
}

func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// Fatal 在日志器可能尚未初始化时退出进程
func Fatal(msg string, fields ...zap.Field) {
	Logger.Error(msg, fields...)
	Sync()
	os.Exit(1)
}
