package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 全局日志，未初始化时丢弃所有输出
var Logger = zap.NewNop()

func InitLogger(mode string) error {
	var config zap.Config

	if mode == "release" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := config.Build()
	if err != nil {
		return err
	}

	Logger = logger
	return nil
}

// Named 返回带组件名的子日志
func Named(component string) *zap.Logger {
	return Logger.Named(component)
}

func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}
