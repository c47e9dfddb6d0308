package utils

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig определяет конфигурацию для логгера
type LoggerConfig struct {
	// Формат логов (text/json)
	Format string
	// Development включает debug уровень и stacktrace на warn
	Development bool
	// Включить/выключить цвета для консоли
	EnableColors bool
}

// InitLogger инициализирует и возвращает логгер процесса.
// Без конфигурации используется цветной консольный логгер для разработки.
func InitLogger(config ...LoggerConfig) *zap.SugaredLogger {
	cfg := LoggerConfig{Format: "text", Development: true, EnableColors: true}
	if len(config) > 0 {
		cfg = config[0]
	}

	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	if cfg.Format == "json" {
		zcfg.Encoding = "json"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zcfg.Encoding = "console"
		if cfg.EnableColors {
			zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	}
	zcfg.InitialFields = map[string]interface{}{"app": "course-market"}

	logger, err := zcfg.Build()
	if err != nil {
		// логгер нужен даже при ошибочной конфигурации
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.Lock(os.Stdout), zap.DebugLevel)
		logger = zap.New(core)
		logger.Warn("falling back to default logger", zap.Error(err))
	}
	return logger.Sugar()
}

// NopLogger для тестов и компонентов, созданных без логгера
func NopLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
