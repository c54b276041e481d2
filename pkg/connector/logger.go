package connector

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CreateLogger will create sugared zap logger with given level
func CreateLogger(level string) (*zap.SugaredLogger, error) {
	logLevel := zap.InfoLevel
	err := logLevel.Set(level)
	if err != nil {
		return nil, err
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(logLevel)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
