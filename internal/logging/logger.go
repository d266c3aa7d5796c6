// Package logging kurulumu: zap tabanlı yapılandırılmış log
package logging

import (
	"go.uber.org/zap"
)

// New: seviye ve format (json/console) ile zap logger kurar ve global olarak atar.
// Paketler zap.L() ile bu logger'a ulaşır.
func New(level, format string) (*zap.Logger, error) {
	var zapConfig zap.Config
	if format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		atomicLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapConfig.Level = atomicLevel

	logger, err := zapConfig.Build(zap.Fields(zap.String("service", "kasa-backend")))
	if err != nil {
		return nil, err
	}

	zap.ReplaceGlobals(logger)
	return logger, nil
}

// MustNew: kurulum başarısızsa production varsayılanına düşer
func MustNew(level, format string) *zap.Logger {
	logger, err := New(level, format)
	if err != nil {
		logger, _ = zap.NewProduction()
		zap.ReplaceGlobals(logger)
		logger.Warn("logger yapılandırması geçersiz, varsayılan kullanılıyor", zap.Error(err))
	}
	return logger
}
