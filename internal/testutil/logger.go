package testutil

import (
	"github.com/worksphere/billing/internal/logger"
	"go.uber.org/zap"
)

// NewTestLogger returns a development logger without the fluentd sink
func NewTestLogger() *logger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return &logger.Logger{SugaredLogger: zapLogger.Sugar()}
}
