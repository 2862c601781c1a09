package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/worksphere/billing/internal/config"
	"github.com/worksphere/billing/internal/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const fluentdTag = "billing.logs"

// Logger wraps zap.SugaredLogger and optionally mirrors entries to Fluentd
type Logger struct {
	*zap.SugaredLogger
	fluentdLogger *fluent.Fluent
	serviceName   string
}

// L is the process-wide logger used by scripts and cron entry points.
// Services receive theirs through fx.
var L *Logger

func NewLogger(cfg *config.Configuration) (*Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Logging.Level == config.LogLevelDebug {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(toZapLevel(cfg.Logging.Level))
	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.DisableStacktrace = true

	zapLogger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}

	var fluentdLogger *fluent.Fluent
	if cfg.Logging.FluentdEnabled {
		if cfg.Logging.FluentdHost == "" || cfg.Logging.FluentdPort <= 0 {
			zapLogger.Sugar().Warn("fluentd is enabled but host/port are not configured")
		} else {
			fluentdLogger, err = fluent.New(fluent.Config{
				FluentHost:   cfg.Logging.FluentdHost,
				FluentPort:   cfg.Logging.FluentdPort,
				Async:        true,
				BufferLimit:  8 * 1024 * 1024,
				WriteTimeout: 3 * time.Second,
				RetryWait:    500,
				MaxRetry:     5,
			})
			if err != nil {
				zapLogger.Sugar().Warnf("failed to initialize fluentd logger, using stdout only: %v", err)
			}
		}
	}

	return &Logger{
		SugaredLogger: zapLogger.Sugar(),
		fluentdLogger: fluentdLogger,
		serviceName:   "billing-" + cfg.Deployment.Mode,
	}, nil
}

func toZapLevel(level config.LogLevel) zapcore.Level {
	switch level {
	case config.LogLevelDebug:
		return zapcore.DebugLevel
	case config.LogLevelWarn:
		return zapcore.WarnLevel
	case config.LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func init() {
	L, _ = NewLogger(config.GetDefaultConfig())
}

func GetLogger() *Logger {
	if L == nil {
		L, _ = NewLogger(config.GetDefaultConfig())
	}
	return L
}

func GetLoggerWithContext(ctx context.Context) *Logger {
	return GetLogger().WithContext(ctx)
}

// Close flushes zap and the fluentd buffer
func (l *Logger) Close() error {
	_ = l.SugaredLogger.Sync()
	if l.fluentdLogger != nil {
		return l.fluentdLogger.Close()
	}
	return nil
}

func (l *Logger) sendToFluentd(level string, msg string, fields map[string]interface{}) {
	if l.fluentdLogger == nil {
		return
	}

	logData := map[string]interface{}{
		"level":     level,
		"message":   msg,
		"service":   l.serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range fields {
		logData[k] = v
	}

	if err := l.fluentdLogger.Post(fluentdTag, logData); err != nil {
		l.SugaredLogger.Warnf("failed to send log to fluentd: %v", err)
	}
}

func (l *Logger) Debugf(template string, args ...interface{}) {
	l.SugaredLogger.Debugf(template, args...)
	l.sendToFluentd("debug", sprintf(template, args...), nil)
}

func (l *Logger) Infof(template string, args ...interface{}) {
	l.SugaredLogger.Infof(template, args...)
	l.sendToFluentd("info", sprintf(template, args...), nil)
}

func (l *Logger) Warnf(template string, args ...interface{}) {
	l.SugaredLogger.Warnf(template, args...)
	l.sendToFluentd("warning", sprintf(template, args...), nil)
}

func (l *Logger) Errorf(template string, args ...interface{}) {
	l.SugaredLogger.Errorf(template, args...)
	l.sendToFluentd("error", sprintf(template, args...), nil)
}

func (l *Logger) Fatalf(template string, args ...interface{}) {
	l.sendToFluentd("fatal", sprintf(template, args...), nil)
	l.SugaredLogger.Fatalf(template, args...)
}

func sprintf(template string, args ...interface{}) string {
	if len(args) == 0 {
		return template
	}
	return fmt.Sprintf(template, args...)
}

// WithContext tags the logger with the request, tenant and billing cycle
// carried by ctx. Empty values are omitted.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	fields := []interface{}{"user_id", types.GetUserID(ctx)}
	if v := types.GetRequestID(ctx); v != "" {
		fields = append(fields, "request_id", v)
	}
	if v := types.GetTenantID(ctx); v != "" {
		fields = append(fields, "tenant_id", v)
	}
	if v := types.GetBillingCycleID(ctx); v != "" {
		fields = append(fields, "billing_cycle_id", v)
	}

	return &Logger{
		SugaredLogger: l.SugaredLogger.With(fields...),
		fluentdLogger: l.fluentdLogger,
		serviceName:   l.serviceName,
	}
}

// With returns a child logger carrying the given key/value pairs
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(keysAndValues...),
		fluentdLogger: l.fluentdLogger,
		serviceName:   l.serviceName,
	}
}

func (l *Logger) Debugw(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, keysAndValues...)
	l.sendToFluentd("debug", msg, keysAndValuesToMap(keysAndValues...))
}

func (l *Logger) Infow(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, keysAndValues...)
	l.sendToFluentd("info", msg, keysAndValuesToMap(keysAndValues...))
}

func (l *Logger) Warnw(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, keysAndValues...)
	l.sendToFluentd("warning", msg, keysAndValuesToMap(keysAndValues...))
}

func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, keysAndValues...)
	l.sendToFluentd("error", msg, keysAndValuesToMap(keysAndValues...))
}

func keysAndValuesToMap(keysAndValues ...interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}
	return fields
}
