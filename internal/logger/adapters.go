package logger

import "github.com/ThreeDotsLabs/watermill"

// LeveledLogger satisfies go-retryablehttp's LeveledLogger and the temporal
// SDK's log.Logger, which share the same method set.
type LeveledLogger struct {
	logger *Logger
}

func (l *Logger) GetLeveledLogger() *LeveledLogger {
	return &LeveledLogger{logger: l}
}

// GetRetryableHTTPLogger is kept for call sites that read better with the
// transport name.
func (l *Logger) GetRetryableHTTPLogger() *LeveledLogger {
	return l.GetLeveledLogger()
}

func (a *LeveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	a.logger.Debugw(msg, keysAndValues...)
}

func (a *LeveledLogger) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Infow(msg, keysAndValues...)
}

func (a *LeveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	a.logger.Warnw(msg, keysAndValues...)
}

func (a *LeveledLogger) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Errorw(msg, keysAndValues...)
}

// WatermillAdapter satisfies watermill.LoggerAdapter
type WatermillAdapter struct {
	logger *Logger
}

func (l *Logger) GetWatermillLogger() *WatermillAdapter {
	return &WatermillAdapter{logger: l}
}

func (w *WatermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	w.logger.Errorw(msg, append(flatten(fields), "error", err)...)
}

func (w *WatermillAdapter) Info(msg string, fields watermill.LogFields) {
	w.logger.Infow(msg, flatten(fields)...)
}

func (w *WatermillAdapter) Debug(msg string, fields watermill.LogFields) {
	w.logger.Debugw(msg, flatten(fields)...)
}

// Trace is too chatty for our sinks and is folded into debug
func (w *WatermillAdapter) Trace(msg string, fields watermill.LogFields) {
	w.logger.Debugw(msg, flatten(fields)...)
}

func (w *WatermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillAdapter{logger: w.logger.With(flatten(fields)...)}
}

func flatten(fields watermill.LogFields) []interface{} {
	kv := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return kv
}
