package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// Component returns the global logger tagged with a component name
func Component(name string) Logger {
	return GetLogger().WithField("component", name)
}

// LogRequest logs the outcome of a single remote call
func LogRequest(l Logger, method, url string, statusCode int, durationMs int64) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": durationMs,
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		l.DebugWithFields("request completed", fields)
	case statusCode >= 400 && statusCode < 500:
		l.WarnWithFields("request rejected", fields)
	default:
		l.ErrorWithFields("request failed", fields)
	}
}

// LogSyncResult logs the summary of a finished collection sync
func LogSyncResult(l Logger, collection string, count, pages int, reason string, err error) {
	fields := map[string]interface{}{
		"collection": collection,
		"count":      count,
		"pages":      pages,
		"reason":     reason,
	}
	if err != nil {
		l.WithError(err).WarnWithFields("sync finished early", fields)
		return
	}
	l.InfoWithFields("sync finished", fields)
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(string)                                         {}
func (n *nopLogger) Info(string)                                          {}
func (n *nopLogger) Warn(string)                                          {}
func (n *nopLogger) Error(string)                                         {}
func (n *nopLogger) Fatal(string)                                         {}
func (n *nopLogger) WithField(string, interface{}) Logger                 { return n }
func (n *nopLogger) WithFields(map[string]interface{}) Logger             { return n }
func (n *nopLogger) WithError(error) Logger                               { return n }
func (n *nopLogger) WithContext(context.Context) Logger                   { return n }
func (n *nopLogger) DebugWithFields(string, map[string]interface{})       {}
func (n *nopLogger) InfoWithFields(string, map[string]interface{})        {}
func (n *nopLogger) WarnWithFields(string, map[string]interface{})        {}
func (n *nopLogger) ErrorWithFields(string, map[string]interface{})       {}
func (n *nopLogger) FatalWithFields(string, map[string]interface{})       {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                          { return nil }
