// Package logger wraps zerolog behind a small structured logging interface.
//
// The global logger is configured once from config.LoggingConfig:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//		return err
//	}
//	log := logger.GetLogger().WithField("component", "paginator")
//	log.InfoWithFields("page fetched", map[string]interface{}{
//		"page":  3,
//		"items": 50,
//	})
//
// Console output is colored only when stdout is a terminal. When a log file
// is configured, JSON lines are appended to it alongside the console output.
// Tests use TestLogger to capture and assert on emitted messages.
package logger
