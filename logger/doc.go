// Package logger provides structured logging for modelkit using zerolog.
//
// A process-wide logger is configured once with Init and then used through
// package-level helpers or component-scoped loggers:
//
//	log := logger.Get("pipeline")
//	log.Info("invocation finished", logger.Fields(logger.FieldTask, "echo"))
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "console"
package logger
