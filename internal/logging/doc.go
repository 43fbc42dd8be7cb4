// Package logging provides structured logging for the playground.
//
// The package wraps log/slog with a JSON handler. Every component receives a
// child [Logger] carrying a "component" attribute, and the orchestrator adds
// "runtime" and "generation" attributes so the interleaving of asynchronous
// validation and format completions can be reconstructed from the log.
//
// # Basic Usage
//
//	logger, err := logging.NewLoggerWithRotation(dir, "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	busLog := logger.WithComponent("bus")
//	busLog.Error("handler panicked", "topic", "source.changed")
//
// Tests use [NopLogger] or [NewWriterLogger] over a bytes.Buffer.
package logging
