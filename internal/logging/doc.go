// Package logging provides structured logging for depo runs.
//
// It wraps log/slog with a JSON handler writing to a size-rotated file, so
// that the full diagnostic output of failed imports survives after the live
// terminal summary has been redrawn.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger(".depo/logs", "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	runLogger := logger.WithRun(runID)
//	runLogger.WithProject("libs/core").Warn("import failed", "attempt", 2)
//
// # Reading Logs Back
//
// [ReadEntries] and [FilterEntries] parse depo.log for the `depo logs`
// command.
package logging
