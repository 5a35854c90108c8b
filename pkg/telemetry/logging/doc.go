// Package logging builds the structured loggers used across Bulwark.
//
// Loggers are plain *slog.Logger values. New selects a JSON, text or
// console handler and wraps it so that records logged through the
// *Context methods pick up request, command, snapshot and source fields
// stored in the context:
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
//	if err != nil {
//	    return err
//	}
//
//	ctx = logging.WithSnapshot(ctx, snap.Version)
//	logger.InfoContext(ctx, "snapshot installed", "commands", len(snap.Commands))
//
// Packages that accept a logger fall back to Discard when none is given.
package logging
