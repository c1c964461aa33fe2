// Package application hosts the gateway's use-case layer: thin,
// validating wrappers around ports.Store that add structured logging in
// the shape the rest of the codebase uses (event/module/layer fields).
package application

import "log/slog"

// ResolveLogger returns logger, or slog.Default() if it is nil.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
