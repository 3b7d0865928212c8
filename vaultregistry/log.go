package vaultregistry

import "github.com/decred/slog"

// log is the package-wide logger, disabled until UseLogger is called by
// the daemon's SetupLoggers.
var log = slog.Disabled

// UseLogger sets the package-wide logger used by vaultregistry.
func UseLogger(logger slog.Logger) {
	log = logger
}
