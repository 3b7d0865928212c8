package escrowd

import (
	"github.com/decred/slog"

	"github.com/p2pmmx/escrowd/addrassign"
	"github.com/p2pmmx/escrowd/build"
	"github.com/p2pmmx/escrowd/chain"
	"github.com/p2pmmx/escrowd/depositwatcher"
	"github.com/p2pmmx/escrowd/escrowdb"
	"github.com/p2pmmx/escrowd/escrowdconf"
	"github.com/p2pmmx/escrowd/roompool"
	"github.com/p2pmmx/escrowd/schedule"
	"github.com/p2pmmx/escrowd/tradefsm"
	"github.com/p2pmmx/escrowd/vaultregistry"
)

// ercpLog is this package's own handle on the ERPC subsystem logger,
// exposed to escrowrpc's interceptors (which live outside this package
// and so can't mint it for themselves) through RPCLog.
var ercpLog = slog.Disabled

// SetupLoggers initializes every domain package's logger, one short
// (three- or four-letter) subsystem tag per component plus the admin
// surface.
func SetupLoggers(root *build.RotatingLogWriter) {
	AddSubLogger(root, "ESCW", tradefsm.UseLogger)
	AddSubLogger(root, "CHAN", chain.UseLogger)
	AddSubLogger(root, "VREG", vaultregistry.UseLogger)
	AddSubLogger(root, "RPOL", roompool.UseLogger)
	AddSubLogger(root, "ADDR", addrassign.UseLogger)
	AddSubLogger(root, "DPST", depositwatcher.UseLogger)
	AddSubLogger(root, "SCHD", schedule.UseLogger)
	AddSubLogger(root, "EDB", escrowdb.UseLogger)
	AddSubLogger(root, "ECFG", escrowdconf.UseLogger)

	// escrowrpc has no package-global logger to set: its interceptors
	// take a logger as an explicit constructor argument (see
	// ServerOptions), so ercpLog is only ever read back out via RPCLog.
	AddSubLogger(root, "ERPC", func(l slog.Logger) { ercpLog = l })
}

// RPCLog returns the ERPC subsystem logger.
func RPCLog() slog.Logger {
	return ercpLog
}

// AddSubLogger creates subsystem's logger against root and hands it to
// every useLogger setter, instantiating the logger once per subsystem so
// multiple setters for the same subsystem don't overwrite each other's
// backing logger internally.
func AddSubLogger(root *build.RotatingLogWriter, subsystem string, useLoggers ...func(slog.Logger)) {
	logger := build.NewSubLogger(subsystem, root.GenSubLogger)
	SetSubLogger(root, subsystem, logger, useLoggers...)
}

// SetSubLogger registers logger under subsystem against root and invokes
// every useLogger setter with it.
func SetSubLogger(root *build.RotatingLogWriter, subsystem string, logger slog.Logger, useLoggers ...func(slog.Logger)) {
	root.RegisterSubLogger(subsystem, logger)
	for _, useLogger := range useLoggers {
		useLogger(logger)
	}
}

// logClosure is used to provide a closure over expensive logging
// operations so they aren't performed when the logging level doesn't
// warrant it.
type logClosure func() string

// String invokes the underlying function and returns the result.
func (c logClosure) String() string {
	return c()
}

// newLogClosure returns a new closure over a function that returns a
// string, satisfying fmt.Stringer so it can be passed to a logger call
// whose arguments are only evaluated when the level permits.
func newLogClosure(c func() string) logClosure {
	return logClosure(c)
}
