package build

import (
	"fmt"
	"os"
	"sync"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// LogWriter is a stdout/rotator fan-out writer backing the slog.Backend
// every subsystem logger is built from.
type LogWriter struct {
	mu       sync.Mutex
	rotator  *rotator.Rotator
	toStdout bool
}

// Write implements io.Writer, fanning out to both the rotating log file
// (once initialized) and stdout.
func (w *LogWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.toStdout {
		os.Stdout.Write(b)
	}
	if w.rotator != nil {
		return w.rotator.Write(b)
	}
	return len(b), nil
}

// RotatingLogWriter wraps the slog.Backend every subsystem's sub-logger is
// carved out of, and tracks every logger it has handed out so SetLogLevels
// can walk them all at once.
type RotatingLogWriter struct {
	logWriter *LogWriter
	backend   *slog.Backend

	mu          sync.Mutex
	subsystems  map[string]slog.Logger
}

// NewRotatingLogWriter constructs a writer that logs to stdout until
// InitLogRotator points it at a file.
func NewRotatingLogWriter() *RotatingLogWriter {
	w := &LogWriter{toStdout: true}
	return &RotatingLogWriter{
		logWriter:  w,
		backend:    slog.NewBackend(w),
		subsystems: make(map[string]slog.Logger),
	}
}

// InitLogRotator opens logFile for writing, rotating it once it exceeds
// maxSize (in bytes) and keeping at most maxRolls historical copies, the
// same two-knob shape jrick/logrotate itself exposes.
func (r *RotatingLogWriter) InitLogRotator(logFile string, maxSize int64, maxRolls int) error {
	logDir, _ := splitDir(logFile)
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o700); err != nil {
			return fmt.Errorf("create log directory %s: %w", logDir, err)
		}
	}

	rot, err := rotator.New(logFile, maxSize/1024, false, maxRolls)
	if err != nil {
		return fmt.Errorf("open log rotator for %s: %w", logFile, err)
	}

	r.logWriter.mu.Lock()
	r.logWriter.rotator = rot
	r.logWriter.mu.Unlock()
	return nil
}

func splitDir(path string) (dir, file string) {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i], path[i+1:]
		}
	}
	return "", path
}

// GenSubLogger creates a new slog.Logger for subsystem from this writer's
// backend, the function AddSubLogger passes to NewSubLogger once the root
// logger is ready.
func (r *RotatingLogWriter) GenSubLogger(subsystem string) slog.Logger {
	return r.backend.Logger(subsystem)
}

// RegisterSubLogger records logger under subsystem for later bulk
// level changes via SetLogLevels.
func (r *RotatingLogWriter) RegisterSubLogger(subsystem string, logger slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subsystems[subsystem] = logger
}

// SetLogLevels applies level to every subsystem logger registered so far,
// the bulk equivalent of the --debuglevel flag.
func (r *RotatingLogWriter) SetLogLevels(level slog.Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, logger := range r.subsystems {
		logger.SetLevel(level)
	}
}

// NewSubLogger builds subsystem's logger from genLogger, or returns a
// disabled logger if genLogger is nil — the state every package-level
// logger starts in before SetupLoggers wires the real root logger through.
func NewSubLogger(subsystem string, genLogger func(string) slog.Logger) slog.Logger {
	if genLogger == nil {
		return slog.Disabled
	}
	return genLogger(subsystem)
}
