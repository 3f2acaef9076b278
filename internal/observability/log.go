package observability

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/chuckie/autopr/internal/security"
)

var (
	mu       sync.RWMutex
	initOnce sync.Once
	logFile  *os.File
	logPath  string
	logger   = zerolog.Nop()
	redactor = security.NewRedactor()
	initErr  error
)

// DefaultLogPath returns the per-user log file location. The log must never
// live inside the repository, where `git add -A` would pick it up.
func DefaultLogPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "autopr", "autopr.log")
}

// Init configures structured logging to a file. It never writes to the
// terminal, which the TUI owns while running.
func Init(path, level string) (string, func(), error) {
	initOnce.Do(func() {
		if path == "" {
			path = DefaultLogPath()
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			initErr = err
			return
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			initErr = err
			return
		}

		mu.Lock()
		logFile = f
		logPath = path
		logger = New(f, level)
		mu.Unlock()
	})

	cleanup := func() {
		mu.Lock()
		defer mu.Unlock()
		if logFile != nil {
			_ = logFile.Close()
			logFile = nil
			logger = zerolog.Nop()
		}
	}
	return logPath, cleanup, initErr
}

// New builds a timestamped logger writing JSON lines to w.
func New(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// ParseLevel maps a level name to zerolog, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns the configured logger, or a no-op logger before Init.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Component returns a logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return Logger().With().Str("component", name).Logger()
}

// Path returns the configured log file path (empty if Init hasn't run yet).
func Path() string {
	mu.RLock()
	defer mu.RUnlock()
	return logPath
}

// RedactForLog removes common secret patterns from logs.
func RedactForLog(s string) string {
	return redactor.RedactLog(s)
}

// Snip returns a safe prefix of s, capped by rune count.
func Snip(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}

	n := 0
	idx := 0
	for idx < len(s) {
		if n >= maxRunes {
			break
		}
		_, size := utf8.DecodeRuneInString(s[idx:])
		if size <= 0 {
			break
		}
		idx += size
		n++
	}

	if idx >= len(s) {
		return s
	}
	return s[:idx] + "…"
}
