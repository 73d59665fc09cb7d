package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/halvden/opsgate/internal/config"
)

var (
	logMu   sync.Mutex
	logFile *os.File
)

// configureLogger installs the process-wide slog handler. Logs go to stderr
// unless the config names a file; re-configuring with a different file closes
// the previous one.
func configureLogger(cfg *config.Config, overrideLevel string) error {
	level, err := parseLogLevel(cfg.Log.Level, overrideLevel)
	if err != nil {
		return err
	}

	path := strings.TrimSpace(cfg.Log.File)

	logMu.Lock()
	defer logMu.Unlock()

	if logFile != nil && logFile.Name() != path {
		_ = logFile.Close()
		logFile = nil
	}

	var writer io.Writer = os.Stderr
	if path != "" {
		if logFile == nil {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return fmt.Errorf("create log directory: %w", err)
			}
			f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			logFile = f
		}
		writer = logFile
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level})))
	return nil
}

// parseLogLevel resolves the effective level, letting the --log-level flag
// override the config value.
func parseLogLevel(configLevel, override string) (slog.Level, error) {
	level := strings.TrimSpace(configLevel)
	if strings.TrimSpace(override) != "" {
		level = override
	}
	switch strings.ToLower(level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s", level)
	}
}
