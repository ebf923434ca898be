package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MEKXH/reviewdesk/internal/config"
	"github.com/MEKXH/reviewdesk/internal/session"
)

var (
	loggerMu      sync.Mutex
	activeLogFile *os.File
)

// configureLogger installs the default slog logger. The dashboard owns the
// terminal, so without a configured log file it logs to
// <workspace>/logs/dashboard.log instead of stderr.
func configureLogger(cfg *config.Config, overrideLevel string, dashboardMode bool) error {
	level, err := parseLogLevel(cfg.Log.Level, overrideLevel)
	if err != nil {
		return err
	}

	writer := io.Writer(os.Stderr)
	logFilePath := strings.TrimSpace(cfg.Log.File)
	if logFilePath == "" && dashboardMode {
		if workspace, err := cfg.WorkspacePathChecked(); err == nil {
			logFilePath = filepath.Join(workspace, "logs", "dashboard.log")
		}
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()

	if activeLogFile != nil && (logFilePath == "" || activeLogFile.Name() != logFilePath) {
		_ = activeLogFile.Close()
		activeLogFile = nil
	}

	switch {
	case logFilePath != "":
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		if activeLogFile == nil {
			f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			activeLogFile = f
		}
		writer = activeLogFile
	case dashboardMode:
		writer = io.Discard
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return nil
}

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

// logNotifier reports session notices through slog. Commands print their own
// results, so notices only need to reach the log.
func logNotifier() session.Notifier {
	return session.NotifierFunc(func(n session.Notice) {
		attrs := []any{"op", n.Op}
		if n.Retryable {
			attrs = append(attrs, "retryable", true)
		}
		switch n.Level {
		case session.LevelError:
			slog.Error(n.Message, attrs...)
		case session.LevelWarn:
			slog.Warn(n.Message, attrs...)
		default:
			slog.Debug(n.Message, attrs...)
		}
	})
}
