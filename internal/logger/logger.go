// Package logger centralizes logrus setup so every package logs with
// the same formatter and level instead of reaching for the stdlib
// "log" package.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/Anthya1104/ft-raid-core/internal/config"
)

// InitLogger configures the package-level logrus logger. level is one
// of config.LogLevel{Debug,Info,Warning,Error}. Output goes to stderr
// only; use InitLoggerWithFile to duplicate it to a file.
func InitLogger(level string) error {
	return InitLoggerWithFile(level, "")
}

// InitLoggerWithFile is InitLogger with an explicit log file path. Pass
// "" to log to stderr only.
func InitLoggerWithFile(level string, logFilePath string) error {
	lvl, err := parseLevel(level)
	if err != nil {
		return err
	}

	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if logFilePath == "" {
		logrus.SetOutput(os.Stderr)
		return nil
	}

	if dir := filepath.Dir(logFilePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("logger: create log dir %q: %w", dir, err)
		}
	}

	f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("logger: open log file %q: %w", logFilePath, err)
	}
	logrus.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}

func parseLevel(level string) (logrus.Level, error) {
	switch level {
	case config.LogLevelDebug:
		return logrus.DebugLevel, nil
	case config.LogLevelInfo:
		return logrus.InfoLevel, nil
	case config.LogLevelWarning:
		return logrus.WarnLevel, nil
	case config.LogLevelError:
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("logger: unknown level %q", level)
	}
}
