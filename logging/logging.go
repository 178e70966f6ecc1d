// Package logging builds the logrus logger shared by carrierconf commands,
// optionally teeing to a lumberjack-rotated file.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/superfly/carrierconf/config"
)

// New returns a logger configured from cfg. The returned closer releases
// the log file, if any.
func New(cfg config.LoggingConfig, stderr io.Writer) (*logrus.Logger, io.Closer, error) {
	if stderr == nil {
		stderr = os.Stderr
	}

	logger := logrus.New()
	lvl, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(cfg.Format) {
	case "text", "console":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	if cfg.File.Filename == "" {
		logger.SetOutput(stderr)
		return logger, nopCloser{}, nil
	}

	lj := &lumberjack.Logger{
		Filename:   cfg.File.Filename,
		MaxSize:    cfg.File.MaxSizeMB,
		MaxBackups: cfg.File.MaxBackups,
		MaxAge:     cfg.File.MaxAgeDays,
		Compress:   cfg.File.Compress,
	}
	logger.SetOutput(io.MultiWriter(stderr, lj))
	return logger, lj, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
