package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Config controls logger construction
type Config struct {
	Level      string `env:"LOG_LEVEL" envDefault:"info"`
	JSON       bool   `env:"LOG_JSON" envDefault:"false"`
	AddSource  bool   `env:"LOG_SOURCE" envDefault:"false"`
	TimeFormat string `env:"LOG_TIME_FORMAT" envDefault:"15:04:05"`

	// Output defaults to stderr
	Output io.Writer
}

// ParseLevel maps a level name to a log level, defaulting to info
func ParseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// New builds a logger and installs it as the process default
func New(cfg Config) *log.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	logger := log.NewWithOptions(out, log.Options{
		Level:           ParseLevel(cfg.Level),
		ReportTimestamp: true,
		ReportCaller:    cfg.AddSource,
		TimeFormat:      cfg.TimeFormat,
	})
	if cfg.JSON {
		logger.SetFormatter(log.JSONFormatter)
	}

	log.SetDefault(logger)
	return logger
}
