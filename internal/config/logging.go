package config

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// SetupLogging applies the level and format to l.
func SetupLogging(l *log.Logger, cfg LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	l.SetLevel(level)

	switch cfg.Format {
	case "json":
		l.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		l.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format '%s'", cfg.Format)
	}
	return nil
}
