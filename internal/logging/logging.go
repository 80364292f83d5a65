// Package logging builds the structured logger shared by the HTTP layer
// and the background collaborators, adapted from cmd/web/main.go's
// initLogger.
package logging

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hushh-labs/consent-core/internal/config"
)

// New builds a JSON logrus logger at the level named in cfg.LogLevel,
// falling back to Info on an unrecognized level name.
func New(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})

	return logger
}
