// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/rustyeddy/riskgate/config"
)

// Setup applies cfg to the standard logger. An unparseable level falls back
// to info and is reported once the formatter is in place.
func Setup(cfg config.LogConfig) {
	SetupTo(os.Stderr, cfg)
}

func SetupTo(w io.Writer, cfg config.LogConfig) {
	log.SetOutput(w)

	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.SetLevel(log.InfoLevel)
		log.WithField("level", cfg.Level).Warn("unknown log level, using info")
		return
	}
	log.SetLevel(level)
}
