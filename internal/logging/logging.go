// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging configures the logrus logger shared by the CLI and the
// coordinator.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/plutus/pkg/types"
)

// New returns a logger writing to w, and to cfg.File when set. Unknown
// level names fall back to info. The returned closer releases the log
// file and is never nil.
func New(cfg types.LogConfig, w io.Writer) (*logrus.Logger, func() error, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	closer := func() error { return nil }
	writers := []io.Writer{w}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, closer, fmt.Errorf("opening log file %s: %w", cfg.File, err)
		}
		writers = append(writers, f)
		closer = f.Close
	}
	log.SetOutput(io.MultiWriter(writers...))

	return log, closer, nil
}
