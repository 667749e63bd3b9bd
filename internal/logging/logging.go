/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures zerolog for the process and returns the root
// logger. Log output goes to stderr so stdout stays reserved for
// reports and machine-readable command output.
//
// Recognized levels are trace, debug, info, warn, error and quiet
// (alias for error). An empty name falls back to the BRAGI_LOG_LEVEL
// or LOG_LEVEL environment variables and finally to info.
func Setup(level string) zerolog.Logger {
	return SetupWithWriter(level, nil)
}

// SetupWithWriter configures zerolog with an additional writer (e.g., for capturing log lines in tests).
func SetupWithWriter(level string, additionalWriter io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Console writer for human-readable output on stderr
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}

	var writer io.Writer = consoleWriter
	if additionalWriter != nil {
		writer = zerolog.MultiLevelWriter(consoleWriter, additionalWriter)
	}

	logger := zerolog.New(writer).With().Timestamp().Logger().Level(ParseLevel(level))
	log.Logger = logger
	return logger
}

// ParseLevel resolves a level name to a zerolog level, consulting the
// environment when the name is empty.
func ParseLevel(name string) zerolog.Level {
	if name == "" {
		for _, key := range []string{"BRAGI_LOG_LEVEL", "LOG_LEVEL"} {
			if v := os.Getenv(key); v != "" {
				name = v
				break
			}
		}
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error", "quiet":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
