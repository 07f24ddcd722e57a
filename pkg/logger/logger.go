// Frontline Perception System
// Copyright (C) 2020-2025 TurbineOne LLC
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package logger builds the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

func init() {
	// Process-wide zerolog settings shared by every package logger.
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldInteger = false
	zerolog.DurationFieldUnit = time.Second
}

// Config controls the log level and the output format.
type Config struct { //nolint:govet // Don't care about alignment.
	Level   string `yaml:"level" json:"level" env:"LOG_LEVEL" validate:"oneof=trace debug info warn error fatal panic disabled" doc:"Minimum level written: trace, debug, info, warn, error, fatal, panic or disabled"`
	Console bool   `yaml:"console" json:"console" env:"LOG_CONSOLE" doc:"Force human-readable colored output even without a terminal"`
	// FFmpegLevel is the level at which libav messages are forwarded, if at all.
	FFmpegLevel string `yaml:"ffmpeg_level" json:"ffmpeg_level" env:"LOG_FFMPEG_LEVEL" validate:"oneof=trace debug info warn error disabled" doc:"Level at which decoder library output is logged"`
}

// ConfigDefault logs at info as JSON, with libav chatter at debug.
func ConfigDefault() Config {
	return Config{
		Level:       zerolog.InfoLevel.String(),
		Console:     false,
		FFmpegLevel: zerolog.DebugLevel.String(),
	}
}

// termOut picks colored console output for terminals, JSON lines otherwise.
func termOut(c *Config) io.Writer {
	if c.Console || isatty.IsTerminal(os.Stdout.Fd()) {
		return zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05.000000", // Local wall clock is enough on a terminal.
		}
	}

	return os.Stdout
}

// New returns a logger writing to stdout. It panics on an unparseable level,
// which config validation rules out before we get here.
func New(c *Config) zerolog.Logger {
	return NewWithWriter(c, termOut(c))
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(c *Config, w io.Writer) (log zerolog.Logger) {
	zLevel, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		panic(err.Error())
	}

	log = zerolog.New(w).
		Level(zLevel).
		With().Timestamp().Caller().
		Logger()

	return log
}

// Nop returns a disabled logger, handy as a default for optional loggers.
func Nop() *zerolog.Logger {
	l := zerolog.Nop()

	return &l
}
