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

// Package supervisor builds suture supervisors that log through zerolog.
package supervisor

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

// Config holds the restart policy of a supervisor.
type Config struct { //nolint:govet // Don't care about alignment.
	FailureThreshold float64       `yaml:"failure_threshold" json:"failure_threshold" env:"FAILURE_THRESHOLD" validate:"gt=0" doc:"Failures tolerated before backing off"`
	FailureDecay     float64       `yaml:"failure_decay" json:"failure_decay" env:"FAILURE_DECAY" validate:"gt=0" doc:"Seconds for the failure count to decay"`
	FailureBackoff   time.Duration `yaml:"failure_backoff" json:"failure_backoff" env:"FAILURE_BACKOFF" validate:"gt=0" doc:"Pause once the threshold is crossed"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" validate:"gt=0" doc:"How long a service may take to stop"`
}

// ConfigDefault returns the default values for a Config.
func ConfigDefault() Config {
	return Config{
		FailureThreshold: 5,  //nolint:mnd // suture default.
		FailureDecay:     30, //nolint:mnd // suture default.
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// New returns a supervisor named name.
func New(name string, c *Config, logger *zerolog.Logger) *suture.Supervisor {
	l := logger.With().Str("supervisor", name).Logger()

	return suture.New(name, suture.Spec{
		EventHook:        EventHook(&l),
		FailureThreshold: c.FailureThreshold,
		FailureDecay:     c.FailureDecay,
		FailureBackoff:   c.FailureBackoff,
		Timeout:          c.ShutdownTimeout,
	})
}

// EventHook logs supervisor events. Backoff and stop timeouts are worth a
// warning; routine service terminations are logged at debug.
func EventHook(log *zerolog.Logger) suture.EventHook {
	return func(e suture.Event) {
		var ev *zerolog.Event

		switch e.Type() {
		case suture.EventTypeBackoff, suture.EventTypeStopTimeout, suture.EventTypeServicePanic:
			ev = log.Warn()
		case suture.EventTypeServiceTerminate:
			ev = log.Debug()
		case suture.EventTypeResume:
			ev = log.Info()
		default:
			ev = log.Debug()
		}

		ev.Fields(e.Map()).Msg(e.String())
	}
}
