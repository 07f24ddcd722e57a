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

// Package config loads a configuration struct from the environment and a YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v6"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// NoConfigError is returned when the config file does not exist. Callers
// usually treat it as a warning and carry on with defaults.
type NoConfigError struct {
	Path string
}

func (e *NoConfigError) Error() string {
	return "no config file at " + e.Path + ", using environment and defaults"
}

// InvalidConfigError wraps the field errors reported by the validator.
type InvalidConfigError struct {
	Err error
}

func (e *InvalidConfigError) Error() string {
	return "invalid config: " + e.Err.Error()
}

func (e *InvalidConfigError) Unwrap() error {
	return e.Err
}

func applyFile(path string, out interface{}) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &NoConfigError{Path: path}
	}

	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decoding config %s: %w", path, err)
	}

	return nil
}

func applyEnv(prefix string, out interface{}) error {
	if err := env.Parse(out, env.Options{Prefix: prefix}); err != nil {
		return fmt.Errorf("reading %s* environment: %w", prefix, err)
	}

	return nil
}

// Init fills out from the environment, then from the YAML file at path.
// Values in the file win over the environment. A missing file yields a
// *NoConfigError after the environment has been applied.
func Init(path string, envPrefix string, out interface{}) error {
	if err := applyEnv(envPrefix, out); err != nil {
		return err
	}

	return applyFile(path, out)
}

// Validate checks the `validate` struct tags of out.
func Validate(out interface{}) error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(out); err != nil {
		return &InvalidConfigError{Err: err}
	}

	return nil
}
