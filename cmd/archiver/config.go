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

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/TurbineOne/detection-archive/pkg/catalog"
	"github.com/TurbineOne/detection-archive/pkg/config"
	"github.com/TurbineOne/detection-archive/pkg/control"
	"github.com/TurbineOne/detection-archive/pkg/delivery"
	"github.com/TurbineOne/detection-archive/pkg/detector"
	"github.com/TurbineOne/detection-archive/pkg/logger"
	"github.com/TurbineOne/detection-archive/pkg/server"
	"github.com/TurbineOne/detection-archive/pkg/sidecar"
	"github.com/TurbineOne/detection-archive/pkg/supervisor"
	"github.com/TurbineOne/detection-archive/pkg/thumbnail"
	"github.com/TurbineOne/detection-archive/pkg/watch"
)

const (
	configFileName = "config.yaml"
	envPrefix      = "ARCHIVER_"
)

//nolint:gochecknoglobals // Needed for makefile injection.
var (
	// Version is provided by the makefile.
	Version = "v0"
	// Revision is a git tag provided by the makefile.
	Revision = "0"
	// Created is a date provided by the makefile.
	Created = "0000-00-00"
)

// mainConfig is the master config for the executable.
type mainConfig struct { //nolint:govet // Don't care about alignment.
	Logger     logger.Config     `yaml:"logger" json:"logger"`
	Catalog    catalog.Config    `yaml:"catalog" json:"catalog" envPrefix:"CATALOG_"`
	Sidecar    sidecar.Config    `yaml:"sidecar" json:"sidecar" envPrefix:"SIDECAR_"`
	Delivery   delivery.Config   `yaml:"delivery" json:"delivery" envPrefix:"DELIVERY_"`
	Server     server.Config     `yaml:"server" json:"server" envPrefix:"HTTP_"`
	Thumbnail  thumbnail.Config  `yaml:"thumbnail" json:"thumbnail" envPrefix:"THUMBNAIL_"`
	Watch      watch.Config      `yaml:"watch" json:"watch" envPrefix:"WATCH_"`
	Detector   detector.Config   `yaml:"detector" json:"detector" envPrefix:"DETECTOR_"`
	Control    control.Config    `yaml:"control" json:"control" envPrefix:"CONTROL_"`
	Supervisor supervisor.Config `yaml:"supervisor" json:"supervisor" envPrefix:"SUPERVISOR_"`
}

func defaultConfig() mainConfig {
	return mainConfig{
		Logger:     logger.ConfigDefault(),
		Catalog:    catalog.ConfigDefault(),
		Sidecar:    sidecar.ConfigDefault(),
		Delivery:   delivery.ConfigDefault(),
		Server:     server.ConfigDefault(),
		Thumbnail:  thumbnail.ConfigDefault(),
		Watch:      watch.ConfigDefault(),
		Detector:   detector.ConfigDefault(),
		Control:    control.ConfigDefault(),
		Supervisor: supervisor.ConfigDefault(),
	}
}

var currentConfig = defaultConfig() //nolint:gochecknoglobals  // Static config

// loadConfig applies the environment and the file at path to out, then
// validates the result. A missing file comes back as *config.NoConfigError
// with out still valid.
func loadConfig(path string, out *mainConfig) error {
	err := config.Init(path, envPrefix, out)

	ncError := &config.NoConfigError{}
	if err != nil && !errors.As(err, &ncError) {
		return err //nolint:wrapcheck // Already descriptive.
	}

	if vErr := config.Validate(out); vErr != nil {
		return vErr //nolint:wrapcheck // Already descriptive.
	}

	return err //nolint:wrapcheck // NoConfigError or nil.
}

// initConfig initializes the config from flags, the environment and the
// config file. May exit the program if there is an error.
func initConfig() {
	path := flag.String("config", configFileName, "path of the YAML config file")
	flag.Parse()

	err := loadConfig(*path, &currentConfig)
	if err != nil {
		// A missing config file is not fatal. Anything else is.
		ncError := &config.NoConfigError{}
		if !errors.As(err, &ncError) {
			fmt.Println(err.Error()) //nolint:forbidigo // OK to print here.
			os.Exit(-1)
		}
	}

	log = logger.New(&currentConfig.Logger)

	binName := filepath.Base(os.Args[0])
	log.Info().Msg(fmt.Sprintf("%s %s rev:%s created:%s", binName, Version, Revision, Created))
	log.Info().Interface("config", &currentConfig).Msg("effective config")

	// If there was no config file, we log it here.
	if err != nil {
		log.Info().Msg(err.Error())
	}
}
