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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TurbineOne/detection-archive/pkg/config"
)

func TestDefaultConfigIsValid(t *testing.T) {
	c := defaultConfig()
	require.NoError(t, config.Validate(&c))
}

func TestLoadConfigMissingFile(t *testing.T) {
	c := defaultConfig()

	err := loadConfig(filepath.Join(t.TempDir(), "none.yaml"), &c)

	var ncErr *config.NoConfigError
	assert.True(t, errors.As(err, &ncErr))
	assert.Equal(t, defaultConfig().Catalog.Root, c.Catalog.Root)
}

func TestLoadConfigEnvAndFile(t *testing.T) {
	t.Setenv("ARCHIVER_CATALOG_ROOT", "/from/env")
	t.Setenv("ARCHIVER_HTTP_ADDRESS", "127.0.0.1:9000")
	t.Setenv("ARCHIVER_DETECTOR_MAX_PROCESSES", "3")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
catalog:
  root: /from/file
  cache: true
delivery:
  chunk_write_timeout: 5s
`), 0o600))

	c := defaultConfig()
	require.NoError(t, loadConfig(path, &c))

	// The file wins over the environment.
	assert.Equal(t, "/from/file", c.Catalog.Root)
	assert.True(t, c.Catalog.Cache)
	assert.Equal(t, "127.0.0.1:9000", c.Server.Address)
	assert.Equal(t, 3, c.Detector.MaxProcesses)
	assert.Equal(t, 5*time.Second, c.Delivery.ChunkWriteTimeout)
	assert.Equal(t, defaultConfig().Sidecar, c.Sidecar)
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logger:\n  level: loud\n"), 0o600))

	c := defaultConfig()
	err := loadConfig(path, &c)

	var invalid *config.InvalidConfigError
	assert.True(t, errors.As(err, &invalid))
}
