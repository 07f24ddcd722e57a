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

// Package thumbnail renders still previews of recordings.
package thumbnail

import (
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/TurbineOne/detection-archive/pkg/metrics"
)

const (
	lPath     = "path"
	lDuration = "duration"
	lBytes    = "bytes"
)

// Config controls thumbnail size and how many are kept in memory.
type Config struct {
	Width        int `yaml:"width" json:"width" env:"WIDTH" validate:"min=16,max=4096" doc:"Maximum thumbnail width in pixels, height follows the aspect ratio"`
	CacheEntries int `yaml:"cache_entries" json:"cache_entries" env:"CACHE_ENTRIES" validate:"min=0" doc:"Thumbnails kept in memory, 0 disables the cache"`
}

// ConfigDefault returns the default values for a Config.
func ConfigDefault() Config {
	return Config{
		Width:        320, //nolint:mnd // Default.
		CacheEntries: 256, //nolint:mnd // Default.
	}
}

type renderFunc func(path string, width int) ([]byte, error)

// Generator renders JPEG thumbnails from the first frame of a video.
// It is safe for concurrent use.
type Generator struct {
	width  int
	cache  *lru.Cache // nil when caching is off
	group  singleflight.Group
	render renderFunc
	log    zerolog.Logger
}

// New returns a Generator for c.
func New(c *Config, logger *zerolog.Logger) (*Generator, error) {
	g := &Generator{
		width:  c.Width,
		render: renderFirstFrame,
		log:    logger.With().Str("pkg", "thumbnail").Logger(),
	}

	if c.CacheEntries > 0 {
		cache, err := lru.New(c.CacheEntries)
		if err != nil {
			return nil, err
		}

		g.cache = cache
	}

	return g, nil
}

// cacheKey changes whenever the file is rewritten.
func cacheKey(path string, modTime time.Time, size int64) string {
	return path + "\x00" + strconv.FormatInt(modTime.UnixNano(), 10) + "\x00" + strconv.FormatInt(size, 10)
}

// Thumbnail returns the JPEG preview of the video at path. modTime and size
// identify the file version, so a replaced file gets a fresh thumbnail.
func (g *Generator) Thumbnail(path string, modTime time.Time, size int64) ([]byte, error) {
	key := cacheKey(path, modTime, size)

	if g.cache != nil {
		if v, ok := g.cache.Get(key); ok {
			metrics.ThumbnailCache.WithLabelValues("hit").Inc()

			return v.([]byte), nil //nolint:forcetypeassert // Only []byte goes in.
		}
	}

	metrics.ThumbnailCache.WithLabelValues("miss").Inc()

	v, err, _ := g.group.Do(key, func() (interface{}, error) {
		start := time.Now()

		b, err := g.render(path, g.width)
		if err != nil {
			return nil, err
		}

		g.log.Debug().Str(lPath, path).Dur(lDuration, time.Since(start)).Int(lBytes, len(b)).
			Msg("rendered thumbnail")

		if g.cache != nil {
			g.cache.Add(key, b)
		}

		return b, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]byte), nil //nolint:forcetypeassert // Only []byte comes out.
}

// Purge drops every cached thumbnail.
func (g *Generator) Purge() {
	if g.cache != nil {
		g.cache.Purge()
	}
}
