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

package catalog

import (
	"context"
	"os"
	"sync"
	"time"

	"golang.org/x/exp/slices"
	"golang.org/x/sync/singleflight"

	"github.com/TurbineOne/detection-archive/pkg/metrics"
)

// Cache keeps the last listing of an Indexer. The snapshot is reused until
// the root's modification time moves or Invalidate is called. Concurrent
// misses share one scan.
type Cache struct {
	ix    *Indexer
	group singleflight.Group

	mu         sync.Mutex
	snapshot   []Entry
	rootMod    time.Time
	valid      bool
	generation uint64
}

// NewCache wraps ix.
func NewCache(ix *Indexer) *Cache {
	return &Cache{ix: ix}
}

// Root is the storage root of the wrapped Indexer.
func (c *Cache) Root() string {
	return c.ix.Root()
}

// Invalidate drops the snapshot. The next List rescans.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.valid = false
	c.snapshot = nil
	c.generation++
}

// List returns the cached snapshot when it is still current, else rescans.
func (c *Cache) List(ctx context.Context) ([]Entry, error) {
	info, err := os.Stat(c.ix.Root())
	if err != nil {
		// Let the indexer decide what a missing root means.
		return c.ix.List(ctx)
	}

	mod := info.ModTime()

	c.mu.Lock()
	if c.valid && c.rootMod.Equal(mod) {
		snap := c.snapshot
		c.mu.Unlock()

		metrics.CatalogCacheHits.Inc()

		return slices.Clone(snap), nil
	}

	gen := c.generation
	c.mu.Unlock()

	v, err, _ := c.group.Do("list", func() (interface{}, error) {
		// The scan outlives any one caller that is waiting on it.
		return c.ix.List(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // Indexer errors are typed.
	}

	entries, _ := v.([]Entry)

	c.mu.Lock()
	if gen == c.generation {
		c.snapshot = entries
		c.rootMod = mod
		c.valid = true
	}
	c.mu.Unlock()

	return slices.Clone(entries), nil
}
