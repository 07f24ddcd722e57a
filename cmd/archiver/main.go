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
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog"

	"github.com/TurbineOne/detection-archive/pkg/catalog"
	"github.com/TurbineOne/detection-archive/pkg/control"
	"github.com/TurbineOne/detection-archive/pkg/delivery"
	"github.com/TurbineOne/detection-archive/pkg/detector"
	"github.com/TurbineOne/detection-archive/pkg/events"
	"github.com/TurbineOne/detection-archive/pkg/interrupt"
	"github.com/TurbineOne/detection-archive/pkg/server"
	"github.com/TurbineOne/detection-archive/pkg/sidecar"
	"github.com/TurbineOne/detection-archive/pkg/supervisor"
	"github.com/TurbineOne/detection-archive/pkg/thumbnail"
	"github.com/TurbineOne/detection-archive/pkg/watch"
)

var log zerolog.Logger //nolint:gochecknoglobals // Don't care.

// catalogLister is what the HTTP and control layers list from.
type catalogLister interface {
	Root() string
	List(ctx context.Context) ([]catalog.Entry, error)
	Invalidate()
}

// uncached lists straight from the indexer every time.
type uncached struct {
	*catalog.Indexer
}

func (uncached) Invalidate() {}

func newLister(c *mainConfig) (catalogLister, *catalog.Indexer, error) {
	ix, err := catalog.New(&c.Catalog, sidecar.NewResolver(&c.Sidecar), &log)
	if err != nil {
		return nil, nil, err //nolint:wrapcheck // Already descriptive.
	}

	if c.Catalog.Cache {
		return catalog.NewCache(ix), ix, nil
	}

	return uncached{ix}, ix, nil
}

func run(ctx context.Context, c *mainConfig) error {
	lister, ix, err := newLister(c)
	if err != nil {
		return err
	}

	assets, err := delivery.New(&c.Delivery, ix.Root(), &log, delivery.WithFilter(func(name string) bool {
		_, ok := ix.KindOf(name)

		return ok
	}))
	if err != nil {
		return err //nolint:wrapcheck // Already descriptive.
	}

	thumbs, err := thumbnail.New(&c.Thumbnail, &log)
	if err != nil {
		return err //nolint:wrapcheck // Already descriptive.
	}

	hub := events.NewHub(c.Server.AllowedOrigins, &log)
	detectors := detector.New(&c.Detector, hub, &log)

	srv := server.New(&c.Server, server.Deps{
		Catalog:    lister,
		Assets:     assets,
		Thumbnails: thumbs,
		Detectors:  detectors,
		Events:     hub,
	}, &log)

	root := supervisor.New("archiver", &c.Supervisor, &log)
	root.Add(hub)
	root.Add(detectors)
	root.Add(srv)

	if c.Control.Enabled {
		root.Add(control.New(&c.Control, lister, detectors, server.URLs(), &log))
	}

	if c.Watch.Enabled {
		root.Add(watch.New(&c.Watch, ix.Root(), &log, func(names []string) {
			lister.Invalidate()
			hub.Publish(events.TypeCatalogChanged, map[string]interface{}{"files": names})
		}))
	}

	log.Info().Str("root", ix.Root()).Msg("archiver running")

	err = root.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err //nolint:wrapcheck // Supervisor error.
}

func main() {
	initConfig() // May early exit if config init fails.

	if err := thumbnail.RouteFFmpegLogs(currentConfig.Logger.FFmpegLevel, &log); err != nil {
		log.Error().Err(err).Msg("failed to route ffmpeg logs")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		err := interrupt.Run(ctx)
		log.Info().Err(err).Msg("shutting down")

		cancel()
	}()

	if err := run(ctx, &currentConfig); err != nil {
		log.Error().Err(err).Msg("archiver failed")
		cancel()
		os.Exit(1) //nolint:gocritic // cancel was called.
	}

	log.Info().Msg("archiver stopped")
}
