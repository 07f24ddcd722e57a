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

// Package watch notices changes in the storage root.
package watch

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"
)

const (
	lRoot  = "root"
	lCount = "count"
)

// Config controls the watcher.
type Config struct { //nolint:govet // Don't care about alignment.
	Enabled       bool          `yaml:"enabled" json:"enabled" env:"ENABLED" doc:"Watch the storage root for changes"`
	Debounce      time.Duration `yaml:"debounce" json:"debounce" env:"DEBOUNCE" validate:"gt=0" doc:"Quiet period before a burst of changes is reported"`
	RetryInterval time.Duration `yaml:"retry_interval" json:"retry_interval" env:"RETRY_INTERVAL" validate:"gt=0" doc:"How often to retry watching a missing root"`
}

// ConfigDefault returns the default values for a Config.
func ConfigDefault() Config {
	return Config{
		Enabled:       true,
		Debounce:      250 * time.Millisecond, //nolint:mnd // A recorder writes in bursts.
		RetryInterval: 5 * time.Second,        //nolint:mnd // Rare.
	}
}

// ChangeFunc receives the sorted base names touched during one burst.
type ChangeFunc func(names []string)

// Watcher reports bursts of filesystem changes directly inside root.
type Watcher struct {
	root     string
	debounce time.Duration
	retry    time.Duration
	onChange []ChangeFunc
	log      *zerolog.Logger
}

// New returns a Watcher calling every fn after each burst of changes.
func New(c *Config, root string, logger *zerolog.Logger, fns ...ChangeFunc) *Watcher {
	l := logger.With().Str("pkg", "watch").Logger()

	return &Watcher{
		root:     root,
		debounce: c.Debounce,
		retry:    c.RetryInterval,
		onChange: fns,
		log:      &l,
	}
}

var errRootGone = errors.New("watched root went away")

// Serve watches until ctx ends. A missing root is retried, so the recorder
// may create it later.
func (w *Watcher) Serve(ctx context.Context) error {
	for {
		err := w.watch(ctx)
		if ctx.Err() != nil {
			return ctx.Err() //nolint:wrapcheck // Context error.
		}

		w.log.Warn().Err(err).Str(lRoot, w.root).Dur("retry", w.retry).Msg("cannot watch storage root")

		select {
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck // Context error.
		case <-time.After(w.retry):
		}
	}
}

func (w *Watcher) watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err //nolint:wrapcheck // Logged by the caller.
	}

	defer fw.Close() //nolint:errcheck // Nothing to do about it.

	if err := fw.Add(w.root); err != nil {
		return err //nolint:wrapcheck // Logged by the caller.
	}

	w.log.Info().Str(lRoot, w.root).Msg("watching storage root")

	// Anything may have happened while we were not watching.
	w.fire([]string{})

	var (
		pending = map[string]struct{}{}
		timer   = time.NewTimer(w.debounce)
	)

	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck // Context error.

		case ev, ok := <-fw.Events:
			if !ok {
				return errRootGone
			}

			if filepath.Clean(ev.Name) == filepath.Clean(w.root) && ev.Has(fsnotify.Remove|fsnotify.Rename) {
				return errRootGone
			}

			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) {
				continue
			}

			pending[filepath.Base(ev.Name)] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return errRootGone
			}

			w.log.Warn().Err(err).Msg("watch error")

		case <-timer.C:
			names := make([]string, 0, len(pending))
			for n := range pending {
				names = append(names, n)
			}

			slices.Sort(names)
			pending = map[string]struct{}{}

			w.fire(names)
		}
	}
}

func (w *Watcher) fire(names []string) {
	w.log.Debug().Int(lCount, len(names)).Msg("storage root changed")

	for _, fn := range w.onChange {
		fn(names)
	}
}
