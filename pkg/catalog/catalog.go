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

// Package catalog builds the list of recorded assets in the storage root.
//
// A listing is derived from the filesystem on every call: each recognized
// file is paired with its sidecar, falls back to what its filename says, and
// the result is ordered newest first.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/TurbineOne/detection-archive/pkg/metrics"
	"github.com/TurbineOne/detection-archive/pkg/mimer"
	"github.com/TurbineOne/detection-archive/pkg/naming"
	"github.com/TurbineOne/detection-archive/pkg/sidecar"
)

const (
	lRoot  = "root"
	lFile  = "file"
	lCount = "count"
)

// Kind separates playable recordings from still snapshots.
type Kind string

const (
	KindVideo Kind = "video"
	KindImage Kind = "image"
)

// DirectoryNotFoundError means the storage root does not exist.
type DirectoryNotFoundError struct {
	Root string
}

func (e *DirectoryNotFoundError) Error() string {
	return "storage directory not found [" + e.Root + "]"
}

// Config controls where and how assets are indexed.
type Config struct { //nolint:govet // Don't care about alignment.
	Root              string   `yaml:"root" json:"root" env:"ROOT" validate:"required" doc:"Directory holding recordings, snapshots and their sidecars"`
	VideoExtensions   []string `yaml:"video_extensions" json:"video_extensions" env:"VIDEO_EXTENSIONS" envSeparator:"," validate:"dive,startswith=." doc:"Extensions indexed as video"`
	ImageExtensions   []string `yaml:"image_extensions" json:"image_extensions" env:"IMAGE_EXTENSIONS" envSeparator:"," validate:"dive,startswith=." doc:"Extensions indexed as images"`
	CreateMissingRoot bool     `yaml:"create_missing_root" json:"create_missing_root" env:"CREATE_MISSING_ROOT" doc:"Create the root and return an empty catalog instead of failing"`
	Parallelism       int      `yaml:"parallelism" json:"parallelism" env:"PARALLELISM" validate:"min=1,max=256" doc:"Files resolved concurrently per listing"`
	Cache             bool     `yaml:"cache" json:"cache" env:"CACHE" doc:"Reuse the last listing until the root changes"`
	Timezone          string   `yaml:"timezone" json:"timezone" env:"TIMEZONE" doc:"Location of timestamps that carry no zone"`
}

// ConfigDefault returns the default values for a Config.
func ConfigDefault() Config {
	return Config{
		Root:            "./recordings",
		VideoExtensions: []string{".mp4", ".webm", ".mov", ".avi", ".mkv"},
		ImageExtensions: []string{".jpg", ".jpeg"},
		Parallelism:     8, //nolint:mnd // Reasonable for local disks.
		Timezone:        "UTC",
	}
}

// Asset is one media file under the root.
type Asset struct {
	ID          string
	Filename    string
	Path        string
	Size        int64
	ModTime     time.Time
	ContentType string
	Kind        Kind
}

// Entry is an Asset joined with its metadata. Timestamp is the effective
// time used for ordering.
type Entry struct {
	Asset

	Timestamp time.Time
	Metadata  Metadata
}

// Lister is anything that produces a catalog.
type Lister interface {
	List(ctx context.Context) ([]Entry, error)
}

// Indexer scans the storage root. It holds no mutable state, so concurrent
// listings need no coordination.
type Indexer struct {
	root          string
	kinds         map[string]Kind
	createMissing bool
	parallelism   int
	loc           *time.Location
	sidecars      *sidecar.Resolver
	log           *zerolog.Logger
}

// New returns an Indexer for c.
func New(c *Config, sidecars *sidecar.Resolver, logger *zerolog.Logger) (*Indexer, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("bad catalog timezone [%s]: %w", c.Timezone, err)
	}

	root, err := filepath.Abs(c.Root)
	if err != nil {
		return nil, fmt.Errorf("bad catalog root [%s]: %w", c.Root, err)
	}

	kinds := make(map[string]Kind, len(c.VideoExtensions)+len(c.ImageExtensions))
	for _, ext := range c.VideoExtensions {
		kinds[strings.ToLower(ext)] = KindVideo
	}

	for _, ext := range c.ImageExtensions {
		kinds[strings.ToLower(ext)] = KindImage
	}

	l := logger.With().Str("pkg", "catalog").Logger()

	return &Indexer{
		root:          root,
		kinds:         kinds,
		createMissing: c.CreateMissingRoot,
		parallelism:   max(c.Parallelism, 1),
		loc:           loc,
		sidecars:      sidecars,
		log:           &l,
	}, nil
}

// Root is the absolute storage root.
func (ix *Indexer) Root() string {
	return ix.root
}

// KindOf reports the kind implied by the extension of name.
func (ix *Indexer) KindOf(name string) (Kind, bool) {
	k, ok := ix.kinds[strings.ToLower(filepath.Ext(name))]

	return k, ok
}

// List returns every recognized asset in the root, newest first. Problems
// with single files are logged and never fail the listing.
func (ix *Indexer) List(ctx context.Context) ([]Entry, error) {
	start := time.Now()

	dirEntries, err := os.ReadDir(ix.root)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read storage directory: %w", err)
		}

		if !ix.createMissing {
			return nil, &DirectoryNotFoundError{Root: ix.root}
		}

		if err := os.MkdirAll(ix.root, 0o755); err != nil { //nolint:mnd // Shared with the detector.
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}

		ix.log.Info().Str(lRoot, ix.root).Msg("created missing storage directory")

		return []Entry{}, nil
	}

	candidates := make([]fs.DirEntry, 0, len(dirEntries))

	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		if _, ok := ix.KindOf(name); !ok {
			continue
		}

		candidates = append(candidates, de)
	}

	resolved := make([]*Entry, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.parallelism)

	for i, de := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err //nolint:wrapcheck // Context error.
			}

			resolved[i] = ix.resolve(de)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // Context error.
	}

	entries := make([]Entry, 0, len(resolved))

	for _, e := range resolved {
		if e != nil {
			entries = append(entries, *e)
		}
	}

	Sort(entries)
	metrics.ObserveScan(start, len(entries))

	return entries, nil
}

// resolve builds the entry of one file, or nil when the file vanished or
// cannot be inspected.
func (ix *Indexer) resolve(de fs.DirEntry) *Entry {
	name := de.Name()
	path := filepath.Join(ix.root, name)

	info, err := de.Info()
	if err == nil && de.Type()&fs.ModeSymlink != 0 {
		info, err = os.Stat(path)
	}

	if err != nil {
		ix.log.Warn().Err(err).Str(lFile, name).Msg("skipping file that cannot be stat'ed")

		return nil
	}

	if !info.Mode().IsRegular() {
		return nil
	}

	kind, _ := ix.KindOf(name)

	a := Asset{
		ID:          name,
		Filename:    name,
		Path:        path,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		ContentType: mimer.GetContentType(path),
		Kind:        kind,
	}

	parsed := naming.ParseIn(name, ix.loc)

	md, err := ix.sidecars.Resolve(path)
	if err != nil {
		metrics.SidecarCorrupt.Inc()
		ix.log.Warn().Err(err).Str(lFile, name).Msg("ignoring unusable sidecar")

		md = nil
	}

	e := &Entry{Asset: a}

	if md != nil {
		e.Metadata = fromSidecar(md, parsed)
		if t, ok := naming.ParseTimestamp(md.Timestamp, ix.loc); ok {
			e.Timestamp = t
		}
	} else {
		e.Metadata = fromFilename(parsed, info.ModTime())
	}

	if e.Timestamp.IsZero() {
		e.Timestamp = parsed.Time
	}

	if e.Timestamp.IsZero() {
		e.Timestamp = info.ModTime()
	}

	return e
}

// Sort orders entries by timestamp, newest first, then by filename.
func Sort(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}

		return strings.Compare(a.Filename, b.Filename)
	})
}

// MarshalZerologObject lets an entry be logged with Object().
func (e *Entry) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("id", e.ID).
		Int64("size", e.Size).
		Str("type", e.ContentType).
		Time("timestamp", e.Timestamp).
		Str("source", string(e.Metadata.Source))
}
