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
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TurbineOne/detection-archive/pkg/logger"
	"github.com/TurbineOne/detection-archive/pkg/mimer"
	"github.com/TurbineOne/detection-archive/pkg/sidecar"
	"github.com/TurbineOne/detection-archive/pkg/threat"
)

var mp4Head = []byte{0x00, 0x00, 0x00, 0x20, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0, 0, 2, 0}

func touch(t *testing.T, dir, name string, content []byte, mod time.Time) string {
	t.Helper()

	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, content, 0o600))

	if !mod.IsZero() {
		require.NoError(t, os.Chtimes(p, mod, mod))
	}

	return p
}

func newIndexer(t *testing.T, root string, mutate ...func(*Config)) *Indexer {
	t.Helper()

	c := ConfigDefault()
	c.Root = root

	for _, m := range mutate {
		m(&c)
	}

	sc := sidecar.ConfigDefault()

	ix, err := New(&c, sidecar.NewResolver(&sc), logger.Nop())
	require.NoError(t, err)

	return ix
}

func ids(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}

	return out
}

func TestListDefaultsWithoutSidecar(t *testing.T) {
	dir := t.TempDir()
	p := touch(t, dir, "drone_detection_2023-05-15_12-30-45.mp4", mp4Head, time.Time{})
	require.NoError(t, os.Truncate(p, 10<<20))

	entries, err := newIndexer(t, dir).List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "drone_detection_2023-05-15_12-30-45.mp4", e.ID)
	assert.Equal(t, int64(10<<20), e.Size)
	assert.Equal(t, mimer.MediaTypeMP4, e.ContentType)
	assert.Equal(t, KindVideo, e.Kind)
	assert.Equal(t, SourceFilename, e.Metadata.Source)
	assert.Equal(t, "2023-05-15_12-30-45", e.Metadata.Timestamp)
	assert.Equal(t, "Unknown", e.Metadata.DroneType)
	assert.Equal(t, threat.Low, e.Metadata.ThreatLevel)
	assert.Zero(t, e.Metadata.Confidence)
	assert.NotNil(t, e.Metadata.Coordinates)
	assert.True(t, time.Date(2023, 5, 15, 12, 30, 45, 0, time.UTC).Equal(e.Timestamp), e.Timestamp.String())
}

func TestListPairsSidecars(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "drone_detection_20230515_123045_Mavic_High.mp4", mp4Head, time.Time{})
	touch(t, dir, "drone_detection_20230515_123045_Mavic_High.json",
		[]byte(`{"timestamp": "2023-05-15T12:30:50", "droneType": "Mavic 3", "confidence": 0.93, "coordinates": [[1,2,3,4]]}`),
		time.Time{})

	entries, err := newIndexer(t, dir).List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1, "sidecars are not assets")

	e := entries[0]
	assert.Equal(t, SourceSidecar, e.Metadata.Source)
	assert.Equal(t, "Mavic 3", e.Metadata.DroneType)
	assert.Equal(t, threat.High, e.Metadata.ThreatLevel)
	assert.Equal(t, [][]float64{{1, 2, 3, 4}}, e.Metadata.Coordinates)
	assert.True(t, time.Date(2023, 5, 15, 12, 30, 50, 0, time.UTC).Equal(e.Timestamp), e.Timestamp.String())
}

func TestListCorruptSidecarFallsBack(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "drone_detection_20230515_123045_Mavic_Medium.mp4", mp4Head, time.Time{})
	touch(t, dir, "drone_detection_20230515_123045_Mavic_Medium.json", []byte(`{"droneType":`), time.Time{})
	touch(t, dir, "other_cam_20230516_000000_Quad.mp4", mp4Head, time.Time{})
	touch(t, dir, "other_cam_20230516_000000_Quad.json", []byte(`{"droneType": "Quad", "coordinates": null}`),
		time.Time{})

	entries, err := newIndexer(t, dir).List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	for _, e := range entries {
		assert.Equal(t, SourceFilename, e.Metadata.Source, e.ID)
	}

	assert.Equal(t, "Quad", entries[0].Metadata.DroneType)
	assert.Equal(t, "Mavic", entries[1].Metadata.DroneType)
	assert.Equal(t, threat.Medium, entries[1].Metadata.ThreatLevel)
}

func TestListOrdering(t *testing.T) {
	dir := t.TempDir()
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	touch(t, dir, "b_cam_20230101_000000.mp4", mp4Head, time.Time{})
	touch(t, dir, "a_cam_20230101_000000.mp4", mp4Head, time.Time{})
	touch(t, dir, "z_cam_20240101_000000.webm", mp4Head, time.Time{})
	touch(t, dir, "untimed.mov", mp4Head, old)
	touch(t, dir, "snap_x_20230601_000000_DJI_Low_0.40.jpg", []byte{0xFF, 0xD8, 0xFF}, time.Time{})

	ix := newIndexer(t, dir)

	first, err := ix.List(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"z_cam_20240101_000000.webm",
		"snap_x_20230601_000000_DJI_Low_0.40.jpg",
		"a_cam_20230101_000000.mp4",
		"b_cam_20230101_000000.mp4",
		"untimed.mov",
	}, ids(first))

	second, err := ix.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ids(first), ids(second))

	assert.True(t, old.Equal(first[4].Timestamp), "modification time is the last resort")
	assert.Equal(t, KindImage, first[1].Kind)
	assert.InDelta(t, 0.40, first[1].Metadata.Confidence, 1e-9)
}

func TestListSkipsUnrecognized(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "notes.txt", []byte("hi"), time.Time{})
	touch(t, dir, ".hidden.mp4", mp4Head, time.Time{})
	touch(t, dir, "orphan.json", []byte(`{}`), time.Time{})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.mp4"), 0o700))
	touch(t, dir, "UPPER.MP4", mp4Head, time.Time{})

	entries, err := newIndexer(t, dir).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"UPPER.MP4"}, ids(entries))
}

func TestListSkipsDanglingSymlink(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Symlink(filepath.Join(dir, "missing.mp4"), filepath.Join(dir, "dangling.mp4")))
	touch(t, dir, "real.mp4", mp4Head, time.Time{})

	entries, err := newIndexer(t, dir).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"real.mp4"}, ids(entries))
}

func TestListFollowsSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := touch(t, t.TempDir(), "elsewhere.mp4", mp4Head, time.Time{})
	require.NoError(t, os.Symlink(target, filepath.Join(dir, "linked_cam_20230101_000000.mp4")))

	entries, err := newIndexer(t, dir).List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(len(mp4Head)), entries[0].Size)
}

func TestListMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "absent")

	_, err := newIndexer(t, root).List(context.Background())

	var dnf *DirectoryNotFoundError
	require.True(t, errors.As(err, &dnf))
	assert.Equal(t, root, dnf.Root)
}

func TestListCreatesMissingRootWhenAsked(t *testing.T) {
	root := filepath.Join(t.TempDir(), "absent")

	entries, err := newIndexer(t, root, func(c *Config) { c.CreateMissingRoot = true }).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.DirExists(t, root)
}

func TestListCanceled(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a_b_20230101_000000.mp4", mp4Head, time.Time{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newIndexer(t, dir).List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsBadTimezone(t *testing.T) {
	c := ConfigDefault()
	c.Timezone = "Mars/Olympus"
	sc := sidecar.ConfigDefault()

	_, err := New(&c, sidecar.NewResolver(&sc), logger.Nop())
	assert.Error(t, err)
}

func TestNewViewJSON(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "cam 1#_20230515_123045.mp4", mp4Head, time.Time{})

	entries, err := newIndexer(t, dir).List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	v := NewView(&entries[0], URLs{Assets: "/assets/", Thumbnails: "/thumbnails"})
	assert.Equal(t, "/assets/cam%201%23_20230515_123045.mp4", v.URL)
	assert.Equal(t, "/thumbnails/cam%201%23_20230515_123045.mp4", v.ThumbnailURL)
	assert.Equal(t, "2023-05-15T12:30:45Z", v.Timestamp)

	b, err := json.Marshal(v)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &decoded))

	md, ok := decoded["metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "filename", md["source"])
	assert.Equal(t, "Unknown", md["droneType"])
	assert.Equal(t, []interface{}{}, md["coordinates"])
	assert.NotContains(t, md, "raw")
}

func TestFilterApply(t *testing.T) {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []Entry{
		{Asset: Asset{ID: "a", Kind: KindVideo}, Timestamp: base.Add(3 * time.Hour), Metadata: Metadata{ThreatLevel: threat.High}},
		{Asset: Asset{ID: "b", Kind: KindImage}, Timestamp: base.Add(2 * time.Hour), Metadata: Metadata{ThreatLevel: threat.Low}},
		{Asset: Asset{ID: "c", Kind: KindVideo}, Timestamp: base.Add(time.Hour), Metadata: Metadata{ThreatLevel: threat.Medium}},
		{Asset: Asset{ID: "d", Kind: KindVideo}, Timestamp: base, Metadata: Metadata{ThreatLevel: threat.Low}},
	}

	assert.Equal(t, []string{"a", "c", "d"}, ids((&Filter{Kinds: []Kind{KindVideo}}).Apply(entries)))
	assert.Equal(t, []string{"a", "c"}, ids((&Filter{MinThreat: threat.Medium}).Apply(entries)))
	assert.Equal(t, []string{"b", "d"}, ids((&Filter{ThreatLevels: []threat.Level{threat.Low}}).Apply(entries)))
	assert.Equal(t, []string{"a", "b"}, ids((&Filter{Since: base.Add(90 * time.Minute)}).Apply(entries)))
	assert.Equal(t, []string{"a"}, ids((&Filter{Limit: 1}).Apply(entries)))
	assert.Len(t, (&Filter{}).Apply(entries), 4)
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter(url.Values{
		"kind":        {"video,IMAGE"},
		"threatLevel": {"high", "medium"},
		"minThreat":   {"Medium"},
		"since":       {"2024-03-01T10:00:00Z"},
		"limit":       {"5"},
	})
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindVideo, KindImage}, f.Kinds)
	assert.Equal(t, []threat.Level{threat.High, threat.Medium}, f.ThreatLevels)
	assert.Equal(t, threat.Medium, f.MinThreat)
	assert.True(t, f.Since.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, 5, f.Limit)

	f, err = ParseFilter(url.Values{})
	require.NoError(t, err)
	assert.Len(t, f.Apply(make([]Entry, 3)), 3)

	for _, q := range []url.Values{
		{"kind": {"audio"}},
		{"threatLevel": {"severe"}},
		{"minThreat": {"x"}},
		{"since": {"yesterday"}},
		{"limit": {"-1"}},
		{"limit": {"ten"}},
	} {
		_, err = ParseFilter(q)

		var fe *InvalidFilterError
		assert.True(t, errors.As(err, &fe), "%v", q)
	}
}
