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

package thumbnail

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(t *testing.T, entries int, render renderFunc) *Generator {
	t.Helper()

	c := ConfigDefault()
	c.CacheEntries = entries

	log := zerolog.Nop()

	g, err := New(&c, &log)
	require.NoError(t, err)

	g.render = render

	return g
}

func TestThumbnailCached(t *testing.T) {
	var calls atomic.Int32

	g := newTestGenerator(t, 4, func(path string, width int) ([]byte, error) {
		calls.Add(1)
		assert.Equal(t, 320, width)

		return []byte("jpeg:" + path), nil
	})

	mod := time.Unix(1700000000, 0)

	b, err := g.Thumbnail("/data/a.mp4", mod, 10)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg:/data/a.mp4"), b)

	_, err = g.Thumbnail("/data/a.mp4", mod, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	// A rewritten file is a new key.
	_, err = g.Thumbnail("/data/a.mp4", mod.Add(time.Second), 10)
	require.NoError(t, err)
	_, err = g.Thumbnail("/data/a.mp4", mod.Add(time.Second), 11)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())

	g.Purge()

	_, err = g.Thumbnail("/data/a.mp4", mod, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(4), calls.Load())
}

func TestThumbnailNoCache(t *testing.T) {
	var calls atomic.Int32

	g := newTestGenerator(t, 0, func(string, int) ([]byte, error) {
		calls.Add(1)

		return []byte{0xFF, 0xD8}, nil
	})

	for i := 0; i < 3; i++ {
		_, err := g.Thumbnail("x.mp4", time.Time{}, 0)
		require.NoError(t, err)
	}

	assert.Equal(t, int32(3), calls.Load())
	g.Purge()
}

func TestThumbnailErrorNotCached(t *testing.T) {
	var calls atomic.Int32

	boom := errors.New("boom")

	g := newTestGenerator(t, 4, func(string, int) ([]byte, error) {
		calls.Add(1)

		return nil, boom
	})

	_, err := g.Thumbnail("x.mp4", time.Time{}, 0)
	require.ErrorIs(t, err, boom)

	_, err = g.Thumbnail("x.mp4", time.Time{}, 0)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), calls.Load())
}

func TestThumbnailConcurrentCallersShareRender(t *testing.T) {
	var calls atomic.Int32

	release := make(chan struct{})

	g := newTestGenerator(t, 4, func(string, int) ([]byte, error) {
		calls.Add(1)
		<-release

		return []byte("ok"), nil
	})

	const n = 8

	var wg sync.WaitGroup

	wg.Add(n)

	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()

			b, err := g.Thumbnail("same.mp4", time.Time{}, 1)
			assert.NoError(t, err)
			assert.Equal(t, []byte("ok"), b)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(n))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestRenderNotMedia(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.mp4")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a video"), 0o600))

	_, err := renderFirstFrame(path, 64)
	assert.Error(t, err)
}

func TestRenderMissingFile(t *testing.T) {
	_, err := renderFirstFrame(filepath.Join(t.TempDir(), "nope.mp4"), 64)
	assert.Error(t, err)
}

func TestRouteFFmpegLogs(t *testing.T) {
	log := zerolog.Nop()

	assert.Error(t, RouteFFmpegLogs("loud", &log))
	assert.NoError(t, RouteFFmpegLogs("disabled", &log))
}
