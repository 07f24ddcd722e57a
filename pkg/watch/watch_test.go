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

package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TurbineOne/detection-archive/pkg/logger"
)

type recorder struct {
	mu     sync.Mutex
	bursts [][]string
}

func (r *recorder) record(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.bursts = append(r.bursts, names)
}

func (r *recorder) seen(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.bursts {
		for _, n := range b {
			if n == name {
				return true
			}
		}
	}

	return false
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.bursts)
}

func start(t *testing.T, root string, rec *recorder) {
	t.Helper()

	c := Config{Enabled: true, Debounce: 20 * time.Millisecond, RetryInterval: 20 * time.Millisecond}
	w := New(&c, root, logger.Nop(), rec.record)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- w.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})
}

func TestWatcherReportsBursts(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	start(t, dir, rec)

	// The initial sync burst tells us the watch is in place.
	require.Eventually(t, func() bool { return rec.count() >= 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mp4"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte("{}"), 0o600))

	assert.Eventually(t, func() bool { return rec.seen("a.mp4") && rec.seen("a.json") },
		2*time.Second, 10*time.Millisecond)
}

func TestWatcherWaitsForRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "later")
	rec := &recorder{}

	start(t, root, rec)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, rec.count())

	require.NoError(t, os.Mkdir(root, 0o700))
	require.Eventually(t, func() bool { return rec.count() >= 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "b.mp4"), []byte("x"), 0o600))
	assert.Eventually(t, func() bool { return rec.seen("b.mp4") }, 2*time.Second, 10*time.Millisecond)
}
