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

package detector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TurbineOne/detection-archive/pkg/events"
	"github.com/TurbineOne/detection-archive/pkg/logger"
)

type capture struct {
	mu    sync.Mutex
	types []string
}

func (c *capture) Publish(eventType string, _ interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.types = append(c.types, eventType)
}

func (c *capture) has(eventType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range c.types {
		if t == eventType {
			return true
		}
	}

	return false
}

func newManager(t *testing.T, mutate func(*Config)) (*Manager, *capture) {
	t.Helper()

	c := ConfigDefault()
	c.Command = "/bin/sh"
	c.Args = []string{"-c", "exec sleep 30", "detector", "{source}", "{camera}"}
	c.StopTimeout = 2 * time.Second
	c.Supervisor.FailureBackoff = 10 * time.Millisecond

	if mutate != nil {
		mutate(&c)
	}

	pub := &capture{}
	m := New(&c, pub, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		_ = m.Serve(ctx)
		close(done)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return m, pub
}

func waitState(t *testing.T, m *Manager, cameraID string, want State) Info {
	t.Helper()

	var info Info

	require.Eventually(t, func() bool {
		var ok bool
		info, ok = m.Get(cameraID)

		return ok && info.State == want
	}, 5*time.Second, 10*time.Millisecond, "camera %s never reached %s", cameraID, want)

	return info
}

func TestStartStop(t *testing.T) {
	m, pub := newManager(t, nil)

	info, err := m.Start("cam1", "rtsp://10.0.0.5/stream")
	require.NoError(t, err)
	assert.Equal(t, "cam1", info.CameraID)
	assert.NotEmpty(t, info.RunID)

	running := waitState(t, m, "cam1", StateRunning)
	assert.Positive(t, running.PID)
	assert.Equal(t, "rtsp://10.0.0.5/stream", running.Source)

	require.NoError(t, m.Stop("cam1"))

	_, ok := m.Get("cam1")
	assert.False(t, ok)
	assert.Empty(t, m.List())
	assert.True(t, pub.has(events.TypeDetectorStarted))
	assert.True(t, pub.has(events.TypeDetectorStopped))
}

func TestStopUnknownCamera(t *testing.T) {
	m, _ := newManager(t, nil)

	err := m.Stop("nobody")

	var nr *NotRunningError
	require.True(t, errors.As(err, &nr))
	assert.Equal(t, "nobody", nr.CameraID)
}

func TestStartReplacesExisting(t *testing.T) {
	m, _ := newManager(t, nil)

	first, err := m.Start("cam1", "0")
	require.NoError(t, err)
	waitState(t, m, "cam1", StateRunning)

	second, err := m.Start("cam1", "1")
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)

	info := waitState(t, m, "cam1", StateRunning)
	assert.Equal(t, second.RunID, info.RunID)
	assert.Equal(t, "1", info.Source)
	assert.Len(t, m.List(), 1)
}

func TestArgumentsAreSubstituted(t *testing.T) {
	out := filepath.Join(t.TempDir(), "args")

	m, _ := newManager(t, func(c *Config) {
		c.Args = []string{"-c", `printf '%s|%s' "$1" "$2" > "$3"; exec sleep 30`, "detector", "{source}", "{camera}", out}
	})

	_, err := m.Start("north_gate", "/dev/video0")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		b, err := os.ReadFile(out)

		return err == nil && string(b) == "/dev/video0|north_gate"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestExitedProcessIsReported(t *testing.T) {
	m, pub := newManager(t, func(c *Config) {
		c.Args = []string{"-c", "exit 3"}
	})

	_, err := m.Start("cam1", "0")
	require.NoError(t, err)

	info := waitState(t, m, "cam1", StateExited)
	assert.NotNil(t, info.ExitedAt)
	assert.Contains(t, info.ExitError, "exit status 3")
	assert.True(t, pub.has(events.TypeDetectorExited))

	var nr *NotRunningError
	assert.True(t, errors.As(m.Stop("cam1"), &nr))

	_, ok := m.Get("cam1")
	assert.False(t, ok, "stop forgets exited detectors")
}

func TestLaunchFailure(t *testing.T) {
	m, _ := newManager(t, func(c *Config) {
		c.Command = filepath.Join(t.TempDir(), "no-such-detector")
	})

	_, err := m.Start("cam1", "0")
	require.NoError(t, err)

	info := waitState(t, m, "cam1", StateFailed)
	assert.NotEmpty(t, info.ExitError)
}

func TestRestartOnExit(t *testing.T) {
	m, _ := newManager(t, func(c *Config) {
		c.Restart = true
		c.Args = []string{"-c", "sleep 0.05; exit 1"}
	})

	_, err := m.Start("cam1", "0")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		info, ok := m.Get("cam1")

		return ok && info.Restarts >= 2
	}, 10*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Stop("cam1"))
}

func TestValidation(t *testing.T) {
	m, _ := newManager(t, nil)

	for _, tc := range []struct{ cam, src string }{
		{"", "0"},
		{"cam 1", "0"},
		{"../etc", "0"},
		{strings.Repeat("c", 65), "0"},
		{"cam1", ""},
		{"cam1", "   "},
		{"cam1", "--help"},
		{"cam1", "a\x00b"},
		{"cam1", strings.Repeat("s", maxSourceLen+1)},
	} {
		_, err := m.Start(tc.cam, tc.src)

		var ir *InvalidRequestError
		assert.True(t, errors.As(err, &ir), "cam %q src %q", tc.cam, tc.src)
	}

	assert.Empty(t, m.List())
}

func TestProcessLimit(t *testing.T) {
	m, _ := newManager(t, func(c *Config) { c.MaxProcesses = 1 })

	_, err := m.Start("cam1", "0")
	require.NoError(t, err)

	_, err = m.Start("cam2", "0")

	var le *LimitError
	require.True(t, errors.As(err, &le))

	_, err = m.Start("cam1", "1")
	assert.NoError(t, err, "replacing does not count against the limit")
}

func TestListIsSorted(t *testing.T) {
	m, _ := newManager(t, nil)

	for _, id := range []string{"cam3", "cam1", "cam2"} {
		_, err := m.Start(id, "0")
		require.NoError(t, err)
	}

	got := make([]string, 0, 3)
	for _, i := range m.List() {
		got = append(got, i.CameraID)
	}

	assert.Equal(t, []string{"cam1", "cam2", "cam3"}, got)
}

func TestLineLogger(t *testing.T) {
	l := &lineLogger{log: logger.Nop()}

	n, err := l.Write([]byte("partial"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, _ = l.Write([]byte(" line\nnext"))
	assert.Equal(t, "next", string(l.buf))

	l.flush()
	assert.Empty(t, l.buf)
}
