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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/TurbineOne/detection-archive/pkg/events"
	"github.com/TurbineOne/detection-archive/pkg/metrics"
)

// runner is the suture service behind one detector run. Serve is called
// again for every restart.
type runner struct {
	m        *Manager
	cameraID string
	runID    string
	args     []string
	starts   int
}

func (r *runner) String() string {
	return "detector-" + r.cameraID
}

func (r *runner) Serve(ctx context.Context) error {
	m := r.m
	log := m.log.With().Str(lCamera, r.cameraID).Str(lRun, r.runID).Logger()

	cmd := exec.CommandContext(ctx, m.c.Command, r.args...) //nolint:gosec // Operator configured.
	cmd.Dir = m.c.WorkDir
	cmd.Env = m.environ()
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = m.c.StopTimeout

	out := &lineLogger{log: &log}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		r.finish(StateFailed, err)
		log.Error().Err(err).Msg("failed to launch detector")

		return suture.ErrDoNotRestart
	}

	restarts := r.starts
	r.starts++

	m.update(r.cameraID, r.runID, func(i *Info) {
		i.PID = cmd.Process.Pid
		i.State = StateRunning
		i.Restarts = restarts
		i.ExitedAt = nil
		i.ExitError = ""
	})

	log.Info().Int(lPID, cmd.Process.Pid).Int("restarts", restarts).Msg("detector process running")

	err := cmd.Wait()
	out.flush()

	if ctx.Err() != nil {
		// Stopped on purpose; the Manager does the bookkeeping.
		return ctx.Err() //nolint:wrapcheck // Context error.
	}

	if err == nil {
		err = errors.New("detector exited")
	}

	log.Warn().Err(err).Msg("detector process exited")
	metrics.DetectorExits.WithLabelValues("exited").Inc()
	r.finish(StateExited, err)

	if m.c.Restart {
		// Returning an error lets the supervisor restart us with backoff.
		return fmt.Errorf("detector for camera [%s]: %w", r.cameraID, err)
	}

	return suture.ErrDoNotRestart
}

func (r *runner) finish(state State, err error) {
	info, ok := r.m.update(r.cameraID, r.runID, func(i *Info) {
		now := time.Now().UTC()
		i.State = state
		i.ExitedAt = &now
		i.ExitError = err.Error()
	})

	if ok {
		r.m.pub.Publish(events.TypeDetectorExited, info)
	}
}

// lineLogger forwards process output to the log one line at a time.
type lineLogger struct {
	mu  sync.Mutex
	buf []byte
	log *zerolog.Logger
}

const maxLine = 4096

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf = append(l.buf, p...)

	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			break
		}

		l.emit(l.buf[:i])
		l.buf = l.buf[i+1:]
	}

	if len(l.buf) > maxLine {
		l.emit(l.buf)
		l.buf = nil
	}

	return len(p), nil
}

func (l *lineLogger) flush() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.buf) > 0 {
		l.emit(l.buf)
		l.buf = nil
	}
}

func (l *lineLogger) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return
	}

	l.log.Info().Str("output", string(line)).Msg("detector")
}
