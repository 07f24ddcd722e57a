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

// Package detector starts, stops and tracks external detection processes,
// one per camera.
//
// A Manager owns the camera to process map; there is no package state. Each
// process runs as a suture service under the Manager's supervisor, so an
// unexpected exit can be restarted with backoff when configured.
package detector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
	"golang.org/x/exp/slices"

	"github.com/TurbineOne/detection-archive/pkg/events"
	"github.com/TurbineOne/detection-archive/pkg/metrics"
	"github.com/TurbineOne/detection-archive/pkg/supervisor"
)

const (
	lCamera = "camera"
	lRun    = "run"
	lPID    = "pid"

	maxSourceLen = 2048
)

var cameraIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// State of a detector process.
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateExited   State = "exited"
	StateFailed   State = "failed"
)

// NotRunningError means there is no live process for the camera.
type NotRunningError struct {
	CameraID string
}

func (e *NotRunningError) Error() string {
	return "no detection running for camera [" + e.CameraID + "]"
}

// InvalidRequestError rejects a camera id or source before anything runs.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid detection request: " + e.Reason
}

// LimitError means the process limit is reached.
type LimitError struct {
	Limit int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("detection process limit of %d reached", e.Limit)
}

// Config controls how detector processes are launched.
type Config struct { //nolint:govet // Don't care about alignment.
	Command      string        `yaml:"command" json:"command" env:"COMMAND" validate:"required" doc:"Detector executable"`
	Args         []string      `yaml:"args" json:"args" env:"ARGS" envSeparator:" " doc:"Arguments; {source} and {camera} are substituted"`
	WorkDir      string        `yaml:"work_dir" json:"work_dir" env:"WORK_DIR" doc:"Working directory of the detector"`
	Env          []string      `yaml:"env" json:"env" env:"ENV" envSeparator:";" doc:"Extra KEY=VALUE environment for the detector"`
	StopTimeout  time.Duration `yaml:"stop_timeout" json:"stop_timeout" env:"STOP_TIMEOUT" validate:"gt=0" doc:"Grace period between SIGTERM and SIGKILL"`
	Restart      bool          `yaml:"restart" json:"restart" env:"RESTART" doc:"Restart detectors that exit on their own"`
	MaxProcesses int           `yaml:"max_processes" json:"max_processes" env:"MAX_PROCESSES" validate:"min=1" doc:"Concurrent detector processes allowed"`

	Supervisor supervisor.Config `yaml:"supervisor" json:"supervisor" envPrefix:"SUPERVISOR_"`
}

// ConfigDefault returns the default values for a Config.
func ConfigDefault() Config {
	return Config{
		Command:      "python3",
		Args:         []string{"detect.py", "--source", "{source}"},
		StopTimeout:  10 * time.Second,
		MaxProcesses: 8, //nolint:mnd // One per camera on a small site.
		Supervisor:   supervisor.ConfigDefault(),
	}
}

// Info describes one camera's detector.
type Info struct { //nolint:govet // Field order is the JSON order.
	CameraID  string     `json:"camId"`
	Source    string     `json:"source"`
	RunID     string     `json:"runId"`
	PID       int        `json:"pid,omitempty"`
	State     State      `json:"state"`
	StartedAt time.Time  `json:"startedAt"`
	ExitedAt  *time.Time `json:"exitedAt,omitempty"`
	ExitError string     `json:"exitError,omitempty"`
	Restarts  int        `json:"restarts"`
}

type process struct {
	info  Info
	token suture.ServiceToken
}

// Manager is the registry of detector processes.
type Manager struct {
	c   Config
	sup *suture.Supervisor
	pub events.Publisher
	log *zerolog.Logger

	// ops serializes Start and Stop so a camera never has two processes.
	ops sync.Mutex

	mu    sync.Mutex
	procs map[string]*process
}

// New returns a Manager. Nothing runs until Serve is called.
func New(c *Config, pub events.Publisher, logger *zerolog.Logger) *Manager {
	l := logger.With().Str("pkg", "detector").Logger()

	if pub == nil {
		pub = events.Discard{}
	}

	return &Manager{
		c:     *c,
		sup:   supervisor.New("detectors", &c.Supervisor, &l),
		pub:   pub,
		log:   &l,
		procs: make(map[string]*process),
	}
}

// Serve runs the detector supervisor until ctx ends. Every process is
// stopped on the way out.
func (m *Manager) Serve(ctx context.Context) error {
	err := m.sup.Serve(ctx)

	m.mu.Lock()
	for id := range m.procs {
		delete(m.procs, id)
	}
	m.mu.Unlock()

	metrics.DetectorProcesses.Set(0)

	return err //nolint:wrapcheck // Context error.
}

func validate(cameraID, source string) error {
	if !cameraIDPattern.MatchString(cameraID) {
		return &InvalidRequestError{Reason: "camId must be 1-64 letters, digits, '-' or '_'"}
	}

	switch {
	case strings.TrimSpace(source) == "":
		return &InvalidRequestError{Reason: "source is required"}
	case len(source) > maxSourceLen:
		return &InvalidRequestError{Reason: "source is too long"}
	case strings.HasPrefix(source, "-"):
		return &InvalidRequestError{Reason: "source must not start with '-'"}
	case strings.ContainsRune(source, 0):
		return &InvalidRequestError{Reason: "source contains NUL"}
	}

	return nil
}

// Start launches a detector for cameraID reading source. A detector already
// registered for the camera is stopped first.
func (m *Manager) Start(cameraID, source string) (Info, error) {
	if err := validate(cameraID, source); err != nil {
		return Info{}, err
	}

	m.ops.Lock()
	defer m.ops.Unlock()

	m.mu.Lock()
	old, replacing := m.procs[cameraID]

	if !replacing && len(m.procs) >= m.c.MaxProcesses {
		m.mu.Unlock()

		return Info{}, &LimitError{Limit: m.c.MaxProcesses}
	}
	m.mu.Unlock()

	if replacing {
		m.log.Info().Str(lCamera, cameraID).Str(lRun, old.info.RunID).Msg("replacing running detector")
		m.remove(cameraID, old, "replaced")
	}

	r := &runner{
		m:        m,
		cameraID: cameraID,
		runID:    uuid.NewString(),
		args:     expandArgs(m.c.Args, cameraID, source),
	}

	p := &process{
		info: Info{
			CameraID:  cameraID,
			Source:    source,
			RunID:     r.runID,
			State:     StateStarting,
			StartedAt: time.Now().UTC(),
		},
	}

	m.mu.Lock()
	m.procs[cameraID] = p
	p.token = m.sup.Add(r)
	info := p.info
	m.updateGauge()
	m.mu.Unlock()

	m.log.Info().Str(lCamera, cameraID).Str(lRun, r.runID).Msg("detector started")
	m.pub.Publish(events.TypeDetectorStarted, info)

	return info, nil
}

// Stop terminates the detector of cameraID.
func (m *Manager) Stop(cameraID string) error {
	m.ops.Lock()
	defer m.ops.Unlock()

	m.mu.Lock()
	p, ok := m.procs[cameraID]

	if ok && !m.c.Restart && (p.info.State == StateExited || p.info.State == StateFailed) {
		// Only the record is left. Forget it.
		delete(m.procs, cameraID)
		m.updateGauge()

		ok = false
	}
	m.mu.Unlock()

	if !ok {
		return &NotRunningError{CameraID: cameraID}
	}

	m.remove(cameraID, p, "stopped")

	return nil
}

// remove takes p off the supervisor and waits for its process to end.
func (m *Manager) remove(cameraID string, p *process, reason string) {
	// Beyond the stop timeout the process has been killed; the extra second
	// covers reaping.
	if err := m.sup.RemoveAndWait(p.token, m.c.StopTimeout+time.Second); err != nil &&
		!errors.Is(err, suture.ErrDoNotRestart) {
		m.log.Warn().Err(err).Str(lCamera, cameraID).Msg("detector did not stop cleanly")
	}

	m.mu.Lock()
	if cur, ok := m.procs[cameraID]; ok && cur == p {
		delete(m.procs, cameraID)
	}

	info := p.info
	m.updateGauge()
	m.mu.Unlock()

	info.State = StateExited

	metrics.DetectorExits.WithLabelValues(reason).Inc()
	m.log.Info().Str(lCamera, cameraID).Str(lRun, info.RunID).Str("reason", reason).Msg("detector stopped")
	m.pub.Publish(events.TypeDetectorStopped, info)
}

// Get returns the detector of cameraID.
func (m *Manager) Get(cameraID string) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.procs[cameraID]
	if !ok {
		return Info{}, false
	}

	return p.info, true
}

// List returns every registered detector ordered by camera id.
func (m *Manager) List() []Info {
	m.mu.Lock()
	out := make([]Info, 0, len(m.procs))

	for _, p := range m.procs {
		out = append(out, p.info)
	}
	m.mu.Unlock()

	slices.SortFunc(out, func(a, b Info) int { return strings.Compare(a.CameraID, b.CameraID) })

	return out
}

// update applies fn to the info of runID, if it is still the camera's
// current run. It reports whether it did.
func (m *Manager) update(cameraID, runID string, fn func(*Info)) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.procs[cameraID]
	if !ok || p.info.RunID != runID {
		return Info{}, false
	}

	fn(&p.info)
	m.updateGauge()

	return p.info, true
}

// updateGauge must be called with mu held.
func (m *Manager) updateGauge() {
	n := 0

	for _, p := range m.procs {
		if p.info.State == StateRunning || p.info.State == StateStarting {
			n++
		}
	}

	metrics.DetectorProcesses.Set(float64(n))
}

func expandArgs(tmpl []string, cameraID, source string) []string {
	r := strings.NewReplacer("{source}", source, "{camera}", cameraID)
	out := make([]string, len(tmpl))

	for i, a := range tmpl {
		out[i] = r.Replace(a)
	}

	return out
}

func (m *Manager) environ() []string {
	return append(os.Environ(), m.c.Env...)
}
