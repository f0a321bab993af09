// Package lifecycle manages the start/stop state of a fabric
// participant, wrapping pkg/component.Run with an explicit state
// machine a supervising process can query and drive (spec §4.6, §5
// "Cancellation").
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/oatfabric/shmdf/internal/logx"
	"github.com/oatfabric/shmdf/pkg/component"
)

var log = logx.New("lifecycle", os.Stderr)

// State is a Manager's run state.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Manager runs one component.Participant and tracks its state, letting
// a supervising process (e.g. a cmd/ binary's signal handler, or a
// higher-level orchestrator) start it, wait for completion, and inspect
// why it stopped without reaching into component.Run directly.
type Manager struct {
	name string
	p    component.Participant

	mu    sync.Mutex
	state State
	err   error

	cancel context.CancelFunc
	done   chan struct{}
}

// New wraps p under name for logging and state reporting.
func New(name string, p component.Participant) *Manager {
	return &Manager{name: name, p: p, state: StateIdle, done: make(chan struct{})}
}

// Start runs the participant's Connect/Process loop in a new goroutine
// and returns immediately. Calling Start more than once is a no-op.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.state = StateRunning
	m.mu.Unlock()

	log.Infof("%s: starting", m.name)
	go func() {
		defer close(m.done)
		err := component.Run(runCtx, m.p)
		m.mu.Lock()
		defer m.mu.Unlock()
		if err != nil {
			m.state = StateFailed
			m.err = err
			log.Errorf("%s: stopped with error: %v", m.name, err)
			return
		}
		m.state = StateStopped
		log.Infof("%s: stopped cleanly", m.name)
	}()
}

// Stop cancels the running participant's context and blocks until its
// loop has exited.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	<-m.done
}

// Reload stops the current run, if any, and starts a fresh one against
// the same participant. Use it to re-enter Connect (e.g. a Source
// re-touching its upstream Sinks) without tearing down the Manager
// itself.
func (m *Manager) Reload(ctx context.Context) {
	m.mu.Lock()
	running := m.state == StateRunning
	m.mu.Unlock()
	if running {
		m.Stop()
	}

	m.mu.Lock()
	m.state = StateIdle
	m.done = make(chan struct{})
	m.err = nil
	m.mu.Unlock()

	log.Infof("%s: reloading", m.name)
	m.Start(ctx)
}

// Wait blocks until the participant's loop exits, returning the error
// it exited with, if any.
func (m *Manager) Wait() error {
	<-m.done
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// State reports the Manager's current run state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// GetState renders State as a string, for callers that want a plain
// status string (e.g. a JSON health response) without importing the
// State type.
func (m *Manager) GetState() string {
	return fmt.Sprintf("%s: %s", m.name, m.State())
}
