package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/followtrack/internal/bus"
)

// State represents a session runtime state.
type State string

const (
	Idle     State = "IDLE"
	Cached   State = "CACHED"
	Syncing  State = "SYNCING"
	Ready    State = "READY"
	Degraded State = "DEGRADED"
	Error    State = "ERROR"
)

// validTransitions defines allowed state transitions. A cancelled sync
// returns to whatever the session showed before it started.
var validTransitions = map[State][]State{
	Idle:     {Cached, Syncing, Error},
	Cached:   {Syncing, Error},
	Syncing:  {Ready, Degraded, Error, Idle, Cached},
	Ready:    {Syncing, Degraded, Error},
	Degraded: {Syncing, Ready, Error},
	Error:    {Syncing, Idle},
}

// Machine tracks and enforces session runtime state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Idle state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Idle,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Serving reports whether the session has content to show.
func (m *Machine) Serving() bool {
	return m.Current().Serving()
}

// Serving reports whether s is a state with content to show.
func (s State) Serving() bool {
	switch s {
	case Cached, Ready, Degraded:
		return true
	}
	return false
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
// Transitioning to the current state is a no-op.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to {
		return nil
	}
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.StatusChanged,
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
