// Package state implements the playback state machine: the single source
// of truth for what the engine is doing and the gate that rejects illegal
// combinations such as starting playback mid-recording.
package state

import (
	"fmt"
	"sync"
)

// Status is the engine-wide activity state.
type Status int

const (
	Idle Status = iota
	Recording
	Playing
	Paused
	Stopped
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ErrIllegalTransition is returned when a requested transition is not in
// the legal table. The machine state is left unchanged.
var ErrIllegalTransition = fmt.Errorf("illegal state transition")

// legal maps each state to the set of states reachable from it.
var legal = map[Status][]Status{
	Idle:      {Recording, Playing},
	Recording: {Idle},
	Playing:   {Paused, Stopped, Idle},
	Paused:    {Playing, Stopped},
	Stopped:   {Idle, Playing},
}

// Observer receives state-changed notifications. Delivery is synchronous
// and ordered relative to the Request call that caused it; observers must
// not call back into the machine.
type Observer func(old, new Status)

// Machine holds the current status and the registered observers.
type Machine struct {
	mu        sync.Mutex
	status    Status
	observers []Observer
}

// New returns a Machine in the Idle state.
func New() *Machine {
	return &Machine{status: Idle}
}

// Current returns the current status.
func (m *Machine) Current() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Subscribe registers an observer for state-changed notifications.
func (m *Machine) Subscribe(fn Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Can reports whether a transition to target would be accepted, without
// performing it. The current state counts as reachable.
func (m *Machine) Can(target Status) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if target == m.status {
		return true
	}
	for _, s := range legal[m.status] {
		if s == target {
			return true
		}
	}
	return false
}

// Request attempts a transition to target. Requesting the current state
// is a no-op success and emits no notification. An illegal request
// returns ErrIllegalTransition with the machine unchanged.
func (m *Machine) Request(target Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if target == m.status {
		return nil
	}

	allowed := false
	for _, s := range legal[m.status] {
		if s == target {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.status, target)
	}

	old := m.status
	m.status = target
	for _, fn := range m.observers {
		fn(old, target)
	}
	return nil
}
