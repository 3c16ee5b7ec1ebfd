// Package recorder turns a live stream of stop-reached events into a
// persisted sequence. Nothing is written to storage mid-session; the
// buffered transitions land atomically when the session stops.
package recorder

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paramita1949/C-Canvas-sub007/internal/events"
	"github.com/paramita1949/C-Canvas-sub007/internal/log"
	"github.com/paramita1949/C-Canvas-sub007/internal/state"
	"github.com/paramita1949/C-Canvas-sub007/internal/store"
	"github.com/paramita1949/C-Canvas-sub007/internal/timing"
)

// ErrSessionActive is returned when a recording session is already
// running.
var ErrSessionActive = fmt.Errorf("recording session already active")

// ErrNoSession is returned when a recording operation arrives without an
// active session.
var ErrNoSession = fmt.Errorf("no active recording session")

// ErrDegenerateRecording is returned when a session stops with no actual
// transition recorded. No persistence occurs.
var ErrDegenerateRecording = fmt.Errorf("recording has no transitions")

// ErrInvalidTarget is returned in original mode when a recorded stop is
// not part of the supplied candidate set.
var ErrInvalidTarget = fmt.Errorf("target is not a candidate sibling")

// TargetValidator accepts or rejects a recording target. A nil validator
// accepts everything (keyframe mode).
type TargetValidator func(to store.StopID) error

// Controller owns at most one recording session at a time.
type Controller struct {
	mu      sync.Mutex
	store   *store.Store
	machine *state.Machine
	hub     *events.Hub
	clock   timing.Clock

	sess *session
}

type session struct {
	id       string
	ownerID  string
	anchor   store.StopID
	lastStop store.StopID
	lastAt   time.Time
	buffer   []store.StopTransition
	validate TargetValidator
}

// New creates a recording controller. A nil clock falls back to the
// system clock.
func New(st *store.Store, machine *state.Machine, hub *events.Hub, clock timing.Clock) *Controller {
	if clock == nil {
		clock = timing.SystemClock{}
	}
	return &Controller{store: st, machine: machine, hub: hub, clock: clock}
}

// Start begins a recording session for ownerID, with anchor as the
// starting stop. The validator, selected once here, gates every target
// recorded during the session.
func (c *Controller) Start(ownerID string, anchor store.StopID, validate TargetValidator) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != nil {
		return fmt.Errorf("%w: owner %s", ErrSessionActive, c.sess.ownerID)
	}

	if err := c.machine.Request(state.Recording); err != nil {
		return err
	}

	now := c.clock.Now()
	c.sess = &session{
		id:       uuid.NewString(),
		ownerID:  ownerID,
		anchor:   anchor,
		lastStop: anchor,
		lastAt:   now,
		validate: validate,
	}
	log.Debugf("recording started for owner %s (session %s)", ownerID, c.sess.id)
	return nil
}

// RecordStop registers that the user switched to a stop just now.
func (c *Controller) RecordStop(to store.StopID) error {
	return c.RecordStopAt(to, c.clock.Now())
}

// RecordStopAt registers a switch to a stop with an explicit event time,
// for hosts whose input layer timestamps events itself. The dwell since
// the previous stop becomes the buffered transition's duration.
func (c *Controller) RecordStopAt(to store.StopID, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil {
		return ErrNoSession
	}

	if c.sess.validate != nil {
		if err := c.sess.validate(to); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidTarget, to)
		}
	}

	elapsed := at.Sub(c.sess.lastAt)
	if elapsed < 0 {
		log.Warnf("negative dwell %v for stop %s clamped to zero", elapsed, to)
		elapsed = 0
	}

	c.sess.buffer = append(c.sess.buffer, store.StopTransition{
		OwnerID:  c.sess.ownerID,
		FromID:   c.sess.lastStop,
		ToID:     to,
		Duration: elapsed,
	})
	c.sess.lastStop = to
	c.sess.lastAt = at
	return nil
}

// Stop ends the session and persists the buffered transitions as the
// owner's new sequence. A session with no transitions is rejected
// without touching storage. The buffer is discarded regardless of the
// persistence outcome.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil {
		return ErrNoSession
	}

	sess := c.sess
	c.sess = nil

	if err := c.machine.Request(state.Idle); err != nil {
		return err
	}

	if len(sess.buffer) == 0 {
		return fmt.Errorf("%w: owner %s", ErrDegenerateRecording, sess.ownerID)
	}

	if err := c.store.ReplaceSequence(sess.ownerID, sess.buffer); err != nil {
		return fmt.Errorf("persist recording for owner %s: %w", sess.ownerID, err)
	}

	if c.hub != nil {
		c.hub.EmitRecordingSaved(events.RecordingSavedEvent{
			OwnerID:     sess.ownerID,
			Transitions: len(sess.buffer),
		})
	}
	log.Infof("recorded %d transitions for owner %s", len(sess.buffer), sess.ownerID)
	return nil
}

// Cancel ends the session and discards the buffer without persisting.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil {
		return ErrNoSession
	}

	owner := c.sess.ownerID
	c.sess = nil

	if err := c.machine.Request(state.Idle); err != nil {
		return err
	}
	log.Debugf("recording cancelled for owner %s", owner)
	return nil
}

// ActiveOwner returns the owner of the running session, if any.
func (c *Controller) ActiveOwner() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil {
		return "", false
	}
	return c.sess.ownerID, true
}
