// Package player drives a timed walk over a persisted sequence. A
// periodic tick updates the UI-facing countdown and detects when the
// current dwell has elapsed; the advance decision itself is synchronous
// and storage is only touched at session boundaries or asynchronously
// for duration corrections.
package player

import (
	"errors"
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

// ErrSessionActive is returned when a playback session is already
// running.
var ErrSessionActive = fmt.Errorf("playback session already active")

// ErrNoSession is returned when a playback operation arrives without an
// active session.
var ErrNoSession = fmt.Errorf("no active playback session")

// ErrNoSequence is returned when the owner has no timing data recorded.
var ErrNoSequence = fmt.Errorf("no timing data recorded")

// DefaultTick is the countdown/advance tick interval.
const DefaultTick = 8 * time.Millisecond

// Options tune the controller's tick interval and advance tolerance.
// Zero values select the defaults.
type Options struct {
	Tick      time.Duration
	Tolerance time.Duration
}

// Controller owns at most one playback session at a time.
type Controller struct {
	mu        sync.Mutex
	store     *store.Store
	machine   *state.Machine
	hub       *events.Hub
	clock     timing.Clock
	tick      time.Duration
	tolerance time.Duration

	sess *session
}

type session struct {
	id        string
	ownerID   string
	anchor    store.StopID
	seq       []store.StopTransition
	index     int
	playCount int
	completed int
	loop      bool
	smooth    bool

	startedAt      time.Time // when the current stop became active
	pausedTotal    time.Duration
	pauseStartedAt time.Time

	ticker *time.Ticker
	done   chan struct{}
}

// New creates a playback controller. A nil clock falls back to the
// system clock.
func New(st *store.Store, machine *state.Machine, hub *events.Hub, clock timing.Clock, opts Options) *Controller {
	if clock == nil {
		clock = timing.SystemClock{}
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = timing.DefaultTolerance
	}
	return &Controller{
		store:     st,
		machine:   machine,
		hub:       hub,
		clock:     clock,
		tick:      opts.Tick,
		tolerance: opts.Tolerance,
	}
}

// Start loads the owner's sequence and begins the timed walk. playCount
// is the number of full passes to play; -1 repeats forever. The anchor
// is the first transition's from stop.
func (c *Controller) Start(ownerID string, playCount int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != nil {
		return fmt.Errorf("%w: owner %s", ErrSessionActive, c.sess.ownerID)
	}
	// Gate before touching storage so a start attempted in the wrong
	// state stays I/O-free.
	if !c.machine.Can(state.Playing) {
		return fmt.Errorf("%w: %s -> %s", state.ErrIllegalTransition, c.machine.Current(), state.Playing)
	}

	seq, err := c.store.GetSequence(ownerID)
	if err != nil {
		return err
	}
	if len(seq) == 0 {
		return fmt.Errorf("%w: owner %s", ErrNoSequence, ownerID)
	}

	if err := c.machine.Request(state.Playing); err != nil {
		return err
	}

	c.sess = &session{
		id:        uuid.NewString(),
		ownerID:   ownerID,
		anchor:    seq[0].FromID,
		seq:       seq,
		playCount: playCount,
		loop:      playCount == -1 || playCount > 1,
		startedAt: c.clock.Now(),
		ticker:    time.NewTicker(c.tick),
		done:      make(chan struct{}),
	}
	go c.run(c.sess)

	log.Debugf("playback started for owner %s (session %s, %d transitions, play count %d)",
		ownerID, c.sess.id, len(seq), playCount)
	return nil
}

// run pumps ticks into the advance check until the session ends.
func (c *Controller) run(sess *session) {
	for {
		select {
		case <-sess.done:
			return
		case <-sess.ticker.C:
			c.onTick()
		}
	}
}

// onTick updates the countdown and advances once the dwell is satisfied.
// No blocking I/O happens here.
func (c *Controller) onTick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.sess
	if sess == nil || c.machine.Current() != state.Playing {
		return
	}

	now := c.clock.Now()
	cur := sess.seq[sess.index]
	elapsed := now.Sub(sess.startedAt)

	c.hub.EmitProgress(events.ProgressEvent{
		SessionID: sess.id,
		Index:     sess.index,
		Total:     len(sess.seq),
		Remaining: timing.Remaining(elapsed, cur.Duration).Seconds(),
		StopID:    string(cur.FromID),
	})

	if timing.IsTimeEnough(elapsed, cur.Duration, c.tolerance) {
		c.advanceLocked(now)
	}
}

// advanceLocked moves the session past the current stop. Callers hold
// c.mu and guarantee an active session.
func (c *Controller) advanceLocked(now time.Time) {
	sess := c.sess

	switch timing.DecideAdvance(sess.index, len(sess.seq), sess.loop) {
	case timing.PlayNext:
		to := sess.seq[sess.index].ToID
		sess.index++
		sess.startedAt = now
		sess.pausedTotal = 0
		c.hub.EmitSwitch(events.SwitchEvent{
			SessionID: sess.id,
			OwnerID:   sess.ownerID,
			StopID:    string(to),
			Index:     sess.index,
		})

	case timing.JumpToLoopStart:
		// Loop-wrap optimization: when the pass already ends on the
		// anchor, the switch back to it would be a no-op for the
		// renderer and is skipped.
		if sess.seq[sess.index].ToID != sess.anchor {
			c.hub.EmitSwitch(events.SwitchEvent{
				SessionID: sess.id,
				OwnerID:   sess.ownerID,
				StopID:    string(sess.anchor),
				Index:     0,
			})
		}
		sess.completed++
		if timing.JudgeRepeat(sess.playCount, sess.completed).ShouldContinue() {
			sess.index = 0
			sess.startedAt = now
			sess.pausedTotal = 0
		} else {
			c.finishLocked()
		}

	case timing.EndPlayback:
		sess.completed++
		c.finishLocked()
	}
}

// finishLocked ends the session after its final pass.
func (c *Controller) finishLocked() {
	sess := c.sess
	sess.ticker.Stop()
	close(sess.done)
	c.sess = nil

	if err := c.machine.Request(state.Stopped); err != nil {
		log.Warnf("playback finish: %v", err)
	}
	c.hub.EmitPlaybackCompleted(events.CompletedEvent{
		SessionID:       sess.id,
		OwnerID:         sess.ownerID,
		CompletedPasses: sess.completed,
	})
	log.Infof("playback completed for owner %s after %d passes", sess.ownerID, sess.completed)
}

// Pause suspends the countdown and records when the pause began.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil {
		return ErrNoSession
	}
	// Request alone would accept Paused -> Paused as an idempotent
	// no-op and silently overwrite pauseStartedAt.
	if cur := c.machine.Current(); cur != state.Playing {
		return fmt.Errorf("%w: %s -> %s", state.ErrIllegalTransition, cur, state.Paused)
	}
	if err := c.machine.Request(state.Paused); err != nil {
		return err
	}
	c.sess.pauseStartedAt = c.clock.Now()
	return nil
}

// Resume ends the pause and immediately advances to the next stop: a
// user who paused mid-dwell wants to move on, not linger. The persisted
// duration of the interrupted transition is corrected asynchronously to
// the effective (pause-adjusted) dwell.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.sess
	if sess == nil {
		return ErrNoSession
	}
	// A resume with no preceding pause would slip through Request as a
	// Playing -> Playing no-op and persist a bogus duration.
	if cur := c.machine.Current(); cur != state.Paused {
		return fmt.Errorf("%w: %s -> %s", state.ErrIllegalTransition, cur, state.Playing)
	}
	if err := c.machine.Request(state.Playing); err != nil {
		return err
	}

	now := c.clock.Now()
	sess.pausedTotal = timing.Accumulate(sess.pausedTotal, timing.PauseDuration(sess.pauseStartedAt, now))
	sess.pauseStartedAt = time.Time{}
	effective := timing.EffectiveTime(now.Sub(sess.startedAt), sess.pausedTotal)

	ownerID := sess.ownerID
	toID := sess.seq[sess.index].ToID
	go func() {
		if err := c.store.UpdateDuration(ownerID, toID, effective); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				log.Debugf("duration correction target gone for owner %s to %s", ownerID, toID)
			} else {
				log.Warnf("duration correction failed for owner %s: %v", ownerID, err)
			}
		}
	}()

	c.advanceLocked(now)
	return nil
}

// Stop cancels the session and discards its state.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.sess
	if sess == nil {
		return ErrNoSession
	}
	if err := c.machine.Request(state.Stopped); err != nil {
		return err
	}

	sess.ticker.Stop()
	close(sess.done)
	c.sess = nil
	log.Debugf("playback stopped for owner %s", sess.ownerID)
	return nil
}

// SetSmoothScroll toggles smooth scrolling for the active session.
func (c *Controller) SetSmoothScroll(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil {
		return ErrNoSession
	}
	c.sess.smooth = enabled
	return nil
}

// Snapshot is a read-only view of the active session for the host UI.
type Snapshot struct {
	SessionID       string
	OwnerID         string
	Index           int
	Total           int
	PlayCount       int
	CompletedPasses int
	Remaining       time.Duration
	SmoothScroll    bool
}

// Snapshot returns the active session's state, if any.
func (c *Controller) Snapshot() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.sess
	if sess == nil {
		return Snapshot{}, false
	}

	now := c.clock.Now()
	elapsed := now.Sub(sess.startedAt)
	paused := sess.pausedTotal
	if c.machine.Current() == state.Paused {
		// Include the in-flight pause so the countdown holds still.
		paused = timing.Accumulate(paused, timing.PauseDuration(sess.pauseStartedAt, now))
	}
	return Snapshot{
		SessionID:       sess.id,
		OwnerID:         sess.ownerID,
		Index:           sess.index,
		Total:           len(sess.seq),
		PlayCount:       sess.playCount,
		CompletedPasses: sess.completed,
		Remaining:       timing.Remaining(timing.EffectiveTime(elapsed, paused), sess.seq[sess.index].Duration),
		SmoothScroll:    sess.smooth,
	}, true
}
