// Package ccanvas exposes the timed sequence recording and playback
// engine embedded by the canvas host. The engine records the stops a
// user walks through, persists them with their dwell times, and later
// replays them with accurate timing.
package ccanvas

import (
	"fmt"
	"time"

	"github.com/paramita1949/C-Canvas-sub007/internal/candidates"
	"github.com/paramita1949/C-Canvas-sub007/internal/config"
	"github.com/paramita1949/C-Canvas-sub007/internal/events"
	"github.com/paramita1949/C-Canvas-sub007/internal/player"
	"github.com/paramita1949/C-Canvas-sub007/internal/recorder"
	"github.com/paramita1949/C-Canvas-sub007/internal/state"
	"github.com/paramita1949/C-Canvas-sub007/internal/store"
	"github.com/paramita1949/C-Canvas-sub007/internal/timing"
)

// Mode selects how stops are interpreted for a recording session.
type Mode int

const (
	// ModeKeyframe records positions within one image.
	ModeKeyframe Mode = iota
	// ModeOriginal records switches between visually similar sibling
	// images; targets are validated against the candidate provider.
	ModeOriginal
)

// Engine owns the store, the shared state machine and both controllers.
// Recording and playback are mutually exclusive through the shared
// machine; one session runs engine-wide at a time.
type Engine struct {
	cfg         *config.Config
	store       *store.Store
	hub         *events.Hub
	machine     *state.Machine
	recorder    *recorder.Controller
	player      *player.Controller
	provider    candidates.Provider
	dirProvider *candidates.DirProvider
}

// Option customizes engine construction.
type Option func(*options)

type options struct {
	clock       timing.Clock
	broadcaster events.Broadcaster
	provider    candidates.Provider
}

// WithClock injects a clock, for deterministic tests.
func WithClock(clock timing.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithBroadcaster installs the host-side event sink at construction.
func WithBroadcaster(b events.Broadcaster) Option {
	return func(o *options) { o.broadcaster = b }
}

// WithCandidateProvider overrides the candidate provider, for hosts that
// compute similarity groups in-process.
func WithCandidateProvider(p candidates.Provider) Option {
	return func(o *options) { o.provider = p }
}

// New builds an Engine from the given configuration.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = timing.SystemClock{}
	}

	st, err := store.Open(cfg.DatabasePath, cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("open sequence store: %w", err)
	}

	hub := events.New()
	if o.broadcaster != nil {
		hub.SetBroadcaster(o.broadcaster)
	}

	machine := state.New()
	machine.Subscribe(func(old, new state.Status) {
		hub.EmitStateChanged(events.StateChangedEvent{Old: old.String(), New: new.String()})
	})

	e := &Engine{
		cfg:      cfg,
		store:    st,
		hub:      hub,
		machine:  machine,
		recorder: recorder.New(st, machine, hub, o.clock),
		player: player.New(st, machine, hub, o.clock, player.Options{
			Tick:      cfg.TickInterval,
			Tolerance: cfg.AdvanceTolerance,
		}),
	}

	switch {
	case o.provider != nil:
		e.provider = o.provider
	case cfg.CandidateDir != "":
		dp, err := candidates.NewDirProvider(cfg.CandidateDir)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("open candidate dir: %w", err)
		}
		e.provider = dp
		e.dirProvider = dp
	default:
		e.provider = candidates.NewStatic(nil)
	}

	return e, nil
}

// Close stops any active session and releases resources.
func (e *Engine) Close() error {
	if _, active := e.recorder.ActiveOwner(); active {
		e.recorder.Cancel()
	}
	if _, active := e.player.Snapshot(); active {
		e.player.Stop()
	}
	if e.dirProvider != nil {
		e.dirProvider.Close()
	}
	return e.store.Close()
}

// SetBroadcaster installs the host-side event sink.
func (e *Engine) SetBroadcaster(b events.Broadcaster) {
	e.hub.SetBroadcaster(b)
}

// Status returns the engine's current state.
func (e *Engine) Status() state.Status {
	return e.machine.Current()
}

// StartRecording opens a recording session for ownerID starting at
// anchor. In original mode, groupKey names the similarity group whose
// siblings are the only legal targets; the validator is selected here,
// once, rather than branched on every call. A terminated (Stopped)
// engine is reset to Idle first.
func (e *Engine) StartRecording(ownerID string, anchor store.StopID, mode Mode, groupKey string) error {
	if e.machine.Current() == state.Stopped {
		if err := e.machine.Request(state.Idle); err != nil {
			return err
		}
	}

	var validate recorder.TargetValidator
	if mode == ModeOriginal {
		provider, key := e.provider, groupKey
		validate = func(to store.StopID) error {
			if !provider.Contains(key, to) {
				return fmt.Errorf("stop %s is not in group %s", to, key)
			}
			return nil
		}
	}

	return e.recorder.Start(ownerID, anchor, validate)
}

// RecordStop registers that the user reached a stop during recording.
func (e *Engine) RecordStop(to store.StopID) error {
	return e.recorder.RecordStop(to)
}

// RecordStopAt registers a stop with an explicit event timestamp.
func (e *Engine) RecordStopAt(to store.StopID, at time.Time) error {
	return e.recorder.RecordStopAt(to, at)
}

// StopRecording ends the recording session and persists the sequence.
func (e *Engine) StopRecording() error {
	return e.recorder.Stop()
}

// CancelRecording ends the recording session, discarding its buffer.
func (e *Engine) CancelRecording() error {
	return e.recorder.Cancel()
}

// StartPlayback begins replaying ownerID's sequence. playCount is the
// number of full passes; -1 repeats until stopped.
func (e *Engine) StartPlayback(ownerID string, playCount int) error {
	return e.player.Start(ownerID, playCount)
}

// StartPlaybackFromStop resolves the sequence containing stopID and
// replays it. Used when the current item is referenced from an
// arbitrary point rather than from its owner.
func (e *Engine) StartPlaybackFromStop(stopID store.StopID, playCount int) error {
	ownerID, err := e.store.FindOwnerByMember(stopID)
	if err != nil {
		return err
	}
	return e.player.Start(ownerID, playCount)
}

// PausePlayback suspends the active playback session.
func (e *Engine) PausePlayback() error {
	return e.player.Pause()
}

// ResumePlayback ends a pause, skipping to the next stop.
func (e *Engine) ResumePlayback() error {
	return e.player.Resume()
}

// StopPlayback cancels the active playback session.
func (e *Engine) StopPlayback() error {
	return e.player.Stop()
}

// SetSmoothScroll toggles smooth scrolling for the active playback
// session.
func (e *Engine) SetSmoothScroll(enabled bool) error {
	return e.player.SetSmoothScroll(enabled)
}

// Playback returns a snapshot of the active playback session.
func (e *Engine) Playback() (player.Snapshot, bool) {
	return e.player.Snapshot()
}

// HasSequence reports whether a sequence is recorded for ownerID.
func (e *Engine) HasSequence(ownerID string) (bool, error) {
	return e.store.HasSequence(ownerID)
}

// Sequence returns ownerID's recorded sequence.
func (e *Engine) Sequence(ownerID string) ([]store.StopTransition, error) {
	return e.store.GetSequence(ownerID)
}

// SetStopDuration manually corrects one transition's dwell time. A
// target that no longer exists (race with a re-record) reports
// store.ErrNotFound and is otherwise ignored.
func (e *Engine) SetStopDuration(ownerID string, to store.StopID, d time.Duration) error {
	return e.store.UpdateDuration(ownerID, to, d)
}
