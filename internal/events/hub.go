// Package events is the notification hub between the engine and the host
// UI. The engine only emits; it never calls back into rendering.
package events

import "sync"

// Broadcaster delivers events to the host (UI bridge, test recorder).
type Broadcaster interface {
	BroadcastEvent(eventType string, payload interface{})
}

// Hub fans engine notifications out to a single broadcaster. Emission is
// synchronous: the broadcaster returns before the causing call does.
type Hub struct {
	mu          sync.RWMutex
	broadcaster Broadcaster
}

// New creates an empty Hub. Events are dropped until a broadcaster is set.
func New() *Hub {
	return &Hub{}
}

// SetBroadcaster installs the host-side event sink.
func (h *Hub) SetBroadcaster(b Broadcaster) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcaster = b
}

func (h *Hub) emit(eventName string, payload interface{}) {
	h.mu.RLock()
	b := h.broadcaster
	h.mu.RUnlock()

	if b != nil {
		b.BroadcastEvent(eventName, payload)
	}
}

// StateChangedEvent reports a playback state machine transition.
type StateChangedEvent struct {
	Old string `json:"old"`
	New string `json:"new"`
}

func (h *Hub) EmitStateChanged(event StateChangedEvent) {
	h.emit("sequence:state-changed", event)
}

// SwitchEvent tells the renderer to move to a stop.
type SwitchEvent struct {
	SessionID string `json:"session_id"`
	OwnerID   string `json:"owner_id"`
	StopID    string `json:"stop_id"`
	Index     int    `json:"index"`
}

func (h *Hub) EmitSwitch(event SwitchEvent) {
	h.emit("sequence:switch", event)
}

// ProgressEvent carries the countdown for the current stop.
type ProgressEvent struct {
	SessionID string  `json:"session_id"`
	Index     int     `json:"index"`
	Total     int     `json:"total"`
	Remaining float64 `json:"remaining"` // seconds
	StopID    string  `json:"stop_id"`
}

func (h *Hub) EmitProgress(event ProgressEvent) {
	h.emit("sequence:progress", event)
}

// CompletedEvent reports that a playback session finished all passes.
type CompletedEvent struct {
	SessionID       string `json:"session_id"`
	OwnerID         string `json:"owner_id"`
	CompletedPasses int    `json:"completed_passes"`
}

func (h *Hub) EmitPlaybackCompleted(event CompletedEvent) {
	h.emit("sequence:completed", event)
}

// RecordingSavedEvent reports that a recording session was persisted.
type RecordingSavedEvent struct {
	OwnerID     string `json:"owner_id"`
	Transitions int    `json:"transitions"`
}

func (h *Hub) EmitRecordingSaved(event RecordingSavedEvent) {
	h.emit("sequence:recording-saved", event)
}
