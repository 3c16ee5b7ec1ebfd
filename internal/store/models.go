package store

import "time"

// StopID identifies a stop: a keyframe within an image, or a sibling
// image in a similarity group.
type StopID string

// StopTransition is one entry of an owner's recorded sequence: the move
// from FromID to ToID after dwelling Duration at FromID.
type StopTransition struct {
	OwnerID       string        `json:"owner_id"`
	FromID        StopID        `json:"from_id"`
	ToID          StopID        `json:"to_id"`
	Duration      time.Duration `json:"duration"`
	SequenceOrder int           `json:"sequence_order"`
	CreatedAt     time.Time     `json:"created_at"`
}
