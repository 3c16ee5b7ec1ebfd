// Package timing holds the pure decision functions behind playback:
// pause accounting, repeat judgement and the advance/loop-jump decision.
// Nothing here touches storage, timers or shared state.
package timing

import (
	"time"

	"github.com/paramita1949/C-Canvas-sub007/internal/log"
)

// DefaultTolerance absorbs scheduler jitter in IsTimeEnough. Without it a
// tick firing a few milliseconds early would delay the advance by one
// full tick.
const DefaultTolerance = 50 * time.Millisecond

// PauseDuration returns now minus pauseStartedAt. A negative result
// (clock skew) is clamped to zero and logged.
func PauseDuration(pauseStartedAt, now time.Time) time.Duration {
	d := now.Sub(pauseStartedAt)
	if d < 0 {
		log.Warnf("negative pause duration %v clamped to zero", d)
		return 0
	}
	return d
}

// Accumulate adds thisPause to total, refusing negative input so that an
// anomalous pause can never shrink the running total.
func Accumulate(total, thisPause time.Duration) time.Duration {
	if thisPause < 0 {
		log.Warnf("refusing negative pause accumulation %v", thisPause)
		return total
	}
	return total + thisPause
}

// EffectiveTime returns elapsed minus paused, clamped to zero.
func EffectiveTime(elapsed, paused time.Duration) time.Duration {
	d := elapsed - paused
	if d < 0 {
		return 0
	}
	return d
}

// RepeatOutcome is the result of judging the repeat count at a pass
// boundary.
type RepeatOutcome int

const (
	InfiniteLoop RepeatOutcome = iota
	NotCompleted
	Completed
)

func (o RepeatOutcome) String() string {
	switch o {
	case InfiniteLoop:
		return "infinite"
	case NotCompleted:
		return "not-completed"
	default:
		return "completed"
	}
}

// ShouldContinue reports whether playback starts another pass.
func (o RepeatOutcome) ShouldContinue() bool {
	return o == InfiniteLoop || o == NotCompleted
}

// JudgeRepeat compares the requested play count against the number of
// completed passes. playCount == -1 means repeat forever.
func JudgeRepeat(playCount, completedCount int) RepeatOutcome {
	if playCount == -1 {
		return InfiniteLoop
	}
	if completedCount < playCount {
		return NotCompleted
	}
	return Completed
}

// Decision tells the playback controller what to do once the current
// dwell has elapsed.
type Decision int

const (
	PlayNext Decision = iota
	JumpToLoopStart
	EndPlayback
)

// DecideAdvance picks the next action for the stop at currentIndex in a
// sequence of total transitions. loopConfigured reports whether a loop
// start is defined for the session.
func DecideAdvance(currentIndex, total int, loopConfigured bool) Decision {
	if currentIndex < total-1 {
		return PlayNext
	}
	if loopConfigured {
		return JumpToLoopStart
	}
	return EndPlayback
}

// IsTimeEnough reports whether elapsed has reached required, within
// tolerance. A tolerance <= 0 falls back to DefaultTolerance.
func IsTimeEnough(elapsed, required, tolerance time.Duration) bool {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return elapsed >= required-tolerance
}

// Remaining returns the time left before the current dwell is satisfied,
// never negative.
func Remaining(elapsed, required time.Duration) time.Duration {
	d := required - elapsed
	if d < 0 {
		return 0
	}
	return d
}
