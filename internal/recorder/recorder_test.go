package recorder

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/paramita1949/C-Canvas-sub007/internal/events"
	"github.com/paramita1949/C-Canvas-sub007/internal/state"
	"github.com/paramita1949/C-Canvas-sub007/internal/store"
)

// fakeClock is a manually advanced clock for deterministic dwell times.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestController(t *testing.T) (*Controller, *store.Store, *state.Machine, *fakeClock) {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "sequences.db"), 0)
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	machine := state.New()
	clock := newFakeClock()
	return New(s, machine, events.New(), clock), s, machine, clock
}

func TestController_RecordAndPersist(t *testing.T) {
	c, s, machine, clock := newTestController(t)

	if err := c.Start("img-1", "A", nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if machine.Current() != state.Recording {
		t.Fatalf("Expected Recording state, got %s", machine.Current())
	}

	clock.Advance(2 * time.Second)
	if err := c.RecordStop("B"); err != nil {
		t.Fatalf("RecordStop(B) failed: %v", err)
	}
	clock.Advance(3 * time.Second)
	if err := c.RecordStop("C"); err != nil {
		t.Fatalf("RecordStop(C) failed: %v", err)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if machine.Current() != state.Idle {
		t.Errorf("Expected Idle after stop, got %s", machine.Current())
	}

	seq, err := s.GetSequence("img-1")
	if err != nil {
		t.Fatalf("GetSequence failed: %v", err)
	}
	if len(seq) != 2 {
		t.Fatalf("Expected 2 transitions, got %d", len(seq))
	}
	if seq[0].FromID != "A" || seq[0].ToID != "B" || seq[0].Duration != 2*time.Second {
		t.Errorf("Transition 0 wrong: %+v", seq[0])
	}
	if seq[1].FromID != "B" || seq[1].ToID != "C" || seq[1].Duration != 3*time.Second {
		t.Errorf("Transition 1 wrong: %+v", seq[1])
	}
}

func TestController_DegenerateRecordingRejected(t *testing.T) {
	c, s, machine, _ := newTestController(t)

	if err := c.Start("img-1", "A", nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Only the anchor, no actual transition
	err := c.Stop()
	if !errors.Is(err, ErrDegenerateRecording) {
		t.Errorf("Expected ErrDegenerateRecording, got %v", err)
	}
	if machine.Current() != state.Idle {
		t.Errorf("Expected Idle after rejected stop, got %s", machine.Current())
	}

	has, err := s.HasSequence("img-1")
	if err != nil {
		t.Fatalf("HasSequence failed: %v", err)
	}
	if has {
		t.Error("Degenerate recording must not mutate storage")
	}
}

func TestController_SecondStartRejected(t *testing.T) {
	c, _, _, _ := newTestController(t)

	if err := c.Start("img-1", "A", nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Start("img-2", "X", nil); !errors.Is(err, ErrSessionActive) {
		t.Errorf("Expected ErrSessionActive, got %v", err)
	}

	owner, ok := c.ActiveOwner()
	if !ok || owner != "img-1" {
		t.Errorf("Original session lost: owner=%s ok=%v", owner, ok)
	}
}

func TestController_CandidateValidation(t *testing.T) {
	c, _, _, clock := newTestController(t)

	validator := func(to store.StopID) error {
		if to != "sibling_01.png" {
			return errors.New("not in group")
		}
		return nil
	}

	if err := c.Start("base.png", "base.png", validator); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	clock.Advance(time.Second)
	if err := c.RecordStop("stranger.png"); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("Expected ErrInvalidTarget, got %v", err)
	}
	if err := c.RecordStop("sibling_01.png"); err != nil {
		t.Errorf("Valid sibling rejected: %v", err)
	}
}

func TestController_CancelDiscardsBuffer(t *testing.T) {
	c, s, machine, clock := newTestController(t)

	if err := c.Start("img-1", "A", nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	clock.Advance(time.Second)
	if err := c.RecordStop("B"); err != nil {
		t.Fatalf("RecordStop failed: %v", err)
	}

	if err := c.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if machine.Current() != state.Idle {
		t.Errorf("Expected Idle after cancel, got %s", machine.Current())
	}

	has, err := s.HasSequence("img-1")
	if err != nil {
		t.Fatalf("HasSequence failed: %v", err)
	}
	if has {
		t.Error("Cancelled recording must not persist")
	}
}

func TestController_ReRecordReplacesSequence(t *testing.T) {
	c, s, _, clock := newTestController(t)

	record := func(stops ...store.StopID) {
		t.Helper()
		if err := c.Start("img-1", "A", nil); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		for _, stop := range stops {
			clock.Advance(time.Second)
			if err := c.RecordStop(stop); err != nil {
				t.Fatalf("RecordStop(%s) failed: %v", stop, err)
			}
		}
		if err := c.Stop(); err != nil {
			t.Fatalf("Stop failed: %v", err)
		}
	}

	record("B", "C")
	record("D")

	seq, err := s.GetSequence("img-1")
	if err != nil {
		t.Fatalf("GetSequence failed: %v", err)
	}
	if len(seq) != 1 || seq[0].ToID != "D" {
		t.Errorf("Re-record did not replace sequence: %+v", seq)
	}
}
