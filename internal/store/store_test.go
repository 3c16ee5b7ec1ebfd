package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "sequences.db")
	s, err := Open(dbPath, DefaultCacheTTL)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSequence(ownerID string) []StopTransition {
	return []StopTransition{
		{OwnerID: ownerID, FromID: "A", ToID: "B", Duration: 2 * time.Second},
		{OwnerID: ownerID, FromID: "B", ToID: "C", Duration: 3 * time.Second},
		{OwnerID: ownerID, FromID: "C", ToID: "A", Duration: 2500 * time.Millisecond},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	recorded := testSequence("img-1")
	if err := s.ReplaceSequence("img-1", recorded); err != nil {
		t.Fatalf("ReplaceSequence failed: %v", err)
	}

	seq, err := s.GetSequence("img-1")
	if err != nil {
		t.Fatalf("GetSequence failed: %v", err)
	}
	if len(seq) != 3 {
		t.Fatalf("Expected 3 transitions, got %d", len(seq))
	}

	for i, got := range seq {
		if got.SequenceOrder != i {
			t.Errorf("Entry %d: expected sequence_order %d, got %d", i, i, got.SequenceOrder)
		}
		if got.FromID != recorded[i].FromID || got.ToID != recorded[i].ToID {
			t.Errorf("Entry %d: expected %s->%s, got %s->%s",
				i, recorded[i].FromID, recorded[i].ToID, got.FromID, got.ToID)
		}
		if got.Duration != recorded[i].Duration {
			t.Errorf("Entry %d: expected duration %v, got %v", i, recorded[i].Duration, got.Duration)
		}
	}
}

func TestStore_HasSequence(t *testing.T) {
	s := openTestStore(t)

	has, err := s.HasSequence("img-1")
	if err != nil {
		t.Fatalf("HasSequence failed: %v", err)
	}
	if has {
		t.Error("Expected no sequence before recording")
	}

	if err := s.ReplaceSequence("img-1", testSequence("img-1")); err != nil {
		t.Fatalf("ReplaceSequence failed: %v", err)
	}

	has, err = s.HasSequence("img-1")
	if err != nil {
		t.Fatalf("HasSequence failed: %v", err)
	}
	if !has {
		t.Error("Expected sequence after recording")
	}
}

func TestStore_ReplaceIsAtomicSwap(t *testing.T) {
	s := openTestStore(t)

	if err := s.ReplaceSequence("img-1", testSequence("img-1")); err != nil {
		t.Fatalf("First ReplaceSequence failed: %v", err)
	}

	// Re-record with a shorter sequence; the old rows must be gone.
	second := []StopTransition{
		{OwnerID: "img-1", FromID: "A", ToID: "D", Duration: time.Second},
	}
	if err := s.ReplaceSequence("img-1", second); err != nil {
		t.Fatalf("Second ReplaceSequence failed: %v", err)
	}

	seq, err := s.GetSequence("img-1")
	if err != nil {
		t.Fatalf("GetSequence failed: %v", err)
	}
	if len(seq) != 1 {
		t.Fatalf("Expected 1 transition after re-record, got %d", len(seq))
	}
	if seq[0].ToID != "D" || seq[0].SequenceOrder != 0 {
		t.Errorf("Expected A->D at order 0, got %s->%s at %d",
			seq[0].FromID, seq[0].ToID, seq[0].SequenceOrder)
	}
}

func TestStore_ReplaceEmptyClearsSequence(t *testing.T) {
	s := openTestStore(t)

	if err := s.ReplaceSequence("img-1", testSequence("img-1")); err != nil {
		t.Fatalf("ReplaceSequence failed: %v", err)
	}
	if err := s.ReplaceSequence("img-1", nil); err != nil {
		t.Fatalf("Clearing ReplaceSequence failed: %v", err)
	}

	has, err := s.HasSequence("img-1")
	if err != nil {
		t.Fatalf("HasSequence failed: %v", err)
	}
	if has {
		t.Error("Expected cleared sequence")
	}
}

func TestStore_ReadYourWrites(t *testing.T) {
	s := openTestStore(t)

	// Populate the cache, then overwrite and read again: the second read
	// must observe the new sequence, not the cached one.
	if err := s.ReplaceSequence("img-1", testSequence("img-1")); err != nil {
		t.Fatalf("ReplaceSequence failed: %v", err)
	}
	if _, err := s.GetSequence("img-1"); err != nil {
		t.Fatalf("GetSequence failed: %v", err)
	}

	second := []StopTransition{
		{OwnerID: "img-1", FromID: "A", ToID: "Z", Duration: time.Second},
	}
	if err := s.ReplaceSequence("img-1", second); err != nil {
		t.Fatalf("ReplaceSequence failed: %v", err)
	}

	seq, err := s.GetSequence("img-1")
	if err != nil {
		t.Fatalf("GetSequence failed: %v", err)
	}
	if len(seq) != 1 || seq[0].ToID != "Z" {
		t.Errorf("Read after write observed stale sequence: %+v", seq)
	}
}

func TestStore_UpdateDuration(t *testing.T) {
	s := openTestStore(t)

	if err := s.ReplaceSequence("img-1", testSequence("img-1")); err != nil {
		t.Fatalf("ReplaceSequence failed: %v", err)
	}

	if err := s.UpdateDuration("img-1", "C", time.Second); err != nil {
		t.Fatalf("UpdateDuration failed: %v", err)
	}

	seq, err := s.GetSequence("img-1")
	if err != nil {
		t.Fatalf("GetSequence failed: %v", err)
	}
	if seq[1].Duration != time.Second {
		t.Errorf("Expected updated duration 1s, got %v", seq[1].Duration)
	}

	// Untouched entries keep their durations
	if seq[0].Duration != 2*time.Second {
		t.Errorf("Entry 0 duration changed: %v", seq[0].Duration)
	}
}

func TestStore_UpdateDurationNotFound(t *testing.T) {
	s := openTestStore(t)

	err := s.UpdateDuration("img-1", "nope", time.Second)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStore_FindOwnerByMember(t *testing.T) {
	s := openTestStore(t)

	if err := s.ReplaceSequence("img-1", testSequence("img-1")); err != nil {
		t.Fatalf("ReplaceSequence failed: %v", err)
	}

	// Owner id itself resolves
	owner, err := s.FindOwnerByMember("img-1")
	if err != nil {
		t.Fatalf("FindOwnerByMember(owner) failed: %v", err)
	}
	if owner != "img-1" {
		t.Errorf("Expected owner img-1, got %s", owner)
	}

	// A member stop resolves to its owner
	owner, err = s.FindOwnerByMember("B")
	if err != nil {
		t.Fatalf("FindOwnerByMember(member) failed: %v", err)
	}
	if owner != "img-1" {
		t.Errorf("Expected owner img-1 for member B, got %s", owner)
	}

	if _, err := s.FindOwnerByMember("unknown"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown stop, got %v", err)
	}
}

func TestStore_CorruptOrderingDetected(t *testing.T) {
	s := openTestStore(t)

	// Write rows with a gap in sequence_order behind the store's back.
	_, err := s.db.Exec(`
		INSERT INTO stop_transitions (owner_id, from_id, to_id, duration, sequence_order, created_at)
		VALUES ('img-1', 'A', 'B', 1.0, 0, 0), ('img-1', 'B', 'C', 1.0, 2, 0)`)
	if err != nil {
		t.Fatalf("Raw insert failed: %v", err)
	}

	_, err = s.GetSequence("img-1")
	if !errors.Is(err, ErrCorruptSequence) {
		t.Errorf("Expected ErrCorruptSequence, got %v", err)
	}
}

func TestStore_CacheExpires(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sequences.db")
	s, err := Open(dbPath, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	if err := s.ReplaceSequence("img-1", testSequence("img-1")); err != nil {
		t.Fatalf("ReplaceSequence failed: %v", err)
	}
	if _, err := s.GetSequence("img-1"); err != nil {
		t.Fatalf("GetSequence failed: %v", err)
	}

	// Mutate behind the store's back; once the TTL lapses the next read
	// must hit storage and observe the change.
	if _, err := s.db.Exec(`UPDATE stop_transitions SET duration = 9.0 WHERE to_id = 'B'`); err != nil {
		t.Fatalf("Raw update failed: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	seq, err := s.GetSequence("img-1")
	if err != nil {
		t.Fatalf("GetSequence after expiry failed: %v", err)
	}
	if seq[0].Duration != 9*time.Second {
		t.Errorf("Expected reload after TTL, got duration %v", seq[0].Duration)
	}
}
