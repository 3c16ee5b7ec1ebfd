// Package store persists Stop Transitions in SQLite and fronts them with
// a short-TTL cache. Mutations invalidate the owner's cache entry before
// reporting success, so a read issued after a write always observes the
// written data.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/paramita1949/C-Canvas-sub007/internal/log"
)

// ErrNotFound is returned when a lookup or point update references a
// transition that does not exist. Callers treat this as recoverable.
var ErrNotFound = fmt.Errorf("transition not found")

// ErrCorruptSequence is returned when a persisted sequence_order is not
// dense and zero-based. The owner's sequence must be re-recorded; the
// engine itself stays usable.
var ErrCorruptSequence = fmt.Errorf("corrupt sequence ordering")

// DefaultCacheTTL is how long a cached sequence snapshot stays fresh.
const DefaultCacheTTL = 3 * time.Second

// Store wraps the SQLite database connection and the sequence cache.
type Store struct {
	db    *sql.DB
	cache *sequenceCache
}

// Open creates or opens the sequence database at the given path. A
// cacheTTL <= 0 falls back to DefaultCacheTTL.
func Open(path string, cacheTTL time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}

	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}

	s := &Store{db: db, cache: newSequenceCache(cacheTTL)}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// init creates the database schema
func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS stop_transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id TEXT NOT NULL,
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL,
		duration REAL NOT NULL,
		sequence_order INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_stop_transitions_owner_order
		ON stop_transitions(owner_id, sequence_order);
	CREATE INDEX IF NOT EXISTS idx_stop_transitions_to ON stop_transitions(to_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetSequence returns the owner's ordered sequence. A fresh cached
// snapshot is served without touching storage; otherwise the rows are
// loaded, validated for contiguous ordering and re-cached. An owner
// without a sequence yields an empty slice, not an error.
func (s *Store) GetSequence(ownerID string) ([]StopTransition, error) {
	if cached, ok := s.cache.get(ownerID); ok {
		return cached, nil
	}

	rows, err := s.db.Query(`
		SELECT owner_id, from_id, to_id, duration, sequence_order, created_at
		FROM stop_transitions WHERE owner_id = ? ORDER BY sequence_order`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seq []StopTransition
	for rows.Next() {
		var t StopTransition
		var durationSec float64
		var createdAt int64
		err := rows.Scan(&t.OwnerID, &t.FromID, &t.ToID, &durationSec, &t.SequenceOrder, &createdAt)
		if err != nil {
			return nil, err
		}
		t.Duration = time.Duration(durationSec * float64(time.Second))
		t.CreatedAt = time.Unix(createdAt, 0)
		seq = append(seq, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, t := range seq {
		if t.SequenceOrder != i {
			return nil, fmt.Errorf("%w: owner %s has order %d at position %d",
				ErrCorruptSequence, ownerID, t.SequenceOrder, i)
		}
	}

	s.cache.set(ownerID, seq)
	return seq, nil
}

// HasSequence reports whether the owner has any persisted transitions.
func (s *Store) HasSequence(ownerID string) (bool, error) {
	if cached, ok := s.cache.get(ownerID); ok {
		return len(cached) > 0, nil
	}

	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM stop_transitions WHERE owner_id = ?`, ownerID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ReplaceSequence atomically swaps the owner's sequence for entries,
// re-numbered with contiguous sequence_order starting at 0. On failure
// the transaction is rolled back and the prior sequence is left intact.
// An empty entries list clears the owner's sequence.
func (s *Store) ReplaceSequence(ownerID string, entries []StopTransition) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM stop_transitions WHERE owner_id = ?`, ownerID); err != nil {
		return err
	}

	now := time.Now()
	for i, t := range entries {
		if t.Duration < 0 {
			log.Warnf("clamping negative duration %v for owner %s", t.Duration, ownerID)
			t.Duration = 0
		}
		createdAt := t.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		_, err := tx.Exec(`
			INSERT INTO stop_transitions (owner_id, from_id, to_id, duration, sequence_order, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			ownerID, string(t.FromID), string(t.ToID), t.Duration.Seconds(), i, createdAt.Unix())
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.cache.invalidate(ownerID)
	return nil
}

// UpdateDuration sets the duration of the first transition (by order)
// matching toID under the owner. Returns ErrNotFound when no transition
// matches, which can happen when a manual edit races a re-record.
func (s *Store) UpdateDuration(ownerID string, toID StopID, duration time.Duration) error {
	if duration < 0 {
		log.Warnf("clamping negative duration update %v for owner %s", duration, ownerID)
		duration = 0
	}

	result, err := s.db.Exec(`
		UPDATE stop_transitions SET duration = ?
		WHERE id = (
			SELECT id FROM stop_transitions
			WHERE owner_id = ? AND to_id = ?
			ORDER BY sequence_order LIMIT 1
		)`, duration.Seconds(), ownerID, string(toID))
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: owner %s to %s", ErrNotFound, ownerID, toID)
	}

	s.cache.invalidate(ownerID)
	return nil
}

// FindOwnerByMember resolves the sequence a stop belongs to, trying an
// owner match first, then from_id, then to_id. The first discovered
// owner wins; membership across multiple sequences is not supported.
func (s *Store) FindOwnerByMember(stopID StopID) (string, error) {
	var ownerID string
	err := s.db.QueryRow(`
		SELECT owner_id FROM (
			SELECT owner_id, 0 AS rank FROM stop_transitions WHERE owner_id = ?
			UNION ALL
			SELECT owner_id, 1 FROM stop_transitions WHERE from_id = ?
			UNION ALL
			SELECT owner_id, 2 FROM stop_transitions WHERE to_id = ?
		) ORDER BY rank LIMIT 1`,
		string(stopID), string(stopID), string(stopID)).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: no sequence contains %s", ErrNotFound, stopID)
	}
	if err != nil {
		return "", err
	}
	return ownerID, nil
}
