package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite snapshot ledger. It remembers which snapshot image
// belongs to which profile and monitor topology, so crash recovery can
// put the right picture back on the right layout.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger database at the given path and runs
// migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordSnapshot upserts the ledger row for one (profile, topology)
// pair. Keep-fresh saves rewrite the same image file, so the row is
// replaced rather than accumulated.
func (s *Store) RecordSnapshot(rec Record) error {
	_, err := s.db.Exec(`
		INSERT INTO snapshots (profile, topology, path, taken_ns)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(profile, topology) DO UPDATE SET
			path = excluded.path,
			taken_ns = excluded.taken_ns`,
		rec.Profile, rec.Topology, rec.Path, rec.Taken.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record snapshot: %w", err)
	}
	return nil
}

// LatestForTopology returns the newest snapshot taken on the given
// topology, or nil when none is recorded.
func (s *Store) LatestForTopology(topology string) (*Record, error) {
	row := s.db.QueryRow(`
		SELECT profile, topology, path, taken_ns
		FROM snapshots
		WHERE topology = ?
		ORDER BY taken_ns DESC
		LIMIT 1`, topology,
	)
	return scanRecord(row, "latest snapshot for topology")
}

// Latest returns the newest snapshot regardless of topology, or nil when
// the ledger is empty.
func (s *Store) Latest() (*Record, error) {
	row := s.db.QueryRow(`
		SELECT profile, topology, path, taken_ns
		FROM snapshots
		ORDER BY taken_ns DESC
		LIMIT 1`,
	)
	return scanRecord(row, "latest snapshot")
}

func scanRecord(row *sql.Row, op string) (*Record, error) {
	var rec Record
	var takenNs int64
	err := row.Scan(&rec.Profile, &rec.Topology, &rec.Path, &takenNs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rec.Taken = time.Unix(0, takenNs)
	return &rec, nil
}

// RecordApply appends one row of apply history: the image that became
// the real OS wallpaper and why.
func (s *Store) RecordApply(path, topology, reason string) error {
	_, err := s.db.Exec(`
		INSERT INTO applies (path, topology, reason, applied_ns)
		VALUES (?, ?, ?, ?)`,
		path, topology, reason, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record apply: %w", err)
	}
	return nil
}

// RecentApplies returns the newest apply-history rows, newest first.
func (s *Store) RecentApplies(limit int) ([]Apply, error) {
	rows, err := s.db.Query(`
		SELECT id, path, topology, reason, applied_ns
		FROM applies
		ORDER BY applied_ns DESC, id DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query applies: %w", err)
	}
	defer rows.Close()

	var out []Apply
	for rows.Next() {
		var a Apply
		var appliedNs int64
		if err := rows.Scan(&a.ID, &a.Path, &a.Topology, &a.Reason, &appliedNs); err != nil {
			return nil, fmt.Errorf("scan apply: %w", err)
		}
		a.AppliedAt = time.Unix(0, appliedNs)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applies: %w", err)
	}
	return out, nil
}

// PruneMissing drops ledger rows whose image file no longer exists on
// disk and returns how many were removed. Run at boot so a cleaned
// snapshot directory does not leave the ledger pointing at nothing.
func (s *Store) PruneMissing() (int, error) {
	rows, err := s.db.Query(`SELECT profile, topology, path FROM snapshots`)
	if err != nil {
		return 0, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	type key struct{ profile, topology string }
	var stale []key
	for rows.Next() {
		var k key
		var path string
		if err := rows.Scan(&k.profile, &k.topology, &path); err != nil {
			return 0, fmt.Errorf("scan snapshot: %w", err)
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			stale = append(stale, k)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate snapshots: %w", err)
	}

	for _, k := range stale {
		if _, err := s.db.Exec(
			`DELETE FROM snapshots WHERE profile = ? AND topology = ?`,
			k.profile, k.topology,
		); err != nil {
			return 0, fmt.Errorf("prune snapshot: %w", err)
		}
	}
	return len(stale), nil
}
