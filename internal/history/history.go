// Package history persists every synthesized attack path in an embedded
// SQLite database so paths can be tracked across successive scans.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/idnahacks/GoodHound/internal/results"
)

const DefaultFilename = "goodhound.db"

const createTable = `CREATE TABLE IF NOT EXISTS paths (
	uid TEXT PRIMARY KEY,
	startnode TEXT NOT NULL,
	num_users INTEGER NOT NULL,
	percentage REAL NOT NULL,
	hops INTEGER NOT NULL,
	cost INTEGER NOT NULL,
	riskscore REAL NOT NULL,
	fullpath TEXT NOT NULL,
	query TEXT NOT NULL,
	first_seen INTEGER NOT NULL,
	last_seen INTEGER NOT NULL);`

type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the history database. A directory path gets the
// default filename appended.
func Open(path string) (*Store, error) {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		path = filepath.Join(path, DefaultFilename)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history store %s: %w", path, err)
	}
	if _, err := db.Exec(createTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare history store %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	return s.db.Close()
}

// Record upserts every result keyed by its uid inside one transaction.
// Unknown uids are inserted with first_seen = last_seen = scandate. Known
// uids only move last_seen forward (the scan date advanced) or first_seen
// backward (an older dataset was re-loaded), which makes the history
// resilient to out-of-order loads. Records are never deleted.
func (s *Store) Record(rs []results.Result, scandate int64) (newPaths, seenBefore int, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("history transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, r := range rs {
		var firstSeen, lastSeen int64
		row := tx.QueryRow(`SELECT first_seen, last_seen FROM paths WHERE uid = ?`, r.UID)
		scanErr := row.Scan(&firstSeen, &lastSeen)
		if errors.Is(scanErr, sql.ErrNoRows) {
			if _, err = tx.Exec(
				`INSERT INTO paths VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
				r.UID, r.StartNode, r.NumMembers, r.Percentage, r.Hops, r.Cost, r.RiskScore, r.FullPath, r.Query, scandate, scandate,
			); err != nil {
				return 0, 0, fmt.Errorf("insert path %s: %w", r.UID, err)
			}
			newPaths++
			continue
		}
		if scanErr != nil {
			err = fmt.Errorf("lookup path %s: %w", r.UID, scanErr)
			return 0, 0, err
		}
		if lastSeen < scandate {
			if _, err = tx.Exec(`UPDATE paths SET last_seen = ? WHERE uid = ?`, scandate, r.UID); err != nil {
				return 0, 0, fmt.Errorf("update last_seen for %s: %w", r.UID, err)
			}
		}
		if firstSeen > scandate {
			if _, err = tx.Exec(`UPDATE paths SET first_seen = ? WHERE uid = ?`, scandate, r.UID); err != nil {
				return 0, 0, fmt.Errorf("update first_seen for %s: %w", r.UID, err)
			}
		}
		seenBefore++
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit history: %w", err)
	}
	log.Debug().Int("new", newPaths).Int("seen_before", seenBefore).Str("db", s.path).Msg("recorded paths")
	return newPaths, seenBefore, nil
}

// Lookup returns the stored first_seen/last_seen pair for a uid. Used by
// tests and ad-hoc inspection.
func (s *Store) Lookup(uid string) (firstSeen, lastSeen int64, ok bool, err error) {
	row := s.db.QueryRow(`SELECT first_seen, last_seen FROM paths WHERE uid = ?`, uid)
	err = row.Scan(&firstSeen, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, err
	}
	return firstSeen, lastSeen, true, nil
}
