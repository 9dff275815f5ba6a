// Package indexdb maintains a queryable SQLite index over the trace
// stream. It is a secondary index: the JSONL segments remain the source
// of truth, and the indexer drops writes rather than stall the tick loop.
package indexdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"tickmind.ai/internal/trace"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqDecision reqKind = iota + 1
	reqDigest
	reqMeta
)

type req struct {
	kind reqKind

	decision trace.DecisionRecord
	digest   trace.DigestRecord
	metaKey  string
	metaVal  string
}

func Open(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Large buffer: decision records arrive in per-tick bursts of one
		// per agent.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only workload; NORMAL durability is enough for
	// a rebuildable index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS decisions (
			tick INTEGER NOT NULL,
			entity INTEGER NOT NULL,
			paradigm TEXT NOT NULL,
			events_json TEXT NOT NULL,
			PRIMARY KEY (tick, entity)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_entity_tick ON decisions(entity, tick);`,
		`CREATE TABLE IF NOT EXISTS digests (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteDecision(rec trace.DecisionRecord) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqDecision, decision: rec}:
	default:
		// Drop if the indexer falls behind; the JSONL segments keep the
		// full stream.
	}
	return nil
}

func (s *SQLiteIndex) WriteDigest(rec trace.DigestRecord) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqDigest, digest: rec}:
	default:
	}
	return nil
}

// UpsertMeta records run identity (seed, asset digests) so a replay can
// refuse mismatched inputs up front.
func (s *SQLiteIndex) UpsertMeta(key, value string) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqMeta, metaKey: key, metaVal: value}:
	default:
	}
}

func (s *SQLiteIndex) loop() {
	insertDecision, _ := s.db.Prepare(`INSERT OR REPLACE INTO decisions(tick,entity,paradigm,events_json) VALUES(?,?,?,?)`)
	insertDigest, _ := s.db.Prepare(`INSERT OR REPLACE INTO digests(tick,digest) VALUES(?,?)`)
	insertMeta, _ := s.db.Prepare(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`)
	defer func() {
		if insertDecision != nil {
			_ = insertDecision.Close()
		}
		if insertDigest != nil {
			_ = insertDigest.Close()
		}
		if insertMeta != nil {
			_ = insertMeta.Close()
		}
	}()

	for r := range s.ch {
		switch r.kind {
		case reqDecision:
			if insertDecision == nil {
				continue
			}
			events, err := json.Marshal(r.decision.Events)
			if err != nil {
				continue
			}
			_, _ = insertDecision.Exec(int64(r.decision.Tick), int64(r.decision.Entity), r.decision.Paradigm, string(events))
		case reqDigest:
			if insertDigest == nil {
				continue
			}
			_, _ = insertDigest.Exec(int64(r.digest.Tick), r.digest.Digest)
		case reqMeta:
			if insertMeta == nil {
				continue
			}
			_, _ = insertMeta.Exec(r.metaKey, r.metaVal)
		}
	}
}

// Meta reads one meta value; empty when absent.
func (s *SQLiteIndex) Meta(key string) (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

// DigestAt returns the recorded digest for a tick; empty when absent.
func (s *SQLiteIndex) DigestAt(tick uint64) (string, error) {
	var d string
	err := s.db.QueryRow(`SELECT digest FROM digests WHERE tick = ?`, int64(tick)).Scan(&d)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return d, err
}

// Digests returns every recorded digest in [from, to] in tick order.
func (s *SQLiteIndex) Digests(from, to uint64) ([]trace.DigestRecord, error) {
	rows, err := s.db.Query(`SELECT tick, digest FROM digests WHERE tick BETWEEN ? AND ? ORDER BY tick`, int64(from), int64(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []trace.DigestRecord
	for rows.Next() {
		var tick int64
		var d string
		if err := rows.Scan(&tick, &d); err != nil {
			return nil, err
		}
		out = append(out, trace.DigestRecord{Tick: uint64(tick), Digest: d})
	}
	return out, rows.Err()
}

// Decisions returns one entity's decision records in [from, to] in tick
// order.
func (s *SQLiteIndex) Decisions(entity, from, to uint64) ([]trace.DecisionRecord, error) {
	rows, err := s.db.Query(
		`SELECT tick, paradigm, events_json FROM decisions WHERE entity = ? AND tick BETWEEN ? AND ? ORDER BY tick`,
		int64(entity), int64(from), int64(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []trace.DecisionRecord
	for rows.Next() {
		var tick int64
		var paradigm, eventsJSON string
		if err := rows.Scan(&tick, &paradigm, &eventsJSON); err != nil {
			return nil, err
		}
		rec := trace.DecisionRecord{Tick: uint64(tick), Entity: entity, Paradigm: paradigm}
		if eventsJSON != "" && eventsJSON != "null" {
			if err := json.Unmarshal([]byte(eventsJSON), &rec.Events); err != nil {
				return nil, err
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
