// Package store provides the durable, concurrency-safe ledger: rows,
// lexical (FTS5/BM25) index, and vector embeddings over the same
// observation row space. It enforces a single-writer/many-reader
// discipline over modernc.org/sqlite.
package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a handle to the ledger. It is safe to share across readers;
// writes are serialized through an in-process mutex in addition to
// SQLite's own busy-timeout.
type Store struct {
	db        *sql.DB
	writeMu   sync.Mutex
	dupWindow time.Duration
}

const schema = `
CREATE TABLE IF NOT EXISTS observations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts TEXT NOT NULL,
	kind TEXT NOT NULL,
	tool_name TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '{}',
	content_hash TEXT NOT NULL,
	session_key TEXT NOT NULL DEFAULT '',
	agent_id TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	archived INTEGER NOT NULL DEFAULT 0,
	last_used_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_observations_content_hash ON observations(content_hash, created_at);
CREATE INDEX IF NOT EXISTS idx_observations_ts ON observations(ts);
CREATE INDEX IF NOT EXISTS idx_observations_archived ON observations(archived);
CREATE INDEX IF NOT EXISTS idx_observations_kind ON observations(kind);

CREATE TABLE IF NOT EXISTS embeddings (
	obs_id INTEGER NOT NULL REFERENCES observations(id),
	model TEXT NOT NULL,
	dim INTEGER NOT NULL,
	vector BLOB NOT NULL,
	lang TEXT NOT NULL DEFAULT '',
	checksum TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (obs_id, model)
);

CREATE INDEX IF NOT EXISTS idx_embeddings_model ON embeddings(model);

CREATE VIRTUAL TABLE IF NOT EXISTS observations_fts USING fts5(
	summary, tool_name, detail,
	content='observations',
	content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS observations_ai AFTER INSERT ON observations BEGIN
	INSERT INTO observations_fts(rowid, summary, tool_name, detail)
	VALUES (new.id, new.summary, new.tool_name, new.detail);
END;

CREATE TRIGGER IF NOT EXISTS observations_ad AFTER DELETE ON observations BEGIN
	INSERT INTO observations_fts(observations_fts, rowid, summary, tool_name, detail)
	VALUES ('delete', old.id, old.summary, old.tool_name, old.detail);
END;

CREATE TRIGGER IF NOT EXISTS observations_au AFTER UPDATE ON observations BEGIN
	INSERT INTO observations_fts(observations_fts, rowid, summary, tool_name, detail)
	VALUES ('delete', old.id, old.summary, old.tool_name, old.detail);
	INSERT INTO observations_fts(rowid, summary, tool_name, detail)
	VALUES (new.id, new.summary, new.tool_name, new.detail);
END;
`

// Open creates or opens a SQLite ledger at dbPath and ensures the schema
// exists. busyTimeout bounds how long a contended writer waits before
// SQLite itself gives up (the ledger's in-process mutex is the first
// line of defense; this pragma is the second). dupWindow is the
// idempotency window used by InsertObservation's content-hash check.
func Open(dbPath string, busyTimeout, dupWindow time.Duration) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", dbPath, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dbPath, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &Store{db: db, dupWindow: dupWindow}, nil
}

// migrate applies incremental schema migrations for existing databases,
// probing pragma_table_info before each ALTER TABLE so the same binary
// can open a database created by an older version.
func migrate(db *sql.DB) error {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('observations') WHERE name = 'last_used_at'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("check last_used_at column: %w", err)
	}
	if count == 0 {
		if _, err := db.Exec(`ALTER TABLE observations ADD COLUMN last_used_at DATETIME`); err != nil {
			return fmt.Errorf("add last_used_at column: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for components that need raw access
// (e.g. the `status` command computing aggregate counts).
func (s *Store) DB() *sql.DB {
	return s.db
}
