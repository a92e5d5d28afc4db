// Package storage is the relational store backing one datastore. All
// revisions, attachment rows and local documents live in a single SQLite
// file inside the datastore's directory.
//
// The revs table is the durable form of the per-document revision forest:
// each row carries its AUTOINCREMENT sequence (the store-wide logical clock)
// and the sequence of its parent (NULL for roots). The current flag mirrors
// tree topology: it is 1 exactly for leaf revisions and is rewritten from
// the rebuilt tree after every mutation, so topology stays authoritative.
package storage

import (
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/kartikbazzad/syncdb/internal/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS docs (
	doc_id INTEGER PRIMARY KEY AUTOINCREMENT,
	docid  TEXT UNIQUE NOT NULL
);
CREATE TABLE IF NOT EXISTS revs (
	sequence INTEGER PRIMARY KEY AUTOINCREMENT,
	doc_id   INTEGER NOT NULL REFERENCES docs(doc_id),
	parent   INTEGER REFERENCES revs(sequence),
	current  INTEGER NOT NULL DEFAULT 0,
	deleted  INTEGER NOT NULL DEFAULT 0,
	revid    TEXT NOT NULL,
	json     BLOB,
	UNIQUE (doc_id, revid)
);
CREATE INDEX IF NOT EXISTS revs_by_doc ON revs(doc_id);
CREATE TABLE IF NOT EXISTS attachments (
	sequence INTEGER NOT NULL REFERENCES revs(sequence),
	filename TEXT NOT NULL,
	key      BLOB NOT NULL,
	type     TEXT,
	encoding INTEGER NOT NULL DEFAULT 0,
	length   INTEGER NOT NULL,
	revpos   INTEGER NOT NULL,
	UNIQUE (sequence, filename)
);
CREATE TABLE IF NOT EXISTS localdocs (
	docid TEXT UNIQUE NOT NULL,
	revid TEXT NOT NULL,
	json  BLOB
);
`

// Store wraps the SQLite handle for one datastore.
type Store struct {
	db     *sql.DB
	path   string
	logger *logger.Logger
}

// Open opens (creating if needed) the store at path and applies the schema.
func Open(path string, log *logger.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	// SQLite allows one writer per database; a single pooled connection
	// keeps concurrent write transactions from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug("Opened store %s", path)
	return &Store{db: db, path: path, logger: log}, nil
}

func (s *Store) Path() string {
	return s.path
}

// Begin starts a write transaction. Mutations of one document run inside a
// single transaction under the document's lock, so either the revision and
// all its attachment rows become visible together or none do.
func (s *Store) Begin() (*sql.Tx, error) {
	return s.db.Begin()
}

func (s *Store) Close() error {
	return s.db.Close()
}
