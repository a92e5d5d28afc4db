package storage

import (
	"database/sql"

	"github.com/kartikbazzad/syncdb/internal/errors"
)

// Local documents live outside the revision graph: one row per id, no
// history, never offered to replication. Replicators use them for
// checkpoints.

// GetLocal returns the revision id and body of a local document.
func (s *Store) GetLocal(docID string) (string, []byte, error) {
	var (
		revID string
		body  []byte
	)
	err := s.db.QueryRow(`SELECT revid, json FROM localdocs WHERE docid = ?`, docID).Scan(&revID, &body)
	if err == sql.ErrNoRows {
		return "", nil, errors.ErrLocalDocumentNotFound
	}
	if err != nil {
		return "", nil, err
	}
	return revID, body, nil
}

// PutLocal inserts or replaces a local document.
func (s *Store) PutLocal(docID, revID string, body []byte) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO localdocs (docid, revid, json) VALUES (?, ?, ?)`,
		docID, revID, body,
	)
	return err
}

// DeleteLocal removes a local document.
func (s *Store) DeleteLocal(docID string) error {
	res, err := s.db.Exec(`DELETE FROM localdocs WHERE docid = ?`, docID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.ErrLocalDocumentNotFound
	}
	return nil
}
