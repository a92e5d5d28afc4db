package storage

import (
	"database/sql"

	"github.com/kartikbazzad/syncdb/internal/errors"
	"github.com/kartikbazzad/syncdb/internal/revtree"
	"github.com/kartikbazzad/syncdb/internal/types"
)

// DocNumericID resolves a document id to its clustering id. The boolean is
// false when the document has never been stored.
func (s *Store) DocNumericID(docID string) (int64, bool, error) {
	var id int64
	err := s.db.QueryRow(`SELECT doc_id FROM docs WHERE docid = ?`, docID).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// EnsureDoc returns the clustering id for docID, creating the docs row when
// the document is new. The boolean reports whether a row was created.
func (s *Store) EnsureDoc(tx *sql.Tx, docID string) (int64, bool, error) {
	var id int64
	err := tx.QueryRow(`SELECT doc_id FROM docs WHERE docid = ?`, docID).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, err
	}

	res, err := tx.Exec(`INSERT INTO docs (docid) VALUES (?)`, docID)
	if err != nil {
		return 0, false, err
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// InsertRevision appends one revision row and returns its sequence.
func (s *Store) InsertRevision(tx *sql.Tx, internalID int64, rev *types.DocumentRevision) (int64, error) {
	var parent interface{}
	if rev.ParentSequence != types.RootSequence {
		parent = rev.ParentSequence
	}

	res, err := tx.Exec(
		`INSERT INTO revs (doc_id, parent, current, deleted, revid, json) VALUES (?, ?, ?, ?, ?, ?)`,
		internalID, parent, boolToInt(rev.Current), boolToInt(rev.Deleted), rev.RevID, rev.Body.Bytes(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LoadTree rebuilds the revision forest of a document from its rows, in
// sequence order so every parent precedes its children.
func (s *Store) LoadTree(docID string) (*revtree.Tree, int64, error) {
	internalID, found, err := s.DocNumericID(docID)
	if err != nil {
		return nil, 0, err
	}
	if !found {
		return nil, 0, errors.ErrDocumentNotFound
	}

	rows, err := s.db.Query(
		`SELECT sequence, parent, current, deleted, revid, json FROM revs WHERE doc_id = ? ORDER BY sequence ASC`,
		internalID,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tree := revtree.New()
	var revs []*types.DocumentRevision
	for rows.Next() {
		rev, err := scanRevision(rows, docID, internalID)
		if err != nil {
			return nil, 0, err
		}
		if err := tree.Add(rev); err != nil {
			return nil, 0, err
		}
		revs = append(revs, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if tree.Size() == 0 {
		return nil, 0, errors.ErrDocumentNotFound
	}

	// Topology is authoritative: re-derive the current flag from the leaf set.
	leafs := tree.LeafRevisionIDs()
	for _, rev := range revs {
		rev.Current = leafs.Contains(rev.RevID)
	}
	return tree, internalID, nil
}

type revScanner interface {
	Scan(dest ...interface{}) error
}

func scanRevision(row revScanner, docID string, internalID int64) (*types.DocumentRevision, error) {
	var (
		seq      int64
		parent   sql.NullInt64
		current  int
		deleted  int
		revID    string
		jsonBody []byte
	)
	if err := row.Scan(&seq, &parent, &current, &deleted, &revID, &jsonBody); err != nil {
		return nil, err
	}

	parentSeq := types.RootSequence
	if parent.Valid {
		parentSeq = parent.Int64
	}

	return &types.DocumentRevision{
		DocID:          docID,
		RevID:          revID,
		Body:           types.NewDocumentBody(jsonBody),
		Sequence:       seq,
		InternalID:     internalID,
		Deleted:        deleted != 0,
		Current:        current != 0,
		ParentSequence: parentSeq,
	}, nil
}

// LookupRevision fetches one (doc, rev) pair.
func (s *Store) LookupRevision(docID, revID string) (*types.DocumentRevision, error) {
	internalID, found, err := s.DocNumericID(docID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.ErrRevisionNotFound
	}

	row := s.db.QueryRow(
		`SELECT sequence, parent, current, deleted, revid, json FROM revs WHERE doc_id = ? AND revid = ?`,
		internalID, revID,
	)
	rev, err := scanRevision(row, docID, internalID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrRevisionNotFound
	}
	if err != nil {
		return nil, err
	}
	return rev, nil
}

// KnownRevisions returns every stored revision id of a document, in one
// batched query. An unknown document yields an empty slice.
func (s *Store) KnownRevisions(docID string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT revs.revid FROM revs JOIN docs ON revs.doc_id = docs.doc_id WHERE docs.docid = ?`,
		docID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var revIDs []string
	for rows.Next() {
		var revID string
		if err := rows.Scan(&revID); err != nil {
			return nil, err
		}
		revIDs = append(revIDs, revID)
	}
	return revIDs, rows.Err()
}

// MarkLeaves rewrites the current flags of a document to match the leaf set
// derived from its tree.
func (s *Store) MarkLeaves(tx *sql.Tx, internalID int64, leafSeqs []int64) error {
	if _, err := tx.Exec(`UPDATE revs SET current = 0 WHERE doc_id = ?`, internalID); err != nil {
		return err
	}
	for _, seq := range leafSeqs {
		if _, err := tx.Exec(`UPDATE revs SET current = 1 WHERE sequence = ?`, seq); err != nil {
			return err
		}
	}
	return nil
}

// ConflictedDocIDs returns the ids of documents with more than one live
// leaf.
func (s *Store) ConflictedDocIDs() ([]string, error) {
	rows, err := s.db.Query(`
		SELECT docs.docid FROM docs JOIN revs ON docs.doc_id = revs.doc_id
		WHERE revs.current = 1 AND revs.deleted = 0
		GROUP BY docs.doc_id, docs.docid HAVING COUNT(*) > 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docIDs []string
	for rows.Next() {
		var docID string
		if err := rows.Scan(&docID); err != nil {
			return nil, err
		}
		docIDs = append(docIDs, docID)
	}
	return docIDs, rows.Err()
}

// AllDocIDs returns every stored document id in lexicographic order.
func (s *Store) AllDocIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT docid FROM docs ORDER BY docid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docIDs []string
	for rows.Next() {
		var docID string
		if err := rows.Scan(&docID); err != nil {
			return nil, err
		}
		docIDs = append(docIDs, docID)
	}
	return docIDs, rows.Err()
}

// LastSequence returns the highest committed sequence, 0 for an empty
// store. Replication checkpoints are keyed on this value.
func (s *Store) LastSequence() (int64, error) {
	var seq int64
	err := s.db.QueryRow(`SELECT IFNULL(MAX(sequence), 0) FROM revs`).Scan(&seq)
	return seq, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
