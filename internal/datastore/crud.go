package datastore

import (
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/kartikbazzad/syncdb/internal/errors"
	"github.com/kartikbazzad/syncdb/internal/eventbus"
	"github.com/kartikbazzad/syncdb/internal/revtree"
	"github.com/kartikbazzad/syncdb/internal/types"
)

// writeLeaves rewrites the current flags of a document to the leaf set of
// its (freshly mutated) tree.
func (d *Datastore) writeLeaves(tx *sql.Tx, tree *revtree.Tree, internalID int64) error {
	leafs := tree.Leafs()
	seqs := make([]int64, 0, len(leafs))
	for _, rev := range leafs {
		seqs = append(seqs, rev.Sequence)
	}
	return d.store.MarkLeaves(tx, internalID, seqs)
}

// CreateDocument stores the first revision of a document. An empty docID
// generates one. Creating over a live document fails with ErrDocumentExists;
// creating over a deleted document starts a new generation on top of the
// tombstone.
func (d *Datastore) CreateDocument(docID string, body types.DocumentBody) (*types.DocumentRevision, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	if docID == "" {
		docID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	mu := d.locks.lock(docID)
	defer mu.Unlock()

	rev := &types.DocumentRevision{
		DocID:          docID,
		RevID:          types.NewRevisionID(1),
		Body:           body,
		Current:        true,
		ParentSequence: types.RootSequence,
	}

	tree, _, err := d.store.LoadTree(docID)
	switch err {
	case nil:
		winner, werr := tree.CurrentRevision()
		if werr != nil {
			return nil, werr
		}
		if !winner.Deleted {
			return nil, errors.ErrDocumentExists
		}
		// Revive on top of the tombstone.
		rev.RevID = types.NewRevisionID(winner.Generation() + 1)
		rev.ParentSequence = winner.Sequence
	case errors.ErrDocumentNotFound:
		tree = revtree.New()
	default:
		return nil, err
	}

	if err := d.commitRevision(docID, tree, rev); err != nil {
		return nil, err
	}

	d.bus.Publish(eventbus.DocumentCreated{Datastore: d.name, DocID: docID, RevID: rev.RevID})
	d.logger.Debug("Created document %s/%s", docID, rev.RevID)
	return rev, nil
}

// UpdateDocument stores a new revision on top of the current winner.
// prevRevID must name the winner, otherwise the update is a conflict.
func (d *Datastore) UpdateDocument(docID, prevRevID string, body types.DocumentBody) (*types.DocumentRevision, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}

	mu := d.locks.lock(docID)
	defer mu.Unlock()

	rev, err := d.appendRevision(docID, prevRevID, body, false)
	if err != nil {
		return nil, err
	}

	d.bus.Publish(eventbus.DocumentUpdated{Datastore: d.name, DocID: docID, RevID: rev.RevID})
	d.logger.Debug("Updated document %s/%s", docID, rev.RevID)
	return rev, nil
}

// DeleteDocument stores a tombstone revision on top of the current winner.
// The tombstone is retained for convergence; the document's other branches
// stay untouched.
func (d *Datastore) DeleteDocument(docID, prevRevID string) (*types.DocumentRevision, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}

	mu := d.locks.lock(docID)
	defer mu.Unlock()

	rev, err := d.appendRevision(docID, prevRevID, types.EmptyBody(), true)
	if err != nil {
		return nil, err
	}

	d.bus.Publish(eventbus.DocumentDeleted{Datastore: d.name, DocID: docID, RevID: rev.RevID})
	d.logger.Debug("Deleted document %s/%s", docID, rev.RevID)
	return rev, nil
}

// appendRevision chains a new revision onto the winner named by prevRevID.
// Caller holds the document lock.
func (d *Datastore) appendRevision(docID, prevRevID string, body types.DocumentBody, deleted bool) (*types.DocumentRevision, error) {
	tree, _, err := d.store.LoadTree(docID)
	if err != nil {
		return nil, err
	}

	winner, err := tree.CurrentRevision()
	if err != nil {
		return nil, err
	}
	if winner.RevID != prevRevID {
		return nil, errors.ErrConflict
	}

	rev := &types.DocumentRevision{
		DocID:          docID,
		RevID:          types.NewRevisionID(winner.Generation() + 1),
		Body:           body,
		Deleted:        deleted,
		Current:        true,
		ParentSequence: winner.Sequence,
	}

	if err := d.commitRevision(docID, tree, rev); err != nil {
		return nil, err
	}
	return rev, nil
}

// commitRevision inserts rev into the store and rewrites the document's
// leaf flags, atomically. tree is the caller's private copy of the
// document's forest; the shared cache entry is dropped after commit.
func (d *Datastore) commitRevision(docID string, tree *revtree.Tree, rev *types.DocumentRevision) error {
	tx, err := d.store.Begin()
	if err != nil {
		return err
	}

	internalID, _, err := d.store.EnsureDoc(tx, docID)
	if err != nil {
		tx.Rollback()
		return err
	}
	rev.InternalID = internalID

	seq, err := d.store.InsertRevision(tx, internalID, rev)
	if err != nil {
		tx.Rollback()
		return err
	}
	rev.Sequence = seq

	if err := tree.Add(rev); err != nil {
		tx.Rollback()
		return err
	}
	if err := d.writeLeaves(tx, tree, internalID); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	d.trees.Remove(docID)
	return nil
}
