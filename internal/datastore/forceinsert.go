package datastore

import (
	"database/sql"

	"github.com/kartikbazzad/syncdb/internal/attachment"
	"github.com/kartikbazzad/syncdb/internal/errors"
	"github.com/kartikbazzad/syncdb/internal/eventbus"
	"github.com/kartikbazzad/syncdb/internal/revtree"
	"github.com/kartikbazzad/syncdb/internal/storage"
	"github.com/kartikbazzad/syncdb/internal/types"
)

// validateRevisionHistory checks that history is a root-to-leaf list of
// revision ids with strictly ascending generations, ending at revID.
func validateRevisionHistory(history []string, revID string) error {
	if len(history) == 0 || history[len(history)-1] != revID {
		return errors.ErrInvalidRevisionHistory
	}

	prevGen := 0
	for _, id := range history {
		gen, _, err := types.ParseRevisionID(id)
		if err != nil {
			return errors.ErrInvalidRevisionID
		}
		if gen <= prevGen {
			return errors.ErrInvalidRevisionHistory
		}
		prevGen = gen
	}
	return nil
}

// ForceInsert stores a revision received from a remote replica, together
// with its ancestry. Ancestors the local store lacks are created as
// empty-body stubs grafted onto the deepest locally known revision in the
// history (or as a new root when none is known). The revision, its stubs
// and its attachments commit atomically; the document's winner is
// recomputed afterwards.
//
// Re-inserting an already known revision is a no-op, which makes pull
// replication idempotent and resumable. A known revision id carrying
// different content is a conflict violation.
func (d *Datastore) ForceInsert(rev *types.DocumentRevision, revHistory []string, attachments []*attachment.Prepared) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	if err := validateRevisionHistory(revHistory, rev.RevID); err != nil {
		return err
	}

	mu := d.locks.lock(rev.DocID)
	defer mu.Unlock()

	tree, _, err := d.store.LoadTree(rev.DocID)
	created := false
	switch err {
	case nil:
		if existing := tree.Lookup(rev.DocID, rev.RevID); existing != nil {
			if !existing.Body.Equal(rev.Body) || existing.Deleted != rev.Deleted {
				return errors.ErrConflict
			}
			d.discardAll(attachments)
			return nil
		}
	case errors.ErrDocumentNotFound:
		tree = revtree.New()
		created = true
	default:
		return err
	}

	tx, err := d.store.Begin()
	if err != nil {
		return err
	}

	internalID, _, err := d.store.EnsureDoc(tx, rev.DocID)
	if err != nil {
		tx.Rollback()
		return err
	}
	rev.InternalID = internalID

	if err := d.graftHistory(tx, tree, internalID, rev, revHistory); err != nil {
		tx.Rollback()
		return err
	}

	if err := d.commitAttachments(tx, rev, attachments); err != nil {
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
	d.trees.Remove(rev.DocID)

	if created {
		d.bus.Publish(eventbus.DocumentCreated{Datastore: d.name, DocID: rev.DocID, RevID: rev.RevID})
	} else {
		d.bus.Publish(eventbus.DocumentUpdated{Datastore: d.name, DocID: rev.DocID, RevID: rev.RevID})
	}
	d.logger.Debug("Force-inserted %s/%s (%d ancestors)", rev.DocID, rev.RevID, len(revHistory)-1)
	return nil
}

// graftHistory walks revHistory from the leaf towards the root to find the
// deepest locally known ancestor, then inserts stubs for the unknown
// ancestors above it and finally rev itself.
func (d *Datastore) graftHistory(tx *sql.Tx, tree *revtree.Tree, internalID int64, rev *types.DocumentRevision, revHistory []string) error {
	graft := len(revHistory) - 1 // index of the first id that needs inserting
	parentSeq := types.RootSequence
	for i := len(revHistory) - 2; i >= 0; i-- {
		if known := tree.Lookup(rev.DocID, revHistory[i]); known != nil {
			parentSeq = known.Sequence
			break
		}
		graft = i
	}

	for i := graft; i < len(revHistory)-1; i++ {
		stub := &types.DocumentRevision{
			DocID:          rev.DocID,
			RevID:          revHistory[i],
			Body:           types.EmptyBody(),
			InternalID:     internalID,
			ParentSequence: parentSeq,
		}
		seq, err := d.store.InsertRevision(tx, internalID, stub)
		if err != nil {
			return err
		}
		stub.Sequence = seq
		if err := tree.Add(stub); err != nil {
			return err
		}
		parentSeq = seq
	}

	rev.ParentSequence = parentSeq
	rev.Current = true
	seq, err := d.store.InsertRevision(tx, internalID, rev)
	if err != nil {
		return err
	}
	rev.Sequence = seq
	return tree.Add(rev)
}

// commitAttachments moves prepared blobs into the store and records their
// rows against the inserted revision.
func (d *Datastore) commitAttachments(tx *sql.Tx, rev *types.DocumentRevision, attachments []*attachment.Prepared) error {
	for _, p := range attachments {
		if _, err := d.attachments.Commit(p); err != nil {
			return err
		}
		row := &storage.AttachmentRow{
			Sequence: rev.Sequence,
			Filename: p.Attachment.Name(),
			Key:      p.SHA1,
			Type:     p.Attachment.ContentType(),
			Encoding: int(p.Encoding),
			Length:   p.Length,
			RevPos:   rev.Generation(),
		}
		if err := d.store.InsertAttachment(tx, row); err != nil {
			return err
		}
	}
	return nil
}

func (d *Datastore) discardAll(attachments []*attachment.Prepared) {
	for _, p := range attachments {
		if err := p.Discard(); err != nil && err != errors.ErrAttachmentConsumed {
			d.logger.Warn("Failed to discard staged attachment %s: %v", p.TempPath, err)
		}
	}
}
