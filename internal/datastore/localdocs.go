package datastore

import (
	"strconv"

	"github.com/kartikbazzad/syncdb/internal/errors"
	"github.com/kartikbazzad/syncdb/internal/types"
)

// Local documents are device-private: they carry no revision tree and never
// appear in revs-diff or replication. Replicators store their checkpoints
// here.

// GetLocalDocument returns the body of a local document.
func (d *Datastore) GetLocalDocument(docID string) (types.DocumentBody, error) {
	if err := d.checkOpen(); err != nil {
		return types.DocumentBody{}, err
	}
	_, body, err := d.store.GetLocal(docID)
	if err != nil {
		return types.DocumentBody{}, err
	}
	return types.NewDocumentBody(body), nil
}

// PutLocalDocument inserts or replaces a local document and returns its new
// revision id.
func (d *Datastore) PutLocalDocument(docID string, body types.DocumentBody) (string, error) {
	if err := d.checkOpen(); err != nil {
		return "", err
	}

	mu := d.locks.lock(docID)
	defer mu.Unlock()

	gen := 0
	if revID, _, err := d.store.GetLocal(docID); err == nil {
		if g, _, perr := types.ParseRevisionID(revID); perr == nil {
			gen = g
		}
	} else if err != errors.ErrLocalDocumentNotFound {
		return "", err
	}

	revID := strconv.Itoa(gen+1) + "-local"
	if err := d.store.PutLocal(docID, revID, body.Bytes()); err != nil {
		return "", err
	}
	return revID, nil
}

// DeleteLocalDocument removes a local document outright; local documents
// leave no tombstones.
func (d *Datastore) DeleteLocalDocument(docID string) error {
	if err := d.checkOpen(); err != nil {
		return err
	}

	mu := d.locks.lock(docID)
	defer mu.Unlock()

	return d.store.DeleteLocal(docID)
}
