// Package datastore implements the document datastore facade and its
// manager.
//
// A Datastore owns one directory: a SQLite file for revisions and an
// attachments/ subdirectory for content-addressed blobs. Documents are
// revision forests (see internal/revtree); the public revision of a
// document is the deterministic winner among its leaves.
//
// Writers of one document are serialized by a striped per-document lock;
// readers run against point-in-time snapshots of the underlying rows.
// Loaded trees are cached in a small LRU and dropped on every mutation of
// their document.
package datastore

import (
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kartikbazzad/syncdb/internal/attachment"
	"github.com/kartikbazzad/syncdb/internal/config"
	"github.com/kartikbazzad/syncdb/internal/errors"
	"github.com/kartikbazzad/syncdb/internal/eventbus"
	"github.com/kartikbazzad/syncdb/internal/logger"
	"github.com/kartikbazzad/syncdb/internal/revtree"
	"github.com/kartikbazzad/syncdb/internal/storage"
	"github.com/kartikbazzad/syncdb/internal/types"
)

const (
	storeFilename  = "db.sqlite"
	attachmentsDir = "attachments"
)

// Datastore is a single named document database. All exported methods are
// safe for concurrent use.
type Datastore struct {
	name string
	dir  string

	store       *storage.Store
	attachments *attachment.Store
	bus         *eventbus.Bus
	cfg         *config.Config
	logger      *logger.Logger

	locks docLocks
	trees *lru.Cache[string, *revtree.Tree]

	mu        sync.RWMutex
	closed    bool
	closeHook func(name string)
}

// openDatastore opens (creating on first use) the datastore rooted at dir.
func openDatastore(dir, name string, cfg *config.Config, bus *eventbus.Bus, log *logger.Logger) (*Datastore, error) {
	log = log.WithDatastore(name)

	attStore, err := attachment.NewStore(filepath.Join(dir, attachmentsDir), log.WithComponent("attachments"))
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(filepath.Join(dir, storeFilename), log.WithComponent("storage"))
	if err != nil {
		return nil, err
	}

	cacheSize := cfg.Cache.TreeCacheSize
	if cacheSize <= 0 {
		cacheSize = 256
	}
	trees, err := lru.New[string, *revtree.Tree](cacheSize)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &Datastore{
		name:        name,
		dir:         dir,
		store:       store,
		attachments: attStore,
		bus:         bus,
		cfg:         cfg,
		logger:      log,
		trees:       trees,
	}, nil
}

// Name returns the datastore's logical name.
func (d *Datastore) Name() string {
	return d.name
}

// Dir returns the directory holding this datastore's files.
func (d *Datastore) Dir() string {
	return d.dir
}

// EventBus returns the bus this datastore publishes lifecycle events on.
func (d *Datastore) EventBus() *eventbus.Bus {
	return d.bus
}

// Close releases the underlying store and publishes DatastoreClosed.
// Closing twice is a no-op.
func (d *Datastore) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	hook := d.closeHook
	d.mu.Unlock()

	err := d.store.Close()
	if hook != nil {
		hook(d.name)
	}
	d.bus.Publish(eventbus.DatastoreClosed{Name: d.name})
	d.logger.Info("Closed datastore %s", d.name)
	return err
}

func (d *Datastore) checkOpen() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return errors.ErrDatastoreClosed
	}
	return nil
}

// loadTree returns the revision forest for a document, from cache when
// possible.
func (d *Datastore) loadTree(docID string) (*revtree.Tree, int64, error) {
	if tree, ok := d.trees.Get(docID); ok {
		internalID, _, err := d.store.DocNumericID(docID)
		if err != nil {
			return nil, 0, err
		}
		return tree, internalID, nil
	}

	tree, internalID, err := d.store.LoadTree(docID)
	if err != nil {
		return nil, 0, err
	}
	d.trees.Add(docID, tree)
	return tree, internalID, nil
}

// GetDocument returns the winning revision of a document. The winner may be
// a tombstone; callers inspect Deleted.
func (d *Datastore) GetDocument(docID string) (*types.DocumentRevision, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	tree, _, err := d.loadTree(docID)
	if err != nil {
		return nil, err
	}
	return tree.CurrentRevision()
}

// GetDocumentRevision returns one specific (doc, rev) pair.
func (d *Datastore) GetDocumentRevision(docID, revID string) (*types.DocumentRevision, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	return d.store.LookupRevision(docID, revID)
}

// GetDocumentTree returns the full revision forest of a document.
func (d *Datastore) GetDocumentTree(docID string) (*revtree.Tree, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	tree, _, err := d.loadTree(docID)
	return tree, err
}

// GetConflictedDocuments returns the ids of documents with more than one
// live leaf.
func (d *Datastore) GetConflictedDocuments() ([]string, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	return d.store.ConflictedDocIDs()
}

// ListDocumentIDs returns every document id in the store.
func (d *Datastore) ListDocumentIDs() ([]string, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	return d.store.AllDocIDs()
}

// LastSequence returns the store's logical clock: the highest committed
// revision sequence.
func (d *Datastore) LastSequence() (int64, error) {
	if err := d.checkOpen(); err != nil {
		return 0, err
	}
	return d.store.LastSequence()
}
