package eventbus

// Event is a notification published by the datastore layer. Concrete event
// types are plain structs; subscribers type-switch on the ones they care
// about.
type Event interface{}

// DatastoreCreated is published the first time a datastore's directory is
// created on disk.
type DatastoreCreated struct {
	Name string
}

// DatastoreOpened is published every time a datastore is opened.
type DatastoreOpened struct {
	Name string
}

// DatastoreClosed is published when an open datastore is closed.
type DatastoreClosed struct {
	Name string
}

// DatastoreDeleted is published after a datastore's files are removed from
// disk.
type DatastoreDeleted struct {
	Name string
}

// DocumentCreated is published when CreateDocument stores a document,
// including a revival on top of a tombstone, and when ForceInsert stores the
// first revisions of a document that was not stored before.
type DocumentCreated struct {
	Datastore string
	DocID     string
	RevID     string
}

// DocumentUpdated is published when UpdateDocument stores a new revision,
// and when ForceInsert adds a revision to an already stored document; a
// force-inserted revision may sit on a losing branch or be a tombstone.
type DocumentUpdated struct {
	Datastore string
	DocID     string
	RevID     string
}

// DocumentDeleted is published when DeleteDocument stores a tombstone on top
// of the current winner. If other live branches exist, one of them becomes
// the new winner.
type DocumentDeleted struct {
	Datastore string
	DocID     string
	RevID     string
}
