package errors

import (
	"errors"
)

var (
	// ErrInvalidDatastoreName is returned when a datastore name does not
	// match ^[A-Za-z][A-Za-z0-9_]*$
	ErrInvalidDatastoreName = errors.New("datastore name must start with a letter and contain only letters, digits and underscores")

	// ErrDatastoreNotFound is returned when deleting a datastore that does not exist on disk
	ErrDatastoreNotFound = errors.New("datastore does not exist")

	// ErrDatastoreClosed is returned when operating on a closed datastore
	ErrDatastoreClosed = errors.New("datastore is closed")

	// ErrDocumentNotFound is returned when reading a document with no revisions
	ErrDocumentNotFound = errors.New("document not found")

	// ErrDocumentExists is returned when creating a document whose current
	// winner is not deleted
	ErrDocumentExists = errors.New("document already exists")

	// ErrRevisionNotFound is returned when a (doc, rev) pair is not stored
	ErrRevisionNotFound = errors.New("revision not found")

	// ErrLocalDocumentNotFound is returned for missing local-only documents
	ErrLocalDocumentNotFound = errors.New("local document not found")

	// ErrInvalidRevisionID is returned when a revision id is not "<generation>-<suffix>"
	// with generation >= 1
	ErrInvalidRevisionID = errors.New("invalid revision id")

	// ErrInvalidRevisionHistory is returned when a pushed revision history is
	// empty, out of order, or does not end at the inserted revision
	ErrInvalidRevisionHistory = errors.New("invalid revision history")

	// Revision tree construction errors
	ErrParentNotFound     = errors.New("parent revision not in tree")
	ErrRevisionInTree     = errors.New("revision already in tree")
	ErrSequenceNotFound   = errors.New("sequence not in tree")
	ErrEmptyTree          = errors.New("revision tree is empty")
	ErrTreeCorrupt        = errors.New("revision tree corrupt: generation must increase from parent to child")
	ErrDocumentIDMismatch = errors.New("revision belongs to a different document")

	// ErrConflict is returned when an update does not name the current
	// winning revision, or an insert names an existing revision with
	// different content
	ErrConflict = errors.New("revision conflict")

	// ErrUnknownEncoding is returned for attachment encodings other than
	// plain and gzip
	ErrUnknownEncoding = errors.New("unknown attachment encoding")

	// ErrDigestMismatch is returned when attachment bytes do not hash to
	// their recorded key
	ErrDigestMismatch = errors.New("attachment digest mismatch")

	// ErrAttachmentNotFound is returned when an attachment blob or row is missing
	ErrAttachmentNotFound = errors.New("attachment not found")

	// ErrAttachmentConsumed is returned when a prepared attachment is
	// committed or discarded twice
	ErrAttachmentConsumed = errors.New("prepared attachment already consumed")
)
