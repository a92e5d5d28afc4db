package datastore

import (
	"context"
	"io"

	"github.com/kartikbazzad/syncdb/internal/attachment"
	"github.com/kartikbazzad/syncdb/internal/types"
)

// SavedAttachment describes a committed attachment of a stored revision.
type SavedAttachment struct {
	Name        string
	ContentType string
	Key         []byte // raw SHA-1 of the decoded content
	Encoding    attachment.Encoding
	Length      int64
	RevPos      int
}

// PrepareAttachment stages an attachment into this datastore's attachments
// directory so a later ForceInsert can commit it without holding the input
// stream open. Staging honors ctx between chunks.
func (d *Datastore) PrepareAttachment(ctx context.Context, att attachment.Attachment, encoding attachment.Encoding) (*attachment.Prepared, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	chunk := d.cfg.Attachments.ChunkSizeKB * 1024
	return attachment.Prepare(ctx, att, d.attachments.Dir(), encoding, chunk)
}

// AttachmentsForRevision lists the attachments committed with a revision.
func (d *Datastore) AttachmentsForRevision(rev *types.DocumentRevision) ([]*SavedAttachment, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := d.store.AttachmentsForSequence(rev.Sequence)
	if err != nil {
		return nil, err
	}

	atts := make([]*SavedAttachment, 0, len(rows))
	for _, row := range rows {
		atts = append(atts, &SavedAttachment{
			Name:        row.Filename,
			ContentType: row.Type,
			Key:         row.Key,
			Encoding:    attachment.Encoding(row.Encoding),
			Length:      row.Length,
			RevPos:      row.RevPos,
		})
	}
	return atts, nil
}

// OpenAttachment returns a reader over the decoded content of a revision's
// named attachment.
func (d *Datastore) OpenAttachment(rev *types.DocumentRevision, name string) (io.ReadCloser, *SavedAttachment, error) {
	if err := d.checkOpen(); err != nil {
		return nil, nil, err
	}

	row, err := d.store.AttachmentForName(rev.Sequence, name)
	if err != nil {
		return nil, nil, err
	}

	saved := &SavedAttachment{
		Name:        row.Filename,
		ContentType: row.Type,
		Key:         row.Key,
		Encoding:    attachment.Encoding(row.Encoding),
		Length:      row.Length,
		RevPos:      row.RevPos,
	}

	r, err := d.attachments.Open(row.Key, saved.Encoding)
	if err != nil {
		return nil, nil, err
	}
	return r, saved, nil
}

// VerifyAttachment recomputes a committed attachment's digest against its
// key. A mismatch reports on-disk corruption.
func (d *Datastore) VerifyAttachment(saved *SavedAttachment) error {
	if err := d.checkOpen(); err != nil {
		return err
	}
	return d.attachments.Verify(saved.Key, saved.Encoding)
}
