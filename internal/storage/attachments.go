package storage

import (
	"database/sql"

	"github.com/kartikbazzad/syncdb/internal/errors"
)

// AttachmentRow is the stored metadata for one attachment of one revision.
// Key is the raw SHA-1 of the decoded content and names the blob on disk.
type AttachmentRow struct {
	Sequence int64
	Filename string
	Key      []byte
	Type     string
	Encoding int
	Length   int64
	RevPos   int
}

// InsertAttachment records an attachment row for a revision sequence.
func (s *Store) InsertAttachment(tx *sql.Tx, row *AttachmentRow) error {
	_, err := tx.Exec(
		`INSERT INTO attachments (sequence, filename, key, type, encoding, length, revpos) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.Sequence, row.Filename, row.Key, row.Type, row.Encoding, row.Length, row.RevPos,
	)
	return err
}

// AttachmentsForSequence returns the attachment rows of one revision.
func (s *Store) AttachmentsForSequence(seq int64) ([]*AttachmentRow, error) {
	rows, err := s.db.Query(
		`SELECT sequence, filename, key, type, encoding, length, revpos FROM attachments WHERE sequence = ?`,
		seq,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var atts []*AttachmentRow
	for rows.Next() {
		row := &AttachmentRow{}
		var contentType sql.NullString
		if err := rows.Scan(&row.Sequence, &row.Filename, &row.Key, &contentType, &row.Encoding, &row.Length, &row.RevPos); err != nil {
			return nil, err
		}
		row.Type = contentType.String
		atts = append(atts, row)
	}
	return atts, rows.Err()
}

// AttachmentForName returns one named attachment row of a revision.
func (s *Store) AttachmentForName(seq int64, filename string) (*AttachmentRow, error) {
	row := &AttachmentRow{}
	var contentType sql.NullString
	err := s.db.QueryRow(
		`SELECT sequence, filename, key, type, encoding, length, revpos FROM attachments WHERE sequence = ? AND filename = ?`,
		seq, filename,
	).Scan(&row.Sequence, &row.Filename, &row.Key, &contentType, &row.Encoding, &row.Length, &row.RevPos)
	if err == sql.ErrNoRows {
		return nil, errors.ErrAttachmentNotFound
	}
	if err != nil {
		return nil, err
	}
	row.Type = contentType.String
	return row, nil
}
