// Package attachment handles document attachment blobs: staging incoming
// streams into the attachments directory, content digests, and the
// digest-named blob store revisions reference once committed.
package attachment

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/kartikbazzad/syncdb/internal/errors"
)

// Encoding describes how attachment bytes are stored on disk.
type Encoding int

const (
	// EncodingPlain stores bytes verbatim.
	EncodingPlain Encoding = iota
	// EncodingGzip stores gzip-compressed bytes; digests are computed over
	// the decoded content.
	EncodingGzip
)

// ParseEncoding maps a wire name to an Encoding. Unknown encodings are
// rejected at staging.
func ParseEncoding(s string) (Encoding, error) {
	switch {
	case s == "" || strings.EqualFold(s, "plain"):
		return EncodingPlain, nil
	case strings.EqualFold(s, "gzip"):
		return EncodingGzip, nil
	default:
		return 0, errors.ErrUnknownEncoding
	}
}

func (e Encoding) String() string {
	switch e {
	case EncodingPlain:
		return "plain"
	case EncodingGzip:
		return "gzip"
	default:
		return "unknown"
	}
}

// Attachment is a named binary payload attached to a document revision.
// Open returns a fresh reader over the payload bytes.
type Attachment interface {
	Name() string
	ContentType() string
	Open() (io.ReadCloser, error)
}

// BytesAttachment is an in-memory attachment.
type BytesAttachment struct {
	AttName string
	Type    string
	Data    []byte
}

func NewBytesAttachment(name, contentType string, data []byte) *BytesAttachment {
	return &BytesAttachment{AttName: name, Type: contentType, Data: data}
}

func (a *BytesAttachment) Name() string        { return a.AttName }
func (a *BytesAttachment) ContentType() string { return a.Type }

func (a *BytesAttachment) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(a.Data)), nil
}

// FileAttachment reads its payload from a file on disk.
type FileAttachment struct {
	AttName string
	Type    string
	Path    string
}

func NewFileAttachment(name, contentType, path string) *FileAttachment {
	return &FileAttachment{AttName: name, Type: contentType, Path: path}
}

func (a *FileAttachment) Name() string        { return a.AttName }
func (a *FileAttachment) ContentType() string { return a.Type }

func (a *FileAttachment) Open() (io.ReadCloser, error) {
	return os.Open(a.Path)
}

// StreamAttachment wraps an existing reader, e.g. a replication response
// body. Open may be called at most once.
type StreamAttachment struct {
	AttName string
	Type    string
	Reader  io.ReadCloser
}

func NewStreamAttachment(name, contentType string, r io.ReadCloser) *StreamAttachment {
	return &StreamAttachment{AttName: name, Type: contentType, Reader: r}
}

func (a *StreamAttachment) Name() string        { return a.AttName }
func (a *StreamAttachment) ContentType() string { return a.Type }

func (a *StreamAttachment) Open() (io.ReadCloser, error) {
	if a.Reader == nil {
		return nil, errors.ErrAttachmentConsumed
	}
	r := a.Reader
	a.Reader = nil
	return r, nil
}
