package attachment

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/kartikbazzad/syncdb/internal/errors"
	"github.com/kartikbazzad/syncdb/internal/logger"
)

// Store holds committed attachment blobs under a datastore's attachments
// directory. Blobs are content-addressed: the filename is the hex SHA-1 of
// the decoded content, so identical attachments dedupe across revisions and
// documents. Staging temp files live in the same directory and are renamed
// in on commit, which is atomic on POSIX filesystems.
type Store struct {
	dir    string
	logger *logger.Logger
}

func NewStore(dir string, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Store{dir: dir, logger: log}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// BlobPath returns the on-disk path for a digest key.
func (s *Store) BlobPath(key []byte) string {
	return filepath.Join(s.dir, hex.EncodeToString(key))
}

// Commit moves a prepared attachment to its digest-named final path and
// consumes it. If a blob with the same digest already exists the temp file
// is dropped and the existing blob is shared.
func (s *Store) Commit(p *Prepared) (string, error) {
	if p.consumed {
		return "", errors.ErrAttachmentConsumed
	}

	final := s.BlobPath(p.SHA1)
	if _, err := os.Stat(final); err == nil {
		p.consumed = true
		if err := os.Remove(p.TempPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("Failed to drop duplicate staging file %s: %v", p.TempPath, err)
		}
		return final, nil
	}

	if err := os.Rename(p.TempPath, final); err != nil {
		return "", err
	}
	p.consumed = true
	return final, nil
}

// Open returns a reader over the decoded content of a committed blob.
func (s *Store) Open(key []byte, encoding Encoding) (io.ReadCloser, error) {
	f, err := os.Open(s.BlobPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrAttachmentNotFound
		}
		return nil, err
	}

	if encoding != EncodingGzip {
		return f, nil
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &gzipBlobReader{gz: gz, f: f}, nil
}

type gzipBlobReader struct {
	gz *gzip.Reader
	f  *os.File
}

func (r *gzipBlobReader) Read(p []byte) (int, error) {
	return r.gz.Read(p)
}

func (r *gzipBlobReader) Close() error {
	gzErr := r.gz.Close()
	fErr := r.f.Close()
	if gzErr != nil {
		return gzErr
	}
	return fErr
}

// Verify recomputes the digest of a committed blob and compares it to its
// key. A mismatch means on-disk corruption.
func (s *Store) Verify(key []byte, encoding Encoding) error {
	r, err := s.Open(key, encoding)
	if err != nil {
		return err
	}
	defer r.Close()

	digest := sha1.New()
	if _, err := io.Copy(digest, r); err != nil {
		return err
	}
	if !bytes.Equal(digest.Sum(nil), key) {
		return errors.ErrDigestMismatch
	}
	return nil
}
