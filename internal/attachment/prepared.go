package attachment

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/kartikbazzad/syncdb/internal/errors"
)

// DefaultChunkSize is the copy buffer used while staging when no explicit
// size is configured. Cancellation is checked between chunks.
const DefaultChunkSize = 64 * 1024

// tempPrefix is the basename prefix of staging files; the UUID suffix makes
// concurrent stagings in one directory collision-free without locking.
const tempPrefix = "temp"

// Prepared is a staged attachment: its bytes sit in a temp file inside the
// attachments directory and its content digest is known. It is consumed
// exactly once, either by committing into the blob store or by Discard.
type Prepared struct {
	Attachment Attachment
	TempPath   string
	SHA1       []byte // 20 raw bytes over the decoded content
	Encoding   Encoding
	Length     int64 // bytes on disk (encoded form)

	consumed bool
}

// cancellableReader checks ctx between reads so staging a slow or large
// stream can be abandoned cooperatively.
type cancellableReader struct {
	ctx context.Context
	src io.Reader
}

func (r *cancellableReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.src.Read(p)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// Prepare stages an attachment into attachmentsDir: streams the payload to a
// fresh temp file with bounded memory use and computes its SHA-1. For gzip
// encoding the incoming bytes are already compressed and land on disk
// verbatim; the digest is computed over the decoded stream. On any failure
// the temp file is removed before the error surfaces.
func Prepare(ctx context.Context, att Attachment, attachmentsDir string, encoding Encoding, chunkSize int) (*Prepared, error) {
	if encoding != EncodingPlain && encoding != EncodingGzip {
		return nil, errors.ErrUnknownEncoding
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	src, err := att.Open()
	if err != nil {
		return nil, fmt.Errorf("open attachment %q: %w", att.Name(), err)
	}
	defer src.Close()

	tempPath := filepath.Join(attachmentsDir, tempPrefix+uuid.NewString())
	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}

	cleanup := func(cause error) error {
		f.Close()
		os.Remove(tempPath)
		return cause
	}

	digest := sha1.New()
	counted := &countingWriter{w: f}
	in := &cancellableReader{ctx: ctx, src: src}
	buf := make([]byte, chunkSize)

	if encoding == EncodingPlain {
		if _, err := io.CopyBuffer(io.MultiWriter(counted, digest), in, buf); err != nil {
			return nil, cleanup(fmt.Errorf("stage attachment %q: %w", att.Name(), err))
		}
	} else {
		// Bytes pass through to disk; the digest reads the decoded side.
		gz, err := gzip.NewReader(io.TeeReader(in, counted))
		if err != nil {
			return nil, cleanup(fmt.Errorf("stage attachment %q: %w", att.Name(), err))
		}
		if _, err := io.CopyBuffer(digest, gz, buf); err != nil {
			gz.Close()
			return nil, cleanup(fmt.Errorf("stage attachment %q: %w", att.Name(), err))
		}
		if err := gz.Close(); err != nil {
			return nil, cleanup(fmt.Errorf("stage attachment %q: %w", att.Name(), err))
		}
	}

	if err := f.Sync(); err != nil {
		return nil, cleanup(fmt.Errorf("sync staging file: %w", err))
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("close staging file: %w", err)
	}

	return &Prepared{
		Attachment: att,
		TempPath:   tempPath,
		SHA1:       digest.Sum(nil),
		Encoding:   encoding,
		Length:     counted.n,
	}, nil
}

// Discard removes the staged temp file. It is the failure-path counterpart
// of Store.Commit.
func (p *Prepared) Discard() error {
	if p.consumed {
		return errors.ErrAttachmentConsumed
	}
	p.consumed = true
	if err := os.Remove(p.TempPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
