package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads journal archives. PutMultipart is used for day files
// larger than one part.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader reads back archive metadata. A missing path is ErrNotFound.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
}

// Archiver copies decisions created before a cutoff to cold storage and
// returns how many it uploaded.
type Archiver interface {
	ArchiveDecisions(ctx context.Context, before time.Time) (int64, error)
}
