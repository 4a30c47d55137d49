// Package blob talks to the remote object store that backs (or overflows) the
// local uploads tree. Keys are flat stored names such as cover-1700000000000-123456789.png.
package blob

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotFound = errors.New("blob not found")
	ErrReadOnly = errors.New("blob store is read-only")
)

// Object is an open remote blob. Callers must close Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

type Store interface {
	Put(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) error
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
	// URL is the public address of key, used for redirects and descriptors.
	URL(key string) string
}
