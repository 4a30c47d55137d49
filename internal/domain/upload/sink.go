package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"novelistan/internal/pkg/blob"
)

// partSuffix marks a spool file that has not been committed yet.
const partSuffix = ".part"

// spooled is one accepted part written to <dir>/<storedName>.part.
type spooled struct {
	field        string
	policy       Policy
	originalName string
	storedName   string
	dir          string
	size         int64
	contentType  string
}

func (s *spooled) spoolPath() string { return filepath.Join(s.dir, s.storedName+partSuffix) }
func (s *spooled) finalPath() string { return filepath.Join(s.dir, s.storedName) }

func (s *spooled) discard() {
	_ = os.Remove(s.spoolPath())
}

// Sink commits spooled parts to their final home and removes them again.
type Sink interface {
	// Commit publishes the spool file and returns the descriptor path and URL.
	Commit(ctx context.Context, s *spooled) (path, url string, err error)
	Remove(ctx context.Context, f *StoredFile) error
}

// LocalSink keeps files in the uploads tree; commit is an atomic rename.
type LocalSink struct {
	// PublicPrefix is the URL prefix the retrieval routes are mounted on.
	PublicPrefix string
}

func (l LocalSink) Commit(_ context.Context, s *spooled) (string, string, error) {
	if err := os.Rename(s.spoolPath(), s.finalPath()); err != nil {
		return "", "", err
	}
	prefix := l.PublicPrefix
	if prefix == "" {
		prefix = "/files"
	}
	return s.finalPath(), prefix + "/" + s.policy.Category + "/" + s.storedName, nil
}

func (l LocalSink) Remove(_ context.Context, f *StoredFile) error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// BlobSink uploads committed parts to remote storage under their stored name
// and drops the local spool.
type BlobSink struct {
	Store blob.Store
}

func (b BlobSink) Commit(ctx context.Context, s *spooled) (string, string, error) {
	f, err := os.Open(s.spoolPath())
	if err != nil {
		return "", "", err
	}
	defer func() {
		_ = f.Close()
		s.discard()
	}()

	if err := b.Store.Put(ctx, s.storedName, f, s.size, s.contentType); err != nil {
		return "", "", fmt.Errorf("upload to blob storage: %w", err)
	}
	return s.storedName, b.Store.URL(s.storedName), nil
}

func (b BlobSink) Remove(ctx context.Context, f *StoredFile) error {
	return b.Store.Delete(ctx, f.StoredName)
}
