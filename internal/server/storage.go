package server

import (
	"context"
	"fmt"

	"novelistan/internal/config"
	"novelistan/internal/domain/upload"
	"novelistan/internal/pkg/blob"
)

// Storage is where committed uploads go and where the gateway falls back to.
type Storage struct {
	Sink   upload.Sink
	Remote blob.Store // nil when there is no remote fallback
}

// NewStorage selects the upload sink for STORAGE_BACKEND. With the local
// backend a BLOB_BASE_URL still serves as read-only fallback for files that
// only exist remotely.
func NewStorage(ctx context.Context, cfg *config.AppConfig) (*Storage, error) {
	switch cfg.StorageBackend {
	case config.BackendS3:
		store, err := blob.NewS3Store(ctx, blob.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicURL:       cfg.BlobPublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
		return &Storage{Sink: upload.BlobSink{Store: store}, Remote: store}, nil

	default:
		s := &Storage{Sink: upload.LocalSink{PublicPrefix: "/files"}}
		if cfg.BlobBaseURL != "" {
			s.Remote = blob.NewHTTPStore(cfg.BlobBaseURL, cfg.RemoteFetchTimeout)
		}
		return s, nil
	}
}
