// Package storage issues presigned URLs and retention tags for recording
// blobs. Blobs themselves never pass through the API.
package storage

import (
	"context"
	"fmt"
	"time"

	"replayhub/internal/platform/config"
)

// ObjectStore is the capability the assist record manager needs from the
// object store.
type ObjectStore interface {
	// PresignUpload returns a URL that accepts a PUT of key for ttl.
	PresignUpload(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	// PresignDownload returns a URL that serves a GET of key for ttl.
	PresignDownload(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	// Tag replaces the tag set of key with the single tag name=value.
	Tag(ctx context.Context, bucket, key, name, value string) error
}

// NewObjectStoreFromConfig creates an ObjectStore based on the storage type.
func NewObjectStoreFromConfig(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Type {
	case "memory":
		base := cfg.Endpoint
		if base == "" {
			base = "http://storage.local"
		}
		return NewMemoryStore(base), nil
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
