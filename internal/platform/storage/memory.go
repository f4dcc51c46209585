package storage

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// MemoryStore is an in-memory ObjectStore for local runs and tests. URLs it
// hands out point at baseURL and are not served by anything; tags are kept
// per bucket/key.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	baseURL string
	tags    map[string]map[string]string // "bucket/key" -> tag set
	mu      sync.RWMutex
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		baseURL: baseURL,
		tags:    make(map[string]map[string]string),
	}
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

func (m *MemoryStore) PresignUpload(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	return m.presign("PUT", bucket, key, ttl), nil
}

func (m *MemoryStore) PresignDownload(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	return m.presign("GET", bucket, key, ttl), nil
}

func (m *MemoryStore) presign(method, bucket, key string, ttl time.Duration) string {
	q := url.Values{}
	q.Set("method", method)
	q.Set("expires", fmt.Sprintf("%d", int(ttl.Seconds())))
	return fmt.Sprintf("%s/%s/%s?%s", m.baseURL, bucket, key, q.Encode())
}

// Tag replaces the tag set of the object, matching PutObjectTagging.
func (m *MemoryStore) Tag(ctx context.Context, bucket, key, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tags[objectKey(bucket, key)] = map[string]string{name: value}
	return nil
}

// Tags returns a copy of the object's tag set, or nil if it was never tagged.
func (m *MemoryStore) Tags(bucket, key string) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set, ok := m.tags[objectKey(bucket, key)]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(set))
	for k, v := range set {
		out[k] = v
	}
	return out
}

var _ ObjectStore = (*MemoryStore)(nil)
