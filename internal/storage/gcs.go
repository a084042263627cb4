// Copyright (c) 2026 The Mailvault Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// ObjectStore is the narrow object-store surface the uploader needs.
type ObjectStore interface {
	// Put writes data under key with the declared content type and returns
	// the fully-qualified storage URI.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// StorageError wraps an object-store failure for one key.
type StorageError struct {
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return "object store: put " + e.Key + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// GCSStore adapts a Cloud Storage client and bucket to ObjectStore.
type GCSStore struct {
	client *gcs.Client
	bucket string
}

// NewGCSStore wraps a Cloud Storage client for one bucket.
func NewGCSStore(client *gcs.Client, bucket string) *GCSStore {
	return &GCSStore{client: client, bucket: bucket}
}

// Put uploads one object and returns its gs:// URI.
func (s *GCSStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", &StorageError{Key: key, Err: err}
	}
	if err := w.Close(); err != nil {
		return "", &StorageError{Key: key, Err: err}
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, key), nil
}

// Stats summarises the attachments stored in the bucket.
type Stats struct {
	TotalFiles int
	TotalBytes int64
	FileTypes  map[string]int
}

// Statistics scans the bucket under prefix and aggregates object counts,
// total size, and per-extension counts.
func (s *GCSStore) Statistics(ctx context.Context, prefix string) (*Stats, error) {
	stats := &Stats{FileTypes: make(map[string]int)}

	it := s.client.Bucket(s.bucket).Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects in %s: %w", s.bucket, err)
		}

		stats.TotalFiles++
		stats.TotalBytes += attrs.Size

		ext := strings.ToLower(path.Ext(path.Base(attrs.Name)))
		if ext == "" {
			ext = "no_extension"
		}
		stats.FileTypes[ext]++
	}

	return stats, nil
}

// ObjectInfo describes one stored object for listings.
type ObjectInfo struct {
	Name        string
	Size        int64
	Created     time.Time
	ContentType string
}

// ListRecent returns up to limit objects under prefix.
func (s *GCSStore) ListRecent(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error) {
	var out []ObjectInfo

	it := s.client.Bucket(s.bucket).Objects(ctx, &gcs.Query{Prefix: prefix})
	for len(out) < limit {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects in %s: %w", s.bucket, err)
		}
		out = append(out, ObjectInfo{
			Name:        attrs.Name,
			Size:        attrs.Size,
			Created:     attrs.Created,
			ContentType: attrs.ContentType,
		})
	}

	return out, nil
}
