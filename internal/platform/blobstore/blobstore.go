// Package blobstore stores documents attached to OT allocations (consent
// forms, anaesthesia records, operation notes). Objects are grouped under
// their allocation so a single allocation's documents can be listed cheaply.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrInvalidCategory    = errors.New("category is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
)

// MaxFileSize is the maximum allowed document size in bytes (25 MB).
const MaxFileSize = 25 * 1024 * 1024

const DefaultCategory = "other"

// AllowedCategories lists valid document categories.
var AllowedCategories = map[string]bool{
	"consent-form":       true,
	"pre-op-assessment":  true,
	"anaesthesia-record": true,
	"operation-note":     true,
	"post-op-note":       true,
	"other":              true,
}

// AllowedContentTypes lists accepted document MIME types.
var AllowedContentTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"application/pdf": true,
	"text/plain":      true,
}

type BlobMetadata struct {
	ID           uuid.UUID `json:"id"`
	AllocationID uuid.UUID `json:"allocation_id"`
	FileName     string    `json:"file_name"`
	ContentType  string    `json:"content_type"`
	Category     string    `json:"category"`
	Size         int64     `json:"size"`
	Hash         string    `json:"hash"`
	CreatedAt    time.Time `json:"created_at"`
	CreatedBy    string    `json:"created_by,omitempty"`
}

// BlobStore is implemented by MemoryStore and MinioStore.
type BlobStore interface {
	Upload(ctx context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error)
	Download(ctx context.Context, allocationID, id uuid.UUID) (io.ReadCloser, *BlobMetadata, error)
	Delete(ctx context.Context, allocationID, id uuid.UUID) error
	ListByAllocation(ctx context.Context, allocationID uuid.UUID) ([]*BlobMetadata, error)
}

// prepare validates metadata, buffers the content and fills in the derived
// fields. Shared by every backend.
func prepare(meta BlobMetadata, content io.Reader, now time.Time) (BlobMetadata, []byte, error) {
	if meta.FileName == "" {
		return meta, nil, ErrMissingFileName
	}
	if meta.Category == "" {
		meta.Category = DefaultCategory
	}
	if !AllowedCategories[meta.Category] {
		return meta, nil, fmt.Errorf("%w: %s", ErrInvalidCategory, meta.Category)
	}
	if !AllowedContentTypes[meta.ContentType] {
		return meta, nil, fmt.Errorf("%w: %s", ErrInvalidContentType, meta.ContentType)
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return meta, nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return meta, nil, ErrFileTooLarge
	}

	h := sha256.Sum256(data)
	meta.ID = uuid.New()
	meta.Size = int64(len(data))
	meta.Hash = fmt.Sprintf("%x", h)
	meta.CreatedAt = now.UTC()
	return meta, data, nil
}

type storedBlob struct {
	metadata BlobMetadata
	content  []byte
}

// MemoryStore is a thread-safe, in-memory BlobStore for development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[uuid.UUID]*storedBlob
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[uuid.UUID]*storedBlob), now: time.Now}
}

func (s *MemoryStore) Upload(_ context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error) {
	meta, data, err := prepare(meta, content, s.now())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.blobs[meta.ID] = &storedBlob{metadata: meta, content: data}
	s.mu.Unlock()

	out := meta
	return &out, nil
}

func (s *MemoryStore) get(allocationID, id uuid.UUID) (*storedBlob, error) {
	blob, ok := s.blobs[id]
	if !ok || blob.metadata.AllocationID != allocationID {
		return nil, ErrBlobNotFound
	}
	return blob, nil
}

func (s *MemoryStore) Download(_ context.Context, allocationID, id uuid.UUID) (io.ReadCloser, *BlobMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blob, err := s.get(allocationID, id)
	if err != nil {
		return nil, nil, err
	}
	meta := blob.metadata
	return io.NopCloser(bytes.NewReader(blob.content)), &meta, nil
}

func (s *MemoryStore) Delete(_ context.Context, allocationID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.get(allocationID, id); err != nil {
		return err
	}
	delete(s.blobs, id)
	return nil
}

func (s *MemoryStore) ListByAllocation(_ context.Context, allocationID uuid.UUID) ([]*BlobMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := []*BlobMetadata{}
	for _, b := range s.blobs {
		if b.metadata.AllocationID != allocationID {
			continue
		}
		m := b.metadata
		matched = append(matched, &m)
	}
	sortByCreated(matched)
	return matched, nil
}

func sortByCreated(items []*BlobMetadata) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].FileName < items[j].FileName
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}
