package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// User metadata keys. MinIO returns them canonicalised, so lookups go
// through metaValue.
const (
	metaFileName  = "File-Name"
	metaCategory  = "Category"
	metaHash      = "Sha256"
	metaCreatedBy = "Created-By"
	metaCreatedAt = "Created-At"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore keeps documents in an S3-compatible bucket under
// "allocations/<allocation id>/<document id>".
type MinioStore struct {
	client *minio.Client
	bucket string
	now    func() time.Time
}

func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinioStore{client: client, bucket: cfg.Bucket, now: time.Now}, nil
}

func objectPrefix(allocationID uuid.UUID) string {
	return "allocations/" + allocationID.String() + "/"
}

func objectKey(allocationID, id uuid.UUID) string {
	return objectPrefix(allocationID) + id.String()
}

func (s *MinioStore) Upload(ctx context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error) {
	meta, data, err := prepare(meta, content, s.now())
	if err != nil {
		return nil, err
	}

	_, err = s.client.PutObject(ctx, s.bucket, objectKey(meta.AllocationID, meta.ID),
		bytes.NewReader(data), meta.Size, minio.PutObjectOptions{
			ContentType:  meta.ContentType,
			UserMetadata: userMetadata(meta),
		})
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}
	return &meta, nil
}

func (s *MinioStore) Download(ctx context.Context, allocationID, id uuid.UUID) (io.ReadCloser, *BlobMetadata, error) {
	key := objectKey(allocationID, id)
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, nil, translate(err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, translate(err)
	}
	meta := metadataFromInfo(allocationID, info)
	return obj, meta, nil
}

func (s *MinioStore) Delete(ctx context.Context, allocationID, id uuid.UUID) error {
	key := objectKey(allocationID, id)
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		return translate(err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

func (s *MinioStore) ListByAllocation(ctx context.Context, allocationID uuid.UUID) ([]*BlobMetadata, error) {
	items := []*BlobMetadata{}
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    objectPrefix(allocationID),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}
		// Listings omit user metadata.
		info, err := s.client.StatObject(ctx, s.bucket, obj.Key, minio.StatObjectOptions{})
		if err != nil {
			return nil, translate(err)
		}
		items = append(items, metadataFromInfo(allocationID, info))
	}
	sortByCreated(items)
	return items, nil
}

func translate(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return ErrBlobNotFound
	}
	return fmt.Errorf("minio: %w", err)
}

func userMetadata(meta BlobMetadata) map[string]string {
	m := map[string]string{
		metaFileName:  meta.FileName,
		metaCategory:  meta.Category,
		metaHash:      meta.Hash,
		metaCreatedAt: meta.CreatedAt.Format(time.RFC3339Nano),
	}
	if meta.CreatedBy != "" {
		m[metaCreatedBy] = meta.CreatedBy
	}
	return m
}

func metaValue(m map[string]string, key string) string {
	for k, v := range m {
		if strings.EqualFold(k, key) || strings.EqualFold(k, "X-Amz-Meta-"+key) {
			return v
		}
	}
	return ""
}

func metadataFromInfo(allocationID uuid.UUID, info minio.ObjectInfo) *BlobMetadata {
	meta := &BlobMetadata{
		AllocationID: allocationID,
		ContentType:  info.ContentType,
		Size:         info.Size,
		FileName:     metaValue(info.UserMetadata, metaFileName),
		Category:     metaValue(info.UserMetadata, metaCategory),
		Hash:         metaValue(info.UserMetadata, metaHash),
		CreatedBy:    metaValue(info.UserMetadata, metaCreatedBy),
		CreatedAt:    info.LastModified,
	}
	if id, err := uuid.Parse(info.Key[strings.LastIndex(info.Key, "/")+1:]); err == nil {
		meta.ID = id
	}
	if at, err := time.Parse(time.RFC3339Nano, metaValue(info.UserMetadata, metaCreatedAt)); err == nil {
		meta.CreatedAt = at
	}
	return meta
}
