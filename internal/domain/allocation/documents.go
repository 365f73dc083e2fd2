package allocation

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/ehr/otsched/internal/platform/auth"
	"github.com/ehr/otsched/internal/platform/blobstore"
)

func documentsRef(id uuid.UUID) string { return "allocations/" + id.String() + "/" }

// UploadDocument stores a file against the allocation and sets its
// documents_ref on the first upload.
func (s *Service) UploadDocument(ctx context.Context, id uuid.UUID, meta blobstore.BlobMetadata, content io.Reader) (*blobstore.BlobMetadata, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	meta.AllocationID = id
	if meta.CreatedBy == "" {
		meta.CreatedBy = auth.UserIDFromContext(ctx)
	}
	stored, err := s.blobs.Upload(ctx, meta, content)
	if err != nil {
		return nil, err
	}
	if a.DocumentsRef != nil {
		return stored, nil
	}

	_, release, err := s.lockAllocation(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		fresh, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if fresh.DocumentsRef != nil {
			return nil
		}
		ref := documentsRef(id)
		fresh.DocumentsRef = &ref
		return s.repo.Update(ctx, fresh)
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *Service) ListDocuments(ctx context.Context, id uuid.UUID) ([]*blobstore.BlobMetadata, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.blobs.ListByAllocation(ctx, id)
}

// DownloadDocument returns the content; the caller closes it.
func (s *Service) DownloadDocument(ctx context.Context, id, docID uuid.UUID) (io.ReadCloser, *blobstore.BlobMetadata, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, nil, err
	}
	return s.blobs.Download(ctx, id, docID)
}

func (s *Service) DeleteDocument(ctx context.Context, id, docID uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.blobs.Delete(ctx, id, docID)
}
