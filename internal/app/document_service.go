package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"policyqa/internal/model"
	"policyqa/internal/repository"
	"policyqa/internal/storage"
	"policyqa/internal/vectorindex"
)

var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrDocumentNotRunnable = errors.New("document ingestion already in progress")
)

// IngestQueue enqueues a document for the background worker.
type IngestQueue interface {
	Publish(ctx context.Context, documentID uint) error
}

// DocumentService owns the document lifecycle around the pipeline: upload
// (store file, create pending row, enqueue), re-ingest, list, and the
// explicit cascade on delete (the vector index has no foreign-key awareness
// of the relational store).
type DocumentService struct {
	docRepo *repository.DocumentRepository
	files   *storage.FileStore
	index   vectorindex.Index
	queue   IngestQueue
}

func NewDocumentService(docRepo *repository.DocumentRepository, files *storage.FileStore, index vectorindex.Index, queue IngestQueue) *DocumentService {
	return &DocumentService{
		docRepo: docRepo,
		files:   files,
		index:   index,
		queue:   queue,
	}
}

type UploadInput struct {
	UserID           uint
	Name             string
	OriginalFilename string
	FileExt          string
	Content          io.Reader
}

// Upload stores the file, records a pending document, and enqueues it for
// ingestion.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*model.Document, error) {
	if input.UserID == 0 || input.Content == nil {
		return nil, ErrInvalidInput
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = strings.TrimSpace(input.OriginalFilename)
	}
	if name == "" {
		name = "Untitled"
	}

	storedPath, size, err := s.files.Save(input.Content, input.FileExt)
	if err != nil {
		return nil, err
	}

	doc := &model.Document{
		UserID:           input.UserID,
		Name:             name,
		OriginalFilename: input.OriginalFilename,
		StoredPath:       storedPath,
		SizeBytes:        size,
		Status:           model.DocumentStatusPending,
	}
	if err := s.docRepo.Create(doc); err != nil {
		if rmErr := s.files.Remove(storedPath); rmErr != nil {
			log.Printf("cleanup stored file %s failed: %v", storedPath, rmErr)
		}
		return nil, err
	}

	if err := s.queue.Publish(ctx, doc.ID); err != nil {
		// Don't strand the document in pending: mark it failed so the user
		// can see the state and re-ingest.
		if uErr := s.docRepo.UpdateStatus(doc.ID, model.DocumentStatusFailed, "enqueue failed: "+err.Error(), 0); uErr != nil {
			log.Printf("mark document %d failed errored: %v", doc.ID, uErr)
		}
		return nil, fmt.Errorf("enqueue ingest failed: %w", err)
	}
	return doc, nil
}

func (s *DocumentService) List(userID uint) ([]model.Document, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.docRepo.ListByUserID(userID)
}

// Reingest resets a document to pending and enqueues it again. Pending
// documents are refused; their first run has not finished yet.
func (s *DocumentService) Reingest(ctx context.Context, userID, documentID uint) (*model.Document, error) {
	if userID == 0 || documentID == 0 {
		return nil, ErrInvalidInput
	}
	doc, err := s.docRepo.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	if doc.Status == model.DocumentStatusPending {
		return nil, ErrDocumentNotRunnable
	}

	if err := s.docRepo.UpdateStatus(doc.ID, model.DocumentStatusPending, "", 0); err != nil {
		return nil, err
	}
	if err := s.queue.Publish(ctx, doc.ID); err != nil {
		if uErr := s.docRepo.UpdateStatus(doc.ID, model.DocumentStatusFailed, "enqueue failed: "+err.Error(), 0); uErr != nil {
			log.Printf("mark document %d failed errored: %v", doc.ID, uErr)
		}
		return nil, fmt.Errorf("enqueue ingest failed: %w", err)
	}

	doc.Status = model.DocumentStatusPending
	doc.StatusReason = ""
	doc.ChunkCount = 0
	return doc, nil
}

// Delete removes the document's chunks from the index, the stored file, and
// the row, in that order.
func (s *DocumentService) Delete(ctx context.Context, userID, documentID uint) error {
	if userID == 0 || documentID == 0 {
		return ErrInvalidInput
	}
	doc, err := s.docRepo.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}

	if err := s.index.Delete(ctx, doc.ID); err != nil {
		return err
	}
	if err := s.files.Remove(doc.StoredPath); err != nil {
		log.Printf("remove stored file %s failed: %v", doc.StoredPath, err)
	}
	return s.docRepo.DeleteByIDAndUserID(doc.ID, userID)
}
