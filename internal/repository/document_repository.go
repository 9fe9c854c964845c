package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"policyqa/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query document by id failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) GetByIDAndUserID(id, userID uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByUserID(userID uint) ([]model.Document, error) {
	var list []model.Document
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

// ListIngestedIDsByUserID returns IDs of the user's documents whose chunks
// may be searched.
func (r *DocumentRepository) ListIngestedIDsByUserID(userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&model.Document{}).
		Where("user_id = ? AND status = ?", userID, model.DocumentStatusIngested).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list ingested document ids failed: %w", err)
	}
	return ids, nil
}

// NamesByIDs returns id -> name for the given documents.
func (r *DocumentRepository) NamesByIDs(ids []uint) (map[uint]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var docs []model.Document
	if err := r.db.Select("id", "name").Where("id IN ?", ids).Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("query document names failed: %w", err)
	}
	names := make(map[uint]string, len(docs))
	for _, d := range docs {
		names[d.ID] = d.Name
	}
	return names, nil
}

func (r *DocumentRepository) UpdateStatus(id uint, status model.DocumentStatus, reason string, chunkCount int) error {
	updates := map[string]interface{}{
		"status":        status,
		"status_reason": reason,
		"chunk_count":   chunkCount,
	}
	if err := r.db.Model(&model.Document{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("update document status failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) DeleteByIDAndUserID(id, userID uint) error {
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}
