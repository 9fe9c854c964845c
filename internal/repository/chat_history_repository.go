package repository

import (
	"fmt"

	"gorm.io/gorm"

	"policyqa/internal/model"
)

type ChatHistoryRepository struct {
	db *gorm.DB
}

func NewChatHistoryRepository(db *gorm.DB) *ChatHistoryRepository {
	return &ChatHistoryRepository{db: db}
}

func (r *ChatHistoryRepository) Create(entry *model.ChatHistory) error {
	if err := r.db.Create(entry).Error; err != nil {
		return fmt.Errorf("create chat history failed: %w", err)
	}
	return nil
}

func (r *ChatHistoryRepository) ListByUserID(userID uint, limit int) ([]model.ChatHistory, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var entries []model.ChatHistory
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list chat history failed: %w", err)
	}
	return entries, nil
}
