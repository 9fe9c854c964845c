package app

import (
	"context"
	"log"

	"policyqa/internal/cache"
	"policyqa/internal/model"
	"policyqa/internal/repository"
)

// HistoryService serves a user's recent exchanges with a short-lived Redis
// cache in front of the relational store. Cache faults fall through to the
// database; they never fail the read.
type HistoryService struct {
	repo      *repository.ChatHistoryRepository
	histCache *cache.HistoryCache
}

func NewHistoryService(repo *repository.ChatHistoryRepository, histCache *cache.HistoryCache) *HistoryService {
	return &HistoryService{
		repo:      repo,
		histCache: histCache,
	}
}

func (s *HistoryService) GetHistory(ctx context.Context, userID uint, limit int) ([]model.HistoryEntry, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}

	if cached, hit, err := s.histCache.Get(ctx, userID); err != nil {
		log.Printf("history cache read for user %d failed: %v", userID, err)
	} else if hit {
		return cached, nil
	}

	rows, err := s.repo.ListByUserID(userID, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]model.HistoryEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].View()
	}

	if err := s.histCache.Set(ctx, userID, entries); err != nil {
		log.Printf("history cache write for user %d failed: %v", userID, err)
	}
	return entries, nil
}
