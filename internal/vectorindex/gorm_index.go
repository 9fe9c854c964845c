package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gorm.io/gorm"

	"policyqa/internal/model"
)

// GormIndex keeps chunks and their embeddings in the relational store and
// ranks by cosine similarity in memory. Fine for per-user document counts
// this application sees; swap the Index implementation for a dedicated
// vector store if that stops being true.
type GormIndex struct {
	db *gorm.DB
}

func NewGormIndex(db *gorm.DB) *GormIndex {
	return &GormIndex{db: db}
}

// Upsert deletes any existing chunks for the document and inserts the new
// set in a single transaction, so a failed run never leaves a mix of old
// and new chunks.
func (x *GormIndex) Upsert(ctx context.Context, documentID uint, chunks []Chunk) error {
	err := x.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&model.DocumentChunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		rows := make([]model.DocumentChunk, len(chunks))
		for i, c := range chunks {
			rows[i] = model.DocumentChunk{
				DocumentID: documentID,
				Ordinal:    c.Ordinal,
				Content:    c.Content,
			}
			rows[i].SetEmbedding(c.Vector)
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("upsert chunks for document %d failed: %w", documentID, err)
	}
	return nil
}

func (x *GormIndex) Query(ctx context.Context, vector []float32, topK int, documentIDs []uint) ([]Match, error) {
	if topK <= 0 || len(documentIDs) == 0 {
		return nil, nil
	}

	var rows []model.DocumentChunk
	if err := x.db.WithContext(ctx).Where("document_id IN ?", documentIDs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load chunks failed: %w", err)
	}

	matches := make([]Match, 0, len(rows))
	for i := range rows {
		matches = append(matches, Match{
			DocumentID: rows[i].DocumentID,
			Ordinal:    rows[i].Ordinal,
			Content:    rows[i].Content,
			Score:      CosineSimilarity(vector, rows[i].EmbeddingVector()),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

func (x *GormIndex) Delete(ctx context.Context, documentID uint) error {
	if err := x.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&model.DocumentChunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks for document %d failed: %w", documentID, err)
	}
	return nil
}

// CosineSimilarity returns 0 for mismatched or zero-length vectors.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / float32(math.Sqrt(float64(normA))*math.Sqrt(float64(normB)))
}
