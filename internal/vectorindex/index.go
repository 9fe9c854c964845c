// Package vectorindex stores chunk embeddings and answers nearest-neighbor
// queries over them.
package vectorindex

import "context"

// Chunk is one indexed slice of a document.
type Chunk struct {
	Ordinal int
	Content string
	Vector  []float32
}

// Match is a query hit, most similar first.
type Match struct {
	DocumentID uint    `json:"document_id"`
	Ordinal    int     `json:"ordinal"`
	Content    string  `json:"content"`
	Score      float32 `json:"score"`
}

// Index is the vector store contract. Upsert replaces any previously indexed
// chunks for the document, so re-ingestion never duplicates. Query scopes the
// search to the given document IDs.
type Index interface {
	Upsert(ctx context.Context, documentID uint, chunks []Chunk) error
	Query(ctx context.Context, vector []float32, topK int, documentIDs []uint) ([]Match, error)
	Delete(ctx context.Context, documentID uint) error
}
