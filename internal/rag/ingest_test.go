package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policyqa/internal/ai"
	"policyqa/internal/model"
	"policyqa/internal/vectorindex"
)

type stubDocStore struct {
	docs     map[uint]*model.Document
	statuses []model.DocumentStatus
	reasons  []string
	counts   []int
}

func newStubDocStore(docs ...*model.Document) *stubDocStore {
	m := make(map[uint]*model.Document)
	for _, d := range docs {
		m[d.ID] = d
	}
	return &stubDocStore{docs: m}
}

func (s *stubDocStore) GetByID(id uint) (*model.Document, error) {
	return s.docs[id], nil
}

func (s *stubDocStore) UpdateStatus(id uint, status model.DocumentStatus, reason string, chunkCount int) error {
	if d, ok := s.docs[id]; ok {
		d.Status = status
		d.StatusReason = reason
		d.ChunkCount = chunkCount
	}
	s.statuses = append(s.statuses, status)
	s.reasons = append(s.reasons, reason)
	s.counts = append(s.counts, chunkCount)
	return nil
}

type stubFiles struct {
	content map[string]string
	openErr error
}

func (s *stubFiles) Open(storedPath string) (io.ReadCloser, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	content, ok := s.content[storedPath]
	if !ok {
		return nil, errors.New("no such file")
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

// stubEmbedder returns a fixed-width vector per text; err fails every call.
type stubEmbedder struct {
	dim     int
	err     error
	calls   int
	batches [][]string
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	s.batches = append(s.batches, texts)
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, s.dim)
		for j, r := range []rune(texts[i]) {
			vec[j%s.dim] += float32(r)
		}
		out[i] = vec
	}
	return out, nil
}

// memoryIndex is an in-memory vectorindex.Index with cosine ranking, used
// across the pipeline and answer tests.
type memoryIndex struct {
	chunks    map[uint][]vectorindex.Chunk
	upsertErr error
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{chunks: make(map[uint][]vectorindex.Chunk)}
}

func (m *memoryIndex) Upsert(ctx context.Context, documentID uint, chunks []vectorindex.Chunk) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.chunks[documentID] = append([]vectorindex.Chunk(nil), chunks...)
	return nil
}

func (m *memoryIndex) Query(ctx context.Context, vector []float32, topK int, documentIDs []uint) ([]vectorindex.Match, error) {
	var matches []vectorindex.Match
	for _, id := range documentIDs {
		for _, c := range m.chunks[id] {
			matches = append(matches, vectorindex.Match{
				DocumentID: id,
				Ordinal:    c.Ordinal,
				Content:    c.Content,
				Score:      vectorindex.CosineSimilarity(vector, c.Vector),
			})
		}
	}
	for i := 0; i < len(matches); i++ {
		for j := i + 1; j < len(matches); j++ {
			if matches[j].Score > matches[i].Score {
				matches[i], matches[j] = matches[j], matches[i]
			}
		}
	}
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *memoryIndex) Delete(ctx context.Context, documentID uint) error {
	delete(m.chunks, documentID)
	return nil
}

func passthroughExtract(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func pendingDoc(id uint) *model.Document {
	return &model.Document{
		ID:         id,
		UserID:     1,
		Name:       fmt.Sprintf("doc-%d", id),
		StoredPath: fmt.Sprintf("doc-%d.pdf", id),
		Status:     model.DocumentStatusPending,
	}
}

func TestIngestSuccess(t *testing.T) {
	text := "Vacation policy: 20 days per year. Sick leave: 10 days per year."
	docs := newStubDocStore(pendingDoc(7))
	files := &stubFiles{content: map[string]string{"doc-7.pdf": text}}
	embedder := &stubEmbedder{dim: 8}
	index := newMemoryIndex()

	ing := NewIngestor(docs, files, passthroughExtract, embedder, index, IngestOptions{
		ChunkSize:    40,
		ChunkOverlap: 1,
		BatchSize:    1,
	})

	count, err := ing.Ingest(context.Background(), 7)

	require.NoError(t, err)
	expected := SplitText(text, 40, 1)
	assert.Equal(t, len(expected), count)
	require.Len(t, index.chunks[7], len(expected))
	for i, c := range index.chunks[7] {
		assert.Equal(t, i, c.Ordinal)
		assert.Equal(t, expected[i], c.Content)
		assert.Len(t, c.Vector, 8)
	}
	assert.Equal(t, model.DocumentStatusIngested, docs.docs[7].Status)
	assert.Equal(t, len(expected), docs.docs[7].ChunkCount)
	// One embedding call per chunk at batch size 1.
	assert.Equal(t, len(expected), embedder.calls)
}

func TestIngestBatchesEmbeddings(t *testing.T) {
	text := "One. Two. Three. Four. Five."
	docs := newStubDocStore(pendingDoc(1))
	files := &stubFiles{content: map[string]string{"doc-1.pdf": text}}
	embedder := &stubEmbedder{dim: 4}
	index := newMemoryIndex()

	ing := NewIngestor(docs, files, passthroughExtract, embedder, index, IngestOptions{
		ChunkSize:    6,
		ChunkOverlap: 0,
		BatchSize:    2,
	})

	count, err := ing.Ingest(context.Background(), 1)

	require.NoError(t, err)
	require.Greater(t, count, 2)
	for _, batch := range embedder.batches {
		assert.LessOrEqual(t, len(batch), 2)
	}
}

func TestIngestDocumentNotFound(t *testing.T) {
	ing := NewIngestor(newStubDocStore(), &stubFiles{}, passthroughExtract, &stubEmbedder{dim: 4}, newMemoryIndex(), IngestOptions{})

	_, err := ing.Ingest(context.Background(), 99)

	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestIngestExtractionFailureMarksFailed(t *testing.T) {
	docs := newStubDocStore(pendingDoc(3))
	files := &stubFiles{content: map[string]string{"doc-3.pdf": "binary"}}
	embedder := &stubEmbedder{dim: 4}
	index := newMemoryIndex()

	failing := func(r io.Reader) (string, error) {
		return "", errors.New("corrupt pdf")
	}
	ing := NewIngestor(docs, files, failing, embedder, index, IngestOptions{})

	_, err := ing.Ingest(context.Background(), 3)

	assert.ErrorIs(t, err, ErrExtraction)
	assert.Equal(t, model.DocumentStatusFailed, docs.docs[3].Status)
	assert.Contains(t, docs.docs[3].StatusReason, "corrupt pdf")
	assert.Empty(t, index.chunks[3])
	assert.Zero(t, embedder.calls)
}

func TestIngestEmptyTextMarksFailed(t *testing.T) {
	docs := newStubDocStore(pendingDoc(4))
	files := &stubFiles{content: map[string]string{"doc-4.pdf": "   \n  "}}
	ing := NewIngestor(docs, files, passthroughExtract, &stubEmbedder{dim: 4}, newMemoryIndex(), IngestOptions{})

	_, err := ing.Ingest(context.Background(), 4)

	assert.ErrorIs(t, err, ErrExtraction)
	assert.Equal(t, model.DocumentStatusFailed, docs.docs[4].Status)
}

func TestIngestEmbeddingFailureLeavesIndexUntouched(t *testing.T) {
	docs := newStubDocStore(pendingDoc(5))
	files := &stubFiles{content: map[string]string{"doc-5.pdf": "Some policy text. More policy text."}}
	provErr := &ai.ProviderError{Op: "embedding", Kind: ai.KindRateLimited, Status: 429, Msg: "quota"}
	embedder := &stubEmbedder{dim: 4, err: provErr}
	index := newMemoryIndex()

	ing := NewIngestor(docs, files, passthroughExtract, embedder, index, IngestOptions{})

	_, err := ing.Ingest(context.Background(), 5)

	assert.ErrorIs(t, err, ErrEmbeddingProvider)
	var pe *ai.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Retryable())
	assert.Equal(t, model.DocumentStatusFailed, docs.docs[5].Status)
	assert.Empty(t, index.chunks[5])
}

func TestIngestRetryOverwritesPriorChunks(t *testing.T) {
	text := "Vacation policy: 20 days per year. Sick leave: 10 days per year."
	docs := newStubDocStore(pendingDoc(6))
	files := &stubFiles{content: map[string]string{"doc-6.pdf": text}}
	embedder := &stubEmbedder{dim: 8}
	index := newMemoryIndex()
	// Leftovers from a previous partial attempt.
	index.chunks[6] = []vectorindex.Chunk{{Ordinal: 0, Content: "stale chunk"}}

	ing := NewIngestor(docs, files, passthroughExtract, embedder, index, IngestOptions{
		ChunkSize:    40,
		ChunkOverlap: 1,
	})

	count, err := ing.Ingest(context.Background(), 6)

	require.NoError(t, err)
	require.Len(t, index.chunks[6], count)
	for _, c := range index.chunks[6] {
		assert.NotEqual(t, "stale chunk", c.Content)
	}
}

func TestIngestIndexFailureMarksFailed(t *testing.T) {
	docs := newStubDocStore(pendingDoc(8))
	files := &stubFiles{content: map[string]string{"doc-8.pdf": "Policy text."}}
	index := newMemoryIndex()
	index.upsertErr = errors.New("index down")

	ing := NewIngestor(docs, files, passthroughExtract, &stubEmbedder{dim: 4}, index, IngestOptions{})

	_, err := ing.Ingest(context.Background(), 8)

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmbeddingProvider)
	assert.Equal(t, model.DocumentStatusFailed, docs.docs[8].Status)
}
