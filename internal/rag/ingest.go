package rag

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"policyqa/internal/model"
	"policyqa/internal/vectorindex"
)

// DocumentStore is the slice of the document repository the pipeline needs.
type DocumentStore interface {
	GetByID(id uint) (*model.Document, error)
	UpdateStatus(id uint, status model.DocumentStatus, reason string, chunkCount int) error
}

// FileStore opens the raw bytes of a stored upload.
type FileStore interface {
	Open(storedPath string) (io.ReadCloser, error)
}

// Extractor turns a stored file into plain text.
type Extractor func(r io.Reader) (string, error)

// Embedder converts texts into fixed-dimension vectors, one per input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// IngestOptions are the pipeline tunables; zero values take defaults.
type IngestOptions struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

const defaultEmbedBatchSize = 10 // embedding APIs commonly cap batch size

// Ingestor reads a document, chunks it, embeds the chunks, and writes them
// to the vector index, flipping the document's status at the end. All-or-
// nothing per document: the index is only touched after every chunk embedded,
// and the upsert replaces prior chunks, so re-running a failed document is
// safe.
type Ingestor struct {
	docs    DocumentStore
	files   FileStore
	extract Extractor
	embed   Embedder
	index   vectorindex.Index
	opts    IngestOptions
}

func NewIngestor(docs DocumentStore, files FileStore, extract Extractor, embed Embedder, index vectorindex.Index, opts IngestOptions) *Ingestor {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = defaultChunkOverlap
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultEmbedBatchSize
	}
	return &Ingestor{
		docs:    docs,
		files:   files,
		extract: extract,
		embed:   embed,
		index:   index,
		opts:    opts,
	}
}

// Ingest runs the pipeline for one document and returns the chunk count.
func (ing *Ingestor) Ingest(ctx context.Context, documentID uint) (int, error) {
	doc, err := ing.docs.GetByID(documentID)
	if err != nil {
		return 0, err
	}
	if doc == nil {
		return 0, ErrDocumentNotFound
	}

	f, err := ing.files.Open(doc.StoredPath)
	if err != nil {
		return 0, ing.fail(doc.ID, fmt.Errorf("%w: open stored file: %v", ErrExtraction, err))
	}
	text, err := ing.extract(f)
	f.Close()
	if err != nil {
		return 0, ing.fail(doc.ID, fmt.Errorf("%w: %v", ErrExtraction, err))
	}
	if strings.TrimSpace(text) == "" {
		return 0, ing.fail(doc.ID, fmt.Errorf("%w: no extractable text", ErrExtraction))
	}

	chunks := SplitText(text, ing.opts.ChunkSize, ing.opts.ChunkOverlap)
	if len(chunks) == 0 {
		return 0, ing.fail(doc.ID, fmt.Errorf("%w: splitter produced no chunks", ErrExtraction))
	}

	vectors, err := ing.embedAll(ctx, chunks)
	if err != nil {
		return 0, ing.fail(doc.ID, fmt.Errorf("%w: %w", ErrEmbeddingProvider, err))
	}

	indexed := make([]vectorindex.Chunk, len(chunks))
	for i := range chunks {
		indexed[i] = vectorindex.Chunk{
			Ordinal: i,
			Content: chunks[i],
			Vector:  vectors[i],
		}
	}
	if err := ing.index.Upsert(ctx, doc.ID, indexed); err != nil {
		return 0, ing.fail(doc.ID, fmt.Errorf("index upsert failed: %w", err))
	}

	if err := ing.docs.UpdateStatus(doc.ID, model.DocumentStatusIngested, "", len(indexed)); err != nil {
		return 0, err
	}
	return len(indexed), nil
}

func (ing *Ingestor) embedAll(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for i := 0; i < len(chunks); i += ing.opts.BatchSize {
		end := i + ing.opts.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch, err := ing.embed.Embed(ctx, chunks[i:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("expected %d vectors, got %d", len(chunks), len(vectors))
	}
	// Every vector must share the provider's dimensionality.
	for i := 1; i < len(vectors); i++ {
		if len(vectors[i]) != len(vectors[0]) {
			return nil, fmt.Errorf("vector %d has dimension %d, expected %d", i, len(vectors[i]), len(vectors[0]))
		}
	}
	return vectors, nil
}

// fail marks the document failed and passes the original error through.
func (ing *Ingestor) fail(documentID uint, cause error) error {
	reason := cause.Error()
	if len(reason) > 500 {
		reason = reason[:500]
	}
	if err := ing.docs.UpdateStatus(documentID, model.DocumentStatusFailed, reason, 0); err != nil {
		log.Printf("mark document %d failed errored: %v", documentID, err)
	}
	return cause
}
