package rag

import "errors"

var (
	// ErrInvalidQuestion means the caller sent an empty or whitespace-only
	// question. Never retried.
	ErrInvalidQuestion = errors.New("question is empty")

	// ErrExtraction means the uploaded file could not be read as text. The
	// user must upload a readable file; re-running ingestion will not help.
	ErrExtraction = errors.New("document text extraction failed")

	// ErrEmbeddingProvider wraps embedding API failures. The background
	// worker retries the retryable ones; the pipeline itself never does.
	ErrEmbeddingProvider = errors.New("embedding provider failed")

	// ErrCompletionProvider wraps language-model API failures, surfaced to
	// the user as temporary unavailability.
	ErrCompletionProvider = errors.New("completion provider failed")

	ErrDocumentNotFound = errors.New("document not found")
)
