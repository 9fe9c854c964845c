package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policyqa/internal/ai"
	"policyqa/internal/model"
)

// vocabEmbedder embeds text as a bag-of-words over a fixed vocabulary, so
// similarity reflects shared terms deterministically.
type vocabEmbedder struct {
	vocab []string
	calls int
}

func (e *vocabEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(e.vocab))
		lower := strings.ToLower(text)
		for j, term := range e.vocab {
			vec[j] = float32(strings.Count(lower, term))
		}
		// Keep vectors non-zero even with no vocabulary hits.
		vec = append(vec, 1)
		out[i] = vec
	}
	return out, nil
}

// excerptCompleter answers from the prompt the way a cooperative model
// would: echo the excerpts, or admit it has nothing.
type excerptCompleter struct{}

func (excerptCompleter) Complete(ctx context.Context, messages []ai.ChatMessage) (string, error) {
	prompt := messages[len(messages)-1].Content
	if strings.Contains(prompt, NoContextMarker) {
		return "I could not find any relevant policy information for that question.", nil
	}
	start := strings.Index(prompt, "---")
	end := strings.LastIndex(prompt, "---")
	return "According to the policy: " + strings.TrimSpace(prompt[start+3:end]), nil
}

func TestEndToEndVacationQuestion(t *testing.T) {
	text := "Vacation policy: 20 days per year. Sick leave: 10 days per year."
	docs := newStubDocStore(pendingDoc(1))
	docs.docs[1].Name = "HR Handbook"
	files := &stubFiles{content: map[string]string{"doc-1.pdf": text}}
	embedder := &vocabEmbedder{vocab: []string{"vacation", "sick", "days", "leave", "year"}}
	index := newMemoryIndex()

	ing := NewIngestor(docs, files, passthroughExtract, embedder, index, IngestOptions{
		ChunkSize:    40,
		ChunkOverlap: 0,
	})
	count, err := ing.Ingest(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, count, "the two policy sentences become two chunks")
	assert.Equal(t, model.DocumentStatusIngested, docs.docs[1].Status)

	scope := &stubScope{ids: []uint{1}, names: map[uint]string{1: "HR Handbook"}}
	history := &stubHistory{}
	a := NewAnswerer(scope, embedder, index, excerptCompleter{}, history, AnswerOptions{TopK: 1})

	answer, err := a.Answer(context.Background(), 1, "How many vacation days do I get?")

	require.NoError(t, err)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, 0, answer.Sources[0].Ordinal, "the vacation sentence is the top match")
	assert.Equal(t, "HR Handbook", answer.Sources[0].DocumentName)
	assert.Contains(t, answer.Text, "20")
	assert.NotContains(t, answer.Text, "Sick leave")

	require.Len(t, history.entries, 1)
	assert.Equal(t, "How many vacation days do I get?", history.entries[0].Question)
}

func TestEndToEndNoDocumentsIngested(t *testing.T) {
	embedder := &vocabEmbedder{vocab: []string{"vacation", "days"}}
	history := &stubHistory{}
	a := NewAnswerer(&stubScope{}, embedder, newMemoryIndex(), excerptCompleter{}, history, AnswerOptions{})

	answer, err := a.Answer(context.Background(), 42, "What is the remote work policy?")

	require.NoError(t, err)
	assert.Contains(t, answer.Text, "could not find")
	assert.Empty(t, answer.Sources)
}
