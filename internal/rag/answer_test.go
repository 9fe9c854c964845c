package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policyqa/internal/ai"
	"policyqa/internal/model"
	"policyqa/internal/vectorindex"
)

type stubScope struct {
	ids      []uint
	names    map[uint]string
	namesErr error
}

func (s *stubScope) ListIngestedIDsByUserID(userID uint) ([]uint, error) {
	return s.ids, nil
}

func (s *stubScope) NamesByIDs(ids []uint) (map[uint]string, error) {
	if s.namesErr != nil {
		return nil, s.namesErr
	}
	return s.names, nil
}

type stubCompleter struct {
	reply    string
	err      error
	calls    int
	messages []ai.ChatMessage
}

func (s *stubCompleter) Complete(ctx context.Context, messages []ai.ChatMessage) (string, error) {
	s.calls++
	s.messages = messages
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type stubHistory struct {
	err     error
	entries []model.ChatHistory
}

func (s *stubHistory) Publish(ctx context.Context, entry model.ChatHistory) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func newTestAnswerer(scope *stubScope, embedder *stubEmbedder, index vectorindex.Index, completer *stubCompleter, history *stubHistory, opts AnswerOptions) *Answerer {
	return NewAnswerer(scope, embedder, index, completer, history, opts)
}

func TestAnswerRejectsWhitespaceQuestion(t *testing.T) {
	embedder := &stubEmbedder{dim: 4}
	completer := &stubCompleter{reply: "hi"}
	a := newTestAnswerer(&stubScope{}, embedder, newMemoryIndex(), completer, &stubHistory{}, AnswerOptions{})

	_, err := a.Answer(context.Background(), 1, "   \t\n ")

	assert.ErrorIs(t, err, ErrInvalidQuestion)
	assert.Zero(t, embedder.calls, "embedding provider must not be called for a blank question")
	assert.Zero(t, completer.calls)
}

func TestAnswerEmbeddingFailureSkipsCompletion(t *testing.T) {
	provErr := &ai.ProviderError{Op: "embedding", Kind: ai.KindTransient, Msg: "timeout"}
	embedder := &stubEmbedder{dim: 4, err: provErr}
	completer := &stubCompleter{reply: "hi"}
	a := newTestAnswerer(&stubScope{ids: []uint{1}}, embedder, newMemoryIndex(), completer, &stubHistory{}, AnswerOptions{})

	_, err := a.Answer(context.Background(), 1, "How many vacation days?")

	assert.ErrorIs(t, err, ErrEmbeddingProvider)
	assert.Zero(t, completer.calls, "completion provider must not be called after an embedding failure")
}

func TestAnswerNoDocumentsUsesNoContextMarker(t *testing.T) {
	embedder := &stubEmbedder{dim: 4}
	completer := &stubCompleter{reply: "I could not find relevant policy information."}
	history := &stubHistory{}
	a := newTestAnswerer(&stubScope{}, embedder, newMemoryIndex(), completer, history, AnswerOptions{})

	answer, err := a.Answer(context.Background(), 1, "Anything about parental leave?")

	require.NoError(t, err)
	require.Equal(t, 1, completer.calls)
	require.Len(t, completer.messages, 2)
	assert.Contains(t, completer.messages[1].Content, NoContextMarker)
	assert.Equal(t, "I could not find relevant policy information.", answer.Text)
	assert.Empty(t, answer.Sources)
	require.Len(t, history.entries, 1)
	assert.Empty(t, history.entries[0].SourceRefs())
}

func TestAnswerCompletionFailure(t *testing.T) {
	embedder := &stubEmbedder{dim: 4}
	completer := &stubCompleter{err: &ai.ProviderError{Op: "completion", Kind: ai.KindRateLimited, Status: 429, Msg: "quota"}}
	history := &stubHistory{}
	a := newTestAnswerer(&stubScope{}, embedder, newMemoryIndex(), completer, history, AnswerOptions{})

	_, err := a.Answer(context.Background(), 1, "How many vacation days?")

	assert.ErrorIs(t, err, ErrCompletionProvider)
	assert.Empty(t, history.entries, "failed answers are not persisted")
}

func TestAnswerHistoryPublishFailureDoesNotFailAnswer(t *testing.T) {
	embedder := &stubEmbedder{dim: 4}
	completer := &stubCompleter{reply: "Twenty days."}
	history := &stubHistory{err: errors.New("broker down")}
	a := newTestAnswerer(&stubScope{}, embedder, newMemoryIndex(), completer, history, AnswerOptions{})

	answer, err := a.Answer(context.Background(), 1, "How many vacation days?")

	require.NoError(t, err)
	assert.Equal(t, "Twenty days.", answer.Text)
}

func TestAnswerBudgetDropsLeastSimilarChunks(t *testing.T) {
	embedder := &stubEmbedder{dim: 4}
	index := newMemoryIndex()
	index.chunks[1] = []vectorindex.Chunk{
		{Ordinal: 0, Content: strings.Repeat("most similar ", 20), Vector: embed4("How many vacation days?")},
		{Ordinal: 1, Content: strings.Repeat("less similar ", 20), Vector: []float32{0, 0, 1, 0}},
		{Ordinal: 2, Content: strings.Repeat("least similar ", 20), Vector: []float32{0, 0, 0, 1}},
	}
	completer := &stubCompleter{reply: "ok"}
	scope := &stubScope{ids: []uint{1}, names: map[uint]string{1: "Handbook"}}
	a := newTestAnswerer(scope, embedder, index, completer, &stubHistory{}, AnswerOptions{
		TopK:         3,
		PromptBudget: 300,
	})

	answer, err := a.Answer(context.Background(), 1, "How many vacation days?")

	require.NoError(t, err)
	require.NotEmpty(t, answer.Sources)
	assert.Less(t, len(answer.Sources), 3, "the budget must drop trailing chunks")
	assert.Equal(t, 0, answer.Sources[0].Ordinal, "the most similar chunk is kept first")
}

// embed4 mirrors stubEmbedder's vector for a single text.
func embed4(text string) []float32 {
	vec := make([]float32, 4)
	for j, r := range []rune(text) {
		vec[j%4] += float32(r)
	}
	return vec
}

func TestAnswerCitesSources(t *testing.T) {
	embedder := &stubEmbedder{dim: 4}
	index := newMemoryIndex()
	index.chunks[9] = []vectorindex.Chunk{
		{Ordinal: 0, Content: "Vacation policy: 20 days per year.", Vector: embed4("How many vacation days do I get?")},
	}
	completer := &stubCompleter{reply: "You get 20 vacation days per year."}
	history := &stubHistory{}
	scope := &stubScope{ids: []uint{9}, names: map[uint]string{9: "HR Handbook"}}
	a := newTestAnswerer(scope, embedder, index, completer, history, AnswerOptions{TopK: 2})

	answer, err := a.Answer(context.Background(), 1, "How many vacation days do I get?")

	require.NoError(t, err)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, uint(9), answer.Sources[0].DocumentID)
	assert.Equal(t, "HR Handbook", answer.Sources[0].DocumentName)
	assert.Equal(t, 0, answer.Sources[0].Ordinal)

	require.Len(t, history.entries, 1)
	assert.Equal(t, answer.Text, history.entries[0].Answer)
	assert.Equal(t, answer.Sources, history.entries[0].SourceRefs())
}

func TestAnswerSourceNameFallback(t *testing.T) {
	embedder := &stubEmbedder{dim: 4}
	index := newMemoryIndex()
	index.chunks[9] = []vectorindex.Chunk{
		{Ordinal: 0, Content: "Vacation policy: 20 days per year.", Vector: embed4("How many vacation days do I get?")},
	}
	completer := &stubCompleter{reply: "Twenty."}
	scope := &stubScope{ids: []uint{9}, namesErr: errors.New("mysql down")}
	a := newTestAnswerer(scope, embedder, index, completer, &stubHistory{}, AnswerOptions{TopK: 2})

	answer, err := a.Answer(context.Background(), 1, "How many vacation days do I get?")

	require.NoError(t, err)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "document-9", answer.Sources[0].DocumentName, "citations stay identifiable without a resolved name")

	scope.namesErr = nil
	scope.names = map[uint]string{}
	answer, err = a.Answer(context.Background(), 1, "How many vacation days do I get?")
	require.NoError(t, err)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "document-9", answer.Sources[0].DocumentName)
}
