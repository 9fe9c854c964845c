package rag

import (
	"context"
	"fmt"
	"log"
	"strings"

	"policyqa/internal/ai"
	"policyqa/internal/model"
	"policyqa/internal/vectorindex"
)

// DocumentScope resolves which documents a user's question may search and
// the display names for cited sources.
type DocumentScope interface {
	ListIngestedIDsByUserID(userID uint) ([]uint, error)
	NamesByIDs(ids []uint) (map[uint]string, error)
}

// Completer calls the language model.
type Completer interface {
	Complete(ctx context.Context, messages []ai.ChatMessage) (string, error)
}

// HistoryPublisher hands a finished exchange to the async persistence path.
type HistoryPublisher interface {
	Publish(ctx context.Context, entry model.ChatHistory) error
}

// AnswerOptions are the retrieval tunables; zero values take defaults.
type AnswerOptions struct {
	TopK         int
	PromptBudget int // rune budget for the context block
}

const (
	defaultTopK         = 4
	defaultPromptBudget = 6000
)

// Answer is a grounded response with its cited sources.
type Answer struct {
	Text    string            `json:"answer"`
	Sources []model.SourceRef `json:"sources"`
}

// Answerer embeds a question, retrieves the user's most similar chunks,
// and asks the language model for a grounded answer.
type Answerer struct {
	docs      DocumentScope
	embed     Embedder
	index     vectorindex.Index
	completer Completer
	history   HistoryPublisher
	opts      AnswerOptions
}

func NewAnswerer(docs DocumentScope, embed Embedder, index vectorindex.Index, completer Completer, history HistoryPublisher, opts AnswerOptions) *Answerer {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.PromptBudget <= 0 {
		opts.PromptBudget = defaultPromptBudget
	}
	return &Answerer{
		docs:      docs,
		embed:     embed,
		index:     index,
		completer: completer,
		history:   history,
		opts:      opts,
	}
}

// Answer runs one question to completion. History persistence is
// best-effort: once the answer exists, a publish failure is only logged.
func (a *Answerer) Answer(ctx context.Context, userID uint, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrInvalidQuestion
	}

	vectors, err := a.embed.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingProvider, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 vector, got %d", ErrEmbeddingProvider, len(vectors))
	}

	docIDs, err := a.docs.ListIngestedIDsByUserID(userID)
	if err != nil {
		return nil, err
	}

	var matches []vectorindex.Match
	if len(docIDs) > 0 {
		matches, err = a.index.Query(ctx, vectors[0], a.opts.TopK, docIDs)
		if err != nil {
			return nil, err
		}
	}

	// Zero matches is not an error: the prompt carries an explicit
	// no-context marker so the model can say it lacks information.
	messages, used := buildPrompt(question, matches, a.opts.PromptBudget)

	text, err := a.completer.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompletionProvider, err)
	}

	sources := a.sourcesFor(used)
	answer := &Answer{
		Text:    strings.TrimSpace(text),
		Sources: sources,
	}

	entry := model.ChatHistory{
		UserID:   userID,
		Question: question,
		Answer:   answer.Text,
	}
	entry.SetSourceRefs(sources)
	if err := a.history.Publish(ctx, entry); err != nil {
		log.Printf("publish chat history for user %d failed: %v", userID, err)
	}

	return answer, nil
}

func (a *Answerer) sourcesFor(used []vectorindex.Match) []model.SourceRef {
	if len(used) == 0 {
		return []model.SourceRef{}
	}
	ids := make([]uint, 0, len(used))
	seen := make(map[uint]bool, len(used))
	for _, m := range used {
		if !seen[m.DocumentID] {
			seen[m.DocumentID] = true
			ids = append(ids, m.DocumentID)
		}
	}
	names, err := a.docs.NamesByIDs(ids)
	if err != nil {
		log.Printf("resolve source document names failed: %v", err)
	}

	sources := make([]model.SourceRef, len(used))
	for i, m := range used {
		name := names[m.DocumentID]
		if name == "" {
			// A citation must stay identifiable even when the name
			// lookup comes back short.
			name = fmt.Sprintf("document-%d", m.DocumentID)
		}
		sources[i] = model.SourceRef{
			DocumentID:   m.DocumentID,
			DocumentName: name,
			Ordinal:      m.Ordinal,
		}
	}
	return sources
}
